// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package keyboard watches stdin for the ESC key while a response is
// streaming, so the user can stop generation without killing the
// session.
package keyboard
