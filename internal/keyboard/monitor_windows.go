// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

//go:build windows

package keyboard

// ESC interception needs non-blocking console polling, which the
// Windows console API does not offer through the bindings we use.
// Monitoring is disabled there; Ctrl+C still aborts the process.
const platformSupported = false

func (m *Monitor) watch(fd int, stop <-chan struct{}, done chan<- struct{}) {
	close(done)
}
