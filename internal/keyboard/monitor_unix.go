// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

//go:build !windows

package keyboard

import (
	"os"

	"golang.org/x/sys/unix"
)

const platformSupported = true

// watch polls stdin with select(2) so the goroutine can exit promptly
// on stop without a byte ever being stolen from the next prompt read.
func (m *Monitor) watch(fd int, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	buf := make([]byte, 1)
	for {
		select {
		case <-stop:
			return
		default:
		}

		var readSet unix.FdSet
		readSet.Zero()
		readSet.Set(fd)
		timeout := unix.NsecToTimeval(pollInterval.Nanoseconds())

		n, err := unix.Select(fd+1, &readSet, nil, nil, &timeout)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return
		}
		if n == 0 || !readSet.IsSet(fd) {
			continue
		}

		if _, err := os.Stdin.Read(buf); err != nil {
			return
		}
		if buf[0] == escByte {
			m.interrupted.Store(true)
			return
		}
		// Other keys pressed mid-stream are dropped, matching what a
		// raw-mode terminal user expects during generation.
	}
}
