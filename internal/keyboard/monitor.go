// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package keyboard

import (
	"os"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/term"
)

// =============================================================================
// ESC MONITOR
// =============================================================================

// escByte is the key that interrupts a streaming response.
const escByte = 0x1b

// pollInterval is how often the watcher checks stdin. Short enough
// that an interrupt feels immediate, long enough to stay invisible in
// profiles.
const pollInterval = 50 * time.Millisecond

// Monitor watches stdin for ESC during a streaming response. Start
// puts the terminal into raw mode and spawns the watcher; Stop
// restores the terminal and reclaims stdin for the prompt.
//
// When stdin is not a terminal (piped input, tests) monitoring is
// silently disabled and Interrupted always reports false.
type Monitor struct {
	interrupted atomic.Bool

	mu      sync.Mutex
	stop    chan struct{}
	done    chan struct{}
	restore func()
	active  bool
}

// NewMonitor creates an inactive monitor.
func NewMonitor() *Monitor {
	return &Monitor{}
}

// Start begins watching for ESC. It resets the interrupt flag, so a
// monitor can be reused across turns. Calling Start while already
// active is a no-op.
func (m *Monitor) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.interrupted.Store(false)
	if m.active {
		return nil
	}

	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return nil
	}
	if !platformSupported {
		return nil
	}

	oldState, err := term.MakeRaw(fd)
	if err != nil {
		return err
	}

	m.restore = func() { _ = term.Restore(fd, oldState) }
	m.stop = make(chan struct{})
	m.done = make(chan struct{})
	m.active = true

	go m.watch(fd, m.stop, m.done)
	return nil
}

// Stop ends the watch and restores the terminal. The watcher exits
// within one poll interval without consuming buffered input meant for
// the next prompt.
func (m *Monitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.active {
		return
	}
	close(m.stop)
	<-m.done
	m.restore()
	m.restore = nil
	m.active = false
}

// Interrupted reports whether ESC was pressed since the last Start.
func (m *Monitor) Interrupted() bool {
	return m.interrupted.Load()
}
