// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package keyboard

import "testing"

// Tests run without a TTY, where Start degrades to a disabled monitor.

func TestStartWithoutTTY(t *testing.T) {
	m := NewMonitor()
	if err := m.Start(); err != nil {
		t.Fatalf("Start without TTY should be a silent no-op, got %v", err)
	}
	defer m.Stop()

	if m.Interrupted() {
		t.Error("fresh monitor reports interrupted")
	}
}

func TestStopWithoutStartIsSafe(t *testing.T) {
	m := NewMonitor()
	m.Stop()
	m.Stop()
}

func TestStartResetsFlag(t *testing.T) {
	m := NewMonitor()
	m.interrupted.Store(true)

	if err := m.Start(); err != nil {
		t.Fatal(err)
	}
	defer m.Stop()

	if m.Interrupted() {
		t.Error("Start did not reset the interrupt flag")
	}
}

func TestFlagVisibleAcrossGoroutines(t *testing.T) {
	m := NewMonitor()
	done := make(chan struct{})
	go func() {
		m.interrupted.Store(true)
		close(done)
	}()
	<-done
	if !m.Interrupted() {
		t.Error("interrupt flag not visible to reader")
	}
}
