// Copyright (c) Liam Stanley <me@liamstanley.io>. All rights reserved. Use
// of this source code is governed by the MIT license that can be found in
// the LICENSE file.

package ircx

import "testing"

func TestMonitorSendsBatchedMONITORWhenSupported(t *testing.T) {
	c := newTestClient()
	c.state.serverOptions.Set("MONITOR", "100")

	lines := captureWrites(c, func() {
		if err := c.Cmd.Monitor("alice", "bob"); err != nil {
			t.Fatalf("Monitor() error: %v", err)
		}
	})

	if len(lines) != 1 {
		t.Fatalf("Monitor() wrote %d lines, want 1", len(lines))
	}
	if lines[0].Command != MONITOR || lines[0].Params[0] != "+" {
		t.Fatalf("line = %#v", lines[0])
	}

	monitored := c.Monitored()
	if _, ok := monitored["alice"]; !ok {
		t.Errorf("Monitored() missing alice: %#v", monitored)
	}
	if _, ok := monitored["bob"]; !ok {
		t.Errorf("Monitored() missing bob: %#v", monitored)
	}
}

func TestMonitorFallsBackToWATCHWhenUnsupported(t *testing.T) {
	c := newTestClient()

	lines := captureWrites(c, func() {
		if err := c.Cmd.Monitor("alice"); err != nil {
			t.Fatalf("Monitor() error: %v", err)
		}
	})

	if len(lines) != 1 || lines[0].Command != WATCH || lines[0].Params[0] != "+alice" {
		t.Fatalf("line = %#v, want WATCH +alice", lines)
	}
}

func TestMonitorBatchesOverLimit(t *testing.T) {
	c := newTestClient()
	c.state.serverOptions.Set("MONITOR", "100")

	nicks := make([]string, monitorMaxTargets+1)
	for i := range nicks {
		nicks[i] = "nick"
	}

	lines := captureWrites(c, func() {
		if err := c.Cmd.Monitor(nicks...); err != nil {
			t.Fatalf("Monitor() error: %v", err)
		}
	})

	if len(lines) != 2 {
		t.Fatalf("Monitor(over limit) wrote %d lines, want 2 batches", len(lines))
	}
}

func TestUnmonitorRemovesFromState(t *testing.T) {
	c := newTestClient()
	c.state.serverOptions.Set("MONITOR", "100")

	captureWrites(c, func() { _ = c.Cmd.Monitor("alice") })
	captureWrites(c, func() {
		if err := c.Cmd.Unmonitor("alice"); err != nil {
			t.Fatalf("Unmonitor() error: %v", err)
		}
	})

	if _, ok := c.Monitored()["alice"]; ok {
		t.Errorf("alice still monitored after Unmonitor()")
	}
}

func TestMonitorClearSendsMONITORCWhenSupported(t *testing.T) {
	c := newTestClient()
	c.state.serverOptions.Set("MONITOR", "100")
	captureWrites(c, func() { _ = c.Cmd.Monitor("alice", "bob") })

	lines := captureWrites(c, func() {
		if err := c.Cmd.MonitorClear(); err != nil {
			t.Fatalf("MonitorClear() error: %v", err)
		}
	})

	if len(lines) != 1 || lines[0].Command != MONITOR || lines[0].Params[0] != "C" {
		t.Fatalf("line = %#v, want MONITOR C", lines)
	}
	if len(c.Monitored()) != 0 {
		t.Errorf("Monitored() not empty after MonitorClear(): %#v", c.Monitored())
	}
}

func TestHandleMonitorOnlineOffline(t *testing.T) {
	c := newTestClient()
	captureWrites(c, func() { _ = c.Cmd.Monitor("alice", "bob") })

	handleMonitorOnline(c, Event{Command: RPL_MONONLINE, Trailing: "alice"})
	if !c.Monitored()["alice"] {
		t.Errorf("alice not marked online")
	}

	handleMonitorOffline(c, Event{Command: RPL_MONOFFLINE, Trailing: "alice"})
	if c.Monitored()["alice"] {
		t.Errorf("alice not marked offline")
	}
}

func TestHandleMonitorListSeedsState(t *testing.T) {
	c := newTestClient()
	handleMonitorList(c, Event{Command: RPL_MONLIST, Trailing: "alice,bob"})

	monitored := c.Monitored()
	if _, ok := monitored["alice"]; !ok {
		t.Errorf("alice not seeded from RPL_MONLIST")
	}
	if _, ok := monitored["bob"]; !ok {
		t.Errorf("bob not seeded from RPL_MONLIST")
	}
}

func TestSupportsMonitor(t *testing.T) {
	c := newTestClient()
	if c.Cmd.supportsMonitor() {
		t.Errorf("supportsMonitor() = true before ISUPPORT seen")
	}

	c.state.serverOptions.Set("MONITOR", "100")
	if !c.Cmd.supportsMonitor() {
		t.Errorf("supportsMonitor() = false after MONITOR advertised")
	}
}
