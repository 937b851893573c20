// Copyright (c) Liam Stanley <me@liamstanley.io>. All rights reserved. Use
// of this source code is governed by the MIT license that can be found in
// the LICENSE file.

package ircx

import "testing"

func newTestClient() *Client {
	return New(Config{Server: "irc.example.com", Nick: "test", User: "test", Name: "Testing"})
}

func TestBuildISupport(t *testing.T) {
	c := newTestClient()

	c.state.serverOptions.Set("NETWORK", "ExampleNet")
	c.state.serverOptions.Set("CHANTYPES", "#&")
	c.state.serverOptions.Set("CASEMAPPING", "ascii")
	c.state.serverOptions.Set("NICKLEN", "30")
	c.state.serverOptions.Set("MONITOR", "100")
	c.state.serverOptions.Set("WATCH", "128")

	is := c.ISupport()
	if is.Network != "ExampleNet" {
		t.Errorf("Network = %q", is.Network)
	}
	if is.ChanTypes != "#&" {
		t.Errorf("ChanTypes = %q", is.ChanTypes)
	}
	if is.CaseMapping != CaseMappingASCII {
		t.Errorf("CaseMapping = %v, want ascii", is.CaseMapping)
	}
	if is.NickLen != 30 {
		t.Errorf("NickLen = %d, want 30", is.NickLen)
	}
	if is.Monitor != 100 {
		t.Errorf("Monitor = %d, want 100", is.Monitor)
	}
	if !is.WatchSupported {
		t.Errorf("WatchSupported = false, want true")
	}
	if is.Raw["NICKLEN"] != "30" {
		t.Errorf("Raw[NICKLEN] = %q", is.Raw["NICKLEN"])
	}
}

func TestBuildISupportMonitorUnsupported(t *testing.T) {
	c := newTestClient()
	is := c.ISupport()
	if is.Monitor != 0 {
		t.Errorf("Monitor = %d, want 0 when not advertised", is.Monitor)
	}
	if is.WatchSupported {
		t.Errorf("WatchSupported = true, want false")
	}
}

func TestIsupportIntFallback(t *testing.T) {
	raw := map[string]string{"MODES": "not-a-number"}
	if got := isupportInt(raw, "MODES"); got != 0 {
		t.Errorf("isupportInt(bad value) = %d, want 0", got)
	}
	if got := isupportInt(raw, "MISSING"); got != 0 {
		t.Errorf("isupportInt(missing key) = %d, want 0", got)
	}
}

func TestRehashCaseMappingNoopOnSameMapping(t *testing.T) {
	c := newTestClient()
	c.state.createChannel("#test")

	c.state.rehashCaseMapping(CaseMappingRFC1459)

	if c.LookupChannel("#test") == nil {
		t.Errorf("channel lost after no-op rehash")
	}
}

func TestRehashCaseMappingRekeys(t *testing.T) {
	c := newTestClient()
	c.state.createChannel("#Test")

	c.state.rehashCaseMapping(CaseMappingASCII)

	if ch := c.LookupChannel("#Test"); ch == nil {
		t.Errorf("channel not found after rehash under new mapping")
	}
}

func TestRehashCaseMappingCollisionDisconnects(t *testing.T) {
	c := newTestClient()

	// Start under ascii, where "{test}" and "[test]" fold to distinct keys
	// (ascii never squeezes {}|^ onto []\~). Moving to rfc1459, which does
	// squeeze them, merges the two into the same key and must be treated
	// as a collision rather than silently discarding one channel's state.
	c.state.caseMapping.Store(CaseMappingASCII)
	c.state.channels.Set(CaseMappingASCII.Fold("{test}"), &Channel{Name: "{test}"})
	c.state.channels.Set(CaseMappingASCII.Fold("[test]"), &Channel{Name: "[test]"})

	c.state.rehashCaseMapping(CaseMappingRFC1459)

	reason, ok := c.state.forcedReason.Load().(DisconnectReason)
	if !ok || reason != ReasonCaseMappingCollision {
		t.Errorf("forcedReason = %v, ok=%v, want ReasonCaseMappingCollision", reason, ok)
	}
}
