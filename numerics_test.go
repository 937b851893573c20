// Copyright (c) Liam Stanley <me@liamstanley.io>. All rights reserved. Use
// of this source code is governed by the MIT license that can be found in
// the LICENSE file.

package ircx

import "testing"

func TestNumericsDistinct(t *testing.T) {
	// A handful of numerics that commands.go/builtin.go key their
	// AsyncRequest/state-machine matching on; regressions here silently
	// break request/reply correlation rather than failing to compile.
	pairs := map[string]string{
		RPL_ENDOFWHO:     "315",
		RPL_ENDOFWHOIS:   "318",
		RPL_ENDOFNAMES:   "366",
		RPL_ISUPPORT:     "005",
		RPL_SASLSUCCESS:  "903",
		RPL_MONONLINE:    "730",
		RPL_MONOFFLINE:   "731",
		RPL_MONLIST:      "732",
		RPL_ENDOFMONLIST: "733",
		RPL_MONLISTFULL:  "734",
		RPL_STARTTLS:     "670",
		ERR_STARTTLS:     "691",
	}
	for got, want := range pairs {
		if got != want {
			t.Errorf("numeric constant = %q, want %q", got, want)
		}
	}
}

func TestPseudoEventsNeverCollideWithWireCommands(t *testing.T) {
	pseudo := []string{INITIALIZED, CONNECTED, DISCONNECTED, CLOSED, STS_ERR_FALLBACK, UPDATE_STATE, UPDATE_GENERAL}
	wire := []string{PRIVMSG, NOTICE, JOIN, PART, NICK, CAP, AUTHENTICATE, MONITOR, WATCH, RPL_ISUPPORT}

	for _, p := range pseudo {
		for _, w := range wire {
			if p == w {
				t.Errorf("pseudo-event %q collides with wire command %q", p, w)
			}
		}
	}
}
