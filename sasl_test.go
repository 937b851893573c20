// Copyright (c) Liam Stanley <me@liamstanley.io>. All rights reserved. Use
// of this source code is governed by the MIT license that can be found in
// the LICENSE file.

package ircx

import (
	"encoding/base64"
	"strings"
	"testing"
)

func TestSASLPlainRespond(t *testing.T) {
	mech := &SASLPlain{Username: "alice", Password: "hunter2"}
	resp, ok := mech.Respond(nil)
	if !ok {
		t.Fatal("Respond() ok = false")
	}
	if string(resp) != "\x00alice\x00hunter2" {
		t.Errorf("Respond() = %q", resp)
	}
	if mech.Method() != "PLAIN" {
		t.Errorf("Method() = %q", mech.Method())
	}
}

func TestSASLPlainRespondWithIdentity(t *testing.T) {
	mech := &SASLPlain{Identity: "admin", Username: "alice", Password: "hunter2"}
	resp, _ := mech.Respond(nil)
	if string(resp) != "admin\x00alice\x00hunter2" {
		t.Errorf("Respond() = %q", resp)
	}
}

func TestSASLExternalRespond(t *testing.T) {
	mech := &SASLExternal{}
	resp, ok := mech.Respond(nil)
	if !ok || string(resp) != "" {
		t.Errorf("Respond() = %q, %v", resp, ok)
	}
	if mech.Method() != "EXTERNAL" {
		t.Errorf("Method() = %q", mech.Method())
	}
}

func TestSendAuthenticateShortPayloadSingleLine(t *testing.T) {
	c := newTestClient()
	lines := captureWrites(c, func() {
		c.sendAuthenticate([]byte("short"))
	})
	if len(lines) != 1 {
		t.Fatalf("sendAuthenticate(short) wrote %d lines, want 1", len(lines))
	}
	want := base64.StdEncoding.EncodeToString([]byte("short"))
	if lines[0].Params[0] != want {
		t.Errorf("line = %q, want %q", lines[0].Params[0], want)
	}
}

func TestSendAuthenticateEmptyPayload(t *testing.T) {
	c := newTestClient()
	lines := captureWrites(c, func() {
		c.sendAuthenticate(nil)
	})
	if len(lines) != 1 || lines[0].Params[0] != "+" {
		t.Fatalf("sendAuthenticate(nil) = %#v, want single [+]", lines)
	}
}

func TestSendAuthenticateFragmentsLongPayload(t *testing.T) {
	c := newTestClient()
	payload := make([]byte, 400) // encodes to well over saslChunkSize base64 chars
	for i := range payload {
		payload[i] = byte('a' + i%26)
	}

	lines := captureWrites(c, func() {
		c.sendAuthenticate(payload)
	})

	if len(lines) < 2 {
		t.Fatalf("sendAuthenticate(long) wrote %d lines, want >= 2", len(lines))
	}

	var rebuilt strings.Builder
	for _, l := range lines {
		if l.Params[0] == "+" {
			continue
		}
		rebuilt.WriteString(l.Params[0])
	}

	decoded, err := base64.StdEncoding.DecodeString(rebuilt.String())
	if err != nil {
		t.Fatalf("failed to decode reassembled payload: %v", err)
	}
	if string(decoded) != string(payload) {
		t.Errorf("reassembled payload mismatch")
	}

	for _, l := range lines {
		if !l.Sensitive {
			t.Errorf("AUTHENTICATE line not marked Sensitive: %#v", l)
		}
	}
}

func TestHandleSASLChallengeResponse(t *testing.T) {
	c := newTestClient()
	c.Config.SASL = &SASLPlain{Username: "alice", Password: "hunter2"}

	lines := captureWrites(c, func() {
		handleSASL(c, Event{Command: AUTHENTICATE, Params: []string{"+"}})
	})

	if len(lines) != 1 || lines[0].Command != AUTHENTICATE {
		t.Fatalf("handleSASL challenge did not emit an AUTHENTICATE response: %#v", lines)
	}
}

func TestHandleSASLNoMechanismAborts(t *testing.T) {
	c := newTestClient()

	lines := captureWrites(c, func() {
		handleSASL(c, Event{Command: AUTHENTICATE, Params: []string{"+"}})
	})

	if len(lines) != 1 || lines[0].Params[0] != "*" {
		t.Fatalf("handleSASL with no mechanism = %#v, want abort", lines)
	}
}

func TestHandleSASLSuccessEndsNegotiation(t *testing.T) {
	c := newTestClient()

	lines := captureWrites(c, func() {
		handleSASL(c, Event{Command: RPL_SASLSUCCESS})
	})

	if len(lines) != 1 || lines[0].Command != CAP || lines[0].Params[0] != CAP_END {
		t.Fatalf("handleSASL success did not send CAP END: %#v", lines)
	}
}

func TestHandleSASLErrorEndsNegotiation(t *testing.T) {
	c := newTestClient()

	lines := captureWrites(c, func() {
		handleSASLError(c, Event{Command: ERR_SASLFAIL, Trailing: "SASL authentication failed"})
	})

	if len(lines) != 1 || lines[0].Command != CAP || lines[0].Params[0] != CAP_END {
		t.Fatalf("handleSASLError did not send CAP END: %#v", lines)
	}
}
