// Copyright (c) Liam Stanley <me@liamstanley.io>. All rights reserved. Use
// of this source code is governed by the MIT license that can be found in
// the LICENSE file.

package ircx

import (
	"errors"
	"testing"
)

func TestDisconnectReasonString(t *testing.T) {
	tests := []struct {
		reason DisconnectReason
		want   string
	}{
		{ReasonUnknown, "Unknown"},
		{ReasonClientDisconnected, "ClientDisconnected"},
		{ReasonQuit, "Quit"},
		{ReasonPingTimeout, "PingTimeout"},
		{ReasonServerDisconnected, "ServerDisconnected"},
		{ReasonException, "Exception"},
		{ReasonTLSAuthenticationFailed, "TlsAuthenticationFailed"},
		{ReasonSASLAuthenticationFailed, "SaslAuthenticationFailed"},
		{ReasonCaseMappingCollision, "CaseMappingCollision"},
		{DisconnectReason(99), "Unknown"},
	}
	for _, tt := range tests {
		if got := tt.reason.String(); got != tt.want {
			t.Errorf("DisconnectReason(%d).String() = %q, want %q", tt.reason, got, tt.want)
		}
	}
}

func TestAsyncRequestDisconnectedErrorUnwrap(t *testing.T) {
	cause := errors.New("boom")
	err := &AsyncRequestDisconnectedError{Reason: ReasonPingTimeout, Cause: cause}

	if !errors.Is(err, cause) {
		t.Errorf("errors.Is(err, cause) = false, want true")
	}
	if got := err.Error(); got == "" {
		t.Errorf("Error() returned empty string")
	}
}

func TestAsyncRequestErrorMessage(t *testing.T) {
	e := &Event{Command: ERR_NOSUCHNICK, Params: []string{"me", "ghost"}, Trailing: "No such nick"}
	err := &AsyncRequestError{Event: e}
	if err.Error() == "" {
		t.Errorf("Error() returned empty string")
	}

	empty := &AsyncRequestError{}
	if empty.Error() == "" {
		t.Errorf("Error() on nil Event returned empty string")
	}
}

func TestDuplicateKeyError(t *testing.T) {
	err := &DuplicateKeyError{Name: "#CHANNEL"}
	if err.Error() == "" {
		t.Errorf("Error() returned empty string")
	}
}

func TestErrInvalidConfigUnwrap(t *testing.T) {
	inner := errors.New("bad nick")
	err := &ErrInvalidConfig{Conf: Config{}, err: inner}
	if !errors.Is(err, inner) {
		t.Errorf("errors.Is(err, inner) = false, want true")
	}
}
