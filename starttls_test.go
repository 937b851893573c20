// Copyright (c) Liam Stanley <me@liamstanley.io>. All rights reserved. Use
// of this source code is governed by the MIT license that can be found in
// the LICENSE file.

package ircx

import (
	"bufio"
	"net"
	"testing"
)

func newTestIRCConn(sock net.Conn) *ircConn {
	c := &ircConn{sock: sock}
	c.newReadWriter()
	return c
}

func TestAttemptSTARTTLSRefusedOptionalFallsBack(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()

	go func() {
		defer server.Close()
		r := bufio.NewReader(server)
		r.ReadString('\n') // drain the STARTTLS line
		server.Write([]byte(ERR_STARTTLS + " :STARTTLS not supported\r\n"))
	}()

	c := newTestIRCConn(client)
	err := attemptSTARTTLS(c, Config{TLSMode: StartTLSOptional})
	if err != nil {
		t.Fatalf("attemptSTARTTLS(optional, refused) error = %v, want nil (fallback)", err)
	}
}

func TestAttemptSTARTTLSRefusedRequiredFails(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()

	go func() {
		defer server.Close()
		r := bufio.NewReader(server)
		r.ReadString('\n')
		server.Write([]byte(ERR_STARTTLS + " :STARTTLS not supported\r\n"))
	}()

	c := newTestIRCConn(client)
	err := attemptSTARTTLS(c, Config{TLSMode: StartTLSRequired})
	if err == nil {
		t.Fatal("attemptSTARTTLS(required, refused) error = nil, want ErrSTARTTLSRequired")
	}
	if _, ok := err.(*ErrSTARTTLSRequired); !ok {
		t.Errorf("err = %T, want *ErrSTARTTLSRequired", err)
	}
}

func TestAttemptSTARTTLSDropConnOptionalFallsBack(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()

	go func() {
		r := bufio.NewReader(server)
		r.ReadString('\n')
		server.Close() // hang up instead of answering
	}()

	c := newTestIRCConn(client)
	err := attemptSTARTTLS(c, Config{TLSMode: StartTLSOptional})
	if err != nil {
		t.Fatalf("attemptSTARTTLS(optional, dropped) error = %v, want nil (fallback)", err)
	}
}

func TestAttemptSTARTTLSDropConnRequiredFails(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()

	go func() {
		r := bufio.NewReader(server)
		r.ReadString('\n')
		server.Close()
	}()

	c := newTestIRCConn(client)
	err := attemptSTARTTLS(c, Config{TLSMode: StartTLSRequired})
	if err == nil {
		t.Fatal("attemptSTARTTLS(required, dropped) error = nil, want ErrSTARTTLSRequired")
	}
	if _, ok := err.(*ErrSTARTTLSRequired); !ok {
		t.Errorf("err = %T, want *ErrSTARTTLSRequired", err)
	}
}

func TestAttemptSTARTTLSUnexpectedReplyRequiredFails(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()

	go func() {
		defer server.Close()
		r := bufio.NewReader(server)
		r.ReadString('\n')
		server.Write([]byte("PING :hello\r\n"))
	}()

	c := newTestIRCConn(client)
	err := attemptSTARTTLS(c, Config{TLSMode: StartTLSRequired})
	if _, ok := err.(*ErrSTARTTLSRequired); !ok {
		t.Errorf("err = %T, want *ErrSTARTTLSRequired", err)
	}
}

func TestTLSModeString(t *testing.T) {
	tests := []struct {
		mode TLSMode
		want string
	}{
		{Plaintext, "Plaintext"},
		{StartTLSOptional, "StartTLSOptional"},
		{StartTLSRequired, "StartTLSRequired"},
		{TLS, "TLS"},
		{TLSMode(99), "Unknown"},
	}
	for _, tt := range tests {
		if got := tt.mode.String(); got != tt.want {
			t.Errorf("TLSMode(%d).String() = %q, want %q", tt.mode, got, tt.want)
		}
	}
}
