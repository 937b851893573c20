// Copyright (c) Liam Stanley <me@liamstanley.io>. All rights reserved. Use
// of this source code is governed by the MIT license that can be found in
// the LICENSE file.

package ircx

import (
	"fmt"
	"net"
	"time"
)

// TLSMode selects whether, and how, a connection is secured (§6).
type TLSMode int

const (
	// Plaintext never attempts TLS, STARTTLS included.
	Plaintext TLSMode = iota
	// StartTLSOptional dials in the clear and attempts a STARTTLS upgrade
	// immediately after the socket opens; a refusal or timeout falls back
	// to plaintext.
	StartTLSOptional
	// StartTLSRequired is like StartTLSOptional, but a refusal or timeout
	// fails the connection instead of falling back.
	StartTLSRequired
	// TLS dials directly over TLS, the same as the teacher's old SSL bool.
	TLS
)

func (m TLSMode) String() string {
	switch m {
	case Plaintext:
		return "Plaintext"
	case StartTLSOptional:
		return "StartTLSOptional"
	case StartTLSRequired:
		return "StartTLSRequired"
	case TLS:
		return "TLS"
	default:
		return "Unknown"
	}
}

// starttlsProbeTimeout bounds how long we wait for the server's
// RPL_STARTTLS/ERR_STARTTLS response before treating StartTLSOptional as a
// fallback-to-plaintext and StartTLSRequired as a failed connection.
const starttlsProbeTimeout = 3 * time.Second

// ErrSTARTTLSRequired is returned by newConn when Config.TLSMode is
// StartTLSRequired and the server either rejects STARTTLS or never
// responds within starttlsProbeTimeout.
type ErrSTARTTLSRequired struct {
	Err error
}

func (e *ErrSTARTTLSRequired) Error() string {
	if e.Err == nil {
		return "server did not honor required STARTTLS upgrade"
	}
	return fmt.Sprintf("server did not honor required STARTTLS upgrade: %v", e.Err)
}
func (e *ErrSTARTTLSRequired) Unwrap() error { return e.Err }

// attemptSTARTTLS writes STARTTLS on the still-plaintext wire and waits for
// RPL_STARTTLS/ERR_STARTTLS. On RPL_STARTTLS, it performs the TLS handshake
// in place and rebuilds c.io over the upgraded socket. Called from newConn,
// before any of the client's own read/send loops are running, so it talks
// to the socket directly rather than through Client.write/the event queues.
func attemptSTARTTLS(c *ircConn, conf Config) error {
	required := conf.TLSMode == StartTLSRequired

	jitterBeforeProbe()

	if _, err := c.io.WriteString(STARTTLS + string(endline)); err != nil {
		if required {
			return &ErrSTARTTLSRequired{Err: err}
		}
		return nil
	}
	if err := c.io.Flush(); err != nil {
		if required {
			return &ErrSTARTTLSRequired{Err: err}
		}
		return nil
	}

	_ = c.sock.SetReadDeadline(time.Now().Add(starttlsProbeTimeout))
	line, err := c.io.ReadString(delim)
	_ = c.sock.SetReadDeadline(time.Time{})

	if err != nil {
		if required {
			return &ErrSTARTTLSRequired{Err: err}
		}
		return nil
	}

	event, err := ParseEvent(line)
	if err != nil || event == nil {
		if required {
			return &ErrSTARTTLSRequired{Err: err}
		}
		return nil
	}

	switch event.Command {
	case RPL_STARTTLS:
		var tlsConn net.Conn = tlsHandshake(c.sock, conf.TLSConfig, conf.Server, true)
		c.sock = tlsConn
		c.newReadWriter()
		return nil
	case ERR_STARTTLS:
		if required {
			return &ErrSTARTTLSRequired{Err: &ErrEvent{Event: event}}
		}
		return nil
	default:
		// Unexpected reply; treat like a refusal rather than blocking
		// registration on it.
		if required {
			return &ErrSTARTTLSRequired{}
		}
		return nil
	}
}
