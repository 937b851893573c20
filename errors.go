// Copyright (c) Liam Stanley <me@liamstanley.io>. All rights reserved. Use
// of this source code is governed by the MIT license that can be found in
// the LICENSE file.

package ircx

import (
	"errors"
	"fmt"
)

// ErrNotConnected is returned if a method is used when the client isn't
// connected.
var ErrNotConnected = errors.New("client is not connected to server")

// ErrConnNotTLS is returned when Client.TLSConnectionState() is called, and
// the connection to the server wasn't made with TLS.
var ErrConnNotTLS = errors.New("underlying connection is not tls")

// ErrInvalidConfig is returned when the configuration passed to the client
// is invalid.
type ErrInvalidConfig struct {
	Conf Config // Conf is the configuration that was not valid.
	err  error
}

func (e *ErrInvalidConfig) Error() string { return "invalid configuration: " + e.err.Error() }
func (e *ErrInvalidConfig) Unwrap() error { return e.err }

// MalformedLineError is returned by ParseEvent when a line cannot be parsed
// as an IRC message (empty line, unterminated tag section or source, or no
// command), and by Event.Validate when a non-last parameter would require
// the trailing escape (§4.1). The read loop logs lines that fail to parse
// to Config.Debug and drops them.
type MalformedLineError struct {
	Line   string
	Reason string
}

func (e *MalformedLineError) Error() string {
	return fmt.Sprintf("malformed line (%s): %q", e.Reason, e.Line)
}

// ErrInvalidTarget is returned by Commands methods when the supplied
// nickname, channel, or username fails basic grammar validation (see
// IsValidNick, IsValidChannel, IsValidUser) before anything is sent to the
// server.
type ErrInvalidTarget struct {
	Target string
}

func (e *ErrInvalidTarget) Error() string {
	return fmt.Sprintf("invalid target: %q", e.Target)
}

// DuplicateKeyError is returned by rekeyConcurrentMap when two existing
// channel or user names collide under the new CaseMapping. Per §4.9,
// receiving this while rehashing after a CASEMAPPING change is fatal to the
// connection (DisconnectReason = CaseMappingCollision).
type DuplicateKeyError struct {
	Name string
}

func (e *DuplicateKeyError) Error() string {
	return fmt.Sprintf("duplicate key on rehash: %q", e.Name)
}

// AsyncRequestError is the error an AsyncRequest's future resolves with
// when the server replies with an error numeric/keyword that matches the
// request (§4.7).
type AsyncRequestError struct {
	Event *Event
}

func (e *AsyncRequestError) Error() string {
	if e.Event == nil {
		return "async request failed: unknown error"
	}
	return "async request failed: " + e.Event.String()
}

// DisconnectReason enumerates why the connection most recently closed
// (§6).
type DisconnectReason int

const (
	ReasonUnknown DisconnectReason = iota
	ReasonClientDisconnected
	ReasonQuit
	ReasonPingTimeout
	ReasonServerDisconnected
	ReasonException
	ReasonTLSAuthenticationFailed
	ReasonSASLAuthenticationFailed
	ReasonCaseMappingCollision
)

func (r DisconnectReason) String() string {
	switch r {
	case ReasonClientDisconnected:
		return "ClientDisconnected"
	case ReasonQuit:
		return "Quit"
	case ReasonPingTimeout:
		return "PingTimeout"
	case ReasonServerDisconnected:
		return "ServerDisconnected"
	case ReasonException:
		return "Exception"
	case ReasonTLSAuthenticationFailed:
		return "TlsAuthenticationFailed"
	case ReasonSASLAuthenticationFailed:
		return "SaslAuthenticationFailed"
	case ReasonCaseMappingCollision:
		return "CaseMappingCollision"
	default:
		return "Unknown"
	}
}

// AsyncRequestDisconnectedError is the error every pending AsyncRequest's
// future resolves with when the connection drops while the request is
// still outstanding (§4.7, §5).
type AsyncRequestDisconnectedError struct {
	Reason DisconnectReason
	Cause  error
}

func (e *AsyncRequestDisconnectedError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("disconnected (%s): %v", e.Reason, e.Cause)
	}
	return fmt.Sprintf("disconnected (%s)", e.Reason)
}

func (e *AsyncRequestDisconnectedError) Unwrap() error { return e.Cause }

// AsyncTimeoutError is returned by Client.write when an outbound event
// cannot be queued for sending within 30 seconds. AsyncRequests have no
// deadline: a pending request completes only on a matching reply or on
// disconnect.
var AsyncTimeoutError = errors.New("async request timed out")

// ErrEvent is an error returned when the server (or library) sends an
// ERROR message response. The string returned contains the trailing
// text from the message.
type ErrEvent struct {
	Event *Event
}

func (e *ErrEvent) Error() string {
	if e.Event == nil {
		return "unknown error occurred"
	}
	return e.Event.Last()
}

// ErrSTSUpgradeFailed is an error that occurs when a connection that was
// attempted to be upgraded via a strict transport policy, failed. This
// does not necessarily indicate that STS was to blame, but the underlying
// connection failed for some reason.
type ErrSTSUpgradeFailed struct {
	Err error
}

func (e *ErrSTSUpgradeFailed) Error() string {
	return fmt.Sprintf("failed to upgrade to secure (sts) connection: %v", e.Err)
}
func (e *ErrSTSUpgradeFailed) Unwrap() error { return e.Err }

// HandlerError is the error passed to Config.RecoverFunc when a handler
// panics. It contains enough to locate and diagnose the panic without
// crashing the read loop (§7: "Handler exception: non-fatal").
type HandlerError struct {
	Event Event
	ID    string
	File  string
	Line  int
	Func  string
	Panic interface{}
	Stack []byte
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("panic during handler [%s] execution in %s:%d: %v", e.ID, e.File, e.Line, e.Panic)
}

func (e *HandlerError) String() string {
	return fmt.Sprintf("panic: %v\n\n%s", e.Panic, string(e.Stack))
}
