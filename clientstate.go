// Copyright (c) Liam Stanley <me@liamstanley.io>. All rights reserved. Use
// of this source code is governed by the MIT license that can be found in
// the LICENSE file.

package ircx

import "sync/atomic"

// ClientState enumerates the phases a connection moves through from dial to
// full registration (§6). It is observable via Client.State() and mirrored
// onto the handler table as a STATE_CHANGED pseudo-event so callers can
// react without polling.
type ClientState uint32

const (
	StateDisconnected ClientState = iota
	StateConnecting
	StateTLSHandshaking
	StateRegistering
	StateCapabilityNegotiating
	StateSaslAuthenticating
	StateReceivingServerInfo
	StateOnline
)

func (s ClientState) String() string {
	switch s {
	case StateDisconnected:
		return "Disconnected"
	case StateConnecting:
		return "Connecting"
	case StateTLSHandshaking:
		return "TlsHandshaking"
	case StateRegistering:
		return "Registering"
	case StateCapabilityNegotiating:
		return "CapabilityNegotiating"
	case StateSaslAuthenticating:
		return "SaslAuthenticating"
	case StateReceivingServerInfo:
		return "ReceivingServerInfo"
	case StateOnline:
		return "Online"
	default:
		return "Unknown"
	}
}

// STATE_CHANGED is an internal pseudo-event (see INITIALIZED/CONNECTED/etc.
// in numerics.go) synthesized every time Client.setState transitions the
// connection to a new ClientState. Event.Params[0] carries the new state's
// String().
const STATE_CHANGED = "IRCX_STATE_CHANGED"

// State returns the client's current position in the connection lifecycle
// FSM (§6). Safe to call from any goroutine, connected or not.
func (c *Client) State() ClientState {
	return ClientState(atomic.LoadUint32(&c.atom))
}

// setState transitions the client to s and notifies handlers registered on
// STATE_CHANGED and ALL_EVENTS. A no-op if s is already the current state,
// so repeated calls (e.g. multiple CAP LS lines) don't spam handlers.
func (c *Client) setState(s ClientState) {
	if ClientState(atomic.SwapUint32(&c.atom, uint32(s))) == s {
		return
	}

	c.debug.Printf("state -> %s", s)
	c.RunHandlers(&Event{Command: STATE_CHANGED, Params: []string{s.String()}})
}
