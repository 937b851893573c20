// Copyright (c) Liam Stanley <me@liamstanley.io>. All rights reserved. Use
// of this source code is governed by the MIT license that can be found in
// the LICENSE file.

package ircx

import (
	"encoding/base64"
)

// saslChunkSize is the maximum number of base64 characters the IRCv3 SASL
// spec allows per AUTHENTICATE line. Responses that encode to more than
// this are split across multiple lines; a final chunk that lands exactly on
// the boundary is followed by an empty "AUTHENTICATE +" so the server knows
// no more data is coming (§4.10).
const saslChunkSize = 400

// SASLMech is implemented by a supported SASL mechanism. Capability
// tracking must be enabled and the server must advertise/ACK "sasl" for
// this to ever run (§4.10, §6).
type SASLMech interface {
	// Method returns the mechanism name sent as "AUTHENTICATE <method>".
	Method() string
	// Respond computes the client's response to a server challenge.
	// challenge is the base64-decoded payload ("" for the initial,
	// argument-less challenge most mechanisms receive first). ok=false
	// aborts authentication with "AUTHENTICATE *".
	Respond(challenge []byte) (response []byte, ok bool)
}

// SASLPlain implements the "PLAIN" SASL mechanism (RFC 4616): an authzid,
// username, and password, NUL-separated.
type SASLPlain struct {
	// Identity is the authzid. Leave blank unless authenticating as a
	// different user than the one whose credentials are supplied.
	Identity string
	Username string
	Password string
}

func (s *SASLPlain) Method() string { return "PLAIN" }

func (s *SASLPlain) Respond(_ []byte) ([]byte, bool) {
	return []byte(s.Identity + "\x00" + s.Username + "\x00" + s.Password), true
}

// SASLExternal implements the "EXTERNAL" SASL mechanism: authentication is
// carried out via an already-presented client TLS certificate, and the
// AUTHENTICATE payload is just the (usually empty) authzid.
type SASLExternal struct {
	Identity string
}

func (s *SASLExternal) Method() string { return "EXTERNAL" }

func (s *SASLExternal) Respond(_ []byte) ([]byte, bool) {
	return []byte(s.Identity), true
}

// beginSASL kicks off the SASL sub-FSM once "sasl" has been ACKed by
// handleCAP. If no mechanism is configured, registration proceeds as if
// sasl was never offered.
func (c *Client) beginSASL() {
	mech := c.Config.SASL
	if mech == nil {
		c.endCapNegotiation()
		return
	}

	c.write(&Event{Command: AUTHENTICATE, Params: []string{mech.Method()}})
}

// endCapNegotiation sends CAP END and returns control to the normal
// registration flow, regardless of whether sasl was attempted.
func (c *Client) endCapNegotiation() {
	c.setState(StateRegistering)
	c.write(&Event{Command: CAP, Params: []string{CAP_END}})
}

// sendAuthenticate base64-encodes payload and emits it as one or more
// AUTHENTICATE lines, fragmenting at saslChunkSize per §4.10.
func (c *Client) sendAuthenticate(payload []byte) {
	encoded := base64.StdEncoding.EncodeToString(payload)
	if encoded == "" {
		c.write(&Event{Command: AUTHENTICATE, Params: []string{"+"}, Sensitive: true})
		return
	}

	for len(encoded) > 0 {
		chunk := encoded
		if len(chunk) > saslChunkSize {
			chunk = chunk[:saslChunkSize]
		}
		c.write(&Event{Command: AUTHENTICATE, Params: []string{chunk}, Sensitive: true})
		encoded = encoded[len(chunk):]

		if len(chunk) < saslChunkSize {
			return
		}
	}

	// Exact multiple of saslChunkSize: tell the server there's no more data.
	c.write(&Event{Command: AUTHENTICATE, Params: []string{"+"}, Sensitive: true})
}

// handleSASL drives the AUTHENTICATE challenge/response exchange and
// finalizes on RPL_SASLSUCCESS.
func handleSASL(c *Client, e Event) {
	switch e.Command {
	case AUTHENTICATE:
		mech := c.Config.SASL
		if mech == nil {
			c.write(&Event{Command: AUTHENTICATE, Params: []string{"*"}})
			return
		}

		var challenge []byte
		if len(e.Params) > 0 && e.Params[0] != "+" {
			decoded, err := base64.StdEncoding.DecodeString(e.Params[0])
			if err != nil {
				c.write(&Event{Command: AUTHENTICATE, Params: []string{"*"}})
				return
			}
			challenge = decoded
		}

		response, ok := mech.Respond(challenge)
		if !ok {
			c.write(&Event{Command: AUTHENTICATE, Params: []string{"*"}})
			return
		}

		c.sendAuthenticate(response)
	case RPL_SASLSUCCESS:
		c.debug.Print("sasl authentication succeeded")
		c.endCapNegotiation()
	}
}

// handleSASLError handles every SASL failure numeric (RPL_NICKLOCKED,
// ERR_SASLFAIL, ERR_SASLTOOLONG, ERR_SASLABORTED, RPL_SASLMECHS). Failure
// here is non-fatal to the connection: registration continues without
// authentication, matching most clients' "best effort" SASL posture. A
// handler that needs the connection to abort on failed SASL can watch for
// this via ALL_EVENTS and call Client.Close() itself.
func handleSASLError(c *Client, e Event) {
	c.debug.Printf("sasl authentication failed (%s): %s", e.Command, e.Last())
	c.endCapNegotiation()
}
