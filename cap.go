// Copyright (c) Liam Stanley <me@liamstanley.io>. All rights reserved. Use
// of this source code is governed by the MIT license that can be found in
// the LICENSE file.

package ircx

import (
	"strings"
)

var possibleCap = map[string][]string{
	"account-notify":    nil,
	"account-tag":       nil,
	"away-notify":       nil,
	"batch":             nil,
	"cap-notify":        nil,
	"chghost":           nil,
	"extended-join":     nil,
	"message-tags":      nil,
	"multi-prefix":      nil,
	"userhost-in-names": nil,
	// sasl, sts, and tls drive the client-side lifecycle FSM (§6): ACKing
	// sasl hands control to the SASL sub-FSM (sasl.go) before CAP END is
	// sent, and sts is inspected directly off CAP LS values rather than
	// REQed (see handleCAP and evaluateSTSPolicy in sts.go). tls is REQed
	// like any other capability when the server offers it.
	"sasl": nil,
	"sts":  nil,
	"tls":  nil,
}

func (c *Client) listCAP() error {
	if !c.Config.disableTracking {
		if err := c.write(&Event{Command: CAP, Params: []string{CAP_LS, "302"}}); err != nil {
			return err
		}
	}

	return nil
}

func possibleCapList(c *Client) map[string][]string {
	out := make(map[string][]string)

	for k := range c.Config.SupportedCaps {
		out[k] = c.Config.SupportedCaps[k]
	}

	for k := range possibleCap {
		out[k] = possibleCap[k]
	}

	return out
}

func parseCap(raw string) map[string][]string {
	out := make(map[string][]string)
	parts := strings.Split(raw, " ")

	var val int

	for i := 0; i < len(parts); i++ {
		val = strings.IndexByte(parts[i], prefixTagValue) // =

		// No value splitter, or has splitter but no trailing value.
		if val < 1 || len(parts[i]) < val+1 {
			// The capability doesn't contain a value.
			out[parts[i]] = []string{}
			continue
		}

		out[parts[i][:val]] = strings.Split(parts[i][val+1:], ",")
	}

	return out
}

// handleCAP attempts to find out what IRCv3 capabilities the server supports.
// This will lock further registration until we have acknowledged the
// capabilities.
func handleCAP(c *Client, e Event) {
	if len(e.Params) >= 2 && (e.Params[1] == CAP_NEW || e.Params[1] == CAP_DEL) {
		c.listCAP()
		return
	}

	// We can assume there was a failure attempting to enable a capability.
	if len(e.Params) == 2 && e.Params[1] == CAP_NAK {
		// Let the server know that we're done.
		c.write(&Event{Command: CAP, Params: []string{CAP_END}})
		return
	}

	possible := possibleCapList(c)

	if len(e.Params) >= 2 && len(e.Trailing) > 1 && e.Params[1] == CAP_LS {
		c.setState(StateCapabilityNegotiating)

		caps := parseCap(e.Trailing)

		// sts is informational metadata, not a capability we REQ/ACK (§4.9).
		if sts, ok := caps["sts"]; ok {
			c.evaluateSTSPolicy(sts)
		}

		c.state.Lock()

		for k := range caps {
			if k == "sts" {
				continue
			}

			if _, ok := possible[k]; !ok {
				continue
			}

			if len(possible[k]) == 0 || len(caps[k]) == 0 {
				c.state.tmpCap = append(c.state.tmpCap, k)
				continue
			}

			var contains bool
			for i := 0; i < len(caps[k]); i++ {
				for j := 0; j < len(possible[k]); j++ {
					if caps[k][i] == possible[k][j] {
						// Assume we have a matching split value.
						contains = true
						break
					}

					if contains {
						break
					}
				}

				if contains {
					break
				}
			}

			if !contains {
				continue
			}

			c.state.tmpCap = append(c.state.tmpCap, k)
		}
		c.state.Unlock()

		// Indicates if this is a multi-line LS. (2 args means it's the
		// last LS).
		if len(e.Params) == 2 {
			// If we support no caps, just ack the CAP message and END.
			if len(c.state.tmpCap) == 0 {
				c.write(&Event{Command: CAP, Params: []string{CAP_END}})
				return
			}

			// Let them know which ones we'd like to enable.
			c.write(&Event{Command: CAP, Params: []string{CAP_REQ}, Trailing: strings.Join(c.state.tmpCap, " ")})

			// Re-initialize the tmpCap, so if we get multiple 'CAP LS' requests
			// due to cap-notify, we can re-evaluate what we can support.
			c.state.Lock()
			c.state.tmpCap = []string{}
			c.state.Unlock()
		}
	}

	if len(e.Params) == 2 && len(e.Trailing) > 1 && e.Params[1] == CAP_ACK {
		acked := strings.Split(e.Trailing, " ")

		c.state.Lock()
		if c.state.enabledCap == nil {
			c.state.enabledCap = make(map[string]bool)
		}
		var sasl bool
		for _, cp := range acked {
			c.state.enabledCap[strings.ToLower(cp)] = true
			if strings.ToLower(cp) == "sasl" {
				sasl = true
			}
		}
		c.state.Unlock()

		// If sasl was ACKed, the SASL sub-FSM owns CAP END: it's sent once
		// authentication finishes (success or failure) so registration
		// doesn't race ahead of it (§4.10, §6).
		if sasl && c.Config.SASL != nil {
			c.setState(StateSaslAuthenticating)
			c.beginSASL()
			return
		}

		// Let the server know that we're done.
		c.write(&Event{Command: CAP, Params: []string{CAP_END}})
		return
	}
}

// handleCHGHOST handles incoming IRCv3 hostname change events. CHGHOST is
// what occurs (when enabled) when a servers services change the hostname of
// a user. Traditionally, this was simply resolved with a quick QUIT and JOIN,
// however CHGHOST resolves this in a much cleaner fashion.
func handleCHGHOST(c *Client, e Event) {
	if len(e.Params) != 2 {
		return
	}

	c.state.Lock()
	users := c.state.lookupUsers("nick", e.Source.Name)

	for i := 0; i < len(users); i++ {
		users[i].Ident = e.Params[0]
		users[i].Host = e.Params[1]
	}
	c.state.Unlock()
}

// handleAWAY handles incoming IRCv3 AWAY events, for which are sent both
// when users are no longer away, or when they are away.
func handleAWAY(c *Client, e Event) {
	c.state.Lock()
	users := c.state.lookupUsers("nick", e.Source.Name)

	for i := 0; i < len(users); i++ {
		users[i].Extras.Away = e.Trailing
	}
	c.state.Unlock()
}

// handleACCOUNT handles incoming IRCv3 ACCOUNT events. ACCOUNT is sent when
// a user logs into an account, logs out of their account, or logs into a
// different account. The account backend is handled server-side, so this
// could be NickServ, X (undernet?), etc.
func handleACCOUNT(c *Client, e Event) {
	if len(e.Params) != 1 {
		return
	}

	account := e.Params[0]
	if account == "*" {
		account = ""
	}

	c.state.Lock()
	users := c.state.lookupUsers("nick", e.Source.Name)

	for i := 0; i < len(users); i++ {
		users[i].Extras.Account = account
	}
	c.state.Unlock()
}

// handleTags handles any messages that have tags that will affect state. (e.g.
// 'account' tags.)
func handleTags(c *Client, e Event) {
	if len(e.Tags) == 0 {
		return
	}

	account, ok := e.Tags.Get("account")
	if !ok {
		return
	}

	c.state.Lock()
	users := c.state.lookupUsers("nick", e.Source.Name)

	for i := 0; i < len(users); i++ {
		users[i].Extras.Account = account
	}
	c.state.Unlock()
}

