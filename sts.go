// Copyright (c) Liam Stanley <me@liamstanley.io>. All rights reserved. Use
// of this source code is governed by the MIT license that can be found in
// the LICENSE file.

package ircx

import (
	"strconv"
	"strings"
	"time"
)

// evaluateSTSPolicy inspects the "sts" token value advertised in a CAP LS
// line (e.g. "sts=duration=86400,port=6697" or "sts=duration=0" to expire an
// existing policy) and updates c.state.sts accordingly (§4.9/§6). sts is
// never REQed like a normal capability: it's informational metadata carried
// on CAP LS, so handleCAP pulls it out of the capability list before the
// generic REQ-building loop runs.
func (c *Client) evaluateSTSPolicy(values []string) {
	if c.Config.DisableSTS {
		return
	}

	var port, duration int = -1, -1
	var preload bool

	for _, tok := range values {
		kv := strings.SplitN(tok, "=", 2)
		switch kv[0] {
		case "port":
			if len(kv) == 2 {
				port, _ = strconv.Atoi(kv[1])
			}
		case "duration":
			if len(kv) == 2 {
				duration, _ = strconv.Atoi(kv[1])
			}
		case "preload":
			preload = true
		}
	}

	// duration=0 tells us to drop any persisted policy immediately.
	if duration == 0 {
		c.state.sts.reset()
		return
	}

	if port <= 0 {
		return
	}

	c.state.sts.upgradePort = port
	c.state.sts.persistenceDuration = duration
	c.state.sts.persistenceReceived = time.Now()
	c.state.sts.preload = preload

	// If we're not already connected securely, and the server just told us
	// to be, reconnect over TLS on the advertised port once this connection
	// tears down (consumed by internalConnect's "goto startConn" retry).
	if _, err := c.TLSConnectionState(); err != nil {
		c.state.sts.beginUpgrade = true
	}
}

// strictTransport is the policy store backing evaluateSTSPolicy: the
// upgrade port/duration/preload flag advertised by the server's CAP LS
// "sts" token, and whether the current connection still needs to retry
// over TLS to honor it.
type strictTransport struct {
	beginUpgrade        bool
	upgradePort         int
	persistenceDuration int
	persistenceReceived time.Time
	preload             bool
	lastFailed          time.Time
}

func (s *strictTransport) reset() {
	s.upgradePort = -1
	s.persistenceDuration = -1
	s.preload = false
}

func (s *strictTransport) expired() bool {
	return int(time.Since(s.persistenceReceived).Seconds()) > s.persistenceDuration
}

func (s *strictTransport) enabled() bool {
	return s.upgradePort > 0
}
