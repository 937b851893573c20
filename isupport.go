// Copyright (c) Liam Stanley <me@liamstanley.io>. All rights reserved. Use
// of this source code is governed by the MIT license that can be found in
// the LICENSE file.

package ircx

import (
	"strconv"

	cmap "github.com/orcaman/concurrent-map"
)

// ISupport is a typed snapshot of the RPL_ISUPPORT (005) tokens the server
// has advertised. It's built from state.serverOptions on every
// Client.ISupport() call, so it reflects the union of everything seen so
// far on this connection (§4.4).
type ISupport struct {
	// CaseMapping is the folding rule the server uses for nick/channel
	// equality. Defaults to CaseMappingRFC1459 until advertised otherwise.
	CaseMapping CaseMapping
	// Network is the display name of the network, if advertised.
	Network string
	// ChanTypes lists the characters that may prefix a channel name (e.g.
	// "#&").
	ChanTypes string
	// ChanModes is the raw CHANMODES value (four comma-separated groups: list,
	// always-param, param-on-set, never-param). See modes.go's chanModes.
	ChanModes string
	// Prefix is the raw PREFIX value (e.g. "(ov)@+"). See modes.go's
	// parsePrefixes.
	Prefix string
	// NickLen is the maximum nickname length the server accepts, 0 if
	// unspecified.
	NickLen int
	// ChannelLen is the maximum channel name length, 0 if unspecified.
	ChannelLen int
	// TopicLen is the maximum topic length, 0 if unspecified.
	TopicLen int
	// KickLen is the maximum KICK reason length, 0 if unspecified.
	KickLen int
	// AwayLen is the maximum AWAY message length, 0 if unspecified.
	AwayLen int
	// Modes is the maximum number of channel modes with parameters that can
	// be set in a single MODE command, 0 if unspecified.
	Modes int
	// MaxTargets is the maximum number of comma-separated targets accepted
	// by PRIVMSG/NOTICE, 0 if unspecified.
	MaxTargets int
	// Monitor is the maximum number of MONITOR targets the server will
	// track, 0 if MONITOR isn't supported.
	Monitor int
	// WatchSupported reports whether the server advertises the legacy WATCH
	// extension (used as the Monitor fallback; see monitor.go).
	WatchSupported bool
	// ExtBan is the raw EXTBAN value (ban-exception prefix syntax), empty if
	// unsupported.
	ExtBan string
	// Raw holds every ISUPPORT token this connection has seen, keyed by
	// name, value as advertised (possibly empty for boolean-style tokens).
	Raw map[string]string
}

func isupportInt(raw map[string]string, key string) int {
	v, ok := raw[key]
	if !ok {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}

// buildISupport snapshots state.serverOptions into a typed ISupport value.
func (s *state) buildISupport() *ISupport {
	raw := make(map[string]string, s.serverOptions.Count())
	for entry := range s.serverOptions.IterBuffered() {
		if v, ok := entry.Val.(string); ok {
			raw[entry.Key] = v
		}
	}

	_, monitorSupported := raw["MONITOR"]
	_, watchSupported := raw["WATCH"]

	is := &ISupport{
		CaseMapping:    ParseCaseMapping(raw["CASEMAPPING"]),
		Network:        raw["NETWORK"],
		ChanTypes:      raw["CHANTYPES"],
		ChanModes:      raw["CHANMODES"],
		Prefix:         raw["PREFIX"],
		NickLen:        isupportInt(raw, "NICKLEN"),
		ChannelLen:     isupportInt(raw, "CHANNELLEN"),
		TopicLen:       isupportInt(raw, "TOPICLEN"),
		KickLen:        isupportInt(raw, "KICKLEN"),
		AwayLen:        isupportInt(raw, "AWAYLEN"),
		Modes:          isupportInt(raw, "MODES"),
		MaxTargets:     isupportInt(raw, "MAXTARGETS"),
		ExtBan:         raw["EXTBAN"],
		WatchSupported: watchSupported,
		Raw:            raw,
	}
	if monitorSupported {
		is.Monitor = isupportInt(raw, "MONITOR")
	}

	return is
}

// ISupport returns a typed snapshot of every RPL_ISUPPORT token seen so far
// on this connection.
func (c *Client) ISupport() *ISupport {
	return c.state.buildISupport()
}

// rehashCaseMapping is called whenever a fresh RPL_ISUPPORT line changes the
// CASEMAPPING token. It re-keys state.channels/state.users under the new
// mapping; if two existing entries fold to the same key (a genuinely
// malicious or broken server), the connection is torn down with
// ReasonCaseMappingCollision rather than silently merging two identities
// (§4.9).
func (s *state) rehashCaseMapping(next CaseMapping) {
	prev, _ := s.caseMapping.Load().(CaseMapping)
	if prev == next {
		return
	}

	if err := rekeyConcurrentMap(&s.channels, prev, next); err != nil {
		s.caseMapping.Store(next)
		s.client.fatal(ReasonCaseMappingCollision, err)
		return
	}
	if err := rekeyConcurrentMap(&s.users, prev, next); err != nil {
		s.caseMapping.Store(next)
		s.client.fatal(ReasonCaseMappingCollision, err)
		return
	}

	s.caseMapping.Store(next)
}

// rekeyConcurrentMap rebuilds cm so every entry is keyed by next.Fold of its
// original (prev-folded) key, returning a *DuplicateKeyError if two entries
// collide under next. CaseMapping folding is lossy (it only ever
// uppercases), so re-folding the already-folded key under the new mapping
// is the best approximation available without storing original names
// out-of-band; it's exact for every name that doesn't contain {}|^~.
func rekeyConcurrentMap(cm *cmap.ConcurrentMap, prev, next CaseMapping) error {
	type entry struct {
		key string
		val interface{}
	}

	old := make([]entry, 0, cm.Count())
	for item := range cm.IterBuffered() {
		old = append(old, entry{key: item.Key, val: item.Val})
	}

	seen := make(map[string]bool, len(old))
	rebuilt := cmap.New()
	for _, e := range old {
		newKey := next.Fold(e.key)
		if seen[newKey] {
			return &DuplicateKeyError{Name: newKey}
		}
		seen[newKey] = true
		rebuilt.Set(newKey, e.val)
	}

	*cm = rebuilt
	return nil
}
