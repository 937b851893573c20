// Copyright (c) Liam Stanley <me@liamstanley.io>. All rights reserved. Use
// of this source code is governed by the MIT license that can be found in
// the LICENSE file.

package ircx

// CaseMapping identifies which RPL_ISUPPORT CASEMAPPING rule is in effect
// for a connection. The state's channel and user maps key their entries by
// the client's current mapping (§3, §4.2).
type CaseMapping int

const (
	// CaseMappingRFC1459 folds {}|^ onto []\~ in addition to a-z/A-Z. This
	// is the default per RFC 1459 and what most networks advertise.
	CaseMappingRFC1459 CaseMapping = iota
	// CaseMappingASCII folds only a-z onto A-Z.
	CaseMappingASCII
	// CaseMappingStrictRFC1459 folds {}| onto []\ but leaves ^~ alone.
	CaseMappingStrictRFC1459
)

// ParseCaseMapping maps an ISUPPORT CASEMAPPING token value to a
// CaseMapping, defaulting to CaseMappingRFC1459 for unrecognized values
// (per RFC 2812, rfc1459 is the IRC baseline).
func ParseCaseMapping(value string) CaseMapping {
	switch value {
	case "ascii":
		return CaseMappingASCII
	case "strict-rfc1459":
		return CaseMappingStrictRFC1459
	case "rfc1459":
		return CaseMappingRFC1459
	default:
		return CaseMappingRFC1459
	}
}

func (m CaseMapping) String() string {
	switch m {
	case CaseMappingASCII:
		return "ascii"
	case CaseMappingStrictRFC1459:
		return "strict-rfc1459"
	default:
		return "rfc1459"
	}
}

// ToUpper folds a single byte to its uppercase form under the receiver's
// mapping. Bytes outside of the mapping's lowercase range are returned
// unchanged.
func (m CaseMapping) ToUpper(c byte) byte {
	if c < 'a' || c > 'z' {
		switch m {
		case CaseMappingRFC1459:
			switch c {
			case '{':
				return '['
			case '}':
				return ']'
			case '|':
				return '\\'
			case '^':
				return '~'
			}
		case CaseMappingStrictRFC1459:
			switch c {
			case '{':
				return '['
			case '}':
				return ']'
			case '|':
				return '\\'
			}
		}
		return c
	}
	return c - 0x20
}

// Fold returns the uppercased form of s under the receiver's mapping. The
// result is suitable as a map key for case-insensitive comparisons and is
// what the state's channel and user maps use as keys.
func (m CaseMapping) Fold(s string) string {
	out := make([]byte, len(s))
	changed := false
	for i := 0; i < len(s); i++ {
		up := m.ToUpper(s[i])
		out[i] = up
		if up != s[i] {
			changed = true
		}
	}
	if !changed {
		return s
	}
	return string(out)
}

// Equal reports whether a and b are equal under the receiver's mapping.
func (m CaseMapping) Equal(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := 0; i < len(a); i++ {
		if m.ToUpper(a[i]) != m.ToUpper(b[i]) {
			return false
		}
	}
	return true
}

// ToRFC1459 is a package-level convenience wrapping CaseMappingRFC1459.Fold,
// kept for callers that only ever deal with the RFC1459 default (e.g.
// validity checks that don't depend on a live connection).
func ToRFC1459(s string) string {
	return CaseMappingRFC1459.Fold(s)
}
