// Copyright (c) Liam Stanley <me@liamstanley.io>. All rights reserved. Use
// of this source code is governed by the MIT license that can be found in
// the LICENSE file.

package ircx

import (
	"fmt"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/htmlindex"
)

// resolveEncoding maps a Config.Encoding name to a golang.org/x/text
// encoding.Encoding. Empty names resolve to encoding.Nop (no transcoding,
// the wire bytes are passed through as UTF-8/ASCII verbatim). Names are
// looked up against the WHATWG encoding registry first (covers "utf-8",
// "windows-1252", "iso-8859-1", and similar aliases IRC networks commonly
// advertise), falling back to golang.org/x/text/encoding/charmap's IANA
// name table for legacy single-byte sets WHATWG doesn't register.
func resolveEncoding(name string) (encoding.Encoding, error) {
	if name == "" {
		return encoding.Nop, nil
	}

	if enc, err := htmlindex.Get(name); err == nil {
		return enc, nil
	}

	if cm := charmap.All; len(cm) > 0 {
		for _, enc := range cm {
			if named, ok := enc.(interface{ ID() (charmap.ID, string) }); ok {
				if _, ianaName := named.ID(); ianaName == name {
					return enc, nil
				}
			}
		}
	}

	return nil, fmt.Errorf("ircx: unknown encoding %q", name)
}
