// Copyright (c) Liam Stanley <me@liamstanley.io>. All rights reserved. Use
// of this source code is governed by the MIT license that can be found in
// the LICENSE file.

package ircx

import (
	"testing"

	"golang.org/x/text/encoding"
)

func TestResolveEncodingEmptyIsNop(t *testing.T) {
	enc, err := resolveEncoding("")
	if err != nil {
		t.Fatalf("resolveEncoding(\"\") error: %v", err)
	}
	if enc != encoding.Nop {
		t.Errorf("resolveEncoding(\"\") = %v, want encoding.Nop", enc)
	}
}

func TestResolveEncodingKnownNames(t *testing.T) {
	names := []string{"utf-8", "iso-8859-1", "windows-1252"}
	for _, name := range names {
		if _, err := resolveEncoding(name); err != nil {
			t.Errorf("resolveEncoding(%q) error: %v", name, err)
		}
	}
}

func TestResolveEncodingUnknown(t *testing.T) {
	if _, err := resolveEncoding("not-a-real-encoding"); err == nil {
		t.Errorf("resolveEncoding(bogus) expected error, got nil")
	}
}
