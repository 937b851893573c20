// Copyright (c) Liam Stanley <me@liamstanley.io>. All rights reserved. Use
// of this source code is governed by the MIT license that can be found in
// the LICENSE file.

package ircx

import "testing"

func TestParseEvent(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		wantErr bool
		check   func(t *testing.T, e *Event)
	}{
		{
			name: "basic",
			line: "PRIVMSG #channel :hello world",
			check: func(t *testing.T, e *Event) {
				if e.Command != "PRIVMSG" {
					t.Errorf("command = %q", e.Command)
				}
				if len(e.Params) != 1 || e.Params[0] != "#channel" {
					t.Errorf("params = %#v", e.Params)
				}
				if e.Trailing != "hello world" {
					t.Errorf("trailing = %q", e.Trailing)
				}
			},
		},
		{
			name: "with source",
			line: ":nick!user@host PRIVMSG #channel :hi",
			check: func(t *testing.T, e *Event) {
				if e.Source == nil || e.Source.Name != "nick" || e.Source.Ident != "user" || e.Source.Host != "host" {
					t.Errorf("source = %#v", e.Source)
				}
			},
		},
		{
			name: "with tags",
			line: "@aaa=bbb;ccc PRIVMSG #channel :hi",
			check: func(t *testing.T, e *Event) {
				v, ok := e.Tags.Get("aaa")
				if !ok || v != "bbb" {
					t.Errorf("tags = %#v", e.Tags)
				}
				if _, ok := e.Tags.Get("ccc"); !ok {
					t.Errorf("expected valueless tag ccc to be present")
				}
			},
		},
		{
			name: "numeric only, no params",
			line: "PING",
			check: func(t *testing.T, e *Event) {
				if e.Command != "PING" || len(e.Params) != 0 {
					t.Errorf("event = %#v", e)
				}
			},
		},
		{
			name:    "empty line",
			line:    "",
			wantErr: true,
		},
		{
			name:    "unterminated source",
			line:    ":nick",
			wantErr: true,
		},
		{
			name:    "unterminated tags",
			line:    "@aaa=bbb",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := ParseEvent(tt.line)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseEvent(%q) error = %v, wantErr %v", tt.line, err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if tt.check != nil {
				tt.check(t, e)
			}
		})
	}
}

func TestEventBytesRoundtrip(t *testing.T) {
	e := &Event{
		Source:  &Source{Name: "nick", Ident: "user", Host: "host.com"},
		Command: "PRIVMSG",
		Params:  []string{"#channel", "1 2 3"},
	}

	line := e.String()
	back, err := ParseEvent(line)
	if err != nil {
		t.Fatalf("reparse failed: %v", err)
	}
	if back.Command != e.Command {
		t.Errorf("command mismatch: %q != %q", back.Command, e.Command)
	}
	if back.Last() != "1 2 3" {
		t.Errorf("last param not promoted to trailing: %q", back.Last())
	}
}

func TestEventLastAndParam(t *testing.T) {
	e := &Event{Command: "FOO", Params: []string{"a", "b"}, Trailing: "c"}
	if e.Last() != "c" {
		t.Errorf("Last() = %q, want %q", e.Last(), "c")
	}
	if e.Param(0) != "a" || e.Param(1) != "b" {
		t.Errorf("Param() = %q/%q", e.Param(0), e.Param(1))
	}
	if e.Param(5) != "" {
		t.Errorf("Param(5) = %q, want empty", e.Param(5))
	}

	e2 := &Event{Command: "FOO", Params: []string{"a", "b"}}
	if e2.Last() != "b" {
		t.Errorf("Last() without trailing = %q, want %q", e2.Last(), "b")
	}
}

func TestEventCopy(t *testing.T) {
	e := &Event{
		Tags:    Tags{"a": "b"},
		Source:  &Source{Name: "nick"},
		Command: "PRIVMSG",
		Params:  []string{"#channel"},
	}
	cp := e.Copy()
	cp.Params[0] = "#other"
	cp.Tags["a"] = "z"
	cp.Source.Name = "other"

	if e.Params[0] != "#channel" {
		t.Errorf("Copy() did not deep-copy Params")
	}
	if e.Tags["a"] != "b" {
		t.Errorf("Copy() did not deep-copy Tags")
	}
	if e.Source.Name != "nick" {
		t.Errorf("Copy() did not deep-copy Source")
	}
}

func TestParseSource(t *testing.T) {
	tests := []struct {
		raw    string
		name   string
		ident  string
		host   string
		server bool
	}{
		{raw: "nick!user@host.com", name: "nick", ident: "user", host: "host.com"},
		{raw: "nick@host.com", name: "nick", host: "host.com"},
		{raw: "irc.example.com", name: "irc.example.com", server: true},
	}
	for _, tt := range tests {
		s := ParseSource(tt.raw)
		if s.Name != tt.name || s.Ident != tt.ident || s.Host != tt.host {
			t.Errorf("ParseSource(%q) = %#v", tt.raw, s)
		}
		if s.IsServer() != tt.server {
			t.Errorf("ParseSource(%q).IsServer() = %v, want %v", tt.raw, s.IsServer(), tt.server)
		}
	}
}

func TestTagsEscaping(t *testing.T) {
	tags := ParseTags(`aaa=bbb\:\sbar;ccc=\\`)
	v, ok := tags.Get("aaa")
	if !ok || v != "bbb; bar" {
		t.Errorf("unescaped tag = %q, want %q", v, "bbb; bar")
	}
	v2, ok := tags.Get("ccc")
	if !ok || v2 != "\\" {
		t.Errorf("unescaped tag = %q, want backslash", v2)
	}
}
