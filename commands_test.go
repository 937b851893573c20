// Copyright (c) Liam Stanley <me@liamstanley.io>. All rights reserved. Use
// of this source code is governed by the MIT license that can be found in
// the LICENSE file.

package ircx

import (
	"context"
	"testing"
	"time"
)

func TestWhoReturnsAsyncRequestResolvedByEndOfWho(t *testing.T) {
	c := newTestClient()

	var req *AsyncRequest
	lines := captureWrites(c, func() {
		var err error
		req, err = c.Cmd.Who("#channel")
		if err != nil {
			t.Fatalf("Who() error: %v", err)
		}
	})

	if len(lines) != 1 || lines[0].Command != WHO {
		t.Fatalf("lines = %#v, want a single WHO", lines)
	}

	// A reply for a different target must not resolve this request.
	c.asyncReqs.dispatch(Event{Command: RPL_ENDOFWHO, Params: []string{"me", "#other"}, Trailing: "End of /WHO list"})
	select {
	case <-req.Done():
		t.Fatal("resolved by an unrelated WHO reply")
	default:
	}

	c.asyncReqs.dispatch(Event{Command: RPL_ENDOFWHO, Params: []string{"me", "#channel"}, Trailing: "End of /WHO list"})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if _, err := req.Wait(ctx); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
}

func TestWhoInvalidTarget(t *testing.T) {
	c := newTestClient()
	if _, err := c.Cmd.Who("not a valid target!!"); err == nil {
		t.Fatal("Who() with an invalid target returned nil error")
	}
}

func TestWhoisReturnsAsyncRequestResolvedByEndOfWhois(t *testing.T) {
	c := newTestClient()

	var req *AsyncRequest
	captureWrites(c, func() {
		var err error
		req, err = c.Cmd.Whois("alice")
		if err != nil {
			t.Fatalf("Whois() error: %v", err)
		}
	})

	c.asyncReqs.dispatch(Event{Command: RPL_ENDOFWHOIS, Params: []string{"me", "alice"}, Trailing: "End of /WHOIS list"})

	if _, err := req.Wait(context.Background()); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
}

func TestWhoisErrNoSuchNickResolvesWithError(t *testing.T) {
	c := newTestClient()

	var req *AsyncRequest
	captureWrites(c, func() {
		var err error
		req, err = c.Cmd.Whois("ghost")
		if err != nil {
			t.Fatalf("Whois() error: %v", err)
		}
	})

	c.asyncReqs.dispatch(Event{Command: ERR_NOSUCHNICK, Params: []string{"me", "ghost"}, Trailing: "No such nick"})

	if _, err := req.Wait(context.Background()); err == nil {
		t.Fatal("Wait() error = nil, want AsyncRequestError")
	}
}

func TestJoinReturnsAsyncRequestResolvedByEndOfNames(t *testing.T) {
	c := newTestClient()

	var req *AsyncRequest
	lines := captureWrites(c, func() {
		var err error
		req, err = c.Cmd.Join("#channel")
		if err != nil {
			t.Fatalf("Join() error: %v", err)
		}
	})
	if len(lines) != 1 || lines[0].Command != JOIN {
		t.Fatalf("lines = %#v, want a single JOIN", lines)
	}

	c.asyncReqs.dispatch(Event{Command: RPL_ENDOFNAMES, Params: []string{"me", "#channel"}, Trailing: "End of /NAMES list"})

	if _, err := req.Wait(context.Background()); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
}

func TestJoinKeyResolvedByJoinFailure(t *testing.T) {
	c := newTestClient()

	var req *AsyncRequest
	captureWrites(c, func() {
		var err error
		req, err = c.Cmd.JoinKey("#private", "secret")
		if err != nil {
			t.Fatalf("JoinKey() error: %v", err)
		}
	})

	c.asyncReqs.dispatch(Event{Command: ERR_BADCHANNELKEY, Params: []string{"me", "#private"}, Trailing: "Cannot join channel (+k)"})

	if _, err := req.Wait(context.Background()); err == nil {
		t.Fatal("Wait() error = nil, want AsyncRequestError")
	}
}

func TestJoinInvalidChannel(t *testing.T) {
	c := newTestClient()
	if _, err := c.Cmd.Join("not-a-channel"); err == nil {
		t.Fatal("Join() with an invalid channel returned nil error")
	}
}
