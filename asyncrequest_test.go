// Copyright (c) Liam Stanley <me@liamstanley.io>. All rights reserved. Use
// of this source code is governed by the MIT license that can be found in
// the LICENSE file.

package ircx

import (
	"context"
	"testing"
	"time"
)

func TestAsyncRequestsDispatchReply(t *testing.T) {
	a := newAsyncRequests()
	req := a.register([]string{RPL_ENDOFWHO}, []string{ERR_NOSUCHSERVER}, nil)

	select {
	case <-req.Done():
		t.Fatal("request resolved before a matching event arrived")
	default:
	}

	a.dispatch(Event{Command: RPL_ENDOFWHO, Params: []string{"me", "#channel"}})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	event, err := req.Wait(ctx)
	if err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if event.Command != RPL_ENDOFWHO {
		t.Errorf("resolved event = %#v", event)
	}
}

func TestAsyncRequestsDispatchError(t *testing.T) {
	a := newAsyncRequests()
	req := a.register([]string{RPL_ENDOFWHOIS}, []string{ERR_NOSUCHNICK}, nil)

	a.dispatch(Event{Command: ERR_NOSUCHNICK, Params: []string{"me", "ghost"}})

	event, err := req.Wait(context.Background())
	if err == nil {
		t.Fatalf("expected an AsyncRequestError, got nil (event=%#v)", event)
	}
	if _, ok := err.(*AsyncRequestError); !ok {
		t.Errorf("err = %T, want *AsyncRequestError", err)
	}
}

func TestAsyncRequestsMatchPredicate(t *testing.T) {
	a := newAsyncRequests()
	req := a.register([]string{RPL_ENDOFWHOIS}, nil, func(e Event) bool {
		return e.Param(1) == "alice"
	})

	// A reply for a different, concurrent WHOIS must not resolve this one.
	a.dispatch(Event{Command: RPL_ENDOFWHOIS, Params: []string{"me", "bob"}})
	select {
	case <-req.Done():
		t.Fatal("resolved by a non-matching nick")
	default:
	}

	a.dispatch(Event{Command: RPL_ENDOFWHOIS, Params: []string{"me", "alice"}})
	if _, err := req.Wait(context.Background()); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
}

func TestAsyncRequestsDisconnectResolvesPending(t *testing.T) {
	a := newAsyncRequests()
	req := a.register([]string{RPL_ENDOFWHO}, nil, nil)

	a.disconnect(ReasonPingTimeout, nil)

	_, err := req.Wait(context.Background())
	de, ok := err.(*AsyncRequestDisconnectedError)
	if !ok {
		t.Fatalf("err = %T, want *AsyncRequestDisconnectedError", err)
	}
	if de.Reason != ReasonPingTimeout {
		t.Errorf("Reason = %v, want ReasonPingTimeout", de.Reason)
	}
}

func TestAsyncRequestFirstResolveWins(t *testing.T) {
	req := &AsyncRequest{done: make(chan struct{})}

	req.resolve(&Event{Command: "A"}, nil)
	req.resolve(&Event{Command: "B"}, AsyncTimeoutError)

	event, err := req.Wait(context.Background())
	if err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if event.Command != "A" {
		t.Errorf("resolved event = %#v, want first resolve to win", event)
	}
}

func TestAsyncRequestWaitContextCanceled(t *testing.T) {
	req := &AsyncRequest{done: make(chan struct{})}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := req.Wait(ctx); err != ctx.Err() {
		t.Errorf("Wait() error = %v, want context.Canceled", err)
	}
}

func TestHandleAsyncDispatchWiresClientRegistry(t *testing.T) {
	c := newTestClient()
	req := c.asyncReqs.register([]string{RPL_ENDOFNAMES}, nil, nil)

	handleAsyncDispatch(c, Event{Command: RPL_ENDOFNAMES, Params: []string{"me", "#channel"}})

	select {
	case <-req.Done():
	default:
		t.Fatal("handleAsyncDispatch did not resolve the registered request")
	}
}
