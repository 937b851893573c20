// Copyright (c) Liam Stanley <me@liamstanley.io>. All rights reserved. Use
// of this source code is governed by the MIT license that can be found in
// the LICENSE file.

package ircx

import (
	"context"
	"sync"
)

// AsyncRequest is a future-like handle returned by request-shaped Commands
// methods (Who, Whois, Join, ...). It resolves once a line matching the
// request's reply/error commands (and, optionally, a positional predicate)
// arrives, or when the connection drops while the request is still
// outstanding (§4.7, §6).
type AsyncRequest struct {
	done  chan struct{}
	mu    sync.Mutex
	event *Event
	err   error
}

// Done returns a channel that's closed once the request resolves, whether
// that's a matching reply, a matching error, or a disconnect.
func (r *AsyncRequest) Done() <-chan struct{} {
	return r.done
}

// Wait blocks until the request resolves or ctx is canceled, whichever
// comes first.
func (r *AsyncRequest) Wait(ctx context.Context) (*Event, error) {
	select {
	case <-r.done:
		r.mu.Lock()
		defer r.mu.Unlock()
		return r.event, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (r *AsyncRequest) resolve(event *Event, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	select {
	case <-r.done:
		// Already resolved (e.g. a reply beat a disconnect race). First
		// write wins.
		return
	default:
	}

	r.event, r.err = event, err
	close(r.done)
}

// pendingAsyncRequest binds an outstanding AsyncRequest to the set of
// commands that can resolve it and an optional positional match, used when
// multiple in-flight requests would otherwise match the same commands (e.g.
// two concurrent WHOIS calls for different nicks).
type pendingAsyncRequest struct {
	replies map[string]bool
	errs    map[string]bool
	match   func(Event) bool
	req     *AsyncRequest
}

func (p *pendingAsyncRequest) matches(e Event) (isErr, ok bool) {
	switch {
	case p.replies[e.Command]:
		isErr = false
	case p.errs[e.Command]:
		isErr = true
	default:
		return false, false
	}

	if p.match != nil && !p.match(e) {
		return false, false
	}

	return isErr, true
}

// asyncRequests is the client-wide registry of outstanding AsyncRequests
// (C7). Every inbound event is run through dispatch via an internal
// ALL_EVENTS handler registered in registerBuiltins; every request still
// pending when the connection drops is resolved via disconnect.
type asyncRequests struct {
	mu      sync.Mutex
	pending []*pendingAsyncRequest
}

func newAsyncRequests() *asyncRequests {
	return &asyncRequests{}
}

func toCommandSet(cmds []string) map[string]bool {
	set := make(map[string]bool, len(cmds))
	for _, c := range cmds {
		set[c] = true
	}
	return set
}

// register creates a new AsyncRequest that resolves when a line matching
// one of replies (success) or errs (failure) arrives. match, if non-nil,
// further restricts which lines count as a match (e.g. by target nick).
func (a *asyncRequests) register(replies, errs []string, match func(Event) bool) *AsyncRequest {
	req := &AsyncRequest{done: make(chan struct{})}

	p := &pendingAsyncRequest{
		replies: toCommandSet(replies),
		errs:    toCommandSet(errs),
		match:   match,
		req:     req,
	}

	a.mu.Lock()
	a.pending = append(a.pending, p)
	a.mu.Unlock()

	return req
}

// dispatch matches e against every outstanding request, resolving (and
// removing) each one that matches.
func (a *asyncRequests) dispatch(e Event) {
	type hit struct {
		p     *pendingAsyncRequest
		isErr bool
	}

	a.mu.Lock()
	var matched []hit
	remaining := a.pending[:0]
	for _, p := range a.pending {
		if isErr, ok := p.matches(e); ok {
			matched = append(matched, hit{p, isErr})
			continue
		}
		remaining = append(remaining, p)
	}
	a.pending = remaining
	a.mu.Unlock()

	for _, h := range matched {
		if h.isErr {
			h.p.req.resolve(&e, &AsyncRequestError{Event: &e})
		} else {
			h.p.req.resolve(&e, nil)
		}
	}
}

// disconnect resolves every outstanding request with an
// AsyncRequestDisconnectedError, used when the connection tears down with
// requests still in flight.
func (a *asyncRequests) disconnect(reason DisconnectReason, cause error) {
	a.mu.Lock()
	pending := a.pending
	a.pending = nil
	a.mu.Unlock()

	for _, p := range pending {
		p.req.resolve(nil, &AsyncRequestDisconnectedError{Reason: reason, Cause: cause})
	}
}

// handleAsyncDispatch feeds every inbound event into the client's
// asyncRequests registry.
func handleAsyncDispatch(c *Client, e Event) {
	c.asyncReqs.dispatch(e)
}
