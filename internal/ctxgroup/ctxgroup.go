// Package ctxgroup runs a set of goroutines that share a context, and
// reports the first error any of them returns. It exists so connection
// lifecycle goroutines (reader, writer, ping loop, dispatcher) all unwind
// together when any one of them fails or the caller cancels.
package ctxgroup

import (
	"context"
	"sync"
)

// Group runs functions in their own goroutines, all of which share a
// context that is canceled as soon as the first one returns (whether with
// an error or not) or the parent context is canceled.
type Group struct {
	ctx    context.Context
	cancel context.CancelFunc

	wg      sync.WaitGroup
	errOnce sync.Once
	err     error
}

// New returns a Group whose goroutines observe ctx's cancellation, plus
// their own once the group itself finishes.
func New(ctx context.Context) *Group {
	ctx, cancel := context.WithCancel(ctx)
	return &Group{ctx: ctx, cancel: cancel}
}

// Go starts fn in its own goroutine. The context passed to fn is canceled
// as soon as any goroutine in the group returns.
func (g *Group) Go(fn func(ctx context.Context) error) {
	g.wg.Add(1)
	go func() {
		defer g.wg.Done()

		err := fn(g.ctx)
		if err != nil {
			g.errOnce.Do(func() {
				g.err = err
			})
		}
		g.cancel()
	}()
}

// Wait blocks until all goroutines started with Go have returned, then
// returns the first non-nil error any of them produced, if any.
func (g *Group) Wait() error {
	g.wg.Wait()
	g.cancel()
	return g.err
}
