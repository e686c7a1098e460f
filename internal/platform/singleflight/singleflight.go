// Package singleflight coalesces concurrent executions of a keyed
// operation: the first caller starts the work, later callers join the
// in-flight call and share its result. Used around lazy initialization
// that must happen exactly once per key, such as protection-key creation.
package singleflight

import (
	"context"
	"sync"
)

type Group struct {
	mu    sync.Mutex
	calls map[string]*call
}

type call struct {
	cancel  context.CancelFunc
	done    chan struct{}
	joiners int
	val     any
	err     error
}

// Do runs fn for key, or joins a run already in flight, and returns the
// shared result. fn executes on its own goroutine under a context detached
// from any single caller: a joiner whose ctx ends gets ctx.Err() while fn
// keeps running for the remaining joiners. Only when the last joiner has
// left is fn's context cancelled. The registry entry is removed when fn
// returns, success or failure.
func (g *Group) Do(ctx context.Context, key string, fn func(context.Context) (any, error)) (any, error) {
	g.mu.Lock()
	if g.calls == nil {
		g.calls = make(map[string]*call)
	}
	c, ok := g.calls[key]
	if !ok {
		runCtx, cancel := context.WithCancel(context.Background())
		c = &call{cancel: cancel, done: make(chan struct{})}
		g.calls[key] = c
		go g.run(key, c, runCtx, fn)
	}
	c.joiners++
	g.mu.Unlock()

	select {
	case <-c.done:
		return c.val, c.err
	case <-ctx.Done():
		g.mu.Lock()
		c.joiners--
		abandoned := c.joiners == 0
		g.mu.Unlock()
		if abandoned {
			c.cancel()
		}
		return nil, ctx.Err()
	}
}

func (g *Group) run(key string, c *call, runCtx context.Context, fn func(context.Context) (any, error)) {
	val, err := fn(runCtx)
	g.mu.Lock()
	c.val, c.err = val, err
	if g.calls[key] == c {
		delete(g.calls, key)
	}
	g.mu.Unlock()
	c.cancel()
	close(c.done)
}

// Forget drops the registry entry for key without touching a run in
// flight; a later Do starts fresh instead of joining it.
func (g *Group) Forget(key string) {
	g.mu.Lock()
	delete(g.calls, key)
	g.mu.Unlock()
}

func (g *Group) inFlight() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.calls)
}
