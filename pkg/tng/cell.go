package tng

import (
	"context"
	"sync"
)

type fetchState int

const (
	notFetched fetchState = iota
	fetched
)

// cell holds a lazily fetched value. The first successful load is kept for
// the cell's lifetime; a failed load leaves the cell empty so the next
// caller retries. Concurrent callers wait for the load in progress rather
// than issuing their own, and stop waiting when their own ctx is done.
type cell[T any] struct {
	mu      sync.Mutex
	state   fetchState
	val     T
	loading chan struct{}
}

func (c *cell[T]) get(ctx context.Context, load func(context.Context) (T, error)) (T, error) {
	var zero T
	for {
		c.mu.Lock()
		if c.state == fetched {
			v := c.val
			c.mu.Unlock()
			return v, nil
		}
		if wait := c.loading; wait != nil {
			c.mu.Unlock()
			select {
			case <-wait:
				continue
			case <-ctx.Done():
				return zero, ctx.Err()
			}
		}
		done := make(chan struct{})
		c.loading = done
		c.mu.Unlock()

		v, err := load(ctx)

		c.mu.Lock()
		if err == nil {
			c.val = v
			c.state = fetched
		}
		c.loading = nil
		close(done)
		c.mu.Unlock()
		if err != nil {
			return zero, err
		}
		return v, nil
	}
}

func (c *cell[T]) peek() (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.val, c.state == fetched
}
