package nsworker

import (
	"context"
	"sync"
	"time"
)

// ReconnectingClient lazily constructs a T via factory and holds onto it
// across calls; any call error drops the instance so the next call
// reconstructs from scratch. Grounded on core/refresh_runner.go's
// try-then-backoff idiom, generalized to an arbitrary held resource
// instead of a single refresh operation.
type ReconnectingClient[T any] struct {
	mu        sync.Mutex
	factory   func(ctx context.Context) (T, error)
	instance  T
	live      bool
	lastError error
	lastTry   time.Time
}

// NewReconnectingClient wraps factory, which is invoked on first use and
// again any time the previous instance was dropped after a failed call.
func NewReconnectingClient[T any](factory func(ctx context.Context) (T, error)) *ReconnectingClient[T] {
	return &ReconnectingClient[T]{factory: factory}
}

// Invoke runs fn against the held instance, constructing it first if
// necessary. A non-nil error from either construction or fn drops the
// held instance so the next Invoke starts fresh.
func (c *ReconnectingClient[T]) Invoke(ctx context.Context, fn func(T) error) error {
	c.mu.Lock()
	if !c.live {
		instance, err := c.factory(ctx)
		if err != nil {
			c.lastError = err
			c.lastTry = time.Now()
			c.mu.Unlock()
			return err
		}
		c.instance = instance
		c.live = true
	}
	instance := c.instance
	c.mu.Unlock()

	if err := fn(instance); err != nil {
		c.mu.Lock()
		c.live = false
		c.lastError = err
		c.lastTry = time.Now()
		c.mu.Unlock()
		return err
	}
	return nil
}

// Reset drops the held instance unconditionally, forcing reconstruction
// on the next Invoke.
func (c *ReconnectingClient[T]) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.live = false
	var zero T
	c.instance = zero
}
