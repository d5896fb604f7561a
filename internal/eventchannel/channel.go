// Package eventchannel implements the unbounded multi-producer,
// single-consumer priority queue of batches described in spec.md §4.3:
// FIFO within a priority tier, with priority batches pre-empting
// background ones at batch boundaries only (never mid-batch). A pair
// of Go channels plus select cannot express that fairness rule —
// select has no way to say "drain priority fully before touching
// background" — so this is two plain slices guarded by one
// sync.Mutex/sync.Cond, the same shape as the teacher's
// internal/rooms.Manager register/unregister queues but adapted to
// priority semantics the teacher never needed.
package eventchannel

import (
	"context"
	"sync"

	"github.com/roomyhq/spacepeer/internal/schema"
)

// Priority tags a batch's queue. Priority batches are always drained
// before any Background batch is popped.
type Priority int

const (
	Background Priority = iota
	PriorityHigh
)

// Batch is one unit of work handed to the Materializer, mirroring the
// wire shape from spec.md §4.2's subscribe() batches.
type Batch struct {
	BatchID    schema.ID
	Stream     schema.StreamID
	Events     []schema.Event
	IsBackfill bool
	Priority   Priority
}

// Channel is the unbounded priority queue. The zero value is not
// usable; construct with New.
type Channel struct {
	mu         sync.Mutex
	cond       *sync.Cond
	priority   []Batch
	background []Batch
	closed     bool
}

// New constructs an empty Channel ready for concurrent Push/Pop.
func New() *Channel {
	c := &Channel{}
	c.cond = sync.NewCond(&c.mu)
	return c
}

// Push enqueues a batch. Safe for concurrent use by multiple
// producers (one per subscribed stream).
func (c *Channel) Push(b Batch) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	if b.Priority == PriorityHigh {
		c.priority = append(c.priority, b)
	} else {
		c.background = append(c.background, b)
	}
	c.cond.Signal()
}

// Pop blocks until a batch is available, ctx is canceled, or the
// channel is closed. It always prefers the priority queue: a
// background batch is only returned once the priority queue is empty,
// and a batch already popped is never re-evaluated mid-flight, so a
// long background batch is never interrupted partway through.
func (c *Channel) Pop(ctx context.Context) (Batch, bool) {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			c.mu.Lock()
			c.cond.Broadcast()
			c.mu.Unlock()
		case <-done:
		}
	}()

	c.mu.Lock()
	defer c.mu.Unlock()
	for {
		if len(c.priority) > 0 {
			b := c.priority[0]
			c.priority = c.priority[1:]
			return b, true
		}
		if len(c.background) > 0 {
			b := c.background[0]
			c.background = c.background[1:]
			return b, true
		}
		if c.closed {
			return Batch{}, false
		}
		if ctx.Err() != nil {
			return Batch{}, false
		}
		c.cond.Wait()
	}
}

// Close wakes any blocked Pop with ok=false and rejects further
// Pushes. Idempotent.
func (c *Channel) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.cond.Broadcast()
}

// Len returns the total number of queued batches across both
// priorities, for diagnostics and tests.
func (c *Channel) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.priority) + len(c.background)
}
