package livequery

import (
	"sync"
	"time"
)

// Lease is the scoped acquisition spec.md §4.5 requires: a live query
// exists only as long as its lease is held. Release tears it down
// immediately; an optional TTL tears it down even without an explicit
// Release, covering a UI tab that vanishes without cleanup.
type Lease struct {
	mu        sync.Mutex
	released  bool
	expiresAt time.Time // zero means no TTL
}

func newLease(ttl time.Duration) *Lease {
	l := &Lease{}
	if ttl > 0 {
		l.expiresAt = time.Now().Add(ttl)
	}
	return l
}

// Release marks the lease as given up. Idempotent.
func (l *Lease) Release() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.released = true
}

// Touch extends a TTL-bearing lease, so an actively-used subscription
// outlives its original deadline without the caller needing to
// recreate it.
func (l *Lease) Touch(ttl time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.expiresAt.IsZero() {
		l.expiresAt = time.Now().Add(ttl)
	}
}

// Expired reports whether the lease should be reaped: explicitly
// released, or past its TTL.
func (l *Lease) Expired() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.released {
		return true
	}
	if l.expiresAt.IsZero() {
		return false
	}
	return time.Now().After(l.expiresAt)
}
