// Package livequery implements spec.md §4.5's subscription registry:
// register a query against a set of watched tables, re-evaluate it
// whenever the Materializer reports a commit touching one of those
// tables, and tear it down automatically when its lease is released
// or reaped. Grounded on the teacher's internal/rooms.Manager, which
// owns a map of live subscriptions guarded by one mutex and drives
// eviction off a ticker — the same shape, applied to queries instead
// of websocket clients.
package livequery

import (
	"context"
	"sync"
	"time"

	"github.com/roomyhq/spacepeer/internal/logging"
	"github.com/roomyhq/spacepeer/internal/schema"
)

// QueryFunc executes a live query's statement against the current
// snapshot and returns its result. The engine never parses SQL itself;
// callers supply a closure over their own store handle.
type QueryFunc func(ctx context.Context) (any, error)

type subscription struct {
	id       schema.ID
	tables   map[string]struct{}
	query    QueryFunc
	resultCh chan any
	lease    *Lease
}

// Registry holds every live subscription and re-evaluates the ones a
// commit's touched tables intersect.
type Registry struct {
	mu   sync.Mutex
	subs map[schema.ID]*subscription
	log  *logging.Logger

	reapInterval time.Duration
	stopReaper   chan struct{}
}

// New constructs an empty Registry and starts its lease-reaper
// goroutine, which runs every reapInterval (spec.md §9: "runtime polls
// leases" to catch a crashed subscriber that never called Release).
func New(log *logging.Logger, reapInterval time.Duration) *Registry {
	r := &Registry{
		subs:         make(map[schema.ID]*subscription),
		log:          log,
		reapInterval: reapInterval,
		stopReaper:   make(chan struct{}),
	}
	go r.reapLoop()
	return r
}

func (r *Registry) reapLoop() {
	ticker := time.NewTicker(r.reapInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			r.reapExpired()
		case <-r.stopReaper:
			return
		}
	}
}

func (r *Registry) reapExpired() {
	r.mu.Lock()
	var expired []schema.ID
	for id, sub := range r.subs {
		if sub.lease.Expired() {
			expired = append(expired, id)
		}
	}
	r.mu.Unlock()

	for _, id := range expired {
		r.DeleteLiveQuery(id)
	}
}

// Stop halts the reaper goroutine. Registered queries are not torn
// down; callers should DeleteLiveQuery each one first if that's
// wanted.
func (r *Registry) Stop() {
	close(r.stopReaper)
}

// CreateLiveQuery registers a query over the given watched tables, runs
// it once synchronously to push the initial result, and returns its
// id, a Lease the caller must Release when done, and a receive-only
// result channel.
func (r *Registry) CreateLiveQuery(ctx context.Context, tables []string, query QueryFunc, ttl time.Duration) (schema.ID, *Lease, <-chan any, error) {
	id := schema.NewID()
	lease := newLease(ttl)

	tableSet := make(map[string]struct{}, len(tables))
	for _, t := range tables {
		tableSet[t] = struct{}{}
	}

	sub := &subscription{
		id:       id,
		tables:   tableSet,
		query:    query,
		resultCh: make(chan any, 1),
		lease:    lease,
	}

	result, err := query(ctx)
	if err != nil {
		return schema.Zero, nil, nil, err
	}
	sub.resultCh <- result

	r.mu.Lock()
	r.subs[id] = sub
	r.mu.Unlock()

	return id, lease, sub.resultCh, nil
}

// DeleteLiveQuery removes a subscription and closes its result
// channel. Safe to call more than once.
func (r *Registry) DeleteLiveQuery(id schema.ID) {
	r.mu.Lock()
	sub, ok := r.subs[id]
	if ok {
		delete(r.subs, id)
	}
	r.mu.Unlock()

	if ok {
		close(sub.resultCh)
	}
}

// OnTouchedTables is called once per materialization commit. It
// re-evaluates every subscription whose watched tables intersect
// touched, within the same call — so "consistent snapshot, visible
// within one commit" (spec.md §8) holds as long as the caller invokes
// this before acknowledging the commit to any other consumer.
func (r *Registry) OnTouchedTables(ctx context.Context, touched []string) {
	r.mu.Lock()
	var affected []*subscription
	for _, sub := range r.subs {
		if intersects(sub.tables, touched) {
			affected = append(affected, sub)
		}
	}
	r.mu.Unlock()

	for _, sub := range affected {
		result, err := sub.query(ctx)
		if err != nil {
			r.log.Warn(ctx, "livequery: re-evaluation failed for %s: %v", sub.id.String(), err)
			continue
		}
		select {
		case sub.resultCh <- result:
		default:
			// Drain the stale result so the freshest one always lands;
			// a slow subscriber only ever sees the latest snapshot, never
			// a backlog.
			select {
			case <-sub.resultCh:
			default:
			}
			sub.resultCh <- result
		}
	}
}

func intersects(tables map[string]struct{}, touched []string) bool {
	for _, t := range touched {
		if _, ok := tables[t]; ok {
			return true
		}
	}
	return false
}
