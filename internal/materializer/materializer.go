// Package materializer applies batches from the Event Channel to the
// relational store atomically, per spec.md §4.4. Grounded on the
// teacher's internal/persistence.MessageWriter (batched transactional
// writer publishing to Redis on success) but replacing its hand-rolled
// math.Pow backoff with sethvargo/go-retry, and replacing "batch
// insert" with "per-event savepoint with dependency parking and
// recursive release".
package materializer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/roomyhq/spacepeer/internal/cache"
	"github.com/roomyhq/spacepeer/internal/eventchannel"
	"github.com/roomyhq/spacepeer/internal/logging"
	"github.com/roomyhq/spacepeer/internal/schema"
	"github.com/roomyhq/spacepeer/internal/storage"

	"github.com/jackc/pgx/v5"
	"github.com/sethvargo/go-retry"
	"golang.org/x/crypto/blake2b"
)

const maxBatchRetries = 5

// Materializer consumes batches from an eventchannel.Channel and
// applies them to the store.
type Materializer struct {
	store  *storage.Store
	cache  *cache.Cache // nil disables cross-process fanout
	log    *logging.Logger
	ch     *eventchannel.Channel
	sharedWorker bool

	touched chan []string

	resMu          sync.Mutex
	eventResolvers map[schema.ID]chan EventResult
	batchResolvers map[schema.ID]chan BatchResult
}

// New constructs a Materializer. cache may be nil when sharedWorker is
// false, since a single-process deployment has no sibling to notify.
func New(store *storage.Store, c *cache.Cache, ch *eventchannel.Channel, log *logging.Logger, sharedWorker bool) *Materializer {
	return &Materializer{
		store:          store,
		cache:          c,
		log:            log,
		ch:             ch,
		sharedWorker:   sharedWorker,
		touched:        make(chan []string, 64),
		eventResolvers: make(map[schema.ID]chan EventResult),
		batchResolvers: make(map[schema.ID]chan BatchResult),
	}
}

// RegisterEventResolver returns a one-shot channel that receives ev's
// outcome the moment a commit resolves it (spec.md §4.4's "registered
// per-event resolvers"), letting a write-path caller (internal/peer's
// sendEvent) block until its write is durable without polling the
// store. Callers that never read the channel are fine: Apply's send is
// non-blocking.
func (m *Materializer) RegisterEventResolver(id schema.ID) <-chan EventResult {
	ch := make(chan EventResult, 1)
	m.resMu.Lock()
	m.eventResolvers[id] = ch
	m.resMu.Unlock()
	return ch
}

// RegisterBatchResolver is RegisterEventResolver's per-batch sibling.
func (m *Materializer) RegisterBatchResolver(batchID schema.ID) <-chan BatchResult {
	ch := make(chan BatchResult, 1)
	m.resMu.Lock()
	m.batchResolvers[batchID] = ch
	m.resMu.Unlock()
	return ch
}

func (m *Materializer) resolve(result BatchResult) {
	m.resMu.Lock()
	defer m.resMu.Unlock()

	if ch, ok := m.batchResolvers[result.BatchID]; ok {
		ch <- result
		close(ch)
		delete(m.batchResolvers, result.BatchID)
	}
	for _, ev := range result.Events {
		if ch, ok := m.eventResolvers[ev.EventID]; ok {
			ch <- ev
			close(ch)
			delete(m.eventResolvers, ev.EventID)
		}
	}
}

// Touched returns the channel the Live Query Engine subscribes to for
// in-process touched-table notifications.
func (m *Materializer) Touched() <-chan []string { return m.touched }

// Run pulls batches off the channel until ctx is canceled.
func (m *Materializer) Run(ctx context.Context) {
	for {
		batch, ok := m.ch.Pop(ctx)
		if !ok {
			return
		}
		result, err := m.Apply(ctx, batch)
		if err != nil {
			m.log.Error(ctx, "materializer: batch %s dead-lettered: %v", batch.BatchID.String(), err)
			continue
		}
		for _, e := range result.Events {
			if e.Outcome == Failed {
				m.log.Warn(ctx, "materializer: event %s failed: %s", e.EventID.String(), e.Reason)
			}
		}
	}
}

// Apply runs the per-batch algorithm from spec.md §4.4: one transaction
// per attempt with a savepoint per event, retried up to maxBatchRetries times on a store-level
// error before the batch is dead-lettered (returned as an error).
func (m *Materializer) Apply(ctx context.Context, batch eventchannel.Batch) (BatchResult, error) {
	var result BatchResult
	backoff, err := retry.NewExponential(50 * time.Millisecond)
	if err != nil {
		return BatchResult{}, fmt.Errorf("construct backoff: %w", err)
	}
	backoff = retry.WithMaxRetries(maxBatchRetries, backoff)

	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		tx, err := m.store.Begin(ctx)
		if err != nil {
			return retry.RetryableError(fmt.Errorf("begin transaction: %w", err))
		}
		defer tx.Rollback(ctx)

		r, applyErr := m.applyBatchInTx(ctx, tx, batch)
		if applyErr != nil {
			return retry.RetryableError(fmt.Errorf("apply batch: %w", applyErr))
		}
		if err := tx.Commit(ctx); err != nil {
			return retry.RetryableError(fmt.Errorf("commit: %w", err))
		}
		result = r
		return nil
	})
	if err != nil {
		return BatchResult{}, fmt.Errorf("batch %s: %w", batch.BatchID, err)
	}

	m.resolve(result)

	if len(result.TouchedTables) > 0 {
		select {
		case m.touched <- result.TouchedTables:
		default:
		}
		if m.sharedWorker && m.cache != nil {
			if err := m.cache.PublishTouchedTables(ctx, result.TouchedTables); err != nil {
				m.log.Warn(ctx, "materializer: failed to publish touched tables: %v", err)
			}
		}
	}
	return result, nil
}

func (m *Materializer) applyBatchInTx(ctx context.Context, tx pgx.Tx, batch eventchannel.Batch) (BatchResult, error) {
	result := BatchResult{BatchID: batch.BatchID}
	touchedSet := map[string]struct{}{}

	events := append([]schema.Event(nil), batch.Events...)
	sortEventsByID(events)

	for i, ev := range events {
		outcome, reason, touched, err := m.applyOneWithSavepoint(ctx, tx, ev, i)
		if err != nil {
			return BatchResult{}, err
		}
		result.Events = append(result.Events, EventResult{EventID: ev.ID, Outcome: outcome, Reason: reason})
		for _, t := range touched {
			touchedSet[t] = struct{}{}
		}
	}

	result.TouchedTables = make([]string, 0, len(touchedSet))
	for t := range touchedSet {
		result.TouchedTables = append(result.TouchedTables, t)
	}
	return result, nil
}

// applyOneWithSavepoint applies a single event inside its own
// savepoint so a store-level error on one event doesn't abort events
// already applied earlier in the batch, then recursively releases any
// events parked on this one.
func (m *Materializer) applyOneWithSavepoint(ctx context.Context, tx pgx.Tx, ev schema.Event, idx int) (Outcome, string, []string, error) {
	spName := fmt.Sprintf("ev_%d", idx)
	if _, err := tx.Exec(ctx, "SAVEPOINT "+spName); err != nil {
		return Failed, "", nil, err
	}

	outcome, reason, touched, err := m.applyOne(ctx, tx, ev)
	if err != nil {
		if _, rbErr := tx.Exec(ctx, "ROLLBACK TO SAVEPOINT "+spName); rbErr != nil {
			return Failed, "", nil, rbErr
		}
		return Failed, err.Error(), nil, nil
	}
	if _, err := tx.Exec(ctx, "RELEASE SAVEPOINT "+spName); err != nil {
		return Failed, "", nil, err
	}
	return outcome, reason, touched, nil
}

func (m *Materializer) applyOne(ctx context.Context, tx pgx.Tx, ev schema.Event) (Outcome, string, []string, error) {
	deps := schema.DependenciesOf(ev)
	for _, dep := range deps {
		exists, err := entityExists(ctx, tx, dep)
		if err != nil {
			return Failed, "", nil, err
		}
		if !exists {
			encoded, encErr := schema.Encode(ev)
			if encErr != nil {
				return Failed, encErr.Error(), nil, nil
			}
			if err := storage.ParkEvent(ctx, tx, dep.Bytes(), ev.ID.Bytes(), schema.ID(ev.Stream).Bytes(), encoded); err != nil {
				return Failed, "", nil, err
			}
			return Parked, "", nil, nil
		}
	}

	proj, ok := projectors[ev.Variant]
	if !ok {
		return Failed, "unknown variant " + string(ev.Variant), nil, nil
	}
	touched, err := proj(ctx, tx, ev)
	if err != nil {
		return Failed, "", nil, err
	}

	encoded, err := schema.Encode(ev)
	if err != nil {
		return Failed, "", nil, err
	}
	hash := blake2b.Sum256(encoded)
	if err := storage.PutRawEvent(ctx, tx, hash[:], ev.ID.Bytes(), schema.ID(ev.Stream).Bytes(), encoded); err != nil {
		return Failed, "", nil, err
	}

	released, err := storage.ReleasePending(ctx, tx, ev.ID.Bytes())
	if err != nil {
		return Failed, "", nil, err
	}
	for _, pending := range released {
		parkedEv, perr := schema.Parse(pending.Encoded)
		if perr != nil {
			continue
		}
		_, _, retouched, err := m.applyOne(ctx, tx, parkedEv)
		if err != nil {
			return Failed, "", nil, err
		}
		touched = append(touched, retouched...)
	}

	return Applied, "", touched, nil
}

func entityExists(ctx context.Context, tx pgx.Tx, id schema.ID) (bool, error) {
	var exists bool
	err := tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM entities WHERE id = $1)`, id.Bytes()).Scan(&exists)
	return exists, err
}

// sortEventsByID enforces spec.md §4.4's "within a batch, events are
// applied in ascending id order" rule — ULID order is creation order,
// so this is also the natural last-writer-wins tie-break.
func sortEventsByID(events []schema.Event) {
	for i := 1; i < len(events); i++ {
		for j := i; j > 0 && events[j-1].ID.Compare(events[j].ID) > 0; j-- {
			events[j-1], events[j] = events[j], events[j-1]
		}
	}
}
