package peer

import (
	"context"
	"fmt"
	"time"

	"github.com/roomyhq/spacepeer/internal/config"
	"github.com/roomyhq/spacepeer/internal/errkind"
	"github.com/roomyhq/spacepeer/internal/eventchannel"
	"github.com/roomyhq/spacepeer/internal/identity"
	"github.com/roomyhq/spacepeer/internal/logging"
	"github.com/roomyhq/spacepeer/internal/materializer"
	"github.com/roomyhq/spacepeer/internal/schema"
	"github.com/roomyhq/spacepeer/internal/storage"
	"github.com/roomyhq/spacepeer/internal/streamclient"

	"golang.org/x/crypto/blake2b"
)

// spaceConnectTimeout is spec.md §5's "single-space connection timeout
// is 30 seconds".
const spaceConnectTimeout = 30 * time.Second

// metadataSubscriptionWarning is spec.md §5's "per-metadata-
// subscription warning = 5s (logs only)".
const metadataSubscriptionWarning = 5 * time.Second

// Peer is the long-lived runtime object spec.md §9 calls for: owns the
// Session, the Roster, and the wiring to the Event Channel and
// Materializer that every subscribed stream's batches flow through.
type Peer struct {
	cfg     *config.Config
	log     *logging.Logger
	session *Session
	roster  *Roster
	ch      *eventchannel.Channel
	mat     *materializer.Materializer
	store   *storage.Store
	idp     identity.Provider

	wsURL, restURL string
}

// New constructs a Peer. wsURL/restURL address the log server's
// subscribe and REST endpoints; every stream's Client is built against
// the same server.
func New(cfg *config.Config, log *logging.Logger, session *Session, ch *eventchannel.Channel, mat *materializer.Materializer, store *storage.Store, idp identity.Provider, wsURL, restURL string) *Peer {
	return &Peer{
		cfg:     cfg,
		log:     log,
		session: session,
		roster:  NewRoster(),
		ch:      ch,
		mat:     mat,
		store:   store,
		idp:     idp,
		wsURL:   wsURL,
		restURL: restURL,
	}
}

// Session returns the peer's auth state machine.
func (p *Peer) Session() *Session { return p.session }

// Roster returns the peer's stream roster.
func (p *Peer) Roster() *Roster { return p.roster }

// personalStreamID derives the deterministic rkey spec.md §4.6
// describes ("identified by a deterministic rkey (schema version)")
// as a stream id: a blake2b hash of the user DID and schema version
// truncated to the 16 bytes an ID requires. Unlike NewID this carries
// no timestamp; it is never compared for ordering, only looked up by
// value, so that's fine.
func personalStreamID(userDID schema.UserDID, schemaVersion string) schema.StreamID {
	h := blake2b.Sum256([]byte("space.roomy.personalStream." + schemaVersion + ":" + string(userDID)))
	id, _ := schema.IDFromBytes(h[:16])
	return schema.StreamID(id)
}

// EnsurePersonalStream connects the user's personal stream, creating
// its identity-provider record if absent, and backfills it fully from
// index 0 at priority (spec.md §4.6). It blocks until the personal
// stream's backfill completes, since the roster's other streams depend
// on joinSpace events materialized from it.
func (p *Peer) EnsurePersonalStream(ctx context.Context) error {
	userDID := p.session.UserDID()
	if userDID == "" {
		return errkind.New(errkind.AuthExpired, fmt.Errorf("no authenticated user"))
	}

	streamID := personalStreamID(userDID, p.cfg.StreamSchemaVersion)
	streamDID := schema.StreamDID(streamID.String())

	exists, err := p.idp.CheckStreamExists(ctx, streamDID)
	if err != nil {
		return errkind.New(errkind.TransportTransient, err)
	}
	if !exists {
		if err := p.idp.CreateStreamRecord(ctx, userDID, streamDID); err != nil {
			return errkind.New(errkind.TransportTransient, err)
		}
	}
	if err := p.idp.WriteRecord(ctx, userDID, identity.RecordPersonalStream, []byte(streamID.String())); err != nil {
		p.log.Warn(ctx, "peer: failed to persist personal stream record: %v", err)
	}

	return p.connectStream(ctx, streamID, eventchannel.PriorityHigh, StreamMaterializingPersonalSpace)
}

// ConnectRoster queries joined spaces from the local store (derived
// from joinSpace events the personal stream materialized) and
// subscribes to each at background priority, per spec.md §4.6's
// "after personal-stream backfill completes… joined-space backfill is
// background priority".
func (p *Peer) ConnectRoster(ctx context.Context) error {
	userDID := p.session.UserDID()
	spaces, err := storage.ListJoinedSpaces(ctx, p.store, userDID)
	if err != nil {
		return errkind.New(errkind.StorageTransient, err)
	}
	for _, streamID := range spaces {
		go func(sid schema.StreamID) {
			connCtx, cancel := context.WithTimeout(context.Background(), spaceConnectTimeout)
			defer cancel()
			if err := p.connectStream(connCtx, sid, eventchannel.Background, StreamConnected); err != nil {
				p.log.Error(ctx, "peer: failed to connect space %s: %v", sid.String(), err)
				p.roster.SetStatus(sid, StreamError)
			}
		}(streamID)
	}
	return nil
}

// ConnectSpaceStream connects a newly-joined space (spec.md §4.6's
// "new-space connection"), subscribing at background priority. Safe
// to call more than once for the same stream; a stream already in the
// roster is left untouched.
func (p *Peer) ConnectSpaceStream(ctx context.Context, streamID schema.StreamID) error {
	if _, ok := p.roster.Client(streamID); ok {
		return nil
	}
	connCtx, cancel := context.WithTimeout(ctx, spaceConnectTimeout)
	defer cancel()
	return p.connectStream(connCtx, streamID, eventchannel.Background, StreamConnected)
}

// connectStream subscribes to streamID, bounding the attempt to the
// caller's context deadline (spec.md §5: "per-space connection
// timeout = 30s; on timeout the space status is set to error but
// materialization of other spaces continues"). Connection errors never
// tear down the peer — only the one stream's subscription moves to
// Error.
func (p *Peer) connectStream(ctx context.Context, streamID schema.StreamID, priority eventchannel.Priority, connectedStatus StreamStatus) error {
	client := streamclient.New(streamID, p.wsURL, p.restURL, p.store, p.log)
	p.roster.Add(streamID, client)
	p.roster.SetStatus(streamID, StreamConnectingToServer)

	errCh := make(chan error, 1)
	go func() {
		errCh <- client.Subscribe(ctx, p.ch, priority)
	}()

	select {
	case <-ctx.Done():
		client.Unsubscribe()
		p.roster.SetStatus(streamID, StreamError)
		return errkind.New(errkind.TransportFatal, ctx.Err())
	case err := <-errCh:
		// Subscribe only returns (rather than blocking forever) when its
		// own ctx is canceled or every retry attempt within the
		// reconnect backoff's max duration is exhausted; either way this
		// stream, not the whole peer, is what's affected.
		if err != nil {
			p.roster.SetStatus(streamID, StreamError)
			return errkind.New(errkind.TransportFatal, err)
		}
		p.roster.SetStatus(streamID, connectedStatus)
		return nil
	}
}

// CreateSpaceStream creates a new space stream by appending its
// genesis event; the stream id is the event's own id (spec.md §4.6).
func (p *Peer) CreateSpaceStream(ctx context.Context, genesis schema.Event) (schema.StreamID, error) {
	client := streamclient.New(schema.StreamID(genesis.ID), p.wsURL, p.restURL, p.store, p.log)
	if _, err := client.Append(ctx, []schema.Event{genesis}); err != nil {
		return schema.StreamID{}, errkind.New(errkind.TransportTransient, err)
	}
	return schema.StreamID(genesis.ID), nil
}

// SendEvent encodes and appends ev to streamID, then blocks until the
// event has been materialized locally (spec.md §4.6's write path).
func (p *Peer) SendEvent(ctx context.Context, streamID schema.StreamID, ev schema.Event) error {
	return p.SendEventBatch(ctx, streamID, []schema.Event{ev})
}

// SendEventBatch is SendEvent's batched form.
func (p *Peer) SendEventBatch(ctx context.Context, streamID schema.StreamID, events []schema.Event) error {
	client, ok := p.roster.Client(streamID)
	if !ok {
		client = streamclient.New(streamID, p.wsURL, p.restURL, p.store, p.log)
	}

	resolvers := make([]<-chan materializer.EventResult, len(events))
	for i, ev := range events {
		resolvers[i] = p.mat.RegisterEventResolver(ev.ID)
	}

	if _, err := client.Append(ctx, events); err != nil {
		return errkind.New(errkind.TransportTransient, err)
	}

	for i, resolver := range resolvers {
		select {
		case result := <-resolver:
			if result.Outcome == materializer.Failed {
				return fmt.Errorf("event %s failed to materialize: %s", events[i].ID.String(), result.Reason)
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// LazyLoadRoom asks the stream client for up to n events from roomID
// ending at end (exclusive, nil meaning "most recent"), pushes them
// onto the Event Channel at priority, and blocks until materialized.
// Returns hasMore so the UI can page further back.
func (p *Peer) LazyLoadRoom(ctx context.Context, streamID schema.StreamID, roomID schema.RoomID, end *schema.ID, n int) (hasMore bool, err error) {
	client, ok := p.roster.Client(streamID)
	if !ok {
		return false, fmt.Errorf("stream %s not in roster", streamID.String())
	}

	params := map[string]string{"room": roomID.String()}
	if end != nil {
		params["end"] = end.String()
	}
	raw, err := client.Query(ctx, "room_page", params, n, 0)
	if err != nil {
		return false, errkind.New(errkind.TransportTransient, err)
	}

	batch, hasMorePage, err := decodeRoomPage(raw, streamID)
	if err != nil {
		return false, err
	}

	batchResolver := p.mat.RegisterBatchResolver(batch.BatchID)
	p.ch.Push(batch)

	select {
	case <-batchResolver:
	case <-ctx.Done():
		return false, ctx.Err()
	}
	return hasMorePage, nil
}
