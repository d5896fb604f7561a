package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/roomyhq/spacepeer/internal/livequery"
	"github.com/roomyhq/spacepeer/internal/logging"
	"github.com/roomyhq/spacepeer/internal/peer"
	"github.com/roomyhq/spacepeer/internal/schema"
	"github.com/roomyhq/spacepeer/internal/storage"
	"github.com/roomyhq/spacepeer/internal/storage/migrations"
)

// Dispatcher is the exhaustive switch over every method name spec.md
// §4.8 lists, turning RPC envelopes into calls against the peer,
// storage and live query engine. Grounded on the teacher's readPump
// message-type switch (internal/rooms/client.go), generalized from a
// fixed five-case chat protocol to the full method surface a UI
// drives.
type Dispatcher struct {
	peer *peer.Peer
	lq   *livequery.Registry
	db   *storage.Store
	dsn  string
	log  *logging.Logger
}

// NewDispatcher constructs a Dispatcher over one peer's runtime state.
func NewDispatcher(p *peer.Peer, lq *livequery.Registry, db *storage.Store, dsn string, log *logging.Logger) *Dispatcher {
	return &Dispatcher{peer: p, lq: lq, db: db, dsn: dsn, log: log}
}

// Serve reads envelopes off port until Recv errors (the connection
// closed) and replies to each on the same port, matching every
// response's id to its request.
func (d *Dispatcher) Serve(ctx context.Context, port Port) {
	for {
		req, err := port.Recv()
		if err != nil {
			return
		}
		go func(req Envelope) {
			resp := d.Handle(ctx, req)
			if err := port.Send(resp); err != nil {
				d.log.Warn(ctx, "rpc: failed to send response for %s: %v", req.Method, err)
			}
		}(req)
	}
}

// Handle dispatches a single request envelope and returns its
// response. It never panics on a bad method name; unknown methods
// become an EnvelopeError.
func (d *Dispatcher) Handle(ctx context.Context, req Envelope) Envelope {
	result, err := d.dispatch(ctx, req.Method, req.Params)
	if err != nil {
		return Envelope{ID: req.ID, Error: &EnvelopeError{Kind: "dispatch_error", Message: err.Error()}}
	}
	raw, err := json.Marshal(result)
	if err != nil {
		return Envelope{ID: req.ID, Error: &EnvelopeError{Kind: "encode_error", Message: err.Error()}}
	}
	return Envelope{ID: req.ID, Result: raw}
}

func (d *Dispatcher) dispatch(ctx context.Context, method string, params json.RawMessage) (any, error) {
	switch method {
	// Auth/session.
	case "initialize":
		return d.initialize(ctx)
	case "login":
		return d.login(ctx, params)
	case "logout":
		return d.logout(ctx)
	case "getSessionId":
		return d.peer.Session().UserDID(), nil
	case "getProfile":
		return d.getProfile(ctx, params)
	case "getMembers":
		return d.getMembers(ctx, params)

	// Streams.
	case "createSpaceStream":
		return d.createSpaceStream(ctx, params)
	case "connectSpaceStream":
		return d.connectSpaceStream(ctx, params)
	case "connectPendingSpaces":
		return nil, d.peer.ConnectRoster(ctx)
	case "setSpaceHandle":
		return d.setSpaceHandle(ctx, params)
	case "resolveSpaceId":
		return d.resolveSpaceID(ctx, params)
	case "resolveHandleForSpace":
		return d.resolveHandleForSpace(ctx, params)
	case "checkSpaceExists":
		return d.checkSpaceExists(ctx, params)
	case "getSpaceInfo":
		return d.getSpaceInfo(ctx, params)

	// Events.
	case "sendEvent":
		return d.sendEvent(ctx, params)
	case "sendEventBatch":
		return d.sendEventBatch(ctx, params)
	case "fetchEvents":
		return d.fetchEvents(ctx, params)
	case "fetchLinks":
		return d.fetchLinks(ctx, params)
	case "lazyLoadRoom":
		return d.lazyLoadRoom(ctx, params)

	// Queries.
	case "runQuery":
		return d.runQuery(ctx, params)
	case "createLiveQuery":
		return d.createLiveQuery(ctx, params)
	case "deleteLiveQuery":
		return nil, d.deleteLiveQuery(params)

	// Storage administration.
	case "setActiveSqliteWorker":
		// Worker selection is a transport-level concern (which ChanPort
		// the caller binds to); spacepeer has nothing further to do here.
		return struct{}{}, nil
	case "dangerousCompletelyDestroyDatabase":
		return nil, migrations.DangerousCompletelyDestroyDatabase(d.dsn)

	// Blobs: uploadToPds is named only, per spec.md §10's Non-goals —
	// the PDS blob store is an external collaborator spacepeer never
	// implements against.
	case "uploadToPds":
		return nil, fmt.Errorf("uploadToPds: blob upload is out of scope")

	// Diagnostics.
	case "ping":
		return "pong", nil

	default:
		return nil, fmt.Errorf("unknown method %q", method)
	}
}

func (d *Dispatcher) initialize(ctx context.Context) (any, error) {
	return struct {
		AuthState string `json:"authState"`
		UserDID   string `json:"userDid"`
	}{
		AuthState: d.peer.Session().State().String(),
		UserDID:   string(d.peer.Session().UserDID()),
	}, nil
}

type loginParams struct {
	Handle      string `json:"handle"`
	Password    string `json:"password"`
	OAuthParams map[string]string `json:"oauthParams"`
}

func (d *Dispatcher) login(ctx context.Context, params json.RawMessage) (any, error) {
	var p loginParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, fmt.Errorf("decode login params: %w", err)
	}
	args := p.OAuthParams
	if args == nil {
		args = map[string]string{}
	}
	if p.Handle != "" {
		args["handle"] = p.Handle
		args["password"] = p.Password
	}
	if err := d.peer.Session().CompleteLogin(ctx, args); err != nil {
		return nil, err
	}
	if err := d.peer.EnsurePersonalStream(ctx); err != nil {
		return nil, err
	}
	return nil, d.peer.ConnectRoster(ctx)
}

func (d *Dispatcher) logout(ctx context.Context) (any, error) {
	d.peer.Session().Logout()
	return nil, nil
}

type getProfileParams struct {
	UserDID string `json:"userDid"`
}

type profileView struct {
	Name        *string `json:"name"`
	Avatar      *string `json:"avatar"`
	Description *string `json:"description"`
}

func (d *Dispatcher) getProfile(ctx context.Context, params json.RawMessage) (any, error) {
	var p getProfileParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, fmt.Errorf("decode getProfile params: %w", err)
	}
	var v profileView
	err := d.db.QueryRow(ctx, `
		SELECT i.name, i.avatar, i.description
		FROM comp_user u JOIN comp_info i ON i.entity = u.entity
		WHERE u.did = $1`, p.UserDID).Scan(&v.Name, &v.Avatar, &v.Description)
	if err != nil {
		return nil, fmt.Errorf("profile lookup: %w", err)
	}
	return v, nil
}

type getMembersParams struct {
	StreamID string `json:"streamId"`
}

func (d *Dispatcher) getMembers(ctx context.Context, params json.RawMessage) (any, error) {
	var p getMembersParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, fmt.Errorf("decode getMembers params: %w", err)
	}
	id, err := schema.ParseID(p.StreamID)
	if err != nil {
		return nil, err
	}
	rows, err := d.db.Query(ctx, `SELECT tail FROM edges WHERE head = $1 AND label = 'joined'`, id.Bytes())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []string
	for rows.Next() {
		var did []byte
		if err := rows.Scan(&did); err != nil {
			return nil, err
		}
		members = append(members, string(did))
	}
	return members, rows.Err()
}

type createSpaceStreamParams struct {
	Genesis json.RawMessage `json:"genesis"`
}

func (d *Dispatcher) createSpaceStream(ctx context.Context, params json.RawMessage) (any, error) {
	var p createSpaceStreamParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, fmt.Errorf("decode createSpaceStream params: %w", err)
	}
	ev, err := schema.Parse(p.Genesis)
	if err != nil {
		return nil, err
	}
	streamID, err := d.peer.CreateSpaceStream(ctx, ev)
	if err != nil {
		return nil, err
	}
	return streamID.String(), nil
}

type connectSpaceStreamParams struct {
	StreamID string `json:"streamId"`
}

func (d *Dispatcher) connectSpaceStream(ctx context.Context, params json.RawMessage) (any, error) {
	var p connectSpaceStreamParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, fmt.Errorf("decode connectSpaceStream params: %w", err)
	}
	id, err := schema.ParseID(p.StreamID)
	if err != nil {
		return nil, err
	}
	return nil, d.peer.ConnectSpaceStream(ctx, schema.StreamID(id))
}

type setSpaceHandleParams struct {
	StreamID string `json:"streamId"`
	Handle   string `json:"handle"`
}

// setSpaceHandle appends a SetHandleAccount event rather than writing
// comp_space directly: handle_account is a materialized projection, so
// the only legitimate way to change it is through the event log the
// projector reads (internal/materializer/project_space.go).
func (d *Dispatcher) setSpaceHandle(ctx context.Context, params json.RawMessage) (any, error) {
	var p setSpaceHandleParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, fmt.Errorf("decode setSpaceHandle params: %w", err)
	}
	if !schema.Handle(p.Handle).Valid() {
		return nil, fmt.Errorf("invalid handle %q", p.Handle)
	}
	streamID, err := schema.ParseID(p.StreamID)
	if err != nil {
		return nil, err
	}
	ev := schema.Event{
		ID:        schema.NewID(),
		Stream:    schema.StreamID(streamID),
		Author:    d.peer.Session().UserDID(),
		Variant:   schema.SetHandleAccount,
		CreatedAt: time.Now().UnixMilli(),
		Payload:   schema.SetHandleAccountPayload{Handle: schema.Handle(p.Handle)},
	}
	return nil, d.peer.SendEvent(ctx, schema.StreamID(streamID), ev)
}

type resolveSpaceIDParams struct {
	Handle string `json:"handle"`
}

func (d *Dispatcher) resolveSpaceID(ctx context.Context, params json.RawMessage) (any, error) {
	var p resolveSpaceIDParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, fmt.Errorf("decode resolveSpaceId params: %w", err)
	}
	var entity []byte
	err := d.db.QueryRow(ctx, `SELECT entity FROM comp_space WHERE handle_account = $1`, p.Handle).Scan(&entity)
	if err != nil {
		return nil, fmt.Errorf("handle %q not found: %w", p.Handle, err)
	}
	id, err := schema.IDFromBytes(entity)
	if err != nil {
		return nil, err
	}
	return id.String(), nil
}

type resolveHandleParams struct {
	StreamID string `json:"streamId"`
}

func (d *Dispatcher) resolveHandleForSpace(ctx context.Context, params json.RawMessage) (any, error) {
	var p resolveHandleParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, fmt.Errorf("decode resolveHandleForSpace params: %w", err)
	}
	id, err := schema.ParseID(p.StreamID)
	if err != nil {
		return nil, err
	}
	var handle *string
	err = d.db.QueryRow(ctx, `SELECT handle_account FROM comp_space WHERE entity = $1`, id.Bytes()).Scan(&handle)
	if err != nil {
		return nil, fmt.Errorf("no handle set for %q: %w", p.StreamID, err)
	}
	return handle, nil
}

func (d *Dispatcher) checkSpaceExists(ctx context.Context, params json.RawMessage) (any, error) {
	var p connectSpaceStreamParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, fmt.Errorf("decode checkSpaceExists params: %w", err)
	}
	id, err := schema.ParseID(p.StreamID)
	if err != nil {
		return nil, err
	}
	var exists bool
	err = d.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM entities WHERE id = $1)`, id.Bytes()).Scan(&exists)
	return exists, err
}

type spaceInfoView struct {
	Name          *string `json:"name"`
	Avatar        *string `json:"avatar"`
	Description   *string `json:"description"`
	Hidden        bool    `json:"hidden"`
	HandleAccount *string `json:"handleAccount"`
}

func (d *Dispatcher) getSpaceInfo(ctx context.Context, params json.RawMessage) (any, error) {
	var p connectSpaceStreamParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, fmt.Errorf("decode getSpaceInfo params: %w", err)
	}
	id, err := schema.ParseID(p.StreamID)
	if err != nil {
		return nil, err
	}
	var v spaceInfoView
	var hidden int16
	err = d.db.QueryRow(ctx, `
		SELECT i.name, i.avatar, i.description, s.hidden, s.handle_account
		FROM comp_space s LEFT JOIN comp_info i ON i.entity = s.entity
		WHERE s.entity = $1`, id.Bytes()).Scan(&v.Name, &v.Avatar, &v.Description, &hidden, &v.HandleAccount)
	if err != nil {
		return nil, fmt.Errorf("space info lookup: %w", err)
	}
	v.Hidden = hidden != 0
	return v, nil
}

type sendEventParams struct {
	StreamID string          `json:"streamId"`
	Event    json.RawMessage `json:"event"`
}

func (d *Dispatcher) sendEvent(ctx context.Context, params json.RawMessage) (any, error) {
	var p sendEventParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, fmt.Errorf("decode sendEvent params: %w", err)
	}
	streamID, err := schema.ParseID(p.StreamID)
	if err != nil {
		return nil, err
	}
	ev, err := schema.Parse(p.Event)
	if err != nil {
		return nil, err
	}
	return nil, d.peer.SendEvent(ctx, schema.StreamID(streamID), ev)
}

type sendEventBatchParams struct {
	StreamID string            `json:"streamId"`
	Events   []json.RawMessage `json:"events"`
}

func (d *Dispatcher) sendEventBatch(ctx context.Context, params json.RawMessage) (any, error) {
	var p sendEventBatchParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, fmt.Errorf("decode sendEventBatch params: %w", err)
	}
	streamID, err := schema.ParseID(p.StreamID)
	if err != nil {
		return nil, err
	}
	events := make([]schema.Event, 0, len(p.Events))
	for _, raw := range p.Events {
		ev, err := schema.Parse(raw)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return nil, d.peer.SendEventBatch(ctx, schema.StreamID(streamID), events)
}

type fetchEventsParams struct {
	StreamID string `json:"streamId"`
	Since    string `json:"since"` // event id cursor, "" means from genesis
	Limit    int    `json:"limit"`
}

// fetchEvents pages raw_events by event_id, which sorts identically to
// arrival order since event ids are ULIDs (spec.md §3).
func (d *Dispatcher) fetchEvents(ctx context.Context, params json.RawMessage) (any, error) {
	var p fetchEventsParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, fmt.Errorf("decode fetchEvents params: %w", err)
	}
	streamID, err := schema.ParseID(p.StreamID)
	if err != nil {
		return nil, err
	}
	since := schema.Zero
	if p.Since != "" {
		since, err = schema.ParseID(p.Since)
		if err != nil {
			return nil, err
		}
	}
	limit := p.Limit
	if limit <= 0 {
		limit = 100
	}
	rows, err := d.db.Query(ctx, `
		SELECT encoded FROM raw_events
		WHERE stream_id = $1 AND event_id > $2 ORDER BY event_id ASC LIMIT $3`,
		streamID.Bytes(), since.Bytes(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events [][]byte
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		events = append(events, raw)
	}
	return events, rows.Err()
}

type fetchLinksParams struct {
	EntityID string `json:"entityId"`
	Label    string `json:"label"`
}

func (d *Dispatcher) fetchLinks(ctx context.Context, params json.RawMessage) (any, error) {
	var p fetchLinksParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, fmt.Errorf("decode fetchLinks params: %w", err)
	}
	entity, err := schema.ParseID(p.EntityID)
	if err != nil {
		return nil, err
	}
	rows, err := d.db.Query(ctx, `SELECT tail FROM edges WHERE head = $1 AND label = $2`, entity.Bytes(), p.Label)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tails []string
	for rows.Next() {
		var tail []byte
		if err := rows.Scan(&tail); err != nil {
			return nil, err
		}
		if id, err := schema.IDFromBytes(tail); err == nil {
			tails = append(tails, id.String())
		} else {
			tails = append(tails, string(tail))
		}
	}
	return tails, rows.Err()
}

type lazyLoadRoomParams struct {
	StreamID string  `json:"streamId"`
	RoomID   string  `json:"roomId"`
	End      *string `json:"end"`
	Limit    int     `json:"limit"`
}

func (d *Dispatcher) lazyLoadRoom(ctx context.Context, params json.RawMessage) (any, error) {
	var p lazyLoadRoomParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, fmt.Errorf("decode lazyLoadRoom params: %w", err)
	}
	streamID, err := schema.ParseID(p.StreamID)
	if err != nil {
		return nil, err
	}
	roomID, err := schema.ParseID(p.RoomID)
	if err != nil {
		return nil, err
	}
	var end *schema.ID
	if p.End != nil {
		e, err := schema.ParseID(*p.End)
		if err != nil {
			return nil, err
		}
		end = &e
	}
	limit := p.Limit
	if limit <= 0 {
		limit = 50
	}
	hasMore, err := d.peer.LazyLoadRoom(ctx, schema.StreamID(streamID), schema.RoomID(roomID), end, limit)
	if err != nil {
		return nil, err
	}
	return struct {
		HasMore bool `json:"hasMore"`
	}{hasMore}, nil
}

type runQueryParams struct {
	Name   string            `json:"name"`
	Params map[string]string `json:"params"`
}

func (d *Dispatcher) runQuery(ctx context.Context, params json.RawMessage) (any, error) {
	var p runQueryParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, fmt.Errorf("decode runQuery params: %w", err)
	}
	return d.namedQuery(ctx, p.Name, p.Params)
}

type createLiveQueryParams struct {
	Name   string            `json:"name"`
	Params map[string]string `json:"params"`
	Tables []string          `json:"tables"`
	TTLMs  int64             `json:"ttlMs"`
}

type liveQueryHandle struct {
	ID string `json:"id"`
}

func (d *Dispatcher) createLiveQuery(ctx context.Context, params json.RawMessage) (any, error) {
	var p createLiveQueryParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, fmt.Errorf("decode createLiveQuery params: %w", err)
	}
	queryFn := func(ctx context.Context) (any, error) {
		return d.namedQuery(ctx, p.Name, p.Params)
	}
	id, _, _, err := d.lq.CreateLiveQuery(ctx, p.Tables, queryFn, time.Duration(p.TTLMs)*time.Millisecond)
	if err != nil {
		return nil, err
	}
	return liveQueryHandle{ID: id.String()}, nil
}

type deleteLiveQueryParams struct {
	ID string `json:"id"`
}

func (d *Dispatcher) deleteLiveQuery(params json.RawMessage) error {
	var p deleteLiveQueryParams
	if err := json.Unmarshal(params, &p); err != nil {
		return fmt.Errorf("decode deleteLiveQuery params: %w", err)
	}
	id, err := schema.ParseID(p.ID)
	if err != nil {
		return err
	}
	d.lq.DeleteLiveQuery(id)
	return nil
}

// namedQuery is the one place table/column names for the UI's
// prepared queries live, mirroring spec.md §4.5's "named, parameterized
// queries only — no free-form SQL reaches the UI".
func (d *Dispatcher) namedQuery(ctx context.Context, name string, params map[string]string) (any, error) {
	switch name {
	case "spaceMembers":
		return d.getMembers(ctx, mustMarshal(getMembersParams{StreamID: params["streamId"]}))
	case "spaceInfo":
		return d.getSpaceInfo(ctx, mustMarshal(connectSpaceStreamParams{StreamID: params["streamId"]}))
	case "profile":
		return d.getProfile(ctx, mustMarshal(getProfileParams{UserDID: params["userDid"]}))
	default:
		return nil, fmt.Errorf("unknown named query %q", name)
	}
}

func mustMarshal(v any) json.RawMessage {
	b, _ := json.Marshal(v)
	return b
}
