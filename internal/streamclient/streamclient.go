// Package streamclient implements spec.md §4.2: one connection per
// stream to the log server, subscribing for ordered batches and
// appending/querying over a companion REST surface. Grounded on the
// teacher's internal/rooms.Client (websocket readPump/writePump with
// ping/pong keepalive) for the subscribe side, and its internal/db
// query wrapper's instrumentation style for append/query. Reconnection
// uses go-retry's exponential backoff (pack dependency,
// other_examples/manifests/holomush-holomush) in place of the
// teacher's hand-rolled backoff loop, resuming from the last
// acknowledged index persisted in internal/storage rather than an
// in-memory cursor, so a process restart doesn't force a full
// backfill.
package streamclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/roomyhq/spacepeer/internal/eventchannel"
	"github.com/roomyhq/spacepeer/internal/logging"
	"github.com/roomyhq/spacepeer/internal/schema"
	"github.com/roomyhq/spacepeer/internal/storage"

	"github.com/gorilla/websocket"
	"github.com/sethvargo/go-retry"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// Status is the per-stream connection state spec.md §4.6's roster
// table tracks for each subscribed stream.
type Status int

const (
	Disconnected Status = iota
	Reconnecting
	Connected
	Errored
)

func (s Status) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Reconnecting:
		return "reconnecting"
	case Connected:
		return "connected"
	case Errored:
		return "error"
	default:
		return "unknown"
	}
}

// wireBatch is the JSON shape the log server's subscribe endpoint
// sends, matching spec.md §4.2's "{stream_id, batch_id, events[],
// is_backfill, priority_hint}" — the wire transport itself is named as
// an external collaborator, so this struct is spacepeer's own
// concrete choice for an otherwise abstract protocol.
type wireBatch struct {
	BatchID      string   `json:"batch_id"`
	StreamID     string   `json:"stream_id"`
	Events       [][]byte `json:"events"`
	IsBackfill   bool     `json:"is_backfill"`
	PriorityHint string   `json:"priority_hint"`
	CaughtUp     bool     `json:"caught_up"`
}

// Client manages one websocket subscription plus REST append/query
// access to a single stream.
type Client struct {
	streamID   schema.StreamID
	wsURL      string
	restURL    string
	httpClient *http.Client
	store      *storage.Store
	log        *logging.Logger

	mu     sync.Mutex
	status Status
	conn   *websocket.Conn
	cancel context.CancelFunc
}

// New constructs a Client for one stream. wsURL is the subscribe
// endpoint base (the stream id and start index are appended as query
// parameters); restURL is the base for append/query.
func New(streamID schema.StreamID, wsURL, restURL string, store *storage.Store, log *logging.Logger) *Client {
	return &Client{
		streamID:   streamID,
		wsURL:      wsURL,
		restURL:    restURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		store:      store,
		log:        log,
		status:     Disconnected,
	}
}

// Status reports the client's current connection state.
func (c *Client) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

func (c *Client) setStatus(s Status) {
	c.mu.Lock()
	c.status = s
	c.mu.Unlock()
}

// Subscribe connects to the log server from the stream's last
// acknowledged index and pushes decoded batches onto ch at priority
// until ctx is canceled or Unsubscribe is called, reconnecting on
// transport errors with exponential backoff and resuming from the
// persisted cursor. Reconnect attempts stop after five minutes of
// failures, and Subscribe then returns the last error. Duplicate delivery
// across a reconnect is expected and tolerated by the materializer's
// idempotent writes (spec.md §4.2).
func (c *Client) Subscribe(ctx context.Context, ch *eventchannel.Channel, priority eventchannel.Priority) error {
	ctx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	c.cancel = cancel
	c.mu.Unlock()

	backoff, err := retry.NewExponential(200 * time.Millisecond)
	if err != nil {
		return fmt.Errorf("construct reconnect backoff: %w", err)
	}
	backoff = retry.WithMaxDuration(5*time.Minute, backoff)

	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		startIndex, err := storage.GetStreamCursor(ctx, c.store, schema.ID(c.streamID).Bytes())
		if err != nil {
			return retry.RetryableError(fmt.Errorf("load cursor: %w", err))
		}

		c.setStatus(Reconnecting)
		if err := c.runSubscription(ctx, ch, priority, startIndex); err != nil {
			if ctx.Err() != nil {
				return nil // caller canceled; not a transport failure
			}
			c.log.Warn(ctx, "streamclient: subscription for %s dropped: %v", c.streamID.String(), err)
			return retry.RetryableError(err)
		}
		return nil
	})
}

func (c *Client) runSubscription(ctx context.Context, ch *eventchannel.Channel, priority eventchannel.Priority, startIndex int64) error {
	url := fmt.Sprintf("%s?stream=%s&start=%d", c.wsURL, c.streamID.String(), startIndex)
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return fmt.Errorf("dial subscribe endpoint: %w", err)
	}
	defer conn.Close()

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	c.setStatus(Connected)

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	done := make(chan struct{})
	go c.pingLoop(conn, done)
	defer close(done)

	index := startIndex
	for {
		var wb wireBatch
		if err := conn.ReadJSON(&wb); err != nil {
			return fmt.Errorf("read batch: %w", err)
		}

		batch, err := decodeBatch(wb, c.streamID, priority)
		if err != nil {
			c.log.Warn(ctx, "streamclient: dropping malformed batch on %s: %v", c.streamID.String(), err)
			continue
		}

		ch.Push(batch)
		index += int64(len(wb.Events))
		if err := storage.SetStreamCursor(ctx, c.store, schema.ID(c.streamID).Bytes(), index); err != nil {
			c.log.Warn(ctx, "streamclient: failed to persist cursor for %s: %v", c.streamID.String(), err)
		}
	}
}

func (c *Client) pingLoop(conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func decodeBatch(wb wireBatch, streamID schema.StreamID, priority eventchannel.Priority) (eventchannel.Batch, error) {
	batchID, err := schema.ParseID(wb.BatchID)
	if err != nil {
		return eventchannel.Batch{}, fmt.Errorf("invalid batch id: %w", err)
	}

	events := make([]schema.Event, 0, len(wb.Events))
	for _, raw := range wb.Events {
		ev, err := schema.Parse(raw)
		if err != nil {
			// A schema-invalid event doesn't invalidate the rest of the
			// batch (spec.md §7: SchemaInvalid is recoverable by
			// skipping); the materializer will also independently mark
			// it failed, but skipping it here keeps a garbled event from
			// blocking decode of its siblings.
			continue
		}
		ev.Canonicalize()
		events = append(events, ev)
	}

	return eventchannel.Batch{
		BatchID:    batchID,
		Stream:     streamID,
		Events:     events,
		IsBackfill: wb.IsBackfill,
		Priority:   priority,
	}, nil
}

// Unsubscribe cancels the subscription. Batches already pushed onto
// the channel are still processed by the materializer (spec.md §4.2).
func (c *Client) Unsubscribe() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		c.cancel()
	}
	if c.conn != nil {
		c.conn.Close()
	}
	c.status = Disconnected
}

// appendRequest/appendResponse model the REST append endpoint's wire
// shape (spec.md §6: "append(stream_id, encoded_events[]) → index").
type appendRequest struct {
	StreamID string   `json:"stream_id"`
	Events   [][]byte `json:"events"`
}

type appendResponse struct {
	AckIndex int64 `json:"ack_index"`
}

// Append encodes and appends events atomically at the log tail,
// returning the resulting index or an error if the server rejects the
// write.
func (c *Client) Append(ctx context.Context, events []schema.Event) (int64, error) {
	encoded := make([][]byte, 0, len(events))
	for _, ev := range events {
		b, err := schema.Encode(ev)
		if err != nil {
			return 0, fmt.Errorf("encode event %s: %w", ev.ID.String(), err)
		}
		encoded = append(encoded, b)
	}

	body, err := json.Marshal(appendRequest{StreamID: c.streamID.String(), Events: encoded})
	if err != nil {
		return 0, fmt.Errorf("marshal append request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.restURL+"/append", bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("build append request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("append request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("append rejected: status %d", resp.StatusCode)
	}

	var ar appendResponse
	if err := json.NewDecoder(resp.Body).Decode(&ar); err != nil {
		return 0, fmt.Errorf("decode append response: %w", err)
	}
	return ar.AckIndex, nil
}

// Query runs a named server-side prepared query (spec.md §4.2), e.g.
// "members of a space", returning raw JSON rows for the caller to
// decode.
func (c *Client) Query(ctx context.Context, namedQuery string, params map[string]string, limit, start int) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.restURL+"/query", nil)
	if err != nil {
		return nil, fmt.Errorf("build query request: %w", err)
	}
	q := req.URL.Query()
	q.Set("stream", c.streamID.String())
	q.Set("name", namedQuery)
	q.Set("limit", fmt.Sprintf("%d", limit))
	q.Set("start", fmt.Sprintf("%d", start))
	for k, v := range params {
		q.Set("param."+k, v)
	}
	req.URL.RawQuery = q.Encode()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("query request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("query rejected: status %d", resp.StatusCode)
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		return nil, fmt.Errorf("read query response: %w", err)
	}
	return buf.Bytes(), nil
}

// CheckExists asks the server whether a stream id has ever been
// created (spec.md §6's check_exists).
func (c *Client) CheckExists(ctx context.Context, streamID schema.StreamID) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.restURL+"/exists", nil)
	if err != nil {
		return false, fmt.Errorf("build exists request: %w", err)
	}
	q := req.URL.Query()
	q.Set("stream", streamID.String())
	req.URL.RawQuery = q.Encode()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("exists request failed: %w", err)
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK, nil
}
