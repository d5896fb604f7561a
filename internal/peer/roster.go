package peer

import (
	"sync"

	"github.com/roomyhq/spacepeer/internal/schema"
	"github.com/roomyhq/spacepeer/internal/streamclient"
)

// StreamStatus is spec.md §4.6's orthogonal stream-roster status
// machine, tracked per stream independent of the auth Session.
type StreamStatus int

const (
	StreamDisconnected StreamStatus = iota
	StreamConnectingToServer
	StreamMaterializingPersonalSpace
	StreamConnected
	StreamError
)

func (s StreamStatus) String() string {
	switch s {
	case StreamDisconnected:
		return "disconnected"
	case StreamConnectingToServer:
		return "connectingToServer"
	case StreamMaterializingPersonalSpace:
		return "materializingPersonalSpace"
	case StreamConnected:
		return "connected"
	case StreamError:
		return "error"
	default:
		return "unknown"
	}
}

// entry is one roster slot: the stream's client plus its reactive
// status, surfaced to RPC callers via Roster.Status.
type entry struct {
	client *streamclient.Client
	status StreamStatus
}

// Roster owns the map of subscribed streams and their statuses — the
// peer's only mutable shared state, per spec.md §5's "the peer's
// stream roster is owned by the peer task."
type Roster struct {
	mu      sync.RWMutex
	streams map[schema.StreamID]*entry
}

// NewRoster constructs an empty Roster.
func NewRoster() *Roster {
	return &Roster{streams: make(map[schema.StreamID]*entry)}
}

// Add registers a stream's client under the roster, initially
// disconnected.
func (r *Roster) Add(streamID schema.StreamID, client *streamclient.Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.streams[streamID] = &entry{client: client, status: StreamDisconnected}
}

// SetStatus updates a stream's reactive status. A status set on a
// stream not yet in the roster is a no-op, since nothing holds a
// reference to it.
func (r *Roster) SetStatus(streamID schema.StreamID, status StreamStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.streams[streamID]; ok {
		e.status = status
	}
}

// Status returns a stream's current status, or StreamDisconnected if
// the stream isn't in the roster.
func (r *Roster) Status(streamID schema.StreamID) StreamStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.streams[streamID]; ok {
		return e.status
	}
	return StreamDisconnected
}

// Client returns the stream client for streamID, if subscribed.
func (r *Roster) Client(streamID schema.StreamID) (*streamclient.Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.streams[streamID]
	if !ok {
		return nil, false
	}
	return e.client, true
}

// Remove drops a stream from the roster entirely (used by
// unsubscribe/disconnect).
func (r *Roster) Remove(streamID schema.StreamID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.streams, streamID)
}

// Streams returns every stream id currently in the roster, for
// diagnostics.
func (r *Roster) Streams() []schema.StreamID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]schema.StreamID, 0, len(r.streams))
	for id := range r.streams {
		out = append(out, id)
	}
	return out
}
