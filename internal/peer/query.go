package peer

import (
	"encoding/json"
	"fmt"

	"github.com/roomyhq/spacepeer/internal/eventchannel"
	"github.com/roomyhq/spacepeer/internal/schema"
)

// roomPageResponse is the "room_page" named query's wire shape: a page
// of raw encoded events plus whether older events remain, matching
// spec.md §4.6's lazyLoadRoom(stream_id, room_id, end?) -> hasMore.
type roomPageResponse struct {
	BatchID string   `json:"batch_id"`
	Events  [][]byte `json:"events"`
	HasMore bool     `json:"has_more"`
}

// decodeRoomPage parses a room_page query response into a priority
// Event Channel batch plus the page's hasMore flag. Malformed events
// are skipped rather than failing the whole page, matching
// streamclient's decodeBatch behavior.
func decodeRoomPage(raw []byte, streamID schema.StreamID) (eventchannel.Batch, bool, error) {
	var resp roomPageResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return eventchannel.Batch{}, false, fmt.Errorf("decode room page: %w", err)
	}

	batchID, err := schema.ParseID(resp.BatchID)
	if err != nil {
		return eventchannel.Batch{}, false, fmt.Errorf("invalid room page batch id: %w", err)
	}

	events := make([]schema.Event, 0, len(resp.Events))
	for _, enc := range resp.Events {
		ev, err := schema.Parse(enc)
		if err != nil {
			continue
		}
		ev.Canonicalize()
		events = append(events, ev)
	}

	return eventchannel.Batch{
		BatchID:    batchID,
		Stream:     streamID,
		Events:     events,
		IsBackfill: true,
		Priority:   eventchannel.PriorityHigh,
	}, resp.HasMore, nil
}
