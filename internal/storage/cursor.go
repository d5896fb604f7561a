package storage

import (
	"context"

	"github.com/jackc/pgx/v5"
)

// GetStreamCursor returns the last acknowledged log index for
// streamID, or 0 (genesis) if the stream has never been subscribed.
// internal/streamclient uses this to resume a subscription after a
// reconnect, per spec.md §4.2's "reopen the subscription from the last
// acknowledged index".
func GetStreamCursor(ctx context.Context, s *Store, streamID []byte) (int64, error) {
	var idx int64
	err := s.QueryRow(ctx, `SELECT last_index FROM stream_cursors WHERE stream_id = $1`, streamID).Scan(&idx)
	if err != nil {
		if err == pgx.ErrNoRows {
			return 0, nil
		}
		return 0, err
	}
	return idx, nil
}

// SetStreamCursor records the highest index a stream has been
// acknowledged through, so a later resubscribe resumes there instead
// of repeating a full backfill.
func SetStreamCursor(ctx context.Context, s *Store, streamID []byte, index int64) error {
	_, err := s.Exec(ctx, `
		INSERT INTO stream_cursors (stream_id, last_index, updated_at) VALUES ($1, $2, now())
		ON CONFLICT (stream_id) DO UPDATE SET last_index = EXCLUDED.last_index, updated_at = now()
		WHERE stream_cursors.last_index < EXCLUDED.last_index`,
		streamID, index)
	return err
}
