package storage

import (
	"context"

	"github.com/jackc/pgx/v5"
)

// PutRawEvent records the encoded event under its content hash,
// satisfying spec.md §6's "content-addressable key-value store for raw
// events". ON CONFLICT DO NOTHING makes this safe to call twice for
// the same event (e.g. a redelivered batch).
func PutRawEvent(ctx context.Context, tx pgx.Tx, contentHash, eventID, streamID, encoded []byte) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO raw_events (content_hash, event_id, stream_id, encoded)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (content_hash) DO NOTHING`,
		contentHash, eventID, streamID, encoded)
	return err
}

// GetRawEventByHash returns the encoded bytes previously stored under
// hash, if any.
func GetRawEventByHash(ctx context.Context, s *Store, hash []byte) ([]byte, bool, error) {
	var encoded []byte
	err := s.QueryRow(ctx, `SELECT encoded FROM raw_events WHERE content_hash = $1`, hash).Scan(&encoded)
	if err == pgx.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return encoded, true, nil
}
