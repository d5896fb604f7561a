package storage

import (
	"context"

	"github.com/jackc/pgx/v5"
)

// ParkEvent persists ev (already encoded) as waiting on missingID, per
// spec.md §9's "persistent pending-dependencies index" — a real table
// rather than an in-memory map, so a parked event survives a process
// restart.
func ParkEvent(ctx context.Context, tx pgx.Tx, missingID, eventID, streamID, encoded []byte) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO pending_dependencies (missing_id, event_id, stream_id, encoded_event)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (missing_id, event_id) DO NOTHING`,
		missingID, eventID, streamID, encoded)
	return err
}

// PendingEntry is one row released once its missing dependency
// materializes.
type PendingEntry struct {
	EventID  []byte
	StreamID []byte
	Encoded  []byte
}

// ReleasePending removes and returns every event parked on readyID, so
// the caller can re-attempt materializing them now that the
// dependency they were waiting on exists.
func ReleasePending(ctx context.Context, tx pgx.Tx, readyID []byte) ([]PendingEntry, error) {
	rows, err := tx.Query(ctx, `
		DELETE FROM pending_dependencies WHERE missing_id = $1
		RETURNING event_id, stream_id, encoded_event`, readyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []PendingEntry
	for rows.Next() {
		var e PendingEntry
		if err := rows.Scan(&e.EventID, &e.StreamID, &e.Encoded); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
