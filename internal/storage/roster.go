package storage

import (
	"context"

	"github.com/roomyhq/spacepeer/internal/schema"
)

// ListJoinedSpaces returns the stream ids of every space the given
// user has a 'joined' edge on, per spec.md §4.6's "the peer queries
// the local store for the set of joined spaces (derived from joinSpace
// events applied there)".
func ListJoinedSpaces(ctx context.Context, s *Store, userDID schema.UserDID) ([]schema.StreamID, error) {
	rows, err := s.Query(ctx, `
		SELECT e.id FROM edges edg
		JOIN entities e ON e.id = edg.head
		WHERE edg.label = 'joined' AND edg.tail = $1`, []byte(userDID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []schema.StreamID
	for rows.Next() {
		var idBytes []byte
		if err := rows.Scan(&idBytes); err != nil {
			return nil, err
		}
		id, err := schema.IDFromBytes(idBytes)
		if err != nil {
			return nil, err
		}
		out = append(out, schema.StreamID(id))
	}
	return out, rows.Err()
}
