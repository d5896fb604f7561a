package materializer

import (
	"context"

	"github.com/roomyhq/spacepeer/internal/schema"

	"github.com/jackc/pgx/v5"
)

// projector applies one event's variant-specific projection within
// tx and reports which tables it touched, for the post-commit
// Live Query Engine notification.
type projector func(ctx context.Context, tx pgx.Tx, ev schema.Event) ([]string, error)

// projectors is the dispatch table the same lookup-table pattern as
// DependenciesOf and the wire codec uses — one entry per variant,
// registered from each project_*.go file's init() rather than a giant
// switch in one file.
var projectors = map[schema.VariantTag]projector{}

func register(tag schema.VariantTag, p projector) {
	projectors[tag] = p
}

// ensureEntity inserts an entities row if one doesn't already exist,
// satisfying spec.md §3's invariant that "an entity row exists before
// any companion row references it".
func ensureEntity(ctx context.Context, tx pgx.Tx, id schema.ID, streamID schema.StreamID, parent *schema.ID) error {
	var parentBytes []byte
	if parent != nil {
		parentBytes = parent.Bytes()
	}
	_, err := tx.Exec(ctx, `
		INSERT INTO entities (id, stream_id, parent)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO NOTHING`,
		id.Bytes(), schema.ID(streamID).Bytes(), parentBytes)
	return err
}

// optionalArgs unpacks an OptionalString into the three parameters the
// projection SQL's CASE expression needs: present, null, and value.
// A column update reads
// `col = CASE WHEN $present THEN (CASE WHEN $null THEN NULL ELSE $value END) ELSE col END`
// so an absent field leaves the column untouched at the SQL level
// rather than requiring a read-modify-write in Go.
func optionalArgs(o schema.OptionalString) (present, null bool, value string) {
	return o.Present, o.Null, o.Value
}
