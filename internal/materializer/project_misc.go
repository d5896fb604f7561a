package materializer

import (
	"context"

	"github.com/roomyhq/spacepeer/internal/schema"

	"github.com/jackc/pgx/v5"
)

func init() {
	register(schema.EditPage, projectEditPage)
	register(schema.CreateRoomLink, projectCreateRoomLink)
	register(schema.RemoveRoomLink, projectRemoveRoomLink)
	register(schema.OverrideMeta, projectOverrideMeta)
	register(schema.LastRead, projectLastRead)
}

func projectEditPage(ctx context.Context, tx pgx.Tx, ev schema.Event) ([]string, error) {
	p := ev.Payload.(schema.EditPagePayload)
	target := schema.ID(p.Target)
	if err := ensureEntity(ctx, tx, ev.ID, ev.Stream, &target); err != nil {
		return nil, err
	}
	var prevEdit []byte
	if p.PrevEdit != nil {
		prevEdit = p.PrevEdit.Bytes()
	}
	_, err := tx.Exec(ctx, `
		INSERT INTO comp_page (entity, body_mime, body, prev_edit) VALUES ($1, $2, $3, $4)
		ON CONFLICT (entity) DO UPDATE SET body_mime = EXCLUDED.body_mime, body = EXCLUDED.body, prev_edit = EXCLUDED.prev_edit`,
		ev.ID.Bytes(), p.BodyMime, p.Body, prevEdit)
	if err != nil {
		return nil, err
	}
	return []string{"entities", "comp_page"}, nil
}

func projectCreateRoomLink(ctx context.Context, tx pgx.Tx, ev schema.Event) ([]string, error) {
	p := ev.Payload.(schema.CreateRoomLinkPayload)
	from := schema.ID(p.From)
	if err := ensureEntity(ctx, tx, ev.ID, ev.Stream, &from); err != nil {
		return nil, err
	}
	_, err := tx.Exec(ctx, `
		INSERT INTO comp_link (entity, from_room, to_room, removed) VALUES ($1, $2, $3, 0)
		ON CONFLICT (entity) DO NOTHING`,
		ev.ID.Bytes(), schema.ID(p.From).Bytes(), schema.ID(p.To).Bytes())
	if err != nil {
		return nil, err
	}
	return []string{"entities", "comp_link"}, nil
}

func projectRemoveRoomLink(ctx context.Context, tx pgx.Tx, ev schema.Event) ([]string, error) {
	p := ev.Payload.(schema.RemoveRoomLinkPayload)
	_, err := tx.Exec(ctx, `UPDATE comp_link SET removed = 1 WHERE entity = $1`, p.Target.Bytes())
	if err != nil {
		return nil, err
	}
	return []string{"comp_link"}, nil
}

func projectOverrideMeta(ctx context.Context, tx pgx.Tx, ev schema.Event) ([]string, error) {
	p := ev.Payload.(schema.OverrideMetaPayload)
	dnPresent, dnNull, dnVal := optionalArgs(p.DisplayName)
	avPresent, avNull, avVal := optionalArgs(p.Avatar)
	_, err := tx.Exec(ctx, `
		INSERT INTO edges (head, tail, label, payload) VALUES ($1, $2, 'metaOverride', jsonb_build_object())
		ON CONFLICT (head, tail, label) DO NOTHING`,
		p.Target.Bytes(), ev.ID.Bytes())
	if err != nil {
		return nil, err
	}
	_, err = tx.Exec(ctx, `
		UPDATE edges SET payload = payload
			|| CASE WHEN $3::bool THEN jsonb_build_object('displayName', CASE WHEN $4::bool THEN NULL ELSE $5::text END) ELSE '{}'::jsonb END
			|| CASE WHEN $6::bool THEN jsonb_build_object('avatar', CASE WHEN $7::bool THEN NULL ELSE $8::text END) ELSE '{}'::jsonb END
		WHERE head = $1 AND label = 'metaOverride' AND tail = $2`,
		p.Target.Bytes(), ev.ID.Bytes(),
		dnPresent, dnNull, dnVal,
		avPresent, avNull, avVal,
	)
	if err != nil {
		return nil, err
	}
	return []string{"edges"}, nil
}

func projectLastRead(ctx context.Context, tx pgx.Tx, ev schema.Event) ([]string, error) {
	p := ev.Payload.(schema.LastReadPayload)
	_, err := tx.Exec(ctx, `
		INSERT INTO comp_last_read (entity, user_did, timestamp, unread_count) VALUES ($1, $2, $3, 0)
		ON CONFLICT (entity, user_did) DO UPDATE SET timestamp = EXCLUDED.timestamp, unread_count = 0`,
		schema.ID(p.Target).Bytes(), string(ev.Author), p.Timestamp)
	if err != nil {
		return nil, err
	}
	return []string{"comp_last_read"}, nil
}
