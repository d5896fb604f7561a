package materializer

import (
	"context"
	"encoding/json"

	"github.com/roomyhq/spacepeer/internal/schema"

	"github.com/jackc/pgx/v5"
)

func init() {
	register(schema.JoinSpace, projectJoinSpace)
	register(schema.LeaveSpace, projectLeaveSpace)
	register(schema.UpdateSpaceInfo, projectUpdateSpaceInfo)
	register(schema.AddAdmin, projectAddAdmin)
	register(schema.RemoveAdmin, projectRemoveAdmin)
	register(schema.SetHandleAccount, projectSetHandleAccount)
	register(schema.UpdateSidebar, projectUpdateSidebar)
}

// spaceRoot is the entity id spacepeer projects space-level
// facts onto: the stream's genesis id, since a space has no separate
// createSpace event in spec.md's data model.
func spaceRoot(streamID schema.StreamID) schema.ID { return schema.ID(streamID) }

func projectJoinSpace(ctx context.Context, tx pgx.Tx, ev schema.Event) ([]string, error) {
	p := ev.Payload.(schema.JoinSpacePayload)
	root := spaceRoot(p.Space)
	if err := ensureEntity(ctx, tx, root, p.Space, nil); err != nil {
		return nil, err
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO comp_space (entity, hidden, backfilled_to) VALUES ($1, 0, 0)
		ON CONFLICT (entity) DO NOTHING`, root.Bytes()); err != nil {
		return nil, err
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO edges (head, tail, label, payload) VALUES ($1, $2, 'joined', '{}'::jsonb)
		ON CONFLICT (head, tail, label) DO UPDATE SET payload = '{}'::jsonb`,
		root.Bytes(), []byte(ev.Author)); err != nil {
		return nil, err
	}
	return []string{"entities", "comp_space", "edges"}, nil
}

func projectLeaveSpace(ctx context.Context, tx pgx.Tx, ev schema.Event) ([]string, error) {
	p := ev.Payload.(schema.LeaveSpacePayload)
	root := spaceRoot(p.Space)
	_, err := tx.Exec(ctx, `DELETE FROM edges WHERE head = $1 AND label = 'joined' AND tail = $2`,
		root.Bytes(), []byte(ev.Author))
	if err != nil {
		return nil, err
	}
	return []string{"edges"}, nil
}

func projectUpdateSpaceInfo(ctx context.Context, tx pgx.Tx, ev schema.Event) ([]string, error) {
	p := ev.Payload.(schema.UpdateSpaceInfoPayload)
	root := spaceRoot(ev.Stream)
	if err := ensureEntity(ctx, tx, root, ev.Stream, nil); err != nil {
		return nil, err
	}
	namePresent, nameNull, nameVal := optionalArgs(p.Name)
	avatarPresent, avatarNull, avatarVal := optionalArgs(p.Avatar)
	descPresent, descNull, descVal := optionalArgs(p.Description)
	_, err := tx.Exec(ctx, `
		INSERT INTO comp_info (entity, name, avatar, description) VALUES ($1, NULL, NULL, NULL)
		ON CONFLICT (entity) DO NOTHING`, root.Bytes())
	if err != nil {
		return nil, err
	}
	_, err = tx.Exec(ctx, `
		UPDATE comp_info SET
			name = CASE WHEN $2::bool THEN (CASE WHEN $3::bool THEN NULL ELSE $4::text END) ELSE name END,
			avatar = CASE WHEN $5::bool THEN (CASE WHEN $6::bool THEN NULL ELSE $7::text END) ELSE avatar END,
			description = CASE WHEN $8::bool THEN (CASE WHEN $9::bool THEN NULL ELSE $10::text END) ELSE description END
		WHERE entity = $1`,
		root.Bytes(),
		namePresent, nameNull, nameVal,
		avatarPresent, avatarNull, avatarVal,
		descPresent, descNull, descVal,
	)
	if err != nil {
		return nil, err
	}
	return []string{"entities", "comp_info"}, nil
}

func projectAddAdmin(ctx context.Context, tx pgx.Tx, ev schema.Event) ([]string, error) {
	p := ev.Payload.(schema.AddAdminPayload)
	root := spaceRoot(ev.Stream)
	if err := ensureEntity(ctx, tx, ev.ID, ev.Stream, &root); err != nil {
		return nil, err
	}
	_, err := tx.Exec(ctx, `
		INSERT INTO edges (head, tail, label, payload) VALUES ($1, $2, 'admin', jsonb_build_object('event_id', $3::text))
		ON CONFLICT (head, tail, label) DO UPDATE SET payload = EXCLUDED.payload`,
		root.Bytes(), []byte(p.User), ev.ID.String())
	if err != nil {
		return nil, err
	}
	return []string{"entities", "edges"}, nil
}

func projectRemoveAdmin(ctx context.Context, tx pgx.Tx, ev schema.Event) ([]string, error) {
	p := ev.Payload.(schema.RemoveAdminPayload)
	root := spaceRoot(ev.Stream)
	_, err := tx.Exec(ctx, `DELETE FROM edges WHERE head = $1 AND label = 'admin' AND tail = $2`,
		root.Bytes(), []byte(p.User))
	if err != nil {
		return nil, err
	}
	return []string{"edges"}, nil
}

func projectSetHandleAccount(ctx context.Context, tx pgx.Tx, ev schema.Event) ([]string, error) {
	p := ev.Payload.(schema.SetHandleAccountPayload)
	root := spaceRoot(ev.Stream)
	if err := ensureEntity(ctx, tx, root, ev.Stream, nil); err != nil {
		return nil, err
	}
	_, err := tx.Exec(ctx, `
		INSERT INTO comp_space (entity, hidden, handle_account, backfilled_to) VALUES ($1, 0, $2, 0)
		ON CONFLICT (entity) DO UPDATE SET handle_account = EXCLUDED.handle_account`,
		root.Bytes(), string(p.Handle))
	if err != nil {
		return nil, err
	}
	return []string{"entities", "comp_space"}, nil
}

func projectUpdateSidebar(ctx context.Context, tx pgx.Tx, ev schema.Event) ([]string, error) {
	p := ev.Payload.(schema.UpdateSidebarPayload)
	root := spaceRoot(ev.Stream)
	if err := ensureEntity(ctx, tx, root, ev.Stream, nil); err != nil {
		return nil, err
	}

	type wireCategory struct {
		Name     string   `json:"name"`
		Children []string `json:"children"`
	}
	cats := make([]wireCategory, 0, len(p.Categories))
	for _, c := range p.Categories {
		children := make([]string, 0, len(c.Children))
		for _, ch := range c.Children {
			children = append(children, schema.ID(ch).String())
		}
		cats = append(cats, wireCategory{Name: c.Name, Children: children})
	}
	blob, err := json.Marshal(cats)
	if err != nil {
		return nil, err
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO comp_space (entity, hidden, sidebar_config, backfilled_to) VALUES ($1, 0, $2, 0)
		ON CONFLICT (entity) DO UPDATE SET sidebar_config = EXCLUDED.sidebar_config`,
		root.Bytes(), blob)
	if err != nil {
		return nil, err
	}
	return []string{"entities", "comp_space"}, nil
}
