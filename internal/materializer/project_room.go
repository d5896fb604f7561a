package materializer

import (
	"context"

	"github.com/roomyhq/spacepeer/internal/schema"

	"github.com/jackc/pgx/v5"
)

func init() {
	register(schema.CreateRoom, projectCreateRoom)
	register(schema.UpdateRoom, projectUpdateRoom)
	register(schema.DeleteRoom, projectDeleteRoom)
	register(schema.JoinRoom, projectJoinRoom)
	register(schema.LeaveRoom, projectLeaveRoom)
	register(schema.MoveRoom, projectMoveRoom)
	register(schema.AddMember, projectAddMember)
	register(schema.UpdateMember, projectUpdateMember)
	register(schema.RemoveMember, projectRemoveMember)
}

func projectCreateRoom(ctx context.Context, tx pgx.Tx, ev schema.Event) ([]string, error) {
	p := ev.Payload.(schema.CreateRoomPayload)
	var parent *schema.ID
	if p.Parent != nil {
		id := schema.ID(*p.Parent)
		parent = &id
	}
	if err := ensureEntity(ctx, tx, ev.ID, ev.Stream, parent); err != nil {
		return nil, err
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO comp_room (entity, kind, deleted) VALUES ($1, $2, 0)
		ON CONFLICT (entity) DO NOTHING`,
		ev.ID.Bytes(), string(p.Kind)); err != nil {
		return nil, err
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO comp_info (entity, name, avatar, description) VALUES ($1, $2, $3, $4)
		ON CONFLICT (entity) DO UPDATE SET name = EXCLUDED.name, avatar = EXCLUDED.avatar, description = EXCLUDED.description`,
		ev.ID.Bytes(), p.Name, p.Avatar, p.Description); err != nil {
		return nil, err
	}
	return []string{"entities", "comp_room", "comp_info"}, nil
}

func projectUpdateRoom(ctx context.Context, tx pgx.Tx, ev schema.Event) ([]string, error) {
	p := ev.Payload.(schema.UpdateRoomPayload)
	namePresent, nameNull, nameVal := optionalArgs(p.Name)
	avatarPresent, avatarNull, avatarVal := optionalArgs(p.Avatar)
	descPresent, descNull, descVal := optionalArgs(p.Description)

	_, err := tx.Exec(ctx, `
		UPDATE comp_info SET
			name = CASE WHEN $2::bool THEN (CASE WHEN $3::bool THEN NULL ELSE $4::text END) ELSE name END,
			avatar = CASE WHEN $5::bool THEN (CASE WHEN $6::bool THEN NULL ELSE $7::text END) ELSE avatar END,
			description = CASE WHEN $8::bool THEN (CASE WHEN $9::bool THEN NULL ELSE $10::text END) ELSE description END
		WHERE entity = $1`,
		schema.ID(p.Target).Bytes(),
		namePresent, nameNull, nameVal,
		avatarPresent, avatarNull, avatarVal,
		descPresent, descNull, descVal,
	)
	if err != nil {
		return nil, err
	}
	return []string{"comp_info"}, nil
}

func projectDeleteRoom(ctx context.Context, tx pgx.Tx, ev schema.Event) ([]string, error) {
	p := ev.Payload.(schema.DeleteRoomPayload)
	_, err := tx.Exec(ctx, `UPDATE comp_room SET deleted = 1 WHERE entity = $1`, schema.ID(p.Target).Bytes())
	if err != nil {
		return nil, err
	}
	return []string{"comp_room"}, nil
}

func projectJoinRoom(ctx context.Context, tx pgx.Tx, ev schema.Event) ([]string, error) {
	p := ev.Payload.(schema.JoinRoomPayload)
	_, err := tx.Exec(ctx, `
		INSERT INTO edges (head, tail, label, payload) VALUES ($1, $2, 'member', '{}'::jsonb)
		ON CONFLICT (head, tail, label) DO NOTHING`,
		schema.ID(p.Target).Bytes(), []byte(ev.Author))
	if err != nil {
		return nil, err
	}
	return []string{"edges"}, nil
}

func projectLeaveRoom(ctx context.Context, tx pgx.Tx, ev schema.Event) ([]string, error) {
	p := ev.Payload.(schema.LeaveRoomPayload)
	_, err := tx.Exec(ctx, `DELETE FROM edges WHERE head = $1 AND label = 'member' AND tail = $2`,
		schema.ID(p.Target).Bytes(), []byte(ev.Author))
	if err != nil {
		return nil, err
	}
	return []string{"edges"}, nil
}

func projectMoveRoom(ctx context.Context, tx pgx.Tx, ev schema.Event) ([]string, error) {
	p := ev.Payload.(schema.MovePayload)
	var newParent []byte
	if p.NewParent != nil {
		id := schema.ID(*p.NewParent)
		newParent = id.Bytes()
	}
	_, err := tx.Exec(ctx, `UPDATE entities SET parent = $2 WHERE id = $1`, schema.ID(p.Target).Bytes(), newParent)
	if err != nil {
		return nil, err
	}
	return []string{"entities"}, nil
}

func projectAddMember(ctx context.Context, tx pgx.Tx, ev schema.Event) ([]string, error) {
	p := ev.Payload.(schema.AddMemberPayload)
	room := schema.ID(p.Target)
	if err := ensureEntity(ctx, tx, ev.ID, ev.Stream, &room); err != nil {
		return nil, err
	}
	_, err := tx.Exec(ctx, `
		INSERT INTO edges (head, tail, label, payload) VALUES ($1, $2, 'member', jsonb_build_object('role', $3::text, 'event_id', $4))
		ON CONFLICT (head, tail, label) DO UPDATE SET payload = EXCLUDED.payload`,
		schema.ID(p.Target).Bytes(), []byte(p.User), p.Role, ev.ID.String())
	if err != nil {
		return nil, err
	}
	return []string{"entities", "edges"}, nil
}

func projectUpdateMember(ctx context.Context, tx pgx.Tx, ev schema.Event) ([]string, error) {
	p := ev.Payload.(schema.UpdateMemberPayload)
	if !p.Role.Present || p.Role.Null {
		return []string{"edges"}, nil
	}
	_, err := tx.Exec(ctx, `
		UPDATE edges SET payload = jsonb_set(payload, '{role}', to_jsonb($3::text))
		WHERE head = $1 AND label = 'member' AND tail = $2`,
		schema.ID(p.Target).Bytes(), []byte(p.User), p.Role.Value)
	if err != nil {
		return nil, err
	}
	return []string{"edges"}, nil
}

func projectRemoveMember(ctx context.Context, tx pgx.Tx, ev schema.Event) ([]string, error) {
	p := ev.Payload.(schema.RemoveMemberPayload)
	_, err := tx.Exec(ctx, `DELETE FROM edges WHERE head = $1 AND label = 'member' AND tail = $2`,
		schema.ID(p.Target).Bytes(), []byte(p.User))
	if err != nil {
		return nil, err
	}
	return []string{"edges"}, nil
}
