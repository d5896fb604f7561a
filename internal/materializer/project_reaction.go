package materializer

import (
	"context"

	"github.com/roomyhq/spacepeer/internal/schema"

	"github.com/jackc/pgx/v5"
)

func init() {
	register(schema.AddReaction, projectAddReaction)
	register(schema.RemoveReaction, projectRemoveReaction)
	register(schema.AddBridgedReaction, projectAddBridgedReaction)
	register(schema.RemoveBridgedReaction, projectRemoveBridgedReaction)
}

func projectAddReaction(ctx context.Context, tx pgx.Tx, ev schema.Event) ([]string, error) {
	p := ev.Payload.(schema.AddReactionPayload)
	target := p.Target
	if err := ensureEntity(ctx, tx, ev.ID, ev.Stream, &target); err != nil {
		return nil, err
	}
	_, err := tx.Exec(ctx, `
		INSERT INTO comp_reaction (entity, target, emoji, user_did, removed)
		VALUES ($1, $2, $3, $4, 0)
		ON CONFLICT (entity) DO NOTHING`,
		ev.ID.Bytes(), p.Target.Bytes(), p.Emoji, string(ev.Author))
	if err != nil {
		return nil, err
	}
	return []string{"entities", "comp_reaction"}, nil
}

func projectRemoveReaction(ctx context.Context, tx pgx.Tx, ev schema.Event) ([]string, error) {
	p := ev.Payload.(schema.RemoveReactionPayload)
	_, err := tx.Exec(ctx, `UPDATE comp_reaction SET removed = 1 WHERE entity = $1`, p.ReactionID.Bytes())
	if err != nil {
		return nil, err
	}
	return []string{"comp_reaction"}, nil
}

func projectAddBridgedReaction(ctx context.Context, tx pgx.Tx, ev schema.Event) ([]string, error) {
	p := ev.Payload.(schema.AddBridgedReactionPayload)
	target := p.Target
	if err := ensureEntity(ctx, tx, ev.ID, ev.Stream, &target); err != nil {
		return nil, err
	}
	_, err := tx.Exec(ctx, `
		INSERT INTO comp_reaction (entity, target, emoji, discord_user_id, removed)
		VALUES ($1, $2, $3, $4, 0)
		ON CONFLICT (entity) DO NOTHING`,
		ev.ID.Bytes(), p.Target.Bytes(), p.Emoji, p.DiscordUserID)
	if err != nil {
		return nil, err
	}
	return []string{"entities", "comp_reaction"}, nil
}

func projectRemoveBridgedReaction(ctx context.Context, tx pgx.Tx, ev schema.Event) ([]string, error) {
	p := ev.Payload.(schema.RemoveBridgedReactionPayload)
	_, err := tx.Exec(ctx, `UPDATE comp_reaction SET removed = 1 WHERE entity = $1`, p.ReactionID.Bytes())
	if err != nil {
		return nil, err
	}
	return []string{"comp_reaction"}, nil
}
