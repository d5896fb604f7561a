package materializer

import (
	"bufio"
	"context"
	"fmt"
	"strings"

	"github.com/roomyhq/spacepeer/internal/schema"

	"github.com/jackc/pgx/v5"
)

// diffBodyMime identifies an editMessage body as a unified-diff patch
// to apply against the message's current content rather than a
// full-replace body, per spec.md §5 ("if body mime is a diff format,
// apply against the previous content; otherwise replace"). No example
// repo in the pack wires a third-party diff/patch library into
// production code (pmezard/go-difflib appears only as an indirect
// testify dependency), so this applies a minimal unified-diff subset
// with the standard library.
const diffBodyMime = "text/x-diff"

// applyUnifiedDiff applies a minimal unified-diff patch (context lines,
// '-' removals, '+' additions, no fuzzy matching) against base and
// returns the patched text.
func applyUnifiedDiff(base string, patch []byte) (string, error) {
	baseLines := strings.Split(base, "\n")
	var out []string
	pos := 0

	scanner := bufio.NewScanner(strings.NewReader(string(patch)))
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "@@"):
			continue
		case strings.HasPrefix(line, "-"):
			if pos >= len(baseLines) {
				return "", fmt.Errorf("diff: removal past end of content at offset %d", pos)
			}
			pos++
		case strings.HasPrefix(line, "+"):
			out = append(out, line[1:])
		case strings.HasPrefix(line, " "):
			if pos >= len(baseLines) {
				return "", fmt.Errorf("diff: context past end of content at offset %d", pos)
			}
			out = append(out, baseLines[pos])
			pos++
		case line == "":
			continue
		default:
			return "", fmt.Errorf("diff: unrecognized line %q", line)
		}
	}
	out = append(out, baseLines[pos:]...)
	return strings.Join(out, "\n"), nil
}

func init() {
	register(schema.CreateMessage, projectCreateMessage)
	register(schema.EditMessage, projectEditMessage)
	register(schema.DeleteMessage, projectDeleteMessage)
	register(schema.MoveMessage, projectMoveMessage)
	register(schema.ReorderMessage, projectReorderMessage)
}

func projectCreateMessage(ctx context.Context, tx pgx.Tx, ev schema.Event) ([]string, error) {
	p := ev.Payload.(schema.CreateMessagePayload)
	roomID := schema.ID(p.Room)
	if err := ensureEntity(ctx, tx, ev.ID, ev.Stream, &roomID); err != nil {
		return nil, err
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO comp_message (entity, room, author_did, body_mime, body, sort_key, created_at)
		VALUES ($1, $2, $3, $4, $5, $1, $6)
		ON CONFLICT (entity) DO NOTHING`,
		ev.ID.Bytes(), roomID.Bytes(), string(ev.Author), p.BodyMime, p.Body, ev.CreatedAt); err != nil {
		return nil, err
	}
	touched := []string{"entities", "comp_message"}
	for _, ext := range p.Extensions {
		switch ext.NSID {
		case "space.roomy.message.reply.v0":
			if _, err := tx.Exec(ctx, `
				INSERT INTO edges (head, tail, label, payload) VALUES ($1, $2, 'reply', '{}'::jsonb)
				ON CONFLICT (head, tail, label) DO NOTHING`,
				ev.ID.Bytes(), ext.Payload); err != nil {
				return nil, err
			}
			touched = append(touched, "edges")
		}
	}
	return touched, nil
}

func projectEditMessage(ctx context.Context, tx pgx.Tx, ev schema.Event) ([]string, error) {
	p := ev.Payload.(schema.EditMessagePayload)
	var prevEdit []byte
	if p.PrevEdit != nil {
		prevEdit = p.PrevEdit.Bytes()
	}

	body := p.Body
	bodyMime := p.BodyMime
	if p.BodyMime == diffBodyMime {
		var prevBody string
		if err := tx.QueryRow(ctx, `SELECT body, body_mime FROM comp_message WHERE entity = $1`, p.Target.Bytes()).
			Scan(&prevBody, &bodyMime); err != nil {
			return nil, err
		}
		patched, err := applyUnifiedDiff(prevBody, p.Body)
		if err != nil {
			return nil, err
		}
		body = []byte(patched)
	}

	_, err := tx.Exec(ctx, `
		UPDATE comp_message SET body_mime = $2, body = $3, prev_edit = $4
		WHERE entity = $1`,
		p.Target.Bytes(), bodyMime, body, prevEdit)
	if err != nil {
		return nil, err
	}
	touched := []string{"comp_message"}
	if p.ReplyTo != nil {
		if _, err := tx.Exec(ctx, `
			DELETE FROM edges WHERE head = $1 AND label = 'reply'`, p.Target.Bytes()); err != nil {
			return nil, err
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO edges (head, tail, label, payload) VALUES ($1, $2, 'reply', '{}'::jsonb)`,
			p.Target.Bytes(), p.ReplyTo.Bytes()); err != nil {
			return nil, err
		}
		touched = append(touched, "edges")
	}
	return touched, nil
}

func projectDeleteMessage(ctx context.Context, tx pgx.Tx, ev schema.Event) ([]string, error) {
	p := ev.Payload.(schema.DeleteMessagePayload)
	_, err := tx.Exec(ctx, `UPDATE comp_message SET deleted = 1 WHERE entity = $1`, p.Target.Bytes())
	if err != nil {
		return nil, err
	}
	return []string{"comp_message"}, nil
}

func projectMoveMessage(ctx context.Context, tx pgx.Tx, ev schema.Event) ([]string, error) {
	p := ev.Payload.(schema.MoveMessagePayload)
	_, err := tx.Exec(ctx, `UPDATE comp_message SET room = $2 WHERE entity = $1`,
		p.Target.Bytes(), schema.ID(p.NewRoom).Bytes())
	if err != nil {
		return nil, err
	}
	return []string{"comp_message"}, nil
}

func projectReorderMessage(ctx context.Context, tx pgx.Tx, ev schema.Event) ([]string, error) {
	p := ev.Payload.(schema.ReorderMessagePayload)
	sortKey := p.Target.Bytes()
	if p.Before != nil {
		sortKey = p.Before.Bytes()
	}
	_, err := tx.Exec(ctx, `UPDATE comp_message SET sort_key = $2 WHERE entity = $1`, p.Target.Bytes(), sortKey)
	if err != nil {
		return nil, err
	}
	return []string{"comp_message"}, nil
}
