// Backfill is the one-time catch-up a newly connected guild runs:
// enumerate its channels (respecting subset-mode scoping), walk each
// channel's history, seed the content-hash index so egress never
// double-posts what backfill already pulled in, and mark the guild
// caught up.
package bridge

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/roomyhq/spacepeer/internal/bridge/discordapi"
)

// marshalMessage round-trips a discordapi.Message back into the
// json.RawMessage shape ingestMessageCreate expects, so backfill can
// reuse the exact same ingest handler the live gateway path uses.
func marshalMessage(msg discordapi.Message) (json.RawMessage, error) {
	return json.Marshal(msg)
}

const backfillPageSize = 100

// Backfill walks every in-scope channel of the bridge's guild, newest
// message first resuming from the persisted cursor, ingesting each as
// a createMessage event exactly like the live gateway path would.
func (b *Bridge) Backfill(ctx context.Context) error {
	channelIDs, err := b.channelsInScope(ctx)
	if err != nil {
		return fmt.Errorf("backfill: list channels: %w", err)
	}
	for _, channelID := range channelIDs {
		if err := b.backfillChannel(ctx, channelID); err != nil {
			return fmt.Errorf("backfill channel %s: %w", channelID, err)
		}
	}
	return b.repo.MarkBackfilled(ctx, b.cfg.GuildID)
}

func (b *Bridge) channelsInScope(ctx context.Context) ([]string, error) {
	if b.cfg.Mode == "subset" {
		return b.repo.ScopedChannels(ctx, b.cfg.GuildID)
	}
	channels, err := b.client.ListGuildChannels(ctx, b.cfg.GuildID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(channels))
	for _, ch := range channels {
		if ch.Type == discordChannelTypeCategory {
			continue
		}
		ids = append(ids, ch.ID)
	}
	return ids, nil
}

// backfillChannel pages a single channel's history, newest-first, from
// wherever the persisted cursor left off. Discord's /messages endpoint
// only pages newest-first via "before", so each sweep walks backward
// and the cursor records the oldest message id seen so far — resuming
// means continuing to page with that id as the next "before".
func (b *Bridge) backfillChannel(ctx context.Context, channelID string) error {
	cursor, _, err := b.repo.BackfillCursor(ctx, channelID)
	if err != nil {
		return fmt.Errorf("load cursor: %w", err)
	}

	for {
		page, err := b.client.ListMessages(ctx, channelID, cursor, backfillPageSize)
		if err != nil {
			return fmt.Errorf("list messages: %w", err)
		}
		if len(page) == 0 {
			return nil
		}
		for _, msg := range page {
			cursor = msg.ID
			if msg.WebhookID != "" {
				// A webhook post, possibly the bridge's own egress: index
				// its content so egress recognizes it instead of reposting.
				hash := contentHash("text/plain", []byte(msg.Content))
				if err := b.repo.RegisterContentHash(ctx, channelID, hash, msg.ID); err != nil {
					return fmt.Errorf("seed content hash: %w", err)
				}
				continue
			}
			if _, ok, err := b.repo.MapDiscordToRoomy(ctx, kindMessage, msg.ID); err != nil {
				return fmt.Errorf("check mapping: %w", err)
			} else if ok {
				continue
			}
			data, err := marshalMessage(msg)
			if err != nil {
				return fmt.Errorf("marshal backfilled message: %w", err)
			}
			if err := b.ingestMessageCreate(ctx, data); err != nil {
				return fmt.Errorf("ingest backfilled message %s: %w", msg.ID, err)
			}
		}
		if err := b.repo.SetBackfillCursor(ctx, channelID, cursor); err != nil {
			return fmt.Errorf("persist cursor: %w", err)
		}
		if len(page) < backfillPageSize {
			return nil
		}
	}
}
