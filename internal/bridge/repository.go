// Package bridge is the Discord sync bridge (spec.md §4.7): a
// BridgeOrchestrator owns one Bridge per (guild, space) pair, each
// translating Discord gateway events into space events (ingest) and
// Roomy-origin space events into webhook posts (egress), with identity
// mapping, webhook caching, and content-hash dedup persisted through
// BridgeRepository.
package bridge

import (
	"context"
	"fmt"

	"github.com/roomyhq/spacepeer/internal/bridge/discordapi"
	"github.com/roomyhq/spacepeer/internal/cache"
	"github.com/roomyhq/spacepeer/internal/schema"
	"github.com/roomyhq/spacepeer/internal/storage"
)

// idKind is bridge_id_map's discriminator column: one mapping table
// serves channel/thread identities ("room"), message identities
// ("message"), and reaction identities ("reaction", keyed by the
// composite messageID:emoji:userID string since Discord reactions have
// no id of their own).
type idKind string

const (
	kindRoom     idKind = "room"
	kindMessage  idKind = "message"
	kindReaction idKind = "reaction"
)

// GuildConfig is one row of bridge_guild: which space a guild is
// bridged to and in which mode.
type GuildConfig struct {
	GuildID        string
	SpaceStream    schema.StreamID
	Mode           string // "full" | "subset"
	SubsetRoleID   string
}

// BridgeRepository is the bridge's persistence surface: the Postgres
// identity-mapping table plus Redis-backed webhook/hash/cursor caches,
// the same split internal/storage and internal/cache already draw
// between durable relational state and fast ephemeral lookups.
type BridgeRepository struct {
	store *storage.Store
	cache *cache.Cache
}

// NewRepository constructs a BridgeRepository.
func NewRepository(store *storage.Store, c *cache.Cache) *BridgeRepository {
	return &BridgeRepository{store: store, cache: c}
}

// GuildConfig loads a guild's bridge configuration, returning
// ok=false if the guild has never been connected.
func (r *BridgeRepository) GuildConfig(ctx context.Context, guildID string) (GuildConfig, bool, error) {
	row := r.store.QueryRow(ctx,
		`SELECT guild_id, space_stream, mode, COALESCE(subset_role_id, '') FROM bridge_guild WHERE guild_id = $1`, guildID)
	var cfg GuildConfig
	var spaceStream string
	if err := row.Scan(&cfg.GuildID, &spaceStream, &cfg.Mode, &cfg.SubsetRoleID); err != nil {
		if err.Error() == "no rows in result set" {
			return GuildConfig{}, false, nil
		}
		return GuildConfig{}, false, err
	}
	id, err := schema.ParseID(spaceStream)
	if err != nil {
		return GuildConfig{}, false, fmt.Errorf("parse space_stream: %w", err)
	}
	cfg.SpaceStream = schema.StreamID(id)
	return cfg, true, nil
}

// GuildsForSpace returns every guild bridged to streamID, since one
// space may be bridged into more than one Discord server.
func (r *BridgeRepository) GuildsForSpace(ctx context.Context, streamID schema.StreamID) ([]GuildConfig, error) {
	rows, err := r.store.Query(ctx,
		`SELECT guild_id, space_stream, mode, COALESCE(subset_role_id, '') FROM bridge_guild WHERE space_stream = $1`,
		streamID.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []GuildConfig
	for rows.Next() {
		var cfg GuildConfig
		var spaceStream string
		if err := rows.Scan(&cfg.GuildID, &spaceStream, &cfg.Mode, &cfg.SubsetRoleID); err != nil {
			return nil, err
		}
		id, err := schema.ParseID(spaceStream)
		if err != nil {
			return nil, fmt.Errorf("parse space_stream: %w", err)
		}
		cfg.SpaceStream = schema.StreamID(id)
		out = append(out, cfg)
	}
	return out, rows.Err()
}

// ConnectGuild upserts guildID's binding to streamID (the
// connect-roomy-space command).
func (r *BridgeRepository) ConnectGuild(ctx context.Context, guildID string, streamID schema.StreamID) error {
	_, err := r.store.Exec(ctx,
		`INSERT INTO bridge_guild (guild_id, space_stream) VALUES ($1, $2)
		 ON CONFLICT (guild_id) DO UPDATE SET space_stream = EXCLUDED.space_stream`,
		guildID, streamID.String())
	return err
}

// DisconnectGuild removes guildID's binding (disconnect-roomy-space);
// subset-mode role teardown is the caller's job (discordapi.DeleteRole)
// since that requires a live API call this repository doesn't make.
func (r *BridgeRepository) DisconnectGuild(ctx context.Context, guildID string) error {
	_, err := r.store.Exec(ctx, `DELETE FROM bridge_guild WHERE guild_id = $1`, guildID)
	return err
}

// SetSubsetMode records guildID's subset-mode scoping role.
func (r *BridgeRepository) SetSubsetMode(ctx context.Context, guildID, roleID string) error {
	_, err := r.store.Exec(ctx,
		`UPDATE bridge_guild SET mode = 'subset', subset_role_id = $2 WHERE guild_id = $1`, guildID, roleID)
	return err
}

// ScopedChannels returns the channel ids a subset-mode guild currently
// bridges, the authoritative list mirrored from the role's overwrites.
func (r *BridgeRepository) ScopedChannels(ctx context.Context, guildID string) ([]string, error) {
	rows, err := r.store.Query(ctx, `SELECT channel_id FROM bridge_channel_scope WHERE guild_id = $1`, guildID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// AddScopedChannel records channelID as in-scope for a subset-mode
// guild.
func (r *BridgeRepository) AddScopedChannel(ctx context.Context, guildID, channelID string) error {
	_, err := r.store.Exec(ctx,
		`INSERT INTO bridge_channel_scope (guild_id, channel_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		guildID, channelID)
	return err
}

// MarkBackfilled stamps a guild's last_backfill_at, so roomy-status
// can report it.
func (r *BridgeRepository) MarkBackfilled(ctx context.Context, guildID string) error {
	_, err := r.store.Exec(ctx, `UPDATE bridge_guild SET last_backfill_at = now() WHERE guild_id = $1`, guildID)
	return err
}

// MapRoomyToDiscord resolves a roomy-side id (a room or message) to
// its Discord counterpart, ok=false if never bridged.
func (r *BridgeRepository) MapRoomyToDiscord(ctx context.Context, kind idKind, roomyID string) (string, bool, error) {
	var discordID string
	err := r.store.QueryRow(ctx,
		`SELECT discord_id FROM bridge_id_map WHERE kind = $1 AND roomy_id = $2`, string(kind), roomyID).Scan(&discordID)
	if err != nil {
		if err.Error() == "no rows in result set" {
			return "", false, nil
		}
		return "", false, err
	}
	return discordID, true, nil
}

// MapDiscordToRoomy resolves a Discord-side id to its roomy
// counterpart, ok=false if never bridged.
func (r *BridgeRepository) MapDiscordToRoomy(ctx context.Context, kind idKind, discordID string) (string, bool, error) {
	var roomyID string
	err := r.store.QueryRow(ctx,
		`SELECT roomy_id FROM bridge_id_map WHERE kind = $1 AND discord_id = $2`, string(kind), discordID).Scan(&roomyID)
	if err != nil {
		if err.Error() == "no rows in result set" {
			return "", false, nil
		}
		return "", false, err
	}
	return roomyID, true, nil
}

// RecordMapping writes a new discord_id<->roomy_id pair. Idempotent:
// re-ingesting the same Discord object (spec.md §4.7's "ingest is
// idempotent via the mapping table") is a harmless no-op conflict.
func (r *BridgeRepository) RecordMapping(ctx context.Context, kind idKind, discordID, roomyID string) error {
	_, err := r.store.Exec(ctx,
		`INSERT INTO bridge_id_map (kind, discord_id, roomy_id) VALUES ($1, $2, $3) ON CONFLICT (kind, discord_id) DO NOTHING`,
		string(kind), discordID, roomyID)
	return err
}

// Webhook resolves a channel's cached webhook, fetching-and-caching a
// new one via client if absent.
func (r *BridgeRepository) Webhook(ctx context.Context, client *discordapi.Client, discordChannelID string) (id, token string, err error) {
	id, token, ok, err := r.cache.GetWebhookToken(ctx, discordChannelID)
	if err != nil {
		return "", "", err
	}
	if ok {
		return id, token, nil
	}
	hook, err := client.GetOrCreateWebhook(ctx, discordChannelID)
	if err != nil {
		return "", "", err
	}
	if err := r.cache.SetWebhookToken(ctx, discordChannelID, hook.ID, hook.Token); err != nil {
		return "", "", err
	}
	return hook.ID, hook.Token, nil
}

// InvalidateWebhook drops discordChannelID's cached webhook, forcing
// the next Webhook call to recreate it (called after ErrWebhookGone).
func (r *BridgeRepository) InvalidateWebhook(ctx context.Context, discordChannelID string) error {
	return r.cache.ClearWebhookToken(ctx, discordChannelID)
}

// LookupContentHash and RegisterContentHash delegate straight to the
// cache; kept as repository methods so bridge code has one import to
// reason about instead of reaching into internal/cache directly.
func (r *BridgeRepository) LookupContentHash(ctx context.Context, discordChannelID, hash string) (string, bool, error) {
	return r.cache.LookupContentHash(ctx, discordChannelID, hash)
}

func (r *BridgeRepository) RegisterContentHash(ctx context.Context, discordChannelID, hash, discordMessageID string) error {
	return r.cache.RegisterContentHash(ctx, discordChannelID, hash, discordMessageID)
}

// RecordOrigin marks entityID as bridge-authored, the persisted
// stand-in for spec.md §4.7's "discordOrigin-family extension" (see
// internal/storage/migrations's 0003 migration note). Called in the
// same local write as RecordMapping whenever the bridge ingests a
// Discord object into the space.
func (r *BridgeRepository) RecordOrigin(ctx context.Context, entityID []byte, family, discordID, discordGuildID string) error {
	_, err := r.store.Exec(ctx,
		`INSERT INTO bridge_origin (entity, family, discord_id, discord_guild_id) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (entity) DO NOTHING`,
		entityID, family, discordID, discordGuildID)
	return err
}

// IsOrigin reports whether entityID was written by the bridge itself,
// the egress path's first-line echo-loop guard (spec.md §4.7's "For
// each Roomy-origin event (no discordOrigin)…").
func (r *BridgeRepository) IsOrigin(ctx context.Context, entityID []byte) (bool, error) {
	var exists bool
	err := r.store.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM bridge_origin WHERE entity = $1)`, entityID).Scan(&exists)
	return exists, err
}

func (r *BridgeRepository) BackfillCursor(ctx context.Context, discordChannelID string) (string, bool, error) {
	return r.cache.GetBackfillCursor(ctx, discordChannelID)
}

func (r *BridgeRepository) SetBackfillCursor(ctx context.Context, discordChannelID, lastSeenMessageID string) error {
	return r.cache.SetBackfillCursor(ctx, discordChannelID, lastSeenMessageID)
}

// PendingEgressMessage is one row egress.go has not yet pushed to
// Discord: a message that isn't bridge-authored (no bridge_origin
// row) and has no recorded roomy_id<->discord_id mapping yet.
type PendingEgressMessage struct {
	ID       schema.ID
	Room     schema.ID
	AuthorDID string
	BodyMime string
	Body     []byte
}

// PendingEgressMessages lists every not-yet-synced message belonging
// to streamID's rooms, oldest first, capped at limit — egress.go's
// source of work per sweep (spec.md §4.7's egress algorithm, steps
// 1-2 folded into this one anti-join instead of a per-event scan).
func (r *BridgeRepository) PendingEgressMessages(ctx context.Context, streamID schema.StreamID, limit int) ([]PendingEgressMessage, error) {
	// The bridge_id_map anti-join is deliberately left to the caller
	// (one MapRoomyToDiscord lookup per candidate in egress.go) rather
	// than folded in here: roomy_id is stored as a ULID string, not raw
	// bytes, so expressing that join in SQL would mean duplicating the
	// ULID encoding in a query literal.
	rows, err := r.store.Query(ctx, `
		SELECT m.entity, m.room, m.author_did, m.body_mime, m.body
		FROM comp_message m
		JOIN entities e ON e.id = m.entity
		WHERE e.stream_id = $1
		  AND m.deleted = 0
		  AND NOT EXISTS (SELECT 1 FROM bridge_origin o WHERE o.entity = m.entity)
		ORDER BY m.sort_key
		LIMIT $2`,
		schema.ID(streamID).Bytes(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []PendingEgressMessage
	for rows.Next() {
		var entityBytes, roomBytes, body []byte
		var authorDID, bodyMime string
		if err := rows.Scan(&entityBytes, &roomBytes, &authorDID, &bodyMime, &body); err != nil {
			return nil, err
		}
		entityID, err := schema.IDFromBytes(entityBytes)
		if err != nil {
			return nil, fmt.Errorf("pending egress: %w", err)
		}
		roomID, err := schema.IDFromBytes(roomBytes)
		if err != nil {
			return nil, fmt.Errorf("pending egress: %w", err)
		}
		out = append(out, PendingEgressMessage{
			ID:        entityID,
			Room:      roomID,
			AuthorDID: authorDID,
			BodyMime:  bodyMime,
			Body:      body,
		})
	}
	return out, rows.Err()
}
