// Ingest translates Discord gateway events into space events, per
// spec.md §4.7's "Ingest (external → space)": channel/thread
// creation, message creation/edit, and reaction add/remove. Every
// translation is idempotent via BridgeRepository's mapping table — if
// the Discord id already maps, the handler returns the existing roomy
// id and does nothing else, satisfying Testable Property "creating the
// same Discord channel N times yields exactly one Roomy room."
package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/roomyhq/spacepeer/internal/bridge/discordapi"
	"github.com/roomyhq/spacepeer/internal/schema"
)

const (
	discordChannelTypeCategory      = 4
	discordChannelTypePublicThread  = 11
	discordChannelTypePrivateThread = 12
)

// HandleGatewayEvent dispatches one gateway dispatch to its ingest
// handler by type name. Unrecognized event types are ignored — the
// bridge only needs a subset of Discord's gateway surface.
func (b *Bridge) HandleGatewayEvent(ctx context.Context, ev discordapi.Event) error {
	switch ev.Type {
	case "CHANNEL_CREATE", "THREAD_CREATE":
		return b.ingestChannel(ctx, ev.Data)
	case "MESSAGE_CREATE":
		return b.ingestMessageCreate(ctx, ev.Data)
	case "MESSAGE_UPDATE":
		return b.ingestMessageUpdate(ctx, ev.Data)
	case "MESSAGE_REACTION_ADD":
		return b.ingestReactionAdd(ctx, ev.Data)
	case "MESSAGE_REACTION_REMOVE":
		return b.ingestReactionRemove(ctx, ev.Data)
	case "INTERACTION_CREATE":
		return b.handleInteraction(ctx, ev.Data)
	default:
		return nil
	}
}

func (b *Bridge) ingestChannel(ctx context.Context, data json.RawMessage) error {
	var ch discordapi.Channel
	if err := json.Unmarshal(data, &ch); err != nil {
		return fmt.Errorf("ingest channel: decode: %w", err)
	}
	if ch.GuildID != "" && ch.GuildID != b.cfg.GuildID {
		return nil
	}
	if _, ok, err := b.repo.MapDiscordToRoomy(ctx, kindRoom, ch.ID); err != nil {
		return fmt.Errorf("ingest channel: lookup mapping: %w", err)
	} else if ok {
		return nil
	}

	kind := schema.RoomKindChannel
	switch ch.Type {
	case discordChannelTypeCategory:
		kind = schema.RoomKindCategory
	case discordChannelTypePublicThread, discordChannelTypePrivateThread:
		kind = schema.RoomKindThread
	}

	var parent *schema.RoomID
	if ch.ParentID != "" {
		if roomyParent, ok, err := b.repo.MapDiscordToRoomy(ctx, kindRoom, ch.ParentID); err == nil && ok {
			if id, err := schema.ParseID(roomyParent); err == nil {
				rid := schema.RoomID(id)
				parent = &rid
			}
		}
	}

	evID := schema.NewID()
	event := schema.Event{
		ID:        evID,
		Stream:    b.cfg.SpaceStream,
		Author:    bridgeAuthorDID,
		Variant:   schema.CreateRoom,
		CreatedAt: time.Now().UnixMilli(),
		Payload: schema.CreateRoomPayload{
			Kind:   kind,
			Parent: parent,
			Name:   ch.Name,
		},
	}
	if err := b.sender.SendEvent(ctx, b.cfg.SpaceStream, event); err != nil {
		return fmt.Errorf("ingest channel: send event: %w", err)
	}
	if err := b.repo.RecordMapping(ctx, kindRoom, ch.ID, evID.String()); err != nil {
		return fmt.Errorf("ingest channel: record mapping: %w", err)
	}
	return b.repo.RecordOrigin(ctx, evID.Bytes(), "room", ch.ID, b.cfg.GuildID)
}

func (b *Bridge) ingestMessageCreate(ctx context.Context, data json.RawMessage) error {
	var msg discordapi.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return fmt.Errorf("ingest message: decode: %w", err)
	}
	if msg.WebhookID != "" {
		// Our own puppeted send echoing back over the gateway
		// (spec.md §8 Testable Property 4); the wire-level origin
		// extension skip applies to the egress direction, this check
		// is ingest's mirror-image guard.
		return nil
	}
	if _, ok, err := b.repo.MapDiscordToRoomy(ctx, kindMessage, msg.ID); err != nil {
		return fmt.Errorf("ingest message: lookup mapping: %w", err)
	} else if ok {
		return nil
	}

	roomyRoom, ok, err := b.repo.MapDiscordToRoomy(ctx, kindRoom, msg.ChannelID)
	if err != nil {
		return fmt.Errorf("ingest message: lookup room: %w", err)
	}
	if !ok {
		b.log.Warn(ctx, "bridge: message %s in unmapped channel %s, dropping", msg.ID, msg.ChannelID)
		return nil
	}
	roomID, err := schema.ParseID(roomyRoom)
	if err != nil {
		return fmt.Errorf("ingest message: parse room id: %w", err)
	}

	evID := schema.NewID()
	event := schema.Event{
		ID:        evID,
		Stream:    b.cfg.SpaceStream,
		Author:    schema.UserDID("did:discord:" + msg.Author.ID),
		Variant:   schema.CreateMessage,
		CreatedAt: time.Now().UnixMilli(),
		Payload: schema.CreateMessagePayload{
			Room:     schema.RoomID(roomID),
			BodyMime: "text/plain",
			Body:     []byte(msg.Content),
		},
	}
	if err := b.sender.SendEvent(ctx, b.cfg.SpaceStream, event); err != nil {
		return fmt.Errorf("ingest message: send event: %w", err)
	}
	if err := b.repo.RecordMapping(ctx, kindMessage, msg.ID, evID.String()); err != nil {
		return fmt.Errorf("ingest message: record mapping: %w", err)
	}
	return b.repo.RecordOrigin(ctx, evID.Bytes(), "message", msg.ID, b.cfg.GuildID)
}

func (b *Bridge) ingestMessageUpdate(ctx context.Context, data json.RawMessage) error {
	var msg discordapi.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return fmt.Errorf("ingest edit: decode: %w", err)
	}
	if msg.WebhookID != "" {
		return nil
	}
	roomyMsg, ok, err := b.repo.MapDiscordToRoomy(ctx, kindMessage, msg.ID)
	if err != nil {
		return fmt.Errorf("ingest edit: lookup mapping: %w", err)
	}
	if !ok {
		// An edit to a message this bridge never ingested (e.g. sent
		// before the bridge was connected); nothing to target.
		return nil
	}
	targetID, err := schema.ParseID(roomyMsg)
	if err != nil {
		return fmt.Errorf("ingest edit: parse target id: %w", err)
	}

	evID := schema.NewID()
	event := schema.Event{
		ID:        evID,
		Stream:    b.cfg.SpaceStream,
		Author:    schema.UserDID("did:discord:" + msg.Author.ID),
		Variant:   schema.EditMessage,
		CreatedAt: time.Now().UnixMilli(),
		Payload: schema.EditMessagePayload{
			Target:   targetID,
			BodyMime: "text/plain",
			Body:     []byte(msg.Content),
		},
	}
	return b.sender.SendEvent(ctx, b.cfg.SpaceStream, event)
}

func (b *Bridge) ingestReactionAdd(ctx context.Context, data json.RawMessage) error {
	var r discordapi.Reaction
	if err := json.Unmarshal(data, &r); err != nil {
		return fmt.Errorf("ingest reaction add: decode: %w", err)
	}
	return b.ingestReaction(ctx, r, true)
}

func (b *Bridge) ingestReactionRemove(ctx context.Context, data json.RawMessage) error {
	var r discordapi.Reaction
	if err := json.Unmarshal(data, &r); err != nil {
		return fmt.Errorf("ingest reaction remove: decode: %w", err)
	}
	return b.ingestReaction(ctx, r, false)
}

// reactionKey is the composite identity a Discord reaction has (no
// single stable id of its own, unlike messages/channels): the message
// it's on, the emoji, and who reacted.
func reactionKey(r discordapi.Reaction) string {
	return fmt.Sprintf("%s:%s:%s", r.MessageID, r.Emoji.Name, r.UserID)
}

func (b *Bridge) ingestReaction(ctx context.Context, r discordapi.Reaction, add bool) error {
	key := reactionKey(r)
	existingRoomy, ok, err := b.repo.MapDiscordToRoomy(ctx, kindReaction, key)
	if err != nil {
		return fmt.Errorf("ingest reaction: lookup mapping: %w", err)
	}

	if add {
		if ok {
			return nil
		}
		roomyMsg, ok, err := b.repo.MapDiscordToRoomy(ctx, kindMessage, r.MessageID)
		if err != nil {
			return fmt.Errorf("ingest reaction: lookup message: %w", err)
		}
		if !ok {
			return nil
		}
		targetID, err := schema.ParseID(roomyMsg)
		if err != nil {
			return fmt.Errorf("ingest reaction: parse target id: %w", err)
		}
		evID := schema.NewID()
		event := schema.Event{
			ID:        evID,
			Stream:    b.cfg.SpaceStream,
			Author:    bridgeAuthorDID,
			Variant:   schema.AddBridgedReaction,
			CreatedAt: time.Now().UnixMilli(),
			Payload: schema.AddBridgedReactionPayload{
				Target:        targetID,
				Emoji:         r.Emoji.Name,
				DiscordUserID: r.UserID,
			},
		}
		if err := b.sender.SendEvent(ctx, b.cfg.SpaceStream, event); err != nil {
			return fmt.Errorf("ingest reaction: send event: %w", err)
		}
		if err := b.repo.RecordMapping(ctx, kindReaction, key, evID.String()); err != nil {
			return fmt.Errorf("ingest reaction: record mapping: %w", err)
		}
		return b.repo.RecordOrigin(ctx, evID.Bytes(), "reaction", key, b.cfg.GuildID)
	}

	if !ok {
		return nil
	}
	reactionID, err := schema.ParseID(existingRoomy)
	if err != nil {
		return fmt.Errorf("ingest reaction remove: parse reaction id: %w", err)
	}
	event := schema.Event{
		ID:        schema.NewID(),
		Stream:    b.cfg.SpaceStream,
		Author:    bridgeAuthorDID,
		Variant:   schema.RemoveBridgedReaction,
		CreatedAt: time.Now().UnixMilli(),
		Payload:   schema.RemoveBridgedReactionPayload{ReactionID: reactionID},
	}
	return b.sender.SendEvent(ctx, b.cfg.SpaceStream, event)
}
