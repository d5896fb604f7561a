// Interactions handles the bridge's slash-command surface: connecting
// and disconnecting a guild from a space, and a status readout, per
// spec.md §4.7.
package bridge

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/roomyhq/spacepeer/internal/bridge/discordapi"
	"github.com/roomyhq/spacepeer/internal/schema"
)

func (b *Bridge) handleInteraction(ctx context.Context, data json.RawMessage) error {
	var interaction discordapi.Interaction
	if err := json.Unmarshal(data, &interaction); err != nil {
		return fmt.Errorf("handle interaction: decode: %w", err)
	}

	var reply string
	switch interaction.Data.Name {
	case "connect-roomy-space":
		reply = b.replyConnect(ctx, interaction)
	case "disconnect-roomy-space":
		reply = b.replyDisconnect(ctx, interaction)
	case "roomy-status":
		reply = b.replyStatus(ctx, interaction)
	default:
		return nil
	}

	return b.client.RespondToInteraction(ctx, interaction.ID, interaction.Token, reply)
}

func (b *Bridge) replyConnect(ctx context.Context, interaction discordapi.Interaction) string {
	spaceStreamStr := optionValue(interaction, "space-stream-id")
	if spaceStreamStr == "" {
		return "usage: /connect-roomy-space space-stream-id:<stream id>"
	}
	id, err := schema.ParseID(spaceStreamStr)
	if err != nil {
		return fmt.Sprintf("invalid stream id: %v", err)
	}
	if err := b.repo.ConnectGuild(ctx, interaction.GuildID, schema.StreamID(id)); err != nil {
		b.log.Error(ctx, "bridge: connect-roomy-space failed: %v", err)
		return "failed to connect this server to that space"
	}
	return "connected — backfill will start shortly"
}

func (b *Bridge) replyDisconnect(ctx context.Context, interaction discordapi.Interaction) string {
	cfg, ok, err := b.repo.GuildConfig(ctx, interaction.GuildID)
	if err != nil {
		b.log.Error(ctx, "bridge: disconnect-roomy-space lookup failed: %v", err)
		return "failed to disconnect"
	}
	if !ok {
		return "this server isn't connected to a space"
	}
	if cfg.Mode == "subset" && cfg.SubsetRoleID != "" {
		if err := b.client.DeleteRole(ctx, interaction.GuildID, cfg.SubsetRoleID); err != nil {
			b.log.Error(ctx, "bridge: subset-mode role teardown failed: %v", err)
		}
	}
	if err := b.repo.DisconnectGuild(ctx, interaction.GuildID); err != nil {
		b.log.Error(ctx, "bridge: disconnect-roomy-space failed: %v", err)
		return "failed to disconnect"
	}
	return "disconnected"
}

func (b *Bridge) replyStatus(ctx context.Context, interaction discordapi.Interaction) string {
	cfg, ok, err := b.repo.GuildConfig(ctx, interaction.GuildID)
	if err != nil {
		return fmt.Sprintf("status lookup failed: %v", err)
	}
	if !ok {
		return "this server isn't connected to a space"
	}
	return fmt.Sprintf("connected to space %s (mode: %s)", cfg.SpaceStream.String(), cfg.Mode)
}

func optionValue(interaction discordapi.Interaction, name string) string {
	for _, opt := range interaction.Data.Options {
		if opt.Name == name {
			return opt.Value
		}
	}
	return ""
}
