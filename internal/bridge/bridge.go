package bridge

import (
	"context"

	"github.com/roomyhq/spacepeer/internal/bridge/discordapi"
	"github.com/roomyhq/spacepeer/internal/logging"
	"github.com/roomyhq/spacepeer/internal/schema"
)

// bridgeAuthorDID is the service identity every event the bridge
// writes to a space is authored as, distinct from any real space
// member's DID.
const bridgeAuthorDID = schema.UserDID("did:roomy:discordbridge")

// eventSender is the narrow slice of *internal/peer.Peer the bridge
// needs: encode-and-append-then-wait-for-local-materialization, per
// spec.md §4.6's write path. A named interface instead of a direct
// *peer.Peer dependency keeps this package testable without a live
// stream client or store.
type eventSender interface {
	SendEvent(ctx context.Context, streamID schema.StreamID, ev schema.Event) error
}

// Bridge is one guild↔space pair: spec.md §4.7's target shape, with
// BridgeOrchestrator owning one Bridge per pair and every Bridge
// sharing the orchestrator's single Discord client/gateway connection
// (a bot has exactly one gateway session regardless of how many
// guilds it bridges).
type Bridge struct {
	cfg    GuildConfig
	client *discordapi.Client
	repo   *BridgeRepository
	sender eventSender
	log    *logging.Logger
}

func newBridge(cfg GuildConfig, client *discordapi.Client, repo *BridgeRepository, sender eventSender, log *logging.Logger) *Bridge {
	return &Bridge{cfg: cfg, client: client, repo: repo, sender: sender, log: log}
}

// GuildID returns the Discord guild this bridge mirrors.
func (b *Bridge) GuildID() string { return b.cfg.GuildID }

// SpaceStream returns the space stream this bridge mirrors the guild
// into.
func (b *Bridge) SpaceStream() schema.StreamID { return b.cfg.SpaceStream }
