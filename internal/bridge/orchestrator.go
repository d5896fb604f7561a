package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/roomyhq/spacepeer/internal/bridge/discordapi"
	"github.com/roomyhq/spacepeer/internal/logging"
	"github.com/roomyhq/spacepeer/internal/schema"
)

// guildIDOf extracts the guild_id Discord embeds directly in every
// gateway dispatch this bridge handles (channel/thread/message/
// reaction/interaction payloads all carry it), sparing a per-event-type
// decode just to find out which Bridge owns it.
func guildIDOf(ev discordapi.Event) (string, error) {
	var envelope struct {
		GuildID string `json:"guild_id"`
	}
	if err := json.Unmarshal(ev.Data, &envelope); err != nil {
		return "", fmt.Errorf("decode guild_id: %w", err)
	}
	return envelope.GuildID, nil
}

// sweepInterval is how often a connected guild's egress queue is
// drained; spec.md §4.7 doesn't pin a number, so this is a fixed
// two-second tick.
const sweepInterval = 2 * time.Second

// BridgeOrchestrator owns the single Discord REST client and gateway
// connection a bot needs regardless of guild count, and multiplexes
// gateway events out to one Bridge per connected (guild, space) pair —
// spec.md §9's explicitly named BridgeOrchestrator/Bridge/
// BridgeRepository split.
type BridgeOrchestrator struct {
	client  *discordapi.Client
	gateway *discordapi.Gateway
	repo    *BridgeRepository
	sender  eventSender
	log     *logging.Logger

	mu      sync.RWMutex
	bridges map[string]*Bridge // guild id -> Bridge
}

// NewOrchestrator constructs a BridgeOrchestrator. Call Run to start
// the gateway read loop; call Connect or Disconnect after any
// ConnectGuild/DisconnectGuild to pick up the change.
func NewOrchestrator(client *discordapi.Client, gateway *discordapi.Gateway, repo *BridgeRepository, sender eventSender, log *logging.Logger) *BridgeOrchestrator {
	return &BridgeOrchestrator{
		client:  client,
		gateway: gateway,
		repo:    repo,
		sender:  sender,
		log:     log,
		bridges: make(map[string]*Bridge),
	}
}

// Connect adds or refreshes the Bridge for guildID, running its
// backfill if this is the first time the guild has been seen.
func (o *BridgeOrchestrator) Connect(ctx context.Context, guildID string) error {
	cfg, ok, err := o.repo.GuildConfig(ctx, guildID)
	if err != nil {
		return fmt.Errorf("orchestrator: connect %s: load config: %w", guildID, err)
	}
	if !ok {
		return fmt.Errorf("orchestrator: connect %s: guild has no bridge_guild row", guildID)
	}

	o.mu.Lock()
	_, alreadyConnected := o.bridges[guildID]
	b := newBridge(cfg, o.client, o.repo, o.sender, o.log)
	o.bridges[guildID] = b
	o.mu.Unlock()

	if alreadyConnected {
		return nil
	}
	if err := b.Backfill(ctx); err != nil {
		return fmt.Errorf("orchestrator: connect %s: backfill: %w", guildID, err)
	}
	return nil
}

// Disconnect removes guildID's Bridge from routing; the persisted
// bridge_guild row is the caller's (interactions.go's) responsibility.
func (o *BridgeOrchestrator) Disconnect(guildID string) {
	o.mu.Lock()
	delete(o.bridges, guildID)
	o.mu.Unlock()
}

func (o *BridgeOrchestrator) bridgeFor(guildID string) (*Bridge, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	b, ok := o.bridges[guildID]
	return b, ok
}

// ConnectAll loads the persisted guild bindings of each of spaces and
// connects them, so a bridged process can resume the guilds it was
// already serving for those spaces across a restart.
func (o *BridgeOrchestrator) ConnectAll(ctx context.Context, spaces []schema.StreamID) error {
	for _, space := range spaces {
		guilds, err := o.repo.GuildsForSpace(ctx, space)
		if err != nil {
			return fmt.Errorf("orchestrator: connect all: list guilds for space %s: %w", space.String(), err)
		}
		for _, g := range guilds {
			if err := o.Connect(ctx, g.GuildID); err != nil {
				return err
			}
		}
	}
	return nil
}

// Run drives the gateway's event loop and the periodic egress sweep
// until ctx is canceled, routing each dispatched gateway event to the
// Bridge whose guild it belongs to. Interaction events carry no
// implicit guild binding in all cases (DMs aside, out of scope here),
// so INTERACTION_CREATE is routed the same way as every other event:
// by the guild_id embedded in its own payload.
func (o *BridgeOrchestrator) Run(ctx context.Context) error {
	go func() {
		if err := o.gateway.Run(ctx); err != nil && ctx.Err() == nil {
			o.log.Error(ctx, "bridge: gateway run loop exited: %v", err)
		}
	}()

	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-o.gateway.Events():
			o.routeEvent(ctx, ev)
		case <-ticker.C:
			o.sweepAll(ctx)
		}
	}
}

func (o *BridgeOrchestrator) routeEvent(ctx context.Context, ev discordapi.Event) {
	guildID, err := guildIDOf(ev)
	if err != nil {
		o.log.Warn(ctx, "bridge: could not determine guild for event %s: %v", ev.Type, err)
		return
	}
	if guildID == "" {
		return
	}
	b, ok := o.bridgeFor(guildID)
	if !ok {
		return
	}
	if err := b.HandleGatewayEvent(ctx, ev); err != nil {
		o.log.Error(ctx, "bridge: handling %s for guild %s failed: %v", ev.Type, guildID, err)
	}
}

func (o *BridgeOrchestrator) sweepAll(ctx context.Context) {
	o.mu.RLock()
	bridges := make([]*Bridge, 0, len(o.bridges))
	for _, b := range o.bridges {
		bridges = append(bridges, b)
	}
	o.mu.RUnlock()

	for _, b := range bridges {
		if err := b.Sweep(ctx, 100); err != nil {
			o.log.Error(ctx, "bridge: sweep for guild %s failed: %v", b.GuildID(), err)
		}
	}
}
