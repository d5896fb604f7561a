// Egress translates Roomy-origin space events into Discord webhook
// posts, per spec.md §4.7's egress algorithm. It runs as a periodic
// sweep over BridgeRepository.PendingEgressMessages rather than
// subscribing to individual events, since the materializer already
// gives the repository a durable "not yet mapped" queue to drain —
// simpler than threading a second live-query subscription through the
// bridge just to notice new messages.
package bridge

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/roomyhq/spacepeer/internal/bridge/discordapi"
	"golang.org/x/crypto/blake2b"
)

// nonceLen is how much of a ULID's 26-character canonical string
// Discord's nonce field accepts as a dedup key (spec.md §4.7 step 1);
// Discord truncates nonces past a length it doesn't publish, so 25
// stays safely under it while remaining unique per event.
const nonceLen = 25

// Sweep drains every not-yet-synced message for the bridge's space and
// posts each to its mapped Discord channel's webhook, in id order.
func (b *Bridge) Sweep(ctx context.Context, limit int) error {
	pending, err := b.repo.PendingEgressMessages(ctx, b.cfg.SpaceStream, limit)
	if err != nil {
		return fmt.Errorf("egress sweep: list pending: %w", err)
	}
	for _, msg := range pending {
		if err := b.egressOne(ctx, msg); err != nil {
			b.log.Error(ctx, "bridge: egress %s failed: %v", msg.ID.String(), err)
		}
	}
	return nil
}

func (b *Bridge) egressOne(ctx context.Context, msg PendingEgressMessage) error {
	isOrigin, err := b.repo.IsOrigin(ctx, msg.ID.Bytes())
	if err != nil {
		return fmt.Errorf("check origin: %w", err)
	}
	if isOrigin {
		// Bridge-authored (ingested from Discord); PendingEgressMessages
		// already anti-joins bridge_origin, this is a defense-in-depth
		// second check against the race between ingest's two writes.
		return nil
	}

	if _, ok, err := b.repo.MapRoomyToDiscord(ctx, kindMessage, msg.ID.String()); err != nil {
		return fmt.Errorf("check existing mapping: %w", err)
	} else if ok {
		return nil
	}

	discordRoom, ok, err := b.repo.MapRoomyToDiscord(ctx, kindRoom, msg.Room.String())
	if err != nil {
		return fmt.Errorf("resolve room mapping: %w", err)
	}
	if !ok {
		// Room not bridged yet (e.g. created before this guild
		// connected); nothing to post into.
		return nil
	}

	hash := contentHash(msg.BodyMime, msg.Body)
	if existingDiscordID, found, err := b.repo.LookupContentHash(ctx, discordRoom, hash); err != nil {
		return fmt.Errorf("lookup content hash: %w", err)
	} else if found {
		// Same content already posted to this channel (e.g. the
		// bridge restarted mid-sweep and retried); record the mapping
		// instead of double-posting, satisfying Testable Property 5.
		return b.repo.RecordMapping(ctx, kindMessage, existingDiscordID, msg.ID.String())
	}

	webhookID, webhookToken, err := b.repo.Webhook(ctx, b.client, discordRoom)
	if err != nil {
		return fmt.Errorf("resolve webhook: %w", err)
	}

	nonce := msg.ID.String()
	if len(nonce) > nonceLen {
		nonce = nonce[:nonceLen]
	}
	req := discordapi.ExecuteWebhookRequest{
		Content:  string(msg.Body),
		Username: puppetUsername(msg.AuthorDID),
		Nonce:    nonce,
	}
	posted, err := b.client.ExecuteWebhook(ctx, webhookID, webhookToken, req)
	if discordapi.ErrWebhookGone(err) {
		if err := b.repo.InvalidateWebhook(ctx, discordRoom); err != nil {
			return fmt.Errorf("invalidate stale webhook: %w", err)
		}
		webhookID, webhookToken, err = b.repo.Webhook(ctx, b.client, discordRoom)
		if err != nil {
			return fmt.Errorf("recreate webhook: %w", err)
		}
		posted, err = b.client.ExecuteWebhook(ctx, webhookID, webhookToken, req)
	}
	if err != nil {
		return fmt.Errorf("execute webhook: %w", err)
	}

	if err := b.repo.RecordMapping(ctx, kindMessage, posted.ID, msg.ID.String()); err != nil {
		return fmt.Errorf("record mapping: %w", err)
	}
	return b.repo.RegisterContentHash(ctx, discordRoom, hash, posted.ID)
}

// contentHash fingerprints a message body for the restart-safe dedup
// check above. blake2b-256 rather than stdlib sha256 is a deliberate
// pack-idiomatic choice (golang.org/x/crypto is already a teacher
// dependency; spec.md §4.7 leaves the exact hash unspecified).
func contentHash(mime string, body []byte) string {
	h, _ := blake2b.New256(nil)
	_, _ = h.Write([]byte(mime))
	_, _ = h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

// puppetUsername derives a display name from a Roomy author DID until
// the profile-cache lookup spec.md §4.7 leaves open is wired up; stable
// and human-legible beats leaking the raw DID into chat.
func puppetUsername(authorDID string) string {
	sum := sha256.Sum256([]byte(authorDID))
	return fmt.Sprintf("roomy-user-%x", sum[:4])
}
