// Package discordapi is the thin Discord transport spec.md §4.7's bridge
// rides on: REST calls over net/http with go-retry backoff and 429
// Retry-After honoring, plus a gateway websocket client for channel/
// thread/message/reaction events and slash-command interactions.
// Grounded on the teacher's internal/rooms.Client for the gateway's
// readPump/writePump/ping shape and the pack's go-retry dependency
// (other_examples/manifests/holomush-holomush) for REST backoff.
package discordapi

// Channel is the subset of Discord's channel object the bridge reads.
type Channel struct {
	ID       string `json:"id"`
	GuildID  string `json:"guild_id"`
	ParentID string `json:"parent_id,omitempty"`
	Name     string `json:"name"`
	Type     int    `json:"type"` // 0 text, 11/12 thread
}

// Message is the subset of Discord's message object the bridge reads
// and writes (via webhook execution, which returns the same shape).
// WebhookID is set by Discord on every message posted through a
// webhook, including the bridge's own puppeted sends — ingest's
// echo-loop guard is exactly "skip if WebhookID != \"\"" (spec.md
// §4.7, Testable Property 4).
type Message struct {
	ID          string        `json:"id"`
	ChannelID   string        `json:"channel_id"`
	Author      MessageAuthor `json:"author"`
	Content     string        `json:"content"`
	Attachments []Attachment  `json:"attachments"`
	Nonce       string        `json:"nonce,omitempty"`
	EditedTS    *string       `json:"edited_timestamp,omitempty"`
	WebhookID   string        `json:"webhook_id,omitempty"`
}

type MessageAuthor struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Bot      bool   `json:"bot"`
}

type Attachment struct {
	ID       string `json:"id"`
	Filename string `json:"filename"`
	URL      string `json:"url"`
	MimeType string `json:"content_type"`
}

// Reaction is the gateway's MESSAGE_REACTION_ADD/REMOVE payload shape.
type Reaction struct {
	UserID    string `json:"user_id"`
	ChannelID string `json:"channel_id"`
	MessageID string `json:"message_id"`
	GuildID   string `json:"guild_id"`
	Emoji     struct {
		Name string `json:"name"`
		ID   string `json:"id,omitempty"`
	} `json:"emoji"`
}

// Webhook is a channel webhook's id+token, the only two fields the
// bridge's egress path needs.
type Webhook struct {
	ID    string `json:"id"`
	Token string `json:"token"`
}

// Role is a guild role, used for subset-mode channel scoping (spec.md
// §4.7: the role's VIEW_CHANNEL overwrite is both the grant and the
// authoritative channel list).
type Role struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Interaction is a slash-command invocation delivered over the gateway
// (spec.md §4.7's "slash-command surface").
type Interaction struct {
	ID        string `json:"id"`
	Token     string `json:"token"`
	GuildID   string `json:"guild_id"`
	ChannelID string `json:"channel_id"`
	Data      struct {
		Name    string `json:"name"`
		Options []struct {
			Name  string `json:"name"`
			Value string `json:"value"`
		} `json:"options"`
	} `json:"data"`
}
