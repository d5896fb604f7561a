package discordapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/sethvargo/go-retry"
)

const apiBase = "https://discord.com/api/v10"

// Limiter proactively throttles outbound calls before they're sent,
// complementing do's reactive 429/Retry-After handling. nil is a valid
// Limiter-less Client: every call simply relies on the reactive path.
type Limiter interface {
	Wait(ctx context.Context) error
}

// Client is a REST client authenticated as a bot, retrying 5xx and
// honoring 429 Retry-After per spec.md §4.7's rate-limit handling.
type Client struct {
	botToken   string
	httpClient *http.Client
	limiter    Limiter
}

// New constructs a Client authenticated with a bot token (spec.md §6's
// discordBotToken config option).
func New(botToken string) *Client {
	return &Client{botToken: botToken, httpClient: &http.Client{Timeout: 15 * time.Second}}
}

// WithLimiter attaches a proactive rate limiter (e.g. bridge.RateLimiter)
// that every call waits on before hitting the network.
func (c *Client) WithLimiter(l Limiter) *Client {
	c.limiter = l
	return c
}

// ErrRateLimited is returned by do when Discord's rate limiter rejects
// every retry attempt within the backoff budget.
type ErrRateLimited struct {
	RetryAfter time.Duration
}

func (e *ErrRateLimited) Error() string {
	return fmt.Sprintf("discordapi: rate limited, retry after %s", e.RetryAfter)
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter: %w", err)
		}
	}

	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
	}

	backoff, err := retry.NewExponential(300 * time.Millisecond)
	if err != nil {
		return fmt.Errorf("construct retry backoff: %w", err)
	}
	backoff = retry.WithMaxRetries(5, backoff)

	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, method, apiBase+path, bytes.NewReader(payload))
		if err != nil {
			return fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("Authorization", "Bot "+c.botToken)
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return retry.RetryableError(fmt.Errorf("request failed: %w", err))
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusTooManyRequests {
			retryAfter := parseRetryAfter(resp.Header.Get("Retry-After"))
			time.Sleep(retryAfter)
			return retry.RetryableError(&ErrRateLimited{RetryAfter: retryAfter})
		}
		if resp.StatusCode >= 500 {
			return retry.RetryableError(fmt.Errorf("discord %s %s: status %d", method, path, resp.StatusCode))
		}
		if resp.StatusCode >= 400 {
			b, _ := io.ReadAll(resp.Body)
			return fmt.Errorf("discord %s %s: status %d: %s", method, path, resp.StatusCode, b)
		}
		if out != nil {
			if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
				return fmt.Errorf("decode response: %w", err)
			}
		}
		return nil
	})
}

func parseRetryAfter(header string) time.Duration {
	seconds, err := strconv.ParseFloat(header, 64)
	if err != nil || seconds <= 0 {
		return time.Second
	}
	return time.Duration(seconds * float64(time.Second))
}

// GetChannel fetches a channel by id.
func (c *Client) GetChannel(ctx context.Context, channelID string) (Channel, error) {
	var ch Channel
	err := c.do(ctx, http.MethodGet, "/channels/"+channelID, nil, &ch)
	return ch, err
}

// ListGuildChannels lists every channel in a guild, the backfill
// path's source of which channels to mirror in "full" mode.
func (c *Client) ListGuildChannels(ctx context.Context, guildID string) ([]Channel, error) {
	var chans []Channel
	err := c.do(ctx, http.MethodGet, "/guilds/"+guildID+"/channels", nil, &chans)
	return chans, err
}

// GetOrCreateWebhook lists a channel's webhooks and returns the first
// one listed, whoever created it; only when the channel has none does
// it create one named "roomy-bridge".
func (c *Client) GetOrCreateWebhook(ctx context.Context, channelID string) (Webhook, error) {
	var hooks []Webhook
	if err := c.do(ctx, http.MethodGet, "/channels/"+channelID+"/webhooks", nil, &hooks); err != nil {
		return Webhook{}, err
	}
	if len(hooks) > 0 {
		return hooks[0], nil
	}
	var created Webhook
	err := c.do(ctx, http.MethodPost, "/channels/"+channelID+"/webhooks",
		struct {
			Name string `json:"name"`
		}{Name: "roomy-bridge"}, &created)
	return created, err
}

// ExecuteWebhookRequest is the puppeted-send shape: author display
// name/avatar are supplied per call (spec.md §4.7's "puppeting the
// author's display name/avatar via a per-bridge profile cache").
type ExecuteWebhookRequest struct {
	Content   string `json:"content"`
	Username  string `json:"username,omitempty"`
	AvatarURL string `json:"avatar_url,omitempty"`
	Nonce     string `json:"nonce,omitempty"`
}

// ExecuteWebhook posts a message through webhookID/webhookToken,
// returning the created message (so the bridge can record its id in
// the mapping table).
func (c *Client) ExecuteWebhook(ctx context.Context, webhookID, webhookToken string, req ExecuteWebhookRequest) (Message, error) {
	var msg Message
	path := fmt.Sprintf("/webhooks/%s/%s?wait=true", webhookID, webhookToken)
	err := c.do(ctx, http.MethodPost, path, req, &msg)
	if isWebhookGone(err) {
		return Message{}, errWebhookGone
	}
	return msg, err
}

var errWebhookGone = fmt.Errorf("discordapi: webhook no longer exists")

func isWebhookGone(err error) bool {
	return err != nil && bytes.Contains([]byte(err.Error()), []byte("status 404"))
}

// ErrWebhookGone reports whether err indicates the cached webhook was
// deleted server-side, so the caller should ClearWebhookToken and
// recreate it.
func ErrWebhookGone(err error) bool { return err == errWebhookGone }

// ListMessages pages a channel's history, before being a message id
// (exclusive) or "" for the most recent page.
func (c *Client) ListMessages(ctx context.Context, channelID, before string, limit int) ([]Message, error) {
	path := fmt.Sprintf("/channels/%s/messages?limit=%d", channelID, limit)
	if before != "" {
		path += "&before=" + before
	}
	var msgs []Message
	err := c.do(ctx, http.MethodGet, path, nil, &msgs)
	return msgs, err
}

// CreateRole creates a guild role for subset-mode channel scoping.
func (c *Client) CreateRole(ctx context.Context, guildID, name string) (Role, error) {
	var role Role
	err := c.do(ctx, http.MethodPost, "/guilds/"+guildID+"/roles",
		struct {
			Name string `json:"name"`
		}{Name: name}, &role)
	return role, err
}

// DeleteRole removes a guild role; spec.md §4.7's subset-mode teardown
// is exactly this one call.
func (c *Client) DeleteRole(ctx context.Context, guildID, roleID string) error {
	return c.do(ctx, http.MethodDelete, "/guilds/"+guildID+"/roles/"+roleID, nil, nil)
}

// PutChannelRoleOverwrite grants roleID VIEW_CHANNEL: Allow on
// channelID, the subset-mode scoping primitive.
func (c *Client) PutChannelRoleOverwrite(ctx context.Context, channelID, roleID string) error {
	const viewChannelBit = 1 << 10
	return c.do(ctx, http.MethodPut, fmt.Sprintf("/channels/%s/permissions/%s", channelID, roleID),
		struct {
			Type  int    `json:"type"` // 0 = role
			Allow string `json:"allow"`
		}{Type: 0, Allow: fmt.Sprintf("%d", viewChannelBit)}, nil)
}

// RespondToInteraction acknowledges a slash-command interaction.
// Suppresses 40060 (already acknowledged) and 10062 (unknown
// interaction) per spec.md §4.7's idempotent interaction handling —
// both mean a concurrent handler or a slow network already replied.
func (c *Client) RespondToInteraction(ctx context.Context, interactionID, interactionToken, content string) error {
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("/interactions/%s/%s/callback", interactionID, interactionToken),
		struct {
			Type int `json:"type"`
			Data struct {
				Content string `json:"content"`
			} `json:"data"`
		}{Type: 4, Data: struct {
			Content string `json:"content"`
		}{Content: content}}, nil)
	if isDuplicateInteraction(err) {
		return nil
	}
	return err
}

func isDuplicateInteraction(err error) bool {
	if err == nil {
		return false
	}
	s := err.Error()
	return bytes.Contains([]byte(s), []byte("40060")) || bytes.Contains([]byte(s), []byte("10062"))
}
