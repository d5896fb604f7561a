// Package cache wraps go-redis the same way the teacher's
// internal/cache does — one struct, with Publish instrumented by an
// OTel span and a latency histogram and Subscribe by a span; the
// bridge helpers call Redis directly — repurposed from chat presence
// to sync-engine concerns: cross-process live-query invalidation
// fanout, and the Discord bridge's per-channel content-hash dedup
// index, webhook-token cache, and backfill cursors. GetClient exposes
// the raw client for internal/bridge.RateLimiter, which implements the
// token-bucket throttle of outbound Discord API calls on top of it.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

var redisLatency metric.Float64Histogram

// TouchedTablesChannel is the pub/sub channel sibling peer processes
// sharing one Postgres use to learn which tables a materialization
// batch touched, so their Live Query Engines also re-evaluate.
const TouchedTablesChannel = "spacepeer:touched_tables"

type Cache struct {
	client *redis.Client
}

// New creates a new Redis cache connection.
func New(dsn string) (*Cache, error) {
	var err error

	meter := otel.Meter("redis-client")
	redisLatency, err = meter.Float64Histogram("redis.command.latency", metric.WithUnit("ms"))
	if err != nil {
		return nil, fmt.Errorf("failed to create redis.command.latency instrument: %w", err)
	}

	opt, err := redis.ParseURL(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opt)

	ctx, span := otel.Tracer("redis-client").Start(context.Background(), "redis.ping")
	defer span.End()
	if err := client.Ping(ctx).Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to ping Redis")
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	span.SetStatus(codes.Ok, "Redis connected successfully")

	return &Cache{client: client}, nil
}

// GetClient returns the underlying Redis client for callers (e.g. the
// bridge's rate limiter) that need raw command access. Direct use
// bypasses tracing/metrics.
func (c *Cache) GetClient() *redis.Client {
	return c.client
}

func (c *Cache) Close() error {
	return c.client.Close()
}

// Publish instruments a Publish operation.
func (c *Cache) Publish(ctx context.Context, channel string, message interface{}) error {
	start := time.Now()
	ctx, span := otel.Tracer("redis-client").Start(ctx, "redis.publish", trace.WithAttributes(attribute.String("redis.channel", channel)))
	defer func() {
		redisLatency.Record(ctx, float64(time.Since(start).Milliseconds()), metric.WithAttributes(attribute.String("redis.command", "publish")))
		span.End()
	}()
	err := c.client.Publish(ctx, channel, message).Err()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Redis publish failed")
	}
	return err
}

// Subscribe instruments a Subscribe operation. The span covers only the
// subscribe call itself and ends before Subscribe returns; the returned
// PubSub is long-lived and callers close it when done.
func (c *Cache) Subscribe(ctx context.Context, channels ...string) *redis.PubSub {
	_, span := otel.Tracer("redis-client").Start(ctx, "redis.subscribe", trace.WithAttributes(attribute.StringSlice("redis.channels", channels)))
	defer span.End()
	return c.client.Subscribe(ctx, channels...)
}

// PublishTouchedTables announces the tables a materialization commit
// touched, for sibling peer processes sharing one store.
func (c *Cache) PublishTouchedTables(ctx context.Context, tables []string) error {
	payload := ""
	for i, t := range tables {
		if i > 0 {
			payload += ","
		}
		payload += t
	}
	return c.Publish(ctx, TouchedTablesChannel, payload)
}

// RegisterContentHash adds a Discord-message content hash to the
// per-channel dedup index used by the bridge's egress hash-based
// collision check (spec.md §4.7, Testable Property 5).
func (c *Cache) RegisterContentHash(ctx context.Context, discordChannelID, hash, discordMessageID string) error {
	key := fmt.Sprintf("bridge:hashidx:%s", discordChannelID)
	return c.client.HSet(ctx, key, hash, discordMessageID).Err()
}

// LookupContentHash returns the Discord message id previously
// registered under hash in discordChannelID's index, if any.
func (c *Cache) LookupContentHash(ctx context.Context, discordChannelID, hash string) (string, bool, error) {
	key := fmt.Sprintf("bridge:hashidx:%s", discordChannelID)
	val, err := c.client.HGet(ctx, key, hash).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

// SetWebhookToken persists a channel's cached webhook id+token so the
// bridge doesn't recreate a webhook on every egress.
func (c *Cache) SetWebhookToken(ctx context.Context, discordChannelID, webhookID, webhookToken string) error {
	key := fmt.Sprintf("bridge:webhook:%s", discordChannelID)
	return c.client.HSet(ctx, key, map[string]interface{}{
		"id":    webhookID,
		"token": webhookToken,
	}).Err()
}

// GetWebhookToken retrieves a channel's cached webhook id+token.
func (c *Cache) GetWebhookToken(ctx context.Context, discordChannelID string) (id, token string, ok bool, err error) {
	key := fmt.Sprintf("bridge:webhook:%s", discordChannelID)
	vals, err := c.client.HGetAll(ctx, key).Result()
	if err != nil {
		return "", "", false, err
	}
	if len(vals) == 0 {
		return "", "", false, nil
	}
	return vals["id"], vals["token"], true, nil
}

// ClearWebhookToken drops a channel's cached webhook, forcing
// recreation on the next egress (used after a 404).
func (c *Cache) ClearWebhookToken(ctx context.Context, discordChannelID string) error {
	key := fmt.Sprintf("bridge:webhook:%s", discordChannelID)
	return c.client.Del(ctx, key).Err()
}

// SetBackfillCursor persists the last-seen Discord message id for a
// channel's paginated history backfill, across restarts.
func (c *Cache) SetBackfillCursor(ctx context.Context, discordChannelID, lastSeenMessageID string) error {
	key := fmt.Sprintf("bridge:cursor:%s", discordChannelID)
	return c.client.Set(ctx, key, lastSeenMessageID, 0).Err()
}

// GetBackfillCursor retrieves a channel's backfill cursor, if any.
func (c *Cache) GetBackfillCursor(ctx context.Context, discordChannelID string) (string, bool, error) {
	key := fmt.Sprintf("bridge:cursor:%s", discordChannelID)
	val, err := c.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}
