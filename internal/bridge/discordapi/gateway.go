package discordapi

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
)

const gatewayURL = "wss://gateway.discord.gg/?v=10&encoding=json"

// gatewayPayload is Discord's outer gateway envelope (opcode + event
// name + data), the websocket analogue of this package's REST Message/
// Channel/Reaction shapes.
type gatewayPayload struct {
	Op int             `json:"op"`
	D  json.RawMessage `json:"d"`
	S  int             `json:"s,omitempty"`
	T  string          `json:"t,omitempty"`
}

const (
	opDispatch            = 0
	opHeartbeat           = 1
	opIdentify            = 2
	opInvalidSession      = 9
	opHello               = 10
	opHeartbeatAck        = 11
)

// Event is one dispatched gateway event, handed to the bridge's ingest
// path keyed by its type name (e.g. "MESSAGE_CREATE", "CHANNEL_CREATE",
// "MESSAGE_REACTION_ADD", "INTERACTION_CREATE").
type Event struct {
	Type string
	Data json.RawMessage
}

// Gateway is a bot-authenticated gateway connection, grounded on
// internal/streamclient's dial/read-loop/ping-loop shape (itself
// grounded on the teacher's internal/rooms.Client), adapted to
// Discord's hello/heartbeat/identify handshake instead of a bare
// ping/pong.
type Gateway struct {
	botToken string
	intents  int
	conn     *websocket.Conn
	events   chan Event
}

// NewGateway constructs a Gateway for the given bot token and intent
// bitmask (spec.md §4.7 needs GUILDS, GUILD_MESSAGES, MESSAGE_CONTENT
// and GUILD_MESSAGE_REACTIONS at minimum).
func NewGateway(botToken string, intents int) *Gateway {
	return &Gateway{botToken: botToken, intents: intents, events: make(chan Event, 256)}
}

// Events returns the channel dispatched events arrive on.
func (g *Gateway) Events() <-chan Event { return g.events }

// Run connects and processes the gateway until ctx is canceled or the
// connection drops, then returns. It does not reconnect; this package
// has no opinion on backoff policy.
func (g *Gateway) Run(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, gatewayURL, nil)
	if err != nil {
		return fmt.Errorf("dial gateway: %w", err)
	}
	defer conn.Close()
	g.conn = conn

	var hello struct {
		HeartbeatInterval int `json:"heartbeat_interval"`
	}
	var first gatewayPayload
	if err := conn.ReadJSON(&first); err != nil {
		return fmt.Errorf("read hello: %w", err)
	}
	if first.Op != opHello {
		return fmt.Errorf("expected hello, got op %d", first.Op)
	}
	if err := json.Unmarshal(first.D, &hello); err != nil {
		return fmt.Errorf("decode hello: %w", err)
	}

	if err := g.identify(); err != nil {
		return err
	}

	done := make(chan struct{})
	defer close(done)
	go g.heartbeatLoop(time.Duration(hello.HeartbeatInterval)*time.Millisecond, done)

	for {
		var p gatewayPayload
		if err := conn.ReadJSON(&p); err != nil {
			return fmt.Errorf("read gateway frame: %w", err)
		}
		switch p.Op {
		case opDispatch:
			select {
			case g.events <- Event{Type: p.T, Data: p.D}:
			case <-ctx.Done():
				return ctx.Err()
			}
		case opInvalidSession:
			return fmt.Errorf("gateway invalidated session")
		case opHeartbeatAck:
			// nothing to do; heartbeatLoop only cares about sending.
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

func (g *Gateway) identify() error {
	payload := gatewayPayload{
		Op: opIdentify,
	}
	body, err := json.Marshal(struct {
		Token      string `json:"token"`
		Intents    int    `json:"intents"`
		Properties struct {
			OS      string `json:"os"`
			Browser string `json:"browser"`
			Device  string `json:"device"`
		} `json:"properties"`
	}{
		Token:   g.botToken,
		Intents: g.intents,
		Properties: struct {
			OS      string `json:"os"`
			Browser string `json:"browser"`
			Device  string `json:"device"`
		}{OS: "linux", Browser: "spacepeer", Device: "spacepeer"},
	})
	if err != nil {
		return fmt.Errorf("marshal identify: %w", err)
	}
	payload.D = body
	return g.conn.WriteJSON(payload)
}

func (g *Gateway) heartbeatLoop(interval time.Duration, done <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := g.conn.WriteJSON(gatewayPayload{Op: opHeartbeat}); err != nil {
				return
			}
		}
	}
}

// Close closes the underlying connection.
func (g *Gateway) Close() error {
	if g.conn == nil {
		return nil
	}
	return g.conn.Close()
}
