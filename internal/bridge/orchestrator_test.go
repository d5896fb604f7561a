package bridge

import (
	"testing"

	"github.com/roomyhq/spacepeer/internal/bridge/discordapi"
)

func TestGuildIDOfExtractsEmbeddedField(t *testing.T) {
	ev := discordapi.Event{Type: "MESSAGE_CREATE", Data: []byte(`{"id":"1","guild_id":"999"}`)}
	got, err := guildIDOf(ev)
	if err != nil {
		t.Fatalf("guildIDOf returned error: %v", err)
	}
	if got != "999" {
		t.Fatalf("guildIDOf = %q, want %q", got, "999")
	}
}

func TestGuildIDOfEmptyWhenAbsent(t *testing.T) {
	ev := discordapi.Event{Type: "MESSAGE_REACTION_ADD", Data: []byte(`{"message_id":"1"}`)}
	got, err := guildIDOf(ev)
	if err != nil {
		t.Fatalf("guildIDOf returned error: %v", err)
	}
	if got != "" {
		t.Fatalf("guildIDOf = %q, want empty string", got)
	}
}

func TestGuildIDOfInvalidJSON(t *testing.T) {
	ev := discordapi.Event{Type: "MESSAGE_CREATE", Data: []byte(`not json`)}
	if _, err := guildIDOf(ev); err == nil {
		t.Fatal("expected error for invalid JSON payload")
	}
}
