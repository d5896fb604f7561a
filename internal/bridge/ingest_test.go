package bridge

import (
	"testing"

	"github.com/roomyhq/spacepeer/internal/bridge/discordapi"
)

func TestReactionKeyIsStableAndDistinct(t *testing.T) {
	a := discordapi.Reaction{MessageID: "1", UserID: "u1"}
	a.Emoji.Name = "🔥"
	b := discordapi.Reaction{MessageID: "1", UserID: "u2"}
	b.Emoji.Name = "🔥"

	if reactionKey(a) == reactionKey(b) {
		t.Fatalf("expected distinct keys for distinct users, got %q for both", reactionKey(a))
	}
	if reactionKey(a) != reactionKey(a) {
		t.Fatalf("reactionKey is not stable across calls")
	}
}

func TestReactionKeyDiffersByEmoji(t *testing.T) {
	a := discordapi.Reaction{MessageID: "1", UserID: "u1"}
	a.Emoji.Name = "🔥"
	b := discordapi.Reaction{MessageID: "1", UserID: "u1"}
	b.Emoji.Name = "👍"

	if reactionKey(a) == reactionKey(b) {
		t.Fatalf("expected distinct keys for distinct emoji, got %q for both", reactionKey(a))
	}
}
