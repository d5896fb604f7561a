package schema

import (
	"bytes"
	"testing"
)

func sampleEvent(variant VariantTag, payload any) Event {
	return Event{
		ID:        NewID(),
		Stream:    StreamID(NewID()),
		Author:    UserDID("did:plc:abc123"),
		Variant:   variant,
		CreatedAt: 1700000000000,
		Payload:   payload,
	}
}

func TestEncodeParseRoundTrip(t *testing.T) {
	replyTo := NewID()
	cases := []struct {
		name    string
		variant VariantTag
		payload any
	}{
		{"joinSpace", JoinSpace, JoinSpacePayload{Space: StreamID(NewID())}},
		{"createRoom", CreateRoom, CreateRoomPayload{Kind: RoomKindChannel, Name: "general", Description: "chat"}},
		{"createRoomWithParent", CreateRoom, func() any {
			parent := RoomID(NewID())
			return CreateRoomPayload{Kind: RoomKindThread, Parent: &parent, Name: "thread-1"}
		}()},
		{"createMessage", CreateMessage, CreateMessagePayload{
			Room:     RoomID(NewID()),
			BodyMime: "text/plain",
			Body:     []byte("hello world"),
			Extensions: []Extension{
				{NSID: "space.roomy.message.reply.v0", Payload: []byte{1, 2, 3}},
				{NSID: "space.roomy.message.attachment.v0", Payload: []byte{4, 5}},
			},
		}},
		{"editMessage", EditMessage, EditMessagePayload{
			Target:   NewID(),
			BodyMime: "text/plain",
			Body:     []byte("edited"),
			ReplyTo:  &replyTo,
		}},
		{"updateSpaceInfo", UpdateSpaceInfo, UpdateSpaceInfoPayload{
			Name:   Set("My Space"),
			Avatar: Clear(),
		}},
		{"addReaction", AddReaction, AddReactionPayload{Target: NewID(), Emoji: "🎉"}},
		{"lastRead", LastRead, LastReadPayload{Target: RoomID(NewID()), Timestamp: 1700000001234}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ev := sampleEvent(tc.variant, tc.payload)
			encoded, err := Encode(ev)
			if err != nil {
				t.Fatalf("Encode: %v", err)
			}
			decoded, err := Parse(encoded)
			if err != nil {
				t.Fatalf("Parse: %v", err)
			}
			if decoded.ID != ev.ID || decoded.Stream != ev.Stream || decoded.Author != ev.Author ||
				decoded.Variant != ev.Variant || decoded.CreatedAt != ev.CreatedAt {
				t.Fatalf("envelope mismatch: got %+v, want %+v", decoded, ev)
			}
			reEncoded, err := Encode(decoded)
			if err != nil {
				t.Fatalf("re-Encode: %v", err)
			}
			if !bytes.Equal(encoded, reEncoded) {
				t.Fatalf("encoding not deterministic across round trip")
			}
		})
	}
}

func TestEncodeDeterministicExtensionOrder(t *testing.T) {
	base := CreateMessagePayload{
		Room:     RoomID(NewID()),
		BodyMime: "text/plain",
		Body:     []byte("hi"),
		Extensions: []Extension{
			{NSID: "space.roomy.message.timestampOverride.v0", Payload: []byte{9}},
			{NSID: "space.roomy.message.attachment.v0", Payload: []byte{1}},
		},
	}
	reordered := base
	reordered.Extensions = []Extension{base.Extensions[1], base.Extensions[0]}

	ev1 := sampleEvent(CreateMessage, base)
	ev2 := ev1
	ev2.Payload = reordered

	b1, err := Encode(ev1)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	b2, err := Encode(ev2)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if !bytes.Equal(b1, b2) {
		t.Fatalf("extension map order affected encoding")
	}
}

func TestParseUnknownVariant(t *testing.T) {
	ev := sampleEvent(VariantTag("space.roomy.bogus.v0"), JoinSpacePayload{Space: StreamID(NewID())})
	w := &wireWriter{buf: []byte{FormatVersion}}
	w.putString(string(ev.Variant))
	w.putID(ev.ID)
	w.putID(ID(ev.Stream))
	w.putString(string(ev.Author))
	w.putInt64(ev.CreatedAt)

	_, err := Parse(w.buf)
	if err == nil {
		t.Fatal("expected error for unknown variant")
	}
}

func TestParseTruncated(t *testing.T) {
	ev := sampleEvent(JoinSpace, JoinSpacePayload{Space: StreamID(NewID())})
	encoded, err := Encode(ev)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	for cut := 1; cut < len(encoded); cut++ {
		if _, err := Parse(encoded[:cut]); err == nil {
			t.Fatalf("expected error parsing truncated input at %d bytes", cut)
		}
	}
}

func TestLegacySendMessageCanonicalizesOnParse(t *testing.T) {
	ev := sampleEvent(legacySendMessageV1, CreateMessagePayload{
		Room:     RoomID(NewID()),
		BodyMime: "text/plain",
		Body:     []byte("legacy"),
	})
	encoded, err := Encode(Event{
		ID: ev.ID, Stream: ev.Stream, Author: ev.Author, CreatedAt: ev.CreatedAt,
		Variant: CreateMessage, Payload: ev.Payload,
	})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	// Rewrite the tag bytes to the legacy form to simulate a wire event
	// minted by an older writer; field layout is identical so this is
	// safe for this specific alias.
	w := &wireWriter{buf: []byte{FormatVersion}}
	w.putString(string(legacySendMessageV1))
	w.putID(ev.ID)
	w.putID(ID(ev.Stream))
	w.putString(string(ev.Author))
	w.putInt64(ev.CreatedAt)
	codec := codecs[CreateMessage]
	codec.marshal(w, ev.Payload)

	decoded, err := Parse(w.buf)
	if err != nil {
		t.Fatalf("Parse legacy: %v", err)
	}
	if decoded.Variant != CreateMessage {
		t.Fatalf("expected canonicalized variant %q, got %q", CreateMessage, decoded.Variant)
	}
	_ = encoded
}

func TestDependenciesOf(t *testing.T) {
	target := NewID()
	prevEdit := NewID()

	cases := []struct {
		name string
		ev   Event
		want []ID
	}{
		{
			"editMessage with prevEdit",
			Event{Variant: EditMessage, Payload: EditMessagePayload{Target: target, PrevEdit: &prevEdit}},
			[]ID{target, prevEdit},
		},
		{
			"deleteMessage",
			Event{Variant: DeleteMessage, Payload: DeleteMessagePayload{Target: target}},
			[]ID{target},
		},
		{
			"createMessage has no dependencies",
			Event{Variant: CreateMessage, Payload: CreateMessagePayload{}},
			nil,
		},
		{
			"addReaction",
			Event{Variant: AddReaction, Payload: AddReactionPayload{Target: target}},
			[]ID{target},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := DependenciesOf(tc.ev)
			if len(got) != len(tc.want) {
				t.Fatalf("got %v, want %v", got, tc.want)
			}
			for i := range got {
				if got[i] != tc.want[i] {
					t.Fatalf("got %v, want %v", got, tc.want)
				}
			}
		})
	}
}

func TestIsDependencyBearing(t *testing.T) {
	if !(Event{Variant: EditMessage}).IsDependencyBearing() {
		t.Fatal("editMessage should be dependency-bearing")
	}
	if (Event{Variant: CreateMessage}).IsDependencyBearing() {
		t.Fatal("createMessage should not be dependency-bearing")
	}
}
