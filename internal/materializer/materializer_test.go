package materializer

import (
	"testing"

	"github.com/roomyhq/spacepeer/internal/schema"
)

func TestSortEventsByID(t *testing.T) {
	a := schema.Event{ID: schema.NewID()}
	b := schema.Event{ID: schema.NewID()}
	c := schema.Event{ID: schema.NewID()}

	events := []schema.Event{c, a, b}
	sortEventsByID(events)

	if !(events[0].ID.Compare(events[1].ID) <= 0 && events[1].ID.Compare(events[2].ID) <= 0) {
		t.Fatalf("events not sorted ascending by id: %v", events)
	}
}

func TestOutcomeString(t *testing.T) {
	cases := map[Outcome]string{
		Applied: "applied",
		Parked:  "parked",
		Failed:  "failed",
	}
	for o, want := range cases {
		if got := o.String(); got != want {
			t.Errorf("Outcome(%d).String() = %q, want %q", o, got, want)
		}
	}
}

func TestBatchResultAllSucceeded(t *testing.T) {
	succeeded := BatchResult{Events: []EventResult{{Outcome: Applied}, {Outcome: Parked}}}
	if !succeeded.AllSucceeded() {
		t.Fatal("expected AllSucceeded true when no event failed")
	}

	failed := BatchResult{Events: []EventResult{{Outcome: Applied}, {Outcome: Failed, Reason: "boom"}}}
	if failed.AllSucceeded() {
		t.Fatal("expected AllSucceeded false when an event failed")
	}
}

func TestProjectorsRegisteredForEveryDependencyBearingVariant(t *testing.T) {
	// Every variant that declares dependencies must also have a
	// projector, or a parked event could never be applied once
	// released.
	for _, tag := range []schema.VariantTag{
		schema.EditMessage, schema.DeleteMessage, schema.MoveMessage, schema.ReorderMessage,
		schema.OverrideMeta, schema.AddReaction, schema.RemoveReaction,
		schema.AddBridgedReaction, schema.RemoveBridgedReaction, schema.EditPage,
		schema.RemoveRoomLink, schema.DeleteRoom, schema.LeaveRoom,
		schema.RemoveMember, schema.RemoveAdmin,
	} {
		if _, ok := projectors[tag]; !ok {
			t.Errorf("variant %q has no registered projector", tag)
		}
	}
}
