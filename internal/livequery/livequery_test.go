package livequery

import (
	"context"
	"testing"
	"time"

	"github.com/roomyhq/spacepeer/internal/logging"
)

func newTestRegistry() *Registry {
	return New(logging.New("error"), time.Hour)
}

func TestCreateLiveQueryPushesInitialResult(t *testing.T) {
	r := newTestRegistry()
	defer r.Stop()

	calls := 0
	_, _, ch, err := r.CreateLiveQuery(context.Background(), []string{"comp_message"}, func(ctx context.Context) (any, error) {
		calls++
		return calls, nil
	}, 0)
	if err != nil {
		t.Fatalf("CreateLiveQuery: %v", err)
	}

	select {
	case v := <-ch:
		if v != 1 {
			t.Fatalf("expected initial result 1, got %v", v)
		}
	default:
		t.Fatal("expected initial result to be pushed synchronously")
	}
}

func TestOnTouchedTablesReEvaluatesMatchingSubscription(t *testing.T) {
	r := newTestRegistry()
	defer r.Stop()

	calls := 0
	id, _, ch, err := r.CreateLiveQuery(context.Background(), []string{"comp_message"}, func(ctx context.Context) (any, error) {
		calls++
		return calls, nil
	}, 0)
	if err != nil {
		t.Fatalf("CreateLiveQuery: %v", err)
	}
	<-ch // drain initial push

	r.OnTouchedTables(context.Background(), []string{"comp_reaction"})
	select {
	case <-ch:
		t.Fatal("unrelated touched table should not trigger re-evaluation")
	case <-time.After(20 * time.Millisecond):
	}

	r.OnTouchedTables(context.Background(), []string{"comp_message", "entities"})
	select {
	case v := <-ch:
		if v != 2 {
			t.Fatalf("expected second evaluation, got %v", v)
		}
	case <-time.After(time.Second):
		t.Fatal("expected re-evaluation on matching touched table")
	}

	r.DeleteLiveQuery(id)
}

func TestDeleteLiveQueryClosesChannel(t *testing.T) {
	r := newTestRegistry()
	defer r.Stop()

	id, _, ch, err := r.CreateLiveQuery(context.Background(), []string{"entities"}, func(ctx context.Context) (any, error) {
		return nil, nil
	}, 0)
	if err != nil {
		t.Fatalf("CreateLiveQuery: %v", err)
	}
	<-ch

	r.DeleteLiveQuery(id)

	_, open := <-ch
	if open {
		t.Fatal("expected result channel to be closed after DeleteLiveQuery")
	}
}

func TestLeaseReaperTearsDownExpiredLease(t *testing.T) {
	r := New(logging.New("error"), 10*time.Millisecond)
	defer r.Stop()

	id, _, ch, err := r.CreateLiveQuery(context.Background(), []string{"entities"}, func(ctx context.Context) (any, error) {
		return nil, nil
	}, 5*time.Millisecond)
	if err != nil {
		t.Fatalf("CreateLiveQuery: %v", err)
	}
	<-ch
	_ = id

	select {
	case _, open := <-ch:
		if open {
			t.Fatal("expected channel to be closed once reaped")
		}
	case <-time.After(time.Second):
		t.Fatal("expected reaper to tear down expired lease")
	}
}

func TestLeaseReleaseMarksExpired(t *testing.T) {
	l := newLease(time.Hour)
	if l.Expired() {
		t.Fatal("fresh lease with long TTL should not be expired")
	}
	l.Release()
	if !l.Expired() {
		t.Fatal("released lease should report expired")
	}
}

func TestLeaseTouchExtendsDeadline(t *testing.T) {
	l := newLease(10 * time.Millisecond)
	time.Sleep(5 * time.Millisecond)
	l.Touch(time.Hour)
	if l.Expired() {
		t.Fatal("touched lease should not be expired immediately")
	}
}
