package eventchannel

import (
	"context"
	"testing"
	"time"

	"github.com/roomyhq/spacepeer/internal/schema"
)

func TestPopPrefersPriorityOverBackground(t *testing.T) {
	c := New()
	bg := Batch{BatchID: schema.NewID(), Priority: Background}
	pr := Batch{BatchID: schema.NewID(), Priority: PriorityHigh}

	c.Push(bg)
	c.Push(pr)

	got, ok := c.Pop(context.Background())
	if !ok {
		t.Fatal("expected a batch")
	}
	if got.BatchID != pr.BatchID {
		t.Fatalf("expected priority batch first, got %v", got)
	}

	got, ok = c.Pop(context.Background())
	if !ok || got.BatchID != bg.BatchID {
		t.Fatalf("expected background batch second, got %v ok=%v", got, ok)
	}
}

func TestPopFIFOWithinPriority(t *testing.T) {
	c := New()
	first := Batch{BatchID: schema.NewID(), Priority: Background}
	second := Batch{BatchID: schema.NewID(), Priority: Background}
	c.Push(first)
	c.Push(second)

	got1, _ := c.Pop(context.Background())
	got2, _ := c.Pop(context.Background())
	if got1.BatchID != first.BatchID || got2.BatchID != second.BatchID {
		t.Fatalf("expected FIFO order, got %v then %v", got1, got2)
	}
}

func TestPopBlocksUntilPush(t *testing.T) {
	c := New()
	done := make(chan Batch, 1)
	go func() {
		b, ok := c.Pop(context.Background())
		if ok {
			done <- b
		}
	}()

	time.Sleep(20 * time.Millisecond)
	select {
	case <-done:
		t.Fatal("Pop returned before any Push")
	default:
	}

	b := Batch{BatchID: schema.NewID(), Priority: Background}
	c.Push(b)

	select {
	case got := <-done:
		if got.BatchID != b.BatchID {
			t.Fatalf("got %v, want %v", got, b)
		}
	case <-time.After(time.Second):
		t.Fatal("Pop never returned after Push")
	}
}

func TestPopRespectsContextCancellation(t *testing.T) {
	c := New()
	ctx, cancel := context.WithCancel(context.Background())
	resultCh := make(chan bool, 1)
	go func() {
		_, ok := c.Pop(ctx)
		resultCh <- ok
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case ok := <-resultCh:
		if ok {
			t.Fatal("expected Pop to return ok=false on cancellation")
		}
	case <-time.After(time.Second):
		t.Fatal("Pop never returned after context cancellation")
	}
}

func TestCloseUnblocksPop(t *testing.T) {
	c := New()
	resultCh := make(chan bool, 1)
	go func() {
		_, ok := c.Pop(context.Background())
		resultCh <- ok
	}()

	time.Sleep(20 * time.Millisecond)
	c.Close()

	select {
	case ok := <-resultCh:
		if ok {
			t.Fatal("expected ok=false after Close")
		}
	case <-time.After(time.Second):
		t.Fatal("Pop never returned after Close")
	}
}

func TestPushAfterCloseIsNoop(t *testing.T) {
	c := New()
	c.Close()
	c.Push(Batch{BatchID: schema.NewID()})
	if c.Len() != 0 {
		t.Fatalf("expected Push after Close to be dropped, got len %d", c.Len())
	}
}
