package rpc

import "testing"

func TestChanPortPairDelivers(t *testing.T) {
	a, b := NewChanPortPair(1)
	defer a.Close()
	defer b.Close()

	want := Envelope{ID: "1", Method: "ping"}
	if err := a.Send(want); err != nil {
		t.Fatalf("send: %v", err)
	}
	got, err := b.Recv()
	if err != nil {
		t.Fatalf("recv: %v", err)
	}
	if got.ID != want.ID || got.Method != want.Method {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestChanPortCloseUnblocksBothEnds(t *testing.T) {
	a, b := NewChanPortPair(0)
	a.Close()

	if _, err := a.Recv(); err != ErrClosed {
		t.Fatalf("a.Recv() = %v, want ErrClosed", err)
	}
	if _, err := b.Recv(); err != ErrClosed {
		t.Fatalf("b.Recv() = %v, want ErrClosed", err)
	}
	if err := b.Send(Envelope{}); err != ErrClosed {
		t.Fatalf("b.Send() = %v, want ErrClosed", err)
	}
}

func TestDispatchUnknownMethod(t *testing.T) {
	d := &Dispatcher{}
	resp := d.Handle(nil, Envelope{ID: "1", Method: "notAMethod"})
	if resp.Error == nil {
		t.Fatalf("expected an error for an unknown method")
	}
}

func TestDispatchPing(t *testing.T) {
	d := &Dispatcher{}
	resp := d.Handle(nil, Envelope{ID: "1", Method: "ping"})
	if resp.Error != nil {
		t.Fatalf("unexpected error: %v", resp.Error)
	}
	if string(resp.Result) != `"pong"` {
		t.Fatalf("got result %s, want \"pong\"", resp.Result)
	}
}
