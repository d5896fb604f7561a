package rpc

import (
	"errors"
	"sync"
)

// ErrClosed is returned by Recv/Send once the port has been closed.
var ErrClosed = errors.New("rpc: port closed")

// ChanPort is an in-process Port backed by two buffered Go channels,
// used between the peer task and a storage worker running in the same
// process (spec.md §4.8's "setActiveSqliteWorker" implies more than
// one worker may exist per peer, each addressed over its own port).
type ChanPort struct {
	out       chan Envelope
	in        chan Envelope
	closed    chan struct{}
	closeOnce *sync.Once
}

// NewChanPortPair returns two ends of the same in-process link; what
// one side sends, the other receives. Closing either end closes both.
func NewChanPortPair(buffer int) (a, b *ChanPort) {
	ab := make(chan Envelope, buffer)
	ba := make(chan Envelope, buffer)
	closed := make(chan struct{})
	once := &sync.Once{}
	a = &ChanPort{out: ab, in: ba, closed: closed, closeOnce: once}
	b = &ChanPort{out: ba, in: ab, closed: closed, closeOnce: once}
	return a, b
}

func (p *ChanPort) Send(e Envelope) error {
	select {
	case p.out <- e:
		return nil
	case <-p.closed:
		return ErrClosed
	}
}

func (p *ChanPort) Recv() (Envelope, error) {
	select {
	case e := <-p.in:
		return e, nil
	case <-p.closed:
		return Envelope{}, ErrClosed
	}
}

func (p *ChanPort) Close() error {
	p.closeOnce.Do(func() { close(p.closed) })
	return nil
}
