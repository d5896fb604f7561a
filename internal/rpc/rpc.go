// Package rpc implements spec.md §4.8's message-port surface: a typed
// request/response envelope exchanged over one of two concrete
// transports (an in-process Go-channel port between the peer task and
// a storage worker, and a websocket port between the peer and a UI),
// dispatched through one exhaustive switch over every named RPC
// method. Grounded on the teacher's internal/rooms.Client
// readPump/writePump pair and internal/api/websocket.go's upgrade
// handler, generalized from "one message type per chat action" to
// "one envelope shape for every method name", since spec.md §4.8 names
// a single uniform call/response contract rather than a per-action one.
package rpc

import "encoding/json"

// Envelope is the wire shape for both requests and responses: a
// request carries Method+Params, a response carries Result or Error
// keyed by the same ID so a caller can match replies out of order.
type Envelope struct {
	ID     string          `json:"id"`
	Method string          `json:"method,omitempty"`
	Params json.RawMessage `json:"params,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *EnvelopeError  `json:"error,omitempty"`
}

// EnvelopeError is an RPC-level error, distinct from a transport
// failure: the call reached the dispatcher and the dispatcher rejected
// it.
type EnvelopeError struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func (e *EnvelopeError) Error() string { return e.Kind + ": " + e.Message }

// Port is a bidirectional envelope transport. Recv is called from one
// goroutine (the dispatcher's receive loop); Send may be called from
// several at once, since Dispatcher.Serve replies from one goroutine
// per request. Both implementations pass outgoing envelopes through a
// Go channel, which serializes concurrent Sends.
type Port interface {
	Send(Envelope) error
	Recv() (Envelope, error)
	Close() error
}
