package rpc

import (
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// WSPort is a Port backed by a websocket connection to a UI, grounded
// on the teacher's internal/rooms.Client: a buffered outbound channel
// drained by a writePump goroutine that also drives ping keepalive, and
// a Recv method reading directly off the connection (the teacher's
// readPump, inverted from a background goroutine into a blocking call
// since the dispatcher here owns its own receive loop).
type WSPort struct {
	conn *websocket.Conn
	send chan Envelope
	done chan struct{}
}

// NewWSPort wraps an already-upgraded connection and starts its
// writePump.
func NewWSPort(conn *websocket.Conn) *WSPort {
	p := &WSPort{
		conn: conn,
		send: make(chan Envelope, 256),
		done: make(chan struct{}),
	}
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	go p.writePump()
	return p
}

func (p *WSPort) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case e, ok := <-p.send:
			p.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				p.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := p.conn.WriteJSON(e); err != nil {
				return
			}
		case <-ticker.C:
			p.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := p.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-p.done:
			return
		}
	}
}

// Send enqueues an envelope for the write pump. It never blocks on the
// network; when the send buffer is full it blocks until there is room
// or Close is called, and then returns ErrClosed.
func (p *WSPort) Send(e Envelope) error {
	select {
	case p.send <- e:
		return nil
	case <-p.done:
		return ErrClosed
	}
}

// Recv reads the next envelope directly off the connection.
func (p *WSPort) Recv() (Envelope, error) {
	var e Envelope
	if err := p.conn.ReadJSON(&e); err != nil {
		return Envelope{}, err
	}
	return e, nil
}

func (p *WSPort) Close() error {
	select {
	case <-p.done:
	default:
		close(p.done)
	}
	return p.conn.Close()
}
