package server

import (
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/lox/rpsmatch/protocol"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 4096
)

var (
	// ErrParticipantClosed is returned when sending to a closed connection.
	ErrParticipantClosed = errors.New("participant connection closed")
	// ErrSendTimeout is returned when the send buffer stays full.
	ErrSendTimeout = errors.New("send timed out")
)

// Participant is one connected entity occupying a session slot. A nil conn
// means an in-process simulated opponent that consumes its own send channel
// instead of a write pump.
type Participant struct {
	ID     string
	conn   *websocket.Conn
	send   chan *protocol.Message
	logger zerolog.Logger

	mu     sync.Mutex
	closed bool
	done   chan struct{}
}

// NewParticipant wraps a connection. conn may be nil for simulated
// opponents.
func NewParticipant(logger zerolog.Logger, id string, conn *websocket.Conn) *Participant {
	return &Participant{
		ID:     id,
		conn:   conn,
		send:   make(chan *protocol.Message, 32),
		logger: logger.With().Str("component", "participant").Str("participant_id", id).Logger(),
		done:   make(chan struct{}),
	}
}

// SendMessage enqueues a message for delivery. It never blocks round
// processing for long: a persistently full buffer counts as a dead peer.
func (p *Participant) SendMessage(msg *protocol.Message) error {
	if p.IsClosed() {
		return ErrParticipantClosed
	}
	select {
	case p.send <- msg:
		return nil
	case <-p.done:
		return ErrParticipantClosed
	case <-time.After(time.Second):
		return ErrSendTimeout
	}
}

// Done is closed when the connection goes away.
func (p *Participant) Done() <-chan struct{} {
	return p.done
}

// IsClosed reports whether the connection has been torn down.
func (p *Participant) IsClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// Close tears the connection down once.
func (p *Participant) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.done)
	p.mu.Unlock()

	if p.conn != nil {
		_ = p.conn.Close()
	}
}

// ReadPump reads inbound frames and routes them through the coordinator's
// dispatcher. The connection identity travels with every event; session ids
// from the client are never trusted. When the read loop exits for any
// reason the disconnect transition fires exactly once.
func (p *Participant) ReadPump(c *Coordinator) {
	defer func() {
		p.Close()
		c.HandleDisconnect(p.ID)
	}()

	p.conn.SetReadLimit(maxMessageSize)
	_ = p.conn.SetReadDeadline(time.Now().Add(pongWait))
	p.conn.SetPongHandler(func(string) error {
		_ = p.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var msg protocol.Message
		if err := p.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				p.logger.Warn().Err(err).Msg("unexpected websocket close")
			}
			return
		}
		c.Dispatch(p, &msg)
	}
}

// WritePump drains the send channel to the socket and keeps the connection
// alive with pings.
func (p *Participant) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		p.Close()
	}()

	for {
		select {
		case msg := <-p.send:
			_ = p.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := p.conn.WriteJSON(msg); err != nil {
				p.logger.Debug().Err(err).Msg("write failed")
				return
			}

		case <-ticker.C:
			_ = p.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := p.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-p.done:
			_ = p.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}
