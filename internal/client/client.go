// Package client provides a WebSocket client for connecting participants to
// the session coordinator. It is the transport layer used by the bot command
// and by anyone scripting a participant.
package client

import (
	"fmt"
	"net/url"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"github.com/lox/rpsmatch/protocol"
)

// EventHandler is a function that handles incoming messages.
type EventHandler func(*protocol.Message)

// Client is a WebSocket participant connection. Handlers run synchronously
// in the read loop so a session's events arrive in server order.
type Client struct {
	serverURL     string
	logger        *log.Logger
	mu            sync.RWMutex
	conn          *websocket.Conn
	eventHandlers map[protocol.MessageType][]EventHandler
	connected     bool
	stopChan      chan struct{}
	doneChan      chan struct{}
}

// New creates a client for the given server URL.
func New(serverURL string, logger *log.Logger) *Client {
	return &Client{
		serverURL:     serverURL,
		logger:        logger,
		eventHandlers: make(map[protocol.MessageType][]EventHandler),
		stopChan:      make(chan struct{}),
		doneChan:      make(chan struct{}),
	}
}

// Connect establishes the WebSocket connection. isTest marks the resulting
// session as a test run on the server.
func (c *Client) Connect(isTest bool) error {
	u, err := url.Parse(c.serverURL)
	if err != nil {
		return fmt.Errorf("invalid server URL: %w", err)
	}

	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
		// Already correct
	default:
		u.Scheme = "ws"
	}
	if u.Path == "" || u.Path == "/" {
		u.Path = "/ws"
	}
	if isTest {
		q := u.Query()
		q.Set("istest", "true")
		u.RawQuery = q.Encode()
	}

	c.logger.Info("Connecting to server", "url", u.String())

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.mu.Unlock()

	go c.readMessages()

	return nil
}

// Disconnect closes the connection.
func (c *Client) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.connected {
		return nil
	}

	c.connected = false
	close(c.stopChan)

	if c.conn != nil {
		_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		return c.conn.Close()
	}

	return nil
}

// Done is closed when the read loop exits, either because the server closed
// the connection or Disconnect was called.
func (c *Client) Done() <-chan struct{} {
	return c.doneChan
}

// SendMessage sends a message to the server.
func (c *Client) SendMessage(msg *protocol.Message) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.connected || c.conn == nil {
		return fmt.Errorf("not connected")
	}

	return c.conn.WriteJSON(msg)
}

// AddEventHandler registers a handler for a specific message type.
func (c *Client) AddEventHandler(msgType protocol.MessageType, handler EventHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.eventHandlers[msgType] = append(c.eventHandlers[msgType], handler)
}

// IsConnected returns whether the client is connected.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

// SubmitMove sends the participant's move for the current round along with
// the measured decision latency.
func (c *Client) SubmitMove(move string, latencyMs int64) error {
	msg, err := protocol.NewMessage(protocol.MessageTypeSubmitMove, protocol.SubmitMoveData{
		Move:      move,
		LatencyMs: latencyMs,
	})
	if err != nil {
		return err
	}
	return c.SendMessage(msg)
}

// AdvanceRound acknowledges the completed round, releasing this side of the
// continuation barrier.
func (c *Client) AdvanceRound() error {
	msg, err := protocol.NewMessage(protocol.MessageTypeAdvanceRound, protocol.AdvanceRoundData{})
	if err != nil {
		return err
	}
	return c.SendMessage(msg)
}

func (c *Client) readMessages() {
	defer func() {
		c.mu.Lock()
		c.connected = false
		c.mu.Unlock()
		close(c.doneChan)
	}()

	for {
		select {
		case <-c.stopChan:
			return
		default:
			var msg protocol.Message
			err := c.conn.ReadJSON(&msg)
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
					c.logger.Error("WebSocket error", "error", err)
				}
				return
			}

			c.dispatchMessage(&msg)
		}
	}
}

func (c *Client) dispatchMessage(msg *protocol.Message) {
	c.mu.RLock()
	handlers := c.eventHandlers[msg.Type]
	c.mu.RUnlock()

	for _, handler := range handlers {
		handler(msg)
	}
}
