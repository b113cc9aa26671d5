package websocket

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBufferSize = 256
)

// Client is one websocket connection
type Client struct {
	ID   string
	Role string
	Conn *websocket.Conn
	Hub  *Hub
	Send chan *Message

	logger *zap.Logger

	mu     sync.RWMutex
	rideID string
	closed bool
}

// NewClient creates a client; register it with the hub before starting its pumps
func NewClient(id string, conn *websocket.Conn, hub *Hub, role string, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		ID:     id,
		Role:   role,
		Conn:   conn,
		Hub:    hub,
		Send:   make(chan *Message, sendBufferSize),
		logger: log.With(zap.String("client_id", id)),
	}
}

// GetRide returns the ride room the client watches, if any
func (c *Client) GetRide() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.rideID
}

// SetRide records the ride room the client watches
func (c *Client) SetRide(rideID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rideID = rideID
}

// enqueue drops the message when the client is closed or too slow to drain
func (c *Client) enqueue(msg *Message) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return
	}
	select {
	case c.Send <- msg:
	default:
		c.logger.Warn("websocket send buffer full, dropping message", zap.String("type", msg.Type))
	}
}

func (c *Client) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.Send)
	}
}

// ReadPump reads inbound messages until the connection fails
func (c *Client) ReadPump() {
	defer func() {
		c.Hub.Unregister <- c
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	_ = c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		return c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn("websocket read error", zap.Error(err))
			}
			return
		}

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			c.logger.Debug("invalid websocket message", zap.Error(err))
			continue
		}
		c.Hub.HandleMessage(c, &msg)
	}
}

// WritePump writes queued messages and keeps the connection alive with pings
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.Send:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteJSON(msg); err != nil {
				c.logger.Debug("websocket write error", zap.Error(err))
				return
			}

		case <-ticker.C:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
