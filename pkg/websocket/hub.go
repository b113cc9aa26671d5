package websocket

import (
	"sync"
	"time"

	"github.com/richxcame/petit-taxi/pkg/logger"
	"go.uber.org/zap"
)

// Message is the JSON frame exchanged with clients
type Message struct {
	Type      string                 `json:"type"`
	RideID    string                 `json:"rideId,omitempty"`
	Data      map[string]interface{} `json:"data,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// MessageHandler handles an inbound message of one type
type MessageHandler func(client *Client, msg *Message)

// Hub tracks connected clients and the ride rooms they watch
type Hub struct {
	clients  map[string]*Client
	rides    map[string]map[string]*Client
	handlers map[string]MessageHandler
	mu       sync.RWMutex

	Register   chan *Client
	Unregister chan *Client
	Broadcast  chan *Message
}

// NewHub creates a hub; call Run to start it
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		rides:      make(map[string]map[string]*Client),
		handlers:   make(map[string]MessageHandler),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		Broadcast:  make(chan *Message, 256),
	}
}

// Run processes registrations and broadcasts until the process exits
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.Register:
			h.registerClient(client)
		case client := <-h.Unregister:
			h.unregisterClient(client)
		case msg := <-h.Broadcast:
			h.SendToAll(msg)
		}
	}
}

func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if existing, ok := h.clients[client.ID]; ok && existing != client {
		h.detach(existing)
	}
	h.clients[client.ID] = client

	logger.Debug("websocket client registered",
		zap.String("client_id", client.ID),
		zap.Int("clients", len(h.clients)),
	)
}

func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if existing, ok := h.clients[client.ID]; ok && existing == client {
		h.detach(client)
		logger.Debug("websocket client unregistered", zap.String("client_id", client.ID))
	}
}

// detach removes client from every index and closes its send channel. Caller holds mu.
func (h *Hub) detach(client *Client) {
	delete(h.clients, client.ID)
	if rideID := client.GetRide(); rideID != "" {
		h.leaveRide(client.ID, rideID)
	}
	client.closeSend()
}

// AddClientToRide moves a client into a ride room, leaving any previous room
func (h *Hub) AddClientToRide(clientID, rideID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	client, ok := h.clients[clientID]
	if !ok {
		return
	}
	if prev := client.GetRide(); prev != "" && prev != rideID {
		h.leaveRide(clientID, prev)
	}
	if h.rides[rideID] == nil {
		h.rides[rideID] = make(map[string]*Client)
	}
	h.rides[rideID][clientID] = client
	client.SetRide(rideID)
}

// RemoveClientFromRide removes a client from a ride room
func (h *Hub) RemoveClientFromRide(clientID, rideID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.leaveRide(clientID, rideID)
	if client, ok := h.clients[clientID]; ok && client.GetRide() == rideID {
		client.SetRide("")
	}
}

func (h *Hub) leaveRide(clientID, rideID string) {
	room, ok := h.rides[rideID]
	if !ok {
		return
	}
	delete(room, clientID)
	if len(room) == 0 {
		delete(h.rides, rideID)
	}
}

// CloseRide drops a ride room, detaching its watchers
func (h *Hub) CloseRide(rideID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, client := range h.rides[rideID] {
		client.SetRide("")
	}
	delete(h.rides, rideID)
}

// SendToUser sends msg to one client
func (h *Hub) SendToUser(clientID string, msg *Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if client, ok := h.clients[clientID]; ok {
		client.enqueue(msg)
	}
}

// SendToRide sends msg to every client watching rideID
func (h *Hub) SendToRide(rideID string, msg *Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, client := range h.rides[rideID] {
		client.enqueue(msg)
	}
}

// SendToAll sends msg to every connected client
func (h *Hub) SendToAll(msg *Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, client := range h.clients {
		client.enqueue(msg)
	}
}

// RegisterHandler installs the handler for a message type
func (h *Hub) RegisterHandler(msgType string, handler MessageHandler) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handlers[msgType] = handler
}

// HandleMessage dispatches an inbound message to its handler
func (h *Hub) HandleMessage(client *Client, msg *Message) {
	h.mu.RLock()
	handler, ok := h.handlers[msg.Type]
	h.mu.RUnlock()

	if !ok {
		client.logger.Debug("unknown websocket message type", zap.String("type", msg.Type))
		return
	}
	handler(client, msg)
}

// GetClient returns the client registered under clientID
func (h *Hub) GetClient(clientID string) (*Client, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	client, ok := h.clients[clientID]
	return client, ok
}

// GetClientsInRide returns the watchers of rideID
func (h *Hub) GetClientsInRide(rideID string) []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()

	clients := make([]*Client, 0, len(h.rides[rideID]))
	for _, client := range h.rides[rideID] {
		clients = append(clients, client)
	}
	return clients
}

// GetClientCount returns the number of connected clients
func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// GetRideCount returns the number of ride rooms with watchers
func (h *Hub) GetRideCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rides)
}
