package websocket

import (
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Message is the envelope broadcast to console clients.
type Message struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload"`
}

// Hub maintains active WebSocket clients and broadcasts device status
// updates to them.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan Message
	register   chan *Client
	unregister chan *Client
	mu         sync.RWMutex
	logger     *zap.Logger
}

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		broadcast:  make(chan Message, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
		logger:     logger,
	}
}

// Run processes register/unregister/broadcast events. It runs for the
// lifetime of the process.
func (h *Hub) Run() {
	for {
		select {
		case client, ok := <-h.register:
			if !ok {
				return
			}
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			h.logger.Debug("websocket client connected", zap.Int("clients", h.clientCount()))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, exists := h.clients[client]; exists {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()

		case msg := <-h.broadcast:
			data, err := json.Marshal(msg)
			if err != nil {
				h.logger.Error("failed to marshal broadcast message", zap.Error(err))
				continue
			}
			h.mu.RLock()
			for client := range h.clients {
				select {
				case client.send <- data:
				default:
					// Slow client, drop the message rather than block the hub.
				}
			}
			h.mu.RUnlock()
		}
	}
}

// BroadcastDeviceStatus pushes a device connection-status change to all
// connected console clients.
func (h *Hub) BroadcastDeviceStatus(payload any) {
	msg := Message{
		Type:      "device_status",
		Timestamp: time.Now(),
		Payload:   payload,
	}
	select {
	case h.broadcast <- msg:
	default:
		h.logger.Warn("websocket broadcast queue full, dropping status update")
	}
}

// BroadcastReading pushes a freshly ingested sensor reading to all connected
// console clients.
func (h *Hub) BroadcastReading(payload any) {
	msg := Message{
		Type:      "sensor_reading",
		Timestamp: time.Now(),
		Payload:   payload,
	}
	select {
	case h.broadcast <- msg:
	default:
		h.logger.Warn("websocket broadcast queue full, dropping reading")
	}
}

// ClientCount reports the number of connected console clients.
func (h *Hub) ClientCount() int {
	return h.clientCount()
}

func (h *Hub) clientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
