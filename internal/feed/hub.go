package feed

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"
)

// Event is one dashboard feed frame.
type Event struct {
	Type      string      `json:"type"`
	Payload   interface{} `json:"payload,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// Hub fans lifecycle events out to connected dashboard clients. It implements
// service.FeedPublisher. A client that cannot keep up is dropped rather than
// blocking the controller.
type Hub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte
	logger     *zap.Logger
}

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan []byte, 256),
		logger:     logger,
	}
}

// Run processes client churn and broadcasts until the context is cancelled.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			return

		case client := <-h.register:
			h.clients[client] = true
			h.logger.Debug("Feed client connected", zap.Int("clients", len(h.clients)))

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				h.logger.Debug("Feed client disconnected", zap.Int("clients", len(h.clients)))
			}

		case data := <-h.broadcast:
			for client := range h.clients {
				select {
				case client.send <- data:
				default:
					// Slow consumer: drop it.
					delete(h.clients, client)
					close(client.send)
				}
			}
		}
	}
}

// Publish queues one event for all connected clients. Non-blocking: if the
// hub's buffer is full the event is dropped, never stalling a state
// transition.
func (h *Hub) Publish(event string, payload interface{}) {
	data, err := json.Marshal(&Event{
		Type:      event,
		Payload:   payload,
		Timestamp: time.Now(),
	})
	if err != nil {
		h.logger.Warn("Failed to encode feed event", zap.String("type", event), zap.Error(err))
		return
	}
	select {
	case h.broadcast <- data:
	default:
		h.logger.Warn("Feed buffer full, dropping event", zap.String("type", event))
	}
}
