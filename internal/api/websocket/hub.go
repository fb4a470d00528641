// Package websocket fans out classification pipeline results and report/
// investigation lifecycle events to connected WebSocket clients, bridging
// the in-process signals.ResultBus / reports.EventBus broadcast hubs onto
// network connections.
package websocket

import (
	"context"
	"sync"

	"github.com/monosonet/modcore/internal/moderation/types"
	"github.com/monosonet/modcore/internal/pkg/metrics"
)

// Hub maintains active WebSocket connections and broadcasts messages to
// all of them, dropping a message for any client whose buffer is full
// rather than blocking the publisher.
type Hub struct {
	clients map[*Client]bool

	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client

	mu sync.RWMutex

	ctx    context.Context
	cancel context.CancelFunc
}

// NewHub creates a new WebSocket hub.
func NewHub(ctx context.Context) *Hub {
	hubCtx, cancel := context.WithCancel(ctx)
	return &Hub{
		broadcast:  make(chan []byte, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
		ctx:        hubCtx,
		cancel:     cancel,
	}
}

// Run starts the hub's dispatch loop. Call in its own goroutine.
func (h *Hub) Run() {
	for {
		select {
		case <-h.ctx.Done():
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			metrics.WebSocketConnectionsActive.Set(float64(len(h.clients)))
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			metrics.WebSocketConnectionsActive.Set(float64(len(h.clients)))
			h.mu.Unlock()

		case message := <-h.broadcast:
			h.mu.RLock()
			clientCount := len(h.clients)
			messageSize := float64(len(message))
			for client := range h.clients {
				select {
				case client.send <- message:
					metrics.WebSocketMessageSizeBytes.WithLabelValues("sent").Observe(messageSize)
				default:
					// Buffer full: drop this message for this client.
				}
			}
			if clientCount > 0 {
				metrics.WebSocketMessagesSentTotal.Add(float64(clientCount))
			}
			h.mu.RUnlock()
		}
	}
}

// Stop stops the hub and closes every client connection.
func (h *Hub) Stop() {
	h.cancel()
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		close(client.send)
		delete(h.clients, client)
	}
}

// BroadcastPipelineResult publishes a signal pipeline's outcome to every
// connected client as a "pipeline_result" event.
func (h *Hub) BroadcastPipelineResult(result types.PipelineResult) error {
	data, err := types.MarshalEvent("pipeline_result", result)
	if err != nil {
		return err
	}
	return h.Broadcast(data)
}

// Broadcast publishes a pre-marshaled JSON event (e.g. a reports.Event's
// JSON field) to every connected client.
func (h *Hub) Broadcast(data []byte) error {
	select {
	case h.broadcast <- data:
		return nil
	case <-h.ctx.Done():
		return h.ctx.Err()
	}
}

// GetClientCount returns the number of connected clients.
func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
