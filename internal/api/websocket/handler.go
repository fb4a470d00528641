package websocket

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/monosonet/modcore/internal/moderation/reports"
	"github.com/monosonet/modcore/internal/moderation/signals"
)

// Handler upgrades incoming HTTP requests to WebSocket connections and
// relays live classification and report lifecycle events to them.
type Handler struct {
	hub    *Hub
	ctx    context.Context
	logger zerolog.Logger

	upgrader websocket.Upgrader
}

// NewHandler creates a new WebSocket handler. allowedOrigins, when
// non-empty, restricts upgrades to matching Origin headers (case
// insensitive); an empty list allows any origin.
func NewHandler(ctx context.Context, hub *Hub, allowedOrigins []string, logger zerolog.Logger) *Handler {
	originMap := make(map[string]bool, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		originMap[strings.ToLower(origin)] = true
	}

	return &Handler{
		hub:    hub,
		ctx:    ctx,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				if len(originMap) == 0 {
					return true
				}
				origin := r.Header.Get("Origin")
				if origin == "" {
					return true
				}
				return originMap[strings.ToLower(origin)]
			},
		},
	}
}

// ServeWS upgrades the connection and registers a new client on the hub.
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}

	clientID := uuid.New().String()
	client := NewClient(h.ctx, h.hub, conn, clientID, h.logger)

	h.hub.register <- client

	go client.WritePump()
	go client.ReadPump()

	h.logger.Debug().Str("client_id", clientID).Msg("websocket client connected")
}

// RelayPipelineResults subscribes to the signal store's result bus and
// forwards every published PipelineResult to connected WebSocket clients
// until ctx is done. Run in its own goroutine.
func RelayPipelineResults(ctx context.Context, store *signals.Store, hub *Hub, logger zerolog.Logger) {
	sub := store.Subscribe()
	defer store.Unsubscribe(sub.ID)

	for {
		select {
		case <-ctx.Done():
			return
		case envelope, ok := <-sub.Ch:
			if !ok {
				return
			}
			if envelope.Gap {
				logger.Warn().Msg("websocket relay fell behind, pipeline results dropped")
				continue
			}
			if envelope.Result == nil {
				continue
			}
			if err := hub.BroadcastPipelineResult(*envelope.Result); err != nil {
				logger.Debug().Err(err).Msg("pipeline result broadcast stopped")
				return
			}
		}
	}
}

// RelayReportEvents subscribes to the report manager's event bus and
// forwards every published Event to connected WebSocket clients until ctx
// is done. Run in its own goroutine.
func RelayReportEvents(ctx context.Context, manager *reports.Manager, hub *Hub, logger zerolog.Logger) {
	sub := manager.Subscribe()
	defer manager.Unsubscribe(sub.ID)

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-sub.Ch:
			if !ok {
				return
			}
			if err := hub.Broadcast(event.JSON); err != nil {
				logger.Debug().Err(err).Msg("report event broadcast stopped")
				return
			}
		}
	}
}
