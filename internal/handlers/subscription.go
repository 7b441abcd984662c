package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/ukydev/road-vision/internal/hub"
)

// SubscriptionHandler upgrades /ws/{user_id} to a WebSocket and keeps the
// connection subscribed for as long as it stays open.
type SubscriptionHandler struct {
	registry *hub.Registry
	upgrader websocket.Upgrader
	logger   logrus.FieldLogger

	ctx    context.Context
	cancel context.CancelFunc
}

// NewSubscriptionHandler creates a handler registering listeners in registry.
func NewSubscriptionHandler(registry *hub.Registry, logger logrus.FieldLogger) *SubscriptionHandler {
	ctx, cancel := context.WithCancel(context.Background())
	return &SubscriptionHandler{
		registry: registry,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Dashboards are served from other origins.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Close disconnects every open subscription. http.Server.Shutdown does not
// track hijacked connections, so callers register this with RegisterOnShutdown.
func (h *SubscriptionHandler) Close() {
	h.cancel()
}

// Subscribe handles GET /ws/{user_id}
func (h *SubscriptionHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(r.PathValue("user_id"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid user id", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the error response.
		h.logger.WithError(err).Warn("websocket upgrade failed")
		return
	}

	listener := hub.NewWebSocketListener(conn)
	log := h.logger.WithFields(logrus.Fields{"user_id": userID, "listener": listener.ID()})

	h.registry.Subscribe(userID, listener)
	defer h.registry.Unsubscribe(userID, listener)
	log.Info("live listener connected")

	if err := listener.Run(h.ctx); err != nil {
		log.WithError(err).Debug("live listener read ended")
	}
	log.Info("live listener disconnected")
}
