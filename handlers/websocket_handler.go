package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/Dosada05/pong-tournaments/hub"
	"github.com/Dosada05/pong-tournaments/middleware"
	"github.com/Dosada05/pong-tournaments/services"
	"github.com/gorilla/websocket"
)

type WebSocketHandler struct {
	registry     *hub.Registry
	router       *MessageRouter
	orchestrator services.Orchestrator
	verifier     *middleware.TokenVerifier
	upgrader     websocket.Upgrader
	logger       *slog.Logger
}

// NewWebSocketHandler builds the /ws endpoint. allowedOrigins of ["*"] or nil accepts any origin.
func NewWebSocketHandler(
	registry *hub.Registry,
	router *MessageRouter,
	orchestrator services.Orchestrator,
	verifier *middleware.TokenVerifier,
	allowedOrigins []string,
	logger *slog.Logger,
) *WebSocketHandler {
	return &WebSocketHandler{
		registry:     registry,
		router:       router,
		orchestrator: orchestrator,
		verifier:     verifier,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
		logger: logger,
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 || slices.Contains(allowed, "*") {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || slices.Contains(allowed, origin)
	}
}

// ServeWs обрабатывает GET /ws?token=...
// @Summary WebSocket подключение
// @Tags websocket
// @Description Апгрейд до WebSocket. Сообщения - JSON вида {type, payload}.
// @Param token query string true "JWT"
// @Success 101 "Switching Protocols"
// @Failure 401 {object} map[string]string "Неавторизован"
// @Router /ws [get]
func (h *WebSocketHandler) ServeWs(w http.ResponseWriter, r *http.Request) {
	claims, err := h.verifier.Verify(middleware.TokenFromRequest(r))
	if err != nil {
		unauthorizedResponse(w, r, "Unauthorized")
		return
	}
	userID, err := middleware.UserIDFromClaims(claims)
	if err != nil {
		unauthorizedResponse(w, r, "Unauthorized")
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade уже ответил клиенту ошибкой.
		h.logger.Warn("failed to upgrade websocket connection", slog.Int("user_id", userID), slog.Any("error", err))
		return
	}

	ch := hub.NewWSChannel(conn, h.logger.With(slog.Int("user_id", userID)))
	info := hub.ClientInfo{
		UserID:      userID,
		SessionID:   ch.SessionID(),
		ConnectedAt: time.Now().UTC(),
	}
	if nickname, ok := claims["nickname"].(string); ok {
		info.Nickname = nickname
	}
	h.registry.Register(userID, ch, info)

	go ch.Run(
		func(data []byte) {
			h.router.Handle(context.Background(), userID, data)
		},
		func() {
			h.registry.Unregister(userID, ch)
			if !h.registry.IsConnected(userID) {
				h.orchestrator.Disconnect(userID)
			}
		},
	)
}
