package service

import (
	"context"
	"log"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/sohbat-app/chat-service/internal/auth"
	"github.com/sohbat-app/chat-service/internal/models"
	"github.com/sohbat-app/chat-service/internal/server"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// TODO: restrict origins before exposing outside the CDN
		return true
	},
}

// WebSocketHandler upgrades authenticated connections and hands them to the
// hub.
type WebSocketHandler struct {
	hub      *server.Hub
	service  *ChatService
	verifier *auth.Verifier
}

func NewWebSocketHandler(hub *server.Hub, service *ChatService, verifier *auth.Verifier) *WebSocketHandler {
	return &WebSocketHandler{
		hub:      hub,
		service:  service,
		verifier: verifier,
	}
}

// HandleWebSocket authenticates via the bearer token (header or ?token=),
// upgrades the connection and starts the client pumps.
func (h *WebSocketHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	token := server.BearerToken(r)
	if token == "" {
		http.Error(w, "Missing token", http.StatusUnauthorized)
		return
	}

	claims, err := h.verifier.Verify(token)
	if err != nil {
		http.Error(w, "Invalid token", http.StatusUnauthorized)
		return
	}

	profile, err := h.service.Profile(r.Context(), claims.UserID())
	if err != nil {
		http.Error(w, "Unknown user", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		return
	}

	client := &server.Client{
		Conn:      conn,
		Send:      make(chan []byte, 256),
		Hub:       h.hub,
		UserID:    profile.ID,
		Username:  profile.Username,
		AvatarURL: profile.AvatarURL,
		Rooms:     make(map[string]bool),
	}

	h.hub.RegisterClient(client)

	if err := h.service.UpdateStatus(r.Context(), profile.ID, models.StatusOnline); err != nil {
		log.Printf("Failed to mark %s online: %v", profile.ID, err)
	}

	go client.WritePump()
	go func() {
		client.ReadPump()
		// The request context is gone once the pump exits.
		if err := h.service.UpdateStatus(context.Background(), profile.ID, models.StatusOffline); err != nil {
			log.Printf("Failed to mark %s offline: %v", profile.ID, err)
		}
	}()
}
