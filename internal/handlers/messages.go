package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/sohbat-app/chat-service/internal/models"
	"github.com/sohbat-app/chat-service/internal/service"
)

type MessageHandler struct {
	service *service.ChatService
}

func NewMessageHandler(svc *service.ChatService) *MessageHandler {
	return &MessageHandler{service: svc}
}

type sendMessageRequest struct {
	Content  string             `json:"content"`
	Type     models.MessageType `json:"type"`
	FileURL  string             `json:"file_url"`
	FileName string             `json:"file_name"`
	FileSize int64              `json:"file_size"`
	ReplyTo  string             `json:"reply_to"`
}

type editMessageRequest struct {
	Content string `json:"content"`
}

// History returns the room's bounded ascending message window.
func (h *MessageHandler) History(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireClaims(w, r)
	if !ok {
		return
	}
	roomID := mux.Vars(r)["roomId"]

	allowed, err := h.service.CanAccess(r.Context(), roomID, claims.UserID())
	if err != nil {
		serviceError(w, err)
		return
	}
	if !allowed {
		respondError(w, http.StatusForbidden, "not a member of this room")
		return
	}

	messages, err := h.service.History(r.Context(), roomID)
	if err != nil {
		serviceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, messages)
}

func (h *MessageHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireClaims(w, r)
	if !ok {
		return
	}

	var req sendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	message, err := h.service.SendMessage(r.Context(), service.SendMessageInput{
		RoomID:   mux.Vars(r)["roomId"],
		UserID:   claims.UserID(),
		Content:  req.Content,
		Type:     req.Type,
		FileURL:  req.FileURL,
		FileName: req.FileName,
		FileSize: req.FileSize,
		ReplyTo:  req.ReplyTo,
	})
	if err != nil {
		serviceError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, message)
}

func (h *MessageHandler) EditMessage(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireClaims(w, r)
	if !ok {
		return
	}

	var req editMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	message, err := h.service.EditMessage(r.Context(), mux.Vars(r)["messageId"], claims.UserID(), req.Content)
	if err != nil {
		serviceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, message)
}

func (h *MessageHandler) DeleteMessage(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireClaims(w, r)
	if !ok {
		return
	}

	if err := h.service.DeleteMessage(r.Context(), mux.Vars(r)["messageId"], claims.UserID()); err != nil {
		serviceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
