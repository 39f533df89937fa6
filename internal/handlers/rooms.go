package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/sohbat-app/chat-service/internal/service"
)

type RoomHandler struct {
	service *service.ChatService
}

func NewRoomHandler(svc *service.ChatService) *RoomHandler {
	return &RoomHandler{service: svc}
}

type createRoomRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	IsPrivate   bool   `json:"is_private"`
}

type inviteRequest struct {
	UserID string `json:"user_id"`
}

// ListRooms returns public rooms plus the caller's private rooms.
func (h *RoomHandler) ListRooms(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireClaims(w, r)
	if !ok {
		return
	}

	rooms, err := h.service.ListRooms(r.Context(), claims.UserID())
	if err != nil {
		serviceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, rooms)
}

func (h *RoomHandler) CreateRoom(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireClaims(w, r)
	if !ok {
		return
	}

	var req createRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	room, err := h.service.CreateRoom(r.Context(), claims.UserID(), req.Name, req.Description, req.IsPrivate)
	if err != nil {
		serviceError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, room)
}

func (h *RoomHandler) GetRoom(w http.ResponseWriter, r *http.Request) {
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

	room, err := h.service.GetRoom(r.Context(), roomID)
	if err != nil {
		serviceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, room)
}

func (h *RoomHandler) JoinRoom(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireClaims(w, r)
	if !ok {
		return
	}

	if err := h.service.JoinRoom(r.Context(), mux.Vars(r)["roomId"], claims.UserID()); err != nil {
		serviceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"status": "joined"})
}

func (h *RoomHandler) LeaveRoom(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireClaims(w, r)
	if !ok {
		return
	}

	if err := h.service.LeaveRoom(r.Context(), mux.Vars(r)["roomId"], claims.UserID()); err != nil {
		serviceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"status": "left"})
}

func (h *RoomHandler) InviteUser(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireClaims(w, r)
	if !ok {
		return
	}

	var req inviteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == "" {
		respondError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	if err := h.service.InviteUser(r.Context(), mux.Vars(r)["roomId"], claims.UserID(), req.UserID); err != nil {
		serviceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"status": "invited"})
}

// RoomMembers returns membership rows with profiles attached.
func (h *RoomHandler) RoomMembers(w http.ResponseWriter, r *http.Request) {
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

	members, err := h.service.RoomMembers(r.Context(), roomID)
	if err != nil {
		serviceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, members)
}
