package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/sohbat-app/chat-service/internal/models"
	"github.com/sohbat-app/chat-service/internal/service"
)

type ProfileHandler struct {
	service *service.ChatService
}

func NewProfileHandler(svc *service.ChatService) *ProfileHandler {
	return &ProfileHandler{service: svc}
}

type updateProfileRequest struct {
	FullName  string `json:"full_name"`
	AvatarURL string `json:"avatar_url"`
}

type updateStatusRequest struct {
	Status models.UserStatus `json:"status"`
}

// Me returns the caller's own profile.
func (h *ProfileHandler) Me(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireClaims(w, r)
	if !ok {
		return
	}

	profile, err := h.service.Profile(r.Context(), claims.UserID())
	if err != nil {
		serviceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, profile)
}

func (h *ProfileHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireClaims(w, r); !ok {
		return
	}

	profile, err := h.service.Profile(r.Context(), mux.Vars(r)["userId"])
	if err != nil {
		serviceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, profile)
}

func (h *ProfileHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireClaims(w, r)
	if !ok {
		return
	}

	var req updateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	profile, err := h.service.UpdateProfile(r.Context(), claims.UserID(), req.FullName, req.AvatarURL)
	if err != nil {
		serviceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, profile)
}

func (h *ProfileHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireClaims(w, r)
	if !ok {
		return
	}

	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	switch req.Status {
	case models.StatusOnline, models.StatusOffline, models.StatusAway:
	default:
		respondError(w, http.StatusBadRequest, "invalid status")
		return
	}

	if err := h.service.UpdateStatus(r.Context(), claims.UserID(), req.Status); err != nil {
		serviceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}
