// Package handlers holds the REST surface in front of the chat service.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/sohbat-app/chat-service/internal/auth"
	"github.com/sohbat-app/chat-service/internal/repository"
	"github.com/sohbat-app/chat-service/internal/server"
	"github.com/sohbat-app/chat-service/internal/service"
)

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		json.NewEncoder(w).Encode(payload)
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// serviceError maps domain errors onto HTTP statuses; anything unmapped is a
// 500 with a generic message so internals never leak.
func serviceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrRoomNotFound), errors.Is(err, repository.ErrNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrNotMember), errors.Is(err, service.ErrNotAuthor):
		respondError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, service.ErrNameRequired), errors.Is(err, service.ErrEmptyMessage):
		respondError(w, http.StatusBadRequest, err.Error())
	default:
		respondError(w, http.StatusInternalServerError, "internal error")
	}
}

// requireClaims extracts the verified claims placed by the auth middleware.
func requireClaims(w http.ResponseWriter, r *http.Request) (*auth.Claims, bool) {
	claims, ok := server.ClaimsFrom(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "authentication required")
		return nil, false
	}
	return claims, true
}
