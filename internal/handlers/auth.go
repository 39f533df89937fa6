package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/sohbat-app/chat-service/internal/auth"
	"github.com/sohbat-app/chat-service/internal/server"
	"github.com/sohbat-app/chat-service/internal/service"
)

// AuthHandler proxies sign-up/sign-in to the identity provider and keeps the
// local profile row in step.
type AuthHandler struct {
	gateway *auth.Gateway
	service *service.ChatService
}

func NewAuthHandler(gateway *auth.Gateway, svc *service.ChatService) *AuthHandler {
	return &AuthHandler{gateway: gateway, service: svc}
}

type signUpRequest struct {
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
	Username        string `json:"username"`
}

type signInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *AuthHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	var req signUpRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Username == "" {
		req.Username = usernameFromEmail(req.Email)
	}

	session, err := h.gateway.SignUp(r.Context(), req.Email, req.Password, req.ConfirmPassword, req.Username)
	if err != nil {
		authError(w, err)
		return
	}

	if _, err := h.service.EnsureProfile(r.Context(), session.User.ID, req.Username); err != nil {
		log.Printf("Failed to provision profile for %s: %v", session.User.ID, err)
	}

	respondJSON(w, http.StatusCreated, session)
}

func (h *AuthHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	var req signInRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	session, err := h.gateway.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		authError(w, err)
		return
	}

	// Older identities may predate the profiles table.
	if _, err := h.service.EnsureProfile(r.Context(), session.User.ID, usernameFromEmail(session.User.Email)); err != nil {
		log.Printf("Failed to provision profile for %s: %v", session.User.ID, err)
	}

	respondJSON(w, http.StatusOK, session)
}

// OAuthURL returns the provider redirect for third-party sign-in.
func (h *AuthHandler) OAuthURL(w http.ResponseWriter, r *http.Request) {
	provider := r.URL.Query().Get("provider")
	if provider == "" {
		respondError(w, http.StatusBadRequest, "provider is required")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"url": h.gateway.OAuthURL(provider, r.URL.Query().Get("redirect_to")),
	})
}

func (h *AuthHandler) SignOut(w http.ResponseWriter, r *http.Request) {
	token := server.BearerToken(r)
	if token == "" {
		respondError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	if err := h.gateway.SignOut(r.Context(), token); err != nil {
		log.Printf("Sign-out failed: %v", err)
	}

	respondJSON(w, http.StatusOK, map[string]string{"status": "signed out"})
}

func authError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials):
		respondError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, auth.ErrMissingCredentials),
		errors.Is(err, auth.ErrPasswordTooShort),
		errors.Is(err, auth.ErrPasswordMismatch):
		respondError(w, http.StatusBadRequest, err.Error())
	default:
		respondError(w, http.StatusBadGateway, "identity provider unavailable")
	}
}

func usernameFromEmail(email string) string {
	if at := strings.Index(email, "@"); at > 0 {
		return email[:at]
	}
	return email
}
