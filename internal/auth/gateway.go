// Package auth consumes the hosted identity provider. Sign-up, sign-in and
// sign-out are remote calls; only access-token verification happens locally.
package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const minPasswordLength = 6

var (
	ErrMissingCredentials = errors.New("email and password are required")
	ErrPasswordTooShort   = fmt.Errorf("password must be at least %d characters", minPasswordLength)
	ErrPasswordMismatch   = errors.New("passwords do not match")
	ErrInvalidCredentials = errors.New("invalid email or password")
)

// User is the identity the provider holds for a session.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// Session is the provider's token response.
type Session struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	RefreshToken string `json:"refresh_token"`
	User         User   `json:"user"`
}

// Gateway is an HTTP client for the identity provider's token API.
type Gateway struct {
	baseURL string
	client  *http.Client
}

func NewGateway(baseURL string) *Gateway {
	return &Gateway{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// SignUp registers a new identity. Validation failures are detected locally
// before any remote call.
func (g *Gateway) SignUp(ctx context.Context, email, password, confirm, username string) (*Session, error) {
	if email == "" || password == "" {
		return nil, ErrMissingCredentials
	}
	if len(password) < minPasswordLength {
		return nil, ErrPasswordTooShort
	}
	if password != confirm {
		return nil, ErrPasswordMismatch
	}

	body := map[string]interface{}{
		"email":    email,
		"password": password,
		"data": map[string]string{
			"username": username,
		},
	}

	var session Session
	if err := g.post(ctx, "/signup", "", body, &session); err != nil {
		return nil, err
	}

	return &session, nil
}

// SignIn exchanges email+password for a session.
func (g *Gateway) SignIn(ctx context.Context, email, password string) (*Session, error) {
	if email == "" || password == "" {
		return nil, ErrMissingCredentials
	}

	body := map[string]string{
		"email":    email,
		"password": password,
	}

	var session Session
	err := g.post(ctx, "/token?grant_type=password", "", body, &session)
	if err != nil {
		var pe *providerError
		if errors.As(err, &pe) && (pe.status == http.StatusBadRequest || pe.status == http.StatusUnauthorized) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	return &session, nil
}

// OAuthURL builds the authorize redirect URL for a third-party provider.
func (g *Gateway) OAuthURL(provider, redirectTo string) string {
	q := url.Values{}
	q.Set("provider", provider)
	if redirectTo != "" {
		q.Set("redirect_to", redirectTo)
	}
	return g.baseURL + "/authorize?" + q.Encode()
}

// UserFromToken retrieves the identity behind an access token.
func (g *Gateway) UserFromToken(ctx context.Context, accessToken string) (*User, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"/user", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build user request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to reach identity provider: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, readProviderError(resp)
	}

	var user User
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return nil, fmt.Errorf("failed to decode user: %w", err)
	}

	return &user, nil
}

// SignOut revokes the session remotely.
func (g *Gateway) SignOut(ctx context.Context, accessToken string) error {
	return g.post(ctx, "/logout", accessToken, nil, nil)
}

func (g *Gateway) post(ctx context.Context, path, accessToken string, body, out interface{}) error {
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach identity provider: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return readProviderError(resp)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}

type providerError struct {
	status  int
	message string
}

func (e *providerError) Error() string {
	return fmt.Sprintf("identity provider returned %d: %s", e.status, e.message)
}

func readProviderError(resp *http.Response) error {
	var body struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&body)

	message := body.Message
	if message == "" {
		message = body.Error
	}
	if message == "" {
		message = resp.Status
	}

	return &providerError{status: resp.StatusCode, message: message}
}
