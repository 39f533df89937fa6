package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignUpValidation(t *testing.T) {
	g := NewGateway("http://unreachable.invalid")

	tests := []struct {
		name     string
		email    string
		password string
		confirm  string
		want     error
	}{
		{"empty email", "", "secret1", "secret1", ErrMissingCredentials},
		{"empty password", "a@b.c", "", "", ErrMissingCredentials},
		{"too short", "a@b.c", "abc", "abc", ErrPasswordTooShort},
		{"mismatch", "a@b.c", "secret1", "secret2", ErrPasswordMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := g.SignUp(context.Background(), tt.email, tt.password, tt.confirm, "alice")
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestSignUpAndSignIn(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/signup":
			var body struct {
				Email string `json:"email"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			json.NewEncoder(w).Encode(Session{
				AccessToken: "tok-signup",
				User:        User{ID: "user-1", Email: body.Email},
			})
		case "/token":
			assert.Equal(t, "password", r.URL.Query().Get("grant_type"))
			json.NewEncoder(w).Encode(Session{
				AccessToken:  "tok-signin",
				RefreshToken: "refresh-1",
				User:         User{ID: "user-1", Email: "a@b.c"},
			})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	g := NewGateway(srv.URL)

	session, err := g.SignUp(context.Background(), "a@b.c", "secret1", "secret1", "alice")
	require.NoError(t, err)
	assert.Equal(t, "tok-signup", session.AccessToken)
	assert.Equal(t, "user-1", session.User.ID)

	session, err = g.SignIn(context.Background(), "a@b.c", "secret1")
	require.NoError(t, err)
	assert.Equal(t, "tok-signin", session.AccessToken)
	assert.Equal(t, "refresh-1", session.RefreshToken)
}

func TestSignInRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{"error": "invalid_grant"})
	}))
	defer srv.Close()

	g := NewGateway(srv.URL)
	_, err := g.SignIn(context.Background(), "a@b.c", "wrong-pass")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestUserFromToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
		json.NewEncoder(w).Encode(User{ID: "user-1", Email: "a@b.c"})
	}))
	defer srv.Close()

	g := NewGateway(srv.URL)
	user, err := g.UserFromToken(context.Background(), "tok-1")
	require.NoError(t, err)
	assert.Equal(t, "user-1", user.ID)
}

func TestOAuthURL(t *testing.T) {
	g := NewGateway("https://auth.example.com")
	got := g.OAuthURL("github", "https://app.example.com/callback")
	assert.Equal(t, "https://auth.example.com/authorize?provider=github&redirect_to=https%3A%2F%2Fapp.example.com%2Fcallback", got)
}
