package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/sohbat-app/chat-service/internal/auth"
	"github.com/sohbat-app/chat-service/internal/models"
	"github.com/sohbat-app/chat-service/internal/realtime"
	"github.com/sohbat-app/chat-service/internal/server"
)

const wsTestSecret = "ws-handler-test-secret"

func mintToken(t *testing.T, userID string) string {
	t.Helper()
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(wsTestSecret))
	require.NoError(t, err)
	return token
}

// lockedDynamo guards the profile rows against the handler's pump goroutine;
// copies cross the boundary so callers never share a row pointer.
type lockedDynamo struct {
	mu sync.Mutex
	*fakeDynamo
}

func (d *lockedDynamo) CreateProfile(ctx context.Context, p *models.Profile) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	copied := *p
	return d.fakeDynamo.CreateProfile(ctx, &copied)
}

func (d *lockedDynamo) GetProfile(ctx context.Context, userID string) (*models.Profile, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	p, err := d.fakeDynamo.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	copied := *p
	return &copied, nil
}

func (d *lockedDynamo) UpdateProfile(ctx context.Context, p *models.Profile) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	copied := *p
	return d.fakeDynamo.UpdateProfile(ctx, &copied)
}

type lockedRedis struct {
	mu sync.Mutex
	*fakeRedis
}

func (r *lockedRedis) SetUserOnline(ctx context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.fakeRedis.SetUserOnline(ctx, userID)
}

func (r *lockedRedis) SetUserOffline(ctx context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.fakeRedis.SetUserOffline(ctx, userID)
}

func (r *lockedRedis) IsUserOnline(ctx context.Context, userID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.fakeRedis.IsUserOnline(ctx, userID)
}

type stubFeedSource struct{}

func (stubFeedSource) SubscribeMessages(context.Context, string) (<-chan realtime.MessageEvent, func()) {
	return make(chan realtime.MessageEvent), func() {}
}

func (stubFeedSource) SubscribeMembers(context.Context, string) (<-chan realtime.MemberEvent, func()) {
	return make(chan realtime.MemberEvent), func() {}
}

func TestHandleWebSocketRejectsBadTokens(t *testing.T) {
	svc := NewChatService(newFakeDynamo(), newFakeRedis(), &fakePublisher{}, 100)
	hub := server.NewHub(svc, stubFeedSource{})
	go hub.Run()
	defer hub.Close()

	handler := NewWebSocketHandler(hub, svc, auth.NewVerifier(wsTestSecret))
	ts := httptest.NewServer(http.HandlerFunc(handler.HandleWebSocket))
	defer ts.Close()

	resp, err := http.Get(ts.URL)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, err = http.Get(ts.URL + "?token=garbage")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestConnectionLifecycleTracksStatus(t *testing.T) {
	dynamo := &lockedDynamo{fakeDynamo: newFakeDynamo()}
	cache := &lockedRedis{fakeRedis: newFakeRedis()}
	svc := NewChatService(dynamo, cache, &fakePublisher{}, 100)
	_, err := svc.EnsureProfile(context.Background(), "u1", "alice")
	require.NoError(t, err)

	hub := server.NewHub(svc, stubFeedSource{})
	go hub.Run()
	defer hub.Close()

	handler := NewWebSocketHandler(hub, svc, auth.NewVerifier(wsTestSecret))
	ts := httptest.NewServer(http.HandlerFunc(handler.HandleWebSocket))
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "?token=" + mintToken(t, "u1")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		profile, err := svc.Profile(context.Background(), "u1")
		return err == nil && profile.Status == models.StatusOnline
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, conn.Close())

	// Closing the connection must flip the durable row back to offline, not
	// just let the Redis TTL lapse.
	require.Eventually(t, func() bool {
		profile, err := svc.Profile(context.Background(), "u1")
		return err == nil && profile.Status == models.StatusOffline
	}, 2*time.Second, 10*time.Millisecond)

	require.Eventually(t, func() bool {
		online, err := cache.IsUserOnline(context.Background(), "u1")
		return err == nil && !online
	}, 2*time.Second, 10*time.Millisecond)
}
