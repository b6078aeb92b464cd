package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"kchat/internal/constants"
	"kchat/internal/database"
	"kchat/internal/models"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()

	db, err := database.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel)

	cfg := &models.Config{
		Server: models.ServerConfig{
			Port:               constants.DefaultServerPort,
			WriteRatePerMinute: 1000,
		},
		Chat: models.ChatConfig{
			APIBaseURL: "http://localhost:8082",
		},
	}

	return NewServer(cfg, db, NewHub(logger), nil, logger)
}

func postJSON(t *testing.T, server *Server, path string, payload interface{}) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	server.router.ServeHTTP(w, req)
	return w
}

func TestHealthEndpoint(t *testing.T) {
	server := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	server.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ok")
}

func TestMetricsEndpoint(t *testing.T) {
	server := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	server.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var snapshot map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snapshot))
	assert.Contains(t, snapshot, "metrics")
}

func TestPostAndListMessages(t *testing.T) {
	server := newTestServer(t)

	w := postJSON(t, server, "/api/rooms/room-1/messages", models.SendMessageRequest{
		AuthorID: "user-1",
		Body:     "hello there",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var stored models.Message
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stored))
	assert.NotEmpty(t, stored.ID)
	assert.Equal(t, "room-1", stored.RoomID)
	assert.Equal(t, models.DeliverySent, stored.DeliveryState)
	assert.False(t, stored.CreatedAt.IsZero())

	req := httptest.NewRequest(http.MethodGet, "/api/rooms/room-1/messages", nil)
	lw := httptest.NewRecorder()
	server.router.ServeHTTP(lw, req)
	require.Equal(t, http.StatusOK, lw.Code)

	var msgs []models.Message
	require.NoError(t, json.Unmarshal(lw.Body.Bytes(), &msgs))
	require.Len(t, msgs, 1)
	assert.Equal(t, stored.ID, msgs[0].ID)
	assert.Equal(t, "hello there", msgs[0].Body)
}

func TestListMessages_AfterWatermark(t *testing.T) {
	server := newTestServer(t)

	first := postJSON(t, server, "/api/rooms/room-1/messages", models.SendMessageRequest{
		AuthorID: "user-1",
		Body:     "first",
	})
	require.Equal(t, http.StatusCreated, first.Code)

	var firstMsg models.Message
	require.NoError(t, json.Unmarshal(first.Body.Bytes(), &firstMsg))

	time.Sleep(5 * time.Millisecond)
	second := postJSON(t, server, "/api/rooms/room-1/messages", models.SendMessageRequest{
		AuthorID: "user-1",
		Body:     "second",
	})
	require.Equal(t, http.StatusCreated, second.Code)

	after := firstMsg.CreatedAt.Format(time.RFC3339Nano)
	req := httptest.NewRequest(http.MethodGet, "/api/rooms/room-1/messages?after="+after, nil)
	w := httptest.NewRecorder()
	server.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var msgs []models.Message
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &msgs))
	require.Len(t, msgs, 1)
	assert.Equal(t, "second", msgs[0].Body)
}

func TestListMessages_InvalidWatermark(t *testing.T) {
	server := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/rooms/room-1/messages?after=yesterday", nil)
	w := httptest.NewRecorder()
	server.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListMessages_EmptyRoomReturnsArray(t *testing.T) {
	server := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/rooms/room-empty/messages", nil)
	w := httptest.NewRecorder()
	server.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "[]", strings.TrimSpace(w.Body.String()))
}

func TestPostMessage_Validation(t *testing.T) {
	server := newTestServer(t)

	tests := []struct {
		name    string
		payload models.SendMessageRequest
	}{
		{"missing author", models.SendMessageRequest{Body: "hello"}},
		{"empty content", models.SendMessageRequest{AuthorID: "user-1"}},
		{"whitespace body", models.SendMessageRequest{AuthorID: "user-1", Body: "   "}},
		{"room mismatch", models.SendMessageRequest{RoomID: "room-other", AuthorID: "user-1", Body: "x"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := postJSON(t, server, "/api/rooms/room-1/messages", tt.payload)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestPostMessage_RateLimited(t *testing.T) {
	server := newTestServer(t)
	server.rateLimiter = NewRateLimiter(2, time.Minute)

	payload := models.SendMessageRequest{AuthorID: "user-1", Body: "hello"}
	assert.Equal(t, http.StatusCreated, postJSON(t, server, "/api/rooms/room-1/messages", payload).Code)
	assert.Equal(t, http.StatusCreated, postJSON(t, server, "/api/rooms/room-1/messages", payload).Code)
	assert.Equal(t, http.StatusTooManyRequests, postJSON(t, server, "/api/rooms/room-1/messages", payload).Code)
}

func TestRequireAPIKey(t *testing.T) {
	server := newTestServer(t)
	server.cfg.Chat.APIKey = "secret"

	req := httptest.NewRequest(http.MethodGet, "/api/rooms/room-1/messages", nil)
	w := httptest.NewRecorder()
	server.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/rooms/room-1/messages", nil)
	req.Header.Set("X-Api-Key", "secret")
	w = httptest.NewRecorder()
	server.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestPushEndpointsDisabled(t *testing.T) {
	server := newTestServer(t)

	w := postJSON(t, server, "/api/push/send", models.PushMessage{UserID: "user-1", Title: "t", Body: "b"})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = postJSON(t, server, "/api/push/subscriptions", models.PushSubscription{})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestDeletePushSubscription(t *testing.T) {
	server := newTestServer(t)

	req := httptest.NewRequest(http.MethodDelete, "/api/push/subscriptions/sub-1", nil)
	w := httptest.NewRecorder()
	server.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestWebsocketReceivesBroadcast(t *testing.T) {
	server := newTestServer(t)

	ts := httptest.NewServer(server.router)
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/rooms/room-1"
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	require.NoError(t, err)
	defer conn.CloseNow()

	// Give the handler a moment to register the subscriber.
	require.Eventually(t, func() bool {
		server.hub.mu.RLock()
		defer server.hub.mu.RUnlock()
		return len(server.hub.rooms["room-1"]) == 1
	}, time.Second, 5*time.Millisecond)

	w := postJSON(t, server, "/api/rooms/room-1/messages", models.SendMessageRequest{
		AuthorID: "user-1",
		Body:     "pushed",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var ev models.RealtimeEvent
	require.NoError(t, wsjson.Read(ctx, conn, &ev))
	assert.Equal(t, models.EventTypeInsert, ev.Type)
	assert.Equal(t, "pushed", ev.Record.Body)
	assert.Equal(t, "room-1", ev.Record.RoomID)
}

func TestWebsocketIgnoresOtherRooms(t *testing.T) {
	server := newTestServer(t)

	ts := httptest.NewServer(server.router)
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/rooms/room-1"
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	require.NoError(t, err)
	defer conn.CloseNow()

	require.Eventually(t, func() bool {
		server.hub.mu.RLock()
		defer server.hub.mu.RUnlock()
		return len(server.hub.rooms["room-1"]) == 1
	}, time.Second, 5*time.Millisecond)

	w := postJSON(t, server, "/api/rooms/room-other/messages", models.SendMessageRequest{
		AuthorID: "user-1",
		Body:     "elsewhere",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	readCtx, readCancel := context.WithTimeout(ctx, 100*time.Millisecond)
	defer readCancel()
	var ev models.RealtimeEvent
	err = wsjson.Read(readCtx, conn, &ev)
	require.Error(t, err, fmt.Sprintf("unexpected event: %+v", ev))
}
