package hub

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ukydev/road-vision/internal/models"
)

func serveListener(t *testing.T, r *Registry, userID int64) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		conn, err := upgrader.Upgrade(w, req, nil)
		if err != nil {
			return
		}
		l := NewWebSocketListener(conn)
		r.Subscribe(userID, l)
		defer r.Unsubscribe(userID, l)
		_ = l.Run(req.Context())
	}))
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	return conn
}

func TestWebSocketListener_ReceivesPublishedRecord(t *testing.T) {
	r := NewRegistry(time.Second, quietLogger(), nil)
	srv := serveListener(t, r, 7)
	conn := dial(t, srv)
	defer conn.Close()

	require.Eventually(t, func() bool { return r.Count(7) == 1 }, 2*time.Second, 10*time.Millisecond)

	rec := models.PersistedRecord{
		ID:        3,
		RoadState: models.RoadStateHill,
		UserID:    7,
		Y:         150,
		Latitude:  50.45,
		Longitude: 30.52,
		Timestamp: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
	}
	assert.Equal(t, 1, r.Publish(context.Background(), 7, rec))

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got models.PersistedRecord
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, rec.ID, got.ID)
	assert.Equal(t, rec.RoadState, got.RoadState)
	assert.Equal(t, rec.UserID, got.UserID)
	assert.True(t, rec.Timestamp.Equal(got.Timestamp))
}

func TestWebSocketListener_DisconnectUnsubscribes(t *testing.T) {
	r := NewRegistry(time.Second, quietLogger(), nil)
	srv := serveListener(t, r, 7)
	conn := dial(t, srv)

	require.Eventually(t, func() bool { return r.Count(7) == 1 }, 2*time.Second, 10*time.Millisecond)

	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	conn.Close()

	assert.Eventually(t, func() bool { return r.Count(7) == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestWebSocketListener_IgnoresClientPayloads(t *testing.T) {
	r := NewRegistry(time.Second, quietLogger(), nil)
	srv := serveListener(t, r, 7)
	conn := dial(t, srv)
	defer conn.Close()

	require.Eventually(t, func() bool { return r.Count(7) == 1 }, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("hello")))

	assert.Equal(t, 1, r.Publish(context.Background(), 7, models.PersistedRecord{ID: 1, UserID: 7}))
	assert.Equal(t, 1, r.Count(7))
}

func TestWebSocketListener_FailedSendDisconnectsClient(t *testing.T) {
	r := NewRegistry(time.Nanosecond, quietLogger(), nil)
	srv := serveListener(t, r, 7)
	conn := dial(t, srv)
	defer conn.Close()

	require.Eventually(t, func() bool { return r.Count(7) == 1 }, 2*time.Second, 10*time.Millisecond)

	assert.Equal(t, 0, r.Publish(context.Background(), 7, models.PersistedRecord{ID: 1, UserID: 7}))
	assert.Equal(t, 0, r.Count(7))

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var err error
	for err == nil {
		_, _, err = conn.ReadMessage()
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		assert.False(t, netErr.Timeout(), "connection left open after dropped delivery: %v", err)
	}
}
