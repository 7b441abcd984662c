package handlers

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

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
	"github.com/ukydev/road-vision/internal/auth"
	"github.com/ukydev/road-vision/internal/db"
	"github.com/ukydev/road-vision/internal/gateway"
	"github.com/ukydev/road-vision/internal/hub"
)

type testEnv struct {
	server   *httptest.Server
	registry *hub.Registry
	store    *db.SQLCollection
}

func newTestEnv(t *testing.T, authService *auth.Service) *testEnv {
	t.Helper()
	ctx := context.Background()

	store, err := db.OpenSQLite(filepath.Join(t.TempDir(), "handlers.db"))
	require.NoError(t, err)
	require.NoError(t, store.InitSchema(ctx))

	logger, _ := test.NewNullLogger()
	reg := prometheus.NewRegistry()
	registry := hub.NewRegistry(time.Second, logger, hub.NewMetrics(reg))
	gw := gateway.New(store, registry, logger, gateway.NewMetrics(reg))

	handler, subs := NewRouter(RouterConfig{
		Gateway:  gw,
		Registry: registry,
		Auth:     authService,
		Gatherer: reg,
		Logger:   logger,
	})
	server := httptest.NewServer(handler)

	t.Cleanup(func() {
		subs.Close()
		server.Close()
		_ = store.Close(ctx)
	})
	return &testEnv{server: server, registry: registry, store: store}
}

func (e *testEnv) do(t *testing.T, method, path, body string, header ...string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, e.server.URL+path, bytes.NewBufferString(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (e *testEnv) dial(t *testing.T, path string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(e.server.URL, "http") + path
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func decode(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func itemJSON(userID int64, state string, y int, ts string) string {
	return fmt.Sprintf(`{"road_state":%q,"agent_data":{"user_id":%d,"accelerometer":{"x":1,"y":%d,"z":16500},"gps":{"longitude":30.5234,"latitude":50.4501},"timestamp":%q}}`,
		state, userID, y, ts)
}

func batchJSON(items ...string) string {
	return "[" + strings.Join(items, ",") + "]"
}
