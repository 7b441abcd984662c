package hub

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/ukydev/road-vision/internal/models"
)

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingInterval = 30 * time.Second
)

// WebSocketListener pushes records to one WebSocket connection as JSON text
// frames. The gorilla connection allows one concurrent writer, so data frames
// go through writeMu.
type WebSocketListener struct {
	id        string
	conn      *websocket.Conn
	writeMu   sync.Mutex
	closeOnce sync.Once
	closeErr  error

	pingInterval time.Duration
	pongWait     time.Duration
}

// NewWebSocketListener wraps an upgraded connection.
func NewWebSocketListener(conn *websocket.Conn) *WebSocketListener {
	return &WebSocketListener{
		id:           uuid.NewString(),
		conn:         conn,
		pingInterval: pingInterval,
		pongWait:     pongWait,
	}
}

// ID returns the listener's unique id.
func (l *WebSocketListener) ID() string { return l.id }

// Send writes rec as a single JSON document.
func (l *WebSocketListener) Send(ctx context.Context, rec models.PersistedRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}

	l.writeMu.Lock()
	defer l.writeMu.Unlock()

	deadline := time.Now().Add(writeWait)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = l.conn.SetWriteDeadline(deadline)
	return l.conn.WriteMessage(websocket.TextMessage, data)
}

// Close sends a close frame and closes the connection, which ends Run. It is
// safe to call concurrently with Send and more than once.
func (l *WebSocketListener) Close() error {
	l.closeOnce.Do(func() {
		_ = l.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "delivery failed"),
			time.Now().Add(time.Second))
		l.closeErr = l.conn.Close()
	})
	return l.closeErr
}

// Run reads from the connection until the peer goes away, the pong deadline
// lapses or ctx is done. Client payloads are discarded. It keeps the
// connection alive with periodic pings and closes the connection on return.
func (l *WebSocketListener) Run(ctx context.Context) error {
	defer l.conn.Close()

	_ = l.conn.SetReadDeadline(time.Now().Add(l.pongWait))
	l.conn.SetPongHandler(func(string) error {
		return l.conn.SetReadDeadline(time.Now().Add(l.pongWait))
	})

	done := make(chan struct{})
	defer close(done)
	go l.keepalive(ctx, done)

	for {
		if _, _, err := l.conn.ReadMessage(); err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return err
		}
	}
}

func (l *WebSocketListener) keepalive(ctx context.Context, done <-chan struct{}) {
	ticker := time.NewTicker(l.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			// Unblocks the reader in Run.
			_ = l.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
				time.Now().Add(writeWait))
			_ = l.conn.Close()
			return
		case <-ticker.C:
			if err := l.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				_ = l.conn.Close()
				return
			}
		}
	}
}
