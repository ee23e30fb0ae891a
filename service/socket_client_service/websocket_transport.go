package socket_client_service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second // time allowed to write a frame
	maxMessageSize = 64 << 20         // inline attachments make frames large
)

var errTransportClosed = errors.New("transport closed")

// WebSocketDialer dials plain JSON-over-WebSocket transports.
type WebSocketDialer struct {
	HandshakeTimeout time.Duration
	Header           http.Header
}

func (d *WebSocketDialer) Dial(ctx context.Context, rawURL string, handler FrameHandler) (Transport, error) {
	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: d.HandshakeTimeout,
	}

	conn, resp, err := dialer.DialContext(ctx, rawURL, d.Header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("websocket handshake failed with status %d: %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("websocket dial failed: %w", err)
	}
	conn.SetReadLimit(maxMessageSize)

	t := &wsTransport{
		conn:    conn,
		handler: handler,
	}
	go t.readPump()
	return t, nil
}

type wsTransport struct {
	conn    *websocket.Conn
	handler FrameHandler

	writeMu   sync.Mutex
	closing   atomic.Bool
	closeOnce sync.Once
}

// readPump delivers frames to the handler one at a time, in arrival order.
func (t *wsTransport) readPump() {
	for {
		_, data, err := t.conn.ReadMessage()
		if err != nil {
			if t.closing.Load() {
				t.finish(nil)
				return
			}
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("🔥 WebSocket read error: %v", err)
			}
			t.finish(err)
			return
		}
		t.handler.OnFrame(data)
	}
}

func (t *wsTransport) finish(err error) {
	t.closeOnce.Do(func() {
		t.closing.Store(true)
		t.conn.Close()
		t.handler.OnClose(err)
	})
}

func (t *wsTransport) Send(data []byte) error {
	if t.closing.Load() {
		return errTransportClosed
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	t.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := t.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("websocket write failed: %w", err)
	}
	return nil
}

func (t *wsTransport) Close() error {
	if t.closing.Swap(true) {
		return nil
	}

	t.writeMu.Lock()
	err := t.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeWait),
	)
	t.writeMu.Unlock()

	// readPump sees the closed socket and reports OnClose(nil)
	closeErr := t.conn.Close()
	if err != nil && !errors.Is(err, websocket.ErrCloseSent) {
		log.Printf("⚠️ WebSocket close frame not sent: %v", err)
	}
	return closeErr
}
