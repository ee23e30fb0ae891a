package socket_client_service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/url"
	"sync"
	"time"

	"github.com/zishang520/socket.io/clients/engine/v3/transports"
	socketio "github.com/zishang520/socket.io/clients/socket/v3"
	"github.com/zishang520/socket.io/v3/pkg/types"
)

// socketIOEvent is the event name both directions use for protocol frames.
const socketIOEvent = "message"

// SocketIODialer carries the same JSON frames as socket.io "message" events.
type SocketIODialer struct {
	Path    string
	Timeout time.Duration
}

func (d *SocketIODialer) Dial(ctx context.Context, rawURL string, handler FrameHandler) (Transport, error) {
	target, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid socket.io url: %w", err)
	}
	query := target.Query()
	target.RawQuery = ""

	path := d.Path
	if path == "" {
		path = "/socket.io/"
	}
	timeout := d.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	options := socketio.DefaultOptions()
	options.SetTransports(types.NewSet(
		transports.Polling,
		transports.WebSocket,
	))
	options.SetPath(path)
	options.SetQuery(query)
	options.SetTimeout(timeout)

	socket, err := socketio.Connect(target.String(), options)
	if err != nil {
		return nil, fmt.Errorf("socket.io connect failed: %w", err)
	}

	t := &socketIOTransport{
		socket:  socket,
		handler: handler,
		ready:   make(chan error, 1),
	}
	t.setupEventHandlers()

	select {
	case err := <-t.ready:
		if err != nil {
			t.shutdown()
			return nil, err
		}
		return t, nil
	case <-ctx.Done():
		t.shutdown()
		return nil, ctx.Err()
	case <-time.After(timeout):
		t.shutdown()
		return nil, fmt.Errorf("socket.io connect timed out after %v", timeout)
	}
}

type socketIOTransport struct {
	socket  *socketio.Socket
	handler FrameHandler
	ready   chan error

	// socket.io may deliver events on different goroutines
	frameMu   sync.Mutex
	mu        sync.Mutex
	closed    bool
	closeOnce sync.Once
}

func (t *socketIOTransport) setupEventHandlers() {
	t.socket.On("connect", func(data ...interface{}) {
		select {
		case t.ready <- nil:
		default:
		}
	})

	t.socket.On("connect_error", func(data ...interface{}) {
		err := errorFromEvent(data, "connection error")
		log.Printf("🔥 Socket.IO connect error: %v", err)
		select {
		case t.ready <- err:
		default:
		}
	})

	t.socket.On("disconnect", func(data ...interface{}) {
		defer func() {
			if r := recover(); r != nil {
				log.Printf("⚠️ Panic recovered in disconnect handler: %v", r)
			}
		}()

		t.mu.Lock()
		local := t.closed
		t.closed = true
		t.mu.Unlock()

		var err error
		if !local {
			err = errorFromEvent(data, "disconnected")
		}
		t.finish(err)
	})

	t.socket.On(socketIOEvent, func(data ...interface{}) {
		defer func() {
			if r := recover(); r != nil {
				log.Printf("⚠️ Panic recovered in message handler: %v", r)
			}
		}()

		frame, ok := frameFromSocketData(data)
		if !ok {
			log.Printf("⚠️ Unknown socket.io frame format: %v", data)
			return
		}
		t.frameMu.Lock()
		defer t.frameMu.Unlock()
		t.handler.OnFrame(frame)
	})
}

func (t *socketIOTransport) finish(err error) {
	t.closeOnce.Do(func() {
		t.handler.OnClose(err)
	})
}

func (t *socketIOTransport) Send(data []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed || !t.socket.Connected() {
		return errTransportClosed
	}
	t.socket.Emit(socketIOEvent, string(data))
	return nil
}

func (t *socketIOTransport) Close() error {
	t.shutdown()
	t.finish(nil)
	return nil
}

func (t *socketIOTransport) shutdown() {
	t.mu.Lock()
	t.closed = true
	t.mu.Unlock()
	t.socket.Disconnect()
}

// frameFromSocketData extracts one JSON frame from socket.io event arguments.
// Servers emit either the JSON text or an already decoded object.
func frameFromSocketData(data []interface{}) ([]byte, bool) {
	if len(data) == 0 || data[0] == nil {
		return nil, false
	}
	switch v := data[0].(type) {
	case string:
		return []byte(v), true
	case []byte:
		return v, true
	case map[string]interface{}:
		b, err := json.Marshal(v)
		if err != nil {
			return nil, false
		}
		return b, true
	default:
		return nil, false
	}
}

func errorFromEvent(data []interface{}, fallback string) error {
	if len(data) > 0 && data[0] != nil {
		if e, ok := data[0].(error); ok {
			return e
		}
		return fmt.Errorf("%s: %v", fallback, data[0])
	}
	return errors.New(fallback)
}
