package socket_client_service

import "context"

// FrameHandler receives the inbound side of one transport. OnFrame is called
// sequentially in arrival order; OnClose is called once when the transport
// goes away, with a nil error for a local Close.
type FrameHandler interface {
	OnFrame(data []byte)
	OnClose(err error)
}

// Transport is one open duplex connection.
type Transport interface {
	Send(data []byte) error
	Close() error
}

// Dialer opens transports. Dial returns only once the transport is open.
type Dialer interface {
	Dial(ctx context.Context, rawURL string, handler FrameHandler) (Transport, error)
}

const (
	TransportWebSocket = "websocket"
	TransportSocketIO  = "socketio"
)

// NewDialer returns the dialer selected by config.Transport.
func NewDialer(config *Config) Dialer {
	if config.Transport == TransportSocketIO {
		return &SocketIODialer{
			Path:    config.SocketPath,
			Timeout: config.timeout(),
		}
	}
	return &WebSocketDialer{
		HandshakeTimeout: config.timeout(),
	}
}
