package socket_client_service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"chat-sync-client/models"
	"chat-sync-client/service/auth_service"
)

var (
	ErrCredentialMissing = errors.New("no credential available")
	ErrNotConnected      = errors.New("transport not ready")
)

// CredentialProvider supplies the bearer credential used on every connect.
type CredentialProvider interface {
	GetCurrentCredential(ctx context.Context) (string, error)
}

// MessageSink receives message mutations from inbound frames.
type MessageSink interface {
	LoadMessages(key models.ConversationKey, messages []models.Message)
	AddMessage(key models.ConversationKey, message models.Message)
	EditMessage(key models.ConversationKey, id models.ID, patch models.MessagePatch) bool
	DeleteMessage(key models.ConversationKey, id models.ID) bool
	Contains(key models.ConversationKey, id models.ID) bool
}

// PresenceSink receives typing and online updates from inbound frames.
type PresenceSink interface {
	SetTyping(userID models.ID, isTyping bool)
	SetOnlineStatus(groupUsers []models.ID, personalUsers map[string]bool)
}

type session struct {
	key       models.ConversationKey
	transport Transport
	open      bool
	closed    bool
}

// Manager owns the single real-time transport of the process. It is a thin
// relay: it never sends frames on its own except the final typing=false on
// teardown, and never reconnects by itself.
type Manager struct {
	config      *Config
	dialer      Dialer
	credentials CredentialProvider
	messages    MessageSink
	presence    PresenceSink

	connectMu  sync.Mutex // serializes Connect and Disconnect
	dispatchMu sync.Mutex // one frame at a time
	mu         sync.RWMutex
	current    *session

	onConnect    func(models.ConversationKey)
	onDisconnect func(models.ConversationKey)
	onError      func(error)
}

// NewManager creates a manager. A nil dialer selects one from config.
func NewManager(config *Config, dialer Dialer, credentials CredentialProvider, messages MessageSink, presence PresenceSink) *Manager {
	if config == nil {
		config = &Config{}
	}
	config.applyDefaults()
	if dialer == nil {
		dialer = NewDialer(config)
	}

	return &Manager{
		config:      config,
		dialer:      dialer,
		credentials: credentials,
		messages:    messages,
		presence:    presence,
	}
}

// Connect binds the manager to key. An open transport is torn down first, so
// at most one transport is ever open. Without a credential the call is
// aborted and the current connection is left alone; an expired token counts
// as no credential.
func (m *Manager) Connect(ctx context.Context, key models.ConversationKey) error {
	if err := key.Validate(); err != nil {
		log.Printf("❌ Refusing to connect: %v", err)
		return err
	}

	m.connectMu.Lock()
	defer m.connectMu.Unlock()

	credential, err := m.credentials.GetCurrentCredential(ctx)
	if err != nil || auth_service.StripBearer(credential) == "" {
		if err != nil {
			log.Printf("🔑 Credential lookup failed, connect to %s aborted: %v", key, err)
		} else {
			log.Printf("🔑 No credential, connect to %s aborted", key)
		}
		return ErrCredentialMissing
	}
	if auth_service.TokenExpired(credential, time.Now()) {
		log.Printf("🔑 Credential expired, connect to %s aborted", key)
		return ErrCredentialMissing
	}

	m.teardown()

	rawURL, err := m.config.BuildURL(key, credential)
	if err != nil {
		log.Printf("❌ %v", err)
		return err
	}

	sess := &session{key: key}
	m.mu.Lock()
	m.current = sess
	m.mu.Unlock()

	transport, err := m.dialer.Dial(ctx, rawURL, &sessionHandler{manager: m, session: sess})
	if err != nil {
		m.mu.Lock()
		if m.current == sess {
			m.current = nil
		}
		m.mu.Unlock()
		log.Printf("❌ Failed to connect to %s: %v", key, err)
		m.emitError(err)
		return fmt.Errorf("connect %s: %w", key, err)
	}

	m.mu.Lock()
	if sess.closed || m.current != sess {
		m.mu.Unlock()
		transport.Close()
		log.Printf("⚠️ Transport for %s closed during connect", key)
		return fmt.Errorf("connect %s: %w", key, ErrNotConnected)
	}
	sess.transport = transport
	sess.open = true
	m.mu.Unlock()

	log.Printf("🔌 Connected to %s via %s", key, m.config.Transport)
	m.mu.RLock()
	onConnect := m.onConnect
	m.mu.RUnlock()
	if onConnect != nil {
		onConnect(key)
	}
	return nil
}

// Disconnect sends a best-effort typing=false and closes the transport. It is
// a no-op without an open transport.
func (m *Manager) Disconnect() {
	m.connectMu.Lock()
	defer m.connectMu.Unlock()

	m.teardown()
}

func (m *Manager) teardown() {
	m.mu.Lock()
	sess := m.current
	m.current = nil
	m.mu.Unlock()

	if sess == nil || sess.transport == nil {
		return
	}

	if data, err := json.Marshal(models.NewTypingFrame(sess.key, false)); err == nil {
		if err := sess.transport.Send(data); err != nil {
			log.Printf("⚠️ Final typing frame not sent: %v", err)
		}
	}
	if err := sess.transport.Close(); err != nil {
		log.Printf("⚠️ Error closing transport: %v", err)
	}
	log.Printf("📴 Disconnected from %s", sess.key)

	m.mu.RLock()
	onDisconnect := m.onDisconnect
	m.mu.RUnlock()
	if onDisconnect != nil {
		onDisconnect(sess.key)
	}
}

// SendJSON encodes frame and writes it to the open transport. Without an open
// transport the frame is logged and dropped. Delivery is never confirmed.
func (m *Manager) SendJSON(frame interface{}) error {
	var (
		key       models.ConversationKey
		transport Transport
	)
	m.mu.RLock()
	if sess := m.current; sess != nil && sess.open {
		key = sess.key
		transport = sess.transport
	}
	m.mu.RUnlock()

	if transport == nil {
		log.Printf("❌ Transport not ready, dropping frame")
		return ErrNotConnected
	}

	data, err := json.Marshal(frame)
	if err != nil {
		log.Printf("❌ Failed to encode frame: %v", err)
		return fmt.Errorf("encode frame: %w", err)
	}
	if err := transport.Send(data); err != nil {
		log.Printf("❌ Failed to send frame: %v", err)
		return fmt.Errorf("send frame: %w", err)
	}
	log.Printf("📤 Sent frame to %s (%d bytes)", key, len(data))
	return nil
}

// IsConnected reports whether a transport is open.
func (m *Manager) IsConnected() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current != nil && m.current.open
}

// CurrentKey returns the conversation the open transport is bound to.
func (m *Manager) CurrentKey() (models.ConversationKey, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.current == nil || !m.current.open {
		return models.ConversationKey{}, false
	}
	return m.current.key, true
}

// SetConnectHandler 设置连接处理器
func (m *Manager) SetConnectHandler(handler func(models.ConversationKey)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onConnect = handler
}

// SetDisconnectHandler 设置断开连接处理器
func (m *Manager) SetDisconnectHandler(handler func(models.ConversationKey)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onDisconnect = handler
}

// SetErrorHandler 设置错误处理器
func (m *Manager) SetErrorHandler(handler func(error)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onError = handler
}

func (m *Manager) emitError(err error) {
	m.mu.RLock()
	onError := m.onError
	m.mu.RUnlock()
	if onError != nil {
		onError(err)
	}
}

func (m *Manager) isCurrent(sess *session) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current == sess
}

// sessionHandler routes one transport's events to the manager. Events of a
// superseded transport are dropped.
type sessionHandler struct {
	manager *Manager
	session *session
}

func (h *sessionHandler) OnFrame(data []byte) {
	m := h.manager
	if !m.isCurrent(h.session) {
		return
	}

	m.dispatchMu.Lock()
	defer m.dispatchMu.Unlock()
	m.dispatch(h.session.key, data)
}

func (h *sessionHandler) OnClose(err error) {
	m := h.manager

	m.mu.Lock()
	h.session.closed = true
	wasOpen := m.current == h.session && h.session.open
	if m.current == h.session {
		m.current = nil
	}
	onDisconnect := m.onDisconnect
	m.mu.Unlock()

	if !wasOpen {
		return
	}
	if err != nil {
		log.Printf("🔥 Transport for %s failed: %v", h.session.key, err)
		m.emitError(err)
	} else {
		log.Printf("📴 Transport for %s closed by server", h.session.key)
	}
	if onDisconnect != nil {
		onDisconnect(h.session.key)
	}
}
