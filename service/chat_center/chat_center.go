package chatcenter

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"chat-sync-client/models"
	"chat-sync-client/service/attachment_service"
	"chat-sync-client/service/auth_service"
	"chat-sync-client/service/message_store"
	"chat-sync-client/service/presence_service"
	"chat-sync-client/service/socket_client_service"
)

var (
	ErrNoConversation = errors.New("no conversation is open")
	ErrEmptyMessage   = errors.New("message is empty")
)

// Credentials 认证协作者
type Credentials interface {
	GetCurrentCredential(ctx context.Context) (string, error)
	CurrentUserID() (models.ID, error)
	Clear(ctx context.Context) error
}

// HistoryFetcher REST 协作者
type HistoryFetcher interface {
	FetchHistory(ctx context.Context, key models.ConversationKey, credential string) ([]models.Message, error)
}

// Alerter shows user-visible failures.
type Alerter interface {
	Alert(title, message string)
}

// LogAlerter writes alerts to the log.
type LogAlerter struct{}

func (LogAlerter) Alert(title, message string) {
	log.Printf("🚨 %s: %s", title, message)
}

// Config 聊天中心配置
type Config struct {
	SocketConfig     *socket_client_service.Config `yaml:"socket" json:"socket"`
	StoreConfig      *message_store.Config         `yaml:"store" json:"store"`
	AttachmentConfig *attachment_service.Config    `yaml:"attachment" json:"attachment"`
	TypingIdle       time.Duration                 `yaml:"typing_idle" json:"typing_idle"`
	TypingExpiry     time.Duration                 `yaml:"typing_expiry" json:"typing_expiry"`
	ClearOnSwitch    bool                          `yaml:"clear_on_switch" json:"clear_on_switch"`
	HistoryTimeout   time.Duration                 `yaml:"history_timeout" json:"history_timeout"`
}

// Options are the collaborators of the chat center. Storage, Credentials and
// History are required.
type Options struct {
	Storage     message_store.Storage
	Credentials Credentials
	History     HistoryFetcher
	Dialer      socket_client_service.Dialer
	FileSystem  attachment_service.FileSystem
	Compressor  attachment_service.VideoCompressor
	Locator     attachment_service.Locator
	Alerter     Alerter
}

// historyFetch is one in-flight history request; cancelled is set when the
// conversation it belongs to is left.
type historyFetch struct {
	key       models.ConversationKey
	cancelled atomic.Bool
}

// ChatCenter 聊天中心: owns the process-wide store, presence state and
// connection, and drives them for the one open conversation.
type ChatCenter struct {
	config      *Config
	store       *message_store.Store
	presence    *presence_service.State
	manager     *socket_client_service.Manager
	pipeline    *attachment_service.Pipeline
	credentials Credentials
	history     HistoryFetcher
	alerter     Alerter

	connectMu sync.Mutex // orders connection switches with the fetch cancel check

	mu       sync.Mutex
	current  models.ConversationKey
	open     bool
	fetch    *historyFetch
	notifier *presence_service.TypingNotifier
	pending  []attachment_service.PendingAttachment
	running  bool
}

// NewChatCenter 创建聊天中心实例
func NewChatCenter(config *Config, opts Options) *ChatCenter {
	if config == nil {
		config = &Config{}
	}
	if config.HistoryTimeout <= 0 {
		config.HistoryTimeout = 15 * time.Second
	}
	alerter := opts.Alerter
	if alerter == nil {
		alerter = LogAlerter{}
	}

	store := message_store.NewStore(config.StoreConfig, opts.Storage)
	presence := presence_service.NewState(config.TypingExpiry)

	return &ChatCenter{
		config:      config,
		store:       store,
		presence:    presence,
		manager:     socket_client_service.NewManager(config.SocketConfig, opts.Dialer, opts.Credentials, store, presence),
		pipeline:    attachment_service.NewPipeline(config.AttachmentConfig, opts.FileSystem, opts.Compressor, opts.Locator),
		credentials: opts.Credentials,
		history:     opts.History,
		alerter:     alerter,
	}
}

// Initialize 初始化聊天中心
func (cc *ChatCenter) Initialize(ctx context.Context) error {
	cc.mu.Lock()
	defer cc.mu.Unlock()

	if cc.running {
		return fmt.Errorf("chat center already initialized")
	}
	log.Printf("🚀 Initializing chat center...")

	if err := cc.store.Initialize(ctx); err != nil {
		log.Printf("❌ Failed to initialize message store: %v", err)
		return fmt.Errorf("failed to initialize message store: %w", err)
	}

	cc.manager.SetConnectHandler(func(key models.ConversationKey) {
		log.Printf("✅ Live updates for %s", key)
	})
	cc.manager.SetDisconnectHandler(func(key models.ConversationKey) {
		log.Printf("📴 Live updates for %s stopped", key)
	})
	cc.manager.SetErrorHandler(func(err error) {
		log.Printf("🔥 Connection error: %v", err)
	})

	cc.running = true
	log.Printf("✅ Chat center initialized")
	return nil
}

// Stop closes the open conversation and flushes the store.
func (cc *ChatCenter) Stop() error {
	cc.CloseConversation()

	cc.mu.Lock()
	defer cc.mu.Unlock()
	if !cc.running {
		return nil
	}
	cc.running = false

	if err := cc.store.Close(); err != nil {
		log.Printf("❌ Failed to flush message store: %v", err)
		return err
	}
	log.Printf("✅ Chat center stopped")
	return nil
}

// OpenConversation makes key the open conversation: the previous one is left,
// history is fetched into the store and the live connection is switched.
// Connection failures are logged only; IsConnected reports the outcome.
func (cc *ChatCenter) OpenConversation(ctx context.Context, key models.ConversationKey) error {
	if err := key.Validate(); err != nil {
		return err
	}

	cc.mu.Lock()
	previous, wasOpen := cc.current, cc.open
	wasTyping := cc.leaveLocked()
	if cc.config.ClearOnSwitch && wasOpen && previous != key {
		cc.store.ClearMessages(previous)
	}
	fetch := &historyFetch{key: key}
	cc.current = key
	cc.open = true
	cc.fetch = fetch
	cc.notifier = presence_service.NewTypingNotifier(cc.typingSender(key), cc.config.TypingIdle)
	cc.mu.Unlock()

	cc.presence.Reset()
	log.Printf("💬 Opening %s", key)

	cc.loadHistory(ctx, fetch)

	cc.connectMu.Lock()
	defer cc.connectMu.Unlock()
	if fetch.cancelled.Load() {
		log.Printf("💬 %s was left before it finished opening", key)
		return nil
	}
	if err := cc.manager.Connect(ctx, key); err != nil {
		log.Printf("⚠️ %s opened without live updates: %v", key, err)
		// an aborted connect leaves the previous transport open
		if current, ok := cc.manager.CurrentKey(); wasTyping && ok && current == previous {
			cc.manager.SendJSON(models.NewTypingFrame(previous, false))
		}
	}
	return nil
}

// loadHistory seeds the store with one REST fetch. The result is dropped when
// the conversation was left meanwhile.
func (cc *ChatCenter) loadHistory(ctx context.Context, fetch *historyFetch) {
	if cc.history == nil {
		return
	}

	credential, err := cc.credentials.GetCurrentCredential(ctx)
	if err != nil || auth_service.StripBearer(credential) == "" {
		log.Printf("🔑 No credential, history for %s not fetched", fetch.key)
		return
	}
	if auth_service.TokenExpired(credential, time.Now()) {
		log.Printf("🔑 Credential expired, history for %s not fetched", fetch.key)
		return
	}

	hctx, cancel := context.WithTimeout(ctx, cc.config.HistoryTimeout)
	defer cancel()

	messages, err := cc.history.FetchHistory(hctx, fetch.key, credential)
	if fetch.cancelled.Load() {
		log.Printf("💬 Discarding history for %s, conversation was left", fetch.key)
		return
	}
	if err != nil {
		log.Printf("❌ Failed to fetch history for %s: %v", fetch.key, err)
		return
	}
	cc.store.LoadMessages(fetch.key, messages)
	log.Printf("📨 Fetched %d messages for %s", len(messages), fetch.key)
}

// leaveLocked cancels everything bound to the open conversation except the
// connection, which Connect and Disconnect replace; their teardown sends the
// final typing=false. It reports whether typing=true was outstanding.
func (cc *ChatCenter) leaveLocked() bool {
	if cc.fetch != nil {
		cc.fetch.cancelled.Store(true)
		cc.fetch = nil
	}
	wasTyping := false
	if cc.notifier != nil {
		wasTyping = cc.notifier.Stop()
		cc.notifier = nil
	}
	cc.pending = nil
	cc.open = false
	return wasTyping
}

func (cc *ChatCenter) typingSender(key models.ConversationKey) func(bool) {
	return func(isTyping bool) {
		if current, ok := cc.manager.CurrentKey(); !ok || current != key {
			return
		}
		cc.manager.SendJSON(models.NewTypingFrame(key, isTyping))
	}
}

// CloseConversation leaves the open conversation. Its messages stay in the
// store.
func (cc *ChatCenter) CloseConversation() {
	cc.mu.Lock()
	wasOpen := cc.open
	key := cc.current
	cc.leaveLocked()
	cc.mu.Unlock()

	cc.connectMu.Lock()
	cc.manager.Disconnect()
	cc.connectMu.Unlock()
	cc.presence.Reset()
	if wasOpen {
		log.Printf("💬 Closed %s", key)
	}
}

// Logout leaves the open conversation and forgets every conversation, the
// presence state and the credential.
func (cc *ChatCenter) Logout(ctx context.Context) error {
	cc.CloseConversation()
	cc.store.ClearAll()
	if err := cc.store.Flush(ctx); err != nil {
		log.Printf("⚠️ Failed to flush cleared store: %v", err)
	}
	if err := cc.credentials.Clear(ctx); err != nil {
		return err
	}
	log.Printf("👋 Logged out")
	return nil
}

func (cc *ChatCenter) openKey() (models.ConversationKey, error) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	if !cc.open {
		return models.ConversationKey{}, ErrNoConversation
	}
	return cc.current, nil
}

// SendText sends a text message. Transport failures are logged and dropped;
// the message appears once the server broadcasts it.
func (cc *ChatCenter) SendText(content string, parentID models.ID) error {
	key, err := cc.openKey()
	if err != nil {
		return err
	}
	if strings.TrimSpace(content) == "" {
		return ErrEmptyMessage
	}

	cc.manager.SendJSON(models.NewTextFrame(key, content, parentID))
	return nil
}

// InputChanged records one local keystroke for typing signalling.
func (cc *ChatCenter) InputChanged() error {
	cc.mu.Lock()
	notifier := cc.notifier
	cc.mu.Unlock()

	if notifier == nil {
		return ErrNoConversation
	}
	notifier.Touch()
	return nil
}

// AddAttachment adds item to the pending selection. Re-adding a file keeps
// one entry.
func (cc *ChatCenter) AddAttachment(item attachment_service.PendingAttachment) error {
	if item.LocalURI == "" {
		return errors.New("localUri is required")
	}

	cc.mu.Lock()
	defer cc.mu.Unlock()
	if !cc.open {
		return ErrNoConversation
	}
	for i, p := range cc.pending {
		if p.LocalURI == item.LocalURI {
			cc.pending[i] = item
			return nil
		}
	}
	cc.pending = append(cc.pending, item)
	return nil
}

// RemoveAttachment drops localURI from the pending selection.
func (cc *ChatCenter) RemoveAttachment(localURI string) bool {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	for i, p := range cc.pending {
		if p.LocalURI == localURI {
			cc.pending = append(cc.pending[:i:i], cc.pending[i+1:]...)
			return true
		}
	}
	return false
}

func (cc *ChatCenter) PendingAttachments() []attachment_service.PendingAttachment {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	out := make([]attachment_service.PendingAttachment, len(cc.pending))
	copy(out, cc.pending)
	return out
}

// SendAttachments sends the pending selection as one message. The selection
// is kept when anything fails so the user can retry.
func (cc *ChatCenter) SendAttachments(ctx context.Context, content string, parentID models.ID) error {
	key, err := cc.openKey()
	if err != nil {
		return err
	}
	items := cc.PendingAttachments()

	err = cc.pipeline.SendAttachments(ctx, cc.manager, key, content, parentID, items)
	if err != nil {
		cc.surface(err)
		return err
	}

	cc.mu.Lock()
	if cc.open && cc.current == key {
		cc.pending = nil
	}
	cc.mu.Unlock()
	return nil
}

// ShareLocation sends the device position once.
func (cc *ChatCenter) ShareLocation(ctx context.Context, parentID models.ID) error {
	key, err := cc.openKey()
	if err != nil {
		return err
	}

	if err := cc.pipeline.ShareLocation(ctx, cc.manager, key, "", parentID); err != nil {
		cc.surface(err)
		return err
	}
	return nil
}

// surface alerts user-facing failures; everything else was already logged.
func (cc *ChatCenter) surface(err error) {
	var userErr *attachment_service.UserError
	if errors.As(err, &userErr) {
		cc.alerter.Alert(userErr.Title, userErr.Message)
	}
}

// CurrentConversation returns the open conversation.
func (cc *ChatCenter) CurrentConversation() (models.ConversationKey, bool) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	return cc.current, cc.open
}

func (cc *ChatCenter) IsConnected() bool {
	return cc.manager.IsConnected()
}

func (cc *ChatCenter) Messages(key models.ConversationKey) []models.Message {
	return cc.store.Messages(key)
}

// TypingUsers lists the users currently typing, without the signed-in user.
func (cc *ChatCenter) TypingUsers() []string {
	if self, err := cc.credentials.CurrentUserID(); err == nil {
		return cc.presence.TypingUsers(self)
	}
	return cc.presence.TypingUsers()
}

func (cc *ChatCenter) Presence() presence_service.Snapshot {
	return cc.presence.Snapshot()
}

// Store and PresenceState expose the shared state for subscriptions.
func (cc *ChatCenter) Store() *message_store.Store {
	return cc.store
}

func (cc *ChatCenter) PresenceState() *presence_service.State {
	return cc.presence
}
