package socket_client_service

import (
	"encoding/json"
	"fmt"
	"log"
	"net/url"
	"strings"
	"time"

	"chat-sync-client/models"
	"chat-sync-client/service/auth_service"
)

const DefaultPathTemplate = "/ws/chat/{kind}/{id}/"

// Config real-time client configuration
type Config struct {
	ServerURL    string `yaml:"server_url" json:"server_url"`       // ws(s):// or http(s):// base of the chat endpoint
	PathTemplate string `yaml:"path_template" json:"path_template"` // {kind} and {id} are substituted
	Transport    string `yaml:"transport" json:"transport"`         // websocket or socketio
	SocketPath   string `yaml:"socket_path" json:"socket_path"`     // socket.io engine path, default "/socket.io/"
	Timeout      int    `yaml:"timeout" json:"timeout"`             // connect timeout in seconds, default 10
}

func (c *Config) applyDefaults() {
	if c.PathTemplate == "" {
		c.PathTemplate = DefaultPathTemplate
	}
	if c.Transport == "" {
		c.Transport = TransportWebSocket
	}
	if c.SocketPath == "" {
		c.SocketPath = "/socket.io/"
	}
	if c.Timeout == 0 {
		c.Timeout = 10
	}
}

func (c *Config) timeout() time.Duration {
	if c.Timeout <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.Timeout) * time.Second
}

// BuildURL returns the endpoint of key with the credential as the token
// query parameter. Any "Bearer " prefix is stripped from the credential.
func (c *Config) BuildURL(key models.ConversationKey, credential string) (string, error) {
	base, err := url.Parse(c.ServerURL)
	if err != nil {
		return "", fmt.Errorf("invalid server url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return "", fmt.Errorf("invalid server url %q", c.ServerURL)
	}

	path := strings.NewReplacer(
		"{kind}", url.PathEscape(string(key.Kind)),
		"{id}", url.PathEscape(key.ID.String()),
	).Replace(c.PathTemplate)
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	base.Path = strings.TrimSuffix(base.Path, "/") + path

	q := base.Query()
	q.Set("token", auth_service.StripBearer(credential))
	base.RawQuery = q.Encode()
	return base.String(), nil
}

// dispatch applies one inbound frame to the message store and presence
// state. Malformed and unknown frames are logged and dropped.
func (m *Manager) dispatch(key models.ConversationKey, data []byte) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("⚠️ Panic recovered in frame dispatch: %v", r)
		}
	}()

	var env frameEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		log.Printf("⚠️ Dropping malformed frame: %v", err)
		return
	}

	switch env.Type {
	case models.FrameMessageHistory:
		m.handleHistory(key, data)
	case models.FrameChatMessage:
		m.handleChatMessage(key, data)
	case models.FrameEditMessage:
		m.handleEditMessage(key, data)
	case models.FrameDeleteMessage:
		m.handleDeleteMessage(key, data)
	case models.FrameTyping:
		m.handleTyping(data)
	case models.FrameOnlineStatus:
		m.handleOnlineStatus(data)
	default:
		log.Printf("📨 Ignoring frame with unknown type %q", env.Type)
	}
}

func (m *Manager) handleHistory(key models.ConversationKey, data []byte) {
	var frame HistoryFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		log.Printf("⚠️ Failed to parse message_history: %v", err)
		return
	}
	m.messages.LoadMessages(key, frame.Messages)
	log.Printf("📨 Loaded %d messages into %s", len(frame.Messages), key)
}

func (m *Manager) handleChatMessage(key models.ConversationKey, data []byte) {
	msg, err := decodeChatMessage(data)
	if err != nil {
		log.Printf("⚠️ Failed to parse chat_message: %v", err)
		return
	}
	if m.messages.Contains(key, msg.ID) {
		log.Printf("📨 Duplicate chat_message %s ignored", msg.ID)
		return
	}
	m.messages.AddMessage(key, msg)
}

func (m *Manager) handleEditMessage(key models.ConversationKey, data []byte) {
	var frame EditFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		log.Printf("⚠️ Failed to parse edit_message: %v", err)
		return
	}
	if !m.messages.EditMessage(key, frame.ID, frame.Patch()) {
		log.Printf("📨 edit_message for unknown message %s ignored", frame.ID)
	}
}

func (m *Manager) handleDeleteMessage(key models.ConversationKey, data []byte) {
	var frame DeleteFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		log.Printf("⚠️ Failed to parse delete_message: %v", err)
		return
	}
	if !m.messages.DeleteMessage(key, frame.TargetID()) {
		log.Printf("📨 delete_message for unknown message %s ignored", frame.TargetID())
	}
}

func (m *Manager) handleTyping(data []byte) {
	var frame TypingFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		log.Printf("⚠️ Failed to parse typing: %v", err)
		return
	}
	if frame.User.IsZero() {
		return
	}
	m.presence.SetTyping(frame.User, frame.IsTyping)
}

func (m *Manager) handleOnlineStatus(data []byte) {
	var frame OnlineStatusFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		log.Printf("⚠️ Failed to parse online_status: %v", err)
		return
	}
	personal, err := frame.PersonalOnline()
	if err != nil {
		log.Printf("⚠️ %v", err)
		return
	}
	m.presence.SetOnlineStatus(frame.GroupOnlineUsers, personal)
}
