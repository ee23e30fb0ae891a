package socket_client_service

import (
	"bytes"
	"encoding/json"
	"fmt"

	"chat-sync-client/models"
)

// frameEnvelope carries only the discriminator of an inbound frame.
type frameEnvelope struct {
	Type string `json:"type"`
}

// HistoryFrame message_history
type HistoryFrame struct {
	Messages []models.Message `json:"messages"`
}

// chatMessageFrame chat_message; some server revisions nest the message
// under "message", others send the message fields at the top level.
type chatMessageFrame struct {
	Message *models.Message `json:"message"`
}

// EditFrame edit_message
type EditFrame struct {
	ID                models.ID         `json:"id"`
	Content           string            `json:"content"`
	IsEdited          bool              `json:"is_edited"`
	Sender            *models.ID        `json:"sender"`
	SenderDisplayName *string           `json:"sender_username"`
	SentAt            *models.Timestamp `json:"created_at"`
}

// Patch overwrites content and the edited flag; sender and timestamp are
// overwritten when the frame carries them. An unreadable timestamp counts as
// absent.
func (f *EditFrame) Patch() models.MessagePatch {
	content := f.Content
	edited := f.IsEdited
	sentAt := f.SentAt
	if sentAt != nil && sentAt.IsZero() {
		sentAt = nil
	}
	return models.MessagePatch{
		Content:           &content,
		IsEdited:          &edited,
		Sender:            f.Sender,
		SenderDisplayName: f.SenderDisplayName,
		SentAt:            sentAt,
	}
}

// DeleteFrame delete_message
type DeleteFrame struct {
	ID        models.ID `json:"id"`
	MessageID models.ID `json:"message_id"`
}

func (f *DeleteFrame) TargetID() models.ID {
	if !f.ID.IsZero() {
		return f.ID
	}
	return f.MessageID
}

// TypingFrame typing (inbound)
type TypingFrame struct {
	User     models.ID `json:"user"`
	IsTyping bool      `json:"is_typing"`
}

// OnlineStatusFrame online_status
type OnlineStatusFrame struct {
	GroupOnlineUsers    []models.ID     `json:"group_online_users"`
	PersonalOnlineUsers json.RawMessage `json:"personal_online_users"`
}

// PersonalOnline decodes personal_online_users, which is either an object of
// user id to flag or a plain list of online user ids.
func (f *OnlineStatusFrame) PersonalOnline() (map[string]bool, error) {
	raw := bytes.TrimSpace(f.PersonalOnlineUsers)
	out := make(map[string]bool)
	if len(raw) == 0 || string(raw) == "null" {
		return out, nil
	}
	switch raw[0] {
	case '{':
		if err := json.Unmarshal(raw, &out); err != nil {
			return nil, fmt.Errorf("invalid personal_online_users: %w", err)
		}
	case '[':
		var ids []models.ID
		if err := json.Unmarshal(raw, &ids); err != nil {
			return nil, fmt.Errorf("invalid personal_online_users: %w", err)
		}
		for _, id := range ids {
			out[id.String()] = true
		}
	default:
		return nil, fmt.Errorf("invalid personal_online_users: %s", raw)
	}
	return out, nil
}

func decodeChatMessage(data []byte) (models.Message, error) {
	var nested chatMessageFrame
	if err := json.Unmarshal(data, &nested); err == nil && nested.Message != nil {
		return *nested.Message, nil
	}
	var msg models.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return models.Message{}, err
	}
	return msg, nil
}
