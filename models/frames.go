package models

// TypingFrame is the client-originated typing signal.
type TypingFrame struct {
	Type       string `json:"type"`
	IsTyping   bool   `json:"is_typing"`
	GroupID    ID     `json:"group_id"`
	ReceiverID ID     `json:"receiver_id"`
}

// SendMessageFrame is the client-originated chat message.
type SendMessageFrame struct {
	Type        string       `json:"type"`
	Content     string       `json:"content"`
	MessageType MessageType  `json:"message_type,omitempty"`
	GroupID     ID           `json:"group_id"`
	ReceiverID  ID           `json:"receiver_id"`
	ParentID    ID           `json:"parent_id"`
	Latitude    *float64     `json:"latitude,omitempty"`
	Longitude   *float64     `json:"longitude,omitempty"`
	Files       []string     `json:"files,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

func NewTypingFrame(key ConversationKey, isTyping bool) *TypingFrame {
	groupID, receiverID := key.Route()
	return &TypingFrame{
		Type:       FrameTyping,
		IsTyping:   isTyping,
		GroupID:    groupID,
		ReceiverID: receiverID,
	}
}

// NewTextFrame builds a plain text send_message frame. Text frames carry no
// message_type; the server defaults it.
func NewTextFrame(key ConversationKey, content string, parentID ID) *SendMessageFrame {
	groupID, receiverID := key.Route()
	return &SendMessageFrame{
		Type:       FrameSendMessage,
		Content:    content,
		GroupID:    groupID,
		ReceiverID: receiverID,
		ParentID:   parentID,
	}
}

func NewFileFrame(key ConversationKey, content string, parentID ID, files []string, attachments []Attachment) *SendMessageFrame {
	frame := NewTextFrame(key, content, parentID)
	frame.MessageType = MessageTypeFile
	frame.Files = files
	frame.Attachments = attachments
	return frame
}

func NewLocationFrame(key ConversationKey, content string, parentID ID, latitude, longitude float64) *SendMessageFrame {
	frame := NewTextFrame(key, content, parentID)
	frame.MessageType = MessageTypeLocation
	frame.Latitude = &latitude
	frame.Longitude = &longitude
	return frame
}
