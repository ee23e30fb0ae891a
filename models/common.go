package models

// ConversationKind partitions chats into one-to-one and group conversations.
type ConversationKind string

const (
	KindPersonal ConversationKind = "personal"
	KindGroup    ConversationKind = "group"
)

// MessageType is the message_type discriminator of a chat message.
type MessageType string

const (
	MessageTypeText     MessageType = "text"
	MessageTypeFile     MessageType = "file"
	MessageTypeLocation MessageType = "location"
)

// Frame type discriminators of the real-time protocol.
const (
	FrameMessageHistory = "message_history"
	FrameChatMessage    = "chat_message"
	FrameEditMessage    = "edit_message"
	FrameDeleteMessage  = "delete_message"
	FrameTyping         = "typing"
	FrameOnlineStatus   = "online_status"
	FrameSendMessage    = "send_message"
)
