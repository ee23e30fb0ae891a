package models

// Attachment is the metadata of one file carried by a message. Messages
// received from the server reference files by URL; frames built locally
// carry the bytes inline in the frame's files list instead.
type Attachment struct {
	FileName string  `json:"file_name"`
	FileType string  `json:"file_type"`
	FileURL  *string `json:"file_url"`
}

// Message is one entry of a conversation log.
type Message struct {
	ID                ID           `json:"id"`
	ClientKey         string       `json:"client_key,omitempty"` // local render key for messages without an id
	Sender            ID           `json:"sender"`
	SenderDisplayName string       `json:"sender_username,omitempty"`
	Content           string       `json:"content"`
	MessageType       MessageType  `json:"message_type,omitempty"`
	Attachments       []Attachment `json:"attachments,omitempty"`
	Latitude          *float64     `json:"latitude,omitempty"`
	Longitude         *float64     `json:"longitude,omitempty"`
	ParentID          ID           `json:"parent_id,omitempty"`
	IsDeleted         bool         `json:"is_deleted"`
	IsEdited          bool         `json:"is_edited"`
	IsRead            bool         `json:"is_read"`
	SentAt            Timestamp    `json:"created_at"`
}

// Key returns the identity used for list rendering.
func (m Message) Key() string {
	if !m.ID.IsZero() {
		return m.ID.String()
	}
	return m.ClientKey
}

// Clone returns a copy that shares no slices or pointers with m.
func (m Message) Clone() Message {
	out := m
	if m.Attachments != nil {
		out.Attachments = make([]Attachment, len(m.Attachments))
		for i, a := range m.Attachments {
			out.Attachments[i] = a
			if a.FileURL != nil {
				u := *a.FileURL
				out.Attachments[i].FileURL = &u
			}
		}
	}
	if m.Latitude != nil {
		lat := *m.Latitude
		out.Latitude = &lat
	}
	if m.Longitude != nil {
		lon := *m.Longitude
		out.Longitude = &lon
	}
	return out
}

// MessagePatch overwrites the non-nil fields of a stored message.
type MessagePatch struct {
	Content           *string
	IsEdited          *bool
	IsDeleted         *bool
	Sender            *ID
	SenderDisplayName *string
	SentAt            *Timestamp
}

// Apply writes the patch into m.
func (p MessagePatch) Apply(m *Message) {
	if p.Content != nil {
		m.Content = *p.Content
	}
	if p.IsEdited != nil {
		m.IsEdited = *p.IsEdited
	}
	if p.IsDeleted != nil {
		m.IsDeleted = *p.IsDeleted
	}
	if p.Sender != nil {
		m.Sender = *p.Sender
	}
	if p.SenderDisplayName != nil {
		m.SenderDisplayName = *p.SenderDisplayName
	}
	if p.SentAt != nil {
		m.SentAt = *p.SentAt
	}
}
