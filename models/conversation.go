package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// ID is a server identifier. The server sends ids as JSON numbers, some older
// endpoints as strings; both decode into ID. Digit-only ids are written back
// as numbers and the empty ID is written as null.
type ID string

func (id ID) IsZero() bool {
	return id == ""
}

func (id ID) String() string {
	return string(id)
}

func (id ID) MarshalJSON() ([]byte, error) {
	if id == "" {
		return []byte("null"), nil
	}
	if n, err := strconv.ParseInt(string(id), 10, 64); err == nil && strconv.FormatInt(n, 10) == string(id) {
		return []byte(id), nil
	}
	return json.Marshal(string(id))
}

func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*id = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("invalid id: %w", err)
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("invalid id: %w", err)
	}
	*id = ID(n.String())
	return nil
}

// ConversationKey identifies one chat partition. It is fixed for the lifetime
// of an open chat screen.
type ConversationKey struct {
	ID   ID               `json:"id"`
	Kind ConversationKind `json:"kind"`
}

func NewConversationKey(kind ConversationKind, id ID) ConversationKey {
	return ConversationKey{ID: id, Kind: kind}
}

// ParseConversationKey parses the "<kind>:<id>" form produced by String.
func ParseConversationKey(s string) (ConversationKey, error) {
	kind, id, ok := strings.Cut(s, ":")
	if !ok {
		return ConversationKey{}, fmt.Errorf("invalid conversation key %q", s)
	}
	key := ConversationKey{ID: ID(id), Kind: ConversationKind(kind)}
	if err := key.Validate(); err != nil {
		return ConversationKey{}, err
	}
	return key, nil
}

func (k ConversationKey) String() string {
	return string(k.Kind) + ":" + string(k.ID)
}

func (k ConversationKey) IsGroup() bool {
	return k.Kind == KindGroup
}

func (k ConversationKey) Validate() error {
	if k.ID.IsZero() {
		return fmt.Errorf("conversation id is empty")
	}
	if k.Kind != KindPersonal && k.Kind != KindGroup {
		return fmt.Errorf("unknown conversation kind %q", k.Kind)
	}
	return nil
}

// Route returns the group_id / receiver_id pair for outbound frames. Exactly
// one of them is non-empty.
func (k ConversationKey) Route() (groupID, receiverID ID) {
	if k.IsGroup() {
		return k.ID, ""
	}
	return "", k.ID
}
