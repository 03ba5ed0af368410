package core

import (
	"time"

	"github.com/google/uuid"
)

type MessageRole string

const (
	MessageRoleUser      MessageRole = "user"
	MessageRoleAssistant MessageRole = "assistant"
)

// Message is a single conversational turn. It is never mutated after creation.
type Message struct {
	ID        string      `json:"id"`
	Content   string      `json:"content"`
	Role      MessageRole `json:"role"`
	Timestamp time.Time   `json:"timestamp"`
}

// IsUser reports whether the turn was produced by the user.
func (m Message) IsUser() bool {
	return m.Role == MessageRoleUser
}

// NewMessage stamps a turn with a time-ordered identifier. UUIDv7 values from
// a single process sort in creation order.
func NewMessage(role MessageRole, content string, now time.Time) Message {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return Message{
		ID:        id.String(),
		Content:   content,
		Role:      role,
		Timestamp: now,
	}
}
