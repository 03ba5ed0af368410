package conversation

import (
	"time"

	"aitherapist/core"
)

// Log is the append-only sequence of turns for the current conversation.
type Log struct {
	messages []core.Message
	now      func() time.Time
}

func NewLog() *Log {
	return &Log{now: time.Now}
}

// Append creates and stores a new turn.
func (l *Log) Append(role core.MessageRole, content string) core.Message {
	msg := core.NewMessage(role, content, l.now())
	l.messages = append(l.messages, msg)
	return msg
}

// Reset discards every turn and seeds the log with a single assistant greeting.
func (l *Log) Reset(greeting string) core.Message {
	l.messages = nil
	return l.Append(core.MessageRoleAssistant, greeting)
}

// Messages returns a copy of the turns in creation order.
func (l *Log) Messages() []core.Message {
	out := make([]core.Message, len(l.messages))
	copy(out, l.messages)
	return out
}

func (l *Log) Len() int {
	return len(l.messages)
}

// Find returns the turn with the given id.
func (l *Log) Find(id string) (core.Message, bool) {
	for _, m := range l.messages {
		if m.ID == id {
			return m, true
		}
	}
	return core.Message{}, false
}
