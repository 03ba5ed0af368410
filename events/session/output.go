package session

import "aitherapist/core"

type MessageAppendedEvent struct {
	Message core.Message `json:"message"`
}

func (e *MessageAppendedEvent) GetId() string {
	return "session.message_appended"
}

// ConversationResetEvent is emitted after a language switch re-seeds the log.
type ConversationResetEvent struct {
	Language core.Language `json:"language"`
	Greeting core.Message  `json:"greeting"`
}

func (e *ConversationResetEvent) GetId() string {
	return "session.conversation_reset"
}

type AvailabilityChangedEvent struct {
	Availability core.Availability `json:"availability"`
}

func (e *AvailabilityChangedEvent) GetId() string {
	return "session.availability_changed"
}

type BusyChangedEvent struct {
	Busy bool `json:"busy"`
}

func (e *BusyChangedEvent) GetId() string {
	return "session.busy_changed"
}

// ReplyDiscardedEvent reports a reply that arrived after the conversation it
// belonged to was reset.
type ReplyDiscardedEvent struct {
	Content string `json:"content"`
}

func (e *ReplyDiscardedEvent) GetId() string {
	return "session.reply_discarded"
}
