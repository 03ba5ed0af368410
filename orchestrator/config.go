package orchestrator

import "aitherapist/core"

type Config struct {
	Language            core.Language `json:"language"`              // Language the session starts in.
	DiscardStaleReplies bool          `json:"discard_stale_replies"` // Drop replies that arrive after a language switch instead of appending them to the new conversation.
	SubscriberBuffer    int           `json:"subscriber_buffer"`     // Per-subscriber event buffer; events to a full subscriber are dropped.
	IntentBuffer        int           `json:"intent_buffer"`
	SessionID           string        `json:"-"` // Generated when empty.
}

func DefaultConfig() Config {
	return Config{
		Language:         core.LanguageEnglish,
		SubscriberBuffer: 64,
		IntentBuffer:     32,
	}
}
