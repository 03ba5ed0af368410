package conversation

import "aitherapist/core"

type ConversationConfig struct {
	RequestTimeout core.Duration `json:"request_timeout"` // Upper bound for one chat round trip. On expiry the turn resolves to the localized failure text.
}

// DefaultConfig returns a ConversationConfig with a 30 second request bound.
func DefaultConfig() ConversationConfig {
	return ConversationConfig{
		RequestTimeout: core.Seconds(30),
	}
}
