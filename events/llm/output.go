package llm

import "aitherapist/core"

type ChatRequestedEvent struct {
	Utterance string        `json:"utterance"`
	Language  core.Language `json:"language"`
	Backend   string        `json:"backend"`
}

func (e *ChatRequestedEvent) GetId() string {
	return "llm.chat_requested"
}

// ChatCompletedEvent reports how a round trip resolved. Error is empty unless
// the outcome is a fallback caused by a failure.
type ChatCompletedEvent struct {
	Outcome string `json:"outcome"`
	Error   string `json:"error,omitempty"`
}

func (e *ChatCompletedEvent) GetId() string {
	return "llm.chat_completed"
}
