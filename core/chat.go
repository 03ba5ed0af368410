package core

type ChatRole string

const (
	ChatRoleSystem    ChatRole = "system"
	ChatRoleUser      ChatRole = "user"
	ChatRoleAssistant ChatRole = "assistant"
)

// ChatMessage is one entry of the conversation sent to the chat backend.
type ChatMessage struct {
	Role    ChatRole `json:"role"`
	Content string   `json:"content"`
}

// ChatRequest is the backend-agnostic form of a single chat round trip.
type ChatRequest struct {
	Messages []ChatMessage
}

// NewTurnRequest frames one user utterance behind the language persona.
// Only the latest utterance is sent; earlier turns are not replayed.
func NewTurnRequest(profile LanguageProfile, utterance string) ChatRequest {
	return ChatRequest{
		Messages: []ChatMessage{
			{Role: ChatRoleSystem, Content: profile.SystemPrompt},
			{Role: ChatRoleUser, Content: utterance},
		},
	}
}
