package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"aitherapist/core"

	"github.com/sashabaranov/go-openai"
)

// Config holds the configuration for an OpenAI-compatible backend. Ollama
// itself serves this protocol under /v1, so BaseURL may point there too.
type Config struct {
	APIKey      string  `json:"api_key"`
	BaseURL     string  `json:"base_url"`
	Model       string  `json:"model"`
	MaxTokens   int     `json:"max_tokens,omitempty"`
	Temperature float32 `json:"temperature,omitempty"`
}

// OpenAIChatService implements the chat backend on top of go-openai.
type OpenAIChatService struct {
	client *openai.Client
	config Config
	logger *core.Logger
}

// NewOpenAIChatService creates a new instance of OpenAIChatService
func NewOpenAIChatService(config Config, logger *core.Logger) *OpenAIChatService {
	if logger == nil {
		logger = core.GetLogger()
	}
	clientConfig := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
	}
	return &OpenAIChatService{
		client: openai.NewClientWithConfig(clientConfig),
		config: config,
		logger: logger.With(map[string]interface{}{"component": "openai", "model": config.Model}),
	}
}

func (s *OpenAIChatService) Name() string {
	return "openai"
}

// CheckHealth lists models, the cheapest authenticated call the API offers.
func (s *OpenAIChatService) CheckHealth(ctx context.Context) error {
	if _, err := s.client.ListModels(ctx); err != nil {
		return fmt.Errorf("openai health: %w: %w", core.ErrBackendUnreachable, err)
	}
	return nil
}

// Chat runs a single non-streaming completion. No choices, or an empty first
// choice, yields ("", nil).
func (s *OpenAIChatService) Chat(ctx context.Context, request core.ChatRequest) (string, error) {
	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       s.config.Model,
		Messages:    s.convertMessages(request.Messages),
		MaxTokens:   s.config.MaxTokens,
		Temperature: s.config.Temperature,
		Stream:      false,
	})
	if err != nil {
		return "", fmt.Errorf("openai chat: %w", s.classify(err))
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		s.logger.Warn("completion carried no content", "choices", len(resp.Choices))
		return "", nil
	}
	return resp.Choices[0].Message.Content, nil
}

func (s *OpenAIChatService) classify(err error) error {
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.As(err, &apiErr):
		return fmt.Errorf("%w: status %d: %s", core.ErrNetworkFailure, apiErr.HTTPStatusCode, apiErr.Message)
	case errors.As(err, &reqErr):
		return fmt.Errorf("%w: status %d: %w", core.ErrNetworkFailure, reqErr.HTTPStatusCode, err)
	case errors.As(err, &syntaxErr), errors.As(err, &typeErr):
		// go-openai surfaces decode failures of 2xx bodies unwrapped
		return fmt.Errorf("%w: %w", core.ErrMalformedReply, err)
	default:
		return core.ClassifyTransportError(err)
	}
}

// convertMessages converts core messages to OpenAI messages
func (s *OpenAIChatService) convertMessages(messages []core.ChatMessage) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, msg := range messages {
		out = append(out, openai.ChatCompletionMessage{
			Role:    s.convertRole(msg.Role),
			Content: msg.Content,
		})
	}
	return out
}

// convertRole converts core role to OpenAI role
func (s *OpenAIChatService) convertRole(role core.ChatRole) string {
	switch role {
	case core.ChatRoleSystem:
		return openai.ChatMessageRoleSystem
	case core.ChatRoleAssistant:
		return openai.ChatMessageRoleAssistant
	default:
		return openai.ChatMessageRoleUser
	}
}
