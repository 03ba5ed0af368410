package chat

import (
	"context"
	"fmt"

	"aitherapist/core"

	"google.golang.org/genai"
)

const defaultModel = "gemini-2.5-flash"

// Config selects Gemini through either the public API (APIKey) or Vertex AI
// (Project and Location).
type Config struct {
	APIKey   string `json:"api_key,omitempty"`
	Project  string `json:"project,omitempty"`
	Location string `json:"location,omitempty"`
	Model    string `json:"model"`
	BaseURL  string `json:"base_url,omitempty"` // Overrides the service endpoint.
}

func (c Config) backend() genai.Backend {
	if c.APIKey == "" && c.Project != "" {
		return genai.BackendVertexAI
	}
	return genai.BackendGeminiAPI
}

// GeminiChatService answers turns with GenerateContent. The system prompt
// travels as the request's system instruction.
type GeminiChatService struct {
	client *genai.Client
	config Config
	logger *core.Logger
}

func NewGeminiChatService(ctx context.Context, config Config, logger *core.Logger) (*GeminiChatService, error) {
	if config.Model == "" {
		config.Model = defaultModel
	}
	if logger == nil {
		logger = core.GetLogger()
	}

	clientConfig := &genai.ClientConfig{
		APIKey:   config.APIKey,
		Project:  config.Project,
		Location: config.Location,
		Backend:  config.backend(),
	}
	if config.BaseURL != "" {
		clientConfig.HTTPOptions = genai.HTTPOptions{BaseURL: config.BaseURL}
	}
	client, err := genai.NewClient(ctx, clientConfig)
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}

	return &GeminiChatService{
		client: client,
		config: config,
		logger: logger.With(map[string]interface{}{"component": "gemini", "model": config.Model}),
	}, nil
}

func (s *GeminiChatService) Name() string {
	return "gemini"
}

// CheckHealth fetches the configured model's metadata.
func (s *GeminiChatService) CheckHealth(ctx context.Context) error {
	if _, err := s.client.Models.Get(ctx, s.config.Model, nil); err != nil {
		return fmt.Errorf("gemini health: %w: %w", core.ErrBackendUnreachable, err)
	}
	return nil
}

func (s *GeminiChatService) Chat(ctx context.Context, request core.ChatRequest) (string, error) {
	var system *genai.Content
	contents := make([]*genai.Content, 0, len(request.Messages))
	for _, msg := range request.Messages {
		switch msg.Role {
		case core.ChatRoleSystem:
			system = genai.NewContentFromText(msg.Content, genai.RoleUser)
		case core.ChatRoleAssistant:
			contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleUser))
		}
	}

	res, err := s.client.Models.GenerateContent(ctx, s.config.Model, contents, &genai.GenerateContentConfig{
		SystemInstruction: system,
	})
	if err != nil {
		if ctx.Err() != nil {
			return "", fmt.Errorf("gemini chat: %w", core.ClassifyTransportError(ctx.Err()))
		}
		return "", fmt.Errorf("gemini chat: %w: %w", core.ErrNetworkFailure, err)
	}

	text := res.Text()
	if text == "" {
		s.logger.Warn("generation carried no text", "candidates", len(res.Candidates))
	}
	return text, nil
}
