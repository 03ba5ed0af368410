package chat

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"aitherapist/core"

	"github.com/bytedance/sonic"
)

const (
	defaultBaseURL = "http://localhost:11434"
	defaultModel   = "llama3.1:8b"

	maxResponseBytes = 4 << 20
)

// Config holds the configuration for a native Ollama backend.
type Config struct {
	BaseURL string `json:"base_url"`
	Model   string `json:"model"`
}

// OllamaChatService talks to Ollama's native /api endpoints. Deadlines come
// from the caller's context; the service itself never sets one.
type OllamaChatService struct {
	config Config
	client *http.Client
	logger *core.Logger
}

type (
	chatRequest struct {
		Model    string             `json:"model"`
		Messages []core.ChatMessage `json:"messages"`
		Stream   bool               `json:"stream"`
	}

	chatResponse struct {
		Model   string        `json:"model"`
		Message *replyMessage `json:"message,omitempty"`
		Done    bool          `json:"done"`
		Error   string        `json:"error,omitempty"`
	}

	replyMessage struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	}
)

// NewOllamaChatService creates a service, filling in the local default
// endpoint and model when unset.
func NewOllamaChatService(config Config, logger *core.Logger) *OllamaChatService {
	if config.BaseURL == "" {
		config.BaseURL = defaultBaseURL
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")
	if config.Model == "" {
		config.Model = defaultModel
	}
	if logger == nil {
		logger = core.GetLogger()
	}
	return &OllamaChatService{
		config: config,
		client: &http.Client{},
		logger: logger.With(map[string]interface{}{"component": "ollama", "model": config.Model}),
	}
}

// WithHTTPClient swaps the underlying client. Returns the service to allow chaining.
func (s *OllamaChatService) WithHTTPClient(client *http.Client) *OllamaChatService {
	s.client = client
	return s
}

func (s *OllamaChatService) Name() string {
	return "ollama"
}

// CheckHealth probes GET /api/tags. Any 2xx counts as healthy.
func (s *OllamaChatService) CheckHealth(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.config.BaseURL+"/api/tags", nil)
	if err != nil {
		return fmt.Errorf("ollama health: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("ollama health: %w: %w", core.ErrBackendUnreachable, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("ollama health: %w: status %d", core.ErrBackendUnreachable, resp.StatusCode)
	}
	return nil
}

// Chat posts a non-streaming /api/chat request. A well-formed response with
// no message content yields ("", nil); callers decide what to show instead.
func (s *OllamaChatService) Chat(ctx context.Context, request core.ChatRequest) (string, error) {
	body, err := sonic.Marshal(chatRequest{
		Model:    s.config.Model,
		Messages: request.Messages,
		Stream:   false,
	})
	if err != nil {
		return "", fmt.Errorf("ollama chat: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.BaseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("ollama chat: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("ollama chat: %w", core.ClassifyTransportError(err))
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", fmt.Errorf("ollama chat: read response: %w", core.ClassifyTransportError(err))
	}

	ok := resp.StatusCode >= 200 && resp.StatusCode < 300

	// Error statuses are read like any other reply: a JSON error body such as
	// {"error":"model not found"} has no content and yields ("", nil).
	var parsed chatResponse
	if err := sonic.Unmarshal(data, &parsed); err != nil {
		if !ok {
			return "", fmt.Errorf("ollama chat: %w: status %d: %s", core.ErrNetworkFailure, resp.StatusCode, strings.TrimSpace(string(data)))
		}
		return "", fmt.Errorf("ollama chat: %w: %w", core.ErrMalformedReply, err)
	}
	if parsed.Message == nil || parsed.Message.Content == "" {
		s.logger.Warn("chat response carried no message content", "status", resp.StatusCode, "done", parsed.Done, "error", parsed.Error)
		return "", nil
	}
	return parsed.Message.Content, nil
}
