package factories

import (
	"context"
	"errors"
	"fmt"

	"aitherapist/core"
	"aitherapist/handlers/availability"
	"aitherapist/handlers/conversation"
	geminichat "aitherapist/services/gemini/chat"
	ollamachat "aitherapist/services/ollama/chat"
	openaichat "aitherapist/services/openai/chat"
)

// Backend is a chat service that can also be probed for availability.
type Backend interface {
	conversation.ChatService
	availability.HealthChecker
}

// BackendFactoryConfig holds provider-specific configs for the chat backend.
// Set exactly one provider config; the rest should be left nil.
// The hosted providers speak the OpenAI protocol and share one service
// implementation with a different base URL.
type BackendFactoryConfig struct {
	OllamaConfig     *ollamachat.Config `json:"ollama,omitempty"`
	OpenAIConfig     *openaichat.Config `json:"openai,omitempty"`
	GroqConfig       *openaichat.Config `json:"groq,omitempty"`
	TogetherConfig   *openaichat.Config `json:"together,omitempty"`
	OpenRouterConfig *openaichat.Config `json:"openrouter,omitempty"`
	GeminiConfig     *geminichat.Config `json:"gemini,omitempty"`
}

const (
	groqBaseURL       = "https://api.groq.com/openai/v1"
	togetherBaseURL   = "https://api.together.xyz/v1"
	openrouterBaseURL = "https://openrouter.ai/api/v1"
)

// DefaultBackendFactoryConfig selects a local Ollama with its default model.
func DefaultBackendFactoryConfig() BackendFactoryConfig {
	return BackendFactoryConfig{OllamaConfig: &ollamachat.Config{}}
}

func (c BackendFactoryConfig) count() int {
	n := 0
	for _, set := range []bool{
		c.OllamaConfig != nil,
		c.OpenAIConfig != nil,
		c.GroqConfig != nil,
		c.TogetherConfig != nil,
		c.OpenRouterConfig != nil,
		c.GeminiConfig != nil,
	} {
		if set {
			n++
		}
	}
	return n
}

// BuildBackend constructs the chat backend. Exactly one provider config must
// be non-nil.
func BuildBackend(config BackendFactoryConfig, logger *core.Logger) (Backend, error) {
	switch n := config.count(); {
	case n == 0:
		return nil, errors.New("BackendFactoryConfig: no provider config specified")
	case n > 1:
		return nil, fmt.Errorf("BackendFactoryConfig: %d provider configs specified, want exactly one", n)
	}

	switch {
	case config.OllamaConfig != nil:
		return ollamachat.NewOllamaChatService(*config.OllamaConfig, logger), nil
	case config.OpenAIConfig != nil:
		return openaichat.NewOpenAIChatService(*config.OpenAIConfig, logger), nil
	case config.GroqConfig != nil:
		return buildOpenAICompatible(*config.GroqConfig, groqBaseURL, "llama-3.3-70b-versatile", logger), nil
	case config.TogetherConfig != nil:
		return buildOpenAICompatible(*config.TogetherConfig, togetherBaseURL, "meta-llama/Llama-3.3-70B-Instruct-Turbo", logger), nil
	case config.GeminiConfig != nil:
		return geminichat.NewGeminiChatService(context.Background(), *config.GeminiConfig, logger)
	default:
		return buildOpenAICompatible(*config.OpenRouterConfig, openrouterBaseURL, "openai/gpt-4o", logger), nil
	}
}

// buildOpenAICompatible fills in base URL and model when the config leaves
// them unset.
func buildOpenAICompatible(cfg openaichat.Config, defaultBaseURL, defaultModel string, logger *core.Logger) *openaichat.OpenAIChatService {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	return openaichat.NewOpenAIChatService(cfg, logger)
}

// APIKeys holds credentials for the hosted providers. Pass to
// SettingsConfig.InjectAPIKeys after loading so secrets stay out of files.
type APIKeys struct {
	OpenAI     string
	Groq       string
	Together   string
	OpenRouter string
	Gemini     string
}

func injectBackendKeys(cfg *BackendFactoryConfig, keys APIKeys) {
	if cfg.OpenAIConfig != nil && cfg.OpenAIConfig.APIKey == "" {
		cfg.OpenAIConfig.APIKey = keys.OpenAI
	}
	if cfg.GroqConfig != nil && cfg.GroqConfig.APIKey == "" {
		cfg.GroqConfig.APIKey = keys.Groq
	}
	if cfg.TogetherConfig != nil && cfg.TogetherConfig.APIKey == "" {
		cfg.TogetherConfig.APIKey = keys.Together
	}
	if cfg.OpenRouterConfig != nil && cfg.OpenRouterConfig.APIKey == "" {
		cfg.OpenRouterConfig.APIKey = keys.OpenRouter
	}
	if cfg.GeminiConfig != nil && cfg.GeminiConfig.APIKey == "" && cfg.GeminiConfig.Project == "" {
		cfg.GeminiConfig.APIKey = keys.Gemini
	}
}
