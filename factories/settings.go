package factories

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"

	"aitherapist/handlers/tts"
	"aitherapist/transports/websocket"
)

// SettingsConfig is the top-level config loaded from settings.json.
type SettingsConfig struct {
	// Backend selects and configures the chat backend.
	Backend BackendFactoryConfig `json:"backend"`
	// Speech selects how recognition and synthesis are provided.
	Speech SpeechFactoryConfig `json:"speech"`
	// Session holds orchestrator and handler settings.
	Session SessionConfig `json:"session"`
	// Server configures the websocket session server.
	Server websocket.Config `json:"server"`
}

// DefaultSettingsConfig returns a SettingsConfig pre-filled with defaults:
// local Ollama, platform speech, English.
func DefaultSettingsConfig() SettingsConfig {
	return SettingsConfig{
		Backend: DefaultBackendFactoryConfig(),
		Speech:  DefaultSpeechFactoryConfig(),
		Session: DefaultSessionConfig(),
		Server:  websocket.DefaultConfig(),
	}
}

// SettingsConfigFromJSON parses a JSON blob on top of DefaultSettingsConfig.
// A "backend" object replaces the default provider selection rather than
// merging with it, so it must name exactly one provider.
func SettingsConfigFromJSON(data []byte) (SettingsConfig, error) {
	var raw struct {
		Backend json.RawMessage `json:"backend,omitempty"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return SettingsConfig{}, fmt.Errorf("settings: %w", err)
	}

	cfg := DefaultSettingsConfig()
	if len(raw.Backend) > 0 {
		cfg.Backend = BackendFactoryConfig{}
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return SettingsConfig{}, fmt.Errorf("settings: %w", err)
	}
	return cfg, nil
}

// SettingsConfigFromFile reads and parses a SettingsConfig from a JSON file.
func SettingsConfigFromFile(path string) (SettingsConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return DefaultSettingsConfig(), fmt.Errorf("settings: read %q: %w", path, err)
	}
	return SettingsConfigFromJSON(data)
}

// SettingsConfigFromBase64 decodes a base64 JSON blob, as passed through
// SETTINGS_JSON_B64.
func SettingsConfigFromBase64(encoded string) (SettingsConfig, error) {
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return SettingsConfig{}, fmt.Errorf("settings: decode base64: %w", err)
	}
	return SettingsConfigFromJSON(data)
}

// InjectAPIKeys applies credentials to the configured backend. Call this
// after loading from JSON so secrets are not stored in config files.
func (c *SettingsConfig) InjectAPIKeys(keys APIKeys) {
	injectBackendKeys(&c.Backend, keys)
}

// Overrides are deployment values that take precedence over settings.json
// when non-empty.
type Overrides struct {
	OllamaURL   string
	OllamaModel string
	ListenAddr  string
	TTSProxyURL string
}

func (c *SettingsConfig) ApplyOverrides(o Overrides) {
	if ollama := c.Backend.OllamaConfig; ollama != nil {
		if o.OllamaURL != "" {
			ollama.BaseURL = o.OllamaURL
		}
		if o.OllamaModel != "" {
			ollama.Model = o.OllamaModel
		}
	}
	if o.ListenAddr != "" {
		c.Server.Addr = o.ListenAddr
	}
	if o.TTSProxyURL != "" {
		if c.Speech.Proxy == nil {
			proxy := tts.DefaultProxyConfig()
			c.Speech.Proxy = &proxy
		}
		c.Speech.Proxy.URL = o.TTSProxyURL
	}
}
