package main

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"

	"aitherapist/core"
	"aitherapist/factories"
	"aitherapist/transports/websocket"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(".env.local"); err != nil {
		core.GetLogger().With(map[string]any{"error": err}).Warn("No .env.local file found or failed to load")
	}
	if level, err := core.ParseLevel(getEnv("LOG_LEVEL", "info")); err == nil {
		core.SetLogger(core.NewDevelopmentLogger(os.Stdout, level))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	settings := loadSettingsFromEnv()
	if err := run(ctx, settings); err != nil {
		core.GetLogger().With(map[string]any{"error": err}).Error("session server stopped")
		os.Exit(1)
	}
	core.GetLogger().Info("Shutting down...")
}

func run(ctx context.Context, settings factories.SettingsConfig) error {
	sessionID := uuid.NewString()
	settings.Session.Orchestrator.SessionID = sessionID

	logger := core.GetLogger().With(map[string]any{"session_id": sessionID})
	if logDir := getEnv("LOG_DIR", ""); logDir != "" {
		writer, err := core.NewSessionLogWriter(logDir, core.SessionMetadata{
			SessionID: sessionID,
			Language:  settings.Session.Orchestrator.Language,
		})
		if err != nil {
			logger.With(map[string]any{"error": err}).Warn("session log disabled")
		} else {
			defer writer.Close()
			logger = core.NewSessionLogger(logger, writer)
		}
	}

	hub := websocket.NewHub(settings.Server, logger)
	session, err := factories.BuildSession(settings, hub, logger)
	if err != nil {
		return err
	}
	hub.Bind(session.Orchestrator)
	server := websocket.NewServer(settings.Server.Addr, hub, logger)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		session.Orchestrator.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		hub.Run(ctx)
	}()
	if session.Proxy != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			session.Proxy.Run(ctx)
		}()
	}

	err = server.Run(ctx)
	cancel()
	wg.Wait()
	return err
}

// loadSettingsFromEnv loads SettingsConfig from SETTINGS_JSON_B64 or a file,
// then applies env overrides and API keys.
func loadSettingsFromEnv() factories.SettingsConfig {
	var settings factories.SettingsConfig
	var err error

	if b64 := os.Getenv("SETTINGS_JSON_B64"); b64 != "" {
		settings, err = factories.SettingsConfigFromBase64(b64)
		if err != nil {
			core.GetLogger().With(map[string]any{"error": err}).Error("failed to load SETTINGS_JSON_B64")
			settings = factories.DefaultSettingsConfig()
		} else {
			core.GetLogger().Info("loaded settings from SETTINGS_JSON_B64")
		}
	} else {
		settingsPath := getEnv("SETTINGS_PATH", "./settings.json")
		settings, err = factories.SettingsConfigFromFile(settingsPath)
		if err != nil {
			core.GetLogger().With(map[string]any{"path": settingsPath, "error": err}).Warn("failed to load settings, using defaults")
			settings = factories.DefaultSettingsConfig()
		}
	}

	settings.ApplyOverrides(factories.Overrides{
		OllamaURL:   getEnv("OLLAMA_URL", ""),
		OllamaModel: getEnv("OLLAMA_MODEL", ""),
		ListenAddr:  getEnv("LISTEN_ADDR", ""),
		TTSProxyURL: getEnv("TTS_PROXY_URL", ""),
	})
	if buf := getEnvAsInt("SUBSCRIBER_BUFFER", 0); buf > 0 {
		settings.Session.Orchestrator.SubscriberBuffer = buf
	}
	settings.InjectAPIKeys(factories.APIKeys{
		OpenAI:     getEnv("OPENAI_API_KEY", ""),
		Groq:       getEnv("GROQ_API_KEY", ""),
		Together:   getEnv("TOGETHER_API_KEY", ""),
		OpenRouter: getEnv("OPENROUTER_API_KEY", ""),
		Gemini:     getEnv("GEMINI_API_KEY", ""),
	})
	return settings
}

// getEnv gets an environment variable with a default fallback
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt gets an environment variable as integer with a default fallback
func getEnvAsInt(key string, defaultValue int) int {
	valStr := getEnv(key, "")
	if valStr == "" {
		return defaultValue
	}
	val, err := strconv.Atoi(valStr)
	if err != nil {
		return defaultValue
	}
	return val
}
