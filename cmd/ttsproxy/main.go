package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"aitherapist/core"
	googletts "aitherapist/services/google/tts"
	"aitherapist/transports/audioproxy"

	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(".env.local"); err != nil {
		core.GetLogger().With(map[string]any{"error": err}).Warn("No .env.local file found or failed to load")
	}
	logger := core.GetLogger().With(map[string]any{"component": "ttsproxy"})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ttsConfig := googletts.DefaultConfig()
	ttsConfig.CredentialsFile = getEnv("GOOGLE_APPLICATION_CREDENTIALS", "")
	ttsConfig.LanguageCode = getEnv("TTS_LANGUAGE_CODE", ttsConfig.LanguageCode)
	ttsConfig.VoiceName = getEnv("TTS_VOICE_NAME", ttsConfig.VoiceName)
	ttsConfig.Gender = getEnv("TTS_VOICE_GENDER", ttsConfig.Gender)

	synth, err := googletts.NewGoogleTTS(ctx, ttsConfig, logger)
	if err != nil {
		logger.With(map[string]any{"error": err}).Error("failed to create Google TTS client")
		os.Exit(1)
	}
	defer synth.Close()

	proxyConfig := audioproxy.DefaultConfig()
	proxyConfig.Addr = getEnv("LISTEN_ADDR", proxyConfig.Addr)
	proxyConfig.AllowOrigin = getEnv("CORS_ALLOW_ORIGIN", proxyConfig.AllowOrigin)

	if err := audioproxy.NewServer(proxyConfig, synth, logger).Run(ctx); err != nil {
		logger.With(map[string]any{"error": err}).Error("audio proxy stopped")
		os.Exit(1)
	}
	logger.Info("Shutting down...")
}

// getEnv gets an environment variable with a default fallback
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
