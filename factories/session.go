package factories

import (
	"fmt"

	"aitherapist/core"
	"aitherapist/handlers/availability"
	"aitherapist/handlers/conversation"
	"aitherapist/handlers/tts"
	"aitherapist/orchestrator"
)

// SessionConfig groups the handler-level settings of one session.
type SessionConfig struct {
	Orchestrator orchestrator.Config             `json:"orchestrator"`
	Conversation conversation.ConversationConfig `json:"conversation"`
	Availability availability.AvailabilityConfig `json:"availability"`
}

func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		Orchestrator: orchestrator.DefaultConfig(),
		Conversation: conversation.DefaultConfig(),
		Availability: availability.DefaultConfig(),
	}
}

// Session is a fully wired orchestrator. Proxy, when non-nil, renders speech
// through the audio proxy and must be run next to the orchestrator.
type Session struct {
	Orchestrator *orchestrator.Orchestrator
	Backend      Backend
	Proxy        *tts.ProxySynthesizer
}

// BuildSession constructs the backend, speech adapters and orchestrator
// described by settings, with platform as the speech bridge.
func BuildSession(settings SettingsConfig, platform Platform, logger *core.Logger) (*Session, error) {
	if logger == nil {
		logger = core.GetLogger()
	}

	backend, err := BuildBackend(settings.Backend, logger)
	if err != nil {
		return nil, fmt.Errorf("session backend: %w", err)
	}
	speech, err := BuildSpeech(settings.Speech, platform, logger)
	if err != nil {
		return nil, fmt.Errorf("session speech: %w", err)
	}

	monitor := availability.NewMonitor(backend, settings.Session.Availability, logger)
	pipeline := conversation.NewPipeline(backend, settings.Session.Conversation, logger)
	o := orchestrator.New(settings.Session.Orchestrator, monitor, pipeline, speech.Listener, speech.Speaker, logger)

	logger.Info("session built",
		"session_id", o.SessionID(),
		"backend", backend.Name(),
		"language", string(settings.Session.Orchestrator.Language),
		"recognition", settings.Speech.Recognition,
		"synthesis", settings.Speech.Synthesis)

	return &Session{Orchestrator: o, Backend: backend, Proxy: speech.Proxy}, nil
}
