package tts

import (
	"errors"

	"aitherapist/core"
)

// SpeechRequest is one utterance for the platform synthesis queue.
type SpeechRequest struct {
	Text string  `json:"text"`
	Lang string  `json:"lang"`
	Rate float64 `json:"rate"`
}

// Synthesizer is a platform speech-synthesis capability. Enqueue must not
// block on playback; overlapping requests queue at the platform.
type Synthesizer interface {
	Enqueue(req SpeechRequest) error
}

// Unavailable is the Synthesizer used when nothing can render speech.
type Unavailable struct{}

func (Unavailable) Enqueue(SpeechRequest) error {
	return core.ErrSpeechCapabilityUnavailable
}

// Speaker is the fire-and-forget front of a Synthesizer.
type Speaker struct {
	synth  Synthesizer
	config TTSConfig
	logger *core.Logger
}

func NewSpeaker(synth Synthesizer, config TTSConfig, logger *core.Logger) *Speaker {
	if synth == nil {
		synth = Unavailable{}
	}
	if config.Rate <= 0 {
		config.Rate = DefaultConfig().Rate
	}
	if logger == nil {
		logger = core.GetLogger()
	}
	return &Speaker{
		synth:  synth,
		config: config,
		logger: logger.With(map[string]interface{}{"component": "tts"}),
	}
}

// Speak submits text for synthesis in locale. Failures are logged and dropped.
func (s *Speaker) Speak(text, locale string) {
	if s.config.Normalize {
		text = normalizeTextForTTS(text)
	}
	if text == "" {
		s.logger.Debug("nothing to speak after normalization")
		return
	}

	err := s.synth.Enqueue(SpeechRequest{Text: text, Lang: locale, Rate: s.config.Rate})
	switch {
	case errors.Is(err, core.ErrSpeechCapabilityUnavailable):
		s.logger.Debug("speech synthesis unavailable, dropping utterance", "locale", locale)
	case err != nil:
		s.logger.Warn("failed to enqueue utterance", "error", err, "locale", locale)
	}
}
