package factories

import (
	"fmt"

	"aitherapist/core"
	"aitherapist/handlers/stt"
	"aitherapist/handlers/tts"
)

// Platform is whatever can run recognition and synthesis on the user's
// device and play rendered audio there. The websocket hub is the usual one.
type Platform interface {
	stt.Recognizer
	tts.Synthesizer
	tts.AudioSink
}

const (
	SpeechModePlatform = "platform"
	SpeechModeProxy    = "proxy"
	SpeechModeNone     = "none"
)

type SpeechFactoryConfig struct {
	Recognition string           `json:"recognition"` // platform | none
	Synthesis   string           `json:"synthesis"`   // platform | proxy | none
	Proxy       *tts.ProxyConfig `json:"proxy,omitempty"`
	STT         stt.STTConfig    `json:"stt"`
	TTS         tts.TTSConfig    `json:"tts"`
}

func DefaultSpeechFactoryConfig() SpeechFactoryConfig {
	return SpeechFactoryConfig{
		Recognition: SpeechModePlatform,
		Synthesis:   SpeechModePlatform,
		STT:         stt.DefaultConfig(),
		TTS:         tts.DefaultConfig(),
	}
}

// Speech bundles the speech adapters. Proxy is non-nil only in proxy mode and
// must be run by the caller.
type Speech struct {
	Listener *stt.Listener
	Speaker  *tts.Speaker
	Proxy    *tts.ProxySynthesizer
}

// BuildSpeech wires the speech adapters to platform according to config.
// Disabled capabilities resolve to the Unavailable implementations.
func BuildSpeech(config SpeechFactoryConfig, platform Platform, logger *core.Logger) (Speech, error) {
	var out Speech

	var recognizer stt.Recognizer = stt.Unavailable{}
	switch config.Recognition {
	case "", SpeechModePlatform:
		if platform != nil {
			recognizer = platform
		}
	case SpeechModeNone:
	default:
		return Speech{}, fmt.Errorf("speech: unknown recognition mode %q", config.Recognition)
	}

	var synth tts.Synthesizer = tts.Unavailable{}
	switch config.Synthesis {
	case "", SpeechModePlatform:
		if platform != nil {
			synth = platform
		}
	case SpeechModeProxy:
		proxyConfig := tts.DefaultProxyConfig()
		if config.Proxy != nil {
			proxyConfig = *config.Proxy
		}
		if platform == nil {
			return Speech{}, fmt.Errorf("speech: proxy synthesis needs a platform to play audio")
		}
		out.Proxy = tts.NewProxySynthesizer(proxyConfig, platform, logger)
		synth = out.Proxy
	case SpeechModeNone:
	default:
		return Speech{}, fmt.Errorf("speech: unknown synthesis mode %q", config.Synthesis)
	}

	out.Listener = stt.NewListener(recognizer, config.STT, logger)
	out.Speaker = tts.NewSpeaker(synth, config.TTS, logger)
	return out, nil
}
