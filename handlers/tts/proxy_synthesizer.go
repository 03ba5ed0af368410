package tts

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"aitherapist/core"

	"github.com/bytedance/sonic"
)

const maxAudioBytes = 16 << 20

// AudioSink plays rendered audio, typically by pushing it to connected clients.
type AudioSink interface {
	PlayAudio(clip core.AudioClip) error
}

type ProxyConfig struct {
	URL          string            `json:"url"`           // Full endpoint, e.g. http://localhost:5000/api/tts.
	Encoding     string            `json:"encoding"`      // mp3 | ulaw
	Timeout      core.Duration     `json:"timeout"`       // Bound for one render request.
	QueueSize    int               `json:"queue_size"`    // Utterances waiting to be rendered; Enqueue fails when full.
	LanguageCode map[string]string `json:"language_code"` // Locale to cloud voice language overrides.
}

// DefaultProxyConfig targets the local audio proxy.
func DefaultProxyConfig() ProxyConfig {
	return ProxyConfig{
		URL:          "http://localhost:5000/api/tts",
		Encoding:     "mp3",
		Timeout:      core.Seconds(30),
		QueueSize:    16,
		LanguageCode: map[string]string{"ur-PK": "ur-IN"},
	}
}

type proxyRequest struct {
	Text         string `json:"text"`
	LanguageCode string `json:"language_code,omitempty"`
	Encoding     string `json:"encoding,omitempty"`
}

// ProxySynthesizer renders utterances through the audio proxy, one at a time
// in submission order, and hands the audio to a sink.
type ProxySynthesizer struct {
	config ProxyConfig
	client *http.Client
	sink   AudioSink
	queue  chan SpeechRequest
	logger *core.Logger
}

func NewProxySynthesizer(config ProxyConfig, sink AudioSink, logger *core.Logger) *ProxySynthesizer {
	defaults := DefaultProxyConfig()
	if config.URL == "" {
		config.URL = defaults.URL
	}
	if config.Encoding == "" {
		config.Encoding = defaults.Encoding
	}
	if config.Timeout <= 0 {
		config.Timeout = defaults.Timeout
	}
	if config.QueueSize <= 0 {
		config.QueueSize = defaults.QueueSize
	}
	if config.LanguageCode == nil {
		config.LanguageCode = defaults.LanguageCode
	}
	if logger == nil {
		logger = core.GetLogger()
	}
	return &ProxySynthesizer{
		config: config,
		client: &http.Client{},
		sink:   sink,
		queue:  make(chan SpeechRequest, config.QueueSize),
		logger: logger.With(map[string]interface{}{"component": "tts_proxy"}),
	}
}

func (p *ProxySynthesizer) Enqueue(req SpeechRequest) error {
	select {
	case p.queue <- req:
		return nil
	default:
		return errors.New("tts proxy: queue full")
	}
}

// Run renders queued utterances until ctx is done.
func (p *ProxySynthesizer) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case req := <-p.queue:
			clip, err := p.Render(ctx, req)
			if err != nil {
				p.logger.Warn("render failed", "error", err)
				continue
			}
			if err := p.sink.PlayAudio(clip); err != nil {
				p.logger.Warn("audio playback failed", "error", err)
			}
		}
	}
}

// Render performs one proxy round trip.
func (p *ProxySynthesizer) Render(ctx context.Context, req SpeechRequest) (core.AudioClip, error) {
	lang := req.Lang
	if mapped, ok := p.config.LanguageCode[lang]; ok {
		lang = mapped
	}
	body, err := sonic.Marshal(proxyRequest{Text: req.Text, LanguageCode: lang, Encoding: p.config.Encoding})
	if err != nil {
		return core.AudioClip{}, fmt.Errorf("tts proxy: marshal request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, p.config.Timeout.Std())
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.URL, bytes.NewReader(body))
	if err != nil {
		return core.AudioClip{}, fmt.Errorf("tts proxy: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return core.AudioClip{}, fmt.Errorf("tts proxy: %w", core.ClassifyTransportError(err))
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxAudioBytes))
	if err != nil {
		return core.AudioClip{}, fmt.Errorf("tts proxy: read audio: %w", core.ClassifyTransportError(err))
	}
	if resp.StatusCode != http.StatusOK {
		return core.AudioClip{}, fmt.Errorf("tts proxy: %w: status %d: %s", core.ErrNetworkFailure, resp.StatusCode, strings.TrimSpace(string(data)))
	}

	format := core.ParseAudioEncodingFormat(p.config.Encoding)
	clip := core.AudioClip{Data: data, Format: format}
	if format == core.ULAW {
		clip.SampleRate = 8000
	}
	return clip, nil
}
