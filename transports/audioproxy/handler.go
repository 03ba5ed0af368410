package audioproxy

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"aitherapist/core"

	"github.com/bytedance/sonic"
)

// Synthesizer renders text to audio. services/google/tts satisfies it.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, languageCode string, format core.AudioEncodingFormat) (core.AudioClip, error)
}

type ttsRequest struct {
	Text         string `json:"text"`
	LanguageCode string `json:"language_code,omitempty"`
	Encoding     string `json:"encoding,omitempty"`
}

// Handler serves POST /api/tts: {"text": ...} in, audio bytes out.
type Handler struct {
	synth  Synthesizer
	config Config
	logger *core.Logger
}

func NewHandler(synth Synthesizer, config Config, logger *core.Logger) *Handler {
	defaults := DefaultConfig()
	if config.Timeout <= 0 {
		config.Timeout = defaults.Timeout
	}
	if config.MaxBodyBytes <= 0 {
		config.MaxBodyBytes = defaults.MaxBodyBytes
	}
	if config.AllowOrigin == "" {
		config.AllowOrigin = defaults.AllowOrigin
	}
	if logger == nil {
		logger = core.GetLogger()
	}
	return &Handler{
		synth:  synth,
		config: config,
		logger: logger.With(map[string]interface{}{"component": "audio_proxy"}),
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", h.config.AllowOrigin)
	w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

	switch r.Method {
	case http.MethodOptions:
		w.WriteHeader(http.StatusNoContent)
		return
	case http.MethodPost:
	default:
		w.Header().Set("Allow", "POST, OPTIONS")
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.config.MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, "Request body too large", http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}

	var req ttsRequest
	if err := sonic.Unmarshal(body, &req); err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		http.Error(w, "text is required", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.config.Timeout.Std())
	defer cancel()

	clip, err := h.synth.Synthesize(ctx, req.Text, req.LanguageCode, core.ParseAudioEncodingFormat(req.Encoding))
	if err != nil {
		h.logger.Error("synthesis failed", "error", err, "language_code", req.LanguageCode)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	h.logger.Debug("synthesized", "chars", len(req.Text), "bytes", len(clip.Data), "format", clip.Format.String())
	w.Header().Set("Content-Type", clip.Format.ContentType())
	w.WriteHeader(http.StatusOK)
	w.Write(clip.Data)
}
