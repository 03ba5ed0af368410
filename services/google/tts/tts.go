package tts

import (
	"context"
	"errors"
	"fmt"

	"aitherapist/core"
	"aitherapist/utils/audio"

	texttospeech "cloud.google.com/go/texttospeech/apiv1"
	"cloud.google.com/go/texttospeech/apiv1/texttospeechpb"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const ulawSampleRate = 8000

// Config holds the voice selection for Google Cloud Text-to-Speech.
// Credentials come from CredentialsFile or, when empty, from Application
// Default Credentials.
type Config struct {
	CredentialsFile string `json:"credentials_file,omitempty"`
	LanguageCode    string `json:"language_code"`
	VoiceName       string `json:"voice_name,omitempty"`
	Gender          string `json:"gender,omitempty"` // neutral | female | male
}

// DefaultConfig returns the en-US neutral voice.
func DefaultConfig() Config {
	return Config{
		LanguageCode: "en-US",
		Gender:       "neutral",
	}
}

// speechClient is the subset of the generated client the synthesizer uses.
type speechClient interface {
	SynthesizeSpeech(ctx context.Context, req *texttospeechpb.SynthesizeSpeechRequest) (*texttospeechpb.SynthesizeSpeechResponse, error)
	Close() error
}

type cloudClient struct {
	client *texttospeech.Client
}

func (c cloudClient) SynthesizeSpeech(ctx context.Context, req *texttospeechpb.SynthesizeSpeechRequest) (*texttospeechpb.SynthesizeSpeechResponse, error) {
	return c.client.SynthesizeSpeech(ctx, req)
}

func (c cloudClient) Close() error {
	return c.client.Close()
}

// GoogleTTS renders whole utterances to audio with one unary RPC per call.
type GoogleTTS struct {
	config Config
	client speechClient
	logger *core.Logger
}

// NewGoogleTTS dials the Text-to-Speech API.
func NewGoogleTTS(ctx context.Context, config Config, logger *core.Logger) (*GoogleTTS, error) {
	var opts []option.ClientOption
	if config.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(config.CredentialsFile))
	}
	client, err := texttospeech.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating texttospeech client: %w", err)
	}
	return newGoogleTTS(config, cloudClient{client: client}, logger), nil
}

func newGoogleTTS(config Config, client speechClient, logger *core.Logger) *GoogleTTS {
	defaults := DefaultConfig()
	if config.LanguageCode == "" {
		config.LanguageCode = defaults.LanguageCode
	}
	if config.Gender == "" {
		config.Gender = defaults.Gender
	}
	if logger == nil {
		logger = core.GetLogger()
	}
	return &GoogleTTS{
		config: config,
		client: client,
		logger: logger.With(map[string]interface{}{"component": "google_tts"}),
	}
}

// Synthesize renders text in the given language (the configured one when
// empty). µ-law is transcoded locally from 8kHz LINEAR16.
func (g *GoogleTTS) Synthesize(ctx context.Context, text, languageCode string, format core.AudioEncodingFormat) (core.AudioClip, error) {
	if text == "" {
		return core.AudioClip{}, errors.New("google tts: empty text")
	}
	req := g.BuildRequest(text, languageCode, format)

	resp, err := g.client.SynthesizeSpeech(ctx, req)
	if err != nil {
		return core.AudioClip{}, fmt.Errorf("google tts: %w", classify(err))
	}

	switch format {
	case core.MP3:
		return core.AudioClip{Data: resp.GetAudioContent(), Format: core.MP3}, nil
	case core.ULAW:
		clip, err := audio.ConvertClip(core.AudioClip{
			Data:       resp.GetAudioContent(),
			Format:     core.PCM,
			SampleRate: ulawSampleRate,
		}, core.ULAW)
		if err != nil {
			return core.AudioClip{}, fmt.Errorf("google tts: %w: %w", core.ErrMalformedReply, err)
		}
		return clip, nil
	default:
		pcm, err := audio.StripWAVHeaderIfPresent(resp.GetAudioContent())
		if err != nil {
			return core.AudioClip{}, fmt.Errorf("google tts: %w: %w", core.ErrMalformedReply, err)
		}
		return core.AudioClip{Data: pcm, Format: core.PCM, SampleRate: int(req.GetAudioConfig().GetSampleRateHertz())}, nil
	}
}

// BuildRequest maps a synthesis call onto the API request.
func (g *GoogleTTS) BuildRequest(text, languageCode string, format core.AudioEncodingFormat) *texttospeechpb.SynthesizeSpeechRequest {
	if languageCode == "" {
		languageCode = g.config.LanguageCode
	}

	audioConfig := &texttospeechpb.AudioConfig{AudioEncoding: texttospeechpb.AudioEncoding_MP3}
	switch format {
	case core.ULAW:
		audioConfig.AudioEncoding = texttospeechpb.AudioEncoding_LINEAR16
		audioConfig.SampleRateHertz = ulawSampleRate
	case core.PCM:
		audioConfig.AudioEncoding = texttospeechpb.AudioEncoding_LINEAR16
	}

	return &texttospeechpb.SynthesizeSpeechRequest{
		Input: &texttospeechpb.SynthesisInput{
			InputSource: &texttospeechpb.SynthesisInput_Text{Text: text},
		},
		Voice: &texttospeechpb.VoiceSelectionParams{
			LanguageCode: languageCode,
			Name:         g.config.VoiceName,
			SsmlGender:   gender(g.config.Gender),
		},
		AudioConfig: audioConfig,
	}
}

// Close releases the underlying connection.
func (g *GoogleTTS) Close() error {
	return g.client.Close()
}

func gender(name string) texttospeechpb.SsmlVoiceGender {
	switch name {
	case "female":
		return texttospeechpb.SsmlVoiceGender_FEMALE
	case "male":
		return texttospeechpb.SsmlVoiceGender_MALE
	default:
		return texttospeechpb.SsmlVoiceGender_NEUTRAL
	}
}

func classify(err error) error {
	if s, ok := status.FromError(err); ok {
		switch s.Code() {
		case codes.DeadlineExceeded:
			return fmt.Errorf("%w: %w", core.ErrRequestTimeout, err)
		case codes.Unavailable:
			return fmt.Errorf("%w: %w", core.ErrBackendUnreachable, err)
		case codes.Unknown:
		default:
			return fmt.Errorf("%w: %w", core.ErrNetworkFailure, err)
		}
	}
	return core.ClassifyTransportError(err)
}
