package stt

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"aitherapist/core"
)

// RecognitionConfig is handed to the platform recognizer for one capture.
type RecognitionConfig struct {
	Lang            string `json:"lang"`
	InterimResults  bool   `json:"interim_results"`
	MaxAlternatives int    `json:"max_alternatives"`
}

type RecognitionEventType string

const (
	RecognitionResult RecognitionEventType = "result"
	RecognitionEnd    RecognitionEventType = "end"
	RecognitionError  RecognitionEventType = "error"
)

// RecognitionEvent is one callback from the platform. Transcript is set for
// results, Error for errors.
type RecognitionEvent struct {
	Type       RecognitionEventType
	Transcript string
	Error      string
}

// Recognizer is a platform speech-recognition capability. Recognize starts
// a capture and returns immediately; events are reported through emit until
// stop is called.
type Recognizer interface {
	Recognize(ctx context.Context, config RecognitionConfig, emit func(RecognitionEvent)) (stop func(), err error)
}

// Unavailable is the Recognizer used when the platform offers no recognition.
type Unavailable struct{}

func (Unavailable) Recognize(context.Context, RecognitionConfig, func(RecognitionEvent)) (func(), error) {
	return nil, core.ErrSpeechCapabilityUnavailable
}

// Listener turns the event-driven recognizer into single-shot captures.
type Listener struct {
	recognizer Recognizer
	config     STTConfig
	logger     *core.Logger
}

func NewListener(recognizer Recognizer, config STTConfig, logger *core.Logger) *Listener {
	if recognizer == nil {
		recognizer = Unavailable{}
	}
	if config.CaptureTimeout <= 0 {
		config.CaptureTimeout = DefaultConfig().CaptureTimeout
	}
	if logger == nil {
		logger = core.GetLogger()
	}
	return &Listener{
		recognizer: recognizer,
		config:     config,
		logger:     logger.With(map[string]interface{}{"component": "stt"}),
	}
}

// Begin starts a one-shot, final-results-only, single-alternative capture in
// locale. It fails with core.ErrSpeechCapabilityUnavailable when the platform
// cannot recognize speech.
func (l *Listener) Begin(ctx context.Context, locale string) (*Capture, error) {
	ctx, cancel := context.WithTimeout(ctx, l.config.CaptureTimeout.Std())
	capture := &Capture{done: make(chan struct{})}

	stop, err := l.recognizer.Recognize(ctx, RecognitionConfig{
		Lang:            locale,
		InterimResults:  false,
		MaxAlternatives: 1,
	}, capture.handle)
	if err != nil {
		cancel()
		if errors.Is(err, core.ErrSpeechCapabilityUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("speech capture: start: %w", err)
	}
	l.logger.Debug("capture started", "locale", locale)

	go func() {
		select {
		case <-capture.done:
		case <-ctx.Done():
			capture.finish(fmt.Errorf("speech capture: %w", ctx.Err()))
		}
		cancel()
		if stop != nil {
			stop()
		}
	}()
	return capture, nil
}

// Capture is one recognition session. It completes exactly once.
type Capture struct {
	mu         sync.Mutex
	transcript string
	err        error
	completed  bool
	once       sync.Once
	done       chan struct{}
}

// handle keeps the first result's transcript and completes on end or error.
func (c *Capture) handle(ev RecognitionEvent) {
	switch ev.Type {
	case RecognitionResult:
		c.mu.Lock()
		if !c.completed && c.transcript == "" {
			c.transcript = ev.Transcript
		}
		c.mu.Unlock()
	case RecognitionEnd:
		c.finish(nil)
	case RecognitionError:
		c.finish(fmt.Errorf("speech capture: %s", ev.Error))
	}
}

func (c *Capture) finish(err error) {
	c.once.Do(func() {
		c.mu.Lock()
		c.err = err
		c.completed = true
		c.mu.Unlock()
		close(c.done)
	})
}

// Done is closed when the capture has completed.
func (c *Capture) Done() <-chan struct{} {
	return c.done
}

// Wait blocks until the capture completes. A transcript recognized before an
// error is still returned alongside it.
func (c *Capture) Wait() (string, error) {
	<-c.done
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.transcript, c.err
}
