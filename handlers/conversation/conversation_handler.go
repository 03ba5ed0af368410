package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"aitherapist/core"
)

// ChatService is a backend able to answer one framed turn. Implementations
// return ("", nil) when the reply carried no content.
type ChatService interface {
	Chat(ctx context.Context, request core.ChatRequest) (string, error)
	Name() string
}

type Outcome string

const (
	OutcomeReply         Outcome = "reply"
	OutcomeClarification Outcome = "clarification"
	OutcomeUnavailable   Outcome = "unavailable"
	OutcomeFailure       Outcome = "failure"
)

// Turn is a user utterance that has been appended and is awaiting its reply.
// Profile and Availability are captured when the turn begins so the reply is
// localized in the language that was active at send time.
type Turn struct {
	User         core.Message
	Profile      core.LanguageProfile
	Availability core.Availability
}

// Result is the text to append as the assistant turn, plus how it came about.
type Result struct {
	Reply   string
	Outcome Outcome
	Err     error
}

// Pipeline owns the conversation log and the busy flag that serializes sends.
//
// Begin, Complete, Discard and Reset must be called from one goroutine.
// Exchange touches neither the log nor the flag and may run anywhere.
type Pipeline struct {
	chat   ChatService
	config ConversationConfig
	logger *core.Logger
	log    *Log
	busy   bool
}

func NewPipeline(chat ChatService, config ConversationConfig, logger *core.Logger) *Pipeline {
	if config.RequestTimeout <= 0 {
		config.RequestTimeout = DefaultConfig().RequestTimeout
	}
	if logger == nil {
		logger = core.GetLogger()
	}
	return &Pipeline{
		chat:   chat,
		config: config,
		logger: logger.With(map[string]interface{}{"component": "conversation", "backend": chat.Name()}),
		log:    NewLog(),
	}
}

func (p *Pipeline) Busy() bool {
	return p.busy
}

func (p *Pipeline) Messages() []core.Message {
	return p.log.Messages()
}

func (p *Pipeline) Len() int {
	return p.log.Len()
}

func (p *Pipeline) Find(id string) (core.Message, bool) {
	return p.log.Find(id)
}

func (p *Pipeline) Backend() string {
	return p.chat.Name()
}

// Reset re-seeds the log with a greeting. An outstanding turn keeps running
// and stays busy until it completes or is discarded.
func (p *Pipeline) Reset(greeting string) core.Message {
	return p.log.Reset(greeting)
}

// Begin validates and appends the user turn, then marks the pipeline busy.
// It has no side effects when it returns an error.
func (p *Pipeline) Begin(text string, profile core.LanguageProfile, availability core.Availability) (Turn, error) {
	if strings.TrimSpace(text) == "" {
		return Turn{}, core.ErrEmptyMessage
	}
	if p.busy {
		return Turn{}, core.ErrBusy
	}
	p.busy = true
	return Turn{
		User:         p.log.Append(core.MessageRoleUser, text),
		Profile:      profile,
		Availability: availability,
	}, nil
}

// Exchange resolves a turn into reply text. It never returns an error to
// the caller: failures become localized fallback text in Result.Reply.
func (p *Pipeline) Exchange(ctx context.Context, turn Turn) (result Result) {
	if turn.Availability != core.AvailabilityAvailable {
		p.logger.Warn("backend not available, skipping chat call", "availability", turn.Availability.String())
		return Result{
			Reply:   turn.Profile.UnavailableWarning,
			Outcome: OutcomeUnavailable,
			Err:     core.ErrBackendUnreachable,
		}
	}

	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("chat backend panicked", "panic", fmt.Sprint(r))
			result = Result{
				Reply:   turn.Profile.FailureMessage,
				Outcome: OutcomeFailure,
				Err:     fmt.Errorf("chat backend panicked: %v", r),
			}
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, p.config.RequestTimeout.Std())
	defer cancel()

	// A reply without content comes back as ("", nil) and asks for
	// clarification. Whitespace is content. An undecodable body is a failure
	// like any other.
	reply, err := p.chat.Chat(ctx, core.NewTurnRequest(turn.Profile, turn.User.Content))
	switch {
	case err != nil:
		if errors.Is(ctx.Err(), context.DeadlineExceeded) && !errors.Is(err, core.ErrRequestTimeout) {
			err = fmt.Errorf("%w: %w", core.ErrRequestTimeout, err)
		}
		p.logger.Warn("chat request failed", "error", err)
		return Result{Reply: turn.Profile.FailureMessage, Outcome: OutcomeFailure, Err: err}
	case reply == "":
		return Result{Reply: turn.Profile.ClarificationPrompt, Outcome: OutcomeClarification}
	}
	return Result{Reply: reply, Outcome: OutcomeReply}
}

// Complete appends the assistant turn for the outstanding send and clears busy.
func (p *Pipeline) Complete(result Result) core.Message {
	defer func() { p.busy = false }()
	return p.log.Append(core.MessageRoleAssistant, result.Reply)
}

// Discard clears busy without appending anything.
func (p *Pipeline) Discard() {
	p.busy = false
}

// SendUserMessage runs a whole turn synchronously and returns the reply that
// was appended. Only precondition failures are returned as errors.
func (p *Pipeline) SendUserMessage(ctx context.Context, text string, profile core.LanguageProfile, availability core.Availability) (string, error) {
	turn, err := p.Begin(text, profile, availability)
	if err != nil {
		return "", err
	}

	result := Result{Reply: profile.FailureMessage, Outcome: OutcomeFailure}
	defer func() { p.Complete(result) }()

	result = p.Exchange(ctx, turn)
	return result.Reply, nil
}
