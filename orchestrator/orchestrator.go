package orchestrator

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"aitherapist/core"
	"aitherapist/events/llm"
	"aitherapist/events/session"
	sttevents "aitherapist/events/stt"
	ttsevents "aitherapist/events/tts"
	"aitherapist/handlers/availability"
	"aitherapist/handlers/conversation"
	"aitherapist/handlers/stt"
	"aitherapist/handlers/tts"

	"github.com/google/uuid"
)

const relayerName = "orchestrator"

// Orchestrator owns the session state. Every mutation runs on the goroutine
// executing Run; intents and completions reach it as funcs over a channel.
type Orchestrator struct {
	config   Config
	monitor  *availability.Monitor
	pipeline *conversation.Pipeline
	listener *stt.Listener
	speaker  *tts.Speaker
	logger   *core.Logger

	sessionID string
	intents   chan func()
	done      chan struct{}
	running   atomic.Bool
	ctx       context.Context
	wg        sync.WaitGroup

	// owned by the loop
	draft        string
	availability core.Availability
	language     core.Language
	capture      *stt.Capture
	readAloud    bool
	alwaysSpeak  bool
	notice       string
	generation   uint64

	snapshot atomic.Pointer[State]

	subMu   sync.Mutex
	subs    map[uint64]chan *core.EventPacket
	nextSub uint64
	closed  bool
}

// New builds an orchestrator seeded with the greeting for config.Language.
// Intents posted before Run are buffered up to config.IntentBuffer.
func New(
	config Config,
	monitor *availability.Monitor,
	pipeline *conversation.Pipeline,
	listener *stt.Listener,
	speaker *tts.Speaker,
	logger *core.Logger,
) *Orchestrator {
	defaults := DefaultConfig()
	if config.Language == "" {
		config.Language = defaults.Language
	}
	if config.SubscriberBuffer <= 0 {
		config.SubscriberBuffer = defaults.SubscriberBuffer
	}
	if config.IntentBuffer <= 0 {
		config.IntentBuffer = defaults.IntentBuffer
	}
	if listener == nil {
		listener = stt.NewListener(nil, stt.DefaultConfig(), logger)
	}
	if speaker == nil {
		speaker = tts.NewSpeaker(nil, tts.DefaultConfig(), logger)
	}
	if logger == nil {
		logger = core.GetLogger()
	}

	sessionID := config.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	o := &Orchestrator{
		config:    config,
		monitor:   monitor,
		pipeline:  pipeline,
		listener:  listener,
		speaker:   speaker,
		logger:    logger.With(map[string]interface{}{"component": "orchestrator", "session_id": sessionID}),
		sessionID: sessionID,
		intents:   make(chan func(), config.IntentBuffer),
		done:      make(chan struct{}),
		ctx:       context.Background(),
		language:  config.Language,
		subs:      make(map[uint64]chan *core.EventPacket),
	}
	o.pipeline.Reset(core.Profile(o.language).Greeting)
	o.publish()
	return o
}

func (o *Orchestrator) SessionID() string {
	return o.sessionID
}

// Run processes intents until ctx is done. It probes the backend once on
// start. In-flight work is cancelled and awaited before Run returns.
func (o *Orchestrator) Run(ctx context.Context) error {
	if !o.running.CompareAndSwap(false, true) {
		return errors.New("orchestrator: already running")
	}
	o.ctx = ctx
	defer o.shutdown()

	o.logger.Info("session started", "language", string(o.language), "backend", o.pipeline.Backend())
	o.refreshAvailability()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case fn := <-o.intents:
			fn()
		}
	}
}

func (o *Orchestrator) shutdown() {
	close(o.done)
	o.wg.Wait()

	o.subMu.Lock()
	defer o.subMu.Unlock()
	for id, ch := range o.subs {
		close(ch)
		delete(o.subs, id)
	}
	o.closed = true
	o.logger.Info("session ended")
}

// Snapshot returns the most recently published state.
func (o *Orchestrator) Snapshot() State {
	return o.snapshot.Load().clone()
}

// Subscribe registers for event packets. The channel is closed by the
// returned cancel func or when Run exits. Slow subscribers lose events, so
// renderers should fall back to Snapshot.
func (o *Orchestrator) Subscribe() (<-chan *core.EventPacket, func()) {
	ch := make(chan *core.EventPacket, o.config.SubscriberBuffer)

	o.subMu.Lock()
	defer o.subMu.Unlock()
	if o.closed {
		close(ch)
		return ch, func() {}
	}
	id := o.nextSub
	o.nextSub++
	o.subs[id] = ch

	return ch, func() {
		o.subMu.Lock()
		defer o.subMu.Unlock()
		if c, ok := o.subs[id]; ok {
			delete(o.subs, id)
			close(c)
		}
	}
}

// Intents. Each one is applied asynchronously on the loop; results are
// observed through Snapshot and Subscribe.

func (o *Orchestrator) SetDraft(text string) { o.post(func() { o.setDraft(text) }) }

func (o *Orchestrator) Submit() { o.post(o.submit) }

func (o *Orchestrator) BeginVoiceCapture() { o.post(o.beginVoiceCapture) }

func (o *Orchestrator) ToggleReadAloud() {
	o.post(func() {
		o.readAloud = !o.readAloud
		o.publish()
	})
}

func (o *Orchestrator) ToggleAlwaysSpeak() {
	o.post(func() {
		o.alwaysSpeak = !o.alwaysSpeak
		o.publish()
	})
}

func (o *Orchestrator) SwitchLanguage() { o.post(o.switchLanguage) }

func (o *Orchestrator) RefreshAvailability() { o.post(o.refreshAvailability) }

func (o *Orchestrator) DismissNotice() {
	o.post(func() {
		if o.notice == "" {
			return
		}
		o.notice = ""
		o.publish()
	})
}

// SpeakMessage reads one existing turn aloud, regardless of the voice toggles.
func (o *Orchestrator) SpeakMessage(id string) {
	o.post(func() {
		msg, ok := o.pipeline.Find(id)
		if !ok {
			o.logger.Debug("speak requested for unknown message", "message_id", id)
			return
		}
		o.speak(msg.Content, core.Profile(o.language).Locale)
	})
}

func (o *Orchestrator) post(fn func()) {
	select {
	case o.intents <- fn:
	case <-o.done:
	}
}

// spawn runs a suspending step off the loop. Its result must come back via post.
func (o *Orchestrator) spawn(fn func(ctx context.Context)) {
	o.wg.Add(1)
	ctx := o.ctx
	go func() {
		defer o.wg.Done()
		fn(ctx)
	}()
}

func (o *Orchestrator) setDraft(text string) {
	if o.draft == text {
		return
	}
	o.draft = text
	o.publish()
}

func (o *Orchestrator) submit() {
	profile := core.Profile(o.language)
	turn, err := o.pipeline.Begin(o.draft, profile, o.availability)
	if err != nil {
		o.logger.Debug("submit ignored", "reason", err)
		return
	}
	o.draft = ""
	generation := o.generation

	o.emit(&session.MessageAppendedEvent{Message: turn.User})
	o.emit(&session.BusyChangedEvent{Busy: true})
	if turn.Availability == core.AvailabilityAvailable {
		o.emit(&llm.ChatRequestedEvent{Utterance: turn.User.Content, Language: profile.Language, Backend: o.pipeline.Backend()})
	}
	o.publish()

	o.spawn(func(ctx context.Context) {
		result := o.pipeline.Exchange(ctx, turn)
		o.post(func() { o.completeTurn(turn, generation, result) })
	})
}

func (o *Orchestrator) completeTurn(turn conversation.Turn, generation uint64, result conversation.Result) {
	completed := &llm.ChatCompletedEvent{Outcome: string(result.Outcome)}
	if result.Err != nil {
		completed.Error = result.Err.Error()
	}
	o.emit(completed)

	if o.config.DiscardStaleReplies && generation != o.generation {
		o.pipeline.Discard()
		o.logger.Info("discarding reply from before language switch")
		o.emit(&session.ReplyDiscardedEvent{Content: result.Reply})
	} else {
		msg := o.pipeline.Complete(result)
		o.emit(&session.MessageAppendedEvent{Message: msg})
		if o.readAloud || o.alwaysSpeak {
			o.speak(msg.Content, turn.Profile.Locale)
		}
	}
	o.emit(&session.BusyChangedEvent{Busy: false})
	o.publish()
}

func (o *Orchestrator) speak(text, locale string) {
	o.emit(&ttsevents.SpeakRequestedEvent{Text: text, Locale: locale})
	o.speaker.Speak(text, locale)
}

func (o *Orchestrator) beginVoiceCapture() {
	if o.capture != nil {
		o.logger.Debug("capture already active")
		return
	}
	profile := core.Profile(o.language)

	capture, err := o.listener.Begin(o.ctx, profile.Locale)
	if errors.Is(err, core.ErrSpeechCapabilityUnavailable) {
		o.notice = profile.SpeechUnavailableNotice
		o.emit(&core.NoticeEvent{Text: o.notice})
		o.publish()
		return
	}
	if err != nil {
		o.logger.Warn("could not start speech capture", "error", err)
		o.emit(&core.WarningEvent{Error: err.Error()})
		return
	}

	o.capture = capture
	o.emit(&sttevents.CaptureStartedEvent{Locale: profile.Locale})
	o.publish()

	o.spawn(func(context.Context) {
		transcript, err := capture.Wait()
		o.post(func() { o.finishCapture(capture, transcript, err) })
	})
}

func (o *Orchestrator) finishCapture(capture *stt.Capture, transcript string, err error) {
	if o.capture != capture {
		return
	}
	o.capture = nil

	ended := &sttevents.CaptureEndedEvent{Transcript: transcript}
	if err != nil {
		o.logger.Warn("speech capture ended with error", "error", err)
		ended.Error = err.Error()
	}
	if transcript != "" {
		o.draft = transcript
	}
	o.emit(ended)
	o.publish()
}

func (o *Orchestrator) switchLanguage() {
	o.language = o.language.Toggle()
	o.generation++
	profile := core.Profile(o.language)

	greeting := o.pipeline.Reset(profile.Greeting)
	o.logger.Info("language switched", "language", string(o.language))
	o.emit(&session.ConversationResetEvent{Language: o.language, Greeting: greeting})
	o.publish()

	o.refreshAvailability()
}

func (o *Orchestrator) refreshAvailability() {
	o.spawn(func(ctx context.Context) {
		result := o.monitor.Check(ctx)
		o.post(func() { o.setAvailability(result) })
	})
}

func (o *Orchestrator) setAvailability(a core.Availability) {
	if o.availability == a {
		return
	}
	o.availability = a
	o.emit(&session.AvailabilityChangedEvent{Availability: a})
	o.publish()
}

func (o *Orchestrator) publish() {
	profile := core.Profile(o.language)
	state := State{
		SessionID:    o.sessionID,
		Messages:     o.pipeline.Messages(),
		Draft:        o.draft,
		Busy:         o.pipeline.Busy(),
		Availability: o.availability,
		Language:     o.language,
		Locale:       profile.Locale,
		Placeholder:  profile.InputPlaceholder,
		ToggleLabel:  profile.ToggleLabel,
		Listening:    o.capture != nil,
		ReadAloud:    o.readAloud,
		AlwaysSpeak:  o.alwaysSpeak,
		Notice:       o.notice,
	}
	o.snapshot.Store(&state)
	o.emit(&StateChangedEvent{State: state.clone()})
}

func (o *Orchestrator) emit(event core.IEvent) {
	packet := core.NewEventPacket(event, relayerName)

	o.subMu.Lock()
	defer o.subMu.Unlock()
	for id, ch := range o.subs {
		select {
		case ch <- packet:
		default:
			o.logger.Warn("subscriber is lagging, dropping event", "subscriber", id, "event", event.GetId())
		}
	}
}
