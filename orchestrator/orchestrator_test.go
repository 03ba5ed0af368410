package orchestrator_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aitherapist/core"
	"aitherapist/events/session"
	"aitherapist/handlers/availability"
	"aitherapist/handlers/conversation"
	"aitherapist/handlers/stt"
	"aitherapist/handlers/tts"
	"aitherapist/orchestrator"
)

type fakeChat struct {
	calls atomic.Int32
	gate  chan struct{} // when non-nil, replies wait for it to close
	reply string
}

func (f *fakeChat) Chat(ctx context.Context, _ core.ChatRequest) (string, error) {
	f.calls.Add(1)
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return "", core.ClassifyTransportError(ctx.Err())
		}
	}
	return f.reply, nil
}

func (f *fakeChat) Name() string { return "fake" }

type fakeHealth struct {
	healthy atomic.Bool
	probes  atomic.Int32
}

func (f *fakeHealth) CheckHealth(context.Context) error {
	f.probes.Add(1)
	if f.healthy.Load() {
		return nil
	}
	return core.ErrBackendUnreachable
}

type fakeRecognizer struct {
	mu     sync.Mutex
	starts int
	config stt.RecognitionConfig
	emit   func(stt.RecognitionEvent)
}

func (r *fakeRecognizer) Recognize(_ context.Context, config stt.RecognitionConfig, emit func(stt.RecognitionEvent)) (func(), error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.starts++
	r.config = config
	r.emit = emit
	return func() {}, nil
}

func (r *fakeRecognizer) send(ev stt.RecognitionEvent) {
	r.mu.Lock()
	emit := r.emit
	r.mu.Unlock()
	emit(ev)
}

func (r *fakeRecognizer) startCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.starts
}

type recordingSynth struct {
	mu   sync.Mutex
	reqs []tts.SpeechRequest
}

func (s *recordingSynth) Enqueue(req tts.SpeechRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reqs = append(s.reqs, req)
	return nil
}

func (s *recordingSynth) requests() []tts.SpeechRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]tts.SpeechRequest(nil), s.reqs...)
}

type harness struct {
	o          *orchestrator.Orchestrator
	chat       *fakeChat
	health     *fakeHealth
	recognizer *fakeRecognizer
	synth      *recordingSynth
	runErr     chan error
	cancel     context.CancelFunc
}

type option func(*options)

type options struct {
	config      orchestrator.Config
	convConfig  conversation.ConversationConfig
	noRecognize bool
	unhealthy   bool
	gated       bool
}

func withDiscardStale() option { return func(o *options) { o.config.DiscardStaleReplies = true } }
func withoutRecognizer() option { return func(o *options) { o.noRecognize = true } }
func unhealthy() option        { return func(o *options) { o.unhealthy = true } }
func gated() option            { return func(o *options) { o.gated = true } }
func withRequestTimeout(d time.Duration) option {
	return func(o *options) { o.convConfig.RequestTimeout = core.Duration(d) }
}

func start(t *testing.T, opts ...option) *harness {
	t.Helper()
	o := options{config: orchestrator.DefaultConfig(), convConfig: conversation.DefaultConfig()}
	for _, opt := range opts {
		opt(&o)
	}
	logger := core.NewNopLogger()

	h := &harness{
		chat:       &fakeChat{reply: "I hear you."},
		health:     &fakeHealth{},
		recognizer: &fakeRecognizer{},
		synth:      &recordingSynth{},
		runErr:     make(chan error, 1),
	}
	h.health.healthy.Store(!o.unhealthy)
	if o.gated {
		h.chat.gate = make(chan struct{})
	}

	var recognizer stt.Recognizer = h.recognizer
	if o.noRecognize {
		recognizer = stt.Unavailable{}
	}

	h.o = orchestrator.New(
		o.config,
		availability.NewMonitor(h.health, availability.DefaultConfig(), logger),
		conversation.NewPipeline(h.chat, o.convConfig, logger),
		stt.NewListener(recognizer, stt.DefaultConfig(), logger),
		tts.NewSpeaker(h.synth, tts.DefaultConfig(), logger),
		logger,
	)

	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	go func() { h.runErr <- h.o.Run(ctx) }()
	t.Cleanup(func() {
		if h.chat.gate != nil {
			select {
			case <-h.chat.gate:
			default:
				close(h.chat.gate)
			}
		}
		cancel()
		<-h.runErr
	})

	want := core.AvailabilityAvailable
	if o.unhealthy {
		want = core.AvailabilityUnavailable
	}
	h.waitFor(t, func(s orchestrator.State) bool { return s.Availability == want })
	return h
}

func (h *harness) waitFor(t *testing.T, cond func(orchestrator.State) bool) orchestrator.State {
	t.Helper()
	require.Eventually(t, func() bool { return cond(h.o.Snapshot()) }, 2*time.Second, 2*time.Millisecond)
	return h.o.Snapshot()
}

// barrier waits until every intent posted so far has been applied.
func (h *harness) barrier(t *testing.T) {
	t.Helper()
	before := h.o.Snapshot().ReadAloud
	h.o.ToggleReadAloud()
	h.waitFor(t, func(s orchestrator.State) bool { return s.ReadAloud != before })
	h.o.ToggleReadAloud()
	h.waitFor(t, func(s orchestrator.State) bool { return s.ReadAloud == before })
}

func (h *harness) release() { close(h.chat.gate) }

func TestNew_SeedsGreeting(t *testing.T) {
	h := start(t)

	s := h.o.Snapshot()
	require.Len(t, s.Messages, 1)
	assert.Equal(t, core.MessageRoleAssistant, s.Messages[0].Role)
	assert.Equal(t, "Hello! I am your AI therapy companion. How are you feeling today?", s.Messages[0].Content)
	assert.Equal(t, core.LanguageEnglish, s.Language)
	assert.Equal(t, "en-US", s.Locale)
	assert.Equal(t, "اردو", s.ToggleLabel)
	assert.Equal(t, h.o.SessionID(), s.SessionID)
	assert.False(t, s.Busy)
	assert.False(t, s.Listening)
	assert.Equal(t, int32(1), h.health.probes.Load())
}

func TestSubmit_AnxiousScenario(t *testing.T) {
	h := start(t)

	h.o.SetDraft("I feel anxious today")
	h.o.Submit()
	s := h.waitFor(t, func(s orchestrator.State) bool { return len(s.Messages) == 3 && !s.Busy })

	assert.Equal(t, core.MessageRoleUser, s.Messages[1].Role)
	assert.Equal(t, "I feel anxious today", s.Messages[1].Content)
	assert.Equal(t, core.MessageRoleAssistant, s.Messages[2].Role)
	assert.Equal(t, "I hear you.", s.Messages[2].Content)
	assert.Empty(t, s.Draft)
	assert.Equal(t, int32(1), h.chat.calls.Load())
}

func TestSubmit_UnavailableScenario(t *testing.T) {
	h := start(t, unhealthy())

	h.o.SetDraft("hello")
	h.o.Submit()
	s := h.waitFor(t, func(s orchestrator.State) bool { return len(s.Messages) == 3 && !s.Busy })

	assert.Equal(t, "hello", s.Messages[1].Content)
	assert.Equal(t, "⚠️ Ollama is not connected. Please make sure it is running.", s.Messages[2].Content)
	assert.Zero(t, h.chat.calls.Load())
}

func TestSubmit_EmptyDraftIsNoop(t *testing.T) {
	h := start(t)

	h.o.SetDraft("   ")
	h.o.Submit()
	h.barrier(t)

	s := h.o.Snapshot()
	assert.Len(t, s.Messages, 1)
	assert.False(t, s.Busy)
	assert.Equal(t, "   ", s.Draft)
	assert.Zero(t, h.chat.calls.Load())
}

func TestSubmit_RejectedWhileBusy(t *testing.T) {
	h := start(t, gated())

	h.o.SetDraft("first")
	h.o.Submit()
	h.waitFor(t, func(s orchestrator.State) bool { return s.Busy })

	h.o.SetDraft("second")
	h.o.Submit()
	h.barrier(t)

	s := h.o.Snapshot()
	assert.True(t, s.Busy)
	assert.Len(t, s.Messages, 2)
	assert.Equal(t, "second", s.Draft)

	h.release()
	s = h.waitFor(t, func(s orchestrator.State) bool { return !s.Busy })
	assert.Len(t, s.Messages, 3)
	assert.Equal(t, int32(1), h.chat.calls.Load())
}

func TestSubmit_TimeoutYieldsFailureText(t *testing.T) {
	h := start(t, gated(), withRequestTimeout(20*time.Millisecond))

	h.o.SetDraft("hello")
	h.o.Submit()
	s := h.waitFor(t, func(s orchestrator.State) bool { return len(s.Messages) == 3 && !s.Busy })

	assert.Equal(t, "Sorry! Something went wrong.", s.Messages[2].Content)
}

func TestSwitchLanguage_ResetsToSingleGreeting(t *testing.T) {
	h := start(t)
	h.o.SetDraft("hello")
	h.o.Submit()
	h.waitFor(t, func(s orchestrator.State) bool { return len(s.Messages) == 3 && !s.Busy })

	h.o.SwitchLanguage()
	s := h.waitFor(t, func(s orchestrator.State) bool { return s.Language == core.LanguageUrdu })

	require.Len(t, s.Messages, 1)
	assert.Equal(t, core.Profile(core.LanguageUrdu).Greeting, s.Messages[0].Content)
	assert.Equal(t, "ur-PK", s.Locale)
	assert.Equal(t, "English", s.ToggleLabel)
	require.Eventually(t, func() bool { return h.health.probes.Load() == 2 }, time.Second, 2*time.Millisecond)

	h.o.SwitchLanguage()
	s = h.waitFor(t, func(s orchestrator.State) bool { return s.Language == core.LanguageEnglish })
	require.Len(t, s.Messages, 1)
	assert.Equal(t, core.Profile(core.LanguageEnglish).Greeting, s.Messages[0].Content)
}

func TestSwitchLanguage_MidSendKeepsLateReply(t *testing.T) {
	h := start(t, gated())
	h.o.SetDraft("hello")
	h.o.Submit()
	h.waitFor(t, func(s orchestrator.State) bool { return s.Busy })

	h.o.SwitchLanguage()
	s := h.waitFor(t, func(s orchestrator.State) bool { return s.Language == core.LanguageUrdu })
	assert.Len(t, s.Messages, 1)
	assert.True(t, s.Busy)

	h.release()
	s = h.waitFor(t, func(s orchestrator.State) bool { return !s.Busy })
	require.Len(t, s.Messages, 2)
	assert.Equal(t, "I hear you.", s.Messages[1].Content)
}

func TestSwitchLanguage_MidSendDiscardsStaleReply(t *testing.T) {
	h := start(t, gated(), withDiscardStale())
	h.o.SetDraft("hello")
	h.o.Submit()
	h.waitFor(t, func(s orchestrator.State) bool { return s.Busy })

	h.o.SwitchLanguage()
	h.waitFor(t, func(s orchestrator.State) bool { return s.Language == core.LanguageUrdu })

	h.release()
	s := h.waitFor(t, func(s orchestrator.State) bool { return !s.Busy })
	require.Len(t, s.Messages, 1)
	assert.Equal(t, core.Profile(core.LanguageUrdu).Greeting, s.Messages[0].Content)
}

func TestVoiceCapture_TranscriptReplacesDraft(t *testing.T) {
	h := start(t)
	h.o.SetDraft("old text")

	h.o.BeginVoiceCapture()
	h.waitFor(t, func(s orchestrator.State) bool { return s.Listening })
	assert.Equal(t, stt.RecognitionConfig{Lang: "en-US", InterimResults: false, MaxAlternatives: 1}, h.recognizer.config)

	h.recognizer.send(stt.RecognitionEvent{Type: stt.RecognitionResult, Transcript: "I am okay"})
	h.recognizer.send(stt.RecognitionEvent{Type: stt.RecognitionEnd})
	s := h.waitFor(t, func(s orchestrator.State) bool { return !s.Listening })

	assert.Equal(t, "I am okay", s.Draft)
	assert.Len(t, s.Messages, 1)
	assert.Zero(t, h.chat.calls.Load())
}

func TestVoiceCapture_NoSpeechKeepsDraft(t *testing.T) {
	h := start(t)
	h.o.SetDraft("old text")

	h.o.BeginVoiceCapture()
	h.waitFor(t, func(s orchestrator.State) bool { return s.Listening })
	h.recognizer.send(stt.RecognitionEvent{Type: stt.RecognitionEnd})
	s := h.waitFor(t, func(s orchestrator.State) bool { return !s.Listening })

	assert.Equal(t, "old text", s.Draft)
}

func TestVoiceCapture_ErrorClearsListening(t *testing.T) {
	h := start(t)

	h.o.BeginVoiceCapture()
	h.waitFor(t, func(s orchestrator.State) bool { return s.Listening })
	h.recognizer.send(stt.RecognitionEvent{Type: stt.RecognitionError, Error: "network"})

	h.waitFor(t, func(s orchestrator.State) bool { return !s.Listening })
}

func TestVoiceCapture_OneAtATime(t *testing.T) {
	h := start(t)

	h.o.BeginVoiceCapture()
	h.o.BeginVoiceCapture()
	h.barrier(t)

	assert.Equal(t, 1, h.recognizer.startCount())
	assert.True(t, h.o.Snapshot().Listening)
}

func TestVoiceCapture_UnavailableRaisesLocalizedNotice(t *testing.T) {
	h := start(t, withoutRecognizer())

	h.o.BeginVoiceCapture()
	s := h.waitFor(t, func(s orchestrator.State) bool { return s.Notice != "" })
	assert.Equal(t, "Speech Recognition is not supported", s.Notice)
	assert.False(t, s.Listening)

	h.o.DismissNotice()
	h.waitFor(t, func(s orchestrator.State) bool { return s.Notice == "" })

	h.o.SwitchLanguage()
	h.o.BeginVoiceCapture()
	s = h.waitFor(t, func(s orchestrator.State) bool { return s.Notice != "" })
	assert.Equal(t, core.Profile(core.LanguageUrdu).SpeechUnavailableNotice, s.Notice)
}

func TestSpeech_RepliesSpokenOnlyWhenToggled(t *testing.T) {
	cases := []struct {
		name   string
		toggle func(o *orchestrator.Orchestrator)
		spoken bool
	}{
		{"silent", func(*orchestrator.Orchestrator) {}, false},
		{"read aloud", func(o *orchestrator.Orchestrator) { o.ToggleReadAloud() }, true},
		{"always speak", func(o *orchestrator.Orchestrator) { o.ToggleAlwaysSpeak() }, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := start(t)
			tc.toggle(h.o)
			h.o.SetDraft("hello")
			h.o.Submit()
			h.waitFor(t, func(s orchestrator.State) bool { return len(s.Messages) == 3 && !s.Busy })

			reqs := h.synth.requests()
			if !tc.spoken {
				assert.Empty(t, reqs)
				return
			}
			require.Len(t, reqs, 1)
			assert.Equal(t, tts.SpeechRequest{Text: "I hear you.", Lang: "en-US", Rate: 1}, reqs[0])
		})
	}
}

func TestSpeech_ReplyUsesSendTimeLocale(t *testing.T) {
	h := start(t, gated())
	h.o.ToggleAlwaysSpeak()
	h.o.SetDraft("hello")
	h.o.Submit()
	h.waitFor(t, func(s orchestrator.State) bool { return s.Busy })
	h.o.SwitchLanguage()
	h.waitFor(t, func(s orchestrator.State) bool { return s.Language == core.LanguageUrdu })

	h.release()
	h.waitFor(t, func(s orchestrator.State) bool { return !s.Busy })

	reqs := h.synth.requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "en-US", reqs[0].Lang)
}

func TestSpeakMessage(t *testing.T) {
	h := start(t)
	greeting := h.o.Snapshot().Messages[0]

	h.o.SpeakMessage("missing")
	h.o.SpeakMessage(greeting.ID)
	h.barrier(t)

	reqs := h.synth.requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, greeting.Content, reqs[0].Text)
}

func TestSubscribe_DeliversSessionEvents(t *testing.T) {
	h := start(t)
	events, cancel := h.o.Subscribe()
	defer cancel()

	h.o.SetDraft("hello")
	h.o.Submit()

	var sawState, sawReply bool
	timeout := time.After(2 * time.Second)
	for !(sawState && sawReply) {
		select {
		case packet := <-events:
			assert.Equal(t, "orchestrator", packet.Relayer)
			switch ev := packet.Event.(type) {
			case *orchestrator.StateChangedEvent:
				sawState = true
			case *session.MessageAppendedEvent:
				if ev.Message.Role == core.MessageRoleAssistant {
					assert.Equal(t, "I hear you.", ev.Message.Content)
					sawReply = true
				}
			}
		case <-timeout:
			t.Fatalf("missing events: state=%v reply=%v", sawState, sawReply)
		}
	}
}

func TestRun_ShutdownClosesSubscribers(t *testing.T) {
	h := start(t)
	events, _ := h.o.Subscribe()

	h.cancel()
	err := <-h.runErr
	h.runErr <- err // for cleanup

	assert.ErrorIs(t, err, context.Canceled)
	require.Eventually(t, func() bool {
		select {
		case _, ok := <-events:
			return !ok
		default:
			return false
		}
	}, time.Second, time.Millisecond)

	late, _ := h.o.Subscribe()
	_, ok := <-late
	assert.False(t, ok)
	assert.Error(t, h.o.Run(context.Background()))
}

func TestSnapshot_IsACopy(t *testing.T) {
	h := start(t)

	s := h.o.Snapshot()
	s.Messages[0].Content = "mutated"

	assert.NotEqual(t, "mutated", h.o.Snapshot().Messages[0].Content)
}
