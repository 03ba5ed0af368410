package websocket_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	gws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aitherapist/core"
	"aitherapist/handlers/availability"
	"aitherapist/handlers/conversation"
	"aitherapist/handlers/stt"
	"aitherapist/handlers/tts"
	"aitherapist/orchestrator"
	"aitherapist/protocol"
	ws "aitherapist/transports/websocket"
)

type stubChat struct{ reply string }

func (s stubChat) Chat(context.Context, core.ChatRequest) (string, error) { return s.reply, nil }
func (s stubChat) Name() string                                          { return "stub" }

type healthy struct{}

func (healthy) CheckHealth(context.Context) error { return nil }

type env struct {
	hub     *ws.Hub
	session *orchestrator.Orchestrator
	srv     *httptest.Server
}

func setup(t *testing.T) *env {
	t.Helper()
	logger := core.NewNopLogger()

	hub := ws.NewHub(ws.DefaultConfig(), logger)
	session := orchestrator.New(
		orchestrator.DefaultConfig(),
		availability.NewMonitor(healthy{}, availability.DefaultConfig(), logger),
		conversation.NewPipeline(stubChat{reply: "I hear you."}, conversation.DefaultConfig(), logger),
		stt.NewListener(hub, stt.DefaultConfig(), logger),
		tts.NewSpeaker(hub, tts.DefaultConfig(), logger),
		logger,
	)
	hub.Bind(session)

	ctx, cancel := context.WithCancel(context.Background())
	go session.Run(ctx)
	go hub.Run(ctx)

	srv := httptest.NewServer(ws.NewServer("", hub, logger).Handler())
	t.Cleanup(func() {
		srv.Close()
		cancel()
	})
	return &env{hub: hub, session: session, srv: srv}
}

func (e *env) dial(t *testing.T) *gws.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(e.srv.URL, "http") + "/ws"
	conn, _, err := gws.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func send(t *testing.T, conn *gws.Conn, msgType protocol.MessageType, payload interface{}) {
	t.Helper()
	data, err := protocol.Marshal(msgType, payload)
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(gws.TextMessage, data))
}

// expect reads text frames until one of msgType satisfies match.
func expect(t *testing.T, conn *gws.Conn, msgType protocol.MessageType, match func(json.RawMessage) bool) json.RawMessage {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	for {
		kind, data, err := conn.ReadMessage()
		require.NoError(t, err, "waiting for %s", msgType)
		if kind != gws.TextMessage {
			continue
		}
		got, raw, err := protocol.Unmarshal(data)
		require.NoError(t, err)
		if got == msgType && (match == nil || match(raw)) {
			return raw
		}
	}
}

func expectState(t *testing.T, conn *gws.Conn, match func(orchestrator.State) bool) orchestrator.State {
	t.Helper()
	var state orchestrator.State
	expect(t, conn, protocol.MsgState, func(raw json.RawMessage) bool {
		s, err := protocol.UnmarshalPayload[orchestrator.State](raw)
		require.NoError(t, err)
		state = s
		return match(s)
	})
	return state
}

func hello(t *testing.T, conn *gws.Conn, caps protocol.Capabilities) {
	t.Helper()
	send(t, conn, protocol.MsgHello, protocol.HelloPayload{Capabilities: caps})
}

func TestHub_SendsStateOnConnect(t *testing.T) {
	e := setup(t)
	conn := e.dial(t)

	state := expectState(t, conn, func(orchestrator.State) bool { return true })

	assert.Equal(t, e.session.SessionID(), state.SessionID)
	assert.Equal(t, core.LanguageEnglish, state.Language)
	require.Len(t, state.Messages, 1)
	assert.Equal(t, core.Profile(core.LanguageEnglish).Greeting, state.Messages[0].Content)
	assert.Eventually(t, func() bool { return e.hub.ClientCount() == 1 }, time.Second, 10*time.Millisecond)
}

func TestHub_SubmitRoundTrip(t *testing.T) {
	e := setup(t)
	conn := e.dial(t)
	hello(t, conn, protocol.Capabilities{})
	expectState(t, conn, func(s orchestrator.State) bool { return s.Availability == core.AvailabilityAvailable })

	text := "I feel anxious today"
	send(t, conn, protocol.MsgSubmit, protocol.SubmitPayload{Text: &text})

	raw := expect(t, conn, protocol.MsgEvent, func(raw json.RawMessage) bool {
		p, err := protocol.UnmarshalPayload[protocol.EventPayload](raw)
		require.NoError(t, err)
		return p.EventID == "session.message_appended"
	})
	event, err := protocol.UnmarshalPayload[protocol.EventPayload](raw)
	require.NoError(t, err)
	assert.NotEmpty(t, event.PacketID)
	assert.Contains(t, string(event.Data), text)

	state := expectState(t, conn, func(s orchestrator.State) bool { return len(s.Messages) == 3 && !s.Busy })
	assert.Equal(t, text, state.Messages[1].Content)
	assert.Equal(t, "I hear you.", state.Messages[2].Content)
	assert.Empty(t, state.Draft)
}

func TestHub_VoiceCapture(t *testing.T) {
	e := setup(t)
	conn := e.dial(t)
	hello(t, conn, protocol.Capabilities{SpeechRecognition: true})

	send(t, conn, protocol.MsgBeginVoiceCapture, nil)
	raw := expect(t, conn, protocol.MsgSpeechListen, nil)
	listen, err := protocol.UnmarshalPayload[protocol.SpeechListenPayload](raw)
	require.NoError(t, err)
	assert.Equal(t, "en-US", listen.Lang)
	assert.False(t, listen.InterimResults)
	assert.Equal(t, 1, listen.MaxAlternatives)
	require.NotEmpty(t, listen.CaptureID)

	expectState(t, conn, func(s orchestrator.State) bool { return s.Listening })

	send(t, conn, protocol.MsgSpeechResult, protocol.SpeechResultPayload{CaptureID: listen.CaptureID, Transcript: "I am okay"})
	send(t, conn, protocol.MsgSpeechEnd, protocol.SpeechEndPayload{CaptureID: listen.CaptureID})

	state := expectState(t, conn, func(s orchestrator.State) bool { return !s.Listening })
	assert.Equal(t, "I am okay", state.Draft)
	assert.Len(t, state.Messages, 1)
}

func TestHub_ResultForUnknownCaptureIsIgnored(t *testing.T) {
	e := setup(t)
	conn := e.dial(t)
	hello(t, conn, protocol.Capabilities{SpeechRecognition: true})
	send(t, conn, protocol.MsgBeginVoiceCapture, nil)
	raw := expect(t, conn, protocol.MsgSpeechListen, nil)
	listen, err := protocol.UnmarshalPayload[protocol.SpeechListenPayload](raw)
	require.NoError(t, err)

	send(t, conn, protocol.MsgSpeechResult, protocol.SpeechResultPayload{CaptureID: "nope", Transcript: "ignored"})
	send(t, conn, protocol.MsgSpeechResult, protocol.SpeechResultPayload{CaptureID: listen.CaptureID, Transcript: "kept"})
	send(t, conn, protocol.MsgSpeechEnd, protocol.SpeechEndPayload{CaptureID: listen.CaptureID})

	state := expectState(t, conn, func(s orchestrator.State) bool { return s.Draft != "" && !s.Listening })
	assert.Equal(t, "kept", state.Draft)
}

func TestHub_NoRecognitionCapabilitySetsNotice(t *testing.T) {
	e := setup(t)
	conn := e.dial(t)
	hello(t, conn, protocol.Capabilities{SpeechSynthesis: true})

	send(t, conn, protocol.MsgBeginVoiceCapture, nil)

	state := expectState(t, conn, func(s orchestrator.State) bool { return s.Notice != "" })
	assert.Equal(t, "Speech Recognition is not supported", state.Notice)
	assert.False(t, state.Listening)

	send(t, conn, protocol.MsgDismissNotice, nil)
	expectState(t, conn, func(s orchestrator.State) bool { return s.Notice == "" })
}

func TestHub_DisconnectEndsCapture(t *testing.T) {
	e := setup(t)
	conn := e.dial(t)
	hello(t, conn, protocol.Capabilities{SpeechRecognition: true})
	send(t, conn, protocol.MsgBeginVoiceCapture, nil)
	expect(t, conn, protocol.MsgSpeechListen, nil)
	expectState(t, conn, func(s orchestrator.State) bool { return s.Listening })

	conn.Close()

	assert.Eventually(t, func() bool {
		return !e.session.Snapshot().Listening && e.hub.ClientCount() == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestHub_ReadAloudSendsSpeech(t *testing.T) {
	e := setup(t)
	conn := e.dial(t)
	hello(t, conn, protocol.Capabilities{SpeechSynthesis: true})
	expectState(t, conn, func(s orchestrator.State) bool { return s.Availability == core.AvailabilityAvailable })

	send(t, conn, protocol.MsgToggleReadAloud, nil)
	expectState(t, conn, func(s orchestrator.State) bool { return s.ReadAloud })

	text := "hello"
	send(t, conn, protocol.MsgSubmit, protocol.SubmitPayload{Text: &text})

	raw := expect(t, conn, protocol.MsgSpeechSpeak, nil)
	speak, err := protocol.UnmarshalPayload[protocol.SpeechSpeakPayload](raw)
	require.NoError(t, err)
	assert.Equal(t, "I hear you.", speak.Text)
	assert.Equal(t, "en-US", speak.Lang)
	assert.Equal(t, 1.0, speak.Rate)
}

func TestHub_SpeakMessage(t *testing.T) {
	e := setup(t)
	conn := e.dial(t)
	hello(t, conn, protocol.Capabilities{SpeechSynthesis: true})
	state := expectState(t, conn, func(orchestrator.State) bool { return true })

	send(t, conn, protocol.MsgSpeakMessage, protocol.SpeakMessagePayload{MessageID: state.Messages[0].ID})

	raw := expect(t, conn, protocol.MsgSpeechSpeak, nil)
	speak, err := protocol.UnmarshalPayload[protocol.SpeechSpeakPayload](raw)
	require.NoError(t, err)
	assert.Equal(t, core.Profile(core.LanguageEnglish).Greeting, speak.Text)
}

func TestHub_SwitchLanguage(t *testing.T) {
	e := setup(t)
	conn := e.dial(t)

	send(t, conn, protocol.MsgSwitchLanguage, nil)

	state := expectState(t, conn, func(s orchestrator.State) bool { return s.Language == core.LanguageUrdu })
	assert.Equal(t, "ur-PK", state.Locale)
	require.Len(t, state.Messages, 1)
	assert.Equal(t, core.Profile(core.LanguageUrdu).Greeting, state.Messages[0].Content)
}

func TestHub_PlayAudio(t *testing.T) {
	e := setup(t)
	conn := e.dial(t)
	expectState(t, conn, func(orchestrator.State) bool { return true })

	clip := core.AudioClip{Data: []byte{0x49, 0x44, 0x33}, Format: core.MP3}
	require.NoError(t, e.hub.PlayAudio(clip))

	raw := expect(t, conn, protocol.MsgAudio, nil)
	header, err := protocol.UnmarshalPayload[protocol.AudioPayload](raw)
	require.NoError(t, err)
	assert.Equal(t, "audio/mpeg", header.ContentType)
	assert.Equal(t, 3, header.Size)

	kind, data, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, gws.BinaryMessage, kind)
	assert.Equal(t, clip.Data, data)
}

func TestHub_PlayAudioWithoutClients(t *testing.T) {
	e := setup(t)
	assert.Error(t, e.hub.PlayAudio(core.AudioClip{Data: []byte{1}, Format: core.MP3}))
	assert.ErrorIs(t, e.hub.Enqueue(tts.SpeechRequest{Text: "hi"}), core.ErrSpeechCapabilityUnavailable)
}

func TestHub_UnknownMessageReturnsError(t *testing.T) {
	e := setup(t)
	conn := e.dial(t)

	require.NoError(t, conn.WriteMessage(gws.TextMessage, []byte(`{"type":"bogus"}`)))

	raw := expect(t, conn, protocol.MsgError, nil)
	p, err := protocol.UnmarshalPayload[protocol.ErrorPayload](raw)
	require.NoError(t, err)
	assert.Contains(t, p.Error, "bogus")
}

func TestServer_Healthz(t *testing.T) {
	e := setup(t)

	resp, err := http.Get(e.srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", string(body))
}
