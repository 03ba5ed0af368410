package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"aitherapist/core"
	"aitherapist/handlers/stt"
	"aitherapist/handlers/tts"
	"aitherapist/orchestrator"
	"aitherapist/protocol"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Session is the orchestrator surface the hub drives.
type Session interface {
	SetDraft(text string)
	Submit()
	BeginVoiceCapture()
	ToggleReadAloud()
	ToggleAlwaysSpeak()
	SwitchLanguage()
	RefreshAvailability()
	DismissNotice()
	SpeakMessage(id string)
	Snapshot() orchestrator.State
	Subscribe() (<-chan *core.EventPacket, func())
}

type captureRoute struct {
	client *client
	emit   func(stt.RecognitionEvent)
}

// Hub bridges renderer connections and the session. It mirrors state and
// events to every client and doubles as the platform speech capability:
// recognition and synthesis are delegated to the most recently connected
// client that declared support for them.
type Hub struct {
	config   Config
	logger   *core.Logger
	upgrader websocket.Upgrader
	session  Session
	events   <-chan *core.EventPacket
	unsub    func()

	mu      sync.RWMutex
	clients map[string]*client
	nextSeq uint64

	capturesMu sync.Mutex
	captures   map[string]captureRoute
}

func NewHub(config Config, logger *core.Logger) *Hub {
	defaults := DefaultConfig()
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = defaults.WriteTimeout
	}
	if config.SendBuffer <= 0 {
		config.SendBuffer = defaults.SendBuffer
	}
	if config.MaxMessageBytes <= 0 {
		config.MaxMessageBytes = defaults.MaxMessageBytes
	}
	if logger == nil {
		logger = core.GetLogger()
	}
	return &Hub{
		config: config,
		logger: logger.With(map[string]interface{}{"component": "ws_hub"}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients:  make(map[string]*client),
		captures: make(map[string]captureRoute),
	}
}

// Bind attaches the session and subscribes to it. It must be called before
// Run and before clients connect.
func (h *Hub) Bind(session Session) {
	h.session = session
	h.events, h.unsub = session.Subscribe()
}

// Run forwards session events to clients until ctx is done or the session
// stops publishing.
func (h *Hub) Run(ctx context.Context) error {
	if h.session == nil {
		return errors.New("websocket hub: no session bound")
	}
	defer h.unsub()

	for {
		select {
		case <-ctx.Done():
			return nil
		case packet, ok := <-h.events:
			if !ok {
				return nil
			}
			h.forward(packet)
		}
	}
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) forward(packet *core.EventPacket) {
	if ev, ok := packet.Event.(*orchestrator.StateChangedEvent); ok {
		h.broadcast(protocol.MsgState, ev.State)
		return
	}
	data, err := sonic.Marshal(packet.Event)
	if err != nil {
		h.logger.Error("marshal event failed", "event", packet.Event.GetId(), "error", err)
		return
	}
	h.broadcast(protocol.MsgEvent, protocol.EventPayload{
		EventID:   packet.Event.GetId(),
		PacketID:  packet.Uid,
		Timestamp: packet.Timestamp.UTC().Format(time.RFC3339Nano),
		Data:      json.RawMessage(data),
	})
}

func (h *Hub) broadcast(msgType protocol.MessageType, payload interface{}) {
	data, err := protocol.Marshal(msgType, payload)
	if err != nil {
		h.logger.Error("marshal broadcast failed", "type", string(msgType), "error", err)
		return
	}

	h.mu.RLock()
	targets := make([]*client, 0, len(h.clients))
	for _, c := range h.clients {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		if err := c.enqueue(frame{websocket.TextMessage, data}); err != nil {
			h.logger.Warn("dropping message for client", "client", c.id, "type", string(msgType), "error", err)
		}
	}
}

// pick returns the newest client for which want is true.
func (h *Hub) pick(want func(protocol.Capabilities) bool) *client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	var best *client
	for _, c := range h.clients {
		if want != nil && !want(c.caps) {
			continue
		}
		if best == nil || c.seq > best.seq {
			best = c
		}
	}
	return best
}

// Recognize implements stt.Recognizer by asking a client to run the
// browser's recognizer.
func (h *Hub) Recognize(ctx context.Context, config stt.RecognitionConfig, emit func(stt.RecognitionEvent)) (func(), error) {
	c := h.pick(func(caps protocol.Capabilities) bool { return caps.SpeechRecognition })
	if c == nil {
		return nil, core.ErrSpeechCapabilityUnavailable
	}

	captureID := uuid.NewString()
	h.capturesMu.Lock()
	h.captures[captureID] = captureRoute{client: c, emit: emit}
	h.capturesMu.Unlock()

	err := c.sendJSON(protocol.MsgSpeechListen, protocol.SpeechListenPayload{
		CaptureID:       captureID,
		Lang:            config.Lang,
		InterimResults:  config.InterimResults,
		MaxAlternatives: config.MaxAlternatives,
	})
	if err != nil {
		h.takeRoute(captureID)
		return nil, err
	}

	stop := func() {
		if route, ok := h.takeRoute(captureID); ok {
			route.client.sendJSON(protocol.MsgSpeechStop, protocol.SpeechStopPayload{CaptureID: captureID})
		}
	}
	return stop, nil
}

func (h *Hub) takeRoute(captureID string) (captureRoute, bool) {
	h.capturesMu.Lock()
	defer h.capturesMu.Unlock()
	route, ok := h.captures[captureID]
	delete(h.captures, captureID)
	return route, ok
}

func (h *Hub) route(captureID string, from *client) (captureRoute, bool) {
	h.capturesMu.Lock()
	defer h.capturesMu.Unlock()
	route, ok := h.captures[captureID]
	if !ok || route.client != from {
		return captureRoute{}, false
	}
	return route, true
}

// Enqueue implements tts.Synthesizer by queueing the utterance on a client.
func (h *Hub) Enqueue(req tts.SpeechRequest) error {
	c := h.pick(func(caps protocol.Capabilities) bool { return caps.SpeechSynthesis })
	if c == nil {
		return core.ErrSpeechCapabilityUnavailable
	}
	return c.sendJSON(protocol.MsgSpeechSpeak, protocol.SpeechSpeakPayload{Text: req.Text, Lang: req.Lang, Rate: req.Rate})
}

// PlayAudio implements tts.AudioSink: an audio announcement followed by the
// clip as one binary frame.
func (h *Hub) PlayAudio(clip core.AudioClip) error {
	c := h.pick(nil)
	if c == nil {
		return errors.New("websocket hub: no client to play audio")
	}
	header, err := protocol.Marshal(protocol.MsgAudio, protocol.AudioPayload{
		ContentType: clip.Format.ContentType(),
		SampleRate:  clip.SampleRate,
		Size:        len(clip.Data),
	})
	if err != nil {
		return err
	}
	return c.enqueue(frame{websocket.TextMessage, header}, frame{websocket.BinaryMessage, clip.Data})
}

// ServeHTTP upgrades the request and serves one client until it disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.session == nil {
		http.Error(w, "session not ready", http.StatusServiceUnavailable)
		return
	}
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("upgrade failed", "error", err)
		return
	}
	conn.SetReadLimit(h.config.MaxMessageBytes)

	h.mu.Lock()
	h.nextSeq++
	c := newClient(uuid.NewString(), h.nextSeq, conn, h.config.SendBuffer, h.logger)
	h.clients[c.id] = c
	h.mu.Unlock()

	h.logger.Info("client connected", "client", c.id, "remote", conn.RemoteAddr().String())
	go c.writePump(h.config.WriteTimeout.Std())
	defer h.disconnect(c)

	if err := c.sendJSON(protocol.MsgState, h.session.Snapshot()); err != nil {
		return
	}

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Warn("client read failed", "client", c.id, "error", err)
			}
			return
		}
		if messageType != websocket.TextMessage {
			h.logger.Debug("ignoring binary frame from client", "client", c.id)
			continue
		}
		if err := h.dispatch(c, data); err != nil {
			h.logger.Warn("bad client message", "client", c.id, "error", err)
			c.sendJSON(protocol.MsgError, protocol.ErrorPayload{Error: err.Error()})
		}
	}
}

func (h *Hub) disconnect(c *client) {
	h.mu.Lock()
	delete(h.clients, c.id)
	h.mu.Unlock()
	c.close()

	// captures running on this client can never finish on their own
	h.capturesMu.Lock()
	var orphaned []captureRoute
	for id, route := range h.captures {
		if route.client == c {
			orphaned = append(orphaned, route)
			delete(h.captures, id)
		}
	}
	h.capturesMu.Unlock()
	for _, route := range orphaned {
		route.emit(stt.RecognitionEvent{Type: stt.RecognitionError, Error: "client disconnected"})
	}
	h.logger.Info("client disconnected", "client", c.id)
}

func (h *Hub) dispatch(c *client, data []byte) error {
	msgType, raw, err := protocol.Unmarshal(data)
	if err != nil {
		return err
	}

	switch msgType {
	case protocol.MsgHello:
		hello, err := protocol.UnmarshalPayload[protocol.HelloPayload](raw)
		if err != nil {
			return err
		}
		h.mu.Lock()
		c.caps = hello.Capabilities
		h.mu.Unlock()
		h.logger.Debug("client capabilities", "client", c.id,
			"speech_recognition", hello.Capabilities.SpeechRecognition,
			"speech_synthesis", hello.Capabilities.SpeechSynthesis)
	case protocol.MsgSetDraft:
		p, err := protocol.UnmarshalPayload[protocol.SetDraftPayload](raw)
		if err != nil {
			return err
		}
		h.session.SetDraft(p.Text)
	case protocol.MsgSubmit:
		p, err := protocol.UnmarshalPayload[protocol.SubmitPayload](raw)
		if err != nil {
			return err
		}
		if p.Text != nil {
			h.session.SetDraft(*p.Text)
		}
		h.session.Submit()
	case protocol.MsgBeginVoiceCapture:
		h.session.BeginVoiceCapture()
	case protocol.MsgToggleReadAloud:
		h.session.ToggleReadAloud()
	case protocol.MsgToggleAlwaysSpeak:
		h.session.ToggleAlwaysSpeak()
	case protocol.MsgSwitchLanguage:
		h.session.SwitchLanguage()
	case protocol.MsgRefreshAvailability:
		h.session.RefreshAvailability()
	case protocol.MsgDismissNotice:
		h.session.DismissNotice()
	case protocol.MsgSpeakMessage:
		p, err := protocol.UnmarshalPayload[protocol.SpeakMessagePayload](raw)
		if err != nil {
			return err
		}
		h.session.SpeakMessage(p.MessageID)
	case protocol.MsgSpeechResult:
		p, err := protocol.UnmarshalPayload[protocol.SpeechResultPayload](raw)
		if err != nil {
			return err
		}
		if route, ok := h.route(p.CaptureID, c); ok {
			route.emit(stt.RecognitionEvent{Type: stt.RecognitionResult, Transcript: p.Transcript})
		}
	case protocol.MsgSpeechEnd:
		p, err := protocol.UnmarshalPayload[protocol.SpeechEndPayload](raw)
		if err != nil {
			return err
		}
		if route, ok := h.route(p.CaptureID, c); ok {
			h.takeRoute(p.CaptureID)
			route.emit(stt.RecognitionEvent{Type: stt.RecognitionEnd})
		}
	case protocol.MsgSpeechError:
		p, err := protocol.UnmarshalPayload[protocol.SpeechErrorPayload](raw)
		if err != nil {
			return err
		}
		if route, ok := h.route(p.CaptureID, c); ok {
			h.takeRoute(p.CaptureID)
			route.emit(stt.RecognitionEvent{Type: stt.RecognitionError, Error: p.Error})
		}
	default:
		return errors.New("unknown message type " + string(msgType))
	}
	return nil
}
