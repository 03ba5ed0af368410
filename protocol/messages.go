package protocol

import "encoding/json"

// MessageType enumerates all session wire message types.
type MessageType string

const (
	// Client -> Server
	MsgHello               MessageType = "hello"
	MsgSetDraft            MessageType = "set_draft"
	MsgSubmit              MessageType = "submit"
	MsgBeginVoiceCapture   MessageType = "begin_voice_capture"
	MsgToggleReadAloud     MessageType = "toggle_read_aloud"
	MsgToggleAlwaysSpeak   MessageType = "toggle_always_speak"
	MsgSwitchLanguage      MessageType = "switch_language"
	MsgRefreshAvailability MessageType = "refresh_availability"
	MsgDismissNotice       MessageType = "dismiss_notice"
	MsgSpeakMessage        MessageType = "speak_message"
	MsgSpeechResult        MessageType = "speech_result"
	MsgSpeechEnd           MessageType = "speech_end"
	MsgSpeechError         MessageType = "speech_error"

	// Server -> Client
	MsgState        MessageType = "state"
	MsgEvent        MessageType = "event"
	MsgSpeechListen MessageType = "speech_listen"
	MsgSpeechStop   MessageType = "speech_stop"
	MsgSpeechSpeak  MessageType = "speech_speak"
	MsgAudio        MessageType = "audio"
	MsgError        MessageType = "error"
)

// Envelope is the outer JSON wrapper for all WebSocket text messages.
type Envelope struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// --- Client -> Server payloads ---

// Capabilities lists the speech features the client's platform offers.
type Capabilities struct {
	SpeechRecognition bool `json:"speech_recognition"`
	SpeechSynthesis   bool `json:"speech_synthesis"`
}

// HelloPayload is sent once by the client immediately after connecting.
type HelloPayload struct {
	Capabilities Capabilities `json:"capabilities"`
}

type SetDraftPayload struct {
	Text string `json:"text"`
}

// SubmitPayload optionally carries the text to send; when set it replaces the
// draft before submitting.
type SubmitPayload struct {
	Text *string `json:"text,omitempty"`
}

type SpeakMessagePayload struct {
	MessageID string `json:"message_id"`
}

type SpeechResultPayload struct {
	CaptureID  string `json:"capture_id"`
	Transcript string `json:"transcript"`
}

type SpeechEndPayload struct {
	CaptureID string `json:"capture_id"`
}

type SpeechErrorPayload struct {
	CaptureID string `json:"capture_id"`
	Error     string `json:"error"`
}

// --- Server -> Client payloads ---

// EventPayload carries a session event for external consumers.
type EventPayload struct {
	EventID   string          `json:"event_id"`
	PacketID  string          `json:"packet_id"`
	Timestamp string          `json:"ts"`
	Data      json.RawMessage `json:"data"`
}

// SpeechListenPayload asks the client to start one recognition session.
type SpeechListenPayload struct {
	CaptureID       string `json:"capture_id"`
	Lang            string `json:"lang"`
	InterimResults  bool   `json:"interim_results"`
	MaxAlternatives int    `json:"max_alternatives"`
}

type SpeechStopPayload struct {
	CaptureID string `json:"capture_id"`
}

// SpeechSpeakPayload queues one utterance on the client's synthesizer.
type SpeechSpeakPayload struct {
	Text string  `json:"text"`
	Lang string  `json:"lang"`
	Rate float64 `json:"rate"`
}

// AudioPayload announces the binary frame that immediately follows it.
type AudioPayload struct {
	ContentType string `json:"content_type"`
	SampleRate  int    `json:"sample_rate,omitempty"`
	Size        int    `json:"size"`
}

type ErrorPayload struct {
	Error string `json:"error"`
}
