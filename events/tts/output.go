package tts

// SpeakRequestedEvent is emitted whenever text is handed to speech output.
type SpeakRequestedEvent struct {
	Text   string `json:"text"`
	Locale string `json:"locale"`
}

func (e *SpeakRequestedEvent) GetId() string {
	return "tts.speak_requested"
}
