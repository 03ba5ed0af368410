package stt

type CaptureStartedEvent struct {
	Locale string `json:"locale"`
}

func (e *CaptureStartedEvent) GetId() string {
	return "stt.capture_started"
}

type CaptureEndedEvent struct {
	Transcript string `json:"transcript"`
	Error      string `json:"error,omitempty"`
}

func (e *CaptureEndedEvent) GetId() string {
	return "stt.capture_ended"
}
