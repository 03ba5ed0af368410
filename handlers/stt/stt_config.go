package stt

import "aitherapist/core"

type STTConfig struct {
	CaptureTimeout core.Duration `json:"capture_timeout"` // Safety cap on a single capture in case the platform never reports an end event.
}

// DefaultConfig returns an STTConfig with a 60 second capture cap.
func DefaultConfig() STTConfig {
	return STTConfig{
		CaptureTimeout: core.Seconds(60),
	}
}
