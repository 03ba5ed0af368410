package tts

type TTSConfig struct {
	Rate      float64 `json:"rate"`      // Speaking rate passed to the platform; 1 is normal speed.
	Normalize bool    `json:"normalize"` // Strip markdown markers and emoji before speaking.
}

// DefaultConfig returns a TTSConfig at normal rate with normalization on.
func DefaultConfig() TTSConfig {
	return TTSConfig{
		Rate:      1,
		Normalize: true,
	}
}
