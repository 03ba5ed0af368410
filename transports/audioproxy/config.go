package audioproxy

import "aitherapist/core"

type Config struct {
	Addr         string        `json:"addr"`           // Listen address; the session server expects :5000.
	Timeout      core.Duration `json:"timeout"`        // Bound for one synthesis call.
	MaxBodyBytes int64         `json:"max_body_bytes"` // Largest accepted request body.
	AllowOrigin  string        `json:"allow_origin"`
}

func DefaultConfig() Config {
	return Config{
		Addr:         ":5000",
		Timeout:      core.Seconds(30),
		MaxBodyBytes: 64 << 10,
		AllowOrigin:  "*",
	}
}
