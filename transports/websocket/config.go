package websocket

import "aitherapist/core"

type Config struct {
	Addr            string        `json:"addr"`              // Listen address for the session server.
	WriteTimeout    core.Duration `json:"write_timeout"`     // Deadline for a single frame write.
	SendBuffer      int           `json:"send_buffer"`       // Outbound frames queued per client before it is considered stalled.
	MaxMessageBytes int64         `json:"max_message_bytes"` // Largest inbound frame accepted from a client.
}

func DefaultConfig() Config {
	return Config{
		Addr:            ":8080",
		WriteTimeout:    core.Seconds(10),
		SendBuffer:      64,
		MaxMessageBytes: 64 << 10,
	}
}
