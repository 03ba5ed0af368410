package availability

import "aitherapist/core"

type AvailabilityConfig struct {
	ProbeTimeout core.Duration `json:"probe_timeout"` // Upper bound for a single health probe; exceeding it counts as unavailable.
}

// DefaultConfig returns an AvailabilityConfig with a 5 second probe bound.
func DefaultConfig() AvailabilityConfig {
	return AvailabilityConfig{
		ProbeTimeout: core.Seconds(5),
	}
}
