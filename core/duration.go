package core

import (
	"encoding/json"
	"fmt"
	"time"
)

// Duration is a time.Duration that reads from settings files either as a
// Go duration string ("30s", "250ms") or as a plain number of seconds.
type Duration time.Duration

func Seconds(n int) Duration {
	return Duration(time.Duration(n) * time.Second)
}

func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

func (d Duration) String() string {
	return time.Duration(d).String()
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("duration: %w", err)
	}
	switch v := raw.(type) {
	case float64:
		*d = Duration(v * float64(time.Second))
	case string:
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("duration: %w", err)
		}
		*d = Duration(parsed)
	default:
		return fmt.Errorf("duration: want string or number of seconds, got %s", data)
	}
	return nil
}
