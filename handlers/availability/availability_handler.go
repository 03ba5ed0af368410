package availability

import (
	"context"
	"fmt"

	"aitherapist/core"
)

// HealthChecker is implemented by chat backends that expose a status endpoint.
type HealthChecker interface {
	CheckHealth(ctx context.Context) error
}

// Monitor answers whether the chat backend can take a request right now.
// It holds no result between calls; the caller caches the answer.
type Monitor struct {
	checker HealthChecker
	config  AvailabilityConfig
	logger  *core.Logger
}

func NewMonitor(checker HealthChecker, config AvailabilityConfig, logger *core.Logger) *Monitor {
	if config.ProbeTimeout <= 0 {
		config.ProbeTimeout = DefaultConfig().ProbeTimeout
	}
	if logger == nil {
		logger = core.GetLogger()
	}
	return &Monitor{
		checker: checker,
		config:  config,
		logger:  logger.With(map[string]interface{}{"component": "availability"}),
	}
}

// Check runs one bounded probe. Every failure, including a panic inside the
// checker, maps to AvailabilityUnavailable.
func (m *Monitor) Check(ctx context.Context) (result core.Availability) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("health probe panicked", "panic", fmt.Sprint(r))
			result = core.AvailabilityUnavailable
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, m.config.ProbeTimeout.Std())
	defer cancel()

	if err := m.checker.CheckHealth(ctx); err != nil {
		m.logger.Warn("backend unavailable", "error", err)
		return core.AvailabilityUnavailable
	}
	m.logger.Debug("backend available")
	return core.AvailabilityAvailable
}
