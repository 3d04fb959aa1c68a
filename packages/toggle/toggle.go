// Package toggle holds the process-wide scraping switch shared by the cycle
// runner and the control plane.
package toggle

import (
	"log/slog"
	"sync/atomic"

	"scrapemonitor/packages/metrics"
)

const (
	SourceOperator       = "operator"
	SourceCircuitBreaker = "circuit_breaker"
	SourceStartup        = "startup"
)

// Toggle is read once per loop step by the runner and written at any time by
// an operator.
type Toggle interface {
	IsEnabled() bool
	SetEnabled(enabled bool)
}

// State is a Toggle backed by an atomic boolean. The zero value is disabled.
type State struct {
	enabled atomic.Bool
	logger  *slog.Logger
}

// New returns a disabled State. A nil logger means slog.Default().
func New(logger *slog.Logger) *State {
	s := &State{logger: logger}
	metrics.SetEnabled(false)
	return s
}

func (s *State) IsEnabled() bool {
	return s.enabled.Load()
}

func (s *State) SetEnabled(enabled bool) {
	s.SetEnabledBy(enabled, SourceOperator)
}

// SetEnabledBy stores the value and records who changed it.
func (s *State) SetEnabledBy(enabled bool, source string) {
	previous := s.enabled.Swap(enabled)
	metrics.SetEnabled(enabled)
	s.log().Info("Scraping toggled",
		"event", "scraping_toggled",
		"enabled", enabled,
		"previous", previous,
		"source", source,
	)
}

func (s *State) log() *slog.Logger {
	if s.logger != nil {
		return s.logger
	}
	return slog.Default()
}
