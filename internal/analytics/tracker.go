// Package analytics fans tracking events out to the configured sinks.
package analytics

import (
	"context"
	"errors"
	"log/slog"

	"github.com/Priya8975/donate/internal/domain"
)

// Tracker records a named event.
type Tracker interface {
	Track(ctx context.Context, event domain.AnalyticsEvent) error
}

// TrackerFunc adapts a function to Tracker.
type TrackerFunc func(ctx context.Context, event domain.AnalyticsEvent) error

func (f TrackerFunc) Track(ctx context.Context, event domain.AnalyticsEvent) error {
	return f(ctx, event)
}

// Multi sends every event to each sink. A failing sink does not stop the
// others; failures are logged and joined into the returned error.
type Multi struct {
	sinks  []Tracker
	logger *slog.Logger
}

// NewMulti builds a fan-out tracker over the non-nil sinks. With no sinks
// it behaves as a no-op.
func NewMulti(logger *slog.Logger, sinks ...Tracker) *Multi {
	m := &Multi{logger: logger}
	for _, s := range sinks {
		if s != nil {
			m.sinks = append(m.sinks, s)
		}
	}
	return m
}

func (m *Multi) Track(ctx context.Context, event domain.AnalyticsEvent) error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Track(ctx, event); err != nil {
			m.logger.Warn("analytics sink failed", "event", event.Name, "error", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Len returns the number of configured sinks.
func (m *Multi) Len() int {
	return len(m.sinks)
}
