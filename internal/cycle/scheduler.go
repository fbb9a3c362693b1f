// Package cycle drives the periodic daily-reset and bi-weekly accrual
// triggers from a single recurring tick. Trigger times are persisted so
// a restart neither loses nor duplicates a window.
package cycle

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Markers persists per-cycle last-fired timestamps.
type Markers interface {
	LastFired(ctx context.Context, cycle string) (time.Time, error)
	MarkFired(ctx context.Context, cycle string, at time.Time) error
}

// Trigger is one periodically fired action.
type Trigger struct {
	Name  string
	Every time.Duration
	Run   func(ctx context.Context) error
}

// Scheduler fires registered triggers once per window, keyed off the
// persisted last-fired timestamp rather than an in-memory counter.
type Scheduler struct {
	markers  Markers
	interval time.Duration
	triggers []Trigger
	now      func() time.Time
	log      *zap.Logger
}

// New creates a Scheduler ticking at the given interval.
func New(markers Markers, interval time.Duration, triggers []Trigger, log *zap.Logger) *Scheduler {
	return &Scheduler{
		markers:  markers,
		interval: interval,
		triggers: triggers,
		now:      time.Now,
		log:      log,
	}
}

// Run ticks until the context is canceled.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick evaluates every trigger once. A trigger fires when its window has
// elapsed since the persisted timestamp; on first startup the marker is
// initialized without firing. A trigger that errors is retried on the
// next tick because its marker is only advanced after success.
func (s *Scheduler) Tick(ctx context.Context) {
	now := s.now().UTC()
	for _, t := range s.triggers {
		last, err := s.markers.LastFired(ctx, t.Name)
		if err != nil {
			s.log.Warn("reading cycle marker failed",
				zap.String("cycle", t.Name), zap.Error(err))
			continue
		}
		if last.IsZero() {
			if err := s.markers.MarkFired(ctx, t.Name, now); err != nil {
				s.log.Warn("initializing cycle marker failed",
					zap.String("cycle", t.Name), zap.Error(err))
			}
			continue
		}
		if now.Sub(last) < t.Every {
			continue
		}
		s.log.Info("cycle trigger firing",
			zap.String("cycle", t.Name), zap.Time("last", last))
		if err := t.Run(ctx); err != nil {
			s.log.Error("cycle trigger failed",
				zap.String("cycle", t.Name), zap.Error(err))
			continue
		}
		if err := s.markers.MarkFired(ctx, t.Name, now); err != nil {
			s.log.Warn("advancing cycle marker failed",
				zap.String("cycle", t.Name), zap.Error(err))
		}
	}
}
