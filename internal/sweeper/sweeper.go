// internal/sweeper/sweeper.go
// Package sweeper periodically removes locks that outlived the lock timeout.
package sweeper

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/avivl/editwarning/internal/metrics"
	"github.com/avivl/editwarning/internal/observability"
)

var tracer = otel.Tracer("github.com/avivl/editwarning/internal/sweeper")

// Purger deletes expired locks and reports how many went away.
type Purger interface {
	PurgeExpired(ctx context.Context) (int, error)
}

// Sweeper runs a Purger on a cron schedule.
type Sweeper struct {
	cron   *cron.Cron
	purger Purger
	logger *observability.SLogger

	mu       sync.Mutex
	entry    cron.EntryID
	schedule string
}

// New schedules p with a standard cron expression or descriptor such as "@every 1m".
func New(p Purger, schedule string, logger *observability.SLogger) (*Sweeper, error) {
	s := &Sweeper{
		cron:   cron.New(),
		purger: p,
		logger: logger.With("component", "sweeper"),
	}
	if err := s.Reschedule(schedule); err != nil {
		return nil, err
	}
	return s, nil
}

// Reschedule replaces the current schedule. The old one stays active if the new one does not parse.
func (s *Sweeper) Reschedule(schedule string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if schedule == s.schedule && s.entry != 0 {
		return nil
	}
	id, err := s.cron.AddJob(schedule, s)
	if err != nil {
		return fmt.Errorf("invalid sweep schedule %q: %w", schedule, err)
	}
	if s.entry != 0 {
		s.cron.Remove(s.entry)
	}
	s.entry = id
	s.schedule = schedule
	s.logger.Infof("sweep schedule set to %q", schedule)
	return nil
}

// Schedule returns the active cron expression.
func (s *Sweeper) Schedule() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.schedule
}

// Next returns when the next sweep is due. It is zero until Start runs.
func (s *Sweeper) Next() time.Time {
	s.mu.Lock()
	id := s.entry
	s.mu.Unlock()
	return s.cron.Entry(id).Next
}

// Start runs the schedule until ctx is done and waits for a running sweep to finish.
func (s *Sweeper) Start(ctx context.Context) error {
	s.logger.Info("sweeper started")
	s.cron.Start()
	<-ctx.Done()
	stopCtx := s.cron.Stop()
	<-stopCtx.Done()
	s.logger.Info("sweeper stopped")
	return ctx.Err()
}

// Run is called by cron.
func (s *Sweeper) Run() {
	_, _ = s.Sweep(context.Background())
}

// Sweep purges expired locks once.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	ctx, span := tracer.Start(ctx, "Sweeper.Sweep")
	defer span.End()

	removed, err := s.purger.PurgeExpired(ctx)
	if err != nil {
		metrics.SweepsTotal.WithLabelValues("failed").Inc()
		observability.RecordSpanError(span, err)
		s.logger.ErrorCtx(ctx, err)
		return removed, err
	}

	metrics.SweepsTotal.WithLabelValues("success").Inc()
	span.SetAttributes(attribute.Int("locks.removed", removed))
	if removed > 0 {
		s.logger.InfoCtx(ctx, "expired locks swept", "count", removed)
	}
	return removed, nil
}
