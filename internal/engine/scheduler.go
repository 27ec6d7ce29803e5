package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/RealZimboGuy/shipflow/internal/metrics"
	"github.com/RealZimboGuy/shipflow/internal/observability"
	"github.com/RealZimboGuy/shipflow/pkg/shipflow/core"
	"github.com/RealZimboGuy/shipflow/pkg/shipflow/domain"
)

const (
	tickRan     = "ran"
	tickSkipped = "skipped"
	tickError   = "error"
)

// Scheduler runs the job processor on a fixed interval. At most one tick runs
// at a time within the process; the optional lease extends that across
// processes.
type Scheduler struct {
	processor *JobProcessor
	interval  time.Duration
	lease     TickLease
	metrics   *metrics.Metrics

	running sync.Mutex
	wakeup  chan struct{}
}

func NewScheduler(processor *JobProcessor, interval time.Duration, lease TickLease, m *metrics.Metrics) *Scheduler {
	if interval <= 0 {
		interval = time.Minute
	}
	if m == nil {
		m = metrics.New(prometheus.NewRegistry())
	}
	return &Scheduler{
		processor: processor,
		interval:  interval,
		lease:     lease,
		metrics:   m,
		wakeup:    make(chan struct{}, 1),
	}
}

// Start ticks immediately and then every interval until ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	slog.InfoContext(ctx, "Scheduler started", "interval", s.interval.String())
	s.Tick(ctx)
	for {
		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "Scheduler stopping due to context cancel")
			return
		case <-ticker.C:
			s.Tick(ctx)
		case <-s.wakeup:
			s.Tick(ctx)
		}
	}
}

// Tick processes the due jobs once. It returns false when the tick was
// skipped because another one was still running.
func (s *Scheduler) Tick(ctx context.Context) bool {
	if !s.running.TryLock() {
		slog.DebugContext(ctx, "Previous tick still running, skipping")
		s.metrics.Tick(tickSkipped)
		return false
	}
	defer s.running.Unlock()

	tickID := uuid.NewString()
	ctx = context.WithValue(ctx, core.CtxKeyTickID, tickID)

	if s.lease != nil {
		release, ok, err := s.lease.Acquire(ctx)
		switch {
		case err != nil:
			slog.WarnContext(ctx, "Tick lease unavailable, running without it", "tickId", tickID, "error", err)
		case !ok:
			slog.DebugContext(ctx, "Tick lease held elsewhere, skipping", "tickId", tickID)
			s.metrics.Tick(tickSkipped)
			return false
		default:
			defer release()
		}
	}

	ctx, span := observability.StartSpan(ctx, "scheduler.tick", observability.AttrTickID.String(tickID))
	result, err := s.processor.ProcessDueJobs(ctx)
	observability.EndSpan(span, err)
	if err != nil {
		slog.ErrorContext(ctx, "Scheduler tick failed", "tickId", tickID, "error", err)
		s.metrics.Tick(tickError)
		return true
	}
	if result.Due > 0 {
		slog.InfoContext(ctx, "Scheduler tick finished", "tickId", tickID, "due", result.Due,
			"completed", result.Completed, "failed", result.Failed, "failedPermanent", result.FailedPermanent)
	}
	s.metrics.Tick(tickRan)
	return true
}

// Wakeup asks the loop for an extra tick without waiting for the interval.
func (s *Scheduler) Wakeup() {
	select {
	case s.wakeup <- struct{}{}:
	default:
	}
}

// Retry resets a failed job and wakes the loop so it runs promptly.
func (s *Scheduler) Retry(ctx context.Context, jobID int64) (*domain.ScheduledJob, error) {
	job, err := s.processor.Retry(ctx, jobID)
	if err != nil {
		return nil, err
	}
	s.Wakeup()
	return job, nil
}

func (s *Scheduler) ListJobs(ctx context.Context, filter domain.JobFilter) ([]domain.ScheduledJob, error) {
	return s.processor.ListJobs(ctx, filter)
}
