package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/RealZimboGuy/shipflow/internal/metrics"
	"github.com/RealZimboGuy/shipflow/internal/observability"
	"github.com/RealZimboGuy/shipflow/pkg/shipflow/core"
	"github.com/RealZimboGuy/shipflow/pkg/shipflow/domain"
	"github.com/RealZimboGuy/shipflow/pkg/shipflow/models"
)

const (
	outcomeCompleted       = "completed"
	outcomeFailed          = "failed"
	outcomeFailedPermanent = "failed_permanent"
	outcomeSkipped         = "skipped"
)

// errJobNotDue means another worker already moved the job on.
var errJobNotDue = errors.New("job no longer due")

type ProcessorSettings struct {
	BatchSize  int
	JobTimeout time.Duration
	Retry      models.RetryConfig
}

// TickResult summarises one pass over the due jobs.
type TickResult struct {
	Due             int
	Completed       int
	Failed          int
	FailedPermanent int
}

// JobProcessor executes due jobs one by one, each in its own transaction.
type JobProcessor struct {
	store    core.Store
	clock    core.Clock
	handlers map[string]JobHandler
	settings ProcessorSettings
	metrics  *metrics.Metrics
}

func NewJobProcessor(store core.Store, clock core.Clock, settings ProcessorSettings, m *metrics.Metrics) *JobProcessor {
	if settings.BatchSize <= 0 {
		settings.BatchSize = 100
	}
	if settings.JobTimeout <= 0 {
		settings.JobTimeout = 30 * time.Second
	}
	if settings.Retry.RetryIntervalMax == 0 {
		settings.Retry = models.DefaultJobRetryConfig(domain.DefaultMaxAttempts)
	}
	if m == nil {
		m = metrics.New(prometheus.NewRegistry())
	}
	return &JobProcessor{
		store:    store,
		clock:    clock,
		handlers: DefaultJobHandlers(),
		settings: settings,
		metrics:  m,
	}
}

// RegisterHandler adds or replaces the handler for jobType.
func (p *JobProcessor) RegisterHandler(jobType string, h JobHandler) {
	p.handlers[jobType] = h
}

// ProcessDueJobs runs every job due at the current time, oldest first. A
// failing job never stops the batch.
func (p *JobProcessor) ProcessDueJobs(ctx context.Context) (TickResult, error) {
	var result TickResult
	jobs, err := p.store.Jobs().FindDue(ctx, p.clock.Now().UTC(), p.settings.BatchSize)
	if err != nil {
		return result, fmt.Errorf("find due jobs: %w", err)
	}
	result.Due = len(jobs)
	for i := range jobs {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		switch p.processJob(ctx, &jobs[i]) {
		case outcomeCompleted:
			result.Completed++
		case outcomeFailed:
			result.Failed++
		case outcomeFailedPermanent:
			result.FailedPermanent++
		}
	}
	return result, nil
}

func (p *JobProcessor) processJob(ctx context.Context, job *domain.ScheduledJob) (outcome string) {
	ctx, span := observability.StartSpan(ctx, "job.process",
		observability.AttrJobID.Int64(job.ID),
		observability.AttrJobType.String(job.JobType),
		observability.AttrShipmentID.Int64(job.ShipmentID),
	)
	start := time.Now()
	var spanErr error
	defer func() {
		observability.EndSpan(span, spanErr)
		if outcome != outcomeSkipped {
			p.metrics.JobProcessed(job.JobType, outcome, time.Since(start))
		}
	}()

	handler, ok := p.handlers[job.JobType]
	if !ok {
		slog.WarnContext(ctx, "No handler for job type", "jobId", job.ID, "jobType", job.JobType)
		spanErr = fmt.Errorf("%w: %s", domain.ErrUnknownJob, job.JobType)
		return p.recordFailure(ctx, job.ID, spanErr, true)
	}

	hctx, cancel := context.WithTimeout(ctx, p.settings.JobTimeout)
	defer cancel()
	err := p.store.WithinTx(hctx, func(ctx context.Context, tx core.Repositories) error {
		locked, err := tx.Jobs().FindByID(ctx, job.ID, true)
		if err != nil {
			return err
		}
		now := p.clock.Now().UTC()
		if locked == nil || !locked.IsDue(now) {
			return errJobNotDue
		}
		extra, err := handler(ctx, tx, locked)
		if err != nil {
			return fmt.Errorf("%w: %w", domain.ErrHandlerFailed, err)
		}

		details := domain.JSONMap{}
		for k, v := range locked.Payload {
			details[k] = v
		}
		for k, v := range extra {
			details[k] = v
		}
		event := &domain.Event{
			ShipmentID: locked.ShipmentID,
			Type:       domain.JobEventType(locked.JobType),
			OccurredAt: now,
			Details:    details,
			ActorID:    domain.SystemActor.NullString(),
		}
		if _, err := tx.Events().Append(ctx, event); err != nil {
			return fmt.Errorf("append event: %w", err)
		}
		locked.Status = domain.JobStatusCompleted
		locked.UpdatedAt = now
		return tx.Jobs().Update(ctx, locked)
	})
	if errors.Is(err, errJobNotDue) {
		slog.DebugContext(ctx, "Job skipped, no longer due", "jobId", job.ID)
		return outcomeSkipped
	}
	if err != nil {
		spanErr = err
		return p.recordFailure(ctx, job.ID, err, false)
	}
	slog.InfoContext(ctx, "Job completed", "jobId", job.ID, "jobType", job.JobType, "shipmentId", job.ShipmentID)
	return outcomeCompleted
}

// recordFailure counts the attempt in a fresh transaction. Below the limit the
// job waits out its retry interval as failed; at the limit, or when permanent
// is set, it becomes failed_permanent.
func (p *JobProcessor) recordFailure(ctx context.Context, jobID int64, cause error, permanent bool) string {
	outcome := outcomeSkipped
	err := p.store.WithinTx(ctx, func(ctx context.Context, tx core.Repositories) error {
		job, err := tx.Jobs().FindByID(ctx, jobID, true)
		if err != nil {
			return err
		}
		now := p.clock.Now().UTC()
		if job == nil || !job.IsDue(now) {
			return nil
		}
		job.Attempts++
		job.UpdatedAt = now
		if permanent || job.Attempts >= job.MaxAttempts {
			job.Status = domain.JobStatusFailedPermanent
			outcome = outcomeFailedPermanent
		} else {
			job.Status = domain.JobStatusFailed
			job.RunAt = now.Add(p.settings.Retry.SlidingInterval(job.Attempts))
			outcome = outcomeFailed
		}
		if err := tx.Jobs().Update(ctx, job); err != nil {
			return err
		}
		slog.ErrorContext(ctx, "Job failed", "jobId", job.ID, "jobType", job.JobType, "attempts", job.Attempts,
			"maxAttempts", job.MaxAttempts, "status", job.Status, "error", cause)
		return nil
	})
	if err != nil {
		slog.ErrorContext(ctx, "Recording job failure failed", "jobId", jobID, "cause", cause, "error", err)
	}
	return outcome
}

// Retry puts a failed job back to pending with its attempts reset.
func (p *JobProcessor) Retry(ctx context.Context, jobID int64) (*domain.ScheduledJob, error) {
	var out *domain.ScheduledJob
	err := p.store.WithinTx(ctx, func(ctx context.Context, tx core.Repositories) error {
		job, err := tx.Jobs().FindByID(ctx, jobID, true)
		if err != nil {
			return err
		}
		if job == nil {
			return fmt.Errorf("%w: %d", domain.ErrJobNotFound, jobID)
		}
		if !job.CanRetry() {
			return fmt.Errorf("%w: job %d is %s with %d/%d attempts", domain.ErrRetryNotAllowed, jobID, job.Status, job.Attempts, job.MaxAttempts)
		}
		now := p.clock.Now().UTC()
		job.Status = domain.JobStatusPending
		job.Attempts = 0
		job.RunAt = now
		job.UpdatedAt = now
		if err := tx.Jobs().Update(ctx, job); err != nil {
			return err
		}
		out = job
		return nil
	})
	if err != nil {
		return nil, err
	}
	slog.InfoContext(ctx, "Job queued for retry", "jobId", jobID, "jobType", out.JobType)
	return out, nil
}

// ListJobs searches the job store. The limit defaults to 100.
func (p *JobProcessor) ListJobs(ctx context.Context, filter domain.JobFilter) ([]domain.ScheduledJob, error) {
	if filter.Limit <= 0 {
		filter.Limit = 100
	}
	return p.store.Jobs().Search(ctx, filter)
}
