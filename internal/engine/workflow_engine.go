package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/RealZimboGuy/shipflow/internal/catalog"
	"github.com/RealZimboGuy/shipflow/internal/metrics"
	"github.com/RealZimboGuy/shipflow/internal/notify"
	"github.com/RealZimboGuy/shipflow/internal/observability"
	"github.com/RealZimboGuy/shipflow/pkg/shipflow/core"
	"github.com/RealZimboGuy/shipflow/pkg/shipflow/domain"
	"github.com/RealZimboGuy/shipflow/pkg/shipflow/models"
)

type Settings struct {
	Location           *time.Location
	MaxAttempts        int
	PreAlertRecipients string
}

// WorkflowEngine moves shipments through the step catalog and schedules the
// reminders tied to each step.
type WorkflowEngine struct {
	store    core.Store
	catalog  *catalog.Catalog
	actions  map[string][]StepAction
	renderer notify.Renderer
	clock    core.Clock
	settings Settings
	metrics  *metrics.Metrics
}

// AdvanceResult describes a completed advance.
type AdvanceResult struct {
	State     *domain.WorkflowState
	FromStep  string
	ToStep    string
	StepName  string
	Completed bool
	Event     *domain.Event
}

func NewWorkflowEngine(store core.Store, cat *catalog.Catalog, actions map[string][]StepAction, renderer notify.Renderer,
	clock core.Clock, settings Settings, m *metrics.Metrics) (*WorkflowEngine, error) {
	if err := ValidateStepActions(cat, actions); err != nil {
		return nil, err
	}
	if settings.Location == nil {
		settings.Location = time.Local
	}
	if settings.MaxAttempts <= 0 {
		settings.MaxAttempts = domain.DefaultMaxAttempts
	}
	if m == nil {
		m = metrics.New(prometheus.NewRegistry())
	}
	return &WorkflowEngine{
		store:    store,
		catalog:  cat,
		actions:  actions,
		renderer: renderer,
		clock:    clock,
		settings: settings,
		metrics:  m,
	}, nil
}

// Create starts a workflow for the shipment at initialStep, or at the first
// catalog step when initialStep is empty. An existing active workflow is
// returned unchanged.
func (e *WorkflowEngine) Create(ctx context.Context, shipmentID int64, initialStep string) (*domain.WorkflowState, error) {
	if initialStep == "" {
		initialStep = e.catalog.First()
	}
	if _, err := e.catalog.Lookup(initialStep); err != nil {
		return nil, err
	}

	var created *domain.WorkflowState
	err := e.store.WithinTx(ctx, func(ctx context.Context, tx core.Repositories) error {
		// Creates for one shipment queue on its row lock.
		shipment, err := tx.Shipments().LockByID(ctx, shipmentID)
		if err != nil {
			return err
		}
		if shipment == nil {
			return fmt.Errorf("%w: %d", domain.ErrShipmentNotFound, shipmentID)
		}
		created, err = e.createInTx(ctx, tx, shipmentID, initialStep)
		return err
	})
	if err != nil {
		if existing := e.recoverConcurrentCreate(ctx, shipmentID, err); existing != nil {
			return existing, nil
		}
		return nil, err
	}
	return created, nil
}

// StartTracking stores a new shipment and its workflow in one transaction.
func (e *WorkflowEngine) StartTracking(ctx context.Context, s *domain.Shipment, initialStep string) (*domain.WorkflowState, error) {
	if initialStep == "" {
		initialStep = e.catalog.First()
	}
	if _, err := e.catalog.Lookup(initialStep); err != nil {
		return nil, err
	}

	now := e.clock.Now().UTC()
	if s.Status == "" {
		s.Status = domain.ShipmentStatusInProgress
	}
	if s.Progress == "" {
		s.Progress = domain.ShipmentProgressNotShipped
	}
	s.CreatedAt, s.UpdatedAt = now, now

	var created *domain.WorkflowState
	err := e.store.WithinTx(ctx, func(ctx context.Context, tx core.Repositories) error {
		if _, err := tx.Shipments().Save(ctx, s); err != nil {
			return fmt.Errorf("save shipment: %w", err)
		}
		var err error
		created, err = e.createInTx(ctx, tx, s.ID, initialStep)
		return err
	})
	if err != nil {
		return nil, err
	}
	slog.InfoContext(ctx, "Shipment registered", "shipmentId", s.ID, "mawb", s.MAWBNumber)
	return created, nil
}

func (e *WorkflowEngine) createInTx(ctx context.Context, tx core.Repositories, shipmentID int64, initialStep string) (*domain.WorkflowState, error) {
	existing, err := tx.Workflows().FindActive(ctx, shipmentID, true)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		slog.DebugContext(ctx, "Workflow already exists", "shipmentId", shipmentID, "step", existing.CurrentStepCode)
		return existing, nil
	}
	now := e.clock.Now().UTC()
	ws := &domain.WorkflowState{
		ShipmentID:      shipmentID,
		CurrentStepCode: initialStep,
		StartedAt:       now,
		UpdatedAt:       now,
		Active:          true,
	}
	if e.catalog.IsTerminal(initialStep) {
		ws.CompletedAt = sql.NullTime{Time: now, Valid: true}
		if err := tx.Shipments().MarkComplete(ctx, shipmentID, now); err != nil {
			return nil, fmt.Errorf("mark shipment complete: %w", err)
		}
	}
	if _, err := tx.Workflows().Save(ctx, ws); err != nil {
		return nil, fmt.Errorf("save workflow state: %w", err)
	}
	slog.InfoContext(ctx, "Workflow created", "shipmentId", shipmentID, "step", initialStep)
	return ws, nil
}

// recoverConcurrentCreate handles two creates racing on the unique active
// index: the loser returns the winner's row.
func (e *WorkflowEngine) recoverConcurrentCreate(ctx context.Context, shipmentID int64, cause error) *domain.WorkflowState {
	if errors.Is(cause, domain.ErrNotFound) || errors.Is(cause, context.Canceled) {
		return nil
	}
	existing, err := e.store.Workflows().FindActive(ctx, shipmentID, false)
	if err != nil || existing == nil {
		return nil
	}
	slog.WarnContext(ctx, "Concurrent workflow create resolved to existing workflow", "shipmentId", shipmentID, "error", cause)
	return existing
}

// Advance moves the shipment's workflow to the next step. The state update,
// the audit event and every side effect of the new step commit together or not
// at all.
func (e *WorkflowEngine) Advance(ctx context.Context, shipmentID int64, actor domain.ActorID, extra map[string]any) (result *AdvanceResult, err error) {
	ctx, span := observability.StartSpan(ctx, "workflow.advance", observability.AttrShipmentID.Int64(shipmentID))
	defer func() { observability.EndSpan(span, err) }()

	var scheduled []string
	var notified []string
	err = e.store.WithinTx(ctx, func(ctx context.Context, tx core.Repositories) error {
		scheduled, notified = nil, nil

		// Shipment row before workflow row, the same order Create locks in.
		shipment, err := tx.Shipments().LockByID(ctx, shipmentID)
		if err != nil {
			return err
		}
		ws, err := tx.Workflows().FindActive(ctx, shipmentID, true)
		if err != nil {
			return err
		}
		if ws == nil || shipment == nil {
			return fmt.Errorf("%w: shipment %d", domain.ErrNoActiveWorkflow, shipmentID)
		}
		if ws.IsCompleted() || e.catalog.IsTerminal(ws.CurrentStepCode) {
			return fmt.Errorf("%w: shipment %d", domain.ErrAlreadyCompleted, shipmentID)
		}
		step, err := e.catalog.Lookup(ws.CurrentStepCode)
		if err != nil {
			return err
		}
		if step.IsTerminal() {
			return fmt.Errorf("%w: %q", domain.ErrNoNextStep, step.Code)
		}

		now := e.clock.Now().UTC()
		from := ws.CurrentStepCode
		ws.CurrentStepCode = step.NextCode
		ws.UpdatedAt = now
		completed := e.catalog.IsTerminal(step.NextCode)
		if completed {
			ws.CompletedAt = sql.NullTime{Time: now, Valid: true}
			if err := tx.Shipments().MarkComplete(ctx, shipmentID, now); err != nil {
				return fmt.Errorf("mark shipment complete: %w", err)
			}
		}
		if err := tx.Workflows().Update(ctx, ws); err != nil {
			return fmt.Errorf("update workflow state: %w", err)
		}

		details := domain.JSONMap{
			"from_step": from,
			"to_step":   step.NextCode,
			"step_name": step.Name,
			"actor_id":  string(actor),
		}
		for k, v := range extra {
			details[k] = v
		}
		event := &domain.Event{
			ShipmentID: shipmentID,
			Type:       domain.EventTypeWorkflowAdvanced,
			OccurredAt: now,
			Details:    details,
			ActorID:    actor.NullString(),
		}
		if _, err := tx.Events().Append(ctx, event); err != nil {
			return fmt.Errorf("append event: %w", err)
		}

		ac := ActionContext{Now: now, Location: e.settings.Location, Shipment: shipment}
		for _, action := range e.actions[step.NextCode] {
			if action.isNotification() {
				sent, err := e.sendNotification(ctx, tx, action.Template, shipment, actor, now)
				if err != nil {
					return err
				}
				if sent {
					notified = append(notified, action.Template)
				}
				continue
			}
			runAt, ok := action.RunAt(ac)
			if !ok {
				slog.DebugContext(ctx, "Reminder not scheduled", "shipmentId", shipmentID, "reminder", action.ReminderType)
				continue
			}
			job := &domain.ScheduledJob{
				ShipmentID:  shipmentID,
				JobType:     action.JobType,
				RunAt:       runAt.UTC(),
				Status:      domain.JobStatusPending,
				MaxAttempts: e.settings.MaxAttempts,
				Payload:     domain.JSONMap{domain.PayloadReminderType: action.ReminderType},
				CreatedAt:   now,
				UpdatedAt:   now,
			}
			if _, err := tx.Jobs().Save(ctx, job); err != nil {
				return fmt.Errorf("schedule %s: %w", action.JobType, err)
			}
			scheduled = append(scheduled, action.JobType)
		}

		result = &AdvanceResult{
			State:     ws,
			FromStep:  from,
			ToStep:    step.NextCode,
			StepName:  step.Name,
			Completed: completed,
			Event:     event,
		}
		return nil
	})
	if err != nil {
		slog.WarnContext(ctx, "Workflow advance failed", "shipmentId", shipmentID, "error", err)
		return nil, err
	}

	span.SetAttributes(observability.AttrStep.String(result.ToStep))
	e.metrics.WorkflowAdvanced(result.ToStep, result.Completed)
	for _, jobType := range scheduled {
		e.metrics.JobScheduled(jobType)
	}
	for _, tpl := range notified {
		e.metrics.NotificationRendered(tpl)
	}
	slog.InfoContext(ctx, "Workflow advanced", "shipmentId", shipmentID, "from", result.FromStep, "to", result.ToStep,
		"completed", result.Completed, "jobsScheduled", len(scheduled))
	return result, nil
}

// sendNotification renders a template and records it in the notification log.
// A template that cannot be rendered is skipped with a warning; a failure to
// record it aborts the advance.
func (e *WorkflowEngine) sendNotification(ctx context.Context, tx core.Repositories, template string, s *domain.Shipment,
	actor domain.ActorID, now time.Time) (bool, error) {
	if e.renderer == nil {
		slog.WarnContext(ctx, "No template renderer configured, notification skipped", "template", template)
		return false, nil
	}
	msg, err := e.renderer.Render(template, notificationVariables(s))
	if err != nil {
		slog.WarnContext(ctx, "Notification template unavailable, skipped", "template", template, "shipmentId", s.ID, "error", err)
		return false, nil
	}
	n := &domain.Notification{
		ShipmentID:   s.ID,
		TemplateName: msg.Template,
		Recipients:   e.settings.PreAlertRecipients,
		Subject:      msg.Subject,
		Body:         msg.Body,
		SentBy:       actor.NullString(),
		CreatedAt:    now,
	}
	if _, err := tx.Notifications().Save(ctx, n); err != nil {
		return false, fmt.Errorf("record %s notification: %w", template, err)
	}
	slog.InfoContext(ctx, "Notification recorded", "template", template, "shipmentId", s.ID, "recipients", n.Recipients)
	return true, nil
}

func notificationVariables(s *domain.Shipment) map[string]string {
	orNA := func(v sql.NullString) string {
		if v.Valid && v.String != "" {
			return v.String
		}
		return "N/A"
	}
	eta := "N/A"
	if s.ETA.Valid {
		eta = s.ETA.Time.Format("2006-01-02 15:04")
	}
	pieces := "0"
	if s.Pieces.Valid {
		pieces = strconv.FormatInt(s.Pieces.Int64, 10)
	}
	weight := "0"
	if s.Weight.Valid {
		weight = strconv.FormatFloat(s.Weight.Float64, 'f', -1, 64)
	}
	return map[string]string{
		"mawb_number": s.MAWBNumber,
		"origin_port": orNA(s.OriginPort),
		"dest_port":   orNA(s.DestPort),
		"eta":         eta,
		"consignee":   orNA(s.Consignee),
		"pieces":      pieces,
		"weight":      weight,
	}
}

// ScheduleJob queues an arbitrary job for a shipment.
func (e *WorkflowEngine) ScheduleJob(ctx context.Context, shipmentID int64, jobType string, runAt time.Time, payload map[string]any) (*domain.ScheduledJob, error) {
	now := e.clock.Now().UTC()
	job := &domain.ScheduledJob{
		ShipmentID:  shipmentID,
		JobType:     jobType,
		RunAt:       runAt.UTC(),
		Status:      domain.JobStatusPending,
		MaxAttempts: e.settings.MaxAttempts,
		Payload:     domain.JSONMap(payload),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	err := e.store.WithinTx(ctx, func(ctx context.Context, tx core.Repositories) error {
		shipment, err := tx.Shipments().FindByID(ctx, shipmentID)
		if err != nil {
			return err
		}
		if shipment == nil {
			return fmt.Errorf("%w: %d", domain.ErrShipmentNotFound, shipmentID)
		}
		_, err = tx.Jobs().Save(ctx, job)
		return err
	})
	if err != nil {
		return nil, err
	}
	e.metrics.JobScheduled(jobType)
	slog.InfoContext(ctx, "Job scheduled", "jobId", job.ID, "jobType", jobType, "shipmentId", shipmentID, "runAt", job.RunAt)
	return job, nil
}

// Get returns the shipment's active workflow.
func (e *WorkflowEngine) Get(ctx context.Context, shipmentID int64) (*domain.WorkflowState, error) {
	ws, err := e.store.Workflows().FindActive(ctx, shipmentID, false)
	if err != nil {
		return nil, err
	}
	if ws == nil {
		return nil, fmt.Errorf("%w: shipment %d", domain.ErrNoActiveWorkflow, shipmentID)
	}
	return ws, nil
}

func (e *WorkflowEngine) History(ctx context.Context, shipmentID int64) ([]domain.WorkflowState, error) {
	return e.store.Workflows().FindAllByShipmentID(ctx, shipmentID)
}

// Events returns the shipment's audit trail ordered by (occurred_at, id).
func (e *WorkflowEngine) Events(ctx context.Context, shipmentID int64) ([]domain.Event, error) {
	return e.store.Events().FindAllByShipmentID(ctx, shipmentID)
}

// Progress lists every catalog step flagged against the shipment's current step.
func (e *WorkflowEngine) Progress(ctx context.Context, shipmentID int64) (*models.WorkflowProgressResponse, error) {
	ws, err := e.Get(ctx, shipmentID)
	if err != nil {
		return nil, err
	}
	current := e.catalog.Position(ws.CurrentStepCode)
	resp := &models.WorkflowProgressResponse{
		ShipmentID:  shipmentID,
		CurrentStep: ws.CurrentStepCode,
		StartedAt:   ws.StartedAt,
		UpdatedAt:   ws.UpdatedAt,
	}
	if ws.CompletedAt.Valid {
		t := ws.CompletedAt.Time
		resp.CompletedAt = &t
	}
	for _, s := range e.catalog.Steps() {
		pos := e.catalog.Position(s.Code)
		resp.Steps = append(resp.Steps, models.StepProgress{
			Code:        s.Code,
			Name:        s.Name,
			Description: s.Description,
			IsCurrent:   s.Code == ws.CurrentStepCode,
			IsCompleted: pos >= 0 && current >= 0 && pos < current,
		})
	}
	return resp, nil
}

func (e *WorkflowEngine) GetShipment(ctx context.Context, id int64) (*domain.Shipment, error) {
	s, err := e.store.Shipments().FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, fmt.Errorf("%w: %d", domain.ErrShipmentNotFound, id)
	}
	return s, nil
}

// DeleteShipment removes a shipment with its workflow, events and jobs.
func (e *WorkflowEngine) DeleteShipment(ctx context.Context, id int64) error {
	if err := e.store.Shipments().Delete(ctx, id); err != nil {
		return err
	}
	slog.InfoContext(ctx, "Shipment deleted", "shipmentId", id)
	return nil
}

// Dashboard aggregates shipment and job counts with the latest events.
func (e *WorkflowEngine) Dashboard(ctx context.Context) (*models.DashboardStats, error) {
	today := LocalMidnight(e.clock.Now(), e.settings.Location)
	stats, err := e.store.Shipments().Stats(ctx, today)
	if err != nil {
		return nil, err
	}
	pending, err := e.store.Jobs().CountByStatus(ctx, domain.JobStatusPending)
	if err != nil {
		return nil, err
	}
	failed, err := e.store.Jobs().CountByStatus(ctx, domain.JobStatusFailed)
	if err != nil {
		return nil, err
	}
	recent, err := e.store.Events().FindRecent(ctx, 10)
	if err != nil {
		return nil, err
	}
	out := &models.DashboardStats{
		TotalShipments:     stats.Total,
		ActiveShipments:    stats.Active,
		CompletedShipments: stats.Completed,
		OverdueShipments:   stats.Overdue,
		PendingJobs:        pending,
		FailedJobs:         failed,
		RecentEvents:       make([]models.EventResponse, 0, len(recent)),
	}
	for _, ev := range recent {
		out.RecentEvents = append(out.RecentEvents, ToEventResponse(ev))
	}
	return out, nil
}

func ToEventResponse(ev domain.Event) models.EventResponse {
	return models.EventResponse{
		ID:         ev.ID,
		ShipmentID: ev.ShipmentID,
		Type:       ev.Type,
		OccurredAt: ev.OccurredAt,
		Details:    ev.Details,
		ActorID:    ev.ActorID.String,
	}
}
