package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RealZimboGuy/shipflow/internal/notify"
	"github.com/RealZimboGuy/shipflow/internal/testutil"
	"github.com/RealZimboGuy/shipflow/pkg/shipflow/core"
	"github.com/RealZimboGuy/shipflow/pkg/shipflow/domain"
)

var morning = time.Date(2026, 3, 10, 8, 0, 0, 0, testLocation)

func TestCreateDefaultsToFirstStepAndIsIdempotent(t *testing.T) {
	env := newTestEnv(t, morning)
	ctx := context.Background()
	s := testutil.SaveShipment(t, env.store, "784-1000-0001", morning)

	first, err := env.engine.Create(ctx, s.ID, "")
	require.NoError(t, err)
	assert.Equal(t, "T01", first.CurrentStepCode)
	assert.True(t, first.Active)

	again, err := env.engine.Create(ctx, s.ID, "T05")
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)
	assert.Equal(t, "T01", again.CurrentStepCode)

	history, err := env.engine.History(ctx, s.ID)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestCreateRejectsUnknownShipmentAndStep(t *testing.T) {
	env := newTestEnv(t, morning)
	ctx := context.Background()

	_, err := env.engine.Create(ctx, 4242, "")
	assert.ErrorIs(t, err, domain.ErrShipmentNotFound)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	s := testutil.SaveShipment(t, env.store, "784-1000-0002", morning)
	_, err = env.engine.Create(ctx, s.ID, "T99")
	assert.ErrorIs(t, err, domain.ErrInvalidStep)
}

func TestAdvanceWalksTheWholeChain(t *testing.T) {
	env := newTestEnv(t, morning)
	ctx := context.Background()
	s := env.startAt(t, "T01", testutil.WithLFD(time.Date(2026, 3, 25, 0, 0, 0, 0, time.UTC)))

	var last *AdvanceResult
	for i := 0; i < 14; i++ {
		res, err := env.engine.Advance(ctx, s.ID, "alice", nil)
		require.NoError(t, err, "advance %d", i+1)
		last = res
	}
	assert.Equal(t, "T14", last.FromStep)
	assert.Equal(t, "COMPLETE", last.ToStep)
	assert.True(t, last.Completed)
	assert.True(t, last.State.CompletedAt.Valid)

	shipment, err := env.engine.GetShipment(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ShipmentStatusComplete, shipment.Status)
	assert.Equal(t, domain.ShipmentProgressDelivered, shipment.Progress)

	events, err := env.engine.Events(ctx, s.ID)
	require.NoError(t, err)
	require.Len(t, events, 14)
	assert.Equal(t, "T01", events[0].Details.String("from_step"))
	assert.Equal(t, "T02", events[0].Details.String("to_step"))
	assert.Equal(t, "alice", events[0].ActorID.String)

	jobs := jobsByReminder(env.jobs(t, s.ID))
	assert.Len(t, jobs, 6)
	for _, r := range []string{"pickup", "lfd_3_days", "lfd_1_day", "isc_morning", "isc_afternoon", "empty_return"} {
		assert.Contains(t, jobs, r)
	}

	notes, err := env.store.Notifications().FindByShipmentID(ctx, s.ID)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, notify.TemplatePreAlert, notes[0].TemplateName)

	_, err = env.engine.Advance(ctx, s.ID, "alice", nil)
	assert.ErrorIs(t, err, domain.ErrAlreadyCompleted)
	assert.ErrorIs(t, err, domain.ErrInvalidState)
}

func TestAdvanceErrors(t *testing.T) {
	env := newTestEnv(t, morning)
	ctx := context.Background()

	orphan := testutil.SaveShipment(t, env.store, "784-2000-0001", morning)
	_, err := env.engine.Advance(ctx, orphan.ID, "alice", nil)
	assert.ErrorIs(t, err, domain.ErrNoActiveWorkflow)

	parked := env.startAt(t, "COMPLETE")
	_, err = env.engine.Advance(ctx, parked.ID, "alice", nil)
	assert.ErrorIs(t, err, domain.ErrAlreadyCompleted)
	assert.ErrorIs(t, err, domain.ErrInvalidState)
	assert.NotErrorIs(t, err, domain.ErrConfiguration)
}

func TestCreateAtTerminalStepStartsCompleted(t *testing.T) {
	env := newTestEnv(t, morning)
	ctx := context.Background()
	s := env.startAt(t, "COMPLETE")

	ws, err := env.engine.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.True(t, ws.CompletedAt.Valid)

	shipment, err := env.engine.GetShipment(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ShipmentStatusComplete, shipment.Status)
	assert.Equal(t, domain.ShipmentProgressDelivered, shipment.Progress)

	events, err := env.engine.Events(ctx, s.ID)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestCreateAndAdvanceLockShipmentBeforeWorkflow(t *testing.T) {
	rec := &lockRecordingStore{}
	env := newTestEnvWith(t, morning, nil, func(s core.Store) core.Store {
		rec.Store = s
		return rec
	})
	ctx := context.Background()
	s := testutil.SaveShipment(t, env.store, "784-3000-0001", morning)

	_, err := env.engine.Create(ctx, s.ID, "T14")
	require.NoError(t, err)
	assert.Equal(t, []string{"shipment", "workflow"}, rec.locks)

	rec.locks = nil
	res, err := env.engine.Advance(ctx, s.ID, "alice", nil)
	require.NoError(t, err)
	require.True(t, res.Completed)
	assert.Equal(t, []string{"shipment", "workflow"}, rec.locks)
}

func TestAdvanceMergesExtraDetails(t *testing.T) {
	env := newTestEnv(t, morning)
	s := env.startAt(t, "T01")

	res, err := env.engine.Advance(context.Background(), s.ID, "alice", map[string]any{"note": "docs received"})
	require.NoError(t, err)
	assert.Equal(t, "docs received", res.Event.Details.String("note"))
	assert.Equal(t, "MAWB Created", res.StepName)
	assert.Equal(t, "MAWB Created", res.Event.Details.String("step_name"))
}

func TestAdvanceSchedulesPickupReminder(t *testing.T) {
	env := newTestEnv(t, morning)
	s := env.startAt(t, "T02")

	_, err := env.engine.Advance(context.Background(), s.ID, "alice", nil)
	require.NoError(t, err)

	jobs := env.jobs(t, s.ID)
	require.Len(t, jobs, 1)
	assert.Equal(t, domain.JobTypePickupReminder, jobs[0].JobType)
	assert.Equal(t, domain.JobStatusPending, jobs[0].Status)
	assert.Equal(t, 3, jobs[0].MaxAttempts)
	assert.WithinDuration(t, morning.Add(24*time.Hour), jobs[0].RunAt, time.Millisecond)
}

func TestAdvanceSchedulesLFDReminders(t *testing.T) {
	t.Run("both reminders ahead", func(t *testing.T) {
		env := newTestEnv(t, morning)
		s := env.startAt(t, "T05", testutil.WithLFD(time.Date(2026, 3, 20, 0, 0, 0, 0, time.UTC)))

		_, err := env.engine.Advance(context.Background(), s.ID, "alice", nil)
		require.NoError(t, err)

		jobs := jobsByReminder(env.jobs(t, s.ID))
		require.Len(t, jobs, 2)
		assert.WithinDuration(t, time.Date(2026, 3, 17, 0, 0, 0, 0, testLocation), jobs["lfd_3_days"].RunAt, time.Millisecond)
		assert.WithinDuration(t, time.Date(2026, 3, 19, 0, 0, 0, 0, testLocation), jobs["lfd_1_day"].RunAt, time.Millisecond)
	})

	t.Run("reminder in the past is dropped", func(t *testing.T) {
		env := newTestEnv(t, morning)
		s := env.startAt(t, "T05", testutil.WithLFD(time.Date(2026, 3, 12, 0, 0, 0, 0, time.UTC)))

		_, err := env.engine.Advance(context.Background(), s.ID, "alice", nil)
		require.NoError(t, err)

		jobs := jobsByReminder(env.jobs(t, s.ID))
		require.Len(t, jobs, 1)
		assert.Contains(t, jobs, "lfd_1_day")
	})

	for _, tc := range []struct {
		name string
		lfd  time.Time
	}{
		{"lfd today schedules nothing", time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)},
		{"lfd yesterday schedules nothing", time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC)},
	} {
		t.Run(tc.name, func(t *testing.T) {
			env := newTestEnv(t, morning)
			s := env.startAt(t, "T05", testutil.WithLFD(tc.lfd))

			res, err := env.engine.Advance(context.Background(), s.ID, "alice", nil)
			require.NoError(t, err)
			assert.Equal(t, "T06", res.ToStep)
			assert.Empty(t, env.jobs(t, s.ID))
		})
	}

	t.Run("no lfd no reminders", func(t *testing.T) {
		env := newTestEnv(t, morning)
		s := env.startAt(t, "T05")

		_, err := env.engine.Advance(context.Background(), s.ID, "alice", nil)
		require.NoError(t, err)
		assert.Empty(t, env.jobs(t, s.ID))
	})
}

func TestAdvanceSchedulesISCReminders(t *testing.T) {
	tests := []struct {
		name          string
		now           time.Time
		wantMorning   time.Time
		wantAfternoon time.Time
	}{
		{
			name:          "before nine",
			now:           morning,
			wantMorning:   time.Date(2026, 3, 10, 9, 0, 0, 0, testLocation),
			wantAfternoon: time.Date(2026, 3, 10, 14, 0, 0, 0, testLocation),
		},
		{
			name:          "between the two",
			now:           time.Date(2026, 3, 10, 10, 30, 0, 0, testLocation),
			wantMorning:   time.Date(2026, 3, 11, 9, 0, 0, 0, testLocation),
			wantAfternoon: time.Date(2026, 3, 10, 14, 0, 0, 0, testLocation),
		},
		{
			name:          "after two",
			now:           time.Date(2026, 3, 10, 15, 0, 0, 0, testLocation),
			wantMorning:   time.Date(2026, 3, 11, 9, 0, 0, 0, testLocation),
			wantAfternoon: time.Date(2026, 3, 11, 14, 0, 0, 0, testLocation),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, tt.now)
			s := env.startAt(t, "T10")

			_, err := env.engine.Advance(context.Background(), s.ID, "alice", nil)
			require.NoError(t, err)

			jobs := jobsByReminder(env.jobs(t, s.ID))
			require.Len(t, jobs, 2)
			assert.WithinDuration(t, tt.wantMorning, jobs["isc_morning"].RunAt, time.Millisecond)
			assert.WithinDuration(t, tt.wantAfternoon, jobs["isc_afternoon"].RunAt, time.Millisecond)
		})
	}
}

func TestAdvanceSchedulesEmptyReturnReminder(t *testing.T) {
	env := newTestEnv(t, morning)
	s := env.startAt(t, "T13")

	_, err := env.engine.Advance(context.Background(), s.ID, "alice", nil)
	require.NoError(t, err)

	jobs := env.jobs(t, s.ID)
	require.Len(t, jobs, 1)
	assert.Equal(t, domain.JobTypeEmptyReturnReminder, jobs[0].JobType)
	assert.WithinDuration(t, morning.Add(7*24*time.Hour), jobs[0].RunAt, time.Millisecond)
}

func TestAdvanceRecordsPreAlert(t *testing.T) {
	env := newTestEnv(t, morning)
	s := env.startAt(t, "T04", testutil.WithConsignee("ACME Imports"))

	_, err := env.engine.Advance(context.Background(), s.ID, "alice", nil)
	require.NoError(t, err)

	notes, err := env.store.Notifications().FindByShipmentID(context.Background(), s.ID)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, "ops@example.com", notes[0].Recipients)
	assert.Equal(t, "Pre-Alert - MAWB "+s.MAWBNumber+" (PVG to LAX)", notes[0].Subject)
	assert.Contains(t, notes[0].Body, "Consignee: ACME Imports")
	assert.Contains(t, notes[0].Body, "ETA: N/A")
	assert.Contains(t, notes[0].Body, "Pieces: 0")
	assert.Equal(t, "alice", notes[0].SentBy.String)
}

func TestAdvanceWithoutPreAlertTemplateStillAdvances(t *testing.T) {
	empty, err := notify.LoadTemplates([]byte("templates: []\n"))
	require.NoError(t, err)
	env := newTestEnvWith(t, morning, empty, nil)
	s := env.startAt(t, "T04")

	res, err := env.engine.Advance(context.Background(), s.ID, "alice", nil)
	require.NoError(t, err)
	assert.Equal(t, "T05", res.ToStep)

	notes, err := env.store.Notifications().FindByShipmentID(context.Background(), s.ID)
	require.NoError(t, err)
	assert.Empty(t, notes)
}

func TestAdvanceRollsBackWhenSchedulingFails(t *testing.T) {
	boom := errors.New("disk full")
	templates, err := notify.DefaultTemplates()
	require.NoError(t, err)
	env := newTestEnvWith(t, morning, templates, func(s core.Store) core.Store {
		return &mockStore{Store: s, saveJob: func(ctx context.Context, job *domain.ScheduledJob) (int64, error) {
			return 0, boom
		}}
	})
	ctx := context.Background()
	s := env.startAt(t, "T02")

	_, err = env.engine.Advance(ctx, s.ID, "alice", nil)
	require.ErrorIs(t, err, boom)

	ws, err := env.engine.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, "T02", ws.CurrentStepCode)

	events, err := env.engine.Events(ctx, s.ID)
	require.NoError(t, err)
	assert.Empty(t, events)
	assert.Empty(t, env.jobs(t, s.ID))
}

func TestProgress(t *testing.T) {
	env := newTestEnv(t, morning)
	ctx := context.Background()
	s := env.startAt(t, "T03")

	p, err := env.engine.Progress(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, "T03", p.CurrentStep)
	require.Len(t, p.Steps, 15)
	assert.True(t, p.Steps[0].IsCompleted)
	assert.True(t, p.Steps[1].IsCompleted)
	assert.True(t, p.Steps[2].IsCurrent)
	assert.False(t, p.Steps[2].IsCompleted)
	assert.False(t, p.Steps[3].IsCompleted)
	assert.Nil(t, p.CompletedAt)

	_, err = env.engine.Progress(ctx, 999)
	assert.ErrorIs(t, err, domain.ErrNoActiveWorkflow)
}

func TestStartTrackingAndDelete(t *testing.T) {
	env := newTestEnv(t, morning)
	ctx := context.Background()

	s := &domain.Shipment{MAWBNumber: "784-3000-0001"}
	ws, err := env.engine.StartTracking(ctx, s, "")
	require.NoError(t, err)
	assert.NotZero(t, s.ID)
	assert.Equal(t, "T01", ws.CurrentStepCode)
	assert.Equal(t, domain.ShipmentStatusInProgress, s.Status)

	_, err = env.engine.Advance(ctx, s.ID, "alice", nil)
	require.NoError(t, err)

	require.NoError(t, env.engine.DeleteShipment(ctx, s.ID))
	_, err = env.engine.GetShipment(ctx, s.ID)
	assert.ErrorIs(t, err, domain.ErrShipmentNotFound)
	events, err := env.engine.Events(ctx, s.ID)
	require.NoError(t, err)
	assert.Empty(t, events)

	assert.ErrorIs(t, env.engine.DeleteShipment(ctx, s.ID), domain.ErrShipmentNotFound)
}

func TestDashboard(t *testing.T) {
	env := newTestEnv(t, morning)
	ctx := context.Background()
	overdue := env.startAt(t, "T06", testutil.WithLFD(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)))
	done := env.startAt(t, "T14")
	_, err := env.engine.Advance(ctx, done.ID, "alice", nil)
	require.NoError(t, err)
	_, err = env.engine.ScheduleJob(ctx, overdue.ID, domain.JobTypePickupReminder, morning, nil)
	require.NoError(t, err)

	stats, err := env.engine.Dashboard(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalShipments)
	assert.Equal(t, 1, stats.ActiveShipments)
	assert.Equal(t, 1, stats.CompletedShipments)
	assert.Equal(t, 1, stats.OverdueShipments)
	assert.Equal(t, 1, stats.PendingJobs)
	assert.Equal(t, 0, stats.FailedJobs)
	require.Len(t, stats.RecentEvents, 1)
	assert.Equal(t, domain.EventTypeWorkflowAdvanced, stats.RecentEvents[0].Type)
}

func TestScheduleJobUnknownShipment(t *testing.T) {
	env := newTestEnv(t, morning)
	_, err := env.engine.ScheduleJob(context.Background(), 77, domain.JobTypePickupReminder, morning, nil)
	assert.ErrorIs(t, err, domain.ErrShipmentNotFound)
}
