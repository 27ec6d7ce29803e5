// Package common holds the store scenarios every database backend must pass.
package common

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RealZimboGuy/shipflow/internal/catalog"
	"github.com/RealZimboGuy/shipflow/internal/engine"
	"github.com/RealZimboGuy/shipflow/internal/notify"
	"github.com/RealZimboGuy/shipflow/internal/repository"
	"github.com/RealZimboGuy/shipflow/internal/testutil"
	"github.com/RealZimboGuy/shipflow/pkg/shipflow/domain"
)

var start = time.Date(2026, 5, 4, 7, 30, 0, 0, time.UTC)

type harness struct {
	store     *repository.Store
	clock     *testutil.FakeClock
	engine    *engine.WorkflowEngine
	scheduler *engine.Scheduler
}

func newHarness(t *testing.T, store *repository.Store) *harness {
	t.Helper()
	clock := testutil.NewFakeClock(start)
	cat, err := catalog.Default()
	require.NoError(t, err)
	templates, err := notify.DefaultTemplates()
	require.NoError(t, err)
	eng, err := engine.NewWorkflowEngine(store, cat, engine.DefaultStepActions(), templates, clock,
		engine.Settings{Location: time.UTC, MaxAttempts: 3, PreAlertRecipients: "ops@example.com"}, nil)
	require.NoError(t, err)
	processor := engine.NewJobProcessor(store, clock, engine.ProcessorSettings{BatchSize: 100}, nil)
	return &harness{
		store:     store,
		clock:     clock,
		engine:    eng,
		scheduler: engine.NewScheduler(processor, time.Minute, nil, nil),
	}
}

// RunStoreScenarios exercises the engine, processor and store end to end.
// prefix keeps MAWB numbers unique when several runs share one database.
func RunStoreScenarios(t *testing.T, store *repository.Store, prefix string) {
	t.Run("walk chain and run reminders", func(t *testing.T) { walkChain(t, newHarness(t, store), prefix+"-1") })
	t.Run("concurrent advances serialize", func(t *testing.T) { concurrentAdvances(t, newHarness(t, store), prefix+"-2") })
	t.Run("concurrent creates converge", func(t *testing.T) { concurrentCreates(t, newHarness(t, store), prefix+"-3") })
	t.Run("competing processors run a job once", func(t *testing.T) { competingProcessors(t, store, prefix+"-4") })
}

func walkChain(t *testing.T, h *harness, mawb string) {
	ctx := context.Background()
	s := &domain.Shipment{MAWBNumber: mawb}
	s.LFD.Time, s.LFD.Valid = start.AddDate(0, 0, 10), true
	_, err := h.engine.StartTracking(ctx, s, "")
	require.NoError(t, err)

	for i := 0; i < 14; i++ {
		_, err := h.engine.Advance(ctx, s.ID, "ops", nil)
		require.NoError(t, err)
	}
	_, err = h.engine.Advance(ctx, s.ID, "ops", nil)
	require.ErrorIs(t, err, domain.ErrAlreadyCompleted)

	jobs, err := h.scheduler.ListJobs(ctx, domain.JobFilter{ShipmentID: s.ID})
	require.NoError(t, err)
	require.Len(t, jobs, 6)

	h.clock.Add(10 * 24 * time.Hour)
	require.True(t, h.scheduler.Tick(ctx))

	done, err := h.scheduler.ListJobs(ctx, domain.JobFilter{ShipmentID: s.ID, Status: domain.JobStatusCompleted})
	require.NoError(t, err)
	assert.Len(t, done, 6)

	events, err := h.engine.Events(ctx, s.ID)
	require.NoError(t, err)
	assert.Len(t, events, 20)

	notes, err := h.store.Notifications().FindByShipmentID(ctx, s.ID)
	require.NoError(t, err)
	assert.Len(t, notes, 1)

	require.NoError(t, h.engine.DeleteShipment(ctx, s.ID))
	left, err := h.scheduler.ListJobs(ctx, domain.JobFilter{ShipmentID: s.ID})
	require.NoError(t, err)
	assert.Empty(t, left)
}

func concurrentAdvances(t *testing.T, h *harness, mawb string) {
	ctx := context.Background()
	s := &domain.Shipment{MAWBNumber: mawb}
	_, err := h.engine.StartTracking(ctx, s, "")
	require.NoError(t, err)

	const n = 5
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := h.engine.Advance(ctx, s.ID, "ops", map[string]any{"worker": i})
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	ws, err := h.engine.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, "T06", ws.CurrentStepCode)

	events, err := h.engine.Events(ctx, s.ID)
	require.NoError(t, err)
	require.Len(t, events, n)
	for i, ev := range events {
		assert.Equal(t, fmt.Sprintf("T%02d", i+1), ev.Details.String("from_step"))
	}
}

func concurrentCreates(t *testing.T, h *harness, mawb string) {
	ctx := context.Background()
	s := testutil.SaveShipment(t, h.store, mawb, start)

	const n = 4
	ids := make(chan int64, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ws, err := h.engine.Create(ctx, s.ID, "")
			if assert.NoError(t, err) {
				ids <- ws.ID
			}
		}()
	}
	wg.Wait()
	close(ids)

	var first int64
	for id := range ids {
		if first == 0 {
			first = id
		}
		assert.Equal(t, first, id)
	}
	history, err := h.engine.History(ctx, s.ID)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func competingProcessors(t *testing.T, store *repository.Store, mawb string) {
	ctx := context.Background()
	a, b := newHarness(t, store), newHarness(t, store)
	s := testutil.SaveShipment(t, store, mawb, start)

	const jobs = 10
	for i := 0; i < jobs; i++ {
		_, err := a.engine.ScheduleJob(ctx, s.ID, domain.JobTypePickupReminder, start.Add(-time.Minute), nil)
		require.NoError(t, err)
	}

	var wg sync.WaitGroup
	for _, h := range []*harness{a, b} {
		wg.Add(1)
		go func(h *harness) {
			defer wg.Done()
			h.scheduler.Tick(ctx)
		}(h)
	}
	wg.Wait()

	events, err := a.engine.Events(ctx, s.ID)
	require.NoError(t, err)
	assert.Len(t, events, jobs)

	done, err := a.scheduler.ListJobs(ctx, domain.JobFilter{ShipmentID: s.ID, Status: domain.JobStatusCompleted})
	require.NoError(t, err)
	assert.Len(t, done, jobs)
}
