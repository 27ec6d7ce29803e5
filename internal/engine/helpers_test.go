package engine

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/RealZimboGuy/shipflow/internal/catalog"
	"github.com/RealZimboGuy/shipflow/internal/notify"
	"github.com/RealZimboGuy/shipflow/internal/repository"
	"github.com/RealZimboGuy/shipflow/internal/testutil"
	"github.com/RealZimboGuy/shipflow/pkg/shipflow/core"
	"github.com/RealZimboGuy/shipflow/pkg/shipflow/domain"
)

// Shanghai keeps no DST, so local wall times stay fixed in assertions.
var testLocation = time.FixedZone("CST", 8*3600)

type testEnv struct {
	store  *repository.Store
	clock  *testutil.FakeClock
	engine *WorkflowEngine
	seq    int
}

func newTestEnv(t *testing.T, now time.Time) *testEnv {
	t.Helper()
	templates, err := notify.DefaultTemplates()
	require.NoError(t, err)
	return newTestEnvWith(t, now, templates, nil)
}

// newTestEnvWith builds the engine over wrap(store) when wrap is set.
func newTestEnvWith(t *testing.T, now time.Time, renderer notify.Renderer, wrap func(core.Store) core.Store) *testEnv {
	t.Helper()
	store := testutil.NewSQLiteStore(t)
	clock := testutil.NewFakeClock(now)
	cat, err := catalog.Default()
	require.NoError(t, err)

	var engineStore core.Store = store
	if wrap != nil {
		engineStore = wrap(store)
	}
	eng, err := NewWorkflowEngine(engineStore, cat, DefaultStepActions(), renderer, clock, Settings{
		Location:           testLocation,
		MaxAttempts:        3,
		PreAlertRecipients: "ops@example.com",
	}, nil)
	require.NoError(t, err)
	return &testEnv{store: store, clock: clock, engine: eng}
}

// startAt registers a shipment with its workflow parked at step.
func (e *testEnv) startAt(t *testing.T, step string, opts ...testutil.ShipmentOption) *domain.Shipment {
	t.Helper()
	e.seq++
	s := testutil.SaveShipment(t, e.store, fmt.Sprintf("784-%s-%04d", step, e.seq), e.clock.Now(), opts...)
	_, err := e.engine.Create(context.Background(), s.ID, step)
	require.NoError(t, err)
	return s
}

func (e *testEnv) jobs(t *testing.T, shipmentID int64) []domain.ScheduledJob {
	t.Helper()
	jobs, err := e.store.Jobs().Search(context.Background(), domain.JobFilter{ShipmentID: shipmentID, Limit: 100})
	require.NoError(t, err)
	return jobs
}

func (e *testEnv) newProcessor() *JobProcessor {
	return NewJobProcessor(e.store, e.clock, ProcessorSettings{BatchSize: 50, JobTimeout: 5 * time.Second}, nil)
}

// MockJobRepo delegates to the embedded repo unless a func is set.
type MockJobRepo struct {
	core.ScheduledJobRepo
	SaveFunc func(ctx context.Context, job *domain.ScheduledJob) (int64, error)
}

func (m *MockJobRepo) Save(ctx context.Context, job *domain.ScheduledJob) (int64, error) {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, job)
	}
	return m.ScheduledJobRepo.Save(ctx, job)
}

type mockRepositories struct {
	core.Repositories
	jobs *MockJobRepo
}

func (m mockRepositories) Jobs() core.ScheduledJobRepo { return m.jobs }

// mockStore hands out transactions whose job repo is replaced by jobs.
type mockStore struct {
	core.Store
	saveJob func(ctx context.Context, job *domain.ScheduledJob) (int64, error)
}

func (m *mockStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx core.Repositories) error) error {
	return m.Store.WithinTx(ctx, func(ctx context.Context, tx core.Repositories) error {
		return fn(ctx, mockRepositories{
			Repositories: tx,
			jobs:         &MockJobRepo{ScheduledJobRepo: tx.Jobs(), SaveFunc: m.saveJob},
		})
	})
}

func jobsByReminder(jobs []domain.ScheduledJob) map[string]domain.ScheduledJob {
	out := make(map[string]domain.ScheduledJob, len(jobs))
	for _, j := range jobs {
		out[j.Payload.String(domain.PayloadReminderType)] = j
	}
	return out
}

// lockRecordingStore notes the order rows are locked inside transactions.
type lockRecordingStore struct {
	core.Store
	locks []string
}

type lockRecordingRepositories struct {
	core.Repositories
	store *lockRecordingStore
}

type lockRecordingShipments struct {
	core.ShipmentRepo
	store *lockRecordingStore
}

type lockRecordingWorkflows struct {
	core.WorkflowStateRepo
	store *lockRecordingStore
}

func (s *lockRecordingStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx core.Repositories) error) error {
	return s.Store.WithinTx(ctx, func(ctx context.Context, tx core.Repositories) error {
		return fn(ctx, lockRecordingRepositories{Repositories: tx, store: s})
	})
}

func (r lockRecordingRepositories) Shipments() core.ShipmentRepo {
	return lockRecordingShipments{ShipmentRepo: r.Repositories.Shipments(), store: r.store}
}

func (r lockRecordingRepositories) Workflows() core.WorkflowStateRepo {
	return lockRecordingWorkflows{WorkflowStateRepo: r.Repositories.Workflows(), store: r.store}
}

func (r lockRecordingShipments) LockByID(ctx context.Context, id int64) (*domain.Shipment, error) {
	r.store.locks = append(r.store.locks, "shipment")
	return r.ShipmentRepo.LockByID(ctx, id)
}

func (r lockRecordingWorkflows) FindActive(ctx context.Context, shipmentID int64, forUpdate bool) (*domain.WorkflowState, error) {
	if forUpdate {
		r.store.locks = append(r.store.locks, "workflow")
	}
	return r.WorkflowStateRepo.FindActive(ctx, shipmentID, forUpdate)
}
