package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/RealZimboGuy/shipflow/internal/catalog"
	"github.com/RealZimboGuy/shipflow/internal/engine"
	"github.com/RealZimboGuy/shipflow/internal/metrics"
	"github.com/RealZimboGuy/shipflow/internal/notify"
	"github.com/RealZimboGuy/shipflow/internal/repository"
	"github.com/RealZimboGuy/shipflow/internal/testutil"
	"github.com/RealZimboGuy/shipflow/pkg/shipflow/domain"
)

const testAPIKey = "test-key"

var testNow = time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)

// MockUserRepo implements UserRepo for testing
type MockUserRepo struct {
	FindByUsernameFunc          func(ctx context.Context, username string) (*domain.User, error)
	FindBySessionIDFunc         func(ctx context.Context, sessionID string, now time.Time) (*domain.User, error)
	FindByApiKeyFunc            func(ctx context.Context, apiKey string) (*domain.User, error)
	UpdateSessionFunc           func(ctx context.Context, userID int64, sessionID string, expiry time.Time) error
	ClearSessionBySessionIDFunc func(ctx context.Context, sessionID string) error
}

func (m *MockUserRepo) FindByUsername(ctx context.Context, username string) (*domain.User, error) {
	if m.FindByUsernameFunc != nil {
		return m.FindByUsernameFunc(ctx, username)
	}
	return nil, nil
}
func (m *MockUserRepo) FindBySessionID(ctx context.Context, sessionID string, now time.Time) (*domain.User, error) {
	if m.FindBySessionIDFunc != nil {
		return m.FindBySessionIDFunc(ctx, sessionID, now)
	}
	return nil, nil
}
func (m *MockUserRepo) FindByApiKey(ctx context.Context, apiKey string) (*domain.User, error) {
	if m.FindByApiKeyFunc != nil {
		return m.FindByApiKeyFunc(ctx, apiKey)
	}
	return nil, nil
}
func (m *MockUserRepo) UpdateSession(ctx context.Context, userID int64, sessionID string, expiry time.Time) error {
	if m.UpdateSessionFunc != nil {
		return m.UpdateSessionFunc(ctx, userID, sessionID, expiry)
	}
	return nil
}
func (m *MockUserRepo) ClearSessionBySessionID(ctx context.Context, sessionID string) error {
	if m.ClearSessionBySessionIDFunc != nil {
		return m.ClearSessionBySessionIDFunc(ctx, sessionID)
	}
	return nil
}

func apiKeyUsers() *MockUserRepo {
	return &MockUserRepo{
		FindByApiKeyFunc: func(ctx context.Context, apiKey string) (*domain.User, error) {
			if apiKey == testAPIKey {
				return &domain.User{ID: 1, Username: "dispatcher"}, nil
			}
			return nil, nil
		},
	}
}

type testServer struct {
	handler http.Handler
	store   *repository.Store
	clock   *testutil.FakeClock
	engine  *engine.WorkflowEngine
}

func newTestServer(t *testing.T, users UserRepo) *testServer {
	t.Helper()
	store := testutil.NewSQLiteStore(t)
	clock := testutil.NewFakeClock(testNow)
	cat, err := catalog.Default()
	require.NoError(t, err)
	templates, err := notify.DefaultTemplates()
	require.NoError(t, err)
	m := metrics.New(prometheus.NewRegistry())

	eng, err := engine.NewWorkflowEngine(store, cat, engine.DefaultStepActions(), templates, clock,
		engine.Settings{Location: time.UTC, MaxAttempts: 3}, m)
	require.NoError(t, err)
	processor := engine.NewJobProcessor(store, clock, engine.ProcessorSettings{}, m)
	scheduler := engine.NewScheduler(processor, time.Minute, nil, m)

	auth := NewAuthController(users, clock, time.Hour)
	handler := NewRouter(m,
		auth,
		NewShipmentsController(auth, eng),
		NewWorkflowsController(auth, eng),
		NewJobsController(auth, scheduler),
		NewStepsController(auth, cat),
		NewDashboardController(auth, eng),
	)
	return &testServer{handler: handler, store: store, clock: clock, engine: eng}
}

func (s *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("X-API-Key", testAPIKey)
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
