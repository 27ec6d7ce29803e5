package controllers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RealZimboGuy/shipflow/internal/util"
	"github.com/RealZimboGuy/shipflow/pkg/shipflow/domain"
	"github.com/RealZimboGuy/shipflow/pkg/shipflow/models"
)

func createShipment(t *testing.T, s *testServer, req models.CreateShipmentRequest) models.CreateShipmentResponse {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/api/shipments", req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[models.CreateShipmentResponse](t, rec)
}

func TestShipmentLifecycle(t *testing.T) {
	s := newTestServer(t, apiKeyUsers())
	pieces := int64(12)
	created := createShipment(t, s, models.CreateShipmentRequest{
		MAWBNumber: "784-5555-0001",
		OriginPort: "PVG",
		DestPort:   "LAX",
		LFD:        "2026-03-20",
		Consignee:  "ACME Imports",
		Pieces:     &pieces,
	})
	assert.Equal(t, "T01", created.CurrentStep)

	rec := s.do(t, http.MethodGet, "/api/shipments/"+itoa(created.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[models.ShipmentResponse](t, rec)
	assert.Equal(t, "784-5555-0001", got.MAWBNumber)
	assert.Equal(t, "2026-03-20", got.LFD)
	assert.Equal(t, int64(12), got.Pieces)
	assert.Equal(t, domain.ShipmentStatusInProgress, got.Status)

	rec = s.do(t, http.MethodDelete, "/api/shipments/"+itoa(created.ID), nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = s.do(t, http.MethodGet, "/api/shipments/"+itoa(created.ID), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = s.do(t, http.MethodDelete, "/api/shipments/"+itoa(created.ID), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateShipmentValidation(t *testing.T) {
	s := newTestServer(t, apiKeyUsers())

	rec := s.do(t, http.MethodPost, "/api/shipments", models.CreateShipmentRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/shipments", models.CreateShipmentRequest{MAWBNumber: "784-1", LFD: "20/03/2026"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "lfd")

	rec = s.do(t, http.MethodPost, "/api/shipments", models.CreateShipmentRequest{MAWBNumber: "784-2", InitialStep: "T77"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/shipments/abc", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdvanceThroughAPI(t *testing.T) {
	s := newTestServer(t, apiKeyUsers())
	created := createShipment(t, s, models.CreateShipmentRequest{MAWBNumber: "784-5555-0002", InitialStep: "T14"})
	base := "/api/workflows/shipment/" + itoa(created.ID)

	rec := s.do(t, http.MethodPost, base+"/advance", map[string]any{"note": "container returned"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	adv := decode[models.AdvanceWorkflowResponse](t, rec)
	assert.Equal(t, "T14", adv.FromStep)
	assert.Equal(t, "COMPLETE", adv.ToStep)
	assert.True(t, adv.IsCompleted)

	rec = s.do(t, http.MethodPost, base+"/advance", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = s.do(t, http.MethodGet, base+"/events", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	events := decode[[]models.EventResponse](t, rec)
	require.Len(t, events, 1)
	assert.Equal(t, "dispatcher", events[0].ActorID)
	assert.Equal(t, "container returned", events[0].Details["note"])

	rec = s.do(t, http.MethodGet, base, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	progress := decode[models.WorkflowProgressResponse](t, rec)
	assert.Equal(t, "COMPLETE", progress.CurrentStep)
	assert.NotNil(t, progress.CompletedAt)

	rec = s.do(t, http.MethodPost, "/api/workflows/shipment/9999/advance", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodPost, base+"/advance", "just a string")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestJobsListAndRetry(t *testing.T) {
	s := newTestServer(t, apiKeyUsers())
	created := createShipment(t, s, models.CreateShipmentRequest{MAWBNumber: "784-5555-0003", InitialStep: "T02"})
	rec := s.do(t, http.MethodPost, "/api/workflows/shipment/"+itoa(created.ID)+"/advance", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/jobs?job_type=pickup_reminder&shipment_id="+itoa(created.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[models.SearchJobsResponse](t, rec)
	require.Len(t, list.Jobs, 1)
	job := list.Jobs[0]
	assert.Equal(t, string(domain.JobStatusPending), job.Status)
	assert.False(t, job.CanRetry)
	assert.Equal(t, 100, list.Limit)

	rec = s.do(t, http.MethodPost, "/api/jobs/"+itoa(job.ID)+"/retry", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	stored, err := s.store.Jobs().FindByID(context.Background(), job.ID, false)
	require.NoError(t, err)
	stored.Status = domain.JobStatusFailed
	stored.Attempts = 1
	require.NoError(t, s.store.Jobs().Update(context.Background(), stored))

	rec = s.do(t, http.MethodGet, "/api/jobs?status=failed", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list = decode[models.SearchJobsResponse](t, rec)
	require.Len(t, list.Jobs, 1)
	assert.True(t, list.Jobs[0].CanRetry)

	rec = s.do(t, http.MethodPost, "/api/jobs/"+itoa(job.ID)+"/retry", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	retried := decode[models.JobResponse](t, rec)
	assert.Equal(t, string(domain.JobStatusPending), retried.Status)
	assert.Equal(t, 0, retried.Attempts)

	rec = s.do(t, http.MethodPost, "/api/jobs/4242/retry", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/jobs?limit=5000", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = s.do(t, http.MethodGet, "/api/jobs?shipment_id=x", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStepsAndFlowchart(t *testing.T) {
	s := newTestServer(t, apiKeyUsers())

	rec := s.do(t, http.MethodGet, "/api/steps", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	steps := decode[[]stepResponse](t, rec)
	require.Len(t, steps, 15)
	assert.Equal(t, "T01", steps[0].Code)
	assert.Equal(t, "T02", steps[0].Next)
	assert.Empty(t, steps[14].Next)

	rec = s.do(t, http.MethodGet, "/api/steps/flowchart", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	chart := decode[flowchartResponse](t, rec)
	assert.True(t, strings.HasPrefix(chart.Mermaid, "flowchart"), chart.Mermaid)
}

func TestDashboardStats(t *testing.T) {
	s := newTestServer(t, apiKeyUsers())
	created := createShipment(t, s, models.CreateShipmentRequest{MAWBNumber: "784-5555-0004", LFD: "2026-03-01"})
	rec := s.do(t, http.MethodPost, "/api/workflows/shipment/"+itoa(created.ID)+"/advance", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/dashboard/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	stats := decode[models.DashboardStats](t, rec)
	assert.Equal(t, 1, stats.TotalShipments)
	assert.Equal(t, 1, stats.ActiveShipments)
	assert.Equal(t, 1, stats.OverdueShipments)
	require.Len(t, stats.RecentEvents, 1)
}

func TestUnauthenticatedAndOperationalRoutes(t *testing.T) {
	s := newTestServer(t, apiKeyUsers())

	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/steps", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	body, err := util.DecodeJSONBodyResponse[util.ErrorResponse](rec.Result())
	require.NoError(t, err)
	assert.Equal(t, "unauthorized", body.Error)

	rec = httptest.NewRecorder()
	s.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	s.do(t, http.MethodGet, "/api/steps", nil)
	rec = httptest.NewRecorder()
	s.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "shipflow_http_requests_total")
}

func TestCreateShipmentUsesEngineClock(t *testing.T) {
	s := newTestServer(t, apiKeyUsers())
	s.clock.Add(90 * time.Minute)
	created := createShipment(t, s, models.CreateShipmentRequest{MAWBNumber: "784-5555-0005"})

	ws, err := s.engine.Get(context.Background(), created.ID)
	require.NoError(t, err)
	assert.WithinDuration(t, testNow.Add(90*time.Minute), ws.StartedAt, time.Millisecond)
}
