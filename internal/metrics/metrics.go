package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry prometheus.Gatherer

	workflowAdvances    *prometheus.CounterVec
	workflowsCompleted  prometheus.Counter
	jobsScheduled       *prometheus.CounterVec
	jobsProcessed       *prometheus.CounterVec
	jobDuration         *prometheus.HistogramVec
	schedulerTicks      *prometheus.CounterVec
	notifications       *prometheus.CounterVec
	overdueShipments    prometheus.Gauge
	lfdDueShipments     prometheus.Gauge
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

// New registers the collectors with reg. Tests pass a fresh prometheus.NewRegistry().
func New(reg *prometheus.Registry) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		registry: reg,
		workflowAdvances: f.NewCounterVec(prometheus.CounterOpts{
			Name: "shipflow_workflow_advances_total",
			Help: "Workflow advances by the step entered",
		}, []string{"to_step"}),
		workflowsCompleted: f.NewCounter(prometheus.CounterOpts{
			Name: "shipflow_workflows_completed_total",
			Help: "Workflows that reached the terminal step",
		}),
		jobsScheduled: f.NewCounterVec(prometheus.CounterOpts{
			Name: "shipflow_jobs_scheduled_total",
			Help: "Reminder jobs created",
		}, []string{"job_type"}),
		jobsProcessed: f.NewCounterVec(prometheus.CounterOpts{
			Name: "shipflow_jobs_processed_total",
			Help: "Job executions by outcome",
		}, []string{"job_type", "outcome"}),
		jobDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "shipflow_job_duration_seconds",
			Help:    "Job handler duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"job_type"}),
		schedulerTicks: f.NewCounterVec(prometheus.CounterOpts{
			Name: "shipflow_scheduler_ticks_total",
			Help: "Scheduler ticks by result",
		}, []string{"result"}),
		notifications: f.NewCounterVec(prometheus.CounterOpts{
			Name: "shipflow_notifications_total",
			Help: "Rendered notifications by template",
		}, []string{"template"}),
		overdueShipments: f.NewGauge(prometheus.GaugeOpts{
			Name: "shipflow_shipments_overdue",
			Help: "In-progress shipments past their last free day at the last sweep",
		}),
		lfdDueShipments: f.NewGauge(prometheus.GaugeOpts{
			Name: "shipflow_shipments_lfd_due_soon",
			Help: "In-progress shipments whose last free day is within three days at the last sweep",
		}),
		httpRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "shipflow_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "route", "status"}),
		httpRequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "shipflow_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
}

// NewWithRuntime also exposes the Go runtime and process collectors.
func NewWithRuntime() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return New(reg)
}

func (m *Metrics) WorkflowAdvanced(toStep string, completed bool) {
	m.workflowAdvances.WithLabelValues(toStep).Inc()
	if completed {
		m.workflowsCompleted.Inc()
	}
}

func (m *Metrics) JobScheduled(jobType string) {
	m.jobsScheduled.WithLabelValues(jobType).Inc()
}

func (m *Metrics) JobProcessed(jobType, outcome string, took time.Duration) {
	m.jobsProcessed.WithLabelValues(jobType, outcome).Inc()
	m.jobDuration.WithLabelValues(jobType).Observe(took.Seconds())
}

func (m *Metrics) Tick(result string) {
	m.schedulerTicks.WithLabelValues(result).Inc()
}

func (m *Metrics) NotificationRendered(template string) {
	m.notifications.WithLabelValues(template).Inc()
}

func (m *Metrics) SetOverdueShipments(n int) {
	m.overdueShipments.Set(float64(n))
}

func (m *Metrics) SetLFDDueShipments(n int) {
	m.lfdDueShipments.Set(float64(n))
}

// Handler serves the registry in the prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Middleware counts requests per route pattern.
func (m *Metrics) Middleware(route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		m.httpRequests.WithLabelValues(r.Method, route, strconv.Itoa(rec.status/100)+"xx").Inc()
		m.httpRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}
