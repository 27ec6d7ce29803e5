// Package shipflow assembles the shipment workflow service: database, step
// catalog, workflow engine, job scheduler, daily sweeps and the HTTP API.
package shipflow

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lmittmann/tint"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/errgroup"

	"github.com/RealZimboGuy/shipflow/internal/catalog"
	"github.com/RealZimboGuy/shipflow/internal/config"
	"github.com/RealZimboGuy/shipflow/internal/controllers"
	"github.com/RealZimboGuy/shipflow/internal/engine"
	"github.com/RealZimboGuy/shipflow/internal/metrics"
	"github.com/RealZimboGuy/shipflow/internal/notify"
	"github.com/RealZimboGuy/shipflow/internal/observability"
	"github.com/RealZimboGuy/shipflow/internal/repository"
	"github.com/RealZimboGuy/shipflow/pkg/shipflow/core"
	"github.com/RealZimboGuy/shipflow/pkg/shipflow/domain"
	"github.com/RealZimboGuy/shipflow/pkg/shipflow/models"
)

const shutdownTimeout = 10 * time.Second

// App is a fully wired service. Build it with New, then call Run.
type App struct {
	DB        *sqlx.DB
	Store     *repository.Store
	Catalog   *catalog.Catalog
	Engine    *engine.WorkflowEngine
	Scheduler *engine.Scheduler
	Sweeper   *engine.Sweeper
	Metrics   *metrics.Metrics
	Handler   http.Handler

	lease           *engine.RedisTickLease
	tracingShutdown func(context.Context) error
}

// New reads the SHIPFLOW_* settings, migrates the database and wires every
// component. A broken step catalog or step action table fails here.
func New(ctx context.Context) (*App, error) {
	clock := core.NewRealClock()
	loc := config.GetLocation()

	dialect, err := repository.ParseDialect(config.GetSystemSettingString(config.DATABASE_TYPE))
	if err != nil {
		return nil, err
	}
	db, err := repository.Open(dialect,
		config.GetSystemSettingString(config.DATABASE_URL),
		config.GetSystemSettingString(config.DATABASE_SQLLITE_FILE_NAME))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	app := &App{DB: db, Store: repository.NewStore(db, dialect)}
	if err := app.wire(ctx, clock, loc); err != nil {
		app.Close()
		return nil, err
	}
	return app, nil
}

func (a *App) wire(ctx context.Context, clock core.Clock, loc *time.Location) error {
	var err error
	a.tracingShutdown, err = observability.InitTracing(ctx, config.GetSystemSettingBool(config.TRACING_ENABLED), os.Stdout)
	if err != nil {
		return err
	}

	a.Catalog, err = catalog.FromConfig(config.GetSystemSettingString(config.STEP_CATALOG_FILE))
	if err != nil {
		return err
	}
	steps := repository.NewStepDefinitionRepository(a.DB, a.Store.Dialect())
	if err := steps.Sync(ctx, a.Catalog.Steps(), clock.Now()); err != nil {
		return fmt.Errorf("sync step definitions: %w", err)
	}

	templates, err := notify.TemplatesFromConfig(config.GetSystemSettingString(config.TEMPLATES_FILE))
	if err != nil {
		return domain.ConfigurationError("load templates: %v", err)
	}
	if _, ok := templates.Get(notify.TemplatePreAlert); !ok {
		slog.Warn("Pre-alert template missing, T05 notifications will be skipped", "template", notify.TemplatePreAlert)
	}

	a.Metrics = metrics.NewWithRuntime()
	maxAttempts := config.GetSystemSettingInteger(config.JOB_MAX_ATTEMPTS)

	a.Engine, err = engine.NewWorkflowEngine(a.Store, a.Catalog, engine.DefaultStepActions(), templates, clock, engine.Settings{
		Location:           loc,
		MaxAttempts:        maxAttempts,
		PreAlertRecipients: config.GetSystemSettingString(config.PREALERT_RECIPIENTS),
	}, a.Metrics)
	if err != nil {
		return err
	}

	processor := engine.NewJobProcessor(a.Store, clock, engine.ProcessorSettings{
		BatchSize:  config.GetSystemSettingInteger(config.SCHEDULER_BATCH_SIZE),
		JobTimeout: config.GetSystemSettingDuration(config.JOB_TIMEOUT),
		Retry:      models.DefaultJobRetryConfig(maxAttempts),
	}, a.Metrics)

	var lease engine.TickLease
	if url := config.GetSystemSettingString(config.REDIS_URL); url != "" {
		a.lease, err = engine.NewRedisTickLeaseFromURL(url, config.GetSystemSettingDuration(config.TICK_LOCK_TTL))
		if err != nil {
			return err
		}
		lease = a.lease
		slog.Info("Scheduler ticks use a redis lease")
	}
	a.Scheduler = engine.NewScheduler(processor, config.GetSystemSettingDuration(config.SCHEDULER_INTERVAL), lease, a.Metrics)
	a.Sweeper = engine.NewSweeper(a.Store, clock, loc, a.Metrics)

	users := repository.NewUserRepository(a.DB, a.Store.Dialect())
	if err := bootstrapAdmin(ctx, users, clock); err != nil {
		return err
	}
	auth := controllers.NewAuthController(users, clock,
		time.Duration(config.GetSystemSettingInteger(config.WEB_SESSION_EXPIRY_HOURS))*time.Hour)
	a.Handler = controllers.NewRouter(a.Metrics,
		auth,
		controllers.NewShipmentsController(auth, a.Engine),
		controllers.NewWorkflowsController(auth, a.Engine),
		controllers.NewJobsController(auth, a.Scheduler),
		controllers.NewStepsController(auth, a.Catalog),
		controllers.NewDashboardController(auth, a.Engine),
	)
	return nil
}

// bootstrapAdmin creates the configured admin user on first start.
func bootstrapAdmin(ctx context.Context, users *repository.UserRepository, clock core.Clock) error {
	username := config.GetSystemSettingString(config.ADMIN_USERNAME)
	password := config.GetSystemSettingString(config.ADMIN_PASSWORD)
	if username == "" || password == "" {
		return nil
	}
	existing, err := users.FindByUsername(ctx, username)
	if err != nil {
		return fmt.Errorf("find admin user: %w", err)
	}
	if existing != nil {
		return nil
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}
	apiKey := config.GetSystemSettingString(config.ADMIN_API_KEY)
	u := &domain.User{
		Username: username,
		Password: string(hashed),
		ApiKey:   sql.NullString{String: apiKey, Valid: apiKey != ""},
		Enabled:  true,
		Created:  clock.Now(),
	}
	if _, err := users.Save(ctx, u); err != nil {
		return fmt.Errorf("create admin user: %w", err)
	}
	slog.Info("Admin user created", "username", username)
	return nil
}

// Run serves HTTP and runs the scheduler and the sweeps until ctx is
// cancelled or one of them fails.
func (a *App) Run(ctx context.Context) error {
	addr := ":" + config.GetSystemSettingString(config.SERVER_WEB_PORT)
	if v := os.Getenv("HTTP_ADDR"); v != "" {
		addr = v
	}
	srv := &http.Server{Addr: addr, Handler: a.Handler, ReadHeaderTimeout: 10 * time.Second}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("Starting HTTP server", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		a.Scheduler.Start(gctx)
		return nil
	})
	g.Go(func() error {
		return a.Sweeper.Start(gctx,
			config.GetSystemSettingString(config.OVERDUE_CHECK_CRON),
			config.GetSystemSettingString(config.DAILY_REMINDER_CRON))
	})
	return g.Wait()
}

// Close releases the database, the redis client and flushes traces.
func (a *App) Close() {
	if a.tracingShutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := a.tracingShutdown(ctx); err != nil {
			slog.Warn("Tracing shutdown failed", "error", err)
		}
	}
	if a.lease != nil {
		_ = a.lease.Close()
	}
	if a.DB != nil {
		_ = a.DB.Close()
	}
}

// Start builds the app and blocks in Run until ctx is done.
func Start(ctx context.Context) error {
	app, err := New(ctx)
	if err != nil {
		return err
	}
	defer app.Close()
	return app.Run(ctx)
}

func SetupLogger() {
	slog.SetDefault(slog.New(
		tint.NewHandler(os.Stderr, &tint.Options{
			Level:      config.GetLogLevel(),
			TimeFormat: time.RFC3339Nano,
		}),
	))
}
