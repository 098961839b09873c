package commands

import (
	"context"
	"net/http"
	"time"

	"github.com/dayflow/dayflow/pkg/config"
	"github.com/dayflow/dayflow/pkg/proposal"
	"github.com/dayflow/dayflow/pkg/resilience"
	"github.com/dayflow/dayflow/pkg/services"
	"github.com/dayflow/dayflow/pkg/services/local"
	"github.com/dayflow/dayflow/pkg/stores"
	"github.com/dayflow/dayflow/pkg/telemetry"
	"github.com/dayflow/dayflow/pkg/workflow"
)

// app holds the wired-up process state shared by every subcommand. One app
// is built per invocation and closed when the command returns.
type app struct {
	cfg       config.Config
	log       *telemetry.Logger
	metrics   *telemetry.Metrics
	tracer    *telemetry.Tracer
	store     *stores.SQLiteStore
	queue     resilience.Queue
	replayer  *resilience.Replayer
	proposals *proposal.Store
	orch      *workflow.Orchestrator

	calendar services.Calendar
	tasks    services.Tasks
	mail     services.Mail

	metricsSrv *http.Server
}

// newApp loads configuration and assembles the full stack: telemetry,
// sqlite store, offline queue, resilient service proxies, proposal store,
// and the workflow orchestrator.
func newApp(ctx context.Context, configFile string) (*app, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, err
	}
	if verbose {
		cfg.Logging.Level = "debug"
	}
	if jsonOutput {
		cfg.Logging.Format = "json"
	}

	tcfg := cfg.Telemetry()

	log, err := telemetry.NewLogger(tcfg.Logging)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, log: log}

	a.metrics = telemetry.NewMetrics(tcfg.Metrics)
	if cfg.Metrics.Enabled && cfg.Metrics.ListenAddress != "" {
		a.serveMetrics()
	}

	if cfg.Tracing.Enabled {
		tracer, err := telemetry.NewTracer(tcfg.Tracing,
			cfg.Service.Name, cfg.Service.Version, cfg.Service.Environment)
		if err != nil {
			a.Close(ctx)
			return nil, err
		}
		a.tracer = tracer
	}

	store, err := stores.NewSQLiteStore(stores.Config{Path: cfg.Store.Path})
	if err != nil {
		a.Close(ctx)
		return nil, err
	}
	if err := store.Init(ctx); err != nil {
		a.Close(ctx)
		return nil, err
	}
	a.store = store
	if err := store.Migrate(ctx); err != nil {
		a.Close(ctx)
		return nil, err
	}

	if cfg.Queue.Durable {
		a.queue = stores.NewDurableQueue(store, cfg.Queue.Capacity).WithObserver(a.metrics)
	} else {
		a.queue = resilience.NewMemoryQueue(cfg.Queue.Capacity).WithObserver(a.metrics)
	}

	retrier := resilience.NewRetrier()
	retrier.MaxAttempts = cfg.Retry.MaxAttempts
	retrier.InitialDelay = cfg.Retry.InitialDelay.D()
	retrier.Multiplier = cfg.Retry.Multiplier
	retrier.MaxDelay = cfg.Retry.MaxDelay.D()
	retrier.AttemptTimeout = cfg.Retry.AttemptTimeout.D()

	calendar := resilience.NewCalendarProxy(local.NewCalendar(store), retrier, a.queue, log).
		WithObserver(a.metrics)
	tasks := resilience.NewTaskProxy(local.NewTasks(store), retrier, a.queue, log).
		WithObserver(a.metrics)
	mail := resilience.NewMailProxy(local.NewMail(store), retrier, a.queue, log).
		WithObserver(a.metrics)
	if a.tracer != nil {
		calendar = calendar.WithTracer(a.tracer)
		tasks = tasks.WithTracer(a.tracer)
		mail = mail.WithTracer(a.tracer)
	}

	a.replayer = resilience.NewReplayer(a.queue, retrier, log).
		WithCeiling(cfg.Queue.ReplayCeiling).
		WithObserver(a.metrics)
	calendar.RegisterReplay(a.replayer)
	tasks.RegisterReplay(a.replayer)
	mail.RegisterReplay(a.replayer)
	a.calendar, a.tasks, a.mail = calendar, tasks, mail

	a.proposals = proposal.NewStore(cfg.Proposals.TTL.D(), log).WithObserver(a.metrics)
	a.proposals.Start(ctx, cfg.Proposals.JanitorInterval.D())

	a.orch = workflow.New(a.proposals, workflow.Services{
		Calendar: calendar,
		Tasks:    tasks,
		Mail:     mail,
	}, log).
		WithObserver(a.metrics).
		WithWindow(workflow.DayWindow{
			StartHour: cfg.Workday.StartHour,
			EndHour:   cfg.Workday.EndHour,
		})
	if a.tracer != nil {
		a.orch = a.orch.WithTracer(a.tracer)
	}

	return a, nil
}

func (a *app) serveMetrics() {
	mux := http.NewServeMux()
	path := a.cfg.Metrics.Path
	if path == "" {
		path = "/metrics"
	}
	mux.Handle(path, a.metrics.Handler())

	a.metricsSrv = &http.Server{
		Addr:              a.cfg.Metrics.ListenAddress,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := a.metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.log.WithError(err).Warn("metrics endpoint stopped")
		}
	}()
}

// Close releases everything newApp acquired. Safe on a partially built app.
func (a *app) Close(ctx context.Context) {
	if a.proposals != nil {
		a.proposals.Stop()
	}
	if a.metricsSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		a.metricsSrv.Shutdown(shutdownCtx)
		cancel()
	}
	if a.tracer != nil {
		if err := a.tracer.Shutdown(ctx); err != nil {
			a.log.WithError(err).Warn("tracer shutdown failed")
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.WithError(err).Warn("store close failed")
		}
	}
}
