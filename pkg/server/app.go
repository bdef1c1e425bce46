package server

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"SentiTrade/internal/scheduler"
	"SentiTrade/internal/usecase"
	"SentiTrade/pkg/config"
	xhttp "SentiTrade/pkg/http"
	pkgkafka "SentiTrade/pkg/kafka"
	applogger "SentiTrade/pkg/logger"
)

// App encapsulates the entire application lifecycle.
type App struct {
	cfg        *config.Config
	logger     *applogger.Logger
	httpServer *xhttp.Server
	scheduler  *scheduler.Scheduler
	consumer   *pkgkafka.Consumer
}

// New creates a new App. consumer may be nil when kafka is disabled.
func New(
	cfg *config.Config,
	logger *applogger.Logger,
	httpServer *xhttp.Server,
	sched *scheduler.Scheduler,
	consumer *pkgkafka.Consumer,
) *App {
	return &App{
		cfg:        cfg,
		logger:     logger,
		httpServer: httpServer,
		scheduler:  sched,
		consumer:   consumer,
	}
}

// Run starts the consumer, the scheduler and the HTTP server and blocks until
// ctx is cancelled, SIGINT/SIGTERM arrives or the listener fails.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if a.consumer != nil {
		if err := a.consumer.Start(); err != nil {
			return fmt.Errorf("start kafka consumer: %w", err)
		}
		a.logger.Info("kafka consumer started", applogger.String("topic", a.cfg.Kafka.ObservationsTopic))
	}

	if a.cfg.Scheduler.AutoStart {
		if err := a.scheduler.Start(); err != nil {
			return fmt.Errorf("start scheduler: %w", err)
		}
	} else {
		a.logger.Info("scheduler idle; start it with POST /api/bot/start")
	}

	var runErr error
	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-a.httpServer.Start():
		if err != nil {
			runErr = fmt.Errorf("http server: %w", err)
		}
	}
	return errors.Join(runErr, a.shutdown())
}

// RunCycle executes one trading cycle synchronously, without the HTTP server.
func (a *App) RunCycle(ctx context.Context) (*usecase.CycleReport, error) {
	return a.scheduler.RunCycleNow(ctx)
}

// Reconcile runs one position reconciliation pass.
func (a *App) Reconcile(ctx context.Context) (int, error) {
	return a.scheduler.ReconcileNow(ctx)
}

// shutdown stops inbound work first; clients are closed by the DI cleanup afterwards.
func (a *App) shutdown() error {
	a.logger.Info("shutting down")
	var errs []error

	httpCtx, cancel := context.WithTimeout(context.Background(), a.httpServer.ShutdownTimeout())
	defer cancel()
	if err := a.httpServer.Stop(httpCtx); err != nil {
		a.logger.Error("http shutdown", applogger.Error(err))
		errs = append(errs, err)
	}

	// the in-flight instrument may take up to its own timeout
	schedCtx, cancelSched := context.WithTimeout(context.Background(),
		a.cfg.Server.ShutdownTimeout+a.cfg.Scheduler.InstrumentTimeout)
	defer cancelSched()
	if err := a.scheduler.Stop(schedCtx); err != nil && !errors.Is(err, scheduler.ErrNotRunning) {
		a.logger.Error("scheduler stop", applogger.Error(err))
		errs = append(errs, err)
	}

	if a.consumer != nil {
		consCtx, cancelCons := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
		defer cancelCons()
		if err := a.consumer.Stop(consCtx); err != nil {
			a.logger.Warn("kafka consumer stop", applogger.Error(err))
			errs = append(errs, err)
		}
	}

	a.logger.Info("shutdown complete")
	return errors.Join(errs...)
}
