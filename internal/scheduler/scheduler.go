package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"SentiTrade/internal/usecase"
	applogger "SentiTrade/pkg/logger"

	"github.com/robfig/cron/v3"
)

var (
	ErrAlreadyRunning = errors.New("scheduler already running")
	ErrNotRunning     = errors.New("scheduler not running")
)

// CycleRunner runs one trading cycle.
type CycleRunner interface {
	Run(ctx context.Context) (*usecase.CycleReport, error)
	Status() usecase.CycleStatus
}

type Reconciler interface {
	Reconcile(ctx context.Context) (int, error)
}

type Option func(*Scheduler)

func WithCycleInterval(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.cycleEvery = d
		}
	}
}

func WithReconcileInterval(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.reconcileEvery = d
		}
	}
}

// WithRunOnStart runs a cycle as soon as the scheduler starts.
func WithRunOnStart(v bool) Option {
	return func(s *Scheduler) { s.runOnStart = v }
}

func WithReconcileTimeout(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.reconcileTimeout = d
		}
	}
}

// Status is the control-surface view of the scheduler.
type Status struct {
	Running          bool                `json:"running"`
	StartedAt        *time.Time          `json:"started_at,omitempty"`
	Cycle            usecase.CycleStatus `json:"cycle"`
	NextCycle        *time.Time          `json:"next_cycle,omitempty"`
	NextReconcile    *time.Time          `json:"next_reconcile,omitempty"`
	LastReconcile    *time.Time          `json:"last_reconcile,omitempty"`
	LastReconciled   int                 `json:"last_reconciled"`
	LastReconcileErr string              `json:"last_reconcile_error,omitempty"`
}

// Scheduler owns the two recurring jobs: the decision cycle and reconciliation.
type Scheduler struct {
	cycle      CycleRunner
	reconciler Reconciler
	logger     *applogger.Logger

	cycleEvery       time.Duration
	reconcileEvery   time.Duration
	reconcileTimeout time.Duration
	runOnStart       bool

	mu          sync.Mutex
	cron        *cron.Cron
	cycleID     cron.EntryID
	reconcileID cron.EntryID
	ctx         context.Context
	cancel      context.CancelFunc
	startedAt   time.Time
	kicks       sync.WaitGroup

	lastMu        sync.Mutex
	lastReconcile time.Time
	lastCount     int
	lastErr       error
}

func New(cycle CycleRunner, reconciler Reconciler, logger *applogger.Logger, opts ...Option) *Scheduler {
	s := &Scheduler{
		cycle:            cycle,
		reconciler:       reconciler,
		logger:           logger.With(applogger.String("component", "scheduler")),
		cycleEvery:       5 * time.Minute,
		reconcileEvery:   time.Minute,
		reconcileTimeout: time.Minute,
		runOnStart:       true,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start registers both jobs and starts the cron. Overlapping runs of the same job are skipped.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cron != nil {
		return ErrAlreadyRunning
	}

	cl := cronLogger{l: s.logger}
	c := cron.New(
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	ctx, cancel := context.WithCancel(context.Background())

	cycleID, err := c.AddFunc(every(s.cycleEvery), func() { s.runCycle(ctx) })
	if err != nil {
		cancel()
		return fmt.Errorf("register cycle job: %w", err)
	}
	reconcileID, err := c.AddFunc(every(s.reconcileEvery), func() { s.runReconcile(ctx) })
	if err != nil {
		cancel()
		return fmt.Errorf("register reconcile job: %w", err)
	}

	s.cron, s.ctx, s.cancel = c, ctx, cancel
	s.cycleID, s.reconcileID = cycleID, reconcileID
	s.startedAt = time.Now().UTC()
	c.Start()

	if s.runOnStart {
		s.kicks.Add(1)
		go func() {
			defer s.kicks.Done()
			s.runCycle(ctx)
		}()
	}

	s.logger.Info("scheduler started",
		applogger.Duration("cycle_interval_ms", s.cycleEvery),
		applogger.Duration("reconcile_interval_ms", s.reconcileEvery))
	return nil
}

// Stop cancels the running cycle after its current instrument and waits for jobs to return or ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	c, cancel := s.cron, s.cancel
	s.cron, s.cancel = nil, nil
	s.mu.Unlock()
	if c == nil {
		return ErrNotRunning
	}

	cancel()
	jobsDone := c.Stop()
	kicksDone := make(chan struct{})
	go func() {
		s.kicks.Wait()
		close(kicksDone)
	}()

	for _, done := range []<-chan struct{}{jobsDone.Done(), kicksDone} {
		select {
		case <-done:
		case <-ctx.Done():
			return fmt.Errorf("waiting for jobs: %w", ctx.Err())
		}
	}
	s.logger.Info("scheduler stopped")
	return nil
}

func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cron != nil
}

func (s *Scheduler) Status() Status {
	st := Status{Cycle: s.cycle.Status()}

	s.mu.Lock()
	if s.cron != nil {
		st.Running = true
		started := s.startedAt
		st.StartedAt = &started
		st.NextCycle = nextRun(s.cron.Entry(s.cycleID))
		st.NextReconcile = nextRun(s.cron.Entry(s.reconcileID))
	}
	s.mu.Unlock()

	s.lastMu.Lock()
	if !s.lastReconcile.IsZero() {
		last := s.lastReconcile
		st.LastReconcile = &last
		st.LastReconciled = s.lastCount
		if s.lastErr != nil {
			st.LastReconcileErr = s.lastErr.Error()
		}
	}
	s.lastMu.Unlock()
	return st
}

// RunCycleNow runs one cycle in the caller's goroutine, outside the cron.
func (s *Scheduler) RunCycleNow(ctx context.Context) (*usecase.CycleReport, error) {
	return s.cycle.Run(ctx)
}

// ReconcileNow runs one reconciliation pass in the caller's goroutine.
func (s *Scheduler) ReconcileNow(ctx context.Context) (int, error) {
	n, err := s.reconciler.Reconcile(ctx)
	s.recordReconcile(n, err)
	return n, err
}

func (s *Scheduler) runCycle(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if _, err := s.cycle.Run(ctx); err != nil {
		if errors.Is(err, usecase.ErrCycleRunning) {
			s.logger.Debug("cycle still running, tick skipped")
			return
		}
		s.logger.Error("trading cycle failed", applogger.Error(err))
	}
}

func (s *Scheduler) runReconcile(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	rctx, cancel := context.WithTimeout(ctx, s.reconcileTimeout)
	defer cancel()
	n, err := s.reconciler.Reconcile(rctx)
	s.recordReconcile(n, err)
	if err != nil {
		s.logger.Warn("scheduled reconcile failed", applogger.Int("updated", n), applogger.Error(err))
	}
}

func (s *Scheduler) recordReconcile(n int, err error) {
	s.lastMu.Lock()
	s.lastReconcile = time.Now().UTC()
	s.lastCount = n
	s.lastErr = err
	s.lastMu.Unlock()
}

func every(d time.Duration) string {
	return "@every " + d.String()
}

func nextRun(e cron.Entry) *time.Time {
	if e.ID == 0 || e.Next.IsZero() {
		return nil
	}
	next := e.Next.UTC()
	return &next
}

// cronLogger adapts the structured logger to cron.Logger.
type cronLogger struct {
	l *applogger.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debug("cron: "+msg, kvFields(keysAndValues)...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Error("cron: "+msg, append(kvFields(keysAndValues), applogger.Error(err))...)
}

func kvFields(kv []interface{}) []applogger.Field {
	fields := make([]applogger.Field, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			continue
		}
		fields = append(fields, applogger.Any(key, kv[i+1]))
	}
	return fields
}
