package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"SentiTrade/internal/usecase"
	applogger "SentiTrade/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCycle struct {
	mu      sync.Mutex
	runs    int
	started chan struct{}
	block   bool
	sawStop bool
}

func (f *fakeCycle) Run(ctx context.Context) (*usecase.CycleReport, error) {
	f.mu.Lock()
	f.runs++
	f.mu.Unlock()
	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.block {
		<-ctx.Done()
		f.mu.Lock()
		f.sawStop = true
		f.mu.Unlock()
		return &usecase.CycleReport{Stopped: true}, nil
	}
	return &usecase.CycleReport{}, nil
}

func (f *fakeCycle) Status() usecase.CycleStatus {
	return usecase.CycleStatus{Phase: usecase.PhaseIdle}
}

type fakeReconciler struct {
	n   int
	err error
}

func (f *fakeReconciler) Reconcile(context.Context) (int, error) { return f.n, f.err }

func TestStartRunsCycleAndReportsNextRuns(t *testing.T) {
	cycle := &fakeCycle{started: make(chan struct{}, 1)}
	s := New(cycle, &fakeReconciler{}, applogger.Nop(), WithCycleInterval(time.Hour), WithReconcileInterval(time.Minute))

	require.NoError(t, s.Start())
	select {
	case <-cycle.started:
	case <-time.After(2 * time.Second):
		t.Fatal("cycle did not run on start")
	}

	assert.ErrorIs(t, s.Start(), ErrAlreadyRunning)

	st := s.Status()
	assert.True(t, st.Running)
	require.NotNil(t, st.NextCycle)
	require.NotNil(t, st.NextReconcile)
	assert.True(t, st.NextReconcile.Before(*st.NextCycle))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))
	assert.False(t, s.Status().Running)
	assert.ErrorIs(t, s.Stop(ctx), ErrNotRunning)
}

func TestStopCancelsInFlightCycle(t *testing.T) {
	cycle := &fakeCycle{started: make(chan struct{}, 1), block: true}
	s := New(cycle, &fakeReconciler{}, applogger.Nop(), WithCycleInterval(time.Hour))

	require.NoError(t, s.Start())
	<-cycle.started

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))

	cycle.mu.Lock()
	defer cycle.mu.Unlock()
	assert.True(t, cycle.sawStop)
}

func TestRestartAfterStop(t *testing.T) {
	cycle := &fakeCycle{}
	s := New(cycle, &fakeReconciler{}, applogger.Nop(), WithRunOnStart(false))
	require.NoError(t, s.Start())
	require.NoError(t, s.Stop(context.Background()))
	require.NoError(t, s.Start())
	assert.True(t, s.Running())
	require.NoError(t, s.Stop(context.Background()))
}

func TestReconcileNowRecordsOutcome(t *testing.T) {
	rec := &fakeReconciler{n: 3}
	s := New(&fakeCycle{}, rec, applogger.Nop())

	n, err := s.ReconcileNow(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	st := s.Status()
	require.NotNil(t, st.LastReconcile)
	assert.Equal(t, 3, st.LastReconciled)

	rec.err = errors.New("broker down")
	_, err = s.ReconcileNow(context.Background())
	assert.Error(t, err)
	assert.Equal(t, "broker down", s.Status().LastReconcileErr)
}

func TestRunCycleNow(t *testing.T) {
	cycle := &fakeCycle{}
	s := New(cycle, &fakeReconciler{}, applogger.Nop())
	_, err := s.RunCycleNow(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, cycle.runs)
}
