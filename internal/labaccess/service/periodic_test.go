package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/juju/clock/testclock"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/BrandonDHaskell/labaccess/internal/labaccess/service"
)

// countingRunner reports every pass on runs.
type countingRunner struct {
	runs chan struct{}
	err  error
}

func (r *countingRunner) Name() string { return "counting" }

func (r *countingRunner) RunOnce(ctx context.Context) error {
	select {
	case r.runs <- struct{}{}:
	case <-ctx.Done():
	}
	return r.err
}

func waitRun(t *testing.T, runs <-chan struct{}) {
	t.Helper()
	select {
	case <-runs:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for a pass")
	}
}

func TestPeriodic_DisabledWhenIntervalZero(t *testing.T) {
	r := &countingRunner{runs: make(chan struct{}, 1)}
	p := service.NewPeriodic(r, 0, testclock.NewClock(testNow), silentLogger(), nil)

	p.Start(context.Background())
	p.Stop()

	select {
	case <-r.runs:
		t.Error("disabled runner should not run")
	default:
	}
}

func TestPeriodic_RunsImmediatelyThenOnInterval(t *testing.T) {
	clk := testclock.NewClock(testNow)
	r := &countingRunner{runs: make(chan struct{})}
	m := service.NewMetrics(prometheusRegistry())
	p := service.NewPeriodic(r, 15*time.Minute, clk, silentLogger(), m)

	p.Start(context.Background())
	defer p.Stop()

	waitRun(t, r.runs)
	if err := clk.WaitAdvance(15*time.Minute, time.Second, 1); err != nil {
		t.Fatalf("WaitAdvance: %v", err)
	}
	waitRun(t, r.runs)

	// The loop is parked on the next timer once the counter has moved.
	if err := clk.WaitAdvance(0, time.Second, 1); err != nil {
		t.Fatalf("WaitAdvance: %v", err)
	}
	if got := testutil.ToFloat64(m.WorkerRuns().WithLabelValues("counting", "ok")); got != 2 {
		t.Errorf("worker_runs_total{ok} = %v, want 2", got)
	}
}

func TestPeriodic_ErrorsAreCounted(t *testing.T) {
	clk := testclock.NewClock(testNow)
	r := &countingRunner{runs: make(chan struct{}), err: errors.New("boom")}
	m := service.NewMetrics(prometheusRegistry())
	p := service.NewPeriodic(r, time.Minute, clk, silentLogger(), m)

	p.Start(context.Background())
	waitRun(t, r.runs)
	if err := clk.WaitAdvance(0, time.Second, 1); err != nil {
		t.Fatalf("WaitAdvance: %v", err)
	}
	p.Stop()

	if got := testutil.ToFloat64(m.WorkerRuns().WithLabelValues("counting", "error")); got != 1 {
		t.Errorf("worker_runs_total{error} = %v, want 1", got)
	}
}

func TestPeriodic_StopIsIdempotent(t *testing.T) {
	r := &countingRunner{runs: make(chan struct{}, 8)}
	p := service.NewPeriodic(r, time.Hour, testclock.NewClock(testNow), silentLogger(), nil)

	// Stop before Start must not block.
	p.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	p.Start(ctx)
	cancel()
	p.Stop()
	p.Stop()
}
