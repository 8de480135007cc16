package service

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/juju/clock"
)

// Runner is one reconciliation pass.  RunOnce must be safe to repeat: the
// workers coordinate only through idempotency checks in the store.
type Runner interface {
	Name() string
	RunOnce(ctx context.Context) error
}

// Periodic drives a Runner on its own timer.  It runs one pass immediately
// on Start, then one per interval, and exits when ctx is cancelled or Stop
// is called.  A pass in progress is allowed to finish its current unit of
// work.
//
// An interval of 0 disables the runner.
type Periodic struct {
	runner   Runner
	interval time.Duration
	clock    clock.Clock
	logger   *log.Logger
	metrics  *Metrics

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewPeriodic creates a runner loop but does not start it.
func NewPeriodic(r Runner, interval time.Duration, clk clock.Clock, logger *log.Logger, m *Metrics) *Periodic {
	return &Periodic{
		runner:   r,
		interval: interval,
		clock:    clk,
		logger:   logger,
		metrics:  m,
		done:     make(chan struct{}),
	}
}

// Start begins the background loop.  Calling it more than once has no
// effect.
func (p *Periodic) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return
	}
	p.started = true

	if p.interval <= 0 {
		p.logger.Printf("%s disabled (interval=0)", p.runner.Name())
		close(p.done)
		return
	}

	ctx, p.cancel = context.WithCancel(ctx)
	go p.loop(ctx)

	p.logger.Printf("%s started (interval=%s)", p.runner.Name(), p.interval)
}

// Stop signals the loop to exit and waits for it.  Stop is idempotent and
// returns at once if Start was never called.
func (p *Periodic) Stop() {
	p.mu.Lock()
	started, cancel := p.started, p.cancel
	p.mu.Unlock()

	if !started {
		return
	}
	if cancel != nil {
		cancel()
	}
	<-p.done
}

func (p *Periodic) loop(ctx context.Context) {
	defer close(p.done)

	p.run(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.clock.After(p.interval):
			p.run(ctx)
		}
	}
}

func (p *Periodic) run(ctx context.Context) {
	err := p.runner.RunOnce(ctx)
	if ctx.Err() != nil {
		return
	}
	p.metrics.workerRun(p.runner.Name(), err)
	if err != nil {
		p.logger.Printf("%s error: %v", p.runner.Name(), err)
	}
}
