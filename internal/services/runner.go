package services

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const passTimeout = 5 * time.Minute

// IntervalRunner executes one pipeline pass on a fixed interval in a
// background goroutine. The first pass runs immediately on Start; Stop
// waits for an in-flight pass to finish.
type IntervalRunner struct {
	name     string
	interval time.Duration
	pass     func(ctx context.Context)
	logger   *slog.Logger
	stopCh   chan struct{}
	wg       sync.WaitGroup
	running  bool
	mu       sync.Mutex
}

// NewIntervalRunner creates a runner for the named pass.
func NewIntervalRunner(name string, interval time.Duration, pass func(ctx context.Context), logger *slog.Logger) *IntervalRunner {
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	return &IntervalRunner{
		name:     name,
		interval: interval,
		pass:     pass,
		logger:   logger,
		stopCh:   make(chan struct{}),
	}
}

// Start begins the background loop. Calling Start on a running runner is a
// no-op.
func (r *IntervalRunner) Start() {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return
	}
	r.running = true
	r.stopCh = make(chan struct{})
	r.mu.Unlock()

	r.wg.Add(1)
	go r.loop()

	r.logger.Info("background runner started",
		slog.String("runner", r.name),
		slog.Duration("interval", r.interval))
}

// Stop gracefully stops the background loop.
func (r *IntervalRunner) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	r.running = false
	close(r.stopCh)
	r.mu.Unlock()

	r.wg.Wait()
	r.logger.Info("background runner stopped", slog.String("runner", r.name))
}

// IsRunning returns whether the runner's loop is currently active.
func (r *IntervalRunner) IsRunning() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

// ForceRun triggers one immediate pass outside the schedule.
func (r *IntervalRunner) ForceRun() {
	r.mu.Lock()
	running := r.running
	r.mu.Unlock()

	if !running {
		r.logger.Warn("force run called but runner is not active",
			slog.String("runner", r.name))
		return
	}

	r.logger.Info("force run triggered", slog.String("runner", r.name))
	go r.runPass()
}

func (r *IntervalRunner) loop() {
	defer r.wg.Done()

	// Run immediately on start
	r.runPass()

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stopCh:
			return
		case <-ticker.C:
			r.runPass()
		}
	}
}

func (r *IntervalRunner) runPass() {
	ctx, cancel := context.WithTimeout(context.Background(), passTimeout)
	defer cancel()

	r.pass(ctx)
}
