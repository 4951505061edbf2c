package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type passCounter struct {
	mu    sync.Mutex
	count int
}

func (c *passCounter) run(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.count++
}

func (c *passCounter) value() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.count
}

func TestIntervalRunner_RunsImmediatelyThenOnTicks(t *testing.T) {
	counter := &passCounter{}
	runner := NewIntervalRunner("test", 20*time.Millisecond, counter.run, testLogger())

	runner.Start()
	defer runner.Stop()

	waitFor(t, time.Second, func() bool { return counter.value() >= 3 })
}

func TestIntervalRunner_StopHaltsLoop(t *testing.T) {
	counter := &passCounter{}
	runner := NewIntervalRunner("test", 10*time.Millisecond, counter.run, testLogger())

	runner.Start()
	waitFor(t, time.Second, func() bool { return counter.value() >= 1 })
	runner.Stop()

	stopped := counter.value()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, stopped, counter.value())
}

func TestIntervalRunner_Lifecycle(t *testing.T) {
	runner := NewIntervalRunner("test", time.Hour, func(ctx context.Context) {}, testLogger())

	assert.False(t, runner.IsRunning())

	runner.Start()
	assert.True(t, runner.IsRunning())

	// Second Start is a no-op.
	runner.Start()
	assert.True(t, runner.IsRunning())

	runner.Stop()
	assert.False(t, runner.IsRunning())

	runner.Stop()
	assert.False(t, runner.IsRunning())
}

func TestIntervalRunner_ForceRun(t *testing.T) {
	counter := &passCounter{}
	runner := NewIntervalRunner("test", time.Hour, counter.run, testLogger())

	// Not running: force run is ignored.
	runner.ForceRun()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 0, counter.value())

	runner.Start()
	defer runner.Stop()
	waitFor(t, time.Second, func() bool { return counter.value() == 1 })

	runner.ForceRun()
	waitFor(t, time.Second, func() bool { return counter.value() == 2 })
}

func TestIntervalRunner_DefaultInterval(t *testing.T) {
	runner := NewIntervalRunner("test", 0, func(ctx context.Context) {}, testLogger())
	assert.Equal(t, 5*time.Minute, runner.interval)
}
