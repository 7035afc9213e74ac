// Package lifecycle coordinates startup hooks, shutdown hooks and readiness
// across the subsystems of a long-running service.
package lifecycle

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"
	"sync/atomic"
	"time"
)

// ReadinessChecker reports whether a subsystem can serve traffic.
type ReadinessChecker interface {
	Ready() bool
}

// Coordinator owns the service context. Hooks run as goroutines the moment
// they are registered; shutdown hooks are expected to block on Context
// before cleaning up.
type Coordinator struct {
	ctx    context.Context
	cancel context.CancelFunc

	startup  sync.WaitGroup
	shutdown sync.WaitGroup
	started  atomic.Bool

	mu     sync.RWMutex
	checks map[string]ReadinessChecker
}

func New() *Coordinator {
	ctx, cancel := context.WithCancel(context.Background())
	return &Coordinator{
		ctx:    ctx,
		cancel: cancel,
		checks: map[string]ReadinessChecker{},
	}
}

// Context is cancelled when Shutdown begins.
func (c *Coordinator) Context() context.Context {
	return c.ctx
}

func (c *Coordinator) OnStartup(fn func()) {
	c.startup.Go(fn)
}

func (c *Coordinator) OnShutdown(fn func()) {
	c.shutdown.Go(fn)
}

// Track names a subsystem in the readiness report.
func (c *Coordinator) Track(name string, checker ReadinessChecker) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks[name] = checker
}

// Ready holds once startup has finished and no tracked subsystem is down.
func (c *Coordinator) Ready() bool {
	return c.started.Load() && len(c.NotReady()) == 0
}

// Report maps every tracked subsystem to its current readiness.
func (c *Coordinator) Report() map[string]bool {
	c.mu.RLock()
	checks := maps.Clone(c.checks)
	c.mu.RUnlock()

	report := make(map[string]bool, len(checks))
	for name, check := range checks {
		report[name] = check.Ready()
	}
	return report
}

// NotReady lists the tracked subsystems that are currently down, sorted.
func (c *Coordinator) NotReady() []string {
	var down []string
	for name, ok := range c.Report() {
		if !ok {
			down = append(down, name)
		}
	}
	slices.Sort(down)
	return down
}

// WaitForStartup blocks until every startup hook has returned.
func (c *Coordinator) WaitForStartup() {
	c.startup.Wait()
	c.started.Store(true)
}

// Shutdown cancels Context and waits up to timeout for the shutdown hooks.
func (c *Coordinator) Shutdown(timeout time.Duration) error {
	c.cancel()

	done := make(chan struct{})
	go func() {
		c.shutdown.Wait()
		close(done)
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-done:
		return nil
	case <-timer.C:
		return fmt.Errorf("shutdown timeout after %v", timeout)
	}
}
