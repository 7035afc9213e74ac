// Package poll runs a function on a fixed interval as an explicitly owned,
// cancellable task.
package poll

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"k8s.io/utils/clock"
)

// Func is invoked on every tick. Returning stop ends the task. A non-nil error
// is logged and the task keeps its schedule.
type Func func(ctx context.Context) (stop bool, err error)

// Task owns at most one running interval loop.
type Task struct {
	name     string
	interval time.Duration
	clock    clock.WithTicker
	fn       Func
	logger   *slog.Logger

	// OnError observes swallowed tick errors.
	OnError func(err error)

	mu      sync.Mutex
	current *run
}

type run struct {
	ticker clock.Ticker
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates an inactive Task. A nil clock uses the real clock.
func New(name string, interval time.Duration, clk clock.WithTicker, fn Func, logger *slog.Logger) *Task {
	if clk == nil {
		clk = clock.RealClock{}
	}
	return &Task{
		name:     name,
		interval: interval,
		clock:    clk,
		fn:       fn,
		logger:   logger.With("poller", name),
	}
}

// Activate starts the loop. Any previous loop is stopped first, so repeated
// activation never stacks timers.
func (t *Task) Activate(ctx context.Context) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.stopLocked()

	runCtx, cancel := context.WithCancel(ctx)
	r := &run{
		ticker: t.clock.NewTicker(t.interval),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	t.current = r

	go t.loop(runCtx, r)
}

// Deactivate stops the loop without waiting for an in-flight tick to return.
func (t *Task) Deactivate() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopLocked()
}

// Active reports whether a loop is running.
func (t *Task) Active() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current != nil
}

// Stop deactivates the task and blocks until the loop has exited.
// It must not be called from within the task's own Func.
func (t *Task) Stop() {
	t.mu.Lock()
	r := t.current
	t.stopLocked()
	t.mu.Unlock()

	if r != nil {
		<-r.done
	}
}

func (t *Task) stopLocked() {
	if t.current == nil {
		return
	}
	t.current.ticker.Stop()
	t.current.cancel()
	t.current = nil
}

func (t *Task) release(r *run) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.current == r {
		t.stopLocked()
	}
}

func (t *Task) loop(ctx context.Context, r *run) {
	defer close(r.done)

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.ticker.C():
			if ctx.Err() != nil {
				return
			}

			stop, err := t.fn(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				t.logger.Warn("poll failed", "error", err)
				if t.OnError != nil {
					t.OnError(err)
				}
				continue
			}

			if stop {
				t.logger.Debug("poll complete")
				t.release(r)
				return
			}
		}
	}
}
