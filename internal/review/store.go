package review

import (
	"log/slog"
	"sync"

	"github.com/JaimeStill/creditdesk/internal/applications"
	"github.com/JaimeStill/creditdesk/internal/metrics"
)

// store holds the view's snapshot. Each fetch takes a generation from begin;
// a completed fetch is applied only if no newer fetch has completed first.
type store struct {
	mu       sync.Mutex
	snap     *applications.Application
	issued   uint64
	applied  uint64
	disposed bool
	logger   *slog.Logger
}

func newStore(logger *slog.Logger) *store {
	return &store{logger: logger}
}

func (s *store) begin() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.issued++
	return s.issued
}

func (s *store) apply(gen uint64, next *applications.Application) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.disposed {
		return false
	}
	if gen <= s.applied {
		s.discard("stale", gen)
		return false
	}
	if s.snap != nil {
		if s.snap.DecisionLocked && !next.DecisionLocked {
			s.discard("lock regression", gen)
			return false
		}
		if len(next.DecisionHistory) < len(s.snap.DecisionHistory) {
			s.discard("history regression", gen)
			return false
		}
	}

	s.applied = gen
	s.snap = next
	return true
}

func (s *store) discard(reason string, gen uint64) {
	s.logger.Warn("snapshot discarded", "reason", reason, "generation", gen, "applied", s.applied)
	metrics.RecordDiscardedSnapshot()
}

// current returns the held snapshot. Callers must treat it as read-only.
func (s *store) current() *applications.Application {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap
}

func (s *store) dispose() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.disposed = true
}
