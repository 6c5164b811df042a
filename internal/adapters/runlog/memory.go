package runlog

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/mikey/mailindex/internal/core"
)

// MemoryStore is an in-memory implementation of core.RunRepository.
// History is lost when the process exits.
type MemoryStore struct {
	mu     sync.RWMutex
	runs   []core.IngestReport
	logger *zap.Logger
}

// NewMemoryStore creates a new in-memory run log
func NewMemoryStore(logger *zap.Logger) *MemoryStore {
	return &MemoryStore{logger: logger}
}

// Record appends a run report
func (s *MemoryStore) Record(ctx context.Context, report *core.IngestReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r := *report
	r.MessageFailures = append([]core.MessageFailure(nil), report.MessageFailures...)
	r.IndexFailures = append([]core.ItemFailure(nil), report.IndexFailures...)
	s.runs = append(s.runs, r)

	s.logger.Debug("Recorded run", zap.String("run_id", report.RunID))
	return nil
}

// Recent returns up to n runs, newest first. n <= 0 returns every run.
func (s *MemoryStore) Recent(ctx context.Context, n int) ([]core.IngestReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if n <= 0 || n > len(s.runs) {
		n = len(s.runs)
	}
	out := make([]core.IngestReport, 0, n)
	for i := len(s.runs) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, s.runs[i])
	}
	return out, nil
}

// Close is a no-op
func (s *MemoryStore) Close() error {
	return nil
}
