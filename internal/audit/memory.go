package audit

import (
	"context"
	"sync"

	"admissions-lifecycle/internal/common/clock"
	"admissions-lifecycle/internal/models"
)

// MemoryRecorder keeps entries in process. Used for development and tests.
type MemoryRecorder struct {
	mu      sync.Mutex
	clock   clock.Clock
	entries []models.AuditEntry
	failErr error
}

func NewMemoryRecorder(c clock.Clock) *MemoryRecorder {
	if c == nil {
		c = clock.System()
	}
	return &MemoryRecorder{clock: c}
}

// SetFailing makes every Append return err until called again with nil.
func (r *MemoryRecorder) SetFailing(err error) {
	r.mu.Lock()
	r.failErr = err
	r.mu.Unlock()
}

func (r *MemoryRecorder) Append(_ context.Context, entry models.AuditEntry) (models.AuditEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failErr != nil {
		return models.AuditEntry{}, r.failErr
	}
	entry = prepare(entry, r.clock.Now())
	r.entries = append(r.entries, entry)
	return entry, nil
}

// List returns matching entries newest first.
func (r *MemoryRecorder) List(_ context.Context, f models.AuditFilter) ([]models.AuditEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	limit := limitOf(f)
	out := make([]models.AuditEntry, 0)
	for i := len(r.entries) - 1; i >= 0 && len(out) < limit; i-- {
		e := r.entries[i]
		if f.TargetID != "" && e.TargetID != f.TargetID {
			continue
		}
		if f.Action != "" && e.Action != f.Action {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

// Len is the number of entries ever appended.
func (r *MemoryRecorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
