// Package audit stores the append-only log of who did what to which application.
package audit

import (
	"context"
	"time"

	"admissions-lifecycle/internal/models"

	"github.com/google/uuid"
)

// Recorder appends immutable audit entries. Append must be durable before it
// returns nil and must be safe for concurrent callers.
type Recorder interface {
	Append(ctx context.Context, entry models.AuditEntry) (models.AuditEntry, error)
	List(ctx context.Context, filter models.AuditFilter) ([]models.AuditEntry, error)
}

const defaultListLimit = 500

// prepare assigns an id and timestamp when the caller left them empty.
func prepare(entry models.AuditEntry, now time.Time) models.AuditEntry {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = now
	}
	entry.Timestamp = entry.Timestamp.UTC()
	return entry
}

func limitOf(f models.AuditFilter) int {
	if f.Limit <= 0 {
		return defaultListLimit
	}
	return f.Limit
}
