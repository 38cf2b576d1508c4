package crmsync

import (
	"context"
	"fmt"
	"sync"

	"admissions-lifecycle/internal/models"
)

// ExternalRecord is what MemoryAdapter holds per application.
type ExternalRecord struct {
	ID         string
	Projection map[string]interface{}
	Writes     int
}

// MemoryAdapter is an in-process stand-in for the CRM, used in development
// and tests.
type MemoryAdapter struct {
	mu      sync.Mutex
	records map[string]*ExternalRecord
	failErr error
	pushes  int
	seq     int
}

func NewMemoryAdapter() *MemoryAdapter {
	return &MemoryAdapter{records: make(map[string]*ExternalRecord)}
}

// SetFailing makes pushes fail with err until called with nil.
func (m *MemoryAdapter) SetFailing(err error) {
	m.mu.Lock()
	m.failErr = err
	m.mu.Unlock()
}

func (m *MemoryAdapter) Push(ctx context.Context, applicationID string, projection map[string]interface{}) models.SyncResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pushes++

	if m.failErr != nil {
		return failure("%v", m.failErr)
	}
	if err := ctx.Err(); err != nil {
		return failure("%v", err)
	}

	rec, ok := m.records[applicationID]
	if !ok {
		m.seq++
		rec = &ExternalRecord{ID: fmt.Sprintf("ext-%d", m.seq)}
		m.records[applicationID] = rec
	}
	rec.Projection = projection
	rec.Writes++
	return models.SyncResult{Success: true, ExternalRecordID: rec.ID}
}

// RecordCount is the number of distinct external records.
func (m *MemoryAdapter) RecordCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

// Record returns a copy of the external record for applicationID.
func (m *MemoryAdapter) Record(applicationID string) (ExternalRecord, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[applicationID]
	if !ok {
		return ExternalRecord{}, false
	}
	return *rec, true
}

// Pushes counts every Push call, failed ones included.
func (m *MemoryAdapter) Pushes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pushes
}
