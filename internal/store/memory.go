package store

import (
	"context"
	"sort"
	"sync"
	"time"

	apperrors "admissions-lifecycle/internal/common/errors"
	"admissions-lifecycle/internal/models"
)

// MemoryStore is a mutex-guarded map. The mutex makes ConditionalUpdate atomic;
// the engine itself holds no locks.
type MemoryStore struct {
	mu   sync.Mutex
	apps map[string]models.Application
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{apps: make(map[string]models.Application)}
}

func (s *MemoryStore) Get(_ context.Context, id string) (models.Application, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	app, ok := s.apps[id]
	if !ok {
		return models.Application{}, apperrors.NewNotFoundError(id)
	}
	return app.Clone(), nil
}

func (s *MemoryStore) Create(_ context.Context, app models.Application) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.apps[app.ID]; exists {
		return apperrors.NewConflictError(app.ID, "")
	}
	s.apps[app.ID] = app.Clone()
	return nil
}

func (s *MemoryStore) ConditionalUpdate(_ context.Context, id string, expected models.Status, patch models.StatusPatch) (models.Application, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	app, ok := s.apps[id]
	if !ok {
		return models.Application{}, apperrors.NewNotFoundError(id)
	}
	if app.Status != expected {
		return models.Application{}, apperrors.NewConflictError(id, string(expected))
	}
	app.Status = patch.Status
	app.DecidedAt = nil
	if patch.DecidedAt != nil {
		d := *patch.DecidedAt
		app.DecidedAt = &d
	}
	app.DecisionNotes = patch.DecisionNotes
	app.UpdatedAt = patch.UpdatedAt
	s.apps[id] = app
	return app.Clone(), nil
}

func (s *MemoryStore) List(_ context.Context, f models.ApplicationFilter) ([]models.Application, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, 0, len(s.apps))
	for id, app := range s.apps {
		if f.Status != "" && app.Status != f.Status {
			continue
		}
		if f.AfterID != "" && id <= f.AfterID {
			continue
		}
		ids = append(ids, id)
	}
	sort.Strings(ids)
	if f.Limit > 0 && len(ids) > f.Limit {
		ids = ids[:f.Limit]
	}

	out := make([]models.Application, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.apps[id].Clone())
	}
	return out, nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.apps[id]; !ok {
		return apperrors.NewNotFoundError(id)
	}
	delete(s.apps, id)
	return nil
}

func (s *MemoryStore) UpdateFields(_ context.Context, id string, fields map[string]interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	app, ok := s.apps[id]
	if !ok {
		return apperrors.NewNotFoundError(id)
	}
	app = app.Clone()
	if app.ExtractedFields == nil {
		app.ExtractedFields = make(map[string]interface{}, len(fields))
	}
	for k, v := range fields {
		app.ExtractedFields[k] = models.CopyValue(v)
	}
	app.UpdatedAt = time.Now().UTC()
	s.apps[id] = app
	return nil
}

func (s *MemoryStore) Stats(_ context.Context, since time.Time) (models.ApplicationStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var st models.ApplicationStats
	for _, app := range s.apps {
		st.Add(app.Status, 1)
		if !app.CreatedAt.Before(since) {
			st.ThisWeek++
		}
	}
	return st, nil
}
