// Package store is the persistence contract the lifecycle engine relies on.
package store

import (
	"context"
	"iter"
	"time"

	"admissions-lifecycle/internal/models"
)

// Store persists applications. ConditionalUpdate must be a single atomic
// compare-and-swap on status.
type Store interface {
	Get(ctx context.Context, id string) (models.Application, error)
	Create(ctx context.Context, app models.Application) error
	// ConditionalUpdate applies patch only if the stored status still equals
	// expected. It returns ErrConflict otherwise and ErrNotFound if id is gone.
	ConditionalUpdate(ctx context.Context, id string, expected models.Status, patch models.StatusPatch) (models.Application, error)
	List(ctx context.Context, filter models.ApplicationFilter) ([]models.Application, error)
	Delete(ctx context.Context, id string) error
	// UpdateFields merges fields into the extracted field set.
	UpdateFields(ctx context.Context, id string, fields map[string]interface{}) error
	// Stats counts applications per status; ThisWeek counts those created at
	// or after since.
	Stats(ctx context.Context, since time.Time) (models.ApplicationStats, error)
}

// Iterate pages through every application matching filter, batch rows at a
// time. Iteration stops at the first error, which is yielded.
func Iterate(ctx context.Context, s Store, filter models.ApplicationFilter, batch int) iter.Seq2[models.Application, error] {
	if batch <= 0 {
		batch = 500
	}
	return func(yield func(models.Application, error) bool) {
		f := filter
		f.Limit = batch
		for {
			page, err := s.List(ctx, f)
			if err != nil {
				yield(models.Application{}, err)
				return
			}
			for _, app := range page {
				if !yield(app, nil) {
					return
				}
			}
			if len(page) < batch {
				return
			}
			f.AfterID = page[len(page)-1].ID
		}
	}
}
