package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	apperrors "admissions-lifecycle/internal/common/errors"
	"admissions-lifecycle/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var created = time.Date(2024, 4, 2, 10, 0, 0, 0, time.UTC)

func pendingApp(id string) models.Application {
	return models.Application{
		ID:              id,
		Status:          models.StatusPending,
		Priority:        models.PriorityNormal,
		CreatedAt:       created,
		UpdatedAt:       created,
		ExtractedFields: map[string]interface{}{"patient_name": "Jane Roe"},
	}
}

// ==========================
// MemoryStore
// ==========================

func TestMemoryStore_GetNotFound(t *testing.T) {
	s := NewMemoryStore()
	_, err := s.Get(context.Background(), "missing")
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, s.Create(ctx, pendingApp("a1")))

	got, _ := s.Get(ctx, "a1")
	got.ExtractedFields["patient_name"] = "mutated"

	again, _ := s.Get(ctx, "a1")
	assert.Equal(t, "Jane Roe", again.ExtractedFields["patient_name"])
}

func TestMemoryStore_ReturnsDeepCopies(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	app := pendingApp("a1")
	app.ExtractedFields["address"] = map[string]interface{}{"street": "1 Main St"}
	require.NoError(t, s.Create(ctx, app))

	got, _ := s.Get(ctx, "a1")
	got.ExtractedFields["address"].(map[string]interface{})["phone"] = "555"

	again, _ := s.Get(ctx, "a1")
	assert.Equal(t, map[string]interface{}{"street": "1 Main St"}, again.ExtractedFields["address"])
}

func TestMemoryStore_CreateDuplicate(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, s.Create(ctx, pendingApp("a1")))
	assert.True(t, errors.Is(s.Create(ctx, pendingApp("a1")), apperrors.ErrConflict))
}

func TestMemoryStore_ConditionalUpdate(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, s.Create(ctx, pendingApp("a1")))

	decided := created.Add(time.Hour)
	app, err := s.ConditionalUpdate(ctx, "a1", models.StatusPending, models.StatusPatch{
		Status: models.StatusApproved, DecidedAt: &decided, UpdatedAt: decided,
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, app.Status)
	require.NotNil(t, app.DecidedAt)
	assert.Equal(t, decided, *app.DecidedAt)

	_, err = s.ConditionalUpdate(ctx, "a1", models.StatusPending, models.StatusPatch{Status: models.StatusDenied})
	assert.True(t, errors.Is(err, apperrors.ErrConflict))

	_, err = s.ConditionalUpdate(ctx, "nope", models.StatusPending, models.StatusPatch{Status: models.StatusDenied})
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
}

func TestMemoryStore_ConcurrentCASHasOneWinner(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, s.Create(ctx, pendingApp("a1")))

	var wins, conflicts int32
	var wg sync.WaitGroup
	targets := []models.Status{models.StatusApproved, models.StatusDenied, models.StatusReview}
	for i := 0; i < 30; i++ {
		wg.Add(1)
		go func(target models.Status) {
			defer wg.Done()
			_, err := s.ConditionalUpdate(ctx, "a1", models.StatusPending, models.StatusPatch{Status: target})
			switch {
			case err == nil:
				atomic.AddInt32(&wins, 1)
			case errors.Is(err, apperrors.ErrConflict):
				atomic.AddInt32(&conflicts, 1)
			}
		}(targets[i%len(targets)])
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins)
	assert.Equal(t, int32(29), conflicts)
}

func TestMemoryStore_ListFilterAndPaging(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	for i := 0; i < 7; i++ {
		app := pendingApp(fmt.Sprintf("a%02d", i))
		if i%2 == 0 {
			app.Status = models.StatusReview
		}
		require.NoError(t, s.Create(ctx, app))
	}

	review, _ := s.List(ctx, models.ApplicationFilter{Status: models.StatusReview})
	assert.Len(t, review, 4)

	page, _ := s.List(ctx, models.ApplicationFilter{Limit: 3, AfterID: "a02"})
	require.Len(t, page, 3)
	assert.Equal(t, "a03", page[0].ID)
}

func TestMemoryStore_DeleteAndUpdateFields(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, s.Create(ctx, pendingApp("a1")))

	require.NoError(t, s.UpdateFields(ctx, "a1", map[string]interface{}{"phone": "555-0100"}))
	app, _ := s.Get(ctx, "a1")
	assert.Equal(t, "555-0100", app.ExtractedFields["phone"])
	assert.Equal(t, "Jane Roe", app.ExtractedFields["patient_name"])

	require.NoError(t, s.Delete(ctx, "a1"))
	assert.True(t, errors.Is(s.Delete(ctx, "a1"), apperrors.ErrNotFound))
	assert.True(t, errors.Is(s.UpdateFields(ctx, "a1", nil), apperrors.ErrNotFound))
}

func TestIterate_PagesThroughEverything(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	for i := 0; i < 12; i++ {
		require.NoError(t, s.Create(ctx, pendingApp(fmt.Sprintf("a%02d", i))))
	}

	var ids []string
	for app, err := range Iterate(ctx, s, models.ApplicationFilter{}, 5) {
		require.NoError(t, err)
		ids = append(ids, app.ID)
	}
	assert.Len(t, ids, 12)
	assert.Equal(t, "a11", ids[11])
}

type failingLister struct{ MemoryStore }

func (f *failingLister) List(context.Context, models.ApplicationFilter) ([]models.Application, error) {
	return nil, errors.New("boom")
}

func TestIterate_YieldsError(t *testing.T) {
	var got error
	for _, err := range Iterate(context.Background(), &failingLister{}, models.ApplicationFilter{}, 5) {
		got = err
	}
	assert.EqualError(t, got, "boom")
}

func TestMemoryStore_Stats(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	statuses := []models.Status{models.StatusPending, models.StatusPending, models.StatusReview, models.StatusApproved, models.StatusDenied}
	for i, st := range statuses {
		app := pendingApp(fmt.Sprintf("a%d", i))
		app.Status = st
		app.CreatedAt = created.Add(time.Duration(i) * 24 * time.Hour)
		require.NoError(t, s.Create(ctx, app))
	}

	got, err := s.Stats(ctx, created.Add(3*24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, models.ApplicationStats{Pending: 2, Review: 1, Approved: 1, Denied: 1, Total: 5, ThisWeek: 2}, got)
}

// ==========================
// PostgresStore
// ==========================

func TestPostgresStore_Stats(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	since := created.Add(-7 * 24 * time.Hour)
	mock.ExpectQuery("SELECT status, COUNT").WithArgs(since).
		WillReturnRows(sqlmock.NewRows([]string{"status", "count", "recent"}).
			AddRow("pending", 4, 3).
			AddRow("approved", 10, 1).
			AddRow("review", 2, 2))

	got, err := NewPostgresStore(db).Stats(context.Background(), since)
	require.NoError(t, err)
	assert.Equal(t, models.ApplicationStats{Pending: 4, Review: 2, Approved: 10, Total: 16, ThisWeek: 6}, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_StatsQueryFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT status, COUNT").WillReturnError(errors.New("connection reset"))

	_, err = NewPostgresStore(db).Stats(context.Background(), created)
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeQueryExecutionFailed, apperrors.CodeOf(err))
}

var appColumns = []string{
	"id", "status", "priority", "source", "source_email", "extracted_fields",
	"confidence_score", "decision_notes", "created_at", "decided_at", "updated_at",
}

func TestPostgresStore_Get(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT id, status, priority").WithArgs("a1").
		WillReturnRows(sqlmock.NewRows(appColumns).AddRow(
			"a1", "pending", "high", "email", "intake@example.com", []byte(`{"patient_name":"Jane Roe"}`),
			87.5, "", created, nil, created,
		))
	mock.ExpectQuery("SELECT id, status, priority").WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(appColumns))

	s := NewPostgresStore(db)
	app, err := s.Get(context.Background(), "a1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, app.Status)
	assert.Equal(t, models.PriorityHigh, app.Priority)
	assert.Nil(t, app.DecidedAt)
	assert.Equal(t, "Jane Roe", app.ExtractedFields["patient_name"])

	_, err = s.Get(context.Background(), "missing")
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CreateDuplicate(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("INSERT INTO applications").WillReturnError(&pq.Error{Code: "23505"})

	err = NewPostgresStore(db).Create(context.Background(), pendingApp("a1"))
	assert.True(t, errors.Is(err, apperrors.ErrConflict))
}

func TestPostgresStore_ConditionalUpdate(t *testing.T) {
	decided := created.Add(2 * time.Hour)

	tests := []struct {
		name    string
		setup   func(sqlmock.Sqlmock)
		wantErr error
	}{
		{
			name: "swap succeeds",
			setup: func(m sqlmock.Sqlmock) {
				m.ExpectQuery("UPDATE applications").
					WithArgs("a1", "pending", "approved", decided, "", decided).
					WillReturnRows(sqlmock.NewRows(appColumns).AddRow(
						"a1", "approved", "normal", "", "", []byte(`{}`), 0.0, "", created, decided, decided,
					))
			},
		},
		{
			name: "status moved on",
			setup: func(m sqlmock.Sqlmock) {
				m.ExpectQuery("UPDATE applications").WillReturnRows(sqlmock.NewRows(appColumns))
				m.ExpectQuery("SELECT EXISTS").WithArgs("a1").
					WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
			},
			wantErr: apperrors.ErrConflict,
		},
		{
			name: "row deleted",
			setup: func(m sqlmock.Sqlmock) {
				m.ExpectQuery("UPDATE applications").WillReturnRows(sqlmock.NewRows(appColumns))
				m.ExpectQuery("SELECT EXISTS").WithArgs("a1").
					WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
			},
			wantErr: apperrors.ErrNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			require.NoError(t, err)
			defer db.Close()
			tt.setup(mock)

			app, err := NewPostgresStore(db).ConditionalUpdate(context.Background(), "a1", models.StatusPending, models.StatusPatch{
				Status: models.StatusApproved, DecidedAt: &decided, UpdatedAt: decided,
			})
			if tt.wantErr != nil {
				assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
			} else {
				require.NoError(t, err)
				assert.Equal(t, models.StatusApproved, app.Status)
				require.NotNil(t, app.DecidedAt)
				assert.Equal(t, decided, *app.DecidedAt)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestPostgresStore_ListAndDelete(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("FROM applications").WithArgs("review", "a1", 2).
		WillReturnRows(sqlmock.NewRows(appColumns).
			AddRow("a2", "review", "low", "", "", []byte(`{}`), 40.0, "", created, nil, created))
	mock.ExpectExec("DELETE FROM applications").WithArgs("a2").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM applications").WithArgs("a2").WillReturnResult(sqlmock.NewResult(0, 0))

	s := NewPostgresStore(db)
	list, err := s.List(context.Background(), models.ApplicationFilter{Status: models.StatusReview, AfterID: "a1", Limit: 2})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, models.PriorityLow, list[0].Priority)

	require.NoError(t, s.Delete(context.Background(), "a2"))
	assert.True(t, errors.Is(s.Delete(context.Background(), "a2"), apperrors.ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}
