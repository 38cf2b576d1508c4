// internal/workers/reporting/application-stats/handler_test.go
package applicationstats

import (
	"context"
	"errors"
	"testing"
	"time"

	"admissions-lifecycle/internal/audit"
	"admissions-lifecycle/internal/authz"
	"admissions-lifecycle/internal/common/clock"
	apperrors "admissions-lifecycle/internal/common/errors"
	"admissions-lifecycle/internal/common/logger"
	"admissions-lifecycle/internal/crmsync"
	"admissions-lifecycle/internal/identity"
	"admissions-lifecycle/internal/lifecycle"
	"admissions-lifecycle/internal/mapping"
	"admissions-lifecycle/internal/models"
	"admissions-lifecycle/internal/store"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2024, 5, 10, 14, 0, 0, 0, time.UTC)

var resolver = identity.NewStaticResolver(map[string]string{
	"u-viewer": "viewer",
	"u-nobody": "intern",
})

func newEngine(st store.Store) *lifecycle.Engine {
	return lifecycle.New(lifecycle.Deps{
		Store:     st,
		Gate:      authz.NewGate(nil),
		Recorder:  audit.NewMemoryRecorder(nil),
		Projector: mapping.NewTable(nil),
		Adapter:   crmsync.NewMemoryAdapter(),
		Clock:     clock.NewManual(now),
	})
}

func TestHandler_Execute_CountsFromPostgres(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT status, COUNT").WithArgs(now.Add(-7 * 24 * time.Hour)).
		WillReturnRows(sqlmock.NewRows([]string{"status", "count", "recent"}).
			AddRow("pending", 3, 2).
			AddRow("denied", 1, 0))

	h := NewHandler(LoadConfig(), newEngine(store.NewPostgresStore(db)), authz.NewGate(nil), resolver, clock.NewManual(now), logger.NewTestLogger(t))
	out, err := h.Execute(context.Background(), &Input{ActorID: "u-viewer"})
	require.NoError(t, err)
	assert.Equal(t, models.ApplicationStats{Pending: 3, Denied: 1, Total: 4, ThisWeek: 2}, out.ApplicationStats)
	assert.Equal(t, now, out.GeneratedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandler_Execute_QueryFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	mock.ExpectQuery("SELECT status, COUNT").WillReturnError(errors.New("connection reset"))

	h := NewHandler(LoadConfig(), newEngine(store.NewPostgresStore(db)), authz.NewGate(nil), resolver, clock.NewManual(now), logger.NewNoOpLogger())
	_, err = h.Execute(context.Background(), &Input{ActorID: "u-viewer"})
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeQueryExecutionFailed, apperrors.CodeOf(err))
}

func TestHandler_Execute_Errors(t *testing.T) {
	h := NewHandler(LoadConfig(), newEngine(store.NewMemoryStore()), authz.NewGate(nil), resolver, clock.NewManual(now), logger.NewNoOpLogger())

	tests := []struct {
		name     string
		input    Input
		wantCode apperrors.ErrorCode
	}{
		{"missing actor", Input{}, apperrors.ErrCodeValidationFailed},
		{"unknown actor", Input{ActorID: "u-ghost"}, apperrors.ErrCodeForbidden},
		{"role without reports", Input{ActorID: "u-nobody"}, apperrors.ErrCodeForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := tt.input
			_, err := h.Execute(context.Background(), &input)
			require.Error(t, err)
			assert.Equal(t, tt.wantCode, apperrors.CodeOf(err))
		})
	}
}
