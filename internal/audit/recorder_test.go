package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"regexp"
	"sync"
	"testing"
	"time"

	"admissions-lifecycle/internal/common/clock"
	apperrors "admissions-lifecycle/internal/common/errors"
	"admissions-lifecycle/internal/common/logger"
	"admissions-lifecycle/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/elastic/go-elasticsearch/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

// ==========================
// MemoryRecorder
// ==========================

func TestMemoryRecorder_AppendAssignsIDAndTimestamp(t *testing.T) {
	r := NewMemoryRecorder(clock.NewManual(now))

	e, err := r.Append(context.Background(), models.AuditEntry{
		ActorID: "u1", Action: models.ActionApplicationApproved, TargetID: "a1",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, e.ID)
	assert.Equal(t, now, e.Timestamp)
}

func TestMemoryRecorder_ConcurrentAppends(t *testing.T) {
	r := NewMemoryRecorder(nil)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _ = r.Append(context.Background(), models.AuditEntry{TargetID: fmt.Sprintf("a%d", i%5), Action: "x"})
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 50, r.Len())

	list, err := r.List(context.Background(), models.AuditFilter{TargetID: "a1"})
	require.NoError(t, err)
	assert.Len(t, list, 10)
}

func TestMemoryRecorder_ListNewestFirstWithFilters(t *testing.T) {
	c := clock.NewManual(now)
	r := NewMemoryRecorder(c)
	ctx := context.Background()

	_, _ = r.Append(ctx, models.AuditEntry{TargetID: "a1", Action: models.ActionApplicationSubmitted})
	c.Advance(time.Minute)
	_, _ = r.Append(ctx, models.AuditEntry{TargetID: "a1", Action: models.ActionApplicationApproved})
	c.Advance(time.Minute)
	_, _ = r.Append(ctx, models.AuditEntry{TargetID: "a2", Action: models.ActionApplicationApproved})

	all, _ := r.List(ctx, models.AuditFilter{})
	require.Len(t, all, 3)
	assert.Equal(t, "a2", all[0].TargetID)

	approved, _ := r.List(ctx, models.AuditFilter{Action: models.ActionApplicationApproved, Limit: 1})
	require.Len(t, approved, 1)
	assert.Equal(t, "a2", approved[0].TargetID)
}

func TestMemoryRecorder_SetFailing(t *testing.T) {
	r := NewMemoryRecorder(nil)
	r.SetFailing(errors.New("disk full"))
	_, err := r.Append(context.Background(), models.AuditEntry{})
	require.Error(t, err)
	assert.Equal(t, 0, r.Len())

	r.SetFailing(nil)
	_, err = r.Append(context.Background(), models.AuditEntry{})
	assert.NoError(t, err)
}

// ==========================
// PostgresRecorder
// ==========================

func TestPostgresRecorder_Append(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO audit_log")).
		WithArgs(sqlmock.AnyArg(), now, "u1", models.ActionApplicationDenied, "a1", "Decision: Denied").
		WillReturnResult(sqlmock.NewResult(1, 1))

	r := NewPostgresRecorder(db, clock.NewManual(now))
	e, err := r.Append(context.Background(), models.AuditEntry{
		ActorID: "u1", Action: models.ActionApplicationDenied, TargetID: "a1", Detail: "Decision: Denied",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, e.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRecorder_AppendFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("INSERT INTO audit_log").WillReturnError(errors.New("connection reset"))

	r := NewPostgresRecorder(db, clock.NewManual(now))
	_, err = r.Append(context.Background(), models.AuditEntry{TargetID: "a1"})
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeQueryExecutionFailed, apperrors.CodeOf(err))
}

func TestPostgresRecorder_List(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	rows := sqlmock.NewRows([]string{"id", "timestamp", "actor_id", "action", "target_id", "detail"}).
		AddRow("e2", now, "u1", models.ActionCRMSyncSuccess, "a1", "record z-1").
		AddRow("e1", now.Add(-time.Minute), "u1", models.ActionApplicationApproved, "a1", "")
	mock.ExpectQuery("SELECT id, timestamp, actor_id, action, target_id").
		WithArgs("a1", "", defaultListLimit).
		WillReturnRows(rows)

	r := NewPostgresRecorder(db, nil)
	list, err := r.List(context.Background(), models.AuditFilter{TargetID: "a1"})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "e2", list[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ==========================
// IndexingRecorder
// ==========================

func newES(t *testing.T, handler http.HandlerFunc) *elasticsearch.Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	es, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: []string{srv.URL}})
	require.NoError(t, err)
	return es
}

func TestIndexingRecorder_MirrorsEntries(t *testing.T) {
	var indexed []models.AuditEntry
	var mu sync.Mutex
	es := newES(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var e models.AuditEntry
		_ = json.Unmarshal(body, &e)
		mu.Lock()
		indexed = append(indexed, e)
		mu.Unlock()
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"result":"created"}`))
	})

	inner := NewMemoryRecorder(clock.NewManual(now))
	r := NewIndexingRecorder(inner, es, "audit-log", logger.NewTestLogger(t))

	e, err := r.Append(context.Background(), models.AuditEntry{TargetID: "a1", Action: models.ActionApplicationApproved})
	require.NoError(t, err)

	require.Len(t, indexed, 1)
	assert.Equal(t, e.ID, indexed[0].ID)
	assert.Equal(t, 1, inner.Len())
}

func TestIndexingRecorder_IndexFailureDoesNotFailAppend(t *testing.T) {
	es := newES(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":"unavailable"}`))
	})

	inner := NewMemoryRecorder(nil)
	r := NewIndexingRecorder(inner, es, "audit-log", logger.NewNoOpLogger())

	_, err := r.Append(context.Background(), models.AuditEntry{TargetID: "a1"})
	require.NoError(t, err)
	assert.Equal(t, 1, inner.Len())
}

func TestIndexingRecorder_DurableFailureSkipsIndex(t *testing.T) {
	called := false
	es := newES(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
	})

	inner := NewMemoryRecorder(nil)
	inner.SetFailing(errors.New("db down"))
	r := NewIndexingRecorder(inner, es, "audit-log", logger.NewNoOpLogger())

	_, err := r.Append(context.Background(), models.AuditEntry{TargetID: "a1"})
	require.Error(t, err)
	assert.False(t, called)
}

func TestIndexingRecorder_Search(t *testing.T) {
	es := newES(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"hits":{"hits":[{"_source":{"id":"e1","action":"CRM Sync Failed","targetId":"a9","detail":"timeout"}}]}}`))
	})

	r := NewIndexingRecorder(NewMemoryRecorder(nil), es, "audit-log", logger.NewNoOpLogger())
	hits, err := r.Search(context.Background(), "timeout", 0)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "a9", hits[0].TargetID)
	assert.Equal(t, models.ActionCRMSyncFailed, hits[0].Action)
}
