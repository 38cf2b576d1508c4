// internal/workers/audit/audit-log-query/handler_test.go
package auditlogquery

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"admissions-lifecycle/internal/audit"
	"admissions-lifecycle/internal/authz"
	"admissions-lifecycle/internal/common/clock"
	apperrors "admissions-lifecycle/internal/common/errors"
	"admissions-lifecycle/internal/common/logger"
	"admissions-lifecycle/internal/identity"
	"admissions-lifecycle/internal/models"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2024, 5, 10, 14, 0, 0, 0, time.UTC)

var resolver = identity.NewStaticResolver(map[string]string{
	"u-manager":  "manager",
	"u-reviewer": "reviewer",
})

func seededRecorder(t *testing.T) *audit.MemoryRecorder {
	t.Helper()
	c := clock.NewManual(now)
	rec := audit.NewMemoryRecorder(c)
	for _, e := range []models.AuditEntry{
		{ActorID: "u-1", Action: models.ActionApplicationSubmitted, TargetID: "a1"},
		{ActorID: "u-2", Action: models.ActionApplicationApproved, TargetID: "a1"},
		{ActorID: "u-2", Action: models.ActionApplicationDenied, TargetID: "a2"},
	} {
		c.Advance(time.Minute)
		_, err := rec.Append(context.Background(), e)
		require.NoError(t, err)
	}
	return rec
}

func TestHandler_Execute_ListsByFilter(t *testing.T) {
	h := NewHandler(LoadConfig(), seededRecorder(t), nil, authz.NewGate(nil), resolver, logger.NewTestLogger(t))

	out, err := h.Execute(context.Background(), &Input{ActorID: "u-manager", TargetID: "a1"})
	require.NoError(t, err)
	assert.Equal(t, SourceStore, out.Source)
	require.Equal(t, 2, out.Count)
	assert.Equal(t, models.ActionApplicationApproved, out.Entries[0].Action)

	out, err = h.Execute(context.Background(), &Input{ActorID: "u-manager", Action: models.ActionApplicationDenied, Limit: 5})
	require.NoError(t, err)
	require.Equal(t, 1, out.Count)
	assert.Equal(t, "a2", out.Entries[0].TargetID)
}

func TestHandler_Execute_TextSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"hits":{"hits":[{"_source":{"id":"e9","action":"CRM Sync Failed","targetId":"a7","detail":"timeout"}}]}}`))
	}))
	defer srv.Close()
	es, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: []string{srv.URL}})
	require.NoError(t, err)

	rec := seededRecorder(t)
	indexed := audit.NewIndexingRecorder(rec, es, "audit-log", logger.NewNoOpLogger())
	h := NewHandler(LoadConfig(), indexed, indexed, authz.NewGate(nil), resolver, logger.NewTestLogger(t))

	out, err := h.Execute(context.Background(), &Input{ActorID: "u-manager", Query: "timeout"})
	require.NoError(t, err)
	assert.Equal(t, SourceSearch, out.Source)
	require.Equal(t, 1, out.Count)
	assert.Equal(t, "a7", out.Entries[0].TargetID)
}

type failingSearcher struct{}

func (failingSearcher) Search(context.Context, string, int) ([]models.AuditEntry, error) {
	return nil, errors.New("cluster red")
}

func TestHandler_Execute_Errors(t *testing.T) {
	tests := []struct {
		name     string
		searcher Searcher
		input    Input
		wantCode apperrors.ErrorCode
	}{
		{"missing actor", nil, Input{}, apperrors.ErrCodeValidationFailed},
		{"reviewer cannot read the log", nil, Input{ActorID: "u-reviewer"}, apperrors.ErrCodeForbidden},
		{"search not configured", nil, Input{ActorID: "u-manager", Query: "timeout"}, apperrors.ErrCodeValidationFailed},
		{"search backend down", failingSearcher{}, Input{ActorID: "u-manager", Query: "timeout"}, apperrors.ErrCodeExternalServiceError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHandler(LoadConfig(), seededRecorder(t), tt.searcher, authz.NewGate(nil), resolver, logger.NewNoOpLogger())
			input := tt.input
			_, err := h.Execute(context.Background(), &input)
			require.Error(t, err)
			assert.Equal(t, tt.wantCode, apperrors.CodeOf(err))
		})
	}
}
