package zoho

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	apphttp "admissions-lifecycle/internal/common/http"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpsertRecord(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/Admissions/upsert", r.URL.Path)
		assert.Equal(t, "Zoho-oauthtoken tok", r.Header.Get("Authorization"))

		var body struct {
			Data                 []map[string]interface{} `json:"data"`
			DuplicateCheckFields []string                 `json:"duplicate_check_fields"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, []string{"External_Key"}, body.DuplicateCheckFields)
		assert.Equal(t, "app-1", body.Data[0]["External_Key"])

		_, _ = w.Write([]byte(`{"data":[{"code":"SUCCESS","action":"insert","status":"success","details":{"id":"z-100"}}]}`))
	}))
	defer srv.Close()

	c := NewCRMClient(srv.URL, "tok", time.Second)
	id, created, err := c.UpsertRecord(context.Background(), "Admissions",
		map[string]interface{}{"External_Key": "app-1"}, []string{"External_Key"})
	require.NoError(t, err)
	assert.Equal(t, "z-100", id)
	assert.True(t, created)
}

func TestUpsertRecord_RejectedRecord(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":[{"code":"INVALID_DATA","status":"error","message":"invalid data"}]}`))
	}))
	defer srv.Close()

	_, _, err := NewCRMClient(srv.URL, "tok", time.Second).UpsertRecord(context.Background(), "Admissions", map[string]interface{}{}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "INVALID_DATA")

	var recErr *RecordError
	require.True(t, errors.As(err, &recErr))
	assert.Equal(t, "INVALID_DATA", recErr.Code)
	assert.False(t, apphttp.IsTransient(err))
}

func TestRecordError_Transient(t *testing.T) {
	assert.True(t, (&RecordError{Code: "RECORD_LOCKED"}).Transient())
	assert.False(t, (&RecordError{Code: "MANDATORY_NOT_FOUND"}).Transient())
}

func TestUpdateRecord_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/Admissions/z-1", r.URL.Path)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	err := NewCRMClient(srv.URL, "tok", time.Second).UpdateRecord(context.Background(), "Admissions", "z-1", map[string]interface{}{})
	assert.True(t, apphttp.IsStatus(err, http.StatusNotFound))
	assert.False(t, apphttp.IsTransient(err))
}

func TestGetRecord(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":[{"id":"z-1","External_Key":"app-1"}]}`))
	}))
	defer srv.Close()

	rec, err := NewCRMClient(srv.URL, "tok", time.Second).GetRecord(context.Background(), "Admissions", "z-1")
	require.NoError(t, err)
	assert.Equal(t, "app-1", rec["External_Key"])
}
