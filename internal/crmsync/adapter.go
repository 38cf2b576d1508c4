// Package crmsync pushes application projections to the external system of
// record. Push never returns an error: failures are SyncResult values.
package crmsync

import (
	"context"
	"fmt"
	"strings"
	"time"

	"admissions-lifecycle/internal/models"
)

// Adapter is an idempotent upsert keyed by application id.
type Adapter interface {
	Push(ctx context.Context, applicationID string, projection map[string]interface{}) models.SyncResult
}

// AdapterFunc adapts a function to Adapter.
type AdapterFunc func(ctx context.Context, applicationID string, projection map[string]interface{}) models.SyncResult

func (f AdapterFunc) Push(ctx context.Context, applicationID string, projection map[string]interface{}) models.SyncResult {
	return f(ctx, applicationID, projection)
}

func failure(format string, args ...interface{}) models.SyncResult {
	return models.SyncResult{Success: false, Error: fmt.Sprintf(format, args...)}
}

// IsPermanent reports a failure that retrying the same projection will not
// fix, such as a rejected field.
func IsPermanent(res models.SyncResult) bool {
	return !res.Success && strings.HasPrefix(res.Error, "permanent:")
}

type timeoutAdapter struct {
	inner   Adapter
	timeout time.Duration
}

// WithTimeout bounds every push. A push still running at the deadline is
// reported as a transient failure; the inner adapter sees a cancelled context.
func WithTimeout(inner Adapter, d time.Duration) Adapter {
	if d <= 0 {
		return inner
	}
	return &timeoutAdapter{inner: inner, timeout: d}
}

func (t *timeoutAdapter) Push(ctx context.Context, applicationID string, projection map[string]interface{}) models.SyncResult {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	done := make(chan models.SyncResult, 1)
	go func() {
		done <- t.inner.Push(ctx, applicationID, projection)
	}()

	select {
	case res := <-done:
		return res
	case <-ctx.Done():
		return failure("sync timed out after %s: %v", t.timeout, ctx.Err())
	}
}
