package lifecycle

import (
	"context"
	"fmt"
	"time"

	"admissions-lifecycle/internal/common/errors"
	"admissions-lifecycle/internal/common/metrics"
	"admissions-lifecycle/internal/models"
	"admissions-lifecycle/internal/store"
)

// PurgeReport summarises one sweep.
type PurgeReport struct {
	RanAt     time.Time `json:"ranAt"`
	Examined  int       `json:"examined"`
	Purged    int       `json:"purged"`
	Failed    int       `json:"failed"`
	PurgedIDs []string  `json:"purgedIds"`
}

// PurgeExpired deletes every application past its retention horizon at now.
// Each deletion is preceded by an "auto-deleted" audit entry; if that entry
// cannot be written the record is kept for the next sweep. Iteration errors
// abort the sweep and are returned with the partial report.
func (e *Engine) PurgeExpired(ctx context.Context, now time.Time, batch int) (*PurgeReport, error) {
	report := &PurgeReport{RanAt: now, PurgedIDs: []string{}}

	var iterErr error
	all := func(yield func(models.Application) bool) {
		for app, err := range store.Iterate(ctx, e.store, models.ApplicationFilter{}, batch) {
			if err != nil {
				iterErr = err
				return
			}
			report.Examined++
			if !yield(app) {
				return
			}
		}
	}

	for app := range e.policy.SweepPurgeable(all, now) {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if err := e.purgeOne(ctx, app, now); err != nil {
			report.Failed++
			e.logger.Error("purge failed", map[string]interface{}{
				"applicationId": app.ID,
				"error":         err,
			})
			continue
		}
		report.Purged++
		report.PurgedIDs = append(report.PurgedIDs, app.ID)
	}

	if iterErr != nil {
		return report, iterErr
	}

	e.logger.Info("retention sweep finished", map[string]interface{}{
		"examined": report.Examined,
		"purged":   report.Purged,
		"failed":   report.Failed,
	})
	return report, nil
}

func (e *Engine) purgeOne(ctx context.Context, app models.Application, now time.Time) error {
	days := e.policy.DaysRemaining(app, now)
	if _, err := e.recorder.Append(ctx, models.AuditEntry{
		ActorID:  models.SystemActor.ID,
		Action:   models.ActionAutoDeleted,
		TargetID: app.ID,
		Detail:   fmt.Sprintf("Retention expired (%s, %d days remaining)", app.Status, days),
	}); err != nil {
		metrics.AuditFailuresTotal.Inc()
		return errors.NewAuditFailureError(err)
	}
	if err := e.store.Delete(ctx, app.ID); err != nil {
		// already gone counts as purged
		if errors.CodeOf(err) == errors.ErrCodeNotFound {
			return nil
		}
		return err
	}
	metrics.PurgedTotal.WithLabelValues(string(app.Status)).Inc()
	return nil
}
