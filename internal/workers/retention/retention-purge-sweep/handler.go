// internal/workers/retention/retention-purge-sweep/handler.go
package retentionpurgesweep

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"time"

	"admissions-lifecycle/internal/common/camunda"
	"admissions-lifecycle/internal/common/clock"
	"admissions-lifecycle/internal/common/errors"
	"admissions-lifecycle/internal/common/logger"
	"admissions-lifecycle/internal/common/observability"
	"admissions-lifecycle/internal/lifecycle"
	"admissions-lifecycle/internal/notify"

	"github.com/bsm/redislock"
	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const TaskType = "retention-purge-sweep"

type Purger interface {
	PurgeExpired(ctx context.Context, now time.Time, batch int) (*lifecycle.PurgeReport, error)
}

type Handler struct {
	config     *Config
	engine     Purger
	locker     *redislock.Client
	reporter   notify.SweepReporter
	clock      clock.Clock
	obs        *observability.Observability
	errHandler *errors.ErrorHandler
	logger     logger.Logger
}

// NewHandler wires the sweep. A nil locker runs without mutual exclusion,
// which is only safe with a single worker instance.
func NewHandler(config *Config, engine Purger, locker *redislock.Client, reporter notify.SweepReporter, clk clock.Clock, obs *observability.Observability, log logger.Logger) *Handler {
	if reporter == nil {
		reporter = notify.Nop{}
	}
	if clk == nil {
		clk = clock.System()
	}
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:     config,
		engine:     engine,
		locker:     locker,
		reporter:   reporter,
		clock:      clk,
		obs:        obs,
		errHandler: errors.NewErrorHandler(log),
		logger:     log,
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	var input Input
	if job.Variables != "" {
		if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
			camunda.FailJob(ctx, client, job, errors.NewInputParsingFailedError(err), h.errHandler)
			return
		}
	}

	output, err := h.Execute(ctx, &input)
	if err != nil {
		camunda.FailJob(ctx, client, job, err, h.errHandler)
		return
	}
	camunda.CompleteJob(ctx, client, job, output, h.logger)
}

// Execute runs one purge sweep under the distributed lock. If another
// instance holds the lock the run is reported as skipped.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	now := h.clock.Now().UTC()

	if h.locker != nil {
		lock, err := h.locker.Obtain(ctx, h.config.LockKey, h.config.LockTTL, nil)
		if stderrors.Is(err, redislock.ErrNotObtained) {
			h.logger.Info("sweep already running elsewhere", map[string]interface{}{"lockKey": h.config.LockKey})
			return &Output{Skipped: true, RanAt: now, PurgedIDs: []string{}}, nil
		}
		if err != nil {
			return nil, errors.NewExternalServiceError("redis", err)
		}
		defer func() {
			if err := lock.Release(context.WithoutCancel(ctx)); err != nil && !stderrors.Is(err, redislock.ErrLockNotHeld) {
				h.logger.Warn("sweep lock release failed", map[string]interface{}{"error": err.Error()})
			}
		}()
	}

	batch := h.config.Batch
	if input.Batch > 0 {
		batch = input.Batch
	}

	report, err := h.engine.PurgeExpired(ctx, now, batch)
	if report != nil {
		h.obs.RecordSweep(ctx, report.Examined, report.Purged)
	}
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError("purge sweep", err)
	}

	if err := h.reporter.SendSweepSummary(ctx, notify.SweepSummary{
		RanAt:     report.RanAt,
		Examined:  report.Examined,
		Purged:    report.Purged,
		Failed:    report.Failed,
		PurgedIDs: report.PurgedIDs,
	}); err != nil {
		h.logger.Warn("sweep summary not sent", map[string]interface{}{"error": err.Error()})
	}

	h.logger.Info("sweep finished", map[string]interface{}{
		"examined": report.Examined,
		"purged":   report.Purged,
		"failed":   report.Failed,
	})
	return &Output{
		RanAt:     report.RanAt,
		Examined:  report.Examined,
		Purged:    report.Purged,
		Failed:    report.Failed,
		PurgedIDs: report.PurgedIDs,
	}, nil
}
