// internal/workers/crm/crm-sync-retry/handler.go
package crmsyncretry

import (
	"context"
	"encoding/json"
	"fmt"

	"admissions-lifecycle/internal/common/camunda"
	"admissions-lifecycle/internal/common/errors"
	"admissions-lifecycle/internal/common/logger"
	"admissions-lifecycle/internal/crmsync"
	"admissions-lifecycle/internal/models"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const TaskType = "crm-sync-retry"

type Resyncer interface {
	Resync(ctx context.Context, id string, actor models.Actor, attempt int) (models.SyncResult, error)
}

type Handler struct {
	config     *Config
	engine     Resyncer
	errHandler *errors.ErrorHandler
	logger     logger.Logger
}

func NewHandler(config *Config, engine Resyncer, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:     config,
		engine:     engine,
		errHandler: errors.NewErrorHandler(log),
		logger:     log,
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
		"retriesLeft": job.Retries,
	})

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		camunda.FailJob(ctx, client, job, errors.NewInputParsingFailedError(err), h.errHandler)
		return
	}

	output, err := h.Execute(ctx, &input)
	if err != nil {
		camunda.FailJob(ctx, client, job, err, h.errHandler)
		return
	}
	camunda.CompleteJob(ctx, client, job, output, h.logger)
}

// Execute pushes a decided application to the CRM again. A transient
// failure is returned as a sync failure so the job is retried; a permanent
// one is not retryable.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	if input.ApplicationID == "" {
		return nil, errors.NewValidationFailedError("applicationId is required")
	}
	attempt := input.Attempt
	if attempt < 2 {
		attempt = 2
	}

	res, err := h.engine.Resync(ctx, input.ApplicationID, models.SystemActor, attempt)
	if err != nil {
		return nil, err
	}
	if !res.Success {
		if crmsync.IsPermanent(res) {
			return nil, errors.NewValidationFailedError(fmt.Sprintf("crm rejected application %s: %s", input.ApplicationID, res.Error))
		}
		return nil, errors.NewSyncFailureError(input.ApplicationID, res.Error)
	}

	h.logger.Info("crm sync recovered", map[string]interface{}{
		"applicationId":    input.ApplicationID,
		"externalRecordId": res.ExternalRecordID,
		"attempt":          attempt,
	})
	return &Output{
		ApplicationID:    input.ApplicationID,
		ExternalRecordID: res.ExternalRecordID,
		Attempt:          attempt,
	}, nil
}
