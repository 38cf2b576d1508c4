// internal/workers/application/application-decide/handler.go
package applicationdecide

import (
	"context"
	"encoding/json"
	"strings"

	"admissions-lifecycle/internal/common/camunda"
	"admissions-lifecycle/internal/common/errors"
	"admissions-lifecycle/internal/common/logger"
	"admissions-lifecycle/internal/common/validation"
	"admissions-lifecycle/internal/identity"
	"admissions-lifecycle/internal/lifecycle"
	"admissions-lifecycle/internal/models"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const TaskType = "application-decide"

var schema = validation.MustCompile(inputSchema)

// Decider is satisfied by *lifecycle.Engine.
type Decider interface {
	Transition(ctx context.Context, req lifecycle.TransitionRequest) (*lifecycle.TransitionResult, error)
}

type Handler struct {
	config     *Config
	engine     Decider
	identity   identity.Resolver
	errHandler *errors.ErrorHandler
	logger     logger.Logger
}

func NewHandler(config *Config, engine Decider, resolver identity.Resolver, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:     config,
		engine:     engine,
		identity:   resolver,
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

// Execute validates the request, resolves the acting user and applies the
// decision.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	if res := schema.Validate(input); !res.Valid {
		return nil, errors.NewValidationFailedError(strings.Join(res.GetErrorMessages(), "; "))
	}

	actor, err := h.identity.Resolve(ctx, input.ActorID)
	if err != nil {
		return nil, err
	}

	res, err := h.engine.Transition(ctx, lifecycle.TransitionRequest{
		ApplicationID: input.ApplicationID,
		Status:        models.Status(input.Status),
		Actor:         actor,
		Notes:         input.Notes,
	})
	if err != nil {
		return nil, err
	}

	out := &Output{
		ApplicationID: res.Application.ID,
		Status:        string(res.Application.Status),
		DecidedAt:     res.Application.DecidedAt,
		Unchanged:     res.Unchanged,
		SyncPending:   res.SyncPending,
	}
	if res.Sync != nil {
		out.SyncAttempted = true
		out.ExternalRecordID = res.Sync.ExternalRecordID
		out.SyncError = res.Sync.Error
	}

	h.logger.Info("decision applied", map[string]interface{}{
		"applicationId": out.ApplicationID,
		"status":        out.Status,
		"unchanged":     out.Unchanged,
		"syncPending":   out.SyncPending,
	})
	return out, nil
}
