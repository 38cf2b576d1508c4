// internal/workers/application/application-list/handler.go
package applicationlist

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"admissions-lifecycle/internal/authz"
	"admissions-lifecycle/internal/common/camunda"
	"admissions-lifecycle/internal/common/clock"
	"admissions-lifecycle/internal/common/errors"
	"admissions-lifecycle/internal/common/logger"
	"admissions-lifecycle/internal/common/validation"
	"admissions-lifecycle/internal/identity"
	"admissions-lifecycle/internal/models"
	"admissions-lifecycle/internal/presentation"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const TaskType = "application-list"

var schema = validation.MustCompile(inputSchema)

// Lister is satisfied by *lifecycle.Engine.
type Lister interface {
	ListWithRetention(ctx context.Context, filter models.ApplicationFilter, now time.Time) ([]models.ApplicationView, error)
}

type Handler struct {
	config     *Config
	engine     Lister
	gate       *authz.Gate
	identity   identity.Resolver
	clock      clock.Clock
	errHandler *errors.ErrorHandler
	logger     logger.Logger
}

func NewHandler(config *Config, engine Lister, gate *authz.Gate, resolver identity.Resolver, clk clock.Clock, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:     config,
		engine:     engine,
		gate:       gate,
		identity:   resolver,
		clock:      clk,
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

// Execute lists applications with their retention countdown. A page that
// comes back full carries the cursor for the next one.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	if res := schema.Validate(input); !res.Valid {
		return nil, errors.NewValidationFailedError(strings.Join(res.GetErrorMessages(), "; "))
	}

	actor, err := h.identity.Resolve(ctx, input.ActorID)
	if err != nil {
		return nil, err
	}
	if err := h.gate.Require(actor, authz.ApplicationsRoot); err != nil {
		return nil, err
	}

	limit := input.Limit
	if limit <= 0 || limit > h.config.MaxLimit {
		limit = h.config.MaxLimit
	}
	views, err := h.engine.ListWithRetention(ctx, models.ApplicationFilter{
		Status:  models.Status(input.Status),
		Limit:   limit,
		AfterID: input.AfterID,
	}, h.clock.Now())
	if err != nil {
		return nil, err
	}

	out := &Output{
		Applications: views,
		Rows:         presentation.Rows(views),
		Count:        len(views),
	}
	if out.Applications == nil {
		out.Applications = []models.ApplicationView{}
	}
	if len(views) == limit {
		out.NextCursor = views[len(views)-1].ID
	}

	h.logger.Debug("applications listed", map[string]interface{}{
		"actorId": actor.ID,
		"count":   out.Count,
		"status":  input.Status,
	})
	return out, nil
}
