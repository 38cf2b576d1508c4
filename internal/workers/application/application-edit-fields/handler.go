// internal/workers/application/application-edit-fields/handler.go
package applicationeditfields

import (
	"context"
	"encoding/json"
	"sort"
	"strings"

	"admissions-lifecycle/internal/common/camunda"
	"admissions-lifecycle/internal/common/errors"
	"admissions-lifecycle/internal/common/logger"
	"admissions-lifecycle/internal/common/validation"
	"admissions-lifecycle/internal/identity"
	"admissions-lifecycle/internal/models"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const TaskType = "application-edit-fields"

var schema = validation.MustCompile(inputSchema)

// Editor is satisfied by *lifecycle.Engine.
type Editor interface {
	EditFields(ctx context.Context, id string, fields map[string]interface{}, actor models.Actor) (models.Application, error)
}

type Handler struct {
	config     *Config
	engine     Editor
	identity   identity.Resolver
	errHandler *errors.ErrorHandler
	logger     logger.Logger
}

func NewHandler(config *Config, engine Editor, resolver identity.Resolver, log logger.Logger) *Handler {
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

// Execute merges corrected extracted fields into an application.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	if res := schema.Validate(input); !res.Valid {
		return nil, errors.NewValidationFailedError(strings.Join(res.GetErrorMessages(), "; "))
	}

	actor, err := h.identity.Resolve(ctx, input.ActorID)
	if err != nil {
		return nil, err
	}

	app, err := h.engine.EditFields(ctx, input.ApplicationID, input.Fields, actor)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(input.Fields))
	for k := range input.Fields {
		names = append(names, k)
	}
	sort.Strings(names)

	h.logger.Info("application fields updated", map[string]interface{}{
		"applicationId": app.ID,
		"actorId":       actor.ID,
		"fields":        names,
	})
	return &Output{
		ApplicationID: app.ID,
		Status:        string(app.Status),
		UpdatedFields: names,
		UpdatedAt:     app.UpdatedAt,
	}, nil
}
