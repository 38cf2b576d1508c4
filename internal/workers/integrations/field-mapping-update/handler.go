// internal/workers/integrations/field-mapping-update/handler.go
package fieldmappingupdate

import (
	"context"
	"encoding/json"
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

const TaskType = "field-mapping-update"

var schema = validation.MustCompile(inputSchema)

// Mappings is satisfied by *mapping.Service.
type Mappings interface {
	Load(ctx context.Context) error
	List(actor models.Actor) ([]models.FieldMapping, error)
	Add(ctx context.Context, actor models.Actor, source, dest string) error
	Edit(ctx context.Context, actor models.Actor, index int, source, dest string) error
	Remove(ctx context.Context, actor models.Actor, index int) error
}

type Handler struct {
	config     *Config
	mappings   Mappings
	identity   identity.Resolver
	errHandler *errors.ErrorHandler
	logger     logger.Logger
}

func NewHandler(config *Config, mappings Mappings, resolver identity.Resolver, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:     config,
		mappings:   mappings,
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

// Execute applies one table operation and returns the table afterwards. The
// persisted table is reloaded first so edits made through another replica
// are not overwritten.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	if res := schema.Validate(input); !res.Valid {
		return nil, errors.NewValidationFailedError(strings.Join(res.GetErrorMessages(), "; "))
	}

	actor, err := h.identity.Resolve(ctx, input.ActorID)
	if err != nil {
		return nil, err
	}
	if _, err := h.mappings.List(actor); err != nil {
		return nil, err
	}
	if err := h.mappings.Load(ctx); err != nil {
		return nil, errors.NewQueryExecutionFailedError("load field mappings", err)
	}

	switch input.Operation {
	case OperationAdd:
		err = h.mappings.Add(ctx, actor, input.SourceField, input.DestinationField)
	case OperationEdit:
		err = h.mappings.Edit(ctx, actor, *input.Index, input.SourceField, input.DestinationField)
	case OperationRemove:
		err = h.mappings.Remove(ctx, actor, *input.Index)
	}
	if err != nil {
		return nil, err
	}

	current, err := h.mappings.List(actor)
	if err != nil {
		return nil, err
	}
	return &Output{Operation: input.Operation, Mappings: current}, nil
}
