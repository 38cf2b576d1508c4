// internal/workers/dashboard/dashboard-navigation/handler.go
package dashboardnavigation

import (
	"context"
	"encoding/json"
	"strings"

	"admissions-lifecycle/internal/authz"
	"admissions-lifecycle/internal/common/camunda"
	"admissions-lifecycle/internal/common/errors"
	"admissions-lifecycle/internal/common/logger"
	"admissions-lifecycle/internal/common/validation"
	"admissions-lifecycle/internal/identity"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const TaskType = "dashboard-navigation"

var schema = validation.MustCompile(inputSchema)

type Handler struct {
	config     *Config
	gate       *authz.Gate
	identity   identity.Resolver
	menu       []authz.NavGroup
	errHandler *errors.ErrorHandler
	logger     logger.Logger
}

// NewHandler serves menu filtered per role. A nil menu uses
// authz.DefaultNavigation.
func NewHandler(config *Config, gate *authz.Gate, resolver identity.Resolver, menu []authz.NavGroup, log logger.Logger) *Handler {
	if menu == nil {
		menu = authz.DefaultNavigation()
	}
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:     config,
		gate:       gate,
		identity:   resolver,
		menu:       menu,
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

// Execute returns the menu the actor's role may see. An actor whose role
// grants nothing gets an empty menu rather than an error.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	if res := schema.Validate(input); !res.Valid {
		return nil, errors.NewValidationFailedError(strings.Join(res.GetErrorMessages(), "; "))
	}

	actor, err := h.identity.Resolve(ctx, input.ActorID)
	if err != nil {
		return nil, err
	}

	return &Output{
		ActorID:  actor.ID,
		Role:     string(actor.Role),
		RoleName: authz.RoleDisplayName(actor.Role),
		Groups:   h.gate.FilterNavigation(h.menu, actor.Role),
	}, nil
}
