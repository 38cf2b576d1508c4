// internal/workers/reporting/application-stats/handler.go
package applicationstats

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

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const TaskType = "application-stats"

// ReportsPath is the dashboard resource the counts belong to.
const ReportsPath = "/dashboard/reports"

var schema = validation.MustCompile(inputSchema)

// Counter is satisfied by *lifecycle.Engine.
type Counter interface {
	Stats(ctx context.Context, now time.Time) (models.ApplicationStats, error)
}

type Handler struct {
	config     *Config
	engine     Counter
	gate       *authz.Gate
	identity   identity.Resolver
	clock      clock.Clock
	errHandler *errors.ErrorHandler
	logger     logger.Logger
}

func NewHandler(config *Config, engine Counter, gate *authz.Gate, resolver identity.Resolver, clk clock.Clock, log logger.Logger) *Handler {
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

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	if res := schema.Validate(input); !res.Valid {
		return nil, errors.NewValidationFailedError(strings.Join(res.GetErrorMessages(), "; "))
	}

	actor, err := h.identity.Resolve(ctx, input.ActorID)
	if err != nil {
		return nil, err
	}
	if err := h.gate.Require(actor, ReportsPath); err != nil {
		return nil, err
	}

	now := h.clock.Now()
	st, err := h.engine.Stats(ctx, now)
	if err != nil {
		return nil, err
	}
	return &Output{ApplicationStats: st, GeneratedAt: now}, nil
}
