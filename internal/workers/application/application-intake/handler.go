// internal/workers/application/application-intake/handler.go
package applicationintake

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"admissions-lifecycle/internal/common/camunda"
	"admissions-lifecycle/internal/common/clock"
	"admissions-lifecycle/internal/common/errors"
	"admissions-lifecycle/internal/common/logger"
	"admissions-lifecycle/internal/common/validation"
	"admissions-lifecycle/internal/models"
	"admissions-lifecycle/internal/retention"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const TaskType = "application-intake"

var schema = validation.MustCompile(inputSchema)

type Creator interface {
	Create(ctx context.Context, app models.Application, actor models.Actor) (models.Application, error)
	Policy() retention.Policy
}

type Handler struct {
	config     *Config
	engine     Creator
	clock      clock.Clock
	errHandler *errors.ErrorHandler
	logger     logger.Logger
}

func NewHandler(config *Config, engine Creator, clk clock.Clock, log logger.Logger) *Handler {
	if clk == nil {
		clk = clock.System()
	}
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:     config,
		engine:     engine,
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

	var raw map[string]interface{}
	if err := json.Unmarshal([]byte(job.Variables), &raw); err != nil {
		camunda.FailJob(ctx, client, job, errors.NewInputParsingFailedError(err), h.errHandler)
		return
	}
	if res := schema.Validate(raw); !res.Valid {
		camunda.FailJob(ctx, client, job, errors.NewValidationFailedError(strings.Join(res.GetErrorMessages(), "; ")), h.errHandler)
		return
	}

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

// Execute registers the application as pending on behalf of the system
// actor.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	if input.ExtractedFields == nil {
		return nil, errors.NewValidationFailedError("extractedFields is required")
	}

	app := models.Application{
		ID:              input.ApplicationID,
		Priority:        models.NormalizePriority(input.Priority),
		Source:          input.Source,
		SourceEmail:     input.SourceEmail,
		ExtractedFields: input.ExtractedFields,
		ConfidenceScore: input.ConfidenceScore,
	}
	if input.ReceivedAt != nil {
		app.CreatedAt = input.ReceivedAt.UTC()
	}

	created, err := h.engine.Create(ctx, app, models.SystemActor)
	if err != nil {
		return nil, err
	}

	out := &Output{
		ApplicationID: created.ID,
		Status:        string(created.Status),
		Priority:      string(created.Priority),
		CreatedAt:     created.CreatedAt,
		DaysRemaining: h.engine.Policy().DaysRemaining(created, h.clock.Now()),
		Warnings:      h.phoneWarnings(created.ExtractedFields),
	}

	h.logger.Info("application received", map[string]interface{}{
		"applicationId": out.ApplicationID,
		"priority":      out.Priority,
		"daysRemaining": out.DaysRemaining,
		"warnings":      len(out.Warnings),
	})
	return out, nil
}

func (h *Handler) phoneWarnings(fields map[string]interface{}) []string {
	var warnings []string
	for _, name := range h.config.PhoneFields {
		v, ok := fields[name].(string)
		if !ok || v == "" {
			continue
		}
		if !validation.ValidatePhone(v) {
			warnings = append(warnings, fmt.Sprintf("%s: %q is not a valid phone number", name, v))
		}
	}
	return warnings
}
