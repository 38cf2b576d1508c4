// internal/workers/audit/audit-log-query/handler.go
package auditlogquery

import (
	"context"
	"encoding/json"
	"strings"

	"admissions-lifecycle/internal/audit"
	"admissions-lifecycle/internal/authz"
	"admissions-lifecycle/internal/common/camunda"
	"admissions-lifecycle/internal/common/errors"
	"admissions-lifecycle/internal/common/logger"
	"admissions-lifecycle/internal/common/validation"
	"admissions-lifecycle/internal/identity"
	"admissions-lifecycle/internal/models"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const TaskType = "audit-log-query"

// AuditLogPath is the dashboard resource guarding the log.
const AuditLogPath = "/dashboard/audit-log"

var schema = validation.MustCompile(inputSchema)

// Searcher is satisfied by *audit.IndexingRecorder.
type Searcher interface {
	Search(ctx context.Context, text string, size int) ([]models.AuditEntry, error)
}

type Handler struct {
	config     *Config
	recorder   audit.Recorder
	searcher   Searcher
	gate       *authz.Gate
	identity   identity.Resolver
	errHandler *errors.ErrorHandler
	logger     logger.Logger
}

// NewHandler builds the handler. searcher is nil when no search index is
// configured; text queries are then rejected.
func NewHandler(config *Config, recorder audit.Recorder, searcher Searcher, gate *authz.Gate, resolver identity.Resolver, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:     config,
		recorder:   recorder,
		searcher:   searcher,
		gate:       gate,
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

// Execute reads the audit log newest first, by filter from the durable store
// or by free text from the search index.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	if res := schema.Validate(input); !res.Valid {
		return nil, errors.NewValidationFailedError(strings.Join(res.GetErrorMessages(), "; "))
	}

	actor, err := h.identity.Resolve(ctx, input.ActorID)
	if err != nil {
		return nil, err
	}
	if err := h.gate.Require(actor, AuditLogPath); err != nil {
		return nil, err
	}

	limit := input.Limit
	if limit <= 0 || limit > h.config.MaxLimit {
		limit = h.config.MaxLimit
	}

	var entries []models.AuditEntry
	source := SourceStore
	if q := strings.TrimSpace(input.Query); q != "" {
		if h.searcher == nil {
			return nil, errors.NewValidationFailedError("text search is not enabled")
		}
		source = SourceSearch
		entries, err = h.searcher.Search(ctx, q, limit)
		if err != nil {
			return nil, errors.NewExternalServiceError("elasticsearch", err)
		}
	} else {
		entries, err = h.recorder.List(ctx, models.AuditFilter{
			TargetID: input.TargetID,
			Action:   input.Action,
			Limit:    limit,
		})
		if err != nil {
			return nil, err
		}
	}
	if entries == nil {
		entries = []models.AuditEntry{}
	}
	return &Output{Entries: entries, Count: len(entries), Source: source}, nil
}
