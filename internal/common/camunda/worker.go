package camunda

import (
	"context"
	"time"

	"admissions-lifecycle/internal/common/config"
	"admissions-lifecycle/internal/common/errors"
	"admissions-lifecycle/internal/common/logger"
	"admissions-lifecycle/internal/common/metrics"
	"admissions-lifecycle/internal/common/observability"

	"github.com/camunda/zeebe/clients/go/v8/pkg/commands"
	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"
)

type HandlerFunc func(client worker.JobClient, job entities.Job)

// StartWorker opens a job worker for taskType that times and counts every
// job. It returns nil when the worker is disabled.
func StartWorker(client zbc.Client, taskType string, wcfg config.WorkerConfig, handler HandlerFunc, obs *observability.Observability, log logger.Logger) worker.JobWorker {
	if !wcfg.Enabled {
		log.Info("worker disabled", map[string]interface{}{"taskType": taskType})
		return nil
	}

	jw := client.NewJobWorker().
		JobType(taskType).
		Handler(Instrument(taskType, handler, obs)).
		MaxJobsActive(wcfg.MaxJobsActive).
		Timeout(config.GetDuration(wcfg.Timeout)).
		Open()

	log.Info("worker started", map[string]interface{}{
		"taskType":      taskType,
		"maxJobsActive": wcfg.MaxJobsActive,
		"timeout_ms":    wcfg.Timeout,
	})
	return jw
}

// Job outcomes, by the last command the handler issued.
const (
	OutcomeCompleted  = "completed"
	OutcomeFailed     = "failed"
	OutcomeBPMNError  = "bpmn_error"
	OutcomeUnanswered = "unanswered"
)

// outcomeClient remembers which job command the handler asked for.
type outcomeClient struct {
	worker.JobClient
	outcome string
}

func (c *outcomeClient) NewCompleteJobCommand() commands.CompleteJobCommandStep1 {
	c.outcome = OutcomeCompleted
	return c.JobClient.NewCompleteJobCommand()
}

func (c *outcomeClient) NewFailJobCommand() commands.FailJobCommandStep1 {
	c.outcome = OutcomeFailed
	return c.JobClient.NewFailJobCommand()
}

func (c *outcomeClient) NewThrowErrorCommand() commands.ThrowErrorCommandStep1 {
	c.outcome = OutcomeBPMNError
	return c.JobClient.NewThrowErrorCommand()
}

// Instrument wraps handler with job duration and in-flight metrics. The otel
// job counter is labelled with the job's outcome.
func Instrument(taskType string, handler HandlerFunc, obs *observability.Observability) worker.JobHandler {
	return func(client worker.JobClient, job entities.Job) {
		start := time.Now()
		tracked := &outcomeClient{JobClient: client, outcome: OutcomeUnanswered}
		metrics.WorkerJobsActive.WithLabelValues(taskType).Inc()
		defer func() {
			metrics.WorkerJobsActive.WithLabelValues(taskType).Dec()
			metrics.WorkerJobDuration.WithLabelValues(taskType).Observe(time.Since(start).Seconds())
			obs.RecordJob(context.Background(), taskType, tracked.outcome, time.Since(start))
		}()
		handler(tracked, job)
	}
}

// CompleteJob completes job with output as its variables.
func CompleteJob(ctx context.Context, client worker.JobClient, job entities.Job, output interface{}, log logger.Logger) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		log.Error("failed to create complete job command", map[string]interface{}{"error": err, "jobKey": job.Key})
		return
	}
	if _, err := cmd.Send(ctx); err != nil {
		log.Error("failed to send complete job command", map[string]interface{}{"error": err, "jobKey": job.Key})
		return
	}
	metrics.WorkerJobsCompleted.WithLabelValues(job.Type).Inc()
	log.Info("job completed successfully", map[string]interface{}{"jobKey": job.Key})
}

// FailJob routes err through the error handler: retryable codes fail the job
// with retries left, everything else becomes a BPMN error.
func FailJob(ctx context.Context, client worker.JobClient, job entities.Job, err error, h *errors.ErrorHandler) {
	metrics.WorkerJobsFailed.WithLabelValues(job.Type, string(errors.CodeOf(err))).Inc()
	h.HandleJobError(ctx, client, job, err)
}
