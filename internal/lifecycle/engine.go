// Package lifecycle moves applications through their decision states and
// keeps the audit log and the external CRM in step with them.
package lifecycle

import (
	"context"
	"fmt"
	"time"

	"admissions-lifecycle/internal/audit"
	"admissions-lifecycle/internal/authz"
	"admissions-lifecycle/internal/common/clock"
	"admissions-lifecycle/internal/common/errors"
	"admissions-lifecycle/internal/common/logger"
	"admissions-lifecycle/internal/common/metrics"
	"admissions-lifecycle/internal/crmsync"
	"admissions-lifecycle/internal/models"
	"admissions-lifecycle/internal/notify"
	"admissions-lifecycle/internal/retention"
	"admissions-lifecycle/internal/store"

	"github.com/google/uuid"
)

// Projector builds the external-system record for an application.
type Projector interface {
	Projection(app models.Application) map[string]interface{}
}

// Deps are the engine's collaborators. Store, Gate, Recorder, Projector and
// Adapter are required; the rest default.
type Deps struct {
	Store     store.Store
	Gate      *authz.Gate
	Recorder  audit.Recorder
	Projector Projector
	Adapter   crmsync.Adapter
	Notifier  notify.SyncRetryPublisher
	Clock     clock.Clock
	Policy    retention.Policy
	Logger    logger.Logger

	// SyncTimeout bounds each Push; zero leaves the adapter unbounded.
	SyncTimeout time.Duration
	// ListBatch is the page size used when listing everything.
	ListBatch int
}

type Engine struct {
	store     store.Store
	gate      *authz.Gate
	recorder  audit.Recorder
	projector Projector
	adapter   crmsync.Adapter
	notifier  notify.SyncRetryPublisher
	clock     clock.Clock
	policy    retention.Policy
	logger    logger.Logger
	listBatch int
}

func New(d Deps) *Engine {
	e := &Engine{
		store:     d.Store,
		gate:      d.Gate,
		recorder:  d.Recorder,
		projector: d.Projector,
		adapter:   crmsync.WithTimeout(d.Adapter, d.SyncTimeout),
		notifier:  d.Notifier,
		clock:     d.Clock,
		policy:    d.Policy,
		logger:    d.Logger,
		listBatch: d.ListBatch,
	}
	if e.notifier == nil {
		e.notifier = notify.Nop{}
	}
	if e.clock == nil {
		e.clock = clock.System()
	}
	if e.policy == (retention.Policy{}) {
		e.policy = retention.DefaultPolicy()
	}
	if e.logger == nil {
		e.logger = logger.NewNoOpLogger()
	}
	if e.listBatch <= 0 {
		e.listBatch = 500
	}
	return e
}

// Policy is the retention policy used for annotation and purging.
func (e *Engine) Policy() retention.Policy { return e.policy }

type TransitionRequest struct {
	ApplicationID string
	Status        models.Status
	Actor         models.Actor
	Notes         string
}

type TransitionResult struct {
	Application models.Application `json:"application"`
	// Sync is set only for terminal decisions.
	Sync *models.SyncResult `json:"sync,omitempty"`
	// SyncPending means the decision stands but the CRM has not seen it yet.
	SyncPending bool `json:"syncPending"`
	// Unchanged is true when the application already had the requested status.
	Unchanged bool `json:"unchanged"`
}

// Transition applies a status decision. Authorization precedes every other
// check, so a caller without decide rights learns nothing but Forbidden.
func (e *Engine) Transition(ctx context.Context, req TransitionRequest) (*TransitionResult, error) {
	res, err := e.transition(ctx, req)
	outcome := "ok"
	switch {
	case err != nil:
		outcome = string(errors.CodeOf(err))
	case res.Unchanged:
		outcome = "noop"
	}
	to := string(req.Status)
	if !req.Status.Valid() {
		to = "invalid"
	}
	metrics.TransitionsTotal.WithLabelValues(to, outcome).Inc()
	return res, err
}

func (e *Engine) transition(ctx context.Context, req TransitionRequest) (*TransitionResult, error) {
	log := e.logger.WithFields(map[string]interface{}{
		"applicationId": req.ApplicationID,
		"actorId":       req.Actor.ID,
		"toStatus":      string(req.Status),
	})

	app, err := e.store.Get(ctx, req.ApplicationID)
	if err != nil {
		return nil, err
	}

	if err := e.gate.Authorize(req.Actor, app); err != nil {
		log.Warn("transition denied", map[string]interface{}{"role": string(req.Actor.Role)})
		return nil, err
	}

	if app.Status == req.Status {
		return &TransitionResult{Application: app, Unchanged: true}, nil
	}
	if !CanTransition(app.Status, req.Status) {
		return nil, errors.NewInvalidTransitionError(string(app.Status), string(req.Status))
	}

	now := e.clock.Now().UTC()
	patch := models.StatusPatch{
		Status:        req.Status,
		DecidedAt:     app.DecidedAt,
		DecisionNotes: app.DecisionNotes,
		UpdatedAt:     now,
	}
	if req.Notes != "" {
		patch.DecisionNotes = req.Notes
	}
	if req.Status.IsTerminal() && app.DecidedAt == nil {
		patch.DecidedAt = &now
	}

	updated, err := e.store.ConditionalUpdate(ctx, app.ID, app.Status, patch)
	if err != nil {
		if errors.CodeOf(err) == errors.ErrCodeConflict {
			log.Info("lost decision race", map[string]interface{}{"expected": string(app.Status)})
		}
		return nil, err
	}

	detail := fmt.Sprintf("Status changed from %s to %s", app.Status, req.Status)
	if req.Notes != "" {
		detail += ": " + req.Notes
	}
	if _, err := e.recorder.Append(ctx, models.AuditEntry{
		ActorID:  req.Actor.ID,
		Action:   models.DecisionAction(req.Status),
		TargetID: app.ID,
		Detail:   detail,
	}); err != nil {
		metrics.AuditFailuresTotal.Inc()
		e.rollback(ctx, app, updated, log)
		return nil, errors.NewAuditFailureError(err)
	}

	log.Info("application transitioned", map[string]interface{}{"fromStatus": string(app.Status)})

	result := &TransitionResult{Application: updated}
	if updated.Status.IsTerminal() {
		sr := e.push(ctx, req.Actor, updated, 1)
		result.Sync = &sr
		result.SyncPending = !sr.Success
	}
	return result, nil
}

// rollback undoes a committed status change whose audit entry could not be
// written. It runs detached from ctx so a cancelled caller still unwinds.
func (e *Engine) rollback(ctx context.Context, before, after models.Application, log logger.Logger) {
	ctx = context.WithoutCancel(ctx)
	_, err := e.store.ConditionalUpdate(ctx, before.ID, after.Status, models.StatusPatch{
		Status:        before.Status,
		DecidedAt:     before.DecidedAt,
		DecisionNotes: before.DecisionNotes,
		UpdatedAt:     before.UpdatedAt,
	})
	if err != nil {
		log.Error("audit failure rollback did not apply", map[string]interface{}{"error": err})
		return
	}
	log.Warn("transition rolled back after audit failure", nil)
}

// push projects app, sends it to the CRM and records the outcome. It never
// fails the caller.
func (e *Engine) push(ctx context.Context, actor models.Actor, app models.Application, attempt int) models.SyncResult {
	start := time.Now()
	res := e.adapter.Push(ctx, app.ID, e.projector.Projection(app))
	metrics.SyncDuration.Observe(time.Since(start).Seconds())

	entry := models.AuditEntry{ActorID: actor.ID, TargetID: app.ID}
	if res.Success {
		metrics.SyncResultsTotal.WithLabelValues("success").Inc()
		entry.Action = models.ActionCRMSyncSuccess
		entry.Detail = "Synced to external record " + res.ExternalRecordID
	} else {
		metrics.SyncResultsTotal.WithLabelValues("failure").Inc()
		entry.Action = models.ActionCRMSyncFailed
		entry.Detail = errors.NewSyncFailureError(app.ID, res.Error).Details
	}

	if _, err := e.recorder.Append(ctx, entry); err != nil {
		e.logger.Error("sync audit entry not written", map[string]interface{}{
			"applicationId": app.ID,
			"action":        entry.Action,
			"error":         err,
		})
	}

	if !res.Success {
		e.logger.Warn("crm sync pending", map[string]interface{}{
			"applicationId": app.ID,
			"attempt":       attempt,
			"syncError":     res.Error,
		})
		if err := e.notifier.PublishSyncRetry(ctx, notify.SyncRetryEvent{
			ApplicationID: app.ID,
			Status:        string(app.Status),
			Error:         res.Error,
			ActorID:       actor.ID,
			Attempt:       attempt,
			OccurredAt:    e.clock.Now().UTC(),
		}); err != nil {
			e.logger.Error("sync retry event not published", map[string]interface{}{
				"applicationId": app.ID,
				"error":         err,
			})
		}
	}
	return res
}

// Resync pushes an already decided application to the CRM again. The
// adapter is idempotent, so repeated calls update the same external record.
func (e *Engine) Resync(ctx context.Context, id string, actor models.Actor, attempt int) (models.SyncResult, error) {
	app, err := e.store.Get(ctx, id)
	if err != nil {
		return models.SyncResult{}, err
	}
	if err := e.gate.Authorize(actor, app); err != nil {
		return models.SyncResult{}, err
	}
	if !app.Status.IsTerminal() {
		return models.SyncResult{}, errors.NewInvalidTransitionError(string(app.Status), "sync")
	}
	return e.push(ctx, actor, app, attempt), nil
}

func (e *Engine) Get(ctx context.Context, id string) (models.Application, error) {
	return e.store.Get(ctx, id)
}

// ListWithRetention returns matching applications annotated with their
// retention countdown at now. A zero Limit lists everything.
func (e *Engine) ListWithRetention(ctx context.Context, filter models.ApplicationFilter, now time.Time) ([]models.ApplicationView, error) {
	var views []models.ApplicationView
	if filter.Limit > 0 {
		apps, err := e.store.List(ctx, filter)
		if err != nil {
			return nil, err
		}
		views = make([]models.ApplicationView, 0, len(apps))
		for _, app := range apps {
			views = append(views, e.policy.Annotate(app, now))
		}
		return views, nil
	}
	for app, err := range store.Iterate(ctx, e.store, filter, e.listBatch) {
		if err != nil {
			return nil, err
		}
		views = append(views, e.policy.Annotate(app, now))
	}
	return views, nil
}

// StatsWindow is the trailing window counted as ThisWeek.
const StatsWindow = 7 * 24 * time.Hour

// Stats counts applications per status, with those created in the week
// before now.
func (e *Engine) Stats(ctx context.Context, now time.Time) (models.ApplicationStats, error) {
	return e.store.Stats(ctx, now.Add(-StatsWindow))
}

// Create registers a new application as pending. A missing id is generated
// and a zero CreatedAt becomes now.
func (e *Engine) Create(ctx context.Context, app models.Application, actor models.Actor) (models.Application, error) {
	now := e.clock.Now().UTC()
	if app.ID == "" {
		app.ID = uuid.New().String()
	}
	if app.CreatedAt.IsZero() {
		app.CreatedAt = now
	}
	app.Status = models.StatusPending
	app.DecidedAt = nil
	app.UpdatedAt = now
	if app.Priority == "" {
		app.Priority = models.PriorityNormal
	}
	if app.ExtractedFields == nil {
		app.ExtractedFields = map[string]interface{}{}
	}

	if err := e.store.Create(ctx, app); err != nil {
		return models.Application{}, err
	}

	detail := "Received"
	if app.Source != "" {
		detail += " via " + app.Source
	}
	if _, err := e.recorder.Append(ctx, models.AuditEntry{
		ActorID:  actor.ID,
		Action:   models.ActionApplicationSubmitted,
		TargetID: app.ID,
		Detail:   detail,
	}); err != nil {
		metrics.AuditFailuresTotal.Inc()
		if delErr := e.store.Delete(context.WithoutCancel(ctx), app.ID); delErr != nil {
			e.logger.Error("unaudited application not removed", map[string]interface{}{
				"applicationId": app.ID,
				"error":         delErr,
			})
		}
		return models.Application{}, errors.NewAuditFailureError(err)
	}

	e.logger.Info("application created", map[string]interface{}{
		"applicationId": app.ID,
		"priority":      string(app.Priority),
	})
	return app, nil
}

// EditFields merges corrected extracted fields into an application. Any
// status may be edited until the record is purged; the same rights as
// deciding are required.
func (e *Engine) EditFields(ctx context.Context, id string, fields map[string]interface{}, actor models.Actor) (models.Application, error) {
	app, err := e.store.Get(ctx, id)
	if err != nil {
		return models.Application{}, err
	}
	if err := e.gate.Authorize(actor, app); err != nil {
		return models.Application{}, err
	}
	if len(fields) == 0 {
		return app, nil
	}
	if err := e.store.UpdateFields(ctx, id, fields); err != nil {
		return models.Application{}, err
	}

	if _, err := e.recorder.Append(ctx, models.AuditEntry{
		ActorID:  actor.ID,
		Action:   models.ActionApplicationEdited,
		TargetID: id,
		Detail:   fmt.Sprintf("Updated %d field(s)", len(fields)),
	}); err != nil {
		metrics.AuditFailuresTotal.Inc()
		restore := make(map[string]interface{}, len(fields))
		for k := range fields {
			restore[k] = app.ExtractedFields[k]
		}
		if rbErr := e.store.UpdateFields(context.WithoutCancel(ctx), id, restore); rbErr != nil {
			e.logger.Error("field edit rollback did not apply", map[string]interface{}{
				"applicationId": id,
				"error":         rbErr,
			})
		}
		return models.Application{}, errors.NewAuditFailureError(err)
	}
	return e.store.Get(ctx, id)
}
