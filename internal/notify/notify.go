// Package notify sends operational notifications: SNS events for CRM syncs
// that need a retry and SES summaries of retention sweeps.
package notify

import (
	"context"
	"errors"
	"time"
)

// SyncRetryEvent is published when a decision was recorded but its CRM sync
// failed.
type SyncRetryEvent struct {
	ApplicationID string    `json:"applicationId"`
	Status        string    `json:"status"`
	Error         string    `json:"error"`
	ActorID       string    `json:"actorId"`
	Attempt       int       `json:"attempt"`
	OccurredAt    time.Time `json:"occurredAt"`
}

// SweepSummary describes one completed retention sweep.
type SweepSummary struct {
	RanAt     time.Time `json:"ranAt"`
	Examined  int       `json:"examined"`
	Purged    int       `json:"purged"`
	Failed    int       `json:"failed"`
	PurgedIDs []string  `json:"purgedIds,omitempty"`
}

type SyncRetryPublisher interface {
	PublishSyncRetry(ctx context.Context, event SyncRetryEvent) error
}

type SweepReporter interface {
	SendSweepSummary(ctx context.Context, summary SweepSummary) error
}

// Nop discards every notification.
type Nop struct{}

func (Nop) PublishSyncRetry(context.Context, SyncRetryEvent) error { return nil }
func (Nop) SendSweepSummary(context.Context, SweepSummary) error   { return nil }

// Fanout publishes each event to every publisher and joins their errors.
type Fanout []SyncRetryPublisher

func (f Fanout) PublishSyncRetry(ctx context.Context, event SyncRetryEvent) error {
	var errs []error
	for _, p := range f {
		if err := p.PublishSyncRetry(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
