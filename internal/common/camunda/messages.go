package camunda

import (
	"context"

	"admissions-lifecycle/internal/notify"
)

// MessageSyncRetryRequested starts or resumes the CRM sync retry process for
// one application.
const MessageSyncRetryRequested = "crm-sync-retry-requested"

// MessagePublisher is satisfied by *Client.
type MessagePublisher interface {
	PublishMessage(ctx context.Context, name, correlationKey string, variables interface{}) error
}

// SyncRetryMessenger hands failed syncs to the process engine, correlated by
// application id, so the crm-sync-retry worker picks them up. Only the first
// failure starts a retry process; later attempts run inside it as job
// retries.
type SyncRetryMessenger struct {
	publisher MessagePublisher
}

func NewSyncRetryMessenger(p MessagePublisher) *SyncRetryMessenger {
	return &SyncRetryMessenger{publisher: p}
}

func (m *SyncRetryMessenger) PublishSyncRetry(ctx context.Context, event notify.SyncRetryEvent) error {
	if event.Attempt > 1 {
		return nil
	}
	return m.publisher.PublishMessage(ctx, MessageSyncRetryRequested, event.ApplicationID, map[string]interface{}{
		"applicationId": event.ApplicationID,
		"attempt":       event.Attempt + 1,
		"lastError":     event.Error,
	})
}
