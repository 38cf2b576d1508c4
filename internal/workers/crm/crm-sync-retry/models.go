// internal/workers/crm/crm-sync-retry/models.go
package crmsyncretry

type Input struct {
	ApplicationID string `json:"applicationId"`
	Attempt       int    `json:"attempt"`
	LastError     string `json:"lastError,omitempty"`
}

type Output struct {
	ApplicationID    string `json:"applicationId"`
	ExternalRecordID string `json:"externalRecordId"`
	Attempt          int    `json:"attempt"`
}
