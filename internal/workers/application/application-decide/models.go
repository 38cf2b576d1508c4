package applicationdecide

import "time"

type Input struct {
	ApplicationID string `json:"applicationId"`
	Status        string `json:"status"`
	ActorID       string `json:"actorId"`
	Notes         string `json:"notes,omitempty"`
}

type Output struct {
	ApplicationID    string     `json:"applicationId"`
	Status           string     `json:"status"`
	DecidedAt        *time.Time `json:"decidedAt,omitempty"`
	Unchanged        bool       `json:"unchanged"`
	SyncAttempted    bool       `json:"syncAttempted"`
	SyncPending      bool       `json:"syncPending"`
	ExternalRecordID string     `json:"externalRecordId,omitempty"`
	SyncError        string     `json:"syncError,omitempty"`
}

const inputSchema = `{
	"type": "object",
	"required": ["applicationId", "status", "actorId"],
	"properties": {
		"applicationId": {"type": "string", "minLength": 1},
		"status": {"type": "string", "enum": ["pending", "review", "approved", "denied"]},
		"actorId": {"type": "string", "minLength": 1},
		"notes": {"type": "string", "maxLength": 2000}
	}
}`
