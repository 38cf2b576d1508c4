package auditlogquery

import "admissions-lifecycle/internal/models"

const (
	SourceStore  = "store"
	SourceSearch = "search"
)

type Input struct {
	ActorID  string `json:"actorId"`
	TargetID string `json:"targetId,omitempty"`
	Action   string `json:"action,omitempty"`
	Query    string `json:"query,omitempty"`
	Limit    int    `json:"limit,omitempty"`
}

type Output struct {
	Entries []models.AuditEntry `json:"entries"`
	Count   int                 `json:"count"`
	Source  string              `json:"source"`
}

const inputSchema = `{
	"type": "object",
	"required": ["actorId"],
	"properties": {
		"actorId": {"type": "string", "minLength": 1},
		"targetId": {"type": "string"},
		"action": {"type": "string"},
		"query": {"type": "string", "maxLength": 200},
		"limit": {"type": "integer", "minimum": 0}
	}
}`
