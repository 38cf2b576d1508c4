package applicationeditfields

import "time"

type Input struct {
	ApplicationID string                 `json:"applicationId"`
	ActorID       string                 `json:"actorId"`
	Fields        map[string]interface{} `json:"fields"`
}

type Output struct {
	ApplicationID string    `json:"applicationId"`
	Status        string    `json:"status"`
	UpdatedFields []string  `json:"updatedFields"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// Field names are the extracted keys; the decision columns are not editable here.
const inputSchema = `{
	"type": "object",
	"required": ["applicationId", "actorId", "fields"],
	"properties": {
		"applicationId": {"type": "string", "minLength": 1},
		"actorId": {"type": "string", "minLength": 1},
		"fields": {
			"type": "object",
			"minProperties": 1,
			"propertyNames": {"not": {"enum": ["status", "decidedAt", "decisionNotes", "id"]}}
		}
	}
}`
