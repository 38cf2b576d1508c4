// internal/workers/application/application-intake/models.go
package applicationintake

import "time"

type Input struct {
	ApplicationID   string                 `json:"applicationId,omitempty"`
	Priority        string                 `json:"priority,omitempty"`
	Source          string                 `json:"source,omitempty"`
	SourceEmail     string                 `json:"sourceEmail,omitempty"`
	ExtractedFields map[string]interface{} `json:"extractedFields"`
	ConfidenceScore float64                `json:"confidenceScore"`
	ReceivedAt      *time.Time             `json:"receivedAt,omitempty"`
}

type Output struct {
	ApplicationID string    `json:"applicationId"`
	Status        string    `json:"status"`
	Priority      string    `json:"priority"`
	CreatedAt     time.Time `json:"createdAt"`
	DaysRemaining int       `json:"daysRemaining"`
	Warnings      []string  `json:"warnings,omitempty"`
}

const inputSchema = `{
	"type": "object",
	"required": ["extractedFields"],
	"properties": {
		"applicationId": {"type": "string"},
		"priority": {"type": "string", "maxLength": 32},
		"source": {"type": "string", "maxLength": 64},
		"sourceEmail": {"type": "string", "format": "email"},
		"extractedFields": {"type": "object"},
		"confidenceScore": {"type": "number", "minimum": 0, "maximum": 100}
	}
}`
