package applicationlist

import (
	"admissions-lifecycle/internal/models"
	"admissions-lifecycle/internal/presentation"
)

type Input struct {
	ActorID string `json:"actorId"`
	Status  string `json:"status,omitempty"`
	Limit   int    `json:"limit,omitempty"`
	AfterID string `json:"afterId,omitempty"`
}

type Output struct {
	Applications []models.ApplicationView `json:"applications"`
	Rows         []presentation.Row       `json:"rows"`
	Count        int                      `json:"count"`
	NextCursor   string                   `json:"nextCursor,omitempty"`
}

const inputSchema = `{
	"type": "object",
	"required": ["actorId"],
	"properties": {
		"actorId": {"type": "string", "minLength": 1},
		"status": {"type": "string", "enum": ["pending", "review", "approved", "denied"]},
		"limit": {"type": "integer", "minimum": 0},
		"afterId": {"type": "string"}
	}
}`
