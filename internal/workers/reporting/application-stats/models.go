package applicationstats

import (
	"time"

	"admissions-lifecycle/internal/models"
)

type Input struct {
	ActorID string `json:"actorId"`
}

type Output struct {
	models.ApplicationStats
	GeneratedAt time.Time `json:"generatedAt"`
}

const inputSchema = `{
	"type": "object",
	"required": ["actorId"],
	"properties": {
		"actorId": {"type": "string", "minLength": 1}
	}
}`
