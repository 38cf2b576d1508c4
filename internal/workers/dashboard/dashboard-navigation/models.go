package dashboardnavigation

import "admissions-lifecycle/internal/authz"

type Input struct {
	ActorID string `json:"actorId"`
}

type Output struct {
	ActorID  string           `json:"actorId"`
	Role     string           `json:"role"`
	RoleName string           `json:"roleName"`
	Groups   []authz.NavGroup `json:"groups"`
}

const inputSchema = `{
	"type": "object",
	"required": ["actorId"],
	"properties": {
		"actorId": {"type": "string", "minLength": 1}
	}
}`
