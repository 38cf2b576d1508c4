package models

type Role string

const (
	RoleAdmin    Role = "admin"
	RoleManager  Role = "manager"
	RoleReviewer Role = "reviewer"
	RoleViewer   Role = "viewer"
)

// Actor is the caller of an engine operation, as supplied by the identity collaborator.
type Actor struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
	Role Role   `json:"role"`
}

// SystemActor is used for scheduled jobs such as the purge sweep.
var SystemActor = Actor{ID: "system", Name: "System", Role: RoleAdmin}
