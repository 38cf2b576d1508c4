// Package authz decides which roles may see which dashboard resources and
// which roles may change an application's decision status.
package authz

import (
	"strings"
	"sync"

	apperrors "admissions-lifecycle/internal/common/errors"
	"admissions-lifecycle/internal/models"
)

// ApplicationsRoot is the resource prefix every application lives under.
const ApplicationsRoot = "/dashboard/applications"

// ExactMarker prefixes table entries that grant only the path itself, not
// the paths nested under it.
const ExactMarker = "="

// DefaultRoutes is the built-in role to resource-prefix table.
func DefaultRoutes() map[models.Role][]string {
	return map[models.Role][]string{
		models.RoleAdmin: {
			"/dashboard",
			"/dashboard/applications",
			"/dashboard/decisions",
			"/dashboard/reports",
			"/dashboard/audit-log",
			"/dashboard/integrations",
			"/dashboard/team",
			"/dashboard/security",
			"/dashboard/settings",
		},
		// The root is exact-only: as a prefix it would also grant integrations
		// and team.
		models.RoleManager: {
			ExactMarker + "/dashboard",
			"/dashboard/applications",
			"/dashboard/decisions",
			"/dashboard/reports",
			"/dashboard/audit-log",
			"/dashboard/security",
			"/dashboard/settings",
		},
		models.RoleReviewer: {
			"/dashboard/applications",
			"/dashboard/reports",
		},
		models.RoleViewer: {
			"/dashboard/applications",
			"/dashboard/reports",
		},
	}
}

// Gate holds the route table. It is safe for concurrent use.
type Gate struct {
	mu     sync.RWMutex
	routes map[models.Role][]string
}

// NewGate builds a gate from overrides keyed by role name. A nil or empty map
// keeps DefaultRoutes.
func NewGate(overrides map[string][]string) *Gate {
	g := &Gate{routes: DefaultRoutes()}
	if len(overrides) > 0 {
		g.SetRoutes(overrides)
	}
	return g
}

// SetRoutes replaces the whole table.
func (g *Gate) SetRoutes(routes map[string][]string) {
	table := make(map[models.Role][]string, len(routes))
	for role, prefixes := range routes {
		cleaned := make([]string, 0, len(prefixes))
		for _, p := range prefixes {
			cleaned = append(cleaned, normalize(p))
		}
		table[models.Role(strings.ToLower(role))] = cleaned
	}
	g.mu.Lock()
	g.routes = table
	g.mu.Unlock()
}

func normalize(p string) string {
	if strings.HasPrefix(p, ExactMarker) {
		return ExactMarker + normalize(strings.TrimPrefix(p, ExactMarker))
	}
	if len(p) > 1 {
		p = strings.TrimRight(p, "/")
	}
	return p
}

// CanAccess reports whether path equals or is nested under one of role's
// prefixes. Exact entries match only the path itself.
func (g *Gate) CanAccess(role models.Role, path string) bool {
	path = normalize(strings.TrimPrefix(path, ExactMarker))
	g.mu.RLock()
	defer g.mu.RUnlock()
	for _, prefix := range g.routes[role] {
		if exact, ok := strings.CutPrefix(prefix, ExactMarker); ok {
			if path == exact {
				return true
			}
			continue
		}
		if path == prefix || strings.HasPrefix(path, prefix+"/") {
			return true
		}
	}
	return false
}

// CanDecide reports whether actor may change app's status. Viewers and
// unknown roles never may.
func CanDecide(actor models.Actor, _ models.Application) bool {
	switch actor.Role {
	case models.RoleAdmin, models.RoleManager, models.RoleReviewer:
		return true
	}
	return false
}

// ApplicationPath is the resource path of one application.
func ApplicationPath(id string) string {
	return ApplicationsRoot + "/" + id
}

// Authorize requires both visibility of the application and decide capability.
// The returned error never says which check failed.
func (g *Gate) Authorize(actor models.Actor, app models.Application) error {
	if !g.CanAccess(actor.Role, ApplicationPath(app.ID)) || !CanDecide(actor, app) {
		return apperrors.NewForbiddenError()
	}
	return nil
}

// Require checks visibility of a single resource.
func (g *Gate) Require(actor models.Actor, path string) error {
	if !g.CanAccess(actor.Role, path) {
		return apperrors.NewForbiddenError()
	}
	return nil
}
