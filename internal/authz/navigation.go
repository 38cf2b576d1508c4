package authz

import "admissions-lifecycle/internal/models"

type NavItem struct {
	Name string `json:"name"`
	Href string `json:"href"`
	Icon string `json:"icon,omitempty"`
}

type NavGroup struct {
	Name  string    `json:"name"`
	Items []NavItem `json:"items"`
}

// FilterNavigation keeps the items role can access and drops groups left empty.
func (g *Gate) FilterNavigation(groups []NavGroup, role models.Role) []NavGroup {
	out := make([]NavGroup, 0, len(groups))
	for _, group := range groups {
		items := make([]NavItem, 0, len(group.Items))
		for _, item := range group.Items {
			if g.CanAccess(role, item.Href) {
				items = append(items, item)
			}
		}
		if len(items) > 0 {
			out = append(out, NavGroup{Name: group.Name, Items: items})
		}
	}
	return out
}

func RoleDisplayName(role models.Role) string {
	switch role {
	case models.RoleAdmin:
		return "Administrator"
	case models.RoleManager:
		return "Manager"
	case models.RoleReviewer:
		return "Reviewer"
	case models.RoleViewer:
		return "Viewer"
	default:
		return string(role)
	}
}

// DefaultNavigation is the dashboard sidebar before role filtering.
func DefaultNavigation() []NavGroup {
	return []NavGroup{
		{Name: "Overview", Items: []NavItem{
			{Name: "Dashboard", Href: "/dashboard", Icon: "home"},
		}},
		{Name: "Admissions", Items: []NavItem{
			{Name: "Applications", Href: "/dashboard/applications", Icon: "inbox"},
			{Name: "Decisions", Href: "/dashboard/decisions", Icon: "clipboard-check"},
		}},
		{Name: "Analytics", Items: []NavItem{
			{Name: "Reports", Href: "/dashboard/reports", Icon: "chart-bar"},
			{Name: "Audit Log", Href: "/dashboard/audit-log", Icon: "clipboard-list"},
		}},
		{Name: "Configuration", Items: []NavItem{
			{Name: "Integrations", Href: "/dashboard/integrations", Icon: "link"},
			{Name: "Team", Href: "/dashboard/team", Icon: "user-group"},
			{Name: "Security", Href: "/dashboard/security", Icon: "shield-check"},
			{Name: "Settings", Href: "/dashboard/settings", Icon: "cog"},
		}},
	}
}
