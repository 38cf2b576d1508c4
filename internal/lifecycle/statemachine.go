package lifecycle

import "admissions-lifecycle/internal/models"

// transitions lists every allowed status change. review → pending is
// deliberately absent, and terminal statuses have no way out.
var transitions = map[models.Status][]models.Status{
	models.StatusPending: {models.StatusReview, models.StatusApproved, models.StatusDenied},
	models.StatusReview:  {models.StatusApproved, models.StatusDenied},
}

// CanTransition reports whether from → to is in the transition table.
// Identical statuses are not a transition.
func CanTransition(from, to models.Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Targets returns the statuses reachable from s.
func Targets(s models.Status) []models.Status {
	out := make([]models.Status, len(transitions[s]))
	copy(out, transitions[s])
	return out
}
