// internal/models/application.go
package models

import (
	"strings"
	"time"
)

type Status string

const (
	StatusPending  Status = "pending"
	StatusReview   Status = "review"
	StatusApproved Status = "approved"
	StatusDenied   Status = "denied"
)

// Valid reports whether s is one of the four lifecycle states.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusReview, StatusApproved, StatusDenied:
		return true
	}
	return false
}

// IsTerminal reports whether s is a decided state.
func (s Status) IsTerminal() bool {
	return s == StatusApproved || s == StatusDenied
}

type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityNormal Priority = "normal"
	PriorityLow    Priority = "low"
)

// NormalizePriority maps intake values onto the three known priorities.
// Referral sources send "medium" and "urgent"; unknown values become normal.
func NormalizePriority(p string) Priority {
	switch strings.ToLower(strings.TrimSpace(p)) {
	case "high", "urgent":
		return PriorityHigh
	case "low":
		return PriorityLow
	default:
		return PriorityNormal
	}
}

// Application is one admissions case.
type Application struct {
	ID              string                 `json:"id"`
	Status          Status                 `json:"status"`
	Priority        Priority               `json:"priority"`
	Source          string                 `json:"source,omitempty"`
	SourceEmail     string                 `json:"sourceEmail,omitempty"`
	ExtractedFields map[string]interface{} `json:"extractedFields"`
	ConfidenceScore float64                `json:"confidenceScore"`
	DecisionNotes   string                 `json:"decisionNotes,omitempty"`
	CreatedAt       time.Time              `json:"createdAt"`
	DecidedAt       *time.Time             `json:"decidedAt,omitempty"`
	UpdatedAt       time.Time              `json:"updatedAt"`
}

// Clone returns a copy that shares no pointer, map or slice with a.
func (a Application) Clone() Application {
	out := a
	if a.DecidedAt != nil {
		d := *a.DecidedAt
		out.DecidedAt = &d
	}
	if a.ExtractedFields != nil {
		out.ExtractedFields = CopyValue(a.ExtractedFields).(map[string]interface{})
	}
	return out
}

// CopyValue deep-copies the JSON-shaped values found in extracted fields.
// Other values are returned as is.
func CopyValue(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, child := range val {
			out[k] = CopyValue(child)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, child := range val {
			out[i] = CopyValue(child)
		}
		return out
	case []string:
		return append([]string(nil), val...)
	}
	return v
}

// ApplicationFilter narrows List calls. Zero value lists everything.
// Results are ordered by ID; AfterID resumes after a previous page.
type ApplicationFilter struct {
	Status  Status
	Limit   int
	AfterID string
}

// StatusPatch is the write applied by a conditional status update.
// DecidedAt is written as given, including nil.
type StatusPatch struct {
	Status        Status
	DecidedAt     *time.Time
	DecisionNotes string
	UpdatedAt     time.Time
}

// ApplicationStats counts applications per status. ThisWeek counts those
// created in the trailing seven days.
type ApplicationStats struct {
	Pending  int `json:"pending"`
	Review   int `json:"review"`
	Approved int `json:"approved"`
	Denied   int `json:"denied"`
	Total    int `json:"total"`
	ThisWeek int `json:"thisWeek"`
}

// Add counts n applications of status s.
func (st *ApplicationStats) Add(s Status, n int) {
	switch s {
	case StatusPending:
		st.Pending += n
	case StatusReview:
		st.Review += n
	case StatusApproved:
		st.Approved += n
	case StatusDenied:
		st.Denied += n
	}
	st.Total += n
}

// ApplicationView is an application annotated with its retention countdown.
type ApplicationView struct {
	Application
	DaysRemaining int  `json:"daysRemaining"`
	Purgeable     bool `json:"purgeable"`
}
