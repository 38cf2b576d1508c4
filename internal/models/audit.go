package models

import "time"

// Audit actions as shown in the audit log.
const (
	ActionApplicationSubmitted = "Application Submitted"
	ActionApplicationReview    = "Application Routed To Review"
	ActionApplicationPending   = "Application Returned To Pending"
	ActionApplicationEdited    = "Application Fields Updated"
	ActionApplicationApproved  = "Application Approved"
	ActionApplicationDenied    = "Application Denied"
	ActionCRMSyncSuccess       = "CRM Sync Success"
	ActionCRMSyncFailed        = "CRM Sync Failed"
	ActionAutoDeleted          = "auto-deleted"
	ActionFieldMappingUpdated  = "Field Mapping Updated"
)

// AuditEntry is an immutable record of who did what to which entity.
type AuditEntry struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	ActorID   string    `json:"actorId"`
	Action    string    `json:"action"`
	TargetID  string    `json:"targetId"`
	Detail    string    `json:"detail"`
}

type AuditFilter struct {
	TargetID string
	Action   string
	Limit    int
}

// DecisionAction returns the audit action for entering status s.
func DecisionAction(s Status) string {
	switch s {
	case StatusApproved:
		return ActionApplicationApproved
	case StatusDenied:
		return ActionApplicationDenied
	case StatusReview:
		return ActionApplicationReview
	case StatusPending:
		return ActionApplicationPending
	default:
		return "Application Status Changed"
	}
}
