// Package presentation formats engine results for dashboard display. It
// holds no state and makes no decisions.
package presentation

import (
	"fmt"
	"slices"

	"admissions-lifecycle/internal/models"
)

type Band string

const (
	BandExpired  Band = "expired"
	BandCritical Band = "critical"
	BandWarning  Band = "warning"
	BandOK       Band = "ok"
)

// RetentionBand buckets a countdown: expired at or below zero, critical for
// the last two days, warning within a week.
func RetentionBand(daysRemaining int) Band {
	switch {
	case daysRemaining <= 0:
		return BandExpired
	case daysRemaining <= 2:
		return BandCritical
	case daysRemaining <= 7:
		return BandWarning
	default:
		return BandOK
	}
}

// BandColor is the badge color for b.
func BandColor(b Band) string {
	switch b {
	case BandExpired:
		return "#dc2626"
	case BandCritical:
		return "#ea580c"
	case BandWarning:
		return "#ca8a04"
	default:
		return "#16a34a"
	}
}

// CountdownLabel renders days remaining. Negative values are shown rather
// than clamped.
func CountdownLabel(daysRemaining int) string {
	switch {
	case daysRemaining < -1:
		return fmt.Sprintf("Expired %d days ago", -daysRemaining)
	case daysRemaining == -1:
		return "Expired 1 day ago"
	case daysRemaining == 0:
		return "Expires today"
	case daysRemaining == 1:
		return "1 day left"
	default:
		return fmt.Sprintf("%d days left", daysRemaining)
	}
}

func StatusLabel(s models.Status) string {
	switch s {
	case models.StatusPending:
		return "Pending"
	case models.StatusApproved:
		return "Approved"
	case models.StatusDenied:
		return "Denied"
	case models.StatusReview:
		return "Needs Review"
	default:
		return string(s)
	}
}

func PriorityLabel(p models.Priority) string {
	switch p {
	case models.PriorityHigh:
		return "High"
	case models.PriorityNormal:
		return "Normal"
	case models.PriorityLow:
		return "Low"
	default:
		return string(p)
	}
}

func priorityRank(p models.Priority) int {
	switch p {
	case models.PriorityHigh:
		return 0
	case models.PriorityNormal:
		return 1
	case models.PriorityLow:
		return 2
	default:
		return 3
	}
}

// SortByPriority orders views high → normal → low, then by fewest days
// remaining, then oldest first. The sort is stable.
func SortByPriority(views []models.ApplicationView) {
	slices.SortStableFunc(views, func(a, b models.ApplicationView) int {
		if d := priorityRank(a.Priority) - priorityRank(b.Priority); d != 0 {
			return d
		}
		if d := a.DaysRemaining - b.DaysRemaining; d != 0 {
			return d
		}
		return a.CreatedAt.Compare(b.CreatedAt)
	})
}

// Row is one line of the applications table.
type Row struct {
	ID        string `json:"id"`
	Patient   string `json:"patient"`
	Status    string `json:"status"`
	Priority  string `json:"priority"`
	Countdown string `json:"countdown"`
	Band      Band   `json:"band"`
	Color     string `json:"color"`
}

// Rows formats views in priority order.
func Rows(views []models.ApplicationView) []Row {
	sorted := slices.Clone(views)
	SortByPriority(sorted)

	rows := make([]Row, 0, len(sorted))
	for _, v := range sorted {
		band := RetentionBand(v.DaysRemaining)
		patient, _ := v.ExtractedFields["patient_name"].(string)
		rows = append(rows, Row{
			ID:        v.ID,
			Patient:   patient,
			Status:    StatusLabel(v.Status),
			Priority:  PriorityLabel(v.Priority),
			Countdown: CountdownLabel(v.DaysRemaining),
			Band:      band,
			Color:     BandColor(band),
		})
	}
	return rows
}
