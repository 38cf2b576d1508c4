// Package retention classifies applications by how long their data may be kept.
package retention

import (
	"iter"
	"time"

	"admissions-lifecycle/internal/models"
)

const (
	PendingRetentionDays = 30
	DecidedRetentionDays = 7
)

const day = 24 * time.Hour

// Policy holds the retention horizons in days. The zero value is not useful;
// use DefaultPolicy or NewPolicy.
type Policy struct {
	PendingDays int
	DecidedDays int
}

func DefaultPolicy() Policy {
	return Policy{PendingDays: PendingRetentionDays, DecidedDays: DecidedRetentionDays}
}

// NewPolicy falls back to the default horizon for any non-positive value.
func NewPolicy(pendingDays, decidedDays int) Policy {
	p := DefaultPolicy()
	if pendingDays > 0 {
		p.PendingDays = pendingDays
	}
	if decidedDays > 0 {
		p.DecidedDays = decidedDays
	}
	return p
}

// Expiry is the instant app's retention horizon ends. Decided applications
// anchor on DecidedAt, falling back to CreatedAt.
func (p Policy) Expiry(app models.Application) time.Time {
	if app.Status.IsTerminal() {
		anchor := app.CreatedAt
		if app.DecidedAt != nil {
			anchor = *app.DecidedAt
		}
		return anchor.Add(time.Duration(p.DecidedDays) * day)
	}
	return app.CreatedAt.Add(time.Duration(p.PendingDays) * day)
}

// DaysRemaining is ceil((expiry - now) / 24h). The result may be negative.
func (p Policy) DaysRemaining(app models.Application, now time.Time) int {
	return ceilDays(p.Expiry(app).Sub(now))
}

func ceilDays(d time.Duration) int {
	q := d / day
	// integer division truncates toward zero, which is already the ceiling for negatives
	if d%day > 0 {
		q++
	}
	return int(q)
}

func (p Policy) IsPurgeable(app models.Application, now time.Time) bool {
	return p.DaysRemaining(app, now) <= 0
}

// SweepPurgeable lazily yields the purgeable applications of apps. It never
// deletes anything.
func (p Policy) SweepPurgeable(apps iter.Seq[models.Application], now time.Time) iter.Seq[models.Application] {
	return func(yield func(models.Application) bool) {
		for app := range apps {
			if !p.IsPurgeable(app, now) {
				continue
			}
			if !yield(app) {
				return
			}
		}
	}
}

// Annotate decorates app with its countdown.
func (p Policy) Annotate(app models.Application, now time.Time) models.ApplicationView {
	days := p.DaysRemaining(app, now)
	return models.ApplicationView{
		Application:   app,
		DaysRemaining: days,
		Purgeable:     days <= 0,
	}
}
