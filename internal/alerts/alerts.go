// Package alerts derives pre-deadline warnings from open free-time windows.
//
// Planning is pure: the scheduler compares desired alerts against persisted
// ones and emits a supersede/create delta. Firing is a store-side state
// transition so each alert identity fires at most once.
package alerts

import (
	"sort"
	"time"

	"drayage-billing-backend/internal/freetime"
	"drayage-billing-backend/internal/model"
)

// LeadTime is a named offset before the deadline at which an alert is due.
type LeadTime struct {
	Kind   string
	Offset time.Duration
}

// LeadTimesFromHours builds a lead-time set from config, ordered longest
// offset first so "standard" precedes "urgent".
func LeadTimesFromHours(hours map[string]float64) []LeadTime {
	leads := make([]LeadTime, 0, len(hours))
	for kind, h := range hours {
		leads = append(leads, LeadTime{
			Kind:   kind,
			Offset: time.Duration(h * float64(time.Hour)),
		})
	}
	sort.Slice(leads, func(i, j int) bool {
		if leads[i].Offset != leads[j].Offset {
			return leads[i].Offset > leads[j].Offset
		}
		return leads[i].Kind < leads[j].Kind
	})
	return leads
}

// Plan is the delta between desired and persisted alerts.
type Plan struct {
	// Supersede lists persisted alerts, fired ones included, whose deadline
	// no longer matches any open window.
	Supersede []model.Alert
	Create    []model.Alert
}

// Empty reports whether applying the plan would change nothing.
func (p Plan) Empty() bool {
	return len(p.Supersede) == 0 && len(p.Create) == 0
}

// PlanAlerts computes the alert delta for a container. One alert is desired
// per (open window, lead time); an alert whose scheduled instant has already
// passed stays in the plan and is due immediately on the next tick. Alerts
// are superseded only when their deadline changed or their window resolved,
// never because the deadline passed: a pending alert that came due between
// ticks must still fire.
func PlanAlerts(windows []freetime.Window, existing []model.Alert, leads []LeadTime, now time.Time) Plan {
	now = now.UTC()

	type slot struct {
		category model.ChargeCategory
		kind     string
	}
	// Open windows retain their alerts past the deadline; new alerts are only
	// worth creating while the deadline is ahead.
	open := make(map[slot]freetime.Window)
	create := make(map[slot]freetime.Window)
	for _, w := range windows {
		if !w.Open() {
			continue
		}
		for _, lt := range leads {
			s := slot{w.Category, lt.Kind}
			open[s] = w
			if w.Deadline.After(now) {
				create[s] = w
			}
		}
	}
	offsets := make(map[string]time.Duration, len(leads))
	for _, lt := range leads {
		offsets[lt.Kind] = lt.Offset
	}

	var plan Plan

	// A persisted alert still matching an open window's deadline covers its
	// slot, fired or not; a covered fired alert must not be recreated or it
	// would fire again. Everything else is tied to a changed deadline or a
	// resolved window and is superseded; fired_at keeps the firing history.
	covered := make(map[slot]bool)
	for _, a := range existing {
		if a.Superseded {
			continue
		}
		s := slot{a.Category, a.Kind}
		w, ok := open[s]
		if ok && a.Deadline.Equal(w.Deadline) {
			covered[s] = true
			continue
		}
		plan.Supersede = append(plan.Supersede, a)
	}

	for _, lt := range leads {
		for _, w := range windows {
			s := slot{w.Category, lt.Kind}
			dw, ok := create[s]
			if !ok || !dw.Deadline.Equal(w.Deadline) || covered[s] {
				continue
			}
			plan.Create = append(plan.Create, model.Alert{
				ContainerID: w.ContainerID,
				Category:    w.Category,
				Kind:        lt.Kind,
				Deadline:    w.Deadline,
				ScheduledAt: w.Deadline.Add(-offsets[lt.Kind]),
			})
			covered[s] = true
		}
	}

	return plan
}
