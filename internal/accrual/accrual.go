// Package accrual turns free-time windows into day-by-day charge lines.
//
// The planner is pure: it compares the windows derived from the current
// milestone ledger against the charge lines already persisted and emits the
// delta. Applying the same plan twice, or re-planning with unchanged inputs,
// converges to the same ledger state.
package accrual

import (
	"fmt"
	"sort"
	"time"

	"drayage-billing-backend/internal/freetime"
	"drayage-billing-backend/internal/model"
	"drayage-billing-backend/internal/money"
)

// Unit is the accrual granularity: one calendar day.
const Unit = 24 * time.Hour

// OverlapPolicy controls simultaneous demurrage and detention accrual.
type OverlapPolicy string

const (
	// OverlapAdditive accrues both categories independently.
	OverlapAdditive OverlapPolicy = "additive"
	// OverlapExclusive suppresses detention periods that coincide with a
	// demurrage period.
	OverlapExclusive OverlapPolicy = "exclusive"
)

// Options holds policy knobs for charge planning.
type Options struct {
	Currency      string
	OverlapPolicy OverlapPolicy
}

// Plan is the delta between the desired charge state and the persisted one.
type Plan struct {
	Create []model.ChargeLine
	// Void lists persisted accrued lines invalidated by a correction.
	Void []model.ChargeLine
	// Conflicts lists invoiced lines a correction would void. They are not
	// voided automatically; money may already be recognized, so the decision
	// is surfaced to the caller.
	Conflicts []model.ChargeLine
}

// Empty reports whether applying the plan would change nothing.
func (p Plan) Empty() bool {
	return len(p.Create) == 0 && len(p.Void) == 0
}

// InconsistentCorrectionError reports charge lines already invoiced that a
// milestone correction has invalidated.
type InconsistentCorrectionError struct {
	ContainerID int64
	Lines       []model.ChargeLine
}

func (e *InconsistentCorrectionError) Error() string {
	return fmt.Sprintf(
		"correction for container %d invalidates %d invoiced charge line(s); manual reversal required",
		e.ContainerID, len(e.Lines),
	)
}

// PlanCharges computes the charge-line delta for a container as of the given
// instant. For every whole accrual unit between each window's deadline and
// min(end, asOf) exactly one non-voided line must exist; lines outside that
// range are voided.
func PlanCharges(windows []freetime.Window, contract *model.RateContract, existing []model.ChargeLine, asOf time.Time, opts Options) (Plan, error) {
	asOf = asOf.UTC()

	desired := make(map[model.ChargeCategory]map[time.Time]bool)
	for _, w := range windows {
		desired[w.Category] = desiredPeriods(w, asOf)
	}

	if opts.OverlapPolicy == OverlapExclusive {
		for start := range desired[model.ChargeDemurrage] {
			delete(desired[model.ChargeDetention], start)
		}
	}

	var plan Plan

	// Index persisted non-voided lines and drop any that no longer belong to
	// a desired period.
	kept := make(map[model.ChargeCategory]map[time.Time]bool)
	for _, line := range existing {
		if line.Status == model.ChargeVoided || line.Category == model.ChargeBaseFreight {
			continue
		}
		if desired[line.Category][line.PeriodStart.UTC()] {
			if kept[line.Category] == nil {
				kept[line.Category] = make(map[time.Time]bool)
			}
			kept[line.Category][line.PeriodStart.UTC()] = true
			continue
		}
		if line.Status == model.ChargeInvoiced {
			plan.Conflicts = append(plan.Conflicts, line)
			continue
		}
		plan.Void = append(plan.Void, line)
	}

	for _, w := range windows {
		rateStr := contract.Rate(w.Category)
		rate, err := money.Parse(rateStr)
		if err != nil {
			return Plan{}, fmt.Errorf("contract %d: %w", contract.ID, err)
		}
		amount := rate.MulInt64(1).String()

		starts := sortedStarts(desired[w.Category])
		for _, start := range starts {
			if kept[w.Category][start] {
				continue
			}
			plan.Create = append(plan.Create, model.ChargeLine{
				ContainerID: w.ContainerID,
				Category:    w.Category,
				PeriodStart: start,
				PeriodEnd:   start.Add(Unit),
				RateUsed:    rateStr,
				Amount:      amount,
				Currency:    opts.Currency,
				ContractID:  contract.ID,
				Status:      model.ChargeAccrued,
			})
		}
	}

	return plan, nil
}

// desiredPeriods returns the set of accrual period starts a window should
// have as of the given instant: whole units only, between the deadline and
// min(end, asOf).
func desiredPeriods(w freetime.Window, asOf time.Time) map[time.Time]bool {
	limit := asOf
	if w.End != nil && w.End.Before(limit) {
		limit = w.End.UTC()
	}

	periods := make(map[time.Time]bool)
	for start := w.Deadline.UTC(); !start.Add(Unit).After(limit); start = start.Add(Unit) {
		periods[start] = true
	}
	return periods
}

func sortedStarts(set map[time.Time]bool) []time.Time {
	starts := make([]time.Time, 0, len(set))
	for s := range set {
		starts = append(starts, s)
	}
	sort.Slice(starts, func(i, j int) bool { return starts[i].Before(starts[j]) })
	return starts
}
