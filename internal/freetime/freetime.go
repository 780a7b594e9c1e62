package freetime

import (
	"sort"
	"time"

	"drayage-billing-backend/internal/model"
)

// Window is a derived free-time window for one charge category. It is never
// persisted as authoritative state; it is recomputed from the milestone
// ledger and the rate contract on every change.
type Window struct {
	ContainerID int64
	Category    model.ChargeCategory
	// Start is the instant of the triggering milestone.
	Start time.Time
	// Deadline is the last free instant: Start + free days, adjusted by the
	// contract's rounding policy.
	Deadline time.Time
	// End is the instant of the resolving milestone, nil while the window is
	// unresolved.
	End *time.Time
}

// Open reports whether the window is still unresolved.
func (w Window) Open() bool {
	return w.End == nil
}

// Options holds contract-independent policy knobs for window derivation.
type Options struct {
	// PerDiemUntilReturn closes the per-diem window at EmptyReturned instead
	// of PickedUp.
	PerDiemUntilReturn bool
}

// ComputeWindows derives the free-time windows for a container from its
// milestone history and rate contract. A category with no start milestone
// yields no window; that is not an error, there is simply nothing to bill
// yet.
func ComputeWindows(containerID int64, history []model.Milestone, contract *model.RateContract, opts Options) []Window {
	selected := selectMilestones(history)

	perDiemClose := model.MilestonePickedUp
	if opts.PerDiemUntilReturn {
		perDiemClose = model.MilestoneEmptyReturned
	}

	specs := []struct {
		category model.ChargeCategory
		open     model.MilestoneType
		close    model.MilestoneType
	}{
		{model.ChargePerDiem, model.MilestoneDischarged, perDiemClose},
		{model.ChargeDemurrage, model.MilestoneAvailableForPickup, model.MilestonePickedUp},
		{model.ChargeDetention, model.MilestonePickedUp, model.MilestoneEmptyReturned},
	}

	var windows []Window
	for _, spec := range specs {
		start, ok := selected[spec.open]
		if !ok {
			continue
		}

		w := Window{
			ContainerID: containerID,
			Category:    spec.category,
			Start:       start,
			Deadline:    Deadline(start, contract.FreeDays(spec.category), contract.RoundingPolicy),
		}
		if end, ok := selected[spec.close]; ok {
			e := end
			w.End = &e
		}
		windows = append(windows, w)
	}
	return windows
}

// Deadline computes the last free instant for a window start.
func Deadline(start time.Time, freeDays int, policy model.RoundingPolicy) time.Time {
	free := time.Duration(freeDays) * 24 * time.Hour
	switch policy {
	case model.RoundWholeDay:
		return ceilTo(start, 24*time.Hour).Add(free)
	case model.RoundHalfDay:
		return ceilTo(start, 12*time.Hour).Add(free)
	default: // hourly: exact hours, no rounding of the start
		return start.Add(free)
	}
}

// selectMilestones picks one instant per milestone type. When corrections
// produce several rows of the same type, the latest-received row wins; the
// scan is ordered by occurred_at so equal receipt times resolve to the later
// event.
func selectMilestones(history []model.Milestone) map[model.MilestoneType]time.Time {
	ordered := make([]model.Milestone, len(history))
	copy(ordered, history)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].OccurredAt.Before(ordered[j].OccurredAt)
	})

	winner := make(map[model.MilestoneType]model.Milestone)
	for _, m := range ordered {
		prev, ok := winner[m.Type]
		if !ok || !m.ReceivedAt.Before(prev.ReceivedAt) {
			winner[m.Type] = m
		}
	}

	selected := make(map[model.MilestoneType]time.Time, len(winner))
	for t, m := range winner {
		selected[t] = m.OccurredAt.UTC()
	}
	return selected
}

// ceilTo rounds t up to the next multiple of unit (UTC), leaving exact
// boundaries untouched.
func ceilTo(t time.Time, unit time.Duration) time.Time {
	t = t.UTC()
	truncated := t.Truncate(unit)
	if truncated.Equal(t) {
		return t
	}
	return truncated.Add(unit)
}
