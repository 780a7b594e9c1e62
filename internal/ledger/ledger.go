// Package ledger is the append-only milestone record. Entries are never
// reordered or deleted; a correction arrives as a new entry with an earlier
// occurred_at and downstream state is recomputed, not patched.
package ledger

import (
	"context"
	"fmt"
	"time"

	"drayage-billing-backend/internal/model"
	"drayage-billing-backend/internal/store"
)

// AppendOutcome is the result of an append attempt.
type AppendOutcome string

const (
	Inserted AppendOutcome = "inserted"
	// DuplicateIgnored means the milestone identity already exists. Not an
	// error: carrier webhooks deliver at least once.
	DuplicateIgnored AppendOutcome = "duplicate_ignored"
)

var knownTypes = map[model.MilestoneType]bool{
	model.MilestoneVesselArrived:      true,
	model.MilestoneDischarged:         true,
	model.MilestoneAvailableForPickup: true,
	model.MilestonePickedUp:           true,
	model.MilestoneDelivered:          true,
	model.MilestoneEmptyReturned:      true,
}

// Ledger validates and appends milestones through the store.
type Ledger struct {
	store store.Store
}

func New(s store.Store) *Ledger {
	return &Ledger{store: s}
}

// Append records a milestone, deduplicating on (container, type,
// occurred_at). Callers must re-run the recompute path for the container
// after a successful insert.
func (l *Ledger) Append(ctx context.Context, m *model.Milestone) (AppendOutcome, error) {
	if !knownTypes[m.Type] {
		return "", fmt.Errorf("unknown milestone type %q", m.Type)
	}
	if m.OccurredAt.IsZero() {
		return "", fmt.Errorf("milestone for container %d has no occurred_at", m.ContainerID)
	}
	if m.ReceivedAt.IsZero() {
		m.ReceivedAt = time.Now().UTC()
	}
	m.OccurredAt = m.OccurredAt.UTC()

	inserted, err := l.store.InsertMilestone(ctx, m)
	if err != nil {
		return "", err
	}
	if !inserted {
		return DuplicateIgnored, nil
	}
	return Inserted, nil
}

// History returns the container's milestones ordered by occurred_at.
func (l *Ledger) History(ctx context.Context, containerID int64) ([]model.Milestone, error) {
	return l.store.MilestoneHistory(ctx, containerID)
}
