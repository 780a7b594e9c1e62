package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"drayage-billing-backend/internal/model"
	"drayage-billing-backend/internal/store"
)

// stubStore fakes the milestone append; everything else panics via the
// embedded nil interface.
type stubStore struct {
	store.Store
	inserted bool
	appended []model.Milestone
}

func (s *stubStore) InsertMilestone(_ context.Context, m *model.Milestone) (bool, error) {
	s.appended = append(s.appended, *m)
	return s.inserted, nil
}

func TestAppend_UnknownTypeRejected(t *testing.T) {
	l := New(&stubStore{})
	_, err := l.Append(context.Background(), &model.Milestone{
		ContainerID: 7,
		Type:        "teleported",
		OccurredAt:  time.Now(),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown milestone type")
}

func TestAppend_MissingOccurredAtRejected(t *testing.T) {
	l := New(&stubStore{})
	_, err := l.Append(context.Background(), &model.Milestone{
		ContainerID: 7,
		Type:        model.MilestonePickedUp,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no occurred_at")
}

func TestAppend_NormalizesAndDefaults(t *testing.T) {
	s := &stubStore{inserted: true}
	l := New(s)

	est := time.FixedZone("EST", -5*3600)
	occurred := time.Date(2026, 3, 1, 9, 0, 0, 0, est)

	outcome, err := l.Append(context.Background(), &model.Milestone{
		ContainerID: 7,
		Type:        model.MilestonePickedUp,
		OccurredAt:  occurred,
		Source:      model.SourceWebhook,
	})
	require.NoError(t, err)
	assert.Equal(t, Inserted, outcome)

	require.Len(t, s.appended, 1)
	got := s.appended[0]
	assert.Equal(t, time.UTC, got.OccurredAt.Location())
	assert.True(t, got.OccurredAt.Equal(occurred))
	assert.False(t, got.ReceivedAt.IsZero())
}

func TestAppend_DuplicateReported(t *testing.T) {
	l := New(&stubStore{inserted: false})
	outcome, err := l.Append(context.Background(), &model.Milestone{
		ContainerID: 7,
		Type:        model.MilestonePickedUp,
		OccurredAt:  time.Now(),
	})
	require.NoError(t, err)
	assert.Equal(t, DuplicateIgnored, outcome)
}
