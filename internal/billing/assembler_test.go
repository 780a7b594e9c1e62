package billing

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"drayage-billing-backend/config"
	"drayage-billing-backend/internal/model"
	"drayage-billing-backend/internal/money"
	"drayage-billing-backend/internal/rates"
	"drayage-billing-backend/internal/store"
)

// stubStore serves one container with a covering contract and lets the test
// inject snapshot-creation failures.
type stubStore struct {
	store.Store
	container   *model.Container
	contract    *model.RateContract
	lastNumber  string
	createHooks []func(*model.BillingSnapshot) error
	created     []*model.BillingSnapshot
}

func (s *stubStore) ContainerByID(_ context.Context, id int64) (*model.Container, error) {
	if s.container != nil && s.container.ID == id {
		return s.container, nil
	}
	return nil, nil
}

func (s *stubStore) ContractCovering(_ context.Context, _ int64, at time.Time) (*model.RateContract, error) {
	if s.contract != nil && s.contract.Covers(at) {
		return s.contract, nil
	}
	return nil, nil
}

func (s *stubStore) ChargeLines(_ context.Context, _ int64) ([]model.ChargeLine, error) {
	return nil, nil
}

func (s *stubStore) LastSnapshotNumber(_ context.Context, _ string) (string, error) {
	return s.lastNumber, nil
}

func (s *stubStore) CreateSnapshot(_ context.Context, snap *model.BillingSnapshot, _ []model.SnapshotLine, _ []int64) error {
	if len(s.createHooks) > 0 {
		hook := s.createHooks[0]
		s.createHooks = s.createHooks[1:]
		if err := hook(snap); err != nil {
			return err
		}
	}
	snap.ID = int64(len(s.created) + 1)
	s.created = append(s.created, snap)
	s.lastNumber = snap.Number
	return nil
}

func TestAssemble_RetriesOnNumberCollision(t *testing.T) {
	at := time.Date(2026, 3, 8, 0, 0, 0, 0, time.UTC)
	s := &stubStore{
		container: &model.Container{ID: 7, ContainerNumber: "MSCU7654321", CustomerID: 3},
		contract: &model.RateContract{
			ID: 12, CustomerID: 3, PerDiemRate: "100.00", DemurrageRate: "150.00",
			DetentionRate: "125.00", Currency: "USD", RoundingPolicy: model.RoundWholeDay,
			EffectiveFrom: at.AddDate(0, -1, 0),
		},
	}
	// A rival assembly commits INV-202603-00001 between our read and our
	// insert; the first create collides.
	s.createHooks = []func(*model.BillingSnapshot) error{
		func(*model.BillingSnapshot) error {
			s.lastNumber = "INV-202603-00001"
			return fmt.Errorf("snapshot INV-202603-00001: %w", store.ErrDuplicateSnapshotNumber)
		},
	}

	a := NewAssembler(s, rates.NewResolver(s, time.Minute), &config.BillingConfig{Currency: "USD", PaymentTerms: "Net 30"})

	snap, err := a.Assemble(context.Background(), 7, at, false)
	require.NoError(t, err)
	assert.Equal(t, "INV-202603-00002", snap.Number)
	require.Len(t, s.created, 1)
}

func TestAssemble_GivesUpAfterRepeatedCollisions(t *testing.T) {
	at := time.Date(2026, 3, 8, 0, 0, 0, 0, time.UTC)
	collision := func(*model.BillingSnapshot) error {
		return fmt.Errorf("snapshot: %w", store.ErrDuplicateSnapshotNumber)
	}
	s := &stubStore{
		container: &model.Container{ID: 7, ContainerNumber: "MSCU7654321", CustomerID: 3},
		contract: &model.RateContract{
			ID: 12, CustomerID: 3, PerDiemRate: "100.00", DemurrageRate: "150.00",
			DetentionRate: "125.00", Currency: "USD", RoundingPolicy: model.RoundWholeDay,
			EffectiveFrom: at.AddDate(0, -1, 0),
		},
		createHooks: []func(*model.BillingSnapshot) error{collision, collision, collision},
	}

	a := NewAssembler(s, rates.NewResolver(s, time.Minute), &config.BillingConfig{Currency: "USD"})

	_, err := a.Assemble(context.Background(), 7, at, false)
	require.Error(t, err)
	assert.ErrorIs(t, err, store.ErrDuplicateSnapshotNumber)
	assert.Empty(t, s.created)
}

func TestDueDate(t *testing.T) {
	invoiceDate := time.Date(2026, 3, 8, 0, 0, 0, 0, time.UTC)

	testCases := []struct {
		name     string
		terms    string
		expected time.Time
	}{
		{"Net 30", "Net 30", invoiceDate.AddDate(0, 0, 30)},
		{"Net 15", "Net 15", invoiceDate.AddDate(0, 0, 15)},
		{"Due on Receipt", "Due on Receipt", invoiceDate},
		{"Unparseable defaults to 30 days", "whenever", invoiceDate.AddDate(0, 0, 30)},
		{"Empty defaults to 30 days", "", invoiceDate.AddDate(0, 0, 30)},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, dueDate(tc.terms, invoiceDate))
		})
	}
}

func TestRequiresReview(t *testing.T) {
	a := &Assembler{cfg: &config.BillingConfig{ReviewThreshold: "1000.00"}}

	assert.False(t, a.requiresReview(money.MustParse("999.99")))
	assert.False(t, a.requiresReview(money.MustParse("1000.00")))
	assert.True(t, a.requiresReview(money.MustParse("1000.01")))

	noThreshold := &Assembler{cfg: &config.BillingConfig{}}
	assert.False(t, noThreshold.requiresReview(money.MustParse("999999.00")))
}

func TestLineDescription(t *testing.T) {
	container := &model.Container{
		ContainerNumber:  "MSCU7654321",
		PickupLocation:   "Port of Oakland",
		DeliveryLocation: "Stockton, CA",
	}
	periodStart := time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC)

	testCases := []struct {
		category model.ChargeCategory
		expected string
	}{
		{model.ChargeBaseFreight, "Base freight - Port of Oakland to Stockton, CA"},
		{model.ChargeDemurrage, "Demurrage - 2026-03-05"},
		{model.ChargeDetention, "Detention - 2026-03-05"},
		{model.ChargePerDiem, "Per diem - 2026-03-05"},
	}

	for _, tc := range testCases {
		t.Run(string(tc.category), func(t *testing.T) {
			line := model.ChargeLine{Category: tc.category, PeriodStart: periodStart}
			assert.Equal(t, tc.expected, lineDescription(container, line))
		})
	}
}
