package store

import (
	"context"
	"database/sql/driver"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"drayage-billing-backend/internal/accrual"
	"drayage-billing-backend/internal/alerts"
	"drayage-billing-backend/internal/model"
)

// A helper function to create a mock database connection.
func newTestDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn: db,
	}), &gorm.Config{})
	require.NoError(t, err)

	return gormDB, mock
}

func TestGormStore_InsertMilestone(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	testCases := []struct {
		name             string
		mockExpectations func(mock sqlmock.Sqlmock)
		expectedInserted bool
	}{
		{
			name: "New milestone is appended",
			mockExpectations: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "milestones"`)).
					WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
				mock.ExpectCommit()
			},
			expectedInserted: true,
		},
		{
			name: "Duplicate identity is ignored",
			mockExpectations: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				// ON CONFLICT DO NOTHING: the insert returns no row.
				mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "milestones"`)).
					WillReturnRows(sqlmock.NewRows([]string{"id"}))
				mock.ExpectCommit()
			},
			expectedInserted: false,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			gormDB, mock := newTestDB(t)
			tc.mockExpectations(mock)

			s := NewGormStore(gormDB)
			inserted, err := s.InsertMilestone(context.Background(), &model.Milestone{
				ContainerID: 7,
				Type:        model.MilestonePickedUp,
				OccurredAt:  now,
				Source:      model.SourceWebhook,
				ReceivedAt:  now,
			})

			require.NoError(t, err)
			assert.Equal(t, tc.expectedInserted, inserted)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestGormStore_ContainerByNumber_NotFound(t *testing.T) {
	gormDB, mock := newTestDB(t)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "containers"`)).
		WithArgs("MSCU7654321", 1).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	s := NewGormStore(gormDB)
	c, err := s.ContainerByNumber(context.Background(), "MSCU7654321")

	require.NoError(t, err)
	assert.Nil(t, c)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormStore_ContractCovering(t *testing.T) {
	at := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

	t.Run("Covering contract is returned", func(t *testing.T) {
		gormDB, mock := newTestDB(t)
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "rate_contracts" WHERE customer_id = $1 AND effective_from <= $2 AND (effective_to IS NULL OR effective_to > $3)`)).
			WithArgs(int64(3), at, at, 1).
			WillReturnRows(sqlmock.NewRows([]string{"id", "customer_id", "per_diem_rate"}).
				AddRow(12, 3, "100.00"))

		s := NewGormStore(gormDB)
		rc, err := s.ContractCovering(context.Background(), 3, at)

		require.NoError(t, err)
		require.NotNil(t, rc)
		assert.Equal(t, int64(12), rc.ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("No covering contract yields nil", func(t *testing.T) {
		gormDB, mock := newTestDB(t)
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "rate_contracts"`)).
			WillReturnRows(sqlmock.NewRows([]string{"id"}))

		s := NewGormStore(gormDB)
		rc, err := s.ContractCovering(context.Background(), 3, at)

		require.NoError(t, err)
		assert.Nil(t, rc)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGormStore_ReplaceContract(t *testing.T) {
	gormDB, mock := newTestDB(t)
	effectiveFrom := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "rate_contracts" SET`)).
		WithArgs(effectiveFrom, int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "rate_contracts"`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(13))
	mock.ExpectCommit()

	s := NewGormStore(gormDB)
	err := s.ReplaceContract(context.Background(), &model.RateContract{
		CustomerID:    3,
		PerDiemRate:   "100.00",
		Currency:      "USD",
		EffectiveFrom: effectiveFrom,
	})

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormStore_ApplyChargePlan(t *testing.T) {
	now := time.Date(2026, 3, 8, 0, 0, 0, 0, time.UTC)

	t.Run("Empty plan touches nothing", func(t *testing.T) {
		gormDB, mock := newTestDB(t)
		s := NewGormStore(gormDB)
		require.NoError(t, s.ApplyChargePlan(context.Background(), accrual.Plan{}, now))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Creates and guarded voids run in one transaction", func(t *testing.T) {
		gormDB, mock := newTestDB(t)
		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "charge_lines"`)).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(5))
		mock.ExpectExec(regexp.QuoteMeta(`UPDATE "charge_lines" SET`)).
			WithArgs(model.ChargeVoided, now, Any{}, int64(4), model.ChargeAccrued).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		s := NewGormStore(gormDB)
		plan := accrual.Plan{
			Create: []model.ChargeLine{{
				ContainerID: 7,
				Category:    model.ChargePerDiem,
				PeriodStart: now,
				PeriodEnd:   now.Add(24 * time.Hour),
				RateUsed:    "100.00",
				Amount:      "100.00",
				Currency:    "USD",
				ContractID:  12,
				Status:      model.ChargeAccrued,
			}},
			Void: []model.ChargeLine{{ID: 4, Status: model.ChargeAccrued}},
		}
		require.NoError(t, s.ApplyChargePlan(context.Background(), plan, now))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGormStore_ApplyAlertPlan_SupersedesBeforeCreate(t *testing.T) {
	now := time.Date(2026, 3, 8, 0, 0, 0, 0, time.UTC)
	gormDB, mock := newTestDB(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "alerts" SET`)).
		WithArgs(true, Any{}, int64(9), false).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "alerts"`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(10))
	mock.ExpectCommit()

	s := NewGormStore(gormDB)
	plan := alerts.Plan{
		Supersede: []model.Alert{{ID: 9}},
		Create: []model.Alert{{
			ContainerID: 7,
			Category:    model.ChargePerDiem,
			Kind:        "standard",
			Deadline:    now.Add(48 * time.Hour),
			ScheduledAt: now.Add(24 * time.Hour),
		}},
	}
	require.NoError(t, s.ApplyAlertPlan(context.Background(), plan, now))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormStore_FireDueAlerts(t *testing.T) {
	asOf := time.Date(2026, 3, 8, 0, 0, 0, 0, time.UTC)

	testCases := []struct {
		name             string
		mockExpectations func(mock sqlmock.Sqlmock)
		expectedFiredIDs []int64
	}{
		{
			name: "Due alert transitions to fired",
			mockExpectations: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "alerts"`)).
					WillReturnRows(sqlmock.NewRows([]string{"id", "container_id", "category", "kind"}).
						AddRow(9, 7, "per_diem", "standard"))
				mock.ExpectBegin()
				mock.ExpectExec(regexp.QuoteMeta(`UPDATE "alerts" SET`)).
					WithArgs(asOf, Any{}, int64(9), false).
					WillReturnResult(sqlmock.NewResult(0, 1))
				mock.ExpectCommit()
			},
			expectedFiredIDs: []int64{9},
		},
		{
			name: "Alert fired by a concurrent tick is not reported again",
			mockExpectations: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "alerts"`)).
					WillReturnRows(sqlmock.NewRows([]string{"id", "container_id", "category", "kind"}).
						AddRow(9, 7, "per_diem", "standard"))
				mock.ExpectBegin()
				mock.ExpectExec(regexp.QuoteMeta(`UPDATE "alerts" SET`)).
					WithArgs(asOf, Any{}, int64(9), false).
					WillReturnResult(sqlmock.NewResult(0, 0))
				mock.ExpectCommit()
			},
			expectedFiredIDs: nil,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			gormDB, mock := newTestDB(t)
			tc.mockExpectations(mock)

			s := NewGormStore(gormDB)
			fired, err := s.FireDueAlerts(context.Background(), asOf)
			require.NoError(t, err)

			var ids []int64
			for _, a := range fired {
				ids = append(ids, a.ID)
				require.NotNil(t, a.FiredAt)
			}
			assert.Equal(t, tc.expectedFiredIDs, ids)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestGormStore_AcknowledgeAlert_UnknownID(t *testing.T) {
	at := time.Date(2026, 3, 8, 0, 0, 0, 0, time.UTC)
	gormDB, mock := newTestDB(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "alerts" SET`)).
		WithArgs(at, Any{}, int64(42)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	s := NewGormStore(gormDB)
	err := s.AcknowledgeAlert(context.Background(), 42, at)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormStore_LastSnapshotNumber_Empty(t *testing.T) {
	gormDB, mock := newTestDB(t)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "billing_snapshots"`)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "number"}))

	s := NewGormStore(gormDB)
	number, err := s.LastSnapshotNumber(context.Background(), "INV-202603-")
	require.NoError(t, err)
	assert.Equal(t, "", number)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// Any matches any driver value in an expectation.
type Any struct{}

// Match satisfies the sqlmock.Argument interface
func (a Any) Match(v driver.Value) bool {
	return true
}
