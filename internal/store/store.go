package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"drayage-billing-backend/internal/accrual"
	"drayage-billing-backend/internal/alerts"
	"drayage-billing-backend/internal/model"
)

// ErrDuplicateSnapshotNumber means a concurrent assembly won the race for
// the allocated snapshot number. The caller reallocates and retries.
var ErrDuplicateSnapshotNumber = errors.New("snapshot number already allocated")

// Store defines the interface for all database operations. All mutation of
// billing state goes through here; nothing writes charge lines or alerts
// directly.
type Store interface {
	DB() *gorm.DB

	// InsertMilestone appends one ledger row. Returns false when the row is
	// a duplicate of an existing (container, type, occurred_at) identity.
	InsertMilestone(ctx context.Context, m *model.Milestone) (bool, error)
	// MilestoneHistory returns the full ledger for a container ordered by
	// occurred_at, then received_at.
	MilestoneHistory(ctx context.Context, containerID int64) ([]model.Milestone, error)

	ActiveContainers(ctx context.Context) ([]model.Container, error)
	ContainerByNumber(ctx context.Context, number string) (*model.Container, error)
	ContainerByID(ctx context.Context, id int64) (*model.Container, error)
	UpsertContainer(ctx context.Context, c *model.Container) error

	// ContractCovering returns the contract whose effective interval contains
	// the instant, or nil when no contract covers it.
	ContractCovering(ctx context.Context, customerID int64, at time.Time) (*model.RateContract, error)
	// ReplaceContract closes the customer's open contract version at the new
	// version's effective-from instant and appends the new version.
	ReplaceContract(ctx context.Context, rc *model.RateContract) error

	ChargeLines(ctx context.Context, containerID int64) ([]model.ChargeLine, error)
	ApplyChargePlan(ctx context.Context, plan accrual.Plan, now time.Time) error

	Alerts(ctx context.Context, containerID int64) ([]model.Alert, error)
	ApplyAlertPlan(ctx context.Context, plan alerts.Plan, now time.Time) error
	// FireDueAlerts transitions every due alert to fired and returns the
	// alerts that actually transitioned, each at most once across all
	// callers.
	FireDueAlerts(ctx context.Context, asOf time.Time) ([]model.Alert, error)
	AcknowledgeAlert(ctx context.Context, id int64, at time.Time) error

	// CreateSnapshot persists an immutable snapshot with its lines and marks
	// the referenced charge lines invoiced.
	CreateSnapshot(ctx context.Context, snap *model.BillingSnapshot, lines []model.SnapshotLine, markInvoiced []int64) error
	// LastSnapshotNumber returns the highest snapshot number with the given
	// prefix, or "" when none exists.
	LastSnapshotNumber(ctx context.Context, prefix string) (string, error)
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db *gorm.DB
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) DB() *gorm.DB {
	return s.db
}

func (s *gormStore) InsertMilestone(ctx context.Context, m *model.Milestone) (bool, error) {
	result := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "container_id"}, {Name: "type"}, {Name: "occurred_at"},
		},
		DoNothing: true,
	}).Create(m)
	if result.Error != nil {
		return false, fmt.Errorf("failed to append milestone for container %d: %w", m.ContainerID, result.Error)
	}
	return result.RowsAffected > 0, nil
}

func (s *gormStore) MilestoneHistory(ctx context.Context, containerID int64) ([]model.Milestone, error) {
	var history []model.Milestone
	err := s.db.WithContext(ctx).
		Where("container_id = ?", containerID).
		Order("occurred_at ASC, received_at ASC").
		Find(&history).Error
	if err != nil {
		return nil, fmt.Errorf("failed to fetch milestone history for container %d: %w", containerID, err)
	}
	return history, nil
}

func (s *gormStore) ActiveContainers(ctx context.Context) ([]model.Container, error) {
	var containers []model.Container
	err := s.db.WithContext(ctx).
		Where("tracking_active = ?", true).
		Find(&containers).Error
	if err != nil {
		return nil, fmt.Errorf("failed to fetch active containers: %w", err)
	}
	return containers, nil
}

func (s *gormStore) ContainerByNumber(ctx context.Context, number string) (*model.Container, error) {
	var c model.Container
	err := s.db.WithContext(ctx).First(&c, "container_number = ?", number).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch container %q: %w", number, err)
	}
	return &c, nil
}

func (s *gormStore) ContainerByID(ctx context.Context, id int64) (*model.Container, error) {
	var c model.Container
	err := s.db.WithContext(ctx).First(&c, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch container %d: %w", id, err)
	}
	return &c, nil
}

func (s *gormStore) UpsertContainer(ctx context.Context, c *model.Container) error {
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "container_number"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"customer_id", "load_number", "base_freight_rate",
			"pickup_location", "delivery_location", "tracking_active", "updated_at",
		}),
	}).Create(c).Error
	if err != nil {
		return fmt.Errorf("failed to upsert container %q: %w", c.ContainerNumber, err)
	}
	return nil
}

func (s *gormStore) ContractCovering(ctx context.Context, customerID int64, at time.Time) (*model.RateContract, error) {
	var rc model.RateContract
	err := s.db.WithContext(ctx).
		Where("customer_id = ? AND effective_from <= ? AND (effective_to IS NULL OR effective_to > ?)",
			customerID, at, at).
		Order("effective_from DESC").
		First(&rc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve contract for customer %d: %w", customerID, err)
	}
	return &rc, nil
}

func (s *gormStore) ReplaceContract(ctx context.Context, rc *model.RateContract) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Close the open version at the new version's start. Prior versions
		// stay untouched; the contract history is append-only.
		err := tx.Model(&model.RateContract{}).
			Where("customer_id = ? AND effective_to IS NULL", rc.CustomerID).
			Update("effective_to", rc.EffectiveFrom).Error
		if err != nil {
			return fmt.Errorf("failed to close open contract for customer %d: %w", rc.CustomerID, err)
		}
		if err := tx.Create(rc).Error; err != nil {
			return fmt.Errorf("failed to create contract for customer %d: %w", rc.CustomerID, err)
		}
		return nil
	})
}

func (s *gormStore) ChargeLines(ctx context.Context, containerID int64) ([]model.ChargeLine, error) {
	var lines []model.ChargeLine
	err := s.db.WithContext(ctx).
		Where("container_id = ?", containerID).
		Order("category ASC, period_start ASC").
		Find(&lines).Error
	if err != nil {
		return nil, fmt.Errorf("failed to fetch charge lines for container %d: %w", containerID, err)
	}
	return lines, nil
}

func (s *gormStore) ApplyChargePlan(ctx context.Context, plan accrual.Plan, now time.Time) error {
	if plan.Empty() {
		return nil
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := range plan.Create {
			if err := tx.Create(&plan.Create[i]).Error; err != nil {
				return fmt.Errorf("failed to create charge line: %w", err)
			}
		}
		for _, line := range plan.Void {
			err := tx.Model(&model.ChargeLine{}).
				Where("id = ? AND status = ?", line.ID, model.ChargeAccrued).
				Updates(map[string]any{
					"status":    model.ChargeVoided,
					"voided_at": now,
				}).Error
			if err != nil {
				return fmt.Errorf("failed to void charge line %d: %w", line.ID, err)
			}
		}
		return nil
	})
}

func (s *gormStore) Alerts(ctx context.Context, containerID int64) ([]model.Alert, error) {
	var list []model.Alert
	err := s.db.WithContext(ctx).
		Where("container_id = ?", containerID).
		Order("scheduled_at ASC").
		Find(&list).Error
	if err != nil {
		return nil, fmt.Errorf("failed to fetch alerts for container %d: %w", containerID, err)
	}
	return list, nil
}

func (s *gormStore) ApplyAlertPlan(ctx context.Context, plan alerts.Plan, now time.Time) error {
	if plan.Empty() {
		return nil
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Supersede before create so a stale alert can never fire alongside
		// its replacement. Fired alerts supersede like any other; fired_at
		// keeps the firing history.
		for _, a := range plan.Supersede {
			err := tx.Model(&model.Alert{}).
				Where("id = ? AND superseded = ?", a.ID, false).
				Update("superseded", true).Error
			if err != nil {
				return fmt.Errorf("failed to supersede alert %d: %w", a.ID, err)
			}
		}
		for i := range plan.Create {
			if err := tx.Create(&plan.Create[i]).Error; err != nil {
				return fmt.Errorf("failed to create alert: %w", err)
			}
		}
		return nil
	})
}

func (s *gormStore) FireDueAlerts(ctx context.Context, asOf time.Time) ([]model.Alert, error) {
	var due []model.Alert
	err := s.db.WithContext(ctx).
		Where("scheduled_at <= ? AND fired_at IS NULL AND superseded = ?", asOf, false).
		Find(&due).Error
	if err != nil {
		return nil, fmt.Errorf("failed to fetch due alerts: %w", err)
	}

	var fired []model.Alert
	for _, a := range due {
		// Guarded update: only the caller that flips fired_at reports the
		// alert as fired.
		result := s.db.WithContext(ctx).Model(&model.Alert{}).
			Where("id = ? AND fired_at IS NULL AND superseded = ?", a.ID, false).
			Update("fired_at", asOf)
		if result.Error != nil {
			return fired, fmt.Errorf("failed to fire alert %d: %w", a.ID, result.Error)
		}
		if result.RowsAffected > 0 {
			firedAt := asOf
			a.FiredAt = &firedAt
			fired = append(fired, a)
		}
	}
	return fired, nil
}

func (s *gormStore) AcknowledgeAlert(ctx context.Context, id int64, at time.Time) error {
	result := s.db.WithContext(ctx).Model(&model.Alert{}).
		Where("id = ? AND acknowledged_at IS NULL", id).
		Update("acknowledged_at", at)
	if result.Error != nil {
		return fmt.Errorf("failed to acknowledge alert %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (s *gormStore) CreateSnapshot(ctx context.Context, snap *model.BillingSnapshot, lines []model.SnapshotLine, markInvoiced []int64) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(snap).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return fmt.Errorf("snapshot %s: %w", snap.Number, ErrDuplicateSnapshotNumber)
			}
			return fmt.Errorf("failed to create snapshot: %w", err)
		}
		for i := range lines {
			lines[i].SnapshotID = snap.ID
			if err := tx.Create(&lines[i]).Error; err != nil {
				return fmt.Errorf("failed to create snapshot line: %w", err)
			}
		}
		if len(markInvoiced) > 0 {
			err := tx.Model(&model.ChargeLine{}).
				Where("id IN ? AND status = ?", markInvoiced, model.ChargeAccrued).
				Updates(map[string]any{
					"status":      model.ChargeInvoiced,
					"snapshot_id": snap.ID,
				}).Error
			if err != nil {
				return fmt.Errorf("failed to mark charge lines invoiced: %w", err)
			}
		}
		return nil
	})
}

func (s *gormStore) LastSnapshotNumber(ctx context.Context, prefix string) (string, error) {
	var snap model.BillingSnapshot
	err := s.db.WithContext(ctx).
		Where("number LIKE ?", prefix+"%").
		Order("number DESC").
		First(&snap).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to fetch last snapshot number: %w", err)
	}
	return snap.Number, nil
}
