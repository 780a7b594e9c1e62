// Package billing assembles accrued charges into invoice-ready snapshots.
package billing

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"drayage-billing-backend/config"
	"drayage-billing-backend/internal/accrual"
	"drayage-billing-backend/internal/freetime"
	"drayage-billing-backend/internal/model"
	"drayage-billing-backend/internal/money"
	"drayage-billing-backend/internal/rates"
	"drayage-billing-backend/internal/store"
)

// ErrIncompleteData means a final snapshot was requested before the
// resolving milestone arrived. The caller retries later or requests a
// provisional snapshot instead.
var ErrIncompleteData = errors.New("resolving milestone missing for final snapshot")

// ErrUnknownContainer means the snapshot target does not exist.
var ErrUnknownContainer = errors.New("unknown container")

// Assembler builds billing snapshots.
type Assembler struct {
	store    store.Store
	resolver *rates.Resolver
	cfg      *config.BillingConfig
}

func NewAssembler(s store.Store, r *rates.Resolver, cfg *config.BillingConfig) *Assembler {
	return &Assembler{store: s, resolver: r, cfg: cfg}
}

// Assemble collects the container's billable charge lines as of the instant
// into an immutable snapshot. A final snapshot requires every open charge
// window to be resolved and marks the included lines invoiced; a provisional
// snapshot is a preview over open accruals and leaves line status untouched.
func (a *Assembler) Assemble(ctx context.Context, containerID int64, at time.Time, final bool) (*model.BillingSnapshot, error) {
	at = at.UTC()

	container, err := a.store.ContainerByID(ctx, containerID)
	if err != nil {
		return nil, err
	}
	if container == nil {
		return nil, fmt.Errorf("container %d: %w", containerID, ErrUnknownContainer)
	}

	contract, err := a.resolver.Resolve(ctx, container.CustomerID, at)
	if err != nil {
		return nil, err
	}

	if final {
		history, err := a.store.MilestoneHistory(ctx, container.ID)
		if err != nil {
			return nil, err
		}
		windows := freetime.ComputeWindows(container.ID, history, contract, freetime.Options{
			PerDiemUntilReturn: a.cfg.PerDiemUntilReturn,
		})
		for _, w := range windows {
			if w.Open() {
				return nil, fmt.Errorf("container %s %s window open: %w",
					container.ContainerNumber, w.Category, ErrIncompleteData)
			}
		}
	}

	if err := a.ensureBaseFreight(ctx, container, contract, at); err != nil {
		return nil, err
	}

	all, err := a.store.ChargeLines(ctx, container.ID)
	if err != nil {
		return nil, err
	}

	// Invoiced lines belong to an earlier snapshot; voided lines were
	// invalidated by a correction. Neither is billable again.
	var billable []model.ChargeLine
	for _, line := range all {
		if line.Status != model.ChargeAccrued {
			continue
		}
		if line.PeriodStart.After(at) {
			continue
		}
		billable = append(billable, line)
	}

	total := money.Zero()
	snapLines := make([]model.SnapshotLine, 0, len(billable))
	chargeIDs := make([]int64, 0, len(billable))
	for i, line := range billable {
		amount, err := money.Parse(line.Amount)
		if err != nil {
			return nil, fmt.Errorf("charge line %d: %w", line.ID, err)
		}
		total = total.Add(amount)
		snapLines = append(snapLines, model.SnapshotLine{
			ItemNumber:   i + 1,
			ChargeLineID: line.ID,
			Description:  lineDescription(container, line),
			Quantity:     1,
			UnitPrice:    line.RateUsed,
			Amount:       line.Amount,
		})
		chargeIDs = append(chargeIDs, line.ID)
	}

	terms := contract.PaymentTerms
	if terms == "" {
		terms = a.cfg.PaymentTerms
	}
	due := dueDate(terms, at)

	markInvoiced := chargeIDs
	if !final {
		markInvoiced = nil
	}

	// Number allocation is read-then-insert; a concurrent assembly can claim
	// the same sequence slot, so reallocate and retry on conflict.
	var snap *model.BillingSnapshot
	for attempt := 0; ; attempt++ {
		number, err := a.nextNumber(ctx, at)
		if err != nil {
			return nil, err
		}
		snap = &model.BillingSnapshot{
			Number:         number,
			ContainerID:    container.ID,
			CustomerID:     container.CustomerID,
			ContractID:     contract.ID,
			Final:          final,
			SnapshotAt:     at,
			Total:          total.String(),
			Currency:       a.cfg.Currency,
			RequiresReview: a.requiresReview(total),
			DueDate:        &due,
		}
		err = a.store.CreateSnapshot(ctx, snap, snapLines, markInvoiced)
		if err == nil {
			break
		}
		if !errors.Is(err, store.ErrDuplicateSnapshotNumber) || attempt >= 2 {
			return nil, err
		}
	}
	snap.Lines = snapLines
	return snap, nil
}

// ensureBaseFreight creates the one-off flat freight line for the load if the
// container carries a freight rate and the line does not exist yet.
func (a *Assembler) ensureBaseFreight(ctx context.Context, container *model.Container, contract *model.RateContract, at time.Time) error {
	if container.BaseFreightRate == "" {
		return nil
	}
	existing, err := a.store.ChargeLines(ctx, container.ID)
	if err != nil {
		return err
	}
	for _, line := range existing {
		if line.Category == model.ChargeBaseFreight && line.Status != model.ChargeVoided {
			return nil
		}
	}
	if _, err := money.Parse(container.BaseFreightRate); err != nil {
		return fmt.Errorf("container %s base freight: %w", container.ContainerNumber, err)
	}
	return a.store.ApplyChargePlan(ctx, accrual.Plan{
		Create: []model.ChargeLine{{
			ContainerID: container.ID,
			Category:    model.ChargeBaseFreight,
			PeriodStart: at,
			PeriodEnd:   at,
			RateUsed:    container.BaseFreightRate,
			Amount:      container.BaseFreightRate,
			Currency:    a.cfg.Currency,
			ContractID:  contract.ID,
			Status:      model.ChargeAccrued,
		}},
	}, at)
}

func (a *Assembler) requiresReview(total money.Amount) bool {
	if a.cfg.ReviewThreshold == "" {
		return false
	}
	threshold, err := money.Parse(a.cfg.ReviewThreshold)
	if err != nil {
		return false
	}
	return total.Cmp(threshold) > 0
}

// nextNumber allocates the next INV-YYYYMM-NNNNN snapshot number.
func (a *Assembler) nextNumber(ctx context.Context, at time.Time) (string, error) {
	prefix := fmt.Sprintf("INV-%s", at.Format("200601"))
	last, err := a.store.LastSnapshotNumber(ctx, prefix)
	if err != nil {
		return "", err
	}
	seq := 1
	if last != "" {
		parts := strings.Split(last, "-")
		if n, err := strconv.Atoi(parts[len(parts)-1]); err == nil {
			seq = n + 1
		}
	}
	return fmt.Sprintf("%s-%05d", prefix, seq), nil
}

// dueDate derives the payment due date from terms like "Net 30" or
// "Due on Receipt". Unparseable terms default to 30 days.
func dueDate(terms string, invoiceDate time.Time) time.Time {
	if strings.Contains(terms, "Due on Receipt") {
		return invoiceDate
	}
	fields := strings.Fields(terms)
	if len(fields) > 0 {
		if days, err := strconv.Atoi(fields[len(fields)-1]); err == nil {
			return invoiceDate.AddDate(0, 0, days)
		}
	}
	return invoiceDate.AddDate(0, 0, 30)
}

func lineDescription(container *model.Container, line model.ChargeLine) string {
	switch line.Category {
	case model.ChargeBaseFreight:
		return fmt.Sprintf("Base freight - %s to %s", container.PickupLocation, container.DeliveryLocation)
	case model.ChargeDemurrage:
		return fmt.Sprintf("Demurrage - %s", line.PeriodStart.UTC().Format("2006-01-02"))
	case model.ChargeDetention:
		return fmt.Sprintf("Detention - %s", line.PeriodStart.UTC().Format("2006-01-02"))
	default:
		return fmt.Sprintf("Per diem - %s", line.PeriodStart.UTC().Format("2006-01-02"))
	}
}
