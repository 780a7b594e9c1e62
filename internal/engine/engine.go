// Package engine drives the recompute path from the milestone ledger through
// free-time windows to charge accrual and alert scheduling. It is triggered
// per container on milestone receipt and across all active containers on a
// periodic tick.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"drayage-billing-backend/config"
	"drayage-billing-backend/internal/accrual"
	"drayage-billing-backend/internal/alerts"
	"drayage-billing-backend/internal/freetime"
	"drayage-billing-backend/internal/notification"
	"drayage-billing-backend/internal/rates"
	"drayage-billing-backend/internal/store"
)

// containerLock serializes recomputation per container. gen counts appends
// requesting recomputation; done records the newest generation a completed
// recompute has covered.
type containerLock struct {
	mu   sync.Mutex
	gen  uint64
	done uint64
}

// Engine owns the recompute orchestration and the periodic tick.
type Engine struct {
	cfg      *config.Config
	store    store.Store
	resolver *rates.Resolver
	pool     *notification.WorkerPool
	leads    []alerts.LeadTime

	mu    sync.Mutex
	locks map[int64]*containerLock
}

// New creates an engine. The worker pool may be nil when push delivery is
// not configured.
func New(cfg *config.Config, s store.Store, resolver *rates.Resolver, pool *notification.WorkerPool) *Engine {
	return &Engine{
		cfg:      cfg,
		store:    s,
		resolver: resolver,
		pool:     pool,
		leads:    alerts.LeadTimesFromHours(cfg.Engine.LeadTimes),
		locks:    make(map[int64]*containerLock),
	}
}

func (e *Engine) lockFor(containerID int64) *containerLock {
	e.mu.Lock()
	defer e.mu.Unlock()
	l, ok := e.locks[containerID]
	if !ok {
		l = &containerLock{}
		e.locks[containerID] = l
	}
	return l
}

// Recompute re-derives charge and alert state for one container as of now.
// Calls for the same container are serialized; a call that finds its
// generation already covered by a later recompute returns without touching
// the database, which guarantees the last recompute reflects all appended
// milestones without redundant passes.
func (e *Engine) Recompute(ctx context.Context, containerID int64) error {
	return e.RecomputeAt(ctx, containerID, time.Now().UTC())
}

// RecomputeAt is Recompute evaluated at an explicit instant. Accrual walks
// stop at asOf, so re-running with the same instant and an unchanged ledger
// changes nothing.
func (e *Engine) RecomputeAt(ctx context.Context, containerID int64, asOf time.Time) error {
	l := e.lockFor(containerID)

	e.mu.Lock()
	l.gen++
	target := l.gen
	e.mu.Unlock()

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.done >= target {
		return nil
	}
	// Snapshot the generation before reading state: appends that land during
	// the pass bump gen past this value and queue another recompute.
	e.mu.Lock()
	covering := l.gen
	e.mu.Unlock()

	if err := e.recomputeOnce(ctx, containerID, asOf); err != nil {
		return err
	}
	l.done = covering
	return nil
}

// recomputeOnce runs one full ledger-to-windows-to-charges-to-alerts pass.
func (e *Engine) recomputeOnce(ctx context.Context, containerID int64, asOf time.Time) error {
	container, err := e.store.ContainerByID(ctx, containerID)
	if err != nil {
		return err
	}
	if container == nil {
		return fmt.Errorf("recompute: unknown container %d", containerID)
	}

	contract, err := e.resolver.Resolve(ctx, container.CustomerID, asOf)
	if errors.Is(err, rates.ErrNoActiveContract) {
		// Cannot bill yet. Existing state stays at its last-known-good value
		// until a contract appears.
		log.Printf("Deferring billing for container %s: %v", container.ContainerNumber, err)
		return nil
	}
	if err != nil {
		return err
	}

	history, err := e.store.MilestoneHistory(ctx, containerID)
	if err != nil {
		return err
	}

	windows := freetime.ComputeWindows(containerID, history, contract, freetime.Options{
		PerDiemUntilReturn: e.cfg.Billing.PerDiemUntilReturn,
	})

	existingLines, err := e.store.ChargeLines(ctx, containerID)
	if err != nil {
		return err
	}

	chargePlan, err := accrual.PlanCharges(windows, contract, existingLines, asOf, accrual.Options{
		Currency:      e.cfg.Billing.Currency,
		OverlapPolicy: accrual.OverlapPolicy(e.cfg.Billing.OverlapPolicy),
	})
	if err != nil {
		return err
	}
	if err := e.store.ApplyChargePlan(ctx, chargePlan, asOf); err != nil {
		return err
	}

	existingAlerts, err := e.store.Alerts(ctx, containerID)
	if err != nil {
		return err
	}
	alertPlan := alerts.PlanAlerts(windows, existingAlerts, e.leads, asOf)
	if err := e.store.ApplyAlertPlan(ctx, alertPlan, asOf); err != nil {
		return err
	}

	// The consistent parts are applied; invoiced lines hit by a correction
	// are surfaced for an explicit reversal decision.
	if len(chargePlan.Conflicts) > 0 {
		return &accrual.InconsistentCorrectionError{
			ContainerID: containerID,
			Lines:       chargePlan.Conflicts,
		}
	}
	return nil
}

// Tick recomputes every active container and fires due alerts. A failure on
// one container is reported and does not stop the rest of the tick.
func (e *Engine) Tick(ctx context.Context, asOf time.Time) error {
	containers, err := e.store.ActiveContainers(ctx)
	if err != nil {
		return err
	}

	var failed int
	for _, c := range containers {
		if err := e.RecomputeAt(ctx, c.ID, asOf); err != nil {
			failed++
			log.Printf("Tick: recompute failed for container %s: %v", c.ContainerNumber, err)
		}
	}

	fired, err := e.store.FireDueAlerts(ctx, asOf)
	if err != nil {
		return err
	}
	if len(fired) > 0 {
		log.Printf("Tick: fired %d alert(s)", len(fired))
	}
	if e.pool != nil {
		for _, a := range fired {
			e.pool.Dispatch(a.ID)
		}
	}

	if failed > 0 {
		return fmt.Errorf("tick completed with %d failed container(s)", failed)
	}
	return nil
}

// Run starts the worker pool and the periodic tick loop.
func (e *Engine) Run(ctx context.Context) {
	if !e.cfg.Engine.Enabled {
		log.Println("Billing engine tick is disabled. Not starting.")
		return
	}
	log.Println("Starting billing engine...")

	if e.pool != nil {
		e.pool.Start(ctx)
	}

	if err := e.Tick(ctx, time.Now().UTC()); err != nil {
		log.Printf("Tick error: %v", err)
	}

	timer := time.NewTimer(e.cfg.Engine.TickInterval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Billing engine shutting down.")
			return
		case <-timer.C:
			if err := e.Tick(ctx, time.Now().UTC()); err != nil {
				log.Printf("Tick error: %v", err)
			}
			timer.Reset(e.cfg.Engine.TickInterval)
		}
	}
}
