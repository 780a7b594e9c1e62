package api

import (
	"github.com/SherClockHolmes/webpush-go"

	"drayage-billing-backend/config"
	"drayage-billing-backend/internal/billing"
	"drayage-billing-backend/internal/engine"
	"drayage-billing-backend/internal/ledger"
	"drayage-billing-backend/internal/rates"
	"drayage-billing-backend/internal/store"
)

// Handler holds shared dependencies for API handlers.
type Handler struct {
	cfg       *config.Config
	store     store.Store
	ledger    *ledger.Ledger
	engine    *engine.Engine
	resolver  *rates.Resolver
	assembler *billing.Assembler
	webpush   *webpush.Options
}

// NewHandler creates a new API handler.
func NewHandler(cfg *config.Config, s store.Store, l *ledger.Ledger, e *engine.Engine, r *rates.Resolver, a *billing.Assembler, webpushOptions *webpush.Options) *Handler {
	return &Handler{
		cfg:       cfg,
		store:     s,
		ledger:    l,
		engine:    e,
		resolver:  r,
		assembler: a,
		webpush:   webpushOptions,
	}
}
