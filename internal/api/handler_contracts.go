package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"drayage-billing-backend/internal/model"
)

type putContractRequest struct {
	CustomerRef   string `json:"customer_ref" binding:"required"`
	CustomerName  string `json:"customer_name"`
	PerDiemRate   string `json:"per_diem_rate" binding:"required"`
	DemurrageRate string `json:"demurrage_rate" binding:"required"`
	DetentionRate string `json:"detention_rate" binding:"required"`
	Currency      string `json:"currency"`

	PerDiemFreeDays   int `json:"per_diem_free_days"`
	DemurrageFreeDays int `json:"demurrage_free_days"`
	DetentionFreeDays int `json:"detention_free_days"`

	RoundingPolicy string     `json:"rounding_policy"`
	EffectiveFrom  *time.Time `json:"effective_from"`
	PaymentTerms   string     `json:"payment_terms"`
}

// PutContract appends a new rate-contract version for a customer. The open
// version, if any, is closed at the new version's effective-from instant.
func (h *Handler) PutContract(c *gin.Context) {
	var req putContractRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	policy := model.RoundingPolicy(req.RoundingPolicy)
	switch policy {
	case model.RoundWholeDay, model.RoundHalfDay, model.RoundHourly:
	case "":
		policy = model.RoundWholeDay
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid rounding_policy"})
		return
	}

	effectiveFrom := time.Now().UTC()
	if req.EffectiveFrom != nil {
		effectiveFrom = req.EffectiveFrom.UTC()
	}
	currency := req.Currency
	if currency == "" {
		currency = h.cfg.Billing.Currency
	}

	customer := model.Customer{ExternalRef: req.CustomerRef, Name: req.CustomerName}
	err := h.store.DB().WithContext(c.Request.Context()).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "external_ref"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "updated_at"}),
	}).Create(&customer).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if customer.ID == 0 {
		// Upsert path on conflict does not backfill the ID on every driver.
		var existing model.Customer
		if err := h.store.DB().First(&existing, "external_ref = ?", req.CustomerRef).Error; err != nil && err != gorm.ErrRecordNotFound {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		} else if err == nil {
			customer = existing
		}
	}

	contract := &model.RateContract{
		CustomerID:        customer.ID,
		PerDiemRate:       req.PerDiemRate,
		DemurrageRate:     req.DemurrageRate,
		DetentionRate:     req.DetentionRate,
		Currency:          currency,
		PerDiemFreeDays:   req.PerDiemFreeDays,
		DemurrageFreeDays: req.DemurrageFreeDays,
		DetentionFreeDays: req.DetentionFreeDays,
		RoundingPolicy:    policy,
		EffectiveFrom:     effectiveFrom,
		PaymentTerms:      req.PaymentTerms,
	}

	if err := h.store.ReplaceContract(c.Request.Context(), contract); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	h.resolver.Invalidate(customer.ID)

	c.JSON(http.StatusCreated, gin.H{"contract_id": contract.ID, "customer_id": customer.ID})
}
