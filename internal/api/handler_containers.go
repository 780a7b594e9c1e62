package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"drayage-billing-backend/internal/freetime"
	"drayage-billing-backend/internal/model"
	"drayage-billing-backend/internal/rates"
)

type putContainerRequest struct {
	ContainerNumber  string `json:"container_number" binding:"required"`
	CustomerRef      string `json:"customer_ref" binding:"required"`
	LoadNumber       string `json:"load_number"`
	BaseFreightRate  string `json:"base_freight_rate"`
	PickupLocation   string `json:"pickup_location"`
	DeliveryLocation string `json:"delivery_location"`
	TrackingActive   *bool  `json:"tracking_active"`
}

// PutContainer creates or updates a tracked container from the
// load-management sync.
func (h *Handler) PutContainer(c *gin.Context) {
	var req putContainerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var customer model.Customer
	if err := h.store.DB().WithContext(c.Request.Context()).
		First(&customer, "external_ref = ?", req.CustomerRef).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown customer"})
		return
	}

	tracking := true
	if req.TrackingActive != nil {
		tracking = *req.TrackingActive
	}

	container := &model.Container{
		ContainerNumber:  req.ContainerNumber,
		CustomerID:       customer.ID,
		LoadNumber:       req.LoadNumber,
		BaseFreightRate:  req.BaseFreightRate,
		PickupLocation:   req.PickupLocation,
		DeliveryLocation: req.DeliveryLocation,
		TrackingActive:   tracking,
	}
	if err := h.store.UpsertContainer(c.Request.Context(), container); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.Status(http.StatusCreated)
}

// GetContainers lists the active-tracking container set.
func (h *Handler) GetContainers(c *gin.Context) {
	containers, err := h.store.ActiveContainers(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve containers"})
		return
	}
	c.JSON(http.StatusOK, containers)
}

// windowResponse is the API shape of one derived free-time window.
type windowResponse struct {
	Category model.ChargeCategory `json:"category"`
	Start    time.Time            `json:"start"`
	Deadline time.Time            `json:"deadline"`
	End      *time.Time           `json:"end"`
	Open     bool                 `json:"open"`
}

// GetContainerStatus returns the container's derived free-time windows.
func (h *Handler) GetContainerStatus(c *gin.Context) {
	container, err := h.store.ContainerByNumber(c.Request.Context(), c.Param("container_number"))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if container == nil {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "unknown container"})
		return
	}

	contract, err := h.resolver.Resolve(c.Request.Context(), container.CustomerID, time.Now().UTC())
	if errors.Is(err, rates.ErrNoActiveContract) {
		c.JSON(http.StatusOK, gin.H{"container": container, "windows": nil, "billable": false})
		return
	}
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	history, err := h.ledger.History(c.Request.Context(), container.ID)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	windows := freetime.ComputeWindows(container.ID, history, contract, freetime.Options{
		PerDiemUntilReturn: h.cfg.Billing.PerDiemUntilReturn,
	})

	resp := make([]windowResponse, 0, len(windows))
	for _, w := range windows {
		resp = append(resp, windowResponse{
			Category: w.Category,
			Start:    w.Start,
			Deadline: w.Deadline,
			End:      w.End,
			Open:     w.Open(),
		})
	}
	c.JSON(http.StatusOK, gin.H{"container": container, "windows": resp, "billable": true})
}

// GetContainerCharges returns all charge lines for a container, voided
// included, so collaborators can audit corrections.
func (h *Handler) GetContainerCharges(c *gin.Context) {
	container, err := h.store.ContainerByNumber(c.Request.Context(), c.Param("container_number"))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if container == nil {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "unknown container"})
		return
	}

	lines, err := h.store.ChargeLines(c.Request.Context(), container.ID)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve charge lines"})
		return
	}
	c.JSON(http.StatusOK, lines)
}
