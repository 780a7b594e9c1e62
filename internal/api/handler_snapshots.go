package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"drayage-billing-backend/internal/billing"
	"drayage-billing-backend/internal/rates"
)

type snapshotRequest struct {
	Final bool       `json:"final"`
	At    *time.Time `json:"at"`
}

// PostSnapshot assembles a billing snapshot for a container. A final
// snapshot requires every charge window to be resolved; a provisional one is
// always permitted.
func (h *Handler) PostSnapshot(c *gin.Context) {
	var req snapshotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	container, err := h.store.ContainerByNumber(c.Request.Context(), c.Param("container_number"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if container == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown container"})
		return
	}

	at := time.Now().UTC()
	if req.At != nil {
		at = req.At.UTC()
	}

	snap, err := h.assembler.Assemble(c.Request.Context(), container.ID, at, req.Final)
	switch {
	case errors.Is(err, billing.ErrIncompleteData):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	case errors.Is(err, rates.ErrNoActiveContract):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, snap)
}

// AcknowledgeAlert marks a fired alert as acknowledged by an operator.
func (h *Handler) AcknowledgeAlert(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid alert id"})
		return
	}

	if err := h.store.AcknowledgeAlert(c.Request.Context(), id, time.Now().UTC()); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "alert not found or already acknowledged"})
		return
	}
	c.Status(http.StatusNoContent)
}
