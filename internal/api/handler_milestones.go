package api

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"drayage-billing-backend/internal/ledger"
	"drayage-billing-backend/internal/model"
)

type milestoneRequest struct {
	ContainerNumber string    `json:"container_number" binding:"required"`
	MilestoneType   string    `json:"milestone_type" binding:"required"`
	OccurredAt      time.Time `json:"occurred_at" binding:"required"`
	Source          string    `json:"source"`
}

// PostMilestone ingests one tracking event from the carrier webhook. Delivery
// is at-least-once; duplicates are reported as such, not failed.
func (h *Handler) PostMilestone(c *gin.Context) {
	var req milestoneRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	container, err := h.store.ContainerByNumber(c.Request.Context(), req.ContainerNumber)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if container == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown container"})
		return
	}

	source := model.MilestoneSource(req.Source)
	if source == "" {
		source = model.SourceWebhook
	}

	milestone := &model.Milestone{
		ContainerID: container.ID,
		Type:        model.MilestoneType(req.MilestoneType),
		OccurredAt:  req.OccurredAt,
		Source:      source,
		ReceivedAt:  time.Now().UTC(),
	}

	outcome, err := h.ledger.Append(c.Request.Context(), milestone)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// A new ledger entry invalidates all derived state for the container;
	// recompute off the request path.
	if outcome == ledger.Inserted {
		containerID := container.ID
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := h.engine.Recompute(ctx, containerID); err != nil {
				log.Printf("Recompute after milestone failed for container %d: %v", containerID, err)
			}
		}()
	}

	c.JSON(http.StatusAccepted, gin.H{"result": string(outcome)})
}
