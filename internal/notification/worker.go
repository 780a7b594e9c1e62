package notification

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"
	"gorm.io/gorm"

	"drayage-billing-backend/internal/model"
)

// Sender defines the interface for sending a web push notification.
type Sender interface {
	Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// WebPushSender is a real implementation of Sender using the webpush library.
type WebPushSender struct{}

// Send sends a notification using the webpush library.
func (s *WebPushSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return webpush.SendNotification(payload, sub, options)
}

// WorkerPool manages a pool of workers delivering fired alerts to push
// subscriptions. The engine dispatches alert IDs; delivery never blocks the
// recompute path.
type WorkerPool struct {
	size    int
	jobs    chan int64
	db      *gorm.DB
	webpush *webpush.Options
	sender  Sender
}

// NewWorkerPool creates a new worker pool.
func NewWorkerPool(size int, db *gorm.DB, webpushOptions *webpush.Options) *WorkerPool {
	return &WorkerPool{
		size:    size,
		jobs:    make(chan int64, size),
		db:      db,
		webpush: webpushOptions,
		sender:  &WebPushSender{},
	}
}

// Start launches the worker goroutines.
func (wp *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < wp.size; i++ {
		go wp.worker(ctx, i)
	}
}

func (wp *WorkerPool) worker(ctx context.Context, id int) {
	log.Printf("Alert worker %d started", id)
	for {
		select {
		case alertID := <-wp.jobs:
			wp.deliverAlert(ctx, alertID)
		case <-ctx.Done():
			log.Printf("Alert worker %d shutting down", id)
			return
		}
	}
}

// Dispatch sends a fired alert to the worker pool.
func (wp *WorkerPool) Dispatch(alertID int64) {
	wp.jobs <- alertID
}

// Jobs returns the jobs channel for testing.
func (wp *WorkerPool) Jobs() chan int64 {
	return wp.jobs
}

// deliverAlert fetches the alert, its container, and the container's push
// subscriptions, then delivers one message per subscription.
func (wp *WorkerPool) deliverAlert(ctx context.Context, alertID int64) {
	var alert model.Alert
	if err := wp.db.WithContext(ctx).First(&alert, alertID).Error; err != nil {
		log.Printf("Error fetching alert %d: %v", alertID, err)
		return
	}

	var subscriptions []model.PushSubscription
	err := wp.db.WithContext(ctx).
		Joins("JOIN subscription_container_mapping scm ON scm.push_subscription_endpoint = push_subscriptions.endpoint").
		Where("scm.container_id = ?", alert.ContainerID).
		Find(&subscriptions).Error
	if err != nil {
		log.Printf("Error fetching subscriptions for container %d: %v", alert.ContainerID, err)
		return
	}

	if len(subscriptions) == 0 {
		return
	}

	var container model.Container
	containerLabel := fmt.Sprintf("%d", alert.ContainerID)
	if err := wp.db.WithContext(ctx).
		Select("container_number").
		First(&container, alert.ContainerID).Error; err != nil {
		log.Printf("Error fetching container %d: %v", alert.ContainerID, err)
	} else if container.ContainerNumber != "" {
		containerLabel = container.ContainerNumber
	}

	message := formatAlertMessage(containerLabel, alert)
	log.Printf("Delivering alert %d to %d subscription(s)", alert.ID, len(subscriptions))
	for _, sub := range subscriptions {
		wp.sendNotification(ctx, sub, []byte(message))
	}
}

// formatAlertMessage renders the push payload for a fired alert.
func formatAlertMessage(containerLabel string, alert model.Alert) string {
	var charge string
	switch alert.Category {
	case model.ChargeDemurrage:
		charge = "demurrage"
	case model.ChargeDetention:
		charge = "detention"
	default:
		charge = "per diem"
	}
	return fmt.Sprintf("Container %s: %s charges begin %s (%s)",
		containerLabel, charge,
		alert.Deadline.UTC().Format("2006-01-02 15:04 MST"),
		alert.Kind)
}

// sendNotification sends a single web push notification.
func (wp *WorkerPool) sendNotification(ctx context.Context, sub model.PushSubscription, payload []byte) {
	wpSub := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256DH,
			Auth:   sub.Auth,
		},
	}

	resp, err := wp.sender.Send(payload, wpSub, wp.webpush)
	if err != nil {
		log.Printf("Error sending notification to %s: %v", sub.Endpoint, err)
		return
	}
	defer resp.Body.Close()

	// Handle expired subscriptions
	if resp.StatusCode == http.StatusGone {
		log.Printf("Subscription for endpoint %s is expired. Deleting.", sub.Endpoint)
		if err := wp.db.WithContext(ctx).Delete(&sub).Error; err != nil {
			log.Printf("Failed to delete expired subscription %s: %v", sub.Endpoint, err)
		}
	}
}
