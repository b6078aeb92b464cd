package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"kchat/internal/errors"
	"kchat/internal/metrics"
	"kchat/internal/models"
	"kchat/internal/privacy"
	"kchat/internal/retry"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// PushStore is the subscription and log persistence the push service needs.
type PushStore interface {
	GetPushSubscriptions(ctx context.Context, userID string) ([]models.PushSubscription, error)
	DeletePushSubscription(ctx context.Context, id string) error
	CreateNotificationLog(ctx context.Context, log *models.NotificationLog) error
	UpdateNotificationLog(ctx context.Context, id string, status models.NotificationStatus, sentCount, failedCount int) error
}

// WebPushSender delivers one payload to one subscription and returns the
// provider's HTTP status code.
type WebPushSender interface {
	Send(ctx context.Context, sub models.PushSubscription, payload []byte) (int, error)
}

// PushService fans a notification out across all of a user's subscriptions
// with per-subscription success/failure bookkeeping. Endpoints the provider
// reports gone are removed so they are not retried forever.
type PushService struct {
	db      PushStore
	sender  WebPushSender
	backoff *retry.Backoff
	logger  *logrus.Logger
}

// NewPushService creates a push fan-out service.
func NewPushService(db PushStore, sender WebPushSender, retryCfg models.RetryConfig, logger *logrus.Logger) *PushService {
	backoff := retry.NewBackoff(retry.BackoffConfig{
		InitialDelay: time.Duration(retryCfg.InitialBackoffMs) * time.Millisecond,
		MaxDelay:     time.Duration(retryCfg.MaxBackoffMs) * time.Millisecond,
		Multiplier:   2.0,
		MaxAttempts:  retryCfg.MaxAttempts,
		Jitter:       true,
	})

	return &PushService{
		db:      db,
		sender:  sender,
		backoff: backoff,
		logger:  logger,
	}
}

type pushPayload struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	Tag   string `json:"tag,omitempty"`
	URL   string `json:"url,omitempty"`
}

// SendToUser delivers the notification to every subscription the user holds
// and returns the per-subscription results. The notification log row moves
// pending -> sent/failed with the final counts.
func (ps *PushService) SendToUser(ctx context.Context, msg models.PushMessage) ([]models.PushResult, error) {
	if msg.UserID == "" || msg.Title == "" || msg.Body == "" {
		return nil, errors.New(errors.ErrCodeInvalidInput, "user ID, title and body are required")
	}

	subs, err := ps.db.GetPushSubscriptions(ctx, msg.UserID)
	if err != nil {
		return nil, errors.NewDatabaseError("get push subscriptions", err)
	}
	if len(subs) == 0 {
		return nil, errors.New(errors.ErrCodeNotFound, "user has no push subscriptions").
			WithContext("user_id", privacy.MaskUserID(msg.UserID))
	}

	log := &models.NotificationLog{
		ID:        uuid.NewString(),
		UserID:    msg.UserID,
		Title:     msg.Title,
		Body:      msg.Body,
		Status:    models.NotificationPending,
		CreatedAt: time.Now().UTC(),
	}
	if err := ps.db.CreateNotificationLog(ctx, log); err != nil {
		return nil, errors.NewDatabaseError("create notification log", err)
	}

	payload, err := json.Marshal(pushPayload{
		Title: msg.Title,
		Body:  msg.Body,
		Tag:   msg.Tag,
		URL:   msg.URL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal push payload: %w", err)
	}

	results := make([]models.PushResult, 0, len(subs))
	sent, failed := 0, 0
	for _, sub := range subs {
		result := ps.deliverOne(ctx, sub, payload)
		if result.Success {
			sent++
		} else {
			failed++
		}
		results = append(results, result)
	}

	status := models.NotificationSent
	if sent == 0 {
		status = models.NotificationFailed
	}
	if err := ps.db.UpdateNotificationLog(ctx, log.ID, status, sent, failed); err != nil {
		ps.logger.WithError(err).WithField("log_id", log.ID).Error("Failed to finalize notification log")
	}

	ps.logger.WithFields(logrus.Fields{
		"user_id": privacy.MaskUserID(msg.UserID),
		"sent":    sent,
		"failed":  failed,
	}).Info("Push fan-out completed")

	return results, nil
}

// deliverOne attempts a single subscription with backoff on retryable
// failures. Gone endpoints (404/410) are dropped from the store.
func (ps *PushService) deliverOne(ctx context.Context, sub models.PushSubscription, payload []byte) models.PushResult {
	result := models.PushResult{SubscriptionID: sub.ID}

	err := ps.backoff.RetryWithPredicate(ctx, func() error {
		statusCode, sendErr := ps.sender.Send(ctx, sub, payload)
		result.StatusCode = statusCode

		if sendErr != nil {
			return errors.NewPushDeliveryError(sub.ID, statusCode, sendErr)
		}
		if statusCode == http.StatusNotFound || statusCode == http.StatusGone {
			result.Expired = true
			return errors.New(errors.ErrCodePushDelivery, "subscription expired").
				WithContext("subscription_id", sub.ID)
		}
		if statusCode >= 400 {
			return errors.NewPushDeliveryError(sub.ID, statusCode, fmt.Errorf("push endpoint returned status %d", statusCode))
		}
		return nil
	}, errors.IsRetryable)

	if err != nil {
		result.Success = false
		result.Error = err.Error()
		metrics.IncrementCounter("push_deliveries_failed", nil, "Push deliveries that failed")

		if result.Expired {
			if delErr := ps.db.DeletePushSubscription(ctx, sub.ID); delErr != nil {
				ps.logger.WithError(delErr).WithField("subscription_id", sub.ID).
					Warn("Failed to remove expired push subscription")
			} else {
				ps.logger.WithField("subscription_id", sub.ID).Info("Removed expired push subscription")
			}
		}
		return result
	}

	result.Success = true
	metrics.IncrementCounter("push_deliveries_sent", nil, "Push deliveries accepted by the endpoint")
	return result
}
