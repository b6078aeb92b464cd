package service

import (
	"context"
	"time"

	"kchat/internal/errors"
	"kchat/internal/metrics"
	"kchat/internal/models"
	"kchat/internal/validation"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// OptimisticSender makes the user's own messages appear instantly. A send
// appends a provisional record with a temporary identifier, then reconciles
// it in place with the authoritative server record once persistence succeeds.
// Failed sends stay visible in the failed state for retry or discard.
type OptimisticSender struct {
	client   ChatClient
	store    *MessageStore
	roomID   string
	authorID string
	logger   *logrus.Logger
	now      func() time.Time
}

// NewOptimisticSender creates a sender for one room and author.
func NewOptimisticSender(client ChatClient, store *MessageStore, roomID, authorID string, logger *logrus.Logger) *OptimisticSender {
	return &OptimisticSender{
		client:   client,
		store:    store,
		roomID:   roomID,
		authorID: authorID,
		logger:   logger,
		now:      time.Now,
	}
}

// Send inserts a provisional message immediately and persists it in the
// background of the caller's context. On success the provisional record is
// replaced in place by the server record and the returned ID is permanent;
// on failure the record is marked failed and the temporary ID is returned
// alongside the error.
func (os *OptimisticSender) Send(ctx context.Context, body string, attachmentURL *string) (string, error) {
	if err := validation.ValidateMessageContent(body, attachmentURL); err != nil {
		return "", err
	}

	tempID := models.TempIDPrefix + uuid.NewString()
	provisional := models.Message{
		ID:            tempID,
		RoomID:        os.roomID,
		AuthorID:      os.authorID,
		Body:          body,
		AttachmentURL: attachmentURL,
		CreatedAt:     os.now().UTC(),
		DeliveryState: models.DeliverySending,
	}

	os.store.AppendProvisional(provisional)

	LogWithContext(ctx, os.logger).WithFields(SanitizeFields(ctx, logrus.Fields{
		"room":     os.roomID,
		"local_id": tempID,
	})).WithField("body", SanitizeBody(ctx, body)).Debug("Provisional message appended")

	return os.persist(ctx, tempID, body, attachmentURL)
}

// Retry re-submits a failed message with its original content. The record
// returns to sending for the duration of the attempt and follows the same
// transitions as the original send.
func (os *OptimisticSender) Retry(ctx context.Context, id string) (string, error) {
	if err := validation.ValidateMessageID(id); err != nil {
		return "", err
	}

	msg, ok := os.store.Get(id)
	if !ok {
		return "", errors.New(errors.ErrCodeNotFound, "message not found").WithContext("id", id)
	}
	if msg.DeliveryState != models.DeliveryFailed {
		return "", errors.New(errors.ErrCodeInvalidInput, "only failed messages can be retried").
			WithContext("id", id).
			WithContext("state", string(msg.DeliveryState))
	}

	os.store.SetState(id, models.DeliverySending)

	return os.persist(ctx, id, msg.Body, msg.AttachmentURL)
}

// Discard removes a failed message permanently. It was never persisted, so it
// cannot reappear through polling.
func (os *OptimisticSender) Discard(id string) error {
	if err := validation.ValidateMessageID(id); err != nil {
		return err
	}

	msg, ok := os.store.Get(id)
	if !ok {
		return errors.New(errors.ErrCodeNotFound, "message not found").WithContext("id", id)
	}
	if msg.DeliveryState != models.DeliveryFailed {
		return errors.New(errors.ErrCodeInvalidInput, "only failed messages can be discarded").
			WithContext("id", id).
			WithContext("state", string(msg.DeliveryState))
	}

	os.store.Remove(id)
	return nil
}

func (os *OptimisticSender) persist(ctx context.Context, localID, body string, attachmentURL *string) (string, error) {
	confirmed, err := os.client.PostMessage(ctx, &models.SendMessageRequest{
		RoomID:        os.roomID,
		AuthorID:      os.authorID,
		Body:          body,
		AttachmentURL: attachmentURL,
	})
	if err != nil {
		os.store.SetState(localID, models.DeliveryFailed)
		metrics.IncrementCounter("sends_failed", nil, "Message sends that failed")
		os.logger.WithError(err).WithField("room", os.roomID).Warn("Message send failed")
		return localID, errors.Wrap(err, errors.ErrCodeSendFailed, "failed to persist message").
			WithUserMessage("Message could not be sent")
	}

	if !os.store.Resolve(localID, *confirmed) {
		// The provisional record vanished under us; admit the confirmed copy
		// through the normal path so it is not lost.
		os.store.Insert(*confirmed)
		os.logger.WithFields(logrus.Fields{
			"room":    os.roomID,
			"localId": localID,
		}).Warn("Provisional message missing at reconciliation")
	}

	metrics.IncrementCounter("sends_confirmed", nil, "Message sends confirmed by the backend")
	return confirmed.ID, nil
}
