package service

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	apperrors "kchat/internal/errors"
	"kchat/internal/models"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockPushStore struct {
	mock.Mock
}

func (m *mockPushStore) GetPushSubscriptions(ctx context.Context, userID string) ([]models.PushSubscription, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.PushSubscription), args.Error(1)
}

func (m *mockPushStore) DeletePushSubscription(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *mockPushStore) CreateNotificationLog(ctx context.Context, log *models.NotificationLog) error {
	args := m.Called(ctx, log)
	return args.Error(0)
}

func (m *mockPushStore) UpdateNotificationLog(ctx context.Context, id string, status models.NotificationStatus, sentCount, failedCount int) error {
	args := m.Called(ctx, id, status, sentCount, failedCount)
	return args.Error(0)
}

type mockWebPushSender struct {
	mock.Mock
}

func (m *mockWebPushSender) Send(ctx context.Context, sub models.PushSubscription, payload []byte) (int, error) {
	args := m.Called(ctx, sub, payload)
	return args.Int(0), args.Error(1)
}

func testPushSubscription(id string) models.PushSubscription {
	return models.PushSubscription{
		ID:        id,
		UserID:    "user-1",
		Endpoint:  "https://push.example.com/" + id,
		P256dhKey: "p256dh-key",
		AuthKey:   "auth-key",
		CreatedAt: time.Now().UTC(),
	}
}

func newTestPushService(db PushStore, sender WebPushSender) *PushService {
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel)
	return NewPushService(db, sender, models.RetryConfig{
		InitialBackoffMs: 1,
		MaxBackoffMs:     5,
		MaxAttempts:      2,
	}, logger)
}

func TestPushService_SendToUserFansOut(t *testing.T) {
	db := &mockPushStore{}
	sender := &mockWebPushSender{}

	subs := []models.PushSubscription{testPushSubscription("sub-1"), testPushSubscription("sub-2")}
	db.On("GetPushSubscriptions", mock.Anything, "user-1").Return(subs, nil)
	db.On("CreateNotificationLog", mock.Anything, mock.MatchedBy(func(log *models.NotificationLog) bool {
		return log.UserID == "user-1" && log.Status == models.NotificationPending
	})).Return(nil)
	db.On("UpdateNotificationLog", mock.Anything, mock.Anything, models.NotificationSent, 2, 0).Return(nil)

	sender.On("Send", mock.Anything, subs[0], mock.Anything).Return(http.StatusCreated, nil)
	sender.On("Send", mock.Anything, subs[1], mock.Anything).Return(http.StatusCreated, nil)

	svc := newTestPushService(db, sender)
	results, err := svc.SendToUser(context.Background(), models.PushMessage{
		UserID: "user-1",
		Title:  "New message",
		Body:   "hello",
	})

	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.True(t, results[0].Success)
	assert.True(t, results[1].Success)
	db.AssertExpectations(t)
	sender.AssertExpectations(t)
}

func TestPushService_ExpiredSubscriptionRemoved(t *testing.T) {
	db := &mockPushStore{}
	sender := &mockWebPushSender{}

	subs := []models.PushSubscription{testPushSubscription("sub-1"), testPushSubscription("sub-2")}
	db.On("GetPushSubscriptions", mock.Anything, "user-1").Return(subs, nil)
	db.On("CreateNotificationLog", mock.Anything, mock.Anything).Return(nil)
	db.On("UpdateNotificationLog", mock.Anything, mock.Anything, models.NotificationSent, 1, 1).Return(nil)
	db.On("DeletePushSubscription", mock.Anything, "sub-1").Return(nil)

	sender.On("Send", mock.Anything, subs[0], mock.Anything).Return(http.StatusGone, nil)
	sender.On("Send", mock.Anything, subs[1], mock.Anything).Return(http.StatusCreated, nil)

	svc := newTestPushService(db, sender)
	results, err := svc.SendToUser(context.Background(), models.PushMessage{
		UserID: "user-1",
		Title:  "New message",
		Body:   "hello",
	})

	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.False(t, results[0].Success)
	assert.True(t, results[0].Expired)
	assert.True(t, results[1].Success)
	db.AssertExpectations(t)
}

func TestPushService_AllDeliveriesFailedMarksLogFailed(t *testing.T) {
	db := &mockPushStore{}
	sender := &mockWebPushSender{}

	subs := []models.PushSubscription{testPushSubscription("sub-1")}
	db.On("GetPushSubscriptions", mock.Anything, "user-1").Return(subs, nil)
	db.On("CreateNotificationLog", mock.Anything, mock.Anything).Return(nil)
	db.On("UpdateNotificationLog", mock.Anything, mock.Anything, models.NotificationFailed, 0, 1).Return(nil)

	sender.On("Send", mock.Anything, subs[0], mock.Anything).Return(0, fmt.Errorf("network error"))

	svc := newTestPushService(db, sender)
	results, err := svc.SendToUser(context.Background(), models.PushMessage{
		UserID: "user-1",
		Title:  "New message",
		Body:   "hello",
	})

	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.False(t, results[0].Success)
	assert.NotEmpty(t, results[0].Error)
	db.AssertExpectations(t)
}

func TestPushService_RetryableFailureThenSuccess(t *testing.T) {
	db := &mockPushStore{}
	sender := &mockWebPushSender{}

	subs := []models.PushSubscription{testPushSubscription("sub-1")}
	db.On("GetPushSubscriptions", mock.Anything, "user-1").Return(subs, nil)
	db.On("CreateNotificationLog", mock.Anything, mock.Anything).Return(nil)
	db.On("UpdateNotificationLog", mock.Anything, mock.Anything, models.NotificationSent, 1, 0).Return(nil)

	sender.On("Send", mock.Anything, subs[0], mock.Anything).Return(http.StatusServiceUnavailable, nil).Once()
	sender.On("Send", mock.Anything, subs[0], mock.Anything).Return(http.StatusCreated, nil).Once()

	svc := newTestPushService(db, sender)
	results, err := svc.SendToUser(context.Background(), models.PushMessage{
		UserID: "user-1",
		Title:  "New message",
		Body:   "hello",
	})

	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.True(t, results[0].Success)
	sender.AssertExpectations(t)
}

func TestPushService_NoSubscriptions(t *testing.T) {
	db := &mockPushStore{}
	db.On("GetPushSubscriptions", mock.Anything, "user-1").Return([]models.PushSubscription{}, nil)

	svc := newTestPushService(db, &mockWebPushSender{})
	_, err := svc.SendToUser(context.Background(), models.PushMessage{
		UserID: "user-1",
		Title:  "New message",
		Body:   "hello",
	})

	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeNotFound, apperrors.GetCode(err))
}

func TestPushService_ValidatesInput(t *testing.T) {
	svc := newTestPushService(&mockPushStore{}, &mockWebPushSender{})

	_, err := svc.SendToUser(context.Background(), models.PushMessage{UserID: "user-1"})
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeInvalidInput, apperrors.GetCode(err))
}
