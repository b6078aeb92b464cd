package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"kchat/internal/models"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newTestPoller(client ChatClient, store *MessageStore, interval time.Duration) *RoomPoller {
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel)
	return NewRoomPoller(client, store, "room-1", interval, time.Second, logger)
}

func TestRoomPoller_StartStop(t *testing.T) {
	client := &mockChatClient{}
	client.On("FetchMessagesSince", mock.Anything, "room-1", mock.Anything).Return([]models.Message{}, nil).Maybe()

	poller := newTestPoller(client, newTestStore(), 10*time.Millisecond)

	require.NoError(t, poller.Start(context.Background()))
	assert.True(t, poller.IsRunning())

	err := poller.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already running")

	poller.Stop()
	assert.False(t, poller.IsRunning())

	// Stop is idempotent.
	poller.Stop()
}

func TestRoomPoller_RepeatedFetchesAdmitOnce(t *testing.T) {
	store := newTestStore()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	batch := []models.Message{
		serverMessage("msg-1", "room-1", "a", base),
		serverMessage("msg-2", "room-1", "b", base.Add(time.Second)),
	}

	client := &mockChatClient{}
	client.On("FetchMessagesSince", mock.Anything, "room-1", mock.Anything).Return(batch, nil)

	poller := newTestPoller(client, store, 5*time.Millisecond)
	require.NoError(t, poller.Start(context.Background()))
	defer poller.Stop()

	// Several cycles fetch the same batch; the guard admits each record once.
	require.True(t, waitFor(time.Second, func() bool {
		return client.FetchCalls() >= 3
	}))
	assert.Equal(t, 2, store.Len())
}

func TestRoomPoller_WatermarkAdvances(t *testing.T) {
	store := newTestStore()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	client := &mockChatClient{}
	client.On("FetchMessagesSince", mock.Anything, "room-1", time.Time{}).
		Return([]models.Message{serverMessage("msg-1", "room-1", "a", base)}, nil).Once()
	client.On("FetchMessagesSince", mock.Anything, "room-1", base).
		Return([]models.Message{}, nil)

	poller := newTestPoller(client, store, 5*time.Millisecond)
	require.NoError(t, poller.Start(context.Background()))
	defer poller.Stop()

	require.True(t, waitFor(time.Second, func() bool {
		return client.FetchCalls() >= 2
	}))

	assert.Equal(t, 1, store.Len())
	assert.Equal(t, base, store.Watermark())
	client.AssertExpectations(t)
}

func TestRoomPoller_FailedCycleDoesNotStopPolling(t *testing.T) {
	store := newTestStore()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	client := &mockChatClient{}
	client.On("FetchMessagesSince", mock.Anything, "room-1", mock.Anything).
		Return(nil, fmt.Errorf("backend unavailable")).Twice()
	client.On("FetchMessagesSince", mock.Anything, "room-1", mock.Anything).
		Return([]models.Message{serverMessage("msg-1", "room-1", "a", base)}, nil)

	poller := newTestPoller(client, store, 5*time.Millisecond)
	require.NoError(t, poller.Start(context.Background()))
	defer poller.Stop()

	require.True(t, waitFor(time.Second, func() bool {
		return store.Len() == 1
	}))
	assert.True(t, poller.IsRunning())
}
