package service

import (
	"context"
	"time"

	"kchat/internal/models"
)

// ChatClient is the backend message API consumed by the poller and sender.
type ChatClient interface {
	// FetchMessagesSince returns all room messages strictly newer than the
	// watermark, ascending by creation time.
	FetchMessagesSince(ctx context.Context, roomID string, after time.Time) ([]models.Message, error)
	// PostMessage persists a new message and returns the authoritative record.
	PostMessage(ctx context.Context, req *models.SendMessageRequest) (*models.Message, error)
}

// RealtimeChannel is one established push subscription for a room. The caller
// owns teardown via Close; both channels are closed once the subscription ends.
type RealtimeChannel interface {
	Events() <-chan models.RealtimeEvent
	States() <-chan models.ChannelState
	Close() error
}

// ChannelOpener establishes push subscriptions for rooms.
type ChannelOpener interface {
	Subscribe(ctx context.Context, roomID string) (RealtimeChannel, error)
}

// ChannelOpenerFunc adapts a plain function to the ChannelOpener interface.
type ChannelOpenerFunc func(ctx context.Context, roomID string) (RealtimeChannel, error)

func (f ChannelOpenerFunc) Subscribe(ctx context.Context, roomID string) (RealtimeChannel, error) {
	return f(ctx, roomID)
}
