package service

import (
	"context"
	"sync"
	"time"

	"kchat/internal/models"

	"github.com/stretchr/testify/mock"
)

type mockChatClient struct {
	mock.Mock
	mu         sync.Mutex
	fetchCalls int
}

func (m *mockChatClient) FetchMessagesSince(ctx context.Context, roomID string, after time.Time) ([]models.Message, error) {
	m.mu.Lock()
	m.fetchCalls++
	m.mu.Unlock()
	args := m.Called(ctx, roomID, after)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Message), args.Error(1)
}

func (m *mockChatClient) FetchCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fetchCalls
}

func (m *mockChatClient) PostMessage(ctx context.Context, req *models.SendMessageRequest) (*models.Message, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Message), args.Error(1)
}

// fakeChannel is an in-memory RealtimeChannel driven directly by tests.
type fakeChannel struct {
	events    chan models.RealtimeEvent
	states    chan models.ChannelState
	closeOnce sync.Once
	mu        sync.Mutex
	closed    bool
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{
		events: make(chan models.RealtimeEvent, 16),
		states: make(chan models.ChannelState, 4),
	}
}

func (f *fakeChannel) Events() <-chan models.RealtimeEvent { return f.events }
func (f *fakeChannel) States() <-chan models.ChannelState  { return f.states }

func (f *fakeChannel) Close() error {
	f.closeOnce.Do(func() {
		f.mu.Lock()
		f.closed = true
		f.mu.Unlock()
		close(f.events)
		close(f.states)
	})
	return nil
}

func (f *fakeChannel) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *fakeChannel) emit(msg models.Message) {
	f.events <- models.RealtimeEvent{Type: models.EventTypeInsert, Record: msg}
}

// fakeOpener hands out fake channels, or fails when err is set.
type fakeOpener struct {
	mu       sync.Mutex
	err      error
	channels []*fakeChannel
}

func (f *fakeOpener) Subscribe(ctx context.Context, roomID string) (RealtimeChannel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.err != nil {
		return nil, f.err
	}
	ch := newFakeChannel()
	f.channels = append(f.channels, ch)
	return ch, nil
}

func (f *fakeOpener) lastChannel() *fakeChannel {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.channels) == 0 {
		return nil
	}
	return f.channels[len(f.channels)-1]
}

func serverMessage(id, roomID, body string, createdAt time.Time) models.Message {
	return models.Message{
		ID:        id,
		RoomID:    roomID,
		AuthorID:  "user-remote",
		Body:      body,
		CreatedAt: createdAt,
	}
}

func waitFor(timeout time.Duration, cond func() bool) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}
