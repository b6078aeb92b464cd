package service

import (
	"context"
	"fmt"
	"sync"

	"kchat/internal/metrics"
	"kchat/internal/models"

	"github.com/sirupsen/logrus"
)

// RealtimeSubscriber consumes push events for one room and feeds them through
// the shared admission guard. Connection-state changes are observed for
// diagnostics only; delivery correctness comes from the poller, so the
// subscriber performs no reconnect-and-replay of its own.
type RealtimeSubscriber struct {
	opener  ChannelOpener
	store   *MessageStore
	roomID  string
	logger  *logrus.Logger
	channel RealtimeChannel
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
	mu      sync.RWMutex
}

// NewRealtimeSubscriber creates a subscriber for one room.
func NewRealtimeSubscriber(opener ChannelOpener, store *MessageStore, roomID string, logger *logrus.Logger) *RealtimeSubscriber {
	return &RealtimeSubscriber{
		opener: opener,
		store:  store,
		roomID: roomID,
		logger: logger,
	}
}

// Start establishes the push subscription. Any prior channel is torn down
// first so a stale subscription can never double-deliver.
func (rs *RealtimeSubscriber) Start(ctx context.Context) error {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if rs.running {
		return fmt.Errorf("realtime subscriber is already running")
	}

	if rs.channel != nil {
		if err := rs.channel.Close(); err != nil {
			rs.logger.WithError(err).Warn("Failed to close stale realtime channel")
		}
		rs.channel = nil
	}

	subCtx, cancel := context.WithCancel(ctx)

	channel, err := rs.opener.Subscribe(subCtx, rs.roomID)
	if err != nil {
		cancel()
		return fmt.Errorf("failed to subscribe to room %s: %w", rs.roomID, err)
	}

	rs.channel = channel
	rs.cancel = cancel
	rs.running = true

	rs.wg.Add(1)
	go rs.consume(subCtx, channel)

	rs.logger.WithField("room", rs.roomID).Info("Realtime subscriber started")
	return nil
}

// Stop tears down the subscription deterministically and waits for the
// consumer goroutine to exit.
func (rs *RealtimeSubscriber) Stop() {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if !rs.running {
		return
	}

	rs.cancel()
	if err := rs.channel.Close(); err != nil {
		rs.logger.WithError(err).Debug("Realtime channel close returned error")
	}
	rs.wg.Wait()
	rs.channel = nil
	rs.running = false
	rs.logger.WithField("room", rs.roomID).Info("Realtime subscriber stopped")
}

// IsRunning returns whether the subscriber currently holds a subscription.
func (rs *RealtimeSubscriber) IsRunning() bool {
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	return rs.running
}

func (rs *RealtimeSubscriber) consume(ctx context.Context, channel RealtimeChannel) {
	defer rs.wg.Done()

	events := channel.Events()
	states := channel.States()

	for {
		select {
		case <-ctx.Done():
			return
		case state, ok := <-states:
			if !ok {
				states = nil
				continue
			}
			// Observed only; the poller covers delivery while degraded
			rs.logger.WithFields(logrus.Fields{
				"room":  rs.roomID,
				"state": state,
			}).Info("Realtime channel state changed")
		case ev, ok := <-events:
			if !ok {
				return
			}
			rs.handleEvent(ctx, ev)
		}
	}
}

func (rs *RealtimeSubscriber) handleEvent(ctx context.Context, ev models.RealtimeEvent) {
	if ev.Type != models.EventTypeInsert {
		rs.logger.WithField("type", ev.Type).Debug("Ignoring unhandled realtime event type")
		return
	}

	if rs.store.Insert(ev.Record) {
		metrics.IncrementCounter("realtime_events_admitted", nil, "Realtime events admitted into the store")
		LogWithContext(ctx, rs.logger).WithFields(SanitizeFields(ctx, logrus.Fields{
			"room":       rs.roomID,
			"message_id": ev.Record.ID,
		})).WithField("body", SanitizeBody(ctx, ev.Record.Body)).Debug("Realtime insert admitted")
	}
}
