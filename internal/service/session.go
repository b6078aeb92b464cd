package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"kchat/internal/models"

	"github.com/sirupsen/logrus"
)

// RoomSessionConfig carries the per-room wiring for a session.
type RoomSessionConfig struct {
	RoomID       string
	AuthorID     string
	PollInterval time.Duration
	PollTimeout  time.Duration
	// Verbose allows message bodies and unmasked identifiers in debug logs.
	Verbose bool
}

// RoomSession is the scoped resource owning one open room: the message store,
// the admission guard, and both delivery paths. Opening a different room means
// discarding the session and creating a new one; nothing is shared across
// rooms. The poller and subscriber are started and stopped together — the
// session is never left with only one path active.
type RoomSession struct {
	store      *MessageStore
	poller     *RoomPoller
	subscriber *RealtimeSubscriber
	sender     *OptimisticSender
	roomID     string
	verbose    bool
	logger     *logrus.Logger
	running    bool
	mu         sync.Mutex
}

// NewRoomSession wires up a session for one room.
func NewRoomSession(client ChatClient, opener ChannelOpener, cfg RoomSessionConfig, logger *logrus.Logger) *RoomSession {
	guard := NewGuard()
	store := NewMessageStore(guard)

	return &RoomSession{
		store:      store,
		poller:     NewRoomPoller(client, store, cfg.RoomID, cfg.PollInterval, cfg.PollTimeout, logger),
		subscriber: NewRealtimeSubscriber(opener, store, cfg.RoomID, logger),
		sender:     NewOptimisticSender(client, store, cfg.RoomID, cfg.AuthorID, logger),
		roomID:     cfg.RoomID,
		verbose:    cfg.Verbose,
		logger:     logger,
	}
}

// withVerbose stamps the session's logging verbosity onto ctx so the delivery
// paths and sender sanitize their debug output consistently.
func (s *RoomSession) withVerbose(ctx context.Context) context.Context {
	return context.WithValue(ctx, VerboseContextKey, s.verbose)
}

// Start brings up both delivery paths. A push subscription failure is not
// fatal — the poller alone still guarantees delivery — but a poller failure
// tears the subscription back down so the paths stay all-or-nothing.
func (s *RoomSession) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("room session is already running")
	}

	ctx = s.withVerbose(ctx)

	subscribed := true
	if err := s.subscriber.Start(ctx); err != nil {
		subscribed = false
		s.logger.WithError(err).WithField("room", s.roomID).
			Warn("Realtime subscription unavailable, relying on polling")
	}

	if err := s.poller.Start(ctx); err != nil {
		if subscribed {
			s.subscriber.Stop()
		}
		return fmt.Errorf("failed to start room poller: %w", err)
	}

	s.running = true
	s.logger.WithField("room", s.roomID).Info("Room session started")
	return nil
}

// Stop tears down both delivery paths and waits for them to go quiet. The
// store contents are discarded with the session itself.
func (s *RoomSession) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}

	s.poller.Stop()
	if s.subscriber.IsRunning() {
		s.subscriber.Stop()
	}
	s.running = false
	s.logger.WithField("room", s.roomID).Info("Room session stopped")
}

// IsRunning reports whether the session is active.
func (s *RoomSession) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Messages returns the current display sequence for the room.
func (s *RoomSession) Messages() []models.Message {
	return s.store.Messages()
}

// Send submits a new message through the optimistic sender.
func (s *RoomSession) Send(ctx context.Context, body string, attachmentURL *string) (string, error) {
	return s.sender.Send(s.withVerbose(ctx), body, attachmentURL)
}

// Retry re-submits a failed message.
func (s *RoomSession) Retry(ctx context.Context, id string) (string, error) {
	return s.sender.Retry(s.withVerbose(ctx), id)
}

// Discard removes a failed message.
func (s *RoomSession) Discard(id string) error {
	return s.sender.Discard(id)
}

// Store exposes the underlying message store.
func (s *RoomSession) Store() *MessageStore {
	return s.store
}
