package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"kchat/internal/constants"
	"kchat/internal/metrics"
	"kchat/internal/models"
	"kchat/pkg/circuitbreaker"

	"github.com/sirupsen/logrus"
)

// RoomPoller periodically fetches messages newer than the store's watermark.
// It is the correctness fallback for the realtime channel: a degraded push
// subscription only costs latency, never delivery.
type RoomPoller struct {
	client      ChatClient
	store       *MessageStore
	roomID      string
	interval    time.Duration
	pollTimeout time.Duration
	breaker     *circuitbreaker.CircuitBreaker
	logger      *logrus.Logger
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	running     bool
	mu          sync.RWMutex
}

// NewRoomPoller creates a poller for one room.
func NewRoomPoller(client ChatClient, store *MessageStore, roomID string, interval, pollTimeout time.Duration, logger *logrus.Logger) *RoomPoller {
	return &RoomPoller{
		client:      client,
		store:       store,
		roomID:      roomID,
		interval:    interval,
		pollTimeout: pollTimeout,
		breaker: circuitbreaker.New(
			"chat-fetch",
			constants.DefaultBreakerMaxFailures,
			time.Duration(constants.DefaultBreakerResetSec)*time.Second,
			logger,
		),
		logger: logger,
	}
}

// Start begins the background polling loop.
func (rp *RoomPoller) Start(ctx context.Context) error {
	rp.mu.Lock()
	defer rp.mu.Unlock()

	if rp.running {
		return fmt.Errorf("room poller is already running")
	}

	rp.ctx, rp.cancel = context.WithCancel(ctx)
	rp.running = true

	rp.wg.Add(1)
	go rp.pollLoop()

	rp.logger.WithFields(logrus.Fields{
		"room":     rp.roomID,
		"interval": rp.interval,
	}).Info("Room poller started")

	return nil
}

// Stop halts polling and waits for the in-flight cycle to finish.
func (rp *RoomPoller) Stop() {
	rp.mu.Lock()
	defer rp.mu.Unlock()

	if !rp.running {
		return
	}

	rp.cancel()
	rp.wg.Wait()
	rp.running = false
	rp.logger.WithField("room", rp.roomID).Info("Room poller stopped")
}

// IsRunning returns whether the poller is currently active.
func (rp *RoomPoller) IsRunning() bool {
	rp.mu.RLock()
	defer rp.mu.RUnlock()
	return rp.running
}

func (rp *RoomPoller) pollLoop() {
	defer rp.wg.Done()

	ticker := time.NewTicker(rp.interval)
	defer ticker.Stop()

	for {
		select {
		case <-rp.ctx.Done():
			return
		case <-ticker.C:
			rp.pollOnce()
		}
	}
}

// pollOnce runs a single poll cycle. Failures are logged and swallowed: one
// bad cycle must never halt the timer or reach the user.
func (rp *RoomPoller) pollOnce() {
	ctx, cancel := context.WithTimeout(rp.ctx, rp.pollTimeout)
	defer cancel()

	start := time.Now()
	watermark := rp.store.Watermark()

	var candidates []models.Message
	err := rp.breaker.Execute(ctx, func(ctx context.Context) error {
		var fetchErr error
		candidates, fetchErr = rp.client.FetchMessagesSince(ctx, rp.roomID, watermark)
		return fetchErr
	})
	if err != nil {
		if circuitbreaker.IsOpenError(err) {
			metrics.IncrementCounter("poll_cycles_skipped", nil, "Poll cycles skipped while the backend breaker is open")
			rp.logger.WithField("room", rp.roomID).Debug("Poll cycle skipped, backend breaker open")
			return
		}
		metrics.IncrementCounter("poll_cycle_failures", nil, "Poll cycles that failed")
		rp.logger.WithError(err).WithField("room", rp.roomID).Warn("Poll cycle failed")
		return
	}

	admitted := 0
	for _, msg := range candidates {
		if rp.store.Insert(msg) {
			admitted++
		}
	}

	metrics.IncrementCounter("poll_cycles", nil, "Completed poll cycles")
	metrics.RecordTimer("poll_cycle_duration", time.Since(start), nil, "Poll cycle latency")

	if admitted > 0 {
		LogWithContext(ctx, rp.logger).WithFields(SanitizeFields(ctx, logrus.Fields{
			"room":     rp.roomID,
			"admitted": admitted,
			"fetched":  len(candidates),
		})).Debug("Poll cycle admitted new messages")
	}
}
