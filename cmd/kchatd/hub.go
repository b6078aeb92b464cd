package main

import (
	"sync"

	"kchat/internal/constants"
	"kchat/internal/metrics"
	"kchat/internal/models"

	"github.com/sirupsen/logrus"
)

// hubSubscriber is one websocket client's event feed. The channel is buffered;
// a subscriber that stops draining gets dropped rather than stalling the room.
type hubSubscriber struct {
	roomID string
	events chan models.RealtimeEvent
}

// Events returns the subscriber's event feed. Closed when the hub drops the
// subscriber.
func (s *hubSubscriber) Events() <-chan models.RealtimeEvent {
	return s.events
}

// Hub fans newly persisted messages out to the websocket subscribers of each
// room.
type Hub struct {
	mu     sync.RWMutex
	logger *logrus.Logger
	rooms  map[string]map[*hubSubscriber]struct{}
}

func NewHub(logger *logrus.Logger) *Hub {
	return &Hub{
		logger: logger,
		rooms:  make(map[string]map[*hubSubscriber]struct{}),
	}
}

// Subscribe registers a new subscriber for the room.
func (h *Hub) Subscribe(roomID string) *hubSubscriber {
	sub := &hubSubscriber{
		roomID: roomID,
		events: make(chan models.RealtimeEvent, constants.HubSendBufferSize),
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.rooms[roomID] == nil {
		h.rooms[roomID] = make(map[*hubSubscriber]struct{})
	}
	h.rooms[roomID][sub] = struct{}{}

	metrics.SetGauge("hub_subscribers", float64(h.subscriberCountLocked()), nil, "Active websocket subscribers")
	return sub
}

// Unsubscribe removes the subscriber and closes its feed. Safe to call after
// the hub already dropped it.
func (h *Hub) Unsubscribe(sub *hubSubscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(sub)
}

// Broadcast delivers an insert event for msg to every subscriber of its room.
// Subscribers with a full buffer are dropped.
func (h *Hub) Broadcast(msg models.Message) {
	event := models.RealtimeEvent{
		Type:   models.EventTypeInsert,
		Record: msg,
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	var stalled []*hubSubscriber
	for sub := range h.rooms[msg.RoomID] {
		select {
		case sub.events <- event:
		default:
			stalled = append(stalled, sub)
		}
	}

	for _, sub := range stalled {
		h.logger.WithField("room", msg.RoomID).Warn("Dropping stalled websocket subscriber")
		metrics.IncrementCounter("hub_subscribers_dropped", map[string]string{"room": msg.RoomID}, "Subscribers dropped for slow consumption")
		h.removeLocked(sub)
	}

	metrics.IncrementCounter("hub_events_broadcast", map[string]string{"room": msg.RoomID}, "Insert events fanned out")
}

// Close drops every subscriber. Used during shutdown.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, subs := range h.rooms {
		for sub := range subs {
			close(sub.events)
		}
	}
	h.rooms = make(map[string]map[*hubSubscriber]struct{})
	metrics.SetGauge("hub_subscribers", 0, nil, "Active websocket subscribers")
}

func (h *Hub) removeLocked(sub *hubSubscriber) {
	subs, ok := h.rooms[sub.roomID]
	if !ok {
		return
	}
	if _, ok := subs[sub]; !ok {
		return
	}

	delete(subs, sub)
	close(sub.events)
	if len(subs) == 0 {
		delete(h.rooms, sub.roomID)
	}

	metrics.SetGauge("hub_subscribers", float64(h.subscriberCountLocked()), nil, "Active websocket subscribers")
}

func (h *Hub) subscriberCountLocked() int {
	total := 0
	for _, subs := range h.rooms {
		total += len(subs)
	}
	return total
}
