package service

import (
	"sync"
	"time"

	"kchat/internal/metrics"
	"kchat/internal/models"
)

// MessageStore holds the ordered, in-memory message sequence for one open
// room. Ordering is ascending by CreatedAt; equal timestamps keep arrival
// order. Guarded insertions go through the shared admission Guard, so the
// same server record arriving via both delivery paths is shown exactly once.
type MessageStore struct {
	mu       sync.Mutex
	guard    *Guard
	messages []models.Message
}

// NewMessageStore creates a store backed by the given admission guard. The
// guard must be the same instance every delivery path for the room uses.
func NewMessageStore(guard *Guard) *MessageStore {
	return &MessageStore{guard: guard}
}

// Insert admits a server-confirmed message through the guard and places it in
// timestamp order. It returns false when the identifier was already admitted
// or is a provisional identifier, which must go through AppendProvisional.
func (s *MessageStore) Insert(msg models.Message) bool {
	if models.IsTempID(msg.ID) {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.guard.Admit(msg.ID) {
		metrics.IncrementCounter("store_duplicates_dropped", nil, "Messages dropped by the admission guard")
		return false
	}

	// Remote messages carry no delivery state on the wire
	if msg.DeliveryState == "" {
		msg.DeliveryState = models.DeliverySent
	}

	s.insertOrdered(msg)
	metrics.IncrementCounter("store_messages_admitted", nil, "Messages admitted into the room store")
	return true
}

// AppendProvisional places a locally synthesized message at the tail without
// consulting the guard; provisional identifiers are never admitted.
func (s *MessageStore) AppendProvisional(msg models.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, msg)
}

// Resolve replaces the provisional message in place with the authoritative
// server record, keeping its index so the display never reorders. The
// permanent identifier is registered with the guard at the same moment; if a
// delivery path already admitted it, that separately inserted copy is removed
// so exactly one entry remains.
func (s *MessageStore) Resolve(tempID string, confirmed models.Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexOf(tempID)
	if idx < 0 {
		return false
	}

	s.guard.Admit(confirmed.ID)

	if dup := s.indexOf(confirmed.ID); dup >= 0 {
		s.messages = append(s.messages[:dup], s.messages[dup+1:]...)
		if dup < idx {
			idx--
		}
	}

	confirmed.DeliveryState = models.DeliverySent
	s.messages[idx] = confirmed
	return true
}

// SetState updates the delivery state of a message in place.
func (s *MessageStore) SetState(id string, state models.DeliveryState) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexOf(id)
	if idx < 0 {
		return false
	}
	s.messages[idx].DeliveryState = state
	return true
}

// Remove deletes a message from the sequence. Used only for user-initiated
// discard of failed sends; admitted identifiers stay in the guard.
func (s *MessageStore) Remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexOf(id)
	if idx < 0 {
		return false
	}
	s.messages = append(s.messages[:idx], s.messages[idx+1:]...)
	return true
}

// Get returns a copy of the message with the given identifier.
func (s *MessageStore) Get(id string) (models.Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexOf(id)
	if idx < 0 {
		return models.Message{}, false
	}
	return s.messages[idx], true
}

// Watermark returns the CreatedAt of the newest message in the store, or the
// zero time when the store is empty. Poll cycles request messages strictly
// newer than this.
func (s *MessageStore) Watermark() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.messages) == 0 {
		return time.Time{}
	}
	return s.messages[len(s.messages)-1].CreatedAt
}

// Messages returns a snapshot of the current sequence in display order.
func (s *MessageStore) Messages() []models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// Len returns the number of messages currently held.
func (s *MessageStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages)
}

// insertOrdered places msg after every entry with an equal or older timestamp.
func (s *MessageStore) insertOrdered(msg models.Message) {
	pos := len(s.messages)
	for pos > 0 && s.messages[pos-1].CreatedAt.After(msg.CreatedAt) {
		pos--
	}

	s.messages = append(s.messages, models.Message{})
	copy(s.messages[pos+1:], s.messages[pos:])
	s.messages[pos] = msg
}

func (s *MessageStore) indexOf(id string) int {
	for i := range s.messages {
		if s.messages[i].ID == id {
			return i
		}
	}
	return -1
}
