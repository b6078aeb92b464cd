package models

// EventType identifies the kind of realtime event pushed to room subscribers.
type EventType string

const (
	EventTypeInsert EventType = "insert"
)

// RealtimeEvent is one push frame emitted on a room channel.
type RealtimeEvent struct {
	Type   EventType `json:"type"`
	Record Message   `json:"record"`
}

// ChannelState describes the health of a realtime subscription. State changes
// are observed for diagnostics only; the poller provides the delivery fallback.
type ChannelState string

const (
	ChannelConnected ChannelState = "connected"
	ChannelDegraded  ChannelState = "degraded"
	ChannelClosed    ChannelState = "closed"
)
