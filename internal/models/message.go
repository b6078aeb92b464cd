package models

import (
	"strings"
	"time"
)

// DeliveryState tracks a locally originated message through its send lifecycle.
// Messages observed from other participants are always considered sent on arrival.
type DeliveryState string

const (
	DeliverySending DeliveryState = "sending"
	DeliverySent    DeliveryState = "sent"
	DeliveryFailed  DeliveryState = "failed"
)

// TempIDPrefix marks client-generated provisional identifiers. A message keeps
// a temp ID only until the backend echoes the authoritative record.
const TempIDPrefix = "temp-"

// IsTempID reports whether id is a client-generated provisional identifier.
func IsTempID(id string) bool {
	return strings.HasPrefix(id, TempIDPrefix)
}

// Message is one chat message as held by the room message store.
type Message struct {
	ID            string        `json:"id"`
	RoomID        string        `json:"roomId"`
	AuthorID      string        `json:"authorId"`
	Body          string        `json:"body,omitempty"`
	AttachmentURL *string       `json:"attachmentUrl,omitempty"`
	CreatedAt     time.Time     `json:"createdAt"`
	DeliveryState DeliveryState `json:"deliveryState,omitempty"`
}

// SendMessageRequest is the payload accepted by the message write endpoint.
type SendMessageRequest struct {
	RoomID        string  `json:"roomId"`
	AuthorID      string  `json:"authorId"`
	Body          string  `json:"body,omitempty"`
	AttachmentURL *string `json:"attachmentUrl,omitempty"`
}
