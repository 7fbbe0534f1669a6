package realtime

import (
	"time"

	"chatsync/internal/models"
)

// EventType represents the different frame types on the change feed
type EventType string

const (
	// Client to server
	EventSubscribe   EventType = "subscribe"
	EventUnsubscribe EventType = "unsubscribe"

	// Server to client
	EventSubscribed   EventType = "subscribed"
	EventUnsubscribed EventType = "unsubscribed"
	EventChange       EventType = "change"
	EventError        EventType = "error"
)

// Error codes sent in ErrorPayload
const (
	CodeBadFrame     = "bad_frame"
	CodeInvalidScope = "invalid_scope"
	CodeForbidden    = "forbidden"
	CodeInternal     = "internal"
)

// WSMessage represents an outgoing frame
type WSMessage struct {
	Type      EventType   `json:"type"`
	Ref       string      `json:"ref,omitempty"`
	Payload   interface{} `json:"payload,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// IncomingMessage represents frames received from clients
type IncomingMessage struct {
	Type  EventType    `json:"type"`
	Ref   string       `json:"ref"`
	Scope models.Scope `json:"scope"`
}

// ErrorPayload represents error event payload
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
