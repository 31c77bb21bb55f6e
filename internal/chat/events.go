package chat

import "encoding/json"

// Outbound event names.
const (
	EventSession       = "session"
	EventUserJoined    = "user_joined"
	EventUserLeft      = "user_left"
	EventRosterUpdated = "roster_updated"
	EventMessage       = "message"
	EventHistory       = "history"
	EventError         = "error"
)

// Inbound event names.
const (
	InboundMessage      = "message"
	InboundImageMessage = "image_message"
	InboundHistory      = "history"
)

// Event is the envelope exchanged with clients in both directions.
type Event struct {
	Name string `json:"event"`
	Data any    `json:"data,omitempty"`
}

// Inbound is a decoded client frame whose payload is parsed by the matching handler.
type Inbound struct {
	Name string          `json:"event"`
	Data json.RawMessage `json:"data,omitempty"`
}

// UserPayload names one participant.
type UserPayload struct {
	Username string `json:"username"`
}

// RosterPayload lists live display names in join order.
type RosterPayload struct {
	Users []string `json:"users"`
}

// MessagePayload carries rendered markup, never the raw source.
type MessagePayload struct {
	Username  string `json:"username"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

// HistoryPayload lists recent messages, oldest first.
type HistoryPayload struct {
	Messages []MessagePayload `json:"messages"`
}

// ErrorPayload is a notice sent to a single connection.
type ErrorPayload struct {
	Message string `json:"message"`
}

type textMessageRequest struct {
	Message string `json:"message"`
}

type imageMessageRequest struct {
	URL string `json:"url"`
}
