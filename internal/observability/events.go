package observability

import "time"

const (
	EventTypeWS       = "ws_events"
	RoutingKeyWS      = "ws_events.projects"
	RoutingKeyMessage = "chat_events.messages"
)

type EventEnvelope struct {
	EventType  string      `json:"event_type"`
	EventName  string      `json:"event_name"`
	OccurredAt time.Time   `json:"occurred_at"`
	Payload    interface{} `json:"payload"`
}

// WSPayload describes one websocket lifecycle transition.
type WSPayload struct {
	WS       WSDetails       `json:"ws"`
	Identity IdentityDetails `json:"identity"`
}

type WSDetails struct {
	Event      string `json:"event"`
	ConnID     string `json:"conn_id"`
	RoomID     string `json:"room_id,omitempty"`
	DurationMS int64  `json:"duration_ms"`
	Reason     string `json:"reason"`
}

type IdentityDetails struct {
	UserID   string `json:"user_id"`
	DeviceID string `json:"device_id"`
	IP       string `json:"ip"`
}

func BuildHeaders(requestID, traceID string) map[string]string {
	headers := map[string]string{}
	if requestID != "" {
		headers["x-request-id"] = requestID
	}
	if traceID != "" {
		headers["trace_id"] = traceID
	}
	return headers
}
