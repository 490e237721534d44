package models

import (
	"encoding/json"
	"time"
)

// Wire event names.
const (
	EventJoin     = "join"
	EventLeave    = "leave"
	EventSend     = "send"
	EventTyping   = "typing"
	EventMarkSeen = "markSeen"

	EventAck         = "ack"
	EventJoined      = "joined"
	EventUserJoined  = "userJoined"
	EventUserLeft    = "userLeft"
	EventNewMessage  = "newMessage"
	EventUserTyping  = "userTyping"
	EventMessageSeen = "messageSeen"
	EventChatError   = "chatError"
)

// InboundFrame is a client to server frame. AckID is optional; when present the
// server answers with exactly one ack frame carrying the same id.
type InboundFrame struct {
	Event string          `json:"event"`
	AckID string          `json:"ackId,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// OutboundFrame is a server to client frame, either an ack or a room event.
type OutboundFrame struct {
	Event string `json:"event"`
	AckID string `json:"ackId,omitempty"`
	Data  any    `json:"data"`
}

// JoinedEvent confirms a join to the joining connection.
type JoinedEvent struct {
	RoomID  string `json:"roomId"`
	Success bool   `json:"success"`
}

// PresenceEvent announces that a user joined or left a room.
type PresenceEvent struct {
	RoomID    string    `json:"roomId"`
	User      Identity  `json:"user"`
	Timestamp time.Time `json:"timestamp"`
}

// NewMessageEvent carries a persisted message to every room subscriber.
type NewMessageEvent struct {
	Message       Message `json:"message"`
	CorrelationID string  `json:"correlationId,omitempty"`
}

// TypingEvent carries a typing indicator change.
type TypingEvent struct {
	RoomID   string   `json:"roomId"`
	User     Identity `json:"user"`
	IsTyping bool     `json:"isTyping"`
}

// MessageSeenEvent announces a new reader of a message.
type MessageSeenEvent struct {
	RoomID    string `json:"roomId"`
	MessageID string `json:"messageId"`
	UserID    string `json:"userId"`
	Username  string `json:"username"`
}

// ErrorPayload is the body of an error ack or an unsolicited chatError.
type ErrorPayload struct {
	Error   string `json:"error"`
	Code    string `json:"code"`
	Details string `json:"details,omitempty"`
}

// MembershipChange is consumed from the broker when a project membership changes.
type MembershipChange struct {
	UserID string `json:"user_id"`
	RoomID string `json:"room_id"`
	Action string `json:"action,omitempty"`
}
