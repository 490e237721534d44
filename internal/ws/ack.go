package ws

import (
	"sync"
	"time"

	"project-chat/internal/models"
)

// RoomAck answers join and leave.
type RoomAck struct {
	RoomID    string    `json:"roomId"`
	Success   bool      `json:"success"`
	Timestamp time.Time `json:"timestamp"`
}

// SendAck answers send.
type SendAck struct {
	MessageID     string    `json:"messageId"`
	CorrelationID string    `json:"correlationId,omitempty"`
	Success       bool      `json:"success"`
	Timestamp     time.Time `json:"timestamp"`
}

// TypingAck answers typing.
type TypingAck struct {
	RoomID    string    `json:"roomId"`
	IsTyping  bool      `json:"isTyping"`
	Success   bool      `json:"success"`
	Timestamp time.Time `json:"timestamp"`
}

// SeenAck answers markSeen.
type SeenAck struct {
	MessageID string    `json:"messageId"`
	Success   bool      `json:"success"`
	Timestamp time.Time `json:"timestamp"`
}

// Ack is the completion handle of one client action. It resolves at most
// once; later calls are ignored. With an empty id the outcome is not sent
// as an ack: failures become an unsolicited chatError instead and successes
// are silent.
type Ack struct {
	id       string
	client   *Client
	mu       sync.Mutex
	resolved bool
}

func newAck(client *Client, id string) *Ack {
	return &Ack{id: id, client: client}
}

// Succeed resolves the ack with an action-specific payload.
func (a *Ack) Succeed(payload any) {
	a.resolve(payload, nil)
}

// Fail resolves the ack with an error payload.
func (a *Ack) Fail(err error) {
	ae := asActionError(err)
	a.resolve(nil, &models.ErrorPayload{Error: ae.Message, Code: string(ae.Kind), Details: ae.Details})
}

// Resolved reports whether a terminal response has been produced.
func (a *Ack) Resolved() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.resolved
}

func (a *Ack) resolve(payload any, failure *models.ErrorPayload) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.resolved {
		return
	}
	a.resolved = true

	switch {
	case a.id != "" && failure != nil:
		a.client.emitFrame(models.OutboundFrame{Event: models.EventAck, AckID: a.id, Data: failure})
	case a.id != "":
		a.client.emitFrame(models.OutboundFrame{Event: models.EventAck, AckID: a.id, Data: payload})
	case failure != nil:
		a.client.Emit(models.EventChatError, failure)
	}
}
