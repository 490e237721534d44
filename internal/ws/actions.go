package ws

import (
	"encoding/json"
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"project-chat/internal/models"
)

// Action is one inbound client request. The set of implementations is closed;
// Session.dispatch handles each of them.
type Action interface {
	action() string
}

type JoinAction struct {
	RoomID string `json:"roomId" validate:"required"`
}

type LeaveAction struct {
	RoomID string `json:"roomId" validate:"required"`
}

type SendAction struct {
	RoomID        string              `json:"roomId" validate:"required"`
	Body          string              `json:"body"`
	CorrelationID string              `json:"correlationId" validate:"max=128"`
	Attachments   []models.Attachment `json:"attachments" validate:"max=10,dive"`
}

type TypingAction struct {
	RoomID   string `json:"roomId" validate:"required"`
	IsTyping *bool  `json:"isTyping" validate:"required"`
}

type MarkSeenAction struct {
	RoomID    string `json:"roomId" validate:"required"`
	MessageID string `json:"messageId" validate:"required"`
}

func (JoinAction) action() string     { return models.EventJoin }
func (LeaveAction) action() string    { return models.EventLeave }
func (SendAction) action() string     { return models.EventSend }
func (TypingAction) action() string   { return models.EventTyping }
func (MarkSeenAction) action() string { return models.EventMarkSeen }

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// decodeAction turns a frame into a validated Action.
func decodeAction(frame models.InboundFrame) (Action, error) {
	var action Action
	switch frame.Event {
	case models.EventJoin:
		action = &JoinAction{}
	case models.EventLeave:
		action = &LeaveAction{}
	case models.EventSend:
		action = &SendAction{}
	case models.EventTyping:
		action = &TypingAction{}
	case models.EventMarkSeen:
		action = &MarkSeenAction{}
	case "":
		return nil, missingField("event")
	default:
		return nil, invalidField("event", "unknown event "+frame.Event)
	}

	if len(frame.Data) > 0 && string(frame.Data) != "null" {
		if err := json.Unmarshal(frame.Data, action); err != nil {
			return nil, invalidField("payload", err.Error())
		}
	}

	if err := validate.Struct(action); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) || len(verrs) == 0 {
			return nil, invalidField("payload", err.Error())
		}
		first := verrs[0]
		if first.Tag() == "required" {
			return nil, missingField(first.Field())
		}
		return nil, invalidField(first.Field(), first.Error())
	}

	return deref(action), nil
}

func deref(action Action) Action {
	switch a := action.(type) {
	case *JoinAction:
		return *a
	case *LeaveAction:
		return *a
	case *SendAction:
		return *a
	case *TypingAction:
		return *a
	case *MarkSeenAction:
		return *a
	}
	return action
}
