package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"project-chat/internal/membership"
	"project-chat/internal/models"
	"project-chat/internal/observability"
	"project-chat/internal/repositories"
	"project-chat/internal/telemetry"
)

var tracer = otel.Tracer("project-chat/ws")

// Service holds the collaborators shared by every session.
type Service struct {
	hub      *Hub
	members  membership.Checker
	messages repositories.MessageLog
	audit    *telemetry.AuditEmitter
	logger   *slog.Logger
	cfg      Config
	now      func() time.Time

	liveMu sync.Mutex
	live   map[*Session]struct{}
}

// NewService constructs a Service.
func NewService(hub *Hub, members membership.Checker, messages repositories.MessageLog, audit *telemetry.AuditEmitter, logger *slog.Logger, cfg Config) *Service {
	return &Service{
		hub:      hub,
		members:  members,
		messages: messages,
		audit:    audit,
		logger:   logger,
		cfg:      cfg.withDefaults(),
		now:      time.Now,
		live:     make(map[*Session]struct{}),
	}
}

// Hub returns the room registry.
func (s *Service) Hub() *Hub { return s.hub }

// NewSession starts the state machine of an authenticated connection.
func (s *Service) NewSession(client *Client) *Session {
	session := &Session{Service: s, client: client, logger: client.logger}
	s.liveMu.Lock()
	s.live[session] = struct{}{}
	s.liveMu.Unlock()
	return session
}

// CloseAll closes every live session, so each leaves its rooms before the
// process stops. It returns the number of sessions closed.
func (s *Service) CloseAll() int {
	s.liveMu.Lock()
	sessions := make([]*Session, 0, len(s.live))
	for session := range s.live {
		sessions = append(sessions, session)
	}
	s.liveMu.Unlock()

	for _, session := range sessions {
		session.Close()
	}
	return len(sessions)
}

// Session is the per-connection state machine. It is created authenticated
// (the handshake already resolved the identity) and ends in a terminal
// closed state. Frames are handled one at a time, in arrival order.
type Session struct {
	*Service
	client *Client
	logger *slog.Logger

	mu     sync.Mutex
	closed bool
}

// Client returns the session's connection.
func (s *Session) Client() *Client { return s.client }

// HandleFrame processes one raw inbound frame. Frames that arrive after Close
// are ignored.
func (s *Session) HandleFrame(ctx context.Context, raw []byte) {
	if s.isClosed() {
		return
	}

	var frame models.InboundFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		s.client.Emit(models.EventChatError, models.ErrorPayload{
			Error:   "malformed frame",
			Code:    string(KindInvalidField),
			Details: err.Error(),
		})
		return
	}

	ack := newAck(s.client, frame.AckID)
	action, err := decodeAction(frame)
	if err != nil {
		ack.Fail(err)
		observability.ObserveAction(actionLabel(frame.Event), string(asActionError(err).Kind), 0)
		return
	}
	s.execute(ctx, action, ack)
}

// execute runs action and resolves ack exactly once, whatever happens inside
// the handler.
func (s *Session) execute(ctx context.Context, action Action, ack *Ack) {
	start := s.now()
	name := action.action()

	ctx, cancel := context.WithTimeout(ctx, s.cfg.ActionTimeout)
	defer cancel()
	ctx, span := tracer.Start(ctx, "chat."+name, trace.WithAttributes(
		attribute.String("chat.user_id", s.client.identity.ID),
		attribute.String("chat.conn_id", s.client.id),
	))
	defer span.End()

	result, err := s.safeDispatch(ctx, action)
	outcome := "ok"
	if err != nil {
		ae := asActionError(err)
		outcome = string(ae.Kind)
		span.SetStatus(codes.Error, ae.Message)
		span.RecordError(err)
		if ae.Kind == KindInternal {
			s.logger.Error("chat action failed", "action", name, "error", err)
		} else {
			s.logger.Debug("chat action rejected", "action", name, "kind", ae.Kind, "message", ae.Message)
		}
		ack.Fail(ae)
	} else {
		ack.Succeed(result)
	}
	observability.ObserveAction(name, outcome, s.now().Sub(start))
}

func (s *Session) safeDispatch(ctx context.Context, action Action) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = internalError(fmt.Errorf("panic in %s handler: %v", action.action(), r))
		}
	}()
	return s.dispatch(ctx, action)
}

func (s *Session) dispatch(ctx context.Context, action Action) (any, error) {
	switch a := action.(type) {
	case JoinAction:
		return s.join(ctx, a)
	case LeaveAction:
		return s.leave(ctx, a)
	case SendAction:
		return s.sendMessage(ctx, a)
	case TypingAction:
		return s.typing(ctx, a)
	case MarkSeenAction:
		return s.markSeen(ctx, a)
	default:
		return nil, internalError(fmt.Errorf("unhandled action %T", action))
	}
}

func (s *Session) authorize(ctx context.Context, roomID string) error {
	trace.SpanFromContext(ctx).SetAttributes(attribute.String("chat.room_id", roomID))
	if s.members.IsMember(ctx, s.client.identity.ID, roomID) {
		return nil
	}
	s.audit.Emit(ctx, telemetry.LevelError, "not a member", s.client.info.RequestID, s.client.identity.ID, roomID)
	return errNotAMember
}

func (s *Session) join(ctx context.Context, a JoinAction) (any, error) {
	if err := s.authorize(ctx, a.RoomID); err != nil {
		return nil, err
	}

	if s.hub.Join(s.client, a.RoomID) {
		s.hub.Broadcast(a.RoomID, models.EventUserJoined, models.PresenceEvent{
			RoomID:    a.RoomID,
			User:      s.client.identity,
			Timestamp: s.now(),
		}, s.client)
	}
	s.client.Emit(models.EventJoined, models.JoinedEvent{RoomID: a.RoomID, Success: true})

	return RoomAck{RoomID: a.RoomID, Success: true, Timestamp: s.now()}, nil
}

// leave is not membership-gated: it only unsubscribes this connection.
func (s *Session) leave(_ context.Context, a LeaveAction) (any, error) {
	if s.hub.Leave(s.client, a.RoomID) {
		s.notifyLeft(a.RoomID)
	}
	return RoomAck{RoomID: a.RoomID, Success: true, Timestamp: s.now()}, nil
}

func (s *Session) sendMessage(ctx context.Context, a SendAction) (any, error) {
	if err := s.authorize(ctx, a.RoomID); err != nil {
		return nil, err
	}

	body := strings.TrimSpace(a.Body)
	if body == "" && len(a.Attachments) == 0 {
		return nil, missingField("body")
	}
	if n := utf8.RuneCountInString(body); n > s.cfg.MaxBodyLength {
		return nil, invalidField("body", fmt.Sprintf("body is %d characters, limit is %d", n, s.cfg.MaxBodyLength))
	}

	msg, err := s.messages.Append(ctx, models.NewMessage{
		RoomID:      a.RoomID,
		SenderID:    s.client.identity.ID,
		Body:        body,
		Attachments: a.Attachments,
	})
	if err != nil {
		return nil, internalError(fmt.Errorf("append message: %w", err))
	}

	sender := s.client.identity
	msg.Sender = &sender
	s.hub.Broadcast(a.RoomID, models.EventNewMessage, models.NewMessageEvent{
		Message:       msg,
		CorrelationID: a.CorrelationID,
	}, nil)

	return SendAck{
		MessageID:     msg.ID,
		CorrelationID: a.CorrelationID,
		Success:       true,
		Timestamp:     s.now(),
	}, nil
}

func (s *Session) typing(ctx context.Context, a TypingAction) (any, error) {
	if err := s.authorize(ctx, a.RoomID); err != nil {
		return nil, err
	}

	s.hub.Broadcast(a.RoomID, models.EventUserTyping, models.TypingEvent{
		RoomID:   a.RoomID,
		User:     s.client.identity,
		IsTyping: *a.IsTyping,
	}, s.client)

	return TypingAck{RoomID: a.RoomID, IsTyping: *a.IsTyping, Success: true, Timestamp: s.now()}, nil
}

func (s *Session) markSeen(ctx context.Context, a MarkSeenAction) (any, error) {
	if err := s.authorize(ctx, a.RoomID); err != nil {
		return nil, err
	}

	_, added, err := s.messages.MarkSeen(ctx, a.RoomID, a.MessageID, s.client.identity.ID)
	if errors.Is(err, repositories.ErrMessageNotFound) {
		return nil, notFound("message")
	}
	if err != nil {
		return nil, internalError(fmt.Errorf("mark seen: %w", err))
	}

	if added {
		s.hub.Broadcast(a.RoomID, models.EventMessageSeen, models.MessageSeenEvent{
			RoomID:    a.RoomID,
			MessageID: a.MessageID,
			UserID:    s.client.identity.ID,
			Username:  s.client.identity.Username,
		}, nil)
	}

	return SeenAck{MessageID: a.MessageID, Success: true, Timestamp: s.now()}, nil
}

func (s *Session) notifyLeft(roomID string) {
	s.hub.Broadcast(roomID, models.EventUserLeft, models.PresenceEvent{
		RoomID:    roomID,
		User:      s.client.identity,
		Timestamp: s.now(),
	}, s.client)
}

// Close moves the session to its terminal state: the connection leaves every
// room, remaining members are told, and the transport is closed. Only the
// first call has an effect.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.liveMu.Lock()
	delete(s.live, s)
	s.liveMu.Unlock()

	for _, roomID := range s.hub.Disconnect(s.client) {
		s.notifyLeft(roomID)
	}
	s.client.Close()
}

func (s *Session) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func actionLabel(event string) string {
	switch event {
	case models.EventJoin, models.EventLeave, models.EventSend, models.EventTyping, models.EventMarkSeen:
		return event
	}
	return "unknown"
}
