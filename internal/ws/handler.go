package ws

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel/trace"

	"project-chat/internal/middleware"
	"project-chat/internal/observability"
)

// EventPublisher forwards connection lifecycle events to the broker.
type EventPublisher interface {
	Publish(ctx context.Context, routingKey string, event any, headers map[string]string) error
}

// Handler upgrades authenticated requests into chat sessions.
type Handler struct {
	svc    *Service
	events EventPublisher
	logger *slog.Logger
}

// NewHandler constructs a Handler. events may be nil.
func NewHandler(svc *Service, events EventPublisher, logger *slog.Logger) *Handler {
	return &Handler{svc: svc, events: events, logger: logger}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handle completes the handshake. It must run behind middleware.AuthMiddleware,
// so a request without a resolved identity never reaches the upgrade.
func (h *Handler) Handle(c *gin.Context) {
	identity, ok := middleware.IdentityFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "user_id", identity.ID, "error", err)
		return
	}

	info := ConnInfo{
		RequestMeta: observability.MetaFromRequest(c.Request),
		ConnID:      newConnID(),
		UserID:      identity.ID,
		TraceID:     traceIDFrom(c.Request.Context()),
		ConnectedAt: time.Now(),
	}
	cfg := h.svc.cfg
	client := newClient(identity, info, conn, cfg.SendQueueSize, h.logger)
	session := h.svc.NewSession(client)

	observability.IncWSActive()
	observability.IncWSEvent("ws_connect")
	h.publishLifecycle("ws_connect", info, "")
	client.logger.Info("websocket connected")

	go client.writePump(cfg)
	h.readLoop(session, cfg)
}

// readLoop feeds frames to the session in arrival order until the transport
// fails or the session is closed.
func (h *Handler) readLoop(session *Session, cfg Config) {
	client := session.Client()
	conn := client.conn
	ctx := context.Background()

	var reason string
	defer func() {
		session.Close()
		observability.DecWSActive()
		observability.IncWSEvent("ws_disconnect")
		h.publishLifecycle("ws_disconnect", client.info, reason)
		client.logger.Info("websocket disconnected", "reason", reason)
	}()

	conn.SetReadLimit(cfg.MaxFrameBytes)
	_ = conn.SetReadDeadline(time.Now().Add(cfg.PongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(cfg.PongWait))
	})

	for {
		msgType, raw, err := conn.ReadMessage()
		if err != nil {
			reason = err.Error()
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				observability.IncWSEvent("ws_error")
				h.publishLifecycle("ws_error", client.info, reason)
			}
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}
		select {
		case <-client.Closed():
			reason = "closed by server"
			return
		default:
		}
		session.HandleFrame(ctx, raw)
	}
}

func (h *Handler) publishLifecycle(event string, info ConnInfo, reason string) {
	if h.events == nil {
		return
	}
	var duration int64
	if event != "ws_connect" {
		duration = info.age().Milliseconds()
	}
	envelope := observability.EventEnvelope{
		EventType:  observability.EventTypeWS,
		EventName:  event,
		OccurredAt: time.Now().UTC(),
		Payload: observability.WSPayload{
			WS: observability.WSDetails{
				Event:      event,
				ConnID:     info.ConnID,
				DurationMS: duration,
				Reason:     reason,
			},
			Identity: observability.IdentityDetails{
				UserID:   info.UserID,
				DeviceID: info.DeviceID,
				IP:       info.IP,
			},
		},
	}
	headers := observability.BuildHeaders(info.RequestID, info.TraceID)
	if err := h.events.Publish(context.Background(), observability.RoutingKeyWS, envelope, headers); err != nil {
		h.logger.Warn("failed to publish ws event", "event", event, "conn_id", info.ConnID, "error", err)
	}
}

func traceIDFrom(ctx context.Context) string {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.HasTraceID() {
		return ""
	}
	return sc.TraceID().String()
}
