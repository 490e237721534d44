package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"

	"project-chat/internal/membership"
	"project-chat/internal/models"
	"project-chat/internal/repositories"
	"project-chat/internal/telemetry"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 100
)

// HistoryHandler serves the message history of a project room.
type HistoryHandler struct {
	members  membership.Checker
	messages repositories.MessageLog
	users    repositories.IdentityStore
	audit    *telemetry.AuditEmitter
}

// NewHistoryHandler constructs a HistoryHandler.
func NewHistoryHandler(members membership.Checker, messages repositories.MessageLog, users repositories.IdentityStore, audit *telemetry.AuditEmitter) *HistoryHandler {
	return &HistoryHandler{members: members, messages: messages, users: users, audit: audit}
}

type historyResponse struct {
	Messages      []models.Message `json:"messages"`
	NextBefore    *time.Time       `json:"next_before"`
	NextBeforeSeq *int64           `json:"next_before_seq"`
}

// ListMessages handles GET /rooms/:room_id/messages.
// Pages are newest first. When older messages may exist, next_before and
// next_before_seq are set; passing them back as before and before_seq
// fetches the following page.
func (h *HistoryHandler) ListMessages(c *gin.Context) {
	roomID := c.Param("room_id")
	userID := c.GetString("userID")

	cursor := repositories.Cursor{Before: time.Now().UTC()}
	if raw := c.Query("before"); raw != "" {
		parsed, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid before cursor"})
			return
		}
		cursor.Before = parsed
	}
	if raw := c.Query("before_seq"); raw != "" {
		seq, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || seq <= 0 || c.Query("before") == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid before_seq cursor"})
			return
		}
		cursor.Seq = seq
	}

	limit := defaultHistoryLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = min(parsed, maxHistoryLimit)
	}

	if !h.members.IsMember(c.Request.Context(), userID, roomID) {
		h.emitAudit(c, telemetry.LevelError, "not allowed", roomID)
		c.JSON(http.StatusForbidden, gin.H{"error": "not a member"})
		return
	}

	msgs, err := h.messages.ListBefore(c.Request.Context(), roomID, cursor, limit)
	if err != nil {
		h.emitAudit(c, telemetry.LevelError, "internal error", roomID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load messages"})
		return
	}

	senders := make(map[string]models.Identity)
	for _, id := range lo.Uniq(lo.Map(msgs, func(m models.Message, _ int) string { return m.SenderID })) {
		identity, err := h.users.FindByID(c.Request.Context(), id)
		if errors.Is(err, repositories.ErrUserNotFound) {
			continue
		}
		if err != nil {
			c.JSON(http.StatusBadGateway, gin.H{"error": "failed to load senders"})
			return
		}
		senders[id] = identity
	}
	for i := range msgs {
		if identity, ok := senders[msgs[i].SenderID]; ok {
			msgs[i].Sender = &identity
		}
	}

	resp := historyResponse{Messages: msgs}
	if resp.Messages == nil {
		resp.Messages = []models.Message{}
	}
	if len(msgs) == limit {
		last := msgs[len(msgs)-1]
		resp.NextBefore = &last.CreatedAt
		resp.NextBeforeSeq = &last.Seq
	}
	c.JSON(http.StatusOK, resp)
}

func (h *HistoryHandler) emitAudit(c *gin.Context, level, text, roomID string) {
	h.audit.Emit(c.Request.Context(), level, text, requestIDFromContext(c), userIDFromContext(c), roomID)
}
