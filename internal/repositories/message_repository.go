package repositories

import (
	"context"
	"database/sql"
	"errors"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"project-chat/internal/models"
)

var ErrMessageNotFound = errors.New("message not found")

const messageColumns = `id, seq, room_id, sender_id, body, attachments, seen_by, created_at`

// Cursor marks a position in a room's history. Messages sharing a created_at
// are ordered by Seq, so a page boundary never skips one of them. A zero Seq
// means every message at Before is excluded.
type Cursor struct {
	Before time.Time
	Seq    int64
}

func (c Cursor) seq() int64 {
	if c.Seq <= 0 {
		return math.MaxInt64
	}
	return c.Seq
}

// MessageLog is the durable, append-only chat message store.
type MessageLog interface {
	Append(ctx context.Context, msg models.NewMessage) (models.Message, error)
	MarkSeen(ctx context.Context, roomID, messageID, userID string) (models.Message, bool, error)
	GetMessage(ctx context.Context, messageID string) (models.Message, error)
	ListBefore(ctx context.Context, roomID string, cursor Cursor, limit int) ([]models.Message, error)
}

// MessageRepo is a sqlx-backed MessageLog.
type MessageRepo struct {
	db *sqlx.DB
}

// NewMessageRepo constructs MessageRepo.
func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

// Append stores a message. The database assigns created_at and the sender is the
// only initial reader.
func (r *MessageRepo) Append(ctx context.Context, in models.NewMessage) (models.Message, error) {
	var msg models.Message
	err := r.db.QueryRowxContext(ctx,
		`INSERT INTO chat_messages (id, room_id, sender_id, body, attachments, seen_by)
         VALUES ($1, $2, $3, $4, $5, $6)
         RETURNING `+messageColumns,
		uuid.NewString(), in.RoomID, in.SenderID, in.Body, in.Attachments, pq.Array([]string{in.SenderID})).
		StructScan(&msg)
	return msg, err
}

// MarkSeen adds userID to the message's read-by set if absent. A message that
// belongs to another room is reported as ErrMessageNotFound. The boolean
// reports whether the set changed.
func (r *MessageRepo) MarkSeen(ctx context.Context, roomID, messageID, userID string) (models.Message, bool, error) {
	var msg models.Message
	err := r.db.QueryRowxContext(ctx,
		`UPDATE chat_messages SET seen_by = array_append(seen_by, $3)
         WHERE id=$1 AND room_id=$2 AND NOT ($3 = ANY(seen_by))
         RETURNING `+messageColumns,
		messageID, roomID, userID).
		StructScan(&msg)
	if err == nil {
		return msg, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, false, err
	}

	// either missing or already seen
	msg, err = r.GetMessage(ctx, messageID)
	if err != nil {
		return models.Message{}, false, err
	}
	if msg.RoomID != roomID {
		return models.Message{}, false, ErrMessageNotFound
	}
	return msg, false, nil
}

// GetMessage retrieves a single message.
func (r *MessageRepo) GetMessage(ctx context.Context, messageID string) (models.Message, error) {
	var msg models.Message
	err := r.db.GetContext(ctx, &msg, `SELECT `+messageColumns+` FROM chat_messages WHERE id=$1`, messageID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, ErrMessageNotFound
	}
	return msg, err
}

// ListBefore returns up to limit messages of a room positioned strictly before
// cursor, newest first.
func (r *MessageRepo) ListBefore(ctx context.Context, roomID string, cursor Cursor, limit int) ([]models.Message, error) {
	var msgs []models.Message
	err := r.db.SelectContext(ctx, &msgs,
		`SELECT `+messageColumns+` FROM chat_messages
         WHERE room_id=$1 AND (created_at, seq) < ($2, $3)
         ORDER BY created_at DESC, seq DESC
         LIMIT $4`,
		roomID, cursor.Before, cursor.seq(), limit)
	return msgs, err
}
