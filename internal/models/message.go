package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// Message is a chat message posted to a project room.
type Message struct {
	ID          string         `db:"id" json:"id"`
	Seq         int64          `db:"seq" json:"seq"`
	RoomID      string         `db:"room_id" json:"roomId"`
	SenderID    string         `db:"sender_id" json:"senderId"`
	Sender      *Identity      `db:"-" json:"sender,omitempty"`
	Body        string         `db:"body" json:"body"`
	Attachments Attachments    `db:"attachments" json:"attachments,omitempty"`
	SeenBy      pq.StringArray `db:"seen_by" json:"seenBy"`
	CreatedAt   time.Time      `db:"created_at" json:"createdAt"`
}

// NewMessage is the input of a message append.
type NewMessage struct {
	RoomID      string
	SenderID    string
	Body        string
	Attachments Attachments
}

// Attachment references an already uploaded file.
type Attachment struct {
	URL      string `json:"url" validate:"required"`
	Name     string `json:"name,omitempty"`
	MimeType string `json:"mimeType,omitempty"`
	Size     int64  `json:"size,omitempty"`
}

// Attachments is stored as a JSONB column.
type Attachments []Attachment

// Value implements driver.Valuer.
func (a Attachments) Value() (driver.Value, error) {
	if a == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(a)
}

// Scan implements sql.Scanner.
func (a *Attachments) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*a = nil
		return nil
	case []byte:
		return json.Unmarshal(v, a)
	case string:
		return json.Unmarshal([]byte(v), a)
	default:
		return fmt.Errorf("attachments: unsupported scan type %T", src)
	}
}
