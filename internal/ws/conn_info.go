package ws

import (
	"time"

	"project-chat/internal/observability"
)

// ConnInfo is the handshake metadata attached to lifecycle events.
type ConnInfo struct {
	observability.RequestMeta
	ConnID      string
	UserID      string
	TraceID     string
	ConnectedAt time.Time
}

func (i ConnInfo) age() time.Duration {
	if i.ConnectedAt.IsZero() {
		return 0
	}
	return time.Since(i.ConnectedAt)
}
