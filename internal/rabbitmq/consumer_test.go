package rabbitmq

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingInvalidator struct {
	calls [][2]string
}

func (r *recordingInvalidator) Invalidate(userID, roomID string) {
	r.calls = append(r.calls, [2]string{userID, roomID})
}

func TestApplyMembershipChange(t *testing.T) {
	inv := &recordingInvalidator{}

	require.NoError(t, ApplyMembershipChange([]byte(`{"user_id":"u1","room_id":"p1","action":"removed"}`), inv))
	assert.Equal(t, [][2]string{{"u1", "p1"}}, inv.calls)

	assert.Error(t, ApplyMembershipChange([]byte(`{"user_id":"u1"}`), inv))
	assert.Error(t, ApplyMembershipChange([]byte(`not json`), inv))
	assert.Len(t, inv.calls, 1)
}

func TestNewPublisherFallsBackToNoop(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	p := NewPublisher("", "chat.events", logger)
	assert.Equal(t, "noop", PublisherMode(p))
	assert.Equal(t, "empty amqp url", PublisherNoopReason(p))
	assert.NoError(t, p.Publish(context.Background(), "ws_events.projects", map[string]string{"a": "b"}, nil))
	assert.NoError(t, p.Close())
}

func TestNewMembershipConsumerRequiresURL(t *testing.T) {
	_, err := NewMembershipConsumer("", "chat.events", "q", "membership.changed", slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.Error(t, err)
}
