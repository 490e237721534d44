package ws

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"project-chat/internal/models"
)

func TestAckResolvesOnce(t *testing.T) {
	client := newTestClient("alice", 4)
	ack := newAck(client, "a1")

	assert.False(t, ack.Resolved())
	ack.Succeed(RoomAck{RoomID: "p1", Success: true})
	ack.Fail(errors.New("late failure"))
	ack.Succeed(RoomAck{RoomID: "p2", Success: true})
	assert.True(t, ack.Resolved())

	f := nextFrame(t, client)
	assert.Equal(t, models.EventAck, f.Event)
	assert.Equal(t, "a1", f.AckID)
	var payload RoomAck
	require.NoError(t, json.Unmarshal(f.Data, &payload))
	assert.Equal(t, "p1", payload.RoomID)
	assertNoFrame(t, client)
}

func TestAckConcurrentResolutionSendsOneFrame(t *testing.T) {
	client := newTestClient("alice", 64)
	ack := newAck(client, "a1")

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				ack.Succeed(RoomAck{RoomID: "p1", Success: true})
				return
			}
			ack.Fail(errNotAMember)
		}(i)
	}
	wg.Wait()

	assert.True(t, ack.Resolved())
	f := nextFrame(t, client)
	assert.Equal(t, "a1", f.AckID)
	assertNoFrame(t, client)
}

func TestAckFailureCarriesCode(t *testing.T) {
	client := newTestClient("alice", 4)
	newAck(client, "a1").Fail(errNotAMember)

	f := nextFrame(t, client)
	assert.Equal(t, "a1", f.AckID)
	var payload models.ErrorPayload
	require.NoError(t, json.Unmarshal(f.Data, &payload))
	assert.Equal(t, string(KindNotAMember), payload.Code)
	assert.Equal(t, "you are not a member of this project", payload.Error)
}

func TestAckWithoutID(t *testing.T) {
	client := newTestClient("alice", 4)

	newAck(client, "").Succeed(RoomAck{RoomID: "p1", Success: true})
	assertNoFrame(t, client)

	newAck(client, "").Fail(missingField("roomId"))
	f := nextFrame(t, client)
	assert.Equal(t, models.EventChatError, f.Event)
	assert.Empty(t, f.AckID)
	var payload models.ErrorPayload
	require.NoError(t, json.Unmarshal(f.Data, &payload))
	assert.Equal(t, string(KindMissingField), payload.Code)
}

func TestAsActionErrorHidesInternalCause(t *testing.T) {
	client := newTestClient("alice", 4)
	newAck(client, "a1").Fail(errors.New("pq: connection refused"))

	var payload models.ErrorPayload
	require.NoError(t, json.Unmarshal(nextFrame(t, client).Data, &payload))
	assert.Equal(t, string(KindInternal), payload.Code)
	assert.Equal(t, "internal server error", payload.Error)
	assert.Empty(t, payload.Details)
}
