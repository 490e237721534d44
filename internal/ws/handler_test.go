package ws

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"project-chat/internal/auth"
	"project-chat/internal/middleware"
	"project-chat/internal/mocks"
	"project-chat/internal/models"
)

type wsServer struct {
	url       string
	resolver  *mocks.IdentityResolverMock
	members   *mocks.MembershipCheckerMock
	messages  *mocks.MessageLogMock
	publisher *mocks.PublisherMock
}

func startServer(t *testing.T) *wsServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	s := &wsServer{
		resolver:  new(mocks.IdentityResolverMock),
		members:   new(mocks.MembershipCheckerMock),
		messages:  new(mocks.MessageLogMock),
		publisher: new(mocks.PublisherMock),
	}
	s.publisher.On("Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()

	svc := NewService(NewHub(discardLogger), s.members, s.messages, nil, discardLogger, Config{})
	handler := NewHandler(svc, s.publisher, discardLogger)

	router := gin.New()
	router.GET("/ws", middleware.AuthMiddleware(s.resolver, discardLogger), handler.Handle)
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	s.url = "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	return s
}

func (s *wsServer) user(token, userID string) {
	s.resolver.On("ResolveIdentity", mock.Anything, token).
		Return(models.Identity{ID: userID, Username: userID}, nil)
}

func (s *wsServer) dial(t *testing.T, token string) *websocket.Conn {
	t.Helper()
	conn, resp, err := websocket.DefaultDialer.Dial(s.url+"?token="+token, nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func writeFrame(t *testing.T, conn *websocket.Conn, event, ackID string, data any) {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(models.InboundFrame{Event: event, AckID: ackID, Data: raw}))
}

// readEvent returns the next frame with the given event name, skipping others.
func readEvent(t *testing.T, conn *websocket.Conn, event string) testFrame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		var f testFrame
		require.NoError(t, conn.ReadJSON(&f))
		if f.Event == event {
			return f
		}
	}
}

func readAck(t *testing.T, conn *websocket.Conn, ackID string) testFrame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		var f testFrame
		require.NoError(t, conn.ReadJSON(&f))
		if f.Event == models.EventAck && f.AckID == ackID {
			return f
		}
	}
}

func TestHandshakeRejectsBadCredentials(t *testing.T) {
	s := startServer(t)
	s.resolver.On("ResolveIdentity", mock.Anything, "forged").Return(nil, auth.ErrInvalidToken)

	_, resp, err := websocket.DefaultDialer.Dial(s.url+"?token=forged", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	_, resp, err = websocket.DefaultDialer.Dial(s.url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestHandshakeCollaboratorOutage(t *testing.T) {
	s := startServer(t)
	s.resolver.On("ResolveIdentity", mock.Anything, "tok").Return(nil, assert.AnError)

	_, resp, err := websocket.DefaultDialer.Dial(s.url+"?token=tok", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestChatOverWebsocket(t *testing.T) {
	s := startServer(t)
	s.user("tok-a", "alice")
	s.user("tok-b", "bob")
	s.members.On("IsMember", mock.Anything, mock.Anything, "p1").Return(true)
	for i, body := range []string{"M1", "M2"} {
		stored := models.Message{ID: body, RoomID: "p1", SenderID: "alice", Body: body, CreatedAt: time.Now().Add(time.Duration(i) * time.Millisecond)}
		s.messages.On("Append", mock.Anything, mock.MatchedBy(func(in models.NewMessage) bool { return in.Body == body })).
			Return(stored, nil).Once()
	}

	alice := s.dial(t, "tok-a")
	bob := s.dial(t, "tok-b")

	writeFrame(t, alice, models.EventJoin, "a1", JoinAction{RoomID: "p1"})
	assert.True(t, decode[RoomAck](t, readAck(t, alice, "a1")).Success)

	writeFrame(t, bob, models.EventJoin, "b1", JoinAction{RoomID: "p1"})
	assert.True(t, decode[RoomAck](t, readAck(t, bob, "b1")).Success)
	joined := readEvent(t, alice, models.EventUserJoined)
	assert.Equal(t, "bob", decode[models.PresenceEvent](t, joined).User.ID)

	writeFrame(t, alice, models.EventSend, "s1", SendAction{RoomID: "p1", Body: "M1"})
	writeFrame(t, alice, models.EventSend, "s2", SendAction{RoomID: "p1", Body: "M2"})

	first := decode[models.NewMessageEvent](t, readEvent(t, bob, models.EventNewMessage))
	second := decode[models.NewMessageEvent](t, readEvent(t, bob, models.EventNewMessage))
	assert.Equal(t, "M1", first.Message.Body)
	assert.Equal(t, "M2", second.Message.Body)

	assert.Equal(t, "M2", decode[SendAck](t, readAck(t, alice, "s2")).MessageID)

	require.NoError(t, bob.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
	left := readEvent(t, alice, models.EventUserLeft)
	assert.Equal(t, "bob", decode[models.PresenceEvent](t, left).User.ID)
}

func TestNonMemberOverWebsocket(t *testing.T) {
	s := startServer(t)
	s.user("tok-m", "mallory")
	s.members.On("IsMember", mock.Anything, "mallory", "p1").Return(false)

	mallory := s.dial(t, "tok-m")
	writeFrame(t, mallory, models.EventSend, "s1", SendAction{RoomID: "p1", Body: "hi"})

	payload := decode[models.ErrorPayload](t, readAck(t, mallory, "s1"))
	assert.Equal(t, string(KindNotAMember), payload.Code)
	s.messages.AssertNotCalled(t, "Append", mock.Anything, mock.Anything)
}
