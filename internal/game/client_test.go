package game

import (
	"testing"
	"time"

	"github.com/storyloom/storyloom/internal/database"
	"github.com/storyloom/storyloom/internal/stats"
	"github.com/storyloom/storyloom/internal/testutil"
	"github.com/storyloom/storyloom/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_queueMessage(t *testing.T) {
	t.Run("successful queue", func(t *testing.T) {
		c := &Client{
			send: make(chan *ServerMessage, 1),
			log:  testutil.TestLogger(t),
		}

		res := c.queueMessage(&ServerMessage{})
		assert.True(t, res, "expected queueMessage to return true when channel is not full")

		select {
		case msg := <-c.send:
			assert.NotNil(t, msg, "expected a message to be sent to the client")
		default:
			t.Error("expected a message to be sent to the client, but none was sent")
		}
	})

	t.Run("channel full", func(t *testing.T) {
		c := &Client{
			send: make(chan *ServerMessage, 1),
			log:  testutil.TestLogger(t),
		}

		c.send <- &ServerMessage{}
		res := c.queueMessage(&ServerMessage{})
		assert.False(t, res, "expected queueMessage to return false when channel is full")
	})
}

func Test_serializeMessage(t *testing.T) {
	c := &Client{}
	message := &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        1,
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: 200,
			Data:         "test data",
		},
	}

	expected := `{"id":1,"timestamp":"` + message.Timestamp.Format(time.RFC3339Nano) +
		`","response":{"response_code":200,"data":"test data"}}`

	bytes, err := c.serializeMessage(message)
	assert.NoError(t, err, "expected no error during serialization")
	assert.Equal(t, expected, string(bytes), "expected serialized message to match the expected format")
}

func Test_stopClient(t *testing.T) {
	c := &Client{
		stop: make(chan struct{}),
	}

	c.stopClient()

	select {
	case <-c.stop:
	default:
		t.Error("expected stop channel to be closed")
	}
}

func Test_leaveAllSessions(t *testing.T) {
	sessions := []*Session{
		{
			externalId: "session1",
			leaveChan:  make(chan *ClientMessage, 1),
		},
		{
			externalId: "session2",
			leaveChan:  make(chan *ClientMessage, 1),
		},
	}

	c := &Client{
		user:     types.User{Id: 1, Username: "testuser"},
		sessions: make(map[string]*Session),
	}

	for _, session := range sessions {
		c.addSession(session)
	}

	c.leaveAllSessions()

	for _, session := range sessions {
		select {
		case msg := <-session.leaveChan:
			require.NotNil(t, msg.Leave, "expected leave message for session %s", session.externalId)
			assert.Equal(t, session.externalId, msg.Leave.SessionId)
			assert.False(t, msg.Leave.Quit, "expected connection-level leave to keep the seat")
			assert.Equal(t, c.user.Id, msg.UserId)
			assert.Equal(t, c, msg.client)
		default:
			t.Errorf("expected leave message to be sent for session %s, but it was not", session.externalId)
		}
	}
}

func Test_joinSession(t *testing.T) {
	t.Run("successful join", func(t *testing.T) {
		gs := newTestGameServer(t, &database.MockStoryLoomRepository{}, &stats.MockStatsUpdater{})
		c := NewClient(types.User{
			Id:       1,
			Username: "testuser",
		}, nil, gs, testutil.TestLogger(t))

		joinMsg := &ClientMessage{
			BaseMessage: BaseMessage{
				Id:        1,
				Timestamp: Now(),
			},
			Join:   &Join{SessionId: "test-session"},
			UserId: c.user.Id,
			client: c,
		}

		c.joinSession(joinMsg)

		select {
		case msg := <-gs.joinChan:
			require.NotNil(t, msg.Join, "expected join message to be forwarded to the game server")
			assert.Equal(t, joinMsg.Id, msg.Id)
			assert.Equal(t, joinMsg.Join.SessionId, msg.Join.SessionId)
			assert.Equal(t, c.user.Id, msg.UserId)
			assert.Equal(t, c, msg.client)
		default:
			t.Error("expected join message to be sent to game server join channel, but it was not")
		}
	})

	t.Run("join channel full", func(t *testing.T) {
		gs := newTestGameServer(t, &database.MockStoryLoomRepository{}, &stats.MockStatsUpdater{})
		gs.joinChan = make(chan *ClientMessage, 1)
		gs.joinChan <- &ClientMessage{}

		c := NewClient(types.User{
			Id:       1,
			Username: "testuser",
		}, nil, gs, testutil.TestLogger(t))

		c.joinSession(&ClientMessage{
			BaseMessage: BaseMessage{
				Id:        1,
				Timestamp: Now(),
			},
			Join:   &Join{SessionId: "test-session"},
			UserId: c.user.Id,
			client: c,
		})

		select {
		case msg := <-c.send:
			require.NotNil(t, msg.Response)
			assert.Equal(t, 1, msg.Id)
			assert.Equal(t, 503, msg.Response.ResponseCode)
		default:
			t.Error("expected a message to be sent to the client, but none was sent")
		}
	})
}

func Test_leaveSession(t *testing.T) {
	t.Run("leave session success", func(t *testing.T) {
		c := &Client{
			user:     types.User{Id: 1, Username: "testuser"},
			sessions: make(map[string]*Session),
		}

		session := &Session{
			externalId: "test-session",
			leaveChan:  make(chan *ClientMessage, 1),
		}
		c.addSession(session)

		c.leaveSession(&ClientMessage{
			BaseMessage: BaseMessage{
				Id:        1,
				Timestamp: Now(),
			},
			Leave:  &Leave{SessionId: session.externalId, Quit: true},
			UserId: c.user.Id,
			client: c,
		})

		select {
		case msg := <-session.leaveChan:
			require.NotNil(t, msg.Leave, "expected leave message")
			assert.Equal(t, 1, msg.Id)
			assert.Equal(t, session.externalId, msg.Leave.SessionId)
			assert.True(t, msg.Leave.Quit)
			assert.Equal(t, c.user.Id, msg.UserId)
			assert.Equal(t, c, msg.client)
		default:
			t.Error("expected message to be sent to session leave channel")
		}
	})

	t.Run("session not found", func(t *testing.T) {
		c := &Client{
			user:     types.User{Id: 1, Username: "testuser"},
			sessions: make(map[string]*Session),
			send:     make(chan *ServerMessage, 1),
		}

		c.leaveSession(&ClientMessage{
			BaseMessage: BaseMessage{
				Id:        1,
				Timestamp: Now(),
			},
			Leave:  &Leave{SessionId: "notfound"},
			UserId: c.user.Id,
			client: c,
		})

		select {
		case msg := <-c.send:
			require.NotNil(t, msg.Response)
			assert.Equal(t, 1, msg.Id)
			assert.Equal(t, 404, msg.Response.ResponseCode)
		default:
			t.Error("expected a message to be sent to the client, but none was sent")
		}
	})

	t.Run("session unavailable", func(t *testing.T) {
		session := &Session{
			externalId: "unavailable",
			leaveChan:  make(chan *ClientMessage, 1),
		}
		session.leaveChan <- &ClientMessage{}

		c := &Client{
			user:     types.User{Id: 1, Username: "testuser"},
			sessions: make(map[string]*Session),
			send:     make(chan *ServerMessage, 1),
			log:      testutil.TestLogger(t),
		}

		c.addSession(session)
		c.leaveSession(&ClientMessage{
			BaseMessage: BaseMessage{
				Id:        1,
				Timestamp: Now(),
			},
			Leave:  &Leave{SessionId: session.externalId},
			UserId: c.user.Id,
			client: c,
		})

		select {
		case msg := <-c.send:
			require.NotNil(t, msg.Response)
			assert.Equal(t, 1, msg.Id)
			assert.Equal(t, 503, msg.Response.ResponseCode)
		default:
			t.Error("expected a message to be sent to the client, but none was sent")
		}
	})
}

func Test_forwardToSession(t *testing.T) {
	t.Run("forwards to loaded session", func(t *testing.T) {
		session := &Session{
			externalId:    "test-session",
			clientMsgChan: make(chan *ClientMessage, 1),
		}

		c := &Client{
			user:     types.User{Id: 1, Username: "testuser"},
			sessions: make(map[string]*Session),
		}
		c.addSession(session)

		msg := &ClientMessage{
			BaseMessage: BaseMessage{
				Id:        1,
				Timestamp: Now(),
			},
			Submit: &Submit{SessionId: session.externalId, Content: "and then"},
			UserId: c.user.Id,
			client: c,
		}
		c.forwardToSession(msg, session.externalId)

		select {
		case got := <-session.clientMsgChan:
			assert.Equal(t, msg, got)
		default:
			t.Error("expected message to be forwarded to session")
		}
	})

	t.Run("session not found", func(t *testing.T) {
		c := &Client{
			user:     types.User{Id: 1, Username: "testuser"},
			sessions: make(map[string]*Session),
			send:     make(chan *ServerMessage, 1),
		}

		c.forwardToSession(&ClientMessage{
			BaseMessage: BaseMessage{
				Id:        1,
				Timestamp: Now(),
			},
			Submit: &Submit{SessionId: "notfound", Content: "and then"},
			UserId: c.user.Id,
			client: c,
		}, "notfound")

		select {
		case msg := <-c.send:
			require.NotNil(t, msg.Response)
			assert.Equal(t, 404, msg.Response.ResponseCode)
			assert.Equal(t, "session not found", msg.Response.Error)
		default:
			t.Error("expected a message to be sent to the client, but none was sent")
		}
	})

	t.Run("session unavailable", func(t *testing.T) {
		session := &Session{
			externalId:    "busy",
			clientMsgChan: make(chan *ClientMessage, 1),
		}
		session.clientMsgChan <- &ClientMessage{}

		c := &Client{
			user:     types.User{Id: 1, Username: "testuser"},
			sessions: make(map[string]*Session),
			send:     make(chan *ServerMessage, 1),
			log:      testutil.TestLogger(t),
		}
		c.addSession(session)

		c.forwardToSession(&ClientMessage{
			BaseMessage: BaseMessage{
				Id:        1,
				Timestamp: Now(),
			},
			End:    &End{SessionId: session.externalId},
			UserId: c.user.Id,
			client: c,
		}, session.externalId)

		select {
		case msg := <-c.send:
			require.NotNil(t, msg.Response)
			assert.Equal(t, 503, msg.Response.ResponseCode)
		default:
			t.Error("expected a message to be sent to the client, but none was sent")
		}
	})
}

func Test_addSession_delSession_getSession(t *testing.T) {
	c := &Client{
		sessions: make(map[string]*Session),
	}

	session := &Session{
		externalId: "test-session",
	}

	c.addSession(session)
	s := c.getSession(session.externalId)
	require.NotNil(t, s, "expected session to be found after adding")
	assert.Equal(t, session.externalId, s.externalId)

	c.delSession(s.externalId)
	assert.Nil(t, c.getSession(session.externalId), "expected session to be removed after deletion")
}
