package game

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/storyloom/storyloom/internal/types"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingInterval   = (pongWait * 9) / 10
	maxMessageSize = 4096
)

type Client struct {
	conn         *websocket.Conn
	gameServer   *GameServer
	log          *log.Logger
	user         types.User
	send         chan *ServerMessage
	sessions     map[string]*Session
	sessionsLock sync.RWMutex
	stop         chan struct{}
}

func NewClient(user types.User, conn *websocket.Conn, gs *GameServer, l *log.Logger) *Client {
	return &Client{
		conn:       conn,
		gameServer: gs,
		log:        l,
		user:       user,
		send:       make(chan *ServerMessage, 256),
		sessions:   make(map[string]*Session),
		stop:       make(chan struct{}),
	}
}

func (c *Client) Write() {
	ticker := time.NewTicker(time.Duration(pingInterval))
	defer func() {
		ticker.Stop()
		c.conn.Close()
		c.log.Println("write exiting")
	}()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				return
			}

			bytes, err := c.serializeMessage(msg)
			if err != nil {
				c.log.Println("failed to serialize message:", err)
				continue
			}

			if !c.sendMessage(websocket.TextMessage, bytes) {
				return
			}
		case <-c.stop:
			return
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !c.sendMessage(websocket.PingMessage, nil) {
				return
			}
		}
	}
}

func (c *Client) Read() {
	defer func() {
		c.conn.Close()
		c.cleanup()
		c.log.Println("read exiting")
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(appData string) error { c.conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure) {
				c.log.Printf("ws: read: %v", err)
			}
			break
		}

		var msg ClientMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.log.Println("error parsing message:", err)
			c.queueMessage(ErrInvalidMessage(-1))
			continue
		}

		msg.client = c
		msg.UserId = c.user.Id
		msg.Timestamp = Now()

		switch {
		case msg.Join != nil:
			c.joinSession(&msg)
		case msg.Leave != nil:
			c.leaveSession(&msg)
		case msg.Start != nil:
			c.forwardToSession(&msg, msg.Start.SessionId)
		case msg.Submit != nil:
			c.forwardToSession(&msg, msg.Submit.SessionId)
		case msg.End != nil:
			c.forwardToSession(&msg, msg.End.SessionId)
		}
	}
}

func (c *Client) queueMessage(msg *ServerMessage) bool {
	select {
	case c.send <- msg:
	default:
		c.log.Println("failed to send message to client, channel is full")
		return false
	}

	return true
}

func (c *Client) serializeMessage(msg *ServerMessage) ([]byte, error) {
	return json.Marshal(msg)
}

func (c *Client) sendMessage(msgType int, msg []byte) bool {
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))

	if err := c.conn.WriteMessage(msgType, msg); err != nil {
		if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
			websocket.CloseNormalClosure) {
			c.log.Printf("write message: %s", err)
		}
		return false
	}

	return true
}

func (c *Client) stopClient() {
	close(c.stop)
}

func (c *Client) cleanup() {
	c.gameServer.deRegisterChan <- c
	c.leaveAllSessions()
	c.stopClient()
}

// leaveAllSessions drops the connection from every loaded session. The
// player keeps their seat, only their presence changes.
func (c *Client) leaveAllSessions() {
	c.sessionsLock.RLock()
	defer c.sessionsLock.RUnlock()

	for _, session := range c.sessions {
		session.leaveChan <- &ClientMessage{
			Leave:  &Leave{SessionId: session.externalId},
			UserId: c.user.Id,
			client: c,
		}
	}
}

func (c *Client) joinSession(msg *ClientMessage) {
	select {
	case c.gameServer.joinChan <- msg:
	default:
		c.log.Printf("joinChan full")
		c.queueMessage(ErrServiceUnavailable(msg.Id))
		return
	}
}

func (c *Client) leaveSession(msg *ClientMessage) {
	s := c.getSession(msg.Leave.SessionId)
	if s != nil {
		select {
		case s.leaveChan <- msg:
		default:
			c.log.Printf("leaveChan full for session %q", s.externalId)
			c.queueMessage(ErrServiceUnavailable(msg.Id))
			return
		}
	} else {
		c.queueMessage(ErrSessionNotFound(msg.Id))
	}
}

func (c *Client) forwardToSession(msg *ClientMessage, sessionId string) {
	s := c.getSession(sessionId)
	if s != nil {
		select {
		case s.clientMsgChan <- msg:
		default:
			c.queueMessage(ErrServiceUnavailable(msg.Id))
			c.log.Printf("clientMsgChan full for session %q", s.externalId)
		}
	} else {
		c.queueMessage(ErrSessionNotFound(msg.Id))
	}
}

func (c *Client) delSession(id string) {
	c.sessionsLock.Lock()
	defer c.sessionsLock.Unlock()

	delete(c.sessions, id)
}

func (c *Client) addSession(s *Session) {
	c.sessionsLock.Lock()
	defer c.sessionsLock.Unlock()

	c.sessions[s.externalId] = s
}

func (c *Client) getSession(id string) *Session {
	c.sessionsLock.RLock()
	defer c.sessionsLock.RUnlock()

	if session, ok := c.sessions[id]; ok {
		return session
	}

	return nil
}
