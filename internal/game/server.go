package game

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"sync"

	"github.com/jonboulle/clockwork"
	"github.com/storyloom/storyloom/internal/database"
	"github.com/storyloom/storyloom/internal/stats"
	"github.com/storyloom/storyloom/internal/types"
)

const (
	ActiveSessions   = "ActiveSessions"
	ConnectedClients = "ConnectedClients"
	SegmentsWritten  = "SegmentsWritten"
	TimersExpired    = "TimersExpired"
)

type unloadReq struct {
	sessionId string
	deleted   bool
}

type GameServer struct {
	log            *log.Logger
	db             database.StoryLoomRepository
	stats          stats.StatsProvider
	clock          clockwork.Clock
	clients        map[*Client]struct{}
	userMap        map[int]map[*Client]struct{}
	clientsLock    sync.Mutex
	joinChan       chan *ClientMessage
	RegisterChan   chan *Client
	deRegisterChan chan *Client
	unloadChan     chan unloadReq
	broadcastChan  chan *ServerMessage
	sessions       map[string]*Session
	stop           chan struct{}
	done           chan struct{}
}

func NewGameServer(logger *log.Logger, db database.StoryLoomRepository, sp stats.StatsProvider, clock clockwork.Clock) (*GameServer, error) {
	gs := &GameServer{
		log:            logger,
		db:             db,
		stats:          sp,
		clock:          clock,
		joinChan:       make(chan *ClientMessage),
		clients:        make(map[*Client]struct{}),
		userMap:        make(map[int]map[*Client]struct{}),
		RegisterChan:   make(chan *Client),
		deRegisterChan: make(chan *Client),
		unloadChan:     make(chan unloadReq, 16),
		broadcastChan:  make(chan *ServerMessage, 256),
		stop:           make(chan struct{}),
		done:           make(chan struct{}),
		sessions:       make(map[string]*Session),
	}

	gs.stats.RegisterMetric(ActiveSessions)
	gs.stats.RegisterMetric(ConnectedClients)
	gs.stats.RegisterMetric(SegmentsWritten)
	gs.stats.RegisterMetric(TimersExpired)

	return gs, nil
}

func (gs *GameServer) Run() {
	for {
		select {
		case joinMsg := <-gs.joinChan:
			gs.log.Println("received join request")
			if session, ok := gs.sessions[joinMsg.Join.SessionId]; ok {
				select {
				case session.joinChan <- joinMsg:
				default:
					gs.log.Printf("join channel full on session %q", session.externalId)
				}
			} else {
				session, err := gs.loadSession(joinMsg.Join.SessionId)
				if err != nil {
					gs.log.Println("loadSession:", err)
					joinMsg.client.queueMessage(ErrSessionNotFound(joinMsg.Id))
					continue
				}

				gs.sessions[session.externalId] = session
				gs.stats.Incr(ActiveSessions)
				session.joinChan <- joinMsg

				go session.start()
			}
		case client := <-gs.RegisterChan:
			gs.log.Printf("adding connection from %q", client.user.Username)
			gs.addClient(client)
		case client := <-gs.deRegisterChan:
			gs.log.Printf("removing connection from %q", client.user.Username)
			gs.removeClient(client)
		case req := <-gs.unloadChan:
			s, ok := gs.sessions[req.sessionId]
			if ok {
				gs.unloadSession(s.externalId)
				done := make(chan bool)
				s.exit <- exitReq{deleted: req.deleted, done: done}
				<-done
			}
		case msg := <-gs.broadcastChan:
			gs.routeToUser(msg)
		case <-gs.stop:
			gs.log.Println("shutting down sessions")
			for _, s := range gs.sessions {
				gs.log.Println("shutting down session", s.externalId)
				done := make(chan bool)
				s.exit <- exitReq{done: done}
				<-done
			}

			close(gs.done)
			return
		}
	}
}

// loadSession reads a session and its story out of the database and
// builds the in-memory game state for it.
func (gs *GameServer) loadSession(externalId string) (*Session, error) {
	dbSession, err := gs.db.GetSessionByExternalId(externalId)
	if err != nil {
		return nil, err
	}

	full, err := gs.db.GetSessionWithParticipants(dbSession.Id)
	if err != nil {
		return nil, err
	}

	var story *database.Story
	if full.State != types.StateWaiting {
		story, err = gs.db.GetStoryBySessionId(dbSession.Id)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
	}

	return newSession(full, story, gs), nil
}

// routeToUser delivers a message to every connection the target user has.
func (gs *GameServer) routeToUser(msg *ServerMessage) {
	gs.clientsLock.Lock()
	defer gs.clientsLock.Unlock()

	for c := range gs.userMap[msg.UserId] {
		if c == msg.SkipClient {
			continue
		}

		c.queueMessage(msg)
	}
}

// requestUnload asks the hub to tear down a session. Called from session
// goroutines, so the send never blocks.
func (gs *GameServer) requestUnload(sessionId string, deleted bool) {
	select {
	case gs.unloadChan <- unloadReq{sessionId: sessionId, deleted: deleted}:
	default:
		gs.log.Printf("unload channel full, dropping unload for %q", sessionId)
	}
}

// UnloadSession tears down a loaded session, notifying its clients when the
// session was deleted. A no-op if the session is not loaded.
func (gs *GameServer) UnloadSession(ctx context.Context, sessionId string, deleted bool) error {
	select {
	case gs.unloadChan <- unloadReq{sessionId: sessionId, deleted: deleted}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (gs *GameServer) addClient(c *Client) {
	gs.clientsLock.Lock()
	defer gs.clientsLock.Unlock()

	gs.clients[c] = struct{}{}
	if gs.userMap[c.user.Id] == nil {
		gs.userMap[c.user.Id] = make(map[*Client]struct{})
	}
	gs.userMap[c.user.Id][c] = struct{}{}

	gs.stats.Incr(ConnectedClients)
}

func (gs *GameServer) removeClient(c *Client) {
	gs.clientsLock.Lock()
	defer gs.clientsLock.Unlock()

	if _, ok := gs.clients[c]; !ok {
		return
	}

	delete(gs.clients, c)
	if userClients, ok := gs.userMap[c.user.Id]; ok {
		delete(userClients, c)
		if len(userClients) == 0 {
			delete(gs.userMap, c.user.Id)
		}
	}

	gs.stats.Decr(ConnectedClients)
}

func (gs *GameServer) unloadSession(sessionId string) {
	if s, ok := gs.sessions[sessionId]; ok {
		gs.log.Printf("removing session %q", s.externalId)
		delete(gs.sessions, sessionId)
		gs.stats.Decr(ActiveSessions)
	}
}

// RegisterClient hands a newly upgraded connection to the hub.
func (gs *GameServer) RegisterClient(c *Client) {
	gs.RegisterChan <- c
}

func (gs *GameServer) Shutdown(ctx context.Context) error {
	gs.log.Println("received shutdown signal")
	gs.clientsLock.Lock()
	for c := range gs.clients {
		close(c.stop)
	}
	gs.clientsLock.Unlock()

	close(gs.stop)

	select {
	case <-gs.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
