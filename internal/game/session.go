package game

import (
	"log"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/storyloom/storyloom/internal/database"
	"github.com/storyloom/storyloom/internal/types"
)

const (
	idleSessionTimeout = time.Second * 30
	minParticipants    = 2
)

type exitReq struct {
	deleted bool
	done    chan bool
}

// storyState is the session goroutine's working copy of the story row.
// It is only touched from the run loop, which makes the goroutine the
// single writer for turn and clock state.
type storyState struct {
	id            int
	content       string
	currentTurn   int
	timeRemaining int
	elapsed       int
	segments      []types.Segment
}

type Session struct {
	id              int
	externalId      string
	title           string
	hostId          int
	state           string
	mode            string
	turnSeconds     int
	maxParticipants int
	participants    []types.Participant
	story           *storyState
	gs              *GameServer
	joinChan        chan *ClientMessage
	leaveChan       chan *ClientMessage
	clientMsgChan   chan *ClientMessage
	clients         map[*Client]struct{}
	userMap         map[int]map[*Client]struct{}
	clientLock      sync.RWMutex
	log             *log.Logger
	// killTimer unloads the session once no client is connected
	killTimer clockwork.Timer
	// turnTicker drives the story clock at one tick per second
	turnTicker clockwork.Ticker
	// exit is used to signal the session to exit
	exit chan exitReq
	// done is closed once the session goroutine has cleaned up
	done chan struct{}
}

func newSession(dbSession *database.Session, dbStory *database.Story, gs *GameServer) *Session {
	s := &Session{
		id:              dbSession.Id,
		externalId:      dbSession.ExternalId,
		title:           dbSession.Title,
		hostId:          dbSession.HostId,
		state:           dbSession.State,
		mode:            dbSession.Mode,
		turnSeconds:     dbSession.TurnSeconds,
		maxParticipants: dbSession.MaxParticipants,
		gs:              gs,
		joinChan:        make(chan *ClientMessage, 256),
		leaveChan:       make(chan *ClientMessage, 256),
		clientMsgChan:   make(chan *ClientMessage, 256),
		clients:         make(map[*Client]struct{}),
		userMap:         make(map[int]map[*Client]struct{}),
		log:             gs.log,
		exit:            make(chan exitReq),
		done:            make(chan struct{}),
	}

	for _, p := range dbSession.Participants {
		s.participants = append(s.participants, types.Participant{
			Id:       p.AccountId,
			Username: p.Username,
			Avatar:   p.Avatar,
			JoinedAt: p.JoinedAt,
		})
	}

	if dbStory != nil {
		s.story = &storyState{
			id:            dbStory.Id,
			content:       dbStory.Content,
			currentTurn:   dbStory.CurrentTurn,
			timeRemaining: dbStory.TimeRemaining,
			elapsed:       dbStory.ElapsedSeconds,
		}
		for _, seg := range dbStory.Segments {
			s.story.segments = append(s.story.segments, types.Segment{
				Position:   seg.Position,
				AuthorId:   seg.AuthorId,
				AuthorName: seg.AuthorName,
				Content:    seg.Content,
				CreatedAt:  seg.CreatedAt,
			})
		}
		// story rows written before per-segment authorship have content
		// but no segment rows, rebuild them by replaying the rotation
		if len(s.story.segments) == 0 && s.story.content != "" {
			s.story.segments = ReconstructSegments(s.story.content, s.participants)
		}
	}

	return s
}

func (s *Session) start() {
	s.log.Printf("starting session %q", s.externalId)
	s.killTimer = s.gs.clock.NewTimer(idleSessionTimeout)
	s.killTimer.Stop()

	if s.state == types.StateInProgress {
		// resume the story clock after a reload
		s.startClock()
	}

	for {
		select {
		case join := <-s.joinChan:
			s.handleJoin(join)
		case leaveMsg := <-s.leaveChan:
			s.handleLeave(leaveMsg)
		case msg := <-s.clientMsgChan:
			switch {
			case msg.Start != nil:
				s.handleStart(msg)
			case msg.Submit != nil:
				s.handleSubmit(msg)
			case msg.End != nil:
				s.handleEnd(msg)
			}
		case <-s.tick():
			s.handleTick()
		case <-s.killTimer.Chan():
			s.handleSessionTimeout()
		case e := <-s.exit:
			s.handleSessionExit(e)
			return
		}
	}
}

func (s *Session) startClock() {
	if s.turnTicker == nil {
		s.turnTicker = s.gs.clock.NewTicker(time.Second)
	}
}

func (s *Session) stopClock() {
	if s.turnTicker != nil {
		s.turnTicker.Stop()
		s.turnTicker = nil
	}
}

// tick returns the story clock channel, or a nil channel when the
// clock is not running so the select never fires.
func (s *Session) tick() <-chan time.Time {
	if s.turnTicker == nil {
		return nil
	}
	return s.turnTicker.Chan()
}

func (s *Session) isParticipant(userId int) bool {
	for _, p := range s.participants {
		if p.Id == userId {
			return true
		}
	}
	return false
}

func (s *Session) removeParticipant(userId int) {
	for i, p := range s.participants {
		if p.Id == userId {
			s.participants = append(s.participants[:i], s.participants[i+1:]...)
			return
		}
	}
}

func (s *Session) handleJoin(join *ClientMessage) {
	// stop the kill timer since we have a new client
	s.killTimer.Stop()

	c := join.client
	if !s.gs.db.ParticipantExists(s.id, c.user.Id) {
		if len(s.participants) >= s.maxParticipants {
			if len(s.clients) == 0 {
				s.killTimer.Reset(idleSessionTimeout)
			}
			c.queueMessage(ErrSessionFull(join.Id))
			return
		}

		s.log.Printf("seating %q in session %q", c.user.Username, s.externalId)
		p, err := s.gs.db.AddParticipant(s.id, c.user.Id)
		if err != nil {
			// reset timer since client join failed
			if len(s.clients) == 0 {
				s.killTimer.Reset(idleSessionTimeout)
			}
			s.log.Println("AddParticipant:", err)
			c.queueMessage(ErrInternalError(join.Id))
			return
		}

		participant := types.Participant{
			Id:       c.user.Id,
			Username: c.user.Username,
			Avatar:   c.user.Avatar,
			JoinedAt: p.JoinedAt,
		}
		s.participants = append(s.participants, participant)

		// notify players that the roster grew
		s.broadcast(&ServerMessage{
			BaseMessage: BaseMessage{
				Timestamp: Now(),
			},
			Notification: &Notification{
				RosterChange: &RosterChange{
					SessionId:   s.externalId,
					Joined:      true,
					Participant: participant,
				},
			},
		})
	}

	dbSession, err := s.gs.db.GetSessionWithParticipants(s.id)
	if err != nil {
		s.log.Println("GetSessionWithParticipants:", err)
		c.queueMessage(ErrInternalError(join.Id))
		return
	}

	s.addClient(c)

	// send the session snapshot to the client
	c.queueMessage(NoErrOK(join.Id, s.snapshot(dbSession)))

	// notify clients that the user is online
	s.broadcast(&ServerMessage{
		BaseMessage: BaseMessage{
			Timestamp: Now(),
		},
		Notification: &Notification{
			Presence: &Presence{
				Present:   true,
				SessionId: s.externalId,
				UserId:    c.user.Id,
			},
		},
		SkipClient: c,
	})
}

// snapshot assembles the full session view sent on join. Participant
// profile fields come straight from the accounts table so renames and
// avatar changes show up without any denormalized copies.
func (s *Session) snapshot(dbSession *database.Session) types.Session {
	session := types.Session{
		Id:              dbSession.Id,
		ExternalId:      dbSession.ExternalId,
		Title:           dbSession.Title,
		Description:     dbSession.Description,
		HostId:          dbSession.HostId,
		State:           s.state,
		Mode:            dbSession.Mode,
		TurnSeconds:     dbSession.TurnSeconds,
		MaxParticipants: dbSession.MaxParticipants,
		CreatedAt:       dbSession.CreatedAt,
		UpdatedAt:       dbSession.UpdatedAt,
	}

	for _, p := range dbSession.Participants {
		session.Participants = append(session.Participants, types.Participant{
			Id:        p.AccountId,
			Username:  p.Username,
			Avatar:    p.Avatar,
			JoinedAt:  p.JoinedAt,
			IsPresent: s.userMap[p.AccountId] != nil,
		})
	}

	if s.story != nil {
		story := &types.Story{
			SessionId:      s.id,
			Content:        s.story.content,
			CurrentTurn:    s.story.currentTurn,
			TimeRemaining:  s.story.timeRemaining,
			ElapsedSeconds: s.story.elapsed,
		}
		story.Segments = append(story.Segments, s.story.segments...)
		session.Story = story
	}

	return session
}

func (s *Session) handleLeave(leaveMsg *ClientMessage) {
	client := leaveMsg.client

	if leaveMsg.Leave.Quit {
		if leaveMsg.UserId == s.hostId {
			// the host quitting dissolves the whole session
			s.log.Printf("host %q is dissolving session %q", client.user.Username, s.externalId)
			if err := s.gs.db.DeleteSession(s.id); err != nil {
				s.log.Println("DeleteSession:", err)
				client.queueMessage(ErrInternalError(leaveMsg.Id))
				return
			}

			client.queueMessage(NoErrOK(leaveMsg.Id, nil))
			s.gs.requestUnload(s.externalId, true)
			return
		}

		if !s.isParticipant(leaveMsg.UserId) {
			client.queueMessage(ErrPlayerNotFound(leaveMsg.Id))
			return
		}

		s.log.Printf("removing %q from session %q", client.user.Username, s.externalId)
		if err := s.gs.db.RemoveParticipant(s.id, leaveMsg.UserId); err != nil {
			s.log.Println("RemoveParticipant:", err)
			client.queueMessage(ErrInternalError(leaveMsg.Id))
			return
		}

		// pass the turn along before dropping them from the rotation
		if s.state == types.StateInProgress && s.story != nil && s.story.currentTurn == leaveMsg.UserId {
			s.advanceTurn(false)
		}

		s.removeParticipant(leaveMsg.UserId)
		s.removeAllClientsForUser(leaveMsg.UserId)

		client.queueMessage(NoErrOK(leaveMsg.Id, nil))

		s.broadcast(&ServerMessage{
			BaseMessage: BaseMessage{
				Timestamp: Now(),
			},
			Notification: &Notification{
				RosterChange: &RosterChange{
					SessionId: s.externalId,
					Joined:    false,
					Participant: types.Participant{
						Id:       leaveMsg.UserId,
						Username: client.user.Username,
					},
				},
			},
		})
		return
	}

	// connection-level leave, the player keeps their seat
	s.removeClient(client)

	if leaveMsg.GetUserId() != 0 {
		client.queueMessage(NoErrOK(leaveMsg.Id, nil))
	}

	// notify all clients user is offline
	// if no connections for user in the session
	if s.userMap[client.user.Id] == nil {
		s.broadcast(&ServerMessage{
			Notification: &Notification{
				Presence: &Presence{
					Present:   false,
					SessionId: s.externalId,
					UserId:    client.user.Id,
				},
			},
			SkipClient: client,
		})
	}
}

func (s *Session) handleStart(msg *ClientMessage) {
	if msg.UserId != s.hostId {
		msg.client.queueMessage(ErrNotHost(msg.Id))
		return
	}

	if s.state != types.StateWaiting {
		msg.client.queueMessage(ErrSessionAlreadyStarted(msg.Id))
		return
	}

	if len(s.participants) < minParticipants {
		msg.client.queueMessage(ErrNotEnoughPlayers(msg.Id))
		return
	}

	timeRemaining := 0
	if s.mode == types.ModeTimed {
		timeRemaining = s.turnSeconds
	}

	if err := s.gs.db.UpdateSessionState(s.id, types.StateInProgress); err != nil {
		s.log.Println("UpdateSessionState:", err)
		msg.client.queueMessage(ErrInternalError(msg.Id))
		return
	}

	// the host writes the opening turn
	story, err := s.gs.db.CreateStory(s.id, s.hostId, timeRemaining)
	if err != nil {
		s.log.Println("CreateStory:", err)
		msg.client.queueMessage(ErrInternalError(msg.Id))
		return
	}

	s.state = types.StateInProgress
	s.story = &storyState{
		id:            story.Id,
		currentTurn:   story.CurrentTurn,
		timeRemaining: story.TimeRemaining,
	}
	s.startClock()

	msg.client.queueMessage(NoErrOK(msg.Id, nil))

	s.broadcast(&ServerMessage{
		BaseMessage: BaseMessage{
			Timestamp: Now(),
		},
		Notification: &Notification{
			SessionStarted: &SessionStarted{
				SessionId:     s.externalId,
				CurrentTurn:   s.story.currentTurn,
				TimeRemaining: s.story.timeRemaining,
			},
		},
	})
}

func (s *Session) handleSubmit(msg *ClientMessage) {
	if s.state != types.StateInProgress || s.story == nil {
		msg.client.queueMessage(ErrNoActiveStory(msg.Id))
		return
	}

	order := TurnOrder(s.participants)
	next, err := NextTurn(order, msg.UserId)
	if err != nil {
		msg.client.queueMessage(ErrPlayerNotFound(msg.Id))
		return
	}

	timeRemaining := 0
	if s.mode == types.ModeTimed {
		timeRemaining = s.turnSeconds
	}

	combined := AppendContent(s.story.content, msg.Submit.Content)
	seg, err := s.gs.db.AppendSegment(database.AppendSegmentParams{
		StoryId:       s.story.id,
		Position:      len(s.story.segments),
		AuthorId:      msg.UserId,
		Content:       msg.Submit.Content,
		Combined:      combined,
		NextTurn:      next,
		TimeRemaining: timeRemaining,
	})
	if err != nil {
		s.log.Println("AppendSegment:", err)
		msg.client.queueMessage(ErrInternalError(msg.Id))
		return
	}

	segment := types.Segment{
		Position:   seg.Position,
		AuthorId:   seg.AuthorId,
		AuthorName: msg.client.user.Username,
		Content:    seg.Content,
		CreatedAt:  seg.CreatedAt,
	}
	s.story.segments = append(s.story.segments, segment)
	s.story.content = combined
	s.story.currentTurn = next
	s.story.timeRemaining = timeRemaining

	s.gs.stats.Incr(SegmentsWritten)
	msg.client.queueMessage(NoErrAccepted(msg.Id))

	// broadcast the new segment to all clients in the session
	s.broadcast(&ServerMessage{
		BaseMessage: BaseMessage{
			Id:        msg.Id,
			Timestamp: msg.Timestamp,
		},
		Segment: &SegmentMessage{
			SessionId: s.externalId,
			Segment:   segment,
		},
	})

	s.broadcast(&ServerMessage{
		BaseMessage: BaseMessage{
			Timestamp: Now(),
		},
		Notification: &Notification{
			TurnChange: &TurnChange{
				SessionId:     s.externalId,
				CurrentTurn:   next,
				TimeRemaining: timeRemaining,
			},
		},
	})

	// notify seated players without an open connection of the new content
	for _, p := range s.participants {
		if s.userMap[p.Id] != nil {
			continue
		}

		s.gs.broadcastChan <- &ServerMessage{
			Notification: &Notification{
				StoryUpdate: &StoryUpdate{
					SessionId: s.externalId,
					Position:  segment.Position,
				},
			},
			UserId: p.Id,
		}
	}
}

func (s *Session) handleEnd(msg *ClientMessage) {
	if msg.UserId != s.hostId {
		msg.client.queueMessage(ErrNotHost(msg.Id))
		return
	}

	if s.state != types.StateInProgress {
		msg.client.queueMessage(ErrNoActiveStory(msg.Id))
		return
	}

	if err := s.gs.db.UpdateSessionState(s.id, types.StateCompleted); err != nil {
		s.log.Println("UpdateSessionState:", err)
		msg.client.queueMessage(ErrInternalError(msg.Id))
		return
	}

	s.state = types.StateCompleted
	s.stopClock()

	msg.client.queueMessage(NoErrOK(msg.Id, nil))

	s.broadcast(&ServerMessage{
		BaseMessage: BaseMessage{
			Timestamp: Now(),
		},
		Notification: &Notification{
			SessionEnded: &SessionEnded{SessionId: s.externalId},
		},
	})
}

func (s *Session) handleTick() {
	if s.state != types.StateInProgress || s.story == nil {
		return
	}

	s.story.elapsed++

	expired := false
	if s.mode == types.ModeTimed && s.story.timeRemaining > 0 {
		s.story.timeRemaining--
		expired = s.story.timeRemaining == 0
	}

	if err := s.gs.db.UpdateStoryClock(s.story.id, s.story.timeRemaining, s.story.elapsed); err != nil {
		s.log.Println("UpdateStoryClock:", err)
	}

	s.broadcast(&ServerMessage{
		BaseMessage: BaseMessage{
			Timestamp: Now(),
		},
		Notification: &Notification{
			Tick: &Tick{
				SessionId:      s.externalId,
				TimeRemaining:  s.story.timeRemaining,
				ElapsedSeconds: s.story.elapsed,
			},
		},
	})

	if expired {
		s.log.Printf("turn timer expired in session %q", s.externalId)
		s.gs.stats.Incr(TimersExpired)
		s.advanceTurn(true)
	}
}

// advanceTurn passes the turn to the next player in join order without
// writing a segment. The expired or departing player simply loses the turn.
func (s *Session) advanceTurn(timedOut bool) {
	order := TurnOrder(s.participants)
	if len(order) == 0 {
		return
	}

	next, err := NextTurn(order, s.story.currentTurn)
	if err != nil {
		// the holder is no longer in the roster, restart from the top
		next = order[0]
	}

	timeRemaining := 0
	if s.mode == types.ModeTimed {
		timeRemaining = s.turnSeconds
	}

	if err := s.gs.db.UpdateStoryTurn(s.story.id, next, timeRemaining); err != nil {
		s.log.Println("UpdateStoryTurn:", err)
		return
	}

	s.story.currentTurn = next
	s.story.timeRemaining = timeRemaining

	s.broadcast(&ServerMessage{
		BaseMessage: BaseMessage{
			Timestamp: Now(),
		},
		Notification: &Notification{
			TurnChange: &TurnChange{
				SessionId:     s.externalId,
				CurrentTurn:   next,
				TimeRemaining: timeRemaining,
				TimedOut:      timedOut,
			},
		},
	})
}

func (s *Session) handleSessionTimeout() {
	s.log.Printf("session %q timed out", s.externalId)
	s.gs.requestUnload(s.externalId, false)
}

func (s *Session) handleSessionExit(e exitReq) {
	s.log.Printf("session %q is exiting", s.externalId)
	s.stopClock()

	if e.deleted {
		// notify all clients that the session is deleted
		s.broadcast(&ServerMessage{
			BaseMessage: BaseMessage{
				Timestamp: Now(),
			},
			Notification: &Notification{
				SessionDeleted: &SessionDeleted{SessionId: s.externalId},
			},
		})
	}

	// remove the session for all clients
	s.clientLock.Lock()
	for c := range s.clients {
		c.delSession(s.externalId)
	}
	s.clientLock.Unlock()

	// notify the game server the session is done cleaning up
	if e.done != nil {
		e.done <- true
	}

	if s.done != nil {
		close(s.done)
	}
}

func (s *Session) addClient(c *Client) {
	s.clientLock.Lock()
	defer s.clientLock.Unlock()

	s.clients[c] = struct{}{}
	if s.userMap[c.user.Id] == nil {
		s.userMap[c.user.Id] = make(map[*Client]struct{})
	}
	s.userMap[c.user.Id][c] = struct{}{}

	c.addSession(s)
}

func (s *Session) removeClient(c *Client) {
	s.clientLock.Lock()
	defer s.clientLock.Unlock()

	if _, ok := s.clients[c]; !ok {
		s.log.Printf("client %q not found in session %q", c.user.Username, s.externalId)
		return
	}

	s.log.Printf("removing client %q from session %q", c.user.Username, s.externalId)
	delete(s.clients, c)
	c.delSession(s.externalId)

	if userClients, ok := s.userMap[c.user.Id]; ok {
		delete(userClients, c)
		if len(userClients) == 0 {
			delete(s.userMap, c.user.Id)
		}
	}

	// if the client is the last one in the session, start the kill timer
	if len(s.clients) == 0 {
		s.log.Printf("no clients in %q, starting kill timer", s.externalId)
		s.killTimer.Reset(idleSessionTimeout)
	}
}

func (s *Session) removeAllClientsForUser(userId int) {
	s.clientLock.Lock()
	defer s.clientLock.Unlock()

	if userClients, ok := s.userMap[userId]; ok {
		for client := range userClients {
			delete(s.clients, client)
			client.delSession(s.externalId)
		}
		delete(s.userMap, userId)
	}

	if len(s.clients) == 0 {
		s.log.Printf("no clients in %q, starting kill timer", s.externalId)
		s.killTimer.Reset(idleSessionTimeout)
	}
}

func (s *Session) broadcast(msg *ServerMessage) {
	for client := range s.clients {
		if client == msg.SkipClient {
			continue
		}

		client.queueMessage(msg)
	}
}
