package game

import (
	"net/http"
	"time"

	"github.com/storyloom/storyloom/internal/types"
)

type BaseMessage struct {
	Id        int       `json:"id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type ClientMessage struct {
	BaseMessage
	Join   *Join   `json:"join,omitempty"`
	Leave  *Leave  `json:"leave,omitempty"`
	Start  *Start  `json:"start,omitempty"`
	Submit *Submit `json:"submit,omitempty"`
	End    *End    `json:"end,omitempty"`
	UserId int     `json:"-"`
	client *Client `json:"-"`
}

func (cm *ClientMessage) GetUserId() int {
	return cm.UserId
}

type Join struct {
	SessionId string `json:"session_id"`
}

type Leave struct {
	// Quit permanently removes the player from the session roster.
	// Without it the leave only drops the connection.
	Quit      bool   `json:"quit,omitempty"`
	SessionId string `json:"session_id"`
}

type Start struct {
	SessionId string `json:"session_id"`
}

type Submit struct {
	SessionId string `json:"session_id"`
	Content   string `json:"content"`
}

type End struct {
	SessionId string `json:"session_id"`
}

type ServerMessage struct {
	BaseMessage
	Response     *Response       `json:"response,omitempty"`
	Segment      *SegmentMessage `json:"segment,omitempty"`
	Notification *Notification   `json:"notification,omitempty"`
	SkipClient   *Client         `json:"-"`
	UserId       int             `json:"-"`
}

type Response struct {
	ResponseCode int    `json:"response_code"`
	Error        string `json:"error,omitempty"`
	Data         any    `json:"data,omitempty"`
}

type SegmentMessage struct {
	SessionId string        `json:"session_id"`
	Segment   types.Segment `json:"segment"`
}

type Notification struct {
	Presence       *Presence       `json:"presence,omitempty"`
	RosterChange   *RosterChange   `json:"roster_change,omitempty"`
	SessionStarted *SessionStarted `json:"session_started,omitempty"`
	SessionEnded   *SessionEnded   `json:"session_ended,omitempty"`
	SessionDeleted *SessionDeleted `json:"session_deleted,omitempty"`
	TurnChange     *TurnChange     `json:"turn_change,omitempty"`
	Tick           *Tick           `json:"tick,omitempty"`
	StoryUpdate    *StoryUpdate    `json:"story_update,omitempty"`
}

// StoryUpdate tells a participant without an open connection to the session
// that new content was written.
type StoryUpdate struct {
	SessionId string `json:"session_id"`
	Position  int    `json:"position"`
}

type Presence struct {
	Present   bool   `json:"present"`
	UserId    int    `json:"user_id"`
	SessionId string `json:"session_id"`
}

type RosterChange struct {
	SessionId   string            `json:"session_id"`
	Joined      bool              `json:"joined"`
	Participant types.Participant `json:"participant"`
}

type SessionStarted struct {
	SessionId     string `json:"session_id"`
	CurrentTurn   int    `json:"current_turn"`
	TimeRemaining int    `json:"time_remaining"`
}

type SessionEnded struct {
	SessionId string `json:"session_id"`
}

type SessionDeleted struct {
	SessionId string `json:"session_id"`
}

type TurnChange struct {
	SessionId     string `json:"session_id"`
	CurrentTurn   int    `json:"current_turn"`
	TimeRemaining int    `json:"time_remaining"`
	TimedOut      bool   `json:"timed_out,omitempty"`
}

type Tick struct {
	SessionId      string `json:"session_id"`
	TimeRemaining  int    `json:"time_remaining"`
	ElapsedSeconds int    `json:"elapsed_seconds"`
}

func NoErrOK(id int, data any) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        id,
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusOK,
			Data:         data,
		},
	}
}

func NoErrAccepted(id int) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        id,
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusAccepted,
		},
	}
}

func ErrSessionNotFound(id int) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        id,
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusNotFound,
			Error:        "session not found",
		},
	}
}

func ErrSessionFull(id int) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        id,
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusConflict,
			Error:        "session is full",
		},
	}
}

func ErrSessionAlreadyStarted(id int) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        id,
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusConflict,
			Error:        "session already started",
		},
	}
}

func ErrNoActiveStory(id int) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        id,
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusConflict,
			Error:        "no active story",
		},
	}
}

func ErrNotHost(id int) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        id,
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusForbidden,
			Error:        "only the host may do that",
		},
	}
}

func ErrNotEnoughPlayers(id int) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        id,
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusUnprocessableEntity,
			Error:        "not enough players to start",
		},
	}
}

func ErrPlayerNotFound(id int) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        id,
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusNotFound,
			Error:        "player not found in session",
		},
	}
}

func ErrInternalError(id int) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        id,
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusInternalServerError,
			Error:        "internal server error",
		},
	}
}

func ErrServiceUnavailable(id int) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        id,
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusServiceUnavailable,
			Error:        "service unavailable",
		},
	}
}

func ErrInvalidMessage(id int) *ServerMessage {
	msg := &ServerMessage{
		BaseMessage: BaseMessage{
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusBadRequest,
			Error:        "invalid message format",
		},
	}

	if id > 0 {
		msg.Id = id
	}
	return msg
}

func Now() time.Time {
	return time.Now().UTC().Round(time.Millisecond)
}
