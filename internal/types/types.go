package types

import (
	"time"
)

const (
	StateWaiting    = "waiting"
	StateInProgress = "in_progress"
	StateCompleted  = "completed"

	ModeTimed    = "timed"
	ModeFreeform = "freeform"
)

type User struct {
	Id           int       `json:"id"`
	Username     string    `json:"username"`
	EmailAddress string    `json:"email_address,omitempty"`
	FirstName    string    `json:"first_name,omitempty"`
	LastName     string    `json:"last_name,omitempty"`
	Avatar       string    `json:"avatar,omitempty"`
	ProfileImage string    `json:"profile_image,omitempty"`
	Password     string    `json:"-"`
	CreatedAt    time.Time `json:"created_at,omitempty"`
	UpdatedAt    time.Time `json:"updated_at,omitempty"`
}

type Participant struct {
	Id        int       `json:"id"`
	Username  string    `json:"username"`
	Avatar    string    `json:"avatar,omitempty"`
	JoinedAt  time.Time `json:"joined_at"`
	IsPresent bool      `json:"is_present,omitempty"`
}

type Session struct {
	Id              int           `json:"id"`
	ExternalId      string        `json:"external_id"`
	Title           string        `json:"title"`
	Description     string        `json:"description"`
	HostId          int           `json:"host_id"`
	State           string        `json:"state"`
	Mode            string        `json:"mode"`
	TurnSeconds     int           `json:"turn_seconds"`
	MaxParticipants int           `json:"max_participants"`
	Participants    []Participant `json:"participants,omitempty"`
	Story           *Story        `json:"story,omitempty"`
	CreatedAt       time.Time     `json:"created_at,omitempty"`
	UpdatedAt       time.Time     `json:"updated_at,omitempty"`
}

type Story struct {
	SessionId      int       `json:"session_id"`
	Content        string    `json:"content"`
	CurrentTurn    int       `json:"current_turn"`
	TimeRemaining  int       `json:"time_remaining"`
	ElapsedSeconds int       `json:"elapsed_seconds"`
	Segments       []Segment `json:"segments,omitempty"`
	UpdatedAt      time.Time `json:"updated_at,omitempty"`
}

type Segment struct {
	Position   int       `json:"position"`
	AuthorId   int       `json:"author_id"`
	AuthorName string    `json:"author_name,omitempty"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"created_at,omitempty"`
}

type Comment struct {
	ExternalId string    `json:"external_id"`
	SessionId  string    `json:"session_id"`
	Author     User      `json:"author"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"created_at,omitempty"`
}
