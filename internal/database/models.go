package database

import "time"

type Account struct {
	Id           int
	Username     string
	EmailAddress string
	PasswordHash string
	FirstName    string
	LastName     string
	Avatar       string
	ProfileImage string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Session struct {
	Id              int
	ExternalId      string
	Title           string
	Description     string
	HostId          int
	State           string
	Mode            string
	TurnSeconds     int
	MaxParticipants int
	CreatedAt       time.Time
	UpdatedAt       time.Time
	Participants    []Participant
}

type Participant struct {
	Id        int
	SessionId int
	AccountId int
	Username  string
	Avatar    string
	JoinedAt  time.Time
}

type Story struct {
	Id             int
	SessionId      int
	Content        string
	CurrentTurn    int
	TimeRemaining  int
	ElapsedSeconds int
	UpdatedAt      time.Time
	Segments       []Segment
}

type Segment struct {
	Id         int
	StoryId    int
	Position   int
	AuthorId   int
	AuthorName string
	Content    string
	CreatedAt  time.Time
}

type Comment struct {
	Id           int
	ExternalId   string
	SessionId    int
	AuthorId     int
	AuthorName   string
	AuthorAvatar string
	AuthorImage  string
	Content      string
	CreatedAt    time.Time
}

type CreateAccountParams struct {
	Username     string
	EmailAddress string
	PasswordHash string
	FirstName    string
	LastName     string
	Avatar       string
}

type UpdateAccountParams struct {
	AccountId    int
	Username     string
	PasswordHash string
	FirstName    string
	LastName     string
	Avatar       string
	ProfileImage string
}

type CreateSessionParams struct {
	Title           string
	Description     string
	HostId          int
	ExternalId      string
	Mode            string
	TurnSeconds     int
	MaxParticipants int
}

type AppendSegmentParams struct {
	StoryId       int
	Position      int
	AuthorId      int
	Content       string
	Combined      string
	NextTurn      int
	TimeRemaining int
}

type CreateCommentParams struct {
	ExternalId string
	SessionId  int
	AuthorId   int
	Content    string
}
