package database

type StoryLoomRepository interface {
	Ping() error
	CreateAccount(params CreateAccountParams) (Account, error)
	UpdateAccount(params UpdateAccountParams) (Account, error)
	GetAccountById(accountId int) (Account, error)
	GetAccountByEmail(email string) (Account, error)
	CreateSession(params CreateSessionParams) (Session, error)
	GetSessionByExternalId(externalId string) (Session, error)
	GetSessionWithParticipants(sessionId int) (*Session, error)
	ListSessions(state string) ([]Session, error)
	ListSessionsForAccount(accountId int) ([]Session, error)
	UpdateSessionState(sessionId int, state string) error
	DeleteSession(sessionId int) error
	AddParticipant(sessionId, accountId int) (Participant, error)
	ParticipantExists(sessionId, accountId int) bool
	RemoveParticipant(sessionId, accountId int) error
	CreateStory(sessionId, currentTurn, timeRemaining int) (Story, error)
	GetStoryBySessionId(sessionId int) (*Story, error)
	UpdateStoryTurn(storyId, currentTurn, timeRemaining int) error
	UpdateStoryClock(storyId, timeRemaining, elapsedSeconds int) error
	AppendSegment(params AppendSegmentParams) (Segment, error)
	CreateComment(params CreateCommentParams) (Comment, error)
	ListComments(sessionId int) ([]Comment, error)
}
