package database

import (
	"github.com/stretchr/testify/mock"
)

type MockStoryLoomRepository struct {
	mock.Mock
}

func (m *MockStoryLoomRepository) Ping() error {
	args := m.Called()
	return args.Error(0)
}
func (m *MockStoryLoomRepository) CreateAccount(params CreateAccountParams) (Account, error) {
	args := m.Called(params)
	return args.Get(0).(Account), args.Error(1)
}
func (m *MockStoryLoomRepository) UpdateAccount(params UpdateAccountParams) (Account, error) {
	args := m.Called(params)
	return args.Get(0).(Account), args.Error(1)
}
func (m *MockStoryLoomRepository) GetAccountById(accountId int) (Account, error) {
	args := m.Called(accountId)
	return args.Get(0).(Account), args.Error(1)
}
func (m *MockStoryLoomRepository) GetAccountByEmail(email string) (Account, error) {
	args := m.Called(email)
	return args.Get(0).(Account), args.Error(1)
}
func (m *MockStoryLoomRepository) CreateSession(params CreateSessionParams) (Session, error) {
	args := m.Called(params)
	return args.Get(0).(Session), args.Error(1)
}
func (m *MockStoryLoomRepository) GetSessionByExternalId(externalId string) (Session, error) {
	args := m.Called(externalId)
	return args.Get(0).(Session), args.Error(1)
}
func (m *MockStoryLoomRepository) GetSessionWithParticipants(sessionId int) (*Session, error) {
	args := m.Called(sessionId)
	if session, ok := args.Get(0).(*Session); ok {
		return session, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *MockStoryLoomRepository) ListSessions(state string) ([]Session, error) {
	args := m.Called(state)
	return args.Get(0).([]Session), args.Error(1)
}
func (m *MockStoryLoomRepository) ListSessionsForAccount(accountId int) ([]Session, error) {
	args := m.Called(accountId)
	return args.Get(0).([]Session), args.Error(1)
}
func (m *MockStoryLoomRepository) UpdateSessionState(sessionId int, state string) error {
	args := m.Called(sessionId, state)
	return args.Error(0)
}
func (m *MockStoryLoomRepository) DeleteSession(sessionId int) error {
	args := m.Called(sessionId)
	return args.Error(0)
}
func (m *MockStoryLoomRepository) AddParticipant(sessionId, accountId int) (Participant, error) {
	args := m.Called(sessionId, accountId)
	return args.Get(0).(Participant), args.Error(1)
}
func (m *MockStoryLoomRepository) ParticipantExists(sessionId, accountId int) bool {
	args := m.Called(sessionId, accountId)
	return args.Bool(0)
}
func (m *MockStoryLoomRepository) RemoveParticipant(sessionId, accountId int) error {
	args := m.Called(sessionId, accountId)
	return args.Error(0)
}
func (m *MockStoryLoomRepository) CreateStory(sessionId, currentTurn, timeRemaining int) (Story, error) {
	args := m.Called(sessionId, currentTurn, timeRemaining)
	return args.Get(0).(Story), args.Error(1)
}
func (m *MockStoryLoomRepository) GetStoryBySessionId(sessionId int) (*Story, error) {
	args := m.Called(sessionId)
	if story, ok := args.Get(0).(*Story); ok {
		return story, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *MockStoryLoomRepository) UpdateStoryTurn(storyId, currentTurn, timeRemaining int) error {
	args := m.Called(storyId, currentTurn, timeRemaining)
	return args.Error(0)
}
func (m *MockStoryLoomRepository) UpdateStoryClock(storyId, timeRemaining, elapsedSeconds int) error {
	args := m.Called(storyId, timeRemaining, elapsedSeconds)
	return args.Error(0)
}
func (m *MockStoryLoomRepository) AppendSegment(params AppendSegmentParams) (Segment, error) {
	args := m.Called(params)
	return args.Get(0).(Segment), args.Error(1)
}
func (m *MockStoryLoomRepository) CreateComment(params CreateCommentParams) (Comment, error) {
	args := m.Called(params)
	return args.Get(0).(Comment), args.Error(1)
}
func (m *MockStoryLoomRepository) ListComments(sessionId int) ([]Comment, error) {
	args := m.Called(sessionId)
	return args.Get(0).([]Comment), args.Error(1)
}
