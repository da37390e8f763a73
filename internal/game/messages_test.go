package game

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetUserId(t *testing.T) {
	cm := &ClientMessage{
		BaseMessage: BaseMessage{
			Id:        1,
			Timestamp: Now(),
		},
		UserId: 42,
	}

	assert.Equal(t, 42, cm.GetUserId())
}

func TestNoErrOK(t *testing.T) {
	result := NoErrOK(1, map[string]any{"testkey": "testvalue"})

	require.NotNil(t, result.Response)
	assert.Equal(t, 1, result.Id)
	assert.WithinDuration(t, Now(), result.Timestamp, time.Second)
	assert.Equal(t, http.StatusOK, result.Response.ResponseCode)
	assert.Equal(t, map[string]any{"testkey": "testvalue"}, result.Response.Data)
	assert.Empty(t, result.Response.Error)
}

func TestNoErrAccepted(t *testing.T) {
	result := NoErrAccepted(7)

	require.NotNil(t, result.Response)
	assert.Equal(t, 7, result.Id)
	assert.WithinDuration(t, Now(), result.Timestamp, time.Second)
	assert.Equal(t, http.StatusAccepted, result.Response.ResponseCode)
}

func TestErrorConstructors(t *testing.T) {
	tests := []struct {
		name     string
		result   *ServerMessage
		wantCode int
		wantErr  string
	}{
		{"session not found", ErrSessionNotFound(1), http.StatusNotFound, "session not found"},
		{"session full", ErrSessionFull(1), http.StatusConflict, "session is full"},
		{"session already started", ErrSessionAlreadyStarted(1), http.StatusConflict, "session already started"},
		{"no active story", ErrNoActiveStory(1), http.StatusConflict, "no active story"},
		{"not host", ErrNotHost(1), http.StatusForbidden, "only the host may do that"},
		{"not enough players", ErrNotEnoughPlayers(1), http.StatusUnprocessableEntity, "not enough players to start"},
		{"player not found", ErrPlayerNotFound(1), http.StatusNotFound, "player not found in session"},
		{"internal error", ErrInternalError(1), http.StatusInternalServerError, "internal server error"},
		{"service unavailable", ErrServiceUnavailable(1), http.StatusServiceUnavailable, "service unavailable"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			require.NotNil(t, tc.result.Response)
			assert.Equal(t, 1, tc.result.Id)
			assert.WithinDuration(t, Now(), tc.result.Timestamp, time.Second)
			assert.Equal(t, tc.wantCode, tc.result.Response.ResponseCode)
			assert.Equal(t, tc.wantErr, tc.result.Response.Error)
		})
	}
}

func TestErrInvalidMessage(t *testing.T) {
	t.Run("without message id", func(t *testing.T) {
		result := ErrInvalidMessage(-1)

		require.NotNil(t, result.Response)
		assert.Equal(t, 0, result.Id, "expected Id to be omitted when the message had none")
		assert.Equal(t, http.StatusBadRequest, result.Response.ResponseCode)
		assert.Equal(t, "invalid message format", result.Response.Error)
	})

	t.Run("with message id", func(t *testing.T) {
		result := ErrInvalidMessage(42)

		require.NotNil(t, result.Response)
		assert.Equal(t, 42, result.Id)
		assert.Equal(t, http.StatusBadRequest, result.Response.ResponseCode)
	})
}

func TestNow(t *testing.T) {
	now := Now()

	assert.Equal(t, time.UTC, now.Location())
	assert.Equal(t, now, now.Round(time.Millisecond), "expected timestamp to be rounded to milliseconds")
}
