package api

import (
	"context"
	"testing"
	"time"

	"github.com/storyloom/storyloom/internal/testutil"
	"github.com/storyloom/storyloom/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserIdContext(t *testing.T) {
	ctx := WithUserId(context.Background(), 42)

	userId, ok := UserId(ctx)
	assert.True(t, ok, "expected user id to be present in context")
	assert.Equal(t, 42, userId)

	_, ok = UserId(context.Background())
	assert.False(t, ok, "expected no user id in empty context")
}

func TestPasswordHashing(t *testing.T) {
	hash, err := hashPassword("password")
	require.NoError(t, err)
	assert.NotEqual(t, "password", hash, "expected password to be hashed")

	assert.True(t, verifyPassword(hash, "password"))
	assert.False(t, verifyPassword(hash, "wrong"))
}

func TestJwtRoundTrip(t *testing.T) {
	app := &StoryLoomApp{
		log:        testutil.TestLogger(t),
		signingKey: []byte("secret"),
	}

	t.Run("valid token", func(t *testing.T) {
		token, err := app.createJwtForSession(types.User{Id: 42}, time.Hour)
		require.NoError(t, err)
		require.NotEmpty(t, token)

		userId, err := app.extractUserIdFromToken(token)
		require.NoError(t, err)
		assert.Equal(t, 42, userId)
	})

	t.Run("expired token", func(t *testing.T) {
		token, err := app.createJwtForSession(types.User{Id: 42}, -time.Hour)
		require.NoError(t, err)

		_, err = app.extractUserIdFromToken(token)
		assert.Error(t, err, "expected expired token to be rejected")
	})

	t.Run("token signed with a different key", func(t *testing.T) {
		other := &StoryLoomApp{signingKey: []byte("other-secret")}
		token, err := other.createJwtForSession(types.User{Id: 42}, time.Hour)
		require.NoError(t, err)

		_, err = app.extractUserIdFromToken(token)
		assert.Error(t, err, "expected token with wrong signature to be rejected")
	})

	t.Run("garbage token", func(t *testing.T) {
		_, err := app.extractUserIdFromToken("not-a-token")
		assert.Error(t, err)
	})
}

func TestCreateJwtCookie(t *testing.T) {
	cookie := createJwtCookie("tokenvalue", time.Hour)

	assert.Equal(t, tokenCookieKey, cookie.Name)
	assert.Equal(t, "tokenvalue", cookie.Value)
	assert.Equal(t, "/", cookie.Path)
	assert.True(t, cookie.HttpOnly, "expected cookie to be http-only")
	assert.WithinDuration(t, time.Now().Add(time.Hour), cookie.Expires, time.Minute)
}
