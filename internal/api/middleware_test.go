package api

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/storyloom/storyloom/internal/testutil"
	"github.com/storyloom/storyloom/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthMiddleware(t *testing.T) {
	app := &StoryLoomApp{
		log:        testutil.TestLogger(t),
		signingKey: []byte("secret"),
	}

	t.Run("passes user id to handler", func(t *testing.T) {
		token, err := app.createJwtForSession(types.User{Id: 42}, time.Hour)
		require.NoError(t, err)

		var gotUserId int
		handler := app.authMiddleware(func(w http.ResponseWriter, r *http.Request) {
			gotUserId, _ = UserId(r.Context())
			w.WriteHeader(http.StatusOK)
		})

		req := httptest.NewRequest(http.MethodGet, "/api/account", nil)
		req.AddCookie(&http.Cookie{Name: tokenCookieKey, Value: token})
		rr := httptest.NewRecorder()

		handler(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, 42, gotUserId)
		assert.Contains(t, rr.Header().Get("Cache-Control"), "no-store")
	})

	t.Run("missing cookie", func(t *testing.T) {
		handler := app.authMiddleware(func(w http.ResponseWriter, r *http.Request) {
			t.Error("expected handler not to be called")
		})

		req := httptest.NewRequest(http.MethodGet, "/api/account", nil)
		rr := httptest.NewRecorder()

		handler(rr, req)
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("invalid token", func(t *testing.T) {
		handler := app.authMiddleware(func(w http.ResponseWriter, r *http.Request) {
			t.Error("expected handler not to be called")
		})

		req := httptest.NewRequest(http.MethodGet, "/api/account", nil)
		req.AddCookie(&http.Cookie{Name: tokenCookieKey, Value: "not-a-token"})
		rr := httptest.NewRecorder()

		handler(rr, req)
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})
}

func TestErrorHandler(t *testing.T) {
	app := &StoryLoomApp{
		log: testutil.TestLogger(t),
	}

	t.Run("recovers from panics", func(t *testing.T) {
		handler := app.errorHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			panic(errors.New("boom"))
		}))

		req := httptest.NewRequest(http.MethodGet, "/api/account", nil)
		rr := httptest.NewRecorder()

		handler.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusInternalServerError, rr.Code)
		assert.Equal(t, "close", rr.Header().Get("Connection"))
	})

	t.Run("passes requests through", func(t *testing.T) {
		handler := app.errorHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTeapot)
		}))

		req := httptest.NewRequest(http.MethodGet, "/api/account", nil)
		rr := httptest.NewRecorder()

		handler.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusTeapot, rr.Code)
	})
}
