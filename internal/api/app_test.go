package api

import (
	"net/http"
	"testing"

	"github.com/jonboulle/clockwork"
	"github.com/storyloom/storyloom/internal/config"
	"github.com/storyloom/storyloom/internal/database"
	"github.com/storyloom/storyloom/internal/game"
	"github.com/storyloom/storyloom/internal/stats"
	"github.com/storyloom/storyloom/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newTestApp(t *testing.T, db *database.MockStoryLoomRepository) *StoryLoomApp {
	t.Helper()

	sp := &stats.MockStatsUpdater{}
	sp.On("RegisterMetric", mock.Anything).Times(4)

	gs, err := game.NewGameServer(testutil.TestLogger(t), db, sp, clockwork.NewFakeClock())
	require.NoError(t, err)

	cfg := &config.Config{
		ServerAddr:     "localhost:8000",
		DatabaseDSN:    "dsn",
		SigningKey:     []byte("secret"),
		AllowedOrigins: []string{"http://localhost:3000"},
	}

	return NewStoryLoomApp(http.NewServeMux(), testutil.TestLogger(t), gs, db, sp, cfg)
}

func TestNewStoryLoomApp(t *testing.T) {
	mux := http.NewServeMux()
	logger := testutil.TestLogger(t)
	db := &database.MockStoryLoomRepository{}

	sp := &stats.MockStatsUpdater{}
	sp.On("RegisterMetric", mock.Anything).Times(4)

	gs, err := game.NewGameServer(logger, db, sp, clockwork.NewFakeClock())
	require.NoError(t, err)

	cfg := &config.Config{
		ServerAddr:     "localhost:8080",
		DatabaseDSN:    "dsn",
		SigningKey:     []byte("secret"),
		AllowedOrigins: []string{"http://localhost:3000"},
	}

	app := NewStoryLoomApp(mux, logger, gs, db, sp, cfg)

	assert.NotNil(t, app, "expected app to be initialized")
	assert.NotNil(t, app.mux, "expected mux to be initialized")
	assert.Equal(t, logger, app.log, "expected logger to be set")
	assert.Equal(t, db, app.db, "expected db to be set")
	assert.Equal(t, gs, app.gs, "expected game server to be set")
	assert.Equal(t, cfg.SigningKey, app.signingKey, "expected signing key to be set")
	assert.Equal(t, cfg.AllowedOrigins, app.allowedOrigins, "expected allowed origins to be set")
	assert.Equal(t, cfg.ServerAddr, app.mux.Addr, "expected server address to match config")
	assert.NotNil(t, app.generateShortId, "expected short id generator to be set")
}
