package api

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/storyloom/storyloom/internal/config"
	"github.com/storyloom/storyloom/internal/database"
	"github.com/storyloom/storyloom/internal/game"
	"github.com/storyloom/storyloom/internal/stats"
	"github.com/teris-io/shortid"
)

type StoryLoomApp struct {
	log            *log.Logger
	db             database.StoryLoomRepository
	mux            *http.Server
	gs             *game.GameServer
	stats          stats.StatsProvider
	signingKey     []byte
	allowedOrigins []string
	// generateShortId mints external session ids, swappable in tests
	generateShortId func() (string, error)
}

func NewStoryLoomApp(mux *http.ServeMux, logger *log.Logger, gs *game.GameServer, db database.StoryLoomRepository, sp stats.StatsProvider, cfg *config.Config) *StoryLoomApp {
	s := &StoryLoomApp{
		log:             logger,
		db:              db,
		gs:              gs,
		stats:           sp,
		signingKey:      cfg.SigningKey,
		allowedOrigins:  cfg.AllowedOrigins,
		generateShortId: shortid.Generate,
	}

	mux.HandleFunc("GET /healthz", s.healthCheck)
	mux.HandleFunc("POST /api/auth/register", s.createAccount)
	mux.HandleFunc("POST /api/auth/login", s.login)
	mux.HandleFunc("GET /api/auth/session", s.authMiddleware(s.session))
	mux.Handle("GET /api/auth/logout", s.authMiddleware(s.logout))
	mux.Handle("/api/account", s.authMiddleware(s.account))
	mux.Handle("POST /api/sessions", s.authMiddleware(s.createSession))
	mux.Handle("GET /api/sessions", s.authMiddleware(s.listSessions))
	mux.Handle("DELETE /api/sessions", s.authMiddleware(s.deleteSession))
	mux.Handle("GET /api/session", s.authMiddleware(s.getSession))
	mux.Handle("GET /api/mysessions", s.authMiddleware(s.getMySessions))
	mux.Handle("GET /api/story", s.authMiddleware(s.getStory))
	mux.Handle("GET /api/comments", s.authMiddleware(s.getComments))
	mux.Handle("POST /api/comments", s.authMiddleware(s.createComment))
	mux.Handle("GET /ws", s.authMiddleware(s.serveWs))

	h := handlers.CORS(
		handlers.MaxAge(3600),
		handlers.AllowedOrigins(cfg.AllowedOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Origin", "Content-Type", "Accept"}),
		handlers.AllowCredentials(),
	)(mux)

	h = s.errorHandler(h)

	srv := &http.Server{
		Addr:    cfg.ServerAddr,
		Handler: h,
	}

	s.mux = srv
	return s
}

func (s *StoryLoomApp) Start() error {
	s.log.Printf("starting server on %s\n", s.mux.Addr)
	return s.mux.ListenAndServe()
}

func (s *StoryLoomApp) Shutdown(ctx context.Context) error {
	s.log.Println("shutting down HTTP server...")
	if err := s.mux.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	return nil
}

func (s *StoryLoomApp) healthCheck(w http.ResponseWriter, _ *http.Request) {
	if err := s.db.Ping(); err != nil {
		s.log.Println("ping:", err)
		errResp := NewServiceUnavailableError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}
