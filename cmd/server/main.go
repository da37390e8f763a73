package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	_ "github.com/lib/pq"
	"github.com/storyloom/storyloom/internal/api"
	"github.com/storyloom/storyloom/internal/config"
	"github.com/storyloom/storyloom/internal/database"
	"github.com/storyloom/storyloom/internal/game"
	"github.com/storyloom/storyloom/internal/stats"
)

const defaultSigningKey = "5kq6rlUbII8LSdGkDYATvc3TGt6rBbMBh37AXLLBA0k="

type stringSliceFlag []string

func (s *stringSliceFlag) String() string {
	return strings.Join(*s, ",")
}

func (s *stringSliceFlag) Set(value string) error {
	*s = append(*s, strings.Split(value, ",")...)
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

var (
	addr           string
	dsn            string
	signingKey     string
	allowedOrigins stringSliceFlag
)

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Println("load .env:", err)
	}

	flag.StringVar(&addr, "addr", envOr("STORYLOOM_ADDR", "localhost:8000"), "server address")
	flag.StringVar(&dsn, "dsn", envOr("STORYLOOM_DSN", "host=localhost user=postgres password=postgres dbname=postgres sslmode=disable"), "database connection string")
	flag.StringVar(&signingKey, "signing-key", envOr("STORYLOOM_SIGNING_KEY", defaultSigningKey), "base64 encoded signing key")
	flag.Var(&allowedOrigins, "allowed-origins", "comma-separated list of allowed origins for CORS")
	flag.Parse()

	logger := log.New(os.Stderr, "[storyloom] ", log.LstdFlags)

	cfg, err := config.NewConfig(addr, dsn, signingKey, allowedOrigins)
	if err != nil {
		logger.Fatal("config:", err)
	}

	dbConn, err := database.NewPgStoryLoomRepository(cfg.DatabaseDSN)
	if err != nil {
		logger.Fatal("db open:", err)
	}
	defer func() {
		if err := dbConn.Close(); err != nil {
			logger.Fatal("db close:", err)
		}
	}()

	if err := dbConn.Migrate(); err != nil {
		logger.Fatal("migrate:", err)
	}

	mux := http.NewServeMux()

	statsUpdater := stats.NewStatsUpdater(mux)

	gameServer, err := game.NewGameServer(logger, dbConn, statsUpdater, clockwork.NewRealClock())
	if err != nil {
		logger.Fatal("new game server:", err)
	}

	srv := api.NewStoryLoomApp(mux, logger, gameServer, dbConn, statsUpdater, cfg)

	statsUpdater.Run()
	defer statsUpdater.Stop()

	go gameServer.Run()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigs:
		logger.Printf("received signal: %s\n", sig)
	case err := <-errCh:
		logger.Println("server:", err)
	}

	shutDownCtx, cancel := context.WithTimeout(
		context.Background(),
		10*time.Second,
	)
	defer cancel()

	if err := srv.Shutdown(shutDownCtx); err != nil {
		logger.Fatalln("HTTP server shutdown:", err)
	}

	logger.Println("shutting down game server...")
	if err := gameServer.Shutdown(shutDownCtx); err != nil {
		logger.Fatalln("game server shutdown:", err)
	}

	logger.Println("shutdown complete")
}
