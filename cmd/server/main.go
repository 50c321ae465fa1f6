// cmd/server/main.go
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"

	"hintone/internal/auth"
	"hintone/internal/database"
	"hintone/internal/handlers"
	"hintone/internal/judge"
	"hintone/internal/middleware"
	"hintone/internal/service"
	"hintone/internal/store"
)

func main() {
	auth.Init()

	logger := logrus.New()
	logger.SetLevel(logrus.DebugLevel)

	// Room persistence: in-memory by default, Redis when configured.
	var rooms store.RoomStore
	switch os.Getenv("ROOM_STORE") {
	case "redis":
		addr := os.Getenv("REDIS_ADDR")
		if addr == "" {
			addr = "localhost:6379"
		}
		rs, err := store.NewRedisStore(context.Background(), addr, 0)
		if err != nil {
			log.Fatalf("failed to connect to redis: %v", err)
		}
		rooms = rs
		logger.Info("Using redis room store")
	default:
		rooms = store.NewMemoryStore()
		logger.Info("Using in-memory room store")
	}

	j := judge.NewOpenAIJudge(
		os.Getenv("OPENAI_API_KEY"),
		os.Getenv("OPENAI_MODEL"),
		envDuration("JUDGE_TIMEOUT", 10*time.Second),
		logger,
	)

	svc := service.New(rooms, j, logger)
	if t := envDuration("JUDGE_TIMEOUT", 0); t > 0 {
		svc.SetJudgeTimeout(t)
	}

	// Finished games go to Postgres when a database is configured.
	if os.Getenv("DATABASE_URL") != "" || os.Getenv("PG_HOST") != "" {
		database.ConnectDB()
		svc.Archive = database.NewGameArchive()
		logger.Info("Game archive enabled")
	}

	gs := handlers.NewGameServer(svc, logger)

	mux := http.NewServeMux()
	mux.Handle("/game/ws", middleware.LogMiddleware(logger)(http.HandlerFunc(
		handlers.GameWSHandler(logger, gs),
	)))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	addr := ":8080"
	if port := os.Getenv("PORT"); port != "" {
		addr = ":" + port
	}
	logger.Infof("Running on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Fatalf("server exited: %v", err)
	}
}

// envDuration parses a duration env var, returning def when unset or invalid.
func envDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Printf("invalid %s %q, using %s", key, v, def)
		return def
	}
	return d
}
