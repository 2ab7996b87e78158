package main

import (
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/J9273/quizbattle/internal/config"
	"github.com/J9273/quizbattle/internal/db"
	"github.com/J9273/quizbattle/internal/hub"
	"github.com/J9273/quizbattle/internal/server"

	"github.com/lmittmann/tint"
)

func main() {
	if err := config.LoadDotEnv(".env"); err != nil {
		log.Printf("failed to load .env: %v", err)
	}
	cfg := config.Load()

	logger := slog.New(tint.NewHandler(os.Stdout, &tint.Options{Level: slog.LevelInfo}))

	conn, err := db.Open(cfg)
	if err != nil {
		logger.Error("database connection failed", "error", err)
		os.Exit(1)
	}
	if err := db.Migrate(conn, logger); err != nil {
		logger.Error("database migration failed", "error", err)
		os.Exit(1)
	}

	store := db.NewStore(conn)
	registry := hub.NewRegistry(store, logger, cfg.ClientQueueSize, time.Duration(cfg.HeartbeatSeconds)*time.Second)
	defer registry.Shutdown()

	srv := server.New(registry, store, cfg, logger)
	addr := fmt.Sprintf(":%d", cfg.Port)
	logger.Info("quizbattle hub listening", "addr", addr)
	if err := http.ListenAndServe(addr, srv.Handler()); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}
