// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/danielhkuo/bestworst/cliparse"
	"github.com/danielhkuo/bestworst/db"
	"github.com/danielhkuo/bestworst/middleware"
	"github.com/danielhkuo/bestworst/router"
)

func main() {
	var err error

	if err := cliparse.LoadDotEnv(); err != nil {
		slog.Error("Error loading .env", "error", err)
		os.Exit(1)
	}

	// Parse configuration
	cfg, err := cliparse.ParseFlags(os.Args[1:])
	if err != nil {
		slog.Error("Error parsing flags", "error", err)
		os.Exit(1)
	}

	// Connect to the configured database
	dbConn, err := db.Open(cfg.DatabaseType, cfg.DatabaseURL)
	if err != nil {
		slog.Error("database connection failed", "type", cfg.DatabaseType, "error", err)
		os.Exit(1)
	}
	defer dbConn.Close()

	// Create schema (tables)
	if err := db.CreateSchema(dbConn); err != nil {
		slog.Error("schema creation failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Database schema ready", "type", cfg.DatabaseType)

	// Create service and router
	svc := router.NewService(dbConn, cfg)
	mux := router.NewServiceRouter(svc)

	// Drop online sessions nobody has touched for a while
	evictCtx, stopEviction := context.WithCancel(context.Background())
	defer stopEviction()
	go svc.RunEviction(evictCtx, max(cfg.SessionIdle/2, time.Second))

	// Create server
	server := http.Server{
		Handler: middleware.CORS(cfg.CORSOrigin)(mux),
		Addr:    ":" + strconv.Itoa(cfg.Port),
	}

	// signal.Notify requires the channel to be buffered
	ctrlc := make(chan os.Signal, 1)
	signal.Notify(ctrlc, os.Interrupt, syscall.SIGTERM)
	go func() {
		// Wait for Ctrl-C signal, then let in-flight submissions finish
		<-ctrlc
		ctx, cancel := context.WithTimeout(context.Background(), cfg.FitTimeout+5*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			slog.Error("graceful shutdown failed", "error", err)
			server.Close()
		}
	}()

	// Start server
	slog.Info("Listening",
		"port", cfg.Port,
		"alpha", cfg.Alpha,
		"ridge", cfg.Ridge,
		"fit_timeout", cfg.FitTimeout.String(),
		"session_idle", cfg.SessionIdle.String(),
	)
	err = server.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		slog.Error("Server closed", "error", err)
	} else {
		slog.Info("Server closed", "error", err)
	}
}
