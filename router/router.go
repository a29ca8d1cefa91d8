// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package router

import (
	"database/sql"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/danielhkuo/bestworst/cliparse"
	"github.com/danielhkuo/bestworst/experiment"
	"github.com/danielhkuo/bestworst/handlers"
	"github.com/danielhkuo/bestworst/middleware"
	"github.com/danielhkuo/bestworst/store"
)

func NewRouter(db *sql.DB, cfg cliparse.Config) *http.ServeMux {
	return NewServiceRouter(NewService(db, cfg))
}

// NewService builds the experiment service described by cfg
func NewService(db *sql.DB, cfg cliparse.Config) *experiment.Service {
	return experiment.NewService(store.New(db), experiment.Config{
		Alpha:       cfg.Alpha,
		Ridge:       cfg.Ridge,
		FitTimeout:  cfg.FitTimeout,
		SessionIdle: cfg.SessionIdle,
	})
}

// NewServiceRouter registers every endpoint on top of an existing service
func NewServiceRouter(svc *experiment.Service) *http.ServeMux {
	mux := http.NewServeMux()

	// Initialize handlers
	sequenceHandler := handlers.NewSequenceHandler(svc)
	trialsHandler := handlers.NewTrialsHandler(svc)
	resourceHandler := handlers.NewResourceHandler(svc)

	// Health check
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Prometheus exposition
	mux.Handle("GET /metrics", promhttp.Handler())

	// Stimulus catalog
	mux.HandleFunc("GET /api/resources", middleware.WithLogging(resourceHandler.ListResources))

	// Sequence management
	mux.HandleFunc("POST /api/sequences", middleware.WithLogging(sequenceHandler.CreateSequence))
	mux.HandleFunc("GET /api/sequences", middleware.WithLogging(sequenceHandler.ListSequences))

	// Participant sessions
	mux.HandleFunc("GET /api/trials/{sequence_id}", middleware.WithLogging(trialsHandler.GetTrials))
	mux.HandleFunc("GET /api/trials/{sequence_id}/values", middleware.WithLogging(trialsHandler.GetValues))
	mux.HandleFunc("POST /api/trials/{sequence_id}/{trial_index}/submit", middleware.WithLogging(trialsHandler.SubmitTrial))
	mux.HandleFunc("POST /api/trials/{sequence_id}/finalize", middleware.WithLogging(trialsHandler.Finalize))

	// Root endpoint
	mux.HandleFunc("GET /", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("bestworst API v1"))
	})

	return mux
}
