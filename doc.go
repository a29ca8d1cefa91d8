// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package main provides the entry point for the bestworst API server.

bestworst runs best-worst scaling listening experiments: participants hear
small sets of audio stimuli, pick the best and the worst of each set, and
receive an online preference estimate while they go and a Bradley-Terry-Luce
ranking at the end.

# Starting the Server

The server requires environment variables or CLI flags for configuration:

	DATABASE_URL=bestworst.db go run .

Or with flags:

	go run . -p 3318 -t postgres -d "postgres://..."

A .env file in the working directory is loaded first; variables already set
in the environment win.

# Configuration

Required settings:

  - DATABASE_URL (-d): SQLite path or PostgreSQL connection string

Optional settings:

  - PORT (-p): Server port (default: 3318)
  - DATABASE_TYPE (-t): sqlite or postgres (default: sqlite)
  - BWS_ALPHA (-alpha): Online learning rate (default: 0.1)
  - BWS_RIDGE (-ridge): L2 penalty of the final fit (default: 0.01)
  - BWS_FIT_TIMEOUT (-fit-timeout): Solver time limit (default: 10s)
  - CORS_ORIGIN (-cors-origin): Allowed origin (default: echo request)

# Architecture

  - scaling: trial design, online update and ranking fit
  - experiment: sessions over the store
  - store: database/sql persistence
  - handlers, router, middleware, models: HTTP layer
  - ingest: catalog population from GCS or a local directory
  - metrics: Prometheus instruments
  - db: driver selection and schema
  - cliparse: configuration parsing

The bwsctl command in cmd/bwsctl covers the same operations from a shell.
*/
package main
