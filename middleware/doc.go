// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package middleware provides HTTP middleware and helper functions.

# Request Logging

	mux.HandleFunc("GET /api/sequences", middleware.WithLogging(handler))

Logs method, path, client IP, status and duration_ms, and records the
request in the bestworst_http_request_duration_seconds histogram.

# CORS

	handler := middleware.CORS(cfg.CORSOrigin)(mux)

An empty origin echoes the request Origin header.

# JSON Helpers

	middleware.JSONResponse(w, http.StatusOK, data)
	middleware.ErrorResponse(w, http.StatusNotFound, models.CodeNotFound, "sequence 9 not found")
*/
package middleware
