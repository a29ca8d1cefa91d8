// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package router defines HTTP routes for the best-worst scaling API.

	mux := router.NewRouter(db, cfg)

Endpoints:

	GET  /health
	GET  /metrics
	GET  /api/resources?group_key=strings
	POST /api/sequences
	GET  /api/sequences
	GET  /api/trials/{sequence_id}
	GET  /api/trials/{sequence_id}/values
	POST /api/trials/{sequence_id}/{trial_index}/submit
	POST /api/trials/{sequence_id}/finalize

NewServiceRouter registers the same routes over an existing
*experiment.Service, which tests use to share one service across requests.
*/
package router
