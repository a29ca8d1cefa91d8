// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package handlers contains HTTP request handlers for the best-worst scaling API.

# Handler Types

Each handler is a struct over the experiment service:

  - SequenceHandler: Trial sequence generation and listing
  - TrialsHandler: Participant sessions, trial submission and finalization
  - ResourceHandler: Stimulus catalog listing

Handlers are created via constructor functions:

	trialsHandler := handlers.NewTrialsHandler(svc)

# Session Flow

	GET  /api/trials/{sequence_id}?participant_name=ana  → GetTrials (starts the session)
	POST /api/trials/{sequence_id}/{trial_index}/submit → SubmitTrial (online update)
	GET  /api/trials/{sequence_id}/values               → GetValues
	POST /api/trials/{sequence_id}/finalize             → Finalize (Bradley-Terry-Luce fit)

Resubmitting the same choices for a trial is answered with 200 and
"duplicate": true; values are not updated twice.

# Errors

Service errors map to a status and a machine readable code:

	validation        → 400
	not_found         → 404
	insufficient_data → 422
	model_fit_failed  → 500
	store_unavailable → 503
*/
package handlers
