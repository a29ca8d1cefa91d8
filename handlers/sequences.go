// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"net/http"

	"github.com/danielhkuo/bestworst/experiment"
	"github.com/danielhkuo/bestworst/middleware"
	"github.com/danielhkuo/bestworst/models"
	"github.com/danielhkuo/bestworst/scaling"
)

type SequenceHandler struct {
	svc *experiment.Service
}

func NewSequenceHandler(svc *experiment.Service) *SequenceHandler {
	return &SequenceHandler{svc: svc}
}

// CreateSequence handles POST /api/sequences
// Generates a balanced trial design over a stimulus group and stores it
func (h *SequenceHandler) CreateSequence(w http.ResponseWriter, r *http.Request) {
	var req models.CreateSequenceRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, models.CodeValidation, "Invalid JSON")
		return
	}

	created, err := h.svc.CreateSequence(r.Context(), experiment.CreateSequenceParams{
		GroupKey: req.GroupKey,
		Name:     req.SequenceName,
		Repeats:  req.Repeats,
		SetSize:  req.SetSize,
		Seed:     req.Seed,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	trials := make([][]scaling.StimulusID, len(created.Design.Trials))
	for i, set := range created.Design.Trials {
		trials[i] = set
	}
	leftover := created.Design.Leftover
	if leftover == nil {
		leftover = []scaling.StimulusID{}
	}

	middleware.JSONResponse(w, http.StatusCreated, models.CreateSequenceResponse{
		Sequence: created.Info,
		Trials:   trials,
		Leftover: leftover,
		Seed:     created.Seed,
	})
}

// ListSequences handles GET /api/sequences
func (h *SequenceHandler) ListSequences(w http.ResponseWriter, r *http.Request) {
	sequences, err := h.svc.ListSequences(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}

	middleware.JSONResponse(w, http.StatusOK, sequences)
}
