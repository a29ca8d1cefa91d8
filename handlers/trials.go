// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"net/http"
	"strconv"

	"github.com/danielhkuo/bestworst/experiment"
	"github.com/danielhkuo/bestworst/middleware"
	"github.com/danielhkuo/bestworst/models"
	"github.com/danielhkuo/bestworst/scaling"
)

type TrialsHandler struct {
	svc *experiment.Service
}

func NewTrialsHandler(svc *experiment.Service) *TrialsHandler {
	return &TrialsHandler{svc: svc}
}

// GetTrials handles GET /api/trials/{sequence_id}
// With ?participant_name= the participant's session is started as well
func (h *TrialsHandler) GetTrials(w http.ResponseWriter, r *http.Request) {
	sequenceID, ok := pathInt(w, r, "sequence_id")
	if !ok {
		return
	}

	view, err := h.svc.Trials(r.Context(), sequenceID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	if name := r.URL.Query().Get("participant_name"); name != "" {
		if _, _, err := h.svc.StartSession(r.Context(), name, sequenceID); err != nil {
			writeServiceError(w, err)
			return
		}
	}

	trials := make([][]scaling.StimulusID, len(view.Design.Trials))
	for i, set := range view.Design.Trials {
		trials[i] = set
	}

	middleware.JSONResponse(w, http.StatusOK, models.TrialsResponse{
		SequenceID: view.SequenceID,
		Trials:     trials,
		AudioMap:   view.AudioMap,
	})
}

// SubmitTrial handles POST /api/trials/{sequence_id}/{trial_index}/submit
func (h *TrialsHandler) SubmitTrial(w http.ResponseWriter, r *http.Request) {
	sequenceID, ok := pathInt(w, r, "sequence_id")
	if !ok {
		return
	}
	trialIndex, err := strconv.Atoi(r.PathValue("trial_index"))
	if err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, models.CodeValidation, "trial_index must be an integer")
		return
	}

	var req models.SubmitTrialRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, models.CodeValidation, "Invalid JSON")
		return
	}

	res, err := h.svc.Submit(r.Context(), experiment.Submission{
		ParticipantName:  req.ParticipantName,
		SequenceID:       sequenceID,
		TrialIndex:       trialIndex,
		Best:             req.BestStimulus,
		Worst:            req.WorstStimulus,
		ResourcesInTrial: req.ResourcesInTrial,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	message := "Trial result recorded"
	if res.Duplicate {
		message = "Trial result already recorded"
	}
	middleware.JSONResponse(w, http.StatusOK, models.SubmitTrialResponse{
		Message:   message,
		Duplicate: res.Duplicate,
		Values:    scored(res.Values, nil),
	})
}

// GetValues handles GET /api/trials/{sequence_id}/values?participant_name=
// Returns the online values, best first
func (h *TrialsHandler) GetValues(w http.ResponseWriter, r *http.Request) {
	sequenceID, ok := pathInt(w, r, "sequence_id")
	if !ok {
		return
	}
	name := r.URL.Query().Get("participant_name")

	p, values, err := h.svc.Values(r.Context(), name, sequenceID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	middleware.JSONResponse(w, http.StatusOK, models.ValuesResponse{
		ParticipantName: p.Name,
		SequenceID:      sequenceID,
		Values:          scored(values, nil),
	})
}

// Finalize handles POST /api/trials/{sequence_id}/finalize
// Fits the final ranking over every recorded trial of the participant
func (h *TrialsHandler) Finalize(w http.ResponseWriter, r *http.Request) {
	sequenceID, ok := pathInt(w, r, "sequence_id")
	if !ok {
		return
	}

	var req models.FinalizeRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, models.CodeValidation, "Invalid JSON")
		return
	}

	final, err := h.svc.Finalize(r.Context(), req.ParticipantName, sequenceID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	middleware.JSONResponse(w, http.StatusOK, models.FinalizeResponse{
		SortedStimuli: scored(final.Ranking.Stimuli, final.Resources),
		Summary:       final.Summary,
		Message:       "Final ranking computed",
	})
}
