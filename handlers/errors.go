// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/danielhkuo/bestworst/middleware"
	"github.com/danielhkuo/bestworst/models"
	"github.com/danielhkuo/bestworst/scaling"
)

// writeServiceError maps a service error onto its HTTP status and code
func writeServiceError(w http.ResponseWriter, err error) {
	status, code := classify(err)
	if status >= http.StatusInternalServerError {
		slog.Error("request failed", "code", code, "error", err)
	}
	middleware.ErrorResponse(w, status, code, err.Error())
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, scaling.ErrValidation):
		return http.StatusBadRequest, models.CodeValidation
	case errors.Is(err, scaling.ErrNotFound):
		return http.StatusNotFound, models.CodeNotFound
	case errors.Is(err, scaling.ErrInsufficientData):
		return http.StatusUnprocessableEntity, models.CodeInsufficientData
	case errors.Is(err, scaling.ErrModelFitFailed):
		return http.StatusInternalServerError, models.CodeModelFitFailed
	case errors.Is(err, scaling.ErrStoreUnavailable):
		return http.StatusServiceUnavailable, models.CodeStoreUnavailable
	default:
		return http.StatusInternalServerError, models.CodeInternal
	}
}

// pathInt parses an integer path parameter, writing a 400 on failure
func pathInt(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	v, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, models.CodeValidation, name+" must be an integer")
		return 0, false
	}
	return v, true
}

// scored converts a ranking for the wire, attaching filenames when known
func scored(ranked []scaling.RankedStimulus, resources map[scaling.StimulusID]models.Resource) []models.ScoredResource {
	out := make([]models.ScoredResource, len(ranked))
	for i, rs := range ranked {
		out[i] = models.ScoredResource{
			ResourceID: rs.ID,
			Score:      rs.Score,
			StdError:   rs.StdError,
			Rank:       rs.Rank,
			Filename:   resources[rs.ID].Filename,
		}
	}
	return out
}
