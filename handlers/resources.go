// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"net/http"

	"github.com/danielhkuo/bestworst/experiment"
	"github.com/danielhkuo/bestworst/middleware"
)

type ResourceHandler struct {
	svc *experiment.Service
}

func NewResourceHandler(svc *experiment.Service) *ResourceHandler {
	return &ResourceHandler{svc: svc}
}

// ListResources handles GET /api/resources?group_key=
// Without group_key every catalog row is returned
func (h *ResourceHandler) ListResources(w http.ResponseWriter, r *http.Request) {
	resources, err := h.svc.ListResources(r.Context(), r.URL.Query().Get("group_key"))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	middleware.JSONResponse(w, http.StatusOK, resources)
}
