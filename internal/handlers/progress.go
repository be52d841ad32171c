package handlers

import (
	"net/http"
)

// Resume handles GET /therapy/user/{id}/resume.
func (h *Handler) Resume(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	state, err := h.progress.GetResumeState(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "", state)
}

// QuickStats handles GET /therapy/user/{id}/quick-stats.
func (h *Handler) QuickStats(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	stats, err := h.progress.GetQuickStats(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "", stats)
}
