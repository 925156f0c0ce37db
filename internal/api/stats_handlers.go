package api

import (
	"net/http"

	"chesed/internal/models"
)

// GetStats returns the admin overview: status counts, pending per
// neighborhood and the top volunteers.
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	o, err := h.deps.Stats.Overview(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSONSuccess(w, "Statistics retrieved successfully", o)
}

// GetMyStats returns the caller's delivered counts and goal progress.
func (h *Handler) GetMyStats(w http.ResponseWriter, r *http.Request) {
	st, err := h.deps.Stats.ForVolunteer(r.Context(), currentSession(r))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSONSuccess(w, "Statistics retrieved successfully", st)
}

func (h *Handler) SetMyGoals(w http.ResponseWriter, r *http.Request) {
	var req models.Goals
	if !h.decodeJSON(w, r, &req) {
		return
	}
	if err := h.deps.Stats.SetGoals(r.Context(), currentSession(r), req); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSONSuccess(w, "Goals saved", req)
}
