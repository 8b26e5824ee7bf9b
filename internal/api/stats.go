package api

import (
	"net/http"
	"time"
)

// statsRange reads the optional from and to bounds; absent bounds stay zero.
func statsRange(w http.ResponseWriter, r *http.Request) (from, to time.Time, ok bool) {
	to, err := queryTime(r, "to", time.Time{})
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", "invalid to")
		return from, to, false
	}
	from, err = queryTime(r, "from", time.Time{})
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", "invalid from")
		return from, to, false
	}
	return from, to, true
}

func (h *Handler) workoutStats(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	stats, err := h.service.WorkoutStats(r.Context(), p)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *Handler) moodStats(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	from, to, ok := statsRange(w, r)
	if !ok {
		return
	}
	stats, err := h.service.MoodStats(r.Context(), p, from, to)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *Handler) nutritionSummary(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	from, to, ok := statsRange(w, r)
	if !ok {
		return
	}
	summary, err := h.service.NutritionSummary(r.Context(), p, from, to)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (h *Handler) photoStats(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	stats, err := h.service.PhotoStats(r.Context(), p)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
