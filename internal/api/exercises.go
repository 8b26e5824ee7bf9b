package api

import (
	"net/http"

	"github.com/SrSebald/Vitalia/internal/domain"
)

func (h *Handler) listExercises(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	filter := domain.ExerciseFilter{Query: q.Get("q"), MuscleGroup: q.Get("muscle_group"), Equipment: q.Get("equipment")}
	exercises, err := h.service.ListExercises(r.Context(), p, filter, queryLimit(r, 50))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list(exercises))
}

func (h *Handler) exerciseFacets(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	facets, err := h.service.ExerciseFacets(r.Context(), p)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, facets)
}

func (h *Handler) createExercise(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	var in domain.CreateExerciseInput
	if !decode(w, r, &in) {
		return
	}
	exercise, err := h.service.CreateExercise(r.Context(), p, in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, exercise)
}

func (h *Handler) getExercise(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	exercise, err := h.service.GetExercise(r.Context(), p, id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, exercise)
}

func (h *Handler) updateExercise(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var in domain.UpdateExerciseInput
	if !decode(w, r, &in) {
		return
	}
	exercise, err := h.service.UpdateExercise(r.Context(), p, id, in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, exercise)
}

func (h *Handler) deleteExercise(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.service.DeleteExercise(r.Context(), p, id); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) setExerciseVisibility(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var in VisibilityRequest
	if !decode(w, r, &in) {
		return
	}
	if in.IsPublic == nil {
		writeError(w, http.StatusBadRequest, "validation_failed", "is_public is required")
		return
	}
	exercise, err := h.service.SetExerciseVisibility(r.Context(), p, id, *in.IsPublic)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, exercise)
}

func (h *Handler) toggleExerciseVisibility(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	exercise, err := h.service.ToggleExerciseVisibility(r.Context(), p, id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, exercise)
}
