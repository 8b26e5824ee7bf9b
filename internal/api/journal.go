package api

import (
	"net/http"
	"time"

	"github.com/SrSebald/Vitalia/internal/domain"
)

func (h *Handler) listNutritionLogs(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	day := time.Now().UTC().Truncate(24 * time.Hour)
	from, err := queryTime(r, "from", day)
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", "invalid from")
		return
	}
	to, err := queryTime(r, "to", from.Add(24*time.Hour-time.Nanosecond))
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", "invalid to")
		return
	}
	logs, err := h.service.ListNutritionLogs(r.Context(), p, from, to)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list(logs))
}

func (h *Handler) logMeal(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	var in domain.LogMealInput
	if !decode(w, r, &in) {
		return
	}
	entry, err := h.service.LogMeal(r.Context(), p, in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

func (h *Handler) deleteNutritionLog(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.service.DeleteNutritionLog(r.Context(), p, id); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listMoodLogs(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	moods, err := h.service.ListMoodLogs(r.Context(), p, queryLimit(r, 10))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list(moods))
}

func (h *Handler) logMood(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	var in domain.LogMoodInput
	if !decode(w, r, &in) {
		return
	}
	entry, err := h.service.LogMood(r.Context(), p, in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

func (h *Handler) updateMoodLog(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	id, ok := pathSerial(w, r)
	if !ok {
		return
	}
	var in domain.UpdateMoodInput
	if !decode(w, r, &in) {
		return
	}
	entry, err := h.service.UpdateMoodLog(r.Context(), p, id, in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (h *Handler) deleteMoodLog(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	id, ok := pathSerial(w, r)
	if !ok {
		return
	}
	if err := h.service.DeleteMoodLog(r.Context(), p, id); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listProgressPhotos(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	photos, err := h.service.ListProgressPhotos(r.Context(), p, queryLimit(r, 20))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list(photos))
}

func (h *Handler) addProgressPhoto(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	var in domain.AddPhotoInput
	if !decode(w, r, &in) {
		return
	}
	photo, err := h.service.AddProgressPhoto(r.Context(), p, in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, photo)
}

func (h *Handler) deleteProgressPhoto(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.service.DeleteProgressPhoto(r.Context(), p, id); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
