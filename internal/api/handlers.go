// Package api exposes the Vitalia domain over HTTP.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/SrSebald/Vitalia/internal/auth"
	"github.com/SrSebald/Vitalia/internal/domain"
	"github.com/SrSebald/Vitalia/internal/observability"
	"github.com/SrSebald/Vitalia/internal/planner"
	"github.com/SrSebald/Vitalia/internal/tenant"
)

const maxBodyBytes = 1 << 20

// Handler coordinates HTTP requests with the domain service.
type Handler struct {
	service *domain.Service
	logger  *zap.Logger
}

// NewHandler builds a Handler.
func NewHandler(service *domain.Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{service: service, logger: logger}
}

// RegisterRoutes wires endpoints to the mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	routes := []struct {
		pattern string
		handler http.HandlerFunc
	}{
		{"GET /v1/profile", h.getProfile},
		{"PATCH /v1/profile", h.updateProfile},

		{"GET /v1/workouts", h.listWorkouts},
		{"POST /v1/workouts", h.createWorkout},
		{"GET /v1/workouts/{id}", h.getWorkout},
		{"PATCH /v1/workouts/{id}", h.updateWorkout},
		{"DELETE /v1/workouts/{id}", h.deleteWorkout},
		{"GET /v1/workouts/{id}/sets", h.listSets},
		{"POST /v1/workouts/{id}/sets", h.addSet},
		{"DELETE /v1/sets/{id}", h.deleteSet},

		{"GET /v1/exercises", h.listExercises},
		{"GET /v1/exercises/facets", h.exerciseFacets},
		{"POST /v1/exercises", h.createExercise},
		{"GET /v1/exercises/{id}", h.getExercise},
		{"PATCH /v1/exercises/{id}", h.updateExercise},
		{"DELETE /v1/exercises/{id}", h.deleteExercise},
		{"PUT /v1/exercises/{id}/visibility", h.setExerciseVisibility},
		{"POST /v1/exercises/{id}/visibility/toggle", h.toggleExerciseVisibility},

		{"GET /v1/nutrition-logs", h.listNutritionLogs},
		{"POST /v1/nutrition-logs", h.logMeal},
		{"DELETE /v1/nutrition-logs/{id}", h.deleteNutritionLog},
		{"GET /v1/mood-logs", h.listMoodLogs},
		{"POST /v1/mood-logs", h.logMood},
		{"PATCH /v1/mood-logs/{id}", h.updateMoodLog},
		{"DELETE /v1/mood-logs/{id}", h.deleteMoodLog},
		{"GET /v1/progress-photos", h.listProgressPhotos},
		{"POST /v1/progress-photos", h.addProgressPhoto},
		{"DELETE /v1/progress-photos/{id}", h.deleteProgressPhoto},

		{"POST /v1/plans/workouts/generate", h.generateWorkoutPlan},
		{"GET /v1/plans/workouts", h.listGeneratedWorkouts},
		{"POST /v1/plans/workouts", h.saveGeneratedWorkout},
		{"GET /v1/plans/workouts/{id}", h.getGeneratedWorkout},
		{"DELETE /v1/plans/workouts/{id}", h.deleteGeneratedWorkout},
		{"POST /v1/plans/workouts/{id}/complete", h.completeGeneratedWorkout},
		{"POST /v1/plans/nutrition/daily", h.dailyBriefing},

		{"GET /v1/stats/workouts", h.workoutStats},
		{"GET /v1/stats/mood", h.moodStats},
		{"GET /v1/stats/nutrition", h.nutritionSummary},
		{"GET /v1/stats/photos", h.photoStats},

		{"GET /v1/dashboard", h.dashboard},
	}
	for _, route := range routes {
		mux.Handle(route.pattern, observability.Instrument(route.pattern, route.handler))
	}
	mux.HandleFunc("GET /healthz", healthz)
}

// healthz reports a simple OK status for container health checks.
func healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// ListResponse packages list results.
type ListResponse[T any] struct {
	Items      []T    `json:"items"`
	NextCursor string `json:"next_cursor,omitempty"`
}

func list[T any](items []T) ListResponse[T] {
	if items == nil {
		items = []T{}
	}
	return ListResponse[T]{Items: items}
}

// VisibilityRequest is the payload for PUT /v1/exercises/{id}/visibility.
type VisibilityRequest struct {
	IsPublic *bool `json:"is_public"`
}

func (h *Handler) principal(w http.ResponseWriter, r *http.Request) (domain.Principal, bool) {
	p, err := auth.PrincipalFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthenticated", "missing or invalid identity")
		return domain.Principal{}, false
	}
	return p, true
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return false
	}
	return true
}

func pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "malformed id")
		return uuid.Nil, false
	}
	return id, true
}

func pathSerial(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid_request", "malformed id")
		return 0, false
	}
	return id, true
}

func queryLimit(r *http.Request, fallback int) int {
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			return parsed
		}
	}
	return fallback
}

// queryTime accepts RFC 3339 timestamps or plain dates.
func queryTime(r *http.Request, key string, fallback time.Time) (time.Time, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	return time.Parse(time.DateOnly, raw)
}

// fail maps domain errors onto status codes. Absence and policy rejection share 404.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	var validation *domain.ValidationError
	switch {
	case errors.As(err, &validation):
		writeError(w, http.StatusBadRequest, "validation_failed", validation.Error())
	case errors.Is(err, tenant.ErrIdentityInvalid), errors.Is(err, auth.ErrUnauthenticated):
		writeError(w, http.StatusUnauthorized, "unauthenticated", "missing or invalid identity")
	case errors.Is(err, tenant.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", tenant.ErrNotFound.Error())
	case errors.Is(err, domain.ErrConflict):
		writeError(w, http.StatusConflict, "conflict", domain.ErrConflict.Error())
	case errors.Is(err, domain.ErrPlannerUnavailable):
		writeError(w, http.StatusServiceUnavailable, "planner_unavailable", err.Error())
	case errors.Is(err, planner.ErrInvalidPlan):
		h.logger.Warn("planner returned an unusable plan", zap.String("path", r.URL.Path), zap.Error(err))
		writeError(w, http.StatusBadGateway, "planner_failed", "the plan generator returned an invalid plan")
	default:
		h.logger.Error("request failed", zap.String("method", r.Method), zap.String("path", r.URL.Path), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
	}
}

func writeError(w http.ResponseWriter, status int, code, detail string) {
	payload := map[string]string{
		"type":   code,
		"detail": detail,
	}
	writeJSON(w, status, payload)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func (h *Handler) getProfile(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	profile, err := h.service.GetProfile(r.Context(), p)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (h *Handler) updateProfile(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	var in domain.ProfileUpdate
	if !decode(w, r, &in) {
		return
	}
	profile, err := h.service.UpdateProfile(r.Context(), p, in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (h *Handler) dashboard(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	d, err := h.service.Dashboard(r.Context(), p)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}
