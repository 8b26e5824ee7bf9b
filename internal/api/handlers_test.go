package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/SrSebald/Vitalia/internal/auth"
	"github.com/SrSebald/Vitalia/internal/domain"
	"github.com/SrSebald/Vitalia/internal/persistence/memory"
)

type harness struct {
	mux *http.ServeMux
}

func newHarness(t *testing.T, opts ...domain.Option) *harness {
	t.Helper()
	service := domain.NewService(memory.NewStore(), opts...)
	mux := http.NewServeMux()
	NewHandler(service, nil).RegisterRoutes(mux)
	return &harness{mux: mux}
}

func (h *harness) do(t *testing.T, subject, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if subject != "" {
		req = req.WithContext(auth.WithClaims(req.Context(), &auth.Claims{Subject: subject, Email: "a@example.com"}))
	}
	rr := httptest.NewRecorder()
	h.mux.ServeHTTP(rr, req)
	return rr
}

func decodeBody[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out))
	return out
}

func TestHealthz(t *testing.T) {
	h := newHarness(t)
	rr := h.do(t, "", http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "ok", rr.Body.String())
}

func TestMissingIdentityIsUnauthenticated(t *testing.T) {
	h := newHarness(t)
	rr := h.do(t, "", http.MethodGet, "/v1/profile", nil)
	require.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = h.do(t, "not-a-uuid", http.MethodGet, "/v1/workouts", nil)
	require.Equal(t, http.StatusUnauthorized, rr.Code)
	body := decodeBody[map[string]string](t, rr)
	require.Equal(t, "unauthenticated", body["type"])
}

func TestProfileIsCreatedOnFirstRead(t *testing.T) {
	h := newHarness(t)
	user := uuid.NewString()

	rr := h.do(t, user, http.MethodGet, "/v1/profile", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	profile := decodeBody[domain.Profile](t, rr)
	require.Equal(t, user, profile.AuthUserID.String())

	name := "Ada"
	rr = h.do(t, user, http.MethodPatch, "/v1/profile", domain.ProfileUpdate{FullName: &name})
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "Ada", *decodeBody[domain.Profile](t, rr).FullName)
}

func TestWorkoutsAreInvisibleAcrossTenants(t *testing.T) {
	h := newHarness(t)
	alice, bob := uuid.NewString(), uuid.NewString()

	rr := h.do(t, alice, http.MethodPost, "/v1/workouts", domain.CreateWorkoutInput{Name: "Leg day"})
	require.Equal(t, http.StatusCreated, rr.Code)
	workout := decodeBody[domain.Workout](t, rr)

	rr = h.do(t, alice, http.MethodGet, "/v1/workouts/"+workout.ID.String(), nil)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = h.do(t, bob, http.MethodGet, "/v1/workouts/"+workout.ID.String(), nil)
	require.Equal(t, http.StatusNotFound, rr.Code)
	require.Equal(t, "not_found", decodeBody[map[string]string](t, rr)["type"])

	rr = h.do(t, bob, http.MethodDelete, "/v1/workouts/"+workout.ID.String(), nil)
	require.Equal(t, http.StatusNotFound, rr.Code)

	rr = h.do(t, bob, http.MethodGet, "/v1/workouts", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Empty(t, decodeBody[ListResponse[domain.Workout]](t, rr).Items)

	rr = h.do(t, alice, http.MethodGet, "/v1/workouts", nil)
	require.Len(t, decodeBody[ListResponse[domain.Workout]](t, rr).Items, 1)

	rr = h.do(t, alice, http.MethodDelete, "/v1/workouts/"+workout.ID.String(), nil)
	require.Equal(t, http.StatusNoContent, rr.Code)
}

func TestWorkoutPagination(t *testing.T) {
	h := newHarness(t)
	user := uuid.NewString()
	for _, name := range []string{"a", "b", "c"} {
		rr := h.do(t, user, http.MethodPost, "/v1/workouts", domain.CreateWorkoutInput{Name: name})
		require.Equal(t, http.StatusCreated, rr.Code)
	}

	rr := h.do(t, user, http.MethodGet, "/v1/workouts?limit=2", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	first := decodeBody[ListResponse[domain.Workout]](t, rr)
	require.Len(t, first.Items, 2)
	require.NotEmpty(t, first.NextCursor)

	rr = h.do(t, user, http.MethodGet, "/v1/workouts?limit=2&cursor="+first.NextCursor, nil)
	second := decodeBody[ListResponse[domain.Workout]](t, rr)
	require.Len(t, second.Items, 1)
	require.Empty(t, second.NextCursor)

	rr = h.do(t, user, http.MethodGet, "/v1/workouts?cursor=invalid!", nil)
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestValidationAndMalformedInput(t *testing.T) {
	h := newHarness(t)
	user := uuid.NewString()

	rr := h.do(t, user, http.MethodPost, "/v1/workouts", domain.CreateWorkoutInput{})
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Equal(t, "validation_failed", decodeBody[map[string]string](t, rr)["type"])

	rr = h.do(t, user, http.MethodPost, "/v1/mood-logs", domain.LogMoodInput{MoodRating: 9})
	require.Equal(t, http.StatusBadRequest, rr.Code)

	rr = h.do(t, user, http.MethodGet, "/v1/workouts/not-an-id", nil)
	require.Equal(t, http.StatusBadRequest, rr.Code)

	req := httptest.NewRequest(http.MethodPost, "/v1/exercises", bytes.NewBufferString("{"))
	req = req.WithContext(auth.WithClaims(req.Context(), &auth.Claims{Subject: user}))
	resp := httptest.NewRecorder()
	h.mux.ServeHTTP(resp, req)
	require.Equal(t, http.StatusBadRequest, resp.Code)
	require.Equal(t, "invalid_request", decodeBody[map[string]string](t, resp)["type"])
}

func TestExerciseVisibilityEndpoints(t *testing.T) {
	h := newHarness(t)
	owner, other := uuid.NewString(), uuid.NewString()

	rr := h.do(t, owner, http.MethodPost, "/v1/exercises", domain.CreateExerciseInput{Name: "Pistol squat"})
	require.Equal(t, http.StatusCreated, rr.Code)
	exercise := decodeBody[domain.Exercise](t, rr)
	require.True(t, exercise.IsPublic)
	path := "/v1/exercises/" + exercise.ID.String()

	rr = h.do(t, owner, http.MethodPost, "/v1/exercises", domain.CreateExerciseInput{Name: "Pistol squat"})
	require.Equal(t, http.StatusConflict, rr.Code)

	rr = h.do(t, other, http.MethodGet, path, nil)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = h.do(t, other, http.MethodPost, path+"/visibility/toggle", nil)
	require.Equal(t, http.StatusNotFound, rr.Code)

	rr = h.do(t, owner, http.MethodPut, path+"/visibility", map[string]bool{"is_public": false})
	require.Equal(t, http.StatusOK, rr.Code)
	require.False(t, decodeBody[domain.Exercise](t, rr).IsPublic)

	rr = h.do(t, other, http.MethodGet, path, nil)
	require.Equal(t, http.StatusNotFound, rr.Code)

	rr = h.do(t, owner, http.MethodPut, path+"/visibility", map[string]any{})
	require.Equal(t, http.StatusBadRequest, rr.Code)

	rr = h.do(t, owner, http.MethodPost, path+"/visibility/toggle", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	require.True(t, decodeBody[domain.Exercise](t, rr).IsPublic)
}

func TestJournalEndpoints(t *testing.T) {
	h := newHarness(t)
	user := uuid.NewString()

	rr := h.do(t, user, http.MethodPost, "/v1/nutrition-logs", domain.LogMealInput{FoodItem: "Oats"})
	require.Equal(t, http.StatusCreated, rr.Code)
	meal := decodeBody[domain.NutritionLog](t, rr)

	rr = h.do(t, user, http.MethodGet, "/v1/nutrition-logs", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Len(t, decodeBody[ListResponse[domain.NutritionLog]](t, rr).Items, 1)

	rr = h.do(t, user, http.MethodGet, "/v1/nutrition-logs?from=yesterday", nil)
	require.Equal(t, http.StatusBadRequest, rr.Code)

	rr = h.do(t, uuid.NewString(), http.MethodDelete, "/v1/nutrition-logs/"+meal.ID.String(), nil)
	require.Equal(t, http.StatusNotFound, rr.Code)

	rr = h.do(t, user, http.MethodPost, "/v1/mood-logs", domain.LogMoodInput{MoodRating: 4})
	require.Equal(t, http.StatusCreated, rr.Code)
	rr = h.do(t, user, http.MethodGet, "/v1/mood-logs?limit=5", nil)
	require.Len(t, decodeBody[ListResponse[domain.MoodLog]](t, rr).Items, 1)

	rr = h.do(t, user, http.MethodPost, "/v1/progress-photos", domain.AddPhotoInput{ImageURL: "https://cdn.example.com/p.jpg"})
	require.Equal(t, http.StatusCreated, rr.Code)
	photo := decodeBody[domain.ProgressPhoto](t, rr)
	rr = h.do(t, user, http.MethodDelete, "/v1/progress-photos/"+photo.ID.String(), nil)
	require.Equal(t, http.StatusNoContent, rr.Code)

	rr = h.do(t, user, http.MethodGet, "/v1/dashboard", nil)
	require.Equal(t, http.StatusOK, rr.Code)
}

func TestPlanGenerationWithoutPlanner(t *testing.T) {
	h := newHarness(t)
	rr := h.do(t, uuid.NewString(), http.MethodPost, "/v1/plans/workouts/generate", map[string]any{"duration": "30 minutes"})
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
	require.Equal(t, "planner_unavailable", decodeBody[map[string]string](t, rr)["type"])

	rr = h.do(t, uuid.NewString(), http.MethodGet, "/v1/plans/workouts", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "{\"items\":[]}\n", rr.Body.String())
}

func TestMoodLogEditEndpoints(t *testing.T) {
	h := newHarness(t)
	user := uuid.NewString()

	rr := h.do(t, user, http.MethodPost, "/v1/mood-logs", domain.LogMoodInput{MoodRating: 2})
	require.Equal(t, http.StatusCreated, rr.Code)
	mood := decodeBody[domain.MoodLog](t, rr)
	path := "/v1/mood-logs/" + strconv.FormatInt(mood.ID, 10)

	rating := 5
	rr = h.do(t, uuid.NewString(), http.MethodPatch, path, domain.UpdateMoodInput{MoodRating: &rating})
	require.Equal(t, http.StatusNotFound, rr.Code)

	rr = h.do(t, user, http.MethodPatch, path, domain.UpdateMoodInput{MoodRating: &rating})
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, 5, decodeBody[domain.MoodLog](t, rr).MoodRating)

	bad := 9
	rr = h.do(t, user, http.MethodPatch, path, domain.UpdateMoodInput{MoodRating: &bad})
	require.Equal(t, http.StatusBadRequest, rr.Code)

	rr = h.do(t, user, http.MethodDelete, "/v1/mood-logs/abc", nil)
	require.Equal(t, http.StatusBadRequest, rr.Code)

	rr = h.do(t, user, http.MethodDelete, path, nil)
	require.Equal(t, http.StatusNoContent, rr.Code)
	rr = h.do(t, user, http.MethodDelete, path, nil)
	require.Equal(t, http.StatusNotFound, rr.Code)
}

func TestStatsEndpoints(t *testing.T) {
	h := newHarness(t)
	user := uuid.NewString()

	duration := 40
	rr := h.do(t, user, http.MethodPost, "/v1/workouts", domain.CreateWorkoutInput{Name: "Run", DurationMin: &duration})
	require.Equal(t, http.StatusCreated, rr.Code)
	calories := 300
	rr = h.do(t, user, http.MethodPost, "/v1/nutrition-logs", domain.LogMealInput{FoodItem: "Oats", Calories: &calories})
	require.Equal(t, http.StatusCreated, rr.Code)
	rr = h.do(t, user, http.MethodPost, "/v1/mood-logs", domain.LogMoodInput{MoodRating: 3})
	require.Equal(t, http.StatusCreated, rr.Code)

	rr = h.do(t, user, http.MethodGet, "/v1/stats/workouts", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	workouts := decodeBody[domain.WorkoutStats](t, rr)
	require.Equal(t, 1, workouts.TotalWorkouts)
	require.Equal(t, 40, workouts.TotalDurationMin)

	rr = h.do(t, user, http.MethodGet, "/v1/stats/mood", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	mood := decodeBody[domain.MoodStats](t, rr)
	require.Equal(t, 1, mood.TotalLogs)
	require.Equal(t, 1, mood.Distribution[2])

	rr = h.do(t, user, http.MethodGet, "/v1/stats/nutrition", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	summary := decodeBody[domain.NutritionSummary](t, rr)
	require.Equal(t, 300, summary.Calories)
	require.Len(t, summary.Days, 1)

	rr = h.do(t, user, http.MethodGet, "/v1/stats/nutrition?from=2025-02-01&to=2025-01-01", nil)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Equal(t, "validation_failed", decodeBody[map[string]string](t, rr)["type"])

	rr = h.do(t, user, http.MethodGet, "/v1/stats/mood?to=soon", nil)
	require.Equal(t, http.StatusBadRequest, rr.Code)

	rr = h.do(t, user, http.MethodGet, "/v1/stats/photos", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Zero(t, decodeBody[domain.PhotoStats](t, rr).TotalPhotos)
}

func TestExerciseFilterEndpoints(t *testing.T) {
	h := newHarness(t)
	user := uuid.NewString()

	chest, legs, barbell := "chest", "legs", "barbell"
	for _, in := range []domain.CreateExerciseInput{
		{Name: "Bench press", MuscleGroup: &chest, Equipment: &barbell},
		{Name: "Lunge", MuscleGroup: &legs},
	} {
		rr := h.do(t, user, http.MethodPost, "/v1/exercises", in)
		require.Equal(t, http.StatusCreated, rr.Code)
	}

	rr := h.do(t, user, http.MethodGet, "/v1/exercises?muscle_group=legs", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	items := decodeBody[ListResponse[domain.Exercise]](t, rr).Items
	require.Len(t, items, 1)
	require.Equal(t, "Lunge", items[0].Name)

	rr = h.do(t, user, http.MethodGet, "/v1/exercises?equipment=barbell&q=bench", nil)
	require.Len(t, decodeBody[ListResponse[domain.Exercise]](t, rr).Items, 1)

	rr = h.do(t, user, http.MethodGet, "/v1/exercises/facets", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	facets := decodeBody[domain.ExerciseFacets](t, rr)
	require.Equal(t, []string{"chest", "legs"}, facets.MuscleGroups)
	require.Equal(t, []string{"barbell"}, facets.Equipment)
}
