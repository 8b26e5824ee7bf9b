package domain_test

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/SrSebald/Vitalia/internal/domain"
	"github.com/SrSebald/Vitalia/internal/events"
	"github.com/SrSebald/Vitalia/internal/persistence/memory"
	"github.com/SrSebald/Vitalia/internal/planner"
	"github.com/SrSebald/Vitalia/internal/tenant"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const maxUsernameRunes = 30

var fixedNow = time.Date(2025, time.May, 14, 9, 30, 0, 0, time.UTC)

type recordingInvalidator struct {
	mu  sync.Mutex
	ids []string
}

func (r *recordingInvalidator) Invalidate(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ids = append(r.ids, id)
	return nil
}

type stubPlanner struct {
	workout  *planner.WorkoutPlan
	daily    *planner.DailyNutritionPlan
	briefing planner.BriefingInput
}

func (s *stubPlanner) GenerateWorkout(context.Context, planner.WorkoutRequest) (*planner.WorkoutPlan, error) {
	return s.workout, nil
}

func (s *stubPlanner) GenerateDailyNutrition(_ context.Context, in planner.BriefingInput) (*planner.DailyNutritionPlan, error) {
	s.briefing = in
	return s.daily, nil
}

type fixture struct {
	store *memory.Store
	svc   *domain.Service
	cache *recordingInvalidator
	plan  *stubPlanner
}

func newFixture() fixture {
	store := memory.NewStore()
	inv := &recordingInvalidator{}
	plan := &stubPlanner{}
	svc := domain.NewService(store,
		domain.WithInvalidator(inv),
		domain.WithPlanner(plan),
		domain.WithClock(func() time.Time { return fixedNow }),
	)
	return fixture{store: store, svc: svc, cache: inv, plan: plan}
}

func principal(email string) domain.Principal {
	return domain.Principal{Identity: tenant.NewIdentity(uuid.New()), Email: email, FullName: "Test User"}
}

func eventTypes(envs []events.Envelope) []string {
	out := make([]string, 0, len(envs))
	for _, e := range envs {
		out = append(out, e.EventType)
	}
	return out
}

func TestProfileIsCreatedLazily(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	p := principal("Ana.Lopez@example.com")

	profile, err := f.svc.GetProfile(ctx, p)
	require.NoError(t, err)
	require.Equal(t, p.Identity.UUID(), profile.ID)
	require.Equal(t, p.Identity.UUID(), profile.AuthUserID)
	require.Equal(t, "ana.lopez", *profile.Username)
	require.Equal(t, "Test User", *profile.FullName)

	again, err := f.svc.GetProfile(ctx, p)
	require.NoError(t, err)
	require.Equal(t, profile.ID, again.ID)
	require.Equal(t, []string{events.ProfileCreated}, eventTypes(f.store.Outbox()))
}

func TestLazyProfileFallsBackWhenUsernameTaken(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	_, err := f.svc.GetProfile(ctx, principal("sam@one.example"))
	require.NoError(t, err)

	profile, err := f.svc.GetProfile(ctx, principal("sam@two.example"))
	require.NoError(t, err)
	require.Nil(t, profile.Username)
}

func TestUpdateProfileValidatesAndApplies(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	p := principal("kai@example.com")

	_, err := f.svc.UpdateProfile(ctx, p, domain.ProfileUpdate{Username: ptr("ab")})
	require.True(t, domain.IsValidation(err))

	negative := decimal.NewFromInt(-70)
	_, err = f.svc.UpdateProfile(ctx, p, domain.ProfileUpdate{WeightKg: &negative})
	require.True(t, domain.IsValidation(err))

	weight := decimal.RequireFromString("72.5")
	updated, err := f.svc.UpdateProfile(ctx, p, domain.ProfileUpdate{
		WeightKg:  &weight,
		MainGoal:  ptr("lose fat"),
		Allergies: &[]string{" peanuts ", "peanuts", ""},
	})
	require.NoError(t, err)
	require.True(t, updated.WeightKg.Decimal.Equal(weight))
	require.Equal(t, []string{"peanuts"}, updated.Allergies)

	got, err := f.svc.GetProfile(ctx, p)
	require.NoError(t, err)
	require.Equal(t, "lose fat", *got.MainGoal)
}

func TestUsernameLengthCountsCharacters(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	p := principal("noor@example.com")

	updated, err := f.svc.UpdateProfile(ctx, p, domain.ProfileUpdate{Username: ptr("ñoño")})
	require.NoError(t, err)
	require.Equal(t, "ñoño", *updated.Username)

	_, err = f.svc.UpdateProfile(ctx, p, domain.ProfileUpdate{Username: ptr(strings.Repeat("é", maxUsernameRunes))})
	require.NoError(t, err)

	_, err = f.svc.UpdateProfile(ctx, p, domain.ProfileUpdate{Username: ptr(strings.Repeat("é", maxUsernameRunes+1))})
	require.True(t, domain.IsValidation(err))

	_, err = f.svc.UpdateProfile(ctx, p, domain.ProfileUpdate{Username: ptr("ñ")})
	require.True(t, domain.IsValidation(err))

	long, err := f.svc.GetProfile(ctx, principal(strings.Repeat("ü", 40)+"@example.com"))
	require.NoError(t, err)
	require.Equal(t, strings.Repeat("ü", maxUsernameRunes), *long.Username)
}

func TestUsernameConflict(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	_, err := f.svc.GetProfile(ctx, principal("taken@example.com"))
	require.NoError(t, err)

	_, err = f.svc.UpdateProfile(ctx, principal("other@example.com"), domain.ProfileUpdate{Username: ptr("taken")})
	require.ErrorIs(t, err, domain.ErrConflict)
}

func TestWorkoutLifecycleIsTenantScoped(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	a := principal("a@example.com")
	b := principal("b@example.com")

	w, err := f.svc.CreateWorkout(ctx, a, domain.CreateWorkoutInput{Name: "  Push  ", DurationMin: ptr(45)})
	require.NoError(t, err)
	require.Equal(t, "Push", w.Name)
	require.Equal(t, time.Date(2025, time.May, 14, 0, 0, 0, 0, time.UTC), w.WorkoutDate)

	_, err = f.svc.GetWorkout(ctx, b, w.ID)
	require.ErrorIs(t, err, tenant.ErrNotFound)
	_, err = f.svc.UpdateWorkout(ctx, b, w.ID, domain.UpdateWorkoutInput{Name: ptr("mine")})
	require.ErrorIs(t, err, tenant.ErrNotFound)
	require.ErrorIs(t, f.svc.DeleteWorkout(ctx, b, w.ID), tenant.ErrNotFound)
	_, err = f.svc.AddSet(ctx, b, w.ID, domain.AddSetInput{Reps: ptr(10)})
	require.ErrorIs(t, err, tenant.ErrNotFound)

	list, _, err := f.svc.ListWorkouts(ctx, b, nil, 10)
	require.NoError(t, err)
	require.Empty(t, list)

	updated, err := f.svc.UpdateWorkout(ctx, a, w.ID, domain.UpdateWorkoutInput{Notes: ptr("felt strong")})
	require.NoError(t, err)
	require.Equal(t, "felt strong", *updated.Notes)

	set, err := f.svc.AddSet(ctx, a, w.ID, domain.AddSetInput{Reps: ptr(8), WeightKg: ptr(decimal.NewFromInt(60))})
	require.NoError(t, err)
	sets, err := f.svc.ListSets(ctx, a, w.ID)
	require.NoError(t, err)
	require.Len(t, sets, 1)
	require.Equal(t, set.ID, sets[0].ID)

	require.NoError(t, f.svc.DeleteWorkout(ctx, a, w.ID))
	_, err = f.svc.GetWorkout(ctx, a, w.ID)
	require.ErrorIs(t, err, tenant.ErrNotFound)

	require.Equal(t,
		[]string{events.ProfileCreated, events.WorkoutLogged, events.WorkoutDeleted},
		eventTypes(f.store.Outbox()))
}

func TestWorkoutValidation(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	p := principal("v@example.com")

	_, err := f.svc.CreateWorkout(ctx, p, domain.CreateWorkoutInput{Name: " "})
	require.True(t, domain.IsValidation(err))
	_, err = f.svc.CreateWorkout(ctx, p, domain.CreateWorkoutInput{Name: "Run", DurationMin: ptr(0)})
	require.True(t, domain.IsValidation(err))
	_, err = f.svc.AddSet(ctx, p, uuid.New(), domain.AddSetInput{Reps: ptr(0)})
	require.True(t, domain.IsValidation(err))
	_, err = f.svc.AddSet(ctx, p, uuid.New(), domain.AddSetInput{DistanceM: ptr(decimal.NewFromInt(-1))})
	require.True(t, domain.IsValidation(err))
}

func TestListWorkoutsPaginates(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	p := principal("pager@example.com")
	for i := range 5 {
		_, err := f.svc.CreateWorkout(ctx, p, domain.CreateWorkoutInput{
			Name:        "w",
			WorkoutDate: fixedNow.AddDate(0, 0, -i),
		})
		require.NoError(t, err)
	}

	first, next, err := f.svc.ListWorkouts(ctx, p, nil, 2)
	require.NoError(t, err)
	require.Len(t, first, 2)
	require.NotNil(t, next)
	require.True(t, first[0].WorkoutDate.After(first[1].WorkoutDate))

	second, next, err := f.svc.ListWorkouts(ctx, p, next, 2)
	require.NoError(t, err)
	require.Len(t, second, 2)
	require.True(t, second[0].WorkoutDate.Before(first[1].WorkoutDate))

	third, next, err := f.svc.ListWorkouts(ctx, p, next, 2)
	require.NoError(t, err)
	require.Len(t, third, 1)
	require.Nil(t, next)
}

func TestSetCannotReferencePrivateExerciseOfAnotherTenant(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	a := principal("owner@example.com")
	b := principal("lifter@example.com")

	private, err := f.svc.CreateExercise(ctx, a, domain.CreateExerciseInput{Name: "Secret row", IsPublic: ptr(false)})
	require.NoError(t, err)
	w, err := f.svc.CreateWorkout(ctx, b, domain.CreateWorkoutInput{Name: "Back"})
	require.NoError(t, err)

	_, err = f.svc.AddSet(ctx, b, w.ID, domain.AddSetInput{ExerciseID: &private.ID, Reps: ptr(5)})
	require.ErrorIs(t, err, tenant.ErrNotFound)
}

func TestExerciseVisibilityScenario(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	a := principal("coach@example.com")
	b := principal("athlete@example.com")

	e, err := f.svc.CreateExercise(ctx, a, domain.CreateExerciseInput{Name: "Pistol squat"})
	require.NoError(t, err)
	require.True(t, e.IsPublic)

	hidden, err := f.svc.SetExerciseVisibility(ctx, a, e.ID, false)
	require.NoError(t, err)
	require.False(t, hidden.IsPublic)

	list, err := f.svc.ListExercises(ctx, b, domain.ExerciseFilter{}, 0)
	require.NoError(t, err)
	require.Empty(t, list)
	list, err = f.svc.ListExercises(ctx, a, domain.ExerciseFilter{Query: "pistol"}, 0)
	require.NoError(t, err)
	require.Len(t, list, 1)

	_, err = f.svc.ToggleExerciseVisibility(ctx, b, e.ID)
	require.ErrorIs(t, err, tenant.ErrNotFound)

	shown, err := f.svc.ToggleExerciseVisibility(ctx, a, e.ID)
	require.NoError(t, err)
	require.True(t, shown.IsPublic)

	list, err = f.svc.ListExercises(ctx, b, domain.ExerciseFilter{}, 0)
	require.NoError(t, err)
	require.Len(t, list, 1)

	_, err = f.svc.UpdateExercise(ctx, b, e.ID, domain.UpdateExerciseInput{Name: ptr("Mine now")})
	require.ErrorIs(t, err, tenant.ErrNotFound)
	require.ErrorIs(t, f.svc.DeleteExercise(ctx, b, e.ID), tenant.ErrNotFound)

	require.Equal(t, []string{e.ID.String(), e.ID.String()}, f.cache.ids)
}

func TestExerciseNamesAreUniquePerOwner(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	a := principal("one@example.com")
	b := principal("two@example.com")

	_, err := f.svc.CreateExercise(ctx, a, domain.CreateExerciseInput{Name: "Curl", IsPublic: ptr(false)})
	require.NoError(t, err)
	_, err = f.svc.CreateExercise(ctx, a, domain.CreateExerciseInput{Name: "Curl"})
	require.ErrorIs(t, err, domain.ErrConflict)
	_, err = f.svc.CreateExercise(ctx, b, domain.CreateExerciseInput{Name: "Curl"})
	require.NoError(t, err)
}

func TestJournalsAreTenantScoped(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	a := principal("journal-a@example.com")
	b := principal("journal-b@example.com")

	_, err := f.svc.LogMood(ctx, a, domain.LogMoodInput{MoodRating: 6})
	require.True(t, domain.IsValidation(err))
	mood, err := f.svc.LogMood(ctx, a, domain.LogMoodInput{MoodRating: 4})
	require.NoError(t, err)
	require.Equal(t, int64(1), mood.ID)

	meal, err := f.svc.LogMeal(ctx, a, domain.LogMealInput{FoodItem: "Oats", Calories: ptr(350)})
	require.NoError(t, err)
	_, err = f.svc.LogMeal(ctx, a, domain.LogMealInput{FoodItem: "Oats", Calories: ptr(-1)})
	require.True(t, domain.IsValidation(err))

	photo, err := f.svc.AddProgressPhoto(ctx, a, domain.AddPhotoInput{ImageURL: "https://cdn.example/p.jpg"})
	require.NoError(t, err)
	_, err = f.svc.AddProgressPhoto(ctx, a, domain.AddPhotoInput{})
	require.True(t, domain.IsValidation(err))

	moods, err := f.svc.ListMoodLogs(ctx, b, 10)
	require.NoError(t, err)
	require.Empty(t, moods)
	meals, err := f.svc.ListNutritionLogs(ctx, b, fixedNow.Add(-time.Hour), fixedNow)
	require.NoError(t, err)
	require.Empty(t, meals)
	photos, err := f.svc.ListProgressPhotos(ctx, b, 10)
	require.NoError(t, err)
	require.Empty(t, photos)

	require.ErrorIs(t, f.svc.DeleteNutritionLog(ctx, b, meal.ID), tenant.ErrNotFound)
	require.ErrorIs(t, f.svc.DeleteProgressPhoto(ctx, b, photo.ID), tenant.ErrNotFound)

	meals, err = f.svc.ListNutritionLogs(ctx, a, fixedNow.Add(-time.Hour), fixedNow)
	require.NoError(t, err)
	require.Len(t, meals, 1)
	require.NoError(t, f.svc.DeleteNutritionLog(ctx, a, meal.ID))
	require.NoError(t, f.svc.DeleteProgressPhoto(ctx, a, photo.ID))
}

func samplePlan() planner.WorkoutPlan {
	return planner.WorkoutPlan{
		Title:     "Upper body",
		Exercises: []planner.Exercise{{Name: "Press", Sets: 3, Reps: "8-10", Rest: "60s"}},
	}
}

func TestGeneratedWorkoutLifecycle(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	a := principal("gen-a@example.com")
	b := principal("gen-b@example.com")
	plan := samplePlan()
	f.plan.workout = &plan

	_, err := f.svc.GenerateWorkoutPlan(ctx, a, planner.WorkoutRequest{Goals: []string{"Strength"}})
	require.True(t, domain.IsValidation(err))

	req := planner.WorkoutRequest{Goals: []string{"Strength"}, MuscleGroups: []string{"Chest"}, Duration: "45 min", EnergyLevel: "High"}
	generated, err := f.svc.GenerateWorkoutPlan(ctx, a, req)
	require.NoError(t, err)

	saved, err := f.svc.SaveGeneratedWorkout(ctx, a, domain.SaveWorkoutInput{Request: req, Plan: *generated})
	require.NoError(t, err)
	require.Equal(t, "Upper body", saved.Title)

	_, err = f.svc.GetGeneratedWorkout(ctx, b, saved.ID)
	require.ErrorIs(t, err, tenant.ErrNotFound)
	require.ErrorIs(t, f.svc.CompleteGeneratedWorkout(ctx, b, saved.ID), tenant.ErrNotFound)

	require.NoError(t, f.svc.CompleteGeneratedWorkout(ctx, a, saved.ID))
	got, err := f.svc.GetGeneratedWorkout(ctx, a, saved.ID)
	require.NoError(t, err)
	require.Equal(t, fixedNow, *got.CompletedAt)

	list, err := f.svc.ListGeneratedWorkouts(ctx, a, 0)
	require.NoError(t, err)
	require.Len(t, list, 1)

	require.NoError(t, f.svc.DeleteGeneratedWorkout(ctx, a, saved.ID))
	list, err = f.svc.ListGeneratedWorkouts(ctx, a, 0)
	require.NoError(t, err)
	require.Empty(t, list)
}

func TestGenerateWithoutPlanner(t *testing.T) {
	svc := domain.NewService(memory.NewStore())
	_, err := svc.GenerateDailyBriefing(context.Background(), principal("x@example.com"))
	require.ErrorIs(t, err, domain.ErrPlannerUnavailable)
}

func TestDailyBriefingGathersOwnContextOnly(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	a := principal("brief-a@example.com")
	b := principal("brief-b@example.com")
	f.plan.daily = &planner.DailyNutritionPlan{DailyTitle: "Recovery"}

	_, err := f.svc.CreateWorkout(ctx, a, domain.CreateWorkoutInput{Name: "Legs", DurationMin: ptr(50), WorkoutDate: fixedNow.AddDate(0, 0, -1)})
	require.NoError(t, err)
	_, err = f.svc.LogMeal(ctx, a, domain.LogMealInput{FoodItem: "Rice", Calories: ptr(600), ProteinG: ptr(decimal.NewFromInt(20)), ConsumedAt: fixedNow.AddDate(0, 0, -1)})
	require.NoError(t, err)
	_, err = f.svc.LogMeal(ctx, a, domain.LogMealInput{FoodItem: "Eggs", Calories: ptr(200), ConsumedAt: fixedNow})
	require.NoError(t, err)
	_, err = f.svc.LogMood(ctx, a, domain.LogMoodInput{MoodRating: 2, Notes: ptr("tired")})
	require.NoError(t, err)
	_, err = f.svc.CreateWorkout(ctx, b, domain.CreateWorkoutInput{Name: "Other tenant"})
	require.NoError(t, err)

	plan, err := f.svc.GenerateDailyBriefing(ctx, a)
	require.NoError(t, err)
	require.Equal(t, "Recovery", plan.DailyTitle)

	in := f.plan.briefing
	require.Len(t, in.RecentWorkouts, 1)
	require.Equal(t, "Legs", in.RecentWorkouts[0].Name)
	require.Equal(t, 600, in.Yesterday.Calories)
	require.True(t, in.Yesterday.ProteinG.Equal(decimal.NewFromInt(20)))
	require.Len(t, in.RecentMoods, 1)
	require.Equal(t, "tired", in.RecentMoods[0].Notes)
}

func TestDashboard(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	a := principal("dash@example.com")

	for range 3 {
		_, err := f.svc.CreateWorkout(ctx, a, domain.CreateWorkoutInput{Name: "w"})
		require.NoError(t, err)
	}
	_, err := f.svc.LogMeal(ctx, a, domain.LogMealInput{FoodItem: "Toast", Calories: ptr(150)})
	require.NoError(t, err)
	_, err = f.svc.AddProgressPhoto(ctx, a, domain.AddPhotoInput{ImageURL: "https://cdn.example/1.jpg"})
	require.NoError(t, err)

	dash, err := f.svc.Dashboard(ctx, a)
	require.NoError(t, err)
	require.Equal(t, 3, dash.WorkoutCount)
	require.Len(t, dash.RecentWorkouts, 3)
	require.Equal(t, 150, dash.Today.Calories)
	require.NotNil(t, dash.LatestPhoto)

	empty, err := f.svc.Dashboard(ctx, principal("new@example.com"))
	require.NoError(t, err)
	require.Zero(t, empty.WorkoutCount)
	require.Nil(t, empty.LatestPhoto)
}

func TestZeroIdentityNeverReachesStore(t *testing.T) {
	f := newFixture()
	_, err := f.svc.GetProfile(context.Background(), domain.Principal{})
	require.ErrorIs(t, err, tenant.ErrIdentityInvalid)
	_, err = f.svc.GenerateWorkoutPlan(context.Background(), domain.Principal{}, planner.WorkoutRequest{})
	require.ErrorIs(t, err, tenant.ErrIdentityInvalid)
}

func ptr[T any](v T) *T { return &v }
