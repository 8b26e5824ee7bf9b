package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNewRoutesKnownEvent(t *testing.T) {
	env, err := New(WorkoutLogged, "tenant-1", "workout-1", WorkoutLoggedPayload{
		WorkoutID:   "workout-1",
		ProfileID:   "profile-1",
		Name:        "Leg day",
		WorkoutDate: time.Date(2025, time.March, 3, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	require.Equal(t, "vitalia.workout_events", env.Topic)
	require.Equal(t, "workout", env.AggregateType)
	require.Equal(t, "tenant-1", env.PartitionKey)
	require.Equal(t, "workout-1:workout.logged", env.DedupeKey)
	require.JSONEq(t, `{"workout_id":"workout-1","profile_id":"profile-1","name":"Leg day","workout_date":"2025-03-03T00:00:00Z"}`, string(env.Payload))
}

func TestNewRejectsUnknownEvent(t *testing.T) {
	_, err := New("workout.exploded", "tenant-1", "workout-1", struct{}{})
	require.Error(t, err)
}

func TestEveryEventHasRoute(t *testing.T) {
	for _, eventType := range []string{
		ProfileCreated, WorkoutLogged, WorkoutDeleted, ExerciseVisibilityChanged,
		PlanSaved, PlanCompleted, MoodLogged, NutritionLogged, PhotoAdded,
	} {
		route, ok := RouteFor(eventType)
		require.True(t, ok, eventType)
		require.NotEmpty(t, route.Topic)
		require.NotEmpty(t, route.AggregateType)
	}
}
