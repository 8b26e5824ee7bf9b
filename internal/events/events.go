// Package events defines the payloads Vitalia publishes through the outbox.
package events

import (
	"encoding/json"
	"fmt"
	"time"
)

// Event types.
const (
	ProfileCreated            = "profile.created"
	WorkoutLogged             = "workout.logged"
	WorkoutDeleted            = "workout.deleted"
	ExerciseVisibilityChanged = "exercise.visibility_changed"
	PlanSaved                 = "plan.saved"
	PlanCompleted             = "plan.completed"
	MoodLogged                = "mood.logged"
	NutritionLogged           = "nutrition.logged"
	PhotoAdded                = "photo.added"
)

// Route describes where an event type is delivered.
type Route struct {
	Topic         string
	AggregateType string
}

var catalog = map[string]Route{
	ProfileCreated:            {Topic: "vitalia.profile_events", AggregateType: "profile"},
	WorkoutLogged:             {Topic: "vitalia.workout_events", AggregateType: "workout"},
	WorkoutDeleted:            {Topic: "vitalia.workout_events", AggregateType: "workout"},
	ExerciseVisibilityChanged: {Topic: "vitalia.exercise_events", AggregateType: "exercise"},
	PlanSaved:                 {Topic: "vitalia.plan_events", AggregateType: "generated_workout"},
	PlanCompleted:             {Topic: "vitalia.plan_events", AggregateType: "generated_workout"},
	MoodLogged:                {Topic: "vitalia.wellbeing_events", AggregateType: "mood_log"},
	NutritionLogged:           {Topic: "vitalia.wellbeing_events", AggregateType: "nutrition_log"},
	PhotoAdded:                {Topic: "vitalia.wellbeing_events", AggregateType: "progress_photo"},
}

// RouteFor returns the delivery route of an event type.
func RouteFor(eventType string) (Route, bool) {
	route, ok := catalog[eventType]
	return route, ok
}

// Envelope is an event ready to be written to the outbox.
type Envelope struct {
	EventType     string
	TenantID      string
	AggregateType string
	AggregateID   string
	Topic         string
	PartitionKey  string
	DedupeKey     string
	Payload       json.RawMessage
}

// New marshals payload and routes it. Events of one tenant share a partition key so
// they are consumed in order.
func New(eventType, tenantID, aggregateID string, payload any) (Envelope, error) {
	route, ok := RouteFor(eventType)
	if !ok {
		return Envelope{}, fmt.Errorf("unknown event type: %s", eventType)
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	return Envelope{
		EventType:     eventType,
		TenantID:      tenantID,
		AggregateType: route.AggregateType,
		AggregateID:   aggregateID,
		Topic:         route.Topic,
		PartitionKey:  tenantID,
		DedupeKey:     fmt.Sprintf("%s:%s", aggregateID, eventType),
		Payload:       body,
	}, nil
}

// ProfileCreatedPayload is emitted when a profile is created lazily on first use.
type ProfileCreatedPayload struct {
	ProfileID string    `json:"profile_id"`
	Username  string    `json:"username,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// WorkoutLoggedPayload is emitted when a workout is recorded.
type WorkoutLoggedPayload struct {
	WorkoutID   string    `json:"workout_id"`
	ProfileID   string    `json:"profile_id"`
	Name        string    `json:"name"`
	WorkoutDate time.Time `json:"workout_date"`
	DurationMin *int      `json:"duration_min,omitempty"`
}

// WorkoutDeletedPayload is emitted when a workout is removed.
type WorkoutDeletedPayload struct {
	WorkoutID string    `json:"workout_id"`
	DeletedAt time.Time `json:"deleted_at"`
}

// ExerciseVisibilityChangedPayload is emitted when an exercise is published or hidden.
type ExerciseVisibilityChangedPayload struct {
	ExerciseID string    `json:"exercise_id"`
	IsPublic   bool      `json:"is_public"`
	ChangedAt  time.Time `json:"changed_at"`
}

// PlanSavedPayload is emitted when a generated workout plan is stored.
type PlanSavedPayload struct {
	PlanID       string    `json:"plan_id"`
	Title        string    `json:"title"`
	Goals        []string  `json:"goals"`
	MuscleGroups []string  `json:"muscle_groups"`
	SavedAt      time.Time `json:"saved_at"`
}

// PlanCompletedPayload is emitted when a generated plan is marked done.
type PlanCompletedPayload struct {
	PlanID      string    `json:"plan_id"`
	CompletedAt time.Time `json:"completed_at"`
}

// MoodLoggedPayload is emitted for every mood entry.
type MoodLoggedPayload struct {
	MoodLogID  int64     `json:"mood_log_id"`
	MoodRating int       `json:"mood_rating"`
	LoggedAt   time.Time `json:"logged_at"`
}

// NutritionLoggedPayload is emitted for every meal entry.
type NutritionLoggedPayload struct {
	NutritionLogID string    `json:"nutrition_log_id"`
	FoodItem       string    `json:"food_item"`
	Calories       *int      `json:"calories,omitempty"`
	ConsumedAt     time.Time `json:"consumed_at"`
}

// PhotoAddedPayload is emitted when a progress photo is attached.
type PhotoAddedPayload struct {
	PhotoID string    `json:"photo_id"`
	TakenOn time.Time `json:"taken_on"`
}
