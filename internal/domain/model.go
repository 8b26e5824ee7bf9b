package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/SrSebald/Vitalia/internal/planner"
)

// Profile is the owner record of an authenticated user.
type Profile struct {
	ID               uuid.UUID           `json:"id"`
	AuthUserID       uuid.UUID           `json:"auth_user_id"`
	FullName         *string             `json:"full_name"`
	Username         *string             `json:"username"`
	HeightCm         decimal.NullDecimal `json:"height_cm"`
	WeightKg         decimal.NullDecimal `json:"weight_kg"`
	DateOfBirth      *time.Time          `json:"date_of_birth"`
	BodyType         *string             `json:"body_type"`
	MainGoal         *string             `json:"main_goal"`
	GoalDeadline     *time.Time          `json:"goal_deadline"`
	Motivation       *string             `json:"motivation"`
	ActivityLevel    *string             `json:"activity_level"`
	HealthConditions *string             `json:"health_conditions"`
	Allergies        []string            `json:"allergies"`
	DietType         *string             `json:"diet_type"`
	MealSchedule     *string             `json:"meal_schedule"`
	FitnessGoals     *string             `json:"fitness_goals"`
	CreatedAt        time.Time           `json:"created_at"`
	UpdatedAt        time.Time           `json:"updated_at"`
}

// Workout is a logged training session.
type Workout struct {
	ID          uuid.UUID `json:"id"`
	UserID      uuid.UUID `json:"user_id"`
	Name        string    `json:"name"`
	WorkoutDate time.Time `json:"workout_date"`
	DurationMin *int      `json:"duration_min"`
	Notes       *string   `json:"notes"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Set is one set performed inside a workout.
type Set struct {
	ID          uuid.UUID           `json:"id"`
	WorkoutID   uuid.UUID           `json:"workout_id"`
	ExerciseID  uuid.NullUUID       `json:"exercise_id"`
	SetOrder    *int                `json:"set_order"`
	Reps        *int                `json:"reps"`
	WeightKg    decimal.NullDecimal `json:"weight_kg"`
	DistanceM   decimal.NullDecimal `json:"distance_m"`
	DurationSec *int                `json:"duration_sec"`
	Intensity   *string             `json:"intensity"`
	CreatedAt   time.Time           `json:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at"`
}

// Exercise is a movement definition, visible to everyone when public.
type Exercise struct {
	ID          uuid.UUID     `json:"id"`
	CreatedBy   uuid.NullUUID `json:"created_by"`
	Name        string        `json:"name"`
	MuscleGroup *string       `json:"muscle_group"`
	Equipment   *string       `json:"equipment"`
	Description *string       `json:"description"`
	IsPublic    bool          `json:"is_public"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// NutritionLog is one consumed food item.
type NutritionLog struct {
	ID          uuid.UUID           `json:"id"`
	UserID      uuid.UUID           `json:"user_id"`
	ConsumedAt  time.Time           `json:"consumed_at"`
	MealType    *string             `json:"meal_type"`
	FoodItem    string              `json:"food_item"`
	ServingSize *string             `json:"serving_size"`
	Calories    *int                `json:"calories"`
	ProteinG    decimal.NullDecimal `json:"protein_g"`
	CarbsG      decimal.NullDecimal `json:"carbs_g"`
	FatG        decimal.NullDecimal `json:"fat_g"`
	Notes       *string             `json:"notes"`
	CreatedAt   time.Time           `json:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at"`
}

// MoodLog is a mood rating between 1 and 5.
type MoodLog struct {
	ID         int64     `json:"id"`
	UserID     uuid.UUID `json:"user_id"`
	MoodRating int       `json:"mood_rating"`
	Notes      *string   `json:"notes"`
	LoggedAt   time.Time `json:"logged_at"`
}

// ProgressPhoto references an uploaded progress picture.
type ProgressPhoto struct {
	ID        uuid.UUID  `json:"id"`
	UserID    uuid.UUID  `json:"user_id"`
	ImageURL  string     `json:"image_url"`
	Caption   *string    `json:"caption"`
	TakenOn   *time.Time `json:"taken_on"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// GeneratedWorkout is a saved AI-generated workout plan.
type GeneratedWorkout struct {
	ID                uuid.UUID           `json:"id"`
	UserID            uuid.UUID           `json:"user_id"`
	Title             string              `json:"title"`
	Description       string              `json:"description"`
	Goals             []string            `json:"goals"`
	MuscleGroups      []string            `json:"muscle_groups"`
	Duration          string              `json:"duration"`
	EnergyLevel       string              `json:"energy_level"`
	EstimatedDuration string              `json:"estimated_duration"`
	Plan              planner.WorkoutPlan `json:"workout_data"`
	AdditionalNotes   *string             `json:"additional_notes"`
	CompletedAt       *time.Time          `json:"completed_at"`
	CreatedAt         time.Time           `json:"created_at"`
	UpdatedAt         time.Time           `json:"updated_at"`
}

// Cursor models the pagination token of newest-first listings.
type Cursor struct {
	At time.Time
	ID string
}
