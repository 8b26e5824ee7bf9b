package domain

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/SrSebald/Vitalia/internal/events"
	"github.com/SrSebald/Vitalia/internal/tenant"
)

// Store runs units of work bound to one tenant identity. Every repository reached
// through Tx is filtered by that identity's row policies; Update and Delete report
// the number of affected rows and never fail because a row belongs to someone else.
type Store interface {
	Run(ctx context.Context, identity tenant.Identity, fn func(ctx context.Context, tx Tx) error) error
	RunReadOnly(ctx context.Context, identity tenant.Identity, fn func(ctx context.Context, tx Tx) error) error
}

// Tx exposes the tenant-scoped repositories of one unit of work.
type Tx interface {
	Identity() tenant.Identity
	Profiles() ProfileRepository
	Workouts() WorkoutRepository
	Sets() SetRepository
	Exercises() ExerciseRepository
	NutritionLogs() NutritionLogRepository
	MoodLogs() MoodLogRepository
	ProgressPhotos() ProgressPhotoRepository
	GeneratedWorkouts() GeneratedWorkoutRepository
	Outbox() OutboxRecorder
}

// ProfileRepository persists owner records.
type ProfileRepository interface {
	// Current returns the caller's profile, or nil when none exists yet.
	Current(ctx context.Context) (*Profile, error)
	// Insert creates the profile unless a unique key already exists; it reports whether a row was written.
	Insert(ctx context.Context, p Profile) (bool, error)
	Update(ctx context.Context, p Profile) (int64, error)
}

// WorkoutRepository persists logged workouts.
type WorkoutRepository interface {
	Insert(ctx context.Context, w Workout) error
	Get(ctx context.Context, id uuid.UUID) (*Workout, error)
	List(ctx context.Context, cursor *Cursor, limit int) ([]Workout, error)
	ListSince(ctx context.Context, since time.Time, limit int) ([]Workout, error)
	Update(ctx context.Context, w Workout) (int64, error)
	Delete(ctx context.Context, id uuid.UUID) (int64, error)
	Count(ctx context.Context) (int, error)
	Stats(ctx context.Context) (WorkoutStats, error)
}

// SetRepository persists the sets of workouts.
type SetRepository interface {
	Insert(ctx context.Context, s Set) error
	ListByWorkout(ctx context.Context, workoutID uuid.UUID) ([]Set, error)
	Delete(ctx context.Context, id uuid.UUID) (int64, error)
}

// ExerciseRepository persists exercise definitions.
type ExerciseRepository interface {
	Insert(ctx context.Context, e Exercise) error
	Get(ctx context.Context, id uuid.UUID) (*Exercise, error)
	List(ctx context.Context, f ExerciseFilter, limit int) ([]Exercise, error)
	Facets(ctx context.Context) (ExerciseFacets, error)
	Update(ctx context.Context, e Exercise) (int64, error)
	Delete(ctx context.Context, id uuid.UUID) (int64, error)
}

// NutritionLogRepository persists meal entries.
type NutritionLogRepository interface {
	Insert(ctx context.Context, n NutritionLog) error
	ListBetween(ctx context.Context, from, to time.Time) ([]NutritionLog, error)
	// DailyTotals sums the logs consumed in [from, to] per UTC day, oldest day first.
	DailyTotals(ctx context.Context, from, to time.Time) ([]NutritionDay, error)
	Delete(ctx context.Context, id uuid.UUID) (int64, error)
}

// MoodLogRepository persists mood entries. Insert assigns the identifier.
type MoodLogRepository interface {
	Insert(ctx context.Context, m *MoodLog) error
	Get(ctx context.Context, id int64) (*MoodLog, error)
	ListRecent(ctx context.Context, limit int) ([]MoodLog, error)
	Stats(ctx context.Context, from, to time.Time) (MoodStats, error)
	Update(ctx context.Context, m MoodLog) (int64, error)
	Delete(ctx context.Context, id int64) (int64, error)
}

// ProgressPhotoRepository persists progress photos.
type ProgressPhotoRepository interface {
	Insert(ctx context.Context, p ProgressPhoto) error
	List(ctx context.Context, limit int) ([]ProgressPhoto, error)
	// Stats counts photos by taken_on; the year and month counts are relative to now.
	Stats(ctx context.Context, now time.Time) (PhotoStats, error)
	Delete(ctx context.Context, id uuid.UUID) (int64, error)
}

// GeneratedWorkoutRepository persists saved AI workout plans.
type GeneratedWorkoutRepository interface {
	Insert(ctx context.Context, g GeneratedWorkout) error
	Get(ctx context.Context, id uuid.UUID) (*GeneratedWorkout, error)
	List(ctx context.Context, limit int) ([]GeneratedWorkout, error)
	MarkCompleted(ctx context.Context, id uuid.UUID, at time.Time) (int64, error)
	Delete(ctx context.Context, id uuid.UUID) (int64, error)
}

// OutboxRecorder appends integration events to the unit of work.
type OutboxRecorder interface {
	Record(ctx context.Context, env events.Envelope) error
}
