package domain

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/SrSebald/Vitalia/internal/events"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// CreateWorkoutInput captures a workout to log. A zero WorkoutDate means today.
type CreateWorkoutInput struct {
	Name        string    `json:"name"`
	WorkoutDate time.Time `json:"workout_date"`
	DurationMin *int      `json:"duration_min"`
	Notes       *string   `json:"notes"`
}

// UpdateWorkoutInput is a partial workout change.
type UpdateWorkoutInput struct {
	Name        *string    `json:"name"`
	WorkoutDate *time.Time `json:"workout_date"`
	DurationMin *int       `json:"duration_min"`
	Notes       *string    `json:"notes"`
}

// AddSetInput captures one performed set.
type AddSetInput struct {
	ExerciseID  *uuid.UUID       `json:"exercise_id"`
	SetOrder    *int             `json:"set_order"`
	Reps        *int             `json:"reps"`
	WeightKg    *decimal.Decimal `json:"weight_kg"`
	DistanceM   *decimal.Decimal `json:"distance_m"`
	DurationSec *int             `json:"duration_sec"`
	Intensity   *string          `json:"intensity"`
}

// CreateWorkout logs a workout for the caller.
func (s *Service) CreateWorkout(ctx context.Context, p Principal, in CreateWorkoutInput) (*Workout, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, invalid("name", "is required")
	}
	if in.DurationMin != nil && *in.DurationMin <= 0 {
		return nil, invalid("duration_min", "must be positive")
	}

	var out *Workout
	err := s.store.Run(ctx, p.Identity, func(ctx context.Context, tx Tx) error {
		profile, err := s.EnsureProfile(ctx, tx, p)
		if err != nil {
			return err
		}
		now := s.clock()
		date := in.WorkoutDate
		if date.IsZero() {
			date = now
		}
		w := Workout{
			ID:          newID(),
			UserID:      profile.ID,
			Name:        name,
			WorkoutDate: truncateDay(date),
			DurationMin: in.DurationMin,
			Notes:       in.Notes,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := tx.Workouts().Insert(ctx, w); err != nil {
			return err
		}
		if err := record(ctx, tx, events.WorkoutLogged, w.ID.String(), events.WorkoutLoggedPayload{
			WorkoutID:   w.ID.String(),
			ProfileID:   profile.ID.String(),
			Name:        w.Name,
			WorkoutDate: w.WorkoutDate,
			DurationMin: w.DurationMin,
		}); err != nil {
			return err
		}
		out = &w
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// GetWorkout returns a visible workout.
func (s *Service) GetWorkout(ctx context.Context, p Principal, id uuid.UUID) (*Workout, error) {
	var out *Workout
	err := s.store.RunReadOnly(ctx, p.Identity, func(ctx context.Context, tx Tx) error {
		w, err := tx.Workouts().Get(ctx, id)
		out = w
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ListWorkouts returns the caller's workouts newest first.
func (s *Service) ListWorkouts(ctx context.Context, p Principal, cursor *Cursor, limit int) ([]Workout, *Cursor, error) {
	limit = clampLimit(limit)
	var out []Workout
	err := s.store.RunReadOnly(ctx, p.Identity, func(ctx context.Context, tx Tx) error {
		ws, err := tx.Workouts().List(ctx, cursor, limit)
		out = ws
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	var next *Cursor
	if len(out) == limit {
		last := out[len(out)-1]
		next = &Cursor{At: last.WorkoutDate, ID: last.ID.String()}
	}
	return out, next, nil
}

// UpdateWorkout applies a partial change to a workout the caller owns.
func (s *Service) UpdateWorkout(ctx context.Context, p Principal, id uuid.UUID, in UpdateWorkoutInput) (*Workout, error) {
	if in.Name != nil && strings.TrimSpace(*in.Name) == "" {
		return nil, invalid("name", "must not be empty")
	}
	if in.DurationMin != nil && *in.DurationMin <= 0 {
		return nil, invalid("duration_min", "must be positive")
	}

	var out *Workout
	err := s.store.Run(ctx, p.Identity, func(ctx context.Context, tx Tx) error {
		w, err := tx.Workouts().Get(ctx, id)
		if err != nil {
			return err
		}
		if in.Name != nil {
			w.Name = strings.TrimSpace(*in.Name)
		}
		if in.WorkoutDate != nil {
			w.WorkoutDate = truncateDay(*in.WorkoutDate)
		}
		if in.DurationMin != nil {
			w.DurationMin = in.DurationMin
		}
		if in.Notes != nil {
			w.Notes = optionalString(*in.Notes)
		}
		w.UpdatedAt = s.clock()
		if err := requireOne(tx.Workouts().Update(ctx, *w)); err != nil {
			return err
		}
		out = w
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteWorkout removes a workout and its sets.
func (s *Service) DeleteWorkout(ctx context.Context, p Principal, id uuid.UUID) error {
	return s.store.Run(ctx, p.Identity, func(ctx context.Context, tx Tx) error {
		if err := requireOne(tx.Workouts().Delete(ctx, id)); err != nil {
			return err
		}
		return record(ctx, tx, events.WorkoutDeleted, id.String(), events.WorkoutDeletedPayload{
			WorkoutID: id.String(),
			DeletedAt: s.clock(),
		})
	})
}

// AddSet appends a set to a workout the caller owns.
func (s *Service) AddSet(ctx context.Context, p Principal, workoutID uuid.UUID, in AddSetInput) (*Set, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	var out *Set
	err := s.store.Run(ctx, p.Identity, func(ctx context.Context, tx Tx) error {
		set := Set{
			ID:          newID(),
			WorkoutID:   workoutID,
			SetOrder:    in.SetOrder,
			Reps:        in.Reps,
			DurationSec: in.DurationSec,
			Intensity:   in.Intensity,
		}
		if in.ExerciseID != nil {
			// Foreign keys ignore row policies, so a private exercise of another
			// tenant has to be rejected here.
			if _, err := tx.Exercises().Get(ctx, *in.ExerciseID); err != nil {
				return err
			}
			set.ExerciseID = uuid.NullUUID{UUID: *in.ExerciseID, Valid: true}
		}
		if in.WeightKg != nil {
			set.WeightKg = decimal.NewNullDecimal(*in.WeightKg)
		}
		if in.DistanceM != nil {
			set.DistanceM = decimal.NewNullDecimal(*in.DistanceM)
		}
		set.CreatedAt = s.clock()
		set.UpdatedAt = set.CreatedAt
		if err := tx.Sets().Insert(ctx, set); err != nil {
			return err
		}
		out = &set
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ListSets returns the sets of a visible workout in order.
func (s *Service) ListSets(ctx context.Context, p Principal, workoutID uuid.UUID) ([]Set, error) {
	var out []Set
	err := s.store.RunReadOnly(ctx, p.Identity, func(ctx context.Context, tx Tx) error {
		if _, err := tx.Workouts().Get(ctx, workoutID); err != nil {
			return err
		}
		sets, err := tx.Sets().ListByWorkout(ctx, workoutID)
		out = sets
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteSet removes a set from a workout the caller owns.
func (s *Service) DeleteSet(ctx context.Context, p Principal, setID uuid.UUID) error {
	return s.store.Run(ctx, p.Identity, func(ctx context.Context, tx Tx) error {
		return requireOne(tx.Sets().Delete(ctx, setID))
	})
}

func (in AddSetInput) validate() error {
	if in.Reps != nil && *in.Reps <= 0 {
		return invalid("reps", "must be positive")
	}
	if in.WeightKg != nil && in.WeightKg.IsNegative() {
		return invalid("weight_kg", "must not be negative")
	}
	if in.DistanceM != nil && in.DistanceM.IsNegative() {
		return invalid("distance_m", "must not be negative")
	}
	if in.DurationSec != nil && *in.DurationSec < 0 {
		return invalid("duration_sec", "must not be negative")
	}
	return nil
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return defaultPageSize
	case limit > maxPageSize:
		return maxPageSize
	default:
		return limit
	}
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
