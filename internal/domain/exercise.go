package domain

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/SrSebald/Vitalia/internal/events"
)

// CreateExerciseInput captures a new exercise definition. Exercises are public
// unless IsPublic is explicitly false.
type CreateExerciseInput struct {
	Name        string  `json:"name"`
	MuscleGroup *string `json:"muscle_group"`
	Equipment   *string `json:"equipment"`
	Description *string `json:"description"`
	IsPublic    *bool   `json:"is_public"`
}

// UpdateExerciseInput is a partial exercise change.
type UpdateExerciseInput struct {
	Name        *string `json:"name"`
	MuscleGroup *string `json:"muscle_group"`
	Equipment   *string `json:"equipment"`
	Description *string `json:"description"`
}

// ExerciseFilter narrows exercise listings. Query matches a case-insensitive
// name fragment; MuscleGroup and Equipment match whole values, ignoring case.
// Empty fields do not filter.
type ExerciseFilter struct {
	Query       string
	MuscleGroup string
	Equipment   string
}

func (f ExerciseFilter) normalize() ExerciseFilter {
	return ExerciseFilter{
		Query:       strings.TrimSpace(f.Query),
		MuscleGroup: strings.TrimSpace(f.MuscleGroup),
		Equipment:   strings.TrimSpace(f.Equipment),
	}
}

// ExerciseFacets lists the distinct muscle groups and equipment among the
// exercises the caller can see, sorted.
type ExerciseFacets struct {
	MuscleGroups []string `json:"muscle_groups"`
	Equipment    []string `json:"equipment"`
}

// CreateExercise adds an exercise owned by the caller.
func (s *Service) CreateExercise(ctx context.Context, p Principal, in CreateExerciseInput) (*Exercise, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, invalid("name", "is required")
	}

	var out *Exercise
	err := s.store.Run(ctx, p.Identity, func(ctx context.Context, tx Tx) error {
		profile, err := s.EnsureProfile(ctx, tx, p)
		if err != nil {
			return err
		}
		now := s.clock()
		e := Exercise{
			ID:          newID(),
			CreatedBy:   uuid.NullUUID{UUID: profile.ID, Valid: true},
			Name:        name,
			MuscleGroup: in.MuscleGroup,
			Equipment:   in.Equipment,
			Description: in.Description,
			IsPublic:    in.IsPublic == nil || *in.IsPublic,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := tx.Exercises().Insert(ctx, e); err != nil {
			return err
		}
		out = &e
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// GetExercise returns an exercise that is public or owned by the caller.
func (s *Service) GetExercise(ctx context.Context, p Principal, id uuid.UUID) (*Exercise, error) {
	var out *Exercise
	err := s.store.RunReadOnly(ctx, p.Identity, func(ctx context.Context, tx Tx) error {
		e, err := tx.Exercises().Get(ctx, id)
		out = e
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ListExercises returns visible exercises matching f, ordered by name.
func (s *Service) ListExercises(ctx context.Context, p Principal, f ExerciseFilter, limit int) ([]Exercise, error) {
	limit = clampLimit(limit)
	var out []Exercise
	err := s.store.RunReadOnly(ctx, p.Identity, func(ctx context.Context, tx Tx) error {
		es, err := tx.Exercises().List(ctx, f.normalize(), limit)
		out = es
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ExerciseFacets returns the muscle groups and equipment used by visible exercises.
func (s *Service) ExerciseFacets(ctx context.Context, p Principal) (*ExerciseFacets, error) {
	var out ExerciseFacets
	err := s.store.RunReadOnly(ctx, p.Identity, func(ctx context.Context, tx Tx) error {
		facets, err := tx.Exercises().Facets(ctx)
		out = facets
		return err
	})
	if err != nil {
		return nil, err
	}
	if out.MuscleGroups == nil {
		out.MuscleGroups = []string{}
	}
	if out.Equipment == nil {
		out.Equipment = []string{}
	}
	return &out, nil
}

// UpdateExercise changes an exercise the caller owns.
func (s *Service) UpdateExercise(ctx context.Context, p Principal, id uuid.UUID, in UpdateExerciseInput) (*Exercise, error) {
	if in.Name != nil && strings.TrimSpace(*in.Name) == "" {
		return nil, invalid("name", "must not be empty")
	}
	e, err := s.mutateExercise(ctx, p, id, func(e *Exercise) {
		if in.Name != nil {
			e.Name = strings.TrimSpace(*in.Name)
		}
		setString(&e.MuscleGroup, in.MuscleGroup)
		setString(&e.Equipment, in.Equipment)
		setString(&e.Description, in.Description)
	})
	if err != nil {
		return nil, err
	}
	if e.IsPublic {
		s.invalidate(ctx, e.ID)
	}
	return e, nil
}

// SetExerciseVisibility publishes or hides an exercise the caller owns.
func (s *Service) SetExerciseVisibility(ctx context.Context, p Principal, id uuid.UUID, public bool) (*Exercise, error) {
	return s.changeVisibility(ctx, p, id, func(bool) bool { return public })
}

// ToggleExerciseVisibility flips the visibility of an exercise the caller owns.
func (s *Service) ToggleExerciseVisibility(ctx context.Context, p Principal, id uuid.UUID) (*Exercise, error) {
	return s.changeVisibility(ctx, p, id, func(current bool) bool { return !current })
}

// DeleteExercise removes an exercise the caller owns. Sets referencing it keep
// their other data.
func (s *Service) DeleteExercise(ctx context.Context, p Principal, id uuid.UUID) error {
	var wasPublic bool
	err := s.store.Run(ctx, p.Identity, func(ctx context.Context, tx Tx) error {
		e, err := tx.Exercises().Get(ctx, id)
		if err != nil {
			return err
		}
		wasPublic = e.IsPublic
		return requireOne(tx.Exercises().Delete(ctx, id))
	})
	if err != nil {
		return err
	}
	if wasPublic {
		s.invalidate(ctx, id)
	}
	return nil
}

func (s *Service) changeVisibility(ctx context.Context, p Principal, id uuid.UUID, next func(bool) bool) (*Exercise, error) {
	var before bool
	e, err := s.mutateExercise(ctx, p, id, func(e *Exercise) {
		before = e.IsPublic
		e.IsPublic = next(e.IsPublic)
	}, func(ctx context.Context, tx Tx, e *Exercise) error {
		if before == e.IsPublic {
			return nil
		}
		return record(ctx, tx, events.ExerciseVisibilityChanged, e.ID.String(), events.ExerciseVisibilityChangedPayload{
			ExerciseID: e.ID.String(),
			IsPublic:   e.IsPublic,
			ChangedAt:  e.UpdatedAt,
		})
	})
	if err != nil {
		return nil, err
	}
	if before != e.IsPublic {
		s.invalidate(ctx, e.ID)
	}
	return e, nil
}

// mutateExercise loads, changes and writes back an exercise in one unit of work.
// Public exercises of other tenants load fine but the write touches zero rows.
func (s *Service) mutateExercise(ctx context.Context, p Principal, id uuid.UUID, change func(*Exercise), after ...func(context.Context, Tx, *Exercise) error) (*Exercise, error) {
	var out *Exercise
	err := s.store.Run(ctx, p.Identity, func(ctx context.Context, tx Tx) error {
		e, err := tx.Exercises().Get(ctx, id)
		if err != nil {
			return err
		}
		change(e)
		e.UpdatedAt = s.clock()
		if err := requireOne(tx.Exercises().Update(ctx, *e)); err != nil {
			return err
		}
		for _, fn := range after {
			if err := fn(ctx, tx, e); err != nil {
				return err
			}
		}
		out = e
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// invalidate purges the edge cache after commit; errors are logged, not returned.
func (s *Service) invalidate(ctx context.Context, id uuid.UUID) {
	if err := s.cache.Invalidate(ctx, id.String()); err != nil {
		s.logger.Warn("exercise cache invalidation failed", zap.String("exercise_id", id.String()), zap.Error(err))
	}
}
