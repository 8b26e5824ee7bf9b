// Package postgres implements domain.Store on PostgreSQL. Every repository runs
// its statements through a tenant.Session, so row-level security decides which
// rows a unit of work can see or change.
package postgres

import (
	"context"

	"github.com/SrSebald/Vitalia/internal/domain"
	"github.com/SrSebald/Vitalia/internal/tenant"
)

// Store adapts a tenant.Manager to domain.Store.
type Store struct {
	manager *tenant.Manager
}

// NewStore constructs a Store.
func NewStore(manager *tenant.Manager) *Store {
	return &Store{manager: manager}
}

// Run implements domain.Store.
func (s *Store) Run(ctx context.Context, identity tenant.Identity, fn func(ctx context.Context, tx domain.Tx) error) error {
	return s.manager.Run(ctx, identity, func(ctx context.Context, session *tenant.Session) error {
		return fn(ctx, &tx{s: session})
	})
}

// RunReadOnly implements domain.Store.
func (s *Store) RunReadOnly(ctx context.Context, identity tenant.Identity, fn func(ctx context.Context, tx domain.Tx) error) error {
	return s.manager.RunReadOnly(ctx, identity, func(ctx context.Context, session *tenant.Session) error {
		return fn(ctx, &tx{s: session})
	})
}

type tx struct {
	s *tenant.Session
}

func (t *tx) Identity() tenant.Identity { return t.s.Identity() }

func (t *tx) Profiles() domain.ProfileRepository { return profileRepo{t.s} }

func (t *tx) Workouts() domain.WorkoutRepository { return workoutRepo{t.s} }

func (t *tx) Sets() domain.SetRepository { return setRepo{t.s} }

func (t *tx) Exercises() domain.ExerciseRepository { return exerciseRepo{t.s} }

func (t *tx) NutritionLogs() domain.NutritionLogRepository { return nutritionRepo{t.s} }

func (t *tx) MoodLogs() domain.MoodLogRepository { return moodRepo{t.s} }

func (t *tx) ProgressPhotos() domain.ProgressPhotoRepository { return photoRepo{t.s} }

func (t *tx) GeneratedWorkouts() domain.GeneratedWorkoutRepository { return generatedRepo{t.s} }

func (t *tx) Outbox() domain.OutboxRecorder { return outboxRepo{t.s} }
