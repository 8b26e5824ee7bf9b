// Package memory is an in-process domain.Store that evaluates the same row
// policies as the PostgreSQL schema. It backs unit tests and local development.
package memory

import (
	"context"
	"errors"
	"maps"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/SrSebald/Vitalia/internal/domain"
	"github.com/SrSebald/Vitalia/internal/events"
	"github.com/SrSebald/Vitalia/internal/policy"
	"github.com/SrSebald/Vitalia/internal/tenant"
)

var errReadOnly = errors.New("memory: write in read-only unit of work")

type dataset struct {
	profiles  map[uuid.UUID]domain.Profile
	workouts  map[uuid.UUID]domain.Workout
	sets      map[uuid.UUID]domain.Set
	exercises map[uuid.UUID]domain.Exercise
	nutrition map[uuid.UUID]domain.NutritionLog
	moods     map[int64]domain.MoodLog
	photos    map[uuid.UUID]domain.ProgressPhoto
	generated map[uuid.UUID]domain.GeneratedWorkout
	outbox    []events.Envelope
	moodSeq   int64
}

func newDataset() *dataset {
	return &dataset{
		profiles:  make(map[uuid.UUID]domain.Profile),
		workouts:  make(map[uuid.UUID]domain.Workout),
		sets:      make(map[uuid.UUID]domain.Set),
		exercises: make(map[uuid.UUID]domain.Exercise),
		nutrition: make(map[uuid.UUID]domain.NutritionLog),
		moods:     make(map[int64]domain.MoodLog),
		photos:    make(map[uuid.UUID]domain.ProgressPhoto),
		generated: make(map[uuid.UUID]domain.GeneratedWorkout),
	}
}

func (d *dataset) clone() *dataset {
	return &dataset{
		profiles:  maps.Clone(d.profiles),
		workouts:  maps.Clone(d.workouts),
		sets:      maps.Clone(d.sets),
		exercises: maps.Clone(d.exercises),
		nutrition: maps.Clone(d.nutrition),
		moods:     maps.Clone(d.moods),
		photos:    maps.Clone(d.photos),
		generated: maps.Clone(d.generated),
		outbox:    slices.Clone(d.outbox),
		moodSeq:   d.moodSeq,
	}
}

// Store keeps every table in memory. A unit of work works on a copy of the data
// that replaces the original only when the unit succeeds.
type Store struct {
	mu   sync.RWMutex
	data *dataset
}

// NewStore constructs an empty Store.
func NewStore() *Store {
	return &Store{data: newDataset()}
}

// Run implements domain.Store.
func (s *Store) Run(ctx context.Context, identity tenant.Identity, fn func(ctx context.Context, tx domain.Tx) error) error {
	if identity.IsZero() {
		return tenant.ErrIdentityInvalid
	}
	return s.run(ctx, identity, false, fn)
}

// RunReadOnly implements domain.Store.
func (s *Store) RunReadOnly(ctx context.Context, identity tenant.Identity, fn func(ctx context.Context, tx domain.Tx) error) error {
	if identity.IsZero() {
		return tenant.ErrIdentityInvalid
	}
	return s.run(ctx, identity, true, fn)
}

// run executes fn under identity. A zero identity behaves like a session with no
// ambient tenant: every policy-filtered read is empty and every write is refused.
func (s *Store) run(ctx context.Context, identity tenant.Identity, readOnly bool, fn func(ctx context.Context, tx domain.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if readOnly {
		s.mu.RLock()
		defer s.mu.RUnlock()
		t := &tx{data: s.data, identity: identity, readOnly: true}
		defer t.close()
		return fn(ctx, t)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	t := &tx{data: s.data.clone(), identity: identity}
	defer t.close()
	if err := fn(ctx, t); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.data = t.data
	return nil
}

// Outbox returns a copy of every recorded event.
func (s *Store) Outbox() []events.Envelope {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.data.outbox)
}

type tx struct {
	data     *dataset
	identity tenant.Identity
	readOnly bool
	closed   bool
}

func (t *tx) close() { t.closed = true }

func (t *tx) read() error {
	if t.closed {
		return tenant.ErrNoTenant
	}
	return nil
}

func (t *tx) write() error {
	if err := t.read(); err != nil {
		return err
	}
	if t.readOnly {
		return errReadOnly
	}
	return nil
}

// actor mirrors vitalia_current_identity() and vitalia_current_profile_id().
func (t *tx) actor() policy.Actor {
	if t.identity.IsZero() {
		return policy.Actor{}
	}
	a := policy.Actor{Identity: t.identity.UUID()}
	for _, p := range t.data.profiles {
		if p.AuthUserID == a.Identity {
			a.ProfileID = p.ID
			break
		}
	}
	return a
}

func (t *tx) Identity() tenant.Identity { return t.identity }

func (t *tx) Profiles() domain.ProfileRepository { return profileRepo{t} }

func (t *tx) Workouts() domain.WorkoutRepository { return workoutRepo{t} }

func (t *tx) Sets() domain.SetRepository { return setRepo{t} }

func (t *tx) Exercises() domain.ExerciseRepository { return exerciseRepo{t} }

func (t *tx) NutritionLogs() domain.NutritionLogRepository { return nutritionRepo{t} }

func (t *tx) MoodLogs() domain.MoodLogRepository { return moodRepo{t} }

func (t *tx) ProgressPhotos() domain.ProgressPhotoRepository { return photoRepo{t} }

func (t *tx) GeneratedWorkouts() domain.GeneratedWorkoutRepository { return generatedRepo{t} }

func (t *tx) Outbox() domain.OutboxRecorder { return outboxRepo{t} }

var (
	profileRule   = policy.MustLookup(policy.TableProfiles)
	workoutRule   = policy.MustLookup(policy.TableWorkouts)
	setRule       = policy.MustLookup(policy.TableSets)
	exerciseRule  = policy.MustLookup(policy.TableExercises)
	nutritionRule = policy.MustLookup(policy.TableNutritionLogs)
	moodRule      = policy.MustLookup(policy.TableMoodLogs)
	photoRule     = policy.MustLookup(policy.TableProgressPhotos)
	generatedRule = policy.MustLookup(policy.TableGeneratedWorkouts)
	outboxRule    = policy.MustLookup(policy.TableOutbox)
)

func owned(owner uuid.UUID) policy.Row { return policy.Row{Owner: owner} }

// visible returns the rows of m the actor may read.
func visible[K comparable, V any](m map[K]V, rule policy.Rule, a policy.Actor, row func(V) policy.Row) []V {
	out := make([]V, 0)
	for _, v := range m {
		if rule.Visible(a, row(v)) {
			out = append(out, v)
		}
	}
	return out
}
