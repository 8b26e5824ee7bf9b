package memory

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/SrSebald/Vitalia/internal/domain"
	"github.com/SrSebald/Vitalia/internal/events"
	"github.com/SrSebald/Vitalia/internal/policy"
	"github.com/SrSebald/Vitalia/internal/tenant"
)

type profileRepo struct{ t *tx }

func profileRow(p domain.Profile) policy.Row { return policy.Row{Identity: p.AuthUserID} }

func (r profileRepo) Current(ctx context.Context) (*domain.Profile, error) {
	if err := r.t.read(); err != nil {
		return nil, err
	}
	rows := visible(r.t.data.profiles, profileRule, r.t.actor(), profileRow)
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

func (r profileRepo) Insert(ctx context.Context, p domain.Profile) (bool, error) {
	if err := r.t.write(); err != nil {
		return false, err
	}
	if !profileRule.Writable(r.t.actor(), profileRow(p)) {
		return false, tenant.ErrNotFound
	}
	for _, existing := range r.t.data.profiles {
		if existing.ID == p.ID || existing.AuthUserID == p.AuthUserID || sameUsername(existing.Username, p.Username) {
			return false, nil
		}
	}
	r.t.data.profiles[p.ID] = p
	return true, nil
}

func (r profileRepo) Update(ctx context.Context, p domain.Profile) (int64, error) {
	if err := r.t.write(); err != nil {
		return 0, err
	}
	a := r.t.actor()
	stored, ok := r.t.data.profiles[p.ID]
	if !ok || !profileRule.Writable(a, profileRow(stored)) {
		return 0, nil
	}
	for id, existing := range r.t.data.profiles {
		if id != p.ID && sameUsername(existing.Username, p.Username) {
			return 0, domain.ErrConflict
		}
	}
	p.AuthUserID = stored.AuthUserID
	p.CreatedAt = stored.CreatedAt
	r.t.data.profiles[p.ID] = p
	return 1, nil
}

func sameUsername(a, b *string) bool {
	return a != nil && b != nil && *a == *b
}

type workoutRepo struct{ t *tx }

func workoutRow(w domain.Workout) policy.Row { return owned(w.UserID) }

func newestWorkoutFirst(a, b domain.Workout) int {
	if c := b.WorkoutDate.Compare(a.WorkoutDate); c != 0 {
		return c
	}
	return strings.Compare(b.ID.String(), a.ID.String())
}

func (r workoutRepo) Insert(ctx context.Context, w domain.Workout) error {
	if err := r.t.write(); err != nil {
		return err
	}
	if !workoutRule.Writable(r.t.actor(), workoutRow(w)) {
		return tenant.ErrNotFound
	}
	if _, exists := r.t.data.workouts[w.ID]; exists {
		return domain.ErrConflict
	}
	r.t.data.workouts[w.ID] = w
	return nil
}

func (r workoutRepo) Get(ctx context.Context, id uuid.UUID) (*domain.Workout, error) {
	if err := r.t.read(); err != nil {
		return nil, err
	}
	w, ok := r.t.data.workouts[id]
	if !ok || !workoutRule.Visible(r.t.actor(), workoutRow(w)) {
		return nil, tenant.ErrNotFound
	}
	return &w, nil
}

func (r workoutRepo) List(ctx context.Context, cursor *domain.Cursor, limit int) ([]domain.Workout, error) {
	if err := r.t.read(); err != nil {
		return nil, err
	}
	rows := visible(r.t.data.workouts, workoutRule, r.t.actor(), workoutRow)
	if cursor != nil {
		id, err := uuid.Parse(cursor.ID)
		if err != nil {
			return nil, fmt.Errorf("cursor id: %w", err)
		}
		after := domain.Workout{WorkoutDate: cursor.At, ID: id}
		rows = lo.Filter(rows, func(w domain.Workout, _ int) bool {
			return newestWorkoutFirst(w, after) > 0
		})
	}
	slices.SortFunc(rows, newestWorkoutFirst)
	return limitRows(rows, limit), nil
}

func (r workoutRepo) ListSince(ctx context.Context, since time.Time, limit int) ([]domain.Workout, error) {
	if err := r.t.read(); err != nil {
		return nil, err
	}
	rows := lo.Filter(visible(r.t.data.workouts, workoutRule, r.t.actor(), workoutRow), func(w domain.Workout, _ int) bool {
		return !w.WorkoutDate.Before(since)
	})
	slices.SortFunc(rows, newestWorkoutFirst)
	return limitRows(rows, limit), nil
}

func (r workoutRepo) Update(ctx context.Context, w domain.Workout) (int64, error) {
	if err := r.t.write(); err != nil {
		return 0, err
	}
	stored, ok := r.t.data.workouts[w.ID]
	if !ok || !workoutRule.Writable(r.t.actor(), workoutRow(stored)) {
		return 0, nil
	}
	w.UserID = stored.UserID
	w.CreatedAt = stored.CreatedAt
	r.t.data.workouts[w.ID] = w
	return 1, nil
}

func (r workoutRepo) Delete(ctx context.Context, id uuid.UUID) (int64, error) {
	if err := r.t.write(); err != nil {
		return 0, err
	}
	stored, ok := r.t.data.workouts[id]
	if !ok || !workoutRule.Writable(r.t.actor(), workoutRow(stored)) {
		return 0, nil
	}
	delete(r.t.data.workouts, id)
	for setID, s := range r.t.data.sets {
		if s.WorkoutID == id {
			delete(r.t.data.sets, setID)
		}
	}
	return 1, nil
}

func (r workoutRepo) Count(ctx context.Context) (int, error) {
	if err := r.t.read(); err != nil {
		return 0, err
	}
	return len(visible(r.t.data.workouts, workoutRule, r.t.actor(), workoutRow)), nil
}

func (r workoutRepo) Stats(ctx context.Context) (domain.WorkoutStats, error) {
	if err := r.t.read(); err != nil {
		return domain.WorkoutStats{}, err
	}
	rows := visible(r.t.data.workouts, workoutRule, r.t.actor(), workoutRow)
	st := domain.WorkoutStats{TotalWorkouts: len(rows)}
	timed := 0
	for _, w := range rows {
		if w.DurationMin != nil {
			st.TotalDurationMin += *w.DurationMin
			timed++
		}
		widen(&st.FirstWorkout, &st.LastWorkout, w.WorkoutDate)
	}
	st.AvgDurationMin = domain.Average(int64(st.TotalDurationMin), timed)
	return st, nil
}

type setRepo struct{ t *tx }

// row resolves the owner through the parent workout, like the sets policy does.
func (r setRepo) row(s domain.Set) policy.Row {
	parent, ok := r.t.data.workouts[s.WorkoutID]
	if !ok {
		return policy.Row{}
	}
	return owned(parent.UserID)
}

func (r setRepo) Insert(ctx context.Context, s domain.Set) error {
	if err := r.t.write(); err != nil {
		return err
	}
	if !setRule.Writable(r.t.actor(), r.row(s)) {
		return tenant.ErrNotFound
	}
	if s.ExerciseID.Valid {
		if _, ok := r.t.data.exercises[s.ExerciseID.UUID]; !ok {
			return tenant.ErrNotFound
		}
	}
	r.t.data.sets[s.ID] = s
	return nil
}

func (r setRepo) ListByWorkout(ctx context.Context, workoutID uuid.UUID) ([]domain.Set, error) {
	if err := r.t.read(); err != nil {
		return nil, err
	}
	rows := lo.Filter(visible(r.t.data.sets, setRule, r.t.actor(), r.row), func(s domain.Set, _ int) bool {
		return s.WorkoutID == workoutID
	})
	slices.SortFunc(rows, func(a, b domain.Set) int {
		switch {
		case a.SetOrder != nil && b.SetOrder == nil:
			return -1
		case a.SetOrder == nil && b.SetOrder != nil:
			return 1
		case a.SetOrder != nil && b.SetOrder != nil && *a.SetOrder != *b.SetOrder:
			return cmp.Compare(*a.SetOrder, *b.SetOrder)
		}
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return rows, nil
}

func (r setRepo) Delete(ctx context.Context, id uuid.UUID) (int64, error) {
	if err := r.t.write(); err != nil {
		return 0, err
	}
	stored, ok := r.t.data.sets[id]
	if !ok || !setRule.Writable(r.t.actor(), r.row(stored)) {
		return 0, nil
	}
	delete(r.t.data.sets, id)
	return 1, nil
}

type exerciseRepo struct{ t *tx }

func exerciseRow(e domain.Exercise) policy.Row {
	return policy.Row{Owner: e.CreatedBy.UUID, Public: e.IsPublic}
}

func (r exerciseRepo) nameTaken(e domain.Exercise) bool {
	for id, existing := range r.t.data.exercises {
		if id != e.ID && existing.CreatedBy == e.CreatedBy && existing.Name == e.Name {
			return true
		}
	}
	return false
}

func (r exerciseRepo) Insert(ctx context.Context, e domain.Exercise) error {
	if err := r.t.write(); err != nil {
		return err
	}
	if !exerciseRule.Writable(r.t.actor(), exerciseRow(e)) {
		return tenant.ErrNotFound
	}
	if _, exists := r.t.data.exercises[e.ID]; exists || r.nameTaken(e) {
		return domain.ErrConflict
	}
	r.t.data.exercises[e.ID] = e
	return nil
}

func (r exerciseRepo) Get(ctx context.Context, id uuid.UUID) (*domain.Exercise, error) {
	if err := r.t.read(); err != nil {
		return nil, err
	}
	e, ok := r.t.data.exercises[id]
	if !ok || !exerciseRule.Visible(r.t.actor(), exerciseRow(e)) {
		return nil, tenant.ErrNotFound
	}
	return &e, nil
}

func (r exerciseRepo) List(ctx context.Context, f domain.ExerciseFilter, limit int) ([]domain.Exercise, error) {
	if err := r.t.read(); err != nil {
		return nil, err
	}
	needle := strings.ToLower(f.Query)
	rows := lo.Filter(visible(r.t.data.exercises, exerciseRule, r.t.actor(), exerciseRow), func(e domain.Exercise, _ int) bool {
		return strings.Contains(strings.ToLower(e.Name), needle) &&
			matchesFold(e.MuscleGroup, f.MuscleGroup) &&
			matchesFold(e.Equipment, f.Equipment)
	})
	slices.SortFunc(rows, func(a, b domain.Exercise) int {
		if c := strings.Compare(a.Name, b.Name); c != 0 {
			return c
		}
		return strings.Compare(a.ID.String(), b.ID.String())
	})
	return limitRows(rows, limit), nil
}

func (r exerciseRepo) Facets(ctx context.Context) (domain.ExerciseFacets, error) {
	if err := r.t.read(); err != nil {
		return domain.ExerciseFacets{}, err
	}
	rows := visible(r.t.data.exercises, exerciseRule, r.t.actor(), exerciseRow)
	distinct := func(field func(domain.Exercise) *string) []string {
		values := lo.Uniq(lo.Compact(lo.Map(rows, func(e domain.Exercise, _ int) string { return lo.FromPtr(field(e)) })))
		slices.Sort(values)
		return values
	}
	return domain.ExerciseFacets{
		MuscleGroups: distinct(func(e domain.Exercise) *string { return e.MuscleGroup }),
		Equipment:    distinct(func(e domain.Exercise) *string { return e.Equipment }),
	}, nil
}

func matchesFold(value *string, want string) bool {
	return want == "" || (value != nil && strings.EqualFold(*value, want))
}

func (r exerciseRepo) Update(ctx context.Context, e domain.Exercise) (int64, error) {
	if err := r.t.write(); err != nil {
		return 0, err
	}
	stored, ok := r.t.data.exercises[e.ID]
	if !ok || !exerciseRule.Writable(r.t.actor(), exerciseRow(stored)) {
		return 0, nil
	}
	e.CreatedBy = stored.CreatedBy
	e.CreatedAt = stored.CreatedAt
	if r.nameTaken(e) {
		return 0, domain.ErrConflict
	}
	r.t.data.exercises[e.ID] = e
	return 1, nil
}

func (r exerciseRepo) Delete(ctx context.Context, id uuid.UUID) (int64, error) {
	if err := r.t.write(); err != nil {
		return 0, err
	}
	stored, ok := r.t.data.exercises[id]
	if !ok || !exerciseRule.Writable(r.t.actor(), exerciseRow(stored)) {
		return 0, nil
	}
	delete(r.t.data.exercises, id)
	for setID, s := range r.t.data.sets {
		if s.ExerciseID.Valid && s.ExerciseID.UUID == id {
			s.ExerciseID = uuid.NullUUID{}
			r.t.data.sets[setID] = s
		}
	}
	return 1, nil
}

type nutritionRepo struct{ t *tx }

func nutritionRow(n domain.NutritionLog) policy.Row { return owned(n.UserID) }

func (r nutritionRepo) Insert(ctx context.Context, n domain.NutritionLog) error {
	if err := r.t.write(); err != nil {
		return err
	}
	if !nutritionRule.Writable(r.t.actor(), nutritionRow(n)) {
		return tenant.ErrNotFound
	}
	r.t.data.nutrition[n.ID] = n
	return nil
}

func (r nutritionRepo) ListBetween(ctx context.Context, from, to time.Time) ([]domain.NutritionLog, error) {
	if err := r.t.read(); err != nil {
		return nil, err
	}
	rows := lo.Filter(visible(r.t.data.nutrition, nutritionRule, r.t.actor(), nutritionRow), func(n domain.NutritionLog, _ int) bool {
		return !n.ConsumedAt.Before(from) && !n.ConsumedAt.After(to)
	})
	slices.SortFunc(rows, func(a, b domain.NutritionLog) int {
		if c := a.ConsumedAt.Compare(b.ConsumedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID.String(), b.ID.String())
	})
	return rows, nil
}

func (r nutritionRepo) DailyTotals(ctx context.Context, from, to time.Time) ([]domain.NutritionDay, error) {
	logs, err := r.ListBetween(ctx, from, to)
	if err != nil {
		return nil, err
	}
	var out []domain.NutritionDay
	for _, n := range logs {
		y, m, d := n.ConsumedAt.UTC().Date()
		day := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
		if len(out) == 0 || !out[len(out)-1].Date.Equal(day) {
			out = append(out, domain.NutritionDay{Date: day, ProteinG: decimal.Zero, CarbsG: decimal.Zero, FatG: decimal.Zero})
		}
		total := &out[len(out)-1]
		total.LogCount++
		if n.Calories != nil {
			total.CalorieEntries++
			total.Calories += *n.Calories
		}
		total.ProteinG = total.ProteinG.Add(n.ProteinG.Decimal)
		total.CarbsG = total.CarbsG.Add(n.CarbsG.Decimal)
		total.FatG = total.FatG.Add(n.FatG.Decimal)
	}
	return out, nil
}

func (r nutritionRepo) Delete(ctx context.Context, id uuid.UUID) (int64, error) {
	if err := r.t.write(); err != nil {
		return 0, err
	}
	stored, ok := r.t.data.nutrition[id]
	if !ok || !nutritionRule.Writable(r.t.actor(), nutritionRow(stored)) {
		return 0, nil
	}
	delete(r.t.data.nutrition, id)
	return 1, nil
}

type moodRepo struct{ t *tx }

func moodRow(m domain.MoodLog) policy.Row { return owned(m.UserID) }

func (r moodRepo) Insert(ctx context.Context, m *domain.MoodLog) error {
	if err := r.t.write(); err != nil {
		return err
	}
	if !moodRule.Writable(r.t.actor(), moodRow(*m)) {
		return tenant.ErrNotFound
	}
	r.t.data.moodSeq++
	m.ID = r.t.data.moodSeq
	r.t.data.moods[m.ID] = *m
	return nil
}

func (r moodRepo) Get(ctx context.Context, id int64) (*domain.MoodLog, error) {
	if err := r.t.read(); err != nil {
		return nil, err
	}
	m, ok := r.t.data.moods[id]
	if !ok || !moodRule.Visible(r.t.actor(), moodRow(m)) {
		return nil, tenant.ErrNotFound
	}
	return &m, nil
}

func (r moodRepo) ListRecent(ctx context.Context, limit int) ([]domain.MoodLog, error) {
	if err := r.t.read(); err != nil {
		return nil, err
	}
	rows := visible(r.t.data.moods, moodRule, r.t.actor(), moodRow)
	slices.SortFunc(rows, func(a, b domain.MoodLog) int {
		if c := b.LoggedAt.Compare(a.LoggedAt); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})
	return limitRows(rows, limit), nil
}

func (r moodRepo) Stats(ctx context.Context, from, to time.Time) (domain.MoodStats, error) {
	if err := r.t.read(); err != nil {
		return domain.MoodStats{}, err
	}
	var (
		st  domain.MoodStats
		sum int64
	)
	for _, m := range visible(r.t.data.moods, moodRule, r.t.actor(), moodRow) {
		if m.LoggedAt.Before(from) || m.LoggedAt.After(to) {
			continue
		}
		st.TotalLogs++
		sum += int64(m.MoodRating)
		st.Distribution[m.MoodRating-domain.MinMood]++
	}
	st.AverageMood = domain.Average(sum, st.TotalLogs)
	return st, nil
}

func (r moodRepo) Update(ctx context.Context, m domain.MoodLog) (int64, error) {
	if err := r.t.write(); err != nil {
		return 0, err
	}
	stored, ok := r.t.data.moods[m.ID]
	if !ok || !moodRule.Writable(r.t.actor(), moodRow(stored)) {
		return 0, nil
	}
	stored.MoodRating = m.MoodRating
	stored.Notes = m.Notes
	r.t.data.moods[m.ID] = stored
	return 1, nil
}

func (r moodRepo) Delete(ctx context.Context, id int64) (int64, error) {
	if err := r.t.write(); err != nil {
		return 0, err
	}
	stored, ok := r.t.data.moods[id]
	if !ok || !moodRule.Writable(r.t.actor(), moodRow(stored)) {
		return 0, nil
	}
	delete(r.t.data.moods, id)
	return 1, nil
}

type photoRepo struct{ t *tx }

func photoRow(p domain.ProgressPhoto) policy.Row { return owned(p.UserID) }

func (r photoRepo) Insert(ctx context.Context, p domain.ProgressPhoto) error {
	if err := r.t.write(); err != nil {
		return err
	}
	if !photoRule.Writable(r.t.actor(), photoRow(p)) {
		return tenant.ErrNotFound
	}
	r.t.data.photos[p.ID] = p
	return nil
}

func (r photoRepo) List(ctx context.Context, limit int) ([]domain.ProgressPhoto, error) {
	if err := r.t.read(); err != nil {
		return nil, err
	}
	rows := visible(r.t.data.photos, photoRule, r.t.actor(), photoRow)
	slices.SortFunc(rows, func(a, b domain.ProgressPhoto) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(b.ID.String(), a.ID.String())
	})
	return limitRows(rows, limit), nil
}

func (r photoRepo) Stats(ctx context.Context, now time.Time) (domain.PhotoStats, error) {
	if err := r.t.read(); err != nil {
		return domain.PhotoStats{}, err
	}
	rows := visible(r.t.data.photos, photoRule, r.t.actor(), photoRow)
	st := domain.PhotoStats{TotalPhotos: len(rows)}
	year, month, _ := now.Date()
	for _, p := range rows {
		if p.TakenOn == nil {
			continue
		}
		widen(&st.FirstPhoto, &st.LastPhoto, *p.TakenOn)
		if y, m, _ := p.TakenOn.Date(); y == year {
			st.ThisYear++
			if m == month {
				st.ThisMonth++
			}
		}
	}
	return st, nil
}

func (r photoRepo) Delete(ctx context.Context, id uuid.UUID) (int64, error) {
	if err := r.t.write(); err != nil {
		return 0, err
	}
	stored, ok := r.t.data.photos[id]
	if !ok || !photoRule.Writable(r.t.actor(), photoRow(stored)) {
		return 0, nil
	}
	delete(r.t.data.photos, id)
	return 1, nil
}

type generatedRepo struct{ t *tx }

func generatedRow(g domain.GeneratedWorkout) policy.Row { return owned(g.UserID) }

func (r generatedRepo) Insert(ctx context.Context, g domain.GeneratedWorkout) error {
	if err := r.t.write(); err != nil {
		return err
	}
	if !generatedRule.Writable(r.t.actor(), generatedRow(g)) {
		return tenant.ErrNotFound
	}
	r.t.data.generated[g.ID] = g
	return nil
}

func (r generatedRepo) Get(ctx context.Context, id uuid.UUID) (*domain.GeneratedWorkout, error) {
	if err := r.t.read(); err != nil {
		return nil, err
	}
	g, ok := r.t.data.generated[id]
	if !ok || !generatedRule.Visible(r.t.actor(), generatedRow(g)) {
		return nil, tenant.ErrNotFound
	}
	return &g, nil
}

func (r generatedRepo) List(ctx context.Context, limit int) ([]domain.GeneratedWorkout, error) {
	if err := r.t.read(); err != nil {
		return nil, err
	}
	rows := visible(r.t.data.generated, generatedRule, r.t.actor(), generatedRow)
	slices.SortFunc(rows, func(a, b domain.GeneratedWorkout) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(b.ID.String(), a.ID.String())
	})
	return limitRows(rows, limit), nil
}

func (r generatedRepo) MarkCompleted(ctx context.Context, id uuid.UUID, at time.Time) (int64, error) {
	if err := r.t.write(); err != nil {
		return 0, err
	}
	stored, ok := r.t.data.generated[id]
	if !ok || !generatedRule.Writable(r.t.actor(), generatedRow(stored)) {
		return 0, nil
	}
	stored.CompletedAt = &at
	stored.UpdatedAt = at
	r.t.data.generated[id] = stored
	return 1, nil
}

func (r generatedRepo) Delete(ctx context.Context, id uuid.UUID) (int64, error) {
	if err := r.t.write(); err != nil {
		return 0, err
	}
	stored, ok := r.t.data.generated[id]
	if !ok || !generatedRule.Writable(r.t.actor(), generatedRow(stored)) {
		return 0, nil
	}
	delete(r.t.data.generated, id)
	return 1, nil
}

type outboxRepo struct{ t *tx }

func (r outboxRepo) Record(ctx context.Context, env events.Envelope) error {
	if err := r.t.write(); err != nil {
		return err
	}
	tenantID, err := uuid.Parse(env.TenantID)
	if err != nil || !outboxRule.Writable(r.t.actor(), policy.Row{Identity: tenantID}) {
		return tenant.ErrNotFound
	}
	r.t.data.outbox = append(r.t.data.outbox, env)
	return nil
}

// widen stretches the [first, last] range to include t.
func widen(first, last **time.Time, t time.Time) {
	if *first == nil || t.Before(**first) {
		*first = &t
	}
	if *last == nil || t.After(**last) {
		*last = &t
	}
}

func limitRows[T any](rows []T, limit int) []T {
	if limit > 0 && len(rows) > limit {
		return rows[:limit]
	}
	return rows
}
