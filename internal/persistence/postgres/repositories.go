package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/SrSebald/Vitalia/internal/domain"
	"github.com/SrSebald/Vitalia/internal/events"
	"github.com/SrSebald/Vitalia/internal/tenant"
)

// None of the statements below filter by owner: the session's row policies do.

type profileRepo struct{ s *tenant.Session }

const profileColumns = `id, auth_user_id, full_name, username, height_cm, weight_kg, date_of_birth, body_type,
        main_goal, goal_deadline, motivation, activity_level, health_conditions, allergies, diet_type,
        meal_schedule, fitness_goals, created_at, updated_at`

func scanProfile(row pgx.Row) (domain.Profile, error) {
	var p domain.Profile
	err := row.Scan(&p.ID, &p.AuthUserID, &p.FullName, &p.Username, &p.HeightCm, &p.WeightKg, &p.DateOfBirth, &p.BodyType,
		&p.MainGoal, &p.GoalDeadline, &p.Motivation, &p.ActivityLevel, &p.HealthConditions, &p.Allergies, &p.DietType,
		&p.MealSchedule, &p.FitnessGoals, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func (r profileRepo) Current(ctx context.Context) (*domain.Profile, error) {
	p, err := scanProfile(r.s.QueryRow(ctx, `SELECT `+profileColumns+` FROM profiles LIMIT 1`))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

func (r profileRepo) Insert(ctx context.Context, p domain.Profile) (bool, error) {
	const stmt = `INSERT INTO profiles (` + profileColumns + `)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19)
        ON CONFLICT DO NOTHING`

	n, err := affected(r.s.Exec(ctx, stmt,
		p.ID, p.AuthUserID, p.FullName, p.Username, p.HeightCm, p.WeightKg, p.DateOfBirth, p.BodyType,
		p.MainGoal, p.GoalDeadline, p.Motivation, p.ActivityLevel, p.HealthConditions, nonNil(p.Allergies), p.DietType,
		p.MealSchedule, p.FitnessGoals, p.CreatedAt, p.UpdatedAt,
	))
	return n == 1, err
}

func (r profileRepo) Update(ctx context.Context, p domain.Profile) (int64, error) {
	const stmt = `UPDATE profiles SET full_name=$2, username=$3, height_cm=$4, weight_kg=$5, date_of_birth=$6,
        body_type=$7, main_goal=$8, goal_deadline=$9, motivation=$10, activity_level=$11, health_conditions=$12,
        allergies=$13, diet_type=$14, meal_schedule=$15, fitness_goals=$16, updated_at=$17
        WHERE id=$1`

	return affected(r.s.Exec(ctx, stmt,
		p.ID, p.FullName, p.Username, p.HeightCm, p.WeightKg, p.DateOfBirth,
		p.BodyType, p.MainGoal, p.GoalDeadline, p.Motivation, p.ActivityLevel, p.HealthConditions,
		nonNil(p.Allergies), p.DietType, p.MealSchedule, p.FitnessGoals, p.UpdatedAt,
	))
}

type workoutRepo struct{ s *tenant.Session }

const workoutColumns = `id, user_id, name, workout_date, duration_min, notes, created_at, updated_at`

func scanWorkout(row pgx.Row) (domain.Workout, error) {
	var w domain.Workout
	err := row.Scan(&w.ID, &w.UserID, &w.Name, &w.WorkoutDate, &w.DurationMin, &w.Notes, &w.CreatedAt, &w.UpdatedAt)
	return w, err
}

func (r workoutRepo) Insert(ctx context.Context, w domain.Workout) error {
	const stmt = `INSERT INTO workouts (` + workoutColumns + `) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`
	_, err := r.s.Exec(ctx, stmt, w.ID, w.UserID, w.Name, w.WorkoutDate, w.DurationMin, w.Notes, w.CreatedAt, w.UpdatedAt)
	return translate(err)
}

func (r workoutRepo) Get(ctx context.Context, id uuid.UUID) (*domain.Workout, error) {
	w, err := scanWorkout(r.s.QueryRow(ctx, `SELECT `+workoutColumns+` FROM workouts WHERE id=$1`, id))
	if err != nil {
		return nil, translate(err)
	}
	return &w, nil
}

func (r workoutRepo) List(ctx context.Context, cursor *domain.Cursor, limit int) ([]domain.Workout, error) {
	args := []any{limit}
	query := `SELECT ` + workoutColumns + ` FROM workouts`
	if cursor != nil {
		id, err := uuid.Parse(cursor.ID)
		if err != nil {
			return nil, fmt.Errorf("cursor id: %w", err)
		}
		query += ` WHERE (workout_date, id) < ($2::date, $3)`
		args = append(args, cursor.At, id)
	}
	query += ` ORDER BY workout_date DESC, id DESC LIMIT $1`
	return collect(ctx, r.s, scanWorkout, query, args...)
}

func (r workoutRepo) ListSince(ctx context.Context, since time.Time, limit int) ([]domain.Workout, error) {
	const query = `SELECT ` + workoutColumns + ` FROM workouts
        WHERE workout_date >= $1::date ORDER BY workout_date DESC, id DESC LIMIT $2`
	return collect(ctx, r.s, scanWorkout, query, since, limit)
}

func (r workoutRepo) Update(ctx context.Context, w domain.Workout) (int64, error) {
	const stmt = `UPDATE workouts SET name=$2, workout_date=$3, duration_min=$4, notes=$5, updated_at=$6 WHERE id=$1`
	return affected(r.s.Exec(ctx, stmt, w.ID, w.Name, w.WorkoutDate, w.DurationMin, w.Notes, w.UpdatedAt))
}

func (r workoutRepo) Delete(ctx context.Context, id uuid.UUID) (int64, error) {
	return affected(r.s.Exec(ctx, `DELETE FROM workouts WHERE id=$1`, id))
}

func (r workoutRepo) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.s.QueryRow(ctx, `SELECT COUNT(*) FROM workouts`).Scan(&n); err != nil {
		return 0, translate(err)
	}
	return n, nil
}

func (r workoutRepo) Stats(ctx context.Context) (domain.WorkoutStats, error) {
	const query = `SELECT COUNT(*), COALESCE(SUM(duration_min), 0), COALESCE(ROUND(AVG(duration_min), 2), 0),
        MIN(workout_date), MAX(workout_date) FROM workouts`

	var st domain.WorkoutStats
	err := r.s.QueryRow(ctx, query).Scan(&st.TotalWorkouts, &st.TotalDurationMin, &st.AvgDurationMin,
		&st.FirstWorkout, &st.LastWorkout)
	return st, translate(err)
}

type setRepo struct{ s *tenant.Session }

const setColumns = `id, workout_id, exercise_id, set_order, reps, weight_kg, distance_m, duration_sec, intensity, created_at, updated_at`

func scanSet(row pgx.Row) (domain.Set, error) {
	var s domain.Set
	err := row.Scan(&s.ID, &s.WorkoutID, &s.ExerciseID, &s.SetOrder, &s.Reps, &s.WeightKg, &s.DistanceM,
		&s.DurationSec, &s.Intensity, &s.CreatedAt, &s.UpdatedAt)
	return s, err
}

func (r setRepo) Insert(ctx context.Context, s domain.Set) error {
	const stmt = `INSERT INTO sets (` + setColumns + `) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`
	_, err := r.s.Exec(ctx, stmt, s.ID, s.WorkoutID, s.ExerciseID, s.SetOrder, s.Reps, s.WeightKg, s.DistanceM,
		s.DurationSec, s.Intensity, s.CreatedAt, s.UpdatedAt)
	return translate(err)
}

func (r setRepo) ListByWorkout(ctx context.Context, workoutID uuid.UUID) ([]domain.Set, error) {
	const query = `SELECT ` + setColumns + ` FROM sets WHERE workout_id=$1
        ORDER BY set_order ASC NULLS LAST, created_at ASC`
	return collect(ctx, r.s, scanSet, query, workoutID)
}

func (r setRepo) Delete(ctx context.Context, id uuid.UUID) (int64, error) {
	return affected(r.s.Exec(ctx, `DELETE FROM sets WHERE id=$1`, id))
}

type exerciseRepo struct{ s *tenant.Session }

const exerciseColumns = `id, created_by, name, muscle_group, equipment, description, is_public, created_at, updated_at`

func scanExercise(row pgx.Row) (domain.Exercise, error) {
	var e domain.Exercise
	err := row.Scan(&e.ID, &e.CreatedBy, &e.Name, &e.MuscleGroup, &e.Equipment, &e.Description, &e.IsPublic,
		&e.CreatedAt, &e.UpdatedAt)
	return e, err
}

func (r exerciseRepo) Insert(ctx context.Context, e domain.Exercise) error {
	const stmt = `INSERT INTO exercises (` + exerciseColumns + `) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`
	_, err := r.s.Exec(ctx, stmt, e.ID, e.CreatedBy, e.Name, e.MuscleGroup, e.Equipment, e.Description, e.IsPublic,
		e.CreatedAt, e.UpdatedAt)
	return translate(err)
}

func (r exerciseRepo) Get(ctx context.Context, id uuid.UUID) (*domain.Exercise, error) {
	e, err := scanExercise(r.s.QueryRow(ctx, `SELECT `+exerciseColumns+` FROM exercises WHERE id=$1`, id))
	if err != nil {
		return nil, translate(err)
	}
	return &e, nil
}

func (r exerciseRepo) List(ctx context.Context, f domain.ExerciseFilter, limit int) ([]domain.Exercise, error) {
	const stmt = `SELECT ` + exerciseColumns + ` FROM exercises
        WHERE ($1 = '' OR strpos(lower(name), lower($1)) > 0)
          AND ($2 = '' OR lower(muscle_group) = lower($2))
          AND ($3 = '' OR lower(equipment) = lower($3))
        ORDER BY name, id LIMIT $4`
	return collect(ctx, r.s, scanExercise, stmt, f.Query, f.MuscleGroup, f.Equipment, limit)
}

func (r exerciseRepo) Facets(ctx context.Context) (domain.ExerciseFacets, error) {
	var (
		out domain.ExerciseFacets
		err error
	)
	out.MuscleGroups, err = collect(ctx, r.s, scanText,
		`SELECT DISTINCT muscle_group FROM exercises WHERE COALESCE(muscle_group, '') <> '' ORDER BY 1`)
	if err != nil {
		return out, err
	}
	out.Equipment, err = collect(ctx, r.s, scanText,
		`SELECT DISTINCT equipment FROM exercises WHERE COALESCE(equipment, '') <> '' ORDER BY 1`)
	return out, err
}

func (r exerciseRepo) Update(ctx context.Context, e domain.Exercise) (int64, error) {
	const stmt = `UPDATE exercises SET name=$2, muscle_group=$3, equipment=$4, description=$5, is_public=$6, updated_at=$7
        WHERE id=$1`
	return affected(r.s.Exec(ctx, stmt, e.ID, e.Name, e.MuscleGroup, e.Equipment, e.Description, e.IsPublic, e.UpdatedAt))
}

func (r exerciseRepo) Delete(ctx context.Context, id uuid.UUID) (int64, error) {
	return affected(r.s.Exec(ctx, `DELETE FROM exercises WHERE id=$1`, id))
}

type nutritionRepo struct{ s *tenant.Session }

const nutritionColumns = `id, user_id, consumed_at, meal_type, food_item, serving_size, calories, protein_g, carbs_g, fat_g,
        notes, created_at, updated_at`

func scanNutrition(row pgx.Row) (domain.NutritionLog, error) {
	var n domain.NutritionLog
	err := row.Scan(&n.ID, &n.UserID, &n.ConsumedAt, &n.MealType, &n.FoodItem, &n.ServingSize, &n.Calories,
		&n.ProteinG, &n.CarbsG, &n.FatG, &n.Notes, &n.CreatedAt, &n.UpdatedAt)
	return n, err
}

func (r nutritionRepo) Insert(ctx context.Context, n domain.NutritionLog) error {
	const stmt = `INSERT INTO nutrition_logs (` + nutritionColumns + `) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`
	_, err := r.s.Exec(ctx, stmt, n.ID, n.UserID, n.ConsumedAt, n.MealType, n.FoodItem, n.ServingSize, n.Calories,
		n.ProteinG, n.CarbsG, n.FatG, n.Notes, n.CreatedAt, n.UpdatedAt)
	return translate(err)
}

func (r nutritionRepo) ListBetween(ctx context.Context, from, to time.Time) ([]domain.NutritionLog, error) {
	const query = `SELECT ` + nutritionColumns + ` FROM nutrition_logs
        WHERE consumed_at BETWEEN $1 AND $2 ORDER BY consumed_at, id`
	return collect(ctx, r.s, scanNutrition, query, from, to)
}

func (r nutritionRepo) DailyTotals(ctx context.Context, from, to time.Time) ([]domain.NutritionDay, error) {
	const query = `SELECT (consumed_at AT TIME ZONE 'UTC')::date AS day, COUNT(*), COUNT(calories),
        COALESCE(SUM(calories), 0), COALESCE(SUM(protein_g), 0), COALESCE(SUM(carbs_g), 0), COALESCE(SUM(fat_g), 0)
        FROM nutrition_logs WHERE consumed_at BETWEEN $1 AND $2
        GROUP BY day ORDER BY day`
	return collect(ctx, r.s, scanNutritionDay, query, from, to)
}

func scanNutritionDay(row pgx.Row) (domain.NutritionDay, error) {
	var d domain.NutritionDay
	err := row.Scan(&d.Date, &d.LogCount, &d.CalorieEntries, &d.Calories, &d.ProteinG, &d.CarbsG, &d.FatG)
	return d, err
}

func (r nutritionRepo) Delete(ctx context.Context, id uuid.UUID) (int64, error) {
	return affected(r.s.Exec(ctx, `DELETE FROM nutrition_logs WHERE id=$1`, id))
}

type moodRepo struct{ s *tenant.Session }

func scanMood(row pgx.Row) (domain.MoodLog, error) {
	var m domain.MoodLog
	err := row.Scan(&m.ID, &m.UserID, &m.MoodRating, &m.Notes, &m.LoggedAt)
	return m, err
}

func (r moodRepo) Insert(ctx context.Context, m *domain.MoodLog) error {
	const stmt = `INSERT INTO mood_logs (user_id, mood_rating, notes, logged_at) VALUES ($1,$2,$3,$4) RETURNING id`
	return translate(r.s.QueryRow(ctx, stmt, m.UserID, m.MoodRating, m.Notes, m.LoggedAt).Scan(&m.ID))
}

const moodColumns = `id, user_id, mood_rating, notes, logged_at`

func (r moodRepo) Get(ctx context.Context, id int64) (*domain.MoodLog, error) {
	m, err := scanMood(r.s.QueryRow(ctx, `SELECT `+moodColumns+` FROM mood_logs WHERE id=$1`, id))
	if err != nil {
		return nil, translate(err)
	}
	return &m, nil
}

func (r moodRepo) ListRecent(ctx context.Context, limit int) ([]domain.MoodLog, error) {
	const query = `SELECT ` + moodColumns + ` FROM mood_logs ORDER BY logged_at DESC, id DESC LIMIT $1`
	return collect(ctx, r.s, scanMood, query, limit)
}

func (r moodRepo) Stats(ctx context.Context, from, to time.Time) (domain.MoodStats, error) {
	const query = `SELECT COUNT(*), COALESCE(ROUND(AVG(mood_rating), 2), 0),
        COUNT(*) FILTER (WHERE mood_rating = 1), COUNT(*) FILTER (WHERE mood_rating = 2),
        COUNT(*) FILTER (WHERE mood_rating = 3), COUNT(*) FILTER (WHERE mood_rating = 4),
        COUNT(*) FILTER (WHERE mood_rating = 5)
        FROM mood_logs WHERE logged_at BETWEEN $1 AND $2`

	var st domain.MoodStats
	d := &st.Distribution
	err := r.s.QueryRow(ctx, query, from, to).Scan(&st.TotalLogs, &st.AverageMood, &d[0], &d[1], &d[2], &d[3], &d[4])
	return st, translate(err)
}

func (r moodRepo) Update(ctx context.Context, m domain.MoodLog) (int64, error) {
	return affected(r.s.Exec(ctx, `UPDATE mood_logs SET mood_rating=$2, notes=$3 WHERE id=$1`, m.ID, m.MoodRating, m.Notes))
}

func (r moodRepo) Delete(ctx context.Context, id int64) (int64, error) {
	return affected(r.s.Exec(ctx, `DELETE FROM mood_logs WHERE id=$1`, id))
}

type photoRepo struct{ s *tenant.Session }

const photoColumns = `id, user_id, image_url, caption, taken_on, created_at, updated_at`

func scanPhoto(row pgx.Row) (domain.ProgressPhoto, error) {
	var p domain.ProgressPhoto
	err := row.Scan(&p.ID, &p.UserID, &p.ImageURL, &p.Caption, &p.TakenOn, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func (r photoRepo) Insert(ctx context.Context, p domain.ProgressPhoto) error {
	const stmt = `INSERT INTO progress_photos (` + photoColumns + `) VALUES ($1,$2,$3,$4,$5,$6,$7)`
	_, err := r.s.Exec(ctx, stmt, p.ID, p.UserID, p.ImageURL, p.Caption, p.TakenOn, p.CreatedAt, p.UpdatedAt)
	return translate(err)
}

func (r photoRepo) List(ctx context.Context, limit int) ([]domain.ProgressPhoto, error) {
	const query = `SELECT ` + photoColumns + ` FROM progress_photos ORDER BY created_at DESC, id DESC LIMIT $1`
	return collect(ctx, r.s, scanPhoto, query, limit)
}

func (r photoRepo) Stats(ctx context.Context, now time.Time) (domain.PhotoStats, error) {
	const query = `SELECT COUNT(*), MIN(taken_on), MAX(taken_on),
        COUNT(*) FILTER (WHERE date_trunc('year', taken_on) = date_trunc('year', $1::date)),
        COUNT(*) FILTER (WHERE date_trunc('month', taken_on) = date_trunc('month', $1::date))
        FROM progress_photos`

	var st domain.PhotoStats
	err := r.s.QueryRow(ctx, query, now).Scan(&st.TotalPhotos, &st.FirstPhoto, &st.LastPhoto, &st.ThisYear, &st.ThisMonth)
	return st, translate(err)
}

func (r photoRepo) Delete(ctx context.Context, id uuid.UUID) (int64, error) {
	return affected(r.s.Exec(ctx, `DELETE FROM progress_photos WHERE id=$1`, id))
}

type generatedRepo struct{ s *tenant.Session }

const generatedColumns = `id, user_id, title, description, goals, muscle_groups, duration, energy_level,
        estimated_duration, workout_data, additional_notes, completed_at, created_at, updated_at`

func scanGenerated(row pgx.Row) (domain.GeneratedWorkout, error) {
	var (
		g    domain.GeneratedWorkout
		plan []byte
	)
	err := row.Scan(&g.ID, &g.UserID, &g.Title, &g.Description, &g.Goals, &g.MuscleGroups, &g.Duration, &g.EnergyLevel,
		&g.EstimatedDuration, &plan, &g.AdditionalNotes, &g.CompletedAt, &g.CreatedAt, &g.UpdatedAt)
	if err != nil {
		return g, err
	}
	if err := json.Unmarshal(plan, &g.Plan); err != nil {
		return g, fmt.Errorf("decode workout_data of %s: %w", g.ID, err)
	}
	return g, nil
}

func (r generatedRepo) Insert(ctx context.Context, g domain.GeneratedWorkout) error {
	plan, err := json.Marshal(g.Plan)
	if err != nil {
		return fmt.Errorf("encode workout_data: %w", err)
	}
	const stmt = `INSERT INTO ai_generated_workouts (` + generatedColumns + `)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`
	_, err = r.s.Exec(ctx, stmt, g.ID, g.UserID, g.Title, g.Description, nonNil(g.Goals), nonNil(g.MuscleGroups),
		g.Duration, g.EnergyLevel, g.EstimatedDuration, plan, g.AdditionalNotes, g.CompletedAt, g.CreatedAt, g.UpdatedAt)
	return translate(err)
}

func (r generatedRepo) Get(ctx context.Context, id uuid.UUID) (*domain.GeneratedWorkout, error) {
	g, err := scanGenerated(r.s.QueryRow(ctx, `SELECT `+generatedColumns+` FROM ai_generated_workouts WHERE id=$1`, id))
	if err != nil {
		return nil, translate(err)
	}
	return &g, nil
}

func (r generatedRepo) List(ctx context.Context, limit int) ([]domain.GeneratedWorkout, error) {
	const query = `SELECT ` + generatedColumns + ` FROM ai_generated_workouts ORDER BY created_at DESC, id DESC LIMIT $1`
	return collect(ctx, r.s, scanGenerated, query, limit)
}

func (r generatedRepo) MarkCompleted(ctx context.Context, id uuid.UUID, at time.Time) (int64, error) {
	return affected(r.s.Exec(ctx, `UPDATE ai_generated_workouts SET completed_at=$2, updated_at=$2 WHERE id=$1`, id, at))
}

func (r generatedRepo) Delete(ctx context.Context, id uuid.UUID) (int64, error) {
	return affected(r.s.Exec(ctx, `DELETE FROM ai_generated_workouts WHERE id=$1`, id))
}

type outboxRepo struct{ s *tenant.Session }

// Record appends the envelope to the outbox inside the unit of work. The insert
// policy only accepts envelopes naming the bound tenant.
func (r outboxRepo) Record(ctx context.Context, env events.Envelope) error {
	const stmt = `INSERT INTO outbox (tenant_id, aggregate_type, aggregate_id, event_type, topic, partition_key, payload, dedupe_key)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`

	_, err := r.s.Exec(ctx, stmt,
		env.TenantID,
		env.AggregateType,
		env.AggregateID,
		env.EventType,
		env.Topic,
		env.PartitionKey,
		[]byte(env.Payload),
		env.DedupeKey,
	)
	return translate(err)
}

func collect[T any](ctx context.Context, s *tenant.Session, scan func(pgx.Row) (T, error), query string, args ...any) ([]T, error) {
	rows, err := s.Query(ctx, query, args...)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()

	var out []T
	for rows.Next() {
		item, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	if err := rows.Err(); err != nil {
		return nil, translate(err)
	}
	return out, nil
}

func scanText(row pgx.Row) (string, error) {
	var s string
	err := row.Scan(&s)
	return s, err
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
