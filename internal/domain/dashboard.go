package domain

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/SrSebald/Vitalia/internal/planner"
)

const dashboardRecentItems = 5

// Dashboard is the caller's landing page summary.
type Dashboard struct {
	Profile        *Profile                `json:"profile"`
	WorkoutCount   int                     `json:"workout_count"`
	RecentWorkouts []Workout               `json:"recent_workouts"`
	RecentPlans    []GeneratedWorkout      `json:"recent_plans"`
	RecentMoods    []MoodLog               `json:"recent_moods"`
	Today          planner.NutritionTotals `json:"today"`
	LatestPhoto    *ProgressPhoto          `json:"latest_photo"`
}

// Dashboard loads the summary with independent read-only units of work running
// concurrently, each on its own connection.
func (s *Service) Dashboard(ctx context.Context, p Principal) (*Dashboard, error) {
	profile, err := s.GetProfile(ctx, p)
	if err != nil {
		return nil, err
	}
	out := &Dashboard{Profile: profile}
	today := truncateDay(s.clock())

	g, ctx := errgroup.WithContext(ctx)
	read := func(fn func(ctx context.Context, tx Tx) error) {
		g.Go(func() error {
			return s.store.RunReadOnly(ctx, p.Identity, fn)
		})
	}

	read(func(ctx context.Context, tx Tx) error {
		n, err := tx.Workouts().Count(ctx)
		out.WorkoutCount = n
		return err
	})
	read(func(ctx context.Context, tx Tx) error {
		ws, err := tx.Workouts().List(ctx, nil, dashboardRecentItems)
		out.RecentWorkouts = ws
		return err
	})
	read(func(ctx context.Context, tx Tx) error {
		gs, err := tx.GeneratedWorkouts().List(ctx, dashboardRecentItems)
		out.RecentPlans = gs
		return err
	})
	read(func(ctx context.Context, tx Tx) error {
		ms, err := tx.MoodLogs().ListRecent(ctx, dashboardRecentItems)
		out.RecentMoods = ms
		return err
	})
	read(func(ctx context.Context, tx Tx) error {
		logs, err := tx.NutritionLogs().ListBetween(ctx, today, today.Add(24*time.Hour-time.Nanosecond))
		out.Today = sumNutrition(logs)
		return err
	})
	read(func(ctx context.Context, tx Tx) error {
		photos, err := tx.ProgressPhotos().List(ctx, 1)
		if len(photos) > 0 {
			out.LatestPhoto = &photos[0]
		}
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
