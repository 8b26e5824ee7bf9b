package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Default windows for stats requested without a lower bound.
const (
	MoodStatsWindow        = 30 * 24 * time.Hour
	NutritionSummaryWindow = 7 * 24 * time.Hour
)

// WorkoutStats aggregates every workout the caller logged.
type WorkoutStats struct {
	TotalWorkouts    int             `json:"total_workouts"`
	TotalDurationMin int             `json:"total_duration_min"`
	AvgDurationMin   decimal.Decimal `json:"avg_duration_min"`
	FirstWorkout     *time.Time      `json:"first_workout"`
	LastWorkout      *time.Time      `json:"last_workout"`
}

// MoodStats aggregates mood logs in a time range. Distribution[i] counts the
// logs rated i+1.
type MoodStats struct {
	From         time.Time       `json:"from"`
	To           time.Time       `json:"to"`
	TotalLogs    int             `json:"total_logs"`
	AverageMood  decimal.Decimal `json:"average_mood"`
	Distribution [MaxMood]int    `json:"distribution"`
}

// NutritionDay sums the nutrition logs of one UTC day. CalorieEntries counts the
// logs that recorded calories.
type NutritionDay struct {
	Date           time.Time       `json:"date"`
	LogCount       int             `json:"log_count"`
	CalorieEntries int             `json:"calorie_entries"`
	Calories       int             `json:"calories"`
	ProteinG       decimal.Decimal `json:"protein_g"`
	CarbsG         decimal.Decimal `json:"carbs_g"`
	FatG           decimal.Decimal `json:"fat_g"`
}

// NutritionSummary totals a range of days and keeps the daily breakdown.
type NutritionSummary struct {
	From            time.Time       `json:"from"`
	To              time.Time       `json:"to"`
	LogCount        int             `json:"log_count"`
	Calories        int             `json:"calories"`
	ProteinG        decimal.Decimal `json:"protein_g"`
	CarbsG          decimal.Decimal `json:"carbs_g"`
	FatG            decimal.Decimal `json:"fat_g"`
	AverageCalories decimal.Decimal `json:"average_calories"`
	Days            []NutritionDay  `json:"days"`
}

// PhotoStats aggregates progress photos by the day they were taken.
type PhotoStats struct {
	TotalPhotos int        `json:"total_photos"`
	FirstPhoto  *time.Time `json:"first_photo"`
	LastPhoto   *time.Time `json:"last_photo"`
	ThisYear    int        `json:"photos_this_year"`
	ThisMonth   int        `json:"photos_this_month"`
}

// WorkoutStats summarizes the caller's workouts.
func (s *Service) WorkoutStats(ctx context.Context, p Principal) (*WorkoutStats, error) {
	var out WorkoutStats
	err := s.store.RunReadOnly(ctx, p.Identity, func(ctx context.Context, tx Tx) error {
		stats, err := tx.Workouts().Stats(ctx)
		out = stats
		return err
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// MoodStats summarizes the caller's mood logs in [from, to]. A zero to means now
// and a zero from means MoodStatsWindow before to.
func (s *Service) MoodStats(ctx context.Context, p Principal, from, to time.Time) (*MoodStats, error) {
	from, to, err := s.statsRange(from, to, MoodStatsWindow)
	if err != nil {
		return nil, err
	}
	var out MoodStats
	err = s.store.RunReadOnly(ctx, p.Identity, func(ctx context.Context, tx Tx) error {
		stats, err := tx.MoodLogs().Stats(ctx, from, to)
		out = stats
		return err
	})
	if err != nil {
		return nil, err
	}
	out.From, out.To = from, to
	return &out, nil
}

// NutritionSummary totals the caller's nutrition logs consumed in [from, to],
// broken down by day. A zero to means now and a zero from means
// NutritionSummaryWindow before to.
func (s *Service) NutritionSummary(ctx context.Context, p Principal, from, to time.Time) (*NutritionSummary, error) {
	from, to, err := s.statsRange(from, to, NutritionSummaryWindow)
	if err != nil {
		return nil, err
	}
	var days []NutritionDay
	err = s.store.RunReadOnly(ctx, p.Identity, func(ctx context.Context, tx Tx) error {
		ds, err := tx.NutritionLogs().DailyTotals(ctx, from, to)
		days = ds
		return err
	})
	if err != nil {
		return nil, err
	}
	return summarizeDays(from, to, days), nil
}

// PhotoStats summarizes the caller's progress photos.
func (s *Service) PhotoStats(ctx context.Context, p Principal) (*PhotoStats, error) {
	now := s.clock().UTC()
	var out PhotoStats
	err := s.store.RunReadOnly(ctx, p.Identity, func(ctx context.Context, tx Tx) error {
		stats, err := tx.ProgressPhotos().Stats(ctx, now)
		out = stats
		return err
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Service) statsRange(from, to time.Time, window time.Duration) (time.Time, time.Time, error) {
	if to.IsZero() {
		to = s.clock()
	}
	if from.IsZero() {
		from = to.Add(-window)
	}
	if to.Before(from) {
		return time.Time{}, time.Time{}, invalid("to", "must not be before from")
	}
	return from.UTC(), to.UTC(), nil
}

func summarizeDays(from, to time.Time, days []NutritionDay) *NutritionSummary {
	out := &NutritionSummary{
		From:            from,
		To:              to,
		ProteinG:        decimal.Zero,
		CarbsG:          decimal.Zero,
		FatG:            decimal.Zero,
		AverageCalories: decimal.Zero,
		Days:            days,
	}
	if out.Days == nil {
		out.Days = []NutritionDay{}
	}
	entries := 0
	for _, d := range days {
		out.LogCount += d.LogCount
		out.Calories += d.Calories
		out.ProteinG = out.ProteinG.Add(d.ProteinG)
		out.CarbsG = out.CarbsG.Add(d.CarbsG)
		out.FatG = out.FatG.Add(d.FatG)
		entries += d.CalorieEntries
	}
	if entries > 0 {
		out.AverageCalories = Average(int64(out.Calories), entries)
	}
	return out
}

// Average divides sum by n, rounded half away from zero to two decimals. It is
// zero when n is zero.
func Average(sum int64, n int) decimal.Decimal {
	if n == 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(sum).Div(decimal.NewFromInt(int64(n))).Round(2)
}
