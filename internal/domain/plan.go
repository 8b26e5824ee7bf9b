package domain

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/SrSebald/Vitalia/internal/events"
	"github.com/SrSebald/Vitalia/internal/planner"
	"github.com/SrSebald/Vitalia/internal/tenant"
)

// ErrPlannerUnavailable is returned when no plan generator is configured.
var ErrPlannerUnavailable = errors.New("plan generator not configured")

const (
	briefingWorkoutWindow = 48 * time.Hour
	briefingRecentItems   = 2
	briefingMoodItems     = 3
)

// SaveWorkoutInput pairs a generated plan with the request that produced it.
type SaveWorkoutInput struct {
	Request planner.WorkoutRequest `json:"request"`
	Plan    planner.WorkoutPlan    `json:"plan"`
}

// GenerateWorkoutPlan asks the planner for a workout. Nothing is stored.
func (s *Service) GenerateWorkoutPlan(ctx context.Context, p Principal, req planner.WorkoutRequest) (*planner.WorkoutPlan, error) {
	if p.Identity.IsZero() {
		return nil, tenant.ErrIdentityInvalid
	}
	if s.planner == nil {
		return nil, ErrPlannerUnavailable
	}
	req = normalizeRequest(req)
	if len(req.Goals) == 0 {
		return nil, invalid("goals", "at least one goal is required")
	}
	if len(req.MuscleGroups) == 0 {
		return nil, invalid("muscle_groups", "at least one muscle group is required")
	}
	if req.Duration == "" {
		return nil, invalid("duration", "is required")
	}
	if req.EnergyLevel == "" {
		return nil, invalid("energy_level", "is required")
	}
	return s.planner.GenerateWorkout(ctx, req)
}

// SaveGeneratedWorkout stores a generated plan for the caller.
func (s *Service) SaveGeneratedWorkout(ctx context.Context, p Principal, in SaveWorkoutInput) (*GeneratedWorkout, error) {
	if err := in.Plan.Validate(); err != nil {
		return nil, invalid("plan", err.Error())
	}
	req := normalizeRequest(in.Request)

	var out *GeneratedWorkout
	err := s.store.Run(ctx, p.Identity, func(ctx context.Context, tx Tx) error {
		profile, err := s.EnsureProfile(ctx, tx, p)
		if err != nil {
			return err
		}
		now := s.clock()
		g := GeneratedWorkout{
			ID:                newID(),
			UserID:            profile.ID,
			Title:             in.Plan.Title,
			Description:       in.Plan.Description,
			Goals:             req.Goals,
			MuscleGroups:      req.MuscleGroups,
			Duration:          req.Duration,
			EnergyLevel:       req.EnergyLevel,
			EstimatedDuration: in.Plan.EstimatedDuration,
			Plan:              in.Plan,
			AdditionalNotes:   optionalString(req.AdditionalNotes),
			CreatedAt:         now,
			UpdatedAt:         now,
		}
		if err := tx.GeneratedWorkouts().Insert(ctx, g); err != nil {
			return err
		}
		if err := record(ctx, tx, events.PlanSaved, g.ID.String(), events.PlanSavedPayload{
			PlanID:       g.ID.String(),
			Title:        g.Title,
			Goals:        g.Goals,
			MuscleGroups: g.MuscleGroups,
			SavedAt:      now,
		}); err != nil {
			return err
		}
		out = &g
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ListGeneratedWorkouts returns the caller's saved plans, newest first.
func (s *Service) ListGeneratedWorkouts(ctx context.Context, p Principal, limit int) ([]GeneratedWorkout, error) {
	limit = clampLimit(limit)
	var out []GeneratedWorkout
	err := s.store.RunReadOnly(ctx, p.Identity, func(ctx context.Context, tx Tx) error {
		gs, err := tx.GeneratedWorkouts().List(ctx, limit)
		out = gs
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// GetGeneratedWorkout returns one saved plan of the caller.
func (s *Service) GetGeneratedWorkout(ctx context.Context, p Principal, id uuid.UUID) (*GeneratedWorkout, error) {
	var out *GeneratedWorkout
	err := s.store.RunReadOnly(ctx, p.Identity, func(ctx context.Context, tx Tx) error {
		g, err := tx.GeneratedWorkouts().Get(ctx, id)
		out = g
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// CompleteGeneratedWorkout marks a saved plan as done.
func (s *Service) CompleteGeneratedWorkout(ctx context.Context, p Principal, id uuid.UUID) error {
	return s.store.Run(ctx, p.Identity, func(ctx context.Context, tx Tx) error {
		now := s.clock()
		if err := requireOne(tx.GeneratedWorkouts().MarkCompleted(ctx, id, now)); err != nil {
			return err
		}
		return record(ctx, tx, events.PlanCompleted, id.String(), events.PlanCompletedPayload{
			PlanID:      id.String(),
			CompletedAt: now,
		})
	})
}

// DeleteGeneratedWorkout removes a saved plan.
func (s *Service) DeleteGeneratedWorkout(ctx context.Context, p Principal, id uuid.UUID) error {
	return s.store.Run(ctx, p.Identity, func(ctx context.Context, tx Tx) error {
		return requireOne(tx.GeneratedWorkouts().Delete(ctx, id))
	})
}

// GenerateDailyBriefing gathers the caller's recent context in one unit of work
// and asks the planner for today's nutrition plan. The planner is called after the
// unit of work has released its connection.
func (s *Service) GenerateDailyBriefing(ctx context.Context, p Principal) (*planner.DailyNutritionPlan, error) {
	if s.planner == nil {
		return nil, ErrPlannerUnavailable
	}

	var in planner.BriefingInput
	err := s.store.Run(ctx, p.Identity, func(ctx context.Context, tx Tx) error {
		profile, err := s.EnsureProfile(ctx, tx, p)
		if err != nil {
			return err
		}
		now := s.clock()
		in.Profile = summarizeProfile(profile, now)

		workouts, err := tx.Workouts().ListSince(ctx, truncateDay(now.Add(-briefingWorkoutWindow)), briefingRecentItems)
		if err != nil {
			return err
		}
		in.RecentWorkouts = lo.Map(workouts, func(w Workout, _ int) planner.WorkoutSummary {
			return planner.WorkoutSummary{Name: w.Name, DurationMin: lo.FromPtr(w.DurationMin)}
		})

		plans, err := tx.GeneratedWorkouts().List(ctx, briefingRecentItems)
		if err != nil {
			return err
		}
		in.RecentPlans = lo.Map(plans, func(g GeneratedWorkout, _ int) planner.PlanSummary {
			return planner.PlanSummary{Title: g.Title, Goals: g.Goals, MuscleGroups: g.MuscleGroups}
		})

		today := truncateDay(now)
		logs, err := tx.NutritionLogs().ListBetween(ctx, today.AddDate(0, 0, -1), today.Add(-time.Nanosecond))
		if err != nil {
			return err
		}
		in.Yesterday = sumNutrition(logs)

		moods, err := tx.MoodLogs().ListRecent(ctx, briefingMoodItems)
		if err != nil {
			return err
		}
		in.RecentMoods = lo.Map(moods, func(m MoodLog, _ int) planner.MoodSummary {
			return planner.MoodSummary{Rating: m.MoodRating, Notes: lo.FromPtr(m.Notes)}
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.planner.GenerateDailyNutrition(ctx, in)
}

func normalizeRequest(req planner.WorkoutRequest) planner.WorkoutRequest {
	req.Goals = normalizeStrings(req.Goals)
	req.MuscleGroups = normalizeStrings(req.MuscleGroups)
	req.Duration = strings.TrimSpace(req.Duration)
	req.EnergyLevel = strings.TrimSpace(req.EnergyLevel)
	req.AdditionalNotes = strings.TrimSpace(req.AdditionalNotes)
	return req
}

func summarizeProfile(p *Profile, now time.Time) planner.ProfileSummary {
	summary := planner.ProfileSummary{
		FullName:         lo.FromPtr(p.FullName),
		MainGoal:         lo.FromPtr(p.MainGoal),
		BodyType:         lo.FromPtr(p.BodyType),
		ActivityLevel:    lo.FromPtr(p.ActivityLevel),
		DietType:         lo.FromPtr(p.DietType),
		Allergies:        p.Allergies,
		HealthConditions: lo.FromPtr(p.HealthConditions),
		MealSchedule:     lo.FromPtr(p.MealSchedule),
	}
	if p.WeightKg.Valid {
		summary.WeightKg = p.WeightKg.Decimal.String()
	}
	if p.HeightCm.Valid {
		summary.HeightCm = p.HeightCm.Decimal.String()
	}
	if p.DateOfBirth != nil {
		summary.Age = ageAt(*p.DateOfBirth, now)
	}
	return summary
}

func ageAt(birth, now time.Time) int {
	age := now.Year() - birth.Year()
	if now.Month() < birth.Month() || (now.Month() == birth.Month() && now.Day() < birth.Day()) {
		age--
	}
	return max(age, 0)
}

func sumNutrition(logs []NutritionLog) planner.NutritionTotals {
	totals := planner.NutritionTotals{ProteinG: decimal.Zero, CarbsG: decimal.Zero, FatG: decimal.Zero}
	for _, l := range logs {
		totals.Calories += lo.FromPtr(l.Calories)
		if l.ProteinG.Valid {
			totals.ProteinG = totals.ProteinG.Add(l.ProteinG.Decimal)
		}
		if l.CarbsG.Valid {
			totals.CarbsG = totals.CarbsG.Add(l.CarbsG.Decimal)
		}
		if l.FatG.Valid {
			totals.FatG = totals.FatG.Add(l.FatG.Decimal)
		}
	}
	return totals
}
