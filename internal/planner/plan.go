// Package planner builds coaching prompts and turns model output into typed plans.
package planner

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrInvalidPlan is returned when model output does not describe a usable plan.
var ErrInvalidPlan = errors.New("planner: invalid plan")

// Generator produces typed plans from prompts.
type Generator interface {
	GenerateWorkout(ctx context.Context, req WorkoutRequest) (*WorkoutPlan, error)
	GenerateDailyNutrition(ctx context.Context, in BriefingInput) (*DailyNutritionPlan, error)
}

// WorkoutRequest captures what the user asked the coach for.
type WorkoutRequest struct {
	Goals           []string `json:"goals"`
	MuscleGroups    []string `json:"muscle_groups"`
	Duration        string   `json:"duration"`
	EnergyLevel     string   `json:"energy_level"`
	AdditionalNotes string   `json:"additional_notes,omitempty"`
}

// Exercise is one movement in a generated workout.
type Exercise struct {
	Name  string `json:"name"`
	Sets  int    `json:"sets"`
	Reps  string `json:"reps"`
	Rest  string `json:"rest"`
	Notes string `json:"notes,omitempty"`
}

// WorkoutPlan is a generated training session.
type WorkoutPlan struct {
	Title             string     `json:"title"`
	Description       string     `json:"description"`
	EstimatedDuration string     `json:"estimatedDuration"`
	Warmup            string     `json:"warmup"`
	Exercises         []Exercise `json:"exercises"`
	Cooldown          string     `json:"cooldown"`
}

// Validate checks the fields the rest of the system relies on.
func (p *WorkoutPlan) Validate() error {
	if p == nil {
		return fmt.Errorf("%w: empty workout", ErrInvalidPlan)
	}
	if strings.TrimSpace(p.Title) == "" {
		return fmt.Errorf("%w: workout title is required", ErrInvalidPlan)
	}
	if len(p.Exercises) == 0 {
		return fmt.Errorf("%w: workout has no exercises", ErrInvalidPlan)
	}
	for i, ex := range p.Exercises {
		if strings.TrimSpace(ex.Name) == "" {
			return fmt.Errorf("%w: exercise %d has no name", ErrInvalidPlan, i)
		}
		if ex.Sets <= 0 {
			return fmt.Errorf("%w: exercise %q needs at least one set", ErrInvalidPlan, ex.Name)
		}
	}
	return nil
}

// Macros are the estimated macronutrients of a meal or a day.
type Macros struct {
	Calories decimal.Decimal `json:"calories"`
	ProteinG decimal.Decimal `json:"protein_g"`
	CarbsG   decimal.Decimal `json:"carbs_g"`
	FatG     decimal.Decimal `json:"fat_g"`
}

func (m Macros) negative() bool {
	return m.Calories.IsNegative() || m.ProteinG.IsNegative() || m.CarbsG.IsNegative() || m.FatG.IsNegative()
}

// Meal is one recommended meal of the day.
type Meal struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Macros      Macros `json:"macros"`
	Timing      string `json:"timing"`
}

// DailyNutritionPlan is the daily nutrition briefing.
type DailyNutritionPlan struct {
	DailyTitle       string `json:"dailyTitle"`
	DailyFocus       string `json:"dailyFocus"`
	Meals            []Meal `json:"meals"`
	HydrationTip     string `json:"hydrationTip"`
	ProTip           string `json:"proTip"`
	TotalDailyMacros Macros `json:"totalDailyMacros"`
}

// Meal count bounds of a daily plan.
const (
	MinMeals = 3
	MaxMeals = 6
)

// Validate checks meal count and macro sanity.
func (p *DailyNutritionPlan) Validate() error {
	if p == nil {
		return fmt.Errorf("%w: empty nutrition plan", ErrInvalidPlan)
	}
	if strings.TrimSpace(p.DailyTitle) == "" {
		return fmt.Errorf("%w: daily title is required", ErrInvalidPlan)
	}
	if n := len(p.Meals); n < MinMeals || n > MaxMeals {
		return fmt.Errorf("%w: %d meals, want %d to %d", ErrInvalidPlan, n, MinMeals, MaxMeals)
	}
	for _, meal := range p.Meals {
		if strings.TrimSpace(meal.Title) == "" {
			return fmt.Errorf("%w: meal without title", ErrInvalidPlan)
		}
		if meal.Macros.negative() {
			return fmt.Errorf("%w: meal %q has negative macros", ErrInvalidPlan, meal.Title)
		}
	}
	if p.TotalDailyMacros.negative() {
		return fmt.Errorf("%w: negative daily macros", ErrInvalidPlan)
	}
	return nil
}
