package planner

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type stubMessages struct {
	reply  string
	err    error
	params anthropic.MessageNewParams
}

func (s *stubMessages) New(_ context.Context, body anthropic.MessageNewParams, _ ...option.RequestOption) (*anthropic.Message, error) {
	s.params = body
	if s.err != nil {
		return nil, s.err
	}
	return &anthropic.Message{Content: []anthropic.ContentBlockUnion{{Type: "text", Text: s.reply}}}, nil
}

const workoutJSON = `{"title":"Push day","description":"Chest and triceps","estimatedDuration":"45 minutes",
"warmup":"5 min row","exercises":[{"name":"Bench press","sets":4,"reps":"6-8","rest":"90s"}],"cooldown":"Stretch"}`

func meal(title string) string {
	return `{"title":"` + title + `","description":"food","timing":"8:00","macros":{"calories":500,"protein_g":30,"carbs_g":50,"fat_g":15}}`
}

func nutritionJSON(meals int) string {
	parts := make([]string, meals)
	for i := range parts {
		parts[i] = meal("Meal")
	}
	return `{"dailyTitle":"Recovery day","dailyFocus":"Protein","meals":[` + strings.Join(parts, ",") +
		`],"hydrationTip":"Drink","proTip":"Eat","totalDailyMacros":{"calories":2000,"protein_g":150,"carbs_g":200,"fat_g":60}}`
}

func TestGenerateWorkoutDecodesFencedJSON(t *testing.T) {
	stub := &stubMessages{reply: "```json\n" + workoutJSON + "\n```"}
	gen := NewAnthropicGeneratorWithClient(stub, "", nil)

	plan, err := gen.GenerateWorkout(context.Background(), WorkoutRequest{
		Goals:        []string{"Strength"},
		MuscleGroups: []string{"Chest"},
		Duration:     "45 min",
		EnergyLevel:  "High",
	})
	require.NoError(t, err)
	require.Equal(t, "Push day", plan.Title)
	require.Len(t, plan.Exercises, 1)
	require.Equal(t, anthropic.Model(DefaultModel), stub.params.Model)
	require.Len(t, stub.params.System, 1)
	require.Contains(t, stub.params.System[0].Text, "Goals: Strength")
}

func TestGenerateWorkoutPropagatesAPIError(t *testing.T) {
	boom := errors.New("overloaded")
	gen := NewAnthropicGeneratorWithClient(&stubMessages{err: boom}, "model", nil)
	_, err := gen.GenerateWorkout(context.Background(), WorkoutRequest{})
	require.ErrorIs(t, err, boom)
}

func TestDecodeRepairsTrailingComma(t *testing.T) {
	var plan WorkoutPlan
	broken := "Here is your plan: " + strings.Replace(workoutJSON, `"cooldown":"Stretch"}`, `"cooldown":"Stretch",}`, 1)
	require.NoError(t, Decode(broken, &plan))
	require.Equal(t, "Stretch", plan.Cooldown)
}

func TestDecodeRejectsProse(t *testing.T) {
	var plan WorkoutPlan
	require.ErrorIs(t, Decode("I cannot help with that.", &plan), ErrInvalidPlan)
}

func TestDailyNutritionMealBounds(t *testing.T) {
	for _, tc := range []struct {
		meals int
		ok    bool
	}{{2, false}, {3, true}, {6, true}, {7, false}} {
		gen := NewAnthropicGeneratorWithClient(&stubMessages{reply: nutritionJSON(tc.meals)}, "", nil)
		plan, err := gen.GenerateDailyNutrition(context.Background(), BriefingInput{})
		if tc.ok {
			require.NoError(t, err, "meals=%d", tc.meals)
			require.True(t, plan.TotalDailyMacros.Calories.Equal(decimal.NewFromInt(2000)))
		} else {
			require.ErrorIs(t, err, ErrInvalidPlan, "meals=%d", tc.meals)
		}
	}
}

func TestDailyBriefingPromptSummarisesContext(t *testing.T) {
	prompt := DailyBriefingPrompt(BriefingInput{
		Profile: ProfileSummary{FullName: "Ana", Age: 31, Allergies: []string{"peanuts", "shellfish"}},
		RecentPlans: []PlanSummary{{
			Title: "Leg blast", MuscleGroups: []string{"Legs"}, Goals: []string{"Strength"},
		}},
		Yesterday: NutritionTotals{
			Calories: 1800,
			ProteinG: decimal.RequireFromString("120.25"),
			CarbsG:   decimal.NewFromInt(200),
			FatG:     decimal.NewFromInt(55),
		},
		RecentMoods: []MoodSummary{{Rating: 2, Notes: "tired"}},
	})

	require.Contains(t, prompt, "Name: Ana")
	require.Contains(t, prompt, "Age: 31")
	require.Contains(t, prompt, "Allergies: peanuts, shellfish")
	require.Contains(t, prompt, "generated workout Leg blast, muscle groups: Legs, goals: Strength")
	require.Contains(t, prompt, "1800 kcal, protein 120.3g")
	require.Contains(t, prompt, `last rating 2/5 ("tired")`)
	require.Contains(t, prompt, "between 3 and 6 meals")
}

func TestDailyBriefingPromptDefaults(t *testing.T) {
	prompt := DailyBriefingPrompt(BriefingInput{})
	require.Contains(t, prompt, "Age: not specified")
	require.Contains(t, prompt, "rest day or no workouts recorded")
	require.Contains(t, prompt, "no meals recorded")
	require.Contains(t, prompt, "no mood logs")
}
