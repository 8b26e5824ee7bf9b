package planner

import (
	"fmt"
	"strings"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// BriefingInput is everything the nutrition coach knows about the user today.
type BriefingInput struct {
	Profile        ProfileSummary
	RecentWorkouts []WorkoutSummary
	RecentPlans    []PlanSummary
	Yesterday      NutritionTotals
	RecentMoods    []MoodSummary
}

// ProfileSummary is the static part of the user's file. Empty fields are unknown.
type ProfileSummary struct {
	FullName         string
	Age              int
	MainGoal         string
	WeightKg         string
	HeightCm         string
	BodyType         string
	ActivityLevel    string
	DietType         string
	Allergies        []string
	HealthConditions string
	MealSchedule     string
}

// WorkoutSummary is a logged workout.
type WorkoutSummary struct {
	Name        string
	DurationMin int
}

// PlanSummary is a generated workout the user saved.
type PlanSummary struct {
	Title        string
	Goals        []string
	MuscleGroups []string
}

// NutritionTotals sums one day of nutrition logs.
type NutritionTotals struct {
	Calories int
	ProteinG decimal.Decimal
	CarbsG   decimal.Decimal
	FatG     decimal.Decimal
}

// MoodSummary is a mood log entry.
type MoodSummary struct {
	Rating int
	Notes  string
}

const workoutSchema = `{
  "title": string,
  "description": string,
  "estimatedDuration": string,
  "warmup": string,
  "exercises": [{"name": string, "sets": number, "reps": string, "rest": string, "notes": string}],
  "cooldown": string
}`

const nutritionSchema = `{
  "dailyTitle": string,
  "dailyFocus": string,
  "meals": [{"title": string, "description": string, "timing": string,
             "macros": {"calories": number, "protein_g": number, "carbs_g": number, "fat_g": number}}],
  "hydrationTip": string,
  "proTip": string,
  "totalDailyMacros": {"calories": number, "protein_g": number, "carbs_g": number, "fat_g": number}
}`

// WorkoutPrompt builds the personal trainer instructions for one session.
func WorkoutPrompt(req WorkoutRequest) string {
	var b strings.Builder
	b.WriteString("You are the certified virtual personal trainer of the Vitalia app. ")
	b.WriteString("You design effective, safe and personalised training sessions.\n\n")
	b.WriteString("## Session parameters\n")
	fmt.Fprintf(&b, "- Goals: %s\n", strings.Join(req.Goals, ", "))
	fmt.Fprintf(&b, "- Muscle groups: %s\n", strings.Join(req.MuscleGroups, ", "))
	fmt.Fprintf(&b, "- Available time: %s\n", req.Duration)
	fmt.Fprintf(&b, "- Energy level: %s\n", req.EnergyLevel)
	if notes := strings.TrimSpace(req.AdditionalNotes); notes != "" {
		fmt.Fprintf(&b, "- Additional notes: %s\n", notes)
	}
	b.WriteString(`
## Instructions
1. Fit the session to the available time.
2. Combine the selected goals sensibly (strength plus hypertrophy means 6-10 reps).
3. Work every selected muscle group.
4. Lower the intensity on low energy, add harder movements on high energy.
5. Include a 5-10 minute warm-up and a 5 minute cool-down.
6. Give realistic set and rep ranges and a short safety note per exercise.
`)
	b.WriteString("\nReply with a single JSON object and nothing else, shaped like:\n")
	b.WriteString(workoutSchema)
	return b.String()
}

// DailyBriefingPrompt builds the sports nutritionist instructions for today's plan.
func DailyBriefingPrompt(in BriefingInput) string {
	p := in.Profile
	var b strings.Builder
	b.WriteString("You are the elite sports nutritionist and wellbeing coach of Vitalia. ")
	b.WriteString("Write today's personalised daily nutrition briefing.\n\n")

	b.WriteString("## Profile\n")
	fmt.Fprintf(&b, "- Name: %s\n", orUnknown(p.FullName))
	if p.Age > 0 {
		fmt.Fprintf(&b, "- Age: %d\n", p.Age)
	} else {
		b.WriteString("- Age: not specified\n")
	}
	fmt.Fprintf(&b, "- Main goal: %s\n", orUnknown(p.MainGoal))
	fmt.Fprintf(&b, "- Weight: %s kg | Height: %s cm\n", orNA(p.WeightKg), orNA(p.HeightCm))
	fmt.Fprintf(&b, "- Body type: %s\n", orUnknown(p.BodyType))
	fmt.Fprintf(&b, "- Activity level: %s\n", orUnknown(p.ActivityLevel))
	fmt.Fprintf(&b, "- Diet: %s\n", lo.Ternary(p.DietType == "", "no specific restrictions", p.DietType))
	fmt.Fprintf(&b, "- Allergies: %s\n", lo.Ternary(len(p.Allergies) == 0, "none", strings.Join(p.Allergies, ", ")))
	fmt.Fprintf(&b, "- Health conditions: %s\n", lo.Ternary(p.HealthConditions == "", "none reported", p.HealthConditions))
	fmt.Fprintf(&b, "- Meal schedule: %s\n", lo.Ternary(p.MealSchedule == "", "flexible", p.MealSchedule))

	b.WriteString("\n## Recent activity\n")
	fmt.Fprintf(&b, "- Training: %s\n", lastTraining(in))
	fmt.Fprintf(&b, "- Yesterday's nutrition: %s\n", nutritionLine(in.Yesterday))
	fmt.Fprintf(&b, "- Mood: %s\n", moodLine(in.RecentMoods))

	fmt.Fprintf(&b, `
## Instructions
1. Synthesise, do not list. Trained yesterday means recovery (protein and carbohydrates);
   a rest day means maintenance; low mood calls for complex carbohydrates and omega-3.
2. Allergies and diet type are absolute. Never suggest a forbidden food.
3. Name concrete foods with approximate quantities in every meal.
4. The pro tip connects yesterday's training with today's nutrition.
5. Plan between %d and %d meals and make the daily macro totals consistent with the goal.
`, MinMeals, MaxMeals)
	b.WriteString("\nReply with a single JSON object and nothing else, shaped like:\n")
	b.WriteString(nutritionSchema)
	return b.String()
}

func lastTraining(in BriefingInput) string {
	if len(in.RecentWorkouts) > 0 {
		w := in.RecentWorkouts[0]
		return fmt.Sprintf("%s (duration: %s min)", w.Name, lo.Ternary(w.DurationMin > 0, fmt.Sprint(w.DurationMin), "N/A"))
	}
	if len(in.RecentPlans) > 0 {
		pl := in.RecentPlans[0]
		return fmt.Sprintf("generated workout %s, muscle groups: %s, goals: %s",
			pl.Title, joinOrNA(pl.MuscleGroups), joinOrNA(pl.Goals))
	}
	return "rest day or no workouts recorded"
}

func nutritionLine(t NutritionTotals) string {
	if t.Calories <= 0 {
		return "no meals recorded"
	}
	return fmt.Sprintf("%d kcal, protein %sg, carbohydrates %sg, fat %sg",
		t.Calories, t.ProteinG.StringFixed(1), t.CarbsG.StringFixed(1), t.FatG.StringFixed(1))
}

func moodLine(moods []MoodSummary) string {
	if len(moods) == 0 {
		return "no mood logs"
	}
	last := moods[0]
	if last.Notes == "" {
		return fmt.Sprintf("last rating %d/5", last.Rating)
	}
	return fmt.Sprintf("last rating %d/5 (%q)", last.Rating, last.Notes)
}

func orUnknown(s string) string { return lo.Ternary(s == "", "not specified", s) }

func orNA(s string) string { return lo.Ternary(s == "", "N/A", s) }

func joinOrNA(values []string) string {
	return lo.Ternary(len(values) == 0, "N/A", strings.Join(values, ", "))
}
