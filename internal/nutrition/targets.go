// Package nutrition computes daily macronutrient targets for a fitness goal.
package nutrition

import (
	"math"
	"strings"

	"github.com/xiaot623/gogo/coach/internal/domain"
)

// Goal is a fitness goal that shifts the macro split.
type Goal string

const (
	GoalWeightLoss  Goal = "weight_loss"
	GoalMuscleGain  Goal = "muscle_gain"
	GoalMaintenance Goal = "maintenance"
	GoalEndurance   Goal = "endurance"
)

// Energy density in kcal per gram.
const (
	KcalPerGramProtein = 4.0
	KcalPerGramCarbs   = 4.0
	KcalPerGramFat     = 9.0
)

const (
	baseProtein = 0.25
	baseCarbs   = 0.45
	baseFat     = 0.30

	carbCeiling  = 0.65
	proteinFloor = 0.15

	fiberPer1000Kcal = 14.0
)

type multipliers struct {
	protein, carbs, fat float64
}

var goalMultipliers = map[Goal]multipliers{
	GoalWeightLoss:  {1.15, 0.85, 0.95},
	GoalMuscleGain:  {1.3, 1.1, 1.0},
	GoalMaintenance: {1.0, 1.0, 1.0},
	GoalEndurance:   {1.05, 1.15, 0.95},
}

// Goals lists every supported goal.
func Goals() []Goal {
	return []Goal{GoalWeightLoss, GoalMuscleGain, GoalMaintenance, GoalEndurance}
}

// ParseGoal maps a goal name to a Goal. The second result is false for
// unknown names.
func ParseGoal(s string) (Goal, bool) {
	g := Goal(strings.ToLower(strings.TrimSpace(s)))
	_, ok := goalMultipliers[g]
	return g, ok
}

// Target is a daily nutrition target.
type Target struct {
	Calories     int     `json:"calories"`
	ProteinGrams float64 `json:"protein_g"`
	CarbGrams    float64 `json:"carbs_g"`
	FatGrams     float64 `json:"fat_g"`
	FiberGrams   float64 `json:"fiber_g"`
}

// Macros returns the target as a domain.Macros tally.
func (t Target) Macros() domain.Macros {
	return domain.Macros{
		Calories: float64(t.Calories),
		Protein:  t.ProteinGrams,
		Carbs:    t.CarbGrams,
		Fat:      t.FatGrams,
	}
}

// Calculate returns the macro targets for calories and goal. Unknown goals use
// the maintenance split.
//
// The baseline 25/45/30 split is scaled by the goal's multipliers and
// renormalized to the calorie total. Carbs above 65% have the excess moved to
// protein (60%) and fat (40%); protein below 15% is topped up from carbs (80%)
// and fat (20%). The protein floor is checked after the carb ceiling.
func Calculate(calories int, goal Goal) Target {
	m, ok := goalMultipliers[goal]
	if !ok {
		m = goalMultipliers[GoalMaintenance]
	}

	total := float64(calories)
	protein := total * baseProtein * m.protein
	carbs := total * baseCarbs * m.carbs
	fat := total * baseFat * m.fat

	if sum := protein + carbs + fat; sum > 0 {
		scale := total / sum
		protein *= scale
		carbs *= scale
		fat *= scale
	}

	if total > 0 {
		if carbs/total > carbCeiling {
			excess := carbs - total*carbCeiling
			carbs = total * carbCeiling
			protein += excess * 0.6
			fat += excess * 0.4
		}

		if protein/total < proteinFloor {
			deficit := total*proteinFloor - protein
			protein = total * proteinFloor
			carbs -= deficit * 0.8
			fat -= deficit * 0.2
		}
	}

	return Target{
		Calories:     calories,
		ProteinGrams: round1(protein / KcalPerGramProtein),
		CarbGrams:    round1(carbs / KcalPerGramCarbs),
		FatGrams:     round1(fat / KcalPerGramFat),
		FiberGrams:   round1(total / 1000 * fiberPer1000Kcal),
	}
}

// MacroCalories returns the calories implied by a target's grams.
func (t Target) MacroCalories() float64 {
	return t.ProteinGrams*KcalPerGramProtein + t.CarbGrams*KcalPerGramCarbs + t.FatGrams*KcalPerGramFat
}

// Split returns the protein, carb and fat shares of the target's macro calories.
func (t Target) Split() (protein, carbs, fat float64) {
	total := t.MacroCalories()
	if total == 0 {
		return 0, 0, 0
	}
	return t.ProteinGrams * KcalPerGramProtein / total,
		t.CarbGrams * KcalPerGramCarbs / total,
		t.FatGrams * KcalPerGramFat / total
}

// componentScore is max(0, 1-|actual/target-1|); a zero target scores zero.
func componentScore(actual, target float64) float64 {
	if target <= 0 {
		return 0
	}
	return math.Max(0, 1-math.Abs(actual/target-1))
}

// Score rates actual against target on calories, protein, carbs and fat and
// returns the average as a 0-100 percentage.
func Score(actual domain.Macros, target domain.Macros) float64 {
	sum := componentScore(actual.Calories, target.Calories) +
		componentScore(actual.Protein, target.Protein) +
		componentScore(actual.Carbs, target.Carbs) +
		componentScore(actual.Fat, target.Fat)
	return round1(sum / 4 * 100)
}

// MealScore rates one meal against mealCalories and a third of the daily
// macro targets.
func MealScore(actual domain.Macros, target Target, mealCalories int) float64 {
	perMeal := target.Macros().Scale(1.0 / 3)
	perMeal.Calories = float64(mealCalories)
	return Score(actual, perMeal)
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
