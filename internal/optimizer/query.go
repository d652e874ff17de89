package optimizer

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/xiaot623/gogo/coach/internal/nutrition"
)

type keywordRule struct {
	value    string
	keywords []string
}

var dietRules = []keywordRule{
	{"vegetarian", []string{"vegetarian", "veggie"}},
	{"vegan", []string{"vegan", "plant-based"}},
	{"ketogenic", []string{"keto", "ketogenic", "low-carb"}},
	{"paleo", []string{"paleo", "paleolithic"}},
	{"mediterranean", []string{"mediterranean"}},
}

var goalRules = []keywordRule{
	{string(nutrition.GoalWeightLoss), []string{"lose weight", "weight loss", "cut", "cutting"}},
	{string(nutrition.GoalMuscleGain), []string{"gain muscle", "build muscle", "bulk", "bulking"}},
	{string(nutrition.GoalEndurance), []string{"endurance", "cardio", "running", "marathon"}},
}

var defaultCalories = map[nutrition.Goal]int{
	nutrition.GoalWeightLoss:  1800,
	nutrition.GoalMuscleGain:  2400,
	nutrition.GoalMaintenance: 2000,
	nutrition.GoalEndurance:   2200,
}

var calorieRe = regexp.MustCompile(`(\d{3,4})\s*(?:cal|calorie)`)

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

// ParsePreferences extracts dietary preferences from a free-text query,
// defaulting to omnivore.
func ParsePreferences(query string) []string {
	lower := strings.ToLower(query)
	var prefs []string
	for _, rule := range dietRules {
		if containsAny(lower, rule.keywords) {
			prefs = append(prefs, rule.value)
		}
	}
	if len(prefs) == 0 {
		prefs = []string{"omnivore"}
	}
	return prefs
}

// ExtractGoal picks the first goal whose keywords appear in query.
func ExtractGoal(query string) nutrition.Goal {
	lower := strings.ToLower(query)
	for _, rule := range goalRules {
		if containsAny(lower, rule.keywords) {
			return nutrition.Goal(rule.value)
		}
	}
	return nutrition.GoalMaintenance
}

// ExtractCalories returns an explicit "<n> cal" figure from query, or the
// default for goal.
func ExtractCalories(query string, goal nutrition.Goal) int {
	if m := calorieRe.FindStringSubmatch(strings.ToLower(query)); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			return n
		}
	}
	if c, ok := defaultCalories[goal]; ok {
		return c
	}
	return defaultCalories[nutrition.GoalMaintenance]
}

// ParseQuery builds a plan request from a free-text query.
func ParseQuery(query string, days int) PlanRequest {
	goal := ExtractGoal(query)
	return PlanRequest{
		Preferences: ParsePreferences(query),
		Calories:    ExtractCalories(query, goal),
		Goal:        string(goal),
		Days:        days,
	}
}
