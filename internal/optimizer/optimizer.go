// Package optimizer builds multi-day meal plans that track nutrition targets.
package optimizer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/xiaot623/gogo/coach/internal/cache"
	"github.com/xiaot623/gogo/coach/internal/domain"
	"github.com/xiaot623/gogo/coach/internal/nutrition"
)

// Cache key prefixes.
const (
	PrefixMealPlan    = "meal_plan"
	PrefixSuggestions = "suggestions"
)

const (
	DefaultMealPlanTTL   = 2 * time.Hour
	DefaultSuggestionTTL = 30 * time.Minute
	DefaultDays          = 7
	MaxDays              = 14
)

// ErrInvalidRequest is returned for requests the optimizer cannot plan.
var ErrInvalidRequest = errors.New("invalid optimization request")

// Observer receives cache events. It may be nil.
type Observer interface {
	CacheLookup(kind string, hit bool)
}

// PlanRequest describes a meal plan to optimize.
type PlanRequest struct {
	Preferences []string `json:"dietary_preferences"`
	Calories    int      `json:"calorie_target"`
	Goal        string   `json:"fitness_goal"`
	Days        int      `json:"days"`
}

// MealPlan is an optimized multi-day plan with its targets and score.
type MealPlan struct {
	domain.WeeklyPlan
	Targets     nutrition.Target `json:"nutrition_targets"`
	Actual      domain.Macros    `json:"actual_nutrition"`
	Score       float64          `json:"nutrition_score"`
	Goal        nutrition.Goal   `json:"fitness_goal"`
	Preferences []string         `json:"dietary_preferences"`
	DayCount    int              `json:"days"`
}

// PlanResult wraps a plan with cache information.
type PlanResult struct {
	Plan     *MealPlan `json:"meal_plan"`
	Cached   bool      `json:"cached"`
	CacheKey string    `json:"cache_key"`
	Warnings []string  `json:"warnings,omitempty"`
}

// Optimizer plans meals from a catalog, memoizing results in a cache.Store.
type Optimizer struct {
	catalog       *Catalog
	cache         *cache.Store
	planTTL       time.Duration
	suggestionTTL time.Duration
	observer      Observer
	logger        zerolog.Logger
}

// Option configures an Optimizer.
type Option func(*Optimizer)

// WithTTLs overrides the meal plan and suggestion cache lifetimes.
func WithTTLs(plan, suggestions time.Duration) Option {
	return func(o *Optimizer) {
		if plan > 0 {
			o.planTTL = plan
		}
		if suggestions > 0 {
			o.suggestionTTL = suggestions
		}
	}
}

// WithObserver registers a cache observer.
func WithObserver(obs Observer) Option {
	return func(o *Optimizer) {
		o.observer = obs
	}
}

// WithLogger sets the optimizer's logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(o *Optimizer) {
		o.logger = logger
	}
}

// New creates an optimizer over catalog backed by store.
func New(catalog *Catalog, store *cache.Store, opts ...Option) *Optimizer {
	o := &Optimizer{
		catalog:       catalog,
		cache:         store,
		planTTL:       DefaultMealPlanTTL,
		suggestionTTL: DefaultSuggestionTTL,
		logger:        zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Cache exposes the underlying store for stats and maintenance.
func (o *Optimizer) Cache() *cache.Store {
	return o.cache
}

func (o *Optimizer) observe(kind string, hit bool) {
	if o.observer != nil {
		o.observer.CacheLookup(kind, hit)
	}
}

// resolveGoal parses goal, falling back to maintenance.
func resolveGoal(goal string) nutrition.Goal {
	g, ok := nutrition.ParseGoal(goal)
	if !ok {
		return nutrition.GoalMaintenance
	}
	return g
}

// Plan returns an optimized plan for req, from cache when possible.
func (o *Optimizer) Plan(ctx context.Context, req PlanRequest) (*PlanResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if req.Calories <= 0 {
		return nil, fmt.Errorf("%w: calorie target must be positive", ErrInvalidRequest)
	}
	if req.Days <= 0 {
		req.Days = DefaultDays
	}
	if req.Days > MaxDays {
		return nil, fmt.Errorf("%w: at most %d days", ErrInvalidRequest, MaxDays)
	}

	key := cache.Key(PrefixMealPlan, req.Preferences, req.Calories, req.Goal, req.Days)
	goal := resolveGoal(req.Goal)
	target := nutrition.Calculate(req.Calories, goal)

	if v, ok := o.cache.Get(key); ok {
		if raw, ok := v.([]byte); ok {
			var plan MealPlan
			if err := json.Unmarshal(raw, &plan); err != nil {
				o.logger.Warn().Err(err).Str("cache_key", key).Msg("discarding undecodable cached plan")
			} else {
				o.observe(PrefixMealPlan, true)
				res := &PlanResult{Plan: &plan, Cached: true, CacheKey: key}
				if w := roundTripWarning(&plan, target); w != "" {
					o.logger.Warn().Str("cache_key", key).Msg(w)
					res.Warnings = append(res.Warnings, w)
				}
				return res, nil
			}
		}
	}
	o.observe(PrefixMealPlan, false)

	plan := o.build(req, goal, target)
	raw, err := json.Marshal(plan)
	if err != nil {
		return nil, fmt.Errorf("failed to encode meal plan: %w", err)
	}
	o.cache.Set(key, raw, o.planTTL)

	o.logger.Debug().
		Str("cache_key", key).
		Int("calories", req.Calories).
		Str("goal", string(goal)).
		Int("days", req.Days).
		Float64("score", plan.Score).
		Msg("meal plan generated")

	return &PlanResult{Plan: plan, CacheKey: key}, nil
}

// roundTripWarning flags a decoded cached plan whose meals score worse
// against target than the score recorded when the plan was built.
func roundTripWarning(plan *MealPlan, target nutrition.Target) string {
	rescored := WeeklyScore(plan.WeeklyPlan, target)
	if rescored+0.05 < plan.Score {
		return fmt.Sprintf("Cached plan scores %.1f against current targets, down from %.1f", rescored, plan.Score)
	}
	return ""
}

// MealTargets splits a calorie target into breakfast, lunch and dinner
// calorie targets: a third of the total divided 25/40/35.
func MealTargets(calories int) (breakfast, lunch, dinner int) {
	perMeal := float64(calories / 3)
	return int(perMeal * 0.25), int(perMeal * 0.40), int(perMeal * 0.35)
}

func (o *Optimizer) build(req PlanRequest, goal nutrition.Goal, target nutrition.Target) *MealPlan {
	candidates := o.catalog.ForDiet(req.Preferences)
	bTarget, lTarget, dTarget := MealTargets(req.Calories)

	pick := func(slot domain.MealSlot, calories int) domain.Recipe {
		if r, ok := SelectBest(candidates, calories); ok {
			return r
		}
		return FallbackMeal(slot, calories)
	}

	days := make([]domain.DailyPlan, 0, req.Days)
	for i := 0; i < req.Days; i++ {
		days = append(days, domain.DailyPlan{
			Day:       "Day " + strconv.Itoa(i+1),
			Breakfast: pick(domain.SlotBreakfast, bTarget),
			Lunch:     pick(domain.SlotLunch, lTarget),
			Dinner:    pick(domain.SlotDinner, dTarget),
		})
	}

	week := domain.WeeklyPlan{Days: days}
	prefs := make([]string, len(req.Preferences))
	copy(prefs, req.Preferences)

	return &MealPlan{
		WeeklyPlan:  week,
		Targets:     target,
		Actual:      week.Totals(),
		Score:       WeeklyScore(week, target),
		Goal:        goal,
		Preferences: prefs,
		DayCount:    req.Days,
	}
}

// SelectBest returns the candidate whose calories are closest to target.
// Ties go to the earliest candidate. It returns false for no candidates.
func SelectBest(candidates []domain.Recipe, target int) (domain.Recipe, bool) {
	if len(candidates) == 0 {
		return domain.Recipe{}, false
	}
	best := candidates[0]
	bestDiff := absInt(best.Calories - target)
	for _, r := range candidates[1:] {
		if d := absInt(r.Calories - target); d < bestDiff {
			best, bestDiff = r, d
		}
	}
	return best, true
}

// WeeklyScore compares the plan's daily averages with target, 0-100.
func WeeklyScore(week domain.WeeklyPlan, target nutrition.Target) float64 {
	if len(week.Days) == 0 {
		return 0
	}
	return nutrition.Score(week.DailyAverage(), target.Macros())
}

// FallbackMeal is a placeholder recipe used when no catalog recipe is
// available for a slot.
func FallbackMeal(slot domain.MealSlot, calories int) domain.Recipe {
	protein, carbs, fat := 0.20, 0.50, 0.30
	prep := 15
	if slot == domain.SlotBreakfast {
		protein, carbs, fat = 0.15, 0.60, 0.25
		prep = 10
	}
	c := float64(calories)
	return domain.Recipe{
		Title:        "Simple " + cases.Title(language.English).String(string(slot)),
		Calories:     int(math.Round(c * 0.9)),
		ProteinGrams: round1(c * protein / nutrition.KcalPerGramProtein),
		CarbGrams:    round1(c * carbs / nutrition.KcalPerGramCarbs),
		FatGrams:     round1(c * fat / nutrition.KcalPerGramFat),
		PrepMinutes:  prep,
		Servings:     1,
		Instructions: []string{"Simple preparation"},
		DietTypes:    []string{"simple"},
	}
}

// SuggestionResult lists catalog recipes within a calorie range.
type SuggestionResult struct {
	Recipes     []domain.Recipe `json:"recipes"`
	Count       int             `json:"count"`
	Cached      bool            `json:"cached"`
	MinCalories int             `json:"min_calories"`
	MaxCalories int             `json:"max_calories"`
	Preferences []string        `json:"dietary_preferences"`
	MealType    string          `json:"meal_type"`
}

// Suggest returns diet-compatible recipes with calories in [min, max].
func (o *Optimizer) Suggest(ctx context.Context, min, max int, prefs []string, mealType string) (*SuggestionResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if min < 0 || max < min {
		return nil, fmt.Errorf("%w: calorie range %d-%d", ErrInvalidRequest, min, max)
	}
	if mealType == "" {
		mealType = "any"
	}

	key := cache.KeyOf(PrefixSuggestions, strconv.Itoa(min), strconv.Itoa(max), cache.SortedJoin(prefs), strings.ToLower(mealType))
	if v, ok := o.cache.Get(key); ok {
		if res, ok := v.(SuggestionResult); ok {
			o.observe(PrefixSuggestions, true)
			res.Recipes = append([]domain.Recipe(nil), res.Recipes...)
			res.Cached = true
			return &res, nil
		}
	}
	o.observe(PrefixSuggestions, false)

	recipes := InRange(o.catalog.ForDiet(prefs), min, max)
	res := SuggestionResult{
		Recipes:     recipes,
		Count:       len(recipes),
		MinCalories: min,
		MaxCalories: max,
		Preferences: prefs,
		MealType:    mealType,
	}
	o.cache.Set(key, res, o.suggestionTTL)
	return &res, nil
}

// Suggestion is one proposed change to a meal.
type Suggestion struct {
	Type       string  `json:"type"`
	Current    float64 `json:"current"`
	Target     float64 `json:"target"`
	Suggestion string  `json:"suggestion"`
}

// MealOptimization is the analysis of a single meal against a goal.
type MealOptimization struct {
	Current     domain.Macros  `json:"current_nutrition"`
	Targets     domain.Macros  `json:"targets"`
	Goal        nutrition.Goal `json:"fitness_goal"`
	Suggestions []Suggestion   `json:"optimization_suggestions"`
	Score       float64        `json:"optimization_score"`
}

// OptimizeMeal suggests adjustments that bring meal closer to calories and a
// third of the goal's daily macro targets.
func OptimizeMeal(meal domain.Recipe, goal string, calories int) (*MealOptimization, error) {
	if calories <= 0 {
		return nil, fmt.Errorf("%w: calorie target must be positive", ErrInvalidRequest)
	}
	g := resolveGoal(goal)
	daily := nutrition.Calculate(calories, g)
	current := meal.Macros()
	targets := domain.Macros{
		Calories: float64(calories),
		Protein:  daily.ProteinGrams / 3,
		Carbs:    daily.CarbGrams / 3,
		Fat:      daily.FatGrams / 3,
	}

	suggestions := []Suggestion{}
	if current.Protein < targets.Protein*0.8 {
		suggestions = append(suggestions, Suggestion{
			Type:       "increase_protein",
			Current:    current.Protein,
			Target:     round1(targets.Protein),
			Suggestion: "Add protein-rich ingredients like lean meat, fish, eggs, or legumes",
		})
	}
	switch {
	case current.Calories > targets.Calories*1.2:
		suggestions = append(suggestions, Suggestion{
			Type:       "reduce_calories",
			Current:    current.Calories,
			Target:     targets.Calories,
			Suggestion: "Consider smaller portions or lower-calorie alternatives",
		})
	case current.Calories < targets.Calories*0.8:
		suggestions = append(suggestions, Suggestion{
			Type:       "increase_calories",
			Current:    current.Calories,
			Target:     targets.Calories,
			Suggestion: "Add healthy fats or complex carbohydrates",
		})
	}

	return &MealOptimization{
		Current:     current,
		Targets:     targets,
		Goal:        g,
		Suggestions: suggestions,
		Score:       nutrition.MealScore(current, daily, calories),
	}, nil
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
