package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/xiaot623/gogo/coach/internal/cache"
	"github.com/xiaot623/gogo/coach/internal/domain"
	"github.com/xiaot623/gogo/coach/internal/logging"
	"github.com/xiaot623/gogo/coach/internal/optimizer"
)

// MealPlanMetadata describes how a meal plan request was interpreted.
type MealPlanMetadata struct {
	DietaryPreferences  []string `json:"dietary_preferences"`
	FitnessGoal         string   `json:"fitness_goal"`
	CalorieTarget       int      `json:"calorie_target"`
	Days                int      `json:"days"`
	OptimizationApplied bool     `json:"optimization_applied"`
	Cached              bool     `json:"cached"`
	CacheKey            string   `json:"cache_key"`
}

// MealPlanData is the payload the meal generator answers with.
type MealPlanData struct {
	MealPlan          *optimizer.MealPlan     `json:"meal_plan"`
	NutritionAnalysis optimizer.BalanceReport `json:"nutrition_analysis"`
	Metadata          MealPlanMetadata        `json:"metadata"`
}

// MealPlan answers a generator request from the local optimizer. The query
// text determines diet, goal and calorie target.
func (s *Service) MealPlan(ctx context.Context, req domain.GeneratorRequest) (*MealPlanData, error) {
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return nil, fmt.Errorf("%w: Query is required", optimizer.ErrInvalidRequest)
	}

	days := optimizer.DefaultDays
	if s.config != nil && s.config.DefaultPlanDays > 0 {
		days = s.config.DefaultPlanDays
	}
	planReq := optimizer.ParseQuery(query, days)

	res, err := s.optimizer.Plan(ctx, planReq)
	if err != nil {
		return nil, err
	}

	logger := logging.FromContext(ctx, s.logger)
	logger.Info().
		Str("user_id", req.UserID).
		Strs("preferences", planReq.Preferences).
		Str("goal", planReq.Goal).
		Int("calories", planReq.Calories).
		Bool("cached", res.Cached).
		Msg("meal plan served")

	return &MealPlanData{
		MealPlan:          res.Plan,
		NutritionAnalysis: optimizer.AnalyzeResult(res),
		Metadata: MealPlanMetadata{
			DietaryPreferences:  planReq.Preferences,
			FitnessGoal:         planReq.Goal,
			CalorieTarget:       planReq.Calories,
			Days:                res.Plan.DayCount,
			OptimizationApplied: true,
			Cached:              res.Cached,
			CacheKey:            res.CacheKey,
		},
	}, nil
}

// OptimizeMeal analyzes a single meal against a goal and calorie target.
func (s *Service) OptimizeMeal(ctx context.Context, meal domain.Recipe, goal string, calories int) (*optimizer.MealOptimization, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return optimizer.OptimizeMeal(meal, goal, calories)
}

// SuggestRecipes lists catalog recipes in a calorie range.
func (s *Service) SuggestRecipes(ctx context.Context, min, max int, prefs []string, mealType string) (*optimizer.SuggestionResult, error) {
	return s.optimizer.Suggest(ctx, min, max, prefs, mealType)
}

// CacheStats reports optimizer cache occupancy.
func (s *Service) CacheStats() cache.Stats {
	return s.optimizer.Cache().Stats()
}

// ClearCache drops cache entries whose key contains pattern; an empty pattern
// clears everything.
func (s *Service) ClearCache(pattern string) int {
	n := s.optimizer.Cache().Clear(pattern)
	s.logger.Info().Str("pattern", pattern).Int("cleared", n).Msg("optimizer cache cleared")
	return n
}
