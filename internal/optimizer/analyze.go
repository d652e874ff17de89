package optimizer

import (
	"math"

	"github.com/xiaot623/gogo/coach/internal/domain"
	"github.com/xiaot623/gogo/coach/internal/nutrition"
)

// Summary holds average daily intake.
type Summary struct {
	Calories float64 `json:"avg_daily_calories"`
	Protein  float64 `json:"avg_daily_protein"`
	Carbs    float64 `json:"avg_daily_carbs"`
	Fat      float64 `json:"avg_daily_fat"`
}

// MacroRatios are shares of macro calories, in percent.
type MacroRatios struct {
	Protein float64 `json:"protein_percent"`
	Carbs   float64 `json:"carb_percent"`
	Fat     float64 `json:"fat_percent"`
}

// BalanceReport is the nutrition-balance analysis of a plan.
type BalanceReport struct {
	Summary         Summary         `json:"analysis_summary"`
	Ratios          MacroRatios     `json:"macronutrient_ratios"`
	BalanceScore    float64         `json:"balance_score"`
	Warnings        []string        `json:"warnings"`
	Recommendations []string        `json:"recommendations"`
	DailyVariation  []domain.Macros `json:"daily_variation"`
}

// Analyze reports average intake, macro percentages and advice for plan.
// Percentages are computed over the calories the macros actually supply.
func Analyze(plan domain.WeeklyPlan) BalanceReport {
	report := BalanceReport{
		Warnings:        []string{},
		Recommendations: []string{},
		DailyVariation:  make([]domain.Macros, 0, len(plan.Days)),
	}
	if len(plan.Days) == 0 {
		report.Warnings = append(report.Warnings, "No meal plan data provided")
		return report
	}

	for _, d := range plan.Days {
		report.DailyVariation = append(report.DailyVariation, d.Totals())
	}

	avg := plan.DailyAverage()
	report.Summary = Summary{
		Calories: math.Round(avg.Calories),
		Protein:  round1(avg.Protein),
		Carbs:    round1(avg.Carbs),
		Fat:      round1(avg.Fat),
	}

	var protein, carbs, fat float64
	proteinKcal := avg.Protein * nutrition.KcalPerGramProtein
	carbKcal := avg.Carbs * nutrition.KcalPerGramCarbs
	fatKcal := avg.Fat * nutrition.KcalPerGramFat
	if total := proteinKcal + carbKcal + fatKcal; avg.Calories > 0 && total > 0 {
		protein = proteinKcal / total
		carbs = carbKcal / total
		fat = fatKcal / total
	}
	report.Ratios = MacroRatios{
		Protein: round1(protein * 100),
		Carbs:   round1(carbs * 100),
		Fat:     round1(fat * 100),
	}

	switch {
	case protein < 0.15:
		report.Warnings = append(report.Warnings, "Protein intake may be too low")
		report.Recommendations = append(report.Recommendations, "Consider adding more protein-rich foods like lean meats, fish, or legumes")
	case protein > 0.35:
		report.Warnings = append(report.Warnings, "Protein intake may be too high")
		report.Recommendations = append(report.Recommendations, "Consider balancing with more carbohydrates and healthy fats")
	}

	switch {
	case carbs < 0.30:
		report.Recommendations = append(report.Recommendations, "Consider adding more complex carbohydrates for energy")
	case carbs > 0.60:
		report.Recommendations = append(report.Recommendations, "Consider reducing refined carbohydrates")
	}

	switch {
	case fat < 0.20:
		report.Recommendations = append(report.Recommendations, "Add healthy fats like avocados, nuts, or olive oil")
	case fat > 0.40:
		report.Recommendations = append(report.Recommendations, "Consider reducing saturated fat intake")
	}

	return report
}

// AnalyzeResult analyzes a plan result, carrying its score and any cache
// warnings into the report.
func AnalyzeResult(res *PlanResult) BalanceReport {
	if res == nil || res.Plan == nil {
		return Analyze(domain.WeeklyPlan{})
	}
	report := Analyze(res.Plan.WeeklyPlan)
	report.BalanceScore = res.Plan.Score
	report.Warnings = append(report.Warnings, res.Warnings...)
	return report
}
