package domain

import "encoding/json"

// Macros is a calorie and macronutrient tally.
type Macros struct {
	Calories float64 `json:"calories"`
	Protein  float64 `json:"protein"`
	Carbs    float64 `json:"carbs"`
	Fat      float64 `json:"fat"`
}

// Add returns the element-wise sum of m and o.
func (m Macros) Add(o Macros) Macros {
	return Macros{
		Calories: m.Calories + o.Calories,
		Protein:  m.Protein + o.Protein,
		Carbs:    m.Carbs + o.Carbs,
		Fat:      m.Fat + o.Fat,
	}
}

// Scale returns m with every field multiplied by f.
func (m Macros) Scale(f float64) Macros {
	return Macros{
		Calories: m.Calories * f,
		Protein:  m.Protein * f,
		Carbs:    m.Carbs * f,
		Fat:      m.Fat * f,
	}
}

// Recipe is a candidate meal from the recipe catalog.
type Recipe struct {
	ID           int      `json:"id" yaml:"id"`
	Title        string   `json:"title" yaml:"title"`
	Calories     int      `json:"calories_per_serving" yaml:"calories"`
	ProteinGrams float64  `json:"protein_g" yaml:"protein_g"`
	CarbGrams    float64  `json:"carbs_g" yaml:"carbs_g"`
	FatGrams     float64  `json:"fat_g" yaml:"fat_g"`
	FiberGrams   float64  `json:"fiber_g" yaml:"fiber_g"`
	PrepMinutes  int      `json:"prep_time_minutes" yaml:"prep_time_minutes"`
	Servings     int      `json:"servings" yaml:"servings"`
	Ingredients  []string `json:"ingredients" yaml:"ingredients"`
	Instructions []string `json:"instructions" yaml:"instructions"`
	DietTypes    []string `json:"diet_types" yaml:"diet_types"`
}

// Macros returns the recipe's per-serving nutrition.
func (r Recipe) Macros() Macros {
	return Macros{
		Calories: float64(r.Calories),
		Protein:  r.ProteinGrams,
		Carbs:    r.CarbGrams,
		Fat:      r.FatGrams,
	}
}

// HasDiet reports whether the recipe is tagged with diet.
func (r Recipe) HasDiet(diet string) bool {
	for _, d := range r.DietTypes {
		if d == diet {
			return true
		}
	}
	return false
}

// DailyPlan holds the three required meals of one day. Totals are always
// derived from the meals.
type DailyPlan struct {
	Day       string
	Breakfast Recipe
	Lunch     Recipe
	Dinner    Recipe
}

// Totals sums the day's three meals.
func (d DailyPlan) Totals() Macros {
	return d.Breakfast.Macros().Add(d.Lunch.Macros()).Add(d.Dinner.Macros())
}

type dailyPlanJSON struct {
	Day          string  `json:"day"`
	Breakfast    Recipe  `json:"breakfast"`
	Lunch        Recipe  `json:"lunch"`
	Dinner       Recipe  `json:"dinner"`
	TotalCalorie float64 `json:"total_calories"`
	TotalProtein float64 `json:"total_protein"`
	TotalCarbs   float64 `json:"total_carbs"`
	TotalFat     float64 `json:"total_fat"`
}

// MarshalJSON emits the meals together with their computed totals.
func (d DailyPlan) MarshalJSON() ([]byte, error) {
	t := d.Totals()
	return json.Marshal(dailyPlanJSON{
		Day:          d.Day,
		Breakfast:    d.Breakfast,
		Lunch:        d.Lunch,
		Dinner:       d.Dinner,
		TotalCalorie: t.Calories,
		TotalProtein: t.Protein,
		TotalCarbs:   t.Carbs,
		TotalFat:     t.Fat,
	})
}

// UnmarshalJSON reads the meals and discards any stored totals.
func (d *DailyPlan) UnmarshalJSON(data []byte) error {
	var raw dailyPlanJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	d.Day = raw.Day
	d.Breakfast = raw.Breakfast
	d.Lunch = raw.Lunch
	d.Dinner = raw.Dinner
	return nil
}

// WeeklyPlan is an ordered sequence of days.
type WeeklyPlan struct {
	Days []DailyPlan `json:"weekly_plan"`
}

// Totals sums every day of the plan.
func (w WeeklyPlan) Totals() Macros {
	var total Macros
	for _, d := range w.Days {
		total = total.Add(d.Totals())
	}
	return total
}

// DailyAverage returns the per-day average nutrition, or zero for an empty plan.
func (w WeeklyPlan) DailyAverage() Macros {
	if len(w.Days) == 0 {
		return Macros{}
	}
	return w.Totals().Scale(1 / float64(len(w.Days)))
}
