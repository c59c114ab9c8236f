package planner

import (
	"math"

	"whats-cooking/internal/catalog"
)

// Totals is the nutrition sum for one day. Calories are whole numbers;
// macros keep one decimal.
type Totals struct {
	Calories int     `json:"calories"`
	Protein  float64 `json:"protein"`
	Carbs    float64 `json:"carbs"`
	Fat      float64 `json:"fat"`
}

// Add sums two totals without re-rounding calories.
func (t Totals) Add(o Totals) Totals {
	return Totals{
		Calories: t.Calories + o.Calories,
		Protein:  round1(t.Protein + o.Protein),
		Carbs:    round1(t.Carbs + o.Carbs),
		Fat:      round1(t.Fat + o.Fat),
	}
}

// Aggregate sums the nutrition of every item in the day. Missing fields
// count as zero.
func Aggregate(day DayPlan) Totals {
	var sum catalog.Nutrition
	for _, cat := range catalog.All {
		for _, it := range day[cat] {
			n := it.Totals()
			sum.Calories += n.Calories
			sum.Protein += n.Protein
			sum.Carbs += n.Carbs
			sum.Fat += n.Fat
		}
	}
	return Totals{
		Calories: int(math.Round(sum.Calories)),
		Protein:  round1(sum.Protein),
		Carbs:    round1(sum.Carbs),
		Fat:      round1(sum.Fat),
	}
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
