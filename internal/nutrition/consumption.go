package nutrition

import (
	"math"

	"bodari/internal/models"
)

// AggregateConsumed sums the logged meals; missing values count as zero.
func AggregateConsumed(entries []models.MealLogEntry) models.Nutrients {
	var total models.Nutrients
	for _, e := range entries {
		total.Calories += value(e.Calories)
		total.Protein += value(e.Protein)
		total.Fat += value(e.Fat)
		total.Carbs += value(e.Carbs)
	}
	return total
}

// Remaining clamps each component at zero; eating past the target is allowed.
func Remaining(target, consumed models.Nutrients) models.Nutrients {
	return models.Nutrients{
		Calories: math.Max(target.Calories-consumed.Calories, 0),
		Protein:  math.Max(target.Protein-consumed.Protein, 0),
		Fat:      math.Max(target.Fat-consumed.Fat, 0),
		Carbs:    math.Max(target.Carbs-consumed.Carbs, 0),
	}
}

func value(f *float64) float64 {
	if f == nil {
		return 0
	}
	return *f
}
