package models

import "time"

// Nutrients is a calories + macro gram record used for targets, consumption and remaining.
type Nutrients struct {
	Calories float64 `json:"calories"`
	Protein  float64 `json:"protein"`
	Fat      float64 `json:"fat"`
	Carbs    float64 `json:"carbs"`
}

// Macros is a gram split of a daily calorie target.
type Macros struct {
	ProteinG int `json:"protein_g"`
	FatG     int `json:"fat_g"`
	CarbsG   int `json:"carbs_g"`
}

// MealLogEntry is insert-only. Nutrient fields may be NULL in storage.
type MealLogEntry struct {
	ID          int64             `json:"id"`
	UserID      int64             `json:"user_id"`
	Date        time.Time         `json:"date"`
	Name        string            `json:"name"`
	Ingredients map[string]string `json:"ingredients"`
	Protein     *float64          `json:"protein"`
	Fat         *float64          `json:"fat"`
	Carbs       *float64          `json:"carbs"`
	Calories    *float64          `json:"calories"`
	CreatedAt   time.Time         `json:"created_at"`
}

type Unit string

const (
	UnitGrams  Unit = "grams"
	UnitKg     Unit = "kg"
	UnitMl     Unit = "ml"
	UnitLiters Unit = "liters"
	UnitCups   Unit = "cups"
	UnitPieces Unit = "pieces"
	UnitUnits  Unit = "units"
)

var Units = []Unit{UnitGrams, UnitKg, UnitMl, UnitLiters, UnitCups, UnitPieces, UnitUnits}

func (u Unit) Valid() bool {
	for _, known := range Units {
		if u == known {
			return true
		}
	}
	return false
}

// PantryEntry is keyed by (UserID, Date, Ingredient). A nil Quantity means
// the ingredient is on hand in an unknown amount.
type PantryEntry struct {
	UserID     int64     `json:"user_id"`
	Date       time.Time `json:"date"`
	Ingredient string    `json:"ingredient"`
	Quantity   *float64  `json:"quantity"`
	Unit       Unit      `json:"unit"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// WeeklyMealPlan is keyed by (UserID, WeekStart); WeekStart is always a Monday.
type WeeklyMealPlan struct {
	UserID      int64     `json:"user_id"`
	WeekStart   time.Time `json:"week_start"`
	PlanText    string    `json:"plan_text"`
	GeneratedAt time.Time `json:"generated_at"`
}

// PlanRequest carries everything the generative client needs to write a weekly plan.
type PlanRequest struct {
	DietaryRestrictions []string
	DailyCalories       int
	Macros              Macros
	PantryLines         []string
}

type Recipe struct {
	ID           int64             `json:"id"`
	Title        string            `json:"title"`
	ImageURL     string            `json:"image_url"`
	Diet         []string          `json:"diet"`
	Ingredients  map[string]string `json:"ingredients"`
	Calories     int               `json:"calories"`
	Macros       RecipeMacros      `json:"macros"`
	Instructions string            `json:"instructions"`
	CreatedAt    time.Time         `json:"created_at"`
}

type RecipeMacros struct {
	Protein int `json:"protein"`
	Fat     int `json:"fat"`
	Carbs   int `json:"carbs"`
}
