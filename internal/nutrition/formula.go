// Package nutrition derives daily calorie and macro targets from a body profile.
package nutrition

import (
	"fmt"
	"math"
	"strings"
	"time"

	"bodari/internal/models"
	"bodari/pkg/apperr"
)

const (
	MinSafeCalories = 1200
	MaxSafeCalories = 4000
)

// Advisory flags a target outside the safe range. The target itself is never clamped.
type Advisory string

const (
	AdvisoryNone         Advisory = ""
	AdvisoryBelowMinimum Advisory = "below_minimum"
	AdvisoryAboveMaximum Advisory = "above_maximum"
)

func (a Advisory) Message() string {
	switch a {
	case AdvisoryBelowMinimum:
		return fmt.Sprintf("Your calculated daily calories are below the recommended minimum of %d kcal. Please consult a healthcare provider for personalized advice.", MinSafeCalories)
	case AdvisoryAboveMaximum:
		return fmt.Sprintf("Your calculated daily calories are above the recommended maximum of %d kcal. Please consult a healthcare provider for personalized advice.", MaxSafeCalories)
	default:
		return ""
	}
}

type Params struct {
	HeightCM float64
	WeightKG float64
	AgeYears int
	Gender   models.Gender
	Activity models.ActivityLevel
	Goal     models.Goal
}

var genderOffsets = map[models.Gender]float64{
	models.GenderMale:        5,
	models.GenderFemale:      -161,
	models.GenderUnspecified: 0,
}

var activityMultipliers = map[models.ActivityLevel]float64{
	models.ActivitySedentary:        1.20,
	models.ActivityLightlyActive:    1.375,
	models.ActivityModeratelyActive: 1.55,
	models.ActivityVeryActive:       1.725,
	models.ActivitySuperActive:      1.90,
}

var goalAdjustments = map[models.Goal]float64{
	models.GoalLose:     -0.15,
	models.GoalMaintain: 0,
	models.GoalGain:     0.10,
}

type macroRatio struct {
	protein, fat, carbs float64
}

var macroRatios = map[models.Goal]macroRatio{
	models.GoalLose:     {0.40, 0.30, 0.30},
	models.GoalMaintain: {0.25, 0.15, 0.60},
	models.GoalGain:     {0.30, 0.20, 0.50},
}

// DailyCalories applies Mifflin-St Jeor, the activity multiplier and the goal adjustment.
func DailyCalories(p Params) (int, Advisory, error) {
	offset, ok := genderOffsets[p.Gender]
	if !ok {
		return 0, AdvisoryNone, invalidEnum("gender", string(p.Gender))
	}
	multiplier, ok := activityMultipliers[p.Activity]
	if !ok {
		return 0, AdvisoryNone, invalidEnum("activity_level", string(p.Activity))
	}
	adjustment, ok := goalAdjustments[p.Goal]
	if !ok {
		return 0, AdvisoryNone, invalidEnum("goal", string(p.Goal))
	}
	if p.HeightCM <= 0 || p.WeightKG <= 0 || p.AgeYears < 0 {
		return 0, AdvisoryNone, apperr.Validation("height and weight must be positive and age non-negative")
	}

	bmr := 10*p.WeightKG + 6.25*p.HeightCM - 5*float64(p.AgeYears) + offset
	scaled := bmr * multiplier
	daily := scaled + scaled*adjustment

	advisory := AdvisoryNone
	switch {
	case daily < MinSafeCalories:
		advisory = AdvisoryBelowMinimum
	case daily > MaxSafeCalories:
		advisory = AdvisoryAboveMaximum
	}
	return int(math.Round(daily)), advisory, nil
}

// MacroSplit converts a calorie target into protein/fat/carb grams. Each
// macro is rounded on its own, so the grams need not add back up exactly.
func MacroSplit(dailyCalories int, goal models.Goal) (models.Macros, error) {
	ratio, ok := macroRatios[goal]
	if !ok {
		return models.Macros{}, invalidEnum("goal", string(goal))
	}
	kcal := float64(dailyCalories)
	return models.Macros{
		ProteinG: int(math.Round(kcal * ratio.protein / 4)),
		FatG:     int(math.Round(kcal * ratio.fat / 9)),
		CarbsG:   int(math.Round(kcal * ratio.carbs / 4)),
	}, nil
}

// Targets is the daily target for a profile as of today.
type Targets struct {
	Calories int           `json:"calories"`
	Macros   models.Macros `json:"macros"`
	Advisory Advisory      `json:"advisory,omitempty"`
}

// Nutrients returns the target in the same shape as consumption totals.
func (t Targets) Nutrients() models.Nutrients {
	return models.Nutrients{
		Calories: float64(t.Calories),
		Protein:  float64(t.Macros.ProteinG),
		Fat:      float64(t.Macros.FatG),
		Carbs:    float64(t.Macros.CarbsG),
	}
}

func TargetsFor(profile *models.UserProfile, today time.Time) (Targets, error) {
	kcal, advisory, err := DailyCalories(Params{
		HeightCM: profile.HeightCM,
		WeightKG: profile.WeightKG,
		AgeYears: AgeOn(profile.DateOfBirth, today),
		Gender:   profile.Gender,
		Activity: profile.ActivityLevel,
		Goal:     profile.Goal,
	})
	if err != nil {
		return Targets{}, err
	}
	macros, err := MacroSplit(kcal, profile.Goal)
	if err != nil {
		return Targets{}, err
	}
	return Targets{Calories: kcal, Macros: macros, Advisory: advisory}, nil
}

func ParseGender(s string) (models.Gender, error) {
	g := models.Gender(normalize(s))
	if _, ok := genderOffsets[g]; !ok {
		return "", invalidEnum("gender", s)
	}
	return g, nil
}

// ParseActivityLevel accepts "moderately_active" as well as the form label "Moderately active".
func ParseActivityLevel(s string) (models.ActivityLevel, error) {
	a := models.ActivityLevel(normalize(s))
	if _, ok := activityMultipliers[a]; !ok {
		return "", invalidEnum("activity_level", s)
	}
	return a, nil
}

// ParseGoal accepts "lose" as well as "Lose weight".
func ParseGoal(s string) (models.Goal, error) {
	n := strings.TrimSuffix(normalize(s), "_weight")
	g := models.Goal(n)
	if _, ok := goalAdjustments[g]; !ok {
		return "", invalidEnum("goal", s)
	}
	return g, nil
}

func normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.Join(strings.Fields(strings.ReplaceAll(s, "-", " ")), "_")
}

func invalidEnum(field, value string) error {
	return apperr.Validation(
		fmt.Sprintf("unrecognized %s %q", field, value),
		apperr.FieldError{Field: field, Tag: "oneof", Message: fmt.Sprintf("%s %q is not supported", field, value)},
	)
}
