package gpt

import (
	"fmt"
	"sort"
	"strings"

	"bodari/internal/models"
)

const (
	macroSystemPrompt = "You are a nutritionist assistant that estimates macronutrients."
	planSystemPrompt  = "You are a nutritionist assistant that creates healthy and balanced weekly meal plans."
)

// MacroPrompt lists the ingredients in name order and asks for a fixed
// four-line answer.
func MacroPrompt(ingredients map[string]string) string {
	names := make([]string, 0, len(ingredients))
	for name := range ingredients {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString("Estimate the total protein (g), fat (g), carbs (g), and calories for a meal made of the following ingredients:\n")
	for _, name := range names {
		fmt.Fprintf(&b, "- %s: %s\n", name, ingredients[name])
	}
	b.WriteString("\nPlease respond in the following format:\n")
	b.WriteString("Protein: XXg\nFat: XXg\nCarbs: XXg\nCalories: XXX\n\n")
	b.WriteString("Example:\nProtein: 30g\nFat: 15g\nCarbs: 40g\nCalories: 500\n")
	return b.String()
}

func PlanPrompt(req models.PlanRequest) string {
	restrictions := "none"
	if len(req.DietaryRestrictions) > 0 {
		restrictions = strings.Join(req.DietaryRestrictions, ", ")
	}

	var b strings.Builder
	fmt.Fprintf(&b,
		"The user has the following dietary restrictions: %s and needs to consume %d calories daily "+
			"with the following macros composition in grams: protein %d, fat %d, carbs %d.\n",
		restrictions, req.DailyCalories, req.Macros.ProteinG, req.Macros.FatG, req.Macros.CarbsG,
	)
	if len(req.PantryLines) > 0 {
		fmt.Fprintf(&b,
			"\nThe user currently has the following ingredients available in their pantry:\n%s\n"+
				"Try to incorporate them into the meal plan when possible, but you can also use other ingredients to complete the meals.\n",
			strings.Join(req.PantryLines, "\n"),
		)
	}
	b.WriteString("\nPlease create a weekly meal plan with breakfast, lunch, dinner, and two snacks for each day of the week.\n")
	b.WriteString("Add the weight of each ingredient for each meal, written as \"ingredient (quantity unit)\".\n")
	b.WriteString("The meal plan should be healthy, balanced, and diverse, and meet the user's dietary restrictions and caloric needs.\n")
	b.WriteString("Present the plan in a table format with columns for each meal and rows for the days of the week (Monday to Sunday).\n")
	b.WriteString("Each cell should include the meal description with ingredients and their quantities.\n")
	return b.String()
}
