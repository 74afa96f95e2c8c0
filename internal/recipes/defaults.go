package recipes

import "bodari/internal/models"

// Defaults returns fresh copies of the starter catalogue.
func Defaults() []models.Recipe {
	return []models.Recipe{
		{
			Title:    "Grilled Chicken Salad",
			ImageURL: "https://www.eatingbirdfood.com/wp-content/uploads/2023/06/grilled-chicken-salad-hero.jpg",
			Diet:     []string{"Gluten-free"},
			Ingredients: map[string]string{
				"Chicken Breast": "150g",
				"Spinach":        "50g",
				"Tomato":         "1 sliced",
				"Olive Oil":      "1 tbsp",
			},
			Calories:     350,
			Macros:       models.RecipeMacros{Protein: 30, Fat: 18, Carbs: 12},
			Instructions: "Grill chicken until cooked through. Toss with spinach, tomato, and olive oil.",
		},
		{
			Title:    "Vegan Lentil Curry",
			ImageURL: "https://minimalistbaker.com/wp-content/uploads/2020/12/30-Minute-Lentil-Curry-SQUARE.jpg",
			Diet:     []string{"Vegan", "Gluten-free"},
			Ingredients: map[string]string{
				"Lentils":      "100g",
				"Tomato":       "1 chopped",
				"Onion":        "1 diced",
				"Coconut Milk": "100ml",
			},
			Calories:     420,
			Macros:       models.RecipeMacros{Protein: 20, Fat: 15, Carbs: 50},
			Instructions: "Cook onions, add tomatoes and lentils. Simmer with coconut milk until tender.",
		},
		{
			Title:    "Vegetarian Oats Bowl",
			ImageURL: "https://www.simplyquinoa.com/wp-content/uploads/2020/03/banana-nut-oatmeal-bowl.jpg",
			Diet:     []string{"Vegetarian"},
			Ingredients: map[string]string{
				"Oats":    "50g",
				"Banana":  "1 sliced",
				"Milk":    "100ml",
				"Almonds": "10g",
			},
			Calories:     310,
			Macros:       models.RecipeMacros{Protein: 10, Fat: 8, Carbs: 45},
			Instructions: "Cook oats with milk. Top with banana slices and almonds.",
		},
	}
}
