// Package recipes is the shared recipe catalogue.
package recipes

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"bodari/internal/models"
	"bodari/pkg/apperr"
	"bodari/pkg/logger"

	"github.com/go-playground/validator/v10"
)

// DietNone matches every recipe when used as a filter.
const DietNone = "None"

// DietOptions are the tags offered by the presenters.
var DietOptions = []string{"Vegetarian", "Vegan", "Gluten-free", "Dairy-free", "Nut-free", DietNone}

type Repository interface {
	InsertRecipe(ctx context.Context, recipe *models.Recipe) error
	ListRecipes(ctx context.Context) ([]models.Recipe, error)
	CountRecipes(ctx context.Context) (int, error)
}

type RecipeInput struct {
	Title    string   `json:"title" validate:"required"`
	ImageURL string   `json:"image_url" validate:"omitempty,url"`
	Diet     []string `json:"diet" validate:"dive,required"`
	// Ingredients wins over IngredientsText when both are set.
	Ingredients     map[string]string `json:"ingredients"`
	IngredientsText string            `json:"ingredients_text"`
	Calories        int               `json:"calories" validate:"gte=0"`
	Protein         int               `json:"protein" validate:"gte=0"`
	Fat             int               `json:"fat" validate:"gte=0"`
	Carbs           int               `json:"carbs" validate:"gte=0"`
	Instructions    string            `json:"instructions"`
}

type Filter struct {
	Diets       []string
	Ingredients []string
}

func (f Filter) Active() bool {
	return len(f.Diets) > 0 || len(f.Ingredients) > 0
}

type Service struct {
	repo     Repository
	logger   *logger.Logger
	validate *validator.Validate
}

func NewService(repo Repository, log *logger.Logger) *Service {
	return &Service{repo: repo, logger: log, validate: validator.New()}
}

func (s *Service) Add(ctx context.Context, in RecipeInput) (*models.Recipe, error) {
	in.Title = strings.TrimSpace(in.Title)
	if err := s.validate.Struct(in); err != nil {
		return nil, apperr.FromValidator(err)
	}

	ingredients := in.Ingredients
	if len(ingredients) == 0 {
		ingredients = ParseIngredients(in.IngredientsText)
	}

	recipe := &models.Recipe{
		Title:        in.Title,
		ImageURL:     strings.TrimSpace(in.ImageURL),
		Diet:         in.Diet,
		Ingredients:  ingredients,
		Calories:     in.Calories,
		Macros:       models.RecipeMacros{Protein: in.Protein, Fat: in.Fat, Carbs: in.Carbs},
		Instructions: strings.TrimSpace(in.Instructions),
	}
	if recipe.Diet == nil {
		recipe.Diet = []string{}
	}
	if err := s.repo.InsertRecipe(ctx, recipe); err != nil {
		return nil, fmt.Errorf("insert recipe %q: %w", recipe.Title, err)
	}
	s.logger.Infow("Recipe added", "recipe_id", recipe.ID, "title", recipe.Title)
	return recipe, nil
}

// List returns the deduplicated catalogue narrowed by f.
func (s *Service) List(ctx context.Context, f Filter) ([]models.Recipe, error) {
	all, err := s.repo.ListRecipes(ctx)
	if err != nil {
		return nil, fmt.Errorf("list recipes: %w", err)
	}
	unique := Dedup(all)
	if len(unique) < len(all) {
		s.logger.Debugw("Dropped duplicate recipes", "count", len(all)-len(unique))
	}

	out := make([]models.Recipe, 0, len(unique))
	for _, r := range unique {
		if Matches(r, f) {
			out = append(out, r)
		}
	}
	return out, nil
}

// SeedDefaults inserts the starter recipes into an empty catalogue.
// It reports how many were inserted.
func (s *Service) SeedDefaults(ctx context.Context) (int, error) {
	n, err := s.repo.CountRecipes(ctx)
	if err != nil {
		return 0, fmt.Errorf("count recipes: %w", err)
	}
	if n > 0 {
		return 0, nil
	}
	defaults := Defaults()
	for i := range defaults {
		if err := s.repo.InsertRecipe(ctx, &defaults[i]); err != nil {
			return i, fmt.Errorf("seed recipe %q: %w", defaults[i].Title, err)
		}
	}
	s.logger.Infow("Seeded default recipes", "count", len(defaults))
	return len(defaults), nil
}

// Matches requires every requested diet tag and, when ingredients are
// requested, at least one of them. Comparison is case-insensitive.
func Matches(r models.Recipe, f Filter) bool {
	tags := make(map[string]struct{}, len(r.Diet))
	for _, d := range r.Diet {
		tags[fold(d)] = struct{}{}
	}
	for _, want := range f.Diets {
		if strings.EqualFold(strings.TrimSpace(want), DietNone) {
			continue
		}
		if _, ok := tags[fold(want)]; !ok {
			return false
		}
	}

	if len(f.Ingredients) == 0 {
		return true
	}
	for name := range r.Ingredients {
		for _, want := range f.Ingredients {
			if fold(name) == fold(want) {
				return true
			}
		}
	}
	return false
}

// Dedup keeps the first recipe for each lower-cased title and ingredient set.
func Dedup(recipes []models.Recipe) []models.Recipe {
	seen := make(map[string]struct{}, len(recipes))
	out := make([]models.Recipe, 0, len(recipes))
	for _, r := range recipes {
		k := DedupKey(r)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, r)
	}
	return out
}

// DedupKey is lower(trim(title)) followed by the ingredient map as JSON
// with lower-cased, trimmed keys and values. encoding/json sorts map keys.
func DedupKey(r models.Recipe) string {
	norm := make(map[string]string, len(r.Ingredients))
	for k, v := range r.Ingredients {
		norm[fold(k)] = fold(v)
	}
	b, _ := json.Marshal(norm)
	return fold(r.Title) + "|" + string(b)
}

// ParseIngredients reads "Ingredient: Quantity" lines. Lines without a
// colon or with an empty name are skipped.
func ParseIngredients(text string) map[string]string {
	out := make(map[string]string)
	for _, line := range strings.Split(text, "\n") {
		name, qty, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		out[name] = strings.TrimSpace(qty)
	}
	return out
}

func fold(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
