// Package tracker wires the nutrition core, pantry, planner and catalogue
// into the operations the presenters expose.
package tracker

import (
	"context"
	"fmt"
	"strings"
	"time"

	"bodari/internal/extract"
	"bodari/internal/grocery"
	"bodari/internal/metrics"
	"bodari/internal/models"
	"bodari/internal/nutrition"
	"bodari/internal/pantry"
	"bodari/internal/planner"
	"bodari/internal/recipes"
	"bodari/pkg/apperr"
	"bodari/pkg/logger"

	"github.com/go-playground/validator/v10"
)

type Store interface {
	SaveUser(ctx context.Context, user *models.User) error
	GetUser(ctx context.Context, id int64) (*models.User, error)
	GetUserByTelegramID(ctx context.Context, telegramID int64) (*models.User, error)
	CreateProfile(ctx context.Context, profile *models.UserProfile) error
	GetProfile(ctx context.Context, userID int64) (*models.UserProfile, error)
	InsertMeal(ctx context.Context, meal *models.MealLogEntry) error
	MealsOn(ctx context.Context, userID int64, date time.Time) ([]models.MealLogEntry, error)
	MealHistory(ctx context.Context, userID int64, limit int) ([]models.MealLogEntry, error)
}

type MacroEstimator interface {
	EstimateMacros(ctx context.Context, ingredients map[string]string) (string, error)
}

type Planner interface {
	WeeklyPlan(ctx context.Context, userID int64, opts planner.Options) (*planner.Result, error)
}

type Pantry interface {
	SaveAll(ctx context.Context, userID int64, date time.Time, items []pantry.Item) ([]models.PantryEntry, error)
	ForWeek(ctx context.Context, userID int64, weekStart time.Time) ([]models.PantryEntry, error)
}

type Catalogue interface {
	Add(ctx context.Context, in recipes.RecipeInput) (*models.Recipe, error)
	List(ctx context.Context, f recipes.Filter) ([]models.Recipe, error)
}

type Service struct {
	store     Store
	estimator MacroEstimator
	planner   Planner
	pantry    Pantry
	catalogue Catalogue
	metrics   *metrics.Metrics
	logger    *logger.Logger
	validate  *validator.Validate
	location  *time.Location
	now       func() time.Time
}

type Deps struct {
	Store     Store
	Estimator MacroEstimator
	Planner   Planner
	Pantry    Pantry
	Catalogue Catalogue
	Metrics   *metrics.Metrics
	Logger    *logger.Logger
	Location  *time.Location
	Now       func() time.Time
}

func NewService(d Deps) *Service {
	s := &Service{
		store:     d.Store,
		estimator: d.Estimator,
		planner:   d.Planner,
		pantry:    d.Pantry,
		catalogue: d.Catalogue,
		metrics:   d.Metrics,
		logger:    d.Logger,
		validate:  validator.New(),
		location:  d.Location,
		now:       d.Now,
	}
	if s.location == nil {
		s.location = time.UTC
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.logger == nil {
		s.logger = logger.NewNop()
	}
	return s
}

// Today is the current civil date in the configured zone.
func (s *Service) Today() time.Time {
	return nutrition.Day(s.now().In(s.location))
}

// EnsureUser registers a chat user or refreshes its chat details.
func (s *Service) EnsureUser(ctx context.Context, telegramID, chatID int64, username string) (*models.User, error) {
	user := &models.User{TelegramID: telegramID, ChatID: chatID, Username: username}
	if err := s.store.SaveUser(ctx, user); err != nil {
		return nil, fmt.Errorf("save user: %w", err)
	}
	return user, nil
}

func (s *Service) User(ctx context.Context, id int64) (*models.User, error) {
	return s.store.GetUser(ctx, id)
}

func (s *Service) UserByTelegramID(ctx context.Context, telegramID int64) (*models.User, error) {
	return s.store.GetUserByTelegramID(ctx, telegramID)
}

// ProfileInput is the onboarding form. Enum fields accept the canonical
// tokens as well as the display labels.
type ProfileInput struct {
	Name                string   `json:"name" validate:"required"`
	DateOfBirth         string   `json:"date_of_birth" validate:"required"`
	Gender              string   `json:"gender" validate:"required"`
	HeightCM            float64  `json:"height_cm" validate:"gt=0"`
	WeightKG            float64  `json:"weight_kg" validate:"gt=0"`
	ActivityLevel       string   `json:"activity_level" validate:"required"`
	Goal                string   `json:"goal" validate:"required"`
	TimelineWeeks       int      `json:"timeline_weeks" validate:"gt=0"`
	DietaryRestrictions []string `json:"dietary_restrictions"`
}

// CreateProfile stores the one profile a user may have and returns the
// targets derived from it. A second call fails with DuplicateKey.
func (s *Service) CreateProfile(ctx context.Context, userID int64, in ProfileInput) (*models.UserProfile, nutrition.Targets, error) {
	in.Name = strings.TrimSpace(in.Name)
	if err := s.validate.Struct(in); err != nil {
		return nil, nutrition.Targets{}, apperr.FromValidator(err)
	}

	profile, err := s.profileFrom(userID, in)
	if err != nil {
		return nil, nutrition.Targets{}, err
	}
	targets, err := nutrition.TargetsFor(profile, s.Today())
	if err != nil {
		return nil, nutrition.Targets{}, err
	}

	if err := s.store.CreateProfile(ctx, profile); err != nil {
		return nil, nutrition.Targets{}, err
	}
	s.logger.Infow("Profile created", "user_id", userID, "daily_calories", targets.Calories, "advisory", targets.Advisory)
	return profile, targets, nil
}

func (s *Service) profileFrom(userID int64, in ProfileInput) (*models.UserProfile, error) {
	dob, err := time.Parse(time.DateOnly, strings.TrimSpace(in.DateOfBirth))
	if err != nil {
		return nil, apperr.Validation(
			fmt.Sprintf("date of birth %q is not YYYY-MM-DD", in.DateOfBirth),
			apperr.FieldError{Field: "DateOfBirth", Tag: "datetime", Message: "DateOfBirth must be YYYY-MM-DD"},
		)
	}
	if dob.After(s.Today()) {
		return nil, apperr.Validation("date of birth is in the future",
			apperr.FieldError{Field: "DateOfBirth", Tag: "past", Message: "DateOfBirth must not be in the future"})
	}
	gender, err := nutrition.ParseGender(in.Gender)
	if err != nil {
		return nil, err
	}
	activity, err := nutrition.ParseActivityLevel(in.ActivityLevel)
	if err != nil {
		return nil, err
	}
	goal, err := nutrition.ParseGoal(in.Goal)
	if err != nil {
		return nil, err
	}

	restrictions := make([]string, 0, len(in.DietaryRestrictions))
	seen := make(map[string]struct{}, len(in.DietaryRestrictions))
	for _, r := range in.DietaryRestrictions {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		if _, dup := seen[strings.ToLower(r)]; dup {
			continue
		}
		seen[strings.ToLower(r)] = struct{}{}
		restrictions = append(restrictions, r)
	}

	return &models.UserProfile{
		UserID:              userID,
		Name:                in.Name,
		DateOfBirth:         dob,
		Gender:              gender,
		HeightCM:            in.HeightCM,
		WeightKG:            in.WeightKG,
		ActivityLevel:       activity,
		Goal:                goal,
		TimelineWeeks:       in.TimelineWeeks,
		DietaryRestrictions: restrictions,
	}, nil
}

func (s *Service) Profile(ctx context.Context, userID int64) (*models.UserProfile, error) {
	return s.store.GetProfile(ctx, userID)
}

// DailySummary is the dashboard for one day.
type DailySummary struct {
	Date      time.Time             `json:"date"`
	Targets   nutrition.Targets     `json:"targets"`
	Target    models.Nutrients      `json:"target"`
	Consumed  models.Nutrients      `json:"consumed"`
	Remaining models.Nutrients      `json:"remaining"`
	Meals     []models.MealLogEntry `json:"meals"`
}

func (s *Service) TodaySummary(ctx context.Context, userID int64) (*DailySummary, error) {
	return s.Summary(ctx, userID, s.Today())
}

func (s *Service) Summary(ctx context.Context, userID int64, date time.Time) (*DailySummary, error) {
	date = nutrition.Day(date)
	profile, err := s.store.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	targets, err := nutrition.TargetsFor(profile, date)
	if err != nil {
		return nil, err
	}
	meals, err := s.store.MealsOn(ctx, userID, date)
	if err != nil {
		return nil, fmt.Errorf("load meals for %s: %w", date.Format(time.DateOnly), err)
	}

	target := targets.Nutrients()
	consumed := nutrition.AggregateConsumed(meals)
	return &DailySummary{
		Date:      date,
		Targets:   targets,
		Target:    target,
		Consumed:  consumed,
		Remaining: nutrition.Remaining(target, consumed),
		Meals:     meals,
	}, nil
}

type MealInput struct {
	Name string `json:"name" validate:"required"`
	// Date defaults to today; format YYYY-MM-DD.
	Date            string            `json:"date"`
	Ingredients     map[string]string `json:"ingredients"`
	IngredientsText string            `json:"ingredients_text"`
}

// LoggedMeal is the stored entry plus what extraction could not read.
type LoggedMeal struct {
	Entry   *models.MealLogEntry `json:"entry"`
	Missing []string             `json:"missing_fields,omitempty"`
}

// LogMeal estimates macros once and stores the meal. Fields the reply did
// not contain are stored as 0 and reported in Missing. Nothing is written
// when the estimate fails.
func (s *Service) LogMeal(ctx context.Context, userID int64, in MealInput) (*LoggedMeal, error) {
	in.Name = strings.TrimSpace(in.Name)
	if err := s.validate.Struct(in); err != nil {
		return nil, apperr.FromValidator(err)
	}

	date := s.Today()
	if strings.TrimSpace(in.Date) != "" {
		d, err := time.Parse(time.DateOnly, strings.TrimSpace(in.Date))
		if err != nil {
			return nil, apperr.Validation(fmt.Sprintf("meal date %q is not YYYY-MM-DD", in.Date),
				apperr.FieldError{Field: "Date", Tag: "datetime", Message: "Date must be YYYY-MM-DD"})
		}
		date = d
	}

	ingredients := cleanIngredients(in.Ingredients)
	if len(ingredients) == 0 {
		ingredients = recipes.ParseIngredients(in.IngredientsText)
	}
	if len(ingredients) == 0 {
		return nil, apperr.Validation("a meal needs at least one ingredient",
			apperr.FieldError{Field: "Ingredients", Tag: "required", Message: "Ingredients is required"})
	}

	reply, err := s.estimator.EstimateMacros(ctx, ingredients)
	if err != nil {
		return nil, err
	}
	macros := extract.Macros(reply)
	if !macros.Complete() {
		s.logger.Warnw("Macro estimate incomplete, storing zero for missing fields",
			"user_id", userID,
			"meal", in.Name,
			"missing", macros.Missing,
		)
		s.metrics.MacroFieldsMissing(macros.Missing)
	}

	entry := &models.MealLogEntry{
		UserID:      userID,
		Date:        nutrition.Day(date),
		Name:        in.Name,
		Ingredients: ingredients,
		Protein:     ptr(macros.Protein),
		Fat:         ptr(macros.Fat),
		Carbs:       ptr(macros.Carbs),
		Calories:    ptr(macros.Calories),
	}
	if err := s.store.InsertMeal(ctx, entry); err != nil {
		return nil, fmt.Errorf("insert meal: %w", err)
	}
	return &LoggedMeal{Entry: entry, Missing: macros.Missing}, nil
}

func (s *Service) MealHistory(ctx context.Context, userID int64, limit int) ([]models.MealLogEntry, error) {
	return s.store.MealHistory(ctx, userID, limit)
}

// SavePantry records items against today's date.
func (s *Service) SavePantry(ctx context.Context, userID int64, items []pantry.Item) ([]models.PantryEntry, error) {
	entries, err := s.pantry.SaveAll(ctx, userID, s.Today(), items)
	if err != nil {
		return nil, err
	}
	s.logger.Infow("Pantry saved", "user_id", userID, "items", len(entries))
	return entries, nil
}

// Pantry returns what is on hand across the current week.
func (s *Service) Pantry(ctx context.Context, userID int64) ([]models.PantryEntry, error) {
	entries, err := s.pantry.ForWeek(ctx, userID, nutrition.WeekStart(s.Today()))
	if err != nil {
		return nil, err
	}
	return pantry.OnHand(entries), nil
}

func (s *Service) WeeklyPlan(ctx context.Context, userID int64, force bool) (*planner.Result, error) {
	res, err := s.planner.WeeklyPlan(ctx, userID, planner.Options{Force: force})
	if err != nil {
		return nil, err
	}
	s.metrics.ObservePlan(string(res.State), res.Generated)
	return res, nil
}

// GroceryList is the current week's plan minus the week's pantry.
func (s *Service) GroceryList(ctx context.Context, userID int64) ([]grocery.Item, error) {
	plan, err := s.WeeklyPlan(ctx, userID, false)
	if err != nil {
		return nil, err
	}
	entries, err := s.pantry.ForWeek(ctx, userID, plan.WeekStart)
	if err != nil {
		return nil, err
	}
	return grocery.Reconcile(plan.Text, entries), nil
}

func (s *Service) Recipes(ctx context.Context, f recipes.Filter) ([]models.Recipe, error) {
	return s.catalogue.List(ctx, f)
}

func (s *Service) AddRecipe(ctx context.Context, in recipes.RecipeInput) (*models.Recipe, error) {
	return s.catalogue.Add(ctx, in)
}

func cleanIngredients(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		out[k] = strings.TrimSpace(v)
	}
	return out
}

func ptr(v float64) *float64 {
	return &v
}
