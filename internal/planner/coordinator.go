// Package planner decides whether a stored weekly meal plan can be served
// or a new one has to be generated.
package planner

import (
	"context"
	"fmt"
	"time"

	"bodari/internal/models"
	"bodari/internal/nutrition"
	"bodari/internal/pantry"
	"bodari/pkg/apperr"
	"bodari/pkg/logger"
)

// State is the cache state of a (user, week) plan when a request arrives.
type State string

const (
	StateUncached    State = "uncached"
	StateCachedValid State = "cached_valid"
	StateCachedStale State = "cached_stale"
)

type ProfileSource interface {
	GetProfile(ctx context.Context, userID int64) (*models.UserProfile, error)
}

type PlanStore interface {
	GetWeeklyPlan(ctx context.Context, userID int64, weekStart time.Time) (*models.WeeklyMealPlan, error)
	UpsertWeeklyPlan(ctx context.Context, plan *models.WeeklyMealPlan) error
}

type PantrySource interface {
	ForWeek(ctx context.Context, userID int64, weekStart time.Time) ([]models.PantryEntry, error)
}

type Generator interface {
	GenerateWeeklyPlan(ctx context.Context, req models.PlanRequest) (string, error)
}

type Options struct {
	// Force regenerates even when the stored plan is still valid.
	Force bool
}

type Result struct {
	WeekStart time.Time `json:"week_start"`
	Text      string    `json:"plan_text"`
	State     State     `json:"state"`
	Generated bool      `json:"generated"`
}

type Coordinator struct {
	profiles  ProfileSource
	plans     PlanStore
	pantry    PantrySource
	generator Generator
	logger    *logger.Logger
	location  *time.Location
	now       func() time.Time
}

type Option func(*Coordinator)

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

// WithLocation sets the zone in which "today" is evaluated.
func WithLocation(loc *time.Location) Option {
	return func(c *Coordinator) {
		if loc != nil {
			c.location = loc
		}
	}
}

func NewCoordinator(profiles ProfileSource, plans PlanStore, pantry PantrySource, generator Generator, log *logger.Logger, opts ...Option) *Coordinator {
	c := &Coordinator{
		profiles:  profiles,
		plans:     plans,
		pantry:    pantry,
		generator: generator,
		logger:    log,
		location:  time.UTC,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Today is the civil date the coordinator currently works with.
func (c *Coordinator) Today() time.Time {
	return nutrition.Day(c.now().In(c.location))
}

// WeeklyPlan serves the plan for the current week. A stored plan is
// returned unchanged unless a pantry entry was recorded today or
// opts.Force is set. Generator errors are returned as is and nothing is
// written in that case.
//
// Two concurrent requests for the same stale week may both generate; the
// last upsert wins.
func (c *Coordinator) WeeklyPlan(ctx context.Context, userID int64, opts Options) (*Result, error) {
	today := c.Today()
	week := nutrition.WeekStart(today)

	profile, err := c.profiles.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}

	stored, err := c.plans.GetWeeklyPlan(ctx, userID, week)
	if err != nil && !apperr.Is(err, apperr.CodeNotFound) {
		return nil, fmt.Errorf("load weekly plan: %w", err)
	}
	if err != nil {
		stored = nil
	}

	entries, err := c.pantry.ForWeek(ctx, userID, week)
	if err != nil {
		return nil, err
	}

	state := StateUncached
	if stored != nil {
		state = StateCachedValid
		if pantry.TouchedOn(entries, today) {
			state = StateCachedStale
		}
	}

	if state == StateCachedValid && !opts.Force {
		c.logger.Debugw("Serving cached weekly plan", "user_id", userID, "week_start", week.Format(time.DateOnly))
		return &Result{WeekStart: week, Text: stored.PlanText, State: state}, nil
	}

	targets, err := nutrition.TargetsFor(profile, today)
	if err != nil {
		return nil, err
	}

	req := models.PlanRequest{
		DietaryRestrictions: profile.DietaryRestrictions,
		DailyCalories:       targets.Calories,
		Macros:              targets.Macros,
		PantryLines:         pantry.PromptLines(entries),
	}

	c.logger.Infow("Generating weekly plan",
		"user_id", userID,
		"week_start", week.Format(time.DateOnly),
		"state", state,
		"force", opts.Force,
		"pantry_items", len(req.PantryLines),
	)

	text, err := c.generator.GenerateWeeklyPlan(ctx, req)
	if err != nil {
		c.logger.Warnw("Weekly plan generation failed", "user_id", userID, "error", err)
		return nil, err
	}

	plan := &models.WeeklyMealPlan{
		UserID:      userID,
		WeekStart:   week,
		PlanText:    text,
		GeneratedAt: c.now().UTC(),
	}
	if err := c.plans.UpsertWeeklyPlan(ctx, plan); err != nil {
		return nil, fmt.Errorf("store weekly plan: %w", err)
	}

	return &Result{WeekStart: week, Text: text, State: state, Generated: true}, nil
}

// Peek reports the cache state without generating anything.
func (c *Coordinator) Peek(ctx context.Context, userID int64) (State, error) {
	today := c.Today()
	week := nutrition.WeekStart(today)

	_, err := c.plans.GetWeeklyPlan(ctx, userID, week)
	if apperr.Is(err, apperr.CodeNotFound) {
		return StateUncached, nil
	}
	if err != nil {
		return "", fmt.Errorf("load weekly plan: %w", err)
	}

	entries, err := c.pantry.ForWeek(ctx, userID, week)
	if err != nil {
		return "", err
	}
	if pantry.TouchedOn(entries, today) {
		return StateCachedStale, nil
	}
	return StateCachedValid, nil
}
