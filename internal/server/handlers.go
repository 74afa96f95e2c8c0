package server

import (
	"context"
	"errors"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"bodari/internal/grocery"
	"bodari/internal/models"
	"bodari/internal/nutrition"
	"bodari/internal/pantry"
	"bodari/internal/planner"
	"bodari/internal/recipes"
	"bodari/internal/tracker"
	"bodari/pkg/apperr"

	"github.com/gin-gonic/gin"
)

// Tracker is the application surface served over HTTP.
type Tracker interface {
	User(ctx context.Context, id int64) (*models.User, error)
	CreateProfile(ctx context.Context, userID int64, in tracker.ProfileInput) (*models.UserProfile, nutrition.Targets, error)
	Profile(ctx context.Context, userID int64) (*models.UserProfile, error)
	Summary(ctx context.Context, userID int64, date time.Time) (*tracker.DailySummary, error)
	TodaySummary(ctx context.Context, userID int64) (*tracker.DailySummary, error)
	LogMeal(ctx context.Context, userID int64, in tracker.MealInput) (*tracker.LoggedMeal, error)
	MealHistory(ctx context.Context, userID int64, limit int) ([]models.MealLogEntry, error)
	SavePantry(ctx context.Context, userID int64, items []pantry.Item) ([]models.PantryEntry, error)
	Pantry(ctx context.Context, userID int64) ([]models.PantryEntry, error)
	WeeklyPlan(ctx context.Context, userID int64, force bool) (*planner.Result, error)
	GroceryList(ctx context.Context, userID int64) ([]grocery.Item, error)
	Recipes(ctx context.Context, f recipes.Filter) ([]models.Recipe, error)
	AddRecipe(ctx context.Context, in recipes.RecipeInput) (*models.Recipe, error)
}

const defaultHistoryLimit = 20

type errorBody struct {
	Code    string              `json:"code"`
	Message string              `json:"message"`
	Details string              `json:"details,omitempty"`
	Fields  []apperr.FieldError `json:"fields,omitempty"`
}

// respondError writes the error taxonomy as JSON. Retryable failures carry
// Retry-After in whole seconds.
func (s *Server) respondError(c *gin.Context, err error) {
	appErr, ok := apperr.As(err)
	if !ok {
		s.logger.Errorw("Unhandled error", "path", c.Request.URL.Path, "request_id", c.GetString(requestIDKey), "error", err)
		appErr = apperr.Internal("internal server error", err)
	}
	if appErr.RetryAfter > 0 {
		c.Header("Retry-After", strconv.Itoa(int(math.Ceil(appErr.RetryAfter.Seconds()))))
	}
	c.AbortWithStatusJSON(appErr.StatusCode(), errorBody{
		Code:    string(appErr.Code),
		Message: appErr.Message,
		Details: appErr.Details,
		Fields:  appErr.Fields,
	})
}

func (s *Server) userID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		s.respondError(c, apperr.Validation("user id must be a positive integer",
			apperr.FieldError{Field: "id", Tag: "gt", Message: "id must be a positive integer"}))
		return 0, false
	}
	return id, true
}

func (s *Server) bind(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		details := err.Error()
		if errors.Is(err, io.EOF) {
			details = "request body is empty"
		}
		s.respondError(c, apperr.Validation(details))
		return false
	}
	return true
}

func (s *Server) health(c *gin.Context) {
	if s.db != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := s.db.Ping(ctx); err != nil {
			s.logger.Warnw("Health check failed", "error", err)
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "database": "down"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) getUser(c *gin.Context) {
	id, ok := s.userID(c)
	if !ok {
		return
	}
	user, err := s.tracker.User(c.Request.Context(), id)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

type profileResponse struct {
	Profile *models.UserProfile `json:"profile"`
	Targets nutrition.Targets   `json:"targets"`
	Notice  string              `json:"notice,omitempty"`
}

func (s *Server) createProfile(c *gin.Context) {
	id, ok := s.userID(c)
	if !ok {
		return
	}
	var in tracker.ProfileInput
	if !s.bind(c, &in) {
		return
	}
	profile, targets, err := s.tracker.CreateProfile(c.Request.Context(), id, in)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, profileResponse{Profile: profile, Targets: targets, Notice: targets.Advisory.Message()})
}

func (s *Server) getProfile(c *gin.Context) {
	id, ok := s.userID(c)
	if !ok {
		return
	}
	profile, err := s.tracker.Profile(c.Request.Context(), id)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

// summary serves today unless ?date=YYYY-MM-DD is given.
func (s *Server) summary(c *gin.Context) {
	id, ok := s.userID(c)
	if !ok {
		return
	}
	var (
		sum *tracker.DailySummary
		err error
	)
	if raw := c.Query("date"); raw != "" {
		date, perr := time.Parse(time.DateOnly, raw)
		if perr != nil {
			s.respondError(c, apperr.Validation("date must be YYYY-MM-DD",
				apperr.FieldError{Field: "date", Tag: "datetime", Message: "date must be YYYY-MM-DD"}))
			return
		}
		sum, err = s.tracker.Summary(c.Request.Context(), id, date)
	} else {
		sum, err = s.tracker.TodaySummary(c.Request.Context(), id)
	}
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, sum)
}

func (s *Server) logMeal(c *gin.Context) {
	id, ok := s.userID(c)
	if !ok {
		return
	}
	var in tracker.MealInput
	if !s.bind(c, &in) {
		return
	}
	logged, err := s.tracker.LogMeal(c.Request.Context(), id, in)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, logged)
}

func (s *Server) mealHistory(c *gin.Context) {
	id, ok := s.userID(c)
	if !ok {
		return
	}
	limit := defaultHistoryLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			s.respondError(c, apperr.Validation("limit must be a positive integer",
				apperr.FieldError{Field: "limit", Tag: "gt", Message: "limit must be a positive integer"}))
			return
		}
		limit = n
	}
	meals, err := s.tracker.MealHistory(c.Request.Context(), id, limit)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"meals": meals})
}

type pantryRequest struct {
	Items []pantry.Item `json:"items"`
}

func (s *Server) savePantry(c *gin.Context) {
	id, ok := s.userID(c)
	if !ok {
		return
	}
	var req pantryRequest
	if !s.bind(c, &req) {
		return
	}
	entries, err := s.tracker.SavePantry(c.Request.Context(), id, req.Items)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}

func (s *Server) getPantry(c *gin.Context) {
	id, ok := s.userID(c)
	if !ok {
		return
	}
	entries, err := s.tracker.Pantry(c.Request.Context(), id)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}

func (s *Server) weeklyPlan(c *gin.Context) {
	id, ok := s.userID(c)
	if !ok {
		return
	}
	force, _ := strconv.ParseBool(c.Query("force"))
	res, err := s.tracker.WeeklyPlan(c.Request.Context(), id, force)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) regeneratePlan(c *gin.Context) {
	id, ok := s.userID(c)
	if !ok {
		return
	}
	res, err := s.tracker.WeeklyPlan(c.Request.Context(), id, true)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) groceryList(c *gin.Context) {
	id, ok := s.userID(c)
	if !ok {
		return
	}
	items, err := s.tracker.GroceryList(c.Request.Context(), id)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

// listRecipes accepts ?diet=Vegan,Keto&ingredient=rice; both may repeat.
func (s *Server) listRecipes(c *gin.Context) {
	f := recipes.Filter{
		Diets:       splitQuery(c.QueryArray("diet")),
		Ingredients: splitQuery(c.QueryArray("ingredient")),
	}
	list, err := s.tracker.Recipes(c.Request.Context(), f)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"recipes": list})
}

func (s *Server) addRecipe(c *gin.Context) {
	var in recipes.RecipeInput
	if !s.bind(c, &in) {
		return
	}
	recipe, err := s.tracker.AddRecipe(c.Request.Context(), in)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, recipe)
}

func splitQuery(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
