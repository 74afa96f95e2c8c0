package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"bodari/config"
	"bodari/internal/grocery"
	"bodari/internal/metrics"
	"bodari/internal/models"
	"bodari/internal/nutrition"
	"bodari/internal/pantry"
	"bodari/internal/planner"
	"bodari/internal/recipes"
	"bodari/internal/tracker"
	"bodari/pkg/apperr"
	"bodari/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type MockTracker struct{ mock.Mock }

func (m *MockTracker) User(ctx context.Context, id int64) (*models.User, error) {
	args := m.Called(ctx, id)
	u, _ := args.Get(0).(*models.User)
	return u, args.Error(1)
}

func (m *MockTracker) CreateProfile(ctx context.Context, userID int64, in tracker.ProfileInput) (*models.UserProfile, nutrition.Targets, error) {
	args := m.Called(ctx, userID, in)
	p, _ := args.Get(0).(*models.UserProfile)
	t, _ := args.Get(1).(nutrition.Targets)
	return p, t, args.Error(2)
}

func (m *MockTracker) Profile(ctx context.Context, userID int64) (*models.UserProfile, error) {
	args := m.Called(ctx, userID)
	p, _ := args.Get(0).(*models.UserProfile)
	return p, args.Error(1)
}

func (m *MockTracker) Summary(ctx context.Context, userID int64, date time.Time) (*tracker.DailySummary, error) {
	args := m.Called(ctx, userID, date)
	s, _ := args.Get(0).(*tracker.DailySummary)
	return s, args.Error(1)
}

func (m *MockTracker) TodaySummary(ctx context.Context, userID int64) (*tracker.DailySummary, error) {
	args := m.Called(ctx, userID)
	s, _ := args.Get(0).(*tracker.DailySummary)
	return s, args.Error(1)
}

func (m *MockTracker) LogMeal(ctx context.Context, userID int64, in tracker.MealInput) (*tracker.LoggedMeal, error) {
	args := m.Called(ctx, userID, in)
	l, _ := args.Get(0).(*tracker.LoggedMeal)
	return l, args.Error(1)
}

func (m *MockTracker) MealHistory(ctx context.Context, userID int64, limit int) ([]models.MealLogEntry, error) {
	args := m.Called(ctx, userID, limit)
	e, _ := args.Get(0).([]models.MealLogEntry)
	return e, args.Error(1)
}

func (m *MockTracker) SavePantry(ctx context.Context, userID int64, items []pantry.Item) ([]models.PantryEntry, error) {
	args := m.Called(ctx, userID, items)
	e, _ := args.Get(0).([]models.PantryEntry)
	return e, args.Error(1)
}

func (m *MockTracker) Pantry(ctx context.Context, userID int64) ([]models.PantryEntry, error) {
	args := m.Called(ctx, userID)
	e, _ := args.Get(0).([]models.PantryEntry)
	return e, args.Error(1)
}

func (m *MockTracker) WeeklyPlan(ctx context.Context, userID int64, force bool) (*planner.Result, error) {
	args := m.Called(ctx, userID, force)
	r, _ := args.Get(0).(*planner.Result)
	return r, args.Error(1)
}

func (m *MockTracker) GroceryList(ctx context.Context, userID int64) ([]grocery.Item, error) {
	args := m.Called(ctx, userID)
	i, _ := args.Get(0).([]grocery.Item)
	return i, args.Error(1)
}

func (m *MockTracker) Recipes(ctx context.Context, f recipes.Filter) ([]models.Recipe, error) {
	args := m.Called(ctx, f)
	r, _ := args.Get(0).([]models.Recipe)
	return r, args.Error(1)
}

func (m *MockTracker) AddRecipe(ctx context.Context, in recipes.RecipeInput) (*models.Recipe, error) {
	args := m.Called(ctx, in)
	r, _ := args.Get(0).(*models.Recipe)
	return r, args.Error(1)
}

type pinger struct{ err error }

func (p pinger) Ping(context.Context) error { return p.err }

func newTestServer(tr Tracker, db Pinger) (*Server, *metrics.Metrics) {
	m := metrics.New()
	return NewServer(config.ServerConfig{Port: "0"}, tr, db, m, logger.NewNop()), m
}

func do(s *Server, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var body errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(new(MockTracker), pinger{})
	rec := do(s, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	s, _ = newTestServer(new(MockTracker), pinger{err: errors.New("connection refused")})
	rec = do(s, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRequestIDIsEchoedOrGenerated(t *testing.T) {
	s, _ := newTestServer(new(MockTracker), nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(requestIDHeader, "abc-123")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, "abc-123", rec.Header().Get(requestIDHeader))

	rec = do(s, http.MethodGet, "/health", "")
	assert.Len(t, rec.Header().Get(requestIDHeader), 36)
}

func TestCreateProfile(t *testing.T) {
	tr := new(MockTracker)
	in := tracker.ProfileInput{
		Name: "Sam", DateOfBirth: "1995-01-01", Gender: "male", HeightCM: 170, WeightKG: 70,
		ActivityLevel: "moderately_active", Goal: "maintain", TimelineWeeks: 12,
	}
	tr.On("CreateProfile", mock.Anything, int64(7), in).Return(
		&models.UserProfile{UserID: 7, Name: "Sam"},
		nutrition.Targets{Calories: 2507, Macros: models.Macros{ProteinG: 157, FatG: 42, CarbsG: 376}},
		nil,
	).Once()
	s, _ := newTestServer(tr, nil)

	rec := do(s, http.MethodPost, "/api/v1/users/7/profile",
		`{"name":"Sam","date_of_birth":"1995-01-01","gender":"male","height_cm":170,"weight_kg":70,
		  "activity_level":"moderately_active","goal":"maintain","timeline_weeks":12}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp struct {
		Targets struct {
			Calories int           `json:"calories"`
			Macros   models.Macros `json:"macros"`
		} `json:"targets"`
		Notice string `json:"notice"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 2507, resp.Targets.Calories)
	assert.Equal(t, 157, resp.Targets.Macros.ProteinG)
	assert.Empty(t, resp.Notice)
	tr.AssertExpectations(t)
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		status     int
		code       apperr.Code
		retryAfter string
	}{
		{"validation", apperr.Validation("bad gender"), http.StatusBadRequest, apperr.CodeValidation, ""},
		{"not found", apperr.NotFound("profile"), http.StatusNotFound, apperr.CodeNotFound, ""},
		{"duplicate", apperr.DuplicateKey("user_profiles", "7", nil), http.StatusConflict, apperr.CodeDuplicateKey, ""},
		{"rate limited", apperr.RateLimited("openai", 20*time.Second, nil), http.StatusTooManyRequests, apperr.CodeRateLimited, "20"},
		{"timeout", apperr.Timeout("openai", time.Minute, nil), http.StatusGatewayTimeout, apperr.CodeTimeout, ""},
		{"external", apperr.ExternalService("openai", nil), http.StatusBadGateway, apperr.CodeExternalService, ""},
		{"plain", errors.New("boom"), http.StatusInternalServerError, apperr.CodeInternal, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := new(MockTracker)
			tr.On("WeeklyPlan", mock.Anything, int64(7), false).Return(nil, tt.err).Once()
			s, _ := newTestServer(tr, nil)

			rec := do(s, http.MethodGet, "/api/v1/users/7/plan", "")
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, string(tt.code), decodeError(t, rec).Code)
			assert.Equal(t, tt.retryAfter, rec.Header().Get("Retry-After"))
		})
	}
}

func TestRejectsBadUserID(t *testing.T) {
	s, _ := newTestServer(new(MockTracker), nil)
	for _, path := range []string{"/api/v1/users/abc/plan", "/api/v1/users/-1/plan", "/api/v1/users/0/summary"} {
		rec := do(s, http.MethodGet, path, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, path)
	}
}

func TestPlanForceAndRegenerate(t *testing.T) {
	tr := new(MockTracker)
	res := &planner.Result{Text: "plan", State: planner.StateCachedValid, Generated: true}
	tr.On("WeeklyPlan", mock.Anything, int64(7), true).Return(res, nil).Twice()
	s, _ := newTestServer(tr, nil)

	rec := do(s, http.MethodGet, "/api/v1/users/7/plan?force=true", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = do(s, http.MethodPost, "/api/v1/users/7/plan/regenerate", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"text":"plan"`)
	tr.AssertExpectations(t)
}

func TestSummaryDateQuery(t *testing.T) {
	tr := new(MockTracker)
	date := time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)
	tr.On("Summary", mock.Anything, int64(7), date).Return(&tracker.DailySummary{Date: date}, nil).Once()
	tr.On("TodaySummary", mock.Anything, int64(7)).Return(&tracker.DailySummary{}, nil).Once()
	s, _ := newTestServer(tr, nil)

	assert.Equal(t, http.StatusOK, do(s, http.MethodGet, "/api/v1/users/7/summary?date=2025-06-10", "").Code)
	assert.Equal(t, http.StatusOK, do(s, http.MethodGet, "/api/v1/users/7/summary", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(s, http.MethodGet, "/api/v1/users/7/summary?date=10/06/2025", "").Code)
	tr.AssertExpectations(t)
}

func TestLogMealBadBody(t *testing.T) {
	tr := new(MockTracker)
	s, _ := newTestServer(tr, nil)

	rec := do(s, http.MethodPost, "/api/v1/users/7/meals", `{"name":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	tr.AssertNotCalled(t, "LogMeal", mock.Anything, mock.Anything, mock.Anything)
}

func TestMealHistoryLimit(t *testing.T) {
	tr := new(MockTracker)
	tr.On("MealHistory", mock.Anything, int64(7), defaultHistoryLimit).Return([]models.MealLogEntry{}, nil).Once()
	tr.On("MealHistory", mock.Anything, int64(7), 5).Return([]models.MealLogEntry{{Name: "Lunch"}}, nil).Once()
	s, _ := newTestServer(tr, nil)

	assert.Equal(t, http.StatusOK, do(s, http.MethodGet, "/api/v1/users/7/meals", "").Code)
	rec := do(s, http.MethodGet, "/api/v1/users/7/meals?limit=5", "")
	assert.Contains(t, rec.Body.String(), `"name":"Lunch"`)
	assert.Equal(t, http.StatusBadRequest, do(s, http.MethodGet, "/api/v1/users/7/meals?limit=0", "").Code)
	tr.AssertExpectations(t)
}

func TestSavePantry(t *testing.T) {
	tr := new(MockTracker)
	one := 1.0
	items := []pantry.Item{{Ingredient: "Rice", Quantity: &one, Unit: models.UnitKg}, {Ingredient: "Salt"}}
	tr.On("SavePantry", mock.Anything, int64(7), items).
		Return([]models.PantryEntry{{Ingredient: "Rice"}, {Ingredient: "Salt"}}, nil).Once()
	s, _ := newTestServer(tr, nil)

	rec := do(s, http.MethodPost, "/api/v1/users/7/pantry",
		`{"items":[{"ingredient":"Rice","quantity":1,"unit":"kg"},{"ingredient":"Salt"}]}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	tr.AssertExpectations(t)
}

func TestListRecipesFilter(t *testing.T) {
	tr := new(MockTracker)
	f := recipes.Filter{Diets: []string{"Vegan", "Keto"}, Ingredients: []string{"rice"}}
	tr.On("Recipes", mock.Anything, f).Return([]models.Recipe{{Title: "Bowl"}}, nil).Once()
	s, _ := newTestServer(tr, nil)

	rec := do(s, http.MethodGet, "/api/v1/recipes?diet=Vegan,Keto&ingredient=rice", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"title":"Bowl"`)
	tr.AssertExpectations(t)
}

func TestMetricsEndpoint(t *testing.T) {
	s, _ := newTestServer(new(MockTracker), nil)
	do(s, http.MethodGet, "/health", "")

	rec := do(s, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `bodari_http_requests_total{method="GET",route="/health",status="200"} 1`)
}

func TestCORSPreflight(t *testing.T) {
	s, _ := newTestServer(new(MockTracker), nil)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/recipes", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRecoveryReturnsJSON(t *testing.T) {
	tr := new(MockTracker)
	tr.On("GroceryList", mock.Anything, int64(7)).Run(func(mock.Arguments) { panic("boom") })
	s, _ := newTestServer(tr, nil)

	rec := do(s, http.MethodGet, "/api/v1/users/7/grocery", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, string(apperr.CodeInternal), decodeError(t, rec).Code)
}
