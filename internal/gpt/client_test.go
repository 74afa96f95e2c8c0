package gpt

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"bodari/config"
	"bodari/internal/metrics"
	"bodari/internal/models"
	"bodari/pkg/apperr"
	"bodari/pkg/logger"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, timeout time.Duration) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(config.GPTConfig{
		APIKey:        "sk-test",
		Model:         "gpt-4",
		BaseURL:       srv.URL + "/v1",
		Timeout:       timeout,
		MaxTokens:     500,
		Temperature:   0.2,
		RateLimitWait: 20 * time.Second,
	}, logger.NewNop())
}

func completion(content string) openai.ChatCompletionResponse {
	return openai.ChatCompletionResponse{
		ID:     "chatcmpl-1",
		Object: "chat.completion",
		Model:  "gpt-4",
		Choices: []openai.ChatCompletionChoice{{
			Index:        0,
			Message:      openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: content},
			FinishReason: openai.FinishReasonStop,
		}},
	}
}

func TestEstimateMacrosSendsPrompt(t *testing.T) {
	var got openai.ChatCompletionRequest
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(completion("Protein: 30g\nFat: 15g\nCarbs: 40g\nCalories: 500"))
	}, time.Second)

	reply, err := client.EstimateMacros(context.Background(), map[string]string{"Rice": "100g", "Chicken": "150g"})
	require.NoError(t, err)
	assert.Equal(t, "Protein: 30g\nFat: 15g\nCarbs: 40g\nCalories: 500", reply)

	require.Len(t, got.Messages, 2)
	assert.Equal(t, macroSystemPrompt, got.Messages[0].Content)
	assert.Contains(t, got.Messages[1].Content, "- Chicken: 150g\n- Rice: 100g\n")
	assert.Equal(t, 500, got.MaxTokens)
}

func TestGenerateWeeklyPlanTrimsReply(t *testing.T) {
	var got openai.ChatCompletionRequest
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(completion("\n| Day | Breakfast |\n"))
	}, time.Second)

	text, err := client.GenerateWeeklyPlan(context.Background(), models.PlanRequest{
		DietaryRestrictions: []string{"Vegan"},
		DailyCalories:       2507,
		Macros:              models.Macros{ProteinG: 157, FatG: 42, CarbsG: 376},
		PantryLines:         []string{"Tofu (400 grams)"},
	})
	require.NoError(t, err)
	assert.Equal(t, "| Day | Breakfast |", text)
	assert.Equal(t, planSystemPrompt, got.Messages[0].Content)
	assert.Contains(t, got.Messages[1].Content, "2507 calories")
	assert.Contains(t, got.Messages[1].Content, "Tofu (400 grams)")
}

func TestCompleteRateLimited(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"Rate limit reached","type":"requests","code":"rate_limit_exceeded"}}`))
	}, time.Second)

	_, err := client.Complete(context.Background(), "s", "p")
	require.True(t, apperr.Is(err, apperr.CodeRateLimited), "got %v", err)
	appErr, _ := apperr.As(err)
	assert.Equal(t, 20*time.Second, appErr.RetryAfter)
	assert.True(t, appErr.Retryable())
}

func TestCompleteServerError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"message":"boom","type":"server_error"}}`))
	}, time.Second)

	_, err := client.Complete(context.Background(), "s", "p")
	assert.True(t, apperr.Is(err, apperr.CodeExternalService), "got %v", err)
}

func TestCompleteTimeout(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}, 50*time.Millisecond)

	_, err := client.Complete(context.Background(), "s", "p")
	require.True(t, apperr.Is(err, apperr.CodeTimeout), "got %v", err)
	appErr, _ := apperr.As(err)
	assert.True(t, appErr.Retryable())
}

func TestCompleteNoChoices(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(openai.ChatCompletionResponse{ID: "x"})
	}, time.Second)

	_, err := client.Complete(context.Background(), "s", "p")
	assert.True(t, apperr.Is(err, apperr.CodeExternalService))
}

func TestPlanPromptWithoutPantry(t *testing.T) {
	p := PlanPrompt(models.PlanRequest{DailyCalories: 1800, Macros: models.Macros{ProteinG: 180, FatG: 60, CarbsG: 135}})
	assert.Contains(t, p, "dietary restrictions: none")
	assert.Contains(t, p, "protein 180, fat 60, carbs 135")
	assert.NotContains(t, p, "pantry")
}

func TestPlanPromptListsPantryOnePerLine(t *testing.T) {
	p := PlanPrompt(models.PlanRequest{
		DailyCalories: 2000,
		PantryLines:   []string{"Rice (1.5 kg)", "Milk (1 liters)", "Salt"},
	})
	assert.Contains(t, p, "in their pantry:\nRice (1.5 kg)\nMilk (1 liters)\nSalt\n")
	assert.NotContains(t, p, "Rice (1.5 kg), Milk")
}

func TestLocalLimiterRejectsWhenBurstExhausted(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		_ = json.NewEncoder(w).Encode(completion("ok"))
	}))
	defer srv.Close()

	m := metrics.New()
	client := NewClient(config.GPTConfig{
		APIKey:            "sk-test",
		BaseURL:           srv.URL + "/v1",
		Timeout:           200 * time.Millisecond,
		RateLimitWait:     20 * time.Second,
		RequestsPerMinute: 1,
	}, logger.NewNop()).WithMetrics(m)

	_, err := client.Complete(context.Background(), "s", "p")
	require.NoError(t, err)

	_, err = client.Complete(context.Background(), "s", "p")
	require.True(t, apperr.Is(err, apperr.CodeRateLimited), "got %v", err)
	assert.Equal(t, 1, calls)

	// one series for the success, one for the rejection
	series, err := testutil.GatherAndCount(m.Registry(), "bodari_completions_total")
	require.NoError(t, err)
	assert.Equal(t, 2, series)
}
