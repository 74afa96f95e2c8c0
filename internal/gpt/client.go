// internal/gpt/client.go
package gpt

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"bodari/config"
	"bodari/internal/metrics"
	"bodari/internal/models"
	"bodari/pkg/apperr"
	"bodari/pkg/logger"

	"github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"
)

const serviceName = "openai"

const (
	KindChat   = "chat"
	KindMacros = "macros"
	KindPlan   = "plan"
)

type Client struct {
	client        *openai.Client
	model         string
	maxTokens     int
	temperature   float32
	timeout       time.Duration
	rateLimitWait time.Duration
	limiter       *rate.Limiter
	metrics       *metrics.Metrics
	logger        *logger.Logger
}

func NewClient(cfg config.GPTConfig, log *logger.Logger) *Client {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}

	c := &Client{
		client:        openai.NewClientWithConfig(clientConfig),
		model:         cfg.Model,
		maxTokens:     cfg.MaxTokens,
		temperature:   cfg.Temperature,
		timeout:       cfg.Timeout,
		rateLimitWait: cfg.RateLimitWait,
		logger:        log,
	}
	if c.model == "" {
		c.model = openai.GPT4
	}
	if c.timeout <= 0 {
		c.timeout = 60 * time.Second
	}
	if cfg.RequestsPerMinute > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerMinute)/60, limiterBurst(cfg.RequestsPerMinute))
	}
	return c
}

func limiterBurst(perMinute int) int {
	if burst := perMinute / 10; burst > 1 {
		return burst
	}
	return 1
}

func (c *Client) WithModel(model string) *Client {
	c.model = model
	return c
}

func (c *Client) WithMetrics(m *metrics.Metrics) *Client {
	c.metrics = m
	return c
}

// EstimateMacros asks for the macronutrients of a meal. The reply is free
// text; see extract.Macros.
func (c *Client) EstimateMacros(ctx context.Context, ingredients map[string]string) (string, error) {
	return c.complete(ctx, KindMacros, macroSystemPrompt, MacroPrompt(ingredients))
}

// GenerateWeeklyPlan returns the plan text with surrounding whitespace trimmed.
func (c *Client) GenerateWeeklyPlan(ctx context.Context, req models.PlanRequest) (string, error) {
	text, err := c.complete(ctx, KindPlan, planSystemPrompt, PlanPrompt(req))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

// Complete runs one chat completion bounded by the configured timeout.
// Failures come back as *apperr.Error: RateLimited for HTTP 429 or when the
// local limiter cannot admit the call in time, Timeout when the deadline
// passes, ExternalService otherwise.
func (c *Client) Complete(ctx context.Context, system, prompt string) (string, error) {
	return c.complete(ctx, KindChat, system, prompt)
}

func (c *Client) complete(ctx context.Context, kind, system, prompt string) (text string, err error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	started := time.Now()
	defer func() { c.metrics.ObserveCompletion(kind, err, time.Since(started)) }()

	if c.limiter != nil {
		if werr := c.limiter.Wait(ctx); werr != nil {
			c.logger.Warnw("Completion rejected by local rate limiter", "kind", kind, "error", werr)
			return "", apperr.RateLimited(serviceName, c.rateLimitWait, werr)
		}
	}

	req := openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		classified := c.classify(ctx, err)
		c.logger.Warnw("Chat completion failed",
			"kind", kind,
			"model", c.model,
			"code", apperr.CodeOf(classified),
			"elapsed", time.Since(started),
			"error", err,
		)
		return "", classified
	}

	if len(resp.Choices) == 0 {
		return "", apperr.ExternalService(serviceName, errors.New("no response from GPT API"))
	}

	c.logger.Debugw("Chat completion finished",
		"kind", kind,
		"model", c.model,
		"elapsed", time.Since(started),
		"total_tokens", resp.Usage.TotalTokens,
	)
	return resp.Choices[0].Message.Content, nil
}

func (c *Client) classify(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return apperr.Timeout(serviceName, c.timeout, err)
	}

	status := 0
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	}
	if status == http.StatusTooManyRequests {
		return apperr.RateLimited(serviceName, c.rateLimitWait, err)
	}
	return apperr.ExternalService(serviceName, fmt.Errorf("chat completion: %w", err))
}
