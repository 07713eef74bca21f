package judge

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/norm/focusd/internal/verdict"
)

// DefaultModel is the Claude Haiku 3 model ID.
const DefaultModel = "claude-3-haiku-20240307"

// DefaultMaxTokens bounds the judge's answer.
const DefaultMaxTokens = 300

const systemPrompt = "You classify computer activity. Your final word is always productive or unproductive."

// Config holds Anthropic judge configuration.
type Config struct {
	// Model to use (defaults to Haiku 3)
	Model string

	// Max tokens for output
	MaxTokens int

	// Retry settings
	MaxRetries     int
	RetryBaseDelay time.Duration

	// API key (if empty, uses ANTHROPIC_API_KEY env)
	APIKey string

	// Prompt template containing Placeholder
	Prompt string
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Model:          DefaultModel,
		MaxTokens:      DefaultMaxTokens,
		MaxRetries:     3,
		RetryBaseDelay: time.Second,
		Prompt:         DefaultPrompt,
	}
}

// AnthropicJudge asks a Claude model for the verdict.
type AnthropicJudge struct {
	cfg    *Config
	client anthropic.Client
}

// NewAnthropic creates a judge backed by the Anthropic Messages API.
func NewAnthropic(cfg *Config, opts ...option.RequestOption) (*AnthropicJudge, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	apiKey, err := resolveAPIKey(cfg)
	if err != nil {
		return nil, fmt.Errorf("judge: %w", err)
	}

	// Retries are handled here so backoff and counts stay in one place.
	base := []option.RequestOption{option.WithAPIKey(apiKey), option.WithMaxRetries(0)}
	client := anthropic.NewClient(append(base, opts...)...)

	return &AnthropicJudge{
		cfg:    cfg,
		client: client,
	}, nil
}

// Judge sends the rendered prompt and parses the verdict from the answer.
// Includes retry logic with exponential backoff.
func (j *AnthropicJudge) Judge(ctx context.Context, text string) (Result, error) {
	prompt := j.cfg.Prompt
	if prompt == "" {
		prompt = DefaultPrompt
	}
	content := RenderPrompt(prompt, text)

	answer, err := j.complete(ctx, content)
	if err != nil {
		return Result{Verdict: verdict.Unknown}, &verdict.JudgeError{Err: err}
	}

	v, err := ParseVerdict(answer)
	if err != nil {
		return Result{Verdict: verdict.Unknown, Raw: answer}, &verdict.JudgeError{Raw: answer, Err: err}
	}
	return Result{Verdict: v, Raw: answer}, nil
}

func (j *AnthropicJudge) complete(ctx context.Context, content string) (string, error) {
	var lastErr error

	for attempt := 0; attempt <= j.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := j.cfg.RetryBaseDelay * time.Duration(math.Pow(2, float64(attempt-1)))
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(delay):
			}
		}

		result, err := j.doRequest(ctx, content)
		if err == nil {
			return result, nil
		}

		lastErr = err

		if !isRetryable(err) {
			return "", err
		}
	}

	return "", fmt.Errorf("max retries exceeded: %w", lastErr)
}

// doRequest performs a single API request.
func (j *AnthropicJudge) doRequest(ctx context.Context, content string) (string, error) {
	model := j.cfg.Model
	if model == "" {
		model = DefaultModel
	}

	maxTokens := j.cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}

	resp, err := j.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: int64(maxTokens),
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(content)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("judge request: %w", err)
	}

	var result strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			result.WriteString(block.Text)
		}
	}

	return result.String(), nil
}

// resolveAPIKey gets the API key from config or environment.
func resolveAPIKey(cfg *Config) (string, error) {
	if cfg.APIKey != "" {
		return cfg.APIKey, nil
	}
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
		return key, nil
	}
	return "", errors.New("no API key: set ANTHROPIC_API_KEY or judge.api_key")
}

// isRetryable checks if an error should be retried.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}

	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusTooManyRequests || apiErr.StatusCode >= 500
	}

	errStr := err.Error()
	return strings.Contains(errStr, "timeout") || strings.Contains(errStr, "deadline")
}
