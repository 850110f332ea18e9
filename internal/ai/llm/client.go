package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Jamolkhon5/pmagent/internal/config"
)

// RetryConfig задает политику повторов для временных сбоев.
type RetryConfig struct {
	Attempts     int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	// Timeout ограничивает одну попытку, а не весь вызов.
	Timeout time.Duration
}

// Delay возвращает паузу перед попыткой attempt (нумерация с 1): initial*2^(attempt-1), не больше MaxDelay.
func (rc RetryConfig) Delay(attempt int) time.Duration {
	if attempt < 1 || rc.InitialDelay <= 0 {
		return 0
	}
	d := rc.InitialDelay
	for i := 1; i < attempt; i++ {
		d *= 2
		if rc.MaxDelay > 0 && d >= rc.MaxDelay {
			return rc.MaxDelay
		}
	}
	if rc.MaxDelay > 0 && d > rc.MaxDelay {
		return rc.MaxDelay
	}
	return d
}

// Client - клиент языковой модели с повторами. Безопасен для конкурентного использования.
type Client struct {
	provider Provider
	retry    RetryConfig
	system   string
	logger   *slog.Logger
	sleep    func(ctx context.Context, d time.Duration) error
}

type Option func(*Client)

// WithSystemPrompt добавляет системную инструкцию ко всем запросам.
func WithSystemPrompt(s string) Option {
	return func(c *Client) { c.system = s }
}

// WithSleep подменяет ожидание между попытками.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(c *Client) { c.sleep = fn }
}

func NewClient(provider Provider, retry RetryConfig, logger *slog.Logger, opts ...Option) *Client {
	if retry.Attempts <= 0 {
		retry.Attempts = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	c := &Client{
		provider: provider,
		retry:    retry,
		logger:   logger.With("component", "llm", "provider", provider.Name()),
		sleep:    sleepContext,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewProvider собирает провайдера по конфигурации.
func NewProvider(cfg *config.Config) (Provider, error) {
	switch cfg.LLMProvider {
	case config.ProviderOpenAI:
		return NewOpenAIProvider(OpenAIConfig{
			BaseURL:   cfg.LLMBaseURL,
			APIKey:    cfg.LLMApiKey,
			Model:     cfg.ModelName,
			MaxTokens: cfg.LLMMaxTokens,
			Referer:   "http://localhost:3000",
			Title:     "PM Agent",
		}), nil
	case config.ProviderAnthropic:
		baseURL := cfg.LLMBaseURL
		// адрес OpenRouter по умолчанию не подходит для Anthropic API
		if strings.Contains(baseURL, "openrouter.ai") {
			baseURL = ""
		}
		return NewAnthropicProvider(AnthropicConfig{
			BaseURL:   baseURL,
			APIKey:    cfg.LLMApiKey,
			Model:     cfg.ModelName,
			MaxTokens: cfg.LLMMaxTokens,
		}), nil
	}
	return nil, fmt.Errorf("unknown llm provider %q", cfg.LLMProvider)
}

// RetryFromConfig переносит параметры повторов из конфигурации.
func RetryFromConfig(cfg *config.Config) RetryConfig {
	return RetryConfig{
		Attempts:     cfg.RetryAttempts,
		InitialDelay: cfg.RetryInitialDelay,
		MaxDelay:     cfg.RetryMaxDelay,
		Timeout:      cfg.LLMTimeout,
	}
}

func (c *Client) Model() string { return c.provider.Model() }

// Complete отправляет промпт и возвращает текст ответа.
// Временные сбои повторяются с экспоненциальной паузой, постоянные возвращаются сразу.
func (c *Client) Complete(ctx context.Context, prompt string, temperature float64) (string, error) {
	req := Request{Prompt: prompt, System: c.system, Temperature: temperature}

	var lastErr *Error
	for attempt := 1; attempt <= c.retry.Attempts; attempt++ {
		if attempt > 1 {
			if err := c.sleep(ctx, c.retry.Delay(attempt-1)); err != nil {
				return "", &Error{Kind: Permanent, Err: fmt.Errorf("retry aborted: %w", err)}
			}
		}

		text, err := c.attempt(ctx, req)
		if err == nil {
			return text, nil
		}

		lastErr = Classify(err)
		// отмена вызывающим не повторяется
		if ctx.Err() != nil {
			return "", &Error{Kind: Permanent, Err: ctx.Err()}
		}
		c.logger.Warn("llm attempt failed",
			"attempt", attempt,
			"max_attempts", c.retry.Attempts,
			"kind", lastErr.Kind.String(),
			"status", lastErr.StatusCode,
			"error", lastErr.Err,
		)
		if lastErr.Kind == Permanent {
			return "", lastErr
		}
	}
	return "", lastErr
}

func (c *Client) attempt(ctx context.Context, req Request) (string, error) {
	if c.retry.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.retry.Timeout)
		defer cancel()
	}

	text, err := c.provider.Generate(ctx, req)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		return "", &Error{Kind: Transient, Err: errors.New("empty response")}
	}
	return text, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
