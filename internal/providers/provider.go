package providers

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/dshills/prrisk/internal/logging"
)

// Request contains the prompt sent to a language model.
type Request struct {
	SystemPrompt string
	UserPrompt   string
	MaxTokens    int
	Temperature  float64
}

// Response contains the raw completion text.
type Response struct {
	Content    string
	TokensUsed int
}

// Client is the provider abstraction.
type Client interface {
	Complete(ctx context.Context, req Request) (Response, error)
	Name() string
}

// Options configures a provider client.
type Options struct {
	// APIKey overrides the provider's environment variable.
	APIKey string
	// BaseURL overrides the provider endpoint.
	BaseURL string
	// Timeout bounds a single HTTP exchange.
	Timeout time.Duration
	Retry   Policy
	// HTTPClient replaces the default client, mainly for tests.
	HTTPClient *http.Client
	Logger     *slog.Logger
}

func (o Options) httpClient() *http.Client {
	if o.HTTPClient != nil {
		return o.HTTPClient
	}
	timeout := o.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &http.Client{Timeout: timeout}
}

func (o Options) key(envVar string) (string, error) {
	key := o.APIKey
	if key == "" {
		key = os.Getenv(envVar)
	}
	if key == "" {
		return "", fmt.Errorf("%s is not set: %w", envVar, ErrMissingCredential)
	}
	return key, nil
}

func (o Options) logRetry(provider string) RetryFunc {
	logger := logging.OrDiscard(o.Logger)
	return func(attempt int, err error, wait time.Duration) {
		logger.Warn("retrying provider call",
			slog.String("provider", provider),
			slog.Int("attempt", attempt),
			slog.Duration("wait", wait),
			slog.Any("error", err))
	}
}

// New creates a provider client by name.
func New(provider, model string, opts Options) (Client, error) {
	switch provider {
	case "anthropic":
		return NewAnthropic(model, opts)
	case "openai":
		return NewOpenAI(model, opts)
	default:
		return nil, fmt.Errorf("unknown provider: %s", provider)
	}
}

// EnvVar names the API key variable of a provider.
func EnvVar(provider string) string {
	switch provider {
	case "anthropic":
		return "ANTHROPIC_API_KEY"
	case "openai":
		return "OPENAI_API_KEY"
	default:
		return ""
	}
}
