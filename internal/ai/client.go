package ai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dshills/prrisk/internal/cache"
	"github.com/dshills/prrisk/internal/logging"
	"github.com/dshills/prrisk/internal/providers"
	"github.com/dshills/prrisk/internal/review"
)

// ResponseCache stores validated responses by request key.
type ResponseCache interface {
	Get(key string) (string, bool)
	Put(key, response string) error
}

// Config controls one analysis call.
type Config struct {
	Budget Budget
	// Model is part of the response cache key.
	Model string
	// Cache, when set, is consulted before calling the provider and
	// receives every response that passes validation.
	Cache ResponseCache
	// Timeout bounds the whole call, retries and repair included.
	Timeout       time.Duration
	RedactSecrets bool
	RedactPaths   []string
}

// Client wraps a provider with context packing and response validation.
type Client struct {
	provider providers.Client
	cfg      Config
	logger   *slog.Logger

	disabledReason string
	disabledErr    error
}

// New creates a Client. A nil provider yields a client that never
// contributes.
func New(provider providers.Client, cfg Config, logger *slog.Logger) *Client {
	if cfg.Budget.MaxTokens <= 0 {
		cfg.Budget.MaxTokens = 4096
	}
	c := &Client{provider: provider, cfg: cfg, logger: logging.OrDiscard(logger)}
	if provider == nil {
		c.disabledReason = "AI analysis is not configured"
	}
	return c
}

// Disabled returns a client that reports reason on every call, used when
// the provider could not be constructed.
func Disabled(reason string, err error) *Client {
	return &Client{logger: logging.Discard(), disabledReason: reason, disabledErr: err}
}

// Analyze sends the highest-priority diffs to the model and returns its
// validated contribution. It never returns an error: every failure becomes
// a NoContribution with a displayable reason.
func (c *Client) Analyze(ctx context.Context, change review.ChangeRequest, files []review.ChangedFile, prior []review.Finding) Outcome {
	if c.provider == nil {
		return NoContribution{Reason: c.disabledReason, Err: c.disabledErr}
	}

	pc := buildContext(files, c.cfg.Budget, c.cfg.RedactSecrets, c.cfg.RedactPaths)
	if len(pc.order) == 0 {
		return NoContribution{Reason: "no analyzable diff content for AI analysis"}
	}
	if pc.redactions > 0 {
		c.logger.Info("redacted content before AI call", slog.Int("count", pc.redactions))
	}

	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}

	req := providers.Request{
		SystemPrompt: systemPrompt,
		UserPrompt:   buildUserPrompt(change, files, pc, prior, c.cfg.RedactSecrets),
		MaxTokens:    c.cfg.Budget.MaxTokens,
		Temperature:  c.cfg.Budget.Temperature,
	}

	var key string
	if c.cfg.Cache != nil {
		key = cache.Key(c.provider.Name(), c.cfg.Model, req.SystemPrompt, req.UserPrompt)
		if content, ok := c.cfg.Cache.Get(key); ok {
			if contrib, err := parseResponse(content, pc.sent); err == nil {
				c.logger.Info("AI analysis served from cache", slog.Int("findings", len(contrib.Findings)))
				return contrib
			}
		}
	}

	start := time.Now()
	resp, err := c.provider.Complete(ctx, req)
	if err != nil {
		return c.failed(err)
	}
	tokens := resp.TokensUsed

	content := resp.Content
	contrib, err := parseResponse(content, pc.sent)
	if errors.Is(err, errSyntax) {
		c.logger.Warn("AI response was not JSON, requesting repair", slog.Any("error", err))
		repair := req
		repair.UserPrompt = fmt.Sprintf(repairPrompt, err.Error(), resp.Content)
		resp2, err2 := c.provider.Complete(ctx, repair)
		if err2 != nil {
			return c.failed(err2)
		}
		tokens += resp2.TokensUsed
		content = resp2.Content
		contrib, err = parseResponse(content, pc.sent)
	}
	if err != nil {
		c.logger.Warn("discarding AI response", slog.Any("error", err))
		return NoContribution{Reason: "AI response was malformed and was discarded", Err: err}
	}

	if key != "" {
		if err := c.cfg.Cache.Put(key, content); err != nil {
			c.logger.Warn("caching AI response failed", slog.Any("error", err))
		}
	}

	contrib.TokensUsed = tokens
	c.logger.Info("AI analysis complete",
		slog.String("provider", c.provider.Name()),
		slog.Int("files", len(pc.order)),
		slog.Int("findings", len(contrib.Findings)),
		slog.Int("tokens", tokens),
		slog.Duration("elapsed", time.Since(start)))
	return contrib
}

func (c *Client) failed(err error) NoContribution {
	c.logger.Warn("AI analysis failed", slog.Any("error", err))
	reason := ReasonFor(err)
	if errors.Is(err, context.DeadlineExceeded) && c.cfg.Timeout > 0 {
		reason = fmt.Sprintf("AI analysis timed out after %s", c.cfg.Timeout)
	}
	return NoContribution{Reason: reason, Err: err}
}

// ReasonFor maps a provider failure to a message safe to publish.
func ReasonFor(err error) string {
	switch {
	case errors.Is(err, providers.ErrMissingCredential):
		return "no API key is configured for the AI provider"
	case providers.IsAuthError(err):
		return "the AI provider rejected the credentials"
	case errors.Is(err, context.DeadlineExceeded):
		return "AI analysis timed out"
	case errors.Is(err, context.Canceled):
		return "AI analysis was canceled"
	case providers.IsTransient(err):
		return "the AI service was unavailable after retries"
	default:
		return "the AI request failed"
	}
}
