package backends

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/joseph-ayodele/taxdocs/internal/common"
	"github.com/joseph-ayodele/taxdocs/internal/llm"
	"github.com/joseph-ayodele/taxdocs/internal/llm/anthropic"
	"github.com/joseph-ayodele/taxdocs/internal/llm/gemini"
	"github.com/joseph-ayodele/taxdocs/internal/llm/ollama"
	"github.com/joseph-ayodele/taxdocs/internal/llm/openai"
)

// New builds the configured backend and stacks the gateway decorators on it:
// observer (outermost), circuit breaker, rate limiter. The returned closer
// releases backend resources and is never nil.
func New(ctx context.Context, cfg common.ModelConfig, obs llm.Observer, logger *slog.Logger) (llm.Gateway, io.Closer, error) {
	if logger == nil {
		logger = slog.Default()
	}

	backend, closer, err := newCompleter(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	name := backend.Name()

	gw := llm.NewGateway(backend, cfg.Timeout, logger)
	gw = llm.WithRateLimit(gw, name, cfg.RateLimit, cfg.RateBurst)
	if cfg.BreakerEnabled {
		gw = llm.WithBreaker(gw, name, llm.BreakerConfig{
			MinRequests:  cfg.BreakerMinRequests,
			FailureRatio: cfg.BreakerFailureRatio,
			OpenTimeout:  cfg.BreakerOpenTimeout,
		}, logger)
	}
	gw = llm.WithObserver(gw, name, obs)

	logger.Info("llm.backend.ready", "backend", name, "model_backend", cfg.Backend)
	return gw, closer, nil
}

func newCompleter(ctx context.Context, cfg common.ModelConfig, logger *slog.Logger) (llm.Completer, io.Closer, error) {
	switch cfg.Backend {
	case "local":
		return ollama.NewClient(ollama.Config{
			BaseURL: cfg.OllamaURL,
			Model:   cfg.LocalModel,
			Timeout: cfg.Timeout,
		}, logger), nopCloser{}, nil
	case "cloud":
		switch cfg.CloudProvider {
		case "anthropic":
			return anthropic.NewClient(anthropic.Config{
				APIKey:    cfg.APIKey,
				BaseURL:   cfg.BaseURL,
				Model:     cfg.CloudModel,
				MaxTokens: cfg.MaxTokens,
				Timeout:   cfg.Timeout,
			}, logger), nopCloser{}, nil
		case "openai":
			return openai.NewClient(openai.Config{
				APIKey:    cfg.APIKey,
				BaseURL:   cfg.BaseURL,
				Model:     cfg.CloudModel,
				MaxTokens: cfg.MaxTokens,
				Timeout:   cfg.Timeout,
			}, logger), nopCloser{}, nil
		case "gemini":
			c, err := gemini.NewClient(ctx, gemini.Config{
				APIKey:    cfg.APIKey,
				Model:     cfg.CloudModel,
				MaxTokens: cfg.MaxTokens,
			}, logger)
			if err != nil {
				return nil, nil, err
			}
			return c, c, nil
		}
		return nil, nil, common.NewAppError("CONFIG_ERROR", fmt.Sprintf("unsupported cloud provider %q", cfg.CloudProvider), common.ErrInvalidInput)
	}
	return nil, nil, common.NewAppError("CONFIG_ERROR", fmt.Sprintf("unsupported model backend %q", cfg.Backend), common.ErrInvalidInput)
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
