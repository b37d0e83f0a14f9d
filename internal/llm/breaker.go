package llm

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sony/gobreaker/v2"
)

// BreakerConfig tunes the circuit breaker wrapped around a Gateway.
type BreakerConfig struct {
	MinRequests     uint32
	FailureRatio    float64
	OpenTimeout     time.Duration
	HalfOpenMaxCall uint32
}

func (c BreakerConfig) normalize() BreakerConfig {
	out := c
	if out.MinRequests == 0 {
		out.MinRequests = 5
	}
	if out.FailureRatio <= 0 || out.FailureRatio > 1 {
		out.FailureRatio = 0.6
	}
	if out.OpenTimeout <= 0 {
		out.OpenTimeout = 30 * time.Second
	}
	if out.HalfOpenMaxCall == 0 {
		out.HalfOpenMaxCall = 1
	}
	return out
}

type breakerGateway struct {
	next    Gateway
	name    string
	breaker *gobreaker.CircuitBreaker[any]
}

// WithBreaker fails fast once a backend keeps failing at the transport level.
// Parse failures and caller cancellations do not count against the backend.
// There is no retry: an open circuit surfaces as a ModelError immediately.
func WithBreaker(next Gateway, name string, cfg BreakerConfig, logger *slog.Logger) Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	cfg = cfg.normalize()
	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.HalfOpenMaxCall,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= cfg.FailureRatio
		},
		IsSuccessful: func(err error) bool {
			if err == nil || IsParse(err) {
				return true
			}
			return errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("llm.breaker.state_change", "backend", name, "from", from.String(), "to", to.String())
		},
	}
	return &breakerGateway{
		next:    next,
		name:    name,
		breaker: gobreaker.NewCircuitBreaker[any](settings),
	}
}

func (b *breakerGateway) InferJSON(ctx context.Context, prompt string, image []byte) (any, error) {
	v, err := b.breaker.Execute(func() (any, error) {
		return b.next.InferJSON(ctx, prompt, image)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, &ModelError{Backend: b.name, Kind: KindCircuitOpen, Err: err}
	}
	return v, err
}
