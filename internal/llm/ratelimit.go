package llm

import (
	"context"

	"golang.org/x/time/rate"
)

type limitedGateway struct {
	next    Gateway
	name    string
	limiter *rate.Limiter
}

// WithRateLimit caps model calls at rps per second with the given burst.
// rps <= 0 returns next unchanged.
func WithRateLimit(next Gateway, name string, rps float64, burst int) Gateway {
	if rps <= 0 {
		return next
	}
	if burst <= 0 {
		burst = 1
	}
	return &limitedGateway{next: next, name: name, limiter: rate.NewLimiter(rate.Limit(rps), burst)}
}

func (l *limitedGateway) InferJSON(ctx context.Context, prompt string, image []byte) (any, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return nil, &ModelError{Backend: l.name, Kind: KindTimeout, Err: err}
	}
	return l.next.InferJSON(ctx, prompt, image)
}
