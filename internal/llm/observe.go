package llm

import (
	"context"
	"errors"
	"time"
)

// Observer records the outcome of each model call.
type Observer interface {
	ObserveModelCall(backend, outcome string, elapsed time.Duration)
}

type observedGateway struct {
	next     Gateway
	name     string
	observer Observer
}

// WithObserver reports every call's outcome ("ok" or the ModelError kind) to obs.
func WithObserver(next Gateway, name string, obs Observer) Gateway {
	if obs == nil {
		return next
	}
	return &observedGateway{next: next, name: name, observer: obs}
}

func (o *observedGateway) InferJSON(ctx context.Context, prompt string, image []byte) (any, error) {
	start := time.Now()
	v, err := o.next.InferJSON(ctx, prompt, image)
	outcome := "ok"
	if err != nil {
		outcome = "error"
		var me *ModelError
		if errors.As(err, &me) {
			outcome = string(me.Kind)
		}
	}
	o.observer.ObserveModelCall(o.name, outcome, time.Since(start))
	return v, err
}
