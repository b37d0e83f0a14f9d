package llm

import (
	"context"
	"errors"
	"testing"
	"time"
)

type countingGateway struct {
	err   error
	calls int
}

func (c *countingGateway) InferJSON(context.Context, string, []byte) (any, error) {
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	return map[string]any{}, nil
}

func TestBreakerOpensOnTransportFailures(t *testing.T) {
	inner := &countingGateway{err: &ModelError{Backend: "stub", Kind: KindTransport, Err: errors.New("refused")}}
	gw := WithBreaker(inner, "stub", BreakerConfig{MinRequests: 2, FailureRatio: 0.5, OpenTimeout: time.Minute}, nil)

	for i := 0; i < 2; i++ {
		if _, err := gw.InferJSON(context.Background(), "p", nil); !IsTransport(err) {
			t.Fatalf("call %d: expected transport error, got %v", i, err)
		}
	}

	_, err := gw.InferJSON(context.Background(), "p", nil)
	var me *ModelError
	if !errors.As(err, &me) || me.Kind != KindCircuitOpen {
		t.Fatalf("expected circuit open, got %v", err)
	}
	if inner.calls != 2 {
		t.Fatalf("open breaker must not reach the backend, calls = %d", inner.calls)
	}
}

func TestBreakerIgnoresParseFailures(t *testing.T) {
	inner := &countingGateway{err: &ModelError{Backend: "stub", Kind: KindParse, Err: errors.New("bad json")}}
	gw := WithBreaker(inner, "stub", BreakerConfig{MinRequests: 1, FailureRatio: 0.1, OpenTimeout: time.Minute}, nil)

	for i := 0; i < 5; i++ {
		if _, err := gw.InferJSON(context.Background(), "p", nil); !IsParse(err) {
			t.Fatalf("call %d: expected parse error, got %v", i, err)
		}
	}
	if inner.calls != 5 {
		t.Fatalf("parse failures must not trip the breaker, calls = %d", inner.calls)
	}
}

type recordingObserver struct {
	outcomes []string
}

func (r *recordingObserver) ObserveModelCall(_ string, outcome string, _ time.Duration) {
	r.outcomes = append(r.outcomes, outcome)
}

func TestObserverRecordsOutcomes(t *testing.T) {
	obs := &recordingObserver{}
	ok := WithObserver(&countingGateway{}, "stub", obs)
	bad := WithObserver(&countingGateway{err: &ModelError{Kind: KindParse, Err: errors.New("x")}}, "stub", obs)

	_, _ = ok.InferJSON(context.Background(), "p", nil)
	_, _ = bad.InferJSON(context.Background(), "p", nil)

	if len(obs.outcomes) != 2 || obs.outcomes[0] != "ok" || obs.outcomes[1] != "parse" {
		t.Fatalf("unexpected outcomes %v", obs.outcomes)
	}
}
