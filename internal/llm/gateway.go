package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/joseph-ayodele/taxdocs/internal/common"
)

// Gateway sends one image plus a prompt to a vision model and returns the parsed JSON value.
type Gateway interface {
	InferJSON(ctx context.Context, prompt string, image []byte) (any, error)
}

// Completer is what a backend implements: raw text out, no normalization.
type Completer interface {
	Name() string
	Complete(ctx context.Context, prompt string, png []byte) (string, error)
}

// ErrorKind separates transport-level failures from unparseable output.
type ErrorKind string

const (
	KindTransport   ErrorKind = "transport"
	KindTimeout     ErrorKind = "timeout"
	KindStatus      ErrorKind = "status"
	KindParse       ErrorKind = "parse"
	KindCircuitOpen ErrorKind = "circuit_open"
)

// ModelError is returned by every Gateway failure.
type ModelError struct {
	Backend string
	Kind    ErrorKind
	Err     error
}

func (e *ModelError) Error() string {
	return fmt.Sprintf("model %s %s error: %v", e.Backend, e.Kind, e.Err)
}

func (e *ModelError) Unwrap() []error {
	return []error{common.ErrModel, e.Err}
}

// IsParse reports whether err is a ModelError caused by unparseable model output.
func IsParse(err error) bool {
	var me *ModelError
	return errors.As(err, &me) && me.Kind == KindParse
}

// IsTransport reports whether err is a ModelError from the call itself (network, timeout, status, breaker).
func IsTransport(err error) bool {
	var me *ModelError
	return errors.As(err, &me) && me.Kind != KindParse
}

// classifyCallError wraps a backend call failure with the matching kind.
func classifyCallError(backend string, err error) *ModelError {
	var me *ModelError
	if errors.As(err, &me) {
		return me
	}
	kind := KindTransport
	var statusErr *HTTPStatusError
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		kind = KindTimeout
	case errors.As(err, &statusErr):
		kind = KindStatus
	case errors.As(err, &netErr) && netErr.Timeout():
		kind = KindTimeout
	}
	return &ModelError{Backend: backend, Kind: kind, Err: err}
}

type textGateway struct {
	backend Completer
	timeout time.Duration
	logger  *slog.Logger
}

// NewGateway adapts a backend into a Gateway: call, normalize fences, parse JSON.
// Each call is bounded by timeout when positive. It never retries.
func NewGateway(backend Completer, timeout time.Duration, logger *slog.Logger) Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	return &textGateway{backend: backend, timeout: timeout, logger: logger}
}

func (g *textGateway) InferJSON(ctx context.Context, prompt string, image []byte) (any, error) {
	log := common.LoggerFrom(ctx, g.logger)
	start := time.Now()
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	text, err := g.backend.Complete(ctx, prompt, image)
	if err != nil {
		me := classifyCallError(g.backend.Name(), err)
		log.Error("llm.infer.call_error",
			"backend", g.backend.Name(), "kind", me.Kind, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return nil, me
	}

	v, err := ParseJSON(text)
	if err != nil {
		log.Error("llm.infer.parse_error",
			"backend", g.backend.Name(), "error", err, "response_len", len(text),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return nil, &ModelError{Backend: g.backend.Name(), Kind: KindParse, Err: err}
	}

	log.Debug("llm.infer.ok",
		"backend", g.backend.Name(), "image_bytes", len(image),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return v, nil
}
