package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

const flushTimeout = 2 * time.Second

// Processed is published after every finished pipeline run.
type Processed struct {
	DocumentID   string    `json:"document_id"`
	Status       string    `json:"status"`
	DocType      string    `json:"doc_type"`
	NeedsReview  bool      `json:"needs_review"`
	Deduplicated bool      `json:"deduplicated"`
	Notes        string    `json:"notes,omitempty"`
	At           time.Time `json:"at"`
}

type Publisher interface {
	PublishProcessed(ctx context.Context, ev Processed) error
	Close()
}

// Nop drops events. Used when no NATS URL is configured.
type Nop struct{}

func (Nop) PublishProcessed(context.Context, Processed) error { return nil }
func (Nop) Close()                                            {}

type conn interface {
	Publish(subject string, data []byte) error
	FlushWithContext(ctx context.Context) error
	Close()
}

// NATSPublisher publishes Processed events as JSON on one subject.
type NATSPublisher struct {
	conn    conn
	subject string
	logger  *slog.Logger
}

type Options struct {
	ConnectTimeout time.Duration
	ReconnectWait  time.Duration
	MaxReconnects  int
}

func NewNATSPublisher(url, subject string, opts Options, logger *slog.Logger) (*NATSPublisher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = 2 * time.Second
	}
	if opts.ReconnectWait <= 0 {
		opts.ReconnectWait = 2 * time.Second
	}
	if opts.MaxReconnects <= 0 {
		opts.MaxReconnects = 60
	}

	nc, err := nats.Connect(
		url,
		nats.Name("taxdocs"),
		nats.Timeout(opts.ConnectTimeout),
		nats.ReconnectWait(opts.ReconnectWait),
		nats.MaxReconnects(opts.MaxReconnects),
		nats.RetryOnFailedConnect(true),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("events.nats.disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("events.nats.reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	logger.Info("events.nats.connected", "subject", subject)
	return newPublisher(nc, subject, logger), nil
}

func newPublisher(c conn, subject string, logger *slog.Logger) *NATSPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &NATSPublisher{conn: c, subject: subject, logger: logger}
}

func (p *NATSPublisher) PublishProcessed(ctx context.Context, ev Processed) error {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	if err := p.conn.Publish(p.subject, data); err != nil {
		p.logger.Warn("events.publish.failed", "document_id", ev.DocumentID, "error", err)
		return fmt.Errorf("nats publish: %w", err)
	}
	// nats requires a deadline on flush
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, flushTimeout)
		defer cancel()
	}
	if err := p.conn.FlushWithContext(ctx); err != nil {
		return fmt.Errorf("nats flush: %w", err)
	}
	p.logger.Debug("events.published", "subject", p.subject, "document_id", ev.DocumentID)
	return nil
}

func (p *NATSPublisher) Close() {
	if p.conn != nil {
		p.conn.Close()
	}
}
