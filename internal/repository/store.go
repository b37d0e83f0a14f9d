package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"
)

type DocumentRepository interface {
	Get(ctx context.Context, id uuid.UUID) (*Document, error)
	FindByHash(ctx context.Context, hash string) (*Document, error)
	CreateDocument(ctx context.Context, nd NewDocument) (doc *Document, created bool, err error)
	MarkProcessing(ctx context.Context, id uuid.UUID) error
	MarkNeedsReview(ctx context.Context, id uuid.UUID, notes string) error
	UpdateMetadata(ctx context.Context, id uuid.UUID, u MetadataUpdate) (*Document, error)
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, f ListFilter) ([]*Document, error)
	Stats(ctx context.Context) (Stats, error)
}

type ExtractionRepository interface {
	SaveExtraction(ctx context.Context, req SaveExtractionRequest) (*Extraction, error)
	LatestExtraction(ctx context.Context, documentID uuid.UUID) (*Extraction, error)
	ListFields(ctx context.Context, documentID uuid.UUID) ([]Field, error)
	ListTransactions(ctx context.Context, documentID uuid.UUID) ([]Transaction, error)
}

// Store implements both repositories over database/sql. Statements are built
// with ent's dialect-aware SQL builder so the same code runs on SQLite and Postgres.
type Store struct {
	db     *sql.DB
	b      *entsql.DialectBuilder
	logger *slog.Logger
	now    func() time.Time
}

var (
	_ DocumentRepository   = (*Store)(nil)
	_ ExtractionRepository = (*Store)(nil)
)

func NewStore(db *DB, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		db:     db.SQL,
		b:      entsql.Dialect(db.Dialect),
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// withTx runs fn in a transaction, rolling back on error.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			s.logger.Error("rollback failed", "error", rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

type builder interface {
	Query() (string, []any)
}

func exec(ctx context.Context, q querier, b builder) (sql.Result, error) {
	query, args := b.Query()
	return q.ExecContext(ctx, query, args...)
}

func nullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func nullFloat(nf sql.NullFloat64) *float64 {
	if !nf.Valid {
		return nil
	}
	f := nf.Float64
	return &f
}

func nullInt(ni sql.NullInt64) *int {
	if !ni.Valid {
		return nil
	}
	n := int(ni.Int64)
	return &n
}

func nullTime(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time.UTC()
	return &t
}

func strOrNil(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
