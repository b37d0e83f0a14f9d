package export

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/taxdocs/internal/repository"
)

// Reader is the read side of the store the exporter needs.
type Reader interface {
	Get(ctx context.Context, id uuid.UUID) (*repository.Document, error)
	List(ctx context.Context, f repository.ListFilter) ([]*repository.Document, error)
	LatestExtraction(ctx context.Context, documentID uuid.UUID) (*repository.Extraction, error)
	ListFields(ctx context.Context, documentID uuid.UUID) ([]repository.Field, error)
	ListTransactions(ctx context.Context, documentID uuid.UUID) ([]repository.Transaction, error)
}

// Service produces read-only JSON, CSV and XLSX projections of stored
// documents. It never writes to the store.
type Service struct {
	store  Reader
	logger *slog.Logger
}

func NewService(store Reader, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, logger: logger}
}

// DocumentPayload is the JSON export shape of one document.
type DocumentPayload struct {
	Document        *repository.Document `json:"document"`
	Extraction      json.RawMessage      `json:"extraction"`
	ExtractedFields []repository.Field   `json:"extracted_fields"`
}

// BaseColumns lead every CSV export row.
var BaseColumns = []string{
	"document_id",
	"doc_type",
	"tax_year",
	"filer",
	"payer_name",
	"recipient_name",
	"account_number",
	"classification_confidence",
	"overall_confidence",
	"needs_review",
	"created_at",
}

func baseRow(d *repository.Document) []string {
	return []string{
		d.ID.String(),
		string(d.DocType),
		intCell(d.TaxYear),
		strCell(d.Filer),
		strCell(d.PayerName),
		strCell(d.RecipientName),
		strCell(d.AccountNumber),
		floatCell(d.ClassificationConfidence),
		floatCell(d.OverallConfidence),
		boolCell(d.NeedsReview),
		d.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func strCell(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func intCell(n *int) string {
	if n == nil {
		return ""
	}
	return strconv.Itoa(*n)
}

func floatCell(f *float64) string {
	if f == nil {
		return ""
	}
	return strconv.FormatFloat(*f, 'f', -1, 64)
}

func boolCell(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

// payload loads a document with its latest extraction and fields.
func (s *Service) payload(ctx context.Context, doc *repository.Document) (DocumentPayload, error) {
	p := DocumentPayload{Document: doc, Extraction: json.RawMessage("null"), ExtractedFields: []repository.Field{}}
	ext, err := s.store.LatestExtraction(ctx, doc.ID)
	switch {
	case err == nil:
		if len(ext.Data) > 0 {
			p.Extraction = ext.Data
		}
	case isNotFound(err):
	default:
		return p, err
	}
	fields, err := s.store.ListFields(ctx, doc.ID)
	if err != nil {
		return p, err
	}
	if fields != nil {
		p.ExtractedFields = fields
	}
	return p, nil
}

// DocumentJSON exports one document. Unknown ids surface a NotFoundError.
func (s *Service) DocumentJSON(ctx context.Context, id uuid.UUID) ([]byte, error) {
	doc, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	p, err := s.payload(ctx, doc)
	if err != nil {
		return nil, err
	}
	out, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode json: %w", err)
	}
	s.logger.Info("export.json.ok", "document_id", id, "fields", len(p.ExtractedFields))
	return out, nil
}

// AllJSON exports every document, newest first.
func (s *Service) AllJSON(ctx context.Context) ([]byte, error) {
	docs, err := s.store.List(ctx, repository.ListFilter{})
	if err != nil {
		return nil, err
	}
	payloads := make([]DocumentPayload, 0, len(docs))
	for _, d := range docs {
		p, err := s.payload(ctx, d)
		if err != nil {
			return nil, err
		}
		payloads = append(payloads, p)
	}
	out, err := json.MarshalIndent(payloads, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode json: %w", err)
	}
	s.logger.Info("export.json_all.ok", "documents", len(docs))
	return out, nil
}
