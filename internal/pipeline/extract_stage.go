package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/taxdocs/internal/classify"
	"github.com/joseph-ayodele/taxdocs/internal/common"
	"github.com/joseph-ayodele/taxdocs/internal/repository"
	"github.com/joseph-ayodele/taxdocs/internal/review"
)

type ExtractStage struct {
	Extractor Extractor
	Store     Store
	Logger    *slog.Logger
}

func NewExtractStage(e Extractor, store Store, logger *slog.Logger) *ExtractStage {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExtractStage{Extractor: e, Store: store, Logger: logger}
}

// Run extracts doc under the classified form type, scores the result with
// the review policy and persists it. It returns the updated document.
func (s *ExtractStage) Run(ctx context.Context, doc *repository.Document, cls classify.Result, cfg common.ReviewConfig) (*repository.Document, error) {
	log := common.LoggerFrom(ctx, s.Logger).With("document_id", doc.ID)
	start := time.Now()

	data, err := s.Extractor.Extract(ctx, doc.FilePath, cls.DocType)
	if err != nil {
		log.Error("pipeline.extract.failed", "doc_type", cls.DocType, "error", err)
		return nil, err
	}

	outcome := review.NewPolicy(cfg).Evaluate(cls.DocType, data, cls.Confidence)
	if len(outcome.Missing) > 0 {
		log.Warn("pipeline.review.missing_fields", "doc_type", cls.DocType, "missing", outcome.Missing)
	}

	rec, err := s.Store.SaveExtraction(ctx, repository.SaveExtractionRequest{
		DocumentID:               doc.ID,
		DocType:                  cls.DocType,
		ClassificationConfidence: cls.Confidence,
		ClassificationMethod:     cls.Method,
		Data:                     data,
		OverallConfidence:        outcome.OverallConfidence,
		NeedsReview:              outcome.NeedsReview,
	})
	if err != nil {
		return nil, err
	}
	log.Info("pipeline.extract.ok",
		"extraction_id", rec.ID,
		"overall_confidence", outcome.OverallConfidence,
		"needs_review", outcome.NeedsReview,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return s.Store.Get(ctx, doc.ID)
}
