package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/taxdocs/internal/classify"
	"github.com/joseph-ayodele/taxdocs/internal/common"
	"github.com/joseph-ayodele/taxdocs/internal/repository"
)

type ClassifyStage struct {
	Classifier Classifier
	Metrics    Metrics
	Logger     *slog.Logger
}

func NewClassifyStage(c Classifier, m Metrics, logger *slog.Logger) *ClassifyStage {
	if logger == nil {
		logger = slog.Default()
	}
	if m == nil {
		m = nopMetrics{}
	}
	return &ClassifyStage{Classifier: c, Metrics: m, Logger: logger}
}

// Run classifies the stored file of doc.
func (s *ClassifyStage) Run(ctx context.Context, doc *repository.Document) (classify.Result, error) {
	log := common.LoggerFrom(ctx, s.Logger).With("document_id", doc.ID)
	start := time.Now()

	res, err := s.Classifier.Classify(ctx, doc.FilePath)
	if err != nil {
		log.Error("pipeline.classify.failed", "error", err)
		return classify.Result{}, err
	}
	s.Metrics.ObserveClassification(string(res.DocType), string(res.Method))
	log.Info("pipeline.classify.ok",
		"doc_type", res.DocType,
		"confidence", res.Confidence,
		"method", res.Method,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return res, nil
}
