// Package pipeline runs an upload through ingest, dedup, classification,
// extraction, review scoring and persistence.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/taxdocs/constants"
	"github.com/joseph-ayodele/taxdocs/internal/classify"
	"github.com/joseph-ayodele/taxdocs/internal/common"
	"github.com/joseph-ayodele/taxdocs/internal/events"
	"github.com/joseph-ayodele/taxdocs/internal/ingest"
	"github.com/joseph-ayodele/taxdocs/internal/repository"
)

type Classifier interface {
	Classify(ctx context.Context, path string) (classify.Result, error)
}

type Extractor interface {
	Extract(ctx context.Context, path string, formType constants.FormType) (any, error)
}

type PageCounter interface {
	PageCount(ctx context.Context, path string) (int, error)
}

// Store is the part of the document store the pipeline writes through.
type Store interface {
	Get(ctx context.Context, id uuid.UUID) (*repository.Document, error)
	FindByHash(ctx context.Context, hash string) (*repository.Document, error)
	CreateDocument(ctx context.Context, nd repository.NewDocument) (*repository.Document, bool, error)
	MarkProcessing(ctx context.Context, id uuid.UUID) error
	MarkNeedsReview(ctx context.Context, id uuid.UUID, notes string) error
	SaveExtraction(ctx context.Context, req repository.SaveExtractionRequest) (*repository.Extraction, error)
}

// Metrics receives run accounting. *metrics.PipelineMetrics satisfies it.
type Metrics interface {
	StartRun()
	FinishRun(outcome string, duration time.Duration)
	ObserveClassification(docType, method string)
}

// Run outcomes reported to Metrics.
const (
	OutcomeProcessed    = "processed"
	OutcomeNeedsReview  = "needs_review"
	OutcomeDeduplicated = "deduplicated"
	OutcomeFailed       = "failed"
)

// UploadRequest is one file to process.
type UploadRequest struct {
	SourcePath string
	Filer      *string
	TaxYear    *int
}

// Result is what a run produced. Failure holds the classification or
// extraction error that sent the document to review, if any.
type Result struct {
	Document     *repository.Document
	Deduplicated bool
	Failure      error
}

type Deps struct {
	Ingestor   ingest.Ingestor
	Pages      PageCounter
	Classifier Classifier
	Extractor  Extractor
	Store      Store
	Config     *common.ConfigHolder
	Metrics    Metrics
	Events     events.Publisher
	Logger     *slog.Logger
}

type Processor struct {
	ingestor ingest.Ingestor
	pages    PageCounter
	classify *ClassifyStage
	extract  *ExtractStage
	store    Store
	config   *common.ConfigHolder
	metrics  Metrics
	events   events.Publisher
	logger   *slog.Logger
}

func NewProcessor(d Deps) *Processor {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Metrics == nil {
		d.Metrics = nopMetrics{}
	}
	if d.Events == nil {
		d.Events = events.Nop{}
	}
	if d.Config == nil {
		cfg := common.DefaultConfig()
		d.Config = common.NewConfigHolder(&cfg)
	}
	return &Processor{
		ingestor: d.Ingestor,
		pages:    d.Pages,
		classify: NewClassifyStage(d.Classifier, d.Metrics, d.Logger),
		extract:  NewExtractStage(d.Extractor, d.Store, d.Logger),
		store:    d.Store,
		config:   d.Config,
		metrics:  d.Metrics,
		events:   d.Events,
		logger:   d.Logger,
	}
}

// Process stores the upload and, unless an identical file was already
// processed, classifies, extracts and persists it. Classification and
// extraction failures leave the document in needs_review with the error as
// notes and are reported in Result.Failure, not as the returned error.
// Ingest and storage failures are returned.
func (p *Processor) Process(ctx context.Context, req UploadRequest) (Result, error) {
	ctx = common.EnsureRequestID(ctx)
	log := common.LoggerFrom(ctx, p.logger)
	start := time.Now()
	p.metrics.StartRun()

	stored, err := p.ingestor.Ingest(ctx, req.SourcePath)
	if err != nil {
		log.Error("pipeline.ingest.failed", "path", req.SourcePath, "error", err)
		p.metrics.FinishRun(OutcomeFailed, time.Since(start))
		return Result{}, err
	}

	if existing, err := p.store.FindByHash(ctx, stored.Hash); err == nil {
		log.Info("pipeline.dedup.hit", "document_id", existing.ID, "hash", stored.Hash)
		p.metrics.FinishRun(OutcomeDeduplicated, time.Since(start))
		p.publish(ctx, existing, true, "")
		return Result{Document: existing, Deduplicated: true}, nil
	} else if !errors.Is(err, common.ErrNotFound) {
		p.metrics.FinishRun(OutcomeFailed, time.Since(start))
		return Result{}, err
	}

	pages := 0
	if p.pages != nil {
		if n, err := p.pages.PageCount(ctx, stored.StoredPath); err == nil {
			pages = n
		} else {
			log.Warn("pipeline.page_count.failed", "path", stored.StoredPath, "error", err)
		}
	}

	doc, created, err := p.store.CreateDocument(ctx, repository.NewDocument{
		FilePath:         stored.StoredPath,
		FileHash:         stored.Hash,
		OriginalFilename: stored.OriginalFilename,
		MimeType:         stored.MimeType,
		Filer:            req.Filer,
		TaxYear:          req.TaxYear,
		PageCount:        pages,
	})
	if err != nil {
		p.metrics.FinishRun(OutcomeFailed, time.Since(start))
		return Result{}, err
	}
	if !created {
		// lost a race with a concurrent upload of the same bytes
		p.metrics.FinishRun(OutcomeDeduplicated, time.Since(start))
		p.publish(ctx, doc, true, "")
		return Result{Document: doc, Deduplicated: true}, nil
	}

	log.Info("pipeline.document.created", "document_id", doc.ID, "pages", pages, "original_filename", stored.OriginalFilename)
	return p.run(ctx, doc, start)
}

// Reprocess classifies and extracts a stored document again, appending a
// new extraction record.
func (p *Processor) Reprocess(ctx context.Context, id uuid.UUID) (Result, error) {
	ctx = common.EnsureRequestID(ctx)
	start := time.Now()
	p.metrics.StartRun()

	doc, err := p.store.Get(ctx, id)
	if err != nil {
		p.metrics.FinishRun(OutcomeFailed, time.Since(start))
		return Result{}, err
	}
	if err := p.store.MarkProcessing(ctx, id); err != nil {
		p.metrics.FinishRun(OutcomeFailed, time.Since(start))
		return Result{}, err
	}
	common.LoggerFrom(ctx, p.logger).Info("pipeline.reprocess.start", "document_id", id)
	return p.run(ctx, doc, start)
}

func (p *Processor) run(ctx context.Context, doc *repository.Document, start time.Time) (Result, error) {
	log := common.LoggerFrom(ctx, p.logger).With("document_id", doc.ID)
	cfg := p.config.Snapshot()

	cls, err := p.classify.Run(ctx, doc)
	if err != nil {
		return p.fail(ctx, doc, err, start)
	}
	saved, err := p.extract.Run(ctx, doc, cls, cfg.Review)
	if err != nil {
		if errors.Is(err, common.ErrDatabase) || errors.Is(err, common.ErrNotFound) {
			res, _ := p.fail(ctx, doc, err, start)
			return res, err
		}
		return p.fail(ctx, doc, err, start)
	}

	outcome := OutcomeProcessed
	if saved.NeedsReview {
		outcome = OutcomeNeedsReview
	}
	p.metrics.FinishRun(outcome, time.Since(start))
	p.publish(ctx, saved, false, "")
	log.Info("pipeline.run.ok",
		"doc_type", saved.DocType,
		"status", saved.Status,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return Result{Document: saved}, nil
}

// fail moves the document to needs_review with the error as notes. It uses a
// context detached from cancellation so a cancelled run is still recorded.
func (p *Processor) fail(ctx context.Context, doc *repository.Document, cause error, start time.Time) (Result, error) {
	log := common.LoggerFrom(ctx, p.logger).With("document_id", doc.ID)
	log.Error("pipeline.run.failed", "error", cause)
	p.metrics.FinishRun(OutcomeFailed, time.Since(start))

	bg := context.WithoutCancel(ctx)
	if err := p.store.MarkNeedsReview(bg, doc.ID, cause.Error()); err != nil {
		log.Error("pipeline.mark_review.failed", "error", err)
		return Result{Document: doc, Failure: cause}, errors.Join(cause, err)
	}
	updated, err := p.store.Get(bg, doc.ID)
	if err != nil {
		return Result{Document: doc, Failure: cause}, err
	}
	p.publish(bg, updated, false, cause.Error())
	return Result{Document: updated, Failure: cause}, nil
}

func (p *Processor) publish(ctx context.Context, doc *repository.Document, dedup bool, notes string) {
	ev := events.Processed{
		DocumentID:   doc.ID.String(),
		Status:       string(doc.Status),
		DocType:      string(doc.DocType),
		NeedsReview:  doc.NeedsReview,
		Deduplicated: dedup,
		Notes:        notes,
	}
	if err := p.events.PublishProcessed(ctx, ev); err != nil {
		common.LoggerFrom(ctx, p.logger).Warn("pipeline.event.failed", "document_id", doc.ID, "error", err)
	}
}

type nopMetrics struct{}

func (nopMetrics) StartRun()                            {}
func (nopMetrics) FinishRun(string, time.Duration)      {}
func (nopMetrics) ObserveClassification(string, string) {}
