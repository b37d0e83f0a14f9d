// Package app wires configuration into the store, the model gateway and the
// pipeline for the command binaries.
package app

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/taxdocs/internal/async"
	"github.com/joseph-ayodele/taxdocs/internal/classify"
	"github.com/joseph-ayodele/taxdocs/internal/common"
	"github.com/joseph-ayodele/taxdocs/internal/events"
	"github.com/joseph-ayodele/taxdocs/internal/export"
	"github.com/joseph-ayodele/taxdocs/internal/extract"
	"github.com/joseph-ayodele/taxdocs/internal/ingest"
	"github.com/joseph-ayodele/taxdocs/internal/llm"
	"github.com/joseph-ayodele/taxdocs/internal/llm/backends"
	"github.com/joseph-ayodele/taxdocs/internal/metrics"
	"github.com/joseph-ayodele/taxdocs/internal/pipeline"
	"github.com/joseph-ayodele/taxdocs/internal/render"
	"github.com/joseph-ayodele/taxdocs/internal/repository"
	"github.com/joseph-ayodele/taxdocs/internal/server"
)

// App holds the wired components. Processor is nil for store-only apps.
type App struct {
	Config    *common.ConfigHolder
	DB        *repository.DB
	Store     *repository.Store
	Exporter  *export.Service
	Metrics   *metrics.PipelineMetrics
	Events    events.Publisher
	Processor *pipeline.Processor

	gatewayCloser io.Closer
	logger        *slog.Logger
}

// OpenStore connects to the database, runs migrations and wires the exporter.
func OpenStore(ctx context.Context, cfg *common.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	db, err := repository.Open(ctx, cfg.Database, logger)
	if err != nil {
		return nil, err
	}
	if err := db.HealthCheck(ctx, 5*time.Second, logger); err != nil {
		db.Close(logger)
		return nil, err
	}
	if err := repository.Migrate(ctx, db); err != nil {
		db.Close(logger)
		return nil, err
	}
	store := repository.NewStore(db, logger)
	return &App{
		Config:   common.NewConfigHolder(cfg),
		DB:       db,
		Store:    store,
		Exporter: export.NewService(store, logger),
		Metrics:  metrics.New(),
		Events:   events.Nop{},
		logger:   logger,
	}, nil
}

// Build opens the store and wires the full pipeline: renderer, model gateway,
// classifier, extractor, ingestor, metrics and events.
func Build(ctx context.Context, cfg *common.Config, logger *slog.Logger) (*App, error) {
	a, err := OpenStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	logger = a.logger

	gw, closer, err := backends.New(ctx, cfg.Model, a.Metrics, logger)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.gatewayCloser = closer

	if cfg.Events.NATSURL != "" {
		pub, err := events.NewNATSPublisher(cfg.Events.NATSURL, cfg.Events.Subject, events.Options{}, logger)
		if err != nil {
			logger.Warn("app.events.disabled", "error", err)
		} else {
			a.Events = pub
		}
	}

	a.Processor = NewProcessor(cfg, gw, a.Store, a.Config, a.Metrics, a.Events, logger)
	return a, nil
}

// NewProcessor wires a pipeline around gw and store.
func NewProcessor(cfg *common.Config, gw llm.Gateway, store pipeline.Store, holder *common.ConfigHolder, m pipeline.Metrics, pub events.Publisher, logger *slog.Logger) *pipeline.Processor {
	renderer := render.New(render.Config{Pdftoppm: cfg.Render.Pdftoppm}, nil, logger)
	return pipeline.NewProcessor(pipeline.Deps{
		Ingestor:   ingest.NewFSIngestor(cfg.Storage.UploadsDir(), logger),
		Pages:      renderer,
		Classifier: classify.New(renderer, gw, cfg.Render.Scale, logger),
		Extractor: extract.New(renderer, gw, extract.Options{
			Scale:           cfg.Render.Scale,
			PageConcurrency: cfg.Extract.PageConcurrency,
		}, logger),
		Store:   store,
		Config:  holder,
		Metrics: m,
		Events:  pub,
		Logger:  logger,
	})
}

// Service builds the RPC service over the app. queue may be nil.
func (a *App) Service(queue async.Queue) *server.Service {
	d := server.Deps{
		Store:    a.Store,
		Exporter: a.Exporter,
		Queue:    queue,
		Logger:   a.logger,
	}
	if a.Processor != nil {
		d.Processor = a.Processor
	} else {
		d.Processor = storeOnly{}
	}
	return server.NewService(d)
}

func (a *App) Close() {
	if a.Events != nil {
		a.Events.Close()
	}
	if a.gatewayCloser != nil {
		if err := a.gatewayCloser.Close(); err != nil {
			a.logger.Warn("app.gateway.close_failed", "error", err)
		}
	}
	if a.DB != nil {
		a.DB.Close(a.logger)
	}
}

var errNoPipeline = common.NewAppError("PIPELINE_DISABLED", "processing is not available in store-only mode", common.ErrInvalidInput)

type storeOnly struct{}

func (storeOnly) Process(context.Context, pipeline.UploadRequest) (pipeline.Result, error) {
	return pipeline.Result{}, errNoPipeline
}

func (storeOnly) Reprocess(context.Context, uuid.UUID) (pipeline.Result, error) {
	return pipeline.Result{}, errNoPipeline
}
