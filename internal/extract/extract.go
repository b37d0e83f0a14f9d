// Package extract runs the per-page model calls for a classified document
// and combines them with the form type's page policy.
package extract

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/joseph-ayodele/taxdocs/constants"
	"github.com/joseph-ayodele/taxdocs/internal/common"
	"github.com/joseph-ayodele/taxdocs/internal/llm"
	"github.com/joseph-ayodele/taxdocs/internal/render"
)

type Options struct {
	Scale           float64 // raster scale, default 2
	PageConcurrency int     // model calls in flight per document, default 1
}

type Extractor struct {
	renderer render.Renderer
	gateway  llm.Gateway
	opts     Options
	logger   *slog.Logger
}

func New(renderer render.Renderer, gateway llm.Gateway, opts Options, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Scale <= 0 {
		opts.Scale = 2
	}
	if opts.PageConcurrency <= 0 {
		opts.PageConcurrency = 1
	}
	return &Extractor{renderer: renderer, gateway: gateway, opts: opts, logger: logger}
}

// Extract renders every page, sends each one to the model with the form's
// prompt and combines the page results. Any render or model failure aborts the
// run with an ExtractionError; partial results are never returned.
func (e *Extractor) Extract(ctx context.Context, path string, formType constants.FormType) (any, error) {
	log := common.LoggerFrom(ctx, e.logger).With("path", path, "doc_type", formType)
	start := time.Now()

	pages, err := e.renderer.PageCount(ctx, path)
	if err != nil {
		return nil, common.NewExtractionError("count pages", err)
	}

	results, err := e.inferPages(ctx, path, PromptFor(formType), pages)
	if err != nil {
		log.Error("extract.failed", "pages", pages, "error", err)
		return nil, err
	}

	schema := pageSchemaFor(formType)
	for i, r := range results {
		if err := schema.Validate(r); err != nil {
			log.Warn("extract.page.schema_mismatch", "page", i+1, "error", err)
		}
	}

	out := PolicyFor(formType)(results)
	log.Info("extract.ok", "pages", pages, "elapsed_ms", time.Since(start).Milliseconds())
	return out, nil
}

// inferPages returns one model result per page, indexed by page. Calls run
// with bounded concurrency; order of the returned slice never depends on it.
func (e *Extractor) inferPages(ctx context.Context, path, prompt string, pages int) ([]any, error) {
	results := make([]any, pages)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.PageConcurrency)

	for i := 0; i < pages; i++ {
		g.Go(func() error {
			img, err := e.renderer.RenderPageToPNG(gctx, path, i, e.opts.Scale)
			if err != nil {
				return common.NewExtractionError(fmt.Sprintf("render page %d", i+1), err)
			}
			out, err := e.gateway.InferJSON(gctx, prompt, img)
			if err != nil {
				return common.NewExtractionError(fmt.Sprintf("model call for page %d", i+1), err)
			}
			results[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
