// Command llm runs classification and extraction on one file against the
// configured model backend, repeatedly, without touching the store. It is
// for checking prompt and backend stability.
package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/joseph-ayodele/taxdocs/internal/classify"
	"github.com/joseph-ayodele/taxdocs/internal/common"
	"github.com/joseph-ayodele/taxdocs/internal/extract"
	"github.com/joseph-ayodele/taxdocs/internal/llm/backends"
	"github.com/joseph-ayodele/taxdocs/internal/metrics"
	"github.com/joseph-ayodele/taxdocs/internal/render"
	"github.com/joseph-ayodele/taxdocs/internal/review"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if len(os.Args) < 2 {
		logger.Error("usage: llm <file> [times]")
		os.Exit(2)
	}
	path := os.Args[1]
	times := 1
	if len(os.Args) >= 3 {
		if n, err := strconv.Atoi(os.Args[2]); err == nil && n > 0 {
			times = n
		}
	}

	_ = godotenv.Load()
	cfg, err := common.LoadConfig(os.Getenv("TAXDOCS_CONFIG"))
	if err == nil {
		err = cfg.Validate()
	}
	if err != nil {
		logger.Error("invalid config", "error", err)
		os.Exit(2)
	}

	ctx := context.Background()
	m := metrics.New()
	gw, closer, err := backends.New(ctx, cfg.Model, m, logger)
	if err != nil {
		logger.Error("model backend", "error", err)
		os.Exit(1)
	}
	defer closer.Close()

	renderer := render.New(render.Config{Pdftoppm: cfg.Render.Pdftoppm}, nil, logger)
	classifier := classify.New(renderer, gw, cfg.Render.Scale, logger)
	extractor := extract.New(renderer, gw, extract.Options{
		Scale:           cfg.Render.Scale,
		PageConcurrency: cfg.Extract.PageConcurrency,
	}, logger)
	policy := review.NewPolicy(cfg.Review)

	for i := 1; i <= times; i++ {
		runCtx, cancelRun := context.WithTimeout(ctx, 5*time.Minute)
		start := time.Now()
		logger.Info("probe.run.start", "iter", i, "path", path)

		cls, err := classifier.Classify(runCtx, path)
		if err != nil {
			cancelRun()
			logger.Error("probe.classify.error", "iter", i, "error", err)
			continue
		}
		data, err := extractor.Extract(runCtx, path, cls.DocType)
		cancelRun()
		if err != nil {
			logger.Error("probe.extract.error", "iter", i, "doc_type", cls.DocType, "error", err)
			continue
		}

		outcome := policy.Evaluate(cls.DocType, data, cls.Confidence)
		raw, _ := json.Marshal(data)
		logger.Info("probe.run.ok",
			"iter", i,
			"doc_type", cls.DocType,
			"method", cls.Method,
			"classification_confidence", cls.Confidence,
			"overall_confidence", outcome.OverallConfidence,
			"missing", outcome.Missing,
			"needs_review", outcome.NeedsReview,
			"elapsed_ms", time.Since(start).Milliseconds(),
			"extraction", string(raw),
		)
	}

	logger.Info("done", "path", path, "times", times)
}
