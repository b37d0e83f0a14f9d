package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/joseph-ayodele/taxdocs/internal/app"
	"github.com/joseph-ayodele/taxdocs/internal/async"
	"github.com/joseph-ayodele/taxdocs/internal/common"
	"github.com/joseph-ayodele/taxdocs/internal/ingest"
	"github.com/joseph-ayodele/taxdocs/internal/pipeline"
	"github.com/joseph-ayodele/taxdocs/internal/repository"
)

// printError prints an error message to stderr, falling back to stdout if stderr fails
func printError(format string, args ...any) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

type tally struct {
	mu           sync.Mutex
	processed    int
	needsReview  int
	deduplicated int
	failures     int
}

func (t *tally) record(_ async.Job, res pipeline.Result, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	switch {
	case err != nil:
		t.failures++
	case res.Deduplicated:
		t.deduplicated++
	case res.Document.NeedsReview:
		t.needsReview++
	default:
		t.processed++
	}
}

func main() {
	var (
		configPath = flag.String("config", "", "config file (default ~/.config/taxdocs/config.yaml)")
		dir        = flag.String("dir", "", "directory to process tax documents from (required)")
		out        = flag.String("out", "", "output XLSX file path (optional, defaults to parent directory)")
		filer      = flag.String("filer", "", "filer to record on every document")
		year       = flag.Int("year", 0, "tax year to record on every document")
		workers    = flag.Int("workers", 2, "documents processed in parallel")
	)
	flag.Parse()

	if *dir == "" {
		printError("Error: --dir is required\n")
		os.Exit(1)
	}
	if *out == "" {
		*out = filepath.Join(filepath.Dir(*dir), "taxdocs.xlsx")
	}

	_ = godotenv.Load()
	cfg, err := common.LoadConfig(*configPath)
	if err != nil {
		printError("Error: %v\n", err)
		os.Exit(1)
	}
	logger := common.NewLogger(os.Stdout, cfg.Log.Format, cfg.Log.Level)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.Build(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	var req pipeline.UploadRequest
	var filter repository.ListFilter
	if *filer != "" {
		req.Filer = filer
		filter.Filer = filer
	}
	if *year != 0 {
		req.TaxYear = year
		filter.TaxYear = year
	}

	t := &tally{}
	queue := async.NewProcessorQueue(a.Processor, logger,
		async.WithWorkers(*workers),
		async.WithProcessTimeout(10*time.Minute),
		async.WithDepthGauge(a.Metrics),
		async.WithResultFunc(t.record),
	)

	logger.Info("starting ingestion", "dir", *dir)
	_, stats, err := ingest.WalkDirectory(ctx, *dir, true, func(ctx context.Context, path string) (bool, error) {
		return false, queue.Enqueue(ctx, async.Job{SourcePath: path, Filer: req.Filer, TaxYear: req.TaxYear})
	})
	if err != nil {
		logger.Error("failed to walk directory", "error", err)
	}
	queue.Shutdown(context.Background())
	logger.Info("ingestion complete",
		"scanned", stats.Scanned,
		"matched", stats.Matched,
		"failed", stats.Failed,
	)

	logger.Info("exporting to XLSX", "output", *out)
	xlsx, err := a.Exporter.WorkbookXLSX(context.WithoutCancel(ctx), filter)
	if err != nil {
		logger.Error("failed to export documents", "error", err)
		os.Exit(1)
	}
	if err := os.WriteFile(*out, xlsx, 0o644); err != nil {
		logger.Error("failed to write output file", "error", err)
		os.Exit(1)
	}

	logger.Info("batch processing complete",
		"processed", t.processed,
		"needs_review", t.needsReview,
		"deduplicated", t.deduplicated,
		"failures", t.failures,
		"output_file", *out)

	fmt.Printf("Batch processing complete!\n")
	fmt.Printf("- Files matched: %d\n", stats.Matched)
	fmt.Printf("- Processed: %d\n", t.processed)
	fmt.Printf("- Needs review: %d\n", t.needsReview)
	fmt.Printf("- Duplicates: %d\n", t.deduplicated)
	fmt.Printf("- Failures: %d\n", t.failures)
	fmt.Printf("- Output: %s\n", *out)
}
