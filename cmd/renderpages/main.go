// Command renderpages prints the page count and text layer of a document and
// writes each page as a PNG, the same way the classifier and extractor see it.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joseph-ayodele/taxdocs/internal/common"
	"github.com/joseph-ayodele/taxdocs/internal/render"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	outDir := flag.String("out", "", "directory for page PNGs (default: no images)")
	scale := flag.Float64("scale", 0, "raster scale (default from config)")
	flag.Parse()
	if flag.NArg() != 1 {
		logger.Error("usage", "cmd", "renderpages [-out dir] [-scale n] <file>")
		os.Exit(2)
	}
	path := flag.Arg(0)

	cfg, err := common.LoadConfig(os.Getenv("TAXDOCS_CONFIG"))
	if err != nil {
		logger.Error("load config", "error", err)
		os.Exit(1)
	}
	if *scale <= 0 {
		*scale = cfg.Render.Scale
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	r := render.New(render.Config{Pdftoppm: cfg.Render.Pdftoppm}, nil, logger)
	start := time.Now()
	pages, err := r.PageCount(ctx, path)
	if err != nil {
		logger.Error("page count failed", "error", err)
		os.Exit(1)
	}

	for i := 0; i < pages; i++ {
		text, err := r.ExtractText(ctx, path, i)
		if err != nil {
			logger.Warn("text layer unreadable", "page", i+1, "error", err)
		}
		logger.Info("page text",
			"page", i+1,
			"chars", len(text),
			"preview", preview(text, 200),
		)

		if *outDir == "" {
			continue
		}
		png, err := r.RenderPageToPNG(ctx, path, i, *scale)
		if err != nil {
			logger.Error("render failed", "page", i+1, "error", err)
			os.Exit(1)
		}
		name := filepath.Join(*outDir, fmt.Sprintf("%s-p%03d.png", strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)), i+1))
		if err := os.MkdirAll(*outDir, 0o755); err != nil {
			logger.Error("create output dir", "error", err)
			os.Exit(1)
		}
		if err := os.WriteFile(name, png, 0o644); err != nil {
			logger.Error("write page", "path", name, "error", err)
			os.Exit(1)
		}
		logger.Info("page rendered", "page", i+1, "path", name, "bytes", len(png))
	}

	logger.Info("render OK",
		"pages", pages,
		"duration_ms", time.Since(start).Milliseconds(),
	)
}

func preview(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
