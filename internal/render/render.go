// Package render turns stored documents into what the model and the classifier
// consume: page counts, per-page text, and per-page PNG rasters.
package render

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"

	"github.com/joseph-ayodele/taxdocs/constants"
)

// Renderer is the rendering collaborator used by the classifier and the extractor.
// Page indexes are zero-based.
type Renderer interface {
	PageCount(ctx context.Context, path string) (int, error)
	ExtractText(ctx context.Context, path string, page int) (string, error)
	RenderPageToPNG(ctx context.Context, path string, page int, scale float64) ([]byte, error)
}

type Config struct {
	Pdftoppm string // path to pdftoppm
}

// DocumentRenderer renders PDFs through pdftoppm and reads their text layer
// in-process. Images are a single page with no text layer.
type DocumentRenderer struct {
	cfg    Config
	runner Runner
	logger *slog.Logger
}

func New(cfg Config, runner Runner, logger *slog.Logger) *DocumentRenderer {
	if cfg.Pdftoppm == "" {
		cfg.Pdftoppm = "pdftoppm"
	}
	if logger == nil {
		logger = slog.Default()
	}
	if runner == nil {
		runner = ExecRunner{Logger: logger}
	}
	return &DocumentRenderer{cfg: cfg, runner: runner, logger: logger}
}

func (r *DocumentRenderer) PageCount(_ context.Context, path string) (int, error) {
	if !constants.IsPDF(filepath.Ext(path)) {
		return 1, nil
	}
	n, err := api.PageCountFile(path)
	if err != nil {
		return 0, fmt.Errorf("count pages of %s: %w", filepath.Base(path), err)
	}
	return n, nil
}

func (r *DocumentRenderer) ExtractText(_ context.Context, path string, page int) (text string, err error) {
	if !constants.IsPDF(filepath.Ext(path)) {
		return "", nil
	}
	// the pdf reader panics on some malformed xref tables
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("read text of %s page %d: %v", filepath.Base(path), page+1, rec)
		}
	}()

	f, reader, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("open pdf %s: %w", filepath.Base(path), err)
	}
	defer f.Close()

	if page < 0 || page >= reader.NumPage() {
		return "", fmt.Errorf("page %d out of range (document has %d)", page+1, reader.NumPage())
	}
	p := reader.Page(page + 1)
	if p.V.IsNull() {
		return "", nil
	}
	text, err = p.GetPlainText(nil)
	if err != nil {
		return "", fmt.Errorf("read text of %s page %d: %w", filepath.Base(path), page+1, err)
	}
	return NormalizeText(text), nil
}

func (r *DocumentRenderer) RenderPageToPNG(ctx context.Context, path string, page int, scale float64) ([]byte, error) {
	if page < 0 {
		return nil, fmt.Errorf("page index %d is negative", page)
	}
	if !constants.IsPDF(filepath.Ext(path)) {
		if page != 0 {
			return nil, fmt.Errorf("image %s has a single page, got index %d", filepath.Base(path), page)
		}
		return imageToPNG(path)
	}
	if scale <= 0 {
		scale = 2
	}

	tmpDir, err := os.MkdirTemp("", "taxdocs-render-*")
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := os.RemoveAll(tmpDir); err != nil {
			r.logger.Warn("render.cleanup_failed", "dir", tmpDir, "error", err)
		}
	}()

	// pdftoppm -f N -l N -r DPI -png -singlefile <in.pdf> <tmp/page>
	prefix := filepath.Join(tmpDir, "page")
	n := strconv.Itoa(page + 1)
	dpi := strconv.Itoa(int(72 * scale))
	_, errb, err := r.runner.Run(ctx, r.cfg.Pdftoppm, "-f", n, "-l", n, "-r", dpi, "-png", "-singlefile", path, prefix)
	if err != nil {
		msg := strings.TrimSpace(string(errb))
		if msg == "" {
			return nil, fmt.Errorf("pdftoppm page %s: %w", n, err)
		}
		return nil, fmt.Errorf("pdftoppm page %s: %w: %s", n, err, msg)
	}

	out, err := os.ReadFile(prefix + ".png")
	if err != nil {
		return nil, fmt.Errorf("pdftoppm produced no image for page %s: %w", n, err)
	}
	return out, nil
}

// imageToPNG decodes a JPEG or PNG upload and re-encodes it as PNG so every
// backend receives the same media type.
func imageToPNG(path string) ([]byte, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("decode image %s: %w", filepath.Base(path), err)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}
