package ingest

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/joseph-ayodele/taxdocs/constants"
	"github.com/joseph-ayodele/taxdocs/internal/common"
)

const hashPrefixLen = 12

// FSIngestor copies files into a flat uploads directory named
// <hash[:12]>_<original name>.
type FSIngestor struct {
	UploadsDir string
	logger     *slog.Logger
}

var _ Ingestor = (*FSIngestor)(nil)

func NewFSIngestor(uploadsDir string, logger *slog.Logger) *FSIngestor {
	if logger == nil {
		logger = slog.Default()
	}
	return &FSIngestor{UploadsDir: uploadsDir, logger: logger}
}

func (i *FSIngestor) Ingest(ctx context.Context, path string) (Stored, error) {
	logger := common.LoggerFrom(ctx, i.logger)
	if err := ctx.Err(); err != nil {
		return Stored{}, err
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return Stored{}, fmt.Errorf("abs path: %w", err)
	}
	ext := constants.NormalizeExt(filepath.Ext(abs))
	if !AllowedExt(ext) {
		logger.Warn("ingest.rejected", "path", abs, "ext", ext)
		return Stored{}, common.NewAppError("UNSUPPORTED_FILE",
			fmt.Sprintf("unsupported or missing extension %q", ext), common.ErrInvalidInput)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return Stored{}, common.NewAppError("SOURCE_UNREADABLE", abs, err)
	}
	if info.IsDir() {
		return Stored{}, common.NewAppError("SOURCE_UNREADABLE", abs+" is a directory", common.ErrInvalidInput)
	}

	hash, err := HashFile(abs)
	if err != nil {
		return Stored{}, err
	}
	out := Stored{
		SourcePath:       abs,
		Hash:             hash,
		OriginalFilename: filepath.Base(abs),
		MimeType:         constants.MimeForExt(ext),
	}

	if err := os.MkdirAll(i.UploadsDir, 0o755); err != nil {
		return Stored{}, fmt.Errorf("create uploads dir: %w", err)
	}
	if existing, ok := i.existingCopy(hash); ok {
		out.StoredPath = existing
		out.Reused = true
		logger.Info("ingest.reused", "hash", hash, "stored_path", existing)
		return out, nil
	}

	out.StoredPath = filepath.Join(i.UploadsDir, hash[:hashPrefixLen]+"_"+out.OriginalFilename)
	if err := copyAtomic(abs, out.StoredPath); err != nil {
		logger.Error("ingest.copy.failed", "path", abs, "error", err)
		return Stored{}, err
	}
	logger.Info("ingest.stored", "hash", hash, "stored_path", out.StoredPath, "bytes", info.Size())
	return out, nil
}

func (i *FSIngestor) existingCopy(hash string) (string, bool) {
	matches, err := filepath.Glob(filepath.Join(i.UploadsDir, hash[:hashPrefixLen]+"_*"))
	if err != nil || len(matches) == 0 {
		return "", false
	}
	for _, m := range matches {
		if h, err := HashFile(m); err == nil && h == hash {
			return m, true
		}
	}
	return "", false
}

// copyAtomic writes src into a temp file beside dst and renames it into place.
func copyAtomic(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open source: %w", err)
	}
	defer in.Close()

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".ingest-*")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, in); err != nil {
		tmp.Close()
		return fmt.Errorf("copy: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp: %w", err)
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return fmt.Errorf("rename: %w", err)
	}
	return nil
}
