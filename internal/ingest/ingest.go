package ingest

import (
	"context"
)

// Stored is the outcome of copying one file into the uploads directory.
type Stored struct {
	SourcePath       string
	StoredPath       string
	Hash             string // hex sha256 of the full content
	OriginalFilename string
	MimeType         string
	Reused           bool // an earlier copy with the same hash was kept
}

// FileResult is the per-file outcome of a directory walk.
type FileResult struct {
	Path         string
	Deduplicated bool
	Err          string
}

// DirStats summarizes a directory ingest.
type DirStats struct {
	Scanned      uint32
	Matched      uint32
	Succeeded    uint32
	Deduplicated uint32
	Failed       uint32
}

// Ingestor is the behavior the pipeline depends on.
type Ingestor interface {
	// Ingest hashes path and stores a copy, reusing an existing copy with the same hash.
	Ingest(ctx context.Context, path string) (Stored, error)
}
