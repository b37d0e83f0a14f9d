// Package async runs uploads through the pipeline on a bounded pool of
// workers. The watcher and the daemon feed it; callers that need the outcome
// register a result hook.
package async

import (
	"context"
	"errors"
	"time"

	"github.com/joseph-ayodele/taxdocs/internal/pipeline"
)

var ErrQueueClosed = errors.New("queue is shutting down")

// Job is one file waiting to be processed.
type Job struct {
	SourcePath  string
	Filer       *string
	TaxYear     *int
	SubmittedAt time.Time
	RequestID   string
}

func (j Job) request() pipeline.UploadRequest {
	return pipeline.UploadRequest{SourcePath: j.SourcePath, Filer: j.Filer, TaxYear: j.TaxYear}
}

type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	Shutdown(ctx context.Context)
}
