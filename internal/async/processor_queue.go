package async

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/joseph-ayodele/taxdocs/internal/common"
	"github.com/joseph-ayodele/taxdocs/internal/pipeline"
)

// Runner is satisfied by *pipeline.Processor.
type Runner interface {
	Process(ctx context.Context, req pipeline.UploadRequest) (pipeline.Result, error)
}

// DepthGauge receives the number of jobs waiting. *metrics.PipelineMetrics satisfies it.
type DepthGauge interface {
	SetQueueDepth(n int)
}

// ResultFunc is called by the worker after each job finishes.
type ResultFunc func(job Job, res pipeline.Result, err error)

type ProcessorQueue struct {
	proc     Runner
	logger   *slog.Logger
	workers  int
	timeout  time.Duration
	depth    DepthGauge
	onResult ResultFunc

	ch   chan Job
	wg   sync.WaitGroup
	once sync.Once

	// senders hold mu for reading; Shutdown takes it for writing before
	// closing ch, after done has released any blocked sender.
	mu   sync.RWMutex
	done chan struct{}
	stop sync.Once
}

type Option func(*ProcessorQueue)

func WithWorkers(n int) Option {
	return func(q *ProcessorQueue) {
		if n > 0 {
			q.workers = n
		}
	}
}

func WithQueueSize(n int) Option {
	return func(q *ProcessorQueue) {
		if n > 0 {
			q.ch = make(chan Job, n)
		}
	}
}

func WithProcessTimeout(d time.Duration) Option {
	return func(q *ProcessorQueue) {
		if d > 0 {
			q.timeout = d
		}
	}
}

func WithDepthGauge(g DepthGauge) Option {
	return func(q *ProcessorQueue) { q.depth = g }
}

func WithResultFunc(fn ResultFunc) Option {
	return func(q *ProcessorQueue) { q.onResult = fn }
}

func NewProcessorQueue(proc Runner, logger *slog.Logger, opts ...Option) *ProcessorQueue {
	if logger == nil {
		logger = slog.Default()
	}
	q := &ProcessorQueue{
		proc:    proc,
		logger:  logger,
		workers: 2,
		timeout: 5 * time.Minute,
		ch:      make(chan Job, 64),
		done:    make(chan struct{}),
	}
	for _, o := range opts {
		o(q)
	}
	q.start()
	return q
}

func (q *ProcessorQueue) start() {
	q.once.Do(func() {
		for i := 0; i < q.workers; i++ {
			q.wg.Add(1)
			go q.work(i + 1)
		}
	})
}

func (q *ProcessorQueue) work(workerID int) {
	defer q.wg.Done()
	q.logger.Info("queue.worker.started", "worker_id", workerID)

	for job := range q.ch {
		q.reportDepth()
		ctx := context.Background()
		if job.RequestID != "" {
			ctx = common.WithRequestID(ctx, job.RequestID)
		}
		ctx, cancel := context.WithTimeout(ctx, q.timeout)
		res, err := q.proc.Process(ctx, job.request())
		cancel()

		log := common.LoggerFrom(ctx, q.logger).With("worker_id", workerID, "path", job.SourcePath)
		switch {
		case err != nil:
			log.Error("queue.job.failed", "error", err)
		case res.Failure != nil:
			log.Warn("queue.job.needs_review", "document_id", res.Document.ID, "error", res.Failure)
		default:
			log.Info("queue.job.ok",
				"document_id", res.Document.ID,
				"deduplicated", res.Deduplicated,
				"waited_ms", time.Since(job.SubmittedAt).Milliseconds(),
			)
		}
		if q.onResult != nil {
			q.onResult(job, res, err)
		}
	}

	q.logger.Info("queue.worker.stopped", "worker_id", workerID)
}

// Enqueue blocks while the queue is full until ctx is done or the queue
// shuts down.
func (q *ProcessorQueue) Enqueue(ctx context.Context, job Job) error {
	if job.SubmittedAt.IsZero() {
		job.SubmittedAt = time.Now()
	}
	if job.RequestID == "" {
		job.RequestID = common.RequestIDFromContext(ctx)
	}

	q.mu.RLock()
	defer q.mu.RUnlock()
	select {
	case <-q.done:
		q.logger.Warn("queue.enqueue.rejected", "path", job.SourcePath)
		return ErrQueueClosed
	default:
	}
	select {
	case q.ch <- job:
	default:
		q.logger.Warn("queue.full", "path", job.SourcePath, "capacity", cap(q.ch))
		select {
		case q.ch <- job:
		case <-q.done:
			q.logger.Warn("queue.enqueue.rejected", "path", job.SourcePath)
			return ErrQueueClosed
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	q.reportDepth()
	q.logger.Debug("queue.enqueued", "path", job.SourcePath)
	return nil
}

// Len is the number of jobs waiting for a worker.
func (q *ProcessorQueue) Len() int { return len(q.ch) }

func (q *ProcessorQueue) reportDepth() {
	if q.depth != nil {
		q.depth.SetQueueDepth(len(q.ch))
	}
}

// Shutdown stops accepting jobs and waits for the workers to drain the
// queue or for ctx to end.
func (q *ProcessorQueue) Shutdown(ctx context.Context) {
	q.stop.Do(func() {
		close(q.done)
		q.mu.Lock()
		close(q.ch)
		q.mu.Unlock()
	})

	drained := make(chan struct{})
	go func() { defer close(drained); q.wg.Wait() }()

	select {
	case <-ctx.Done():
		q.logger.Warn("queue.shutdown.interrupted")
	case <-drained:
		q.logger.Info("queue.shutdown.drained")
	}
}
