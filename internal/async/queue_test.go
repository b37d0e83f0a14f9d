package async

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/taxdocs/internal/common"
	"github.com/joseph-ayodele/taxdocs/internal/pipeline"
	"github.com/joseph-ayodele/taxdocs/internal/repository"
)

type fakeRunner struct {
	mu      sync.Mutex
	paths   []string
	reqIDs  []string
	release chan struct{}
	fail    map[string]error
}

func (f *fakeRunner) Process(ctx context.Context, req pipeline.UploadRequest) (pipeline.Result, error) {
	if f.release != nil {
		<-f.release
	}
	f.mu.Lock()
	f.paths = append(f.paths, req.SourcePath)
	f.reqIDs = append(f.reqIDs, common.RequestIDFromContext(ctx))
	f.mu.Unlock()
	if err := f.fail[req.SourcePath]; err != nil {
		return pipeline.Result{}, err
	}
	return pipeline.Result{Document: &repository.Document{ID: uuid.New()}}, nil
}

type gauge struct{ max atomic.Int64 }

func (g *gauge) SetQueueDepth(n int) {
	for {
		cur := g.max.Load()
		if int64(n) <= cur || g.max.CompareAndSwap(cur, int64(n)) {
			return
		}
	}
}

func discard() *slog.Logger { return slog.New(slog.DiscardHandler) }

func TestQueueProcessesAllJobsBeforeShutdown(t *testing.T) {
	runner := &fakeRunner{fail: map[string]error{"/in/b.pdf": errors.New("disk full")}}
	var (
		mu      sync.Mutex
		results = map[string]error{}
	)
	q := NewProcessorQueue(runner, discard(),
		WithWorkers(3),
		WithResultFunc(func(job Job, _ pipeline.Result, err error) {
			mu.Lock()
			results[job.SourcePath] = err
			mu.Unlock()
		}),
	)

	for _, p := range []string{"/in/a.pdf", "/in/b.pdf", "/in/c.pdf"} {
		if err := q.Enqueue(context.Background(), Job{SourcePath: p}); err != nil {
			t.Fatalf("Enqueue(%s) error = %v", p, err)
		}
	}
	q.Shutdown(context.Background())

	if len(results) != 3 {
		t.Fatalf("results = %v", results)
	}
	if results["/in/b.pdf"] == nil || results["/in/a.pdf"] != nil {
		t.Fatalf("unexpected results: %v", results)
	}
}

func TestEnqueueAfterShutdown(t *testing.T) {
	q := NewProcessorQueue(&fakeRunner{}, discard())
	q.Shutdown(context.Background())
	q.Shutdown(context.Background())

	if err := q.Enqueue(context.Background(), Job{SourcePath: "/in/a.pdf"}); !errors.Is(err, ErrQueueClosed) {
		t.Fatalf("expected ErrQueueClosed, got %v", err)
	}
}

func TestEnqueueFullQueueHonoursContext(t *testing.T) {
	runner := &fakeRunner{release: make(chan struct{})}
	g := &gauge{}
	q := NewProcessorQueue(runner, discard(), WithWorkers(1), WithQueueSize(1), WithDepthGauge(g))

	// first job occupies the worker, second fills the buffer
	if err := q.Enqueue(context.Background(), Job{SourcePath: "/in/1.pdf"}); err != nil {
		t.Fatal(err)
	}
	deadline := time.Now().Add(time.Second)
	for q.Len() != 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if err := q.Enqueue(context.Background(), Job{SourcePath: "/in/2.pdf"}); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	if err := q.Enqueue(ctx, Job{SourcePath: "/in/3.pdf"}); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if g.max.Load() < 1 {
		t.Fatalf("queue depth was never reported")
	}

	close(runner.release)
	q.Shutdown(context.Background())
	if len(runner.paths) != 2 {
		t.Fatalf("processed %v", runner.paths)
	}
}

func TestJobCarriesRequestID(t *testing.T) {
	runner := &fakeRunner{}
	q := NewProcessorQueue(runner, discard(), WithWorkers(1))

	ctx := common.WithRequestID(context.Background(), "req-42")
	if err := q.Enqueue(ctx, Job{SourcePath: "/in/a.pdf"}); err != nil {
		t.Fatal(err)
	}
	q.Shutdown(context.Background())

	if len(runner.reqIDs) != 1 || runner.reqIDs[0] != "req-42" {
		t.Fatalf("request ids = %v", runner.reqIDs)
	}
}

func TestShutdownReleasesBlockedProducers(t *testing.T) {
	runner := &fakeRunner{release: make(chan struct{})}
	q := NewProcessorQueue(runner, discard(), WithWorkers(1), WithQueueSize(1))

	if err := q.Enqueue(context.Background(), Job{SourcePath: "/in/1.pdf"}); err != nil {
		t.Fatal(err)
	}
	deadline := time.Now().Add(time.Second)
	for q.Len() != 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if err := q.Enqueue(context.Background(), Job{SourcePath: "/in/2.pdf"}); err != nil {
		t.Fatal(err)
	}

	errs := make(chan error, 2)
	for _, p := range []string{"/in/3.pdf", "/in/4.pdf"} {
		go func() { errs <- q.Enqueue(context.Background(), Job{SourcePath: p}) }()
	}
	time.Sleep(20 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	start := time.Now()
	q.Shutdown(ctx)
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("Shutdown took %v with producers blocked", elapsed)
	}

	for range 2 {
		select {
		case err := <-errs:
			if !errors.Is(err, ErrQueueClosed) {
				t.Fatalf("expected ErrQueueClosed, got %v", err)
			}
		case <-time.After(time.Second):
			t.Fatal("blocked producer was not released by Shutdown")
		}
	}

	close(runner.release)
	q.Shutdown(context.Background())
	if len(runner.paths) != 2 {
		t.Fatalf("processed %v", runner.paths)
	}
}
