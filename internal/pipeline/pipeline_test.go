package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/joseph-ayodele/taxdocs/constants"
	"github.com/joseph-ayodele/taxdocs/internal/classify"
	"github.com/joseph-ayodele/taxdocs/internal/common"
	"github.com/joseph-ayodele/taxdocs/internal/events"
	"github.com/joseph-ayodele/taxdocs/internal/ingest"
	"github.com/joseph-ayodele/taxdocs/internal/repository"
)

type fakeClassifier struct {
	mu    sync.Mutex
	calls int
	res   classify.Result
	err   error
}

func (f *fakeClassifier) Classify(context.Context, string) (classify.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.res, f.err
}

type fakeExtractor struct {
	mu    sync.Mutex
	calls int
	out   any
	err   error
	block bool
}

func (f *fakeExtractor) Extract(ctx context.Context, _ string, _ constants.FormType) (any, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.block {
		<-ctx.Done()
		return nil, common.NewExtractionError("page 1", ctx.Err())
	}
	return f.out, f.err
}

type fixedPages int

func (n fixedPages) PageCount(context.Context, string) (int, error) { return int(n), nil }

type recordingEvents struct {
	mu  sync.Mutex
	got []events.Processed
}

func (r *recordingEvents) PublishProcessed(_ context.Context, ev events.Processed) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, ev)
	return nil
}

func (r *recordingEvents) Close() {}

type harness struct {
	proc   *Processor
	store  *repository.Store
	cls    *fakeClassifier
	ext    *fakeExtractor
	events *recordingEvents
	src    string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	ctx := context.Background()
	logger := slog.New(slog.DiscardHandler)
	dir := t.TempDir()

	db, err := repository.Open(ctx, common.DatabaseConfig{Driver: "sqlite", DSN: filepath.Join(dir, "tax.db")}, logger)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close(logger) })
	if err := repository.Migrate(ctx, db); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	store := repository.NewStore(db, logger)

	h := &harness{
		store: store,
		cls: &fakeClassifier{res: classify.Result{
			DocType:    constants.FormW2,
			Confidence: 0.9,
			Method:     constants.MethodText,
		}},
		ext: &fakeExtractor{out: map[string]any{
			"employer_name":    "Acme",
			"wages":            "50000.00",
			"federal_withheld": "5000.00",
		}},
		events: &recordingEvents{},
		src:    filepath.Join(dir, "w2.pdf"),
	}
	if err := os.WriteFile(h.src, []byte("%PDF-1.4 w2"), 0o600); err != nil {
		t.Fatalf("write source: %v", err)
	}
	h.proc = NewProcessor(Deps{
		Ingestor:   ingest.NewFSIngestor(filepath.Join(dir, "uploads"), logger),
		Pages:      fixedPages(1),
		Classifier: h.cls,
		Extractor:  h.ext,
		Store:      store,
		Events:     h.events,
		Logger:     logger,
	})
	return h
}

func TestProcessHappyPath(t *testing.T) {
	h := newHarness(t)
	filer, year := "jane", 2024

	res, err := h.proc.Process(context.Background(), UploadRequest{SourcePath: h.src, Filer: &filer, TaxYear: &year})
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if res.Failure != nil || res.Deduplicated {
		t.Fatalf("unexpected result: %+v", res)
	}
	doc := res.Document
	if doc.Status != constants.StatusProcessed || doc.NeedsReview {
		t.Fatalf("status = %s needs_review = %v", doc.Status, doc.NeedsReview)
	}
	if doc.DocType != constants.FormW2 || *doc.Filer != "jane" || *doc.TaxYear != 2024 || doc.PageCount != 1 {
		t.Fatalf("unexpected document: %+v", doc)
	}
	if !strings.HasSuffix(doc.FilePath, "_w2.pdf") {
		t.Fatalf("stored path = %s", doc.FilePath)
	}
	if doc.OverallConfidence == nil || *doc.OverallConfidence < 0.9 {
		t.Fatalf("overall confidence = %v", doc.OverallConfidence)
	}
	if len(h.events.got) != 1 || h.events.got[0].Status != "processed" {
		t.Fatalf("events = %+v", h.events.got)
	}
}

func TestProcessDuplicateShortCircuits(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.cls.res = classify.Result{DocType: constants.Form1099DA, Confidence: 0.9, Method: constants.MethodText}
	h.ext.out = map[string]any{
		"header": map[string]any{"payer_name": "Coinbase"},
		"transactions": []any{
			map[string]any{"asset_code": "BTC", "proceeds": "100", "cost_basis": "80"},
			map[string]any{"asset_code": "ETH", "proceeds": "40", "cost_basis": "45"},
		},
		"is_multi_transaction": true,
	}

	first, err := h.proc.Process(ctx, UploadRequest{SourcePath: h.src})
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	id := first.Document.ID
	extBefore, err := h.store.LatestExtraction(ctx, id)
	if err != nil {
		t.Fatalf("LatestExtraction() error = %v", err)
	}
	txBefore, err := h.store.ListTransactions(ctx, id)
	if err != nil || len(txBefore) != 2 {
		t.Fatalf("ListTransactions() = %d, %v", len(txBefore), err)
	}

	copyPath := filepath.Join(filepath.Dir(h.src), "again.pdf")
	raw, _ := os.ReadFile(h.src)
	if err := os.WriteFile(copyPath, raw, 0o600); err != nil {
		t.Fatalf("write copy: %v", err)
	}

	second, err := h.proc.Process(ctx, UploadRequest{SourcePath: copyPath})
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if !second.Deduplicated || second.Document.ID != id {
		t.Fatalf("expected dedup to %s, got %+v", id, second)
	}
	if h.cls.calls != 1 || h.ext.calls != 1 {
		t.Fatalf("classifier calls = %d, extractor calls = %d, want 1 each", h.cls.calls, h.ext.calls)
	}
	docs, _ := h.store.List(ctx, repository.ListFilter{})
	if len(docs) != 1 {
		t.Fatalf("documents = %d", len(docs))
	}

	extAfter, err := h.store.LatestExtraction(ctx, id)
	if err != nil {
		t.Fatalf("LatestExtraction() error = %v", err)
	}
	if extAfter.ID != extBefore.ID {
		t.Fatalf("duplicate upload wrote extraction %s over %s", extAfter.ID, extBefore.ID)
	}
	txAfter, err := h.store.ListTransactions(ctx, id)
	if err != nil {
		t.Fatalf("ListTransactions() error = %v", err)
	}
	if len(txAfter) != len(txBefore) {
		t.Fatalf("transactions = %d, want %d", len(txAfter), len(txBefore))
	}
	for i := range txAfter {
		if txAfter[i].ID != txBefore[i].ID {
			t.Fatalf("transaction %d replaced: %s != %s", i, txAfter[i].ID, txBefore[i].ID)
		}
	}
}

func TestProcessConcurrentDuplicatesCreateOneDocument(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	results := make([]Result, 4)
	errs := make([]error, 4)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = h.proc.Process(ctx, UploadRequest{SourcePath: h.src})
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("upload %d: %v", i, err)
		}
		if results[i].Document.ID != results[0].Document.ID {
			t.Fatalf("uploads produced different documents")
		}
	}
	docs, _ := h.store.List(ctx, repository.ListFilter{})
	if len(docs) != 1 {
		t.Fatalf("documents = %d, want 1", len(docs))
	}
}

func TestExtractionFailureMarksNeedsReview(t *testing.T) {
	h := newHarness(t)
	h.ext.err = common.NewExtractionError("page 2", errors.New("model timeout"))

	res, err := h.proc.Process(context.Background(), UploadRequest{SourcePath: h.src})
	if err != nil {
		t.Fatalf("pipeline failures must not surface as errors: %v", err)
	}
	if !errors.Is(res.Failure, common.ErrExtraction) {
		t.Fatalf("failure = %v", res.Failure)
	}
	doc := res.Document
	if doc.Status != constants.StatusNeedsReview || !doc.NeedsReview {
		t.Fatalf("status = %s", doc.Status)
	}
	if doc.Notes == nil || !strings.Contains(*doc.Notes, "model timeout") {
		t.Fatalf("notes = %v", doc.Notes)
	}
	if _, err := h.store.LatestExtraction(context.Background(), doc.ID); !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("no partial extraction should be stored, got %v", err)
	}
}

func TestClassificationFailureMarksNeedsReview(t *testing.T) {
	h := newHarness(t)
	h.cls.err = common.NewClassificationError("read page 1", errors.New("corrupt xref"))

	res, err := h.proc.Process(context.Background(), UploadRequest{SourcePath: h.src})
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if res.Document.Status != constants.StatusNeedsReview || !strings.Contains(*res.Document.Notes, "corrupt xref") {
		t.Fatalf("unexpected document: %+v", res.Document)
	}
	if len(h.events.got) != 1 || h.events.got[0].Notes == "" {
		t.Fatalf("failed runs should publish with notes: %+v", h.events.got)
	}
}

func TestCancelledRunLeavesNeedsReview(t *testing.T) {
	h := newHarness(t)
	h.ext.block = true
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	res, err := h.proc.Process(ctx, UploadRequest{SourcePath: h.src})
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	got, err := h.store.Get(context.Background(), res.Document.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Status != constants.StatusNeedsReview {
		t.Fatalf("cancelled run left status %s", got.Status)
	}
}

func TestLowConfidenceNeedsReview(t *testing.T) {
	h := newHarness(t)
	h.cls.res = classify.Result{DocType: constants.FormW2, Confidence: 0.5, Method: constants.MethodVision}
	h.ext.out = map[string]any{"employer_name": "Acme", "wages": nil}

	res, err := h.proc.Process(context.Background(), UploadRequest{SourcePath: h.src})
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if res.Failure != nil {
		t.Fatalf("unexpected failure: %v", res.Failure)
	}
	if res.Document.Status != constants.StatusNeedsReview || !res.Document.NeedsReview {
		t.Fatalf("status = %s", res.Document.Status)
	}
}

func TestBlankRequiredFieldsNeedReview(t *testing.T) {
	h := newHarness(t)
	h.ext.out = map[string]any{
		"employer_name":    "  ",
		"wages":            "",
		"federal_withheld": map[string]any{},
	}

	res, err := h.proc.Process(context.Background(), UploadRequest{SourcePath: h.src})
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if res.Failure != nil {
		t.Fatalf("unexpected failure: %v", res.Failure)
	}
	doc := res.Document
	if doc.Status != constants.StatusNeedsReview || !doc.NeedsReview {
		t.Fatalf("blank W-2 stored as %s needs_review=%v", doc.Status, doc.NeedsReview)
	}
	if doc.OverallConfidence == nil || *doc.OverallConfidence >= 0.75 {
		t.Fatalf("overall confidence = %v", doc.OverallConfidence)
	}
}

func TestReprocessAppendsExtraction(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	first, err := h.proc.Process(ctx, UploadRequest{SourcePath: h.src})
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	before, err := h.store.LatestExtraction(ctx, first.Document.ID)
	if err != nil {
		t.Fatalf("LatestExtraction() error = %v", err)
	}

	h.ext.out = map[string]any{"employer_name": "Acme", "wages": "60000.00", "federal_withheld": "6000.00"}
	res, err := h.proc.Reprocess(ctx, first.Document.ID)
	if err != nil {
		t.Fatalf("Reprocess() error = %v", err)
	}
	after, err := h.store.LatestExtraction(ctx, res.Document.ID)
	if err != nil {
		t.Fatalf("LatestExtraction() error = %v", err)
	}
	if after.ID == before.ID || !strings.Contains(string(after.Data), "60000.00") {
		t.Fatalf("reprocess should append a new record, got %s", after.Data)
	}
	if h.cls.calls != 2 {
		t.Fatalf("classifier calls = %d", h.cls.calls)
	}
}

func TestIngestFailureReturnsError(t *testing.T) {
	h := newHarness(t)
	_, err := h.proc.Process(context.Background(), UploadRequest{SourcePath: filepath.Join(t.TempDir(), "notes.txt")})
	if !errors.Is(err, common.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}
