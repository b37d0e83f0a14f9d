package server

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/joseph-ayodele/taxdocs/constants"
	"github.com/joseph-ayodele/taxdocs/internal/common"
	"github.com/joseph-ayodele/taxdocs/internal/export"
	"github.com/joseph-ayodele/taxdocs/internal/pipeline"
	"github.com/joseph-ayodele/taxdocs/internal/repository"
)

// storeProcessor records uploads straight into the store as W-2s.
type storeProcessor struct {
	store *repository.Store
}

func (p *storeProcessor) Process(ctx context.Context, req pipeline.UploadRequest) (pipeline.Result, error) {
	sum := sha256.Sum256([]byte(filepath.Base(req.SourcePath)))
	doc, created, err := p.store.CreateDocument(ctx, repository.NewDocument{
		FilePath: req.SourcePath,
		FileHash: hex.EncodeToString(sum[:]),
		Filer:    req.Filer,
		TaxYear:  req.TaxYear,
	})
	if err != nil {
		return pipeline.Result{}, err
	}
	if !created {
		return pipeline.Result{Document: doc, Deduplicated: true}, nil
	}
	return p.Reprocess(ctx, doc.ID)
}

func (p *storeProcessor) Reprocess(ctx context.Context, id uuid.UUID) (pipeline.Result, error) {
	_, err := p.store.SaveExtraction(ctx, repository.SaveExtractionRequest{
		DocumentID:               id,
		DocType:                  constants.FormW2,
		ClassificationConfidence: 0.95,
		ClassificationMethod:     constants.MethodText,
		Data:                     map[string]any{"employer_name": "Acme", "wages": "50000.00", "federal_withheld": "5000.00"},
		OverallConfidence:        0.97,
	})
	if err != nil {
		return pipeline.Result{}, err
	}
	doc, err := p.store.Get(ctx, id)
	return pipeline.Result{Document: doc}, err
}

type testEnv struct {
	client *Client
	conn   *grpc.ClientConn
	dir    string
}

func newTestEnv(t *testing.T) *testEnv {
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

	svc := NewService(Deps{
		Store:     store,
		Processor: &storeProcessor{store: store},
		Exporter:  export.NewService(store, logger),
		Logger:    logger,
	})
	gs, _ := NewGRPCServer(svc, logger)
	lis := bufconn.Listen(1 << 20)
	go func() { _ = gs.Serve(lis) }()
	t.Cleanup(gs.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return &testEnv{client: NewClient(conn), conn: conn, dir: dir}
}

func mustStruct(t *testing.T, m map[string]any) *structpb.Struct {
	t.Helper()
	s, err := structpb.NewStruct(m)
	if err != nil {
		t.Fatalf("NewStruct: %v", err)
	}
	return s
}

func (e *testEnv) upload(t *testing.T, name string) string {
	t.Helper()
	out, err := e.client.Upload(context.Background(), mustStruct(t, map[string]any{
		"path":     filepath.Join(e.dir, name),
		"filer":    "jane",
		"tax_year": 2024,
	}))
	if err != nil {
		t.Fatalf("Upload(%s) error = %v", name, err)
	}
	return out.Fields["document"].GetStructValue().Fields["id"].GetStringValue()
}

func TestHealthServing(t *testing.T) {
	env := newTestEnv(t)
	resp, err := healthpb.NewHealthClient(env.conn).Check(context.Background(), &healthpb.HealthCheckRequest{Service: ServiceName})
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		t.Fatalf("status = %v", resp.GetStatus())
	}
}

func TestUploadGetAndDedup(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	id := env.upload(t, "w2.pdf")

	again, err := env.client.Upload(ctx, mustStruct(t, map[string]any{"path": filepath.Join(env.dir, "w2.pdf")}))
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if !again.Fields["deduplicated"].GetBoolValue() {
		t.Fatalf("second upload should be deduplicated")
	}

	got, err := env.client.GetDocument(ctx, mustStruct(t, map[string]any{"id": id}))
	if err != nil {
		t.Fatalf("GetDocument() error = %v", err)
	}
	doc := got.Fields["document"].GetStructValue()
	if doc.Fields["doc_type"].GetStringValue() != "W-2" || doc.Fields["status"].GetStringValue() != "processed" {
		t.Fatalf("unexpected document: %v", doc)
	}
	if n := len(got.Fields["extracted_fields"].GetListValue().GetValues()); n != 3 {
		t.Fatalf("extracted fields = %d", n)
	}
}

func TestErrorCodes(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	tests := []struct {
		name string
		call func() error
		want codes.Code
	}{
		{"missing path", func() error {
			_, err := env.client.Upload(ctx, &structpb.Struct{})
			return err
		}, codes.InvalidArgument},
		{"bad id", func() error {
			_, err := env.client.GetDocument(ctx, mustStruct(t, map[string]any{"id": "nope"}))
			return err
		}, codes.InvalidArgument},
		{"unknown id", func() error {
			_, err := env.client.GetDocument(ctx, mustStruct(t, map[string]any{"id": uuid.NewString()}))
			return err
		}, codes.NotFound},
		{"bad export format", func() error {
			_, err := env.client.Export(ctx, mustStruct(t, map[string]any{"format": "pdf"}))
			return err
		}, codes.InvalidArgument},
		{"fractional year", func() error {
			_, err := env.client.ListDocuments(ctx, mustStruct(t, map[string]any{"tax_year": 2024.5}))
			return err
		}, codes.InvalidArgument},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := status.Code(tt.call()); got != tt.want {
				t.Fatalf("code = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestUpdateMetadataValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	id := env.upload(t, "w2.pdf")

	_, err := env.client.UpdateMetadata(ctx, mustStruct(t, map[string]any{"id": id, "tax_year": 1850}))
	if status.Code(err) != codes.InvalidArgument {
		t.Fatalf("expected InvalidArgument, got %v", err)
	}

	out, err := env.client.UpdateMetadata(ctx, mustStruct(t, map[string]any{"id": id, "filer": "john", "notes": "checked"}))
	if err != nil {
		t.Fatalf("UpdateMetadata() error = %v", err)
	}
	doc := out.Fields["document"].GetStructValue()
	if doc.Fields["filer"].GetStringValue() != "john" || doc.Fields["tax_year"].GetNumberValue() != 2024 {
		t.Fatalf("unexpected document: %v", doc)
	}
}

func TestReviewListStatsDelete(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	first := env.upload(t, "a.pdf")
	env.upload(t, "b.pdf")

	if _, err := env.client.MarkNeedsReview(ctx, mustStruct(t, map[string]any{"id": first, "notes": "box 12 unclear"})); err != nil {
		t.Fatalf("MarkNeedsReview() error = %v", err)
	}
	list, err := env.client.ListDocuments(ctx, mustStruct(t, map[string]any{"needs_review": true}))
	if err != nil {
		t.Fatalf("ListDocuments() error = %v", err)
	}
	docs := list.Fields["documents"].GetListValue().GetValues()
	if len(docs) != 1 || docs[0].GetStructValue().Fields["id"].GetStringValue() != first {
		t.Fatalf("needs_review list = %v", docs)
	}

	stats, err := env.client.Stats(ctx, nil)
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if stats.Fields["total"].GetNumberValue() != 2 || stats.Fields["needs_review"].GetNumberValue() != 1 {
		t.Fatalf("stats = %v", stats)
	}

	if _, err := env.client.DeleteDocument(ctx, mustStruct(t, map[string]any{"id": first})); err != nil {
		t.Fatalf("DeleteDocument() error = %v", err)
	}
	_, err = env.client.GetDocument(ctx, mustStruct(t, map[string]any{"id": first}))
	if status.Code(err) != codes.NotFound {
		t.Fatalf("deleted document should be gone, got %v", err)
	}
}

func TestExportFormats(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	id := env.upload(t, "w2.pdf")

	csv, err := env.client.Export(ctx, mustStruct(t, map[string]any{"format": "csv_wide", "id": id}))
	if err != nil {
		t.Fatalf("Export(csv_wide) error = %v", err)
	}
	content := csv.Fields["content"].GetStringValue()
	if !strings.HasPrefix(content, "document_id,doc_type") || !strings.Contains(content, "employer_name") {
		t.Fatalf("unexpected csv: %q", content)
	}

	xlsx, err := env.client.Export(ctx, mustStruct(t, map[string]any{"format": "xlsx"}))
	if err != nil {
		t.Fatalf("Export(xlsx) error = %v", err)
	}
	raw, err := base64.StdEncoding.DecodeString(xlsx.Fields["content"].GetStringValue())
	if err != nil || len(raw) < 4 || string(raw[:2]) != "PK" {
		t.Fatalf("xlsx payload is not a zip archive")
	}
}

func TestIngestDirectory(t *testing.T) {
	env := newTestEnv(t)
	root := filepath.Join(env.dir, "inbox")
	if err := os.MkdirAll(filepath.Join(root, ".hidden"), 0o755); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"a.pdf", "b.png", "notes.txt", ".hidden/c.pdf"} {
		if err := os.WriteFile(filepath.Join(root, name), []byte(name), 0o600); err != nil {
			t.Fatal(err)
		}
	}

	out, err := env.client.IngestDirectory(context.Background(), mustStruct(t, map[string]any{"root": root}))
	if err != nil {
		t.Fatalf("IngestDirectory() error = %v", err)
	}
	if out.Fields["matched"].GetNumberValue() != 2 || out.Fields["succeeded"].GetNumberValue() != 2 {
		t.Fatalf("stats = %v", out)
	}
	for _, r := range out.Fields["results"].GetListValue().GetValues() {
		if r.GetStructValue().Fields["document_id"].GetStringValue() == "" {
			t.Fatalf("result without document id: %v", r)
		}
	}
}

func TestRequestIDPropagates(t *testing.T) {
	var seen string
	interceptor := unaryInterceptor(slog.New(slog.DiscardHandler))
	ctx := common.WithRequestID(context.Background(), "req-7")
	_, _ = interceptor(ctx, nil, &grpc.UnaryServerInfo{FullMethod: "/x"}, func(ctx context.Context, _ any) (any, error) {
		seen = common.RequestIDFromContext(ctx)
		return nil, nil
	})
	if seen != "req-7" {
		t.Fatalf("request id = %q", seen)
	}
}
