package repository

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/joseph-ayodele/taxdocs/constants"
	"github.com/joseph-ayodele/taxdocs/internal/common"
)

// setupPostgres starts a throwaway Postgres and returns a migrated store.
func setupPostgres(t *testing.T) *Store {
	t.Helper()
	if os.Getenv("TEST_INTEGRATION") == "" {
		t.Skip("skipping integration test: TEST_INTEGRATION not set")
	}

	ctx := context.Background()
	container, err := postgres.Run(ctx,
		"docker.io/postgres:17-alpine",
		postgres.WithDatabase("taxdocs_test"),
		postgres.WithUsername("taxdocs"),
		postgres.WithPassword("test-password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("start postgres container: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("terminate container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("connection string: %v", err)
	}
	logger := slog.New(slog.DiscardHandler)
	db, err := Open(ctx, common.DatabaseConfig{
		Driver:      "postgres",
		DSN:         dsn,
		MaxConns:    4,
		DialTimeout: 10 * time.Second,
	}, logger)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close(logger) })

	if err := db.HealthCheck(ctx, 5*time.Second, logger); err != nil {
		t.Fatalf("HealthCheck() error = %v", err)
	}
	if err := Migrate(ctx, db); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	// second run is a no-op
	if err := Migrate(ctx, db); err != nil {
		t.Fatalf("second Migrate() error = %v", err)
	}
	return NewStore(db, logger)
}

func TestPostgresStoreLifecycle(t *testing.T) {
	s := setupPostgres(t)
	ctx := context.Background()

	doc, created, err := s.CreateDocument(ctx, NewDocument{FilePath: "/tmp/none.pdf", FileHash: "pg-hash", PageCount: 2})
	if err != nil || !created {
		t.Fatalf("CreateDocument() = %v, %v", created, err)
	}
	again, created, err := s.CreateDocument(ctx, NewDocument{FilePath: "/tmp/none.pdf", FileHash: "pg-hash"})
	if err != nil || created || again.ID != doc.ID {
		t.Fatalf("dedup failed: %v %v %v", again, created, err)
	}

	if _, err := s.SaveExtraction(ctx, SaveExtractionRequest{
		DocumentID:               doc.ID,
		DocType:                  constants.Form1099DA,
		ClassificationConfidence: 0.9,
		ClassificationMethod:     constants.MethodText,
		Data:                     daExtraction(),
		OverallConfidence:        0.8,
	}); err != nil {
		t.Fatalf("SaveExtraction() error = %v", err)
	}
	txs, err := s.ListTransactions(ctx, doc.ID)
	if err != nil || len(txs) != 2 {
		t.Fatalf("ListTransactions() = %d, %v", len(txs), err)
	}

	st, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if st.Total != 1 || st.CryptoDocs != 1 || st.ReadyToExport != 1 {
		t.Fatalf("Stats() = %+v", st)
	}

	if err := s.Delete(ctx, doc.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := s.LatestExtraction(ctx, doc.ID); !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("extraction survived delete: %v", err)
	}
}
