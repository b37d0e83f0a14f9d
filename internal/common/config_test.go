package common

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfigDefaultsWhenFileMissing(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.Model.Backend != "local" || cfg.Model.LocalModel != "llama3.2" {
		t.Fatalf("unexpected model defaults: %+v", cfg.Model)
	}
	if cfg.Model.CloudModel != "claude-haiku-4-5" {
		t.Fatalf("unexpected cloud model default: %q", cfg.Model.CloudModel)
	}
	if cfg.Database.Driver != "sqlite" || cfg.Database.DSN != cfg.Storage.DBPath() {
		t.Fatalf("expected sqlite dsn under data dir, got %q / %q", cfg.Database.Driver, cfg.Database.DSN)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}

func TestLoadConfigFileThenEnv(t *testing.T) {
	path := writeConfig(t, `
storage:
  data_dir: /var/lib/taxdocs
model:
  backend: local
  local_model: llava
  timeout: 45s
review:
  min_overall_confidence: 0.8
`)
	t.Setenv("LOCAL_MODEL", "qwen2.5vl")
	t.Setenv("REVIEW_MIN_CLASSIFICATION", "0.55")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.Storage.DataDir != "/var/lib/taxdocs" {
		t.Fatalf("data dir = %q", cfg.Storage.DataDir)
	}
	if cfg.Model.LocalModel != "qwen2.5vl" {
		t.Fatalf("env should override file, got %q", cfg.Model.LocalModel)
	}
	if cfg.Model.Timeout != 45*time.Second {
		t.Fatalf("timeout = %v", cfg.Model.Timeout)
	}
	if cfg.Review.MinOverallConfidence != 0.8 || cfg.Review.MinClassificationConfidence != 0.55 {
		t.Fatalf("review thresholds = %+v", cfg.Review)
	}
	if cfg.Storage.UploadsDir() != "/var/lib/taxdocs/uploads" {
		t.Fatalf("uploads dir = %q", cfg.Storage.UploadsDir())
	}
}

func TestLoadConfigMalformedYAML(t *testing.T) {
	path := writeConfig(t, "model: [unterminated")
	_, err := LoadConfig(path)
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected invalid input error, got %v", err)
	}
}

func TestValidateCloudRequiresPrivacyAcknowledgement(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Database.DSN = "tax.db"
	cfg.Model.Backend = "cloud"
	cfg.Model.APIKey = "sk-test"

	err := cfg.Validate()
	var ae *AppError
	if !errors.As(err, &ae) || ae.Code != "PRIVACY_NOT_ACKNOWLEDGED" {
		t.Fatalf("expected privacy error, got %v", err)
	}

	cfg.Model.PrivacyAcknowledged = true
	if err := cfg.Validate(); err != nil {
		t.Fatalf("acknowledged cloud config should validate: %v", err)
	}
}

func TestValidateRejectsBadThresholds(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Database.DSN = "tax.db"
	cfg.Review.MinOverallConfidence = 1.5
	if err := cfg.Validate(); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}

	cfg = DefaultConfig()
	cfg.Database.DSN = "tax.db"
	cfg.Review.ClassificationWeight = 0
	cfg.Review.CompletenessWeight = 0
	if err := cfg.Validate(); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected invalid input for zero weights, got %v", err)
	}
}

func TestConfigHolderSwap(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Database.DSN = "tax.db"
	h := NewConfigHolder(&cfg)

	snap := h.Snapshot()
	next := cfg
	next.Review.MinOverallConfidence = 0.9
	if err := h.Swap(&next); err != nil {
		t.Fatalf("Swap() error = %v", err)
	}
	if snap.Review.MinOverallConfidence != 0.75 {
		t.Fatalf("earlier snapshot changed: %v", snap.Review.MinOverallConfidence)
	}
	if got := h.Snapshot().Review.MinOverallConfidence; got != 0.9 {
		t.Fatalf("new snapshot = %v", got)
	}

	bad := next
	bad.Model.Backend = "carrier-pigeon"
	if err := h.Swap(&bad); err == nil {
		t.Fatalf("expected invalid config to be rejected")
	}
	if h.Snapshot().Model.Backend != "local" {
		t.Fatalf("rejected swap must not change the active snapshot")
	}
}
