package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRunAccounting(t *testing.T) {
	m := New()

	m.StartRun()
	m.StartRun()
	if got := testutil.ToFloat64(m.runsInFlight); got != 2 {
		t.Fatalf("in flight = %v", got)
	}
	m.FinishRun("processed", time.Second)
	m.FinishRun("needs_review", 2*time.Second)

	if got := testutil.ToFloat64(m.runsInFlight); got != 0 {
		t.Fatalf("in flight after finish = %v", got)
	}
	if got := testutil.ToFloat64(m.runsTotal.WithLabelValues("processed")); got != 1 {
		t.Fatalf("processed = %v", got)
	}
	if got := testutil.ToFloat64(m.runsTotal.WithLabelValues("needs_review")); got != 1 {
		t.Fatalf("needs_review = %v", got)
	}
}

func TestHandlerExposesModelCalls(t *testing.T) {
	m := New()
	m.ObserveModelCall("ollama", "ok", 300*time.Millisecond)
	m.ObserveModelCall("ollama", "timeout", time.Minute)
	m.ObserveClassification("W-2", "text")
	m.SetQueueDepth(3)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)

	for _, want := range []string{
		`taxdocs_model_calls_total{backend="ollama",outcome="timeout"} 1`,
		`taxdocs_pipeline_classified_total{doc_type="W-2",method="text"} 1`,
		`taxdocs_queue_depth 3`,
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}
