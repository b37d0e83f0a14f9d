package anthropic

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/joseph-ayodele/taxdocs/internal/llm"
)

func TestCompleteSendsImageAndPrompt(t *testing.T) {
	var payload map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/messages" {
			http.NotFound(w, r)
			return
		}
		if r.Header.Get("x-api-key") != "key" || r.Header.Get("anthropic-version") == "" {
			t.Errorf("missing auth headers: %v", r.Header)
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		_, _ = w.Write([]byte(`{"content":[{"type":"text","text":"{\"a\":"},{"type":"text","text":"1}"}],"stop_reason":"end_turn"}`))
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "key", BaseURL: server.URL, Model: "claude-haiku-4-5"}, nil)
	text, err := client.Complete(context.Background(), "extract", []byte("PNGDATA"))
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if text != `{"a":1}` {
		t.Fatalf("unexpected text %q", text)
	}

	msgs := payload["messages"].([]any)
	content := msgs[0].(map[string]any)["content"].([]any)
	img := content[0].(map[string]any)
	src := img["source"].(map[string]any)
	if img["type"] != "image" || src["media_type"] != "image/png" {
		t.Fatalf("unexpected image block %v", img)
	}
	if src["data"] != base64.StdEncoding.EncodeToString([]byte("PNGDATA")) {
		t.Fatalf("image not base64 encoded")
	}
	if content[1].(map[string]any)["text"] != "extract" {
		t.Fatalf("prompt block missing")
	}
}

func TestCompleteStatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"type":"overloaded_error"}}`, 529)
	}))
	defer server.Close()

	gw := llm.NewGateway(NewClient(Config{APIKey: "key", BaseURL: server.URL}, nil), 0, nil)
	_, err := gw.InferJSON(context.Background(), "p", []byte("x"))
	if !llm.IsTransport(err) {
		t.Fatalf("expected transport-kind error, got %v", err)
	}
}
