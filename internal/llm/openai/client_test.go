package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestCompleteAttachesDataURL(t *testing.T) {
	var payload map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer sk-test" {
			t.Errorf("unexpected auth header %q", r.Header.Get("Authorization"))
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"{\"wages\":\"100.00\"}"}}]}`))
	}))
	defer server.Close()

	c := NewClient(Config{APIKey: "sk-test", BaseURL: server.URL}, nil)
	text, err := c.Complete(context.Background(), "extract", []byte("png"))
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if text != `{"wages":"100.00"}` {
		t.Fatalf("unexpected text %q", text)
	}

	content := payload["messages"].([]any)[0].(map[string]any)["content"].([]any)
	url := content[1].(map[string]any)["image_url"].(map[string]any)["url"].(string)
	if !strings.HasPrefix(url, "data:image/png;base64,") {
		t.Fatalf("unexpected image url %q", url)
	}
}

func TestCompleteNoChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer server.Close()

	if _, err := NewClient(Config{BaseURL: server.URL}, nil).Complete(context.Background(), "p", nil); err == nil {
		t.Fatalf("expected error for empty choices")
	}
}
