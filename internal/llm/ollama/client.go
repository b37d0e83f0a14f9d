package ollama

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/joseph-ayodele/taxdocs/internal/llm"
)

// Config for the local Ollama client.
type Config struct {
	BaseURL string // default http://localhost:11434
	Model   string // must be a vision-capable model
	Timeout time.Duration
}

type Client struct {
	cfg    Config
	http   *http.Client
	logger *slog.Logger
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:11434"
	}
	if cfg.Model == "" {
		cfg.Model = "llama3.2"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

func (c *Client) Name() string { return "ollama" }

type chatResponse struct {
	Message struct {
		Content string `json:"content"`
	} `json:"message"`
	Error string `json:"error"`
}

// Complete calls /api/chat without streaming at temperature 0.
func (c *Client) Complete(ctx context.Context, prompt string, png []byte) (string, error) {
	body := map[string]any{
		"model":  c.cfg.Model,
		"stream": false,
		"messages": []map[string]any{
			{
				"role":    "user",
				"content": prompt,
				"images":  []string{base64.StdEncoding.EncodeToString(png)},
			},
		},
		"options": map[string]any{"temperature": 0},
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/api/chat"
	raw, err := llm.SendJSON(ctx, c.http, endpoint, body, nil, c.logger)
	if err != nil {
		return "", err
	}

	var resp chatResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", fmt.Errorf("decode ollama chat response: %w", err)
	}
	if resp.Error != "" {
		return "", fmt.Errorf("ollama chat: %s", resp.Error)
	}
	return resp.Message.Content, nil
}
