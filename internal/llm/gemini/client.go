package gemini

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// Config for the Gemini client.
type Config struct {
	APIKey    string
	Model     string // e.g. "gemini-1.5-flash"
	MaxTokens int
}

type Client struct {
	cfg    Config
	client *genai.Client
	logger *slog.Logger
}

func NewClient(ctx context.Context, cfg Config, logger *slog.Logger) (*Client, error) {
	if cfg.Model == "" {
		cfg.Model = "gemini-1.5-flash"
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 2048
	}
	if logger == nil {
		logger = slog.Default()
	}
	cl, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}
	return &Client{cfg: cfg, client: cl, logger: logger}, nil
}

func (c *Client) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

func (c *Client) Name() string { return "gemini" }

// Complete sends the prompt and the page image as two parts of one request.
func (c *Client) Complete(ctx context.Context, prompt string, png []byte) (string, error) {
	m := c.client.GenerativeModel(c.cfg.Model)
	m.SetTemperature(0)
	m.SetMaxOutputTokens(int32(c.cfg.MaxTokens))
	m.ResponseMIMEType = "application/json"

	resp, err := m.GenerateContent(ctx, genai.Text(prompt), genai.ImageData("png", png))
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", nil
	}
	if resp.Candidates[0].FinishReason == genai.FinishReasonMaxTokens {
		c.logger.Warn("llm.gemini.truncated", "model", c.cfg.Model, "max_tokens", c.cfg.MaxTokens)
	}

	var b strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		if t, ok := p.(genai.Text); ok {
			b.WriteString(string(t))
		}
	}
	return b.String(), nil
}
