package advisory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
)

// ErrNoAPIKey is returned when Gemini is called without a key.
var ErrNoAPIKey = errors.New("gemini api key not configured")

// GeminiConfig holds the generateContent endpoint settings.
type GeminiConfig struct {
	APIKey  string
	Model   string
	BaseURL string
	Timeout time.Duration
}

// GeminiClient calls the Gemini generateContent REST endpoint.
type GeminiClient struct {
	cfg GeminiConfig
}

type generateRequest struct {
	Contents []content `json:"contents"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

// NewGeminiClient creates a client with defaults for empty fields.
func NewGeminiClient(cfg GeminiConfig) *GeminiClient {
	if cfg.Model == "" {
		cfg.Model = "gemini-2.5-flash"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://generativelanguage.googleapis.com/v1beta"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &GeminiClient{cfg: cfg}
}

// Configured reports whether an API key is present.
func (g *GeminiClient) Configured() bool {
	return g.cfg.APIKey != ""
}

// Generate sends prompt and returns the concatenated text of the first
// candidate, trimmed. An empty string means the model returned no text.
func (g *GeminiClient) Generate(ctx context.Context, prompt string) (string, error) {
	if !g.Configured() {
		return "", ErrNoAPIKey
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	agent := fiber.Post(fmt.Sprintf("%s/models/%s:generateContent", g.cfg.BaseURL, g.cfg.Model))
	agent.Set("x-goog-api-key", g.cfg.APIKey)
	agent.JSON(generateRequest{Contents: []content{{Parts: []part{{Text: prompt}}}}})
	agent.Timeout(g.cfg.Timeout)

	code, body, errs := agent.Bytes()
	if len(errs) > 0 {
		return "", fmt.Errorf("gemini request failed: %w", errs[0])
	}
	if code < 200 || code >= 300 {
		return "", fmt.Errorf("gemini returned status %d", code)
	}

	var resp generateResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("failed to decode gemini response: %w", err)
	}
	if len(resp.Candidates) == 0 {
		return "", nil
	}

	var sb strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		sb.WriteString(p.Text)
	}
	return strings.TrimSpace(sb.String()), nil
}
