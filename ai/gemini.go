package ai

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/adeilh/scribe/httpx"
)

const (
	DefaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	DefaultGeminiModel   = "gemini-1.5-flash"
)

// GeminiConfig configures the Gemini generateContent client.
type GeminiConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
	// Retries re-sends a request after a 429, a 5xx or a transport error.
	Retries int
}

// Gemini implements Model over the Gemini REST API.
type Gemini struct {
	client *httpx.Client
	model  string
}

var _ Model = (*Gemini)(nil)

func NewGemini(cfg GeminiConfig) (*Gemini, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("ai: gemini api key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultGeminiBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultGeminiModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	client := httpx.NewClient(
		httpx.WithBaseURL(strings.TrimRight(cfg.BaseURL, "/")),
		httpx.WithClientTimeout(cfg.Timeout),
		httpx.WithRetry(cfg.Retries, 0, 0),
		httpx.WithUserAgent("scribe-assistant"),
		httpx.WithHeaders(map[string]string{
			"Content-Type":   "application/json",
			"x-goog-api-key": cfg.APIKey,
		}),
	)
	return &Gemini{client: client, model: cfg.Model}, nil
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
}

// Generate sends prompt as a single user turn and returns the text parts
// of the first candidate.
func (g *Gemini) Generate(ctx context.Context, prompt string) (string, error) {
	body := geminiRequest{Contents: []geminiContent{{Role: "user", Parts: []geminiPart{{Text: prompt}}}}}
	path := "/models/" + url.PathEscape(g.model) + ":generateContent"

	resp, err := g.client.Post(ctx, path, body, nil)
	if err != nil {
		var se *httpx.StatusError
		if errors.As(err, &se) {
			if msg := gjson.Get(se.Body, "error.message").String(); msg != "" {
				return "", fmt.Errorf("gemini: HTTP %d: %s", se.Code, msg)
			}
		}
		return "", fmt.Errorf("gemini: %w", err)
	}

	r := gjson.ParseBytes(resp.Body())
	if reason := r.Get("promptFeedback.blockReason").String(); reason != "" {
		return "", fmt.Errorf("gemini: prompt blocked: %s", reason)
	}
	var sb strings.Builder
	r.Get("candidates.0.content.parts").ForEach(func(_, part gjson.Result) bool {
		sb.WriteString(part.Get("text").String())
		return true
	})
	if sb.Len() == 0 {
		return "", ErrNoCompletion
	}
	return sb.String(), nil
}
