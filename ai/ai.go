// Package ai provides the writing helpers offered to authors: summaries,
// title suggestions and grammar correction, backed by a text generation
// model.
package ai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/adeilh/scribe/telemetry"
)

var (
	ErrEmptyContent = errors.New("ai: content is required")
	ErrNoCompletion = errors.New("ai: model returned no text")
	ErrDisabled     = errors.New("ai: no model configured")
)

const (
	TaskSummary = "summary"
	TaskTitle   = "title"
	TaskGrammar = "grammar"
)

// DefaultTitle is returned when no usable title line comes back.
const DefaultTitle = "Untitled"

// Model generates text for a prompt.
type Model interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Assistant runs the writing tasks against a Model.
type Assistant struct {
	model   Model
	log     *slog.Logger
	metrics *telemetry.Metrics
}

// Option configures an Assistant.
type Option func(*Assistant)

func WithLogger(log *slog.Logger) Option {
	return func(a *Assistant) {
		if log != nil {
			a.log = log
		}
	}
}

func WithMetrics(m *telemetry.Metrics) Option {
	return func(a *Assistant) { a.metrics = m }
}

// NewAssistant wraps model. A nil model yields an Assistant whose tasks
// fail with ErrDisabled.
func NewAssistant(model Model, opts ...Option) *Assistant {
	a := &Assistant{model: model, log: slog.Default()}
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}
	return a
}

// Summarize returns a short summary of content.
func (a *Assistant) Summarize(ctx context.Context, content string) (string, error) {
	return a.run(ctx, TaskSummary, content,
		"Summarize the following blog post in a concise, clear summary (max 3-4 sentences):\n\n")
}

// SuggestTitle proposes a single title for content.
func (a *Assistant) SuggestTitle(ctx context.Context, content string) (string, error) {
	raw, err := a.run(ctx, TaskTitle, content,
		"Generate only one short and catchy blog title for the following content. Respond with only the title.\n\n")
	if err != nil {
		return "", err
	}
	return cleanTitle(raw), nil
}

// CorrectGrammar returns content with grammar and spelling fixed.
func (a *Assistant) CorrectGrammar(ctx context.Context, content string) (string, error) {
	return a.run(ctx, TaskGrammar, content,
		"Correct the grammar and spelling of the following text. Return ONLY the corrected version:\n\n")
}

func (a *Assistant) run(ctx context.Context, task, content, instruction string) (string, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return "", ErrEmptyContent
	}
	if a.model == nil {
		return "", ErrDisabled
	}

	start := time.Now()
	out, err := a.model.Generate(ctx, instruction+content)
	if err == nil {
		out = strings.TrimSpace(out)
		if out == "" {
			err = ErrNoCompletion
		}
	}
	a.metrics.AIRequest(task, time.Since(start), err)
	if err != nil {
		a.log.ErrorContext(ctx, "ai task failed", slog.String("task", task), slog.Any("error", err))
		return "", fmt.Errorf("ai: %s: %w", task, err)
	}
	return out, nil
}

// cleanTitle strips markdown decoration and picks the first line that
// looks like a title rather than a preamble.
func cleanTitle(raw string) string {
	raw = strings.NewReplacer("*", "", "`", "", `"`, "", "#", "").Replace(raw)
	for _, line := range strings.Split(strings.TrimSpace(raw), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || len(line) <= 10 || strings.Contains(strings.ToLower(line), "title") {
			continue
		}
		return line
	}
	return DefaultTitle
}
