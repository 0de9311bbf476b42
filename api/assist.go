package api

import (
	"context"
	"errors"

	"github.com/adeilh/scribe/ai"
	"github.com/adeilh/scribe/httpx"
)

type contentForm struct {
	Content string `json:"content" form:"content"`
}

// assistTask describes one writing helper endpoint.
type assistTask struct {
	run     func(context.Context, string) (string, error)
	field   string
	empty   string
	failure string
}

func (a *API) summarize(c httpx.Context) error {
	return a.assist(c, assistTask{
		run:     a.assistant.Summarize,
		field:   "summary",
		empty:   "Content is required",
		failure: "Failed to generate summary",
	})
}

func (a *API) suggestTitle(c httpx.Context) error {
	return a.assist(c, assistTask{
		run:     a.assistant.SuggestTitle,
		field:   "title",
		empty:   "Blog content is required",
		failure: "Failed to generate title",
	})
}

func (a *API) correctGrammar(c httpx.Context) error {
	return a.assist(c, assistTask{
		run:     a.assistant.CorrectGrammar,
		field:   "corrected",
		empty:   "Content is required for grammar correction",
		failure: "Failed to correct grammar",
	})
}

// assist errors use the {"error": msg} body of the writing helpers.
func (a *API) assist(c httpx.Context, t assistTask) error {
	var f contentForm
	if err := c.Bind(&f); err != nil {
		return c.JSON(httpx.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}
	out, err := t.run(c.Request().Context(), f.Content)
	switch {
	case errors.Is(err, ai.ErrEmptyContent):
		return c.JSON(httpx.StatusBadRequest, map[string]string{"error": t.empty})
	case errors.Is(err, ai.ErrDisabled):
		return c.JSON(httpx.StatusServiceUnavailable, map[string]string{"error": "AI features are not configured"})
	case err != nil:
		return c.JSON(httpx.StatusBadGateway, map[string]string{"error": t.failure})
	}
	return c.JSON(httpx.StatusOK, map[string]string{t.field: out})
}
