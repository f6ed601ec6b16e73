package core

import (
	"context"
	"fmt"
	"strings"

	"docchat.dev/pdf-rag/internal/llm"
	"docchat.dev/pdf-rag/internal/logger"
)

const (
	titleSystemInstruction = "You are a helpful assistant that generates concise titles for documents. " +
		"The title should be 3-5 words maximum. Just return the title itself, nothing else."

	titleTemperature = float32(0.3)
	titleMaxTokens   = 20
	titleMaxRunes    = 120
	titleInputRunes  = 1200
)

// TitleGenerator asks the completion model for a short chat title. It is best
// effort: every failure falls back to the caller's title.
type TitleGenerator struct {
	log       *logger.Logger
	completer llm.Completer
}

func NewTitleGenerator(completer llm.Completer, log *logger.Logger) *TitleGenerator {
	return &TitleGenerator{log: log.With("service", "TitleGenerator"), completer: completer}
}

func (g *TitleGenerator) Generate(ctx context.Context, text, fallback string) string {
	text = strings.TrimSpace(text)
	if text == "" || g.completer == nil {
		return fallback
	}
	if r := []rune(text); len(r) > titleInputRunes {
		text = string(r[:titleInputRunes])
	}

	resp, err := g.completer.Complete(ctx, llm.CompletionRequest{
		System: titleSystemInstruction,
		Messages: []llm.Message{{
			Role:    llm.RoleUser,
			Content: fmt.Sprintf("Generate a very concise title (3-5 words maximum) for a document that starts with: \"%s\".", text),
		}},
		Temperature: titleTemperature,
		MaxTokens:   titleMaxTokens,
	})
	if err != nil {
		g.log.Warn("Title generation failed, using fallback", "fallback", fallback, "error", err)
		return fallback
	}

	title := strings.Trim(resp, "\"'\n\r\t .")
	if title == "" {
		return fallback
	}
	if r := []rune(title); len(r) > titleMaxRunes {
		title = string(r[:titleMaxRunes])
	}
	return title
}
