// Package llm defines the embedding and chat-completion capabilities the
// pipeline consumes. Provider implementations live in the subpackages.
package llm

import (
	"context"
	"errors"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ErrEmptyResponse is returned by providers that answered without usable content.
var ErrEmptyResponse = errors.New("empty response from model provider")

// Embedder turns text into a fixed-dimensionality vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

type Message struct {
	Role    string
	Content string
}

type CompletionRequest struct {
	System      string
	Messages    []Message
	Temperature float32
	MaxTokens   int
}

// Completer generates text from a conversation.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// Provider is a client that offers both capabilities and owns resources.
type Provider interface {
	Embedder
	Completer
	Close() error
}
