// Package ollama provides embeddings and chat completions from a local Ollama
// server, located through OLLAMA_HOST.
package ollama

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ollama/ollama/api"

	"docchat.dev/pdf-rag/internal/llm"
)

const (
	defaultChatModel  = "llama3.1"
	defaultEmbedModel = "nomic-embed-text"
)

type Config struct {
	ChatModel  string
	EmbedModel string
}

type Client struct {
	cli        *api.Client
	chatModel  string
	embedModel string
	keepAlive  *api.Duration
}

var _ llm.Provider = (*Client)(nil)

func NewClient(cfg Config) (*Client, error) {
	cli, err := api.ClientFromEnvironment()
	if err != nil {
		return nil, fmt.Errorf("failed to create ollama client: %w", err)
	}
	return New(cli, cfg), nil
}

// New wraps an existing api client.
func New(cli *api.Client, cfg Config) *Client {
	if cfg.ChatModel == "" {
		cfg.ChatModel = defaultChatModel
	}
	if cfg.EmbedModel == "" {
		cfg.EmbedModel = defaultEmbedModel
	}
	return &Client{
		cli:        cli,
		chatModel:  cfg.ChatModel,
		embedModel: cfg.EmbedModel,
		keepAlive:  &api.Duration{Duration: 60 * time.Minute},
	}
}

func (c *Client) Close() error { return nil }

func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := c.cli.Embeddings(ctx, &api.EmbeddingRequest{
		Model:     c.embedModel,
		Prompt:    text,
		KeepAlive: c.keepAlive,
	})
	if err != nil {
		return nil, fmt.Errorf("ollama embedding request failed: %w", err)
	}
	if len(resp.Embedding) == 0 {
		return nil, fmt.Errorf("ollama embedding: %w", llm.ErrEmptyResponse)
	}

	emb32 := make([]float32, len(resp.Embedding))
	for i, v := range resp.Embedding {
		emb32[i] = float32(v)
	}
	return emb32, nil
}

func (c *Client) Complete(ctx context.Context, req llm.CompletionRequest) (string, error) {
	messages := make([]api.Message, 0, len(req.Messages)+1)
	if req.System != "" {
		messages = append(messages, api.Message{Role: llm.RoleSystem, Content: req.System})
	}
	for _, m := range req.Messages {
		messages = append(messages, api.Message{Role: m.Role, Content: m.Content})
	}

	options := map[string]any{"temperature": req.Temperature}
	if req.MaxTokens > 0 {
		options["num_predict"] = req.MaxTokens
	}
	stream := false

	var out strings.Builder
	err := c.cli.Chat(ctx, &api.ChatRequest{
		Model:     c.chatModel,
		Messages:  messages,
		Stream:    &stream,
		Options:   options,
		KeepAlive: c.keepAlive,
	}, func(resp api.ChatResponse) error {
		out.WriteString(resp.Message.Content)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("ollama chat request failed: %w", err)
	}
	if strings.TrimSpace(out.String()) == "" {
		return "", fmt.Errorf("ollama chat: %w", llm.ErrEmptyResponse)
	}
	return out.String(), nil
}
