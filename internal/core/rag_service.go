package core

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"docchat.dev/pdf-rag/internal/llm"
	"docchat.dev/pdf-rag/internal/logger"
	"docchat.dev/pdf-rag/internal/store"
)

const (
	DefaultRetrievalK = 5
	MaxRetrievalK     = 20

	// UnknownAnswer is returned whenever the context cannot support an answer.
	UnknownAnswer = "I don't know"

	answerTemperature = float32(0.2)

	answerSystemInstruction = "You are a document analysis assistant."

	answerPromptTemplate = `You are a helpful assistant.
Use the provided context from the document to answer the user's question.

- If the answer is explicitly in the text, return it clearly.
- If the answer can be inferred (like counting items, summarizing, or combining information), do so.
- If the context is unrelated or insufficient, say "I don't know".

Context:
%s

Question: %s
Answer:`
)

var (
	ErrInvalidQuestion = errors.New("question must not be empty")
	ErrUpstream        = errors.New("model provider request failed")
)

// Retrieval is the outcome of a nearest-neighbour lookup.
type Retrieval struct {
	Context string
	Chunks  []store.ScoredChunk
}

type RAGService struct {
	log       *logger.Logger
	store     *store.Store
	embedder  llm.Embedder
	completer llm.Completer
	defaultK  int
}

func NewRAGService(db *store.Store, embedder llm.Embedder, completer llm.Completer, defaultK int, log *logger.Logger) *RAGService {
	if defaultK <= 0 {
		defaultK = DefaultRetrievalK
	}
	return &RAGService{
		log:       log.With("service", "RAGService"),
		store:     db,
		embedder:  embedder,
		completer: completer,
		defaultK:  defaultK,
	}
}

// ResolveK applies the default and the upper bound to a requested result count.
func (s *RAGService) ResolveK(k int) int {
	switch {
	case k <= 0:
		return s.defaultK
	case k > MaxRetrievalK:
		return MaxRetrievalK
	default:
		return k
	}
}

// Retrieve embeds the question and collects the k nearest chunks of one document.
// An embedding failure is returned as is; a document without chunks yields an
// empty context.
func (s *RAGService) Retrieve(ctx context.Context, documentID, question string, k int) (*Retrieval, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, ErrInvalidQuestion
	}

	queryEmbedding, err := s.embedder.Embed(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("failed to get query embedding: %w: %w", ErrUpstream, err)
	}

	chunks, err := s.store.NearestChunks(ctx, documentID, queryEmbedding, s.ResolveK(k))
	if err != nil {
		return nil, fmt.Errorf("failed to search chunks: %w", err)
	}

	parts := make([]string, 0, len(chunks))
	for i, c := range chunks {
		parts = append(parts, fmt.Sprintf("Chunk %d: %s", i+1, c.Text))
	}

	s.log.Debug("Retrieved chunks", "document_id", documentID, "count", len(chunks))
	return &Retrieval{Context: strings.Join(parts, "\n\n"), Chunks: chunks}, nil
}

// Synthesize asks the completion model to answer from the context. It never
// fails: an empty context, a provider error or an empty answer all yield
// UnknownAnswer.
func (s *RAGService) Synthesize(ctx context.Context, contextText, question string) string {
	if strings.TrimSpace(contextText) == "" {
		return UnknownAnswer
	}

	answer, err := s.completer.Complete(ctx, llm.CompletionRequest{
		System: answerSystemInstruction,
		Messages: []llm.Message{
			{Role: llm.RoleUser, Content: fmt.Sprintf(answerPromptTemplate, contextText, question)},
		},
		Temperature: answerTemperature,
	})
	if err != nil {
		s.log.Warn("Answer synthesis failed, falling back", "error", err)
		return UnknownAnswer
	}
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return UnknownAnswer
	}
	return answer
}

// Answer runs retrieval followed by synthesis.
func (s *RAGService) Answer(ctx context.Context, documentID, question string, k int) (string, *Retrieval, error) {
	retrieval, err := s.Retrieve(ctx, documentID, question, k)
	if err != nil {
		return "", nil, err
	}
	return s.Synthesize(ctx, retrieval.Context, question), retrieval, nil
}
