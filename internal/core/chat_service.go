package core

import (
	"context"
	"fmt"
	"strings"

	"docchat.dev/pdf-rag/internal/logger"
	"docchat.dev/pdf-rag/internal/store"
)

type ChatService struct {
	log        *logger.Logger
	dbStore    *store.Store
	ragService *RAGService
}

func NewChatService(db *store.Store, rag *RAGService, log *logger.Logger) *ChatService {
	return &ChatService{
		log:        log.With("service", "ChatService"),
		dbStore:    db,
		ragService: rag,
	}
}

// SyncUser creates or refreshes the caller's profile from identity claims.
func (s *ChatService) SyncUser(ctx context.Context, u *store.User) (*store.User, error) {
	return s.dbStore.UpsertUser(ctx, u)
}

func (s *ChatService) ListChats(ctx context.Context, ownerID string) ([]store.Chat, error) {
	return s.dbStore.ListChats(ctx, ownerID)
}

func (s *ChatService) GetChatDetail(ctx context.Context, chatID, ownerID string) (*store.ChatDetail, error) {
	return s.dbStore.GetChatDetail(ctx, chatID, ownerID, 0)
}

// Source is a retrieved chunk returned alongside an answer.
type Source struct {
	ChunkIndex int            `json:"chunkIndex"`
	Text       string         `json:"text"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Distance   float64        `json:"distance"`
}

type MessageExchange struct {
	UserMessage store.Message `json:"userMessage"`
	AIMessage   store.Message `json:"aiMessage"`
	Sources     []Source      `json:"sources"`
}

// SendMessage stores the question, answers it from the chat's document and
// stores the answer. A retrieval failure is returned after the question has
// been stored.
func (s *ChatService) SendMessage(ctx context.Context, chatID, ownerID, question string, k int) (*MessageExchange, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, ErrInvalidQuestion
	}

	chat, err := s.dbStore.GetChat(ctx, chatID, ownerID)
	if err != nil {
		return nil, err
	}

	userMsg := &store.Message{Kind: store.MessageKindUser, Content: question}
	if err := s.dbStore.AppendMessage(ctx, chat, userMsg); err != nil {
		return nil, fmt.Errorf("failed to store user message: %w", err)
	}

	answer, retrieval, err := s.ragService.Answer(ctx, chat.DocumentID, question, k)
	if err != nil {
		return nil, fmt.Errorf("failed to answer question: %w", err)
	}

	sources := make([]Source, 0, len(retrieval.Chunks))
	for _, c := range retrieval.Chunks {
		sources = append(sources, Source{ChunkIndex: c.ChunkIndex, Text: c.Text, Metadata: c.Metadata, Distance: c.Distance})
	}

	aiMsg := &store.Message{
		Kind:     store.MessageKindAI,
		Content:  answer,
		Metadata: map[string]any{"sources": sourceRefs(sources)},
	}
	if err := s.dbStore.AppendMessage(ctx, chat, aiMsg); err != nil {
		return nil, fmt.Errorf("failed to store model message: %w", err)
	}

	s.log.Debug("Answered question", "chat_id", chatID, "sources", len(sources))
	return &MessageExchange{UserMessage: *userMsg, AIMessage: *aiMsg, Sources: sources}, nil
}

// sourceRefs is the compact form kept in message metadata.
func sourceRefs(sources []Source) []map[string]any {
	refs := make([]map[string]any, 0, len(sources))
	for _, src := range sources {
		refs = append(refs, map[string]any{"chunkIndex": src.ChunkIndex, "distance": src.Distance})
	}
	return refs
}
