package core

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docchat.dev/pdf-rag/internal/logger"
	"docchat.dev/pdf-rag/internal/store"
)

func newChatFixture(t *testing.T) (*pipeline, *ChatService, *store.ChatDetail) {
	t.Helper()
	p := newPipeline(t, strings.Repeat("The quick brown fox. ", 100), IngestOptions{ChunkSize: 500, ChunkOverlap: 100})
	detail, err := p.ingestor.Ingest(context.Background(), pdfRequest("user_1"))
	require.NoError(t, err)

	rag := NewRAGService(p.db, p.embedder, p.completer, 3, logger.Nop())
	return p, NewChatService(p.db, rag, logger.Nop()), detail
}

func TestSendMessageStoresBothTurns(t *testing.T) {
	p, svc, detail := newChatFixture(t)
	p.completer.answer = "A fox."

	exchange, err := svc.SendMessage(context.Background(), detail.ID, "user_1", "  Who is quick?  ", 0)
	require.NoError(t, err)

	assert.Equal(t, store.MessageKindUser, exchange.UserMessage.Kind)
	assert.Equal(t, "Who is quick?", exchange.UserMessage.Content)
	assert.Equal(t, store.MessageKindAI, exchange.AIMessage.Kind)
	assert.Equal(t, "A fox.", exchange.AIMessage.Content)
	assert.Len(t, exchange.Sources, 3)
	for i := 1; i < len(exchange.Sources); i++ {
		assert.LessOrEqual(t, exchange.Sources[i-1].Distance, exchange.Sources[i].Distance)
	}
	assert.Len(t, exchange.AIMessage.Metadata["sources"], 3)

	got, err := svc.GetChatDetail(context.Background(), detail.ID, "user_1")
	require.NoError(t, err)
	require.Len(t, got.Messages, 3)
	assert.Equal(t, "A fox.", got.Messages[0].Content)
	assert.Equal(t, WelcomeMessage, got.Messages[2].Content)
	require.NotNil(t, got.LastMessageContent)
	assert.Equal(t, "A fox.", *got.LastMessageContent)
	assert.Equal(t, store.MessageKindAI, *got.LastMessageKind)
}

func TestSendMessageValidation(t *testing.T) {
	_, svc, detail := newChatFixture(t)

	_, err := svc.SendMessage(context.Background(), detail.ID, "user_1", " ", 0)
	assert.ErrorIs(t, err, ErrInvalidQuestion)

	_, err = svc.SendMessage(context.Background(), "missing", "user_1", "hello", 0)
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = svc.SendMessage(context.Background(), detail.ID, "someone_else", "hello", 0)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestSendMessageReturnsRetrievalFailure(t *testing.T) {
	p, svc, detail := newChatFixture(t)
	p.embedder.fail = map[int]bool{p.embedder.Calls() + 1: true}

	_, err := svc.SendMessage(context.Background(), detail.ID, "user_1", "hello", 0)
	assert.ErrorIs(t, err, ErrUpstream)
}

func TestListChatsScopedToOwner(t *testing.T) {
	p, svc, detail := newChatFixture(t)
	_, err := p.ingestor.Ingest(context.Background(), pdfRequest("user_2"))
	require.NoError(t, err)

	chats, err := svc.ListChats(context.Background(), "user_1")
	require.NoError(t, err)
	require.Len(t, chats, 1)
	assert.Equal(t, detail.ID, chats[0].ID)
}

func TestSyncUser(t *testing.T) {
	_, svc, _ := newChatFixture(t)

	u, err := svc.SyncUser(context.Background(), &store.User{ExternalID: "user_1", Email: "a@example.com", FullName: "Ada"})
	require.NoError(t, err)
	assert.Equal(t, "a@example.com", u.Email)

	again, err := svc.SyncUser(context.Background(), &store.User{ExternalID: "user_1", Email: "ada@example.com", FullName: "Ada L"})
	require.NoError(t, err)
	assert.Equal(t, u.ID, again.ID)
	assert.Equal(t, "ada@example.com", again.Email)
	assert.Equal(t, "Ada L", again.FullName)
}

func TestGetChatDetailReturnsWholeHistory(t *testing.T) {
	p, svc, detail := newChatFixture(t)

	for i := 0; i < 120; i++ {
		msg := &store.Message{Kind: store.MessageKindUser, Content: "question"}
		require.NoError(t, p.db.AppendMessage(context.Background(), detail.Chat, msg))
	}

	got, err := svc.GetChatDetail(context.Background(), detail.ID, "user_1")
	require.NoError(t, err)
	assert.Len(t, got.Messages, 121)
	assert.Equal(t, WelcomeMessage, got.Messages[120].Content)
}
