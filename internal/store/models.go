package store

import "time"

const (
	MessageKindUser = "user"
	MessageKindAI   = "ai"
)

type User struct {
	ID         string         `json:"id"`
	ExternalID string         `json:"external_id"`
	Email      string         `json:"email"`
	FullName   string         `json:"full_name"`
	Raw        map[string]any `json:"raw,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

type Document struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"owner_id"`
	FilePath  string    `json:"file_path"` // durable storage locator
	FileName  string    `json:"file_name"`
	CreatedAt time.Time `json:"created_at"`
}

type Chunk struct {
	ID         string         `json:"id"`
	DocumentID string         `json:"document_id"`
	ChunkIndex int            `json:"chunk_index"`
	Text       string         `json:"text"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Embedding  []float32      `json:"-"`
	CreatedAt  time.Time      `json:"created_at"`
}

// ScoredChunk is a chunk returned by a nearest-neighbour search together with its
// L2 distance to the query vector.
type ScoredChunk struct {
	Chunk
	Distance float64 `json:"distance"`
}

type Chat struct {
	ID                   string     `json:"id"`
	OwnerID              string     `json:"owner_id"`
	DocumentID           string     `json:"document_id"`
	Title                string     `json:"title"`
	LastMessageContent   *string    `json:"last_message_content"`
	LastMessageKind      *string    `json:"last_message_kind"`
	LastMessageCreatedAt *time.Time `json:"last_message_created_at"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
}

type Message struct {
	ID        string         `json:"id"`
	ChatID    string         `json:"chat_id"`
	Kind      string         `json:"kind"` // "user" or "ai"
	Content   string         `json:"content"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// ChatDetail is a chat with its document and messages, newest message first.
type ChatDetail struct {
	*Chat
	Document *Document `json:"document"`
	Messages []Message `json:"messages"`
}
