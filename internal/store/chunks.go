package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"

	"docchat.dev/pdf-rag/internal/utils"
)

// InsertChunk persists one chunk and its embedding. The embedding must have the
// store's configured dimensionality.
func (s *Store) InsertChunk(ctx context.Context, chunk *Chunk) error {
	if len(chunk.Embedding) != s.dimensions {
		return fmt.Errorf("chunk %d has %d components, want %d: %w", chunk.ChunkIndex, len(chunk.Embedding), s.dimensions, ErrDimensionMismatch)
	}
	metadata, err := encodeJSONMap(chunk.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal chunk metadata: %w", err)
	}

	chunk.ID = uuid.NewString()
	chunk.CreatedAt = time.Now().UTC()

	var query string
	var embedding any
	switch s.dialect {
	case DialectPostgres:
		query = "INSERT INTO doc_chunks (id, document_id, chunk_index, text, metadata, embedding, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)"
		embedding = pgvector.NewVector(chunk.Embedding)
	default:
		query = "INSERT INTO doc_chunks (id, document_id, chunk_index, text, metadata, embedding_json, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)"
		b, err := json.Marshal(chunk.Embedding)
		if err != nil {
			return fmt.Errorf("failed to marshal embedding: %w", err)
		}
		embedding = string(b)
	}

	if _, err := s.exec(ctx, s.db, query, chunk.ID, chunk.DocumentID, chunk.ChunkIndex, chunk.Text, metadata, embedding, chunk.CreatedAt); err != nil {
		return fmt.Errorf("failed to insert chunk %d: %w", chunk.ChunkIndex, err)
	}
	return nil
}

// ListChunks returns every chunk of a document in index order, embeddings included.
func (s *Store) ListChunks(ctx context.Context, documentID string) ([]Chunk, error) {
	column := "embedding_json"
	if s.dialect == DialectPostgres {
		column = "embedding"
	}
	rows, err := s.query(ctx, "SELECT id, document_id, chunk_index, text, metadata, "+column+", created_at FROM doc_chunks WHERE document_id = ? ORDER BY chunk_index ASC", documentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query chunks: %w", err)
	}
	defer rows.Close()

	var chunks []Chunk
	for rows.Next() {
		var chunk Chunk
		var metadata sql.NullString
		var vec pgvector.Vector
		var embeddingJSON string

		dest := []any{&chunk.ID, &chunk.DocumentID, &chunk.ChunkIndex, &chunk.Text, &metadata, &embeddingJSON, &chunk.CreatedAt}
		if s.dialect == DialectPostgres {
			dest[5] = &vec
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("failed to scan chunk row: %w", err)
		}

		if s.dialect == DialectPostgres {
			chunk.Embedding = vec.Slice()
		} else if err := json.Unmarshal([]byte(embeddingJSON), &chunk.Embedding); err != nil {
			return nil, fmt.Errorf("failed to unmarshal embedding for chunk %s: %w", chunk.ID, err)
		}
		if chunk.Metadata, err = decodeJSONMap(metadata); err != nil {
			return nil, fmt.Errorf("failed to decode metadata for chunk %s: %w", chunk.ID, err)
		}
		chunks = append(chunks, chunk)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate chunks: %w", err)
	}
	return chunks, nil
}

// NearestChunks returns up to k chunks of one document ordered by increasing L2
// distance to the query vector. A query vector of the wrong dimensionality is an
// error, never an empty result.
func (s *Store) NearestChunks(ctx context.Context, documentID string, query []float32, k int) ([]ScoredChunk, error) {
	if len(query) != s.dimensions {
		return nil, fmt.Errorf("query vector has %d components, want %d: %w", len(query), s.dimensions, ErrDimensionMismatch)
	}
	if k <= 0 {
		return []ScoredChunk{}, nil
	}
	if s.dialect == DialectPostgres {
		return s.nearestChunksPgvector(ctx, documentID, query, k)
	}
	return s.nearestChunksScan(ctx, documentID, query, k)
}

func (s *Store) nearestChunksPgvector(ctx context.Context, documentID string, query []float32, k int) ([]ScoredChunk, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT id, document_id, chunk_index, text, metadata, created_at, embedding <-> $2 AS distance
        FROM doc_chunks
        WHERE document_id = $1
        ORDER BY embedding <-> $2
        LIMIT $3`,
		documentID, pgvector.NewVector(query), k)
	if err != nil {
		return nil, fmt.Errorf("failed to search chunks: %w", err)
	}
	defer rows.Close()

	results := make([]ScoredChunk, 0, k)
	for rows.Next() {
		var sc ScoredChunk
		var metadata sql.NullString
		if err := rows.Scan(&sc.ID, &sc.DocumentID, &sc.ChunkIndex, &sc.Text, &metadata, &sc.CreatedAt, &sc.Distance); err != nil {
			return nil, fmt.Errorf("failed to scan search row: %w", err)
		}
		if sc.Metadata, err = decodeJSONMap(metadata); err != nil {
			return nil, fmt.Errorf("failed to decode metadata for chunk %s: %w", sc.ID, err)
		}
		results = append(results, sc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate search rows: %w", err)
	}
	return results, nil
}

// nearestChunksScan is the SQLite path: an exact scan over the document's chunks.
func (s *Store) nearestChunksScan(ctx context.Context, documentID string, query []float32, k int) ([]ScoredChunk, error) {
	chunks, err := s.ListChunks(ctx, documentID)
	if err != nil {
		return nil, err
	}

	scored := make([]ScoredChunk, 0, len(chunks))
	for _, chunk := range chunks {
		if len(chunk.Embedding) != len(query) {
			return nil, fmt.Errorf("chunk %s has %d components, query has %d: %w", chunk.ID, len(chunk.Embedding), len(query), ErrDimensionMismatch)
		}
		d, err := utils.L2Distance(query, chunk.Embedding)
		if err != nil {
			return nil, err
		}
		chunk.Embedding = nil
		scored = append(scored, ScoredChunk{Chunk: chunk, Distance: d})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Distance < scored[j].Distance
	})
	if len(scored) > k {
		scored = scored[:k]
	}
	return scored, nil
}
