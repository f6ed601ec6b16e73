package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"docchat.dev/pdf-rag/internal/llm"
	"docchat.dev/pdf-rag/internal/logger"
	"docchat.dev/pdf-rag/internal/store"
)

const (
	DefaultEmbedBatchSize = 5
	DefaultEmbedPause     = 200 * time.Millisecond
)

// ErrEmbeddingStopped is returned when the progress callback asked to stop.
var ErrEmbeddingStopped = errors.New("embedding stopped by consumer")

// ChunkOutcome describes one finished chunk. Err is nil on success.
type ChunkOutcome struct {
	Index int
	Done  int
	Total int
	Err   error
}

// EmbedReport summarises a run. Failed holds the indices that were skipped.
type EmbedReport struct {
	Attempted int
	Succeeded int
	Failed    []int
}

// ChunkWriter persists one embedded chunk.
type ChunkWriter interface {
	InsertChunk(ctx context.Context, chunk *store.Chunk) error
}

// ChunkEmbedder embeds and persists chunks one at a time, in index order. A
// failure on one chunk is logged and the run moves on to the next.
type ChunkEmbedder struct {
	log       *logger.Logger
	embedder  llm.Embedder
	writer    ChunkWriter
	batchSize int
	pause     time.Duration
}

func NewChunkEmbedder(embedder llm.Embedder, writer ChunkWriter, batchSize int, pause time.Duration, log *logger.Logger) *ChunkEmbedder {
	if batchSize <= 0 {
		batchSize = DefaultEmbedBatchSize
	}
	if pause < 0 {
		pause = 0
	}
	return &ChunkEmbedder{
		log:       log.With("service", "ChunkEmbedder"),
		embedder:  embedder,
		writer:    writer,
		batchSize: batchSize,
		pause:     pause,
	}
}

// EmbedChunks runs the whole sequence. onChunk, when set, is called after every
// chunk; returning false stops the run with ErrEmbeddingStopped. Cancelling ctx
// stops the run before the next chunk.
func (e *ChunkEmbedder) EmbedChunks(ctx context.Context, documentID string, chunks []TextChunk, metadata map[string]any, onChunk func(ChunkOutcome) bool) (EmbedReport, error) {
	report := EmbedReport{Failed: []int{}}

	limit := rate.Inf
	if e.pause > 0 {
		limit = rate.Every(e.pause)
	}
	pacer := rate.NewLimiter(limit, 1)

	for i, chunk := range chunks {
		if i%e.batchSize == 0 {
			if err := pacer.Wait(ctx); err != nil {
				return report, fmt.Errorf("embedding paused before chunk %d: %w", chunk.Index, err)
			}
		}
		if err := ctx.Err(); err != nil {
			return report, err
		}

		report.Attempted++
		err := e.embedOne(ctx, documentID, chunk, metadata)
		if err != nil {
			report.Failed = append(report.Failed, chunk.Index)
			e.log.Warn("Skipping chunk after embedding failure", "document_id", documentID, "chunk_index", chunk.Index, "error", err)
		} else {
			report.Succeeded++
		}

		if onChunk != nil && !onChunk(ChunkOutcome{Index: chunk.Index, Done: i + 1, Total: len(chunks), Err: err}) {
			return report, ErrEmbeddingStopped
		}
	}

	e.log.Info("Embedded document chunks", "document_id", documentID, "attempted", report.Attempted, "succeeded", report.Succeeded, "failed", len(report.Failed))
	return report, nil
}

func (e *ChunkEmbedder) embedOne(ctx context.Context, documentID string, chunk TextChunk, metadata map[string]any) error {
	vec, err := e.embedder.Embed(ctx, chunk.Text)
	if err != nil {
		return fmt.Errorf("embed chunk %d: %w", chunk.Index, err)
	}
	return e.writer.InsertChunk(ctx, &store.Chunk{
		DocumentID: documentID,
		ChunkIndex: chunk.Index,
		Text:       chunk.Text,
		Metadata:   metadata,
		Embedding:  vec,
	})
}
