package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"docchat.dev/pdf-rag/internal/blob"
	"docchat.dev/pdf-rag/internal/logger"
	"docchat.dev/pdf-rag/internal/store"
)

const (
	DefaultIngestTimeout = 5 * time.Minute

	WelcomeMessage = "How can I assist you?"

	progressBuffer = 16
)

var (
	ErrNoFile            = errors.New("no file uploaded")
	ErrNoExtractableText = errors.New("no extractable text")
	ErrIngestTimeout     = errors.New("ingestion timed out")
)

// BlobStore persists the raw upload and returns a durable locator.
type BlobStore interface {
	Upload(ctx context.Context, obj blob.Object) (string, error)
}

// TextExtractor turns raw document bytes into text.
type TextExtractor interface {
	ExtractText(ctx context.Context, data []byte) (string, error)
}

type IngestRequest struct {
	OwnerID     string
	FileName    string
	ContentType string
	Data        []byte
}

// IngestError is a pipeline failure with a human-readable reason and a stable code.
type IngestError struct {
	Code   string
	Reason string
	Err    error
}

func (e *IngestError) Error() string {
	if e.Err == nil {
		return e.Reason
	}
	return e.Reason + ": " + e.Err.Error()
}

func (e *IngestError) Unwrap() error { return e.Err }

func ingestErr(code, reason string, err error) error {
	return &IngestError{Code: code, Reason: reason, Err: err}
}

type IngestOptions struct {
	ChunkSize    int
	ChunkOverlap int
	Timeout      time.Duration
}

// Ingestor runs the upload → extract → chunk → embed → chat pipeline.
type Ingestor struct {
	log       *logger.Logger
	store     *store.Store
	blobs     BlobStore
	extractor TextExtractor
	embedder  *ChunkEmbedder
	titles    *TitleGenerator
	opts      IngestOptions
	now       func() time.Time
}

func NewIngestor(db *store.Store, blobs BlobStore, extractor TextExtractor, embedder *ChunkEmbedder, titles *TitleGenerator, opts IngestOptions, log *logger.Logger) *Ingestor {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = DefaultChunkSize
	}
	if opts.ChunkOverlap < 0 {
		opts.ChunkOverlap = DefaultChunkOverlap
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultIngestTimeout
	}
	return &Ingestor{
		log:       log.With("service", "Ingestor"),
		store:     db,
		blobs:     blobs,
		extractor: extractor,
		embedder:  embedder,
		titles:    titles,
		opts:      opts,
		now:       time.Now,
	}
}

// Ingest runs the pipeline synchronously under the ingestion timeout.
func (in *Ingestor) Ingest(ctx context.Context, req IngestRequest) (*store.ChatDetail, error) {
	ctx, cancel := context.WithTimeout(ctx, in.opts.Timeout)
	defer cancel()

	detail, err := in.run(ctx, req, NoopProgress)
	if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return nil, ingestErr("timeout", ErrIngestTimeout.Error(), ErrIngestTimeout)
	}
	return detail, err
}

// Stream starts the pipeline in its own goroutine and returns the stream it
// reports to. When ctx ends the stream is abandoned and the run cancelled, the
// same as an explicit Abandon. If the timeout fires first the stream is failed
// and closed even if the pipeline is still blocked on a provider.
func (in *Ingestor) Stream(ctx context.Context, req IngestRequest) *ProgressStream {
	stream := NewProgressStream(progressBuffer)
	runCtx, cancel := context.WithCancel(ctx)
	log := in.log.With("owner_id", req.OwnerID, "file_name", req.FileName)

	timer := time.AfterFunc(in.opts.Timeout, func() {
		if stream.Fail(ErrIngestTimeout.Error(), "timeout", in.opts.Timeout.String()) {
			log.Warn("Ingestion timed out", "timeout", in.opts.Timeout)
		}
		cancel()
	})

	go func() {
		select {
		case <-stream.Abandoned():
			log.Info("Progress consumer disconnected, cancelling ingestion")
		case <-ctx.Done():
			log.Info("Progress consumer cancelled, abandoning ingestion")
			stream.Abandon()
		case <-runCtx.Done():
			// run finished or timed out
			if ctx.Err() == nil {
				return
			}
			stream.Abandon()
		}
		cancel()
	}()

	go func() {
		defer cancel()
		defer timer.Stop()
		defer func() {
			if p := recover(); p != nil {
				log.Error("Ingestion panicked", "panic", p)
				stream.Fail("internal error", "internal", fmt.Sprint(p))
			}
		}()

		detail, err := in.run(runCtx, req, consumerSink{ctx: ctx, stream: stream})
		if ctx.Err() != nil {
			stream.Abandon()
			log.Info("Ingestion stopped after consumer cancelled", "error", err)
			return
		}
		if err != nil {
			if stream.State() != StreamOpen {
				log.Info("Ingestion stopped after stream closed", "state", stream.State().String(), "error", err)
				return
			}
			log.Warn("Ingestion failed", "error", err)
			reason, code := "ingestion failed", "internal"
			var ie *IngestError
			if errors.As(err, &ie) {
				reason, code = ie.Reason, ie.Code
			}
			stream.Fail(reason, code, err.Error())
			return
		}
		stream.Succeed("Chat created", detail)
	}()

	return stream
}

// consumerSink forwards progress to the stream until the consumer's context
// ends, at which point the stream is abandoned instead.
type consumerSink struct {
	ctx    context.Context
	stream *ProgressStream
}

func (s consumerSink) Progress(message string, percent int) bool {
	if s.ctx.Err() != nil {
		s.stream.Abandon()
		return false
	}
	return s.stream.Progress(message, percent)
}

func (in *Ingestor) run(ctx context.Context, req IngestRequest, sink ProgressSink) (*store.ChatDetail, error) {
	if len(req.Data) == 0 {
		return nil, ingestErr("no_file", ErrNoFile.Error(), ErrNoFile)
	}
	log := in.log.With("owner_id", req.OwnerID, "file_name", req.FileName)

	if !sink.Progress("Uploading file", 10) {
		return nil, ErrStreamClosed
	}
	locator, err := in.blobs.Upload(ctx, blob.Object{
		Key:         blob.PDFKey(req.FileName, in.now()),
		ContentType: req.ContentType,
		Data:        req.Data,
	})
	if err != nil {
		return nil, ingestErr("upload_failed", "failed to upload file", err)
	}
	if !sink.Progress("File uploaded", 30) {
		return nil, ErrStreamClosed
	}

	raw, err := in.extractor.ExtractText(ctx, req.Data)
	if err != nil {
		return nil, ingestErr("extraction_failed", "failed to extract text", err)
	}
	text := NormalizeText(raw)
	if text == "" {
		return nil, ingestErr("no_extractable_text", ErrNoExtractableText.Error(), ErrNoExtractableText)
	}
	if !sink.Progress("Text extracted", 50) {
		return nil, ErrStreamClosed
	}

	doc := &store.Document{OwnerID: req.OwnerID, FilePath: locator, FileName: req.FileName}
	if err := in.store.CreateDocument(ctx, doc); err != nil {
		return nil, ingestErr("document_failed", "failed to save document", err)
	}
	if !sink.Progress("Document saved", 60) {
		return nil, ErrStreamClosed
	}

	chunks, err := ChunkText(text, in.opts.ChunkSize, in.opts.ChunkOverlap)
	if err != nil {
		return nil, ingestErr("chunking_failed", "failed to split text", err)
	}
	if !sink.Progress(fmt.Sprintf("Split text into %d chunks", len(chunks)), 70) {
		return nil, ErrStreamClosed
	}

	if !sink.Progress("Generating embeddings", 80) {
		return nil, ErrStreamClosed
	}
	report, err := in.embedder.EmbedChunks(ctx, doc.ID, chunks, map[string]any{"source": req.FileName}, func(o ChunkOutcome) bool {
		msg := fmt.Sprintf("Embedded chunk %d of %d", o.Done, o.Total)
		if o.Err != nil {
			msg = fmt.Sprintf("Skipped chunk %d of %d", o.Done, o.Total)
		}
		return sink.Progress(msg, 80+15*o.Done/o.Total)
	})
	if err != nil {
		if errors.Is(err, ErrEmbeddingStopped) {
			return nil, ErrStreamClosed
		}
		return nil, ingestErr("embedding_failed", "embedding was interrupted", err)
	}
	if report.Succeeded == 0 {
		log.Warn("No chunk could be embedded", "document_id", doc.ID, "attempted", report.Attempted)
	}

	var first string
	if len(chunks) > 0 {
		first = chunks[0].Text
	}
	title := in.titles.Generate(ctx, first, req.FileName)
	if !sink.Progress("Title generated", 97) {
		return nil, ErrStreamClosed
	}

	chat := &store.Chat{OwnerID: req.OwnerID, DocumentID: doc.ID, Title: title}
	welcome := &store.Message{Kind: store.MessageKindAI, Content: WelcomeMessage}
	if err := in.store.CreateChatWithMessage(ctx, chat, welcome); err != nil {
		return nil, ingestErr("chat_failed", "failed to create chat", err)
	}
	if !sink.Progress("Chat created", 98) {
		return nil, ErrStreamClosed
	}

	log.Info("Ingestion complete", "document_id", doc.ID, "chat_id", chat.ID, "chunks", len(chunks), "embedded", report.Succeeded)
	return &store.ChatDetail{Chat: chat, Document: doc, Messages: []store.Message{*welcome}}, nil
}
