package core

import (
	"context"
	"errors"
	"hash/fnv"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"docchat.dev/pdf-rag/internal/blob"
	"docchat.dev/pdf-rag/internal/llm"
	"docchat.dev/pdf-rag/internal/logger"
	"docchat.dev/pdf-rag/internal/store"
)

const testDims = 4

var errProviderDown = errors.New("embedding service unavailable")

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	db, err := store.NewSQLiteStore(":memory:", testDims)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// fakeEmbedder returns a deterministic vector per text. Calls listed in fail
// (1-based) return errProviderDown. hook runs before every call.
type fakeEmbedder struct {
	mu       sync.Mutex
	dims     int
	calls    int
	returned int
	fail     map[int]bool
	vectors  map[string][]float32
	hook     func(ctx context.Context, n int)
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	f.mu.Lock()
	f.calls++
	n := f.calls
	hook := f.hook
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.returned++
		f.mu.Unlock()
	}()

	if hook != nil {
		hook(ctx, n)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.fail[n] {
		return nil, errProviderDown
	}
	if v, ok := f.vectors[text]; ok {
		return v, nil
	}
	return hashVector(text, f.dims), nil
}

func (f *fakeEmbedder) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeEmbedder) Returned() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.returned
}

func hashVector(text string, dims int) []float32 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(text))
	sum := h.Sum64()
	v := make([]float32, dims)
	for i := range v {
		v[i] = float32((sum>>(8*uint(i%8)))&0xff) / 255
	}
	return v
}

type fakeCompleter struct {
	mu       sync.Mutex
	answer   string
	err      error
	requests []llm.CompletionRequest
}

func (f *fakeCompleter) Complete(_ context.Context, req llm.CompletionRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	return f.answer, f.err
}

func (f *fakeCompleter) Requests() []llm.CompletionRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]llm.CompletionRequest(nil), f.requests...)
}

type fakeBlobStore struct {
	mu      sync.Mutex
	err     error
	objects []blob.Object
}

func (f *fakeBlobStore) Upload(_ context.Context, obj blob.Object) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.objects = append(f.objects, obj)
	return "memory://" + obj.Key, nil
}

type fakeExtractor struct {
	text string
	err  error
}

func (f fakeExtractor) ExtractText(context.Context, []byte) (string, error) {
	return f.text, f.err
}

// recordingWriter remembers the documents chunks were written to.
type recordingWriter struct {
	*store.Store
	mu        sync.Mutex
	documents []string
}

func (w *recordingWriter) InsertChunk(ctx context.Context, chunk *store.Chunk) error {
	w.mu.Lock()
	w.documents = append(w.documents, chunk.DocumentID)
	w.mu.Unlock()
	return w.Store.InsertChunk(ctx, chunk)
}

func (w *recordingWriter) DocumentIDs() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.documents...)
}

type pipeline struct {
	db        *store.Store
	writer    *recordingWriter
	embedder  *fakeEmbedder
	completer *fakeCompleter
	blobs     *fakeBlobStore
	ingestor  *Ingestor
}

func newPipeline(t *testing.T, text string, opts IngestOptions) *pipeline {
	t.Helper()
	log := logger.Nop()
	p := &pipeline{
		db:        newTestStore(t),
		embedder:  &fakeEmbedder{dims: testDims},
		completer: &fakeCompleter{answer: "\"Alphabet Soup\"\n"},
		blobs:     &fakeBlobStore{},
	}
	p.writer = &recordingWriter{Store: p.db}
	p.ingestor = NewIngestor(
		p.db,
		p.blobs,
		fakeExtractor{text: text},
		NewChunkEmbedder(p.embedder, p.writer, 5, 0, log),
		NewTitleGenerator(p.completer, log),
		opts,
		log,
	)
	return p
}

func pdfRequest(owner string) IngestRequest {
	return IngestRequest{
		OwnerID:     owner,
		FileName:    "alphabet.pdf",
		ContentType: "application/pdf",
		Data:        []byte("%PDF-1.4 test"),
	}
}
