package api

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"hash/fnv"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"docchat.dev/pdf-rag/internal/auth"
	"docchat.dev/pdf-rag/internal/blob"
	"docchat.dev/pdf-rag/internal/core"
	"docchat.dev/pdf-rag/internal/llm"
	"docchat.dev/pdf-rag/internal/logger"
	"docchat.dev/pdf-rag/internal/store"
)

const (
	testDims   = 4
	testSecret = "test-secret"
)

type hashEmbedder struct{}

func (hashEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	h := fnv.New64a()
	_, _ = h.Write([]byte(text))
	sum := h.Sum64()
	v := make([]float32, testDims)
	for i := range v {
		v[i] = float32((sum>>(8*uint(i)))&0xff) / 255
	}
	return v, nil
}

type cannedCompleter struct{ answer string }

func (c cannedCompleter) Complete(context.Context, llm.CompletionRequest) (string, error) {
	return c.answer, nil
}

type memoryBlobs struct{}

func (memoryBlobs) Upload(_ context.Context, obj blob.Object) (string, error) {
	return "memory://" + obj.Key, nil
}

type staticExtractor struct {
	text string
	err  error
}

func (e staticExtractor) ExtractText(context.Context, []byte) (string, error) {
	return e.text, e.err
}

// chunkRecorder remembers which documents received chunks.
type chunkRecorder struct {
	*store.Store
	mu        sync.Mutex
	documents []string
}

func (c *chunkRecorder) InsertChunk(ctx context.Context, chunk *store.Chunk) error {
	c.mu.Lock()
	c.documents = append(c.documents, chunk.DocumentID)
	c.mu.Unlock()
	return c.Store.InsertChunk(ctx, chunk)
}

func (c *chunkRecorder) DocumentIDs() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.documents...)
}

type testServer struct {
	handler http.Handler
	db      *store.Store
	chunks  *chunkRecorder
	auth    *auth.Authenticator
}

func newTestServer(t *testing.T, extractor core.TextExtractor) *testServer {
	t.Helper()
	return newTestServerWithEmbedder(t, extractor, hashEmbedder{})
}

func newTestServerWithEmbedder(t *testing.T, extractor core.TextExtractor, embedder llm.Embedder) *testServer {
	t.Helper()
	log := logger.Nop()

	db, err := store.NewSQLiteStore(":memory:", testDims)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	authenticator, err := auth.NewAuthenticator(testSecret, time.Hour)
	require.NoError(t, err)

	completer := cannedCompleter{answer: "Alphabet Soup"}
	rag := core.NewRAGService(db, hashEmbedder{}, completer, 3, log)
	chats := core.NewChatService(db, rag, log)
	chunks := &chunkRecorder{Store: db}
	ingestor := core.NewIngestor(
		db,
		memoryBlobs{},
		extractor,
		core.NewChunkEmbedder(embedder, chunks, 5, 0, log),
		core.NewTitleGenerator(completer, log),
		core.IngestOptions{ChunkSize: 100, ChunkOverlap: 20, Timeout: 10 * time.Second},
		log,
	)

	h := NewAPIHandler(chats, ingestor, authenticator, Options{MaxUploadBytes: 1 << 20}, log)
	return &testServer{handler: NewRouter(h), db: db, chunks: chunks, auth: authenticator}
}

func (s *testServer) token(t *testing.T, subject string) string {
	t.Helper()
	token, err := s.auth.GenerateJWT(auth.Principal{Subject: subject, Email: subject + "@example.com", GivenName: "Test", FamilyName: "User"})
	require.NoError(t, err)
	return token
}

func (s *testServer) do(t *testing.T, req *http.Request, subject string) *httptest.ResponseRecorder {
	t.Helper()
	if subject != "" {
		req.Header.Set("Authorization", "Bearer "+s.token(t, subject))
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func uploadRequest(t *testing.T, path, fileName string, data []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if fileName != "" {
		part, err := mw.CreateFormFile("file", fileName)
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
	} else {
		require.NoError(t, mw.WriteField("note", "no file here"))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func jsonRequest(t *testing.T, method, path string, v any) *http.Request {
	t.Helper()
	var body io.Reader = http.NoBody
	if v != nil {
		b, err := json.Marshal(v)
		require.NoError(t, err)
		body = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", "application/json")
	return req
}

type testEnvelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code        int    `json:"code"`
		Message     string `json:"message"`
		Description string `json:"description"`
	} `json:"error"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder, data any) testEnvelope {
	t.Helper()
	var env testEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	if data != nil && len(env.Data) > 0 {
		require.NoError(t, json.Unmarshal(env.Data, data))
	}
	return env
}

func readSSE(t *testing.T, body string) []core.ProgressEvent {
	t.Helper()
	var events []core.ProgressEvent
	sc := bufio.NewScanner(strings.NewReader(body))
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		line := sc.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var ev core.ProgressEvent
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev))
		events = append(events, ev)
	}
	require.NoError(t, sc.Err())
	return events
}

var sampleText = strings.Repeat("Alphabet soup is a dish made from letter shaped noodles in broth. ", 12)

var samplePDF = []byte("%PDF-1.4\n% test document\n")
