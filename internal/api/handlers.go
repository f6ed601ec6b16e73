package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"docchat.dev/pdf-rag/internal/auth"
	"docchat.dev/pdf-rag/internal/core"
	"docchat.dev/pdf-rag/internal/logger"
	"docchat.dev/pdf-rag/internal/store"
)

const (
	defaultMaxUploadBytes = 25 << 20
	multipartMemory       = 8 << 20
)

type Options struct {
	MaxUploadBytes int64
	Production     bool
}

type APIHandler struct {
	log         *logger.Logger
	auth        *auth.Authenticator
	chatService *core.ChatService
	ingestor    *core.Ingestor
	maxUpload   int64
	production  bool
	startedAt   time.Time
}

func NewAPIHandler(cs *core.ChatService, ingestor *core.Ingestor, authenticator *auth.Authenticator, opts Options, log *logger.Logger) *APIHandler {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = defaultMaxUploadBytes
	}
	return &APIHandler{
		log:         log.With("component", "api"),
		auth:        authenticator,
		chatService: cs,
		ingestor:    ingestor,
		maxUpload:   opts.MaxUploadBytes,
		production:  opts.Production,
		startedAt:   time.Now(),
	}
}

func (h *APIHandler) StatusHandler(w http.ResponseWriter, r *http.Request) {
	respondOK(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"uptime":    time.Since(h.startedAt).Seconds(),
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
	})
}

func (h *APIHandler) SyncUserHandler(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalFrom(r.Context())
	if !ok {
		h.respondError(w, r, newAPIError(http.StatusUnauthorized, "unauthorized", errMissingPrincipal))
		return
	}

	user, err := h.chatService.SyncUser(r.Context(), &store.User{
		ExternalID: principal.Subject,
		Email:      principal.Email,
		FullName:   principal.FullName(),
		Raw:        principal.Claims,
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	respondOK(w, http.StatusOK, map[string]any{
		"message": "User synced successfully",
		"user":    user,
		"auth": map[string]any{
			"userId":        principal.Subject,
			"authenticated": true,
		},
	})
}

// CreateChatHandler ingests the uploaded PDF synchronously.
func (h *APIHandler) CreateChatHandler(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalFrom(r.Context())
	if !ok {
		h.respondError(w, r, newAPIError(http.StatusUnauthorized, "unauthorized", errMissingPrincipal))
		return
	}

	req, err := h.readUpload(w, r, principal.Subject)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	detail, err := h.ingestor.Ingest(r.Context(), req)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondOK(w, http.StatusCreated, detail)
}

func (h *APIHandler) ListChatsHandler(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalFrom(r.Context())
	if !ok {
		h.respondError(w, r, newAPIError(http.StatusUnauthorized, "unauthorized", errMissingPrincipal))
		return
	}

	chats, err := h.chatService.ListChats(r.Context(), principal.Subject)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondOK(w, http.StatusOK, chats)
}

func (h *APIHandler) GetChatDetailsHandler(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalFrom(r.Context())
	if !ok {
		h.respondError(w, r, newAPIError(http.StatusUnauthorized, "unauthorized", errMissingPrincipal))
		return
	}
	chatID := chi.URLParam(r, "chatId")

	detail, err := h.chatService.GetChatDetail(r.Context(), chatID, principal.Subject)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondOK(w, http.StatusOK, detail)
}

type PostMessageRequest struct {
	Question string `json:"question"`
	K        int    `json:"k,omitempty"`
}

func (h *APIHandler) PostMessageHandler(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalFrom(r.Context())
	if !ok {
		h.respondError(w, r, newAPIError(http.StatusUnauthorized, "unauthorized", errMissingPrincipal))
		return
	}
	chatID := chi.URLParam(r, "chatId")

	var req PostMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, r, newAPIError(http.StatusBadRequest, "bad_request", fmt.Errorf("invalid request body: %w", err)))
		return
	}

	exchange, err := h.chatService.SendMessage(r.Context(), chatID, principal.Subject, req.Question, req.K)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondOK(w, http.StatusOK, exchange)
}

// readUpload pulls the "file" part of a multipart request into memory.
func (h *APIHandler) readUpload(w http.ResponseWriter, r *http.Request, ownerID string) (core.IngestRequest, error) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			return core.IngestRequest{}, err
		}
		if errors.Is(err, http.ErrNotMultipart) || errors.Is(err, http.ErrMissingBoundary) {
			return core.IngestRequest{}, core.ErrNoFile
		}
		return core.IngestRequest{}, newAPIError(http.StatusBadRequest, "bad_request", fmt.Errorf("invalid multipart form: %w", err))
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return core.IngestRequest{}, core.ErrNoFile
		}
		return core.IngestRequest{}, newAPIError(http.StatusBadRequest, "bad_request", err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return core.IngestRequest{}, fmt.Errorf("failed to read upload: %w", err)
	}
	if len(data) == 0 {
		return core.IngestRequest{}, core.ErrNoFile
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/pdf"
	}
	return core.IngestRequest{
		OwnerID:     ownerID,
		FileName:    header.Filename,
		ContentType: contentType,
		Data:        data,
	}, nil
}
