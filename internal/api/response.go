package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"docchat.dev/pdf-rag/internal/auth"
	"docchat.dev/pdf-rag/internal/core"
	"docchat.dev/pdf-rag/internal/extract"
	"docchat.dev/pdf-rag/internal/store"
)

// APIError carries the HTTP status and a short machine-readable code for an error.
type APIError struct {
	Status int
	Code   string
	Err    error
}

func (e *APIError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Code != "" {
		return e.Code
	}
	return fmt.Sprintf("api error (%d)", e.Status)
}

func (e *APIError) Unwrap() error { return e.Err }

func newAPIError(status int, code string, err error) *APIError {
	return &APIError{Status: status, Code: code, Err: err}
}

type envelope struct {
	Success bool       `json:"success"`
	Data    any        `json:"data,omitempty"`
	Error   *errorBody `json:"error,omitempty"`
}

type errorBody struct {
	Code        int    `json:"code"`
	Message     string `json:"message"`
	Description string `json:"description"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondOK(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, envelope{Success: true, Data: data})
}

// classify maps an error from the lower layers to its HTTP representation.
func classify(err error) *APIError {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	var maxBytes *http.MaxBytesError
	var ingestErr *core.IngestError

	switch {
	case errors.Is(err, store.ErrNotFound):
		return newAPIError(http.StatusNotFound, "not_found", err)
	case errors.Is(err, auth.ErrInvalidToken):
		return newAPIError(http.StatusUnauthorized, "unauthorized", err)
	case errors.As(err, &maxBytes):
		return newAPIError(http.StatusRequestEntityTooLarge, "file_too_large", err)
	case errors.Is(err, core.ErrNoFile),
		errors.Is(err, core.ErrNoExtractableText),
		errors.Is(err, core.ErrInvalidQuestion),
		errors.Is(err, extract.ErrNotPDF):
		return newAPIError(http.StatusBadRequest, "bad_request", err)
	case errors.Is(err, core.ErrIngestTimeout):
		return newAPIError(http.StatusGatewayTimeout, "timeout", err)
	case errors.Is(err, core.ErrUpstream):
		return newAPIError(http.StatusBadGateway, "upstream_error", err)
	case errors.As(err, &ingestErr):
		switch ingestErr.Code {
		case "extraction_failed":
			return newAPIError(http.StatusBadRequest, ingestErr.Code, err)
		case "upload_failed", "embedding_failed":
			return newAPIError(http.StatusBadGateway, ingestErr.Code, err)
		}
	}
	return newAPIError(http.StatusInternalServerError, "internal_error", err)
}

// respondError writes the error envelope. Server errors only expose their
// detail outside production.
func (h *APIHandler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	apiErr := classify(err)

	message := apiErr.Error()
	description := message
	if apiErr.Status >= http.StatusInternalServerError {
		h.log.Error("Request failed", "method", r.Method, "path", r.URL.Path, "status", apiErr.Status, "code", apiErr.Code, "error", err)
		message = http.StatusText(apiErr.Status)
		if h.production {
			description = "An unexpected error occurred. Please try again later."
		}
	}

	writeJSON(w, apiErr.Status, envelope{
		Success: false,
		Error: &errorBody{
			Code:        apiErr.Status,
			Message:     message,
			Description: description,
		},
	})
}
