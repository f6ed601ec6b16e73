package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"docchat.dev/pdf-rag/internal/core"
)

// UploadStreamHandler runs the ingestion pipeline and reports its progress as
// server-sent events, one data frame per event. A client disconnect abandons the
// stream: nothing more is written and no terminal frame is produced.
func (h *APIHandler) UploadStreamHandler(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalFrom(r.Context())
	if !ok {
		h.respondError(w, r, newAPIError(http.StatusUnauthorized, "unauthorized", errMissingPrincipal))
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		h.respondError(w, r, errors.New("streaming unsupported"))
		return
	}

	req, err := h.readUpload(w, r, principal.Subject)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ctx := r.Context()
	stream := h.ingestor.Stream(ctx, req)
	log := h.log.With("owner_id", principal.Subject, "file_name", req.FileName)

	for {
		select {
		case <-ctx.Done():
			stream.Abandon()
			log.Info("Upload stream client disconnected")
			return
		case ev, open := <-stream.Events():
			if !open {
				return
			}
			if ctx.Err() != nil {
				stream.Abandon()
				return
			}
			if err := writeSSE(w, ev); err != nil {
				stream.Abandon()
				log.Warn("Failed to write progress event", "error", err)
				return
			}
			flusher.Flush()
		}
	}
}

func writeSSE(w http.ResponseWriter, ev core.ProgressEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "data: %s\n\n", payload)
	return err
}
