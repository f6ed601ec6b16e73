package blob

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"docchat.dev/pdf-rag/internal/logger"
)

// GCSStore writes objects to a Google Cloud Storage bucket.
type GCSStore struct {
	log        *logger.Logger
	client     *storage.Client
	bucket     string
	publicBase string
}

func NewGCSStore(ctx context.Context, bucket, publicBase string, log *logger.Logger) (*GCSStore, error) {
	if bucket == "" {
		return nil, fmt.Errorf("missing GCS bucket name")
	}
	client, err := storage.NewClient(ctx, option.WithScopes(storage.ScopeReadWrite))
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	return &GCSStore{
		log:        log.With("service", "GCSStore"),
		client:     client,
		bucket:     bucket,
		publicBase: strings.TrimRight(publicBase, "/"),
	}, nil
}

// Upload writes the object and refuses to replace an existing one.
func (s *GCSStore) Upload(ctx context.Context, obj Object) (string, error) {
	if err := validKey(obj.Key); err != nil {
		return "", err
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	w := s.client.Bucket(s.bucket).Object(obj.Key).
		If(storage.Conditions{DoesNotExist: true}).
		NewWriter(ctx)
	w.ContentType = obj.ContentType
	if _, err := io.Copy(w, bytes.NewReader(obj.Data)); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("failed to write data to GCS: %w", err)
	}
	if err := w.Close(); err != nil {
		var gErr *googleapi.Error
		if errors.As(err, &gErr) && gErr.Code == http.StatusPreconditionFailed {
			return "", fmt.Errorf("gcs object %s: %w", obj.Key, ErrExists)
		}
		return "", fmt.Errorf("failed to close GCS writer: %w", err)
	}
	s.log.Debug("Uploaded object", "bucket", s.bucket, "key", obj.Key, "bytes", len(obj.Data))
	return s.locator(obj.Key), nil
}

func (s *GCSStore) locator(key string) string {
	if s.publicBase != "" {
		return s.publicBase + "/" + key
	}
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", s.bucket, key)
}

func (s *GCSStore) Close() error {
	return s.client.Close()
}
