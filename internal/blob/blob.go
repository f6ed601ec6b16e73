// Package blob stores uploaded files and returns a locator for them.
package blob

import (
	"errors"
	"fmt"
	"path"
	"strings"
	"time"
)

// ErrExists is returned when an object with the same key is already stored.
var ErrExists = errors.New("object already exists")

type Object struct {
	Key         string
	ContentType string
	Data        []byte
}

// PDFKey builds the storage key for an uploaded PDF: pdfs/<unix millis>-<name>.
func PDFKey(fileName string, now time.Time) string {
	return fmt.Sprintf("pdfs/%d-%s", now.UnixMilli(), sanitizeName(fileName))
}

func sanitizeName(name string) string {
	name = path.Base(strings.ReplaceAll(strings.TrimSpace(name), "\\", "/"))
	if name == "." || name == "/" || name == "" {
		return "upload.pdf"
	}
	return name
}

func validKey(key string) error {
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, "..") {
		return fmt.Errorf("invalid object key %q", key)
	}
	return nil
}
