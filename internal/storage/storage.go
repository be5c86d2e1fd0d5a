// internal/storage/storage.go
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("stored file not found")

// Store persists uploaded documents under slash-separated object keys.
type Store interface {
	Save(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	// Stat reports whether the object exists and is readable.
	Stat(ctx context.Context, key string) error
	Delete(ctx context.Context, key string) error
	// LocalPath returns a filesystem path for key when the backend keeps files
	// on a disk shared with the OCR worker.
	LocalPath(key string) (string, bool)
}

// GenerateObjectName creates a unique object key for a case upload, keeping
// the original extension.
func GenerateObjectName(userID, caseID uint, filename string) string {
	ext := strings.ToLower(path.Ext(filename))
	return fmt.Sprintf("users/%d/cases/%d/%s%s", userID, caseID, uuid.New().String(), ext)
}
