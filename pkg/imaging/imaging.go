// pkg/imaging/imaging.go
package imaging

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
)

// AllowedContentTypes are the scan formats the OCR worker accepts.
var AllowedContentTypes = map[string]bool{
	"image/jpeg":      true,
	"image/png":       true,
	"image/webp":      true,
	"application/pdf": true,
}

var allowedExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".webp": true,
	".pdf":  true,
}

var ErrUnsupportedType = errors.New("unsupported document type")

// CheckExtension rejects file names whose extension is not a scan format.
func CheckExtension(filename string) error {
	ext := strings.ToLower(filepath.Ext(filename))
	if !allowedExtensions[ext] {
		return fmt.Errorf("%w: extension %q", ErrUnsupportedType, ext)
	}
	return nil
}

// DetectContentType sniffs the first 512 bytes of r and rewinds it.
func DetectContentType(r io.ReadSeeker) (string, error) {
	buffer := make([]byte, 512)
	n, err := io.ReadFull(r, buffer)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", err
	}
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return "", err
	}

	contentType := http.DetectContentType(buffer[:n])
	if !AllowedContentTypes[contentType] {
		return "", fmt.Errorf("%w: %s, only JPEG, PNG, WebP and PDF allowed", ErrUnsupportedType, contentType)
	}
	return contentType, nil
}
