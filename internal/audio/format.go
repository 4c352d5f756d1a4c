// Package audio validates uploaded audio before any model is invoked.
package audio

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// ErrUnsupportedFormat is returned for file types outside the
// allowlist. The check runs before the file reaches a model backend.
var ErrUnsupportedFormat = errors.New("unsupported audio format")

// supportedFormats maps accepted extensions to their MIME types.
var supportedFormats = map[string]string{
	".mp3":  "audio/mpeg",
	".wav":  "audio/wav",
	".m4a":  "audio/mp4",
	".mpeg": "audio/mpeg",
	".mp4":  "audio/mp4",
	".webm": "audio/webm",
}

// CheckFormat validates the file extension against the allowlist.
func CheckFormat(path string) error {
	ext := strings.ToLower(filepath.Ext(path))
	if _, ok := supportedFormats[ext]; !ok {
		return fmt.Errorf("%w: %q (accepted: %s)", ErrUnsupportedFormat, ext, strings.Join(Extensions(), " "))
	}
	return nil
}

// ContentType returns the MIME type for a supported file, or
// application/octet-stream for anything else.
func ContentType(path string) string {
	if ct, ok := supportedFormats[strings.ToLower(filepath.Ext(path))]; ok {
		return ct
	}
	return "application/octet-stream"
}

// Extensions returns the accepted extensions in stable order.
func Extensions() []string {
	return []string{".mp3", ".wav", ".m4a", ".mpeg", ".mp4", ".webm"}
}
