package util

import (
	"errors"
	"path/filepath"
	"strings"
)

// ErrInvalidName is returned for names that could escape a storage root.
var ErrInvalidName = errors.New("invalid file name")

// SanitizeFileName removes path separators and rejects traversal patterns.
func SanitizeFileName(name string) (string, error) {
	if strings.Contains(name, "..") {
		return "", ErrInvalidName
	}
	s := strings.TrimSpace(name)
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	if s == "" {
		return "", ErrInvalidName
	}
	return s, nil
}

// ValidateName accepts a name only when it can be used as a single path
// element as-is: no separators, no parent segments, no NUL bytes.
func ValidateName(name string) error {
	if strings.TrimSpace(name) == "" || name != strings.TrimSpace(name) {
		return ErrInvalidName
	}
	if strings.ContainsAny(name, "/\\\x00") || strings.Contains(name, "..") {
		return ErrInvalidName
	}
	if name == "." || filepath.IsAbs(name) || filepath.VolumeName(name) != "" {
		return ErrInvalidName
	}
	return nil
}

// FileStem returns the base name without its extension, e.g. "cv" for "dir/cv.pdf".
func FileStem(name string) string {
	base := filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	if base == "." || base == "/" {
		return ""
	}
	return strings.TrimSuffix(base, filepath.Ext(base))
}
