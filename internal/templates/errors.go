package templates

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrNotFound is returned when no template has the requested name.
	ErrNotFound = errors.New("template not found")
	// ErrInvalidName is returned for empty names and names with path separators or parent segments.
	ErrInvalidName = errors.New("invalid template name")
	// ErrInvalidBody is returned for bodies that are not valid UTF-8.
	ErrInvalidBody = errors.New("template body must be valid UTF-8 text")
)

// StorageError reports a backend failure for a named template.
type StorageError struct {
	Name string
	Op   string
	Err  error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("template storage: %s %q: %v", e.Op, e.Name, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// ArchiveError reports an archive that could not be unpacked at all.
type ArchiveError struct {
	Err error
}

func (e *ArchiveError) Error() string {
	return fmt.Sprintf("template archive unreadable: %v", e.Err)
}

func (e *ArchiveError) Unwrap() error { return e.Err }
