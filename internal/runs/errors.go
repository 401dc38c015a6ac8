package runs

import "github.com/pkg/errors"

var (
	// ErrNotFound is returned when no run has the requested ID.
	ErrNotFound = errors.New("run not found")
	// ErrNotDone is returned when exporting a run that did not finish.
	ErrNotDone = errors.New("run has no results to export")
)
