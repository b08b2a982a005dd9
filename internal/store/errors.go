package store

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when no record carries the requested identifier.
	ErrNotFound = errors.New("record not found")
	// ErrUnsupportedMIMEType is returned when a file type cannot be extracted.
	ErrUnsupportedMIMEType = errors.New("unsupported file type")
	// ErrClosed is returned by mutations after Close.
	ErrClosed = errors.New("store is closed")
)

// ExtractError is a non-success outcome reported by the extraction endpoint.
type ExtractError struct {
	Status  int
	Code    string
	Message string
}

func (e *ExtractError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("extraction failed (%d %s): %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("extraction failed (%d): %s", e.Status, e.Message)
}
