// Package apperr defines the stable failure categories of the assistant.
package apperr

import (
	"context"
	"errors"
	"fmt"
)

const (
	AdmissionRejected      = "admission_rejected"
	ExtractionAmbiguous    = "extraction_ambiguous"
	InsufficientData       = "insufficient_data"
	CapabilityUnavailable  = "capability_unavailable"
	PersistenceUnavailable = "persistence_unavailable"
	Internal               = "internal"
)

// Error is a categorized failure. Detail is safe to log; Err keeps the cause.
type Error struct {
	Category string
	Detail   string
	Err      error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}

	switch {
	case e.Detail != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Category, e.Detail, e.Err)
	case e.Detail != "":
		return fmt.Sprintf("%s: %s", e.Category, e.Detail)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Category, e.Err)
	default:
		return e.Category
	}
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// New creates a categorized error without a cause.
func New(category string, detail string) error {
	return &Error{Category: category, Detail: detail}
}

// Wrap attaches a category to err. A nil err stays nil.
func Wrap(category string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Category: category, Err: err}
}

// Wrapf attaches a category and a detail message to err.
func Wrapf(category string, err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return &Error{Category: category, Detail: fmt.Sprintf(format, args...), Err: err}
}

// CategoryOf returns the category of err, or Internal for uncategorized errors.
func CategoryOf(err error) string {
	if err == nil {
		return ""
	}

	var categorized *Error
	if errors.As(err, &categorized) {
		return categorized.Category
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return CapabilityUnavailable
	}

	return Internal
}

// Is reports whether err carries category.
func Is(err error, category string) bool {
	return err != nil && CategoryOf(err) == category
}
