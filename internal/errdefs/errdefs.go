// Package errdefs defines the error taxonomy shared across the page pipeline.
// Components wrap these sentinels with fmt.Errorf("...: %w", ...) so callers
// can classify failures with errors.Is without depending on error strings.
package errdefs

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates a referenced book or page does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidArgument indicates malformed caller input, e.g. a reorder
	// sequence that is not a permutation of the book's page ids.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrInvalidState indicates an operation that would violate a structural
	// invariant, e.g. splitting a page that has no image.
	ErrInvalidState = errors.New("invalid state")

	// ErrService indicates an external AI or image-service failure.
	// Always retryable by the caller; the core performs no internal retries
	// of inference calls.
	ErrService = errors.New("service error")

	// ErrDetectionFailed indicates the AI geometry response failed schema
	// validation or the page image was unreachable.
	ErrDetectionFailed = errors.New("detection failed")
)

// NotFound wraps ErrNotFound with a formatted message.
func NotFound(format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, ErrNotFound)...)
}

// InvalidArgument wraps ErrInvalidArgument with a formatted message.
func InvalidArgument(format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, ErrInvalidArgument)...)
}

// InvalidState wraps ErrInvalidState with a formatted message.
func InvalidState(format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, ErrInvalidState)...)
}

// Service wraps ErrService with a formatted message.
func Service(format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, ErrService)...)
}

// DetectionFailed wraps ErrDetectionFailed with a formatted message.
func DetectionFailed(format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, ErrDetectionFailed)...)
}

// IsNotFound reports whether err is or wraps ErrNotFound.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsInvalidArgument reports whether err is or wraps ErrInvalidArgument.
func IsInvalidArgument(err error) bool { return errors.Is(err, ErrInvalidArgument) }

// IsInvalidState reports whether err is or wraps ErrInvalidState.
func IsInvalidState(err error) bool { return errors.Is(err, ErrInvalidState) }

// IsService reports whether err is or wraps ErrService.
func IsService(err error) bool { return errors.Is(err, ErrService) }

// IsDetectionFailed reports whether err is or wraps ErrDetectionFailed.
func IsDetectionFailed(err error) bool { return errors.Is(err, ErrDetectionFailed) }
