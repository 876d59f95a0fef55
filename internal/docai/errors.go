package docai

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Common Document AI processing errors
var (
	// ErrInvalidArgument is returned when the request is malformed or the
	// MIME type is not supported by the processor.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrPermissionDenied is returned when the credentials may not call the processor.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrDeadlineExceeded is returned when the call outlives its deadline.
	ErrDeadlineExceeded = errors.New("deadline exceeded")

	// ErrUnavailable is returned for transient service failures.
	ErrUnavailable = errors.New("service unavailable")

	// ErrInternal is returned when Document AI reports an internal error.
	ErrInternal = errors.New("internal service error")

	// ErrProcessorNotFound is returned when the processor or version does not exist.
	ErrProcessorNotFound = errors.New("Document AI processor not found")

	// ErrQuotaExceeded is returned when Document AI API quota limits are exceeded.
	ErrQuotaExceeded = errors.New("Document AI API quota exceeded")

	// ErrCanceled is returned when the call is canceled via context.
	ErrCanceled = errors.New("processing was canceled")

	// ErrProcessingFailed is returned for any other processing failure.
	ErrProcessingFailed = errors.New("document AI processing failed")

	// ErrMIMEMismatch is returned when the declared MIME type does not match the content.
	ErrMIMEMismatch = errors.New("declared MIME type does not match content")

	// ErrEmptyDocument is returned when there is no content to process.
	ErrEmptyDocument = errors.New("document is empty")

	// ErrInvalidProcessorName is returned when a processor version resource name cannot be parsed.
	ErrInvalidProcessorName = errors.New("invalid processor version name")
)

// ProcessingError wraps errors with additional context about Document AI failures.
type ProcessingError struct {
	// Op is the operation that failed (e.g., "Analyze", "NewProcessor").
	Op string

	// Err is the underlying error.
	Err error

	// Details provides additional context about the failure.
	Details string

	// ProcessorName is the processor version resource name (if available).
	ProcessorName string
}

// Error implements the error interface.
func (e *ProcessingError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("docai: %s failed: %s: %v", e.Op, e.Details, e.Err)
	}
	if e.ProcessorName != "" {
		return fmt.Sprintf("docai: %s failed (processor: %s): %v", e.Op, e.ProcessorName, e.Err)
	}
	return fmt.Sprintf("docai: %s failed: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for error unwrapping.
func (e *ProcessingError) Unwrap() error {
	return e.Err
}

// Is implements error matching for Go 1.13+ error handling.
func (e *ProcessingError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewProcessingError creates a new ProcessingError with the specified operation and underlying error.
func NewProcessingError(op string, err error, details string) *ProcessingError {
	return &ProcessingError{
		Op:      op,
		Err:     err,
		Details: details,
	}
}

// WrapProcessingError wraps an error as a ProcessingError if it isn't already one.
func WrapProcessingError(op string, err error, details string) error {
	if err == nil {
		return nil
	}

	var procErr *ProcessingError
	if errors.As(err, &procErr) {
		return err // Already wrapped
	}

	return NewProcessingError(op, err, details)
}

// classifyCallError maps a ProcessDocument failure onto the sentinel errors.
// The RPC error stays in the chain.
func classifyCallError(err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %w", ErrDeadlineExceeded, err)
	case errors.Is(err, context.Canceled):
		return fmt.Errorf("%w: %w", ErrCanceled, err)
	}

	var sentinel error
	switch status.Code(err) {
	case codes.InvalidArgument, codes.FailedPrecondition:
		sentinel = ErrInvalidArgument
	case codes.PermissionDenied, codes.Unauthenticated:
		sentinel = ErrPermissionDenied
	case codes.DeadlineExceeded:
		sentinel = ErrDeadlineExceeded
	case codes.Unavailable:
		sentinel = ErrUnavailable
	case codes.Internal:
		sentinel = ErrInternal
	case codes.NotFound:
		sentinel = ErrProcessorNotFound
	case codes.ResourceExhausted:
		sentinel = ErrQuotaExceeded
	case codes.Canceled:
		sentinel = ErrCanceled
	default:
		sentinel = ErrProcessingFailed
	}
	return fmt.Errorf("%w: %w", sentinel, err)
}
