package gcs

import (
	"errors"
	"fmt"
	"net/http"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Common fetch errors
var (
	// ErrObjectNotFound is returned when the bucket or object does not exist.
	ErrObjectNotFound = errors.New("object not found")

	// ErrAccessDenied is returned when the credentials cannot read the object.
	ErrAccessDenied = errors.New("access denied")

	// ErrTransport is returned for network-level failures and short reads.
	ErrTransport = errors.New("transport error")

	// ErrObjectTooLarge is returned when the object exceeds MaxObjectSizeBytes.
	ErrObjectTooLarge = errors.New("object exceeds maximum size limit")
)

// FetchError wraps errors with the object that failed to download.
type FetchError struct {
	// Op is the operation that failed (e.g., "Fetch", "NewGCSFetcher").
	Op string

	Bucket string
	Object string

	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *FetchError) Error() string {
	if e.Bucket == "" {
		return fmt.Sprintf("gcs: %s failed: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("gcs: %s gs://%s/%s failed: %v", e.Op, e.Bucket, e.Object, e.Err)
}

// Unwrap returns the underlying error for error unwrapping.
func (e *FetchError) Unwrap() error {
	return e.Err
}

// classifyError maps Cloud Storage client errors onto the fetch taxonomy.
// The original error stays in the chain.
func classifyError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrObjectNotFound) || errors.Is(err, ErrAccessDenied) ||
		errors.Is(err, ErrTransport) || errors.Is(err, ErrObjectTooLarge) {
		return err
	}
	if errors.Is(err, storage.ErrObjectNotExist) || errors.Is(err, storage.ErrBucketNotExist) {
		return fmt.Errorf("%w: %w", ErrObjectNotFound, err)
	}

	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch gerr.Code {
		case http.StatusNotFound:
			return fmt.Errorf("%w: %w", ErrObjectNotFound, err)
		case http.StatusUnauthorized, http.StatusForbidden:
			return fmt.Errorf("%w: %w", ErrAccessDenied, err)
		}
	}

	// The gRPC transport reports statuses instead of googleapi errors.
	if s, ok := status.FromError(err); ok {
		switch s.Code() {
		case codes.NotFound:
			return fmt.Errorf("%w: %w", ErrObjectNotFound, err)
		case codes.PermissionDenied, codes.Unauthenticated:
			return fmt.Errorf("%w: %w", ErrAccessDenied, err)
		}
	}

	return fmt.Errorf("%w: %w", ErrTransport, err)
}
