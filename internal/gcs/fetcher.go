// Package gcs downloads source images from Google Cloud Storage.
//
// Objects are read straight into memory; nothing is staged on local disk.
// Failures are reported as *FetchError wrapping one of ErrObjectNotFound,
// ErrAccessDenied, ErrTransport or ErrObjectTooLarge. Nothing is retried.
package gcs

import (
	"context"
	"fmt"
	"io"

	"cloud.google.com/go/storage"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"
	"imagequality/internal/logger"
)

// MaxObjectSizeBytes is the largest object sent inline to Document AI (40MB).
const MaxObjectSizeBytes = 40 * 1024 * 1024

// ObjectOpener opens a reader on a stored object. size is the stored size
// in bytes, or -1 when unknown.
type ObjectOpener interface {
	Open(ctx context.Context, bucket, object string) (r io.ReadCloser, size int64, err error)
}

// Fetcher downloads one object at a time.
type Fetcher struct {
	opener ObjectOpener
	closer io.Closer
	log    zerolog.Logger
}

// NewGCSFetcher creates a fetcher backed by a Cloud Storage client.
func NewGCSFetcher(ctx context.Context, opts ...option.ClientOption) (*Fetcher, error) {
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, &FetchError{Op: "NewGCSFetcher", Err: fmt.Errorf("failed to create Storage client: %w", err)}
	}
	return &Fetcher{
		opener: clientOpener{client: client},
		closer: client,
		log:    logger.WithComponent("gcs"),
	}, nil
}

// NewFetcherWithOpener creates a fetcher with an explicit opener (for testing).
func NewFetcherWithOpener(opener ObjectOpener) *Fetcher {
	return &Fetcher{
		opener: opener,
		log:    logger.WithComponent("gcs"),
	}
}

// Fetch downloads bucket/object and returns its full content.
func (f *Fetcher) Fetch(ctx context.Context, bucket, object string) ([]byte, error) {
	const op = "Fetch"

	r, size, err := f.opener.Open(ctx, bucket, object)
	if err != nil {
		return nil, &FetchError{Op: op, Bucket: bucket, Object: object, Err: classifyError(err)}
	}
	defer func() {
		if closeErr := r.Close(); closeErr != nil {
			f.log.Warn().Err(closeErr).Str("object", object).Msg("Failed to close object reader")
		}
	}()

	if size > MaxObjectSizeBytes {
		return nil, &FetchError{Op: op, Bucket: bucket, Object: object,
			Err: fmt.Errorf("%w: %d bytes (max %d)", ErrObjectTooLarge, size, MaxObjectSizeBytes)}
	}

	// Read one byte past the limit so oversized objects of unknown size are caught.
	data, err := io.ReadAll(io.LimitReader(r, MaxObjectSizeBytes+1))
	if err != nil {
		return nil, &FetchError{Op: op, Bucket: bucket, Object: object, Err: classifyError(err)}
	}
	if len(data) > MaxObjectSizeBytes {
		return nil, &FetchError{Op: op, Bucket: bucket, Object: object,
			Err: fmt.Errorf("%w: more than %d bytes", ErrObjectTooLarge, MaxObjectSizeBytes)}
	}
	if size >= 0 && int64(len(data)) != size {
		return nil, &FetchError{Op: op, Bucket: bucket, Object: object,
			Err: fmt.Errorf("%w: short read: got %d of %d bytes", ErrTransport, len(data), size)}
	}

	f.log.Info().
		Str("source", fmt.Sprintf("gs://%s/%s", bucket, object)).
		Str("destination", "memory").
		Int("bytes", len(data)).
		Msg("Object downloaded")

	return data, nil
}

// Close closes the underlying Storage client, if any.
func (f *Fetcher) Close() error {
	if f.closer != nil {
		return f.closer.Close()
	}
	return nil
}

type clientOpener struct {
	client *storage.Client
}

func (o clientOpener) Open(ctx context.Context, bucket, object string) (io.ReadCloser, int64, error) {
	r, err := o.client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		return nil, 0, err
	}
	return r, r.Attrs.Size, nil
}
