package picstream

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"
)

// BlobStore defines the interface for binary storage backends.
//
// Backends do not distinguish a missing key from any other failure;
// callers treat metadata absence as the not-found signal.
type BlobStore interface {
	// Upload stores content under the given key
	Upload(ctx context.Context, key string, reader io.Reader) error

	// UploadWithMimeType stores content and records its declared MIME type
	UploadWithMimeType(ctx context.Context, key string, reader io.Reader, mimeType string) error

	// Download retrieves content for the given key
	Download(ctx context.Context, key string) (io.ReadCloser, error)

	// Delete removes content for the given key
	Delete(ctx context.Context, key string) error

	// Meta retrieves storage-level metadata for the given key
	Meta(ctx context.Context, key string) (*BlobMeta, error)
}

// MetadataStore defines the interface for image record persistence.
//
// Implementations must be safe for arbitrary concurrent callers, and
// operations on distinct ids must not contend on a shared lock. List
// and Count observe some serialization of concurrent mutations; only
// per-id operations are linearizable.
type MetadataStore interface {
	// Put inserts or replaces a record by id. Replacing keeps the
	// record's original enumeration position.
	Put(ctx context.Context, image *Image) error

	// Get returns the record or ErrImageNotFound
	Get(ctx context.Context, id uuid.UUID) (*Image, error)

	// Delete removes the record if present; a missing id is a no-op
	Delete(ctx context.Context, id uuid.UUID) error

	// List returns a snapshot of all records in insertion order
	List(ctx context.Context) ([]*Image, error)

	// Count returns the current number of records
	Count(ctx context.Context) (int, error)
}

// EventPublisher defines the interface for emitting domain events.
// Publish never blocks and never fails back to the caller.
type EventPublisher interface {
	Publish(event Event)
}

// BlobMeta contains storage-level metadata about a stored blob
type BlobMeta struct {
	Key         string
	Size        int64
	ContentType string
	UpdatedAt   time.Time
	ETag        string
}
