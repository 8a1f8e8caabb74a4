package picstream

import (
	"context"
	"io"

	"github.com/google/uuid"
)

// Service defines the main interface for the picstream library
type Service interface {
	// Upload validates and stores a new image: blob first, then the
	// metadata record, then an UPLOAD event
	Upload(ctx context.Context, req UploadRequest) (*Image, error)

	// GetImage returns the metadata record for an id
	GetImage(ctx context.Context, id uuid.UUID) (*Image, error)

	// Download returns the raw content and the metadata record for an id
	Download(ctx context.Context, id uuid.UUID) (io.ReadCloser, *Image, error)

	// Delete removes the blob and the metadata record for an id and
	// emits a DELETE event
	Delete(ctx context.Context, id uuid.UUID) error

	// List returns all records in upload order
	List(ctx context.Context) ([]*Image, error)

	// Count returns the current number of records
	Count(ctx context.Context) (int, error)
}
