package picstream

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// MaxUploadBytes is the largest accepted image size (10 MiB).
const MaxUploadBytes = 10 << 20

// allowedMimeTypes is the upload allow-list. Anything else is rejected
// before reaching storage.
var allowedMimeTypes = map[string]struct{}{
	"image/jpeg": {},
	"image/png":  {},
	"image/gif":  {},
	"image/webp": {},
}

// service implements the Service interface
type service struct {
	metadata  MetadataStore
	blobStore BlobStore
	events    EventPublisher
	logger    *slog.Logger
}

// Option represents a functional option for configuring the service
type Option func(*service)

// WithMetadataStore sets the metadata store for the service
func WithMetadataStore(store MetadataStore) Option {
	return func(s *service) {
		s.metadata = store
	}
}

// WithBlobStore sets the blob storage backend for the service
func WithBlobStore(store BlobStore) Option {
	return func(s *service) {
		s.blobStore = store
	}
}

// WithEventPublisher sets the event publisher for the service
func WithEventPublisher(pub EventPublisher) Option {
	return func(s *service) {
		s.events = pub
	}
}

// WithLogger sets the logger for the service
func WithLogger(logger *slog.Logger) Option {
	return func(s *service) {
		s.logger = logger
	}
}

// New creates a new service instance with the given options
func New(options ...Option) (Service, error) {
	s := &service{}

	for _, option := range options {
		option(s)
	}

	if s.metadata == nil {
		return nil, fmt.Errorf("metadata store is required")
	}
	if s.blobStore == nil {
		return nil, fmt.Errorf("blob store is required")
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}

	return s, nil
}

func (s *service) Upload(ctx context.Context, req UploadRequest) (*Image, error) {
	if err := validateUpload(req); err != nil {
		return nil, err
	}

	id := uuid.New()
	storageKey := id.String()

	if err := s.blobStore.UploadWithMimeType(ctx, storageKey, bytes.NewReader(req.Data), req.MimeType); err != nil {
		s.logger.Error("blob store failed", "key", storageKey, "error", err)
		return nil, &ImageError{ImageID: id, Op: "upload", Err: fmt.Errorf("%w: %v", ErrUploadFailed, err)}
	}

	displayName := req.Name
	if displayName == "" {
		displayName = req.FileName
	}

	image := &Image{
		ID:          id,
		DisplayName: displayName,
		SizeBytes:   int64(len(req.Data)),
		MimeType:    req.MimeType,
		UploadedAt:  time.Now().UTC(),
		StorageKey:  storageKey,
	}

	if err := s.metadata.Put(ctx, image); err != nil {
		// The blob is already stored; it is not deleted here. The
		// orphaned key is logged so an operator can reap it.
		s.logger.Error("metadata persistence failed after blob store; orphaned blob left",
			"key", storageKey, "error", err)
		return nil, &ImageError{ImageID: id, Op: "upload", Err: fmt.Errorf("%w: %v", ErrUploadFailed, err)}
	}

	s.publish(Event{
		Type:      EventUploaded,
		ImageID:   image.ID.String(),
		ImageName: image.DisplayName,
	})

	s.logger.Info("image uploaded", "id", image.ID, "name", image.DisplayName, "size", image.SizeBytes)
	return image, nil
}

func (s *service) GetImage(ctx context.Context, id uuid.UUID) (*Image, error) {
	return s.metadata.Get(ctx, id)
}

func (s *service) Download(ctx context.Context, id uuid.UUID) (io.ReadCloser, *Image, error) {
	image, err := s.metadata.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	reader, err := s.blobStore.Download(ctx, image.StorageKey)
	if err != nil {
		s.logger.Error("blob retrieval failed", "id", id, "key", image.StorageKey, "error", err)
		return nil, nil, &ImageError{ImageID: id, Op: "download", Err: fmt.Errorf("%w: %v", ErrDownloadFailed, err)}
	}

	return reader, image, nil
}

func (s *service) Delete(ctx context.Context, id uuid.UUID) error {
	image, err := s.metadata.Get(ctx, id)
	if err != nil {
		return err
	}

	// Blob first: if this fails the metadata stays, so the image is
	// still retrievable and the delete can be retried.
	if err := s.blobStore.Delete(ctx, image.StorageKey); err != nil {
		s.logger.Error("blob deletion failed", "id", id, "key", image.StorageKey, "error", err)
		return &ImageError{ImageID: id, Op: "delete", Err: fmt.Errorf("%w: %v", ErrDeleteFailed, err)}
	}

	if err := s.metadata.Delete(ctx, id); err != nil {
		s.logger.Error("metadata deletion failed", "id", id, "error", err)
		return &ImageError{ImageID: id, Op: "delete", Err: fmt.Errorf("%w: %v", ErrDeleteFailed, err)}
	}

	s.publish(Event{
		Type:      EventDeleted,
		ImageID:   image.ID.String(),
		ImageName: image.DisplayName,
	})

	s.logger.Info("image deleted", "id", id, "name", image.DisplayName)
	return nil
}

func (s *service) List(ctx context.Context) ([]*Image, error) {
	return s.metadata.List(ctx)
}

func (s *service) Count(ctx context.Context) (int, error) {
	return s.metadata.Count(ctx)
}

// publish emits an event when a publisher is configured. Publishing is
// fire-and-forget; it never affects the outcome of the operation.
func (s *service) publish(event Event) {
	if s.events != nil {
		s.events.Publish(event)
	}
}

// validateUpload checks the request before any side effect occurs.
func validateUpload(req UploadRequest) error {
	if len(req.Data) == 0 {
		return &ValidationError{Reason: "empty content"}
	}
	if _, ok := allowedMimeTypes[req.MimeType]; !ok {
		return &ValidationError{Reason: fmt.Sprintf("unsupported mime type %q", req.MimeType)}
	}
	if len(req.Data) > MaxUploadBytes {
		return &ValidationError{Reason: fmt.Sprintf("content size %d exceeds the 10 MB limit (%d bytes)", len(req.Data), MaxUploadBytes)}
	}
	return nil
}
