package memory

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"

	"github.com/picstream/picstream/pkg/picstream"
)

// Backend is an in-memory implementation of the picstream.BlobStore interface
type Backend struct {
	mu            sync.RWMutex
	blobs         map[string][]byte
	blobMimeTypes map[string]string
}

// New creates a new in-memory storage backend
func New() picstream.BlobStore {
	return &Backend{
		blobs:         make(map[string][]byte),
		blobMimeTypes: make(map[string]string),
	}
}

// Upload stores content directly in memory
func (b *Backend) Upload(ctx context.Context, key string, reader io.Reader) error {
	data, err := io.ReadAll(reader)
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.blobs[key] = data
	// Set default MIME type if not set
	if _, exists := b.blobMimeTypes[key]; !exists {
		b.blobMimeTypes[key] = "application/octet-stream"
	}
	return nil
}

// UploadWithMimeType stores content and records its declared MIME type
func (b *Backend) UploadWithMimeType(ctx context.Context, key string, reader io.Reader, mimeType string) error {
	data, err := io.ReadAll(reader)
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.blobs[key] = data
	b.blobMimeTypes[key] = mimeType
	return nil
}

// Download retrieves content directly from memory
func (b *Backend) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	data, exists := b.blobs[key]
	if !exists {
		return nil, errors.New("blob not found")
	}

	return io.NopCloser(bytes.NewReader(data)), nil
}

// Delete removes content from memory
func (b *Backend) Delete(ctx context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.blobs[key]; !exists {
		return errors.New("blob not found")
	}

	delete(b.blobs, key)
	delete(b.blobMimeTypes, key)
	return nil
}

// Meta retrieves metadata for a blob in memory
func (b *Backend) Meta(ctx context.Context, key string) (*picstream.BlobMeta, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	data, exists := b.blobs[key]
	if !exists {
		return nil, errors.New("blob not found")
	}

	return &picstream.BlobMeta{
		Key:         key,
		Size:        int64(len(data)),
		ContentType: b.blobMimeTypes[key],
	}, nil
}
