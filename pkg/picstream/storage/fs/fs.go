package fs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/picstream/picstream/pkg/picstream"
)

// Backend is a filesystem implementation of the picstream.BlobStore interface
type Backend struct {
	baseDir string
}

// Config options for the filesystem backend
type Config struct {
	BaseDir string // Base directory for storing blobs
}

// New creates a new filesystem storage backend
func New(config Config) (picstream.BlobStore, error) {
	if config.BaseDir == "" {
		return nil, errors.New("base directory is required")
	}

	if err := os.MkdirAll(config.BaseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}

	return &Backend{baseDir: config.BaseDir}, nil
}

// Upload stores content as a file under the base directory
func (b *Backend) Upload(ctx context.Context, key string, reader io.Reader) error {
	filePath := filepath.Join(b.baseDir, key)

	dir := filepath.Dir(filePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	file, err := os.Create(filePath)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	if _, err := io.Copy(file, reader); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}

	return nil
}

// UploadWithMimeType stores content; the filesystem backend does not
// persist the MIME type separately, it is detected on Meta.
func (b *Backend) UploadWithMimeType(ctx context.Context, key string, reader io.Reader, mimeType string) error {
	return b.Upload(ctx, key, reader)
}

// Download retrieves content from the filesystem
func (b *Backend) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	file, err := os.Open(filepath.Join(b.baseDir, key))
	if os.IsNotExist(err) {
		return nil, errors.New("blob not found")
	} else if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}

	return file, nil
}

// Delete removes content from the filesystem
func (b *Backend) Delete(ctx context.Context, key string) error {
	err := os.Remove(filepath.Join(b.baseDir, key))
	if os.IsNotExist(err) {
		return errors.New("blob not found")
	} else if err != nil {
		return fmt.Errorf("failed to delete file: %w", err)
	}

	return nil
}

// Meta retrieves metadata for a blob on the filesystem
func (b *Backend) Meta(ctx context.Context, key string) (*picstream.BlobMeta, error) {
	filePath := filepath.Join(b.baseDir, key)

	info, err := os.Stat(filePath)
	if os.IsNotExist(err) {
		return nil, errors.New("blob not found")
	} else if err != nil {
		return nil, fmt.Errorf("failed to get file info: %w", err)
	}

	// Detect content type from the leading bytes
	contentType := "application/octet-stream"
	if file, err := os.Open(filePath); err == nil {
		defer file.Close()
		buffer := make([]byte, 512)
		if n, err := file.Read(buffer); err == nil {
			contentType = http.DetectContentType(buffer[:n])
		}
	}

	return &picstream.BlobMeta{
		Key:         key,
		Size:        info.Size(),
		ContentType: contentType,
		UpdatedAt:   info.ModTime(),
	}, nil
}
