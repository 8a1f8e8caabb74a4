package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// WithEnv applies environment variable overrides using the provided prefix.
//
// Environment variable mapping:
//
// Server:
//
//	PORT - Server port (default: "8080")
//	ENVIRONMENT - Runtime environment (default: "development")
//
// Database:
//
//	DATABASE_URL - "memory" (default) or a postgres connection string
//	               ("postgres://..." / "postgresql://...")
//
// Storage:
//
//	STORAGE_URL - Storage connection string (one of):
//	              - "memory://" - In-memory storage (default)
//	              - "file:///path/to/data" - Filesystem storage
//	              - "s3://bucket?region=us-east-1" - S3 storage
//	AWS_ACCESS_KEY_ID / AWS_SECRET_ACCESS_KEY - S3 credentials
//	AWS_ENDPOINT_URL - Custom S3 endpoint (MinIO etc.; implies path style)
//
// Event stream:
//
//	HEARTBEAT_INTERVAL - Go duration string (default: "5s")
//	EVENT_BUFFER_SIZE - Per-subscriber buffer capacity (default: 16)
func WithEnv(prefix string) Option {
	return func(c *ServerConfig) error {
		if v, ok := lookupEnv(prefix, "PORT"); ok && v != "" {
			c.Port = v
		}
		if v, ok := lookupEnv(prefix, "ENVIRONMENT"); ok && v != "" {
			c.Environment = v
		}

		if err := applyDatabaseEnv(prefix, c); err != nil {
			return err
		}

		if err := applyStorageEnv(prefix, c); err != nil {
			return err
		}

		if v, ok := lookupEnv(prefix, "HEARTBEAT_INTERVAL"); ok && v != "" {
			interval, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("invalid HEARTBEAT_INTERVAL %q: %w", v, err)
			}
			c.HeartbeatInterval = interval
		}
		if v, ok := lookupEnv(prefix, "EVENT_BUFFER_SIZE"); ok && v != "" {
			size, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid EVENT_BUFFER_SIZE %q: %w", v, err)
			}
			c.EventBufferSize = size
		}

		return nil
	}
}

// applyDatabaseEnv applies database configuration from environment
func applyDatabaseEnv(prefix string, c *ServerConfig) error {
	dbURL, hasURL := lookupEnv(prefix, "DATABASE_URL")

	if !hasURL || dbURL == "" || dbURL == "memory" {
		c.DatabaseType = "memory"
		c.DatabaseURL = ""
		return nil
	}

	if strings.HasPrefix(dbURL, "postgresql://") || strings.HasPrefix(dbURL, "postgres://") {
		c.DatabaseType = "postgres"
		c.DatabaseURL = dbURL
		return nil
	}

	return fmt.Errorf("unsupported DATABASE_URL format: %s (use 'memory' or 'postgresql://...')", dbURL)
}

// applyStorageEnv applies storage configuration from environment
func applyStorageEnv(prefix string, c *ServerConfig) error {
	storageURL, hasURL := lookupEnv(prefix, "STORAGE_URL")

	if !hasURL || storageURL == "" || storageURL == "memory" || storageURL == "memory://" {
		c.Storage = StorageBackendConfig{
			Type:   "memory",
			Config: map[string]interface{}{},
		}
		return nil
	}

	if strings.HasPrefix(storageURL, "file://") {
		return applyFilesystemStorage(storageURL, c)
	}
	if strings.HasPrefix(storageURL, "s3://") {
		return applyS3Storage(storageURL, prefix, c)
	}

	return fmt.Errorf("unsupported STORAGE_URL format: %s (use 'memory://', 'file://...', or 's3://...')", storageURL)
}

// applyFilesystemStorage configures filesystem storage from URL
// Format: file:///path/to/data
func applyFilesystemStorage(rawURL string, c *ServerConfig) error {
	path := strings.TrimPrefix(rawURL, "file://")
	if path == "" {
		return fmt.Errorf("filesystem path cannot be empty in STORAGE_URL")
	}

	c.Storage = StorageBackendConfig{
		Type: "fs",
		Config: map[string]interface{}{
			"base_dir": path,
		},
	}
	return nil
}

// applyS3Storage configures S3 storage from URL
// Format: s3://bucket?region=us-east-1
func applyS3Storage(rawURL, prefix string, c *ServerConfig) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid STORAGE_URL: %w", err)
	}
	if u.Host == "" {
		return fmt.Errorf("bucket name cannot be empty in STORAGE_URL")
	}

	cfg := map[string]interface{}{
		"bucket": u.Host,
	}
	if region := u.Query().Get("region"); region != "" {
		cfg["region"] = region
	}

	if v, ok := lookupEnv(prefix, "AWS_ACCESS_KEY_ID"); ok && v != "" {
		cfg["access_key_id"] = v
	}
	if v, ok := lookupEnv(prefix, "AWS_SECRET_ACCESS_KEY"); ok && v != "" {
		cfg["secret_access_key"] = v
	}
	if v, ok := lookupEnv(prefix, "AWS_ENDPOINT_URL"); ok && v != "" {
		cfg["endpoint"] = v
		cfg["use_path_style"] = true
		cfg["create_bucket_if_not_exist"] = true
	}

	c.Storage = StorageBackendConfig{
		Type:   "s3",
		Config: cfg,
	}
	return nil
}

func lookupEnv(prefix, key string) (string, bool) {
	if prefix != "" {
		key = prefix + "_" + key
	}
	return os.LookupEnv(key)
}
