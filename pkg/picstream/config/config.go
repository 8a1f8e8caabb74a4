// Package config builds a picstream service from declarative
// configuration, with optional environment overrides.
package config

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/picstream/picstream/pkg/picstream"
	"github.com/picstream/picstream/pkg/picstream/eventbus"
	memoryrepo "github.com/picstream/picstream/pkg/picstream/repo/memory"
	postgresrepo "github.com/picstream/picstream/pkg/picstream/repo/postgres"
	fsstorage "github.com/picstream/picstream/pkg/picstream/storage/fs"
	memorystorage "github.com/picstream/picstream/pkg/picstream/storage/memory"
	s3storage "github.com/picstream/picstream/pkg/picstream/storage/s3"
)

// Option applies configuration to a ServerConfig instance.
type Option func(*ServerConfig) error

// Load constructs a ServerConfig by applying the supplied options on top of library defaults.
func Load(opts ...Option) (*ServerConfig, error) {
	cfg := defaults()

	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func defaults() ServerConfig {
	return ServerConfig{
		Port:         "8080",
		Environment:  "development",
		DatabaseType: "memory",
		Storage: StorageBackendConfig{
			Type:   "memory",
			Config: map[string]interface{}{},
		},
		HeartbeatInterval: eventbus.DefaultHeartbeatInterval,
		EventBufferSize:   eventbus.DefaultBufferSize,
	}
}

// ServerConfig represents server configuration for the picstream service
type ServerConfig struct {
	Port        string
	Environment string // development, production, testing

	// Database configuration
	DatabaseURL  string
	DatabaseType string // "memory", "postgres"

	// Storage configuration
	Storage StorageBackendConfig

	// Event stream options
	HeartbeatInterval time.Duration
	EventBufferSize   int
}

// StorageBackendConfig represents configuration for a storage backend
type StorageBackendConfig struct {
	Type   string // "memory", "fs", "s3"
	Config map[string]interface{}
}

// Validate validates the server configuration
func (c *ServerConfig) Validate() error {
	if c.Port == "" {
		return errors.New("port is required")
	}

	if c.DatabaseType != "memory" && c.DatabaseType != "postgres" {
		return errors.New("database_type must be 'memory' or 'postgres'")
	}

	if c.DatabaseType == "postgres" && c.DatabaseURL == "" {
		return errors.New("database_url is required when using postgres")
	}

	switch c.Storage.Type {
	case "memory", "fs", "s3":
	default:
		return fmt.Errorf("unsupported storage type: %s", c.Storage.Type)
	}

	if c.HeartbeatInterval <= 0 {
		return errors.New("heartbeat interval must be positive")
	}
	if c.EventBufferSize <= 0 {
		return errors.New("event buffer size must be positive")
	}

	return nil
}

// BuildService creates a Service and its event bus from the server configuration.
func (c *ServerConfig) BuildService(ctx context.Context) (picstream.Service, *eventbus.Bus, error) {
	store, err := c.buildMetadataStore(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build metadata store: %w", err)
	}

	blobStore, err := c.buildStorageBackend()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build storage backend: %w", err)
	}

	bus := eventbus.New(
		eventbus.WithHeartbeatInterval(c.HeartbeatInterval),
		eventbus.WithBufferSize(c.EventBufferSize),
	)

	svc, err := picstream.New(
		picstream.WithMetadataStore(store),
		picstream.WithBlobStore(blobStore),
		picstream.WithEventPublisher(bus),
	)
	if err != nil {
		return nil, nil, err
	}

	return svc, bus, nil
}

func (c *ServerConfig) buildMetadataStore(ctx context.Context) (picstream.MetadataStore, error) {
	switch c.DatabaseType {
	case "memory":
		return memoryrepo.New(), nil
	case "postgres":
		pool, err := pgxpool.New(ctx, c.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to create connection pool: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		return postgresrepo.NewWithPool(pool), nil
	default:
		return nil, fmt.Errorf("unsupported database type: %s", c.DatabaseType)
	}
}

func (c *ServerConfig) buildStorageBackend() (picstream.BlobStore, error) {
	switch c.Storage.Type {
	case "memory":
		return memorystorage.New(), nil
	case "fs":
		baseDir, _ := c.Storage.Config["base_dir"].(string)
		return fsstorage.New(fsstorage.Config{BaseDir: baseDir})
	case "s3":
		s3cfg := s3storage.Config{}
		if v, ok := c.Storage.Config["bucket"].(string); ok {
			s3cfg.Bucket = v
		}
		if v, ok := c.Storage.Config["region"].(string); ok {
			s3cfg.Region = v
		}
		if v, ok := c.Storage.Config["access_key_id"].(string); ok {
			s3cfg.AccessKeyID = v
		}
		if v, ok := c.Storage.Config["secret_access_key"].(string); ok {
			s3cfg.SecretAccessKey = v
		}
		if v, ok := c.Storage.Config["endpoint"].(string); ok {
			s3cfg.Endpoint = v
		}
		if v, ok := c.Storage.Config["use_path_style"].(bool); ok {
			s3cfg.UsePathStyle = v
		}
		if v, ok := c.Storage.Config["create_bucket_if_not_exist"].(bool); ok {
			s3cfg.CreateBucketIfNotExist = v
		}
		return s3storage.New(s3cfg)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", c.Storage.Type)
	}
}
