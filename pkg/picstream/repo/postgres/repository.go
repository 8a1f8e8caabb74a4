// Package postgres provides a durable implementation of
// picstream.MetadataStore backed by PostgreSQL.
//
// Insertion order is preserved through a bigserial position column
// assigned on first insert; replacing a record by id keeps its
// position.
//
// Expected schema:
//
//	CREATE TABLE image (
//	    id           UUID PRIMARY KEY,
//	    display_name TEXT NOT NULL,
//	    size_bytes   BIGINT NOT NULL,
//	    mime_type    TEXT NOT NULL,
//	    uploaded_at  TIMESTAMPTZ NOT NULL,
//	    storage_key  TEXT NOT NULL,
//	    position     BIGSERIAL
//	);
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/picstream/picstream/pkg/picstream"
)

// DBTX is an interface that allows us to use either a database connection or a transaction
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// Repository implements picstream.MetadataStore using PostgreSQL
type Repository struct {
	db DBTX
}

// New creates a new PostgreSQL metadata store
func New(db DBTX) *Repository {
	return &Repository{db: db}
}

// NewWithPool creates a new PostgreSQL metadata store with a connection pool
func NewWithPool(pool *pgxpool.Pool) *Repository {
	return &Repository{db: pool}
}

// handlePostgresError maps driver errors to stable messages
func (r *Repository) handlePostgresError(operation string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23502": // not_null_violation
			return fmt.Errorf("required field %s is missing", pgErr.ColumnName)
		case "42P01": // undefined_table
			return fmt.Errorf("table does not exist - database migration required")
		default:
			return fmt.Errorf("database error in %s: %s (code: %s)", operation, pgErr.Message, pgErr.Code)
		}
	}

	return fmt.Errorf("database error in %s: %w", operation, err)
}

func (r *Repository) Put(ctx context.Context, image *picstream.Image) error {
	query := `
		INSERT INTO image (id, display_name, size_bytes, mime_type, uploaded_at, storage_key)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			display_name = EXCLUDED.display_name,
			size_bytes = EXCLUDED.size_bytes,
			mime_type = EXCLUDED.mime_type,
			uploaded_at = EXCLUDED.uploaded_at,
			storage_key = EXCLUDED.storage_key`

	_, err := r.db.Exec(ctx, query,
		image.ID, image.DisplayName, image.SizeBytes,
		image.MimeType, image.UploadedAt, image.StorageKey)

	if err != nil {
		return r.handlePostgresError("put image", err)
	}

	return nil
}

func (r *Repository) Get(ctx context.Context, id uuid.UUID) (*picstream.Image, error) {
	query := `
		SELECT id, display_name, size_bytes, mime_type, uploaded_at, storage_key
		FROM image WHERE id = $1`

	var image picstream.Image
	err := r.db.QueryRow(ctx, query, id).Scan(
		&image.ID, &image.DisplayName, &image.SizeBytes,
		&image.MimeType, &image.UploadedAt, &image.StorageKey)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, picstream.ErrImageNotFound
		}
		return nil, r.handlePostgresError("get image", err)
	}

	return &image, nil
}

func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	// Deleting a missing id is a no-op, matching the store contract.
	_, err := r.db.Exec(ctx, `DELETE FROM image WHERE id = $1`, id)
	if err != nil {
		return r.handlePostgresError("delete image", err)
	}

	return nil
}

func (r *Repository) List(ctx context.Context) ([]*picstream.Image, error) {
	query := `
		SELECT id, display_name, size_bytes, mime_type, uploaded_at, storage_key
		FROM image ORDER BY position`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, r.handlePostgresError("list images", err)
	}
	defer rows.Close()

	var result []*picstream.Image
	for rows.Next() {
		var image picstream.Image
		if err := rows.Scan(
			&image.ID, &image.DisplayName, &image.SizeBytes,
			&image.MimeType, &image.UploadedAt, &image.StorageKey); err != nil {
			return nil, r.handlePostgresError("list images", err)
		}
		result = append(result, &image)
	}

	if err := rows.Err(); err != nil {
		return nil, r.handlePostgresError("list images", err)
	}

	return result, nil
}

func (r *Repository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM image`).Scan(&count); err != nil {
		return 0, r.handlePostgresError("count images", err)
	}

	return count, nil
}
