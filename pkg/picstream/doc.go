// Package picstream provides a library for storing binary images with
// metadata and broadcasting change events to live subscribers.
//
// It exposes a single Service interface that orchestrates validation,
// blob storage, metadata persistence, and event emission. Metadata
// stores (memory, Postgres) and blob stores (memory, filesystem, S3)
// are provided under subpackages, as is the fan-out event bus.
//
// The metadata store is the source of truth for existence: an image id
// with no metadata record is treated as not found regardless of blob
// storage contents.
package picstream
