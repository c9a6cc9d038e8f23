// Package storage selects and drives the persistent record store. Three
// backend variants are supported, tried in a fixed preference order at
// startup: a cgo SQLite build (fastest, needs a working native toolchain on
// the host), a pure Go SQLite build (portable, slower), and a flat JSON
// document file (always available, no query language).
package storage

import (
	"context"
	"errors"
)

// Variant identifies a concrete storage engine implementation.
type Variant string

const (
	// VariantNative is SQLite through the cgo driver.
	VariantNative Variant = "native-binary"

	// VariantEmbedded is SQLite through the pure Go driver.
	VariantEmbedded Variant = "embedded-engine"

	// VariantFlatFile is a JSON document store.
	VariantFlatFile Variant = "flat-file"
)

// Common errors
var (
	ErrNotFound          = errors.New("storage: key not found")
	ErrClosed            = errors.New("storage: backend closed")
	ErrQueryUnsupported  = errors.New("storage: backend has no query language")
	ErrAllBackendsFailed = errors.New("storage: no backend variant could be initialized")
	ErrNotInitialized    = errors.New("storage: selector not initialized")
)

// Backend is the capability contract every variant satisfies. Close is
// idempotent and safe on a never-opened or already-closed backend.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error

	// All returns every stored key/value pair. Flat-file callers use this
	// for full-scan queries; SQL variants also satisfy Querier.
	All(ctx context.Context) (map[string][]byte, error)

	Close() error
}

// Querier is satisfied by the SQL-capable variants. The flat-file variant
// does not implement it; higher layers fall back to scanning All.
type Querier interface {
	Query(ctx context.Context, query string, args ...any) ([]map[string]any, error)
}
