// Package remote defines the contract of the remote document store the
// local replica reconciles against, plus its concrete adapters.
//
// Documents are flat field maps (string → primitive). The sync envelope
// fields (version, last_modified, ...) are flattened alongside entity
// fields. The remote copy is never authoritative over a record with pending
// local changes; callers enforce that policy, not this package.
package remote

import (
	"context"
	"errors"
)

var (
	// ErrUnavailable marks any transport-level failure: the caller should
	// leave the record dirty and retry later.
	ErrUnavailable = errors.New("remote store unavailable")

	// ErrDocNotFound marks a document id absent from a collection.
	ErrDocNotFound = errors.New("document not found")
)

// Filter is one field=value equality constraint for Query.
type Filter struct {
	Field string
	Value any
}

// Store is the remote document store contract.
type Store interface {
	// Set writes a document. With merge=true existing fields not present in
	// fields are preserved; otherwise the document is replaced.
	Set(ctx context.Context, collection, docID string, fields map[string]any, merge bool) error

	// Get returns a single document.
	Get(ctx context.Context, collection, docID string) (map[string]any, error)

	// Query returns all documents of a collection matching every filter.
	Query(ctx context.Context, collection string, filters ...Filter) ([]map[string]any, error)

	// Delete removes a document. Deleting an absent document is not an error.
	Delete(ctx context.Context, collection, docID string) error

	// Ping reports whether the remote is reachable.
	Ping(ctx context.Context) error
}
