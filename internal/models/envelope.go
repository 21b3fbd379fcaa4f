// Package models defines the synced entity types of the stallbook core.
// Every synchronized entity embeds the sync Envelope; amounts are integer
// cents to keep reconciliation arithmetic exact.
package models

import (
	"time"

	"github.com/google/uuid"
)

// Envelope is the sync envelope shared by all synchronized entities.
//
// Version and LastModified are updated together and only by the owning
// repository/service; Dirty means the local copy has not yet been confirmed
// written to the remote store. Active is the soft-delete flag.
type Envelope struct {
	ID           string
	OwnerID      string
	Version      int64
	LastModified int64 // epoch millis
	Dirty        bool
	Active       bool
}

// NewEnvelope returns a fresh envelope for a locally created entity.
func NewEnvelope(ownerID string, now time.Time) Envelope {
	return Envelope{
		ID:           uuid.NewString(),
		OwnerID:      ownerID,
		Version:      1,
		LastModified: now.UnixMilli(),
		Dirty:        true,
		Active:       true,
	}
}

// Touch records a local mutation: bumps Version, stamps LastModified and
// marks the record dirty.
func (e *Envelope) Touch(now time.Time) {
	e.Version++
	e.LastModified = now.UnixMilli()
	e.Dirty = true
}

// envelopeDoc flattens the envelope into a remote field map. Entity fields
// are merged in alongside by each entity's Doc method.
func (e *Envelope) envelopeDoc() map[string]any {
	return map[string]any{
		"id":            e.ID,
		"owner_id":      e.OwnerID,
		"version":       e.Version,
		"last_modified": e.LastModified,
		"is_active":     e.Active,
	}
}

func envelopeFromDoc(doc map[string]any) Envelope {
	return Envelope{
		ID:           docString(doc, "id"),
		OwnerID:      docString(doc, "owner_id"),
		Version:      docInt64(doc, "version"),
		LastModified: docInt64(doc, "last_modified"),
		Dirty:        false, // a record read from remote is clean by definition
		Active:       docBool(doc, "is_active"),
	}
}
