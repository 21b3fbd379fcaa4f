// Package common defines shared sentinel errors used across the stallbook
// core. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// ErrValidation marks a business-rule violation. The operation is
	// rejected before any store write happens.
	ErrValidation = errors.New("validation error")

	// ErrNotFound marks a referenced entity id that is absent locally.
	ErrNotFound = errors.New("not found")

	// ErrState marks an operation not permitted in the current lifecycle
	// state, e.g. confirming a cash count on an event that is not pending
	// reconciliation.
	ErrState = errors.New("operation not allowed in current state")

	// ErrSync marks a remote push or pull failure. Mutating operations
	// never surface it; explicit sync runs return it so callers can tell a
	// failed flush from a clean one with errors.Is.
	ErrSync = errors.New("sync error")

	// ErrStorage marks a local transaction failure. Fatal for the operation:
	// surfaced to the caller, no partial effect remains.
	ErrStorage = errors.New("storage error")

	// ErrConfirmationRequired marks an irreversible operation that was
	// invoked without its explicit confirmation flag set.
	ErrConfirmationRequired = errors.New("explicit confirmation required")
)
