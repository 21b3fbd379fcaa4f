// Package services implements the business operations of the stallbook
// core: per-entity CRUD with sync bookkeeping, the market-event lifecycle
// automaton, the cash-reconciliation engine and the sync coordinator.
//
// Every mutating operation follows the same shape: validate, write the
// local store inside one transaction (bumping Version/LastModified and
// setting the dirty flag), then hand a fire-and-forget remote push to a
// background goroutine. The caller never waits on the network; remote
// failures only leave the record dirty for a later flush.
package services

import (
	"context"
	"fmt"

	"github.com/stallbook/stallbook/internal/common"
	"github.com/stallbook/stallbook/internal/logging"
	"github.com/stallbook/stallbook/internal/remote"
)

// pushRecord dispatches the opportunistic remote write of a freshly
// committed record on its own goroutine, so the mutating call returns as
// soon as the local transaction commits. On success the local dirty flag
// is cleared, guarded by the pushed version so a concurrent local edit is
// never marked clean. Failures are logged and swallowed.
func pushRecord(ctx context.Context, rs remote.Store, logger logging.Logger,
	collection, id string, version int64, doc map[string]any,
	markClean func(context.Context, string, int64) error) {

	// the push outlives the caller's request scope
	ctx = context.WithoutCancel(ctx)
	go func() {
		if err := rs.Set(ctx, collection, id, doc, true); err != nil {
			logger.Warn(ctx, "remote push failed, record stays dirty",
				"collection", collection, "id", id, "error", syncErr(err))
			return
		}
		if err := markClean(ctx, id, version); err != nil {
			logger.Warn(ctx, "could not clear dirty flag after push",
				"collection", collection, "id", id, "error", err)
		}
	}()
}

// storageErr wraps a local transaction failure in the storage sentinel.
func storageErr(err error) error {
	return fmt.Errorf("%w: %v", common.ErrStorage, err)
}

// syncErr wraps a remote transport failure in the sync sentinel.
func syncErr(err error) error {
	return fmt.Errorf("%w: %v", common.ErrSync, err)
}
