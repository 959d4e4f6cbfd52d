package repository

import (
	"context"

	"github.com/and161185/carbon-tracker/internal/model"
	"github.com/gofrs/uuid/v5"
)

// FootprintUpdate mutates the owner's footprint as part of an append. It runs while the
// owner is locked, so it sees the latest committed state. Returning an error aborts the append.
type FootprintUpdate func(fp *model.Footprint) error

// LedgerRepository owns activity records and keeps the owner's running totals in step.
type LedgerRepository interface {
	// Append stores the activity and applies update to the owner's footprint in one unit.
	Append(ctx context.Context, a model.Activity, update FootprintUpdate) (model.Footprint, error)

	// Remove deletes the owner's activity and subtracts its emissions from the total, floored at 0.
	// A missing or foreign record yields errs.ErrNotFound.
	Remove(ctx context.Context, userID, activityID uuid.UUID) (model.Activity, model.Footprint, error)

	// Find returns the owner's records matching q, newest first.
	Find(ctx context.Context, q model.ActivityQuery) ([]model.Activity, error)

	// Reconcile recomputes the owner's total from the ledger.
	Reconcile(ctx context.Context, userID uuid.UUID) (model.Footprint, error)
}
