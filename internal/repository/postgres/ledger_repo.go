package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/and161185/carbon-tracker/internal/errs"
	"github.com/and161185/carbon-tracker/internal/model"
	"github.com/and161185/carbon-tracker/internal/repository"
	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"
)

// LedgerRepo implements LedgerRepository using PostgreSQL.
// The owner's users row is the serialisation point for writes.
type LedgerRepo struct{ db *DB }

// NewLedgerRepo constructs a ledger repository.
func NewLedgerRepo(db *DB) *LedgerRepo { return &LedgerRepo{db: db} }

const activityColumns = `id, user_id, category, activity_type, amount, unit, emissions, occurred_at, created_at`

func scanActivity(row pgx.Row, a *model.Activity) error {
	return row.Scan(&a.ID, &a.UserID, &a.Category, &a.ActivityType, &a.Amount, &a.Unit,
		&a.Emissions, &a.OccurredAt, &a.CreatedAt)
}

// Append locks the owner row, applies update, inserts the activity and writes the footprint back.
func (r *LedgerRepo) Append(
	ctx context.Context, a model.Activity, update repository.FootprintUpdate,
) (model.Footprint, error) {
	const sel = `SELECT ` + footprintColumns + ` FROM users WHERE id=$1 FOR UPDATE`
	const ins = `INSERT INTO activities (` + activityColumns + `) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`
	const upd = `UPDATE users SET total_emissions=$2, streak=$3, last_activity_date=$4 WHERE id=$1`

	var fp model.Footprint
	err := withTx(ctx, r.db, func(tx pgx.Tx) error {
		if err := scanFootprint(tx.QueryRow(ctx, sel, a.UserID), &fp); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return errs.ErrNotFound
			}
			return err
		}
		if err := update(&fp); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, ins, a.ID, a.UserID, a.Category, a.ActivityType, a.Amount, a.Unit,
			a.Emissions, a.OccurredAt, a.CreatedAt); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, upd, fp.UserID, fp.TotalEmissions, fp.Streak, fp.LastActivityDate)
		return err
	})
	if err != nil {
		return model.Footprint{}, err
	}
	return fp, nil
}

// Remove deletes the owner's record and decrements the running total atomically, floored at 0.
func (r *LedgerRepo) Remove(ctx context.Context, userID, activityID uuid.UUID) (model.Activity, model.Footprint, error) {
	const del = `DELETE FROM activities WHERE id=$1 AND user_id=$2 RETURNING ` + activityColumns
	const upd = `
UPDATE users SET total_emissions = GREATEST(0, total_emissions - $2)
WHERE id=$1
RETURNING ` + footprintColumns

	var (
		a  model.Activity
		fp model.Footprint
	)
	err := withTx(ctx, r.db, func(tx pgx.Tx) error {
		if err := scanActivity(tx.QueryRow(ctx, del, activityID, userID), &a); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return errs.ErrNotFound
			}
			return err
		}
		if err := scanFootprint(tx.QueryRow(ctx, upd, userID, a.Emissions), &fp); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return errs.ErrNotFound
			}
			return err
		}
		return nil
	})
	if err != nil {
		return model.Activity{}, model.Footprint{}, err
	}
	return a, fp, nil
}

// Find selects the owner's records for the query window, newest first.
func (r *LedgerRepo) Find(ctx context.Context, q model.ActivityQuery) ([]model.Activity, error) {
	sql, args := buildFind(q)
	rows, err := r.db.Pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Activity{}
	for rows.Next() {
		var a model.Activity
		if err := scanActivity(rows, &a); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func buildFind(q model.ActivityQuery) (string, []any) {
	var sb strings.Builder
	sb.WriteString(`SELECT ` + activityColumns + ` FROM activities WHERE user_id=$1`)
	args := []any{q.UserID}
	if !q.From.IsZero() {
		args = append(args, q.From)
		fmt.Fprintf(&sb, ` AND occurred_at >= $%d`, len(args))
	}
	if q.To != nil {
		args = append(args, *q.To)
		fmt.Fprintf(&sb, ` AND occurred_at < $%d`, len(args))
	}
	if q.Category != nil {
		args = append(args, *q.Category)
		fmt.Fprintf(&sb, ` AND category = $%d`, len(args))
	}
	sb.WriteString(` ORDER BY occurred_at DESC, id DESC`)
	if q.Limit > 0 {
		args = append(args, q.Limit)
		fmt.Fprintf(&sb, ` LIMIT $%d`, len(args))
	}
	return sb.String(), args
}

// Reconcile sets the running total to the sum of the owner's ledger.
func (r *LedgerRepo) Reconcile(ctx context.Context, userID uuid.UUID) (model.Footprint, error) {
	const q = `
UPDATE users
SET total_emissions = COALESCE((SELECT SUM(emissions) FROM activities WHERE user_id=$1), 0)
WHERE id=$1
RETURNING ` + footprintColumns
	var fp model.Footprint
	if err := scanFootprint(r.db.Pool.QueryRow(ctx, q, userID), &fp); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Footprint{}, errs.ErrNotFound
		}
		return model.Footprint{}, err
	}
	return fp, nil
}
