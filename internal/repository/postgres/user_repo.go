package postgres

import (
	"context"
	"errors"

	"github.com/and161185/carbon-tracker/internal/errs"
	"github.com/and161185/carbon-tracker/internal/model"
	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"
)

// UserRepo implements UserRepository using PostgreSQL.
type UserRepo struct{ db *DB }

// NewUserRepo constructs a user repository.
func NewUserRepo(db *DB) *UserRepo { return &UserRepo{db: db} }

const userColumns = `id, username, email, pwd_hash, created_at, total_emissions, streak, last_activity_date`

func scanUser(row pgx.Row) (*model.User, error) {
	var u model.User
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PwdHash, &u.CreatedAt,
		&u.Footprint.TotalEmissions, &u.Footprint.Streak, &u.Footprint.LastActivityDate)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	u.Footprint.UserID = u.ID
	u.Footprint.Username = u.Username
	return &u, nil
}

// Create inserts a new user row.
func (r *UserRepo) Create(ctx context.Context, u *model.User) error {
	const q = `
INSERT INTO users (id, username, email, pwd_hash)
VALUES ($1, $2, $3, $4)`
	_, err := r.db.Pool.Exec(ctx, q, u.ID, u.Username, u.Email, u.PwdHash)
	if isUniqueViolation(err) {
		return errs.ErrAlreadyExists
	}
	return err
}

// GetByID selects a user by ID.
func (r *UserRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	const q = `SELECT ` + userColumns + ` FROM users WHERE id=$1`
	return scanUser(r.db.Pool.QueryRow(ctx, q, id))
}

// GetByLogin selects a user by username or (lowercased) email.
func (r *UserRepo) GetByLogin(ctx context.Context, login string) (*model.User, error) {
	const q = `SELECT ` + userColumns + ` FROM users WHERE username=$1 OR email=lower($1)
ORDER BY (username=$1) DESC LIMIT 1`
	return scanUser(r.db.Pool.QueryRow(ctx, q, login))
}

// Footprint selects the running state of a user.
func (r *UserRepo) Footprint(ctx context.Context, id uuid.UUID) (model.Footprint, error) {
	const q = `SELECT ` + footprintColumns + ` FROM users WHERE id=$1`
	var fp model.Footprint
	if err := scanFootprint(r.db.Pool.QueryRow(ctx, q, id), &fp); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Footprint{}, errs.ErrNotFound
		}
		return model.Footprint{}, err
	}
	return fp, nil
}

// ActiveFootprints selects users with a positive running total in registration order.
func (r *UserRepo) ActiveFootprints(ctx context.Context) ([]model.Footprint, error) {
	const q = `
SELECT ` + footprintColumns + `
FROM users
WHERE total_emissions > 0
ORDER BY created_at ASC, id ASC`
	rows, err := r.db.Pool.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Footprint
	for rows.Next() {
		var fp model.Footprint
		if err := scanFootprint(rows, &fp); err != nil {
			return nil, err
		}
		out = append(out, fp)
	}
	return out, rows.Err()
}
