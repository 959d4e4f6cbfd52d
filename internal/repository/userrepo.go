// Package repository defines storage interfaces implemented by concrete backends.
package repository

import (
	"context"

	"github.com/and161185/carbon-tracker/internal/model"
	"github.com/gofrs/uuid/v5"
)

// UserRepository provides access to accounts and their footprints.
type UserRepository interface {
	// Create inserts a new user with an empty footprint.
	Create(ctx context.Context, u *model.User) error
	// GetByID loads a user by ID.
	GetByID(ctx context.Context, id uuid.UUID) (*model.User, error)
	// GetByLogin loads a user by username or email.
	GetByLogin(ctx context.Context, login string) (*model.User, error)
	// Footprint loads the running state of a user.
	Footprint(ctx context.Context, id uuid.UUID) (model.Footprint, error)
	// ActiveFootprints lists footprints with a positive total, in registration order.
	ActiveFootprints(ctx context.Context) ([]model.Footprint, error)
}
