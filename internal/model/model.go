// Package model defines domain entities used by services and repositories.
package model

import (
	"time"

	"github.com/gofrs/uuid/v5"
)

// Category is one of the four activity groups.
type Category string

const (
	CategoryTransport Category = "transport"
	CategoryEnergy    Category = "energy"
	CategoryFood      Category = "food"
	CategoryWaste     Category = "waste"
)

// Tokens collects issued access tokens.
type Tokens struct {
	AccessToken string
	ExpiresAt   time.Time // access token expiry
}

// Activity is a single ledger record. Immutable after creation except for deletion.
type Activity struct {
	ID           uuid.UUID
	UserID       uuid.UUID // FK -> users.id
	Category     Category
	ActivityType string
	Amount       float64 // > 0
	Unit         string  // derived from the factor table at creation
	Emissions    float64 // kg CO2e, full precision
	OccurredAt   time.Time
	CreatedAt    time.Time
}

// Footprint is the per-user running state mutated as a side effect of ledger writes.
type Footprint struct {
	UserID           uuid.UUID
	Username         string
	TotalEmissions   float64    // == sum of the user's activity emissions, never negative
	Streak           int        // consecutive days with at least one activity
	LastActivityDate *time.Time // calendar day (midnight UTC of that date), nil before the first activity
}

// User represents an account stored on the server.
type User struct {
	ID        uuid.UUID // PK
	Username  string    // unique
	Email     string    // unique, lowercased
	PwdHash   []byte    // bcrypt
	CreatedAt time.Time
	Footprint Footprint
}

// ActivityQuery selects ledger records for one owner.
type ActivityQuery struct {
	UserID   uuid.UUID
	From     time.Time  // inclusive; zero means unbounded
	To       *time.Time // exclusive; nil means unbounded
	Category *Category  // nil means all categories
	Limit    int        // <= 0 means no limit
}
