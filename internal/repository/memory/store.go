// Package memory provides an in-process implementation of the repository interfaces
// for local development and tests. State is lost on restart.
package memory

import (
	"bytes"
	"context"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/and161185/carbon-tracker/internal/errs"
	"github.com/and161185/carbon-tracker/internal/model"
	"github.com/and161185/carbon-tracker/internal/repository"
	"github.com/gofrs/uuid/v5"
)

// Store keeps users and their ledgers in maps.
// mu guards the maps; owner locks serialise writes for a single user.
type Store struct {
	mu         sync.RWMutex
	users      map[uuid.UUID]*model.User
	order      []uuid.UUID // registration order
	byUsername map[string]uuid.UUID
	byEmail    map[string]uuid.UUID
	activities map[uuid.UUID][]model.Activity

	ownersMu sync.Mutex
	owners   map[uuid.UUID]*sync.Mutex

	now func() time.Time
}

var (
	_ repository.UserRepository   = (*Store)(nil)
	_ repository.LedgerRepository = (*Store)(nil)
)

// New constructs an empty store.
func New() *Store {
	return &Store{
		users:      make(map[uuid.UUID]*model.User),
		byUsername: make(map[string]uuid.UUID),
		byEmail:    make(map[string]uuid.UUID),
		activities: make(map[uuid.UUID][]model.Activity),
		owners:     make(map[uuid.UUID]*sync.Mutex),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (s *Store) ownerLock(id uuid.UUID) *sync.Mutex {
	s.ownersMu.Lock()
	defer s.ownersMu.Unlock()
	m, ok := s.owners[id]
	if !ok {
		m = &sync.Mutex{}
		s.owners[id] = m
	}
	return m
}

func cloneUser(u *model.User) *model.User {
	c := *u
	c.PwdHash = append([]byte(nil), u.PwdHash...)
	c.Footprint = cloneFootprint(u.Footprint)
	return &c
}

func cloneFootprint(fp model.Footprint) model.Footprint {
	if fp.LastActivityDate != nil {
		d := *fp.LastActivityDate
		fp.LastActivityDate = &d
	}
	return fp
}

// Create inserts a user. Username and email must be unused.
func (s *Store) Create(_ context.Context, u *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	email := strings.ToLower(u.Email)
	if _, ok := s.byUsername[u.Username]; ok {
		return errs.ErrAlreadyExists
	}
	if _, ok := s.byEmail[email]; ok {
		return errs.ErrAlreadyExists
	}
	if _, ok := s.users[u.ID]; ok {
		return errs.ErrAlreadyExists
	}

	c := cloneUser(u)
	c.Email = email
	if c.CreatedAt.IsZero() {
		c.CreatedAt = s.now()
	}
	c.Footprint = model.Footprint{UserID: c.ID, Username: c.Username}
	s.users[c.ID] = c
	s.order = append(s.order, c.ID)
	s.byUsername[c.Username] = c.ID
	s.byEmail[email] = c.ID
	return nil
}

// GetByID loads a user by ID.
func (s *Store) GetByID(_ context.Context, id uuid.UUID) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	return cloneUser(u), nil
}

// GetByLogin loads a user by username or, case-insensitively, by email.
func (s *Store) GetByLogin(_ context.Context, login string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byUsername[login]
	if !ok {
		id, ok = s.byEmail[strings.ToLower(login)]
	}
	if !ok {
		return nil, errs.ErrNotFound
	}
	return cloneUser(s.users[id]), nil
}

// Footprint returns the running state of a user.
func (s *Store) Footprint(_ context.Context, id uuid.UUID) (model.Footprint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return model.Footprint{}, errs.ErrNotFound
	}
	return cloneFootprint(u.Footprint), nil
}

// ActiveFootprints lists footprints with a positive total in registration order.
func (s *Store) ActiveFootprints(_ context.Context) ([]model.Footprint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []model.Footprint{}
	for _, id := range s.order {
		fp := s.users[id].Footprint
		if fp.TotalEmissions > 0 {
			out = append(out, cloneFootprint(fp))
		}
	}
	return out, nil
}

// Append records the activity and applies update while the owner is locked.
func (s *Store) Append(_ context.Context, a model.Activity, update repository.FootprintUpdate) (model.Footprint, error) {
	lock := s.ownerLock(a.UserID)
	lock.Lock()
	defer lock.Unlock()

	s.mu.RLock()
	u, ok := s.users[a.UserID]
	var fp model.Footprint
	if ok {
		fp = cloneFootprint(u.Footprint)
	}
	s.mu.RUnlock()
	if !ok {
		return model.Footprint{}, errs.ErrNotFound
	}

	if err := update(&fp); err != nil {
		return model.Footprint{}, err
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = s.now()
	}

	s.mu.Lock()
	s.activities[a.UserID] = append(s.activities[a.UserID], a)
	u.Footprint = cloneFootprint(fp)
	s.mu.Unlock()
	return fp, nil
}

// Remove deletes the owner's record and subtracts its emissions, floored at 0.
func (s *Store) Remove(_ context.Context, userID, activityID uuid.UUID) (model.Activity, model.Footprint, error) {
	lock := s.ownerLock(userID)
	lock.Lock()
	defer lock.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return model.Activity{}, model.Footprint{}, errs.ErrNotFound
	}
	list := s.activities[userID]
	for i, a := range list {
		if a.ID != activityID {
			continue
		}
		s.activities[userID] = append(list[:i:i], list[i+1:]...)
		u.Footprint.TotalEmissions = math.Max(0, u.Footprint.TotalEmissions-a.Emissions)
		return a, cloneFootprint(u.Footprint), nil
	}
	return model.Activity{}, model.Footprint{}, errs.ErrNotFound
}

// Find returns the owner's records matching q, newest first.
func (s *Store) Find(_ context.Context, q model.ActivityQuery) ([]model.Activity, error) {
	s.mu.RLock()
	out := []model.Activity{}
	for _, a := range s.activities[q.UserID] {
		if !q.From.IsZero() && a.OccurredAt.Before(q.From) {
			continue
		}
		if q.To != nil && !a.OccurredAt.Before(*q.To) {
			continue
		}
		if q.Category != nil && a.Category != *q.Category {
			continue
		}
		out = append(out, a)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].OccurredAt.Equal(out[j].OccurredAt) {
			return out[i].OccurredAt.After(out[j].OccurredAt)
		}
		return bytes.Compare(out[i].ID.Bytes(), out[j].ID.Bytes()) > 0
	})
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

// Reconcile sets the owner's total to the sum of the ledger.
func (s *Store) Reconcile(_ context.Context, userID uuid.UUID) (model.Footprint, error) {
	lock := s.ownerLock(userID)
	lock.Lock()
	defer lock.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return model.Footprint{}, errs.ErrNotFound
	}
	var sum float64
	for _, a := range s.activities[userID] {
		sum += a.Emissions
	}
	u.Footprint.TotalEmissions = sum
	return cloneFootprint(u.Footprint), nil
}
