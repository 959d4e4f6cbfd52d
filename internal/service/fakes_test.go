package service

import (
	"context"
	"math"
	"sort"

	"github.com/and161185/carbon-tracker/internal/errs"
	"github.com/and161185/carbon-tracker/internal/model"
	"github.com/and161185/carbon-tracker/internal/repository"
	"github.com/gofrs/uuid/v5"
)

type fakeUsers struct {
	byName map[string]*model.User
	order  []string

	createErr error
	getErr    error
	activeErr error
}

var _ repository.UserRepository = (*fakeUsers)(nil)

func newFakeUsers() *fakeUsers { return &fakeUsers{byName: map[string]*model.User{}} }

func (f *fakeUsers) add(name string, total float64) *model.User {
	u := &model.User{ID: uuid.Must(uuid.NewV4()), Username: name, Email: name + "@example.com"}
	u.Footprint = model.Footprint{UserID: u.ID, Username: name, TotalEmissions: total}
	f.byName[name] = u
	f.order = append(f.order, name)
	return u
}

func (f *fakeUsers) byID(id uuid.UUID) *model.User {
	for _, u := range f.byName {
		if u.ID == id {
			return u
		}
	}
	return nil
}

func (f *fakeUsers) Create(_ context.Context, u *model.User) error {
	if f.createErr != nil {
		return f.createErr
	}
	for _, e := range f.byName {
		if e.Username == u.Username || e.Email == u.Email {
			return errs.ErrAlreadyExists
		}
	}
	cpy := *u
	f.byName[u.Username] = &cpy
	f.order = append(f.order, u.Username)
	return nil
}

func (f *fakeUsers) GetByID(_ context.Context, id uuid.UUID) (*model.User, error) {
	if u := f.byID(id); u != nil {
		c := *u
		return &c, nil
	}
	return nil, errs.ErrNotFound
}

func (f *fakeUsers) GetByLogin(_ context.Context, login string) (*model.User, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	for _, u := range f.byName {
		if u.Username == login || u.Email == login {
			c := *u
			return &c, nil
		}
	}
	return nil, errs.ErrNotFound
}

func (f *fakeUsers) Footprint(_ context.Context, id uuid.UUID) (model.Footprint, error) {
	if f.getErr != nil {
		return model.Footprint{}, f.getErr
	}
	if u := f.byID(id); u != nil {
		return u.Footprint, nil
	}
	return model.Footprint{}, errs.ErrNotFound
}

func (f *fakeUsers) ActiveFootprints(context.Context) ([]model.Footprint, error) {
	if f.activeErr != nil {
		return nil, f.activeErr
	}
	out := []model.Footprint{}
	for _, name := range f.order {
		if fp := f.byName[name].Footprint; fp.TotalEmissions > 0 {
			out = append(out, fp)
		}
	}
	return out, nil
}

// fakeLedger keeps records in a slice and footprints on the linked fakeUsers.
type fakeLedger struct {
	users   *fakeUsers
	records []model.Activity

	appendErr error
	findErr   error

	lastQuery model.ActivityQuery
}

var _ repository.LedgerRepository = (*fakeLedger)(nil)

func (l *fakeLedger) Append(_ context.Context, a model.Activity, update repository.FootprintUpdate) (model.Footprint, error) {
	if l.appendErr != nil {
		return model.Footprint{}, l.appendErr
	}
	u := l.users.byID(a.UserID)
	if u == nil {
		return model.Footprint{}, errs.ErrNotFound
	}
	fp := u.Footprint
	if err := update(&fp); err != nil {
		return model.Footprint{}, err
	}
	l.records = append(l.records, a)
	u.Footprint = fp
	return fp, nil
}

func (l *fakeLedger) Remove(_ context.Context, userID, activityID uuid.UUID) (model.Activity, model.Footprint, error) {
	for i, a := range l.records {
		if a.ID == activityID && a.UserID == userID {
			l.records = append(l.records[:i], l.records[i+1:]...)
			u := l.users.byID(userID)
			u.Footprint.TotalEmissions = math.Max(0, u.Footprint.TotalEmissions-a.Emissions)
			return a, u.Footprint, nil
		}
	}
	return model.Activity{}, model.Footprint{}, errs.ErrNotFound
}

func (l *fakeLedger) Find(_ context.Context, q model.ActivityQuery) ([]model.Activity, error) {
	l.lastQuery = q
	if l.findErr != nil {
		return nil, l.findErr
	}
	out := []model.Activity{}
	for _, a := range l.records {
		if a.UserID != q.UserID {
			continue
		}
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
	sort.SliceStable(out, func(i, j int) bool { return out[i].OccurredAt.After(out[j].OccurredAt) })
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (l *fakeLedger) Reconcile(_ context.Context, userID uuid.UUID) (model.Footprint, error) {
	u := l.users.byID(userID)
	if u == nil {
		return model.Footprint{}, errs.ErrNotFound
	}
	var sum float64
	for _, a := range l.records {
		if a.UserID == userID {
			sum += a.Emissions
		}
	}
	u.Footprint.TotalEmissions = sum
	return u.Footprint, nil
}
