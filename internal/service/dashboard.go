package service

import (
	"context"
	"time"

	"github.com/and161185/carbon-tracker/internal/aggregate"
	"github.com/and161185/carbon-tracker/internal/emissions"
	"github.com/and161185/carbon-tracker/internal/errs"
	"github.com/and161185/carbon-tracker/internal/model"
	"github.com/and161185/carbon-tracker/internal/repository"
	"github.com/gofrs/uuid/v5"
)

// WindowTotal is the emission sum and record count of one time window.
type WindowTotal struct {
	Emissions       float64
	ActivitiesCount int
}

// Stats is the owner's dashboard summary.
type Stats struct {
	Footprint   model.Footprint
	Today       WindowTotal
	Week        WindowTotal
	Equivalency emissions.Equivalency
}

// DashboardService defines read-only aggregate views.
type DashboardService interface {
	// Stats summarises today and this week for the owner.
	Stats(ctx context.Context, userID uuid.UUID) (Stats, error)
	// CategoryBreakdown groups the owner's last days days by category, highest first.
	CategoryBreakdown(ctx context.Context, userID uuid.UUID, days int) ([]aggregate.CategoryRow, error)
	// Leaderboard ranks users with a positive total, lowest first. Needs no owner.
	Leaderboard(ctx context.Context) ([]aggregate.Ranked, error)
	// CommunityAverage is the mean total over users with a positive total. Needs no owner.
	CommunityAverage(ctx context.Context) (aggregate.Average, error)
}

type DashboardServiceImpl struct {
	users  repository.UserRepository
	ledger repository.LedgerRepository
	opts   LedgerOptions
	now    func() time.Time
}

// NewDashboardService constructs DashboardService.
func NewDashboardService(users repository.UserRepository, ledger repository.LedgerRepository, opts LedgerOptions) *DashboardServiceImpl {
	return &DashboardServiceImpl{users: users, ledger: ledger, opts: opts.withDefaults(), now: time.Now}
}

// Stats loads the week once and derives today from it.
func (s *DashboardServiceImpl) Stats(ctx context.Context, userID uuid.UUID) (Stats, error) {
	if userID == uuid.Nil {
		return Stats{}, errs.ErrUnauthorized
	}
	fp, err := s.users.Footprint(ctx, userID)
	if err != nil {
		return Stats{}, persistence(err)
	}

	now := s.now()
	weekStart := aggregate.ThisWeek(now, s.opts.Location)
	week, err := s.ledger.Find(ctx, model.ActivityQuery{UserID: userID, From: weekStart})
	if err != nil {
		return Stats{}, persistence(err)
	}
	todayStart, todayEnd := aggregate.Today(now, s.opts.Location)
	today := aggregate.Window(week, todayStart, &todayEnd)

	return Stats{
		Footprint:   fp,
		Today:       WindowTotal{Emissions: aggregate.Sum(today), ActivitiesCount: len(today)},
		Week:        WindowTotal{Emissions: aggregate.Sum(week), ActivitiesCount: len(week)},
		Equivalency: emissions.Equivalent(fp.TotalEmissions),
	}, nil
}

// CategoryBreakdown covers [now - days, now]; days <= 0 uses the default window.
func (s *DashboardServiceImpl) CategoryBreakdown(ctx context.Context, userID uuid.UUID, days int) ([]aggregate.CategoryRow, error) {
	if userID == uuid.Nil {
		return nil, errs.ErrUnauthorized
	}
	if days <= 0 {
		days = s.opts.DefaultWindowDays
	}
	records, err := s.ledger.Find(ctx, model.ActivityQuery{UserID: userID, From: aggregate.LastNDays(s.now(), days)})
	if err != nil {
		return nil, persistence(err)
	}
	return aggregate.SortedByEmissions(aggregate.GroupByCategory(records)), nil
}

// Leaderboard returns the LeaderboardLimit lowest emitters.
func (s *DashboardServiceImpl) Leaderboard(ctx context.Context) ([]aggregate.Ranked, error) {
	users, err := s.users.ActiveFootprints(ctx)
	if err != nil {
		return nil, persistence(err)
	}
	return aggregate.RankUsers(users, s.opts.LeaderboardLimit), nil
}

// CommunityAverage reports UserCount 0 when nobody has a history yet.
func (s *DashboardServiceImpl) CommunityAverage(ctx context.Context) (aggregate.Average, error) {
	users, err := s.users.ActiveFootprints(ctx)
	if err != nil {
		return aggregate.Average{}, persistence(err)
	}
	avg, _ := aggregate.AverageEmissions(users)
	return avg, nil
}
