package service

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/and161185/carbon-tracker/internal/aggregate"
	"github.com/and161185/carbon-tracker/internal/emissions"
	"github.com/and161185/carbon-tracker/internal/errs"
	"github.com/and161185/carbon-tracker/internal/model"
	"github.com/and161185/carbon-tracker/internal/observability"
	"github.com/and161185/carbon-tracker/internal/repository"
	"github.com/and161185/carbon-tracker/internal/streak"
	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"
)

// maxClockSkew is how far in the future an occurredAt may lie.
const maxClockSkew = time.Minute

// Defaults applied when LedgerOptions leaves a field unset.
const (
	DefaultListLimit        = 100
	DefaultWindowDays       = 30
	DefaultLeaderboardLimit = 10

	categoryFilterAll = "all"
)

// LedgerOptions tunes day boundaries and result sizes.
type LedgerOptions struct {
	Location          *time.Location // day boundary for streaks and windows; nil means UTC
	ListLimit         int
	DefaultWindowDays int
	LeaderboardLimit  int
}

func (o LedgerOptions) withDefaults() LedgerOptions {
	if o.Location == nil {
		o.Location = time.UTC
	}
	if o.ListLimit <= 0 {
		o.ListLimit = DefaultListLimit
	}
	if o.DefaultWindowDays <= 0 {
		o.DefaultWindowDays = DefaultWindowDays
	}
	if o.LeaderboardLimit <= 0 {
		o.LeaderboardLimit = DefaultLeaderboardLimit
	}
	return o
}

// SubmitInput is an activity as sent by a client.
type SubmitInput struct {
	Category     model.Category
	ActivityType string
	Amount       float64
	OccurredAt   *time.Time // nil means now
}

// ListFilter narrows a listing. Empty or "all" Category lists every category;
// Days <= 0 uses the default window.
type ListFilter struct {
	Category string
	Days     int
}

// WeeklySummary groups this week's records by category.
type WeeklySummary struct {
	WeekStart       time.Time
	Categories      map[model.Category]aggregate.CategoryTotal
	TotalEmissions  float64
	ActivitiesCount int
}

// ActivityService defines ledger operations on behalf of an owner.
type ActivityService interface {
	// Submit validates, converts and records an activity, updating the owner's totals and streak.
	Submit(ctx context.Context, userID uuid.UUID, in SubmitInput) (model.Activity, model.Footprint, error)
	// List returns the owner's recent records, newest first.
	List(ctx context.Context, userID uuid.UUID, f ListFilter) ([]model.Activity, error)
	// Delete removes one of the owner's records. The streak is not rewound.
	Delete(ctx context.Context, userID, activityID uuid.UUID) (model.Activity, model.Footprint, error)
	// WeeklySummary aggregates records since the most recent Sunday.
	WeeklySummary(ctx context.Context, userID uuid.UUID) (WeeklySummary, error)
	// Reconcile recomputes the owner's total from the ledger.
	Reconcile(ctx context.Context, userID uuid.UUID) (model.Footprint, error)
}

type ActivityServiceImpl struct {
	ledger repository.LedgerRepository
	table  *emissions.Table
	log    *zap.Logger
	opts   LedgerOptions
	now    func() time.Time
}

// NewActivityService constructs ActivityService. A nil table uses emissions.Default.
func NewActivityService(
	ledger repository.LedgerRepository, table *emissions.Table, log *zap.Logger, opts LedgerOptions,
) *ActivityServiceImpl {
	if table == nil {
		table = emissions.Default
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &ActivityServiceImpl{ledger: ledger, table: table, log: log, opts: opts.withDefaults(), now: time.Now}
}

// Submit checks amount, activity key and timestamp in that order before touching storage.
func (s *ActivityServiceImpl) Submit(ctx context.Context, userID uuid.UUID, in SubmitInput) (model.Activity, model.Footprint, error) {
	if userID == uuid.Nil {
		return model.Activity{}, model.Footprint{}, errs.ErrUnauthorized
	}
	if err := emissions.CheckAmount(in.Amount); err != nil {
		return model.Activity{}, model.Footprint{}, err
	}
	res, err := s.table.Compute(in.Category, strings.TrimSpace(in.ActivityType), in.Amount)
	if err != nil {
		return model.Activity{}, model.Footprint{}, err
	}
	now := s.now().UTC()
	occurred := now
	if in.OccurredAt != nil && !in.OccurredAt.IsZero() {
		if in.OccurredAt.After(now.Add(maxClockSkew)) {
			return model.Activity{}, model.Footprint{}, fmt.Errorf("%w: occurredAt is in the future", errs.ErrInvalidTimestamp)
		}
		occurred = in.OccurredAt.UTC()
	}

	id, err := uuid.NewV4()
	if err != nil {
		return model.Activity{}, model.Footprint{}, err
	}
	a := model.Activity{
		ID:           id,
		UserID:       userID,
		Category:     in.Category,
		ActivityType: strings.TrimSpace(in.ActivityType),
		Amount:       in.Amount,
		Unit:         res.Unit,
		Emissions:    res.Emissions,
		OccurredAt:   occurred,
		CreatedAt:    now,
	}

	var (
		outcome streak.Outcome
		prev    *time.Time
	)
	fp, err := s.ledger.Append(ctx, a, func(fp *model.Footprint) error {
		prev = fp.LastActivityDate
		total := fp.TotalEmissions + a.Emissions
		if math.IsInf(total, 0) || math.IsNaN(total) {
			return fmt.Errorf("running total overflow: %w", errs.ErrInvalidAmount)
		}
		fp.TotalEmissions = total
		st, out := streak.Record(streak.State{Count: fp.Streak, LastDate: fp.LastActivityDate}, a.OccurredAt, s.opts.Location)
		fp.Streak, fp.LastActivityDate = st.Count, st.LastDate
		outcome = out
		return nil
	})
	if err != nil {
		return model.Activity{}, model.Footprint{}, persistence(err)
	}

	if outcome == streak.Backdated {
		observability.RecordBackdated()
		s.log.Warn("backdated activity left streak untouched",
			zap.String("user_id", userID.String()),
			zap.Timep("last_activity_date", prev),
			zap.Time("occurred_at", a.OccurredAt),
		)
	}
	observability.RecordActivity(string(a.Category), a.Emissions, a.OccurredAt)
	return a, fp, nil
}

// List returns up to ListLimit records from the last Days days.
func (s *ActivityServiceImpl) List(ctx context.Context, userID uuid.UUID, f ListFilter) ([]model.Activity, error) {
	if userID == uuid.Nil {
		return nil, errs.ErrUnauthorized
	}
	days := f.Days
	if days <= 0 {
		days = s.opts.DefaultWindowDays
	}
	q := model.ActivityQuery{
		UserID: userID,
		From:   aggregate.LastNDays(s.now(), days),
		Limit:  s.opts.ListLimit,
	}
	if c := strings.TrimSpace(f.Category); c != "" && c != categoryFilterAll {
		cat := model.Category(c)
		q.Category = &cat
	}
	out, err := s.ledger.Find(ctx, q)
	if err != nil {
		return nil, persistence(err)
	}
	return out, nil
}

// Delete removes the record; a record owned by someone else is reported as not found.
func (s *ActivityServiceImpl) Delete(ctx context.Context, userID, activityID uuid.UUID) (model.Activity, model.Footprint, error) {
	if userID == uuid.Nil {
		return model.Activity{}, model.Footprint{}, errs.ErrUnauthorized
	}
	a, fp, err := s.ledger.Remove(ctx, userID, activityID)
	if err != nil {
		return model.Activity{}, model.Footprint{}, persistence(err)
	}
	observability.RecordRemoval()
	return a, fp, nil
}

// WeeklySummary groups the records of [most recent Sunday, now].
func (s *ActivityServiceImpl) WeeklySummary(ctx context.Context, userID uuid.UUID) (WeeklySummary, error) {
	if userID == uuid.Nil {
		return WeeklySummary{}, errs.ErrUnauthorized
	}
	start := aggregate.ThisWeek(s.now(), s.opts.Location)
	records, err := s.ledger.Find(ctx, model.ActivityQuery{UserID: userID, From: start})
	if err != nil {
		return WeeklySummary{}, persistence(err)
	}
	return WeeklySummary{
		WeekStart:       start,
		Categories:      aggregate.GroupByCategory(records),
		TotalEmissions:  aggregate.Sum(records),
		ActivitiesCount: len(records),
	}, nil
}

// Reconcile resets the running total to the ledger sum.
func (s *ActivityServiceImpl) Reconcile(ctx context.Context, userID uuid.UUID) (model.Footprint, error) {
	if userID == uuid.Nil {
		return model.Footprint{}, errs.ErrUnauthorized
	}
	fp, err := s.ledger.Reconcile(ctx, userID)
	if err != nil {
		return model.Footprint{}, persistence(err)
	}
	s.log.Info("footprint reconciled",
		zap.String("user_id", userID.String()),
		zap.Float64("total_emissions", fp.TotalEmissions),
	)
	return fp, nil
}
