// Package convert maps domain values to the JSON shapes served over HTTP.
// Display numbers are rounded to two decimals here and nowhere earlier.
package convert

import (
	"time"

	"github.com/and161185/carbon-tracker/internal/aggregate"
	"github.com/and161185/carbon-tracker/internal/emissions"
	"github.com/and161185/carbon-tracker/internal/model"
	"github.com/and161185/carbon-tracker/internal/service"
)

const dateLayout = "2006-01-02"

// --- helpers ---

func r2(v float64) float64 { return emissions.Round2(v) }

func date(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(dateLayout)
	return &s
}

// --- accounts ---

// FootprintView is the public part of a user's running state.
type FootprintView struct {
	Username         string  `json:"username"`
	TotalEmissions   float64 `json:"totalEmissions"`
	Streak           int     `json:"streak"`
	LastActivityDate *string `json:"lastActivityDate"`
}

// UserView is an account as returned after registration or login.
type UserView struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	FootprintView
}

// AuthView carries an issued token.
type AuthView struct {
	User      UserView  `json:"user"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ToFootprintView rounds the total for display.
func ToFootprintView(fp model.Footprint) FootprintView {
	return FootprintView{
		Username:         fp.Username,
		TotalEmissions:   r2(fp.TotalEmissions),
		Streak:           fp.Streak,
		LastActivityDate: date(fp.LastActivityDate),
	}
}

// ToAuthView combines user and token.
func ToAuthView(u model.User, tok model.Tokens) AuthView {
	return AuthView{
		User:      UserView{ID: u.ID.String(), Email: u.Email, FootprintView: ToFootprintView(u.Footprint)},
		Token:     tok.AccessToken,
		ExpiresAt: tok.ExpiresAt.UTC(),
	}
}

// --- activities ---

// SubmitRequest is the body of POST /api/activities. A missing amount decodes as nil.
type SubmitRequest struct {
	Category     string     `json:"category"`
	ActivityType string     `json:"activityType"`
	Amount       *float64   `json:"amount"`
	OccurredAt   *time.Time `json:"occurredAt,omitempty"`
}

// FromSubmitRequest maps the body to service input; a nil amount becomes 0 and fails validation.
func FromSubmitRequest(in SubmitRequest) service.SubmitInput {
	out := service.SubmitInput{
		Category:     model.Category(in.Category),
		ActivityType: in.ActivityType,
		OccurredAt:   in.OccurredAt,
	}
	if in.Amount != nil {
		out.Amount = *in.Amount
	}
	return out
}

// ActivityView is one ledger record.
type ActivityView struct {
	ID           string    `json:"id"`
	Category     string    `json:"category"`
	ActivityType string    `json:"activityType"`
	Amount       float64   `json:"amount"`
	Unit         string    `json:"unit"`
	Emissions    float64   `json:"emissions"`
	OccurredAt   time.Time `json:"occurredAt"`
	CreatedAt    time.Time `json:"createdAt"`
}

// ToActivityView rounds emissions for display; amount is echoed as sent.
func ToActivityView(a model.Activity) ActivityView {
	return ActivityView{
		ID:           a.ID.String(),
		Category:     string(a.Category),
		ActivityType: a.ActivityType,
		Amount:       a.Amount,
		Unit:         a.Unit,
		Emissions:    r2(a.Emissions),
		OccurredAt:   a.OccurredAt.UTC(),
		CreatedAt:    a.CreatedAt.UTC(),
	}
}

// ToActivityViews never returns nil so an empty list encodes as [].
func ToActivityViews(list []model.Activity) []ActivityView {
	out := make([]ActivityView, 0, len(list))
	for _, a := range list {
		out = append(out, ToActivityView(a))
	}
	return out
}

// SubmitView answers a successful submission.
type SubmitView struct {
	Message   string        `json:"message"`
	Activity  ActivityView  `json:"activity"`
	Footprint FootprintView `json:"footprint"`
}

// DeleteView answers a successful deletion.
type DeleteView struct {
	Message   string        `json:"message"`
	Footprint FootprintView `json:"footprint"`
}

// CategoryView is the count and emissions of one category.
type CategoryView struct {
	Count     int     `json:"count"`
	Emissions float64 `json:"emissions"`
}

// WeeklySummaryView groups this week by category.
type WeeklySummaryView struct {
	Summary         map[string]CategoryView `json:"summary"`
	TotalEmissions  float64                 `json:"totalEmissions"`
	ActivitiesCount int                     `json:"activitiesCount"`
	WeekStart       time.Time               `json:"weekStart"`
}

// ToWeeklySummaryView lists only categories that have records.
func ToWeeklySummaryView(s service.WeeklySummary) WeeklySummaryView {
	summary := make(map[string]CategoryView, len(s.Categories))
	for c, t := range s.Categories {
		summary[string(c)] = CategoryView{Count: t.Count, Emissions: r2(t.TotalEmissions)}
	}
	return WeeklySummaryView{
		Summary:         summary,
		TotalEmissions:  r2(s.TotalEmissions),
		ActivitiesCount: s.ActivitiesCount,
		WeekStart:       s.WeekStart,
	}
}

// --- dashboard ---

// WindowView is the emissions and count of one window.
type WindowView struct {
	Emissions       float64 `json:"emissions"`
	ActivitiesCount int     `json:"activitiesCount"`
}

// StatsUserView is the user block of the dashboard.
type StatsUserView struct {
	Username       string  `json:"username"`
	TotalEmissions float64 `json:"totalEmissions"`
	Streak         int     `json:"streak"`
}

// EquivalencyView translates the total into everyday quantities.
type EquivalencyView struct {
	MilesDriven        float64 `json:"milesDriven"`
	SmartphonesCharged float64 `json:"smartphonesCharged"`
	TreeSeedlings      float64 `json:"treeSeedlings"`
	DisplayText        string  `json:"displayText"`
	IsEmpty            bool    `json:"isEmpty"`
}

// StatsView is the body of GET /api/dashboard/stats.
type StatsView struct {
	User        StatsUserView   `json:"user"`
	Today       WindowView      `json:"today"`
	Week        WindowView      `json:"week"`
	Equivalency EquivalencyView `json:"equivalency"`
}

// ToStatsView rounds every figure.
func ToStatsView(s service.Stats) StatsView {
	return StatsView{
		User: StatsUserView{
			Username:       s.Footprint.Username,
			TotalEmissions: r2(s.Footprint.TotalEmissions),
			Streak:         s.Footprint.Streak,
		},
		Today:       WindowView{Emissions: r2(s.Today.Emissions), ActivitiesCount: s.Today.ActivitiesCount},
		Week:        WindowView{Emissions: r2(s.Week.Emissions), ActivitiesCount: s.Week.ActivitiesCount},
		Equivalency: ToEquivalencyView(s.Equivalency),
	}
}

// ToEquivalencyView rounds the equivalency quantities.
func ToEquivalencyView(e emissions.Equivalency) EquivalencyView {
	return EquivalencyView{
		MilesDriven:        r2(e.MilesDriven),
		SmartphonesCharged: r2(e.SmartphonesCharged),
		TreeSeedlings:      r2(e.TreeSeedlings),
		DisplayText:        e.DisplayText,
		IsEmpty:            e.IsEmpty,
	}
}

// BreakdownRowView is one category of the breakdown.
type BreakdownRowView struct {
	Category  string  `json:"category"`
	Emissions float64 `json:"emissions"`
	Count     int     `json:"count"`
}

// ToBreakdownView keeps the input order.
func ToBreakdownView(rows []aggregate.CategoryRow) []BreakdownRowView {
	out := make([]BreakdownRowView, 0, len(rows))
	for _, r := range rows {
		out = append(out, BreakdownRowView{Category: string(r.Category), Emissions: r2(r.TotalEmissions), Count: r.Count})
	}
	return out
}

// LeaderboardRowView is one ranked user.
type LeaderboardRowView struct {
	Rank           int     `json:"rank"`
	Username       string  `json:"username"`
	TotalEmissions float64 `json:"totalEmissions"`
	Streak         int     `json:"streak"`
}

// ToLeaderboardView keeps the ranking order.
func ToLeaderboardView(ranked []aggregate.Ranked) []LeaderboardRowView {
	out := make([]LeaderboardRowView, 0, len(ranked))
	for _, r := range ranked {
		out = append(out, LeaderboardRowView{
			Rank:           r.Rank,
			Username:       r.Footprint.Username,
			TotalEmissions: r2(r.Footprint.TotalEmissions),
			Streak:         r.Footprint.Streak,
		})
	}
	return out
}

// AverageView is the community mean; UserCount 0 marks an empty community.
type AverageView struct {
	Average   float64 `json:"average"`
	UserCount int     `json:"userCount"`
}

// ToAverageView rounds the mean.
func ToAverageView(a aggregate.Average) AverageView {
	return AverageView{Average: r2(a.Value), UserCount: a.UserCount}
}

// --- factor table ---

// ToFactorsView groups the table's options by category in table order.
func ToFactorsView(t *emissions.Table) map[string][]emissions.Option {
	out := make(map[string][]emissions.Option)
	for _, c := range t.Categories() {
		out[string(c)] = t.Options(c)
	}
	return out
}
