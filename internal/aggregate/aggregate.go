// Package aggregate computes windowed and per-category views over ledger records.
// All functions are pure; results are recomputed per query.
package aggregate

import (
	"sort"
	"time"

	"github.com/and161185/carbon-tracker/internal/model"
)

// CategoryTotal is the count and emission sum of one category.
type CategoryTotal struct {
	Count          int
	TotalEmissions float64
}

// CategoryRow is a CategoryTotal tagged with its category, used for ordered output.
type CategoryRow struct {
	Category model.Category
	CategoryTotal
}

// Ranked is a footprint with its 1-based leaderboard position.
type Ranked struct {
	Rank      int
	Footprint model.Footprint
}

// Sum returns the total emissions of records; 0 for empty input.
func Sum(records []model.Activity) float64 {
	var total float64
	for i := range records {
		total += records[i].Emissions
	}
	return total
}

// Window keeps records with start <= OccurredAt and, when end is set, OccurredAt < end.
func Window(records []model.Activity, start time.Time, end *time.Time) []model.Activity {
	out := make([]model.Activity, 0, len(records))
	for _, r := range records {
		if r.OccurredAt.Before(start) {
			continue
		}
		if end != nil && !r.OccurredAt.Before(*end) {
			continue
		}
		out = append(out, r)
	}
	return out
}

// GroupByCategory sums records per category. Categories without records are absent.
func GroupByCategory(records []model.Activity) map[model.Category]CategoryTotal {
	out := make(map[model.Category]CategoryTotal)
	for _, r := range records {
		ct := out[r.Category]
		ct.Count++
		ct.TotalEmissions += r.Emissions
		out[r.Category] = ct
	}
	return out
}

// SortedByEmissions flattens a grouping, highest emissions first, ties by category name.
func SortedByEmissions(groups map[model.Category]CategoryTotal) []CategoryRow {
	rows := make([]CategoryRow, 0, len(groups))
	for c, ct := range groups {
		rows = append(rows, CategoryRow{Category: c, CategoryTotal: ct})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].TotalEmissions != rows[j].TotalEmissions {
			return rows[i].TotalEmissions > rows[j].TotalEmissions
		}
		return rows[i].Category < rows[j].Category
	})
	return rows
}

// RankUsers orders users by ascending total emissions (lowest footprint first), keeps the
// input order for ties and truncates to limit. limit <= 0 keeps everyone.
func RankUsers(users []model.Footprint, limit int) []Ranked {
	sorted := append([]model.Footprint(nil), users...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].TotalEmissions < sorted[j].TotalEmissions
	})
	if limit > 0 && len(sorted) > limit {
		sorted = sorted[:limit]
	}
	out := make([]Ranked, 0, len(sorted))
	for i, f := range sorted {
		out = append(out, Ranked{Rank: i + 1, Footprint: f})
	}
	return out
}

// Average is the mean total emissions over users with a non-zero history.
type Average struct {
	Value     float64
	UserCount int
}

// AverageEmissions returns the mean of TotalEmissions over users with TotalEmissions > 0.
// ok is false when no user qualifies; Value is then 0 and must not be read as a real mean.
func AverageEmissions(users []model.Footprint) (avg Average, ok bool) {
	var sum float64
	for _, u := range users {
		if u.TotalEmissions > 0 {
			sum += u.TotalEmissions
			avg.UserCount++
		}
	}
	if avg.UserCount == 0 {
		return Average{}, false
	}
	avg.Value = sum / float64(avg.UserCount)
	return avg, true
}
