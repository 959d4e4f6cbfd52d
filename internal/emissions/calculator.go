package emissions

import (
	"fmt"
	"math"

	"github.com/and161185/carbon-tracker/internal/errs"
	"github.com/and161185/carbon-tracker/internal/model"
)

// Result is the outcome of converting an amount of an activity.
type Result struct {
	Emissions float64 // kg CO2e, not rounded
	Unit      string
	PerUnit   float64
}

// Compute converts amount of (category, activityType) into kg CO2e.
// Unknown categories and unknown activity types of a known category fail the same way.
// Amount validation belongs to the caller, see CheckAmount. A product that is not
// finite fails with ErrInvalidAmount.
func (t *Table) Compute(category model.Category, activityType string, amount float64) (Result, error) {
	f, ok := t.Lookup(category, activityType)
	if !ok {
		return Result{}, fmt.Errorf("%s/%s: %w", category, activityType, errs.ErrInvalidActivity)
	}
	kg := amount * f.PerUnit
	if math.IsInf(kg, 0) || math.IsNaN(kg) {
		return Result{}, fmt.Errorf("%s/%s: emissions overflow: %w", category, activityType, errs.ErrInvalidAmount)
	}
	return Result{Emissions: kg, Unit: f.Unit, PerUnit: f.PerUnit}, nil
}

// Compute converts an amount using the Default table.
func Compute(category model.Category, activityType string, amount float64) (Result, error) {
	return Default.Compute(category, activityType, amount)
}

// CheckAmount rejects non-positive and non-finite amounts.
func CheckAmount(amount float64) error {
	if math.IsNaN(amount) || math.IsInf(amount, 0) || amount <= 0 {
		return errs.ErrInvalidAmount
	}
	return nil
}
