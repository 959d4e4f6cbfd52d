// Package emissions holds the static emission factor table and the calculator built on it.
package emissions

import "github.com/and161185/carbon-tracker/internal/model"

// Factor converts one unit of an activity into kilograms of CO2e.
type Factor struct {
	Category     model.Category
	ActivityType string
	Label        string
	PerUnit      float64
	Unit         string
}

// Option is a selectable activity type for a category.
type Option struct {
	Value  string  `json:"value"`
	Label  string  `json:"label"`
	Unit   string  `json:"unit"`
	Factor float64 `json:"factor"`
}

type key struct {
	category     model.Category
	activityType string
}

// Table is an immutable lookup of emission factors. The zero value is empty.
type Table struct {
	order []model.Category
	byCat map[model.Category][]Factor
	byKey map[key]Factor
}

// NewTable builds a table from factors, keeping the given order for option listings.
// A later duplicate (category, activity type) replaces the earlier one.
func NewTable(factors []Factor) *Table {
	t := &Table{
		byCat: make(map[model.Category][]Factor),
		byKey: make(map[key]Factor, len(factors)),
	}
	for _, f := range factors {
		k := key{f.Category, f.ActivityType}
		if _, dup := t.byKey[k]; dup {
			list := t.byCat[f.Category]
			for i := range list {
				if list[i].ActivityType == f.ActivityType {
					list[i] = f
				}
			}
		} else {
			if _, seen := t.byCat[f.Category]; !seen {
				t.order = append(t.order, f.Category)
			}
			t.byCat[f.Category] = append(t.byCat[f.Category], f)
		}
		t.byKey[k] = f
	}
	return t
}

// Lookup returns the factor for (category, activityType).
func (t *Table) Lookup(category model.Category, activityType string) (Factor, bool) {
	if t == nil {
		return Factor{}, false
	}
	f, ok := t.byKey[key{category, activityType}]
	return f, ok
}

// Categories lists the categories in table order.
func (t *Table) Categories() []model.Category {
	if t == nil {
		return nil
	}
	return append([]model.Category(nil), t.order...)
}

// Options returns the selectable activity types for a category.
// An unknown category yields an empty, non-nil slice.
func (t *Table) Options(category model.Category) []Option {
	if t == nil {
		return []Option{}
	}
	list := t.byCat[category]
	out := make([]Option, 0, len(list))
	for _, f := range list {
		out = append(out, Option{Value: f.ActivityType, Label: f.Label, Unit: f.Unit, Factor: f.PerUnit})
	}
	return out
}

// Default is the canonical factor table shared by validation and presentation.
var Default = NewTable([]Factor{
	{model.CategoryTransport, "car-petrol", "Car (Petrol)", 0.21, "km"},
	{model.CategoryTransport, "car-diesel", "Car (Diesel)", 0.17, "km"},
	{model.CategoryTransport, "car-electric", "Car (Electric)", 0.05, "km"},
	{model.CategoryTransport, "bus", "Bus", 0.08, "km"},
	{model.CategoryTransport, "train", "Train", 0.04, "km"},
	{model.CategoryTransport, "flight-domestic", "Flight (Domestic)", 0.25, "km"},
	{model.CategoryTransport, "flight-international", "Flight (International)", 0.15, "km"},
	{model.CategoryTransport, "motorcycle", "Motorcycle", 0.13, "km"},
	{model.CategoryTransport, "bicycle", "Bicycle", 0, "km"},
	{model.CategoryTransport, "walking", "Walking", 0, "km"},

	{model.CategoryEnergy, "electricity", "Electricity", 0.5, "kWh"},
	{model.CategoryEnergy, "natural-gas", "Natural Gas", 0.18, "kWh"},
	{model.CategoryEnergy, "heating-oil", "Heating Oil", 0.27, "liters"},
	{model.CategoryEnergy, "coal", "Coal", 0.35, "kg"},
	{model.CategoryEnergy, "solar", "Solar", 0.05, "kWh"},
	{model.CategoryEnergy, "wind", "Wind", 0.01, "kWh"},

	{model.CategoryFood, "beef", "Beef", 60, "kg"},
	{model.CategoryFood, "pork", "Pork", 12, "kg"},
	{model.CategoryFood, "chicken", "Chicken", 6, "kg"},
	{model.CategoryFood, "fish", "Fish", 5, "kg"},
	{model.CategoryFood, "dairy", "Dairy Products", 3.2, "kg"},
	{model.CategoryFood, "vegetables", "Vegetables", 2, "kg"},
	{model.CategoryFood, "fruits", "Fruits", 1.1, "kg"},
	{model.CategoryFood, "grains", "Grains", 1.4, "kg"},
	{model.CategoryFood, "processed-food", "Processed Food", 4, "kg"},

	{model.CategoryWaste, "general-waste", "General Waste", 0.5, "kg"},
	{model.CategoryWaste, "recycling", "Recycling", 0.1, "kg"},
	{model.CategoryWaste, "compost", "Compost", 0.05, "kg"},
	{model.CategoryWaste, "electronic-waste", "Electronic Waste", 2, "kg"},
	{model.CategoryWaste, "plastic", "Plastic Waste", 3, "kg"},
})

// ParseCategory maps a raw string onto a known category.
func ParseCategory(s string) (model.Category, bool) {
	switch c := model.Category(s); c {
	case model.CategoryTransport, model.CategoryEnergy, model.CategoryFood, model.CategoryWaste:
		return c, true
	}
	return "", false
}
