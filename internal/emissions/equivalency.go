package emissions

import "fmt"

// EPA greenhouse gas equivalency divisors (2024 edition), kg CO2e per unit.
const (
	// EPAMilesDrivenFactor is kg CO2e per mile for an average passenger vehicle.
	EPAMilesDrivenFactor = 0.192
	// EPASmartphoneChargeFactor is kg CO2e per smartphone charge.
	EPASmartphoneChargeFactor = 0.00822
	// EPATreeSeedlingFactor is kg CO2e absorbed per tree seedling grown for 10 years.
	EPATreeSeedlingFactor = 60.0

	// MinEquivalencyKg is the smallest footprint worth translating.
	MinEquivalencyKg = 1.0
)

// Equivalency translates a footprint into everyday quantities.
type Equivalency struct {
	InputKg            float64
	MilesDriven        float64
	SmartphonesCharged float64
	TreeSeedlings      float64
	DisplayText        string
	IsEmpty            bool
}

// Equivalent computes equivalencies for kg CO2e. Below MinEquivalencyKg the result is empty.
func Equivalent(kg float64) Equivalency {
	if kg < MinEquivalencyKg {
		return Equivalency{InputKg: kg, IsEmpty: true}
	}
	miles := kg / EPAMilesDrivenFactor
	phones := kg / EPASmartphoneChargeFactor
	trees := kg / EPATreeSeedlingFactor
	return Equivalency{
		InputKg:            kg,
		MilesDriven:        miles,
		SmartphonesCharged: phones,
		TreeSeedlings:      trees,
		DisplayText: fmt.Sprintf("Equivalent to driving ~%s miles or charging ~%s smartphones",
			FormatNumber(int64(miles+0.5)), FormatNumber(int64(phones+0.5))),
	}
}
