package emissions

import (
	"fmt"
	"math"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// printer formats integers with English thousand separators.
var printer = message.NewPrinter(language.English)

// Round2 rounds v to two decimal places for display. Stored values are never pre-rounded.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// FormatNumber formats an integer with thousand separators, e.g. 18248 -> "18,248".
func FormatNumber(n int64) string {
	return printer.Sprintf("%d", n)
}

// FormatKg formats v with two decimals and thousand separators, e.g. 1234.567 -> "1,234.57".
func FormatKg(v float64) string {
	sign := ""
	if v < 0 {
		sign = "-"
		v = -v
	}
	cents := int64(math.Round(v * 100))
	return sign + FormatNumber(cents/100) + fmt.Sprintf(".%02d", cents%100)
}
