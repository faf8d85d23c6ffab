package shared

import (
	"math"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var amountPrinter = message.NewPrinter(language.English)

// FormatAmount renders a whole-unit amount with thousands separators.
func FormatAmount(v float64) string {
	return amountPrinter.Sprintf("%d", int64(math.Round(v)))
}

// FormatPercent renders a fraction as a percentage with one decimal.
func FormatPercent(fraction float64) string {
	return amountPrinter.Sprintf("%.1f%%", fraction*100)
}
