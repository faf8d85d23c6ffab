package reference

import "maps"

// countryVATRates is the fixed destination VAT/GST table.
var countryVATRates = map[string]float64{
	"US": 0,
	"AU": 0.10,
	"JP": 0.10,
	"UK": 0.20,
	"DE": 0.19,
	"KR": 0.10,
	"SG": 0.08,
}

// CountryVATRates returns a copy of the built-in destination VAT table.
func CountryVATRates() map[string]float64 {
	return maps.Clone(countryVATRates)
}

// StaticVAT serves the built-in destination VAT table.
type StaticVAT struct{}

// VATRate implements VATTable.
func (StaticVAT) VATRate(countryCode string) (float64, bool) {
	rate, ok := countryVATRates[NormalizeCountry(countryCode)]
	return rate, ok
}
