// Package reference holds the read-only lookup tables consumed by the pricing
// components: HS tariff rates, origin surcharges, destination VAT and the
// carrier weight-tier rate card.
package reference

import (
	"errors"
	"sort"
	"strings"
)

// TariffTable resolves the base duty rate of an HS code.
type TariffTable interface {
	BaseRate(hsCode string) (float64, bool)
}

// AdditionalTariffTable resolves active origin-country surcharges.
type AdditionalTariffTable interface {
	AdditionalRate(originCountry string) (float64, bool)
}

// VATTable resolves destination import VAT/GST.
type VATTable interface {
	VATRate(countryCode string) (float64, bool)
}

// WeightTierTable exposes the rate card sorted ascending by weight.
type WeightTierTable interface {
	Tiers() []WeightTier
}

// WeightTier maps a weight upper bound (kg) to the rate-card shipping cost.
type WeightTier struct {
	WeightBand        float64 `json:"weight_band"`
	EstimatedShipping float64 `json:"estimated_shipping"`
}

// AdditionalTariff is an origin surcharge row; only active rows apply.
type AdditionalTariff struct {
	OriginCountry string  `json:"origin_country"`
	Rate          float64 `json:"rate"`
	Active        bool    `json:"active"`
}

// ErrNotFound indicates the reference store returned no rows.
var ErrNotFound = errors.New("reference: not found")

// NormalizeHSCode strips separators so "6403.99" and "640399" resolve alike.
func NormalizeHSCode(code string) string {
	code = strings.TrimSpace(code)
	return strings.NewReplacer(".", "", " ", "", "-", "").Replace(code)
}

// NormalizeCountry upper-cases an ISO code and maps GB onto UK.
func NormalizeCountry(code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "GB" {
		return "UK"
	}
	return code
}

func sortTiers(tiers []WeightTier) []WeightTier {
	out := make([]WeightTier, len(tiers))
	copy(out, tiers)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].WeightBand < out[j].WeightBand
	})
	return out
}
