// Package tariff resolves the duties and taxes a seller must remit to ship an
// item duty-paid into a destination country.
package tariff

import (
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/landedcost/internal/reference"
	"github.com/odyssey-erp/landedcost/internal/shared"
)

// Calculator computes CostBreakdowns from injected reference tables. It holds
// no mutable state and may be shared between goroutines.
type Calculator struct {
	tariffs    reference.TariffTable
	additional reference.AdditionalTariffTable
	vat        reference.VATTable
	logger     *slog.Logger
}

// NewCalculator builds a Calculator. A nil additional table disables origin
// surcharges and a nil VAT table falls back to the static country table.
func NewCalculator(tariffs reference.TariffTable, additional reference.AdditionalTariffTable, vat reference.VATTable, logger *slog.Logger) *Calculator {
	if vat == nil {
		vat = reference.StaticVAT{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Calculator{tariffs: tariffs, additional: additional, vat: vat, logger: logger}
}

// NewSnapshotCalculator wires every table from one snapshot.
func NewSnapshotCalculator(snap *reference.Snapshot, logger *slog.Logger) *Calculator {
	return NewCalculator(snap, snap, snap, logger)
}

// CalculateTariff is the positional form of Calculate.
func (c *Calculator) CalculateTariff(hsCode, countryCode string, itemCostUSD float64, originCountry string) (CostBreakdown, error) {
	return c.Calculate(PricingRequest{
		HSCode:        hsCode,
		CountryCode:   countryCode,
		ItemCostUSD:   itemCostUSD,
		OriginCountry: originCountry,
	})
}

// Calculate resolves rates and computes the duty-paid cost of req. Unknown
// HS codes, origins and destinations degrade to their documented defaults;
// only malformed input returns an error.
func (c *Calculator) Calculate(req PricingRequest) (CostBreakdown, error) {
	if err := shared.ValidateStruct("tariff: calculate", req); err != nil {
		return CostBreakdown{}, err
	}

	baseRate, resolved := c.baseRate(req.HSCode)
	if !resolved {
		c.logger.Warn("hs code not resolved, using default tariff rate",
			slog.String("hs_code", req.HSCode),
			slog.Float64("default_rate", DefaultBaseRate))
	}
	additionalRate := c.additionalRate(req.OriginCountry)
	vatRate := c.vatRate(req.CountryCode)

	cost := shared.Dec(req.ItemCostUSD)
	totalRate := shared.Dec(baseRate).Add(shared.Dec(additionalRate))

	// VAT is levied on cost plus the exact duty; only the reported
	// components are rounded to cents.
	tariffExact := cost.Mul(totalRate)
	tariffAmount := tariffExact.Round(2)
	processingFee := cost.Mul(decimal.NewFromFloat(DDPProcessingRate)).Round(2)
	vatAmount := cost.Add(tariffExact).Mul(shared.Dec(vatRate)).Round(2)
	total := tariffAmount.Add(processingFee).Add(vatAmount)

	return CostBreakdown{
		TariffRate:        totalRate.InexactFloat64(),
		TariffAmount:      tariffAmount.InexactFloat64(),
		VATRate:           vatRate,
		VATAmount:         vatAmount.InexactFloat64(),
		ProcessingFee:     processingFee.InexactFloat64(),
		TotalDDPCost:      total.InexactFloat64(),
		BaseTariff:        baseRate,
		AdditionalTariff:  additionalRate,
		DDPProcessingRate: DDPProcessingRate,
		HSCodeResolved:    resolved,
	}, nil
}

func (c *Calculator) baseRate(hsCode string) (float64, bool) {
	if c.tariffs == nil {
		return DefaultBaseRate, false
	}
	rate, ok := c.tariffs.BaseRate(hsCode)
	if !ok {
		return DefaultBaseRate, false
	}
	return rate, true
}

func (c *Calculator) additionalRate(origin string) float64 {
	if c.additional == nil || origin == "" {
		return 0
	}
	rate, ok := c.additional.AdditionalRate(origin)
	if !ok {
		return 0
	}
	return rate
}

func (c *Calculator) vatRate(country string) float64 {
	rate, ok := c.vat.VATRate(country)
	if !ok {
		return 0
	}
	return rate
}
