package pricing

import (
	"github.com/odyssey-erp/landedcost/internal/feealloc"
	"github.com/odyssey-erp/landedcost/internal/profitability"
	"github.com/odyssey-erp/landedcost/internal/shippingtier"
	"github.com/odyssey-erp/landedcost/internal/tariff"
)

// QuoteRequest describes one listing to price. Amounts are USD; FXRate
// converts USD into the source currency the profit floors are written in.
type QuoteRequest struct {
	SKU               string  `json:"sku,omitempty"`
	HSCode            string  `json:"hs_code"`
	CountryCode       string  `json:"country_code" validate:"required,max=3"`
	OriginCountry     string  `json:"origin_country,omitempty" validate:"max=3"`
	ItemCostUSD       float64 `json:"item_cost_usd" validate:"finite,gte=0"`
	ActualWeightKg    float64 `json:"actual_weight_kg" validate:"finite,gte=0"`
	ActualShippingUSD float64 `json:"actual_shipping_usd" validate:"finite,gte=0"`
	// ShippingCapUSD of zero means the platform has no shipping cap.
	ShippingCapUSD  float64 `json:"shipping_cap_usd" validate:"finite,gte=0"`
	SalePriceUSD    float64 `json:"sale_price_usd" validate:"finite,gte=0"`
	TargetMarginPct float64 `json:"target_margin_pct" validate:"finite,gte=0,lte=1"`
	FXRate          float64 `json:"fx_rate" validate:"finite,gt=0"`
}

// Economics is the money picture for one pricing mode.
type Economics struct {
	ShippingChargedUSD float64 `json:"shipping_charged_usd"`
	HandlingUSD        float64 `json:"handling_usd"`
	RevenueUSD         float64 `json:"revenue_usd"`
	CostUSD            float64 `json:"cost_usd"`
	ProfitUSD          float64 `json:"profit_usd"`
	Margin             float64 `json:"margin"`
	ProfitSource       float64 `json:"profit_source"`
}

// Quote is the full decision for one listing.
type Quote struct {
	SKU           string                                `json:"sku,omitempty"`
	Breakdown     tariff.CostBreakdown                  `json:"breakdown"`
	Allocation    feealloc.ShippingAllocation           `json:"allocation"`
	DDUAllocation feealloc.ShippingAllocation           `json:"ddu_allocation"`
	TierSelection *shippingtier.ShippingPolicySelection `json:"tier_selection,omitempty"`
	DDP           Economics                             `json:"ddp"`
	DDU           Economics                             `json:"ddu"`
	CostSource    float64                               `json:"cost_source"`
	Verdict       profitability.DualModeVerdict         `json:"verdict"`
	Notes         []string                              `json:"notes,omitempty"`
}

// CanList reports whether any mode cleared the profit floors.
func (q Quote) CanList() bool {
	return q.Verdict.Viable
}
