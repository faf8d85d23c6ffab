package tariff

const (
	// DefaultBaseRate applies when an HS code cannot be resolved.
	DefaultBaseRate = 0.058
	// DDPProcessingRate is charged on item cost for collecting duties at checkout.
	DDPProcessingRate = 0.08
)

// PricingRequest is one line item to be landed in a destination country.
type PricingRequest struct {
	HSCode        string  `json:"hs_code"`
	CountryCode   string  `json:"country_code" validate:"max=3"`
	ItemCostUSD   float64 `json:"item_cost_usd" validate:"finite,gte=0"`
	OriginCountry string  `json:"origin_country,omitempty" validate:"max=3"`
}

// CostBreakdown is the duty/tax burden of a line item. Monetary fields are
// rounded to cents and TotalDDPCost is always the sum of the three charges.
type CostBreakdown struct {
	TariffRate        float64 `json:"tariff_rate"`
	TariffAmount      float64 `json:"tariff_amount"`
	VATRate           float64 `json:"vat_rate"`
	VATAmount         float64 `json:"vat_amount"`
	ProcessingFee     float64 `json:"processing_fee"`
	TotalDDPCost      float64 `json:"total_ddp_cost"`
	BaseTariff        float64 `json:"base_tariff"`
	AdditionalTariff  float64 `json:"additional_tariff"`
	DDPProcessingRate float64 `json:"ddp_processing_rate"`
	HSCodeResolved    bool    `json:"hs_code_resolved"`
}
