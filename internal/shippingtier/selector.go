// Package shippingtier finds a heavier rate-card band able to carry a
// duty-paid surcharge when shipping plus duty exceeds the platform cap.
package shippingtier

import (
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/landedcost/internal/reference"
	"github.com/odyssey-erp/landedcost/internal/shared"
)

// Input carries the figures needed to pick a tier.
type Input struct {
	ActualWeight    float64 `json:"actual_weight" validate:"finite,gte=0"`
	BaseShipping    float64 `json:"base_shipping" validate:"finite,gte=0"`
	DDPFee          float64 `json:"ddp_fee" validate:"finite,gte=0"`
	ShippingCap     float64 `json:"shipping_cap" validate:"finite,gte=0"`
	TargetMarginPct float64 `json:"target_margin_pct" validate:"finite,gte=0"`
	ProductPrice    float64 `json:"product_price" validate:"finite,gte=0"`
}

// ShippingPolicySelection is the selector outcome. A non-viable selection is
// a normal result and carries a Reason.
type ShippingPolicySelection struct {
	RecommendedWeight float64 `json:"recommended_weight"`
	DisplayShipping   float64 `json:"display_shipping"`
	ActualCost        float64 `json:"actual_cost"`
	ProfitReduction   float64 `json:"profit_reduction"`
	IsViable          bool    `json:"is_viable"`
	Reason            string  `json:"reason"`
}

// Selector scans an injected weight-tier table.
type Selector struct {
	tiers  reference.WeightTierTable
	logger *slog.Logger
}

// NewSelector constructs a Selector.
func NewSelector(tiers reference.WeightTierTable, logger *slog.Logger) *Selector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Selector{tiers: tiers, logger: logger}
}

// SelectShippingTier is the positional form of Select.
func (s *Selector) SelectShippingTier(actualWeight, baseShipping, ddpFee, shippingCap, targetMarginPct, productPrice float64) (ShippingPolicySelection, error) {
	return s.Select(Input{
		ActualWeight:    actualWeight,
		BaseShipping:    baseShipping,
		DDPFee:          ddpFee,
		ShippingCap:     shippingCap,
		TargetMarginPct: targetMarginPct,
		ProductPrice:    productPrice,
	})
}

// Select evaluates in against the tier table.
func (s *Selector) Select(in Input) (ShippingPolicySelection, error) {
	if err := shared.ValidateStruct("shippingtier: select", in); err != nil {
		return ShippingPolicySelection{}, err
	}

	total := shared.Dec(in.BaseShipping).Add(shared.Dec(in.DDPFee))
	capAmt := shared.Dec(in.ShippingCap)
	if total.LessThanOrEqual(capAmt) {
		return ShippingPolicySelection{
			RecommendedWeight: in.ActualWeight,
			DisplayShipping:   total.InexactFloat64(),
			ActualCost:        total.InexactFloat64(),
			IsViable:          true,
			Reason:            "shipping and duty fit under the platform cap",
		}, nil
	}

	excess := total.Sub(capAmt)
	var tiers []reference.WeightTier
	if s.tiers != nil {
		tiers = s.tiers.Tiers()
	}
	for _, tier := range tiers {
		if tier.WeightBand < in.ActualWeight {
			continue
		}
		if decimal.NewFromFloat(tier.EstimatedShipping).LessThan(total) {
			continue
		}
		budget := shared.Dec(in.ProductPrice).Mul(shared.Dec(in.TargetMarginPct))
		viable := excess.LessThan(budget)
		sel := ShippingPolicySelection{
			RecommendedWeight: tier.WeightBand,
			DisplayShipping:   in.ShippingCap,
			ActualCost:        total.InexactFloat64(),
			ProfitReduction:   excess.InexactFloat64(),
			IsViable:          viable,
		}
		if viable {
			sel.Reason = fmt.Sprintf("list under the %gkg tier; absorb %s of excess shipping", tier.WeightBand, excess.StringFixed(2))
		} else {
			sel.Reason = fmt.Sprintf("%gkg tier covers the cost but the %s excess exceeds the %s margin budget",
				tier.WeightBand, excess.StringFixed(2), budget.StringFixed(2))
		}
		return sel, nil
	}

	s.logger.Info("no weight tier covers shipping",
		slog.Float64("actual_weight", in.ActualWeight),
		slog.Float64("total_shipping", total.InexactFloat64()),
	)
	return ShippingPolicySelection{
		RecommendedWeight: in.ActualWeight,
		DisplayShipping:   in.ShippingCap,
		ActualCost:        total.InexactFloat64(),
		ProfitReduction:   excess.InexactFloat64(),
		IsViable:          false,
		Reason: fmt.Sprintf("no weight tier at or above %gkg covers %s of shipping and duty",
			in.ActualWeight, total.StringFixed(2)),
	}, nil
}
