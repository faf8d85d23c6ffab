// Package feealloc splits a duty-paid surcharge between the displayed
// shipping price and a capped handling fee.
//
// Marketplaces cap handling at min(shipping × pct, abs) but leave the
// shipping figure itself uncapped, so Max Handling always recovers the full
// surcharge. Under the default max-recovery selection it therefore always
// wins when duties are owed; the customer-friendly and balanced splits are
// only chosen when an inflation ceiling is configured.
package feealloc

import (
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/landedcost/internal/shared"
)

// Optimizer chooses a ShippingAllocation. The zero value is not usable; use
// NewOptimizer.
type Optimizer struct {
	capPct           float64
	capAbs           float64
	inflationCeiling float64
}

// Option customises an Optimizer.
type Option func(*Optimizer)

// WithCap overrides the handling cap.
func WithCap(pct, abs float64) Option {
	return func(o *Optimizer) {
		o.capPct = pct
		o.capAbs = abs
	}
}

// WithInflationCeiling restricts selection to candidates whose displayed
// shipping stays within ratio × actual shipping. Zero disables the ceiling.
func WithInflationCeiling(ratio float64) Option {
	return func(o *Optimizer) {
		o.inflationCeiling = ratio
	}
}

// NewOptimizer builds an Optimizer with the default 20% / 50.00 cap.
func NewOptimizer(opts ...Option) *Optimizer {
	o := &Optimizer{capPct: DefaultCapPct, capAbs: DefaultCapAbs}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

type allocationInput struct {
	ActualShipping   float64 `json:"actual_shipping" validate:"finite,gte=0"`
	DDPFees          float64 `json:"ddp_fees" validate:"finite,gte=0"`
	CapPct           float64 `json:"cap_pct" validate:"finite,gte=0,lte=1"`
	CapAbs           float64 `json:"cap_abs" validate:"finite,gte=0"`
	InflationCeiling float64 `json:"inflation_ceiling" validate:"finite,gte=0"`
}

// Optimize splits ddpFees using the optimizer's configured cap.
func (o *Optimizer) Optimize(actualShipping, ddpFees float64) (ShippingAllocation, error) {
	return o.OptimizeWithCap(actualShipping, ddpFees, o.capPct, o.capAbs)
}

// OptimizeWithCap splits ddpFees under an explicit handling cap.
func (o *Optimizer) OptimizeWithCap(actualShipping, ddpFees, capPct, capAbs float64) (ShippingAllocation, error) {
	in := allocationInput{
		ActualShipping:   actualShipping,
		DDPFees:          ddpFees,
		CapPct:           capPct,
		CapAbs:           capAbs,
		InflationCeiling: o.inflationCeiling,
	}
	if err := shared.ValidateStruct("feealloc: optimize", in); err != nil {
		return ShippingAllocation{}, err
	}

	actual := shared.Dec(actualShipping)
	fees := shared.Dec(ddpFees)
	maxHandling := decimal.Min(actual.Mul(shared.Dec(capPct)), shared.Dec(capAbs))

	if fees.IsZero() {
		handling := decimal.NewFromFloat(DDUHandling)
		return ShippingAllocation{
			DisplayShipping:  actualShipping,
			Handling:         DDUHandling,
			TotalToCustomer:  actual.Add(handling).InexactFloat64(),
			IsFullyRecovered: true,
			Strategy:         StrategyDDU,
			MaxHandling:      maxHandling.InexactFloat64(),
		}, nil
	}

	candidates := evaluate(actual, fees, maxHandling)
	chosen := o.choose(actual, candidates)

	shortfall := decimal.Max(decimal.Zero, fees.Sub(chosen.recovered))
	return ShippingAllocation{
		DisplayShipping:  chosen.shipping.InexactFloat64(),
		Handling:         chosen.handling.InexactFloat64(),
		TotalToCustomer:  chosen.shipping.Add(chosen.handling).InexactFloat64(),
		DDPRecovered:     chosen.recovered.InexactFloat64(),
		DDPShortfall:     shortfall.InexactFloat64(),
		IsFullyRecovered: shortfall.IsZero(),
		Strategy:         chosen.strategy,
		MaxHandling:      maxHandling.InexactFloat64(),
	}, nil
}

// Candidates returns every strategy evaluated for the inputs, in
// declaration order, without selecting one.
func (o *Optimizer) Candidates(actualShipping, ddpFees float64) ([]Candidate, error) {
	in := allocationInput{ActualShipping: actualShipping, DDPFees: ddpFees, CapPct: o.capPct, CapAbs: o.capAbs}
	if err := shared.ValidateStruct("feealloc: candidates", in); err != nil {
		return nil, err
	}
	actual := shared.Dec(actualShipping)
	maxHandling := decimal.Min(actual.Mul(shared.Dec(o.capPct)), shared.Dec(o.capAbs))
	evaluated := evaluate(actual, shared.Dec(ddpFees), maxHandling)
	out := make([]Candidate, 0, len(evaluated))
	for _, c := range evaluated {
		out = append(out, Candidate{
			Strategy:        c.strategy,
			DisplayShipping: c.shipping.InexactFloat64(),
			Handling:        c.handling.InexactFloat64(),
			Recovered:       c.recovered.InexactFloat64(),
		})
	}
	return out, nil
}

type candidate struct {
	strategy  Strategy
	shipping  decimal.Decimal
	handling  decimal.Decimal
	recovered decimal.Decimal
}

func evaluate(actual, fees, maxHandling decimal.Decimal) []candidate {
	handlingA := decimal.Min(fees, maxHandling)
	surchargeA := fees.Sub(handlingA)
	return []candidate{
		{
			strategy:  StrategyMaxHandling,
			shipping:  actual.Add(surchargeA),
			handling:  handlingA,
			recovered: surchargeA.Add(handlingA),
		},
		shippingFirst(StrategyCustomerFriendly, actual, fees, maxHandling, customerFriendlyShippingRatio),
		shippingFirst(StrategyBalanced, actual, fees, maxHandling, balancedShippingRatio),
	}
}

// shippingFirst inflates shipping up to ratio × actual, then puts what is
// left into handling up to its cap.
func shippingFirst(strategy Strategy, actual, fees, maxHandling decimal.Decimal, ratio float64) candidate {
	room := actual.Mul(decimal.NewFromFloat(ratio)).Sub(actual)
	surcharge := decimal.Min(fees, decimal.Max(decimal.Zero, room))
	handling := decimal.Min(fees.Sub(surcharge), maxHandling)
	return candidate{
		strategy:  strategy,
		shipping:  actual.Add(surcharge),
		handling:  handling,
		recovered: surcharge.Add(handling),
	}
}

func (o *Optimizer) choose(actual decimal.Decimal, candidates []candidate) candidate {
	pool := candidates
	if o.inflationCeiling > 0 {
		limit := actual.Mul(shared.Dec(o.inflationCeiling))
		within := make([]candidate, 0, len(candidates))
		for _, c := range candidates {
			if c.shipping.LessThanOrEqual(limit) {
				within = append(within, c)
			}
		}
		if len(within) == 0 {
			return leastShipping(candidates)
		}
		pool = within
	}
	best := pool[0]
	for _, c := range pool[1:] {
		if c.recovered.GreaterThan(best.recovered) {
			best = c
		}
	}
	return best
}

func leastShipping(candidates []candidate) candidate {
	best := candidates[0]
	for _, c := range candidates[1:] {
		if c.shipping.LessThan(best.shipping) {
			best = c
		}
	}
	return best
}
