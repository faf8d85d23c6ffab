package feealloc

import (
	"fmt"
	"strings"
)

// Strategy names the split applied between displayed shipping and handling.
type Strategy string

const (
	// StrategyDDU is used when no duty is collected.
	StrategyDDU Strategy = "DDU"
	// StrategyMaxHandling fills handling up to its cap and pushes the rest into shipping.
	StrategyMaxHandling Strategy = "Max Handling"
	// StrategyCustomerFriendly caps shipping at 150% of actual before using handling.
	StrategyCustomerFriendly Strategy = "Customer-friendly"
	// StrategyBalanced caps shipping at 130% of actual before using handling.
	StrategyBalanced Strategy = "Balanced"
)

const (
	// DefaultCapPct is the marketplace handling cap as a fraction of shipping.
	DefaultCapPct = 0.20
	// DefaultCapAbs is the absolute handling ceiling.
	DefaultCapAbs = 50.00
	// DDUHandling is the fixed handling charged when no duty is collected.
	DDUHandling = 2.00

	customerFriendlyShippingRatio = 1.50
	balancedShippingRatio         = 1.30
)

// ShippingAllocation is the customer-facing split of shipping and handling.
// Handling never exceeds min(actual shipping × cap pct, cap abs).
type ShippingAllocation struct {
	DisplayShipping  float64  `json:"display_shipping"`
	Handling         float64  `json:"handling"`
	TotalToCustomer  float64  `json:"total_to_customer"`
	DDPRecovered     float64  `json:"ddp_recovered"`
	DDPShortfall     float64  `json:"ddp_shortfall"`
	IsFullyRecovered bool     `json:"is_fully_recovered"`
	Strategy         Strategy `json:"strategy"`
	MaxHandling      float64  `json:"max_handling"`
}

// Candidate is one evaluated strategy.
type Candidate struct {
	Strategy        Strategy `json:"strategy"`
	DisplayShipping float64  `json:"display_shipping"`
	Handling        float64  `json:"handling"`
	Recovered       float64  `json:"recovered"`
}

// Selection names the rule used to pick among strategies.
type Selection string

const (
	// SelectMaxRecovery picks the greatest recovery, ties in declaration order.
	SelectMaxRecovery Selection = "max_recovery"
	// SelectInflationCeiling limits displayed shipping to a multiple of actual.
	SelectInflationCeiling Selection = "inflation_ceiling"
)

// SelectionOptions turns a configured selection into optimizer options.
func SelectionOptions(selection string, ceiling float64) ([]Option, error) {
	switch Selection(strings.ToLower(strings.TrimSpace(selection))) {
	case "", SelectMaxRecovery:
		return nil, nil
	case SelectInflationCeiling:
		if ceiling < 1 {
			return nil, fmt.Errorf("feealloc: inflation ceiling must be >= 1, got %v", ceiling)
		}
		return []Option{WithInflationCeiling(ceiling)}, nil
	default:
		return nil, fmt.Errorf("feealloc: unknown selection %q", selection)
	}
}
