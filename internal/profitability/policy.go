// Package profitability decides whether a priced listing clears the
// graduated minimum-profit policy.
package profitability

import "math"

// Floor is the pair of minimums applied to one cost level.
type Floor struct {
	MinProfit float64 `json:"min_profit"`
	MinMargin float64 `json:"min_margin"`
}

// FloorFor returns the profit and margin floors for cost, expressed in
// source currency units.
func FloorFor(cost float64) Floor {
	return Floor{MinProfit: minProfit(cost), MinMargin: minMargin(cost)}
}

func minProfit(cost float64) float64 {
	switch {
	case cost < 5000:
		return 1500
	case cost < 10000:
		return 2000
	case cost < 20000:
		return 3000
	case cost < 50000:
		return math.Max(3000, cost*0.15)
	default:
		return math.Max(5000, cost*0.12)
	}
}

func minMargin(cost float64) float64 {
	switch {
	case cost < 10000:
		return 0.08
	case cost < 50000:
		return 0.10
	default:
		return 0.12
	}
}
