package profitability

import (
	"fmt"
	"log/slog"

	"github.com/odyssey-erp/landedcost/internal/shared"
)

// Verdict is the gate decision for one priced listing. CanList is true when
// either floor passes.
type Verdict struct {
	CanList           bool    `json:"can_list"`
	MinProfitRequired float64 `json:"min_profit_required"`
	ActualProfit      float64 `json:"actual_profit"`
	MinMarginRequired float64 `json:"min_margin_required"`
	ActualMargin      float64 `json:"actual_margin"`
	PassedAmount      bool    `json:"passed_amount"`
	PassedMargin      bool    `json:"passed_margin"`
	Recommendation    string  `json:"recommendation"`
}

// Outcome labels a verdict for metrics and logs.
func (v Verdict) Outcome() string {
	switch {
	case v.PassedAmount && v.PassedMargin:
		return "both"
	case v.PassedAmount:
		return "amount_only"
	case v.PassedMargin:
		return "margin_only"
	default:
		return "reject"
	}
}

// Gate applies the floor policy.
type Gate struct {
	floors func(cost float64) Floor
	logger *slog.Logger
}

// GateOption customises a Gate.
type GateOption func(*Gate)

// WithFloors replaces the floor table.
func WithFloors(fn func(cost float64) Floor) GateOption {
	return func(g *Gate) {
		if fn != nil {
			g.floors = fn
		}
	}
}

// WithLogger sets the gate logger.
func WithLogger(logger *slog.Logger) GateOption {
	return func(g *Gate) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// NewGate constructs a Gate using FloorFor.
func NewGate(opts ...GateOption) *Gate {
	g := &Gate{floors: FloorFor, logger: slog.Default()}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

type checkInput struct {
	Cost   float64 `json:"cost" validate:"finite,gte=0"`
	Profit float64 `json:"profit" validate:"finite"`
	Margin float64 `json:"margin" validate:"finite"`
}

// Check evaluates one listing. Profit and margin may be negative; cost may not.
func (g *Gate) Check(cost, profit, margin float64) (Verdict, error) {
	if err := shared.ValidateStruct("profitability: check", checkInput{Cost: cost, Profit: profit, Margin: margin}); err != nil {
		return Verdict{}, err
	}
	floor := g.floors(cost)
	v := Verdict{
		MinProfitRequired: floor.MinProfit,
		ActualProfit:      profit,
		MinMarginRequired: floor.MinMargin,
		ActualMargin:      margin,
		PassedAmount:      profit >= floor.MinProfit,
		PassedMargin:      margin >= floor.MinMargin,
	}
	v.CanList = v.PassedAmount || v.PassedMargin
	v.Recommendation = recommend(v)
	g.logger.Debug("profitability verdict",
		slog.Float64("cost", cost),
		slog.String("outcome", v.Outcome()),
		slog.Bool("can_list", v.CanList),
	)
	return v, nil
}

func recommend(v Verdict) string {
	switch {
	case v.PassedAmount && v.PassedMargin:
		return fmt.Sprintf("list: profit %s and margin %s clear both floors",
			shared.FormatAmount(v.ActualProfit), shared.FormatPercent(v.ActualMargin))
	case v.PassedAmount:
		return fmt.Sprintf("list: profit floor %s met; margin %s is below %s, consider raising the price",
			shared.FormatAmount(v.MinProfitRequired), shared.FormatPercent(v.ActualMargin), shared.FormatPercent(v.MinMarginRequired))
	case v.PassedMargin:
		return fmt.Sprintf("list: margin floor %s met; profit %s is below %s, consider a higher-value item or price",
			shared.FormatPercent(v.MinMarginRequired), shared.FormatAmount(v.ActualProfit), shared.FormatAmount(v.MinProfitRequired))
	default:
		return fmt.Sprintf("reject: profit %s is below %s and margin %s is below %s",
			shared.FormatAmount(v.ActualProfit), shared.FormatAmount(v.MinProfitRequired),
			shared.FormatPercent(v.ActualMargin), shared.FormatPercent(v.MinMarginRequired))
	}
}
