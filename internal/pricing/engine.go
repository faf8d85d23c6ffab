// Package pricing runs the landed-cost pipeline for a listing: duty
// breakdown, fee allocation, shipping tier fallback and the profit gate.
package pricing

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/odyssey-erp/landedcost/internal/feealloc"
	"github.com/odyssey-erp/landedcost/internal/profitability"
	"github.com/odyssey-erp/landedcost/internal/reference"
	"github.com/odyssey-erp/landedcost/internal/shared"
	"github.com/odyssey-erp/landedcost/internal/shippingtier"
	"github.com/odyssey-erp/landedcost/internal/tariff"
)

// DefaultBatchLimit bounds concurrent quotes in QuoteBatch.
const DefaultBatchLimit = 8

// VerdictRecorder receives per-mode gate outcomes.
type VerdictRecorder interface {
	ProfitabilityVerdict(outcome string)
}

// Engine prices listings against one reference snapshot.
type Engine struct {
	calculator *tariff.Calculator
	optimizer  *feealloc.Optimizer
	selector   *shippingtier.Selector
	gate       *profitability.Gate
	metrics    VerdictRecorder
	logger     *slog.Logger
	batchLimit int
}

// Option customises an Engine.
type Option func(*Engine)

// WithOptimizer replaces the default fee optimizer.
func WithOptimizer(o *feealloc.Optimizer) Option {
	return func(e *Engine) {
		if o != nil {
			e.optimizer = o
		}
	}
}

// WithGate replaces the default profitability gate.
func WithGate(g *profitability.Gate) Option {
	return func(e *Engine) {
		if g != nil {
			e.gate = g
		}
	}
}

// WithMetrics records verdict outcomes.
func WithMetrics(m VerdictRecorder) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithLogger sets the logger shared by every component.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithBatchLimit bounds QuoteBatch concurrency.
func WithBatchLimit(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.batchLimit = n
		}
	}
}

// NewEngine builds an Engine over snap.
func NewEngine(snap *reference.Snapshot, opts ...Option) *Engine {
	e := &Engine{logger: slog.Default(), batchLimit: DefaultBatchLimit}
	for _, opt := range opts {
		opt(e)
	}
	e.calculator = tariff.NewSnapshotCalculator(snap, e.logger)
	e.selector = shippingtier.NewSelector(snap, e.logger)
	if e.optimizer == nil {
		e.optimizer = feealloc.NewOptimizer()
	}
	if e.gate == nil {
		e.gate = profitability.NewGate(profitability.WithLogger(e.logger))
	}
	return e
}

// Quote prices a single listing.
func (e *Engine) Quote(ctx context.Context, req QuoteRequest) (Quote, error) {
	if err := ctx.Err(); err != nil {
		return Quote{}, err
	}
	if err := shared.ValidateStruct("pricing: quote", req); err != nil {
		return Quote{}, err
	}

	breakdown, err := e.calculator.Calculate(tariff.PricingRequest{
		HSCode:        req.HSCode,
		CountryCode:   req.CountryCode,
		ItemCostUSD:   req.ItemCostUSD,
		OriginCountry: req.OriginCountry,
	})
	if err != nil {
		return Quote{}, err
	}

	alloc, err := e.optimizer.Optimize(req.ActualShippingUSD, breakdown.TotalDDPCost)
	if err != nil {
		return Quote{}, err
	}
	dduAlloc, err := e.optimizer.Optimize(req.ActualShippingUSD, 0)
	if err != nil {
		return Quote{}, err
	}

	q := Quote{
		SKU:           strings.TrimSpace(req.SKU),
		Breakdown:     breakdown,
		Allocation:    alloc,
		DDUAllocation: dduAlloc,
	}

	shippingCharged := alloc.DisplayShipping
	if req.ShippingCapUSD > 0 && alloc.DisplayShipping > req.ShippingCapUSD {
		sel, err := e.selector.Select(shippingtier.Input{
			ActualWeight:    req.ActualWeightKg,
			BaseShipping:    req.ActualShippingUSD,
			DDPFee:          shared.Dec(alloc.DisplayShipping).Sub(shared.Dec(req.ActualShippingUSD)).InexactFloat64(),
			ShippingCap:     req.ShippingCapUSD,
			TargetMarginPct: req.TargetMarginPct,
			ProductPrice:    req.SalePriceUSD,
		})
		if err != nil {
			return Quote{}, err
		}
		q.TierSelection = &sel
		shippingCharged = sel.DisplayShipping
		q.Notes = append(q.Notes, sel.Reason)
	}

	fx := shared.Dec(req.FXRate)
	item := shared.Dec(req.ItemCostUSD)
	actual := shared.Dec(req.ActualShippingUSD)
	sale := shared.Dec(req.SalePriceUSD)

	q.DDP = economics(sale, shared.Dec(shippingCharged), shared.Dec(alloc.Handling),
		item.Add(actual).Add(shared.Dec(breakdown.TotalDDPCost)), fx)
	q.DDU = economics(sale, shared.Dec(dduAlloc.DisplayShipping), shared.Dec(dduAlloc.Handling),
		item.Add(actual), fx)
	q.CostSource = item.Mul(fx).Round(2).InexactFloat64()

	modes := make([]profitability.ModeInput, 0, 2)
	if q.TierSelection == nil || q.TierSelection.IsViable {
		modes = append(modes, profitability.ModeInput{Mode: profitability.ModeDDP, Profit: q.DDP.ProfitSource, Margin: q.DDP.Margin})
	} else {
		q.Notes = append(q.Notes, "DDP excluded: no viable shipping tier under the platform cap")
	}
	modes = append(modes, profitability.ModeInput{Mode: profitability.ModeDDU, Profit: q.DDU.ProfitSource, Margin: q.DDU.Margin})

	verdict, err := e.gate.CheckDualMode(q.CostSource, modes...)
	if err != nil {
		return Quote{}, err
	}
	q.Verdict = verdict
	if e.metrics != nil {
		for _, mv := range verdict.Modes {
			e.metrics.ProfitabilityVerdict(mv.Verdict.Outcome())
		}
	}

	e.logger.Debug("listing quoted",
		slog.String("sku", q.SKU),
		slog.Bool("viable", verdict.Viable),
		slog.String("preferred_mode", string(verdict.PreferredMode)),
	)
	return q, nil
}

// QuoteBatch prices reqs concurrently. Results keep the input order; the
// first failure cancels the rest.
func (e *Engine) QuoteBatch(ctx context.Context, reqs []QuoteRequest) ([]Quote, error) {
	out := make([]Quote, len(reqs))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(e.batchLimit)
	for i, req := range reqs {
		g.Go(func() error {
			q, err := e.Quote(ctx, req)
			if err != nil {
				return fmt.Errorf("pricing: quote %d (%s): %w", i, req.SKU, err)
			}
			out[i] = q
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func economics(sale, shipping, handling, cost, fx decimal.Decimal) Economics {
	revenue := sale.Add(shipping).Add(handling)
	profit := revenue.Sub(cost)
	margin := decimal.Zero
	if revenue.IsPositive() {
		margin = profit.Div(revenue)
	}
	return Economics{
		ShippingChargedUSD: shipping.Round(2).InexactFloat64(),
		HandlingUSD:        handling.Round(2).InexactFloat64(),
		RevenueUSD:         revenue.Round(2).InexactFloat64(),
		CostUSD:            cost.Round(2).InexactFloat64(),
		ProfitUSD:          profit.Round(2).InexactFloat64(),
		Margin:             margin.Round(4).InexactFloat64(),
		ProfitSource:       profit.Mul(fx).Round(2).InexactFloat64(),
	}
}
