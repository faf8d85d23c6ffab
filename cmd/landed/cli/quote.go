package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/odyssey-erp/landedcost/internal/pricing"
	"github.com/odyssey-erp/landedcost/internal/shared"
)

// Quoter prices listings.
type Quoter interface {
	Quote(ctx context.Context, req pricing.QuoteRequest) (pricing.Quote, error)
	QuoteBatch(ctx context.Context, reqs []pricing.QuoteRequest) ([]pricing.Quote, error)
}

// ExitNotListable is returned when every mode was rejected.
const ExitNotListable = 10

// QuoteOptions defines available flags for the quote command.
type QuoteOptions struct {
	Request pricing.QuoteRequest
	// Input, when set, holds a JSON array of requests and replaces Request.
	Input      io.Reader
	JSONOutput bool
	Stdout     io.Writer
	Stderr     io.Writer
}

// QuoteCLI runs pricing decisions from the command line.
type QuoteCLI struct {
	engine Quoter
}

// NewQuoteCLI constructs the helper.
func NewQuoteCLI(engine Quoter) (*QuoteCLI, error) {
	if engine == nil {
		return nil, errors.New("quote cli: engine required")
	}
	return &QuoteCLI{engine: engine}, nil
}

// QuoteCommand prices one listing, or a batch read from Input, and prints the
// result. It exits with ExitNotListable when any listing is rejected.
func (c *QuoteCLI) QuoteCommand(ctx context.Context, opts QuoteOptions) int {
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}

	var quotes []pricing.Quote
	if opts.Input != nil {
		var reqs []pricing.QuoteRequest
		if err := json.NewDecoder(opts.Input).Decode(&reqs); err != nil {
			_, _ = fmt.Fprintf(opts.Stderr, "quote: decode input: %v\n", err)
			return 1
		}
		batch, err := c.engine.QuoteBatch(ctx, reqs)
		if err != nil {
			reportQuoteError(opts.Stderr, err)
			return 1
		}
		quotes = batch
	} else {
		quote, err := c.engine.Quote(ctx, opts.Request)
		if err != nil {
			reportQuoteError(opts.Stderr, err)
			return 1
		}
		quotes = []pricing.Quote{quote}
	}

	if opts.JSONOutput {
		var payload any = quotes
		if opts.Input == nil {
			payload = quotes[0]
		}
		enc := json.NewEncoder(opts.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(payload); err != nil {
			_, _ = fmt.Fprintf(opts.Stderr, "quote: encode json: %v\n", err)
			return 1
		}
	} else {
		for _, q := range quotes {
			renderQuoteHuman(opts.Stdout, q)
		}
	}

	for _, q := range quotes {
		if !q.CanList() {
			return ExitNotListable
		}
	}
	return 0
}

func reportQuoteError(w io.Writer, err error) {
	var verr *shared.ValidationError
	if errors.As(err, &verr) {
		_, _ = fmt.Fprintf(w, "quote: invalid request: %v\n", verr)
		return
	}
	_, _ = fmt.Fprintf(w, "quote: %v\n", err)
}

func renderQuoteHuman(out io.Writer, q pricing.Quote) {
	label := q.SKU
	if label == "" {
		label = "listing"
	}
	b := q.Breakdown
	_, _ = fmt.Fprintf(out, "%s\n", label)
	_, _ = fmt.Fprintf(out, "  tariff %s (%s) + VAT %s (%s) + processing %s = DDP %s\n",
		shared.FormatAmount(b.TariffAmount), shared.FormatPercent(b.TariffRate),
		shared.FormatAmount(b.VATAmount), shared.FormatPercent(b.VATRate),
		shared.FormatAmount(b.ProcessingFee), shared.FormatAmount(b.TotalDDPCost))
	a := q.Allocation
	_, _ = fmt.Fprintf(out, "  %s: shipping %s + handling %s", a.Strategy,
		shared.FormatAmount(a.DisplayShipping), shared.FormatAmount(a.Handling))
	if !a.IsFullyRecovered {
		_, _ = fmt.Fprintf(out, " (shortfall %s)", shared.FormatAmount(a.DDPShortfall))
	}
	_, _ = fmt.Fprintln(out)
	if q.TierSelection != nil {
		_, _ = fmt.Fprintf(out, "  tier: %s\n", q.TierSelection.Reason)
	}
	_, _ = fmt.Fprintf(out, "  DDP profit %s (%s), DDU profit %s (%s)\n",
		shared.FormatAmount(q.DDP.ProfitUSD), shared.FormatPercent(q.DDP.Margin),
		shared.FormatAmount(q.DDU.ProfitUSD), shared.FormatPercent(q.DDU.Margin))
	for _, note := range q.Notes {
		_, _ = fmt.Fprintf(out, "  note: %s\n", note)
	}
	_, _ = fmt.Fprintf(out, "  verdict: %s\n", q.Verdict.Recommendation)
}
