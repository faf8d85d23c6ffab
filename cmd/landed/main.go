package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/landedcost/cmd/landed/cli"
	"github.com/odyssey-erp/landedcost/internal/app"
	"github.com/odyssey-erp/landedcost/internal/pricing"
	"github.com/odyssey-erp/landedcost/jobs"
)

const usage = `usage: landed <command> [flags]

commands:
  quote                 price a listing (flags or --input batch.json)
  lock acquire|release|status|sweep
  jobs trigger <task>   enqueue listing:lock-sweep or reference:warmup
  migrate               apply the PostgreSQL schema
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		_, _ = fmt.Fprint(stderr, usage)
		return 2
	}
	cfg, err := app.LoadConfig(".env")
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "load config: %v\n", err)
		return 1
	}
	logger := app.NewLoggerTo(stderr, cfg)

	switch args[0] {
	case "quote":
		return runQuote(ctx, cfg, logger, args[1:], stdout, stderr)
	case "lock":
		return runLock(ctx, cfg, logger, args[1:], stdout, stderr)
	case "jobs":
		return runJobs(ctx, cfg, args[1:], stdout, stderr)
	case "migrate":
		return runMigrate(ctx, cfg, logger, stderr)
	default:
		_, _ = fmt.Fprint(stderr, usage)
		return 2
	}
}

func runQuote(ctx context.Context, cfg *app.Config, logger *slog.Logger, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("quote", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var req pricing.QuoteRequest
	fs.StringVar(&req.SKU, "sku", "", "listing SKU")
	fs.StringVar(&req.HSCode, "hs", "", "HS code")
	fs.StringVar(&req.CountryCode, "country", "", "destination country code")
	fs.StringVar(&req.OriginCountry, "origin", "", "origin country code")
	fs.Float64Var(&req.ItemCostUSD, "cost", 0, "item cost in USD")
	fs.Float64Var(&req.ActualWeightKg, "weight", 0, "actual weight in kg")
	fs.Float64Var(&req.ActualShippingUSD, "shipping", 0, "actual shipping cost in USD")
	fs.Float64Var(&req.ShippingCapUSD, "cap", 0, "platform shipping cap in USD (0 for none)")
	fs.Float64Var(&req.SalePriceUSD, "price", 0, "sale price in USD")
	fs.Float64Var(&req.TargetMarginPct, "margin", 0, "target margin as a fraction")
	fs.Float64Var(&req.FXRate, "fx", 1, "source currency units per USD")
	input := fs.String("input", "", "JSON file with an array of requests (- for stdin)")
	jsonOut := fs.Bool("json", false, "print JSON")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	backends, err := app.OpenBackends(ctx, cfg, logger)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "quote: %v\n", err)
		return 1
	}
	defer backends.Close()

	refCache, err := app.NewReferenceCache(cfg, backends)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "quote: %v\n", err)
		return 1
	}
	snap, err := refCache.Snapshot(ctx)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "quote: load reference: %v\n", err)
		return 1
	}
	engine, err := app.NewEngine(cfg, snap, logger, nil)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "quote: %v\n", err)
		return 1
	}
	quoteCLI, err := cli.NewQuoteCLI(engine)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "quote: %v\n", err)
		return 1
	}

	opts := cli.QuoteOptions{Request: req, JSONOutput: *jsonOut, Stdout: stdout, Stderr: stderr}
	switch *input {
	case "":
	case "-":
		opts.Input = os.Stdin
	default:
		f, err := os.Open(*input)
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "quote: %v\n", err)
			return 1
		}
		defer f.Close()
		opts.Input = f
	}
	return quoteCLI.QuoteCommand(ctx, opts)
}

func runLock(ctx context.Context, cfg *app.Config, logger *slog.Logger, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		_, _ = fmt.Fprint(stderr, usage)
		return 2
	}
	sub := args[0]
	fs := flag.NewFlagSet("lock "+sub, flag.ContinueOnError)
	fs.SetOutput(stderr)
	opts := cli.LockOptions{Stdout: stdout, Stderr: stderr}
	fs.StringVar(&opts.SKU, "sku", "", "listing SKU")
	fs.StringVar(&opts.Platform, "platform", "", "marketplace platform")
	fs.StringVar(&opts.AccountID, "account", "", "seller account id")
	fs.StringVar(&opts.Reason, "reason", "", "free-text reason")
	fs.BoolVar(&opts.JSONOutput, "json", false, "print JSON")
	if err := fs.Parse(args[1:]); err != nil {
		return 2
	}

	backends, err := app.OpenBackends(ctx, cfg, logger)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "lock: %v\n", err)
		return 1
	}
	defer backends.Close()
	store, closeStore, err := app.NewLockStore(cfg, backends)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "lock: %v\n", err)
		return 1
	}
	defer closeStore()
	svc, err := app.NewLockService(cfg, store, logger, nil)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "lock: %v\n", err)
		return 1
	}
	lockCLI, err := cli.NewLockCLI(svc)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "lock: %v\n", err)
		return 1
	}

	switch sub {
	case "acquire":
		return lockCLI.AcquireCommand(ctx, opts)
	case "release":
		return lockCLI.ReleaseCommand(ctx, opts)
	case "status":
		return lockCLI.StatusCommand(ctx, opts)
	case "sweep":
		return lockCLI.SweepCommand(ctx, opts)
	default:
		_, _ = fmt.Fprintf(stderr, "lock: unknown subcommand %q\n", sub)
		return 2
	}
}

func runJobs(ctx context.Context, cfg *app.Config, args []string, stdout, stderr io.Writer) int {
	if len(args) != 2 || args[0] != "trigger" {
		_, _ = fmt.Fprint(stderr, usage)
		return 2
	}
	client, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "jobs: %v\n", err)
		return 1
	}
	defer client.Close()
	jobsCLI, err := cli.NewJobsCLI(client)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "jobs: %v\n", err)
		return 1
	}
	return jobsCLI.TriggerCommand(ctx, args[1], stdout, stderr)
}

func runMigrate(ctx context.Context, cfg *app.Config, logger *slog.Logger, stderr io.Writer) int {
	if app.InTestMode() {
		_, _ = fmt.Fprintln(stderr, "migrate: refusing to run in test mode")
		return 1
	}
	if !cfg.NeedsPostgres() {
		_, _ = fmt.Fprintln(stderr, "migrate: no PostgreSQL backend configured")
		return 1
	}
	backends, err := app.OpenBackends(ctx, cfg, logger)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "migrate: %v\n", err)
		return 1
	}
	defer backends.Close()
	if err := app.MigratePostgres(ctx, backends.Pool); err != nil {
		_, _ = fmt.Fprintf(stderr, "migrate: %v\n", err)
		return 1
	}
	logger.Info("schema applied")
	return 0
}
