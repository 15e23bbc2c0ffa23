package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"tickerlake/apperror"
	"tickerlake/config"
	"tickerlake/database"
	"tickerlake/ohlcv"
	pip "tickerlake/ohlcv/providers"
	"tickerlake/partition"
	"tickerlake/pipeline"
	"tickerlake/prompt"
	"tickerlake/utils"
	"tickerlake/utils/progress_printer"
)

type flags struct {
	configPath string
	ticker     string
	period     string
	storage    string
	processing string
	quiet      bool
}

func main() {
	var f flags
	cmd := &cobra.Command{
		Use:   "tickerlake",
		Short: "Ingest daily OHLCV bars into a partitioned data lake",
		Long: `Fetches the daily price history of one ticker, stores it as CSV under
ticker=<TICKER>/date=<YYYY-MM-DD> on local disk or in a cloud bucket, then either analyses it
locally or prints a PySpark cell that loads it in Databricks.

Without --ticker the run parameters are asked for interactively.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), f, cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}
	cmd.Flags().StringVarP(&f.configPath, "config", "c", "", "path to a YAML config file")
	cmd.Flags().StringVarP(&f.ticker, "ticker", "t", "", "ticker symbol, e.g. RELIANCE.NS")
	cmd.Flags().StringVarP(&f.period, "period", "p", "1y", "period: 7d, 1mo, 1y, 3y, 5y, max or menu choice 1-6")
	cmd.Flags().StringVarP(&f.storage, "storage", "s", "local", "storage target: local or cloud (gcp)")
	cmd.Flags().StringVar(&f.processing, "processing", "local", "processing target: local or remote (databricks)")
	cmd.Flags().BoolVarP(&f.quiet, "quiet", "q", false, "suppress progress output")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, f flags, stdin io.Reader, stdout, stderr io.Writer) error {
	// Application startup: load a .env file if present, then the configuration it may feed.
	if err := utils.LoadEnvFile(); err != nil {
		_, _ = fmt.Fprintf(stderr, "load .env: %v\n", err)
		return err
	}
	cfg, err := config.LoadAndValidate(f.configPath)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "%v\n", err)
		return err
	}

	logger := newLogger(cfg.Logging, stderr)
	slog.SetDefault(logger)

	answers := prompt.Answers{Storage: f.storage, Processing: f.processing, Ticker: f.ticker, Period: f.period}
	if f.ticker == "" {
		if answers, err = prompt.Ask(stdin, stdout); err != nil {
			logger.Error("no run parameters", "error", err)
			return err
		}
	}
	req, err := prompt.Resolve(answers)
	if err != nil {
		logger.Error("invalid run parameters", "stage", pipeline.StageValidate, "code", apperror.CodeOf(err), "error", err)
		return err
	}

	provider, err := newProvider(cfg, logger)
	if err != nil {
		logger.Error("no ingestion provider", "error", err)
		return err
	}

	metrics := &ohlcv.Metrics{}
	opts := []pipeline.Option{pipeline.WithLogger(logger), pipeline.WithMetrics(metrics)}
	if !f.quiet {
		opts = append(opts, pipeline.WithProgress(progress_printer.NewProgressPrinter(stderr, "tickerlake ")))
	}

	if cfg.Catalog.DatabaseURL != "" {
		catalog, err := database.Open(ctx, cfg.Catalog.DatabaseURL)
		if err != nil {
			logger.Warn("partition catalog unavailable, continuing without it", "error", err)
		} else {
			defer func() { _ = catalog.Close(context.Background()) }()
			opts = append(opts, pipeline.WithCatalog(catalog))
		}
	}

	o := pipeline.New(cfg, ohlcv.NewIngestor(provider, metrics, logger), opts...)
	res, err := o.Run(ctx, req)
	if err != nil {
		// The orchestrator has already logged stage, code and cause.
		return err
	}

	report(stdout, res)
	return nil
}

func newLogger(cfg config.LoggingConfig, w io.Writer) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

func newProvider(cfg *config.Config, logger *slog.Logger) (ohlcv.IngestionProvider, error) {
	client := &http.Client{Timeout: cfg.Fetch.Timeout}
	registry := ohlcv.NewRegistry(
		pip.NewYahoo(pip.WithWorkers(cfg.Fetch.Workers), pip.WithClient(client), pip.WithLogger(logger)),
		pip.NewPolygon(cfg.Fetch.PolygonAPIKey, logger),
	)
	p, err := registry.Get(cfg.Fetch.Provider)
	if err != nil {
		return nil, errors.Join(err, fmt.Errorf("available: %s", strings.Join(registry.Sources(), ", ")))
	}
	return p, nil
}

func report(w io.Writer, res *pipeline.Result) {
	_, _ = fmt.Fprintf(w, "\nRun %s stored %d partition(s), %s, at %s\n",
		res.RunID, len(res.Keys), humanize.Bytes(uint64(res.Location.Bytes)), res.Location.Root)

	out := res.Outcome
	if out == nil {
		return
	}
	if out.Code != "" {
		_, _ = fmt.Fprintln(w, "\nData is ready for Databricks analysis.")
		_, _ = fmt.Fprintln(w, "Paste the following PySpark code into a Databricks notebook cell:")
		_, _ = fmt.Fprintln(w, strings.Repeat("-", 70))
		_, _ = fmt.Fprint(w, out.Code)
		_, _ = fmt.Fprintln(w, strings.Repeat("-", 70))
		return
	}

	s := out.Summary
	_, _ = fmt.Fprintf(w, "\n%s %s to %s (%d bars)\n", s.Instrument,
		s.From.Format(partition.DateFormat), s.To.Format(partition.DateFormat), s.Bars)
	_, _ = fmt.Fprintf(w, "  close        %.2f -> %.2f (%+.2f%%)\n", s.FirstClose, s.LastClose, s.PeriodReturn*100)
	_, _ = fmt.Fprintf(w, "  range        %.2f - %.2f\n", s.Low, s.High)
	_, _ = fmt.Fprintf(w, "  mean volume  %s\n", humanize.Comma(int64(s.MeanVolume)))
	_, _ = fmt.Fprintf(w, "  volatility   %.2f%% daily\n", s.Volatility*100)
	_, _ = fmt.Fprintf(w, "  max drawdown %.2f%%\n", s.MaxDrawdown*100)
	if s.HasRolling {
		_, _ = fmt.Fprintf(w, "  %d-bar mean   %.2f (stddev %.2f)\n", s.Window, s.RollingMean, s.RollingStdDev)
	}
	_, _ = fmt.Fprintf(w, "  report       %s\n", out.ReportPath)
}
