package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"stockpulse/internal/app"
	"stockpulse/internal/config"
	"stockpulse/internal/exporter"
	"stockpulse/internal/infrastructure"
	"stockpulse/pkg/contracts/domain"
)

type analyzeOptions struct {
	start    string
	end      string
	interval string
	output   string
	format   string
	noCache  bool
}

func newAnalyzeCmd(state *cliState) *cobra.Command {
	opts := analyzeOptions{}

	cmd := &cobra.Command{
		Use:   "analyze TICKER [TICKER...]",
		Short: "Analyze tickers once and print the result",
		Example: `  stockpulse analyze AAPL MSFT --start 2024-01-01 --end 2024-06-30
  stockpulse analyze SPY --interval 1wk -o spy.xlsx`,
		Args: cobra.RangeArgs(1, config.MaxTickersLimit),
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.noCache {
				state.cfg.Cache.Enabled = false
			}
			return runAnalyze(cmd.Context(), state.cfg, args, opts, cmd.OutOrStdout())
		},
	}

	today := time.Now().UTC()
	cmd.Flags().StringVar(&opts.start, "start", today.AddDate(-1, 0, 0).Format(domain.DateLayout), "start date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&opts.end, "end", today.Format(domain.DateLayout), "end date (YYYY-MM-DD)")
	cmd.Flags().StringVarP(&opts.interval, "interval", "i", string(domain.Interval1d), "bar interval")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "write an export file instead of printing JSON")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "", "export format (csv or xlsx, default from --output extension)")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "bypass the result cache")
	return cmd
}

func runAnalyze(ctx context.Context, cfg *config.Config, tickers []string, opts analyzeOptions, out io.Writer) error {
	// The CLI has no scrape target
	cfg.OTel.MetricsEnabled = false
	cfg.Cache.SweepSchedule = ""

	application, err := app.New(ctx, cfg, infrastructure.GetLogger())
	if err != nil {
		return err
	}
	defer application.Close(ctx)

	resp, err := application.Analysis.Analyze(ctx, domain.AnalysisRequest{
		Tickers:   tickers,
		StartDate: opts.start,
		EndDate:   opts.end,
		Interval:  domain.Interval(opts.interval),
	})
	if err != nil {
		return err
	}

	if opts.output == "" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	}

	format, err := exportFormat(opts)
	if err != nil {
		return err
	}
	f, err := os.Create(opts.output)
	if err != nil {
		return fmt.Errorf("create %s: %w", opts.output, err)
	}
	if err := exporter.Export(f, format, resp); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	fmt.Fprintf(out, "wrote %s (%d succeeded, %d failed)\n",
		opts.output, len(resp.SucceededTickers), len(resp.FailedTickers))
	return nil
}

func exportFormat(opts analyzeOptions) (exporter.Format, error) {
	if opts.format != "" {
		return exporter.ParseFormat(opts.format)
	}
	if ext := strings.TrimPrefix(filepath.Ext(opts.output), "."); ext != "" {
		return exporter.ParseFormat(ext)
	}
	return exporter.FormatXLSX, nil
}
