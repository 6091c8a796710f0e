package cmd

import (
	"fmt"

	"broker-fee-reconciler/cmd/feerecon/config"
	"broker-fee-reconciler/internal/reconciler"
	"broker-fee-reconciler/internal/reporter"
	"broker-fee-reconciler/pkg/logger"

	"github.com/spf13/cobra"
)

type analyzeOptions struct {
	format        string
	output        string
	start         string
	end           string
	tickers       string
	top           int
	referenceDate string
}

func newAnalyzeCommand(a *app) *cobra.Command {
	opts := &analyzeOptions{}

	analyzeCmd := &cobra.Command{
		Use:   "analyze FILE...",
		Short: "Reconcile fees and P&L of one or more statements",
		Long: `Analyze parses each statement, re-keys fee rows onto the trades they
belong to and reports positions, fee totals, the daily fee series, the fee
breakdown and the most expensive symbols.

The reporting period is taken from the file name (e.g. statement_2024-10.csv).
Dates without a year are resolved against --reference-date, which defaults
to today.

Examples:
  # Console report
  feerecon analyze statement_2024-10.csv

  # Only two tickers in the first half of the month, as YAML
  feerecon analyze statement_2024-10.csv --tickers GV,AMD \
    --start 2024-10-01 --end 2024-10-15 --format yaml

  # Positions as CSV
  feerecon analyze statement_2024-10.xlsx --format csv --output positions.csv`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runAnalyze(cmd, args, opts)
		},
	}

	flags := analyzeCmd.Flags()
	flags.StringVarP(&opts.format, "format", "f", "", "output format: console, json, csv, yaml (default from report.format)")
	flags.StringVarP(&opts.output, "output", "o", "", "output file path (default: stdout)")
	flags.StringVar(&opts.start, "start", "", "first position date to include (YYYY-MM-DD)")
	flags.StringVar(&opts.end, "end", "", "last position date to include (YYYY-MM-DD)")
	flags.StringVar(&opts.tickers, "tickers", "", "comma-separated symbols to include")
	flags.IntVar(&opts.top, "top", 0, "number of expensive symbols to list (default from report.top)")
	flags.StringVar(&opts.referenceDate, "reference-date", "", "date used to infer years of MM/DD dates (YYYY-MM-DD)")

	return analyzeCmd
}

func (a *app) runAnalyze(cmd *cobra.Command, files []string, opts *analyzeOptions) (err error) {
	filter, err := config.CreateFilter(opts.start, opts.end, opts.tickers)
	if err != nil {
		return err
	}

	serviceConfig, err := config.CreateServiceConfig(a.v, opts.referenceDate)
	if err != nil {
		return err
	}
	service, err := reconciler.NewService(serviceConfig)
	if err != nil {
		return err
	}

	reportConfig, err := config.CreateReportConfig(a.v, opts.format)
	if err != nil {
		return err
	}
	generator, err := reporter.NewSafeReportGenerator(reportConfig, a.logger)
	if err != nil {
		return err
	}

	topN := opts.top
	if topN <= 0 {
		topN = a.v.GetInt("report.top")
	}

	out, closeFn, err := openOutput(cmd, opts.output)
	if err != nil {
		return err
	}
	defer closeOutput(closeFn, opts.output, &err)

	tracker := logger.NewProgressTracker(logger.ProgressConfig{
		Operation: "analyze",
		Total:     len(files),
		Logger:    a.logger,
	})

	var firstErr error
	written := 0
	for _, path := range files {
		stmt, err := parseFile(cmd.Context(), service, path)
		if err != nil {
			tracker.FileFailed(path, err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		tracker.FileDone(path, len(stmt.Positions))

		if written > 0 && reportConfig.Format == reporter.FormatConsole {
			fmt.Fprintln(out)
		}
		if err := generator.GenerateReportSafely(reporter.BuildReport(stmt, filter, topN), out); err != nil {
			return err
		}
		written++
	}

	tracker.Complete()
	return firstErr
}
