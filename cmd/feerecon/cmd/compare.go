package cmd

import (
	"broker-fee-reconciler/cmd/feerecon/config"
	"broker-fee-reconciler/internal/history"
	"broker-fee-reconciler/internal/reconciler"
	"broker-fee-reconciler/internal/reporter"
	"broker-fee-reconciler/pkg/logger"

	"github.com/spf13/cobra"
)

type compareOptions struct {
	format        string
	output        string
	referenceDate string
}

func newCompareCommand(a *app) *cobra.Command {
	opts := &compareOptions{}

	compareCmd := &cobra.Command{
		Use:   "compare FILE...",
		Short: "Compare fees across statement periods",
		Long: `Compare parses each statement and lists total, overnight and locate fees
and the average daily fee per period, with the fee change of the latest
period against the one before it.

Examples:
  feerecon compare statement_2024-08.csv statement_2024-09.csv statement_2024-10.csv
  feerecon compare *.xlsx --format json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runCompare(cmd, args, opts)
		},
	}

	flags := compareCmd.Flags()
	flags.StringVarP(&opts.format, "format", "f", "", "output format: console, json, csv, yaml (default from report.format)")
	flags.StringVarP(&opts.output, "output", "o", "", "output file path (default: stdout)")
	flags.StringVar(&opts.referenceDate, "reference-date", "", "date used to infer years of MM/DD dates (YYYY-MM-DD)")

	return compareCmd
}

func (a *app) runCompare(cmd *cobra.Command, files []string, opts *compareOptions) (err error) {
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
	generator, err := reporter.NewReportGenerator(reportConfig)
	if err != nil {
		return err
	}

	store := history.NewStore(history.DefaultConfig())
	tracker := logger.NewProgressTracker(logger.ProgressConfig{
		Operation: "compare",
		Total:     len(files),
		Logger:    a.logger,
	})

	var firstErr error
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
		store.Add(stmt)
	}
	tracker.Complete()

	if store.Len() == 0 {
		return firstErr
	}

	out, closeFn, err := openOutput(cmd, opts.output)
	if err != nil {
		return err
	}
	defer closeOutput(closeFn, opts.output, &err)

	if err := generator.GenerateComparison(store.Compare(), out); err != nil {
		return err
	}
	return firstErr
}
