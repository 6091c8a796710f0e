// Package reporter renders parsed statements for people and programs.
//
// Supported output formats:
//   - Console: sectioned, human-readable text for terminal display
//   - JSON: the statement record plus the derived views
//   - CSV: one line per position, for spreadsheet applications
//   - YAML: the JSON document rendered as block YAML
//
// Example usage:
//
//	generator, err := reporter.NewReportGenerator(reporter.DefaultReportConfig())
//	if err != nil {
//		return err
//	}
//	report := reporter.BuildReport(stmt, analytics.Filter{}, 10)
//	err = generator.GenerateReport(report, os.Stdout)
package reporter

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"broker-fee-reconciler/internal/analytics"
	"broker-fee-reconciler/internal/history"
	"broker-fee-reconciler/internal/models"

	"github.com/shopspring/decimal"
)

// OutputFormat represents the supported report output formats.
type OutputFormat string

const (
	FormatConsole OutputFormat = "console"
	FormatJSON    OutputFormat = "json"
	FormatCSV     OutputFormat = "csv"
	FormatYAML    OutputFormat = "yaml"
)

// IsValid checks if the output format is supported
func (f OutputFormat) IsValid() bool {
	switch f {
	case FormatConsole, FormatJSON, FormatCSV, FormatYAML:
		return true
	default:
		return false
	}
}

// ReportConfig holds configuration options for report generation
type ReportConfig struct {
	Format OutputFormat `json:"format" mapstructure:"format"`

	// Detail level options
	IncludePositions bool `json:"include_positions" mapstructure:"include_positions"`
	IncludeDaily     bool `json:"include_daily" mapstructure:"include_daily"`
	IncludeBreakdown bool `json:"include_breakdown" mapstructure:"include_breakdown"`
	IncludeTop       bool `json:"include_top" mapstructure:"include_top"`

	// Console formatting options
	MaxPositionRows int `json:"max_position_rows" mapstructure:"max_position_rows"`

	// CSV options
	CSVDelimiter rune `json:"csv_delimiter" mapstructure:"-"`
	CSVHeaders   bool `json:"csv_headers" mapstructure:"csv_headers"`
}

// DefaultReportConfig returns a default report configuration
func DefaultReportConfig() *ReportConfig {
	return &ReportConfig{
		Format:           FormatConsole,
		IncludePositions: true,
		IncludeDaily:     true,
		IncludeBreakdown: true,
		IncludeTop:       true,
		MaxPositionRows:  50,
		CSVDelimiter:     ',',
		CSVHeaders:       true,
	}
}

// Validate validates the report configuration
func (c *ReportConfig) Validate() error {
	if !c.Format.IsValid() {
		return fmt.Errorf("invalid output format: %s", c.Format)
	}
	if c.MaxPositionRows < 0 {
		return fmt.Errorf("max position rows cannot be negative, got %d", c.MaxPositionRows)
	}
	if c.Format == FormatCSV && c.CSVDelimiter == 0 {
		return fmt.Errorf("csv delimiter is required for csv output")
	}
	return nil
}

// Report is a statement together with the views rendered for it. View
// holds the filtered positions; when no filter applies it covers the whole
// statement.
type Report struct {
	Statement *models.Statement
	Filter    analytics.Filter
	View      *analytics.View
	Daily     []analytics.DailyFee
	Breakdown []analytics.BreakdownItem
	Top       []analytics.SymbolCost
}

// BuildReport computes every view of stmt under filter. topN <= 0 uses
// analytics.DefaultTopN.
func BuildReport(stmt *models.Statement, filter analytics.Filter, topN int) *Report {
	view := analytics.FilterStatement(stmt, filter)
	return &Report{
		Statement: stmt,
		Filter:    filter,
		View:      view,
		Daily:     analytics.DailySeries(view.Positions),
		Breakdown: analytics.Breakdown(view.Totals),
		Top:       analytics.TopExpensive(view.Positions, topN),
	}
}

// ReportGenerator generates statement reports in various formats
type ReportGenerator struct {
	config *ReportConfig
}

// NewReportGenerator creates a new report generator with the specified configuration
func NewReportGenerator(config *ReportConfig) (*ReportGenerator, error) {
	if config == nil {
		config = DefaultReportConfig()
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid report configuration: %w", err)
	}

	return &ReportGenerator{
		config: config,
	}, nil
}

// GenerateReport writes report to writer in the configured format
func (rg *ReportGenerator) GenerateReport(report *Report, writer io.Writer) error {
	if report == nil || report.Statement == nil {
		return fmt.Errorf("report statement cannot be nil")
	}
	if report.View == nil {
		report.View = analytics.NewView(report.Statement.Positions)
	}

	switch rg.config.Format {
	case FormatConsole:
		return rg.generateConsoleReport(report, writer)
	case FormatJSON:
		return rg.generateJSONReport(report, writer)
	case FormatCSV:
		return rg.generateCSVReport(report, writer)
	case FormatYAML:
		return rg.generateYAMLReport(report, writer)
	default:
		return fmt.Errorf("unsupported output format: %s", rg.config.Format)
	}
}

// generateConsoleReport generates a human-readable console report
func (rg *ReportGenerator) generateConsoleReport(report *Report, writer io.Writer) error {
	stmt := report.Statement
	view := report.View

	fmt.Fprintf(writer, "FEE RECONCILIATION REPORT\n")
	fmt.Fprintf(writer, "File:      %s\n", stmt.FileName)
	fmt.Fprintf(writer, "Period:    %s\n", stmt.Period)
	fmt.Fprintf(writer, "Generated: %s\n", stmt.UploadDate.UTC().Format(time.RFC3339))
	if !report.Filter.IsZero() {
		fmt.Fprintf(writer, "Filter:    %s\n", describeFilter(report.Filter))
	}
	fmt.Fprintf(writer, "\n")

	fmt.Fprintf(writer, "=== SUMMARY ===\n")
	rg.printSummary(view.Summary, writer)
	fmt.Fprintf(writer, "\n")

	fmt.Fprintf(writer, "=== FEE TOTALS ===\n")
	rg.printTotals(view.Totals, writer)
	fmt.Fprintf(writer, "\n")

	if rg.config.IncludeBreakdown && len(report.Breakdown) > 0 {
		fmt.Fprintf(writer, "=== FEE BREAKDOWN ===\n")
		for _, item := range report.Breakdown {
			fmt.Fprintf(writer, "  %-15s %12s  (%s%%)\n", item.Name, item.Amount.StringFixed(2), item.Share.StringFixed(1))
		}
		fmt.Fprintf(writer, "\n")
	}

	if rg.config.IncludeDaily && len(report.Daily) > 0 {
		fmt.Fprintf(writer, "=== DAILY FEES ===\n")
		fmt.Fprintf(writer, "  %-10s %12s %12s %12s\n", "Date", "Overnight", "Locate", "Total")
		for _, d := range report.Daily {
			fmt.Fprintf(writer, "  %-10s %12s %12s %12s\n",
				d.Date.Format(models.DateLayout), d.Overnight.StringFixed(2), d.Locate.StringFixed(2), d.Total.StringFixed(2))
		}
		fmt.Fprintf(writer, "\n")
	}

	if rg.config.IncludeTop && len(report.Top) > 0 {
		fmt.Fprintf(writer, "=== TOP EXPENSIVE SYMBOLS ===\n")
		for i, s := range report.Top {
			fmt.Fprintf(writer, "  %2d. %-6s fees %10s  pnl %12s  positions %d (trades %d)\n",
				i+1, s.Symbol, s.TotalFee.StringFixed(2), s.TotalPnL.StringFixed(2), s.Count, s.TradingCount)
		}
		fmt.Fprintf(writer, "\n")
	}

	if rg.config.IncludePositions && len(view.Positions) > 0 {
		fmt.Fprintf(writer, "=== POSITIONS ===\n")
		rg.printPositions(view.Positions, writer)
	}

	return nil
}

func (rg *ReportGenerator) printSummary(s models.StatementSummary, writer io.Writer) {
	fmt.Fprintf(writer, "Total Fees:             %s\n", s.TotalFees.StringFixed(2))
	fmt.Fprintf(writer, "Avg Daily Overnight:    %s\n", s.AvgDailyOvernightCost.StringFixed(2))
	if s.MostExpensiveSymbol != "" {
		fmt.Fprintf(writer, "Most Expensive Symbol:  %s (%s)\n", s.MostExpensiveSymbol, s.MostExpensiveFee.StringFixed(2))
	}
	fmt.Fprintf(writer, "Total P&L:              %s\n", s.TotalPnL.StringFixed(2))
	fmt.Fprintf(writer, "Net P&L:                %s\n", s.NetPnL.StringFixed(2))
	if !s.TotalPnL.IsZero() {
		fmt.Fprintf(writer, "Fee/Profit Ratio:       %s%%\n", s.FeeToProfitRatio.StringFixed(1))
	}
	fmt.Fprintf(writer, "Days Analyzed:          %d\n", s.DaysAnalyzed)
	fmt.Fprintf(writer, "Positions:              %d\n", s.TotalPositions)
}

func (rg *ReportGenerator) printTotals(t models.Totals, writer io.Writer) {
	rows := []struct {
		label string
		value decimal.Decimal
	}{
		{"Overnight Fees", t.OvernightFees},
		{"Locate Costs", t.LocateCosts},
		{"Market Data Fees", t.MarketDataFees},
		{"Interest", t.InterestFees},
		{"Other Fees", t.OtherFees},
		{"Commissions", t.Commissions},
		{"Rebates", t.Rebates},
		{"Misc Fees", t.MiscFees},
	}
	for _, r := range rows {
		fmt.Fprintf(writer, "%-18s %12s\n", r.label+":", r.value.StringFixed(2))
	}
}

func (rg *ReportGenerator) printPositions(positions []*models.Position, writer io.Writer) {
	fmt.Fprintf(writer, "  %-10s %-6s %-10s %10s %10s %10s %10s %12s\n",
		"Date", "Symbol", "Type", "Quantity", "Overnight", "Locate", "Total Fee", "P&L")

	for i, p := range positions {
		if rg.config.MaxPositionRows > 0 && i >= rg.config.MaxPositionRows {
			fmt.Fprintf(writer, "  ... and %d more\n", len(positions)-i)
			break
		}
		pnl := "-"
		if p.PnL.Valid {
			pnl = p.PnL.Decimal.StringFixed(2)
		}
		fmt.Fprintf(writer, "  %-10s %-6s %-10s %10s %10s %10s %10s %12s\n",
			p.DateKey(), p.Symbol, p.TransactionType,
			p.Quantity.String(), p.OvernightFee.StringFixed(2), p.LocateCost.StringFixed(2),
			p.TotalFee().StringFixed(2), pnl)
	}
}

func describeFilter(f analytics.Filter) string {
	var parts []string
	if !f.Start.IsZero() {
		parts = append(parts, "from "+f.Start.Format(models.DateLayout))
	}
	if !f.End.IsZero() {
		parts = append(parts, "to "+f.End.Format(models.DateLayout))
	}
	if len(f.Tickers) > 0 {
		parts = append(parts, "tickers "+strings.Join(f.Tickers, ","))
	}
	return strings.Join(parts, " ")
}

// document is the structured form shared by the JSON and YAML outputs.
type document struct {
	Statement *models.Statement         `json:"statement"`
	Filtered  *analytics.View           `json:"filtered,omitempty"`
	Daily     []analytics.DailyFee      `json:"daily,omitempty"`
	Breakdown []analytics.BreakdownItem `json:"breakdown,omitempty"`
	Top       []analytics.SymbolCost    `json:"top,omitempty"`
}

func (rg *ReportGenerator) document(report *Report) document {
	doc := document{Statement: report.Statement}
	if !report.Filter.IsZero() {
		doc.Filtered = report.View
	}
	if rg.config.IncludeDaily {
		doc.Daily = report.Daily
	}
	if rg.config.IncludeBreakdown {
		doc.Breakdown = report.Breakdown
	}
	if rg.config.IncludeTop {
		doc.Top = report.Top
	}
	return doc
}

// generateJSONReport generates a structured JSON report
func (rg *ReportGenerator) generateJSONReport(report *Report, writer io.Writer) error {
	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(rg.document(report))
}

var csvHeaders = []string{
	"Symbol", "Date", "Transaction_Type", "Buy_Sell", "Quantity", "Price", "Value",
	"Overnight_Fee", "Locate_Cost", "Market_Data_Fee", "Interest_Fee", "Other_Fees",
	"Commissions", "Rebates", "Misc_Fees", "Total_Fee", "PnL",
}

// generateCSVReport writes one record per position of the view
func (rg *ReportGenerator) generateCSVReport(report *Report, writer io.Writer) error {
	csvWriter := csv.NewWriter(writer)
	csvWriter.Comma = rg.config.CSVDelimiter

	if rg.config.CSVHeaders {
		if err := csvWriter.Write(csvHeaders); err != nil {
			return fmt.Errorf("failed to write CSV headers: %w", err)
		}
	}

	for _, p := range report.View.Positions {
		price, pnl := "", ""
		if p.Price.Valid {
			price = p.Price.Decimal.String()
		}
		if p.PnL.Valid {
			pnl = p.PnL.Decimal.StringFixed(2)
		}
		record := []string{
			p.Symbol,
			p.DateKey(),
			string(p.TransactionType),
			p.BuySell,
			p.Quantity.String(),
			price,
			p.Value.StringFixed(2),
			p.OvernightFee.StringFixed(2),
			p.LocateCost.StringFixed(2),
			p.MarketDataFee.StringFixed(2),
			p.InterestFee.StringFixed(2),
			p.OtherFees.StringFixed(2),
			p.Commissions.StringFixed(2),
			p.Rebates.StringFixed(2),
			p.MiscFees.StringFixed(2),
			p.TotalFee().StringFixed(2),
			pnl,
		}
		if err := csvWriter.Write(record); err != nil {
			return fmt.Errorf("failed to write position record: %w", err)
		}
	}

	csvWriter.Flush()
	return csvWriter.Error()
}

// GenerateComparison writes a period comparison in the configured format.
// CSV output lists one period per line.
func (rg *ReportGenerator) GenerateComparison(cmp history.Comparison, writer io.Writer) error {
	switch rg.config.Format {
	case FormatJSON:
		encoder := json.NewEncoder(writer)
		encoder.SetIndent("", "  ")
		return encoder.Encode(cmp)
	case FormatYAML:
		return writeYAML(cmp, writer)
	case FormatCSV:
		csvWriter := csv.NewWriter(writer)
		csvWriter.Comma = rg.config.CSVDelimiter
		if rg.config.CSVHeaders {
			if err := csvWriter.Write([]string{"Period", "File", "Total_Fees", "Overnight_Fees", "Locate_Costs", "Avg_Daily"}); err != nil {
				return fmt.Errorf("failed to write CSV headers: %w", err)
			}
		}
		for _, p := range cmp.Periods {
			record := []string{p.Period, p.FileName, p.TotalFees.StringFixed(2), p.OvernightFees.StringFixed(2),
				p.LocateCosts.StringFixed(2), p.AvgDaily.StringFixed(2)}
			if err := csvWriter.Write(record); err != nil {
				return fmt.Errorf("failed to write period record: %w", err)
			}
		}
		csvWriter.Flush()
		return csvWriter.Error()
	}

	fmt.Fprintf(writer, "=== HISTORICAL COMPARISON ===\n")
	fmt.Fprintf(writer, "Statements: %d\n\n", len(cmp.Periods))
	fmt.Fprintf(writer, "  %-8s %12s %12s %12s %12s\n", "Period", "Total Fees", "Overnight", "Locate", "Avg Daily")
	for _, p := range cmp.Periods {
		fmt.Fprintf(writer, "  %-8s %12s %12s %12s %12s\n", p.Period,
			p.TotalFees.StringFixed(2), p.OvernightFees.StringFixed(2), p.LocateCosts.StringFixed(2), p.AvgDaily.StringFixed(2))
	}
	if len(cmp.Periods) >= 2 && !cmp.FeeChangePct.IsZero() {
		direction := "up"
		if cmp.FeeChangePct.IsNegative() {
			direction = "down"
		}
		fmt.Fprintf(writer, "\nFees %s %s%% vs previous period\n", direction, cmp.FeeChangePct.Abs().StringFixed(1))
	}
	return nil
}

// UpdateConfiguration updates the report generator configuration
func (rg *ReportGenerator) UpdateConfiguration(config *ReportConfig) error {
	if err := config.Validate(); err != nil {
		return fmt.Errorf("invalid report configuration: %w", err)
	}

	rg.config = config
	return nil
}

// GetConfiguration returns the current configuration
func (rg *ReportGenerator) GetConfiguration() *ReportConfig {
	return rg.config
}
