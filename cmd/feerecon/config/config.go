// Package config turns viper settings into the typed configurations of the
// statement service, reporter, HTTP server, history store and logger.
package config

import (
	"fmt"
	"strings"
	"time"

	"broker-fee-reconciler/internal/analytics"
	"broker-fee-reconciler/internal/history"
	"broker-fee-reconciler/internal/models"
	"broker-fee-reconciler/internal/parsers"
	"broker-fee-reconciler/internal/reconciler"
	"broker-fee-reconciler/internal/reporter"
	"broker-fee-reconciler/internal/server"
	"broker-fee-reconciler/pkg/errors"
	"broker-fee-reconciler/pkg/logger"

	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of environment overrides, e.g. FEERECON_LOG_LEVEL.
const EnvPrefix = "FEERECON"

// SetDefaults registers the default value of every known key.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("log.level", string(logger.InfoLevel))
	v.SetDefault("log.format", string(logger.TextFormat))
	v.SetDefault("log.output", string(logger.StderrOutput))
	v.SetDefault("log.file", "")

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.max_upload_mb", 10)
	v.SetDefault("server.rate_per_second", 10.0)
	v.SetDefault("server.burst", 30)

	v.SetDefault("report.format", string(reporter.FormatConsole))
	v.SetDefault("report.top", analytics.DefaultTopN)
	v.SetDefault("report.max_position_rows", 50)

	v.SetDefault("parse.max_file_mb", 50)
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("history.ttl", time.Duration(0))
}

// CreateLoggerConfig builds the logger configuration. Verbose forces the
// debug level.
func CreateLoggerConfig(v *viper.Viper) (*logger.Config, error) {
	config := &logger.Config{
		Level:  logger.Level(strings.ToLower(v.GetString("log.level"))),
		Format: logger.Format(strings.ToLower(v.GetString("log.format"))),
		Output: logger.Output(strings.ToLower(v.GetString("log.output"))),
		File:   v.GetString("log.file"),
	}
	if v.GetBool("verbose") {
		config.Level = logger.DebugLevel
	}

	if err := config.Validate(); err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "log", config.Level, err)
	}
	return config, nil
}

// CreateServiceConfig builds the statement service configuration. A
// non-empty referenceDate pins the clock used for year inference.
func CreateServiceConfig(v *viper.Viper, referenceDate string) (*reconciler.Config, error) {
	config := reconciler.DefaultConfig()

	parseConfig := parsers.DefaultParseConfig()
	parseConfig.MaxFileSize = v.GetInt64("parse.max_file_mb") << 20
	config.ParseConfig = parseConfig

	if referenceDate != "" {
		day, err := models.ParseDate(referenceDate)
		if err != nil {
			return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "reference-date", referenceDate, err).
				WithSuggestion("use YYYY-MM-DD")
		}
		config.Clock = func() time.Time { return day }
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// CreateReportConfig creates a report configuration for the specified
// output format. An empty format uses report.format.
func CreateReportConfig(v *viper.Viper, format string) (*reporter.ReportConfig, error) {
	if format == "" {
		format = v.GetString("report.format")
	}

	config := reporter.DefaultReportConfig()
	config.Format = reporter.OutputFormat(strings.ToLower(format))
	config.MaxPositionRows = v.GetInt("report.max_position_rows")

	switch config.Format {
	case reporter.FormatCSV:
		// CSV is position data only
		config.IncludeDaily = false
		config.IncludeBreakdown = false
		config.IncludeTop = false
	}

	if err := config.Validate(); err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "format", format, err).
			WithSuggestion("valid formats: console, json, csv, yaml")
	}
	return config, nil
}

// CreateServerConfig builds the HTTP server configuration. A non-empty addr
// overrides server.addr.
func CreateServerConfig(v *viper.Viper, addr string) (*server.Config, error) {
	config := server.DefaultConfig()
	config.Addr = v.GetString("server.addr")
	if addr != "" {
		config.Addr = addr
	}
	config.MaxUploadBytes = v.GetInt64("server.max_upload_mb") << 20
	config.RatePerSecond = v.GetFloat64("server.rate_per_second")
	config.Burst = v.GetInt("server.burst")

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// CreateHistoryConfig builds the history store configuration.
func CreateHistoryConfig(v *viper.Viper) (history.Config, error) {
	config := history.DefaultConfig()
	ttl := v.GetDuration("history.ttl")
	if ttl < 0 {
		return config, errors.ConfigurationError(errors.CodeInvalidConfig, "history.ttl", ttl, nil)
	}
	config.TTL = ttl
	return config, nil
}

// CreateFilter parses the position filter flags. Dates are inclusive.
func CreateFilter(start, end, tickers string) (analytics.Filter, error) {
	var filter analytics.Filter

	if start != "" {
		t, err := models.ParseDate(start)
		if err != nil {
			return filter, errors.ConfigurationError(errors.CodeInvalidConfig, "start", start, err).
				WithSuggestion("use YYYY-MM-DD")
		}
		filter.Start = t
	}
	if end != "" {
		t, err := models.ParseDate(end)
		if err != nil {
			return filter, errors.ConfigurationError(errors.CodeInvalidConfig, "end", end, err).
				WithSuggestion("use YYYY-MM-DD")
		}
		filter.End = t
	}
	if !filter.Start.IsZero() && !filter.End.IsZero() && filter.Start.After(filter.End) {
		return filter, errors.ConfigurationError(errors.CodeInvalidConfig, "start",
			fmt.Sprintf("%s after %s", start, end), nil).
			WithSuggestion("start date cannot be after end date")
	}

	for _, t := range strings.Split(tickers, ",") {
		if t = strings.TrimSpace(t); t != "" {
			filter.Tickers = append(filter.Tickers, t)
		}
	}
	return filter, nil
}
