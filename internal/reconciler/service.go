// Package reconciler turns decoded statement rows into fee positions.
//
// The Engine runs the two-pass fold: pass 1 indexes trades by symbol and
// date, pass 2 classifies every row, re-keys fee rows onto the trade date
// that precedes their billing date and accumulates them into positions.
// A P&L replay then attaches each symbol's netted ledger amount to its
// earliest position.
//
// Service wraps the engine with file decoding, period detection and the
// statement summary.
//
// Example usage:
//
//	service, err := reconciler.NewService(reconciler.DefaultConfig())
//	if err != nil {
//		return err
//	}
//	stmt, err := service.ParseStatement(ctx, "statement_2024-10.csv", data)
package reconciler

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"time"

	"broker-fee-reconciler/internal/extract"
	"broker-fee-reconciler/internal/models"
	"broker-fee-reconciler/internal/parsers"
	"broker-fee-reconciler/internal/telemetry"
	"broker-fee-reconciler/pkg/errors"
	"broker-fee-reconciler/pkg/logger"

	"go.opentelemetry.io/otel/attribute"
)

var periodPattern = regexp.MustCompile(`(\d{4})[-_](\d{1,2})`)

// Config holds configuration options for the statement service
type Config struct {
	// Clock supplies the reference day for year inference, undated rows
	// and the upload timestamp. Nil means time.Now.
	Clock func() time.Time

	ParseConfig *parsers.ParseConfig
	Logger      logger.Logger

	// SampleDescriptions is how many descriptions a no-data error lists.
	SampleDescriptions int
}

// DefaultConfig returns a default configuration for the statement service
func DefaultConfig() *Config {
	return &Config{
		Clock:              time.Now,
		ParseConfig:        parsers.DefaultParseConfig(),
		SampleDescriptions: 5,
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.SampleDescriptions < 0 {
		return errors.ConfigurationError(errors.CodeInvalidConfig, "sample_descriptions", c.SampleDescriptions, nil)
	}
	if c.ParseConfig != nil && c.ParseConfig.MaxFileSize < 0 {
		return errors.ConfigurationError(errors.CodeInvalidConfig, "max_file_size", c.ParseConfig.MaxFileSize, nil)
	}
	return nil
}

// Service parses statement files into Statements.
type Service struct {
	config *Config
	now    func() time.Time
	logger logger.Logger
}

// NewService creates a statement service. A nil config uses the defaults.
func NewService(config *Config) (*Service, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	now := config.Clock
	if now == nil {
		now = time.Now
	}
	log := config.Logger
	if log == nil {
		log = logger.GetGlobalLogger()
	}

	return &Service{
		config: config,
		now:    now,
		logger: log.WithComponent("statement_service"),
	}, nil
}

// ParseStatement decodes data according to the extension of fileName and
// reconciles it into a Statement. Each call is independent.
func (s *Service) ParseStatement(ctx context.Context, fileName string, data []byte) (*models.Statement, error) {
	ctx, span := telemetry.StartSpan(ctx, "statement.parse",
		attribute.String("file.name", fileName),
		attribute.Int("file.size", len(data)),
	)
	defer span.End()

	log := s.logger.WithField("file", fileName)
	start := time.Now()

	format, err := parsers.DetectFormat(fileName)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	var positions []*models.Position
	if format == parsers.FormatPDF {
		positions, err = s.parsePDF(ctx, data)
	} else {
		positions, err = s.parseTable(ctx, fileName, data, log)
	}
	if err != nil {
		span.RecordError(err)
		log.WithError(err).Warn("Statement could not be reconciled")
		return nil, err
	}

	stmt := s.buildStatement(fileName, positions)
	span.SetAttributes(attribute.Int("statement.positions", len(stmt.Positions)))

	log.WithFields(logger.Fields{
		"format":    string(format),
		"period":    stmt.Period,
		"positions": len(stmt.Positions),
		"duration":  time.Since(start).String(),
	}).Info("Statement reconciled")

	return stmt, nil
}

func (s *Service) parsePDF(ctx context.Context, data []byte) ([]*models.Position, error) {
	ctx, span := telemetry.StartSpan(ctx, "statement.decode.pdf")
	defer span.End()

	return parsers.NewPDFDecoder(s.config.ParseConfig).Decode(ctx, data, models.Day(s.now()))
}

func (s *Service) parseTable(ctx context.Context, fileName string, data []byte, log logger.Logger) ([]*models.Position, error) {
	decodeCtx, decodeSpan := telemetry.StartSpan(ctx, "statement.decode")
	table, err := parsers.DecodeTable(decodeCtx, fileName, data, s.config.ParseConfig)
	decodeSpan.End()
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, errors.InternalError(errors.CodeCancelled, "reconciliation", err)
	}

	_, span := telemetry.StartSpan(ctx, "statement.reconcile", attribute.Int("rows", len(table.Rows)))
	defer span.End()

	engine := NewEngine(
		WithExtractor(extract.New(extract.WithClock(s.now))),
		WithObserver(NewLogObserver(log)),
	)
	result := engine.Run(table.Rows)

	log.WithFields(logger.Fields{
		"rows":       result.Stats.Rows,
		"indexed":    result.Stats.Indexed,
		"aggregated": result.Stats.Aggregated,
		"aligned":    result.Stats.Aligned,
		"discarded":  result.Stats.Discarded,
	}).Debug("Engine run complete")

	if len(result.Positions) == 0 {
		return nil, errors.NoDataError(table.Headers, table.Descriptions(s.config.SampleDescriptions))
	}
	return result.Positions, nil
}

func (s *Service) buildStatement(fileName string, positions []*models.Position) *models.Statement {
	now := s.now()
	return &models.Statement{
		FileName:   fileName,
		UploadDate: now,
		Period:     PeriodFromFileName(fileName, now),
		Totals:     ComputeTotals(positions),
		Positions:  positions,
		Summary:    Summarize(positions),
	}
}

// PeriodFromFileName returns the YYYY-MM label embedded in a file name such
// as "statement_2024-10.csv", or the year-month of now when there is none.
func PeriodFromFileName(fileName string, now time.Time) string {
	if m := periodPattern.FindStringSubmatch(fileName); m != nil {
		month, _ := strconv.Atoi(m[2])
		return fmt.Sprintf("%s-%02d", m[1], month)
	}
	return now.Format("2006-01")
}
