// Package parsers decodes broker statement files into raw rows.
//
// Three sub-formats are supported, selected by file extension:
//   - .csv: delimited text with a header line (UTF-8 or Windows-1252)
//   - .xlsx / .xls: the first worksheet, first row as headers
//   - .pdf: page text, scraped line by line for borrow and locate fees
//
// Tabular decoders return a Table whose rows keep every cell in column
// order so positional extraction works even when headers are missing or
// duplicated. The PDF path is a degraded source and yields fee positions
// directly (see ScrapeFeeLines).
//
// Example usage:
//
//	table, err := parsers.DecodeTable(ctx, "statement_2024-10.csv", data, nil)
//	if err != nil {
//		return err
//	}
//	for _, row := range table.Rows {
//		fmt.Println(row.Values)
//	}
package parsers

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"broker-fee-reconciler/internal/models"
	"broker-fee-reconciler/pkg/errors"
	"broker-fee-reconciler/pkg/logger"
)

// Format is a statement sub-format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
	FormatXLS  Format = "xls"
	FormatPDF  Format = "pdf"
)

// IsTabular reports whether the format decodes to rows.
func (f Format) IsTabular() bool {
	return f == FormatCSV || f == FormatXLSX || f == FormatXLS
}

// DetectFormat maps a file name to its sub-format by extension,
// case-insensitively.
func DetectFormat(fileName string) (Format, error) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(fileName), "."))
	if ext == "" {
		ext = strings.ToLower(filepath.Base(fileName))
	}
	switch Format(ext) {
	case FormatCSV, FormatXLSX, FormatXLS, FormatPDF:
		return Format(ext), nil
	}
	return "", errors.UnsupportedFormat(ext)
}

// ParseConfig holds decoder options
type ParseConfig struct {
	Delimiter        rune
	TrimLeadingSpace bool
	SkipEmptyRows    bool
	// MaxFileSize rejects larger inputs; zero disables the check.
	MaxFileSize int64
}

// DefaultParseConfig returns a configuration with sensible defaults
func DefaultParseConfig() *ParseConfig {
	return &ParseConfig{
		Delimiter:        ',',
		TrimLeadingSpace: true,
		SkipEmptyRows:    true,
		MaxFileSize:      50 << 20,
	}
}

// Table is the decoded content of a tabular statement.
type Table struct {
	Format  Format
	Headers []string
	Rows    []models.RawRow
}

// Descriptions returns the description cell of the first n rows, "N/A" when
// a row has none.
func (t *Table) Descriptions(n int) []string {
	var out []string
	for i := 0; i < len(t.Rows) && i < n; i++ {
		if v, ok := t.Rows[i].Named("Description"); ok {
			out = append(out, v)
		} else {
			out = append(out, "N/A")
		}
	}
	return out
}

// Decoder turns file bytes into a Table.
type Decoder interface {
	Decode(ctx context.Context, data []byte) (*Table, error)
}

// BaseParser holds what every decoder shares.
type BaseParser struct {
	config *ParseConfig
	logger logger.Logger
}

// NewBaseParser creates a new BaseParser with the given configuration
func NewBaseParser(config *ParseConfig, component string) *BaseParser {
	if config == nil {
		config = DefaultParseConfig()
	}
	return &BaseParser{
		config: config,
		logger: logger.GetGlobalLogger().WithComponent(component),
	}
}

// buildTable converts header and record slices into rows. Header names are
// trimmed; records keep cells beyond the header width.
func (bp *BaseParser) buildTable(format Format, records [][]string) *Table {
	table := &Table{Format: format}
	if len(records) == 0 {
		return table
	}

	table.Headers = cleanHeaders(records[0])
	for i, record := range records[1:] {
		row := models.RawRow{Index: i, Headers: table.Headers, Values: record}
		if bp.config.SkipEmptyRows && row.IsEmpty() {
			continue
		}
		table.Rows = append(table.Rows, row)
	}

	bp.logger.WithFields(logger.Fields{
		"format":  string(format),
		"headers": len(table.Headers),
		"rows":    len(table.Rows),
	}).Debug("Decoded statement table")

	return table
}

func (bp *BaseParser) checkSize(data []byte) error {
	if bp.config.MaxFileSize > 0 && int64(len(data)) > bp.config.MaxFileSize {
		return errors.FileError(errors.CodeFileTooLarge, fmt.Sprintf("%d bytes", len(data)), nil).
			WithContext("max_bytes", bp.config.MaxFileSize)
	}
	return nil
}

// cleanHeaders removes whitespace from header names
func cleanHeaders(headers []string) []string {
	cleaned := make([]string, len(headers))
	for i, header := range headers {
		cleaned[i] = strings.TrimSpace(header)
	}
	return cleaned
}

// NewDecoder returns the tabular decoder for a format.
func NewDecoder(format Format, config *ParseConfig) (Decoder, error) {
	switch format {
	case FormatCSV:
		return NewCSVDecoder(config), nil
	case FormatXLSX:
		return NewXLSXDecoder(config), nil
	case FormatXLS:
		return NewXLSDecoder(config), nil
	}
	return nil, errors.UnsupportedFormat(string(format))
}

// DecodeTable detects the format of fileName and decodes data.
func DecodeTable(ctx context.Context, fileName string, data []byte, config *ParseConfig) (*Table, error) {
	format, err := DetectFormat(fileName)
	if err != nil {
		return nil, err
	}
	decoder, err := NewDecoder(format, config)
	if err != nil {
		return nil, err
	}
	return decoder.Decode(ctx, data)
}

func cancelled(ctx context.Context, stage string) error {
	if err := ctx.Err(); err != nil {
		return errors.InternalError(errors.CodeCancelled, stage, err)
	}
	return nil
}
