package parsers

import (
	"bytes"
	"context"
	"encoding/csv"
	"io"
	"unicode/utf8"

	"broker-fee-reconciler/pkg/errors"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// CSVDecoder reads delimited statement exports.
type CSVDecoder struct {
	*BaseParser
}

// NewCSVDecoder creates a CSV decoder.
func NewCSVDecoder(config *ParseConfig) *CSVDecoder {
	return &CSVDecoder{BaseParser: NewBaseParser(config, "csv_decoder")}
}

// Decode parses data. Rows may have any number of fields. Input that is
// not valid UTF-8 is read as Windows-1252, the usual encoding of broker
// exports produced on Windows.
func (d *CSVDecoder) Decode(ctx context.Context, data []byte) (*Table, error) {
	if err := d.checkSize(data); err != nil {
		return nil, err
	}

	data = bytes.TrimPrefix(data, utf8BOM)

	var src io.Reader = bytes.NewReader(data)
	if !utf8.Valid(data) {
		d.logger.Debug("Input is not valid UTF-8, decoding as Windows-1252")
		src = transform.NewReader(src, charmap.Windows1252.NewDecoder())
	}

	reader := csv.NewReader(src)
	reader.Comma = d.config.Delimiter
	reader.TrimLeadingSpace = d.config.TrimLeadingSpace
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	var records [][]string
	for {
		if err := cancelled(ctx, "csv decoding"); err != nil {
			return nil, err
		}

		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			d.logger.WithError(err).Warn("Failed to read CSV record")
			return nil, errors.DecodeError(errors.CodeCSVDecode, err)
		}
		records = append(records, record)
	}

	return d.buildTable(FormatCSV, records), nil
}
