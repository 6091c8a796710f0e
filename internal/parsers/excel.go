package parsers

import (
	"bytes"
	"context"
	"fmt"

	"broker-fee-reconciler/pkg/errors"

	"github.com/extrame/xls"
	"github.com/xuri/excelize/v2"
)

// XLSXDecoder reads the first worksheet of an Office Open XML workbook.
type XLSXDecoder struct {
	*BaseParser
}

// NewXLSXDecoder creates an .xlsx decoder.
func NewXLSXDecoder(config *ParseConfig) *XLSXDecoder {
	return &XLSXDecoder{BaseParser: NewBaseParser(config, "xlsx_decoder")}
}

// Decode reads raw cell values so date serials reach the date parser
// unformatted.
func (d *XLSXDecoder) Decode(ctx context.Context, data []byte) (*Table, error) {
	if err := d.checkSize(data); err != nil {
		return nil, err
	}

	f, err := excelize.OpenReader(bytes.NewReader(data), excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, errors.DecodeError(errors.CodeExcelDecode, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil {
			d.logger.WithError(cerr).Debug("Failed to close workbook")
		}
	}()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.DecodeError(errors.CodeExcelDecode, fmt.Errorf("workbook has no sheets"))
	}

	rows, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, errors.DecodeError(errors.CodeExcelDecode, err)
	}
	if err := cancelled(ctx, "xlsx decoding"); err != nil {
		return nil, err
	}

	d.logger.WithField("sheet", sheets[0]).Debug("Read first worksheet")
	return d.buildTable(FormatXLSX, rows), nil
}

// XLSDecoder reads the first worksheet of a legacy BIFF workbook.
type XLSDecoder struct {
	*BaseParser
}

// NewXLSDecoder creates an .xls decoder.
func NewXLSDecoder(config *ParseConfig) *XLSDecoder {
	return &XLSDecoder{BaseParser: NewBaseParser(config, "xls_decoder")}
}

// Decode reads every row of the first sheet. Missing rows decode as empty
// and are dropped with the other blank rows.
func (d *XLSDecoder) Decode(ctx context.Context, data []byte) (table *Table, err error) {
	if err := d.checkSize(data); err != nil {
		return nil, err
	}

	// the BIFF reader panics on some truncated inputs
	defer func() {
		if r := recover(); r != nil {
			table = nil
			err = errors.DecodeError(errors.CodeExcelDecode, fmt.Errorf("malformed workbook: %v", r))
		}
	}()

	wb, err := xls.OpenReader(bytes.NewReader(data), "utf-8")
	if err != nil {
		return nil, errors.DecodeError(errors.CodeExcelDecode, err)
	}
	if wb.NumSheets() == 0 {
		return nil, errors.DecodeError(errors.CodeExcelDecode, fmt.Errorf("no sheets found in XLS file"))
	}

	sheet := wb.GetSheet(0)
	if sheet == nil {
		return nil, errors.DecodeError(errors.CodeExcelDecode, fmt.Errorf("could not get first sheet"))
	}

	var records [][]string
	for i := 0; i <= int(sheet.MaxRow); i++ {
		if err := cancelled(ctx, "xls decoding"); err != nil {
			return nil, err
		}

		row := sheet.Row(i)
		if row == nil {
			if len(records) == 0 {
				continue
			}
			records = append(records, nil)
			continue
		}

		record := make([]string, 0, row.LastCol())
		for c := 0; c < row.LastCol(); c++ {
			record = append(record, row.Col(c))
		}
		records = append(records, record)
	}

	d.logger.WithField("sheet", sheet.Name).Debug("Read first worksheet")
	return d.buildTable(FormatXLS, records), nil
}
