package parsers

import (
	"context"
	"strings"
	"testing"
	"time"

	"broker-fee-reconciler/internal/models"
	"broker-fee-reconciler/pkg/errors"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

func TestDefaultParseConfig(t *testing.T) {
	config := DefaultParseConfig()

	if config.Delimiter != ',' {
		t.Errorf("Expected delimiter to be ',', got %q", config.Delimiter)
	}
	if !config.TrimLeadingSpace {
		t.Error("Expected TrimLeadingSpace to be true")
	}
	if !config.SkipEmptyRows {
		t.Error("Expected SkipEmptyRows to be true")
	}
	if config.MaxFileSize <= 0 {
		t.Error("Expected a positive default file size limit")
	}
}

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		fileName    string
		want        Format
		expectError string
	}{
		{"statement_2024-10.csv", FormatCSV, ""},
		{"STATEMENT.XLSX", FormatXLSX, ""},
		{"old.xls", FormatXLS, ""},
		{"report.Pdf", FormatPDF, ""},
		{"notes.txt", "", "Unsupported file type: txt"},
		{"README", "", "Unsupported file type: readme"},
	}

	for _, tt := range tests {
		t.Run(tt.fileName, func(t *testing.T) {
			got, err := DetectFormat(tt.fileName)
			if tt.expectError != "" {
				if err == nil || err.Error() != tt.expectError {
					t.Fatalf("Expected error %q, got %v", tt.expectError, err)
				}
				if !errors.IsCategory(err, errors.CategoryFormat) {
					t.Errorf("Expected format category, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestCSVDecode(t *testing.T) {
	content := "\xEF\xBB\xBFDate, Side,Qty,Symbol,Description,Price\n" +
		"10/12/2024,B,100,GV,BUY GV,5.00\n" +
		",,,,,\n" +
		"10/13/2024,S,50,GV,\"SELL GV, PARTIAL\",6.00,extra\n" +
		"10/14/2024,S\n"

	table, err := NewCSVDecoder(nil).Decode(context.Background(), []byte(content))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if table.Format != FormatCSV {
		t.Errorf("Expected csv format, got %s", table.Format)
	}
	wantHeaders := []string{"Date", "Side", "Qty", "Symbol", "Description", "Price"}
	if strings.Join(table.Headers, "|") != strings.Join(wantHeaders, "|") {
		t.Errorf("Expected headers %v, got %v", wantHeaders, table.Headers)
	}
	if len(table.Rows) != 3 {
		t.Fatalf("Expected 3 non-empty rows, got %d", len(table.Rows))
	}

	if v, _ := table.Rows[1].Named("Description"); v != "SELL GV, PARTIAL" {
		t.Errorf("Expected quoted description, got %q", v)
	}
	if len(table.Rows[1].Values) != 7 {
		t.Errorf("Expected extra cell to be kept, got %d values", len(table.Rows[1].Values))
	}
	if table.Rows[2].At(3) != "" {
		t.Errorf("Expected short row to read empty beyond its width")
	}
}

func TestCSVDecodeWindows1252(t *testing.T) {
	content := []byte("Description,Amount\nCaf\xe9 MARKET DATA,-5.00\n")

	table, err := NewCSVDecoder(nil).Decode(context.Background(), content)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if got := table.Rows[0].At(0); got != "Café MARKET DATA" {
		t.Errorf("Expected Windows-1252 text to be decoded, got %q", got)
	}
}

func TestCSVDecodeLimitsAndCancellation(t *testing.T) {
	decoder := NewCSVDecoder(&ParseConfig{Delimiter: ',', MaxFileSize: 4})
	_, err := decoder.Decode(context.Background(), []byte("a,b\n1,2\n"))
	if !errors.IsCategory(err, errors.CategoryFile) {
		t.Errorf("Expected file-size error, got %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = NewCSVDecoder(nil).Decode(ctx, []byte("a,b\n1,2\n"))
	if !errors.IsCategory(err, errors.CategoryInternal) {
		t.Errorf("Expected cancellation error, got %v", err)
	}
}

func TestXLSXDecode(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	rows := [][]interface{}{
		{"Date", "Side", "Qty", "Symbol", "Description", "Price"},
		{45577, "B", 100, "GV", "BUY GV", 5},
		{},
		{"10/13/2024", "", "", "", "10/13 STOCK BORROW FEE GV", ""},
	}
	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			t.Fatalf("Failed to write row: %v", err)
		}
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("Failed to write workbook: %v", err)
	}

	table, err := DecodeTable(context.Background(), "statement.xlsx", buf.Bytes(), nil)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if table.Format != FormatXLSX {
		t.Errorf("Expected xlsx format, got %s", table.Format)
	}
	if len(table.Headers) != 6 || table.Headers[3] != "Symbol" {
		t.Errorf("Unexpected headers %v", table.Headers)
	}
	if len(table.Rows) != 2 {
		t.Fatalf("Expected 2 rows, got %d", len(table.Rows))
	}
	if got := table.Rows[0].At(0); got != "45577" {
		t.Errorf("Expected raw date serial, got %q", got)
	}
	if got := table.Rows[1].At(4); got != "10/13 STOCK BORROW FEE GV" {
		t.Errorf("Expected description at position 4, got %q", got)
	}
}

func TestDecodeErrors(t *testing.T) {
	garbage := []byte("this is not a workbook or a document")

	tests := []struct {
		name   string
		decode func() error
		prefix string
	}{
		{"xlsx", func() error {
			_, err := NewXLSXDecoder(nil).Decode(context.Background(), garbage)
			return err
		}, "Excel parse error: "},
		{"xls", func() error {
			_, err := NewXLSDecoder(nil).Decode(context.Background(), garbage)
			return err
		}, "Excel parse error: "},
		{"pdf", func() error {
			_, err := NewPDFDecoder(nil).ExtractText(context.Background(), garbage)
			return err
		}, "PDF parse error: "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.decode()
			if err == nil {
				t.Fatal("Expected decode error")
			}
			if !strings.HasPrefix(err.Error(), tt.prefix) {
				t.Errorf("Expected prefix %q, got %q", tt.prefix, err.Error())
			}
			if !errors.IsCategory(err, errors.CategoryDecode) {
				t.Errorf("Expected decode category, got %v", err)
			}
		})
	}
}

func TestTableDescriptions(t *testing.T) {
	table := &Table{Headers: []string{"Description"}}
	for _, d := range []string{"A", "", "C", "D", "E", "F"} {
		table.Rows = append(table.Rows, models.RawRow{Headers: table.Headers, Values: []string{d}})
	}

	got := table.Descriptions(5)
	want := []string{"A", "N/A", "C", "D", "E"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("Expected %v, got %v", want, got)
	}
}

func TestScrapeFeeLines(t *testing.T) {
	text := strings.Join([]string{
		"Account Statement 10/01/2024",
		"GV",
		"10/13/2024 HTB borrow charge $15.00",
		"10/13/2024 GV locate fee 2.50",
		"AMD hard to borrow 1,234.50",
		"Cash balance 900.00",
		"continued on next page",
		"page 2 of 2",
		"borrow fee with no ticker 3.00",
	}, "\n")

	reference := time.Date(2024, 11, 1, 0, 0, 0, 0, time.UTC)
	positions := ScrapeFeeLines(text, reference)

	if len(positions) != 2 {
		t.Fatalf("Expected 2 positions, got %d: %v", len(positions), positions)
	}

	gv := positions[0]
	if gv.Symbol != "GV" || gv.DateKey() != "2024-10-13" {
		t.Errorf("Expected GV on 2024-10-13, got %s", gv)
	}
	if !gv.OvernightFee.Equal(decimal.RequireFromString("15")) {
		t.Errorf("Expected overnight 15, got %s", gv.OvernightFee)
	}
	if !gv.LocateCost.Equal(decimal.RequireFromString("2.5")) {
		t.Errorf("Expected locate 2.50, got %s", gv.LocateCost)
	}
	if gv.TransactionType != models.CategoryOvernight {
		t.Errorf("Expected creator category overnight, got %s", gv.TransactionType)
	}
	if gv.PnL.Valid {
		t.Error("Expected scraped positions to carry no P&L")
	}

	amd := positions[1]
	if amd.Symbol != "AMD" || amd.DateKey() != "2024-10-13" {
		t.Errorf("Expected AMD to inherit the last seen date, got %s", amd)
	}
	if !amd.OvernightFee.Equal(decimal.RequireFromString("1234.50")) {
		t.Errorf("Expected overnight 1234.50, got %s", amd.OvernightFee)
	}
}

func TestScrapeFeeLinesDefaultsToReferenceDay(t *testing.T) {
	reference := time.Date(2024, 11, 1, 17, 0, 0, 0, time.UTC)
	positions := ScrapeFeeLines("TSLA short fee 4.20", reference)

	if len(positions) != 1 || positions[0].DateKey() != "2024-11-01" {
		t.Fatalf("Expected one TSLA position on the reference day, got %v", positions)
	}
	if ScrapeFeeLines("", reference) != nil {
		t.Error("Expected no positions from empty text")
	}
}
