package parsers

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"broker-fee-reconciler/internal/models"
	"broker-fee-reconciler/pkg/errors"

	"github.com/dslipak/pdf"
	"github.com/shopspring/decimal"
)

var (
	pdfDatePattern    = regexp.MustCompile(`\b(\d{1,2}[-/]\d{1,2}[-/]\d{2,4}|\d{4}[-/]\d{1,2}[-/]\d{1,2})\b`)
	pdfBorrowPattern  = regexp.MustCompile(`(?i)borrow|htb|hard.to.borrow|short.fee`)
	pdfLocatePattern  = regexp.MustCompile(`(?i)locate|location.fee`)
	pdfSymbolPattern  = regexp.MustCompile(`\b[A-Z]{1,5}\b`)
	pdfAmountPattern  = regexp.MustCompile(`\$?\s*(\d{1,3}(?:,\d{3})*(?:\.\d{2})?)`)
	pdfSymbolStopList = map[string]bool{
		"C": true, "FEE": true, "FEES": true, "STOCK": true, "HTB": true, "SHORT": true,
		"USD": true, "TOTAL": true, "DATE": true, "BAL": true, "PAGE": true,
	}
)

// symbolLookback is how many earlier lines are searched for a symbol.
const symbolLookback = 3

// PDFDecoder extracts plain text from statement PDFs.
type PDFDecoder struct {
	*BaseParser
}

// NewPDFDecoder creates a PDF decoder.
func NewPDFDecoder(config *ParseConfig) *PDFDecoder {
	return &PDFDecoder{BaseParser: NewBaseParser(config, "pdf_decoder")}
}

// ExtractText returns the text of every page, one line per text row.
func (d *PDFDecoder) ExtractText(ctx context.Context, data []byte) (text string, err error) {
	if err := d.checkSize(data); err != nil {
		return "", err
	}

	defer func() {
		if r := recover(); r != nil {
			text = ""
			err = errors.DecodeError(errors.CodePDFDecode, fmt.Errorf("malformed PDF: %v", r))
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", errors.DecodeError(errors.CodePDFDecode, err)
	}

	plain, err := r.GetPlainText()
	if err != nil {
		return "", errors.DecodeError(errors.CodePDFDecode, err)
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(plain); err != nil {
		return "", errors.DecodeError(errors.CodePDFDecode, err)
	}
	if err := cancelled(ctx, "pdf decoding"); err != nil {
		return "", err
	}

	d.logger.WithField("pages", r.NumPage()).Debug("Extracted PDF text")
	return buf.String(), nil
}

// Decode extracts the text and scrapes it for fee lines.
func (d *PDFDecoder) Decode(ctx context.Context, data []byte, reference time.Time) ([]*models.Position, error) {
	text, err := d.ExtractText(ctx, data)
	if err != nil {
		return nil, err
	}

	positions := ScrapeFeeLines(text, reference)
	if len(positions) == 0 {
		return nil, errors.NoPDFDataError()
	}
	return positions, nil
}

// ScrapeFeeLines finds borrow and locate charges in free text. A date seen
// on any line applies to the lines after it until the next date; before the
// first date the reference day is used. A fee line takes the first symbol on
// the line, or on one of the three lines above it, and its last amount.
// Fees accumulate per (symbol, date) in first-seen order.
func ScrapeFeeLines(text string, reference time.Time) []*models.Position {
	lines := strings.Split(text, "\n")
	current := models.Day(reference)

	var positions []*models.Position
	byKey := make(map[string]*models.Position)

	for i, raw := range lines {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}

		if m := pdfDatePattern.FindStringSubmatch(line); m != nil {
			if t, err := models.ParseDate(m[1]); err == nil {
				current = t
			}
		}

		isBorrow := pdfBorrowPattern.MatchString(line)
		isLocate := pdfLocatePattern.MatchString(line)
		if !isBorrow && !isLocate {
			continue
		}

		symbol := findSymbol(line)
		for j := i - 1; symbol == "" && j >= 0 && j >= i-symbolLookback; j-- {
			symbol = findSymbol(lines[j])
		}
		if symbol == "" {
			continue
		}

		amount, ok := lastAmount(line)
		if !ok {
			continue
		}

		key := models.PositionKey(symbol, current)
		pos, exists := byKey[key]
		if !exists {
			category := models.CategoryLocate
			if isBorrow {
				category = models.CategoryOvernight
			}
			pos = &models.Position{Symbol: symbol, Date: current, TransactionType: category}
			byKey[key] = pos
			positions = append(positions, pos)
		}
		if isBorrow {
			pos.OvernightFee = pos.OvernightFee.Add(amount)
		}
		if isLocate {
			pos.LocateCost = pos.LocateCost.Add(amount)
		}
	}

	return positions
}

func findSymbol(line string) string {
	for _, candidate := range pdfSymbolPattern.FindAllString(line, -1) {
		if !pdfSymbolStopList[candidate] {
			return candidate
		}
	}
	return ""
}

func lastAmount(line string) (decimal.Decimal, bool) {
	// dates are not amounts
	line = pdfDatePattern.ReplaceAllString(line, " ")

	matches := pdfAmountPattern.FindAllStringSubmatch(line, -1)
	for i := len(matches) - 1; i >= 0; i-- {
		d, err := decimal.NewFromString(strings.ReplaceAll(matches[i][1], ",", ""))
		if err == nil && d.IsPositive() {
			return d, true
		}
	}
	return decimal.Zero, false
}
