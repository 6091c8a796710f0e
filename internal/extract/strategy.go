// Package extract pulls semantic fields out of loosely structured statement
// rows.
//
// Broker templates are not stable, so every field is read through an ordered
// chain of strategies: fixed column positions first, then named-column
// aliases, then (for amounts) a scan of every cell. The first strategy that
// yields a present value wins. Supporting a new template means appending a
// strategy to a chain, not editing the others.
//
// Extraction never fails. A field that no strategy can find is reported as
// absent (empty string, zero amount, or ok=false).
package extract

import (
	"regexp"
	"strings"

	"broker-fee-reconciler/internal/models"

	"github.com/shopspring/decimal"
)

// ScanLimit bounds the magnitude of a value picked up by a cell scan.
var ScanLimit = decimal.NewFromInt(1000000)

var symbolPattern = regexp.MustCompile(`^[A-Z]{1,5}[0-9]?$`)

// IsSymbol reports whether s is 1-5 uppercase ASCII letters optionally
// followed by one digit.
func IsSymbol(s string) bool {
	return symbolPattern.MatchString(s)
}

// TextStrategy yields a candidate string value from a row.
type TextStrategy func(row models.RawRow) (string, bool)

// TextChain tries each strategy in order.
type TextChain []TextStrategy

// Extract returns the first present value.
func (c TextChain) Extract(row models.RawRow) (string, bool) {
	for _, s := range c {
		if v, ok := s(row); ok {
			return v, true
		}
	}
	return "", false
}

// NumberStrategy yields a candidate amount from a row.
type NumberStrategy func(row models.RawRow) (decimal.Decimal, bool)

// NumberChain tries each strategy in order.
type NumberChain []NumberStrategy

// Extract returns the first present amount, or zero.
func (c NumberChain) Extract(row models.RawRow) (decimal.Decimal, bool) {
	for _, s := range c {
		if v, ok := s(row); ok {
			return v, true
		}
	}
	return decimal.Zero, false
}

// Accept filters an amount after parsing.
type Accept func(d decimal.Decimal) bool

// Positive accepts amounts greater than zero.
func Positive(d decimal.Decimal) bool { return d.IsPositive() }

// NonZero accepts any parsed amount. ParseNumber already drops zeros.
func NonZero(d decimal.Decimal) bool { return !d.IsZero() }

// Bounded accepts non-zero amounts whose magnitude is under ScanLimit.
func Bounded(d decimal.Decimal) bool { return !d.IsZero() && d.Abs().LessThan(ScanLimit) }

// PositiveBounded accepts positive amounts under ScanLimit.
func PositiveBounded(d decimal.Decimal) bool { return d.IsPositive() && d.LessThan(ScanLimit) }

// AtPosition reads the trimmed cell at a fixed 0-based position.
func AtPosition(position int) TextStrategy {
	return func(row models.RawRow) (string, bool) {
		v := row.At(position)
		return v, v != ""
	}
}

// AtPositionIfWide reads a fixed position only when the row has more than
// position columns. Blank cells are reported as present-but-empty so callers
// can distinguish "column exists" from "row too short".
func AtPositionIfWide(position int) TextStrategy {
	return func(row models.RawRow) (string, bool) {
		if len(row.Values) <= position {
			return "", false
		}
		return row.At(position), true
	}
}

// Named reads the first header alias with a non-empty value.
func Named(names ...string) TextStrategy {
	return func(row models.RawRow) (string, bool) {
		for _, name := range names {
			if v, ok := row.Named(name); ok {
				return v, true
			}
		}
		return "", false
	}
}

// HeaderContains reads the first column whose lower-cased header contains
// any of the fragments.
func HeaderContains(fragments ...string) TextStrategy {
	return func(row models.RawRow) (string, bool) {
		for i, h := range row.Headers {
			lower := strings.ToLower(h)
			for _, f := range fragments {
				if strings.Contains(lower, f) {
					v := row.At(i)
					return v, v != ""
				}
			}
		}
		return "", false
	}
}

// Symbol upper-cases the result of inner and keeps it only when it is a
// valid ticker.
func Symbol(inner TextStrategy) TextStrategy {
	return func(row models.RawRow) (string, bool) {
		v, ok := inner(row)
		if !ok {
			return "", false
		}
		v = strings.ToUpper(strings.TrimSpace(v))
		return v, IsSymbol(v)
	}
}

// NumberAt parses the cell at a fixed position.
func NumberAt(position int, accept Accept) NumberStrategy {
	return func(row models.RawRow) (decimal.Decimal, bool) {
		d, ok := models.ParseNumber(row.At(position))
		if !ok || !accept(d) {
			return decimal.Zero, false
		}
		return d, true
	}
}

// NamedNumber parses each alias in order and returns the first accepted one.
// An alias whose value is present but rejected does not stop the search.
func NamedNumber(accept Accept, names ...string) NumberStrategy {
	return func(row models.RawRow) (decimal.Decimal, bool) {
		for _, name := range names {
			v, ok := row.Named(name)
			if !ok {
				continue
			}
			if d, ok := models.ParseNumber(v); ok && accept(d) {
				return d, true
			}
		}
		return decimal.Zero, false
	}
}

// Scan walks every cell in row order and returns the first accepted amount.
func Scan(accept Accept) NumberStrategy {
	return func(row models.RawRow) (decimal.Decimal, bool) {
		for i := range row.Values {
			if d, ok := models.ParseNumber(row.At(i)); ok && accept(d) {
				return d, true
			}
		}
		return decimal.Zero, false
	}
}

// Abs wraps a number strategy and returns the magnitude.
func Abs(inner NumberStrategy) NumberStrategy {
	return func(row models.RawRow) (decimal.Decimal, bool) {
		d, ok := inner(row)
		if !ok {
			return decimal.Zero, false
		}
		return d.Abs(), true
	}
}
