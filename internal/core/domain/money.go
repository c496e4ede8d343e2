package domain

import "github.com/shopspring/decimal"

func init() {
	decimal.MarshalJSONWithoutQuotes = true
}

// Amount is an optional monetary or quantity value. The zero value is absent and
// serializes as JSON null.
type Amount = decimal.NullDecimal

func AmountOf(d decimal.Decimal) Amount {
	return decimal.NullDecimal{Decimal: d, Valid: true}
}

func AmountFromFloat(f float64) Amount {
	return AmountOf(decimal.NewFromFloat(f))
}

// OrZero returns the value or zero when absent.
func OrZero(a Amount) decimal.Decimal {
	if !a.Valid {
		return decimal.Zero
	}
	return a.Decimal
}

// Positive reports whether the amount is present and strictly greater than zero.
func Positive(a Amount) bool {
	return a.Valid && a.Decimal.IsPositive()
}

// NonZero reports whether the amount is present and different from zero.
func NonZero(a Amount) bool {
	return a.Valid && !a.Decimal.IsZero()
}

func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// FormatAmount renders an amount for tabular export; absent values render empty.
func FormatAmount(a Amount) string {
	if !a.Valid {
		return ""
	}
	return a.Decimal.String()
}
