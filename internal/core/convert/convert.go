// Package convert holds the tolerant field conversions shared by parsers,
// normalizers and analyzers. None of the helpers fail: unparsable input is absent.
package convert

import (
	"crypto/sha256"
	"encoding/hex"
	"math"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/shopspring/decimal"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/kirillkom/fiscal-doc-analyzer/internal/core/domain"
)

var nonDigits = regexp.MustCompile(`\D+`)

// Text trims s. An empty result means absent.
func Text(s string) string {
	return strings.TrimSpace(s)
}

func DigitsOnly(s string) string {
	return nonDigits.ReplaceAllString(s, "")
}

// ParseDecimal reads a decimal accepting "," as the decimal separator. Zero is a valid value.
func ParseDecimal(s string) domain.Amount {
	s = strings.TrimSpace(s)
	if s == "" {
		return domain.Amount{}
	}
	d, err := decimal.NewFromString(strings.ReplaceAll(s, ",", "."))
	if err != nil {
		return domain.Amount{}
	}
	return domain.AmountOf(d)
}

// ParsePositive is ParseDecimal that treats values <= 0 as absent.
func ParsePositive(s string) domain.Amount {
	a := ParseDecimal(s)
	if !domain.Positive(a) {
		return domain.Amount{}
	}
	return a
}

// ParseIntLoose reads the integer part of a decimal string ("123.0" is 123).
func ParseIntLoose(s string) *int {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if n, err := strconv.Atoi(s); err == nil {
		return &n
	}
	f, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", "."), 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return nil
	}
	n := int(f)
	return &n
}

// BoolFlag reads 1/0 style flags written as digits or as yes/no words.
func BoolFlag(s string) *int {
	v := strings.ToLower(strings.TrimSpace(s))
	if v == "" {
		return nil
	}
	if DigitsOnly(v) == v {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil
		}
		return &n
	}
	switch v {
	case "true", "yes", "sim":
		one := 1
		return &one
	case "false", "no", "nao", "não":
		zero := 0
		return &zero
	}
	return nil
}

// SanitizeProductCode strips thousand separators that spreadsheets inject into numeric codes.
func SanitizeProductCode(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	compact := strings.ReplaceAll(s, " ", "")
	d := DigitsOnly(compact)
	if strings.ContainsAny(compact, ",.") && d != "" {
		return d
	}
	return s
}

var isoLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04Z07:00",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// ParseISO reads the ISO-8601 shapes found in fiscal XML, keeping the document offset.
func ParseISO(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range isoLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// FormatBRDateTime renders an ISO timestamp as dd/mm/yyyy HH:MM:SS. Dates render at midnight.
func FormatBRDateTime(s string) string {
	t, ok := ParseISO(s)
	if !ok {
		return ""
	}
	return t.Format("02/01/2006 15:04:05")
}

// FormatCompetencia renders an ISO date as MM/YYYY.
func FormatCompetencia(s string) string {
	t, ok := ParseISO(s)
	if !ok {
		return ""
	}
	return t.Format("01/2006")
}

// FormatCNPJ masks a 14-digit CNPJ; other lengths are returned as digits.
func FormatCNPJ(s string) string {
	d := DigitsOnly(s)
	if len(d) != 14 {
		return d
	}
	return d[0:2] + "." + d[2:5] + "." + d[5:8] + "/" + d[8:12] + "-" + d[12:14]
}

// FormatCPF masks an 11-digit CPF; other lengths are returned as digits.
func FormatCPF(s string) string {
	d := DigitsOnly(s)
	if len(d) != 11 {
		return d
	}
	return d[0:3] + "." + d[3:6] + "." + d[6:9] + "-" + d[9:11]
}

// FormatDoc masks a CNPJ or CPF by length.
func FormatDoc(s string) string {
	d := DigitsOnly(s)
	if len(d) == 11 {
		return FormatCPF(d)
	}
	return FormatCNPJ(d)
}

var percentFloor = decimal.New(1, -9)

// PercentDiff is |a-b| / max(|a|, |b|, 1e-9).
func PercentDiff(a, b decimal.Decimal) decimal.Decimal {
	denom := decimal.Max(a.Abs(), b.Abs(), percentFloor)
	return a.Sub(b).Abs().DivRound(denom, 12)
}

// Diverges reports whether a and b differ beyond both the absolute and the relative tolerance.
func Diverges(a, b, absTol, pctTol decimal.Decimal) bool {
	if a.Sub(b).Abs().LessThanOrEqual(absTol) {
		return false
	}
	return PercentDiff(a, b).GreaterThan(pctTol)
}

// A transform chain carries per-use buffers, so each call takes its own from the pool.
var foldPool = sync.Pool{
	New: func() any {
		return transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	},
}

// FoldUpper upper-cases s and strips diacritics so "Honorários" matches "HONORARIOS".
// Safe for concurrent use.
func FoldUpper(s string) string {
	t := foldPool.Get().(transform.Transformer)
	defer foldPool.Put(t)
	t.Reset()
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.ToUpper(out)
}

var whitespace = regexp.MustCompile(`\s+`)

// CollapseSpaces trims s and joins whitespace runs with one space.
func CollapseSpaces(s string) string {
	return strings.TrimSpace(whitespace.ReplaceAllString(s, " "))
}

func SHA256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// Round3 rounds a share for reporting.
func Round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}

// Round2 rounds a confidence score.
func Round2(f float64) float64 {
	return math.Round(f*100) / 100
}
