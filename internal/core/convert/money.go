package convert

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/kirillkom/fiscal-doc-analyzer/internal/core/domain"
)

var moneyChars = regexp.MustCompile(`[^0-9,.]`)

// ParseMoneyBR reads amounts printed with Brazilian or US separators. Only positive values are kept.
//
//	"R$ 1.234,56" -> 1234.56
//	"1,234.56"    -> 1234.56
//	"1.234.567"   -> 1234.567 (last separator is the decimal one)
func ParseMoneyBR(s string) domain.Amount {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, "R$", "")
	s = strings.ReplaceAll(s, "\u00a0", "")
	s = strings.ReplaceAll(s, " ", "")
	s = moneyChars.ReplaceAllString(s, "")
	if s == "" {
		return domain.Amount{}
	}

	commas := strings.Count(s, ",")
	dots := strings.Count(s, ".")
	switch {
	case commas > 1 && dots == 0:
		last := strings.LastIndex(s, ",")
		s = strings.ReplaceAll(s[:last], ",", "") + "." + s[last+1:]
	case dots > 1 && commas == 0:
		last := strings.LastIndex(s, ".")
		s = strings.ReplaceAll(s[:last], ".", "") + "." + s[last+1:]
	case commas > 0 && dots > 0:
		if strings.LastIndex(s, ",") > strings.LastIndex(s, ".") {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.ReplaceAll(s, ",", ".")
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case commas > 0:
		s = strings.ReplaceAll(s, ",", ".")
	}

	d, err := decimal.NewFromString(s)
	if err != nil || !d.IsPositive() {
		return domain.Amount{}
	}
	return domain.AmountOf(d)
}
