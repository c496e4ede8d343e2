//go:build property
// +build property

package normalize

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/shopspring/decimal"

	"github.com/kirillkom/fiscal-doc-analyzer/internal/core/domain"
)

func classReasonCount(reasons domain.Reasons) int {
	n := 0
	for _, r := range reasons {
		if len(r) > 6 && r[:6] == "CLASS_" {
			n++
		}
	}
	return n
}

func TestNormalizedItemsCarryOneClassReason(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 300
	properties := gopter.NewProperties(parameters)
	n := newTestNormalizer()

	properties.Property("product items are REVIEW with a single class reason", prop.ForAll(
		func(ncm, desc string, q, v, total int64) bool {
			got := n.NFeItem(domain.ExtractedNFeItem{Item: domain.NFeItem{
				CProd:  "P",
				XProd:  desc,
				NCM:    ncm,
				CFOP:   "5102",
				QCom:   domain.AmountOf(decimal.New(q, 0)),
				VUnCom: domain.AmountOf(decimal.New(v, -2)),
				VProd:  domain.AmountOf(decimal.New(total, -2)),
			}})
			if got.Decision != domain.DecisionReview || classReasonCount(got.Reasons) != 1 {
				return false
			}
			return len(got.Reasons.Sorted()) == len(got.Reasons)
		},
		gen.RegexMatch(`[0-9]{0,8}`),
		gen.AlphaString(),
		gen.Int64Range(0, 1000),
		gen.Int64Range(0, 100000),
		gen.Int64Range(0, 10000000),
	))

	properties.Property("service items keep the engine decision", prop.ForAll(
		func(cnae, desc string, blocked bool) bool {
			in := serviceItem(cnae, desc, domain.CNAEStatusUnknown)
			if blocked {
				in.Decision = domain.DecisionBlock
				in.Reasons = domain.Reasons{domain.ReasonTaxInconsistent}
			}
			got := n.NFSeItem(in)
			if got.Decision != in.Decision || classReasonCount(got.Reasons) != 1 {
				return false
			}
			return !blocked || got.Reasons[0] == domain.ReasonTaxInconsistent
		},
		gen.RegexMatch(`[0-9]{0,7}`),
		gen.AlphaString(),
		gen.Bool(),
	))

	properties.TestingRun(t)
}
