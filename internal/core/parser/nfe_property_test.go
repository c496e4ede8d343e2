//go:build property
// +build property

package parser

import (
	"fmt"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// prodXML renders a prod block leaving out the tracked fields whose bit is set in omit.
func prodXML(omit uint8) string {
	fields := []struct{ tag, value string }{
		{"cProd", "P1"},
		{"xProd", "SERINGA"},
		{"NCM", "90183119"},
		{"CFOP", "5102"},
		{"qCom", "2"},
		{"vUnCom", "3.50"},
		{"vProd", "7.00"},
	}
	var b strings.Builder
	b.WriteString("<prod>")
	for i, f := range fields {
		if omit&(1<<i) != 0 {
			continue
		}
		fmt.Fprintf(&b, "<%s>%s</%s>", f.tag, f.value, f.tag)
	}
	b.WriteString("</prod>")
	return b.String()
}

func omittedCount(omit uint8) int {
	n := 0
	for i := 0; i < 7; i++ {
		if omit&(1<<i) != 0 {
			n++
		}
	}
	return n
}

func TestItemConfidenceBound(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 300
	properties := gopter.NewProperties(parameters)

	properties.Property("0 <= confidence <= 1 and 1 iff nothing is missing", prop.ForAll(
		func(masks []uint8) bool {
			var b strings.Builder
			b.WriteString(`<NFe><infNFe>`)
			for i, m := range masks {
				fmt.Fprintf(&b, `<det nItem="%d">%s</det>`, i+1, prodXML(m))
			}
			b.WriteString(`</infNFe></NFe>`)

			res := ParseNFe([]byte(b.String()), "gen.xml")
			if !res.Received || len(res.Items) != len(masks) {
				return false
			}
			for i, it := range res.Items {
				if it.Confidence < 0 || it.Confidence > 1 {
					return false
				}
				if (it.Confidence == 1) != (len(it.MissingFields) == 0) {
					return false
				}
				if len(it.MissingFields) != omittedCount(masks[i]) {
					return false
				}
				if it.Flags.Incomplete != (len(it.MissingFields) > 0) {
					return false
				}
			}
			return true
		},
		gen.SliceOfN(5, gen.UInt8Range(0, 127)),
	))

	properties.TestingRun(t)
}
