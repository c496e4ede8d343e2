// Package analyzer aggregates normalized items into a document verdict and an ERP posting
// suggestion. Document decisions are always REVIEW; only the review level varies.
package analyzer

import (
	"strings"

	"github.com/kirillkom/fiscal-doc-analyzer/internal/core/convert"
	"github.com/kirillkom/fiscal-doc-analyzer/internal/core/domain"
)

const (
	topReasonsSummary = 8
	topReasonsText    = 6
)

// Config carries the tolerances, posting codes and filial maps used by the analyzers.
// Filial maps are keyed by the digits of the recipient (NF-e) or taker (NFS-e) document.
type Config struct {
	Thresholds      domain.Thresholds
	Codes           domain.ERPCodes
	FilialByDest    map[string]string
	FilialByTomador map[string]string
}

func DefaultConfig() Config {
	return Config{
		Thresholds: domain.DefaultThresholds(),
		Codes:      domain.DefaultERPCodes(),
	}
}

type Analyzer struct {
	cfg Config
}

func New(cfg Config) *Analyzer {
	if cfg.Thresholds.Majority <= 0 {
		cfg.Thresholds.Majority = domain.DefaultThresholds().Majority
	}
	return &Analyzer{cfg: cfg}
}

// classify applies the majority rule. Generic items never make a document MIXED; they only
// classify it when no specific class is present.
func classify(classes []string, specific []string, generic string, threshold float64) (domain.DocClass, domain.ClassMeta) {
	meta := domain.ClassMeta{ClassesSeen: map[string]int{generic: 0}}
	for _, c := range specific {
		meta.ClassesSeen[c] = 0
	}
	for _, c := range classes {
		if c == "" {
			c = string(domain.DocClassUnknown)
		}
		meta.ClassesSeen[c]++
	}
	if len(classes) == 0 {
		return domain.DocClassUnknown, meta
	}

	totalSpecific := 0
	present := 0
	var majority string
	majorityCount := 0
	for _, c := range specific {
		n := meta.ClassesSeen[c]
		totalSpecific += n
		if n > 0 {
			present++
		}
		if n > majorityCount {
			majority, majorityCount = c, n
		}
	}
	if totalSpecific == 0 {
		if meta.ClassesSeen[generic] > 0 {
			return domain.DocClass(generic), meta
		}
		return domain.DocClassUnknown, meta
	}

	meta.PctByClass = map[string]float64{}
	for _, c := range specific {
		if n := meta.ClassesSeen[c]; n > 0 {
			meta.PctByClass[c] = convert.Round3(float64(n) / float64(totalSpecific))
		}
	}
	share := float64(majorityCount) / float64(totalSpecific)
	rounded := convert.Round3(share)
	meta.PctMajority = &rounded
	meta.MajorityClass = majority

	if present == 1 || share >= threshold {
		return domain.DocClass(majority), meta
	}
	return domain.DocClassMixed, meta
}

// reviewText builds the operator explanation shared by both document kinds.
func reviewText(classText, suggestion string, level domain.ReviewLevel, reasons domain.Reasons) string {
	parts := []string{classText, suggestion, "Nível de revisão: " + string(level) + "."}
	if top := reasons.Top(topReasonsText); len(top) > 0 {
		parts = append(parts, "Motivos: "+strings.Join(top.Strings(), "; ")+".")
	}
	return strings.Join(parts, " ")
}

func verdict(class domain.DocClass, level domain.ReviewLevel, text string, reasons domain.Reasons) domain.DocumentVerdict {
	return domain.DocumentVerdict{
		DocClass:    class,
		Decision:    domain.DecisionReview,
		ReviewLevel: level,
		ReviewText:  text,
		TopReasons:  reasons.Top(topReasonsSummary),
	}
}

func needsManualClass(class domain.DocClass) bool {
	return class == domain.DocClassMixed || class == domain.DocClassUnknown
}
