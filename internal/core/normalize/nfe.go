package normalize

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/kirillkom/fiscal-doc-analyzer/internal/core/convert"
	"github.com/kirillkom/fiscal-doc-analyzer/internal/core/domain"
)

// Normalizer classifies items with a fixed set of tables and tolerances. It holds
// no mutable state and is safe for concurrent use.
type Normalizer struct {
	tables       compiled
	itemTotalAbs decimal.Decimal
}

func New(h Heuristics, thresholds domain.Thresholds) *Normalizer {
	return &Normalizer{tables: compile(h), itemTotalAbs: thresholds.ItemTotalAbs}
}

// ClassifyProduct applies NCM prefixes, then keywords, then the generic fallback.
func (n *Normalizer) ClassifyProduct(ncm, description string) (domain.ProductClass, domain.Reason) {
	digits := convert.DigitsOnly(ncm)
	text := convert.FoldUpper(description)

	if _, ok := matchPrefix(digits, n.tables.materialNCM); ok {
		return domain.ClassMaterial, domain.ReasonMaterialByNCM
	}
	if prefix, ok := matchPrefix(digits, n.tables.medicamentoNCM); ok {
		if n.tables.ambiguousNCM[prefix] && containsAny(text, n.tables.materialKeywords) {
			return domain.ClassMaterial, domain.ReasonMaterialByKeyword
		}
		return domain.ClassMedicamento, domain.ReasonMedicamentoByNCM
	}
	if containsAny(text, n.tables.materialKeywords) {
		return domain.ClassMaterial, domain.ReasonMaterialByKeyword
	}
	if containsAny(text, n.tables.medicamentoKeywords) {
		return domain.ClassMedicamento, domain.ReasonMedicamentoByKeyword
	}
	return domain.ClassGenerico, domain.ReasonGenericFallback
}

// NFeItem normalizes one product item. The decision is always REVIEW.
func (n *Normalizer) NFeItem(in domain.ExtractedNFeItem) domain.NormalizedNFeItem {
	it := in.Item
	reasons := domain.Reasons{}
	if it.CProd == "" {
		reasons = reasons.Append(domain.ReasonProductCodeMissing)
	}
	if it.XProd == "" {
		reasons = reasons.Append(domain.ReasonProductDescMissing)
	}
	if it.NCM == "" {
		reasons = reasons.Append(domain.ReasonNCMMissing)
	}
	if it.CFOP == "" {
		reasons = reasons.Append(domain.ReasonCFOPMissing)
	}
	if !domain.Positive(it.QCom) || !domain.Positive(it.VUnCom) {
		reasons = reasons.Append(domain.ReasonQtyOrPriceMissing)
	}

	flags := domain.NFeNormFlags{
		HasMinimumFiscalKeys:        it.NCM != "" && it.CFOP != "",
		RequiresProductRegistration: true,
	}
	if it.QCom.Valid && it.VUnCom.Valid {
		expected := domain.Round2(it.QCom.Decimal.Mul(it.VUnCom.Decimal))
		flags.ExpectedVProd = domain.AmountOf(expected)
		if it.VProd.Valid {
			diff := domain.Round2(it.VProd.Decimal.Sub(expected))
			flags.DiffVProdVsExpected = domain.AmountOf(diff)
			if diff.Abs().GreaterThan(n.itemTotalAbs) {
				flags.VProdInvalid = true
				reasons = reasons.Append(domain.ReasonItemTotalInvalid)
			}
		}
	}

	class, classReason := n.ClassifyProduct(it.NCM, it.XProd)
	reasons = reasons.Append(classReason)

	level := nfeReviewLevel(reasons, flags)
	return domain.NormalizedNFeItem{
		ExtractedNFeItem: in,
		ProductClass:     class,
		SuggestedGroup:   string(class),
		Decision:         domain.DecisionReview,
		Reasons:          reasons,
		ReviewLevel:      level,
		ReviewText:       nfeReviewText(class, reasons),
		NormFlags:        flags,
	}
}

// NFeItems normalizes every item and folds the histograms.
func (n *Normalizer) NFeItems(items []domain.ExtractedNFeItem) ([]domain.NormalizedNFeItem, domain.NFeNormSummary) {
	out := make([]domain.NormalizedNFeItem, 0, len(items))
	var s domain.NFeNormSummary
	for _, in := range items {
		norm := n.NFeItem(in)
		out = append(out, norm)
		s.DecisionSummary.Add(norm.Decision)
		s.ReviewSummary.Add(norm.ReviewLevel)
		s.QualitySummary.Merge(nfeQuality(norm.Reasons))
	}
	return out, s
}

func nfeQuality(reasons domain.Reasons) domain.NFeQualitySummary {
	var q domain.NFeQualitySummary
	if reasons.Has(domain.ReasonNCMMissing) {
		q.MissingNCM = 1
	}
	if reasons.Has(domain.ReasonCFOPMissing) {
		q.MissingCFOP = 1
	}
	if reasons.Has(domain.ReasonItemTotalInvalid) {
		q.ItemTotalInvalid = 1
	}
	return q
}

func nfeReviewLevel(reasons domain.Reasons, flags domain.NFeNormFlags) domain.ReviewLevel {
	switch {
	case reasons.HasAny(domain.ReasonProductCodeMissing, domain.ReasonProductDescMissing, domain.ReasonNCMMissing, domain.ReasonCFOPMissing):
		return domain.ReviewHigh
	case !flags.HasMinimumFiscalKeys:
		return domain.ReviewHigh
	case reasons.HasAny(domain.ReasonItemTotalInvalid, domain.ReasonQtyOrPriceMissing):
		return domain.ReviewMedium
	default:
		return domain.ReviewLow
	}
}

func nfeReviewText(class domain.ProductClass, reasons domain.Reasons) string {
	var parts []string
	switch {
	case reasons.Has(domain.ReasonMedicamentoByNCM):
		parts = append(parts, "Classificação: MEDICAMENTO (NCM de farmacêutico identificado).")
	case reasons.Has(domain.ReasonMedicamentoByKeyword):
		parts = append(parts, "Classificação: MEDICAMENTO (descrição contém termos farmacêuticos).")
	case reasons.Has(domain.ReasonMaterialByNCM):
		parts = append(parts, "Classificação: MATERIAL HOSPITALAR (NCM de instrumentos/dispositivos médicos).")
	case reasons.Has(domain.ReasonMaterialByKeyword):
		parts = append(parts, "Classificação: MATERIAL HOSPITALAR (descrição contém termos de materiais).")
	case class == domain.ClassMedicamento:
		parts = append(parts, "Classificação sugerida: MEDICAMENTO.")
	case class == domain.ClassMaterial:
		parts = append(parts, "Classificação sugerida: MATERIAL HOSPITALAR.")
	default:
		parts = append(parts, "Classificação: GENÉRICO (não foi possível identificar como medicamento ou material).")
	}

	if reasons.HasAny(domain.ReasonNCMMissing, domain.ReasonCFOPMissing) {
		parts = append(parts, "Faltam chaves fiscais (NCM/CFOP), conferir XML.")
	}
	if reasons.HasAny(domain.ReasonProductCodeMissing, domain.ReasonProductDescMissing) {
		parts = append(parts, "Faltam dados básicos do item (código/descrição), conferir XML.")
	}
	if reasons.Has(domain.ReasonItemTotalInvalid) {
		parts = append(parts, "Total do item (vProd) não bate com qCom × vUnCom, conferir.")
	}
	if reasons.Has(domain.ReasonQtyOrPriceMissing) {
		parts = append(parts, "Quantidade ou preço unitário ausente/zero, conferir.")
	}
	return strings.Join(parts, " ")
}
