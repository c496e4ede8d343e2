package normalize

import (
	"strings"

	"github.com/kirillkom/fiscal-doc-analyzer/internal/core/convert"
	"github.com/kirillkom/fiscal-doc-analyzer/internal/core/domain"
)

type classSource int

const (
	byFallback classSource = iota
	byCNAE
	byKeyword
)

// ClassifyService walks the service tables by CNAE prefix first, then by
// description keyword, then falls back to OUTROS.
func (n *Normalizer) ClassifyService(cnae, description string) (domain.ServiceClass, domain.Reason) {
	class, src := n.classifyService(cnae, description)
	switch src {
	case byCNAE:
		return class, domain.ServiceReasonByCNAE(class)
	case byKeyword:
		return class, domain.ServiceReasonByKeyword(class)
	default:
		return domain.ServiceOutros, domain.ReasonServiceOutrosFallback
	}
}

func (n *Normalizer) classifyService(cnae, description string) (domain.ServiceClass, classSource) {
	digits := convert.DigitsOnly(cnae)
	for _, t := range n.tables.services {
		if _, ok := matchPrefix(digits, t.CNAEPrefixes); ok {
			return t.Class, byCNAE
		}
	}
	text := convert.FoldUpper(description)
	for _, t := range n.tables.services {
		if containsAny(text, t.Keywords) {
			return t.Class, byKeyword
		}
	}
	return domain.ServiceOutros, byFallback
}

// NFSeItem normalizes one service note. The engine decision and its reasons are
// kept; normalizer reasons are appended after them.
func (n *Normalizer) NFSeItem(in domain.NFSeItem) domain.NormalizedNFSeItem {
	f := in.Fields
	digits := convert.DigitsOnly(f.CNAE)

	quality := domain.Reasons{}
	if f.NumeroNota == "" {
		quality = quality.Append(domain.ReasonNumeroNotaMissing)
	}
	if f.CNPJFornecedor == "" {
		quality = quality.Append(domain.ReasonCNPJFornecedorMissing)
	}
	if digits == "" {
		quality = quality.Append(domain.ReasonCNAEMissing)
	}
	if f.Competencia == "" {
		quality = quality.Append(domain.ReasonCompetenciaMissing)
	}
	if f.DescricaoServico == "" {
		quality = quality.Append(domain.ReasonDescricaoMissing)
	}
	switch {
	case !f.ValorTotal.Valid:
		quality = quality.Append(domain.ReasonValorMissing)
	case !f.ValorTotal.Decimal.IsPositive():
		quality = quality.Append(domain.ReasonValorNegativo)
	}

	status := in.Validations.CNAEVsDescricao.Status
	switch {
	case status == domain.CNAEStatusAlert:
		quality = quality.Append(domain.ReasonCNAEVsDescricaoAlert)
	case status == domain.CNAEStatusUnknown && digits != "":
		quality = quality.Append(domain.ReasonCNAEVsDescricaoUnknown)
	}
	if in.Taxes.ValorLiquidoDivergente {
		quality = quality.Append(domain.ReasonValorLiquidoDivergente)
	}

	class, classReason := n.ClassifyService(digits, f.DescricaoServico)
	quality = quality.Append(classReason)

	flags := domain.NFSeNormFlags{
		MissingCritical:        in.Flags.MissingCritical,
		Incomplete:             in.Flags.Incomplete,
		NeedsReview:            in.Flags.NeedsReview,
		HasMinimumFields:       f.NumeroNota != "" && f.CNPJFornecedor != "" && domain.NonZero(f.ValorTotal),
		HasValidCNAE:           digits != "",
		HasValidValor:          domain.Positive(f.ValorTotal),
		ValorLiquidoDivergente: in.Taxes.ValorLiquidoDivergente,
		RequiresReviewCNAE:     status == domain.CNAEStatusAlert,
	}

	var group string
	if len(digits) >= 2 {
		group = digits[:2]
	}

	reasons := in.Reasons.Clone().Append(quality...)
	return domain.NormalizedNFSeItem{
		NFSeItem:     in,
		ServiceClass: class,
		CNAEGroup:    group,
		Reasons:      reasons,
		ReviewLevel:  nfseReviewLevel(quality, flags),
		ReviewText:   nfseReviewText(class, classReason, quality),
		NormFlags:    flags,
	}
}

// NFSeItems normalizes every note and folds the histograms.
func (n *Normalizer) NFSeItems(items []domain.NFSeItem) ([]domain.NormalizedNFSeItem, domain.NFSeNormSummary) {
	out := make([]domain.NormalizedNFSeItem, 0, len(items))
	s := domain.NFSeNormSummary{ServiceClassSummary: map[domain.ServiceClass]int{}}
	for _, in := range items {
		norm := n.NFSeItem(in)
		out = append(out, norm)
		s.ReviewSummary.Add(norm.ReviewLevel)
		s.ServiceClassSummary[norm.ServiceClass]++
		s.QualitySummary.Merge(nfseQuality(norm.Reasons))
	}
	return out, s
}

func nfseQuality(reasons domain.Reasons) domain.NFSeQualitySummary {
	var q domain.NFSeQualitySummary
	if reasons.Has(domain.ReasonCNAEMissing) {
		q.MissingCNAE = 1
	}
	if reasons.HasAny(domain.ReasonValorMissing, domain.ReasonValorNegativo) {
		q.MissingValor = 1
	}
	if reasons.Has(domain.ReasonCNAEVsDescricaoAlert) {
		q.CNAEAlert = 1
	}
	if reasons.Has(domain.ReasonValorLiquidoDivergente) {
		q.LiquidoDivergente = 1
	}
	return q
}

func nfseReviewLevel(reasons domain.Reasons, flags domain.NFSeNormFlags) domain.ReviewLevel {
	switch {
	case reasons.HasAny(
		domain.ReasonNumeroNotaMissing,
		domain.ReasonCNPJFornecedorMissing,
		domain.ReasonValorMissing,
		domain.ReasonValorNegativo,
		domain.ReasonValorLiquidoDivergente,
	):
		return domain.ReviewHigh
	case flags.MissingCritical:
		return domain.ReviewHigh
	case reasons.HasAny(
		domain.ReasonCNAEVsDescricaoAlert,
		domain.ReasonCompetenciaMissing,
		domain.ReasonDescricaoMissing,
	):
		return domain.ReviewMedium
	case flags.Incomplete:
		return domain.ReviewMedium
	default:
		return domain.ReviewLow
	}
}

var serviceClassTexts = map[domain.ServiceClass][2]string{
	domain.ServiceSaude: {
		"Classificação: SERVIÇO DE SAÚDE (CNAE de atividade hospitalar/médica).",
		"Classificação: SERVIÇO DE SAÚDE (descrição contém termos médicos/hospitalares).",
	},
	domain.ServiceTecnico: {
		"Classificação: SERVIÇO TÉCNICO (CNAE de TI/engenharia/técnico).",
		"Classificação: SERVIÇO TÉCNICO (descrição contém termos técnicos).",
	},
	domain.ServiceConsultoria: {
		"Classificação: CONSULTORIA (CNAE de consultoria/gestão).",
		"Classificação: CONSULTORIA (descrição contém termos de consultoria).",
	},
	domain.ServiceAdministrativo: {
		"Classificação: SERVIÇO ADMINISTRATIVO (CNAE de apoio administrativo).",
		"Classificação: SERVIÇO ADMINISTRATIVO (descrição contém termos administrativos).",
	},
	domain.ServiceManutencao: {
		"Classificação: MANUTENÇÃO (CNAE de manutenção/reparo).",
		"Classificação: MANUTENÇÃO (descrição contém termos de manutenção).",
	},
}

func nfseReviewText(class domain.ServiceClass, classReason domain.Reason, reasons domain.Reasons) string {
	var parts []string
	texts, ok := serviceClassTexts[class]
	switch {
	case ok && classReason == domain.ServiceReasonByCNAE(class):
		parts = append(parts, texts[0])
	case ok:
		parts = append(parts, texts[1])
	default:
		parts = append(parts, "Classificação: OUTROS (não foi possível identificar o tipo de serviço).")
	}

	if reasons.Has(domain.ReasonCNAEMissing) {
		parts = append(parts, "CNAE ausente, verificar XML.")
	}
	if reasons.Has(domain.ReasonCNAEVsDescricaoAlert) {
		parts = append(parts, "CNAE não corresponde à descrição, verificar serviço.")
	}
	if reasons.Has(domain.ReasonValorLiquidoDivergente) {
		parts = append(parts, "Valor líquido diverge do calculado, conferir retenções.")
	}
	if reasons.HasAny(domain.ReasonNumeroNotaMissing, domain.ReasonCNPJFornecedorMissing) {
		parts = append(parts, "Faltam dados críticos (número/CNPJ), conferir XML.")
	}
	if reasons.HasAny(domain.ReasonValorMissing, domain.ReasonValorNegativo) {
		parts = append(parts, "Valor do serviço ausente ou inválido, conferir.")
	}
	return strings.Join(parts, " ")
}
