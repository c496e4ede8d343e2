package analyzer

import (
	"github.com/shopspring/decimal"

	"github.com/kirillkom/fiscal-doc-analyzer/internal/core/convert"
	"github.com/kirillkom/fiscal-doc-analyzer/internal/core/domain"
)

const (
	nfsePaymentHint = "BOLETO (verificar condição de pagamento)"
	nfseStatusHint  = "PENDENTE/BLOQUEADO (depende de parametrização)"
)

var nfseClassTexts = map[domain.DocClass]string{
	domain.DocClass(domain.ServiceSaude):          "Nota sugerida como SERVIÇO DE SAÚDE.",
	domain.DocClass(domain.ServiceTecnico):        "Nota sugerida como SERVIÇO TÉCNICO.",
	domain.DocClass(domain.ServiceAdministrativo): "Nota sugerida como SERVIÇO ADMINISTRATIVO.",
	domain.DocClass(domain.ServiceConsultoria):    "Nota sugerida como CONSULTORIA.",
	domain.DocClass(domain.ServiceManutencao):     "Nota sugerida como MANUTENÇÃO.",
	domain.DocClass(domain.ServiceOutros):         "Nota sugerida como OUTROS SERVIÇOS.",
	domain.DocClassMixed:                          "Nota com TIPOS DE SERVIÇO MISTURADOS (exige decisão humana).",
}

// NFSeInput is everything the service-invoice analyzer looks at.
type NFSeInput struct {
	Prestador domain.Party
	Tomador   domain.Party
	Totals    domain.NFSeDocTotals
	Summary   domain.NFSeParseSummary
	Items     []domain.NormalizedNFSeItem
}

// ClassifyNFSe assigns the document class from item service classes.
func (a *Analyzer) ClassifyNFSe(items []domain.NormalizedNFSeItem) (domain.DocClass, domain.ClassMeta) {
	classes := make([]string, len(items))
	for i, it := range items {
		classes[i] = string(it.ServiceClass)
	}
	specific := make([]string, len(domain.ServiceClassOrder))
	for i, c := range domain.ServiceClassOrder {
		specific[i] = string(c)
	}
	return classify(classes, specific, string(domain.ServiceOutros), a.cfg.Thresholds.Majority)
}

func (a *Analyzer) AnalyzeNFSe(in NFSeInput) domain.NFSeAnalysis {
	reasons := domain.Reasons{}
	count := len(in.Items)
	if count == 0 {
		reasons = reasons.Append(domain.ReasonDocNoItems)
	}

	prestadorDoc := in.Prestador.Doc
	if prestadorDoc == "" {
		prestadorDoc = in.Prestador.DocFormatado
	}
	missingPrestador := prestadorDoc == ""
	if missingPrestador {
		reasons = reasons.Append(domain.ReasonDocMissingPrestador)
	}

	valorBruto := in.Totals.ValorServicos
	if !valorBruto.Valid {
		valorBruto = domain.AmountOf(in.Summary.SumValorTotalPoliticaA)
	}
	missingValor := !domain.Positive(valorBruto)
	if missingValor {
		reasons = reasons.Append(domain.ReasonDocMissingValor)
	}

	class, meta := a.ClassifyNFSe(in.Items)
	switch class {
	case domain.DocClassUnknown:
		reasons = reasons.Append(domain.ReasonDocCannotClassify)
	case domain.DocClassMixed:
		reasons = reasons.Append(domain.ReasonDocMixedClasses)
	}

	var incomplete, high, medium, cnaeAlerts int
	divergent := false
	diff := decimal.Zero
	hasDiff := false
	missingFields := []string{}
	seenMissing := map[string]bool{}
	for _, it := range in.Items {
		if it.Flags.Incomplete {
			incomplete++
		}
		switch it.ReviewLevel {
		case domain.ReviewHigh:
			high++
		case domain.ReviewMedium:
			medium++
		}
		if it.Reasons.Has(domain.ReasonCNAEVsDescricaoAlert) {
			cnaeAlerts++
		}
		if it.Taxes.ValorLiquidoDivergente {
			divergent = true
		}
		if it.Taxes.ValorLiquidoDiff.Valid {
			diff = diff.Add(it.Taxes.ValorLiquidoDiff.Decimal)
			hasDiff = true
		}
		for _, f := range it.MissingFields {
			if !seenMissing[f] {
				seenMissing[f] = true
				missingFields = append(missingFields, f)
			}
		}
	}
	if incomplete > 0 {
		reasons = reasons.Append(domain.ReasonDocItemsIncomplete)
	}
	if high > 0 {
		reasons = reasons.Append(domain.ReasonDocItemsReviewHigh)
	}
	if medium > 0 {
		reasons = reasons.Append(domain.ReasonDocItemsReviewMedium)
	}
	if cnaeAlerts > 0 {
		reasons = reasons.Append(domain.ReasonDocCNAEAlerts)
	}
	if divergent {
		reasons = reasons.Append(domain.ReasonDocLiquidoDivergent)
	}

	var level domain.ReviewLevel
	switch {
	case needsManualClass(class), count == 0, missingPrestador, missingValor, divergent:
		level = domain.ReviewHigh
	case incomplete > 0, high > 0, medium > 0, cnaeAlerts > 0:
		level = domain.ReviewMedium
	default:
		level = domain.ReviewLow
	}

	codes := a.cfg.Codes
	serviceCode := a.serviceCode(class)
	suggestion := "Sugestão de lançamento: movimento " + codes.NFSeMovementType + "."
	if serviceCode != "" {
		suggestion = "Sugestão de lançamento: movimento " + codes.NFSeMovementType + " com código " + serviceCode + "."
	}
	classText, ok := nfseClassTexts[class]
	if !ok {
		classText = "Não foi possível classificar a nota com segurança."
	}
	text := reviewText(classText, suggestion, level, reasons)

	quality := domain.NFSeDocumentQuality{
		MissingFields:     missingFields,
		ClassMeta:         meta,
		ItemsReviewHigh:   high,
		ItemsReviewMedium: medium,
		ItemsIncomplete:   incomplete,
		CNAEAlerts:        cnaeAlerts,
	}
	if hasDiff {
		quality.DiffLiquidoVsCalculated = domain.AmountOf(domain.Round2(diff))
	}

	doc := domain.NFSeDocument{
		DocumentType: "NFSE",
		DocClass:     class,
		Decision:     domain.DecisionReview,
		ReviewLevel:  level,
		ReviewText:   text,
		Reasons:      reasons,
		NextActions:  nfseNextActions(class),
		Prestador:    in.Prestador,
		Tomador:      in.Tomador,
		Totals:       in.Totals,
		Quality:      quality,
	}

	valorLiquido := in.Totals.ValorLiquido
	if !valorLiquido.Valid {
		valorLiquido = domain.AmountOf(in.Summary.SumValorLiquidoPoliticaB)
	}
	erp := domain.NFSeERPProjection{
		MovementType:   codes.NFSeMovementType,
		FilialCode:     a.cfg.FilialByTomador[convert.DigitsOnly(in.Tomador.Doc)],
		SupplierDoc:    prestadorDoc,
		ValorBruto:     valorBruto,
		ValorLiquido:   valorLiquido,
		ServiceCode:    serviceCode,
		PaymentHint:    nfsePaymentHint,
		RMStatusTarget: nfseStatusHint,
		Retencoes:      retencoes(in.Summary.TaxTotals),
	}
	if count > 0 {
		first := in.Items[0].Fields
		erp.NoteNumber = first.NumeroNota
		erp.Competencia = first.Competencia
		erp.IssueDatetime = first.DataEmissao
	}

	summary := domain.NFSeDocumentSummary{
		DocumentVerdict: verdict(class, level, text, reasons),
		KPIs: domain.NFSeKPIs{
			Items:        count,
			ValorBruto:   valorBruto,
			ValorLiquido: valorLiquido,
		},
	}
	return domain.NFSeAnalysis{Document: doc, ERPProjection: erp, Summary: summary}
}

func (a *Analyzer) serviceCode(class domain.DocClass) string {
	codes := a.cfg.Codes
	switch domain.ServiceClass(class) {
	case domain.ServiceSaude:
		return codes.ServiceCodeSaude
	case domain.ServiceTecnico:
		return codes.ServiceCodeTecnico
	case domain.ServiceConsultoria, domain.ServiceAdministrativo, domain.ServiceManutencao, domain.ServiceOutros:
		return codes.ServiceCodeOutros
	default:
		return ""
	}
}

// retencoes keeps only withholdings with a non-zero total.
func retencoes(t domain.NFSeTaxTotals) domain.NFSeRetencoes {
	nonZero := func(d decimal.Decimal) *decimal.Decimal {
		if d.IsZero() {
			return nil
		}
		return &d
	}
	return domain.NFSeRetencoes{
		ISSRetido: nonZero(t.SumValorISSRetido),
		PIS:       nonZero(t.SumValorPIS),
		COFINS:    nonZero(t.SumValorCOFINS),
		INSS:      nonZero(t.SumValorINSS),
		IR:        nonZero(t.SumValorIR),
		CSLL:      nonZero(t.SumValorCSLL),
	}
}

func nfseNextActions(class domain.DocClass) []string {
	actions := []string{
		"Confirmar prestador e dados do serviço.",
		"Verificar retenções de impostos (ISS, PIS, COFINS, IR, CSLL, INSS).",
		"Conferir competência e datas.",
		"Validar centro de custo conforme regras internas.",
	}
	if needsManualClass(class) {
		actions = append([]string{"Decidir manualmente o tipo de serviço para classificação correta."}, actions...)
	}
	if class == domain.DocClass(domain.ServiceSaude) {
		actions = append(actions, "Verificar se há necessidade de classificação específica por tipo de atendimento.")
	}
	return actions
}
