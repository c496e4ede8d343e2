package analyzer

import (
	"github.com/kirillkom/fiscal-doc-analyzer/internal/core/convert"
	"github.com/kirillkom/fiscal-doc-analyzer/internal/core/domain"
)

const (
	nfePaymentHint = "BOLETO (manual se parcelado/condição variar)"
	nfeStatusHint  = "PENDENTE/BLOQUEADO (depende de parametrização do RM)"
)

var nfeSpecificClasses = []string{string(domain.ClassMedicamento), string(domain.ClassMaterial)}

var nfeClassTexts = map[domain.DocClass]string{
	domain.DocClass(domain.ClassMaterial):    "Nota sugerida como MATERIAL HOSPITALAR.",
	domain.DocClass(domain.ClassMedicamento): "Nota sugerida como MEDICAMENTO.",
	domain.DocClass(domain.ClassGenerico):    "Nota sugerida como GENÉRICO (sem evidência suficiente para medicamento/material).",
	domain.DocClassMixed:                     "Nota com CLASSES MISTURADAS (exige decisão humana: medicamento vs material vs genérico).",
}

// NFeInput is everything the product-invoice analyzer looks at.
type NFeInput struct {
	Header  domain.NFeHeader
	Emit    domain.Party
	Dest    domain.Party
	Totals  domain.NFeTotals
	Summary domain.NFeParseSummary
	Items   []domain.NormalizedNFeItem
}

// ClassifyNFe assigns the document class from item product classes.
func (a *Analyzer) ClassifyNFe(items []domain.NormalizedNFeItem) (domain.DocClass, domain.ClassMeta) {
	classes := make([]string, len(items))
	for i, it := range items {
		classes[i] = string(it.ProductClass)
	}
	return classify(classes, nfeSpecificClasses, string(domain.ClassGenerico), a.cfg.Thresholds.Majority)
}

func (a *Analyzer) AnalyzeNFe(in NFeInput) domain.NFeAnalysis {
	reasons := domain.Reasons{}
	count := len(in.Items)
	if count == 0 {
		reasons = reasons.Append(domain.ReasonDocNoItems)
	}

	missingHeader := missingNFeHeaderKeys(in.Header)
	if len(missingHeader) > 0 {
		reasons = reasons.Append(domain.ReasonDocMissingHeaderKeys)
	}

	class, meta := a.ClassifyNFe(in.Items)
	switch class {
	case domain.DocClassUnknown:
		reasons = reasons.Append(domain.ReasonDocCannotClassify)
	case domain.DocClassMixed:
		reasons = reasons.Append(domain.ReasonDocMixedClasses)
	}

	var incomplete, high, medium int
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

	divergent := a.totalDiverges(in.Totals.VProd, in.Summary.DiffItemsVsTotalVProd)
	if divergent {
		reasons = reasons.Append(domain.ReasonDocTotalDivergence)
	}

	var level domain.ReviewLevel
	switch {
	case needsManualClass(class), count == 0, len(missingHeader) > 0, divergent:
		level = domain.ReviewHigh
	case incomplete > 0, high > 0, medium > 0:
		level = domain.ReviewMedium
	default:
		level = domain.ReviewLow
	}

	codes := a.cfg.Codes
	productCode := map[domain.DocClass]string{
		domain.DocClass(domain.ClassMedicamento): codes.ProductCodeMedicamento,
		domain.DocClass(domain.ClassMaterial):    codes.ProductCodeMaterial,
		domain.DocClass(domain.ClassGenerico):    codes.ProductCodeGenerico,
	}[class]

	suggestion := "Sugestão de lançamento: movimento " + codes.NFeMovementType + " com item genérico a definir."
	if productCode != "" {
		suggestion = "Sugestão de lançamento: movimento " + codes.NFeMovementType + " com item genérico " + productCode + "."
	}
	classText, ok := nfeClassTexts[class]
	if !ok {
		classText = "Não foi possível classificar a nota com segurança."
	}
	text := reviewText(classText, suggestion, level, reasons)

	doc := domain.NFeDocument{
		DocumentType: "NFE",
		DocClass:     class,
		Decision:     domain.DecisionReview,
		ReviewLevel:  level,
		ReviewText:   text,
		Reasons:      reasons,
		NextActions:  nfeNextActions(class),
		Header:       in.Header,
		Emit:         in.Emit,
		Dest:         in.Dest,
		Totals:       in.Totals,
		Quality: domain.NFeDocumentQuality{
			MissingHeaderKeys:     missingHeader,
			DiffItemsVsTotalVProd: in.Summary.DiffItemsVsTotalVProd,
			ClassMeta:             meta,
			ItemsReviewHigh:       high,
			ItemsReviewMedium:     medium,
			ItemsIncomplete:       incomplete,
		},
	}

	erp := domain.NFeERPProjection{
		MovementType:   codes.NFeMovementType,
		FilialCode:     a.cfg.FilialByDest[convert.DigitsOnly(in.Dest.Doc)],
		SupplierDoc:    in.Emit.Doc,
		NoteNumber:     in.Header.Numero,
		NoteSerie:      in.Header.Serie,
		IssueDatetime:  in.Header.DataEmissao,
		Quantity:       1,
		UnitValue:      in.Totals.VNF,
		TotalValue:     in.Totals.VNF,
		ProductCode:    productCode,
		PaymentHint:    nfePaymentHint,
		RMStatusTarget: nfeStatusHint,
	}

	summary := domain.NFeDocumentSummary{
		DocumentVerdict: verdict(class, level, text, reasons),
		KPIs: domain.NFeKPIs{
			Items:                 count,
			VNF:                   in.Totals.VNF,
			VProd:                 in.Totals.VProd,
			DiffItemsVsTotalVProd: in.Summary.DiffItemsVsTotalVProd,
		},
	}
	return domain.NFeAnalysis{Document: doc, ERPProjection: erp, Summary: summary}
}

// totalDiverges compares the declared vProd with the item sum (total + diff). Both the
// absolute and the relative tolerance must be exceeded.
func (a *Analyzer) totalDiverges(total, diff domain.Amount) bool {
	if !total.Valid || !diff.Valid {
		return false
	}
	t := a.cfg.Thresholds
	return convert.Diverges(total.Decimal, total.Decimal.Add(diff.Decimal), t.DocTotalAbs, t.DocTotalPct)
}

func missingNFeHeaderKeys(h domain.NFeHeader) []string {
	missing := []string{}
	if h.ChaveNFe == "" {
		missing = append(missing, "chave_nfe")
	}
	if h.Numero == nil {
		missing = append(missing, "numero")
	}
	if h.Serie == nil {
		missing = append(missing, "serie")
	}
	if h.DataEmissao == "" {
		missing = append(missing, "data_emissao")
	}
	return missing
}

func nfeNextActions(class domain.DocClass) []string {
	actions := []string{
		"Confirmar destinatário/unidade alvo (nota pode ser de uma filial específica).",
		"Confirmar datas (Emissão, Entrada, Competência).",
		"Conferir condição de pagamento (BOLETO; parcelamento/prazos podem exigir ajuste manual).",
		"Validar centro de custo conforme unidade/padrão interno.",
	}
	if needsManualClass(class) {
		actions = append([]string{"Decidir manualmente a natureza da nota (Medicamento vs Material vs Genérico)."}, actions...)
	}
	return actions
}
