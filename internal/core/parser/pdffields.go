package parser

import (
	"bytes"
	"context"
	"regexp"
	"strings"

	"github.com/kirillkom/fiscal-doc-analyzer/internal/core/convert"
	"github.com/kirillkom/fiscal-doc-analyzer/internal/core/domain"
	"github.com/kirillkom/fiscal-doc-analyzer/internal/core/ports"
)

var pdfMagic = []byte("%PDF-")

// PDF payload fixes reported in the result.
const (
	PDFFixNone      = "none"
	PDFFixCutHeader = "cut_to_pdf_header"
	PDFMethodText   = "pdf_text"
)

// NormalizePDFPayload locates the %PDF- marker, cutting any leading garbage such as
// multipart preambles. ok is false when no marker exists.
func NormalizePDFPayload(raw []byte) (pdf []byte, fix string, ok bool, header string) {
	idx := bytes.Index(raw, pdfMagic)
	if idx < 0 {
		return raw, PDFFixNone, false, ""
	}
	fix = PDFFixNone
	if idx > 0 {
		fix = PDFFixCutHeader
	}
	pdf = raw[idx:]
	end := 8
	if len(pdf) < end {
		end = len(pdf)
	}
	return pdf, fix, true, latin1(pdf[:end])
}

func latin1(b []byte) string {
	r := make([]rune, len(b))
	for i, c := range b {
		r[i] = rune(c)
	}
	return string(r)
}

var (
	reNumeroNota   = regexp.MustCompile(`(?im)(?:N[uú]mero|Numero)\s+da\s+Nota\s*[:=]?\s*([0-9]{6,})`)
	reNumeroAnchor = regexp.MustCompile(`(?i)(?:N[uú]mero|Numero)\s+da\s+Nota`)
	reNumeroWindow = regexp.MustCompile(`[:=]?\s*([0-9]{6,})\b`)

	reDataEmissao      = regexp.MustCompile(`(?im)Data\s+e\s+Hora\s+de\s+Emiss[aã]o\s*[:=]?\s*([0-9]{2}/[0-9]{2}/[0-9]{4}(?:\s+[0-9]{2}:[0-9]{2}:[0-9]{2})?)`)
	reDataEmissaoLoose = regexp.MustCompile(`(?im)Data\s+.*Emiss[aã]o\s*[:=]?\s*([0-9]{2}/[0-9]{2}/[0-9]{4}(?:\s+[0-9]{2}:[0-9]{2}:[0-9]{2})?)`)

	reCNPJAnchored = regexp.MustCompile(`(?im)(?:CPF/CNPJ|CNPJ)\s*[:=]?\s*([0-9]{2}\.[0-9]{3}\.[0-9]{3}/[0-9]{4}-[0-9]{2})`)
	reCNPJBare     = regexp.MustCompile(`(?im)\b([0-9]{2}\.[0-9]{3}\.[0-9]{3}/[0-9]{4}-[0-9]{2})\b`)

	reCompetencia = regexp.MustCompile(`(?im)COMPET[EÊ]NCIA\s*[:=]?\s*([0-9]{2}/[0-9]{4})`)

	reValorStrict      = regexp.MustCompile(`(?im)VALOR\s+TOTAL\s+DA\s+NOTA\s*[:=]?\s*R?\$?\s*([0-9]{1,3}(?:\.[0-9]{3})*,[0-9]{2}|[0-9]+,[0-9]{2})`)
	reValorAnchor      = regexp.MustCompile(`(?i)VALOR\s+TOTAL\s+DA\s+NOTA`)
	reValorWindow      = regexp.MustCompile(`R?\$?\s*([0-9]{1,3}(?:[.\s][0-9]{3})*|[0-9]{1,7})(?:[,.]\s*([0-9]{2}))`)
	reValorFuzzyAnchor = regexp.MustCompile(`(?i)V[A4]L[O0]R\s+T[O0]T[A4]L\s+D[A4]\s+N[O0]T[A4]`)
	reValorFuzzyNoDa   = regexp.MustCompile(`(?i)V[A4]L[O0]R\s+T[O0]T[A4]L\s+N[O0]T[A4]`)
	reMoneyScan        = regexp.MustCompile(`(?i)R?\$?\s*([0-9]{1,3}(?:[.\s][0-9]{3})*|[0-9]{1,9})\s*[,.]\s*([0-9]{2})`)
)

const (
	numeroWindowRunes = 140
	valorWindowRunes  = 260
	fuzzyWindowRunes  = 320
)

// ExtractNFSeFromText recovers service-invoice fields from a PDF text layer.
func ExtractNFSeFromText(text string) domain.NFSePDFFields {
	numero := firstGroup(reNumeroNota, text)
	if numero == "" {
		numero = numeroByAnchor(text)
	}
	data := firstGroup(reDataEmissao, text)
	if data == "" {
		data = firstGroup(reDataEmissaoLoose, text)
	}
	cnpj := firstGroup(reCNPJAnchored, text)
	if cnpj == "" {
		cnpj = firstGroup(reCNPJBare, text)
	}
	return domain.NFSePDFFields{
		NumeroNota:       numero,
		DataEmissao:      data,
		CNPJFornecedor:   cnpj,
		ValorTotal:       valorTotal(text),
		Competencia:      firstGroup(reCompetencia, text),
		DescricaoServico: descricaoHonorario,
	}
}

// valorTotal tries the strict anchor, the anchor window, the OCR-tolerant anchor
// and finally the first money value of the page.
func valorTotal(text string) domain.Amount {
	if v := convert.ParseMoneyBR(firstGroup(reValorStrict, text)); v.Valid {
		return v
	}
	flat := convert.CollapseSpaces(text)
	if w, ok := windowAfter(reValorAnchor, flat, valorWindowRunes); ok {
		if v := moneyIn(reValorWindow, w); v.Valid {
			return v
		}
	}
	w, ok := windowAfter(reValorFuzzyAnchor, flat, fuzzyWindowRunes)
	if !ok {
		w, ok = windowAfter(reValorFuzzyNoDa, flat, fuzzyWindowRunes)
	}
	if ok {
		if v := moneyIn(reMoneyScan, w); v.Valid {
			return v
		}
	}
	return moneyIn(reMoneyScan, flat)
}

func numeroByAnchor(text string) string {
	w, ok := windowAfter(reNumeroAnchor, convert.CollapseSpaces(text), numeroWindowRunes)
	if !ok {
		return ""
	}
	return firstGroup(reNumeroWindow, w)
}

func firstGroup(re *regexp.Regexp, text string) string {
	m := re.FindStringSubmatch(text)
	if len(m) < 2 {
		return ""
	}
	return strings.TrimSpace(m[1])
}

// windowAfter returns up to n runes following the first anchor match.
func windowAfter(anchor *regexp.Regexp, text string, n int) (string, bool) {
	loc := anchor.FindStringIndex(text)
	if loc == nil {
		return "", false
	}
	rest := []rune(text[loc[1]:])
	if len(rest) > n {
		rest = rest[:n]
	}
	return string(rest), true
}

// moneyIn joins the integral and cents groups of the first match and parses them.
func moneyIn(re *regexp.Regexp, text string) domain.Amount {
	m := re.FindStringSubmatch(text)
	if len(m) < 3 || m[2] == "" {
		return domain.Amount{}
	}
	integral := strings.Join(strings.Fields(m[1]), "")
	return convert.ParseMoneyBR(integral + "," + m[2])
}

var pdfFieldOrder = []string{"numero_nota", "data_emissao", "cnpj_fornecedor", "valor_total", "competencia", "descricao_servico"}

func pdfFieldPresent(f domain.NFSePDFFields, name string) bool {
	switch name {
	case "numero_nota":
		return f.NumeroNota != ""
	case "data_emissao":
		return f.DataEmissao != ""
	case "cnpj_fornecedor":
		return f.CNPJFornecedor != ""
	case "valor_total":
		return f.ValorTotal.Valid
	case "competencia":
		return f.Competencia != ""
	case "descricao_servico":
		return f.DescricaoServico != ""
	default:
		return false
	}
}

// ParseNFSePDF runs the text-layer flow for a service invoice PDF.
func ParseNFSePDF(ctx context.Context, raw []byte, filename string, extractor ports.PDFTextExtractor) domain.NFSePDFResult {
	res := domain.NFSePDFResult{
		Filename:      filename,
		SHA256:        convert.SHA256Hex(raw),
		Method:        PDFMethodText,
		MissingFields: []string{},
		FieldSources:  map[string]string{},
	}
	if len(raw) == 0 {
		res.Error = domain.CodeEmptyBody
		return res
	}
	pdf, fix, ok, header := NormalizePDFPayload(raw)
	if !ok {
		res.Error = domain.CodeInvalidPDF
		return res
	}
	res.FixApplied = fix
	res.PDFHeader = header

	text, pages, err := extractor.ExtractText(ctx, pdf)
	if err != nil {
		res.Error = domain.CodePDFTextFailed
		res.Details = err.Error()
		return res
	}

	res.Received = true
	res.Pages = pages
	res.Fields = ExtractNFSeFromText(text)
	missingCritical := false
	for _, name := range pdfFieldOrder {
		if pdfFieldPresent(res.Fields, name) {
			res.FieldSources[name] = PDFMethodText
			continue
		}
		res.MissingFields = append(res.MissingFields, name)
		if name != "descricao_servico" {
			missingCritical = true
		}
	}
	res.Confidence = confidence(len(res.MissingFields), len(pdfFieldOrder))
	res.Flags = domain.NFSeFlags{
		NeedsReview:     res.Confidence < 0.95,
		Incomplete:      len(res.MissingFields) > 0,
		MissingCritical: missingCritical,
	}
	return res
}
