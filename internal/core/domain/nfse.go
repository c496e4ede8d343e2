package domain

import "github.com/shopspring/decimal"

// NFSeFields are the service invoice fields used by the ERP contract.
type NFSeFields struct {
	NumeroNota       string `json:"numero_nota"`
	DataEmissao      string `json:"data_emissao"`
	CNPJFornecedor   string `json:"cnpj_fornecedor"`
	ValorTotal       Amount `json:"valor_total"`
	Competencia      string `json:"competencia"`
	DescricaoServico string `json:"descricao_servico"`
	CNAE             string `json:"cnae"`
}

// NFSeTrackedFields drives confidence scoring for service invoices.
var NFSeTrackedFields = []string{
	"numero_nota", "data_emissao", "cnpj_fornecedor", "valor_total",
	"competencia", "descricao_servico", "cnae",
}

// NFSeCriticalFields must all be present for an automatic decision.
var NFSeCriticalFields = []string{
	"numero_nota", "data_emissao", "valor_total", "competencia", "cnpj_fornecedor",
}

// Present reports whether the named tracked field carries a value.
func (f NFSeFields) Present(name string) bool {
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
	case "cnae":
		return f.CNAE != ""
	default:
		return false
	}
}

// NFSeTaxes holds withholdings and the net-value reconciliation of one note.
type NFSeTaxes struct {
	IssRetido              *int   `json:"iss_retido"`
	BaseCalculo            Amount `json:"base_calculo"`
	Aliquota               Amount `json:"aliquota"`
	ValorISS               Amount `json:"valor_iss"`
	ValorISSRetido         Amount `json:"valor_iss_retido"`
	ValorDeducoes          Amount `json:"valor_deducoes"`
	ValorPIS               Amount `json:"valor_pis"`
	ValorCOFINS            Amount `json:"valor_cofins"`
	ValorINSS              Amount `json:"valor_inss"`
	ValorIR                Amount `json:"valor_ir"`
	ValorCSLL              Amount `json:"valor_csll"`
	OutrasRetencoes        Amount `json:"outras_retencoes"`
	DescontoIncondicionado Amount `json:"desconto_incondicionado"`
	DescontoCondicionado   Amount `json:"desconto_condicionado"`
	ValorLiquidoNFSe       Amount `json:"valor_liquido_nfse"`

	ValorLiquidoCalculado  Amount `json:"valor_liquido_calculado_politica_b"`
	ValorLiquidoDiff       Amount `json:"valor_liquido_diff_xml_vs_calc"`
	ValorLiquidoDivergente bool   `json:"valor_liquido_divergente"`
}

// Sources lists the tax fields that were read from the document.
func (t NFSeTaxes) Sources() map[string]string {
	out := map[string]string{}
	if t.IssRetido != nil {
		out["iss_retido"] = "xml"
	}
	named := []struct {
		key string
		val Amount
	}{
		{"base_calculo", t.BaseCalculo},
		{"aliquota", t.Aliquota},
		{"valor_iss", t.ValorISS},
		{"valor_iss_retido", t.ValorISSRetido},
		{"valor_deducoes", t.ValorDeducoes},
		{"valor_pis", t.ValorPIS},
		{"valor_cofins", t.ValorCOFINS},
		{"valor_inss", t.ValorINSS},
		{"valor_ir", t.ValorIR},
		{"valor_csll", t.ValorCSLL},
		{"outras_retencoes", t.OutrasRetencoes},
		{"desconto_incondicionado", t.DescontoIncondicionado},
		{"desconto_condicionado", t.DescontoCondicionado},
		{"valor_liquido_nfse", t.ValorLiquidoNFSe},
		{"valor_liquido_calculado_politica_b", t.ValorLiquidoCalculado},
		{"valor_liquido_diff_xml_vs_calc", t.ValorLiquidoDiff},
	}
	for _, n := range named {
		if n.val.Valid {
			out[n.key] = "xml"
		}
	}
	out["valor_liquido_divergente"] = "xml"
	return out
}

// NFSeXMLRaw keeps the untouched source strings for audit.
type NFSeXMLRaw struct {
	Numero        string `json:"numero"`
	DataEmissao   string `json:"data_emissao"`
	Competencia   string `json:"competencia"`
	CNPJPrestador string `json:"cnpj_prestador"`
	ValorServicos string `json:"valor_servicos"`
}

type NFSeFlags struct {
	NeedsReview     bool `json:"needs_review"`
	Incomplete      bool `json:"incomplete"`
	MissingCritical bool `json:"missing_critical"`
}

type NFSeValidations struct {
	CNAEVsDescricao CNAEResult `json:"cnae_vs_descricao"`
}

// NFSeItem is one parsed CompNfse with its item-level decision.
type NFSeItem struct {
	Fields        NFSeFields        `json:"fields"`
	Tomador       Party             `json:"tomador"`
	Taxes         NFSeTaxes         `json:"taxes"`
	MissingFields []string          `json:"missing_fields"`
	Confidence    float64           `json:"confidence"`
	Flags         NFSeFlags         `json:"flags"`
	FieldSources  map[string]string `json:"field_sources"`
	TaxSources    map[string]string `json:"tax_sources"`
	XMLRaw        NFSeXMLRaw        `json:"xml_raw"`
	Validations   NFSeValidations   `json:"validations"`
	Decision      Decision          `json:"decision"`
	Reasons       Reasons           `json:"reasons"`
}

type NFSeNormFlags struct {
	MissingCritical        bool `json:"missing_critical"`
	Incomplete             bool `json:"incomplete"`
	NeedsReview            bool `json:"needs_review"`
	HasMinimumFields       bool `json:"has_minimum_fields"`
	HasValidCNAE           bool `json:"has_valid_cnae"`
	HasValidValor          bool `json:"has_valid_valor"`
	ValorLiquidoDivergente bool `json:"valor_liquido_divergente"`
	RequiresReviewCNAE     bool `json:"requires_review_cnae"`
}

// NormalizedNFSeItem wraps a parsed service invoice with its classification.
// Reasons holds the engine reasons followed by the normalizer reasons.
type NormalizedNFSeItem struct {
	NFSeItem
	ServiceClass ServiceClass  `json:"service_class"`
	CNAEGroup    string        `json:"cnae_group"`
	Reasons      Reasons       `json:"reasons"`
	ReviewLevel  ReviewLevel   `json:"review_level"`
	ReviewText   string        `json:"review_text_ptbr"`
	NormFlags    NFSeNormFlags `json:"norm_flags"`
}

type NFSeTaxTotals struct {
	SumValorISS       decimal.Decimal `json:"sum_valor_iss"`
	SumValorISSRetido decimal.Decimal `json:"sum_valor_iss_retido"`
	SumValorPIS       decimal.Decimal `json:"sum_valor_pis"`
	SumValorCOFINS    decimal.Decimal `json:"sum_valor_cofins"`
	SumValorINSS      decimal.Decimal `json:"sum_valor_inss"`
	SumValorIR        decimal.Decimal `json:"sum_valor_ir"`
	SumValorCSLL      decimal.Decimal `json:"sum_valor_csll"`
}

type CNAEStatusCounts struct {
	OK      int `json:"ok"`
	Alert   int `json:"alert"`
	Unknown int `json:"unknown"`
}

func (c *CNAEStatusCounts) Add(s CNAEStatus) {
	switch s {
	case CNAEStatusOK:
		c.OK++
	case CNAEStatusAlert:
		c.Alert++
	default:
		c.Unknown++
	}
}

type NFSeValidationSummary struct {
	CNAEVsDescricao CNAEStatusCounts `json:"cnae_vs_descricao"`
}

// PolicyValorTotal documents how valor_total is sourced.
const PolicyValorTotal = "A (valor_total := ValorServicos)"

// NFSeParseSummary is produced by the parser over all notes.
type NFSeParseSummary struct {
	Count                       int                   `json:"count"`
	DecisionSummary             DecisionCounts        `json:"decision_summary"`
	SumValorTotalPoliticaA      decimal.Decimal       `json:"sum_valor_total_politica_a"`
	CountValorLiquidoInformado  int                   `json:"count_valor_liquido_informado_xml"`
	CountValorLiquidoDivergente int                   `json:"count_valor_liquido_divergente"`
	SumValorLiquidoPoliticaB    decimal.Decimal       `json:"sum_valor_liquido_politica_b"`
	CountLiquidoPoliticaB       int                   `json:"count_liquido_politica_b"`
	MissingValorTotal           int                   `json:"missing_valor_total"`
	MissingCompetencia          int                   `json:"missing_competencia"`
	ItemsWithMissingCritical    int                   `json:"items_with_missing_critical"`
	TaxTotals                   NFSeTaxTotals         `json:"tax_totals"`
	Policy                      string                `json:"policy"`
	ValidationSummary           NFSeValidationSummary `json:"validation_summary"`
}

type NFSeQualitySummary struct {
	MissingCNAE       int `json:"missing_cnae"`
	MissingValor      int `json:"missing_valor"`
	CNAEAlert         int `json:"cnae_alert"`
	LiquidoDivergente int `json:"liquido_divergente"`
}

func (q *NFSeQualitySummary) Merge(o NFSeQualitySummary) {
	q.MissingCNAE += o.MissingCNAE
	q.MissingValor += o.MissingValor
	q.CNAEAlert += o.CNAEAlert
	q.LiquidoDivergente += o.LiquidoDivergente
}

// NFSeNormSummary is produced by the normalizer over all notes.
type NFSeNormSummary struct {
	QualitySummary      NFSeQualitySummary   `json:"quality_summary"`
	ReviewSummary       ReviewCounts         `json:"review_summary"`
	ServiceClassSummary map[ServiceClass]int `json:"service_class_summary"`
}

// NFSeSummary merges parser, normalizer and document summaries.
type NFSeSummary struct {
	NFSeParseSummary
	NFSeNormSummary
	DocumentSummary *NFSeDocumentSummary `json:"document_summary,omitempty"`
	Error           string               `json:"error,omitempty"`
	Details         string               `json:"details,omitempty"`
}

// NFSeParseResult is the parser output for one ABRASF XML.
type NFSeParseResult struct {
	Received bool             `json:"received"`
	Filename string           `json:"filename"`
	SHA256   string           `json:"sha256"`
	Items    []NFSeItem       `json:"items"`
	Summary  NFSeParseSummary `json:"summary"`
	Err      *InputError      `json:"-"`
}

// NFSeDocumentResult is the full single-document pipeline output.
type NFSeDocumentResult struct {
	Received      bool                 `json:"received"`
	Filename      string               `json:"filename"`
	SHA256        string               `json:"sha256"`
	Count         int                  `json:"count"`
	Paging        *Paging              `json:"paging,omitempty"`
	Items         []NormalizedNFSeItem `json:"items"`
	Summary       NFSeSummary          `json:"summary"`
	Document      *NFSeDocument        `json:"document,omitempty"`
	ERPProjection *NFSeERPProjection   `json:"erp_projection,omitempty"`
	Err           *InputError          `json:"-"`
}

// NFSePDFFields are the fields recovered from a PDF text layer.
type NFSePDFFields struct {
	NumeroNota       string `json:"numero_nota"`
	DataEmissao      string `json:"data_emissao"`
	CNPJFornecedor   string `json:"cnpj_fornecedor"`
	ValorTotal       Amount `json:"valor_total"`
	Competencia      string `json:"competencia"`
	DescricaoServico string `json:"descricao_servico"`
}

// NFSePDFResult is the output of the PDF service-invoice flow.
type NFSePDFResult struct {
	Received      bool              `json:"received"`
	Filename      string            `json:"filename"`
	SHA256        string            `json:"sha256"`
	Pages         int               `json:"pages"`
	Method        string            `json:"method"`
	FixApplied    string            `json:"fix_applied,omitempty"`
	PDFHeader     string            `json:"pdf_header,omitempty"`
	Fields        NFSePDFFields     `json:"fields"`
	MissingFields []string          `json:"missing_fields"`
	Confidence    float64           `json:"confidence"`
	Flags         NFSeFlags         `json:"flags"`
	FieldSources  map[string]string `json:"field_sources"`
	Error         string            `json:"error,omitempty"`
	Details       string            `json:"details,omitempty"`
}
