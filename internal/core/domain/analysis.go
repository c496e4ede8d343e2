package domain

import "github.com/shopspring/decimal"

// DocClass is the document-level category assigned from item classes.
type DocClass string

const (
	DocClassMixed   DocClass = "MIXED"
	DocClassUnknown DocClass = "UNKNOWN"
)

// ClassMeta records the class tally behind a document classification.
type ClassMeta struct {
	ClassesSeen   map[string]int     `json:"classes_seen"`
	PctByClass    map[string]float64 `json:"pct_by_class,omitempty"`
	PctMajority   *float64           `json:"pct_majority,omitempty"`
	MajorityClass string             `json:"majority_class,omitempty"`
}

// DocumentVerdict is the part of a document analysis shared by dashboards.
type DocumentVerdict struct {
	DocClass    DocClass    `json:"doc_class"`
	Decision    Decision    `json:"decision"`
	ReviewLevel ReviewLevel `json:"review_level"`
	ReviewText  string      `json:"review_text_ptbr"`
	TopReasons  Reasons     `json:"top_reasons"`
}

type NFeKPIs struct {
	Items                 int    `json:"items"`
	VNF                   Amount `json:"vNF"`
	VProd                 Amount `json:"vProd"`
	DiffItemsVsTotalVProd Amount `json:"diff_items_vs_total_vProd"`
}

type NFeDocumentSummary struct {
	DocumentVerdict
	KPIs NFeKPIs `json:"kpis"`
}

type NFeDocumentQuality struct {
	MissingHeaderKeys     []string  `json:"missing_header_keys"`
	DiffItemsVsTotalVProd Amount    `json:"diff_items_vs_total_vProd"`
	ClassMeta             ClassMeta `json:"class_meta"`
	ItemsReviewHigh       int       `json:"items_review_high"`
	ItemsReviewMedium     int       `json:"items_review_medium"`
	ItemsIncomplete       int       `json:"items_incomplete"`
}

// NFeDocument is the analysis of a whole product invoice.
type NFeDocument struct {
	DocumentType string             `json:"document_type"`
	DocClass     DocClass           `json:"doc_class"`
	Decision     Decision           `json:"decision"`
	ReviewLevel  ReviewLevel        `json:"review_level"`
	ReviewText   string             `json:"review_text_ptbr"`
	Reasons      Reasons            `json:"reasons"`
	NextActions  []string           `json:"next_actions"`
	Header       NFeHeader          `json:"header"`
	Emit         Party              `json:"emit"`
	Dest         Party              `json:"dest"`
	Totals       NFeTotals          `json:"totals"`
	Quality      NFeDocumentQuality `json:"quality"`
}

// NFeERPProjection is the suggested ERP posting for a product invoice.
type NFeERPProjection struct {
	MovementType        string  `json:"movement_type"`
	FilialCode          string  `json:"filial_code"`
	SupplierDoc         string  `json:"supplier_doc"`
	NoteNumber          *int    `json:"note_number"`
	NoteSerie           *int    `json:"note_serie"`
	IssueDatetime       string  `json:"issue_datetime"`
	Quantity            int     `json:"quantity"`
	UnitValue           Amount  `json:"unit_value"`
	TotalValue          Amount  `json:"total_value"`
	ProductCode         string  `json:"product_code"`
	CostCenterSuggested *string `json:"cost_center_suggested"`
	PaymentHint         string  `json:"payment_hint"`
	RMStatusTarget      string  `json:"rm_status_target"`
}

// NFeAnalysis bundles the three outputs of the product-invoice analyzer.
type NFeAnalysis struct {
	Document      NFeDocument
	ERPProjection NFeERPProjection
	Summary       NFeDocumentSummary
}

type NFSeKPIs struct {
	Items        int    `json:"items"`
	ValorBruto   Amount `json:"valor_bruto"`
	ValorLiquido Amount `json:"valor_liquido"`
}

type NFSeDocumentSummary struct {
	DocumentVerdict
	KPIs NFSeKPIs `json:"kpis"`
}

// NFSeDocTotals are the document totals derived from the parse summary.
type NFSeDocTotals struct {
	ValorServicos  Amount `json:"valor_servicos"`
	ValorLiquido   Amount `json:"valor_liquido"`
	ValorISS       Amount `json:"valor_iss"`
	ValorISSRetido Amount `json:"valor_iss_retido"`
	ValorPIS       Amount `json:"valor_pis"`
	ValorCOFINS    Amount `json:"valor_cofins"`
	ValorINSS      Amount `json:"valor_inss"`
	ValorIR        Amount `json:"valor_ir"`
	ValorCSLL      Amount `json:"valor_csll"`
}

// NFSeDocTotalsFromSummary projects the parse summary sums into document totals.
func NFSeDocTotalsFromSummary(s NFSeParseSummary) NFSeDocTotals {
	t := s.TaxTotals
	return NFSeDocTotals{
		ValorServicos:  AmountOf(s.SumValorTotalPoliticaA),
		ValorLiquido:   AmountOf(s.SumValorLiquidoPoliticaB),
		ValorISS:       AmountOf(t.SumValorISS),
		ValorISSRetido: AmountOf(t.SumValorISSRetido),
		ValorPIS:       AmountOf(t.SumValorPIS),
		ValorCOFINS:    AmountOf(t.SumValorCOFINS),
		ValorINSS:      AmountOf(t.SumValorINSS),
		ValorIR:        AmountOf(t.SumValorIR),
		ValorCSLL:      AmountOf(t.SumValorCSLL),
	}
}

type NFSeDocumentQuality struct {
	MissingFields           []string  `json:"missing_fields"`
	DiffLiquidoVsCalculated Amount    `json:"diff_liquido_vs_calculated"`
	ClassMeta               ClassMeta `json:"class_meta"`
	ItemsReviewHigh         int       `json:"items_review_high"`
	ItemsReviewMedium       int       `json:"items_review_medium"`
	ItemsIncomplete         int       `json:"items_incomplete"`
	CNAEAlerts              int       `json:"cnae_alerts"`
}

// NFSeDocument is the analysis of a whole service-invoice file.
type NFSeDocument struct {
	DocumentType string              `json:"document_type"`
	DocClass     DocClass            `json:"doc_class"`
	Decision     Decision            `json:"decision"`
	ReviewLevel  ReviewLevel         `json:"review_level"`
	ReviewText   string              `json:"review_text_ptbr"`
	Reasons      Reasons             `json:"reasons"`
	NextActions  []string            `json:"next_actions"`
	Prestador    Party               `json:"prestador"`
	Tomador      Party               `json:"tomador"`
	Totals       NFSeDocTotals       `json:"totals"`
	Quality      NFSeDocumentQuality `json:"quality"`
}

// NFSeRetencoes lists only withholdings with a non-zero total.
type NFSeRetencoes struct {
	ISSRetido *decimal.Decimal `json:"iss_retido,omitempty"`
	PIS       *decimal.Decimal `json:"pis,omitempty"`
	COFINS    *decimal.Decimal `json:"cofins,omitempty"`
	INSS      *decimal.Decimal `json:"inss,omitempty"`
	IR        *decimal.Decimal `json:"ir,omitempty"`
	CSLL      *decimal.Decimal `json:"csll,omitempty"`
}

// NFSeERPProjection is the suggested ERP posting for a service invoice.
type NFSeERPProjection struct {
	MovementType        string        `json:"movement_type"`
	FilialCode          string        `json:"filial_code"`
	SupplierDoc         string        `json:"supplier_doc"`
	NoteNumber          string        `json:"note_number"`
	Competencia         string        `json:"competencia"`
	IssueDatetime       string        `json:"issue_datetime"`
	ValorBruto          Amount        `json:"valor_bruto"`
	ValorLiquido        Amount        `json:"valor_liquido"`
	ServiceCode         string        `json:"service_code"`
	CostCenterSuggested *string       `json:"cost_center_suggested"`
	PaymentHint         string        `json:"payment_hint"`
	RMStatusTarget      string        `json:"rm_status_target"`
	Retencoes           NFSeRetencoes `json:"retencoes"`
}

// NFSeAnalysis bundles the three outputs of the service-invoice analyzer.
type NFSeAnalysis struct {
	Document      NFSeDocument
	ERPProjection NFSeERPProjection
	Summary       NFSeDocumentSummary
}
