package domain

// NFeHeader identifies a product invoice.
type NFeHeader struct {
	ChaveNFe         string `json:"chave_nfe"`
	Numero           *int   `json:"numero"`
	Serie            *int   `json:"serie"`
	DataEmissao      string `json:"data_emissao"`
	NaturezaOperacao string `json:"natureza_operacao"`
	TipoNF           *int   `json:"tipo_nf"`
	Ambiente         *int   `json:"ambiente"`
}

// Party is an invoice issuer, recipient, provider or taker.
type Party struct {
	Doc          string `json:"doc"`
	DocFormatado string `json:"doc_formatado"`
	Nome         string `json:"nome"`
	UF           string `json:"uf,omitempty"`
	Municipio    string `json:"municipio,omitempty"`
}

// NFeTotals mirrors the ICMSTot block.
type NFeTotals struct {
	VNF     Amount `json:"vNF"`
	VProd   Amount `json:"vProd"`
	VDesc   Amount `json:"vDesc"`
	VFrete  Amount `json:"vFrete"`
	VOutro  Amount `json:"vOutro"`
	VICMS   Amount `json:"vICMS"`
	VICMSST Amount `json:"vICMSST"`
	VIPI    Amount `json:"vIPI"`
	VPIS    Amount `json:"vPIS"`
	VCOFINS Amount `json:"vCOFINS"`
}

// NFeItem is one raw det entry.
type NFeItem struct {
	NItem  *int   `json:"nItem"`
	CProd  string `json:"cProd"`
	XProd  string `json:"xProd"`
	NCM    string `json:"NCM"`
	CFOP   string `json:"CFOP"`
	UCom   string `json:"uCom"`
	QCom   Amount `json:"qCom"`
	VUnCom Amount `json:"vUnCom"`
	VProd  Amount `json:"vProd"`

	ICMSTipo string `json:"icms_tipo"`
	CST      string `json:"cst"`
	CSOSN    string `json:"csosn"`
	VBC      Amount `json:"vBC"`
	VICMS    Amount `json:"vICMS"`

	PISTipo    string `json:"pis_tipo"`
	PISCST     string `json:"pis_cst"`
	VPIS       Amount `json:"vPIS"`
	COFINSTipo string `json:"cofins_tipo"`
	COFINSCST  string `json:"cofins_cst"`
	VCOFINS    Amount `json:"vCOFINS"`
}

// NFeTrackedFields drives confidence scoring for product items.
var NFeTrackedFields = []string{"cProd", "xProd", "NCM", "CFOP", "qCom", "vUnCom", "vProd"}

type ItemFlags struct {
	Incomplete bool `json:"incomplete"`
}

// ExtractedNFeItem is a parsed item with its extraction quality.
type ExtractedNFeItem struct {
	Item          NFeItem           `json:"item"`
	MissingFields []string          `json:"missing_fields"`
	Confidence    float64           `json:"confidence"`
	Flags         ItemFlags         `json:"flags"`
	FieldSources  map[string]string `json:"field_sources"`
}

type NFeNormFlags struct {
	ExpectedVProd               Amount `json:"expected_vProd"`
	DiffVProdVsExpected         Amount `json:"diff_vProd_vs_expected"`
	VProdInvalid                bool   `json:"vProd_invalid"`
	HasMinimumFiscalKeys        bool   `json:"has_minimum_fiscal_keys"`
	RequiresProductRegistration bool   `json:"requires_product_registration"`
}

// NormalizedNFeItem wraps an extracted item with its classification.
type NormalizedNFeItem struct {
	ExtractedNFeItem
	ProductClass   ProductClass `json:"product_class"`
	SuggestedGroup string       `json:"suggested_group"`
	Decision       Decision     `json:"decision"`
	Reasons        Reasons      `json:"reasons"`
	ReviewLevel    ReviewLevel  `json:"review_level"`
	ReviewText     string       `json:"review_text_ptbr"`
	NormFlags      NFeNormFlags `json:"norm_flags"`
}

// NFeParseSummary is produced by the parser over all items.
type NFeParseSummary struct {
	CountItems            int    `json:"count_items"`
	ItemsIncomplete       int    `json:"items_incomplete"`
	SumItemsVProd         Amount `json:"sum_items_vProd"`
	TotalVProdXML         Amount `json:"total_vProd_xml"`
	DiffItemsVsTotalVProd Amount `json:"diff_items_vs_total_vProd"`
}

type NFeQualitySummary struct {
	MissingNCM       int `json:"missing_ncm"`
	MissingCFOP      int `json:"missing_cfop"`
	ItemTotalInvalid int `json:"item_total_invalid"`
}

func (q *NFeQualitySummary) Merge(o NFeQualitySummary) {
	q.MissingNCM += o.MissingNCM
	q.MissingCFOP += o.MissingCFOP
	q.ItemTotalInvalid += o.ItemTotalInvalid
}

// NFeNormSummary is produced by the normalizer over all items.
type NFeNormSummary struct {
	DecisionSummary DecisionCounts    `json:"decision_summary"`
	QualitySummary  NFeQualitySummary `json:"quality_summary"`
	ReviewSummary   ReviewCounts      `json:"review_summary"`
}

// NFeSummary merges parser, normalizer and document summaries.
type NFeSummary struct {
	NFeParseSummary
	NFeNormSummary
	DocumentSummary *NFeDocumentSummary `json:"document_summary,omitempty"`
	Error           string              `json:"error,omitempty"`
	Details         string              `json:"details,omitempty"`
}

// NFeParseResult is the parser output for one XML document.
type NFeParseResult struct {
	Received bool               `json:"received"`
	Filename string             `json:"filename"`
	SHA256   string             `json:"sha256"`
	Header   NFeHeader          `json:"header"`
	Emit     Party              `json:"emit"`
	Dest     Party              `json:"dest"`
	Totals   NFeTotals          `json:"totals"`
	Items    []ExtractedNFeItem `json:"items"`
	Summary  NFeParseSummary    `json:"summary"`
	Err      *InputError        `json:"-"`
}

// NFeDocumentResult is the full single-document pipeline output.
type NFeDocumentResult struct {
	Received      bool                `json:"received"`
	Filename      string              `json:"filename"`
	SHA256        string              `json:"sha256"`
	Count         int                 `json:"count"`
	Paging        *Paging             `json:"paging,omitempty"`
	Header        NFeHeader           `json:"header"`
	Emit          Party               `json:"emit"`
	Dest          Party               `json:"dest"`
	Totals        NFeTotals           `json:"totals"`
	Items         []NormalizedNFeItem `json:"items"`
	Summary       NFeSummary          `json:"summary"`
	Document      *NFeDocument        `json:"document,omitempty"`
	ERPProjection *NFeERPProjection   `json:"erp_projection,omitempty"`
	Err           *InputError         `json:"-"`
}

// Paging describes a slice of an item list.
type Paging struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	Pages      int `json:"pages"`
	CountTotal int `json:"count_total"`
	CountPage  int `json:"count_page"`
}
