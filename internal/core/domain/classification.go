package domain

// ProductClass is the business category of an NF-e line item.
type ProductClass string

const (
	ClassMedicamento ProductClass = "MEDICAMENTO"
	ClassMaterial    ProductClass = "MATERIAL_HOSPITALAR"
	ClassGenerico    ProductClass = "GENERICO"
)

// ServiceClass is the business category of an NFS-e.
type ServiceClass string

const (
	ServiceSaude          ServiceClass = "SERVICO_SAUDE"
	ServiceTecnico        ServiceClass = "SERVICO_TECNICO"
	ServiceConsultoria    ServiceClass = "SERVICO_CONSULTORIA"
	ServiceAdministrativo ServiceClass = "SERVICO_ADMINISTRATIVO"
	ServiceManutencao     ServiceClass = "SERVICO_MANUTENCAO"
	ServiceOutros         ServiceClass = "OUTROS"
)

// ServiceClassOrder is the evaluation order of specific service classes.
var ServiceClassOrder = []ServiceClass{
	ServiceSaude,
	ServiceTecnico,
	ServiceConsultoria,
	ServiceAdministrativo,
	ServiceManutencao,
}

type ReviewLevel string

const (
	ReviewLow    ReviewLevel = "LOW"
	ReviewMedium ReviewLevel = "MEDIUM"
	ReviewHigh   ReviewLevel = "HIGH"
)

type Decision string

const (
	DecisionAuto   Decision = "AUTO"
	DecisionReview Decision = "REVIEW"
	DecisionBlock  Decision = "BLOCK"
)

// DecisionCounts is the decision histogram used by summaries.
type DecisionCounts struct {
	Auto   int `json:"auto"`
	Review int `json:"review"`
	Block  int `json:"block"`
}

func (c *DecisionCounts) Add(d Decision) {
	switch d {
	case DecisionAuto:
		c.Auto++
	case DecisionBlock:
		c.Block++
	default:
		c.Review++
	}
}

func (c *DecisionCounts) Merge(o DecisionCounts) {
	c.Auto += o.Auto
	c.Review += o.Review
	c.Block += o.Block
}

// ReviewCounts is the review-level histogram used by summaries.
type ReviewCounts struct {
	High   int `json:"high"`
	Medium int `json:"medium"`
	Low    int `json:"low"`
}

func (c *ReviewCounts) Add(l ReviewLevel) {
	switch l {
	case ReviewHigh:
		c.High++
	case ReviewMedium:
		c.Medium++
	default:
		c.Low++
	}
}

// NF-e item reasons.
const (
	ReasonNCMMissing         Reason = "NCM_MISSING"
	ReasonCFOPMissing        Reason = "CFOP_MISSING"
	ReasonProductCodeMissing Reason = "PRODUCT_CODE_MISSING"
	ReasonProductDescMissing Reason = "PRODUCT_DESC_MISSING"
	ReasonQtyOrPriceMissing  Reason = "QTY_OR_PRICE_MISSING"
	ReasonItemTotalInvalid   Reason = "ITEM_TOTAL_INVALID"

	ReasonMedicamentoByNCM     Reason = "CLASS_MEDICAMENTO_BY_NCM"
	ReasonMedicamentoByKeyword Reason = "CLASS_MEDICAMENTO_BY_KEYWORD"
	ReasonMaterialByNCM        Reason = "CLASS_MATERIAL_BY_NCM"
	ReasonMaterialByKeyword    Reason = "CLASS_MATERIAL_BY_KEYWORD"
	ReasonGenericFallback      Reason = "CLASS_GENERIC_FALLBACK"
)

// NFS-e item reasons.
const (
	ReasonCNAEMissing             Reason = "CNAE_MISSING"
	ReasonValorMissing            Reason = "VALOR_MISSING"
	ReasonCompetenciaMissing      Reason = "COMPETENCIA_MISSING"
	ReasonNumeroNotaMissing       Reason = "NUMERO_NOTA_MISSING"
	ReasonCNPJFornecedorMissing   Reason = "CNPJ_FORNECEDOR_MISSING"
	ReasonDescricaoMissing        Reason = "DESCRICAO_SERVICO_MISSING"
	ReasonValorLiquidoDivergente  Reason = "VALOR_LIQUIDO_DIVERGENTE"
	ReasonValorNegativo           Reason = "VALOR_NEGATIVO"
	ReasonCNAEVsDescricaoAlert    Reason = "CNAE_VS_DESCRICAO_ALERT"
	ReasonCNAEVsDescricaoUnknown  Reason = "CNAE_VS_DESCRICAO_UNKNOWN"
	ReasonServiceOutrosFallback   Reason = "CLASS_OUTROS_FALLBACK"
	ReasonMissingRequiredFields   Reason = "MISSING_REQUIRED_FIELDS"
	ReasonNegativeOrZeroValues    Reason = "NEGATIVE_OR_ZERO_VALUES"
	ReasonTaxInconsistent         Reason = "TAX_INCONSISTENT"
	ReasonCNAEUnknown             Reason = "CNAE_UNKNOWN"
	ReasonCNAEMismatch            Reason = "CNAE_MISMATCH"
	ReasonNetDivergenceAboveLimit Reason = "NET_DIVERGENCE_ABOVE_THRESHOLD"
)

// Document-level reasons.
const (
	ReasonDocNoItems           Reason = "DOC_NO_ITEMS"
	ReasonDocMissingHeaderKeys Reason = "DOC_MISSING_HEADER_KEYS"
	ReasonDocTotalDivergence   Reason = "DOC_TOTAL_DIVERGENCE"
	ReasonDocMixedClasses      Reason = "DOC_ITEMS_MIXED_CLASSES"
	ReasonDocItemsIncomplete   Reason = "DOC_ITEMS_INCOMPLETE"
	ReasonDocCannotClassify    Reason = "DOC_CANNOT_CLASSIFY"
	ReasonDocItemsReviewHigh   Reason = "DOC_ITEMS_HAVE_REVIEW_HIGH"
	ReasonDocItemsReviewMedium Reason = "DOC_ITEMS_HAVE_REVIEW_MEDIUM"
	ReasonDocMissingPrestador  Reason = "DOC_MISSING_PRESTADOR"
	ReasonDocMissingValor      Reason = "DOC_MISSING_VALOR"
	ReasonDocLiquidoDivergent  Reason = "DOC_VALOR_LIQUIDO_DIVERGENTE"
	ReasonDocCNAEAlerts        Reason = "DOC_CNAE_ALERTS"
)

// ServiceReasonByCNAE returns the classification token for a CNAE-table hit.
func ServiceReasonByCNAE(c ServiceClass) Reason {
	return Reason("CLASS_" + serviceShortName(c) + "_BY_CNAE")
}

// ServiceReasonByKeyword returns the classification token for a keyword-table hit.
func ServiceReasonByKeyword(c ServiceClass) Reason {
	return Reason("CLASS_" + serviceShortName(c) + "_BY_KEYWORD")
}

func serviceShortName(c ServiceClass) string {
	switch c {
	case ServiceSaude:
		return "SAUDE"
	case ServiceTecnico:
		return "TECNICO"
	case ServiceConsultoria:
		return "CONSULTORIA"
	case ServiceAdministrativo:
		return "ADMIN"
	case ServiceManutencao:
		return "MANUTENCAO"
	default:
		return "OUTROS"
	}
}
