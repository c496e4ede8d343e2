package normalize

import (
	"reflect"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/kirillkom/fiscal-doc-analyzer/internal/core/domain"
)

func amt(s string) domain.Amount {
	return domain.AmountOf(decimal.RequireFromString(s))
}

func newTestNormalizer() *Normalizer {
	return New(DefaultHeuristics(), domain.DefaultThresholds())
}

func productItem(ncm, desc, q, v, total string) domain.ExtractedNFeItem {
	return domain.ExtractedNFeItem{Item: domain.NFeItem{
		CProd:  "P1",
		XProd:  desc,
		NCM:    ncm,
		CFOP:   "5102",
		QCom:   amt(q),
		VUnCom: amt(v),
		VProd:  amt(total),
	}}
}

func TestClassifyProduct(t *testing.T) {
	n := newTestNormalizer()
	tests := []struct {
		name   string
		ncm    string
		desc   string
		class  domain.ProductClass
		reason domain.Reason
	}{
		{"material ncm", "90183119", "SERINGA 10ML", domain.ClassMaterial, domain.ReasonMaterialByNCM},
		{"medicamento ncm", "30049099", "DIPIRONA 500MG", domain.ClassMedicamento, domain.ReasonMedicamentoByNCM},
		{"ambiguous ncm with material word", "30051090", "Gaze estéril 7,5x7,5", domain.ClassMaterial, domain.ReasonMaterialByKeyword},
		{"ambiguous ncm without material word", "30061000", "PRODUTO X", domain.ClassMedicamento, domain.ReasonMedicamentoByNCM},
		{"material keyword", "", "Luva de procedimento", domain.ClassMaterial, domain.ReasonMaterialByKeyword},
		{"medicamento keyword", "", "AMOXICILINA SUSPENSAO", domain.ClassMedicamento, domain.ReasonMedicamentoByKeyword},
		{"fallback", "84713012", "NOTEBOOK", domain.ClassGenerico, domain.ReasonGenericFallback},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			class, reason := n.ClassifyProduct(tt.ncm, tt.desc)
			if class != tt.class || reason != tt.reason {
				t.Fatalf("expected %s/%s, got %s/%s", tt.class, tt.reason, class, reason)
			}
		})
	}
}

func TestNFeItemCleanIsLow(t *testing.T) {
	got := newTestNormalizer().NFeItem(productItem("30049099", "DIPIRONA 500MG", "10", "2.50", "25.00"))
	if got.Decision != domain.DecisionReview {
		t.Fatalf("expected REVIEW, got %s", got.Decision)
	}
	if got.ReviewLevel != domain.ReviewLow {
		t.Fatalf("expected LOW, got %s", got.ReviewLevel)
	}
	want := domain.Reasons{domain.ReasonMedicamentoByNCM}
	if !reflect.DeepEqual(got.Reasons, want) {
		t.Fatalf("expected %v, got %v", want, got.Reasons)
	}
	if got.SuggestedGroup != string(domain.ClassMedicamento) {
		t.Fatalf("unexpected suggested group %q", got.SuggestedGroup)
	}
	if !got.NormFlags.HasMinimumFiscalKeys || !got.NormFlags.RequiresProductRegistration {
		t.Fatalf("unexpected flags %+v", got.NormFlags)
	}
	if !strings.Contains(got.ReviewText, "MEDICAMENTO") {
		t.Fatalf("unexpected review text %q", got.ReviewText)
	}
}

func TestNFeItemTotalTolerance(t *testing.T) {
	n := newTestNormalizer()
	tests := []struct {
		total   string
		invalid bool
		diff    string
	}{
		{"30.00", false, "0"},
		{"30.05", false, "0.05"},
		{"29.95", false, "-0.05"},
		{"30.06", true, "0.06"},
	}
	for _, tt := range tests {
		got := n.NFeItem(productItem("84713012", "NOTEBOOK", "3", "10.00", tt.total))
		if got.NormFlags.VProdInvalid != tt.invalid {
			t.Fatalf("vProd %s: expected invalid=%v", tt.total, tt.invalid)
		}
		if !got.NormFlags.DiffVProdVsExpected.Decimal.Equal(decimal.RequireFromString(tt.diff)) {
			t.Fatalf("vProd %s: unexpected diff %s", tt.total, got.NormFlags.DiffVProdVsExpected.Decimal)
		}
		if got.Reasons.Has(domain.ReasonItemTotalInvalid) != tt.invalid {
			t.Fatalf("vProd %s: unexpected reasons %v", tt.total, got.Reasons)
		}
		if tt.invalid && got.ReviewLevel != domain.ReviewMedium {
			t.Fatalf("expected MEDIUM, got %s", got.ReviewLevel)
		}
	}
}

func TestNFeItemMissingData(t *testing.T) {
	n := newTestNormalizer()

	in := productItem("", "Luva de procedimento", "0", "1.00", "0")
	in.Item.CProd = ""
	got := n.NFeItem(in)
	want := domain.Reasons{
		domain.ReasonProductCodeMissing,
		domain.ReasonNCMMissing,
		domain.ReasonQtyOrPriceMissing,
		domain.ReasonMaterialByKeyword,
	}
	if !reflect.DeepEqual(got.Reasons, want) {
		t.Fatalf("expected %v, got %v", want, got.Reasons)
	}
	if got.ReviewLevel != domain.ReviewHigh {
		t.Fatalf("expected HIGH, got %s", got.ReviewLevel)
	}
	if got.NormFlags.HasMinimumFiscalKeys {
		t.Fatalf("expected missing fiscal keys")
	}
	if !strings.Contains(got.ReviewText, "NCM/CFOP") {
		t.Fatalf("unexpected review text %q", got.ReviewText)
	}

	qty := n.NFeItem(productItem("90183119", "SERINGA", "5", "0", "10.00"))
	if qty.ReviewLevel != domain.ReviewMedium || !qty.Reasons.Has(domain.ReasonQtyOrPriceMissing) {
		t.Fatalf("expected MEDIUM with QTY_OR_PRICE_MISSING, got %s %v", qty.ReviewLevel, qty.Reasons)
	}

	noQty := n.NFeItem(domain.ExtractedNFeItem{Item: domain.NFeItem{CProd: "X", XProd: "SERINGA", NCM: "9018", CFOP: "5102"}})
	if noQty.NormFlags.ExpectedVProd.Valid || noQty.NormFlags.VProdInvalid {
		t.Fatalf("expected no reconciliation without quantities, got %+v", noQty.NormFlags)
	}
}

func TestNFeItemsSummary(t *testing.T) {
	items := []domain.ExtractedNFeItem{
		productItem("30049099", "DIPIRONA", "1", "1", "1"),
		productItem("", "NOTEBOOK", "1", "1", "1"),
		productItem("90183119", "SERINGA", "2", "1", "5"),
	}
	out, s := newTestNormalizer().NFeItems(items)
	if len(out) != 3 {
		t.Fatalf("expected 3 items, got %d", len(out))
	}
	if s.DecisionSummary.Review != 3 || s.DecisionSummary.Auto != 0 {
		t.Fatalf("unexpected decision summary %+v", s.DecisionSummary)
	}
	if s.QualitySummary.MissingNCM != 1 || s.QualitySummary.ItemTotalInvalid != 1 {
		t.Fatalf("unexpected quality summary %+v", s.QualitySummary)
	}
	if s.ReviewSummary != (domain.ReviewCounts{High: 1, Medium: 1, Low: 1}) {
		t.Fatalf("unexpected review summary %+v", s.ReviewSummary)
	}
}

func serviceItem(cnae, desc string, status domain.CNAEStatus) domain.NFSeItem {
	return domain.NFSeItem{
		Fields: domain.NFSeFields{
			NumeroNota:       "123",
			DataEmissao:      "2024-03-05",
			CNPJFornecedor:   "12345678000190",
			ValorTotal:       amt("1000.00"),
			Competencia:      "2024-03-01",
			DescricaoServico: desc,
			CNAE:             cnae,
		},
		Validations: domain.NFSeValidations{CNAEVsDescricao: domain.CNAEResult{Status: status}},
		Decision:    domain.DecisionAuto,
		Reasons:     domain.Reasons{},
	}
}

func TestClassifyService(t *testing.T) {
	n := newTestNormalizer()
	tests := []struct {
		cnae   string
		desc   string
		class  domain.ServiceClass
		reason domain.Reason
	}{
		{"8630503", "qualquer", domain.ServiceSaude, "CLASS_SAUDE_BY_CNAE"},
		{"6201501", "", domain.ServiceTecnico, "CLASS_TECNICO_BY_CNAE"},
		{"7020400", "", domain.ServiceConsultoria, "CLASS_CONSULTORIA_BY_CNAE"},
		{"8211300", "", domain.ServiceAdministrativo, "CLASS_ADMIN_BY_CNAE"},
		{"3314710", "", domain.ServiceManutencao, "CLASS_MANUTENCAO_BY_CNAE"},
		{"", "Honorários médicos", domain.ServiceSaude, "CLASS_SAUDE_BY_KEYWORD"},
		{"", "Desenvolvimento de software", domain.ServiceTecnico, "CLASS_TECNICO_BY_KEYWORD"},
		{"", "Serviço de limpeza", domain.ServiceAdministrativo, "CLASS_ADMIN_BY_KEYWORD"},
		{"", "Manutenção de equipamentos", domain.ServiceManutencao, "CLASS_MANUTENCAO_BY_KEYWORD"},
		{"9999999", "Locação de salão", domain.ServiceOutros, domain.ReasonServiceOutrosFallback},
	}
	for _, tt := range tests {
		class, reason := n.ClassifyService(tt.cnae, tt.desc)
		if class != tt.class || reason != tt.reason {
			t.Fatalf("%s %q: expected %s/%s, got %s/%s", tt.cnae, tt.desc, tt.class, tt.reason, class, reason)
		}
	}
}

func TestNFSeItemClean(t *testing.T) {
	got := newTestNormalizer().NFSeItem(serviceItem("8630-5/03", "honorarios medicos", domain.CNAEStatusOK))
	if got.ServiceClass != domain.ServiceSaude || got.CNAEGroup != "86" {
		t.Fatalf("unexpected class %s group %q", got.ServiceClass, got.CNAEGroup)
	}
	if got.ReviewLevel != domain.ReviewLow {
		t.Fatalf("expected LOW, got %s", got.ReviewLevel)
	}
	if got.Decision != domain.DecisionAuto {
		t.Fatalf("expected engine decision to be kept, got %s", got.Decision)
	}
	if !reflect.DeepEqual(got.Reasons, domain.Reasons{"CLASS_SAUDE_BY_CNAE"}) {
		t.Fatalf("unexpected reasons %v", got.Reasons)
	}
	if !got.NormFlags.HasMinimumFields || !got.NormFlags.HasValidCNAE || !got.NormFlags.HasValidValor {
		t.Fatalf("unexpected flags %+v", got.NormFlags)
	}
	if !strings.Contains(got.ReviewText, "CNAE de atividade hospitalar") {
		t.Fatalf("unexpected review text %q", got.ReviewText)
	}
}

func TestNFSeItemKeepsEngineReasonsFirst(t *testing.T) {
	in := serviceItem("", "Manutenção de equipamentos", domain.CNAEStatusUnknown)
	in.Fields.NumeroNota = ""
	in.Decision = domain.DecisionReview
	in.Reasons = domain.Reasons{domain.ReasonCNAEUnknown, domain.ReasonMissingRequiredFields}

	got := newTestNormalizer().NFSeItem(in)
	want := domain.Reasons{
		domain.ReasonCNAEUnknown,
		domain.ReasonMissingRequiredFields,
		domain.ReasonNumeroNotaMissing,
		domain.ReasonCNAEMissing,
		"CLASS_MANUTENCAO_BY_KEYWORD",
	}
	if !reflect.DeepEqual(got.Reasons, want) {
		t.Fatalf("expected %v, got %v", want, got.Reasons)
	}
	if got.ReviewLevel != domain.ReviewHigh {
		t.Fatalf("expected HIGH, got %s", got.ReviewLevel)
	}
	if got.CNAEGroup != "" {
		t.Fatalf("expected empty group, got %q", got.CNAEGroup)
	}
	if len(in.Reasons) != 2 {
		t.Fatalf("input reasons were modified: %v", in.Reasons)
	}
}

func TestNFSeItemReviewLevels(t *testing.T) {
	n := newTestNormalizer()

	alert := n.NFSeItem(serviceItem("6201501", "consulta medica", domain.CNAEStatusAlert))
	if alert.ReviewLevel != domain.ReviewMedium || !alert.NormFlags.RequiresReviewCNAE {
		t.Fatalf("expected MEDIUM with CNAE review, got %s %+v", alert.ReviewLevel, alert.NormFlags)
	}
	if !alert.Reasons.Has(domain.ReasonCNAEVsDescricaoAlert) {
		t.Fatalf("unexpected reasons %v", alert.Reasons)
	}

	unknown := n.NFSeItem(serviceItem("9999999", "Locação de salão", domain.CNAEStatusUnknown))
	if !unknown.Reasons.Has(domain.ReasonCNAEVsDescricaoUnknown) || unknown.ServiceClass != domain.ServiceOutros {
		t.Fatalf("unexpected result %s %v", unknown.ServiceClass, unknown.Reasons)
	}
	if unknown.ReviewLevel != domain.ReviewLow {
		t.Fatalf("expected LOW, got %s", unknown.ReviewLevel)
	}

	negative := serviceItem("8630503", "exame", domain.CNAEStatusOK)
	negative.Fields.ValorTotal = amt("-5")
	got := n.NFSeItem(negative)
	if !got.Reasons.Has(domain.ReasonValorNegativo) || got.ReviewLevel != domain.ReviewHigh || got.NormFlags.HasValidValor {
		t.Fatalf("unexpected negative result %s %v", got.ReviewLevel, got.Reasons)
	}

	divergent := serviceItem("8630503", "exame", domain.CNAEStatusOK)
	divergent.Taxes.ValorLiquidoDivergente = true
	got = n.NFSeItem(divergent)
	if !got.Reasons.Has(domain.ReasonValorLiquidoDivergente) || got.ReviewLevel != domain.ReviewHigh {
		t.Fatalf("unexpected divergent result %s %v", got.ReviewLevel, got.Reasons)
	}

	incomplete := serviceItem("8630503", "exame", domain.CNAEStatusOK)
	incomplete.Flags.Incomplete = true
	if lvl := n.NFSeItem(incomplete).ReviewLevel; lvl != domain.ReviewMedium {
		t.Fatalf("expected MEDIUM for incomplete item, got %s", lvl)
	}
}

func TestNFSeItemsSummary(t *testing.T) {
	missing := serviceItem("", "Locação de salão", domain.CNAEStatusUnknown)
	missing.Fields.ValorTotal = domain.Amount{}
	items := []domain.NFSeItem{
		serviceItem("8630503", "exame", domain.CNAEStatusOK),
		serviceItem("8640202", "exame", domain.CNAEStatusAlert),
		missing,
	}
	_, s := newTestNormalizer().NFSeItems(items)
	if s.ServiceClassSummary[domain.ServiceSaude] != 2 || s.ServiceClassSummary[domain.ServiceOutros] != 1 {
		t.Fatalf("unexpected class summary %v", s.ServiceClassSummary)
	}
	want := domain.NFSeQualitySummary{MissingCNAE: 1, MissingValor: 1, CNAEAlert: 1}
	if s.QualitySummary != want {
		t.Fatalf("expected %+v, got %+v", want, s.QualitySummary)
	}
	if s.ReviewSummary != (domain.ReviewCounts{High: 1, Medium: 1, Low: 1}) {
		t.Fatalf("unexpected review summary %+v", s.ReviewSummary)
	}
}
