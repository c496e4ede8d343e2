package parser

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/kirillkom/fiscal-doc-analyzer/internal/core/convert"
	"github.com/kirillkom/fiscal-doc-analyzer/internal/core/decision"
	"github.com/kirillkom/fiscal-doc-analyzer/internal/core/domain"
	"github.com/kirillkom/fiscal-doc-analyzer/internal/core/ports"
)

const (
	descricaoDefault   = "servico"
	descricaoHonorario = "honorarios medicos"
	descricaoMaxRunes  = 120
)

var cnaeTags = []string{"CodigoCnae", "CodigoCNAE", "Cnae", "CNAE"}

// NFSeParser reads ABRASF documents and applies the CNAE check and the item decision.
type NFSeParser struct {
	validator ports.CNAEValidator
	engine    *decision.Engine
}

func NewNFSeParser(validator ports.CNAEValidator, engine *decision.Engine) *NFSeParser {
	return &NFSeParser{validator: validator, engine: engine}
}

// Parse returns one item per CompNfse, in document order.
func (p *NFSeParser) Parse(raw []byte, filename string) domain.NFSeParseResult {
	res := domain.NFSeParseResult{
		Filename: filename,
		SHA256:   convert.SHA256Hex(raw),
		Items:    []domain.NFSeItem{},
		Summary:  domain.NFSeParseSummary{Policy: domain.PolicyValorTotal},
	}
	if len(raw) == 0 {
		res.Err = domain.NewInputError(domain.CodeEmptyBody, "")
		return res
	}
	root, err := parseTree(raw)
	if err != nil {
		res.Err = domain.NewInputError(domain.CodeInvalidXML, err.Error())
		return res
	}

	res.Received = true
	acc := newNFSeAccumulator()
	for _, comp := range root.SelfOrAll("CompNfse") {
		item := p.parseComp(comp)
		acc.add(item)
		res.Items = append(res.Items, item)
	}
	res.Summary = acc.summary(len(res.Items))
	return res
}

func (p *NFSeParser) parseComp(comp *element) domain.NFSeItem {
	xmlRaw := domain.NFSeXMLRaw{
		Numero:        comp.FindText("InfNfse/Numero"),
		DataEmissao:   comp.FindText("InfNfse/DataEmissao"),
		Competencia:   comp.FindFirstText("InfNfse/Competencia", "Competencia"),
		CNPJPrestador: comp.FindText("PrestadorServico/IdentificacaoPrestador/Cnpj"),
		ValorServicos: comp.FindText("Servico/Valores/ValorServicos"),
	}
	discriminacao := convert.Text(comp.FindText("Servico/Discriminacao"))

	fields := domain.NFSeFields{
		NumeroNota:       convert.Text(xmlRaw.Numero),
		DataEmissao:      convert.FormatBRDateTime(xmlRaw.DataEmissao),
		CNPJFornecedor:   convert.FormatCNPJ(convert.DigitsOnly(xmlRaw.CNPJPrestador)),
		ValorTotal:       convert.ParsePositive(xmlRaw.ValorServicos),
		Competencia:      convert.FormatCompetencia(xmlRaw.Competencia),
		DescricaoServico: guessDescricao(discriminacao),
		CNAE:             extractCNAE(comp),
	}

	description := discriminacao
	if description == "" {
		description = fields.DescricaoServico
	}
	validation := p.validator.Validate(fields.CNAE, description)

	taxes := extractTaxes(comp)
	p.engine.Reconcile(fields.ValorTotal, &taxes)

	missing := []string{}
	for _, name := range domain.NFSeTrackedFields {
		if !fields.Present(name) {
			missing = append(missing, name)
		}
	}
	missingCritical := false
	for _, name := range domain.NFSeCriticalFields {
		if !fields.Present(name) {
			missingCritical = true
			break
		}
	}
	conf := confidence(len(missing), len(domain.NFSeTrackedFields))

	item := domain.NFSeItem{
		Fields:        fields,
		Tomador:       nfseTomador(comp),
		Taxes:         taxes,
		MissingFields: missing,
		Confidence:    conf,
		Flags: domain.NFSeFlags{
			NeedsReview:     conf < 0.95,
			Incomplete:      len(missing) > 0,
			MissingCritical: missingCritical,
		},
		FieldSources: nfseFieldSources(fields),
		TaxSources:   taxes.Sources(),
		XMLRaw:       xmlRaw,
		Validations:  domain.NFSeValidations{CNAEVsDescricao: validation},
	}
	item.Decision, item.Reasons = p.engine.Decide(item)
	return item
}

func guessDescricao(discriminacao string) string {
	if discriminacao == "" {
		return descricaoDefault
	}
	if strings.Contains(strings.ToUpper(discriminacao), "HONOR") {
		return descricaoHonorario
	}
	resumo := []rune(convert.CollapseSpaces(discriminacao))
	if len(resumo) > descricaoMaxRunes {
		resumo = resumo[:descricaoMaxRunes]
	}
	if s := strings.TrimSpace(string(resumo)); s != "" {
		return s
	}
	return descricaoDefault
}

// extractCNAE prefers the Servico block, then any CNAE-like tag in the note.
func extractCNAE(comp *element) string {
	for _, tag := range cnaeTags {
		if v := convert.DigitsOnly(comp.FindText("Servico/" + tag)); v != "" {
			return v
		}
	}
	for _, tag := range cnaeTags {
		if v := convert.DigitsOnly(comp.FindText(tag)); v != "" {
			return v
		}
	}
	return ""
}

func extractTaxes(comp *element) domain.NFSeTaxes {
	valores := comp.Find("Servico/Valores")
	val := func(name string) domain.Amount {
		return convert.ParseDecimal(valores.Child(name).Text())
	}
	return domain.NFSeTaxes{
		IssRetido:              convert.BoolFlag(valores.Child("IssRetido").Text()),
		BaseCalculo:            val("BaseCalculo"),
		Aliquota:               val("Aliquota"),
		ValorISS:               val("ValorIss"),
		ValorISSRetido:         val("ValorIssRetido"),
		ValorDeducoes:          val("ValorDeducoes"),
		ValorPIS:               val("ValorPis"),
		ValorCOFINS:            val("ValorCofins"),
		ValorINSS:              val("ValorInss"),
		ValorIR:                val("ValorIr"),
		ValorCSLL:              val("ValorCsll"),
		OutrasRetencoes:        val("OutrasRetencoes"),
		DescontoIncondicionado: val("DescontoIncondicionado"),
		DescontoCondicionado:   val("DescontoCondicionado"),
		ValorLiquidoNFSe:       convert.ParseDecimal(comp.FindText("InfNfse/ValorLiquidoNfse")),
	}
}

func nfseTomador(comp *element) domain.Party {
	tomador := comp.Find("TomadorServico")
	if tomador == nil {
		tomador = comp.Find("Tomador")
	}
	if tomador == nil {
		return domain.Party{}
	}
	doc := convert.DigitsOnly(tomador.FindFirstText("CpfCnpj/Cnpj", "CpfCnpj/Cpf"))
	return domain.Party{
		Doc:          doc,
		DocFormatado: convert.FormatDoc(doc),
		Nome:         convert.Text(tomador.FindText("RazaoSocial")),
		UF:           convert.Text(tomador.FindText("Endereco/Uf")),
	}
}

func nfseFieldSources(f domain.NFSeFields) map[string]string {
	out := map[string]string{}
	for _, name := range domain.NFSeTrackedFields {
		if f.Present(name) {
			out[name] = "xml"
		}
	}
	return out
}

type nfseAccumulator struct {
	s domain.NFSeParseSummary
}

func newNFSeAccumulator() *nfseAccumulator {
	return &nfseAccumulator{s: domain.NFSeParseSummary{Policy: domain.PolicyValorTotal}}
}

func (a *nfseAccumulator) add(item domain.NFSeItem) {
	s := &a.s
	s.DecisionSummary.Add(item.Decision)
	s.ValidationSummary.CNAEVsDescricao.Add(item.Validations.CNAEVsDescricao.Status)

	if item.Fields.ValorTotal.Valid {
		s.SumValorTotalPoliticaA = s.SumValorTotalPoliticaA.Add(item.Fields.ValorTotal.Decimal)
	} else {
		s.MissingValorTotal++
	}
	if item.Fields.Competencia == "" {
		s.MissingCompetencia++
	}
	if item.Flags.MissingCritical {
		s.ItemsWithMissingCritical++
	}

	t := item.Taxes
	if t.ValorLiquidoNFSe.Valid {
		s.CountValorLiquidoInformado++
	}
	if t.ValorLiquidoDivergente {
		s.CountValorLiquidoDivergente++
	}
	if t.ValorLiquidoCalculado.Valid {
		s.SumValorLiquidoPoliticaB = s.SumValorLiquidoPoliticaB.Add(t.ValorLiquidoCalculado.Decimal)
		s.CountLiquidoPoliticaB++
	}

	tt := &s.TaxTotals
	tt.SumValorISS = tt.SumValorISS.Add(domain.OrZero(t.ValorISS))
	tt.SumValorISSRetido = tt.SumValorISSRetido.Add(domain.OrZero(t.ValorISSRetido))
	tt.SumValorPIS = tt.SumValorPIS.Add(domain.OrZero(t.ValorPIS))
	tt.SumValorCOFINS = tt.SumValorCOFINS.Add(domain.OrZero(t.ValorCOFINS))
	tt.SumValorINSS = tt.SumValorINSS.Add(domain.OrZero(t.ValorINSS))
	tt.SumValorIR = tt.SumValorIR.Add(domain.OrZero(t.ValorIR))
	tt.SumValorCSLL = tt.SumValorCSLL.Add(domain.OrZero(t.ValorCSLL))
}

func (a *nfseAccumulator) summary(count int) domain.NFSeParseSummary {
	s := a.s
	s.Count = count
	s.SumValorTotalPoliticaA = domain.Round2(s.SumValorTotalPoliticaA)
	s.SumValorLiquidoPoliticaB = domain.Round2(s.SumValorLiquidoPoliticaB)
	for _, sum := range []*decimal.Decimal{
		&s.TaxTotals.SumValorISS, &s.TaxTotals.SumValorISSRetido, &s.TaxTotals.SumValorPIS,
		&s.TaxTotals.SumValorCOFINS, &s.TaxTotals.SumValorINSS, &s.TaxTotals.SumValorIR,
		&s.TaxTotals.SumValorCSLL,
	} {
		*sum = domain.Round2(*sum)
	}
	return s
}
