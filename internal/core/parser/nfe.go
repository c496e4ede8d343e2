// Package parser turns fiscal XML into typed records. Parsers never fail:
// input problems come back as a received=false result and field problems as
// missing fields.
package parser

import (
	"github.com/shopspring/decimal"

	"github.com/kirillkom/fiscal-doc-analyzer/internal/core/convert"
	"github.com/kirillkom/fiscal-doc-analyzer/internal/core/domain"
)

const accessKeyDigits = 44

// ParseNFe parses one NF-e (bare NFe or nfeProc envelope).
func ParseNFe(raw []byte, filename string) domain.NFeParseResult {
	res := domain.NFeParseResult{
		Filename: filename,
		SHA256:   convert.SHA256Hex(raw),
		Items:    []domain.ExtractedNFeItem{},
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
	infNFe := root.Find("infNFe")
	if root.name == "infNFe" {
		infNFe = root
	}
	if infNFe == nil {
		res.Err = domain.NewInputError(domain.CodeInvalidXML, "infNFe element not found")
		return res
	}

	res.Received = true
	res.Header = nfeHeader(root, infNFe)
	res.Emit = nfeParty(infNFe, "emit")
	res.Dest = nfeParty(infNFe, "dest")
	res.Totals = nfeTotals(infNFe)

	sum := decimal.Zero
	for _, det := range infNFe.SelfOrAll("det") {
		item := nfeItem(det)
		missing := missingNFeFields(item)
		if item.VProd.Valid {
			sum = sum.Add(item.VProd.Decimal)
		}
		if len(missing) > 0 {
			res.Summary.ItemsIncomplete++
		}
		res.Items = append(res.Items, domain.ExtractedNFeItem{
			Item:          item,
			MissingFields: missing,
			Confidence:    confidence(len(missing), len(domain.NFeTrackedFields)),
			Flags:         domain.ItemFlags{Incomplete: len(missing) > 0},
			FieldSources:  nfeFieldSources(item),
		})
	}

	res.Summary.CountItems = len(res.Items)
	res.Summary.SumItemsVProd = domain.AmountOf(domain.Round2(sum))
	res.Summary.TotalVProdXML = res.Totals.VProd
	if res.Totals.VProd.Valid {
		res.Summary.DiffItemsVsTotalVProd = domain.AmountOf(domain.Round2(sum.Sub(res.Totals.VProd.Decimal)))
	}
	return res
}

func nfeHeader(root, infNFe *element) domain.NFeHeader {
	ide := infNFe.Child("ide")
	return domain.NFeHeader{
		ChaveNFe:         accessKey(root, infNFe),
		Numero:           convert.ParseIntLoose(ide.FindText("nNF")),
		Serie:            convert.ParseIntLoose(ide.FindText("serie")),
		DataEmissao:      convert.FormatBRDateTime(ide.FindFirstText("dhEmi", "dEmi")),
		NaturezaOperacao: convert.Text(ide.FindText("natOp")),
		TipoNF:           convert.ParseIntLoose(ide.FindText("tpNF")),
		Ambiente:         convert.ParseIntLoose(ide.FindText("tpAmb")),
	}
}

// accessKey prefers the authorization protocol key, then the infNFe Id attribute.
func accessKey(root, infNFe *element) string {
	if ch := convert.DigitsOnly(root.FindText("protNFe/infProt/chNFe")); ch != "" {
		return ch
	}
	digits := convert.DigitsOnly(infNFe.Attr("Id"))
	if len(digits) >= accessKeyDigits {
		return digits[len(digits)-accessKeyDigits:]
	}
	return ""
}

func nfeParty(infNFe *element, kind string) domain.Party {
	p := infNFe.Child(kind)
	if p == nil {
		return domain.Party{}
	}
	addr := p.Child("enderEmit")
	if kind == "dest" {
		addr = p.Child("enderDest")
	}
	doc := convert.DigitsOnly(p.Child("CNPJ").Text())
	if doc == "" {
		doc = convert.DigitsOnly(p.Child("CPF").Text())
	}
	return domain.Party{
		Doc:          doc,
		DocFormatado: convert.FormatDoc(doc),
		Nome:         convert.Text(p.Child("xNome").Text()),
		UF:           convert.Text(addr.Child("UF").Text()),
		Municipio:    convert.Text(addr.Child("xMun").Text()),
	}
}

func nfeTotals(infNFe *element) domain.NFeTotals {
	tot := infNFe.Find("total/ICMSTot")
	val := func(name string) domain.Amount {
		return convert.ParseDecimal(tot.Child(name).Text())
	}
	return domain.NFeTotals{
		VNF:     val("vNF"),
		VProd:   val("vProd"),
		VDesc:   val("vDesc"),
		VFrete:  val("vFrete"),
		VOutro:  val("vOutro"),
		VICMS:   val("vICMS"),
		VICMSST: val("vST"),
		VIPI:    val("vIPI"),
		VPIS:    val("vPIS"),
		VCOFINS: val("vCOFINS"),
	}
}

func nfeItem(det *element) domain.NFeItem {
	prod := det.Child("prod")
	item := domain.NFeItem{
		NItem:  convert.ParseIntLoose(det.Attr("nItem")),
		CProd:  convert.SanitizeProductCode(prod.Child("cProd").Text()),
		XProd:  convert.Text(prod.Child("xProd").Text()),
		NCM:    convert.Text(prod.Child("NCM").Text()),
		CFOP:   convert.Text(prod.Child("CFOP").Text()),
		UCom:   convert.Text(prod.Child("uCom").Text()),
		QCom:   convert.ParseDecimal(prod.Child("qCom").Text()),
		VUnCom: convert.ParseDecimal(prod.Child("vUnCom").Text()),
		VProd:  convert.ParseDecimal(prod.Child("vProd").Text()),
	}

	imposto := det.Child("imposto")
	// The first child of ICMS/PIS/COFINS is the tax-situation group (ICMS00, PISAliq, ...).
	if g := imposto.Child("ICMS").FirstChild(); g != nil {
		item.ICMSTipo = g.name
		item.CST = g.Child("CST").Text()
		item.CSOSN = g.Child("CSOSN").Text()
		item.VBC = convert.ParseDecimal(g.Child("vBC").Text())
		item.VICMS = convert.ParseDecimal(g.Child("vICMS").Text())
	}
	if g := imposto.Child("PIS").FirstChild(); g != nil {
		item.PISTipo = g.name
		item.PISCST = g.Child("CST").Text()
		item.VPIS = convert.ParseDecimal(g.Child("vPIS").Text())
	}
	if g := imposto.Child("COFINS").FirstChild(); g != nil {
		item.COFINSTipo = g.name
		item.COFINSCST = g.Child("CST").Text()
		item.VCOFINS = convert.ParseDecimal(g.Child("vCOFINS").Text())
	}
	return item
}

// missingNFeFields treats empty text and zero amounts as missing.
func missingNFeFields(it domain.NFeItem) []string {
	present := map[string]bool{
		"cProd":  it.CProd != "",
		"xProd":  it.XProd != "",
		"NCM":    it.NCM != "",
		"CFOP":   it.CFOP != "",
		"qCom":   domain.NonZero(it.QCom),
		"vUnCom": domain.NonZero(it.VUnCom),
		"vProd":  domain.NonZero(it.VProd),
	}
	missing := []string{}
	for _, k := range domain.NFeTrackedFields {
		if !present[k] {
			missing = append(missing, k)
		}
	}
	return missing
}

func nfeFieldSources(it domain.NFeItem) map[string]string {
	fields := []struct {
		key     string
		present bool
	}{
		{"nItem", it.NItem != nil},
		{"cProd", it.CProd != ""},
		{"xProd", it.XProd != ""},
		{"NCM", it.NCM != ""},
		{"CFOP", it.CFOP != ""},
		{"uCom", it.UCom != ""},
		{"qCom", it.QCom.Valid},
		{"vUnCom", it.VUnCom.Valid},
		{"vProd", it.VProd.Valid},
		{"icms_tipo", it.ICMSTipo != ""},
		{"cst", it.CST != ""},
		{"csosn", it.CSOSN != ""},
		{"vBC", it.VBC.Valid},
		{"vICMS", it.VICMS.Valid},
		{"pis_tipo", it.PISTipo != ""},
		{"pis_cst", it.PISCST != ""},
		{"vPIS", it.VPIS.Valid},
		{"cofins_tipo", it.COFINSTipo != ""},
		{"cofins_cst", it.COFINSCST != ""},
		{"vCOFINS", it.VCOFINS.Valid},
	}
	out := make(map[string]string, len(fields))
	for _, f := range fields {
		if f.present {
			out[f.key] = "xml"
		}
	}
	return out
}

// confidence is 1 - missing/tracked rounded to two places.
func confidence(missing, tracked int) float64 {
	if tracked == 0 {
		return 0
	}
	return convert.Round2(1 - float64(missing)/float64(tracked))
}
