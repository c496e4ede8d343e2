package pipeline

import (
	"strconv"
	"strings"

	"github.com/kirillkom/fiscal-doc-analyzer/internal/core/domain"
)

// NFeColumns is the item export layout.
var NFeColumns = []string{
	"nItem", "cProd", "xProd", "NCM", "CFOP", "uCom", "qCom", "vUnCom", "vProd",
	"icms_tipo", "cst", "csosn", "vBC", "vICMS",
	"pis_tipo", "pis_cst", "vPIS", "cofins_tipo", "cofins_cst", "vCOFINS",
	"confidence", "missing_fields", "product_class", "suggested_group", "decision", "reasons",
}

// NFeBatchPrefix is prepended to NFeColumns for archive exports.
var NFeBatchPrefix = []string{
	"batch_file", "file", "chave_nfe", "numero", "serie", "data_emissao", "natureza_operacao",
}

// NFSeColumns is the note export layout.
var NFSeColumns = []string{
	"numero_nota", "data_emissao", "cnpj_fornecedor", "competencia", "cnae",
	"cnae_vs_descricao_status", "cnae_vs_descricao_reason", "cnae_vs_descricao_label", "cnae_vs_descricao_severity",
	"valor_total", "descricao_servico",
	"iss_retido", "base_calculo", "aliquota", "valor_iss", "valor_iss_retido", "valor_deducoes",
	"valor_pis", "valor_cofins", "valor_inss", "valor_ir", "valor_csll", "outras_retencoes",
	"desconto_incondicionado", "desconto_condicionado", "valor_liquido_nfse", "valor_liquido_calculado_politica_b",
	"decision", "reasons",
}

// NFeTable renders one row per item.
func NFeTable(items []domain.NormalizedNFeItem) ([]string, [][]string) {
	rows := make([][]string, 0, len(items))
	for _, it := range items {
		rows = append(rows, nfeRow(it))
	}
	return NFeColumns, rows
}

// NFeBatchTable renders one row per item across every file of an archive.
func NFeBatchTable(batchName string, files []domain.NFeBatchFile) ([]string, [][]string) {
	header := append(append([]string{}, NFeBatchPrefix...), NFeColumns...)
	var rows [][]string
	for _, f := range files {
		h := f.Header
		prefix := []string{batchName, f.File, h.ChaveNFe, intCell(h.Numero), intCell(h.Serie), h.DataEmissao, h.NaturezaOperacao}
		for _, it := range f.Items {
			rows = append(rows, append(append([]string{}, prefix...), nfeRow(it)...))
		}
	}
	return header, rows
}

func nfeRow(n domain.NormalizedNFeItem) []string {
	it := n.Item
	return []string{
		intCell(it.NItem), it.CProd, it.XProd, it.NCM, it.CFOP, it.UCom,
		domain.FormatAmount(it.QCom), domain.FormatAmount(it.VUnCom), domain.FormatAmount(it.VProd),
		it.ICMSTipo, it.CST, it.CSOSN, domain.FormatAmount(it.VBC), domain.FormatAmount(it.VICMS),
		it.PISTipo, it.PISCST, domain.FormatAmount(it.VPIS),
		it.COFINSTipo, it.COFINSCST, domain.FormatAmount(it.VCOFINS),
		strconv.FormatFloat(n.Confidence, 'f', -1, 64),
		strings.Join(n.MissingFields, ","),
		string(n.ProductClass),
		n.SuggestedGroup,
		string(n.Decision),
		strings.Join(n.Reasons.Strings(), "|"),
	}
}

// NFSeTable renders one row per note. Decision and reasons are the item engine's.
func NFSeTable(items []domain.NormalizedNFSeItem) ([]string, [][]string) {
	rows := make([][]string, 0, len(items))
	for _, n := range items {
		f := n.Fields
		t := n.Taxes
		v := n.Validations.CNAEVsDescricao
		rows = append(rows, []string{
			f.NumeroNota, f.DataEmissao, f.CNPJFornecedor, f.Competencia, f.CNAE,
			string(v.Status), v.Reason, v.RuleLabel, v.Severity,
			domain.FormatAmount(f.ValorTotal), f.DescricaoServico,
			intCell(t.IssRetido),
			domain.FormatAmount(t.BaseCalculo), domain.FormatAmount(t.Aliquota),
			domain.FormatAmount(t.ValorISS), domain.FormatAmount(t.ValorISSRetido), domain.FormatAmount(t.ValorDeducoes),
			domain.FormatAmount(t.ValorPIS), domain.FormatAmount(t.ValorCOFINS), domain.FormatAmount(t.ValorINSS),
			domain.FormatAmount(t.ValorIR), domain.FormatAmount(t.ValorCSLL), domain.FormatAmount(t.OutrasRetencoes),
			domain.FormatAmount(t.DescontoIncondicionado), domain.FormatAmount(t.DescontoCondicionado),
			domain.FormatAmount(t.ValorLiquidoNFSe), domain.FormatAmount(t.ValorLiquidoCalculado),
			string(n.Decision),
			strings.Join(n.NFSeItem.Reasons.Strings(), "|"),
		})
	}
	return NFSeColumns, rows
}

func intCell(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}
