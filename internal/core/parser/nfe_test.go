package parser

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/kirillkom/fiscal-doc-analyzer/internal/core/domain"
)

const sampleNFe = `<?xml version="1.0" encoding="UTF-8"?>
<nfeProc xmlns="http://www.portalfiscal.inf.br/nfe" versao="4.00">
  <NFe>
    <infNFe Id="NFe35240312345678000190550010000012341000012345" versao="4.00">
      <ide>
        <natOp>VENDA DE MERCADORIA</natOp>
        <serie>1</serie>
        <nNF>1234</nNF>
        <dhEmi>2024-03-05T10:15:00-03:00</dhEmi>
        <tpNF>1</tpNF>
        <tpAmb>1</tpAmb>
      </ide>
      <emit>
        <CNPJ>12345678000190</CNPJ>
        <xNome>Distribuidora Hospitalar</xNome>
        <enderEmit><xMun>Sao Paulo</xMun><UF>SP</UF></enderEmit>
      </emit>
      <dest>
        <CNPJ>98765432000110</CNPJ>
        <xNome>Hospital Central</xNome>
        <enderDest><xMun>Campinas</xMun><UF>SP</UF></enderDest>
      </dest>
      <det nItem="1">
        <prod>
          <cProd>12.345</cProd>
          <xProd>SERINGA DESCARTAVEL 10ML</xProd>
          <NCM>90183119</NCM>
          <CFOP>5102</CFOP>
          <uCom>UN</uCom>
          <qCom>100.0000</qCom>
          <vUnCom>0.5000</vUnCom>
          <vProd>50.00</vProd>
        </prod>
        <imposto>
          <ICMS><ICMS00><CST>00</CST><vBC>50.00</vBC><vICMS>9.00</vICMS></ICMS00></ICMS>
          <PIS><PISAliq><CST>01</CST><vPIS>0.83</vPIS></PISAliq></PIS>
          <COFINS><COFINSAliq><CST>01</CST><vCOFINS>3.80</vCOFINS></COFINSAliq></COFINS>
        </imposto>
      </det>
      <det nItem="2">
        <prod>
          <cProd>DIP500</cProd>
          <xProd>DIPIRONA 500MG COMPRIMIDO</xProd>
          <CFOP>5102</CFOP>
          <qCom>10</qCom>
          <vUnCom>0</vUnCom>
          <vProd>25.00</vProd>
        </prod>
      </det>
      <total>
        <ICMSTot>
          <vProd>75.00</vProd>
          <vNF>75.00</vNF>
          <vST>0.00</vST>
        </ICMSTot>
      </total>
    </infNFe>
  </NFe>
  <protNFe><infProt><chNFe>35240312345678000190550010000012341000012345</chNFe></infProt></protNFe>
</nfeProc>`

func TestParseNFeReadsHeaderPartiesAndItems(t *testing.T) {
	res := ParseNFe([]byte(sampleNFe), "nota.xml")
	if !res.Received {
		t.Fatalf("expected received, got error %v", res.Err)
	}
	if res.Header.ChaveNFe != "35240312345678000190550010000012341000012345" {
		t.Fatalf("unexpected chave: %q", res.Header.ChaveNFe)
	}
	if res.Header.Numero == nil || *res.Header.Numero != 1234 {
		t.Fatalf("expected numero 1234, got %v", res.Header.Numero)
	}
	if res.Header.DataEmissao != "05/03/2024 10:15:00" {
		t.Fatalf("unexpected data_emissao: %q", res.Header.DataEmissao)
	}
	if res.Emit.DocFormatado != "12.345.678/0001-90" || res.Dest.UF != "SP" {
		t.Fatalf("unexpected parties: %+v %+v", res.Emit, res.Dest)
	}
	if len(res.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(res.Items))
	}

	first := res.Items[0]
	if first.Item.CProd != "12345" {
		t.Fatalf("expected sanitized product code, got %q", first.Item.CProd)
	}
	if first.Item.ICMSTipo != "ICMS00" || first.Item.PISTipo != "PISAliq" || first.Item.COFINSCST != "01" {
		t.Fatalf("unexpected tax groups: %+v", first.Item)
	}
	if first.Confidence != 1 || first.Flags.Incomplete {
		t.Fatalf("expected complete first item, got %+v", first)
	}
}

func TestParseNFeTreatsZeroAsMissing(t *testing.T) {
	res := ParseNFe([]byte(sampleNFe), "nota.xml")
	second := res.Items[1]
	want := []string{"NCM", "vUnCom"}
	if len(second.MissingFields) != len(want) {
		t.Fatalf("expected missing %v, got %v", want, second.MissingFields)
	}
	for i := range want {
		if second.MissingFields[i] != want[i] {
			t.Fatalf("expected missing %v, got %v", want, second.MissingFields)
		}
	}
	if second.Confidence != 0.71 {
		t.Fatalf("expected confidence 0.71, got %v", second.Confidence)
	}
	if res.Summary.ItemsIncomplete != 1 {
		t.Fatalf("expected 1 incomplete item, got %d", res.Summary.ItemsIncomplete)
	}
}

func TestParseNFeSummaryDiff(t *testing.T) {
	res := ParseNFe([]byte(sampleNFe), "nota.xml")
	if !res.Summary.SumItemsVProd.Decimal.Equal(decimal.RequireFromString("75")) {
		t.Fatalf("unexpected sum: %v", res.Summary.SumItemsVProd)
	}
	if !res.Summary.DiffItemsVsTotalVProd.Valid || !res.Summary.DiffItemsVsTotalVProd.Decimal.IsZero() {
		t.Fatalf("expected zero diff, got %v", res.Summary.DiffItemsVsTotalVProd)
	}
}

func TestParseNFeInputErrors(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		code string
	}{
		{name: "empty", raw: "", code: domain.CodeEmptyBody},
		{name: "broken xml", raw: "<nfeProc><NFe>", code: domain.CodeInvalidXML},
		{name: "no infNFe", raw: "<root><x>1</x></root>", code: domain.CodeInvalidXML},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			res := ParseNFe([]byte(tc.raw), "x.xml")
			if res.Received {
				t.Fatalf("expected received=false")
			}
			if res.Err == nil || res.Err.Code != tc.code {
				t.Fatalf("expected %q, got %v", tc.code, res.Err)
			}
		})
	}
}

func TestParseNFeAccessKeyFromIdAttribute(t *testing.T) {
	raw := `<NFe><infNFe Id="NFe35240312345678000190550010000012341000012345"><ide><nNF>7</nNF></ide></infNFe></NFe>`
	res := ParseNFe([]byte(raw), "x.xml")
	if res.Header.ChaveNFe != "35240312345678000190550010000012341000012345" {
		t.Fatalf("unexpected chave: %q", res.Header.ChaveNFe)
	}
	if len(res.Items) != 0 {
		t.Fatalf("expected no items, got %d", len(res.Items))
	}
	if res.Summary.DiffItemsVsTotalVProd.Valid {
		t.Fatalf("expected absent diff without totals")
	}
}

func TestParseNFeLatin1Encoding(t *testing.T) {
	raw := append([]byte(`<?xml version="1.0" encoding="ISO-8859-1"?><NFe><infNFe><ide><natOp>DEVOLU`), 0xC7, 0xC3, 'O')
	raw = append(raw, []byte(`</natOp></ide></infNFe></NFe>`)...)
	res := ParseNFe(raw, "latin1.xml")
	if !res.Received {
		t.Fatalf("expected received, got %v", res.Err)
	}
	if res.Header.NaturezaOperacao != "DEVOLUÇÃO" {
		t.Fatalf("unexpected natOp: %q", res.Header.NaturezaOperacao)
	}
}

func TestPageClampsAndSlices(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}
	got, paging := Page(items, 2, 2)
	if len(got) != 2 || got[0] != 3 {
		t.Fatalf("unexpected page: %v", got)
	}
	if paging.Pages != 3 || paging.CountTotal != 5 || paging.CountPage != 2 {
		t.Fatalf("unexpected paging: %+v", paging)
	}

	got, paging = Page(items, 0, 1000)
	if paging.Page != 1 || paging.PageSize != MaxPageSize || len(got) != 5 {
		t.Fatalf("expected clamped paging, got %+v", paging)
	}

	got, paging = Page(items, 9, 2)
	if len(got) != 0 || paging.CountPage != 0 {
		t.Fatalf("expected empty page past the end, got %v", got)
	}

	got, paging = Page([]int{1, 2, 3}, 1<<62, 4)
	if len(got) != 0 || paging.CountTotal != 3 || paging.Pages != 1 {
		t.Fatalf("expected empty page for huge page number, got %v %+v", got, paging)
	}
	got, _ = Page(items, int(^uint(0)>>1), MaxPageSize)
	if len(got) != 0 {
		t.Fatalf("expected empty page at max int, got %v", got)
	}
}
