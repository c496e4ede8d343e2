package batch

import (
	"archive/zip"
	"bytes"
	"context"
	"testing"

	"github.com/kirillkom/fiscal-doc-analyzer/internal/core/analyzer"
	"github.com/kirillkom/fiscal-doc-analyzer/internal/core/decision"
	"github.com/kirillkom/fiscal-doc-analyzer/internal/core/domain"
	"github.com/kirillkom/fiscal-doc-analyzer/internal/core/normalize"
	"github.com/kirillkom/fiscal-doc-analyzer/internal/core/parser"
	"github.com/kirillkom/fiscal-doc-analyzer/internal/core/pipeline"
)

const batchNFe = `<NFe><infNFe Id="NFe35240312345678000190550010000012341000012345">
  <ide><nNF>10</nNF><serie>1</serie><dhEmi>2024-03-05T10:15:00-03:00</dhEmi><natOp>VENDA</natOp></ide>
  <emit><CNPJ>12345678000190</CNPJ></emit>
  <det nItem="1"><prod><cProd>A1</cProd><xProd>SERINGA 10ML</xProd><NCM>90183119</NCM><CFOP>5102</CFOP>
    <qCom>10</qCom><vUnCom>1.00</vUnCom><vProd>10.00</vProd></prod></det>
  <total><ICMSTot><vProd>10.00</vProd><vNF>12.50</vNF></ICMSTot></total>
</infNFe></NFe>`

const batchNFSe = `<CompNfse><Nfse><InfNfse>
  <Numero>77</Numero>
  <Competencia>2024-03-01</Competencia>
  <Servico><Valores><ValorServicos>500.00</ValorServicos></Valores>
    <CodigoCnae>8630503</CodigoCnae><Discriminacao>Consulta medica</Discriminacao></Servico>
  <PrestadorServico><IdentificacaoPrestador><Cnpj>12345678000190</Cnpj></IdentificacaoPrestador></PrestadorServico>
</InfNfse></Nfse></CompNfse>`

type entry struct {
	name string
	body string
}

func buildZip(t *testing.T, entries ...entry) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, e := range entries {
		w, err := zw.Create(e.name)
		if err != nil {
			t.Fatalf("create %s: %v", e.name, err)
		}
		if _, err := w.Write([]byte(e.body)); err != nil {
			t.Fatalf("write %s: %v", e.name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	return buf.Bytes()
}

type metricsFake struct {
	files []string
}

func (m *metricsFake) ObserveDocument(string, string, string) {}
func (m *metricsFake) ObserveItemDecision(string, string)     {}
func (m *metricsFake) ObserveCNAEMatch(string)                {}
func (m *metricsFake) ObserveBatchFile(kind, outcome string) {
	m.files = append(m.files, kind+":"+outcome)
}

type okValidator struct{}

func (okValidator) Validate(string, string) domain.CNAEResult {
	return domain.CNAEResult{Status: domain.CNAEStatusOK, RuleLabel: "saude"}
}

func newProcessor(limits domain.BatchLimits, m *metricsFake) *Processor {
	n := normalize.New(normalize.DefaultHeuristics(), domain.DefaultThresholds())
	a := analyzer.New(analyzer.DefaultConfig())
	p := parser.NewNFSeParser(okValidator{}, decision.NewEngine(domain.DefaultThresholds()))
	return NewProcessor(
		pipeline.NewNFePipeline(n, a, nil),
		pipeline.NewNFSePipeline(p, n, a, nil, nil),
		limits,
		nil,
		m,
	)
}

func TestNFeBatchIsolatesBrokenFiles(t *testing.T) {
	m := &metricsFake{}
	proc := newProcessor(domain.DefaultBatchLimits(), m)
	raw := buildZip(t,
		entry{"notas/a.xml", batchNFe},
		entry{"notas/broken.XML", "<NFe>"},
		entry{"leia-me.txt", "ignored"},
		entry{"__MACOSX/notas/._a.xml", "junk"},
		entry{"notas/b.xml", batchNFe},
	)

	res := proc.NFe(context.Background(), raw, "lote.zip")
	if !res.Received {
		t.Fatalf("expected received, got %+v", res.Errors)
	}
	if res.CountFilesOK != 2 || res.CountFilesError != 1 {
		t.Fatalf("expected 2 ok and 1 error, got %d/%d", res.CountFilesOK, res.CountFilesError)
	}
	if res.Errors[0].File != "notas/broken.XML" || res.Errors[0].Error != domain.CodeParseFailed {
		t.Fatalf("unexpected error record %+v", res.Errors[0])
	}
	if res.Errors[0].Details == "" {
		t.Fatalf("expected parse details")
	}
	sum := res.BatchSummary
	if sum.CountTotalItems != 2 || sum.SumVNF.String() != "25" || sum.SumVProd.String() != "20" {
		t.Fatalf("unexpected summary %+v", sum)
	}
	if sum.DecisionSummary.Review != 2 {
		t.Fatalf("expected 2 review items, got %+v", sum.DecisionSummary)
	}
	if sum.Limits != domain.DefaultBatchLimits() {
		t.Fatalf("expected default limits, got %+v", sum.Limits)
	}
	if len(m.files) != 3 {
		t.Fatalf("expected 3 file observations, got %v", m.files)
	}
	if res.SHA256Zip == "" || len(res.Files[0].Items) != 1 {
		t.Fatalf("expected hash and retained items")
	}
}

func TestNFeBatchArchiveErrors(t *testing.T) {
	proc := newProcessor(domain.DefaultBatchLimits(), &metricsFake{})
	tests := []struct {
		name string
		raw  []byte
		code string
	}{
		{name: "empty", raw: nil, code: domain.CodeEmptyBody},
		{name: "not a zip", raw: []byte("PK nope"), code: domain.CodeInvalidZip},
		{name: "no xml", raw: buildZip(t, entry{"a.txt", "x"}, entry{"pasta/", ""}), code: domain.CodeNoXMLInZip},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			res := proc.NFe(context.Background(), tc.raw, "lote.zip")
			if res.Received {
				t.Fatalf("expected received=false")
			}
			if res.BatchSummary.Error != tc.code {
				t.Fatalf("expected %q, got %q", tc.code, res.BatchSummary.Error)
			}
			if len(res.Errors) != 1 || res.Errors[0].File != "" {
				t.Fatalf("expected one archive-level error, got %+v", res.Errors)
			}
			if res.CountFilesError != 0 || len(res.Files) != 0 {
				t.Fatalf("expected no per-file results")
			}
		})
	}
}

func TestBatchStopsAtDecompressedLimit(t *testing.T) {
	limits := domain.BatchLimits{MaxFiles: 10, MaxTotalBytes: int64(len(batchNFe)) + 10}
	proc := newProcessor(limits, &metricsFake{})
	raw := buildZip(t, entry{"a.xml", batchNFe}, entry{"b.xml", batchNFe}, entry{"c.xml", batchNFe})

	res := proc.NFe(context.Background(), raw, "lote.zip")
	if res.CountFilesOK != 1 {
		t.Fatalf("expected 1 processed file, got %d", res.CountFilesOK)
	}
	if len(res.Errors) != 1 {
		t.Fatalf("expected processing to stop, got %+v", res.Errors)
	}
	got := res.Errors[0]
	if got.File != "b.xml" || got.Error != domain.CodeBatchSizeExceeded || got.LimitBytes != limits.MaxTotalBytes {
		t.Fatalf("unexpected limit record %+v", got)
	}
}

func TestBatchTruncatesToMaxFiles(t *testing.T) {
	proc := newProcessor(domain.BatchLimits{MaxFiles: 2, MaxTotalBytes: 1 << 20}, &metricsFake{})
	raw := buildZip(t, entry{"a.xml", batchNFe}, entry{"b.xml", batchNFe}, entry{"c.xml", batchNFe})

	res := proc.NFe(context.Background(), raw, "lote.zip")
	if res.CountFilesOK != 2 || len(res.Errors) != 0 {
		t.Fatalf("expected 2 files without errors, got %d %+v", res.CountFilesOK, res.Errors)
	}
}

func TestBatchCancelledContext(t *testing.T) {
	proc := newProcessor(domain.DefaultBatchLimits(), &metricsFake{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := proc.NFe(ctx, buildZip(t, entry{"a.xml", batchNFe}), "lote.zip")
	if res.CountFilesOK != 0 || len(res.Errors) != 1 || res.Errors[0].Error != domain.CodeException {
		t.Fatalf("expected cancellation record, got %+v", res.Errors)
	}
}

func TestNFSeBatchUsesBaseNames(t *testing.T) {
	m := &metricsFake{}
	proc := newProcessor(domain.DefaultBatchLimits(), m)
	raw := buildZip(t,
		entry{"2024/03/servico.xml", batchNFSe},
		entry{"2024/03/vazio.xml", "<CompNfse>"},
	)

	res := proc.NFSe(context.Background(), raw, "servicos.zip")
	if res.CountFilesOK != 1 || res.CountFilesError != 1 {
		t.Fatalf("expected 1 ok and 1 error, got %d/%d", res.CountFilesOK, res.CountFilesError)
	}
	file := res.Files[0]
	if file.File != "servico.xml" || file.Prestador.Doc != "12345678000190" {
		t.Fatalf("unexpected file %+v", file)
	}
	if res.Errors[0].File != "vazio.xml" {
		t.Fatalf("expected base name in error, got %q", res.Errors[0].File)
	}
	sum := res.BatchSummary
	if sum.SumValorServicos.String() != "500" || sum.CountTotalItems != 1 {
		t.Fatalf("unexpected summary %+v", sum)
	}
	if m.files[0] != "nfse:ok" || m.files[1] != "nfse:error" {
		t.Fatalf("unexpected metrics %v", m.files)
	}
}

func TestNFSeBatchLimitRecordsUseBaseNames(t *testing.T) {
	limits := domain.BatchLimits{MaxFiles: 10, MaxTotalBytes: int64(len(batchNFSe)) + 5}
	proc := newProcessor(limits, &metricsFake{})
	raw := buildZip(t,
		entry{"2024/03/a.xml", batchNFSe},
		entry{"2024/03/b.xml", "<CompNfse>"},
		entry{"2024/03/c.xml", batchNFSe},
	)

	res := proc.NFSe(context.Background(), raw, "servicos.zip")
	if res.CountFilesOK != 1 || len(res.Errors) != 1 {
		t.Fatalf("expected 1 file and a limit record, got %d %+v", res.CountFilesOK, res.Errors)
	}
	if res.Files[0].File != "a.xml" {
		t.Fatalf("expected base name for file, got %q", res.Files[0].File)
	}
	if got := res.Errors[0]; got.File != "b.xml" || got.Error != domain.CodeBatchSizeExceeded {
		t.Fatalf("expected base name in limit record, got %+v", got)
	}
}

func TestNFSeBatchCancelledContextUsesBaseName(t *testing.T) {
	proc := newProcessor(domain.DefaultBatchLimits(), &metricsFake{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := proc.NFSe(ctx, buildZip(t, entry{"lote/servico.xml", batchNFSe}), "servicos.zip")
	if len(res.Errors) != 1 || res.Errors[0].File != "servico.xml" {
		t.Fatalf("expected base name in cancellation record, got %+v", res.Errors)
	}
}

func TestHandlerPanicIsRecorded(t *testing.T) {
	raw := buildZip(t, entry{"a.xml", "x"}, entry{"b.xml", "y"})
	calls := 0
	res := walk(context.Background(), raw, domain.DefaultBatchLimits(), nil, func(name string, _ []byte) *domain.BatchError {
		calls++
		if name == "a.xml" {
			panic("boom")
		}
		return nil
	})
	if calls != 2 {
		t.Fatalf("expected both members handled, got %d", calls)
	}
	if len(res.errors) != 1 || res.errors[0].Error != domain.CodeException || res.errors[0].Exception != "boom" {
		t.Fatalf("unexpected errors %+v", res.errors)
	}
}
