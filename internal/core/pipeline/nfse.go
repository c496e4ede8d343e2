package pipeline

import (
	"context"

	"github.com/kirillkom/fiscal-doc-analyzer/internal/core/analyzer"
	"github.com/kirillkom/fiscal-doc-analyzer/internal/core/convert"
	"github.com/kirillkom/fiscal-doc-analyzer/internal/core/domain"
	"github.com/kirillkom/fiscal-doc-analyzer/internal/core/normalize"
	"github.com/kirillkom/fiscal-doc-analyzer/internal/core/parser"
	"github.com/kirillkom/fiscal-doc-analyzer/internal/core/ports"
)

type NFSePipeline struct {
	parser     *parser.NFSeParser
	normalizer *normalize.Normalizer
	analyzer   *analyzer.Analyzer
	extractor  ports.PDFTextExtractor
	metrics    ports.PipelineMetrics
}

func NewNFSePipeline(
	p *parser.NFSeParser,
	n *normalize.Normalizer,
	a *analyzer.Analyzer,
	extractor ports.PDFTextExtractor,
	metrics ports.PipelineMetrics,
) *NFSePipeline {
	if metrics == nil {
		metrics = noopMetrics{}
	}
	return &NFSePipeline{parser: p, normalizer: n, analyzer: a, extractor: extractor, metrics: metrics}
}

// Run processes every CompNfse of the file and analyzes them as one document.
func (p *NFSePipeline) Run(raw []byte, filename string) domain.NFSeDocumentResult {
	parsed := p.parser.Parse(raw, filename)
	res := domain.NFSeDocumentResult{
		Received: parsed.Received,
		Filename: parsed.Filename,
		SHA256:   parsed.SHA256,
		Items:    []domain.NormalizedNFSeItem{},
		Err:      parsed.Err,
	}
	if parsed.Err != nil {
		res.Summary.Error = parsed.Err.Code
		res.Summary.Details = parsed.Err.Detail
		return res
	}

	items, norm := p.normalizer.NFSeItems(parsed.Items)
	prestador, tomador := nfseParties(parsed.Items)
	analysis := p.analyzer.AnalyzeNFSe(analyzer.NFSeInput{
		Prestador: prestador,
		Tomador:   tomador,
		Totals:    domain.NFSeDocTotalsFromSummary(parsed.Summary),
		Summary:   parsed.Summary,
		Items:     items,
	})

	res.Count = len(items)
	res.Items = items
	res.Summary = domain.NFSeSummary{
		NFSeParseSummary: parsed.Summary,
		NFSeNormSummary:  norm,
		DocumentSummary:  &analysis.Summary,
	}
	res.Document = &analysis.Document
	res.ERPProjection = &analysis.ERPProjection

	p.metrics.ObserveDocument(KindNFSe, string(analysis.Document.DocClass), string(analysis.Document.ReviewLevel))
	for _, it := range items {
		p.metrics.ObserveItemDecision(KindNFSe, string(it.Decision))
		p.metrics.ObserveCNAEMatch(string(it.Validations.CNAEVsDescricao.Status))
	}
	return res
}

// RunPage processes the whole file and returns one page of notes.
func (p *NFSePipeline) RunPage(raw []byte, filename string, page, pageSize int) domain.NFSeDocumentResult {
	res := p.Run(raw, filename)
	if !res.Received {
		return res
	}
	items, paging := parser.Page(res.Items, page, pageSize)
	res.Items = items
	res.Paging = &paging
	return res
}

// RunPDF extracts service-invoice fields from the PDF text layer.
func (p *NFSePipeline) RunPDF(ctx context.Context, raw []byte, filename string) domain.NFSePDFResult {
	return parser.ParseNFSePDF(ctx, raw, filename, p.extractor)
}

// nfseParties derives the provider from the first note and the taker from the first note
// that names one.
func nfseParties(items []domain.NFSeItem) (domain.Party, domain.Party) {
	var prestador, tomador domain.Party
	if len(items) == 0 {
		return prestador, tomador
	}
	cnpj := items[0].Fields.CNPJFornecedor
	prestador = domain.Party{Doc: convert.DigitsOnly(cnpj), DocFormatado: cnpj}
	for _, it := range items {
		if it.Tomador.Doc != "" {
			tomador = it.Tomador
			break
		}
	}
	return prestador, tomador
}
