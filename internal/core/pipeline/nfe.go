// Package pipeline binds parsing, normalization and document analysis for a single
// document and builds the export tables.
package pipeline

import (
	"github.com/kirillkom/fiscal-doc-analyzer/internal/core/analyzer"
	"github.com/kirillkom/fiscal-doc-analyzer/internal/core/domain"
	"github.com/kirillkom/fiscal-doc-analyzer/internal/core/normalize"
	"github.com/kirillkom/fiscal-doc-analyzer/internal/core/parser"
	"github.com/kirillkom/fiscal-doc-analyzer/internal/core/ports"
)

const (
	KindNFe  = "nfe"
	KindNFSe = "nfse"
)

type NFePipeline struct {
	normalizer *normalize.Normalizer
	analyzer   *analyzer.Analyzer
	metrics    ports.PipelineMetrics
}

func NewNFePipeline(n *normalize.Normalizer, a *analyzer.Analyzer, metrics ports.PipelineMetrics) *NFePipeline {
	if metrics == nil {
		metrics = noopMetrics{}
	}
	return &NFePipeline{normalizer: n, analyzer: a, metrics: metrics}
}

// Run processes the whole document.
func (p *NFePipeline) Run(raw []byte, filename string) domain.NFeDocumentResult {
	parsed := parser.ParseNFe(raw, filename)
	res := domain.NFeDocumentResult{
		Received: parsed.Received,
		Filename: parsed.Filename,
		SHA256:   parsed.SHA256,
		Items:    []domain.NormalizedNFeItem{},
		Err:      parsed.Err,
	}
	if parsed.Err != nil {
		res.Summary.Error = parsed.Err.Code
		res.Summary.Details = parsed.Err.Detail
		return res
	}

	items, norm := p.normalizer.NFeItems(parsed.Items)
	analysis := p.analyzer.AnalyzeNFe(analyzer.NFeInput{
		Header:  parsed.Header,
		Emit:    parsed.Emit,
		Dest:    parsed.Dest,
		Totals:  parsed.Totals,
		Summary: parsed.Summary,
		Items:   items,
	})

	res.Count = len(items)
	res.Header = parsed.Header
	res.Emit = parsed.Emit
	res.Dest = parsed.Dest
	res.Totals = parsed.Totals
	res.Items = items
	res.Summary = domain.NFeSummary{
		NFeParseSummary: parsed.Summary,
		NFeNormSummary:  norm,
		DocumentSummary: &analysis.Summary,
	}
	res.Document = &analysis.Document
	res.ERPProjection = &analysis.ERPProjection

	p.metrics.ObserveDocument(KindNFe, string(analysis.Document.DocClass), string(analysis.Document.ReviewLevel))
	for _, it := range items {
		p.metrics.ObserveItemDecision(KindNFe, string(it.Decision))
	}
	return res
}

// RunPage processes the whole document and returns one page of items. Summaries and the
// document analysis always cover every item.
func (p *NFePipeline) RunPage(raw []byte, filename string, page, pageSize int) domain.NFeDocumentResult {
	res := p.Run(raw, filename)
	if !res.Received {
		return res
	}
	items, paging := parser.Page(res.Items, page, pageSize)
	res.Items = items
	res.Paging = &paging
	return res
}

type noopMetrics struct{}

func (noopMetrics) ObserveDocument(string, string, string) {}
func (noopMetrics) ObserveItemDecision(string, string)     {}
func (noopMetrics) ObserveCNAEMatch(string)                {}
func (noopMetrics) ObserveBatchFile(string, string)        {}
