// Package batch runs the single-document pipelines over every XML member of a zip archive.
package batch

import (
	"context"
	"log/slog"
	"path"

	"github.com/shopspring/decimal"

	"github.com/kirillkom/fiscal-doc-analyzer/internal/core/domain"
	"github.com/kirillkom/fiscal-doc-analyzer/internal/core/pipeline"
	"github.com/kirillkom/fiscal-doc-analyzer/internal/core/ports"
)

const (
	outcomeOK    = "ok"
	outcomeError = "error"
)

type Processor struct {
	nfe     *pipeline.NFePipeline
	nfse    *pipeline.NFSePipeline
	limits  domain.BatchLimits
	logger  *slog.Logger
	metrics ports.PipelineMetrics
}

func NewProcessor(
	nfe *pipeline.NFePipeline,
	nfse *pipeline.NFSePipeline,
	limits domain.BatchLimits,
	logger *slog.Logger,
	metrics ports.PipelineMetrics,
) *Processor {
	if limits.MaxFiles <= 0 || limits.MaxTotalBytes <= 0 {
		limits = domain.DefaultBatchLimits()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{nfe: nfe, nfse: nfse, limits: limits, logger: logger, metrics: metrics}
}

func (p *Processor) Limits() domain.BatchLimits {
	return p.limits
}

// NFe processes every product invoice of the archive. A failing member never aborts the others.
func (p *Processor) NFe(ctx context.Context, raw []byte, filename string) domain.NFeBatchResult {
	res := domain.NFeBatchResult{
		Filename: filename,
		Files:    []domain.NFeBatchFile{},
	}
	sum := &res.BatchSummary
	sum.Limits = p.limits
	sumVNF := decimal.Zero
	sumVProd := decimal.Zero

	walked := walk(ctx, raw, p.limits, nil, func(name string, data []byte) *domain.BatchError {
		doc := p.nfe.Run(data, name)
		if doc.Err != nil {
			return &domain.BatchError{File: name, Error: domain.CodeParseFailed, Details: doc.Err.String()}
		}
		res.Files = append(res.Files, domain.NFeBatchFile{
			File:       name,
			XMLSHA256:  doc.SHA256,
			CountItems: doc.Count,
			Header:     doc.Header,
			Totals:     doc.Totals,
			Summary:    doc.Summary,
			Items:      doc.Items,
		})
		sum.CountTotalItems += doc.Count
		if doc.Totals.VNF.Valid {
			sumVNF = sumVNF.Add(doc.Totals.VNF.Decimal)
		}
		if doc.Totals.VProd.Valid {
			sumVProd = sumVProd.Add(doc.Totals.VProd.Decimal)
		}
		sum.DecisionSummary.Merge(doc.Summary.DecisionSummary)
		sum.QualitySummary.Merge(doc.Summary.QualitySummary)
		return nil
	})

	sum.SumVNF = sumVNF.Round(2)
	sum.SumVProd = sumVProd.Round(2)
	res.Received = walked.received
	res.SHA256Zip = walked.sha256
	res.Errors = walked.errors
	sum.Error = walked.archiveErr
	res.CountFilesOK = len(res.Files)
	res.CountFilesError = p.countFileErrors(pipeline.KindNFe, walked)
	sum.CountFilesOK = res.CountFilesOK
	sum.CountFilesError = res.CountFilesError
	p.observe(pipeline.KindNFe, res.CountFilesOK)
	p.log(ctx, pipeline.KindNFe, filename, res.CountFilesOK, res.CountFilesError, walked.archiveErr)
	return res
}

// NFSe processes every service-invoice file of the archive.
func (p *Processor) NFSe(ctx context.Context, raw []byte, filename string) domain.NFSeBatchResult {
	res := domain.NFSeBatchResult{
		Filename: filename,
		Files:    []domain.NFSeBatchFile{},
	}
	sum := &res.BatchSummary
	sum.Limits = p.limits
	sumServicos := decimal.Zero
	sumLiquido := decimal.Zero

	walked := walk(ctx, raw, p.limits, path.Base, func(base string, data []byte) *domain.BatchError {
		doc := p.nfse.Run(data, base)
		if doc.Err != nil {
			return &domain.BatchError{File: base, Error: domain.CodeParseFailed, Details: doc.Err.String()}
		}
		file := domain.NFSeBatchFile{
			File:       base,
			XMLSHA256:  doc.SHA256,
			Received:   doc.Received,
			CountItems: doc.Count,
			Summary:    doc.Summary,
			Items:      doc.Items,
			Totals:     domain.NFSeDocTotalsFromSummary(doc.Summary.NFSeParseSummary),
		}
		if doc.Document != nil {
			file.Document = *doc.Document
			file.Prestador = doc.Document.Prestador
			file.Tomador = doc.Document.Tomador
		}
		if doc.ERPProjection != nil {
			file.ERPProjection = *doc.ERPProjection
		}
		res.Files = append(res.Files, file)

		sum.CountTotalItems += doc.Count
		sumServicos = sumServicos.Add(doc.Summary.SumValorTotalPoliticaA)
		sumLiquido = sumLiquido.Add(doc.Summary.SumValorLiquidoPoliticaB)
		sum.DecisionSummary.Merge(doc.Summary.NFSeParseSummary.DecisionSummary)
		sum.QualitySummary.Merge(doc.Summary.QualitySummary)
		return nil
	})

	sum.SumValorServicos = sumServicos.Round(2)
	sum.SumValorLiquido = sumLiquido.Round(2)
	res.Received = walked.received
	res.SHA256Zip = walked.sha256
	res.Errors = walked.errors
	sum.Error = walked.archiveErr
	res.CountFilesOK = len(res.Files)
	res.CountFilesError = p.countFileErrors(pipeline.KindNFSe, walked)
	sum.CountFilesOK = res.CountFilesOK
	sum.CountFilesError = res.CountFilesError
	p.observe(pipeline.KindNFSe, res.CountFilesOK)
	p.log(ctx, pipeline.KindNFSe, filename, res.CountFilesOK, res.CountFilesError, walked.archiveErr)
	return res
}

// countFileErrors counts member failures; archive-level errors are not files.
func (p *Processor) countFileErrors(kind string, w walkResult) int {
	if w.archiveErr != "" {
		return 0
	}
	for range w.errors {
		p.observeOne(kind, outcomeError)
	}
	return len(w.errors)
}

func (p *Processor) observe(kind string, ok int) {
	for i := 0; i < ok; i++ {
		p.observeOne(kind, outcomeOK)
	}
}

func (p *Processor) observeOne(kind, outcome string) {
	if p.metrics != nil {
		p.metrics.ObserveBatchFile(kind, outcome)
	}
}

func (p *Processor) log(ctx context.Context, kind, filename string, ok, failed int, archiveErr string) {
	if archiveErr != "" {
		p.logger.WarnContext(ctx, "batch_rejected", "kind", kind, "filename", filename, "error", archiveErr)
		return
	}
	p.logger.InfoContext(ctx, "batch_processed", "kind", kind, "filename", filename, "files_ok", ok, "files_error", failed)
}
