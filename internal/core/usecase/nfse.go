package usecase

import (
	"context"
	"fmt"
	"io"

	"github.com/kirillkom/fiscal-doc-analyzer/internal/core/domain"
	"github.com/kirillkom/fiscal-doc-analyzer/internal/core/pipeline"
	"github.com/kirillkom/fiscal-doc-analyzer/internal/core/ports"
)

type NFSeUseCase struct {
	pipeline *pipeline.NFSePipeline
	audit    ports.AuditSink
}

func NewNFSeUseCase(p *pipeline.NFSePipeline, audit ports.AuditSink) *NFSeUseCase {
	return &NFSeUseCase{pipeline: p, audit: auditOrDiscard(audit)}
}

func (uc *NFSeUseCase) Extract(ctx context.Context, raw []byte, filename string, page, pageSize int) domain.NFSeDocumentResult {
	res := uc.pipeline.RunPage(raw, filename, page, pageSize)
	if !res.Received {
		return res
	}
	uc.audit.Record(ctx, domain.NewAuditEvent(domain.AuditNFSeExtractPage, res.Filename, res.SHA256, attrs(
		"page", res.Paging.Page,
		"page_size", res.Paging.PageSize,
		"count_total", res.Paging.CountTotal,
		"doc_class", res.Document.DocClass,
		"review_level", res.Document.ReviewLevel,
	)))
	for _, it := range res.Items {
		uc.audit.Record(ctx, domain.NewAuditEvent(domain.AuditNFSeExtractItem, res.Filename, res.SHA256, attrs(
			"numero_nota", it.Fields.NumeroNota,
			"cnae", it.Fields.CNAE,
			"cnae_status", it.Validations.CNAEVsDescricao.Status,
			"service_class", it.ServiceClass,
			"decision", it.Decision,
			"reasons", it.Reasons,
		)))
	}
	return res
}

func (uc *NFSeUseCase) Export(
	ctx context.Context,
	raw []byte,
	filename string,
	w ports.TableWriter,
	out io.Writer,
) (domain.NFSeDocumentResult, error) {
	res := uc.pipeline.Run(raw, filename)
	if !res.Received {
		return res, nil
	}
	header, rows := pipeline.NFSeTable(res.Items)
	if err := w.Write(out, header, rows); err != nil {
		return res, fmt.Errorf("write nfse table: %w", err)
	}
	uc.audit.Record(ctx, domain.NewAuditEvent(domain.AuditNFSeExportCSV, res.Filename, res.SHA256, attrs(
		"format", w.Extension(),
		"rows", len(rows),
	)))
	return res, nil
}

func (uc *NFSeUseCase) ExtractPDF(ctx context.Context, raw []byte, filename string) domain.NFSePDFResult {
	res := uc.pipeline.RunPDF(ctx, raw, filename)
	uc.audit.Record(ctx, domain.NewAuditEvent(domain.AuditNFSePDFExtract, res.Filename, res.SHA256, attrs(
		"received", res.Received,
		"pages", res.Pages,
		"method", res.Method,
		"confidence", res.Confidence,
		"missing_fields", res.MissingFields,
		"error", res.Error,
	)))
	return res
}
