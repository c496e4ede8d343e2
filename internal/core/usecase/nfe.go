package usecase

import (
	"context"
	"fmt"
	"io"

	"github.com/kirillkom/fiscal-doc-analyzer/internal/core/domain"
	"github.com/kirillkom/fiscal-doc-analyzer/internal/core/pipeline"
	"github.com/kirillkom/fiscal-doc-analyzer/internal/core/ports"
)

type NFeUseCase struct {
	pipeline *pipeline.NFePipeline
	audit    ports.AuditSink
}

func NewNFeUseCase(p *pipeline.NFePipeline, audit ports.AuditSink) *NFeUseCase {
	return &NFeUseCase{pipeline: p, audit: auditOrDiscard(audit)}
}

// Extract returns one page of normalized items; the document analysis covers every item.
func (uc *NFeUseCase) Extract(ctx context.Context, raw []byte, filename string, page, pageSize int) domain.NFeDocumentResult {
	res := uc.pipeline.RunPage(raw, filename, page, pageSize)
	if !res.Received {
		return res
	}
	uc.audit.Record(ctx, domain.NewAuditEvent(domain.AuditNFeExtractPage, res.Filename, res.SHA256, attrs(
		"page", res.Paging.Page,
		"page_size", res.Paging.PageSize,
		"count_total", res.Paging.CountTotal,
		"count_page", res.Paging.CountPage,
	)))
	for _, it := range res.Items {
		uc.audit.Record(ctx, domain.NewAuditEvent(domain.AuditNFeExtractItem, res.Filename, res.SHA256, attrs(
			"nItem", it.Item.NItem,
			"cProd", it.Item.CProd,
			"product_class", it.ProductClass,
			"decision", it.Decision,
			"review_level", it.ReviewLevel,
			"reasons", it.Reasons,
		)))
	}
	return res
}

func (uc *NFeUseCase) Summarize(ctx context.Context, raw []byte, filename string) domain.NFeDocumentResult {
	res := uc.pipeline.Run(raw, filename)
	if !res.Received {
		return res
	}
	uc.audit.Record(ctx, domain.NewAuditEvent(domain.AuditNFeExtractSummary, res.Filename, res.SHA256, attrs(
		"count_items", res.Count,
		"doc_class", res.Document.DocClass,
		"review_level", res.Document.ReviewLevel,
		"decision_summary", res.Summary.DecisionSummary,
	)))
	return res
}

// Export writes the item table to out. Nothing is written when the document is not received.
func (uc *NFeUseCase) Export(
	ctx context.Context,
	raw []byte,
	filename string,
	w ports.TableWriter,
	out io.Writer,
) (domain.NFeDocumentResult, error) {
	res := uc.pipeline.Run(raw, filename)
	if !res.Received {
		return res, nil
	}
	header, rows := pipeline.NFeTable(res.Items)
	if err := w.Write(out, header, rows); err != nil {
		return res, fmt.Errorf("write nfe table: %w", err)
	}
	uc.audit.Record(ctx, domain.NewAuditEvent(domain.AuditNFeExportCSV, res.Filename, res.SHA256, attrs(
		"format", w.Extension(),
		"rows", len(rows),
	)))
	return res, nil
}
