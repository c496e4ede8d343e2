package usecase

import (
	"context"
	"fmt"
	"io"

	"github.com/kirillkom/fiscal-doc-analyzer/internal/core/batch"
	"github.com/kirillkom/fiscal-doc-analyzer/internal/core/domain"
	"github.com/kirillkom/fiscal-doc-analyzer/internal/core/pipeline"
	"github.com/kirillkom/fiscal-doc-analyzer/internal/core/ports"
)

type BatchUseCase struct {
	processor *batch.Processor
	audit     ports.AuditSink
}

func NewBatchUseCase(processor *batch.Processor, audit ports.AuditSink) *BatchUseCase {
	return &BatchUseCase{processor: processor, audit: auditOrDiscard(audit)}
}

func (uc *BatchUseCase) SummarizeNFe(ctx context.Context, raw []byte, filename string) domain.NFeBatchResult {
	res := uc.processor.NFe(ctx, raw, filename)
	uc.recordNFe(ctx, res)
	return res
}

// ExportNFe writes the items of every successful file, prefixed by their batch and header columns.
func (uc *BatchUseCase) ExportNFe(
	ctx context.Context,
	raw []byte,
	filename string,
	w ports.TableWriter,
	out io.Writer,
) (domain.NFeBatchResult, error) {
	res := uc.processor.NFe(ctx, raw, filename)
	uc.recordNFe(ctx, res)
	if !res.Received {
		return res, nil
	}
	header, rows := pipeline.NFeBatchTable(filename, res.Files)
	if err := w.Write(out, header, rows); err != nil {
		return res, fmt.Errorf("write nfe batch table: %w", err)
	}
	uc.audit.Record(ctx, domain.NewAuditEvent(domain.AuditNFeExportCSV, filename, res.SHA256Zip, attrs(
		"format", w.Extension(),
		"rows", len(rows),
		"batch", true,
	)))
	return res, nil
}

func (uc *BatchUseCase) SummarizeNFSe(ctx context.Context, raw []byte, filename string) domain.NFSeBatchResult {
	res := uc.processor.NFSe(ctx, raw, filename)
	uc.audit.Record(ctx, domain.NewAuditEvent(domain.AuditNFSeBatchSummary, filename, res.SHA256Zip, attrs(
		"received", res.Received,
		"count_files_ok", res.CountFilesOK,
		"count_files_error", res.CountFilesError,
		"count_total_items", res.BatchSummary.CountTotalItems,
		"error", res.BatchSummary.Error,
	)))
	return res
}

func (uc *BatchUseCase) recordNFe(ctx context.Context, res domain.NFeBatchResult) {
	for _, f := range res.Files {
		uc.audit.Record(ctx, domain.NewAuditEvent(domain.AuditNFeBatchFileOK, f.File, f.XMLSHA256, attrs(
			"batch", res.Filename,
			"count_items", f.CountItems,
			"chave_nfe", f.Header.ChaveNFe,
		)))
	}
	for _, e := range res.Errors {
		if e.File == "" {
			continue
		}
		uc.audit.Record(ctx, domain.NewAuditEvent(domain.AuditNFeBatchFileError, e.File, "", attrs(
			"batch", res.Filename,
			"error", e.Error,
			"details", e.Details,
			"exception", e.Exception,
		)))
	}
	uc.audit.Record(ctx, domain.NewAuditEvent(domain.AuditNFeBatchSummary, res.Filename, res.SHA256Zip, attrs(
		"received", res.Received,
		"count_files_ok", res.CountFilesOK,
		"count_files_error", res.CountFilesError,
		"count_total_items", res.BatchSummary.CountTotalItems,
		"sum_vNF", res.BatchSummary.SumVNF.StringFixed(2),
		"error", res.BatchSummary.Error,
	)))
}
