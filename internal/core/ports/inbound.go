package ports

import (
	"context"
	"io"

	"github.com/kirillkom/fiscal-doc-analyzer/internal/core/domain"
)

// NFeService is the inbound contract for single product-invoice operations.
type NFeService interface {
	Extract(ctx context.Context, raw []byte, filename string, page, pageSize int) domain.NFeDocumentResult
	Summarize(ctx context.Context, raw []byte, filename string) domain.NFeDocumentResult
	Export(ctx context.Context, raw []byte, filename string, w TableWriter, out io.Writer) (domain.NFeDocumentResult, error)
}

// NFSeService is the inbound contract for single service-invoice operations.
type NFSeService interface {
	Extract(ctx context.Context, raw []byte, filename string, page, pageSize int) domain.NFSeDocumentResult
	Export(ctx context.Context, raw []byte, filename string, w TableWriter, out io.Writer) (domain.NFSeDocumentResult, error)
	ExtractPDF(ctx context.Context, raw []byte, filename string) domain.NFSePDFResult
}

// BatchService is the inbound contract for synchronous archive processing.
type BatchService interface {
	SummarizeNFe(ctx context.Context, raw []byte, filename string) domain.NFeBatchResult
	ExportNFe(ctx context.Context, raw []byte, filename string, w TableWriter, out io.Writer) (domain.NFeBatchResult, error)
	SummarizeNFSe(ctx context.Context, raw []byte, filename string) domain.NFSeBatchResult
}

// JobSubmitter is the inbound contract for asynchronous batch submission.
type JobSubmitter interface {
	Submit(ctx context.Context, kind domain.BatchKind, filename string, body io.Reader) (*domain.BatchJob, error)
}

// JobReader is the inbound read model for batch job state and results.
type JobReader interface {
	GetByID(ctx context.Context, id string) (*domain.BatchJob, error)
	OpenResult(ctx context.Context, id string) (io.ReadCloser, error)
}

// JobProcessor is the inbound contract for asynchronous batch processing.
type JobProcessor interface {
	ProcessByID(ctx context.Context, jobID string) error
}

// RuleAdmin exposes the CNAE rule cache.
type RuleAdmin interface {
	Rules() []domain.CNAERule
	Reload(ctx context.Context) (int, error)
}
