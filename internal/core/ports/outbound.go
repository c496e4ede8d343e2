package ports

import (
	"context"
	"io"

	"github.com/kirillkom/fiscal-doc-analyzer/internal/core/domain"
)

// JobRepository persists and reads batch job state.
type JobRepository interface {
	Create(ctx context.Context, job *domain.BatchJob) error
	GetByID(ctx context.Context, id string) (*domain.BatchJob, error)
	UpdateStatus(ctx context.Context, id string, status domain.JobStatus, errMessage string) error
	SaveOutcome(ctx context.Context, id string, outcome domain.JobOutcome) error
}

// ObjectStorage stores archives and job results.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// MessageQueue publishes/consumes batch job submissions.
type MessageQueue interface {
	PublishJobSubmitted(ctx context.Context, jobID string) error
	SubscribeJobSubmitted(ctx context.Context, handler func(context.Context, string) error) error
}

// AuditSink records trace events. It is best-effort: callers never observe failures.
type AuditSink interface {
	Record(ctx context.Context, event domain.AuditEvent)
}

// AuditStore is one audit backend behind the sink.
type AuditStore interface {
	Append(ctx context.Context, event domain.AuditEvent) error
}

// RuleSource reads the CNAE rule table. A missing source yields no rules and no error.
type RuleSource interface {
	Load(ctx context.Context) ([]domain.CNAERule, error)
}

// CNAEValidator checks a service description against its CNAE code.
type CNAEValidator interface {
	Validate(cnae, description string) domain.CNAEResult
}

// PDFTextExtractor returns the text layer of a PDF and its page count.
type PDFTextExtractor interface {
	ExtractText(ctx context.Context, pdf []byte) (text string, pages int, err error)
}

// TableWriter renders an export table.
type TableWriter interface {
	ContentType() string
	Extension() string
	Write(w io.Writer, header []string, rows [][]string) error
}

// PipelineMetrics receives pipeline outcome counters.
type PipelineMetrics interface {
	ObserveDocument(kind, docClass, reviewLevel string)
	ObserveItemDecision(kind, decision string)
	ObserveCNAEMatch(status string)
	ObserveBatchFile(kind, outcome string)
}
