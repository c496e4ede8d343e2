package usecase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/kirillkom/fiscal-doc-analyzer/internal/core/batch"
	"github.com/kirillkom/fiscal-doc-analyzer/internal/core/domain"
	"github.com/kirillkom/fiscal-doc-analyzer/internal/core/ports"
)

type ProcessBatchJobUseCase struct {
	repo      ports.JobRepository
	storage   ports.ObjectStorage
	processor *batch.Processor
	audit     ports.AuditSink
}

func NewProcessBatchJobUseCase(
	repo ports.JobRepository,
	storage ports.ObjectStorage,
	processor *batch.Processor,
	audit ports.AuditSink,
) *ProcessBatchJobUseCase {
	return &ProcessBatchJobUseCase{
		repo:      repo,
		storage:   storage,
		processor: processor,
		audit:     auditOrDiscard(audit),
	}
}

func (uc *ProcessBatchJobUseCase) ProcessByID(ctx context.Context, jobID string) error {
	if err := uc.markStatus(ctx, jobID, domain.StatusProcessing, ""); err != nil {
		return fmt.Errorf("set status=processing: %w", err)
	}

	job, outcome, err := uc.processPipeline(ctx, jobID)
	if err != nil {
		if failErr := uc.markFailed(ctx, jobID, err); failErr != nil {
			return fmt.Errorf("%w; mark failed status: %v", err, failErr)
		}
		return err
	}

	if err := uc.repo.SaveOutcome(ctx, jobID, outcome); err != nil {
		err = fmt.Errorf("save outcome: %w", err)
		if failErr := uc.markFailed(ctx, jobID, err); failErr != nil {
			return fmt.Errorf("%w; mark failed status: %v", err, failErr)
		}
		return err
	}

	if err := uc.markStatus(ctx, jobID, domain.StatusReady, ""); err != nil {
		return fmt.Errorf("set status=ready: %w", err)
	}

	uc.audit.Record(ctx, domain.NewAuditEvent(domain.AuditBatchJobProcessed, job.Filename, job.SHA256, attrs(
		"job_id", job.ID,
		"kind", job.Kind,
		"count_files_ok", outcome.CountFilesOK,
		"count_files_error", outcome.CountFilesError,
		"result_path", outcome.ResultPath,
	)))
	return nil
}

func (uc *ProcessBatchJobUseCase) processPipeline(ctx context.Context, jobID string) (*domain.BatchJob, domain.JobOutcome, error) {
	job, err := uc.repo.GetByID(ctx, jobID)
	if err != nil {
		return nil, domain.JobOutcome{}, fmt.Errorf("fetch batch job by id: %w", err)
	}

	raw, err := uc.loadArchive(ctx, job)
	if err != nil {
		return nil, domain.JobOutcome{}, err
	}

	result, outcome, err := uc.run(ctx, job, raw)
	if err != nil {
		return nil, domain.JobOutcome{}, err
	}

	outcome.ResultPath = resultKey(job.ID)
	if err := uc.storage.Save(ctx, outcome.ResultPath, bytes.NewReader(result)); err != nil {
		return nil, domain.JobOutcome{}, fmt.Errorf("save batch result: %w", err)
	}
	return job, outcome, nil
}

func (uc *ProcessBatchJobUseCase) loadArchive(ctx context.Context, job *domain.BatchJob) ([]byte, error) {
	rc, err := uc.storage.Open(ctx, job.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	defer rc.Close()

	raw, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read archive: %w", err)
	}
	return raw, nil
}

// run returns the encoded batch result. Archive-level input errors still produce a result.
func (uc *ProcessBatchJobUseCase) run(ctx context.Context, job *domain.BatchJob, raw []byte) ([]byte, domain.JobOutcome, error) {
	var (
		result  any
		outcome domain.JobOutcome
	)
	switch job.Kind {
	case domain.BatchKindNFe:
		res := uc.processor.NFe(ctx, raw, job.Filename)
		result = res
		outcome = domain.JobOutcome{CountFilesOK: res.CountFilesOK, CountFilesError: res.CountFilesError}
	case domain.BatchKindNFSe:
		res := uc.processor.NFSe(ctx, raw, job.Filename)
		result = res
		outcome = domain.JobOutcome{CountFilesOK: res.CountFilesOK, CountFilesError: res.CountFilesError}
	default:
		return nil, domain.JobOutcome{}, domain.WrapError(domain.ErrInvalidInput, "process batch", fmt.Errorf("unknown kind %q", job.Kind))
	}
	if err := ctx.Err(); err != nil {
		return nil, domain.JobOutcome{}, fmt.Errorf("process batch: %w", err)
	}

	payload, err := json.Marshal(result)
	if err != nil {
		return nil, domain.JobOutcome{}, fmt.Errorf("encode batch result: %w", err)
	}
	return payload, outcome, nil
}

func (uc *ProcessBatchJobUseCase) markStatus(ctx context.Context, jobID string, status domain.JobStatus, errMessage string) error {
	return uc.repo.UpdateStatus(ctx, jobID, status, errMessage)
}

func (uc *ProcessBatchJobUseCase) markFailed(ctx context.Context, jobID string, processErr error) error {
	if processErr == nil {
		return nil
	}
	return uc.markStatus(ctx, jobID, domain.StatusFailed, processErr.Error())
}

func resultKey(jobID string) string {
	return "results/" + jobID + ".json"
}
