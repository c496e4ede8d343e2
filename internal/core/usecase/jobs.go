package usecase

import (
	"context"
	"fmt"
	"io"

	"github.com/kirillkom/fiscal-doc-analyzer/internal/core/domain"
	"github.com/kirillkom/fiscal-doc-analyzer/internal/core/ports"
)

type JobQueryUseCase struct {
	repo    ports.JobRepository
	storage ports.ObjectStorage
}

func NewJobQueryUseCase(repo ports.JobRepository, storage ports.ObjectStorage) *JobQueryUseCase {
	return &JobQueryUseCase{repo: repo, storage: storage}
}

func (uc *JobQueryUseCase) GetByID(ctx context.Context, id string) (*domain.BatchJob, error) {
	job, err := uc.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("fetch batch job: %w", err)
	}
	return job, nil
}

// OpenResult streams the stored JSON result of a ready job.
func (uc *JobQueryUseCase) OpenResult(ctx context.Context, id string) (io.ReadCloser, error) {
	job, err := uc.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if job.Status != domain.StatusReady || job.ResultPath == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "open batch result", fmt.Errorf("job %s is %s", id, job.Status))
	}
	rc, err := uc.storage.Open(ctx, job.ResultPath)
	if err != nil {
		return nil, fmt.Errorf("open batch result: %w", err)
	}
	return rc, nil
}
