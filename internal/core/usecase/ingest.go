package usecase

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/fiscal-doc-analyzer/internal/core/domain"
	"github.com/kirillkom/fiscal-doc-analyzer/internal/core/ports"
)

type IngestBatchUseCase struct {
	repo    ports.JobRepository
	storage ports.ObjectStorage
	queue   ports.MessageQueue
	audit   ports.AuditSink
}

func NewIngestBatchUseCase(
	repo ports.JobRepository,
	storage ports.ObjectStorage,
	queue ports.MessageQueue,
	audit ports.AuditSink,
) *IngestBatchUseCase {
	return &IngestBatchUseCase{
		repo:    repo,
		storage: storage,
		queue:   queue,
		audit:   auditOrDiscard(audit),
	}
}

// Submit stores the archive, registers an uploaded job and announces it to the workers.
func (uc *IngestBatchUseCase) Submit(
	ctx context.Context,
	kind domain.BatchKind,
	filename string,
	body io.Reader,
) (*domain.BatchJob, error) {
	if !kind.Valid() {
		return nil, domain.WrapError(domain.ErrInvalidInput, "submit batch", fmt.Errorf("unknown kind %q", kind))
	}
	if body == nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "submit batch", errors.New("empty body"))
	}

	id := uuid.NewString()
	storageKey := fmt.Sprintf("batches/%s_%s", id, sanitizeFilename(filename))
	now := time.Now().UTC()

	hasher := sha256.New()
	if err := uc.storage.Save(ctx, storageKey, io.TeeReader(body, hasher)); err != nil {
		return nil, fmt.Errorf("save archive to object storage: %w", err)
	}

	job := &domain.BatchJob{
		ID:          id,
		Kind:        kind,
		Filename:    filename,
		SHA256:      hex.EncodeToString(hasher.Sum(nil)),
		StoragePath: storageKey,
		Status:      domain.StatusUploaded,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := uc.repo.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("create batch job: %w", err)
	}

	if err := uc.queue.PublishJobSubmitted(ctx, job.ID); err != nil {
		return nil, fmt.Errorf("publish batch job: %w", err)
	}

	uc.audit.Record(ctx, domain.NewAuditEvent(domain.AuditBatchJobSubmitted, job.Filename, job.SHA256, attrs(
		"job_id", job.ID,
		"kind", job.Kind,
	)))
	return job, nil
}

func sanitizeFilename(name string) string {
	base := filepath.Base(name)
	base = strings.ReplaceAll(base, " ", "_")
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r
		case r >= 'A' && r <= 'Z':
			return r
		case r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	if base == "" || base == "." || base == "_" {
		return "batch.zip"
	}
	return base
}
