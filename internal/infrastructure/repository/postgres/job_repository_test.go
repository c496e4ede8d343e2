package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/kirillkom/fiscal-doc-analyzer/internal/core/domain"
)

func newRepoWithMock(t *testing.T) (*JobRepository, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	return NewJobRepository(db), mock, func() { _ = db.Close() }
}

func TestCreateInsertsUploadedJob(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	now := time.Date(2024, 3, 5, 12, 0, 0, 0, time.UTC)
	job := &domain.BatchJob{
		ID:          "job-1",
		Kind:        domain.BatchKindNFe,
		Filename:    "lote.zip",
		SHA256:      "abc",
		StoragePath: "batches/job-1_lote.zip",
		Status:      domain.StatusUploaded,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	mock.ExpectExec("INSERT INTO batch_jobs").
		WithArgs("job-1", "nfe", "lote.zip", "abc", "batches/job-1_lote.zip", "uploaded", now, now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.Create(context.Background(), job); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestGetByIDScansJob(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{
		"id", "kind", "filename", "sha256", "storage_path", "result_path", "status", "error_message",
		"count_files_ok", "count_files_error", "created_at", "updated_at",
	}).AddRow("job-1", "nfse", "lote.zip", "abc", "batches/x", "results/job-1.json", "ready", "", 3, 1, now, now)
	mock.ExpectQuery("SELECT id, kind, filename").WithArgs("job-1").WillReturnRows(rows)

	job, err := repo.GetByID(context.Background(), "job-1")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if job.Kind != domain.BatchKindNFSe || job.Status != domain.StatusReady || job.CountFilesOK != 3 {
		t.Fatalf("unexpected job %+v", job)
	}
}

func TestGetByIDReturnsDomainNotFound(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectQuery("SELECT id, kind, filename").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByID(context.Background(), "missing")
	if !domain.IsKind(err, domain.ErrJobNotFound) {
		t.Fatalf("expected ErrJobNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestUpdateStatusReturnsDomainNotFoundWhenNoRowsAffected(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectExec("UPDATE batch_jobs").
		WithArgs("missing", string(domain.StatusProcessing), "", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateStatus(context.Background(), "missing", domain.StatusProcessing, "")
	if !domain.IsKind(err, domain.ErrJobNotFound) {
		t.Fatalf("expected ErrJobNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestSaveOutcomeUpdatesCounters(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectExec("UPDATE batch_jobs").
		WithArgs("job-1", "results/job-1.json", 4, 2, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.SaveOutcome(context.Background(), "job-1", domain.JobOutcome{
		ResultPath:      "results/job-1.json",
		CountFilesOK:    4,
		CountFilesError: 2,
	})
	if err != nil {
		t.Fatalf("SaveOutcome() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestEnsureSchemaTakesAdvisoryLock(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("SELECT pg_advisory_xact_lock").WithArgs(schemaLockID).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS batch_jobs").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	if err := EnsureSchema(context.Background(), db); err != nil {
		t.Fatalf("EnsureSchema() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestAuditAppendInsertsEvent(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()
	repo := NewAuditRepository(db, nil)

	ts := time.Date(2024, 3, 5, 12, 0, 0, 0, time.UTC)
	mock.ExpectExec("INSERT INTO audit_events").
		WithArgs("ev-1", "nfe_xml_extract_summary", ts, "nota.xml", "abc", []byte(`{"count_items":2}`)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = repo.Append(context.Background(), domain.AuditEvent{
		ID:       "ev-1",
		Kind:     domain.AuditNFeExtractSummary,
		TS:       ts,
		Filename: "nota.xml",
		SHA256:   "abc",
		Attrs:    map[string]any{"count_items": 2},
	})
	if err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	mock.ExpectExec("INSERT INTO audit_events").WillReturnError(errors.New("conn reset"))
	if err := repo.Append(context.Background(), domain.AuditEvent{ID: "ev-2"}); err == nil {
		t.Fatalf("expected insert error")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
