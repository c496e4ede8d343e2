package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/kirillkom/fiscal-doc-analyzer/internal/core/domain"
)

type JobRepository struct {
	db *sql.DB
}

func NewJobRepository(db *sql.DB) *JobRepository {
	return &JobRepository{db: db}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

const schemaLockID = int64(2026101701)

const schemaDDL = `
CREATE TABLE IF NOT EXISTS batch_jobs (
	id TEXT PRIMARY KEY,
	kind TEXT NOT NULL,
	filename TEXT NOT NULL,
	sha256 TEXT NOT NULL,
	storage_path TEXT NOT NULL,
	result_path TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL,
	error_message TEXT NOT NULL DEFAULT '',
	count_files_ok INTEGER NOT NULL DEFAULT 0,
	count_files_error INTEGER NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_batch_jobs_status ON batch_jobs(status);
CREATE INDEX IF NOT EXISTS idx_batch_jobs_created_at ON batch_jobs(created_at DESC);

CREATE TABLE IF NOT EXISTS audit_events (
	id TEXT PRIMARY KEY,
	kind TEXT NOT NULL,
	ts_utc TIMESTAMPTZ NOT NULL,
	filename TEXT NOT NULL DEFAULT '',
	sha256 TEXT NOT NULL DEFAULT '',
	attrs JSONB NOT NULL DEFAULT '{}'::jsonb
);

CREATE INDEX IF NOT EXISTS idx_audit_events_kind_ts ON audit_events(kind, ts_utc DESC);
CREATE INDEX IF NOT EXISTS idx_audit_events_sha256 ON audit_events(sha256);
`

// EnsureSchema creates the job and audit tables.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, schemaLockID); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}
	if _, err := tx.ExecContext(ctx, schemaDDL); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (r *JobRepository) Create(ctx context.Context, job *domain.BatchJob) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO batch_jobs (
	id, kind, filename, sha256, storage_path, status, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
`,
		job.ID, string(job.Kind), job.Filename, job.SHA256, job.StoragePath, string(job.Status),
		job.CreatedAt, job.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert batch job: %w", err)
	}
	return nil
}

func (r *JobRepository) GetByID(ctx context.Context, id string) (*domain.BatchJob, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, kind, filename, sha256, storage_path, result_path, status, error_message,
	count_files_ok, count_files_error, created_at, updated_at
FROM batch_jobs
WHERE id = $1
`, id)

	var job domain.BatchJob
	var kind, status string
	err := row.Scan(
		&job.ID, &kind, &job.Filename, &job.SHA256, &job.StoragePath, &job.ResultPath, &status, &job.Error,
		&job.CountFilesOK, &job.CountFilesError, &job.CreatedAt, &job.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrJobNotFound, "get batch job", fmt.Errorf("id=%s", id))
		}
		return nil, fmt.Errorf("scan batch job: %w", err)
	}
	job.Kind = domain.BatchKind(kind)
	job.Status = domain.JobStatus(status)
	return &job, nil
}

func (r *JobRepository) UpdateStatus(ctx context.Context, id string, status domain.JobStatus, errMessage string) error {
	result, err := r.db.ExecContext(ctx, `
UPDATE batch_jobs
SET status = $2, error_message = $3, updated_at = $4
WHERE id = $1
`, id, string(status), errMessage, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update batch job status: %w", err)
	}
	return requireRow(result, "update batch job status", id)
}

func (r *JobRepository) SaveOutcome(ctx context.Context, id string, outcome domain.JobOutcome) error {
	result, err := r.db.ExecContext(ctx, `
UPDATE batch_jobs
SET result_path = $2, count_files_ok = $3, count_files_error = $4, updated_at = $5
WHERE id = $1
`, id, outcome.ResultPath, outcome.CountFilesOK, outcome.CountFilesError, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("save batch job outcome: %w", err)
	}
	return requireRow(result, "save batch job outcome", id)
}

func requireRow(result sql.Result, op, id string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", op, err)
	}
	if rows == 0 {
		return domain.WrapError(domain.ErrJobNotFound, op, fmt.Errorf("id=%s", id))
	}
	return nil
}
