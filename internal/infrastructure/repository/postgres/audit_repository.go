package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/kirillkom/fiscal-doc-analyzer/internal/core/domain"
	"github.com/kirillkom/fiscal-doc-analyzer/internal/infrastructure/resilience"
)

// AuditRepository appends audit events to the audit_events table.
type AuditRepository struct {
	db       *sql.DB
	executor *resilience.Executor
}

func NewAuditRepository(db *sql.DB, executor *resilience.Executor) *AuditRepository {
	return &AuditRepository{db: db, executor: executor}
}

func (r *AuditRepository) Append(ctx context.Context, event domain.AuditEvent) error {
	attrs := event.Attrs
	if attrs == nil {
		attrs = map[string]any{}
	}
	attrsJSON, err := json.Marshal(attrs)
	if err != nil {
		return fmt.Errorf("marshal audit attrs: %w", err)
	}

	insert := func(ctx context.Context) error {
		_, err := r.db.ExecContext(ctx, `
INSERT INTO audit_events (id, kind, ts_utc, filename, sha256, attrs)
VALUES ($1,$2,$3,$4,$5,$6)
ON CONFLICT (id) DO NOTHING
`, event.ID, string(event.Kind), event.TS, event.Filename, event.SHA256, attrsJSON)
		return err
	}
	if r.executor != nil {
		err = r.executor.Execute(ctx, "postgres.audit_append", insert, resilience.TransientClassifier)
	} else {
		err = insert(ctx)
	}
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}
