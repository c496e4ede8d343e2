package nats

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/fiscal-doc-analyzer/internal/core/domain"
	"github.com/kirillkom/fiscal-doc-analyzer/internal/infrastructure/resilience"
)

// AuditPublisher fans audit events out on a NATS subject as JSON.
type AuditPublisher struct {
	conn     *nats.Conn
	subject  string
	executor *resilience.Executor
}

func NewAuditPublisher(conn *nats.Conn, subject string, executor *resilience.Executor) *AuditPublisher {
	return &AuditPublisher{conn: conn, subject: subject, executor: executor}
}

func (p *AuditPublisher) Append(ctx context.Context, event domain.AuditEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode audit event: %w", err)
	}
	msg := nats.NewMsg(p.subject)
	msg.Header.Set("Fda-Audit-Kind", string(event.Kind))
	msg.Data = payload
	return publishMsg(ctx, p.conn, p.executor, msg)
}
