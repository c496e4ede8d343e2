package usecase

import (
	"context"

	"github.com/kirillkom/fiscal-doc-analyzer/internal/core/domain"
	"github.com/kirillkom/fiscal-doc-analyzer/internal/core/ports"
)

type discardAudit struct{}

func (discardAudit) Record(context.Context, domain.AuditEvent) {}

func auditOrDiscard(sink ports.AuditSink) ports.AuditSink {
	if sink == nil {
		return discardAudit{}
	}
	return sink
}

// attrs builds an event attribute map from alternating key/value pairs.
func attrs(kv ...any) map[string]any {
	out := make(map[string]any, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		if key, ok := kv[i].(string); ok {
			out[key] = kv[i+1]
		}
	}
	return out
}
