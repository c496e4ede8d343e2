// Package audit fans audit events out to the configured stores.
package audit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/fiscal-doc-analyzer/internal/core/domain"
	"github.com/kirillkom/fiscal-doc-analyzer/internal/core/ports"
)

// FailureObserver counts store failures per sink name.
type FailureObserver interface {
	ObserveAuditFailure(sink string)
}

// NamedStore is one backend with the name used in logs and metrics.
type NamedStore struct {
	Name  string
	Store ports.AuditStore
}

// Notifier implements ports.AuditSink. Every store gets every event; a failing store is logged
// and counted and never affects the caller or the other stores.
type Notifier struct {
	stores   []NamedStore
	logger   *slog.Logger
	observer FailureObserver
	now      func() time.Time
}

func NewNotifier(stores []NamedStore, logger *slog.Logger, observer FailureObserver) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{
		stores:   stores,
		logger:   logger,
		observer: observer,
		now:      time.Now,
	}
}

func (n *Notifier) Record(ctx context.Context, event domain.AuditEvent) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.TS.IsZero() {
		event.TS = n.now()
	}
	event.TS = event.TS.UTC()

	for _, s := range n.stores {
		if err := appendSafely(ctx, s.Store, event); err != nil {
			n.logger.Warn("audit_sink_failed",
				"sink", s.Name,
				"kind", event.Kind,
				"event_id", event.ID,
				"error", err,
			)
			if n.observer != nil {
				n.observer.ObserveAuditFailure(s.Name)
			}
		}
	}
}

// appendSafely turns a store panic into an error so no store can reach the caller.
func appendSafely(ctx context.Context, store ports.AuditStore, event domain.AuditEvent) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("audit store panic: %v", r)
		}
	}()
	return store.Append(ctx, event)
}
