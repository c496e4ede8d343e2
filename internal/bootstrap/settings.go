package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/kirillkom/fiscal-doc-analyzer/internal/config"
	"github.com/kirillkom/fiscal-doc-analyzer/internal/core/domain"
	"github.com/kirillkom/fiscal-doc-analyzer/internal/core/ports"
	"github.com/kirillkom/fiscal-doc-analyzer/internal/infrastructure/audit"
	"github.com/kirillkom/fiscal-doc-analyzer/internal/infrastructure/queue/nats"
	"github.com/kirillkom/fiscal-doc-analyzer/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/fiscal-doc-analyzer/internal/infrastructure/resilience"
	"github.com/kirillkom/fiscal-doc-analyzer/internal/infrastructure/storage/localfs"
	"github.com/kirillkom/fiscal-doc-analyzer/internal/infrastructure/storage/minio"
)

// Thresholds parses the configured tolerances. Unparsable or negative values keep the default.
func Thresholds(cfg config.Config, logger *slog.Logger) domain.Thresholds {
	if logger == nil {
		logger = slog.Default()
	}
	t := domain.DefaultThresholds()
	parse := func(key, raw string, dst *decimal.Decimal) {
		v, err := decimal.NewFromString(raw)
		if err != nil || v.IsNegative() {
			logger.Warn("invalid_threshold", "key", key, "value", raw)
			return
		}
		*dst = v
	}
	parse("THRESHOLD_NET_ABS", cfg.ThresholdNetAbs, &t.NetAbs)
	parse("THRESHOLD_NET_PCT", cfg.ThresholdNetPct, &t.NetPct)
	parse("THRESHOLD_DOC_TOTAL_ABS", cfg.ThresholdDocTotalAbs, &t.DocTotalAbs)
	parse("THRESHOLD_DOC_TOTAL_PCT", cfg.ThresholdDocTotalPct, &t.DocTotalPct)
	parse("THRESHOLD_ITEM_TOTAL_ABS", cfg.ThresholdItemTotalAbs, &t.ItemTotalAbs)
	if cfg.ThresholdMajority > 0 && cfg.ThresholdMajority <= 1 {
		t.Majority = cfg.ThresholdMajority
	}
	return t
}

func ResilienceConfig(cfg config.Config) resilience.Config {
	return resilience.Config{
		RetryMaxAttempts:        cfg.ResilienceRetryMaxAttempts,
		RetryInitialBackoff:     cfg.ResilienceRetryInitialBackoff,
		RetryMaxBackoff:         cfg.ResilienceRetryMaxBackoff,
		RetryMultiplier:         cfg.ResilienceRetryMultiplier,
		AttemptTimeout:          cfg.ResilienceAttemptTimeout,
		BreakerEnabled:          cfg.ResilienceBreakerEnabled,
		BreakerMinRequests:      uint32(max(cfg.ResilienceBreakerMinRequests, 0)),
		BreakerFailureRatio:     cfg.ResilienceBreakerFailureRatio,
		BreakerOpenTimeout:      cfg.ResilienceBreakerOpenTimeout,
		BreakerHalfOpenMaxCalls: uint32(max(cfg.ResilienceBreakerHalfOpenMaxReq, 0)),
	}
}

func newObjectStorage(ctx context.Context, cfg config.Config, executor *resilience.Executor) (ports.ObjectStorage, error) {
	switch cfg.StorageBackend {
	case "", "localfs":
		return localfs.New(cfg.StoragePath)
	case "minio":
		return minio.New(ctx, minio.Config{
			Endpoint:  cfg.MinIOEndpoint,
			AccessKey: cfg.MinIOAccessKey,
			SecretKey: cfg.MinIOSecretKey,
			Bucket:    cfg.MinIOBucket,
			UseSSL:    cfg.MinIOUseSSL,
		}, executor)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}
}

// newAuditSink builds the notifier over the configured stores. Backends that need a
// connection are skipped with an error when it is missing.
func newAuditSink(cfg config.Config, logger *slog.Logger, observer audit.FailureObserver, backends auditBackends) (ports.AuditSink, error) {
	stores := make([]audit.NamedStore, 0, len(cfg.AuditSinks))
	for _, name := range cfg.AuditSinks {
		var store ports.AuditStore
		switch name {
		case "log":
			store = audit.NewLogStore(logger)
		case "jsonl":
			jsonl, err := audit.NewJSONLStore(cfg.AuditLogPath)
			if err != nil {
				return nil, err
			}
			store = jsonl
		case "postgres":
			if backends.db == nil {
				return nil, fmt.Errorf("audit sink %q needs a database", name)
			}
			store = postgres.NewAuditRepository(backends.db, backends.executor)
		case "nats":
			if backends.queue == nil {
				return nil, fmt.Errorf("audit sink %q needs a nats connection", name)
			}
			store = nats.NewAuditPublisher(backends.queue.Conn(), cfg.NATSAuditSubject, backends.executor)
		default:
			return nil, fmt.Errorf("unknown audit sink %q", name)
		}
		stores = append(stores, audit.NamedStore{Name: name, Store: store})
	}
	return audit.NewNotifier(stores, logger, observer), nil
}
