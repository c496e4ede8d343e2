package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kirillkom/fiscal-doc-analyzer/internal/config"
	"github.com/kirillkom/fiscal-doc-analyzer/internal/core/analyzer"
	"github.com/kirillkom/fiscal-doc-analyzer/internal/core/batch"
	"github.com/kirillkom/fiscal-doc-analyzer/internal/core/cnae"
	"github.com/kirillkom/fiscal-doc-analyzer/internal/core/decision"
	"github.com/kirillkom/fiscal-doc-analyzer/internal/core/domain"
	"github.com/kirillkom/fiscal-doc-analyzer/internal/core/normalize"
	"github.com/kirillkom/fiscal-doc-analyzer/internal/core/parser"
	"github.com/kirillkom/fiscal-doc-analyzer/internal/core/pipeline"
	"github.com/kirillkom/fiscal-doc-analyzer/internal/core/ports"
	"github.com/kirillkom/fiscal-doc-analyzer/internal/core/usecase"
	"github.com/kirillkom/fiscal-doc-analyzer/internal/infrastructure/extractor/pdftext"
	"github.com/kirillkom/fiscal-doc-analyzer/internal/infrastructure/heuristics/yamlfile"
	"github.com/kirillkom/fiscal-doc-analyzer/internal/infrastructure/queue/nats"
	"github.com/kirillkom/fiscal-doc-analyzer/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/fiscal-doc-analyzer/internal/infrastructure/resilience"
	"github.com/kirillkom/fiscal-doc-analyzer/internal/infrastructure/rules/csvsource"
	"github.com/kirillkom/fiscal-doc-analyzer/internal/observability/metrics"
)

type App struct {
	Config config.Config
	Logger *slog.Logger

	Queue     ports.MessageQueue
	NFeUC     ports.NFeService
	NFSeUC    ports.NFSeService
	BatchUC   ports.BatchService
	IngestUC  ports.JobSubmitter
	JobsUC    ports.JobReader
	ProcessUC ports.JobProcessor
	RulesUC   ports.RuleAdmin

	closeFn func()
}

// Core is the document pipeline without any transport or persistence.
type Core struct {
	Rules     *cnae.Repository
	NFe       *pipeline.NFePipeline
	NFSe      *pipeline.NFSePipeline
	Processor *batch.Processor
}

// NewCore resolves tables, thresholds and rules from cfg and binds the pipelines.
// A rule file that cannot be read leaves the table empty and is logged.
func NewCore(ctx context.Context, cfg config.Config, logger *slog.Logger, pipelineMetrics ports.PipelineMetrics) (*Core, error) {
	overrides, err := yamlfile.Load(cfg.HeuristicsPath)
	if err != nil {
		return nil, fmt.Errorf("load heuristics: %w", err)
	}
	thresholds := Thresholds(cfg, logger)

	rules := cnae.NewRepository(csvsource.New(cfg.CNAERulesPath), logger)
	if _, err := rules.Reload(ctx); err != nil {
		logger.Warn("cnae_rules_load_failed", "path", cfg.CNAERulesPath, "error", err)
	}

	normalizer := normalize.New(overrides.Heuristics, thresholds)
	docAnalyzer := analyzer.New(analyzer.Config{
		Thresholds:      thresholds,
		Codes:           overrides.Codes,
		FilialByDest:    overrides.FilialByDest,
		FilialByTomador: overrides.FilialByTomador,
	})
	nfseParser := parser.NewNFSeParser(rules, decision.NewEngine(thresholds))

	nfe := pipeline.NewNFePipeline(normalizer, docAnalyzer, pipelineMetrics)
	nfse := pipeline.NewNFSePipeline(nfseParser, normalizer, docAnalyzer, pdftext.NewExtractor(0), pipelineMetrics)
	processor := batch.NewProcessor(nfe, nfse, domain.BatchLimits{
		MaxFiles:      cfg.BatchMaxFiles,
		MaxTotalBytes: cfg.BatchMaxTotalBytes,
	}, logger, pipelineMetrics)

	return &Core{Rules: rules, NFe: nfe, NFSe: nfse, Processor: processor}, nil
}

// New wires the full application. registerer receives the pipeline and resilience collectors.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger, registerer prometheus.Registerer) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	pipelineMetrics := metrics.NewPipelineMetrics(registerer)
	executor := resilience.NewExecutor(ResilienceConfig(cfg),
		resilience.WithObserver(pipelineMetrics),
		resilience.WithLogger(logger),
	)

	core, err := NewCore(ctx, cfg, logger, pipelineMetrics)
	if err != nil {
		return nil, err
	}

	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := postgres.EnsureSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	jobs := postgres.NewJobRepository(db)

	storage, err := newObjectStorage(ctx, cfg, executor)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		Name:               "fiscal-doc-analyzer",
		ResilienceExecutor: executor,
		Logger:             logger,
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	sink, err := newAuditSink(cfg, logger, pipelineMetrics, auditBackends{
		db:       db,
		queue:    queue,
		executor: executor,
	})
	if err != nil {
		queue.Close()
		_ = db.Close()
		return nil, fmt.Errorf("init audit sink: %w", err)
	}

	return &App{
		Config: cfg,
		Logger: logger,
		Queue:  queue,

		NFeUC:     usecase.NewNFeUseCase(core.NFe, sink),
		NFSeUC:    usecase.NewNFSeUseCase(core.NFSe, sink),
		BatchUC:   usecase.NewBatchUseCase(core.Processor, sink),
		IngestUC:  usecase.NewIngestBatchUseCase(jobs, storage, queue, sink),
		JobsUC:    usecase.NewJobQueryUseCase(jobs, storage),
		ProcessUC: usecase.NewProcessBatchJobUseCase(jobs, storage, core.Processor, sink),
		RulesUC:   usecase.NewRuleAdminUseCase(core.Rules, sink),

		closeFn: func() {
			queue.Close()
			_ = db.Close()
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}

type auditBackends struct {
	db       *sql.DB
	queue    *nats.Queue
	executor *resilience.Executor
}
