package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kirillkom/compliance-auditor/internal/config"
	"github.com/kirillkom/compliance-auditor/internal/core/domain"
	"github.com/kirillkom/compliance-auditor/internal/core/ports"
	"github.com/kirillkom/compliance-auditor/internal/core/tracking"
	"github.com/kirillkom/compliance-auditor/internal/core/usecase"
	"github.com/kirillkom/compliance-auditor/internal/infrastructure/catalog/yamlcatalog"
	"github.com/kirillkom/compliance-auditor/internal/infrastructure/extractor"
	"github.com/kirillkom/compliance-auditor/internal/infrastructure/llm/ollama"
	"github.com/kirillkom/compliance-auditor/internal/infrastructure/queue/nats"
	"github.com/kirillkom/compliance-auditor/internal/infrastructure/report/xlsxreport"
	"github.com/kirillkom/compliance-auditor/internal/infrastructure/repository/memory"
	"github.com/kirillkom/compliance-auditor/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/compliance-auditor/internal/infrastructure/resilience"
	"github.com/kirillkom/compliance-auditor/internal/infrastructure/storage/localfs"
	"github.com/kirillkom/compliance-auditor/internal/observability/metrics"
)

type App struct {
	Config config.Config

	Bus ports.LifecycleBus

	Documents *usecase.DocumentUseCase
	Checks    *usecase.AuditCheckUseCase
	Dashboard *usecase.DashboardUseCase
	Findings  *usecase.FindingUseCase
	Activity  *usecase.ActivityQueryUseCase
	Catalog   *usecase.CatalogUseCase
	Reports   *usecase.ReportUseCase

	closeFn func()
}

// persistence is the set of storage ports selected by STORE_DRIVER.
type persistence struct {
	projects    ports.ProjectRepository
	users       ports.UserDirectory
	documents   ports.DocumentRepository
	findings    ports.FindingRepository
	frameworks  ports.FrameworkRepository
	assignments ports.ProjectFrameworkRepository
	runs        ports.CheckRunRepository
	activity    ports.ActivityLogStore
	committer   ports.ChangeCommitter
	close       func()
}

// New wires the application. Audit metrics register on registerer, which is
// the registry served by the calling process.
func New(ctx context.Context, cfg config.Config, registerer prometheus.Registerer, service string) (*App, error) {
	store, err := openPersistence(ctx, cfg)
	if err != nil {
		return nil, err
	}

	storage, err := localfs.New(cfg.StoragePath)
	if err != nil {
		store.close()
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	auditMetrics := metrics.NewAuditMetrics(service, registerer)
	executor := resilience.NewExecutor(resilienceConfig(cfg)).WithRetryObserver(auditMetrics.ObserveRetry)

	var bus *nats.Bus
	if strings.TrimSpace(cfg.NATSURL) != "" {
		bus, err = nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{ResilienceExecutor: executor})
		if err != nil {
			store.close()
			return nil, fmt.Errorf("init lifecycle bus: %w", err)
		}
	}

	dispatcher := tracking.NewDispatcher()
	activityWriter := usecase.NewActivityWriter(store.activity, store.users, auditMetrics)
	activityWriter.Register(dispatcher)
	if bus != nil {
		usecase.NewLifecycleForwarder(bus).Register(dispatcher)
	}

	parser := extractor.NewDefaultRegistry()
	aggregator := usecase.NewContentAggregator(storage, parser)

	ollamaClient := ollama.New(cfg.OllamaURL, cfg.OllamaModel, cfg.OllamaTimeout()).WithResilience(executor)
	analyzer := ollama.NewAnalyzer(ollamaClient, cfg.AnalysisMaxDocChars)

	checks := usecase.NewAuditCheckUseCase(usecase.AuditCheckDependencies{
		Projects:    store.projects,
		Frameworks:  store.frameworks,
		Assignments: store.assignments,
		Documents:   store.documents,
		Aggregator:  aggregator,
		Analyzer:    analyzer,
		Synthesizer: usecase.NewFindingSynthesizer(),
		Committer:   store.committer,
		Recorder:    dispatcher,
		Activity:    activityWriter,
		Metrics:     auditMetrics,
	}, domain.AnalysisOptions{
		Model:           cfg.OllamaModel,
		Language:        cfg.AnalysisLanguage,
		IncludeEvidence: true,
	}, cfg.AnalysisVersion)

	dashboard := usecase.NewDashboardUseCase(store.projects, store.assignments, store.frameworks, store.findings, store.documents, store.runs)

	app := &App{
		Config: cfg,

		Documents: usecase.NewDocumentUseCase(store.projects, store.documents, storage, aggregator, store.committer, dispatcher),
		Checks:    checks,
		Dashboard: dashboard,
		Findings:  usecase.NewFindingUseCase(store.projects, store.findings, store.committer, dispatcher),
		Activity:  usecase.NewActivityQueryUseCase(store.projects, store.activity),
		Catalog:   usecase.NewCatalogUseCase(yamlcatalog.NewDecoder(), store.frameworks),
		Reports:   usecase.NewReportUseCase(store.projects, dashboard, store.findings, xlsxreport.NewWriter()),

		closeFn: func() {
			if bus != nil {
				bus.Close()
			}
			store.close()
		},
	}
	if bus != nil {
		app.Bus = bus
	}
	return app, nil
}

func openPersistence(ctx context.Context, cfg config.Config) (*persistence, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.StoreDriver)) {
	case config.StoreDriverMemory:
		slog.Warn("memory_store_enabled", "detail", "state is lost on restart")
		store := memory.NewStore()
		return &persistence{
			projects:    store.Projects(),
			users:       store.Users(),
			documents:   store.Documents(),
			findings:    store.Findings(),
			frameworks:  store.Frameworks(),
			assignments: store.Assignments(),
			runs:        store.CheckRuns(),
			activity:    store.Activity(),
			committer:   store,
			close:       func() {},
		}, nil
	case "", config.StoreDriverPostgres:
		db, err := postgres.OpenDB(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		if err := postgres.EnsureSchema(ctx, db); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("ensure schema: %w", err)
		}
		return &persistence{
			projects:    postgres.NewProjectRepository(db),
			users:       postgres.NewUserDirectory(db),
			documents:   postgres.NewDocumentRepository(db),
			findings:    postgres.NewFindingRepository(db),
			frameworks:  postgres.NewFrameworkRepository(db),
			assignments: postgres.NewProjectFrameworkRepository(db),
			runs:        postgres.NewCheckRunRepository(db),
			activity:    postgres.NewActivityLogStore(db),
			committer:   postgres.NewUnitOfWork(db),
			close:       func() { _ = db.Close() },
		}, nil
	default:
		return nil, fmt.Errorf("unknown STORE_DRIVER %q", cfg.StoreDriver)
	}
}

func resilienceConfig(cfg config.Config) resilience.Config {
	out := resilience.DefaultConfig()
	out.Retry.MaxAttempts = cfg.ResilienceRetryMaxAttempts
	out.Retry.InitialBackoff = time.Duration(cfg.ResilienceRetryInitialBackoffMS) * time.Millisecond
	out.Retry.MaxBackoff = time.Duration(cfg.ResilienceRetryMaxBackoffMS) * time.Millisecond
	out.Breaker.Enabled = cfg.ResilienceBreakerEnabled
	out.Breaker.FailureRatio = cfg.ResilienceBreakerFailureRatio
	out.Breaker.OpenTimeout = time.Duration(cfg.ResilienceBreakerOpenSeconds) * time.Second
	return out
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
