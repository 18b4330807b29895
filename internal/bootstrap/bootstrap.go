// Package bootstrap wires configuration, infrastructure and usecases
// into one App shared by the api and worker binaries.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/mklenk/belegwerk/internal/config"
	"github.com/mklenk/belegwerk/internal/core/ports"
	"github.com/mklenk/belegwerk/internal/core/usecase"
	"github.com/mklenk/belegwerk/internal/infrastructure/provider/docai"
	"github.com/mklenk/belegwerk/internal/infrastructure/queue/nats"
	"github.com/mklenk/belegwerk/internal/infrastructure/report"
	"github.com/mklenk/belegwerk/internal/infrastructure/repository/postgres"
	"github.com/mklenk/belegwerk/internal/infrastructure/resilience"
	"github.com/mklenk/belegwerk/internal/infrastructure/storage/minio"
	"github.com/mklenk/belegwerk/internal/infrastructure/textscan"
)

type App struct {
	Config config.Config
	Logger *slog.Logger

	Queue     ports.MessageQueue
	Documents ports.DocumentRepository

	UploadUC      ports.DocumentUploader
	ExtractUC     ports.ExtractionRunner
	RetryUC       ports.RetryService
	LocalizeUC    ports.PartnerLocalizer
	CategoryUC    ports.TransactionCategorizer
	PartnerUC     *usecase.MatchDocumentPartnerUseCase
	TransactionUC *usecase.MatchDocumentTransactionsUseCase
	Exporter      *report.Exporter

	extract *usecase.ExtractDocumentUseCase
	closeFn func()
}

// SetExtractionObserver attaches pipeline metrics to the extraction use
// case. Called by the worker binary, which owns the metrics registry.
func (a *App) SetExtractionObserver(observer ports.PipelineObserver) {
	a.extract.SetObserver(observer)
}

func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := postgres.EnsureSchema(ctx, db); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	documents := postgres.NewDocumentRepository(db)
	partners := postgres.NewPartnerRepository(db)
	transactions := postgres.NewTransactionRepository(db)
	categories := postgres.NewCategoryRepository(db)
	identities := postgres.NewIdentityRepository(db)
	usage := postgres.NewUsageRepository(db)

	storage, err := minio.New(minio.Config{
		Endpoint:  cfg.MinioEndpoint,
		AccessKey: cfg.MinioAccessKey,
		SecretKey: cfg.MinioSecretKey,
		Bucket:    cfg.MinioBucket,
		UseSSL:    cfg.MinioUseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	executor := resilience.NewExecutor(resilience.DefaultConfig(), logger)

	queue, err := nats.New(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		ResilienceExecutor: executor,
		Logger:             logger,
	})
	if err != nil {
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	provider, err := buildProvider(cfg, executor)
	if err != nil {
		queue.Close()
		return nil, err
	}

	prescan := textscan.New()
	if cfg.PrescanMaxPages > 0 {
		prescan.MaxPages = cfg.PrescanMaxPages
	}

	uploadUC := usecase.NewUploadDocumentUseCase(documents, storage, queue)
	extractUC := usecase.NewExtractDocumentUseCase(
		documents, storage, identities, identities, provider, prescan, usage,
		cfg.TrustPrescan, logger,
	)
	retryUC := usecase.NewRetryDocumentUseCase(documents, queue, logger)
	localizeUC := usecase.NewLocalizePartnersUseCase(partners, transactions, cfg.SuggestionScanLimit, logger)
	categoryUC := usecase.NewCategorizeTransactionUseCase(transactions, categories)
	partnerUC := usecase.NewMatchDocumentPartnerUseCase(documents, partners, logger)
	transactionUC := usecase.NewMatchDocumentTransactionsUseCase(documents, transactions, logger)
	exporter := report.NewExporter(documents, 0)

	return &App{
		Config: cfg,
		Logger: logger,

		Queue:     queue,
		Documents: documents,

		UploadUC:      uploadUC,
		ExtractUC:     extractUC,
		RetryUC:       retryUC,
		LocalizeUC:    localizeUC,
		CategoryUC:    categoryUC,
		PartnerUC:     partnerUC,
		TransactionUC: transactionUC,
		Exporter:      exporter,

		extract: extractUC,
		closeFn: func() {
			queue.Close()
			_ = db.Close()
		},
	}, nil
}

func buildProvider(cfg config.Config, executor *resilience.Executor) (ports.ExtractionProvider, error) {
	client := docai.NewClient(cfg.ProviderBaseURL, cfg.ProviderAPIKey, cfg.ProviderModel, docai.Options{
		Timeout:           time.Duration(cfg.ProviderTimeoutSec) * time.Second,
		RequestsPerSecond: cfg.ProviderRateRPS,
		Executor:          executor,
	})

	switch cfg.Provider {
	case "ocr-parse":
		return docai.NewOCRParseClient(client), nil
	case "vision-parse":
		return docai.NewVisionParseClient(client), nil
	default:
		return nil, fmt.Errorf("unknown extraction provider %q", cfg.Provider)
	}
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
