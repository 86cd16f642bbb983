package app

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/facet/internal/common"
	"github.com/ternarybob/facet/internal/handlers"
	"github.com/ternarybob/facet/internal/interfaces"
	"github.com/ternarybob/facet/internal/scheduler"
	"github.com/ternarybob/facet/internal/services/blob"
	"github.com/ternarybob/facet/internal/services/chat"
	"github.com/ternarybob/facet/internal/services/cleanup"
	"github.com/ternarybob/facet/internal/services/crawler"
	"github.com/ternarybob/facet/internal/services/cronlock"
	"github.com/ternarybob/facet/internal/services/drive"
	"github.com/ternarybob/facet/internal/services/embeddings"
	"github.com/ternarybob/facet/internal/services/extract"
	"github.com/ternarybob/facet/internal/services/finalize"
	"github.com/ternarybob/facet/internal/services/llm"
	"github.com/ternarybob/facet/internal/services/mailer"
	"github.com/ternarybob/facet/internal/services/pdf"
	"github.com/ternarybob/facet/internal/services/policy"
	"github.com/ternarybob/facet/internal/services/preview"
	"github.com/ternarybob/facet/internal/services/reference"
	"github.com/ternarybob/facet/internal/services/retrieval"
	"github.com/ternarybob/facet/internal/services/summary"
	"github.com/ternarybob/facet/internal/services/transcript"
	"github.com/ternarybob/facet/internal/storage/badger"
)

// robotsCacheTTL bounds how long a fetched robots.txt is honored before
// it is re-fetched on the next seed pass.
const robotsCacheTTL = 12 * time.Hour

// App holds all application components and dependencies
type App struct {
	Config         *common.Config
	Logger         arbor.ILogger
	StorageManager interfaces.StorageManager

	// Knowledge pipeline
	LLMService       interfaces.LLMService
	EmbeddingService interfaces.EmbeddingService
	Seeder           *crawler.Seeder
	Ingester         *crawler.Ingester
	ReferenceService *reference.Service
	RetrievalService *retrieval.Service

	// Conversation pipeline
	SummaryService    *summary.Service
	ChatService       *chat.Service
	PreviewService    *preview.Service
	TranscriptService *transcript.Service
	PDFService        *pdf.Service
	BlobService       interfaces.BlobStore
	DriveService      interfaces.DriveStore
	MailerService     interfaces.Mailer
	FinalizeService   *finalize.Service
	CleanupService    *cleanup.Service

	// Scheduling
	CronLocks *cronlock.Manager
	Scheduler *scheduler.Scheduler

	// HTTP handlers
	WebhookHandler      *handlers.WebhookHandler
	ChatHandler         *handlers.ChatHandler
	CronHandler         *handlers.CronHandler
	ConversationHandler *handlers.ConversationHandler
}

// New initializes the application with all dependencies
func New(ctx context.Context, cfg *common.Config, logger arbor.ILogger) (*App, error) {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	if err := app.initStorage(); err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	if err := app.initServices(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	app.initHandlers()

	logger.Info().
		Str("provider", string(cfg.LLM.DefaultProvider)).
		Int("sources", len(cfg.Crawler.Sources)).
		Msg("Application initialization complete")

	return app, nil
}

func (a *App) initStorage() error {
	manager, err := badger.NewManager(a.Logger, &a.Config.Storage.Badger)
	if err != nil {
		return err
	}
	a.StorageManager = manager

	a.Logger.Debug().
		Str("storage", "badger").
		Str("path", a.Config.Storage.Badger.Path).
		Msg("Storage layer initialized")
	return nil
}

// initServices builds the service graph in dependency order: the LLM and
// embedding services first, then the crawl and retrieval pipeline, then
// the conversation pipeline, then the scheduler that drives the passes.
func (a *App) initServices(ctx context.Context) error {
	var err error

	a.LLMService, err = llm.NewLLMService(ctx, a.Config)
	if err != nil {
		return fmt.Errorf("llm service: %w", err)
	}

	a.EmbeddingService, err = embeddings.NewService(a.LLMService, a.Logger)
	if err != nil {
		return fmt.Errorf("embedding service: %w", err)
	}

	// Crawl pipeline
	fetcher := crawler.NewFetcher(&a.Config.Crawler, a.Logger)
	extractor := extract.NewExtractor(a.Logger)
	policyEngine := policy.NewEngine(a.Logger)
	robotsCache := policy.NewRobotsCache(robotsCacheTTL)

	a.Seeder = crawler.NewSeeder(&a.Config.Crawler, fetcher, extractor,
		policyEngine, robotsCache,
		a.StorageManager.SiteStorage(), a.StorageManager.PageStorage(), a.Logger)
	a.Ingester = crawler.NewIngester(&a.Config.Crawler, fetcher, extractor,
		a.EmbeddingService,
		a.StorageManager.PageStorage(), a.StorageManager.SectionStorage(), a.Logger)
	a.ReferenceService = reference.NewService(&a.Config.Reference, &a.Config.Crawler,
		a.EmbeddingService, a.StorageManager.ReferenceStorage(), a.Logger)
	a.RetrievalService = retrieval.NewService(&a.Config.Retrieval, a.EmbeddingService,
		a.StorageManager.SectionStorage(), a.StorageManager.ReferenceStorage(), a.Logger)

	// Conversation pipeline
	a.SummaryService = summary.NewService(&a.Config.Chat, a.LLMService,
		a.StorageManager.ConversationStorage(), a.StorageManager.MessageStorage(), a.Logger)
	a.ChatService = chat.NewService(&a.Config.Chat, a.LLMService, a.RetrievalService,
		a.SummaryService, a.StorageManager.ConversationStorage(),
		a.StorageManager.MessageStorage(), a.StorageManager.AttachmentStorage(), a.Logger)

	a.BlobService, err = blob.NewService(ctx, &a.Config.Blob, a.Logger)
	if err != nil {
		return fmt.Errorf("blob storage: %w", err)
	}

	a.DriveService, err = drive.NewService(ctx, &a.Config.Drive, a.Logger)
	if err != nil {
		return fmt.Errorf("drive storage: %w", err)
	}

	a.PDFService, err = pdf.NewService(a.Logger)
	if err != nil {
		return fmt.Errorf("pdf renderer: %w", err)
	}

	a.TranscriptService, err = transcript.NewService(a.Logger)
	if err != nil {
		return fmt.Errorf("transcript renderer: %w", err)
	}

	a.MailerService = mailer.NewService(&a.Config.SMTP, a.StorageManager.LogStorage(), a.Logger)
	a.PreviewService = preview.NewService(&a.Config.Finalize, a.BlobService,
		a.StorageManager.AttachmentStorage(), a.Logger)

	translator := finalize.NewTranslator(a.LLMService, a.StorageManager.MessageStorage(), a.Logger)
	a.FinalizeService = finalize.NewService(&a.Config.Finalize, a.PreviewService, translator,
		a.TranscriptService, a.PDFService, a.BlobService,
		a.DriveService, a.MailerService,
		a.StorageManager.ConversationStorage(), a.StorageManager.MessageStorage(),
		a.StorageManager.AttachmentStorage(), a.Logger)

	a.CleanupService = cleanup.NewService(a.StorageManager.AttachmentStorage(),
		a.BlobService, a.Logger)

	// Scheduled passes
	a.CronLocks = cronlock.NewManager(a.StorageManager.CronLockStorage(), a.Logger)
	a.Scheduler = scheduler.NewScheduler(&a.Config.Jobs, a.CronLocks,
		a.Seeder, a.Ingester, a.ReferenceService, a.CleanupService,
		a.StorageManager.KeyValueStorage(), a.Logger)

	return nil
}

func (a *App) initHandlers() {
	a.WebhookHandler = handlers.NewWebhookHandler(&a.Config.Webhook, &a.Config.Finalize,
		a.FinalizeService, a.StorageManager.ConversationStorage(),
		a.StorageManager.MessageStorage(), a.StorageManager.AttachmentStorage(),
		a.StorageManager.LogStorage(), a.Logger)
	a.ChatHandler = handlers.NewChatHandler(a.ChatService, a.Logger)
	a.CronHandler = handlers.NewCronHandler(a.Scheduler, a.Logger)
	a.ConversationHandler = handlers.NewConversationHandler(a.StorageManager.ConversationStorage(),
		a.StorageManager.MessageStorage(), a.FinalizeService, a.Logger)
}

// Close releases all application resources in reverse dependency order.
func (a *App) Close() {
	if a.Scheduler != nil {
		a.Scheduler.Stop()
	}
	if a.PDFService != nil {
		if err := a.PDFService.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close PDF renderer")
		}
	}
	if a.LLMService != nil {
		if err := a.LLMService.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close LLM service")
		}
	}
	if a.StorageManager != nil {
		if err := a.StorageManager.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close storage")
		}
	}
	a.Logger.Info().Msg("Application closed")
}
