package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"PDFLibraryBot/internal/analysis"
	"PDFLibraryBot/internal/bot"
	"PDFLibraryBot/internal/config"
	"PDFLibraryBot/internal/infrastructure/llm"
	"PDFLibraryBot/internal/infrastructure/parser"
	"PDFLibraryBot/internal/infrastructure/pdftext"
	"PDFLibraryBot/internal/infrastructure/scheduler"
	"PDFLibraryBot/internal/infrastructure/state"
	"PDFLibraryBot/internal/infrastructure/storage"
	"PDFLibraryBot/internal/infrastructure/telegram"
	"PDFLibraryBot/internal/logging"
	"PDFLibraryBot/internal/ports"
	"PDFLibraryBot/internal/selector"
	"PDFLibraryBot/internal/usecase"
)

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg         config.Config
	logger      *slog.Logger
	db          *sql.DB
	client      *telegram.Client
	handler     *bot.Handler
	maintenance *usecase.Maintenance
	closers     []func() error
}

// NewExtractor builds the PDF reader with the configured reading time model.
func NewExtractor(cfg config.Config, logger *slog.Logger) *pdftext.Extractor {
	return pdftext.NewExtractor(pdftext.ReadingModel{
		Mode:            cfg.Reading.Mode,
		PerImageSeconds: cfg.Reading.PerImageSeconds,
		MaxPages:        cfg.Reading.MaxPages,
	}, logger.With("component", "pdftext"))
}

// NewRouter builds the provider fallback chain from the configured priority
// list. Providers without credentials are left out.
func NewRouter(cfg config.Config, logger *slog.Logger) *analysis.Router {
	reg := analysis.NewRegistry()
	if cfg.Gemini.Enabled() {
		reg.Register(llm.NewGeminiClient(cfg.Gemini))
	}
	if cfg.Perplexity.Enabled() {
		reg.Register(llm.NewPerplexityClient(cfg.Perplexity))
	}
	if cfg.GigaChat.Enabled() {
		reg.Register(llm.NewGigaChatClient(cfg.GigaChat))
	}
	if cfg.Anthropic.Enabled() {
		reg.Register(llm.NewAnthropicClient(cfg.Anthropic))
	}

	return analysis.NewRouter(analysis.RouterDeps{
		Providers:   reg.Ordered(cfg.Analysis.Providers),
		CallTimeout: cfg.Analysis.CallTimeout,
		Logger:      logger.With("component", "analysis.router"),
	})
}

// New connects to Postgres, Telegram and the state store and builds the bot.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level, cfg.Logging.Format)
	}
	if err := cfg.ValidateBot(); err != nil {
		return nil, err
	}

	maxFileSize, err := cfg.Telegram.MaxFileSizeBytes()
	if err != nil {
		return nil, err
	}
	maxPDFSize, err := cfg.Parser.MaxPDFSizeBytes()
	if err != nil {
		return nil, err
	}

	router := NewRouter(cfg, baseLogger)
	if len(router.Providers()) == 0 {
		baseLogger.Warn("no analysis providers configured; uploads will fail until a key is set")
	}

	if !cfg.Database.SkipMigrations {
		if err := storage.Migrate(cfg.Database.DSN); err != nil {
			return nil, err
		}
	}
	db, err := storage.Open(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	a := &Application{cfg: cfg, logger: baseLogger, db: db}
	a.closers = append(a.closers, db.Close)

	client, err := telegram.NewClient(telegram.ClientDeps{
		Token:       cfg.Telegram.BotToken,
		PollTimeout: cfg.Telegram.PollTimeout,
		Workers:     cfg.Telegram.Workers,
		MaxDownload: maxFileSize,
		Logger:      baseLogger.With("component", "telegram"),
	})
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	a.client = client

	dialogs, err := a.dialogStore(ctx)
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	documents := storage.NewDocumentRepository(db)
	users := storage.NewUserRepository(db)
	requests := storage.NewRequestRepository(db)

	fetcher := parser.NewURLParser(parser.URLParserDeps{
		Client:       &http.Client{},
		Renderer:     parser.NewChromeRenderer(cfg.Parser),
		ProbeTimeout: cfg.Parser.ProbeTimeout,
		MaxPDFSize:   maxPDFSize,
		Logger:       baseLogger.With("component", "parser"),
	})

	ingestor := usecase.NewIngestor(usecase.IngestorDeps{
		Extractor: NewExtractor(cfg, baseLogger),
		Analyzer:  router,
		Documents: documents,
		Users:     users,
		Fetcher:   fetcher,
		Messenger: client,
		Logger:    baseLogger.With("component", "ingest"),
	})
	exporter := usecase.NewExporter(usecase.ExporterDeps{
		Documents: documents,
		Requests:  requests,
		Selector:  selector.New(selector.WithFallbackCount(cfg.Selector.FallbackCount)),
		Logger:    baseLogger.With("component", "export"),
	})
	library := usecase.NewLibrary(usecase.LibraryDeps{
		Documents: documents,
		Requests:  requests,
		Users:     users,
	})

	a.handler = bot.NewHandler(bot.HandlerDeps{
		Ingestion:   ingestor,
		Export:      exporter,
		Library:     library,
		Messenger:   client,
		State:       dialogs,
		MaxFileSize: maxFileSize,
		Logger:      baseLogger.With("component", "bot"),
	})

	baseLogger.Info("bot configured",
		"username", client.UserName(),
		"providers", router.Providers(),
		"max_file_size", cfg.Telegram.MaxFileSize,
	)
	return a, nil
}

// dialogStore prefers Redis; without it dialogs live in memory and an
// expiry sweep is scheduled.
func (a *Application) dialogStore(ctx context.Context) (ports.StateStore, error) {
	if a.cfg.State.RedisAddr != "" {
		store, err := state.NewRedisStore(ctx, a.cfg.State.RedisAddr, a.cfg.State.TTL)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, store.Close)
		return store, nil
	}

	store := state.NewMemoryStore(a.cfg.State.TTL)
	a.maintenance = usecase.NewMaintenance(
		scheduler.NewTickerScheduler(a.cfg.State.SweepInterval, false),
		store,
		a.logger.With("component", "state.sweep"),
	)
	return store, nil
}

// Run polls Telegram until ctx is cancelled.
func (a *Application) Run(ctx context.Context) error {
	if a.maintenance != nil {
		if err := a.maintenance.Start(ctx); err != nil {
			return fmt.Errorf("start dialog sweep: %w", err)
		}
		defer func() {
			if err := a.maintenance.Stop(context.Background()); err != nil {
				a.logger.Warn("stop dialog sweep", "error", err)
			}
		}()
	}

	a.logger.Info("bot started")
	err := a.client.Run(ctx, a.handler.Handle)
	a.logger.Info("bot stopped")
	return err
}

// Close releases connections in reverse order of acquisition.
func (a *Application) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
