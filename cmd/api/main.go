package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/johnquangdev/meeting-sync/internal/adapter/handler"
	"github.com/johnquangdev/meeting-sync/internal/adapter/repository"
	"github.com/johnquangdev/meeting-sync/internal/domain/entities"
	"github.com/johnquangdev/meeting-sync/internal/infrastructure/cache"
	"github.com/johnquangdev/meeting-sync/internal/infrastructure/database"
	"github.com/johnquangdev/meeting-sync/internal/infrastructure/email"
	"github.com/johnquangdev/meeting-sync/internal/infrastructure/external/gmeet"
	"github.com/johnquangdev/meeting-sync/internal/infrastructure/external/httpclient"
	"github.com/johnquangdev/meeting-sync/internal/infrastructure/external/oauth"
	"github.com/johnquangdev/meeting-sync/internal/infrastructure/external/teams"
	"github.com/johnquangdev/meeting-sync/internal/infrastructure/external/zoom"
	httpmw "github.com/johnquangdev/meeting-sync/internal/infrastructure/http/middleware"
	"github.com/johnquangdev/meeting-sync/internal/infrastructure/storage"
	connectionUsecase "github.com/johnquangdev/meeting-sync/internal/usecase/connection"
	ingestUsecase "github.com/johnquangdev/meeting-sync/internal/usecase/ingest"
	"github.com/johnquangdev/meeting-sync/internal/usecase/jobs"
	meetingUsecase "github.com/johnquangdev/meeting-sync/internal/usecase/meeting"
	"github.com/johnquangdev/meeting-sync/internal/usecase/poller"
	"github.com/johnquangdev/meeting-sync/internal/usecase/reconcile"
	pkgai "github.com/johnquangdev/meeting-sync/pkg/ai"
	"github.com/johnquangdev/meeting-sync/pkg/config"
	"github.com/johnquangdev/meeting-sync/pkg/jwt"
	pkgvalidator "github.com/johnquangdev/meeting-sync/pkg/validator"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("❌ Service failed", zap.Error(err))
	}
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.IsProduction() {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	logger.Info("🔧 Initializing dependencies...", zap.String("environment", cfg.Server.Environment))

	// Database
	db, err := database.NewPostgresDB(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = database.CloseDB(db) }()

	// Schema is managed by sql-migrate; applying it at boot is a development convenience.
	if cfg.Database.AutoMigrate {
		if err := database.AutoMigrate(db, cfg.Database.MigrationsDir); err != nil {
			return fmt.Errorf("failed to migrate: %w", err)
		}
	}

	store, err := newStore(cfg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	// Repositories
	userRepo := repository.NewUserRepository(db)
	meetingRepo := repository.NewMeetingRepository(db)
	participantRepo := repository.NewParticipantRepository(db)
	jobRepo := repository.NewJobRepository(db)
	resultRepo := repository.NewResultRepository(db)
	connRepo := repository.NewConnectionRepository(db)
	tx := repository.NewTransactor(db)

	// Provider credentials and clients
	providers := oauth.NewProviders(cfg)
	refresher := oauth.NewRefresher(oauth.RefreshersFrom(providers), connRepo, store, cfg.TokenRefresh, logger)
	defer refresher.StopAll()

	hc := httpclient.New(refresher, httpclient.Options{}, logger)

	var (
		teamsAPI    ingestUsecase.TeamsAPI
		zoomAPI     ingestUsecase.ZoomAPI
		gmeetAPI    ingestUsecase.GmeetAPI
		teamsSubs   connectionUsecase.TeamsSubscriber
		gmeetWatch  connectionUsecase.GmeetWatcher
		accountRead = make(map[entities.Platform]connectionUsecase.AccountReader, len(providers))
	)
	for platform, provider := range providers {
		accountRead[platform] = provider
		logger.Info("🔐 Platform enabled", zap.String("platform", string(platform)))
	}
	if _, ok := providers[entities.PlatformTeams]; ok {
		c := teams.NewClient(hc, cfg.Teams.GraphBaseURL)
		teamsAPI, teamsSubs = c, c
	}
	if _, ok := providers[entities.PlatformZoom]; ok {
		zoomAPI = zoom.NewClient(hc, cfg.Zoom.APIBaseURL)
	}
	if _, ok := providers[entities.PlatformGmeet]; ok {
		c := gmeet.NewClient(hc, gmeet.Endpoints{
			Calendar: cfg.Gmeet.CalendarBaseURL,
			Meet:     cfg.Gmeet.MeetBaseURL,
			Drive:    cfg.Gmeet.DriveBaseURL,
			Events:   cfg.Gmeet.EventsBaseURL,
		})
		gmeetAPI, gmeetWatch = c, c
	}

	mailer, err := newMailer(cfg, logger)
	if err != nil {
		return err
	}

	// Reconciliation core
	reconciler := reconcile.NewService(reconcile.Dependencies{
		Meetings:     meetingRepo,
		Users:        userRepo,
		Participants: participantRepo,
		Jobs:         jobRepo,
		Tx:           tx,
		Mailer:       mailer,
	}, reconcile.Options{
		Windows: reconcile.Windows{
			Leading:  cfg.Reconcile.LeadingWindow,
			Trailing: cfg.Reconcile.TrailingWindow,
		},
		Concurrency: cfg.Reconcile.Concurrency,
		MaxAttempts: cfg.Jobs.MaxAttempts,
		MailTimeout: cfg.SMTP.SendTimeout,
	}, logger)
	defer reconciler.Wait()

	ingestService := ingestUsecase.NewIngestService(ingestUsecase.Deps{
		Reconciler:  reconciler,
		Connections: connRepo,
		Reports:     meetingRepo,
		Teams:       teamsAPI,
		Zoom:        zoomAPI,
		Gmeet:       gmeetAPI,
		Cursors:     store,
		Logger:      logger,
	})

	connectionService := connectionUsecase.NewConnectionService(connectionUsecase.Deps{
		Users:       userRepo,
		Connections: connRepo,
		Providers:   accountRead,
		Tokens:      refresher,
		Teams:       teamsSubs,
		Gmeet:       gmeetWatch,
		Store:       store,
		Config:      cfg,
		Logger:      logger,
	})
	if _, err := connectionService.Resume(ctx); err != nil {
		return err
	}

	meetingService := meetingUsecase.NewMeetingService(meetingRepo, participantRepo, jobRepo, resultRepo, cfg.Jobs.MaxAttempts, logger)

	// Outbox dispatcher
	dispatcher := jobs.NewDispatcher(jobRepo, cfg.Jobs, logger, jobs.NewHandlers(jobs.Deps{
		Meetings:     meetingRepo,
		Users:        userRepo,
		Participants: participantRepo,
		Results:      resultRepo,
		LLM:          pkgai.NewGroqClient(&cfg.LLM),
		Logger:       logger,
	})...)
	if err := dispatcher.Start(ctx); err != nil {
		return fmt.Errorf("failed to start dispatcher: %w", err)
	}
	defer func() { _ = dispatcher.Stop() }()

	// Report poller
	reportPoller := poller.NewPoller(connRepo, ingestService, connectionService, reconciler.Windows(), cfg.Poller, logger)
	if cfg.Poller.Enabled {
		if err := reportPoller.Start(ctx); err != nil {
			return fmt.Errorf("failed to start poller: %w", err)
		}
		defer func() { _ = reportPoller.Stop() }()
	}

	// HTTP
	var (
		archive handler.Archiver
		reader  handler.ArchiveReader
	)
	if cfg.Storage.ArchiveWebhooks {
		mc, err := storage.NewMinIOClient(ctx, &cfg.Storage)
		if err != nil {
			return err
		}
		archive, reader = mc, mc
	}
	webhookHandler := handler.NewWebhookHandler(ingestService, archive, store, cfg, logger).WithReader(reader)

	jwtManager := jwt.NewManager(cfg.Admin.JWTSecret, cfg.Admin.Issuer, cfg.Admin.TokenExpiry)
	router := handler.NewRouter(cfg,
		webhookHandler,
		handler.NewMeetingHandler(meetingService, logger),
		handler.NewConnectionHandler(connectionService, logger),
		httpmw.EchoAdminAuth(jwtManager, logger),
		pingDB(db),
	)

	e := newEcho(cfg, logger)
	router.Setup(e)

	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	serveErr := make(chan error, 1)
	go func() {
		logger.Info("🚀 Starting server", zap.String("addr", addr))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	}

	logger.Info("🛑 Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("❌ Server forced to shutdown", zap.Error(err))
	}
	if err := webhookHandler.Wait(shutdownCtx); err != nil {
		logger.Warn("⚠️ Webhook work still running at shutdown", zap.Error(err))
	}

	// deferred stops run in reverse: poller, dispatcher, reconciler, refresher, store, db
	logger.Info("✅ Server stopped gracefully")
	return nil
}

func newStore(cfg *config.Config, logger *zap.Logger) (cache.Store, error) {
	if !cfg.Redis.Enabled {
		logger.Warn("⚠️ Redis disabled, using in-process cache")
		return cache.NewMemoryStore(), nil
	}
	client, err := cache.NewRedisClient(cfg)
	if err != nil {
		return nil, err
	}
	logger.Info("✅ Redis connected", zap.String("addr", cfg.GetRedisAddr()))
	return cache.NewRedisStore(client, "meeting-sync:"), nil
}

func newMailer(cfg *config.Config, logger *zap.Logger) (reconcile.InviteMailer, error) {
	if !cfg.SMTP.Enabled {
		return email.NewNoopMailer(logger), nil
	}
	mailer, err := email.NewSMTPMailer(cfg.SMTP, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize mailer: %w", err)
	}
	return mailer, nil
}

func pingDB(db *gorm.DB) handler.Pinger {
	return func(ctx context.Context) error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.PingContext(ctx)
	}
}

func newEcho(cfg *config.Config, logger *zap.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Validator = pkgvalidator.New()
	e.HTTPErrorHandler = handler.ErrorHandler(logger)

	e.Use(middleware.RequestID())
	e.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
		Format: "${time_rfc3339} | ${id} | ${status} | ${method} ${uri} | ${latency_human}\n",
	}))
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: cfg.Server.AllowedOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}))
	return e
}
