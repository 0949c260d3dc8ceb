package main

import (
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/helpdesk-service/internal/api/http"
	"github.com/spec-kit/helpdesk-service/internal/api/http/handlers"
	"github.com/spec-kit/helpdesk-service/internal/auth"
	"github.com/spec-kit/helpdesk-service/internal/config"
	"github.com/spec-kit/helpdesk-service/internal/events"
	"github.com/spec-kit/helpdesk-service/internal/observability"
	"github.com/spec-kit/helpdesk-service/internal/persistence"
	"github.com/spec-kit/helpdesk-service/internal/repository"
	"github.com/spec-kit/helpdesk-service/internal/repository/memory"
	"github.com/spec-kit/helpdesk-service/internal/service"
	"github.com/spec-kit/helpdesk-service/internal/storage"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	skipMigrations, _ := cmd.Flags().GetBool("skip-migrations")

	logger, err := observability.NewLogger(cfg.App, cfg.Logger)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	defer pg.Close()

	if pg.Enabled() && cfg.Postgres.RunMigrations && !skipMigrations {
		if err := persistence.RunMigrations(cfg.Postgres.DSN, logger); err != nil {
			return err
		}
	}

	var repos repository.Set
	if pg.Enabled() {
		repos = repository.NewPostgresSet(pg.PoolHandle())
	} else {
		repos = memory.NewSet()
	}

	redis := persistence.NewRedis(ctx, cfg.Redis, logger)
	defer redis.Close()

	metrics := observability.NewMetrics()
	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTL())
	throttle := auth.NewRedisLoginThrottle(redis.ClientHandle(), cfg.Auth.LoginMaxAttempts, cfg.Auth.LoginWindow(), logger)

	files, err := storage.NewLocalFileStore(cfg.Storage.UploadDir, cfg.Storage.PublicBaseURL)
	if err != nil {
		return err
	}

	dispatcher := events.NewInMemoryDispatcher()
	service.NewLifecycleSubscriber(dispatcher, logger, metrics).RegisterHandlers()

	authService, err := service.NewAuthService(cfg.Auth, service.AuthDependencies{
		OrganizationRepo: repos.Organizations,
		UserRepo:         repos.Users,
		Tokens:           tokens,
		Throttle:         throttle,
		Logger:           logger,
		Metrics:          metrics,
	})
	if err != nil {
		return fmt.Errorf("auth service: %w", err)
	}
	ticketService := service.NewTicketService(service.TicketDependencies{
		TicketRepo:   repos.Tickets,
		UserRepo:     repos.Users,
		CommentRepo:  repos.Comments,
		Files:        files,
		Dispatcher:   dispatcher,
		Logger:       logger,
		MaxFiles:     cfg.Storage.MaxFiles,
		MaxFileBytes: cfg.Storage.MaxFileBytes,
	})

	deps := map[string]handlers.Pinger{}
	if pg.Enabled() {
		deps["postgres"] = pg
	}
	if redis.ClientHandle() != nil {
		deps["redis"] = redis
	}

	app := httptransport.NewApp(logger, metrics, bodyLimit(cfg.Storage))
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:    handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, deps),
		Auth:      handlers.NewAuthHandler(authService),
		Users:     handlers.NewUsersHandler(authService),
		Tickets:   handlers.NewTicketsHandler(ticketService),
		Tokens:    tokens,
		Metrics:   metrics,
		UploadDir: files.Dir(),
	})

	listenErr := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", cfg.App.Addr()), zap.String("env", cfg.App.Env))
		listenErr <- app.Listen(cfg.App.Addr())
	}()

	select {
	case err := <-listenErr:
		return fmt.Errorf("listen: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	return app.ShutdownWithTimeout(shutdownTimeout)
}

// bodyLimit leaves room for a full set of attachments plus the form fields.
func bodyLimit(cfg config.StorageConfig) int {
	if cfg.MaxFiles <= 0 || cfg.MaxFileBytes <= 0 {
		return 0
	}
	return cfg.MaxFiles*int(cfg.MaxFileBytes) + 1<<20
}

