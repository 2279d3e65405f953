package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"go-time-archive/internal/config"
	"go-time-archive/internal/database"
	"go-time-archive/internal/event"
	"go-time-archive/internal/handler"
	"go-time-archive/internal/middleware"
	"go-time-archive/internal/model"
	"go-time-archive/internal/repository"
	"go-time-archive/internal/router"
	"go-time-archive/internal/service"
	"go-time-archive/internal/storage"
)

const (
	shutdownTimeout    = 10 * time.Second
	shareCleanupPeriod = time.Hour
)

// App holds the wired archiver: storage, repositories and services over one
// database pool and one event bus.
type App struct {
	cfg    *config.Config
	logger *slog.Logger
	db     *database.DB
	store  *storage.Storage
	bus    *event.InMemoryBus

	shares *repository.ShareRepository
	runs   *repository.RunRepository

	Rules     *service.RuleService
	Archiver  *service.ArchiveService
	Favorites *service.FavoriteService
	Scheduler *service.Scheduler
	Audit     *service.AuditService
	Tokens    *service.TokenService

	cleanupFuncs []func()
}

// New connects to PostgreSQL, applies pending migrations and wires every
// service. Close releases what New acquired.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	store, err := storage.New(cfg.StorageRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	logger.Info("connecting to PostgreSQL")
	db, err := database.New(ctx, DatabaseOptions(cfg), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.Migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database schema: %w", err)
	}

	pool := db.Pool
	ruleRepo := repository.NewRuleRepository(pool)
	tagRepo := repository.NewTagRepository(pool)
	shareRepo := repository.NewShareRepository(pool)
	scheduleRepo := repository.NewScheduleRepository(pool)
	runRepo := repository.NewRunRepository(pool)
	auditRepo := repository.NewAuditRepository(pool)
	logger.Info("database ready")

	clock := service.SystemClock{}
	bus := event.NewBus()

	favorites := service.NewFavoriteService(tagRepo, logger)
	classifier := service.NewClassifier(shareRepo, cfg.ProtectedFolders, cfg.ShareCacheSize, cfg.ShareCacheTTL, logger)
	mover := service.NewArchiveMover(store, favorites, service.MoverOptions{
		MaxAttempts:     cfg.MoveMaxAttempts,
		BaseDelay:       cfg.RetryBaseDelay,
		SharedBaseDelay: cfg.SharedRetryBaseDelay,
	}, logger)
	archiver := service.NewArchiveService(ruleRepo, tagRepo, store, store, classifier, mover, favorites, clock, bus,
		service.ArchiveOptions{TagPageSize: cfg.TagPageSize, MaxDepth: cfg.MaxDepth}, logger)
	scheduler := service.NewScheduler(archiver, scheduleRepo, runRepo, clock, bus,
		service.SchedulerOptions{Interval: cfg.SchedulerInterval, Tick: cfg.SchedulerTick}, logger)

	return &App{
		cfg:       cfg,
		logger:    logger,
		db:        db,
		store:     store,
		bus:       bus,
		shares:    shareRepo,
		runs:      runRepo,
		Rules:     service.NewRuleService(ruleRepo, tagRepo, scheduleRepo, bus, logger),
		Archiver:  archiver,
		Favorites: favorites,
		Scheduler: scheduler,
		Audit:     service.NewAuditService(auditRepo, logger),
		Tokens:    service.NewTokenService(cfg.JWTSecret, clock),
		cleanupFuncs: []func(){
			func() {
				db.Close()
			},
		},
	}, nil
}

// DatabaseOptions maps the pool settings out of cfg.
func DatabaseOptions(cfg *config.Config) database.Options {
	return database.Options{
		URL:             cfg.DatabaseURL,
		MaxConns:        cfg.DBMaxConns,
		MinConns:        cfg.DBMinConns,
		ConnectAttempts: cfg.DBConnectAttempts,
		ConnectBackoff:  cfg.DBConnectBackoff,
	}
}

// Close runs the cleanup functions in reverse registration order.
func (a *App) Close() {
	for i := len(a.cleanupFuncs) - 1; i >= 0; i-- {
		a.cleanupFuncs[i]()
	}
}

// startAudit persists bus events until the returned stop is called. stop
// blocks until buffered events are written.
func (a *App) startAudit(ctx context.Context) (stop func()) {
	auditCtx, cancel := context.WithCancel(ctx)
	wait := a.Audit.Start(auditCtx, a.bus)

	return func() {
		cancel()
		wait()
	}
}

// Serve runs the API server, the scheduler and the audit consumer until ctx
// is cancelled, then shuts them down in order.
func (a *App) Serve(ctx context.Context) error {
	if err := a.cfg.ValidateHTTP(); err != nil {
		return err
	}

	stopAudit := a.startAudit(ctx)
	defer stopAudit()

	a.Scheduler.Start(ctx)
	defer a.Scheduler.Stop()

	cleanupCtx, cleanupCancel := context.WithCancel(ctx)
	defer cleanupCancel()
	go a.cleanExpiredShares(cleanupCtx, shareCleanupPeriod)

	authMiddleware := middleware.NewAuthMiddleware(a.Tokens, a.logger)
	appRouter := router.New(a.cfg, a.logger, authMiddleware, router.Handlers{
		Health: handler.NewHealthHandler(a.db),
		Rules:  handler.NewRuleHandler(a.Rules, a.Scheduler),
		Runs:   handler.NewRunHandler(a.runs),
		Audit:  handler.NewAuditHandler(a.Audit),
	})

	server := &http.Server{
		Addr:              ":" + a.cfg.ServerPort,
		Handler:           appRouter,
		ReadHeaderTimeout: a.cfg.ServerReadHeaderTimeout,
		WriteTimeout:      a.cfg.ServerWriteTimeout,
		IdleTimeout:       a.cfg.ServerIdleTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		a.logger.Info("server starting", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	a.logger.Info("server stopped")
	return nil
}

// RunOnce executes the rule behind key in the foreground and records it like
// a scheduled run.
func (a *App) RunOnce(ctx context.Context, key model.RuleKey) (model.RunRecord, error) {
	stopAudit := a.startAudit(ctx)
	defer stopAudit()

	return a.Scheduler.Execute(ctx, key)
}

// RepairFavorites marks every user's archive root as favorite and audits the
// summary.
func (a *App) RepairFavorites(ctx context.Context) (service.RepairSummary, error) {
	stopAudit := a.startAudit(ctx)
	defer stopAudit()

	summary, err := a.Favorites.RepairFavorites(ctx, a.store, a.store)
	if err != nil {
		return summary, err
	}

	a.bus.Publish(event.New(event.TypeFavoriteRepair, "", summary))
	return summary, nil
}

func (a *App) cleanExpiredShares(ctx context.Context, period time.Duration) {
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := a.shares.CleanExpired(ctx)
			if err != nil {
				a.logger.Warn("expired share cleanup failed", "error", err)
				continue
			}
			if removed > 0 {
				a.logger.Info("expired shares removed", "count", removed)
			}
		}
	}
}
