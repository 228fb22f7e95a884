package app

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"fleetsync/internal/config"
	"fleetsync/internal/db"
	httpserver "fleetsync/internal/http"
	"fleetsync/internal/http/handlers"
	"fleetsync/internal/http/middleware"
	"fleetsync/internal/redisstore"
	"fleetsync/internal/repository"
	"fleetsync/internal/service"
	"fleetsync/internal/wialon"
)

// Report calls against the provider routinely take tens of seconds for large
// windows.
const providerTimeout = 2 * time.Minute

// App wires fleetsync dependencies.
type App struct {
	server *httpserver.Server
	sync   *service.SyncService
	db     *sql.DB
	redis  *redis.Client
	logger *zap.Logger
}

// New constructs application components.
func New(cfg *config.Config, logger *zap.Logger) (*App, error) {
	sqlDB, err := db.NewPostgres(cfg.Database.DSN)
	if err != nil {
		return nil, err
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient, err = redisstore.NewClient(cfg.Redis.Addr, cfg.Redis.Password)
		if err != nil {
			sqlDB.Close()
			return nil, err
		}
	} else {
		logger.Info("redis not configured, sync status store disabled")
	}
	statusStore := redisstore.NewStatusStore(redisClient)

	client := wialon.NewClient(cfg.Wialon.Host, wialon.NewDefaultHTTPClient(providerTimeout), logger)
	session := wialon.NewSession(client, cfg.Wialon.Token)
	api := wialon.NewAPI(session, logger)

	unitRepo := repository.NewUnitRepository(sqlDB)
	engineHoursRepo := repository.NewEngineHoursRepository(sqlDB)
	dailyReportRepo := repository.NewDailyReportRepository(sqlDB)

	guard := service.NewRunGuard()
	reportService := service.NewReportService(api, unitRepo, engineHoursRepo, logger)
	syncService := service.NewSyncService(reportService, guard, statusStore, cfg.SyncInterval(), logger)
	historyService := service.NewHistoryService(reportService, dailyReportRepo, guard, statusStore, logger)

	routes := httpserver.Routes{
		Units:         handlers.NewUnitsHandler(reportService, logger),
		Templates:     handlers.NewTemplatesHandler(reportService, logger),
		ExecuteReport: handlers.NewExecuteReportHandler(reportService, logger),
		BatchReports:  handlers.NewBatchReportsHandler(reportService, logger),
		EngineHours:   handlers.NewEngineHoursHandler(reportService, logger),
		HistorySync:   handlers.NewHistorySyncHandler(historyService, logger),
		HistoryDay:    handlers.NewHistoryDayHandler(historyService, logger),
		HistoryRange:  handlers.NewHistoryRangeHandler(historyService, logger),
		SyncStatus:    handlers.NewSyncStatusHandler(statusStore, logger),
		Health:        handlers.NewHealthHandler(),
	}

	var auth func(http.Handler) http.Handler
	if cfg.Auth.JWTSecret != "" {
		auth = middleware.Auth(cfg.Auth.JWTSecret)
	} else {
		logger.Warn("jwt secret not configured, api auth disabled")
	}

	router := httpserver.NewRouter(routes, auth)
	server := httpserver.NewServer(cfg.HTTPAddress(), router, logger)

	return &App{
		server: server,
		sync:   syncService,
		db:     sqlDB,
		redis:  redisClient,
		logger: logger,
	}, nil
}

// Run starts the rolling sync loop and serves HTTP requests until the
// context is cancelled.
func (a *App) Run(ctx context.Context) error {
	go a.sync.Start(ctx)
	return a.server.Run(ctx)
}

// Close releases resources.
func (a *App) Close() {
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Warn("failed to close db", zap.Error(err))
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn("failed to close redis", zap.Error(err))
		}
	}
}
