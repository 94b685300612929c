package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/crewdeck/crewdeck/internal/app"
	"github.com/crewdeck/crewdeck/internal/attendance"
	"github.com/crewdeck/crewdeck/internal/auth"
	"github.com/crewdeck/crewdeck/internal/chat"
	"github.com/crewdeck/crewdeck/internal/locations"
	"github.com/crewdeck/crewdeck/internal/notifications"
	"github.com/crewdeck/crewdeck/internal/observability"
	"github.com/crewdeck/crewdeck/internal/platform/cache"
	"github.com/crewdeck/crewdeck/internal/platform/db"
	"github.com/crewdeck/crewdeck/internal/rbac"
	"github.com/crewdeck/crewdeck/internal/realtime"
	"github.com/crewdeck/crewdeck/internal/roles"
	"github.com/crewdeck/crewdeck/internal/shared"
	"github.com/crewdeck/crewdeck/internal/tasks"
	"github.com/crewdeck/crewdeck/internal/users"
	"github.com/crewdeck/crewdeck/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis connect", slog.Any("error", err))
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	auditLogger := shared.NewAuditLogger(dbpool)
	approvalRecorder := shared.NewApprovalRecorder(dbpool, logger)
	idempotencyStore := shared.NewIdempotencyStore(dbpool)

	tokenIssuer := auth.NewTokenIssuer(cfg.JWTSecret, cfg.TokenTTL)
	authRepo := auth.NewRepository(dbpool)
	authService := auth.NewService(authRepo, tokenIssuer)
	authHandler := auth.NewHandler(logger, authService)
	authMiddleware := auth.Middleware{Service: authService, Logger: logger}

	rbacCache := rbac.NewSnapshotCache(redisClient, cfg.PermissionCacheTTL)
	rbacService := rbac.NewService(rbac.NewRepository(dbpool), rbacCache, logger)
	rbacMiddleware := rbac.Middleware{Service: rbacService, Logger: logger}
	permissionsHandler := rbac.NewHandler(logger, rbacService, rbacMiddleware)

	rolesService := roles.NewService(roles.NewRepository(dbpool))
	rolesHandler := roles.NewHandler(logger, rolesService, rbacService, rbacMiddleware)

	usersService := users.NewService(users.NewRepository(dbpool), auditLogger, logger)
	usersHandler := users.NewHandler(logger, usersService, rbacMiddleware)

	locationsService := locations.NewService(locations.NewRepository(dbpool))
	locationsHandler := locations.NewHandler(logger, locationsService, rbacMiddleware)

	jobClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("jobs client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("jobs client close", slog.Any("error", err))
		}
	}()

	hub := realtime.NewHub()
	sessions := realtime.NewSessionRegistry()

	chatService := chat.NewService(chat.NewRepository(dbpool), logger)
	chatHandler := chat.NewHandler(logger, chatService)

	notifService := notifications.NewService(notifications.NewRepository(dbpool), hub, jobClient, chatService, logger)
	notifHandler := notifications.NewHandler(logger, notifService)

	tasksService := tasks.NewService(tasks.NewRepository(dbpool), approvalRecorder, auditLogger, notifService, logger)
	tasksHandler := tasks.NewHandler(logger, tasksService, rbacMiddleware)

	attendanceService := attendance.NewService(attendance.NewRepository(dbpool), locationsService, idempotencyStore, auditLogger, notifService, logger)
	attendanceHandler := attendance.NewHandler(logger, attendanceService, rbacMiddleware)

	gateway := realtime.NewGateway(logger, hub, sessions, authService, rbacService, chatService, notifService)
	wsHandler := realtime.NewWSHandler(gateway, logger)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	metrics := observability.NewMetrics()

	router := app.NewRouter(app.RouterParams{
		Logger:               logger,
		Config:               cfg,
		AuthMiddleware:       authMiddleware,
		AuthHandler:          authHandler,
		UsersHandler:         usersHandler,
		RolesHandler:         rolesHandler,
		PermissionsHandler:   permissionsHandler,
		TasksHandler:         tasksHandler,
		LocationsHandler:     locationsHandler,
		AttendanceHandler:    attendanceHandler,
		NotificationsHandler: notifHandler,
		ChatHandler:          chatHandler,
		JobHandler:           jobHandler,
		WSHandler:            wsHandler,
		Metrics:              metrics,
	})

	// Read/write timeouts stay off so /ws connections are not cut; the
	// API routes carry their own timeout middleware.
	server := &http.Server{
		Addr:              cfg.AppAddr,
		Handler:           router,
		ReadHeaderTimeout: cfg.AppReadTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	if err := g.Wait(); err != nil {
		logger.Error("shutdown", slog.Any("error", err))
	}
}
