// internal/app/server.go
package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"authcore-service/internal/config"
	"authcore-service/internal/db"
	authhandler "authcore-service/internal/handlers/auth"
	notificationhandler "authcore-service/internal/handlers/notification"
	userhandler "authcore-service/internal/handlers/user"
	"authcore-service/internal/pkg/cache"
	"authcore-service/internal/pkg/token"
	"authcore-service/internal/repository/postgres"
	"authcore-service/internal/service/audit"
	"authcore-service/internal/service/lifecycle"
	notificationsvc "authcore-service/internal/service/notification"
	tenantsvc "authcore-service/internal/service/tenant"
	usersvc "authcore-service/internal/service/user"
	ws "authcore-service/internal/websocket"
)

// Server bundles every long-lived component of the service.
type Server struct {
	cfg    *config.AppConfig
	logger *zap.Logger

	pool  *pgxpool.Pool
	redis *redis.Client

	manager *lifecycle.Manager
	sweeper *lifecycle.Sweeper
	hub     *ws.Hub

	httpServer *http.Server
}

// NewServer wires repositories, services and handlers from configuration.
func NewServer(cfg *config.AppConfig, logger *zap.Logger) (*Server, error) {
	pool, err := postgres.Connect(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("postgres: %w", err)
	}

	redisClient, err := db.NewRedisClient(cfg.Redis)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("redis: %w", err)
	}

	codec, err := token.LoadAndBuild(cfg.Token)
	if err != nil {
		pool.Close()
		_ = redisClient.Close()
		return nil, fmt.Errorf("token keys: %w", err)
	}

	// Repositories
	sessionRepo := postgres.NewSessionRepository(pool)
	blacklistRepo := postgres.NewBlacklistRepository(pool)
	userRepo := postgres.NewUserRepository(pool)
	tenantRepo := postgres.NewTenantRepository(pool)
	roleRepo := postgres.NewRoleRepository(pool)
	auditRepo := postgres.NewAuditRepository(pool)
	notificationRepo := postgres.NewNotificationRepository(pool)

	// Caches
	denyCache := cache.NewBlacklistCache(redisClient)
	limiter := cache.NewRateLimiter(redisClient, cfg.LoginRateLimit, cfg.LoginRateWindow)

	// Services
	hub := ws.NewHub(logger)
	notifier := notificationsvc.NewService(notificationRepo, hub, logger)
	recorder := audit.NewRecorder(auditRepo, notifier, logger)
	guard := tenantsvc.NewGuard(tenantRepo, userRepo, cfg.TenantCapacityStrict, logger)

	manager := lifecycle.NewManager(
		sessionRepo,
		blacklistRepo,
		userRepo,
		roleRepo,
		guard,
		codec,
		recorder,
		denyCache,
		lifecycle.Config{RotationEnabled: cfg.RotationEnabled},
		logger,
	)

	users := usersvc.NewService(userRepo, guard, recorder, logger)
	sweeper := lifecycle.NewSweeper(sessionRepo, blacklistRepo, cfg.SweepInterval, logger)

	// Handlers
	authHandler := authhandler.NewHandler(manager, users, limiter, logger)
	userHandler := userhandler.NewHandler(users, logger)
	notificationHandler := notificationhandler.NewHandler(notifier, logger)
	wsHandler := ws.NewHandler(hub, manager, logger)

	router := setupRouter(authHandler, userHandler, notificationHandler, wsHandler, manager, pool, redisClient)

	return &Server{
		cfg:    cfg,
		logger: logger,
		pool:   pool,
		redis:  redisClient,

		manager: manager,
		sweeper: sweeper,
		hub:     hub,

		httpServer: &http.Server{
			Addr:         ":" + cfg.HTTPPort,
			Handler:      router,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
	}, nil
}

// Run starts the hub, the sweeper and the HTTP listener. It blocks until
// the listener stops.
func (s *Server) Run(ctx context.Context) error {
	go s.hub.Run(ctx)
	go s.sweeper.Run(ctx)

	s.logger.Info("http server starting", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains the HTTP server and closes shared resources.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)

	s.pool.Close()
	if cerr := s.redis.Close(); cerr != nil && err == nil {
		err = cerr
	}

	s.logger.Info("server stopped")
	return err
}
