// internal/app/router.go
package app

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	authhandler "authcore-service/internal/handlers/auth"
	notificationhandler "authcore-service/internal/handlers/notification"
	userhandler "authcore-service/internal/handlers/user"
	"authcore-service/internal/middleware"
	"authcore-service/internal/service/lifecycle"
	ws "authcore-service/internal/websocket"
)

func setupRouter(
	authHandler *authhandler.Handler,
	userHandler *userhandler.Handler,
	notificationHandler *notificationhandler.Handler,
	wsHandler *ws.Handler,
	manager *lifecycle.Manager,
	pool *pgxpool.Pool,
	redisClient *redis.Client,
) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/health", healthHandler(pool, redisClient))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// The token rides a query parameter here; see websocket.Handler.
	router.GET("/ws", wsHandler.HandleConnection)

	api := router.Group("/api/v1")
	{
		auth := api.Group("/auth")
		{
			auth.POST("/login", authHandler.Login)
			auth.POST("/refresh", authHandler.Refresh)

			authed := auth.Group("")
			authed.Use(middleware.AuthMiddleware(manager))
			{
				authed.POST("/logout", authHandler.Logout)
				authed.POST("/logout-all", authHandler.LogoutAll)
				authed.GET("/sessions", authHandler.GetSessions)
				authed.DELETE("/sessions/:id", authHandler.RevokeSession)
			}
		}

		notifications := api.Group("/notifications")
		notifications.Use(middleware.AuthMiddleware(manager))
		{
			notifications.GET("", notificationHandler.List)
		}

		users := api.Group("/users")
		users.Use(middleware.AuthMiddleware(manager), middleware.RequirePermission("users:create"))
		{
			users.POST("", userHandler.Create)
		}
	}

	return router
}

func healthHandler(pool *pgxpool.Pool, redisClient *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		checks := gin.H{"postgres": "ok", "redis": "ok"}

		if err := pool.Ping(ctx); err != nil {
			checks["postgres"] = err.Error()
			status = http.StatusServiceUnavailable
		}
		if err := redisClient.Ping(ctx).Err(); err != nil {
			checks["redis"] = err.Error()
			status = http.StatusServiceUnavailable
		}

		c.JSON(status, gin.H{
			"status": http.StatusText(status),
			"checks": checks,
			"time":   time.Now().UTC(),
		})
	}
}
