package main

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/credpoints-api/api/swagger"
	"github.com/noah-isme/credpoints-api/internal/handler"
	"github.com/noah-isme/credpoints-api/internal/middleware"
	"github.com/noah-isme/credpoints-api/internal/models"
	"github.com/noah-isme/credpoints-api/internal/service"
	"github.com/noah-isme/credpoints-api/pkg/config"
	"github.com/noah-isme/credpoints-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/credpoints-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/credpoints-api/pkg/middleware/requestid"
)

type routeDeps struct {
	auth          *service.AuthService
	metrics       *service.MetricsService
	db            handler.Pinger
	requests      *service.RequestService
	queries       *service.QueryService
	activities    *service.ActivityService
	notifications *service.NotificationService
	ledger        *service.LedgerService
	exports       *service.ExportService
	badges        *service.BadgeService
	repairs       *service.RepairService
}

func newRouter(cfg *config.Config, logr *zap.Logger, deps routeDeps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(deps.metrics))

	metricsHandler := handler.NewMetricsHandler(deps.metrics, deps.db)
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	requestHandler := handler.NewRequestHandler(deps.requests, deps.queries, deps.activities, deps.notifications)
	notificationHandler := handler.NewNotificationHandler(deps.notifications)
	activityHandler := handler.NewActivityHandler(deps.activities, deps.exports, deps.ledger)
	badgeHandler := handler.NewBadgeHandler(deps.badges)
	adminHandler := handler.NewAdminHandler(deps.repairs)

	limiter := middleware.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst, logr)
	staffOnly := middleware.RequireRoles(models.RoleStaff)
	reviewers := middleware.RequireRoles(models.RoleAdvisor)

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.JWT(deps.auth))

	requests := api.Group("/requests")
	requests.POST("", limiter.Handler(), staffOnly, requestHandler.Submit)
	requests.GET("", requestHandler.List)
	requests.GET("/pending", reviewers, requestHandler.Pending)
	requests.GET("/stats", requestHandler.Stats)
	requests.GET("/:id", requestHandler.Get)
	requests.POST("/:id/approve", limiter.Handler(), reviewers, requestHandler.Approve)
	requests.POST("/:id/reject", limiter.Handler(), reviewers, requestHandler.Reject)
	requests.POST("/:id/correction", limiter.Handler(), reviewers, requestHandler.Correction)
	requests.POST("/:id/resubmit", limiter.Handler(), staffOnly, requestHandler.Resubmit)
	requests.GET("/:id/activities", requestHandler.Activities)
	requests.POST("/:id/notifications/read", requestHandler.MarkNotificationsRead)

	notifications := api.Group("/notifications")
	notifications.GET("", notificationHandler.List)
	notifications.GET("/unread-count", notificationHandler.UnreadCount)
	notifications.POST("/read-all", notificationHandler.MarkAllRead)
	notifications.POST("/:id/read", notificationHandler.MarkRead)

	activities := api.Group("/activities")
	activities.GET("", activityHandler.List)
	activities.GET("/export", activityHandler.Export)

	api.GET("/points/balance", activityHandler.Balance)
	api.GET("/points/history", activityHandler.History)

	badges := api.Group("/badges")
	badges.GET("", badgeHandler.Get)
	badges.POST("/rebuild", badgeHandler.Rebuild)

	admin := api.Group("/admin", middleware.RequireRoles(models.RoleAdmin))
	admin.POST("/repair", adminHandler.Repair)

	return r
}
