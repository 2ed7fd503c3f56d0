package main

import (
	_ "backend/api/swagger" // swagger docs
	"backend/internal/config"
	"backend/internal/database"
	"backend/internal/handler"
	"backend/internal/middleware"
	"backend/internal/rbac"
	"backend/internal/repository"
	"backend/internal/service"
	"backend/internal/websocket"
	"backend/pkg/metrics"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// accessControlNotifier fans access-control changes out to the dashboard
// websocket hub, the middleware permission cache and the write counter.
type accessControlNotifier struct {
	hub *websocket.Hub
	m   *metrics.Metrics
}

func (n *accessControlNotifier) AccessControlChanged(action, role string) {
	middleware.ClearPermissionCache(role)
	n.m.AccessControlWritesTotal.WithLabelValues(action).Inc()
	n.hub.BroadcastEvent(action, role)
}

// @title           School Admin Access Control API
// @version         1.0
// @description     Licensing-gated authentication and role/module access control for the school administration platform.
// @host            localhost:8080
// @BasePath        /api/v1
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	if err := godotenv.Load("configs/.env"); err != nil {
		logrus.Info("No configs/.env file found or error loading it")
	}

	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Invalid configuration")
	}

	db, err := database.NewConnection(cfg.Database.DSN())
	if err != nil {
		logrus.WithError(err).Fatal("Database connection failed")
	}
	logrus.Info("Connected to PostgreSQL successfully.")

	rdb := database.NewRedisClient(cfg.Redis)

	m := metrics.New()
	catalog := rbac.New()

	// Set up WebSocket Hub
	wsHub := websocket.NewHub()
	go wsHub.Run()
	notifier := &accessControlNotifier{hub: wsHub, m: m}

	// Set up dependencies (Repository -> Service -> Handler)
	settingRepo := repository.NewSettingRepository(db)
	userRepo := repository.NewUserRepository(db)
	auditRepo := repository.NewAuditRepository(db)

	settingsService := service.NewSettingsService(settingRepo)
	auditService := service.NewAuditService(auditRepo)
	tokenService := service.NewTokenService(cfg.Auth)
	licensingService := service.NewLicensingService(settingsService, userRepo, catalog, cfg.Owner, auditService, notifier)
	authService := service.NewAuthService(userRepo, settingsService, licensingService, tokenService)
	userService := service.NewUserService(userRepo, catalog, auditService)
	rbacService := service.NewRBACService(settingsService, userRepo, licensingService, catalog, auditService, notifier)

	// The auth middleware verifies tokens and answers permission checks
	// from the settings-backed role permission sets.
	middleware.Init(tokenService.AccessSecret(), settingsService)

	var loginLimit gin.HandlerFunc
	if rdb != nil {
		loginLimit = middleware.RateLimit(middleware.DefaultLoginRateLimit(), rdb)
	}

	// Initialize Handlers
	authHandler := handler.NewAuthHandler(authService, m, loginLimit)
	rbacHandler := handler.NewRBACHandler(rbacService, userService)
	settingsHandler := handler.NewSettingsHandler(settingsService, userService, auditService)
	userHandler := handler.NewUserHandler(userService)
	auditHandler := handler.NewAuditHandler(auditService)

	// Set up Gin Router
	router := gin.Default()
	router.Use(middleware.Metrics(m))

	// CORS configuration
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.Server.AllowedOrigins
	corsConfig.AllowCredentials = true
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "Accept"}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	router.Use(cors.New(corsConfig))

	// Swagger route
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "OK"})
	})

	// Prometheus scrape endpoint
	router.GET("/metrics", gin.WrapH(m.Handler()))

	// WebSocket endpoint for owner/admin dashboards
	router.GET("/ws", func(c *gin.Context) {
		websocket.ServeWs(wsHub, c, tokenService.AccessSecret())
	})

	// Register API Routes
	api := router.Group("/api/v1")
	authHandler.RegisterRoutes(api)
	rbacHandler.RegisterRoutes(api)
	settingsHandler.RegisterRoutes(api)
	userHandler.RegisterRoutes(api)
	auditHandler.RegisterRoutes(api)

	logrus.Infof("Server listening on :%s", cfg.Server.Port)
	if err := router.Run(":" + cfg.Server.Port); err != nil {
		logrus.WithError(err).Fatal("Server failed")
	}
}
