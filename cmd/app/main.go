package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	goredis "github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"golang.org/x/time/rate"

	_ "proxy-store-backend/docs"
	"proxy-store-backend/internal/common/cache"
	"proxy-store-backend/internal/common/config"
	"proxy-store-backend/internal/common/logger"
	"proxy-store-backend/internal/common/metrics"
	"proxy-store-backend/internal/common/middleware"
	"proxy-store-backend/internal/common/replay"
	paymentHTTP "proxy-store-backend/internal/features/payment/delivery/http"
	paymentRepo "proxy-store-backend/internal/features/payment/repository/postgres"
	paymentService "proxy-store-backend/internal/features/payment/service"
	proxyHTTP "proxy-store-backend/internal/features/proxy/delivery/http"
	proxyRepo "proxy-store-backend/internal/features/proxy/repository/postgres"
	proxyService "proxy-store-backend/internal/features/proxy/service"
	walletHTTP "proxy-store-backend/internal/features/wallet/delivery/http"
	walletRepo "proxy-store-backend/internal/features/wallet/repository/postgres"
	walletService "proxy-store-backend/internal/features/wallet/service"
	"proxy-store-backend/internal/platform/postgres"
	"proxy-store-backend/internal/platform/redis"
	"proxy-store-backend/internal/platform/rupantor"
	"proxy-store-backend/web"
)

// @title           Proxy Store API
// @version         1.0
// @description     API server for a Telegram Mini App proxy storefront. All endpoints except the payment callback require init_data authentication.

// @host      localhost:8080
// @BasePath  /api/v1

// @securityDefinitions.apikey TelegramInitData
// @in header
// @name init_data
// @description Telegram Mini App init_data string for authentication

// @tag.name wallet
// @tag.description Wallet balance, ledger and deposits

// @tag.name payments
// @tag.description Payment checkout, verification and processor callbacks

// @tag.name products
// @tag.description Proxy product catalog and purchases

func main() {
	cfg := config.Load()

	logger.Init("proxy-store-backend", cfg.Debug)
	logger.Info().
		Str("version", "1.0.0").
		Bool("debug", cfg.Debug).
		Msg("Starting Proxy Store Backend")

	postgresClient, err := postgres.NewClient(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer postgresClient.Close()

	if cfg.Postgres.AutoMigrate {
		if err := postgresClient.Migrate(); err != nil {
			logger.Fatal().Err(err).Msg("Failed to run database migrations")
		}
	}
	logger.Info().Msg("Database connection established")

	redisClient, err := redis.NewClient(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer redisClient.Close()

	cacheService := cache.NewService(redisClient)
	replayGuard := replay.NewGuard(replay.NewRedisStore(redisClient))
	processorClient := rupantor.New(cfg.Payment.APIKey, cfg.Payment.BaseURL)

	userRepository := walletRepo.NewUserRepository(postgresClient.GetDB())
	transactionRepository := walletRepo.NewTransactionRepository(postgresClient.GetDB())
	paymentRepository := paymentRepo.NewRepository(postgresClient.GetDB())
	proxyRepository := proxyRepo.NewRepository(postgresClient.GetDB())

	walletSvc := walletService.NewWalletService(userRepository, transactionRepository)
	paymentSvc := paymentService.NewPaymentService(userRepository, transactionRepository, paymentRepository, processorClient, cfg)
	proxySvc := proxyService.NewProxyService(proxyRepository, userRepository, cacheService,
		proxyService.NewStaticIssuer(cfg.Proxy.Gateway))

	walletHandler := walletHTTP.NewWalletHandler(walletSvc, paymentSvc)
	paymentHandler := paymentHTTP.NewPaymentHandler(paymentSvc, replayGuard, cfg.Payment.WebhookSecret)
	proxyHandler := proxyHTTP.NewProxyHandler(proxySvc, replayGuard)

	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger())
	router.Use(middleware.Recovery())
	router.Use(metrics.Middleware())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{cfg.Server.Origin}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Content-Type", "Authorization", "Accept", "init_data", "X-Telegram-Init-Data"}
	router.Use(cors.New(corsConfig))

	v1 := router.Group("/api/v1")

	// The processor posts callbacks without init_data, so they are registered
	// before the auth middleware and rate limited instead.
	public := v1.Group("")
	public.Use(middleware.RateLimit(rate.Limit(10), 20))
	paymentHandler.RegisterPublicRoutes(public)

	authed := v1.Group("")
	authed.Use(middleware.TelegramInitData(cfg.Telegram.BotToken, cfg.Telegram.InitDataTTL))
	walletHandler.RegisterRoutes(authed)
	paymentHandler.RegisterRoutes(authed)
	proxyHandler.RegisterRoutes(authed)

	registerOpsRoutes(router, postgresClient, redisClient)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info().Int("port", cfg.Server.Port).Msg("Starting HTTP server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("Server forced to shutdown")
	}

	logger.Info().Msg("Server exited")
}

func registerOpsRoutes(router *gin.Engine, postgresClient *postgres.Client, redisClient *goredis.Client) {
	router.GET("/", web.Dashboard())
	router.GET("/metrics", metrics.Handler())
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"timestamp": time.Now().UTC(),
			"service":   "proxy-store-backend",
		})
	})

	router.GET("/live", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	router.GET("/ready", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		if err := postgresClient.HealthCheck(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":  "unready",
				"error":   "postgres unavailable",
				"details": err.Error(),
			})
			return
		}

		if err := redisClient.Ping(ctx).Err(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":  "unready",
				"error":   "redis unavailable",
				"details": err.Error(),
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":    "ready",
			"timestamp": time.Now().UTC(),
			"service":   "proxy-store-backend",
		})
	})
}
