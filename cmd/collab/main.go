package main

import (
	"context"
	"net/http"
	"os"
	ossignal "os/signal"
	"syscall"
	"time"

	"codeshare/internal/core/services"
	httphandlers "codeshare/internal/handlers/http"
	"codeshare/internal/infrastructure/collab"
	"codeshare/internal/infrastructure/middleware"
	"codeshare/internal/infrastructure/monitoring"
	"codeshare/internal/infrastructure/pubsub"
	repositories "codeshare/internal/infrastructure/repositories"
	"codeshare/internal/infrastructure/signal"
	"codeshare/pkg/config"
	"codeshare/pkg/logger"
	"codeshare/pkg/tracing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	startTime := time.Now()

	// Try multiple config paths
	configPaths := []string{
		"configs/config.yaml",
		"./configs/config.yaml",
		"config.yaml",
	}

	var cfg *config.Config
	var err error

	for _, path := range configPaths {
		cfg, err = config.Load(path)
		if err == nil {
			break
		}
	}

	if err != nil {
		// Fallback to defaults if config cannot be loaded
		cfg = config.DefaultConfig()
	}

	// Initialize logger
	zapLogger := logger.New(cfg.Logging.Level)
	defer zapLogger.Sync()

	log := zapLogger.Sugar()

	// Initialize tracing
	tracerProvider, err := tracing.Init(tracing.Config{
		Enabled:     cfg.Tracing.Enabled,
		ServiceName: "codeshare-collab",
		JaegerURL:   cfg.Tracing.JaegerURL,
		Environment: cfg.Tracing.Environment,
		SampleRate:  cfg.Tracing.SampleRate,
	})
	if err != nil {
		log.Warnw("failed to initialize tracing", "error", err)
	}

	// Initialize repository factory
	repoFactory, err := repositories.NewRepositoryFactory(cfg, log)
	if err != nil {
		log.Fatalw("failed to create repository factory", "error", err)
	}
	defer repoFactory.Close()

	// Initialize repositories
	lockRepo := repoFactory.CreateLockRepository()
	eventRepo := repoFactory.CreateSecurityEventRepository()
	snippetRepo := repoFactory.CreateSnippetRepository()

	// Initialize services
	presence := services.NewPresenceService(log)
	lockService := services.NewLockService(lockRepo, log)
	securityService := services.NewSecurityEventService(eventRepo, log)
	authService := services.NewAuthService(
		cfg.Auth.JWTSecret,
		cfg.Auth.AccessTokenTTL,
		cfg.Auth.RefreshTokenTTL,
	)

	// Initialize broker and cross-instance replication
	broker := pubsub.NewBroker(log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if redisClient := repoFactory.RedisClient(); redisClient != nil {
		eventBus := pubsub.NewEventBus(redisClient, broker, log)
		go func() {
			if err := eventBus.Run(ctx); err != nil && ctx.Err() == nil {
				log.Errorw("event bus stopped", "error", err)
			}
		}()
		log.Info("cross-instance broadcast replication enabled")
	}

	// Initialize router and WebSocket server
	router := collab.NewRouter(presence, snippetRepo, broker, log)

	wsServer := signal.NewWebSocketServer(router, broker, authService, log)
	wsServer.SetPingInterval(cfg.Collab.PingInterval)
	wsServer.SetReadTimeout(cfg.Collab.PongTimeout)
	wsServer.SetWriteTimeout(cfg.Collab.WriteTimeout)
	wsServer.SetSendBuffer(cfg.Collab.SendBufferSize)
	wsServer.SetMaxMessageSize(cfg.Collab.MaxMessageSize)
	if cfg.RateLimiting.Enabled {
		wsServer.SetMessageRateLimit(
			cfg.RateLimiting.WebSocket.MessagesPerSecond,
			cfg.RateLimiting.WebSocket.Burst,
		)
	}

	// Initialize monitoring
	var collector *monitoring.PrometheusCollector
	if cfg.Monitoring.PrometheusEnabled {
		collector = monitoring.NewPrometheusCollector()
		broker.SetPublishHook(func(topic string, elapsed time.Duration) {
			if concern := collab.TopicConcern(topic); concern != "" {
				collector.RecordBroadcast(concern)
			}
			collector.ObserveBroadcastDuration(elapsed.Seconds())
		})
		broker.SetDropHook(func(string) {
			collector.RecordDroppedMessage()
		})
		go func() {
			ticker := time.NewTicker(cfg.Monitoring.MetricsInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					sessions, participants := presence.Stats()
					collector.SetActiveSessions(sessions)
					collector.SetParticipants(participants)
					collector.SetConnections(wsServer.ConnectionCount())
				}
			}
		}()
	}

	healthChecker := monitoring.NewHealthChecker()
	healthChecker.AddCheck("redis", repoFactory.HealthCheck, 2*time.Second)

	// Initialize HTTP handlers
	authHandler := httphandlers.NewAuthHandler(authService)
	editorHandler := httphandlers.NewEditorHandler(lockService, securityService, broker, log)
	if collector != nil {
		editorHandler.SetMetrics(collector)
	}

	// Configure Gin
	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(middleware.RecoveryMiddleware(log))
	engine.Use(middleware.ErrorHandlerMiddleware(log))
	engine.Use(middleware.NewHTTPRateLimitMiddleware(cfg))
	engine.Use(middleware.OptionalAuthMiddleware(authService))
	if cfg.Tracing.Enabled {
		engine.Use(middleware.TracingMiddleware())
	}
	engine.Use(middleware.RequestLoggingMiddleware(logger.NewContextLogger(zapLogger)))

	// Setup routes
	authHandler.SetupRoutes(engine)
	editorHandler.SetupRoutes(engine)

	// WebSocket entrypoint
	engine.GET("/ws", gin.WrapF(wsServer.HandleWebSocket))

	// Health check endpoint
	engine.GET("/health", func(c *gin.Context) {
		status := healthChecker.CheckAll(c.Request.Context())
		code := http.StatusOK
		if status.Status != "healthy" {
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, gin.H{
			"status":      status.Status,
			"timestamp":   status.Timestamp,
			"uptime":      time.Since(startTime).String(),
			"connections": wsServer.ConnectionCount(),
			"checks":      status.Checks,
		})
	})

	// Readiness endpoint
	engine.GET("/ready", func(c *gin.Context) {
		reqCtx, reqCancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer reqCancel()

		if err := repoFactory.HealthCheck(reqCtx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":       "not_ready",
				"timestamp":    time.Now(),
				"dependencies": "unhealthy",
				"error":        err.Error(),
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":       "ready",
			"timestamp":    time.Now(),
			"dependencies": "ok",
		})
	})

	// Prometheus metrics endpoint
	if cfg.Monitoring.PrometheusEnabled {
		engine.GET("/metrics", gin.WrapH(promhttp.Handler()))
		log.Info("Prometheus metrics enabled")
	}

	// Create HTTP server with timeouts
	srv := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      engine,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server in goroutine
	serverErr := make(chan error, 1)
	go func() {
		log.Infof("Starting collaboration server on %s", cfg.Server.Address)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	// Wait for shutdown signals or server error
	sigChan := make(chan os.Signal, 1)
	ossignal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		log.Fatalw("Server failed", "error", err)
	case sig := <-sigChan:
		log.Infow("Received shutdown signal", "signal", sig)
	}

	log.Info("Shutting down collaboration server...")
	cancel()

	// Create shutdown context with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	// Shutdown HTTP server gracefully
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorw("Error during server shutdown", "error", err)
		if closeErr := srv.Close(); closeErr != nil {
			log.Errorw("Error force closing server", "error", closeErr)
		}
	} else {
		log.Info("Server shutdown gracefully")
	}

	if tracerProvider != nil {
		if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
			log.Errorw("Error shutting down tracer", "error", err)
		}
	}

	if err := repoFactory.Close(); err != nil {
		log.Errorw("Error closing repository factory", "error", err)
	}

	log.Info("Collaboration server stopped")
}
