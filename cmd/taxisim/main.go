package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/richxcame/petit-taxi/internal/catalog"
	"github.com/richxcame/petit-taxi/internal/realtime"
	"github.com/richxcame/petit-taxi/internal/ridehistory"
	"github.com/richxcame/petit-taxi/internal/rides"
	"github.com/richxcame/petit-taxi/internal/simulation"
	"github.com/richxcame/petit-taxi/pkg/common"
	"github.com/richxcame/petit-taxi/pkg/config"
	"github.com/richxcame/petit-taxi/pkg/eventbus"
	"github.com/richxcame/petit-taxi/pkg/health"
	"github.com/richxcame/petit-taxi/pkg/logger"
	"github.com/richxcame/petit-taxi/pkg/middleware"
	"github.com/richxcame/petit-taxi/pkg/redis"
	"github.com/richxcame/petit-taxi/pkg/resilience"
	"github.com/richxcame/petit-taxi/pkg/validation"
	ws "github.com/richxcame/petit-taxi/pkg/websocket"
	"go.uber.org/zap"
)

const (
	serviceName     = "taxisim"
	version         = "1.0.0"
	shutdownTimeout = 10 * time.Second
)

func main() {
	cfg, err := config.Load(serviceName)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	if err := logger.Init(cfg.Server.Environment); err != nil {
		panic("failed to initialize logger: " + err.Error())
	}
	defer logger.Sync()

	validation.RegisterGinValidators()

	checks := map[string]func() error{}

	// History storage
	var backend ridehistory.Backend
	var redisClient *redis.Client
	switch cfg.History.Backend {
	case "redis":
		redisClient, err = redis.NewRedisClient(&cfg.Redis)
		if err != nil {
			logger.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		defer redisClient.Close()
		backend = ridehistory.NewRedisBackend(redisClient)
		checks["redis"] = health.RedisChecker(redisClient.Client)
		logger.Info("Connected to Redis", zap.String("addr", cfg.Redis.RedisAddr()))
	default:
		backend = ridehistory.NewMemoryBackend()
		logger.Warn("Ride history is kept in memory and lost on restart")
	}

	historyService := ridehistory.NewService(backend, cfg.History.Key)
	historyService.Load(context.Background())

	// Event bus
	var bus *eventbus.Bus
	if cfg.NATS.Enabled {
		bus, err = eventbus.Connect(cfg.NATS, serviceName)
		if err != nil {
			logger.Warn("NATS unavailable, lifecycle events disabled", zap.Error(err))
		} else {
			defer bus.Close()
			checks["nats"] = bus.Ping
		}
	}

	// WebSocket hub
	hub := ws.NewHub()
	go hub.Run()
	realtimeService := realtime.NewService(hub)

	// Rides
	cat := catalog.New(catalog.RatesFromConfig(cfg.Rates))
	simCfg := simulation.ConfigFrom(cfg.Simulation, cat.Rates(), catalog.UserLocation)

	opts := []rides.Option{rides.WithListener(realtimeService)}
	if bus != nil {
		breaker := resilience.NewCircuitBreaker(
			resilience.BuildSettings("nats-publish", 0, cfg.NATS.BreakerTimeout, cfg.NATS.BreakerFailures, 1),
			resilience.GracefulDegradation("nats"),
		)
		opts = append(opts, rides.WithPublisher(eventbus.NewGuardedPublisher(bus, breaker)))
	}
	rideService := rides.NewService(cat, historyService, simCfg, opts...)
	defer rideService.Shutdown()

	// Router
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = strings.Split(cfg.Server.CORSOrigins, ",")
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", middleware.CorrelationIDHeader}
	router.Use(cors.New(corsConfig))

	router.Use(middleware.CorrelationID())
	router.Use(middleware.RequestLogger("/healthz", "/metrics"))
	router.Use(middleware.Recovery(rideService.ActiveRideID))
	router.Use(middleware.SecurityHeaders(cfg.Server.Environment == "production"))
	router.Use(middleware.Metrics(serviceName))

	// Health check and metrics
	router.GET("/healthz", common.HealthCheckWithDeps(serviceName, version, checks))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api/v1")
	rides.NewHandler(rideService).RegisterRoutes(api)
	ridehistory.NewHandler(historyService).RegisterRoutes(api)
	realtime.NewHandler(realtimeService, rideService).RegisterRoutes(api)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("Taxi simulator starting",
			zap.String("port", cfg.Server.Port),
			zap.String("history_backend", cfg.History.Backend),
			zap.Bool("simulate_motion", cfg.Simulation.SimulateMotion),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}
