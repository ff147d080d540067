package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"google.golang.org/grpc/health"
	"gorm.io/gorm"

	"github.com/tair/colporter/internal/inventory"
	grpcDelivery "github.com/tair/colporter/internal/inventory/delivery/grpc"
	httpDelivery "github.com/tair/colporter/internal/inventory/delivery/http"
	_ "github.com/tair/colporter/internal/inventory/docs"
	"github.com/tair/colporter/internal/inventory/repository"
	"github.com/tair/colporter/internal/inventory/repository/memory"
	"github.com/tair/colporter/internal/inventory/usecase/command"
	"github.com/tair/colporter/kafka"
	"github.com/tair/colporter/pkg/auth"
	"github.com/tair/colporter/pkg/config"
	"github.com/tair/colporter/pkg/database"
	"github.com/tair/colporter/pkg/logger"
	"github.com/tair/colporter/pkg/tracing"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Init(logger.Options{Service: "inventory-service", Development: true, Level: "info"})
		logger.Logger.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Initialize logger
	logger.Init(logger.Options{
		Service:     cfg.Server.Name,
		Development: cfg.IsDevelopment(),
		Level:       cfg.Logger.Level,
	})

	logger.Logger.Info().
		Str("service", cfg.Server.Name).
		Str("environment", cfg.Environment).
		Str("log_level", cfg.Logger.Level).
		Str("storage", cfg.Server.Storage).
		Msg("Starting inventory service")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Tracing.Enabled {
		tp, err := tracing.Init(ctx, tracing.Options{
			ServiceName:    cfg.Server.Name,
			Environment:    cfg.Environment,
			JaegerEndpoint: cfg.Tracing.JaegerEndpoint,
			SampleRatio:    cfg.Tracing.SampleRatio,
		})
		if err != nil {
			logger.Logger.Fatal().Err(err).Msg("Failed to initialize tracer")
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tp.Shutdown(shutdownCtx); err != nil {
				logger.Logger.Error().Err(err).Msg("Failed to shutdown tracer")
			}
		}()
	}

	tokens := auth.NewManager(cfg.JWT.Secret, cfg.JWT.TTL)
	reg := prometheus.DefaultRegisterer

	var publisher command.EventPublisher
	if len(cfg.Kafka.Brokers) > 0 {
		p, err := kafka.NewPublisher(cfg.Kafka.Brokers, cfg.Kafka.CountsTopic)
		if err != nil {
			logger.Logger.Fatal().Err(err).Msg("Failed to create Kafka publisher")
		}
		defer p.Close()
		publisher = p
	} else {
		logger.Logger.Warn().Msg("KAFKA_BROKERS not set, count events are not published")
	}

	var (
		svc *inventory.Service
		db  grpcDelivery.Pinger
	)
	switch cfg.Server.Storage {
	case "memory":
		store := memory.NewStore()
		if path := os.Getenv("SEED_FILE"); path != "" {
			n, err := loadSeed(path, store)
			if err != nil {
				logger.Logger.Fatal().Err(err).Msg("Failed to load seed file")
			}
			logger.Logger.Info().Int("books", n).Str("file", path).Msg("Seed data loaded")
		}
		svc, err = inventory.InitializeMemoryService(store, publisher, tokens, reg)
	default:
		var gormDB *gorm.DB
		gormDB, err = connectPostgres(cfg)
		if err != nil {
			logger.Logger.Fatal().Err(err).Msg("Failed to connect to database")
		}
		sqlDB, dbErr := gormDB.DB()
		if dbErr != nil {
			logger.Logger.Fatal().Err(dbErr).Msg("Failed to get database instance")
		}
		defer sqlDB.Close()
		db = sqlDB

		svc, err = inventory.InitializePostgresService(gormDB, newRedisClient(ctx, cfg), publisher, tokens, reg)
	}
	if err != nil {
		logger.Logger.Fatal().Err(err).Msg("Failed to initialize service")
	}

	if n, err := svc.Backfill.Handle(ctx); err != nil {
		logger.Logger.Error().Err(err).Msg("Book size backfill failed")
	} else if n > 0 {
		logger.Logger.Info().Int("books", n).Msg("Backfilled book sizes from price")
	}

	if len(cfg.Kafka.Brokers) > 0 {
		consumer, err := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.GroupID, []string{cfg.Kafka.TransactionsTopic})
		if err != nil {
			logger.Logger.Fatal().Err(err).Msg("Failed to create Kafka consumer")
		}
		defer consumer.Close()
		svc.Events.Register(consumer)
		if err := consumer.Start(ctx); err != nil {
			logger.Logger.Fatal().Err(err).Msg("Failed to start Kafka consumer")
		}
	}

	healthServer := health.NewServer()
	go grpcDelivery.NewHealthReporter(healthServer, db).Run(ctx, 10*time.Second)
	grpcServer := grpcDelivery.NewServer(svc.Interceptors, healthServer)
	go func() {
		lis, err := net.Listen("tcp", ":"+cfg.Server.GRPCPort)
		if err != nil {
			logger.Logger.Fatal().Err(err).Msg("Failed to listen for gRPC")
		}
		logger.Logger.Info().Str("port", cfg.Server.GRPCPort).Msg("gRPC server started")
		if err := grpcServer.Serve(lis); err != nil {
			logger.Logger.Error().Err(err).Msg("gRPC server stopped")
		}
	}()

	httpServer := newHTTPServer(cfg, svc.HTTP, db)
	go func() {
		logger.Logger.Info().
			Str("port", cfg.Server.HTTPPort).
			Str("metrics_endpoint", "/metrics").
			Str("swagger", "/swagger/index.html").
			Msg("HTTP server started")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Logger.Fatal().Err(err).Msg("Failed to start HTTP server")
		}
	}()

	<-ctx.Done()
	logger.Logger.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Logger.Error().Err(err).Msg("HTTP server shutdown failed")
	}
	grpcServer.GracefulStop()
	logger.Logger.Info().Msg("Server exited")
}

func connectPostgres(cfg *config.Config) (*gorm.DB, error) {
	db, err := database.NewGormConnection(database.Config{
		Host:            cfg.Postgres.Host,
		Port:            cfg.Postgres.Port,
		User:            cfg.Postgres.User,
		Password:        cfg.Postgres.Password,
		DBName:          cfg.Postgres.DBName,
		SSLMode:         cfg.Postgres.SSLMode,
		MaxOpenConns:    cfg.Postgres.MaxOpenConns,
		MaxIdleConns:    cfg.Postgres.MaxIdleConns,
		ConnMaxLifetime: cfg.Postgres.ConnMaxLifetime,
	})
	if err != nil {
		return nil, err
	}

	// Run migrations
	if err := repository.AutoMigrate(db); err != nil {
		return nil, err
	}
	logger.Logger.Info().Msg("Database initialized successfully")
	return db, nil
}

// newRedisClient returns nil when Redis is unreachable so that row locks
// fall back to the in-process locker
func newRedisClient(ctx context.Context, cfg *config.Config) *redis.Client {
	if cfg.Redis.Addr == "" {
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Logger.Warn().Err(err).Str("addr", cfg.Redis.Addr).Msg("Redis unavailable, using in-process row locks")
		client.Close()
		return nil
	}
	logger.Logger.Info().Str("addr", cfg.Redis.Addr).Msg("Connected to Redis")
	return client
}

func newHTTPServer(cfg *config.Config, handler *httpDelivery.InventoryHandler, db httpDelivery.Pinger) *http.Server {
	router := mux.NewRouter()

	handler.RegisterRoutes(router)
	handler.RegisterHealthCheck(router, db)
	httpDelivery.RegisterSwaggerDocs(router)

	router.Handle("/metrics", promhttp.Handler())

	wrapped := httpDelivery.Wrap(router, httpDelivery.ServerOptions{
		Timeout:        cfg.Server.Timeout,
		AllowedOrigins: cfg.Server.CORSOrigins,
	})
	return &http.Server{
		Addr:              ":" + cfg.Server.HTTPPort,
		Handler:           wrapped,
		ReadHeaderTimeout: 10 * time.Second,
	}
}
