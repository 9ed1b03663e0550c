package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/unitstay/service-booking/internal/application"
	"github.com/unitstay/service-booking/internal/config"
	stayDomain "github.com/unitstay/service-booking/internal/domain/stay"
	stayEvents "github.com/unitstay/service-booking/internal/events"
	"github.com/unitstay/service-booking/internal/handler"
	"github.com/unitstay/service-booking/internal/idempotency"
	"github.com/unitstay/service-booking/internal/platform/database"
	"github.com/unitstay/service-booking/internal/platform/health"
	"github.com/unitstay/service-booking/internal/platform/kafka"
	"github.com/unitstay/service-booking/internal/platform/logger"
	"github.com/unitstay/service-booking/internal/platform/mongodb"
	"github.com/unitstay/service-booking/internal/platform/redisclient"
	"github.com/unitstay/service-booking/internal/repository"
	"github.com/unitstay/service-booking/internal/repository/memory"
	mongoRepo "github.com/unitstay/service-booking/internal/repository/mongo"
)

const serviceName = "service-booking"

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log, err := logger.NewNamed(cfg.AppEnv, serviceName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	log.Info("starting service-booking",
		zap.String("port", cfg.Port),
		zap.String("store", cfg.StoreDriver),
	)

	// Open the stay store
	stayRepo, closeStore, err := openStore(cfg, log)
	if err != nil {
		log.Fatal("failed to open stay store", zap.Error(err))
	}
	defer closeStore()

	// Initialize idempotency store
	var idemStore idempotency.Store = idempotency.NewMemoryStore()
	if cfg.RedisConfig.Addr != "" {
		rdb, err := redisclient.Connect(cfg.RedisConfig, log)
		if err != nil {
			log.Fatal("failed to connect to redis", zap.Error(err))
		}
		defer func() { _ = rdb.Close() }()
		idemStore = idempotency.NewRedisStore(rdb)
	}

	// Initialize Kafka producer
	var publisher application.EventPublisher
	if cfg.KafkaConfig.Enabled() {
		kafkaProducer := kafka.NewProducer(cfg.KafkaConfig.Brokers, log)
		defer func() { _ = kafkaProducer.Close() }()
		publisher = kafkaProducer
	} else {
		log.Warn("no Kafka brokers configured, stay events will not be published")
	}

	// Initialize application service
	stayService := application.NewStayService(
		stayRepo,
		publisher,
		cfg.KafkaConfig.EventsTopic,
		log,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize and start the stay command consumer in a goroutine
	if cfg.KafkaConfig.Enabled() {
		groupID := cfg.KafkaConfig.GroupPrefix + "-stay-commands"
		commandConsumer := stayEvents.NewStayCommandConsumer(
			cfg.KafkaConfig.Brokers,
			groupID,
			cfg.KafkaConfig.CommandsTopic,
			stayService,
			log,
		)
		defer func() { _ = commandConsumer.Close() }()

		go func() {
			log.Info("starting stay command consumer", zap.String("topic", cfg.KafkaConfig.CommandsTopic))
			if err := commandConsumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("stay command consumer error", zap.Error(err))
			}
		}()
	}

	// Setup Gin router
	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := handler.NewRouter(handler.RouterDeps{
		Logger: log,
		Stays:  handler.NewStayHandler(stayService),
		Health: health.NewHandler(stayRepo, serviceName),
		WriteMW: []gin.HandlerFunc{
			idempotency.Middleware(idemStore, cfg.IdempotencyTTL, log),
		},
	})

	// Create HTTP server
	srv := &http.Server{
		Addr:         cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info("HTTP server starting", zap.String("addr", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down service-booking...")

	// Cancel the consumer context
	cancel()

	// Shutdown HTTP server with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server forced shutdown", zap.Error(err))
	}

	log.Info("service-booking stopped")
}

// openStore connects the backend named by STORE_DRIVER and prepares its schema.
func openStore(cfg *config.ServiceConfig, log *zap.Logger) (stayDomain.Repository, func(), error) {
	switch cfg.StoreDriver {
	case config.DriverMemory:
		log.Warn("using in-memory stay store, data is lost on restart")
		return memory.NewStayStore(), func() {}, nil

	case config.DriverMongo:
		client, err := mongodb.Connect(cfg.MongoConfig.URI, cfg.MongoConfig.Database, log)
		if err != nil {
			return nil, nil, err
		}
		closeFn := func() { _ = client.Close(context.Background()) }

		repo := mongoRepo.NewStayRepository(client.DB, cfg.LockTimeout, log)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := repo.EnsureIndexes(ctx); err != nil {
			closeFn()
			return nil, nil, err
		}
		return repo, closeFn, nil

	default:
		db, err := database.Connect(cfg.DBConfig, log)
		if err != nil {
			return nil, nil, err
		}
		closeFn := func() {
			if sqlDB, err := db.DB(); err == nil {
				_ = sqlDB.Close()
			}
		}

		// Run database migrations
		if cfg.IsDevelopment() {
			if err := db.AutoMigrate(&repository.StayModel{}); err != nil {
				closeFn()
				return nil, nil, fmt.Errorf("failed to run auto-migration: %w", err)
			}
			log.Info("database migration completed (dev auto-migrate)")
		} else {
			err := database.RunMigrations(cfg.DBConfig.DatabaseURL(), repository.Migrations, repository.MigrationsDir, log)
			if err != nil {
				closeFn()
				return nil, nil, err
			}
		}
		return repository.NewGormStayRepository(db, cfg.LockTimeout), closeFn, nil
	}
}
