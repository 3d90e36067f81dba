package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"lms-assessment/internal/adapter"
	"lms-assessment/internal/cache"
	"lms-assessment/internal/config"
	"lms-assessment/internal/database"
	"lms-assessment/internal/domain"
	"lms-assessment/internal/handler"
	"lms-assessment/internal/logger"
	"lms-assessment/internal/middleware"
	"lms-assessment/internal/repository"
	"lms-assessment/internal/service"
	"lms-assessment/internal/validation"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	if err := logger.Initialize(cfg.Logger); err != nil {
		panic(err)
	}
	appLogger := logger.Get()
	defer logger.Sync()

	ctx := context.Background()

	// Connect to database
	db, err := database.NewSQLXDB(ctx, cfg.DB.Driver, cfg.GetDSN())
	if err != nil {
		appLogger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	if err := database.RunMigrations(ctx, db); err != nil {
		appLogger.Fatal("Failed to run migrations", zap.Error(err))
	}

	// Initialize repositories
	quizRepository := repository.NewQuizDatabaseAdapter(db)
	attemptRepository := repository.NewSQLXAttemptRepository(db)
	evaluationRepository := repository.NewSQLXEvaluationRepository(db)
	progressRepository := repository.NewSQLXProgressRepository(db)
	enrolmentRepository := repository.NewSQLXEnrolmentRepository(db)
	notificationRepository := repository.NewSQLXNotificationRepository(db)
	txManager := repository.NewTransactionManagerAdapter(db)

	// Redis is optional: without it the catalog is read directly and
	// attempt locks are process-local.
	var (
		cacheAdapter domain.Cache
		catalog      domain.QuizCatalog = quizRepository
		locker       domain.AttemptLocker
	)
	if cfg.Redis.Address != "" {
		redisClient, err := cache.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			appLogger.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		defer redisClient.Close()
		appLogger.Info("Successfully connected to Redis", zap.String("address", cfg.Redis.Address))

		cacheAdapter = adapter.NewRedisCacheAdapter(redisClient)
		catalog = adapter.NewCachedQuizCatalog(quizRepository, cacheAdapter, cfg.Catalog.CacheTTL)
		locker = adapter.NewRedisAttemptLocker(redisClient, cfg.Lock.TTL, cfg.Lock.Wait)
	} else {
		appLogger.Warn("Redis address not configured, using in-process attempt locks and no catalog cache")
		locker = adapter.NewMemoryAttemptLocker()
	}

	fileStorage, err := adapter.NewFileStorage(ctx, cfg.Storage)
	if err != nil {
		appLogger.Fatal("Failed to initialize file storage", zap.Error(err))
	}
	appLogger.Info("File storage initialized", zap.String("driver", cfg.Storage.Driver))

	policies := adapter.NewConfigPolicyProvider(cfg.Gating)
	events := adapter.MultiEventSink{
		repository.NewSQLXEventLogRepository(db),
		adapter.LogEventSink{},
	}

	// Initialize services
	eligibility := service.NewEligibilityEvaluator(catalog, attemptRepository, progressRepository, enrolmentRepository, policies)
	progressEngine := service.NewProgressEngine(catalog, progressRepository, enrolmentRepository, policies)
	attemptService := service.NewAttemptService(service.AttemptServiceDeps{
		Catalog:       catalog,
		Attempts:      attemptRepository,
		Evaluations:   evaluationRepository,
		Notifications: notificationRepository,
		Files:         fileStorage,
		Events:        events,
		Locker:        locker,
		Tx:            txManager,
		Eligibility:   eligibility,
		Grader:        service.NewGrader(),
		Normalizer:    service.NewAnswerNormalizer(cfg.Storage),
		Progress:      progressEngine,
	})
	appLogger.Info("AttemptService initialized")

	authService, err := service.NewAuthService(cfg.Auth)
	if err != nil {
		appLogger.Fatal("Failed to create AuthService", zap.Error(err))
	}
	appLogger.Info("AuthService initialized")

	// Initialize handlers
	validator := validation.NewValidator()
	attemptHandler := handler.NewAttemptHandler(attemptService, validator)
	healthHandler := handler.NewHealthHandler(db, cacheAdapter)

	bodyLimit := 4 * 1024 * 1024
	if cfg.Storage.MaxFileSize > 0 {
		bodyLimit = int(cfg.Storage.MaxFileSize) + 1024*1024
	}
	app := fiber.New(fiber.Config{
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  20 * time.Second,
		BodyLimit:    bodyLimit,
		ErrorHandler: middleware.ErrorHandler(),
	})

	app.Use(recover.New())
	app.Use(middleware.RequestLogger())
	app.Use(cors.New(cors.Config{AllowOrigins: "*", AllowMethods: "GET,POST,OPTIONS", AllowHeaders: "Origin,Content-Type,Accept,Authorization", MaxAge: 300}))

	handler.RegisterRoutes(app, attemptHandler, healthHandler, authService, validator)

	go func() {
		appLogger.Info("Starting server", zap.Int("port", cfg.Server.Port), zap.String("env", cfg.Logger.Env))
		if err := app.Listen(":" + strconv.Itoa(cfg.Server.Port)); err != nil {
			appLogger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	appLogger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		appLogger.Fatal("Server forced to shutdown", zap.Error(err))
	}
	appLogger.Info("Server exited gracefully")
}
