package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"coursequiz/database"
	"coursequiz/internal/adapter"
	"coursequiz/internal/adapter/llm"
	"coursequiz/internal/adapter/pdf"
	"coursequiz/internal/adapter/quizgen"
	"coursequiz/internal/adapter/storage"
	"coursequiz/internal/cache"
	"coursequiz/internal/config"
	db "coursequiz/internal/database"
	"coursequiz/internal/handler"
	"coursequiz/internal/logger"
	"coursequiz/internal/middleware"
	"coursequiz/internal/repository"
	"coursequiz/internal/scheduler"
	"coursequiz/internal/service"
	"coursequiz/internal/taskqueue"
	"coursequiz/internal/validation"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"
)

// requestLogger is a middleware that logs HTTP requests
func requestLogger() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		path := c.Path()
		method := c.Method()

		err := c.Next()

		logger.Get().Info("HTTP Request",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", c.Response().StatusCode()),
			zap.Duration("duration", time.Since(start)),
			zap.String("ip", c.IP()),
			zap.String("user_agent", c.Get("User-Agent")),
		)

		return err
	}
}

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := logger.Initialize(cfg.Logger); err != nil {
		panic(err)
	}
	appLogger := logger.Get()
	defer logger.Sync()

	sqlDB, err := db.Open(cfg.DB.Driver, cfg.GetDSN(), appLogger)
	if err != nil {
		appLogger.Fatal("Failed to connect to database", zap.Error(err))
	}
	if cfg.DB.MigrateOnStart {
		if err := db.RunMigrations(sqlDB.DB, cfg.DB.Driver, database.Migrations, appLogger); err != nil {
			appLogger.Fatal("Failed to run migrations", zap.Error(err))
		}
	}

	redisClient, err := cache.NewRedisClient(cfg.Redis)
	if err != nil {
		appLogger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	appLogger.Info("Successfully connected to Redis")
	cacheAdapter := adapter.NewRedisCacheAdapter(redisClient)

	store, err := storage.New(cfg.Storage, logger.Named("storage"))
	if err != nil {
		appLogger.Fatal("Failed to create material storage", zap.Error(err))
	}

	provider, err := llm.NewProvider(cfg.LLM)
	if err != nil {
		appLogger.Fatal("Failed to create LLM client", zap.Error(err))
	}
	appLogger.Info("LLM provider initialized",
		zap.String("provider", cfg.LLM.Provider),
		zap.String("model", cfg.LLM.Model))

	synthesizer, err := quizgen.NewSynthesizer(provider, cfg.Generation.ValidationAttempts, logger.Named("synthesizer"))
	if err != nil {
		appLogger.Fatal("Failed to create question synthesizer", zap.Error(err))
	}

	quizRepository := repository.NewQuizDatabaseAdapter(sqlDB)
	materialRepository := repository.NewMaterialDatabaseAdapter(sqlDB)
	txManager := repository.NewTransactionManagerAdapter(sqlDB)
	questionStore := repository.NewQuestionDatabaseAdapter(sqlDB, txManager)

	statusStore := taskqueue.NewCacheStatusStore(cacheAdapter,
		config.ParseTTLStringOrDefault(cfg.CacheTTLs.TaskStatus, 24*time.Hour))
	queue := taskqueue.New(cfg.Queue, statusStore, logger.Named("taskqueue"))

	extractor := service.NewTextExtractor(
		store,
		pdf.NewParser(),
		materialRepository,
		cacheAdapter,
		cfg.Generation,
		config.ParseTTLStringOrDefault(cfg.CacheTTLs.Chunks, 24*time.Hour),
		logger.Named("extractor"),
	)
	coordinator := service.NewGenerationCoordinator(extractor, synthesizer, questionStore, quizRepository, queue, logger.Named("coordinator"))
	pool := service.NewQuizPool(quizRepository, materialRepository, txManager, coordinator, cfg.Generation.StandbyQuestionCount, logger.Named("pool"))
	quizService := service.NewQuizService(
		quizRepository,
		materialRepository,
		pool,
		coordinator,
		queue,
		cacheAdapter,
		config.ParseTTLStringOrDefault(cfg.CacheTTLs.QuizList, 10*time.Minute),
		appLogger,
	)

	reconciler, err := scheduler.New(cfg.Pool.ReconcileSchedule, pool, cfg.Pool.ReconcileTimeout, logger.Named("scheduler"))
	if err != nil {
		appLogger.Fatal("Failed to create reconcile scheduler", zap.Error(err))
	}
	reconciler.Start()

	quizHandler := handler.NewQuizHandler(quizService, middleware.NewValidationMiddleware(validation.NewValidator()))

	app := fiber.New(fiber.Config{
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  20 * time.Second,
		BodyLimit:    10 * 1024 * 1024,
		ErrorHandler: middleware.ErrorHandler(),
	})

	app.Use(requestLogger())
	app.Use(cors.New(cors.Config{AllowOrigins: "*", AllowMethods: "GET,POST,PUT,DELETE,OPTIONS", AllowHeaders: "Origin,Content-Type,Accept", MaxAge: 300}))
	app.Use(recover.New())

	app.Get("/healthz", func(c *fiber.Ctx) error {
		if err := cacheAdapter.Ping(c.UserContext()); err != nil {
			return fiber.NewError(fiber.StatusServiceUnavailable, "cache unavailable")
		}
		if err := sqlDB.PingContext(c.UserContext()); err != nil {
			return fiber.NewError(fiber.StatusServiceUnavailable, "database unavailable")
		}
		return c.SendStatus(fiber.StatusOK)
	})

	quizHandler.RegisterRoutes(app.Group("/api"))

	go func() {
		appLogger.Info("Starting server", zap.Int("port", cfg.Server.Port), zap.String("env", os.Getenv("ENV")))
		if err := app.Listen(":" + strconv.Itoa(cfg.Server.Port)); err != nil {
			appLogger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	appLogger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := app.ShutdownWithContext(ctx); err != nil {
		appLogger.Error("Server forced to shutdown", zap.Error(err))
	}
	if err := reconciler.Stop(ctx); err != nil {
		appLogger.Warn("Reconcile job did not finish", zap.Error(err))
	}
	// Tasks still running when ctx expires are cancelled and recorded as failed;
	// the reconciler picks their standby quizzes up on the next start.
	if err := queue.Shutdown(ctx); err != nil {
		appLogger.Warn("Generation tasks cancelled at shutdown", zap.Error(err))
	}
	if err := redisClient.Close(); err != nil {
		appLogger.Warn("Failed to close Redis client", zap.Error(err))
	}
	if err := sqlDB.Close(); err != nil {
		appLogger.Warn("Failed to close database", zap.Error(err))
	}
	appLogger.Info("Server exited gracefully")
}
