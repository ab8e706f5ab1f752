package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"coursequiz/internal/adapter"
	"coursequiz/internal/adapter/llm"
	"coursequiz/internal/adapter/pdf"
	"coursequiz/internal/adapter/quizgen"
	"coursequiz/internal/adapter/storage"
	"coursequiz/internal/cache"
	"coursequiz/internal/config"
	"coursequiz/internal/database"
	"coursequiz/internal/domain"
	"coursequiz/internal/logger"
	"coursequiz/internal/repository"
	"coursequiz/internal/service"
	"coursequiz/internal/taskqueue"

	"go.uber.org/zap"
)

// reconcile runs a single standby pool top-up pass outside the API process and waits
// for the generation tasks it starts.
func main() {
	wait := flag.Duration("wait", 30*time.Minute, "how long to wait for dispatched generation tasks")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		return
	}

	if err := logger.Initialize(cfg.Logger); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		return
	}
	defer logger.Sync()
	log := logger.Get()

	log.Info("Reconcile process starting up...")

	db, err := database.Open(cfg.DB.Driver, cfg.GetDSN(), log)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	var cacheAdapter domain.Cache
	var statusStore taskqueue.StatusStore
	if cfg.Redis.Address != "" {
		redisClient, err := cache.NewRedisClient(cfg.Redis)
		if err != nil {
			log.Fatal("Failed to initialize Redis Client", zap.Error(err))
		}
		defer redisClient.Close()
		cacheAdapter = adapter.NewRedisCacheAdapter(redisClient)
		statusStore = taskqueue.NewCacheStatusStore(cacheAdapter,
			config.ParseTTLStringOrDefault(cfg.CacheTTLs.TaskStatus, 24*time.Hour))
		log.Info("Redis Cache initialized successfully.")
	} else {
		log.Warn("Redis cache is not configured. Tasks started by other processes are not visible; run this only while the API is stopped.")
	}

	store, err := storage.New(cfg.Storage, log)
	if err != nil {
		log.Fatal("Failed to create material storage", zap.Error(err))
	}
	provider, err := llm.NewProvider(cfg.LLM)
	if err != nil {
		log.Fatal("Failed to create LLM client", zap.Error(err))
	}
	synthesizer, err := quizgen.NewSynthesizer(provider, cfg.Generation.ValidationAttempts, log)
	if err != nil {
		log.Fatal("Failed to create question synthesizer", zap.Error(err))
	}

	quizRepo := repository.NewQuizDatabaseAdapter(db)
	materialRepo := repository.NewMaterialDatabaseAdapter(db)
	tm := repository.NewTransactionManagerAdapter(db)
	questionStore := repository.NewQuestionDatabaseAdapter(db, tm)

	queue := taskqueue.New(cfg.Queue, statusStore, log)
	extractor := service.NewTextExtractor(store, pdf.NewParser(), materialRepo, cacheAdapter, cfg.Generation,
		config.ParseTTLStringOrDefault(cfg.CacheTTLs.Chunks, 24*time.Hour), log)
	coordinator := service.NewGenerationCoordinator(extractor, synthesizer, questionStore, quizRepo, queue, log)
	pool := service.NewQuizPool(quizRepo, materialRepo, tm, coordinator, cfg.Generation.StandbyQuestionCount, log)

	ctx := context.Background()
	if cfg.Pool.ReconcileTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Pool.ReconcileTimeout)
		defer cancel()
	}
	n, err := pool.Reconcile(ctx)
	if err != nil {
		log.Fatal("Reconcile failed", zap.Error(err))
	}
	log.Info("Dispatched standby top-ups", zap.Int("quizzes", n))

	waitCtx, cancelWait := context.WithTimeout(context.Background(), *wait)
	defer cancelWait()
	if err := queue.Shutdown(waitCtx); err != nil {
		log.Error("Generation tasks did not finish in time", zap.Duration("wait", *wait), zap.Error(err))
		return
	}
	log.Info("Reconcile process completed successfully.")
}
