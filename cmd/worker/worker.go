package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"knowledgebase-platform/internal/ai"
	"knowledgebase-platform/internal/config"
	"knowledgebase-platform/internal/logger"
	"knowledgebase-platform/internal/queue"
	"knowledgebase-platform/internal/storage"
	"knowledgebase-platform/internal/telemetry"
	"knowledgebase-platform/services"

	"github.com/hibiken/asynq"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	logger.InitLogger(cfg)

	shutdownTracer, err := telemetry.InitTracer("knowledgebase-worker")
	if err != nil {
		log.Printf("Tracing disabled: %v", err)
	} else {
		defer shutdownTracer()
	}

	metrics, err := telemetry.InitMetrics()
	if err != nil {
		log.Fatal("Failed to initialize metrics:", err)
	}

	// Connect to MongoDB
	ctx := context.Background()
	mongoClient, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		log.Fatal("Failed to connect to MongoDB:", err)
	}
	defer mongoClient.Disconnect(ctx)
	db := mongoClient.Database(cfg.DBName)

	// Connect to Redis (progress reporting)
	redisClient, err := config.NewRedisClient(cfg)
	if err != nil {
		log.Fatal("Failed to connect to Redis:", err)
	}
	defer redisClient.Close()

	// Connect to the object store
	minioClient, err := config.NewMinioClient(cfg)
	if err != nil {
		log.Fatal("Failed to connect to MinIO:", err)
	}
	objects := storage.NewObjectStore(minioClient, cfg.MinioBucket)

	// Embedding client
	embedder, err := ai.NewEmbeddingClient(cfg)
	if err != nil {
		log.Fatal("Failed to initialize embedding client:", err)
	}
	defer embedder.Close()

	// Queue plumbing
	redisOpt, err := queue.RedisConnOpt(cfg)
	if err != nil {
		log.Fatal("Invalid Redis configuration:", err)
	}
	queueClient := queue.NewClient(redisOpt, cfg.MaxRetries, cfg.JobTimeout)
	defer queueClient.Close()

	// Extraction: external service when configured, native fallback otherwise
	var extractor services.TextExtractor
	if cfg.ExtractorServiceURL != "" {
		extractor = services.NewExtractorClient(cfg.ExtractorServiceURL)
	} else {
		extractor = services.NewNativeExtractor()
	}

	store := services.NewMongoStore(db)
	pipeline := services.NewIngestionPipeline(
		cfg,
		store,
		objects,
		extractor,
		services.NewMarkdownClient(cfg.MarkdownServiceURL),
		services.NewSofficeConverter(cfg.SofficeBinary),
		services.NewScriptSlideExtractor(cfg.PythonBinary, cfg.SlideScriptPath, cfg.SlideImageScriptPath),
		embedder,
		services.NewMongoVectorIndex(db),
		services.NewRedisProgressNotifier(redisClient, cfg.ProgressTTL),
		queueClient,
		metrics,
	)

	post := services.NewSlidePostProcessor(
		objects,
		store,
		services.NewScriptSlideExtractor(cfg.PythonBinary, cfg.SlideScriptPath, cfg.SlideImageScriptPath),
		cfg.ScratchDir,
		cfg.SignedURLExpiry,
	)

	// Stale-pending reaper
	janitor := services.NewJanitor(store, cfg.StalePendingAfter, cfg.JanitorInterval)
	if err := janitor.Start(); err != nil {
		log.Fatal("Failed to start janitor:", err)
	}
	defer janitor.Stop()

	// Create Asynq server
	server := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: cfg.WorkerConcurrency,
			Queues: map[string]int{
				queue.QueueIngestion:  6,
				queue.QueueBackground: 1,
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				logger.Error("task failed", "type", task.Type(), "error", err)
			}),
		},
	)

	processor := queue.NewTaskProcessor(pipeline, post)
	mux := processor.Mux()

	log.Println("🚀 Starting ingestion worker...")
	log.Printf("   Concurrency: %d", cfg.WorkerConcurrency)
	log.Printf("   Queues: %s(6), %s(1)", queue.QueueIngestion, queue.QueueBackground)
	log.Printf("   Redis: %s", cfg.RedisURL)

	if err := server.Start(mux); err != nil {
		log.Fatal("Failed to start worker:", err)
	}

	// Drain in-flight jobs on shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down worker...")
	server.Shutdown()
}
