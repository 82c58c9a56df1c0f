package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/inkvoice/inkvoice/internal/api"
	"github.com/inkvoice/inkvoice/internal/config"
	"github.com/inkvoice/inkvoice/internal/db"
	"github.com/inkvoice/inkvoice/internal/queue"
	"github.com/inkvoice/inkvoice/internal/services"
	"github.com/inkvoice/inkvoice/internal/storage"
	"github.com/inkvoice/inkvoice/internal/worker"
)

func main() {
	log.Println("Starting InkVoice API...")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Connect to database
	database, err := db.New(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()
	log.Println("Connected to database")

	// Connect to Redis queue
	q, err := queue.New(cfg.RedisURL)
	if err != nil {
		log.Fatalf("Failed to connect to queue: %v", err)
	}
	defer q.Close()
	log.Println("Connected to Redis queue")

	// Initialize storage and make sure the audio bucket is there
	stor := storage.New(cfg.SupabaseURL, cfg.SupabaseServiceKey, cfg.SupabaseAudioBucket)
	{
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		if err := stor.EnsureBucketExists(ctx); err != nil {
			log.Printf("WARNING: Could not verify audio bucket: %v", err)
		}
		cancel()
	}
	log.Println("Initialized Supabase storage")

	// Pipeline services
	openaiSvc := services.NewOpenAIService(cfg.OpenAIKey, cfg.OpenAIModel)
	ttsSvc := services.NewElevenLabsService(cfg.ElevenLabsKey, cfg.ElevenLabsModelID)
	log.Printf("TTS provider: ElevenLabs (model: %s)", cfg.ElevenLabsModelID)

	analyzer := worker.NewChapterAnalyzer(database, services.NewManuscriptAnalyzer(openaiSvc))
	generator := worker.NewGenerator(
		database, stor, ttsSvc,
		services.RetryOptions{
			MaxAttempts:       cfg.SynthMaxAttempts,
			InitialDelay:      time.Duration(cfg.SynthInitialDelayMs) * time.Millisecond,
			MaxDelay:          time.Duration(cfg.SynthMaxDelayMs) * time.Millisecond,
			BackoffMultiplier: 2,
		},
		cfg.SpeechWordsPerSecond,
		time.Duration(cfg.InterBlockDelayMs)*time.Millisecond,
	)

	// Create API handler
	handler := api.NewHandler(database, q, analyzer, generator, ttsSvc)
	router := api.NewRouter(handler, api.RouterConfig{
		BackendAPIKey:      cfg.BackendAPIKey,
		CorsAllowedOrigins: cfg.CorsAllowedOrigins,
	})

	if cfg.BackendAPIKey != "" {
		log.Println("API key authentication enabled")
	} else {
		log.Println("WARNING: No BACKEND_API_KEY set, API is unprotected (dev mode)")
	}

	// Start HTTP server
	server := &http.Server{
		Addr:    ":" + cfg.APIPort,
		Handler: router,
	}

	// Start worker if enabled
	var workerCancel context.CancelFunc
	if cfg.WorkerEnabled {
		log.Println("Worker enabled, starting background processing...")

		w := worker.New(q, analyzer, generator)

		var workerCtx context.Context
		workerCtx, workerCancel = context.WithCancel(context.Background())
		go w.Start(workerCtx, cfg.MaxConcurrentJobs)
	}

	// Start server in goroutine
	go func() {
		log.Printf("API server listening on :%s", cfg.APIPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	// Shutdown worker
	if workerCancel != nil {
		workerCancel()
	}

	// Shutdown HTTP server
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}
