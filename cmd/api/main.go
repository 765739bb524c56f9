package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/storyreel/backend/internal/api"
	"github.com/storyreel/backend/internal/config"
	"github.com/storyreel/backend/internal/db"
	"github.com/storyreel/backend/internal/queue"
	"github.com/storyreel/backend/internal/services"
	"github.com/storyreel/backend/internal/storage"
	"github.com/storyreel/backend/internal/worker"
)

func main() {
	log.Println("Starting StoryReel API...")

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

	// Connect to Redis when the render queue is enabled; otherwise renders run
	// inline in the API process.
	var q *queue.Queue
	if cfg.WorkerEnabled {
		q, err = queue.New(cfg.RedisURL)
		if err != nil {
			log.Fatalf("Failed to connect to queue: %v", err)
		}
		defer q.Close()
		log.Println("Connected to Redis queue")
	} else {
		log.Println("Render queue disabled, renders will run inline")
	}

	// Initialize storage
	stor := storage.New(cfg.SupabaseURL, cfg.SupabaseServiceKey, cfg.SupabaseStorageBucket)
	log.Println("Initialized Supabase storage")

	// Initialize provider services. OpenAI always runs script, storyboard, and
	// transcription; image generation prefers Gemini with OpenAI as fallback.
	openaiSvc := services.NewOpenAIService(cfg.OpenAIKey, cfg.OpenAIChatModel)

	var (
		imageSvc    services.ImageGenerator = openaiSvc
		fallbackSvc services.ImageGenerator // nil = no fallback provider
	)
	if cfg.GeminiKey != "" {
		imageSvc = services.NewGeminiService(cfg.GeminiKey, cfg.GeminiImageModel)
		fallbackSvc = openaiSvc
		log.Println("Image provider: Gemini (fallback: OpenAI)")
	} else {
		log.Println("Image provider: OpenAI (no fallback)")
	}

	// TTS provider: ElevenLabs preferred, Cartesia as legacy fallback
	var ttsSvc services.TTSService
	if cfg.ElevenLabsKey != "" {
		ttsSvc = services.NewElevenLabsService(cfg.ElevenLabsKey, cfg.ElevenLabsVoiceID)
		log.Println("TTS provider: ElevenLabs")
	} else {
		ttsSvc = services.NewCartesiaService(cfg.CartesiaKey, cfg.CartesiaVoiceID)
		log.Println("TTS provider: Cartesia (legacy)")
	}

	ffmpegSvc := services.NewFFmpegService(cfg.FFmpegPath, cfg.FFprobePath)

	tempRoot := cfg.RenderTempDir
	if tempRoot == "" {
		tempRoot = filepath.Join(os.TempDir(), "storyreel")
	}

	// A nil *queue.Queue assigned directly would make the interface non-nil
	var renderQueue worker.RenderQueue
	if q != nil {
		renderQueue = q
	}

	w := worker.New(database, renderQueue, stor, openaiSvc, openaiSvc, imageSvc, fallbackSvc, ttsSvc, openaiSvc, ffmpegSvc, tempRoot)

	// Create API handler
	handler := api.NewHandler(database, q, w, stor)
	router := api.NewRouter(handler, api.RouterConfig{
		CorsAllowedOrigins: cfg.CorsAllowedOrigins,
	})

	// Start HTTP server
	server := &http.Server{
		Addr:    ":" + cfg.APIPort,
		Handler: router,
	}

	// Start render worker loop if enabled
	var workerCtx context.Context
	var workerCancel context.CancelFunc
	if cfg.WorkerEnabled {
		log.Println("Worker enabled, starting render loop...")
		workerCtx, workerCancel = context.WithCancel(context.Background())
		go w.Start(workerCtx)
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
