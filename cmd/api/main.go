package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/salesreel/salesreel/internal/api"
	"github.com/salesreel/salesreel/internal/config"
	"github.com/salesreel/salesreel/internal/services"
	"github.com/salesreel/salesreel/internal/storage"
	"github.com/salesreel/salesreel/internal/store"
)

func main() {
	log.Println("Starting SalesReel API...")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Connect to Redis
	st, err := store.New(cfg.RedisURL)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer st.Close()
	log.Println("Connected to Redis")

	// Prepare media directories
	files, err := storage.New(cfg.VideoDir, cfg.SpeechDir, cfg.UploadDir, cfg.OutputDir)
	if err != nil {
		log.Fatalf("Failed to prepare media directories: %v", err)
	}

	// Load prompt presets
	prompts, err := config.LoadPrompts(cfg.PromptsFile)
	if err != nil {
		log.Fatalf("Failed to load prompts: %v", err)
	}

	// Initialize services
	scripts := services.NewScriptGenerator(cfg, prompts)
	tts := services.NewTTSClient(cfg, files)
	video := services.NewVideoGenerator(cfg)
	ffmpeg := services.NewFFmpeg(cfg.FFmpegPath, cfg.FFprobePath)
	narrator := services.NewNarrator(tts, ffmpeg, files)

	// Create API handler
	handler := api.NewHandler(st, files, scripts, tts, video, narrator)
	router := api.NewRouter(handler, api.RouterConfig{
		APIKey:         cfg.BackendAPIKey,
		AllowedOrigins: cfg.CorsAllowedOrigins,
		MaxBodyBytes:   int64(cfg.MaxUploadMB) << 20,
	})

	if cfg.BackendAPIKey != "" {
		log.Println("API key authentication enabled")
	} else {
		log.Println("WARNING: No BACKEND_API_KEY set, API is unprotected (dev mode)")
	}

	// Start HTTP server
	server := &http.Server{
		Addr:              ":" + cfg.APIPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

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

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}
