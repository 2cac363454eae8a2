package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/salesreel/salesreel/internal/config"
	"github.com/salesreel/salesreel/internal/mergeapi"
	"github.com/salesreel/salesreel/internal/services"
	"github.com/salesreel/salesreel/internal/storage"
)

var servePort string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the merge REST sidecar",
	Long: `Run the REST sidecar that accepts multipart video/audio uploads on
POST /api/v1/merge-audio-video and serves merged results from /api/media/.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		port := cfg.MergePort
		if servePort != "" {
			port = servePort
		}

		files, err := storage.New(cfg.VideoDir, cfg.SpeechDir, cfg.UploadDir, cfg.OutputDir)
		if err != nil {
			return err
		}

		ffmpeg := services.NewFFmpeg(cfg.FFmpegPath, cfg.FFprobePath)
		handler := mergeapi.NewHandler(ffmpeg, files)
		router := mergeapi.NewRouter(handler, mergeapi.RouterConfig{
			MaxBodyBytes: int64(cfg.MaxMergeUploadMB) << 20,
		})

		server := &http.Server{
			Addr:              ":" + port,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		}

		go func() {
			log.Printf("Merge sidecar listening on :%s", port)
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("Server error: %v", err)
			}
		}()

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit

		log.Println("Shutting down merge sidecar...")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			return err
		}

		log.Println("Merge sidecar exited")
		return nil
	},
}

func init() {
	serveCmd.Flags().StringVar(&servePort, "port", "", "port to listen on (default from MERGE_PORT, 5001)")
	rootCmd.AddCommand(serveCmd)
}
